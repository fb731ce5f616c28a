// Command hivebench spawns a batch of entities across a few component
// shapes, runs a sample workload for a configurable number of ticks, and
// reports timing.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/brinklabs/hive"
	"github.com/brinklabs/hive/persist/badgerstore"
	"github.com/brinklabs/hive/persist/filestore"
)

type position struct{ X, Y float64 }
type velocity struct{ DX, DY float64 }
type health struct{ HP int }

func main() {
	entities := pflag.IntP("entities", "n", 10000, "number of entities to spawn")
	ticks := pflag.IntP("ticks", "t", 100, "number of workload ticks to run")
	workers := pflag.IntP("workers", "w", 4, "worker count for the parallel movement pass")
	backend := pflag.String("persist", "none", "persistence backend to snapshot through at the end: none, badger, file")
	dbDir := pflag.String("badger-dir", "hivebench.badger", "directory for the badger backend")
	snapFile := pflag.String("file-path", "hivebench.snapshot.json", "path for the file backend")
	pflag.Parse()

	w := hive.NewWorld(hive.WithLogger(hive.NewDevelopmentLogger()))

	rows := make([][]hive.ComponentInserter, *entities)
	for i := range rows {
		rows[i] = []hive.ComponentInserter{
			hive.Comp(position{X: float64(i), Y: 0}),
			hive.Comp(velocity{DX: 1, DY: 0.5}),
		}
		if i%3 == 0 {
			rows[i] = append(rows[i], hive.Comp(health{HP: 100}))
		}
	}
	ids := hive.BulkAddEntity(w, rows)
	fmt.Printf("spawned %d entities\n", len(ids))

	moveSystem := &hive.System{
		Name: "move",
		Access: []hive.AccessDecl{
			hive.ReadsComponent[velocity](),
			hive.WritesComponent[position](),
		},
		Run: func(ctx *hive.RunContext) error {
			vel := hive.ViewFrom[velocity](ctx)
			pos := hive.ViewMutFrom[position](ctx)
			return hive.Parallel(pos, *workers, ctx.Tick(), func(id hive.EntityId, p *position) {
				if v, err := vel.Get(id); err == nil {
					p.X += v.DX
					p.Y += v.DY
				}
			})
		},
	}
	decaySystem := &hive.System{
		Name:   "decay",
		Access: []hive.AccessDecl{hive.WritesComponent[health]()},
		Run: func(ctx *hive.RunContext) error {
			hp := hive.ViewMutFrom[health](ctx)
			for _, id := range append([]hive.EntityId(nil), hp.Ids()...) {
				v, _ := hp.GetMut(id)
				if v.HP > 0 {
					v.HP--
				}
			}
			return nil
		},
	}

	wl, err := hive.NewWorkloadBuilder("tick").With(moveSystem).With(decaySystem).Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "build workload:", err)
		os.Exit(1)
	}
	if err := w.AddWorkload(wl); err != nil {
		fmt.Fprintln(os.Stderr, "add workload:", err)
		os.Exit(1)
	}

	start := time.Now()
	for i := 0; i < *ticks; i++ {
		if err := w.RunWorkload("tick"); err != nil {
			fmt.Fprintln(os.Stderr, "run workload:", err)
			os.Exit(1)
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("ran %d ticks over %d entities in %s (%.2f ticks/sec)\n",
		*ticks, *entities, elapsed, float64(*ticks)/elapsed.Seconds())

	switch *backend {
	case "none":
	case "badger":
		badgerstore.Register[position]()
		badgerstore.Register[velocity]()
		badgerstore.Register[health]()
		store, err := badgerstore.Open(*dbDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open badger:", err)
			os.Exit(1)
		}
		defer store.Close()
		if err := store.Save(w, hive.SerializeOptions{}); err != nil {
			fmt.Fprintln(os.Stderr, "save badger:", err)
			os.Exit(1)
		}
		fmt.Println("snapshot written to", *dbDir)
	case "file":
		store := filestore.New(*snapFile)
		if err := store.Save(w, hive.SerializeOptions{}); err != nil {
			fmt.Fprintln(os.Stderr, "save file:", err)
			os.Exit(1)
		}
		fmt.Println("snapshot written to", *snapFile)
	default:
		fmt.Fprintln(os.Stderr, "unknown persistence backend:", *backend)
		os.Exit(1)
	}
}
