package badgerstore

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/brinklabs/hive"
)

type badgerPos struct {
	X, Y int
}

func TestSaveLoadRoundTrip(t *testing.T) {
	Register[badgerPos]()

	dir := filepath.Join(t.TempDir(), "db")
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	w := hive.NewWorld()
	hive.AddEntity(w, hive.Comp(badgerPos{X: 1, Y: 2}))
	hive.AddEntity(w, hive.Comp(badgerPos{X: 3, Y: 4}))

	if err := store.Save(w, hive.SerializeOptions{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Load only restores into storages the world already has.
	w2 := hive.NewWorld()
	_, touch, err := hive.ViewMutOf[badgerPos](w2)
	if err != nil {
		t.Fatalf("ViewMutOf: %v", err)
	}
	touch()
	if err := store.Load(w2, hive.DeserializeOptions{Policy: hive.AsNew}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	v, release, err := hive.ViewOf[badgerPos](w2)
	if err != nil {
		t.Fatalf("ViewOf: %v", err)
	}
	defer release()
	if v.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", v.Len())
	}

	want := map[badgerPos]bool{{X: 1, Y: 2}: true, {X: 3, Y: 4}: true}
	for _, p := range v.All() {
		if !want[*p] {
			t.Fatalf("unexpected restored value %+v", *p)
		}
	}
}

func TestKeyForRoundTripsThroughSplitKey(t *testing.T) {
	id := hive.NewEntityIdFromIndexAndGen(7, 1)
	key := keyFor("badgerPos", id)
	storage, idStr, ok := splitKey(string(key))
	if !ok {
		t.Fatalf("splitKey(%q) reported not ok", key)
	}
	if storage != "badgerPos" {
		t.Fatalf("storage = %q, want badgerPos", storage)
	}
	want := id.Compact()
	var got uint64
	if _, err := fmt.Sscanf(idStr, "%d", &got); err != nil {
		t.Fatalf("parsing id: %v", err)
	}
	if got != want {
		t.Fatalf("id = %d, want %d", got, want)
	}
}
