package hive

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWorkloadDefFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tick.yaml")
	doc := "name: tick\nsystems:\n  - move\n  - decay\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	def, err := LoadWorkloadDefFile(path)
	if err != nil {
		t.Fatalf("LoadWorkloadDefFile: %v", err)
	}
	if def.Name != "tick" {
		t.Fatalf("Name = %q, want tick", def.Name)
	}
	if len(def.Systems) != 2 || def.Systems[0] != "move" || def.Systems[1] != "decay" {
		t.Fatalf("Systems = %v, want [move decay]", def.Systems)
	}
}

func TestLoadWorkloadDefFileMissingName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("systems:\n  - move\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWorkloadDefFile(path); err == nil {
		t.Fatal("expected an error for a workload def missing a name")
	}
}

func TestWorkloadDefBuildResolvesRegistryAndRuns(t *testing.T) {
	type speed int

	w := NewWorld()
	e := AddEntity(w, Comp(speed(1)))

	var ran []string
	move := &System{
		Name:   "move",
		Access: []AccessDecl{WritesComponent[speed]()},
		Run: func(ctx *RunContext) error {
			ran = append(ran, "move")
			v := ViewMutFrom[speed](ctx)
			s, err := v.GetMut(e)
			if err != nil {
				return err
			}
			*s++
			return nil
		},
	}
	decay := &System{
		Name:   "decay",
		Access: []AccessDecl{WritesComponent[speed]()},
		Run: func(ctx *RunContext) error {
			ran = append(ran, "decay")
			return nil
		},
	}
	reg := SystemRegistry{"move": move, "decay": decay}

	def := WorkloadDef{Name: "tick", Systems: []string{"move", "decay"}}
	wl, err := def.Build(reg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := w.AddWorkload(wl); err != nil {
		t.Fatalf("AddWorkload: %v", err)
	}
	if err := w.RunWorkload("tick"); err != nil {
		t.Fatalf("RunWorkload: %v", err)
	}
	if len(ran) != 2 || ran[0] != "move" || ran[1] != "decay" {
		t.Fatalf("ran = %v, want [move decay]", ran)
	}
}

func TestWorkloadDefBuildUnknownSystem(t *testing.T) {
	def := WorkloadDef{Name: "tick", Systems: []string{"ghost"}}
	_, err := def.Build(SystemRegistry{})
	if err == nil {
		t.Fatal("expected an error for a workload def referencing an unregistered system")
	}
}

func TestAddWorkloadFromYAML(t *testing.T) {
	type counter int

	dir := t.TempDir()
	path := filepath.Join(dir, "tick.yaml")
	doc := "name: tick\nsystems:\n  - bump\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWorld()
	e := AddEntity(w, Comp(counter(0)))
	bump := &System{
		Name:   "bump",
		Access: []AccessDecl{WritesComponent[counter]()},
		Run: func(ctx *RunContext) error {
			v := ViewMutFrom[counter](ctx)
			c, err := v.GetMut(e)
			if err != nil {
				return err
			}
			*c++
			return nil
		},
	}

	if err := AddWorkloadFromYAML(w, path, SystemRegistry{"bump": bump}); err != nil {
		t.Fatalf("AddWorkloadFromYAML: %v", err)
	}
	if err := w.RunWorkload("tick"); err != nil {
		t.Fatalf("RunWorkload: %v", err)
	}

	v, release, err := ViewOf[counter](w)
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	got, err := v.Get(e)
	if err != nil {
		t.Fatal(err)
	}
	if *got != 1 {
		t.Fatalf("counter = %d, want 1", *got)
	}
}
