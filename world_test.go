package hive

import (
	"errors"
	"testing"
)

func TestScenarioDeleteAndGeneration(t *testing.T) {
	w := NewWorld()
	e0 := AddEntity(w, Comp(uint32(0)))
	AddEntity(w, Comp(uint32(1)))
	AddEntity(w, Comp(uint32(2)))

	if !w.DeleteEntity(e0) {
		t.Fatal("DeleteEntity(e0) returned false")
	}
	e3 := AddEntity(w, Comp(uint32(99)))
	if e3.Index() != e0.Index() {
		t.Fatalf("e3.Index() = %d, want %d", e3.Index(), e0.Index())
	}
	if e3.Gen() != e0.Gen()+1 {
		t.Fatalf("e3.Gen() = %d, want %d", e3.Gen(), e0.Gen()+1)
	}

	v, release, err := ViewOf[uint32](w)
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	if _, err := v.Get(e0); err == nil {
		t.Fatal("Get(e0) should fail after delete")
	}
	got, err := v.Get(e3)
	if err != nil {
		t.Fatalf("Get(e3): %v", err)
	}
	if *got != 99 {
		t.Fatalf("Get(e3) = %d, want 99", *got)
	}
}

func TestScenarioRemoveVsDeleteTracking(t *testing.T) {
	w := NewWorld()
	Track[uint32](w, All)
	a := AddEntity(w, Comp(uint32(7)))
	b := AddEntity(w, Comp(uint32(9)))

	v, release, err := ViewMutOf[uint32](w)
	if err != nil {
		t.Fatal(err)
	}

	removedVal, ok := v.Remove(a)
	if !ok || removedVal != 7 {
		t.Fatalf("Remove(a) = (%d,%v), want (7,true)", removedVal, ok)
	}
	removed := v.TakeRemoved()
	if len(removed) != 1 || removed[0] != a {
		t.Fatalf("removed() = %v, want [%v]", removed, a)
	}
	if len(v.TakeDeleted()) != 0 {
		t.Fatal("deleted() should be empty so far")
	}

	if !v.Delete(b) {
		t.Fatal("Delete(b) returned false")
	}
	deleted := v.TakeDeleted()
	if len(deleted) != 1 || deleted[0].id != b || deleted[0].value != 9 {
		t.Fatalf("deleted() = %v, want one record (b, 9)", deleted)
	}
	release()
}

func TestScenarioBorrowConflict(t *testing.T) {
	w := NewWorld()
	AddEntity(w, Comp(uint32(1)))

	_, release1, err := ViewMutOf[uint32](w)
	if err != nil {
		t.Fatalf("first ViewMutOf: %v", err)
	}
	defer release1()

	_, _, err = ViewMutOf[uint32](w)
	if err == nil {
		t.Fatal("second concurrent ViewMutOf should fail with a borrow conflict")
	}
	var conflict GetStorageError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v (%T), want GetStorageError", err, err)
	}
}

func TestScenarioWorkloadOrdering(t *testing.T) {
	type velocity float64
	type dead struct{}

	w := NewWorld()
	e := AddEntity(w, Comp(velocity(99.5)))

	var order []string

	increment := &System{
		Name:   "increment",
		Access: []AccessDecl{WritesComponent[velocity]()},
		Run: func(ctx *RunContext) error {
			order = append(order, "increment")
			vel := ViewMutFrom[velocity](ctx)
			v, err := vel.GetMut(e)
			if err != nil {
				return err
			}
			*v += 1
			return nil
		},
	}
	flagDead := &System{
		Name:   "flag_dead",
		Access: []AccessDecl{ReadsComponent[velocity](), WritesComponent[dead]()},
		Run: func(ctx *RunContext) error {
			order = append(order, "flag_dead")
			vel := ViewFrom[velocity](ctx)
			deadv := ViewMutFrom[dead](ctx)
			v, err := vel.Get(e)
			if err != nil {
				return err
			}
			if *v > 100 {
				deadv.Insert(e, dead{})
			}
			return nil
		},
	}
	purgeDead := &System{
		Name:   "purge_dead",
		Access: []AccessDecl{WritesComponent[dead]()},
		Run: func(ctx *RunContext) error {
			order = append(order, "purge_dead")
			deadv := ViewMutFrom[dead](ctx)
			deadv.Delete(e)
			return nil
		},
	}

	wl, err := NewWorkloadBuilder("tick").With(increment).With(flagDead).With(purgeDead).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := w.AddWorkload(wl); err != nil {
		t.Fatalf("AddWorkload: %v", err)
	}
	if err := w.RunWorkload("tick"); err != nil {
		t.Fatalf("RunWorkload: %v", err)
	}

	wantOrder := []string{"increment", "flag_dead", "purge_dead"}
	if len(order) != len(wantOrder) {
		t.Fatalf("order = %v, want %v", order, wantOrder)
	}
	for i := range wantOrder {
		if order[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", order, wantOrder)
		}
	}

	v, release, err := ViewOf[velocity](w)
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	got, err := v.Get(e)
	if err != nil {
		t.Fatal(err)
	}
	if *got != 100.5 {
		t.Fatalf("velocity = %v, want 100.5", *got)
	}

	dv, release2, err := ViewOf[dead](w)
	if err != nil {
		t.Fatal(err)
	}
	defer release2()
	if dv.Contains(e) {
		t.Fatal("dead flag should have been purged by the third stage")
	}
}

func TestWorkloadAlreadyExists(t *testing.T) {
	w := NewWorld()
	wl, err := NewWorkloadBuilder("dup").Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddWorkload(wl); err != nil {
		t.Fatal(err)
	}
	wl2, _ := NewWorkloadBuilder("dup").Build()
	err = w.AddWorkload(wl2)
	if _, ok := err.(AddWorkloadAlreadyExistsError); !ok {
		t.Fatalf("err = %v, want AddWorkloadAlreadyExistsError", err)
	}
}

func TestMissingWorkload(t *testing.T) {
	w := NewWorld()
	err := w.RunWorkload("nope")
	if _, ok := err.(MissingWorkloadError); !ok {
		t.Fatalf("err = %v, want MissingWorkloadError", err)
	}
}

func TestInvalidSystemAllStoragesConflict(t *testing.T) {
	s := &System{
		Name:   "bad",
		Access: []AccessDecl{WritesAllStorages(), ReadsComponent[uint32]()},
		Run:    func(*RunContext) error { return nil },
	}
	_, err := NewWorkloadBuilder("w").With(s).Build()
	var invalid InvalidSystemError
	if !errors.As(err, &invalid) || invalid.Reason != AllStoragesConflict {
		t.Fatalf("err = %v, want AllStoragesConflict", err)
	}
}

func TestInvalidSystemMultipleViewsMut(t *testing.T) {
	s := &System{
		Name:   "bad",
		Access: []AccessDecl{WritesComponent[uint32](), WritesComponent[uint32]()},
		Run:    func(*RunContext) error { return nil },
	}
	_, err := NewWorkloadBuilder("w").With(s).Build()
	var invalid InvalidSystemError
	if !errors.As(err, &invalid) || invalid.Reason != MultipleViewsMut {
		t.Fatalf("err = %v, want MultipleViewsMut", err)
	}
}

func TestDeleteAnyUnregisteredIsNoOp(t *testing.T) {
	w := NewWorld()
	type unused struct{}
	DeleteAny[unused](w) // must not panic
}

func TestAddComponentToDeadEntityIsNoOp(t *testing.T) {
	w := NewWorld()
	e := AddEntity(w)
	w.DeleteEntity(e)
	AddComponent(w, e, Comp(uint32(1)))

	v, release, err := ViewOf[uint32](w)
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	if v.Contains(e) {
		t.Fatal("AddComponent on a dead entity should be a no-op")
	}
}

func TestDeleteEntityOnDeadReturnsFalse(t *testing.T) {
	w := NewWorld()
	e := AddEntity(w)
	w.DeleteEntity(e)
	if w.DeleteEntity(e) {
		t.Fatal("second DeleteEntity on an already-dead entity should return false")
	}
}
