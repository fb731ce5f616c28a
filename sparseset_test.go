package hive

import "testing"

type testPos struct{ X, Y int }

func TestSparseSetInsertGetRemove(t *testing.T) {
	s := NewSparseSet[testPos]()
	e := NewEntities()
	ids := e.BulkMint(5)

	for i, id := range ids {
		s.Insert(id, testPos{X: i, Y: i * 2}, Tick(1))
	}
	if s.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", s.Len())
	}

	for i, id := range ids {
		v, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get(%v): %v", id, err)
		}
		if v.X != i || v.Y != i*2 {
			t.Errorf("Get(%v) = %+v, want {%d %d}", id, *v, i, i*2)
		}
	}

	mid := ids[2]
	v, ok := s.Remove(mid)
	if !ok {
		t.Fatal("Remove(mid) reported not found")
	}
	if v.X != 2 {
		t.Fatalf("removed value = %+v, want X=2", v)
	}
	if s.Contains(mid) {
		t.Fatal("storage still contains removed entity")
	}
	if s.Len() != 4 {
		t.Fatalf("Len() after remove = %d, want 4", s.Len())
	}
	if err := s.checkInvariant(); err != nil {
		t.Fatalf("invariant broken after remove: %v", err)
	}

	for i, id := range ids {
		if id == mid {
			continue
		}
		if !s.Contains(id) {
			t.Errorf("entity %d (%v) missing after unrelated removal", i, id)
		}
	}
}

func TestSparseSetDeleteVsRemoveTracking(t *testing.T) {
	s := NewSparseSet[testPos]()
	s.Track(All)
	e := NewEntities()
	a, b := e.Mint(), e.Mint()
	s.Insert(a, testPos{X: 1}, Tick(1))
	s.Insert(b, testPos{X: 2}, Tick(1))

	s.Remove(a)
	s.Delete(b)

	removed := s.TakeRemoved()
	if len(removed) != 1 || removed[0] != a {
		t.Fatalf("Removed() = %v, want [%v]", removed, a)
	}
	deleted := s.TakeDeleted()
	if len(deleted) != 1 || deleted[0].id != b || deleted[0].value.X != 2 {
		t.Fatalf("Deleted() = %v, want one record for %v with X=2", deleted, b)
	}
}

func TestSparseSetInsertedModified(t *testing.T) {
	s := NewSparseSet[testPos]()
	s.Track(All)
	e := NewEntities()
	a := e.Mint()
	b := e.Mint()

	s.Insert(a, testPos{X: 1}, Tick(1))
	inserted := s.Inserted(Tick(0))
	if len(inserted) != 1 || inserted[0] != a {
		t.Fatalf("Inserted(0) = %v, want [%v]", inserted, a)
	}

	s.Insert(b, testPos{X: 2}, Tick(2))
	if got := s.Inserted(Tick(1)); len(got) != 1 || got[0] != b {
		t.Fatalf("Inserted(1) = %v, want [%v]", got, b)
	}

	if _, err := s.GetMut(a, Tick(3)); err != nil {
		t.Fatalf("GetMut(a): %v", err)
	}
	modified := s.Modified(Tick(2))
	if len(modified) != 1 || modified[0] != a {
		t.Fatalf("Modified(2) = %v, want [%v]", modified, a)
	}
}

func TestSparseSetShareSingleHop(t *testing.T) {
	s := NewSparseSet[testPos]()
	e := NewEntities()
	owner := e.Mint()
	beneficiary := e.Mint()
	s.Insert(owner, testPos{X: 9, Y: 9}, Tick(1))
	s.Share(owner, beneficiary)

	v, err := s.Get(beneficiary)
	if err != nil {
		t.Fatalf("Get(beneficiary): %v", err)
	}
	if v.X != 9 {
		t.Fatalf("shared value = %+v, want X=9", *v)
	}
}

func TestSparseSetSortPreservesInvariant(t *testing.T) {
	s := NewSparseSet[testPos]()
	e := NewEntities()
	ids := e.BulkMint(6)
	vals := []int{5, 3, 1, 4, 1, 2}
	for i, id := range ids {
		s.Insert(id, testPos{X: vals[i]}, Tick(1))
	}

	s.Sort(func(a, b testPos) bool { return a.X < b.X })

	for i := 1; i < len(s.dense); i++ {
		if s.data[i-1].X > s.data[i].X {
			t.Fatalf("not sorted at %d: %v", i, s.data)
		}
	}
	if err := s.checkInvariant(); err != nil {
		t.Fatalf("invariant broken after sort: %v", err)
	}
	for _, id := range ids {
		if !s.Contains(id) {
			t.Errorf("entity %v lost after sort", id)
		}
	}
}

func TestSparseSetRetainOnly(t *testing.T) {
	s := NewSparseSet[testPos]()
	e := NewEntities()
	ids := e.BulkMint(4)
	for i, id := range ids {
		s.Insert(id, testPos{X: i}, Tick(1))
	}
	s.RetainOnly(ids[1], ids[3])

	if s.Len() != 2 {
		t.Fatalf("Len() after RetainOnly = %d, want 2", s.Len())
	}
	if !s.Contains(ids[1]) || !s.Contains(ids[3]) {
		t.Fatal("RetainOnly dropped an id it should have kept")
	}
	if s.Contains(ids[0]) || s.Contains(ids[2]) {
		t.Fatal("RetainOnly kept an id it should have dropped")
	}
}
