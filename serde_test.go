package hive

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type serdePos struct{ X, Y int }

// serdeLimits is a unique type; the registry holds one storage per type, so
// it must differ from the component type serdePos.
type serdeLimits struct{ X, Y int }

func TestSnapshotRestoreAsNewRoundTrip(t *testing.T) {
	w := NewWorld()
	a := AddEntity(w, Comp(serdePos{X: 1, Y: 2}))
	b := AddEntity(w, Comp(serdePos{X: 3, Y: 4}))
	AddUnique(w, serdeLimits{X: 99, Y: 99})

	snap := Snapshot(w)

	// Restore only fills storages the target world already has. The two
	// entities occupy indexes 0 and 1, so ids minted by AsNew cannot
	// coincide with the source ids a and b.
	w2 := NewWorld()
	AddEntity(w2)
	AddEntity(w2)
	sparseSetFor[serdePos](w2.storages)
	uniqueFor[serdeLimits](w2.storages)
	if err := Restore(w2, snap, AsNew); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	v, release, err := ViewOf[serdePos](w2)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	var got []serdePos
	for _, p := range v.All() {
		got = append(got, *p)
	}
	want := []serdePos{{X: 1, Y: 2}, {X: 3, Y: 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restored component values mismatch (-want +got):\n%s", diff)
	}

	uv, urelease, err := UniqueViewOf[serdeLimits](w2)
	if err != nil {
		t.Fatalf("UniqueViewOf: %v", err)
	}
	defer urelease()
	if got := *uv.Get(); got != (serdeLimits{X: 99, Y: 99}) {
		t.Fatalf("unique value = %+v, want {99 99}", got)
	}

	// AsNew must not reuse the original world's ids verbatim.
	if v.Contains(a) || v.Contains(b) {
		t.Fatal("AsNew restore should mint fresh entities, not reuse source ids")
	}
}

func TestRestoreReplacePolicyOverwritesExisting(t *testing.T) {
	w := NewWorld()
	target := AddEntity(w, Comp(serdePos{X: 1, Y: 1}))

	snap := WorldSnapshot{Storages: map[string][]StoragePair{
		typeName[serdePos](): {{Id: target, Value: serdePos{X: 7, Y: 7}}},
	}}

	if err := Restore(w, snap, Replace); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	v, release, err := ViewOf[serdePos](w)
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	got, err := v.Get(target)
	if err != nil {
		t.Fatal(err)
	}
	if *got != (serdePos{X: 7, Y: 7}) {
		t.Fatalf("Get(target) = %+v, want {7 7} after Replace", *got)
	}
}

func TestRestoreSkipPolicyLeavesExistingUntouched(t *testing.T) {
	w := NewWorld()
	target := AddEntity(w, Comp(serdePos{X: 1, Y: 1}))

	snap := WorldSnapshot{Storages: map[string][]StoragePair{
		typeName[serdePos](): {{Id: target, Value: serdePos{X: 7, Y: 7}}},
	}}

	if err := Restore(w, snap, Skip); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	v, release, err := ViewOf[serdePos](w)
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	got, err := v.Get(target)
	if err != nil {
		t.Fatal(err)
	}
	if *got != (serdePos{X: 1, Y: 1}) {
		t.Fatalf("Get(target) = %+v, want unchanged {1 1} under Skip", *got)
	}
}

func TestEntityIdCompactAndReadableRoundTrip(t *testing.T) {
	id := NewEntityIdFromIndexAndGen(123, 4)

	if got := FromCompact(id.Compact()); got != id {
		t.Fatalf("FromCompact(Compact()) = %v, want %v", got, id)
	}
	if got := FromReadable(id.Readable()); got != id {
		t.Fatalf("FromReadable(Readable()) = %v, want %v", got, id)
	}
}
