package hive

import (
	"fmt"

	"github.com/TheBitDrifter/bark"
)

const sparseBucketSize = 1024

// SparseSet holds the per-component-type storage: a bucketed sparse map
// from entity index to dense position, a dense array of EntityId in
// insertion/swap order, and a parallel data array of T.
//
// Buckets are allocated lazily so memory scales with the highest used
// index, not the entity count, mirroring the page-table-style sparse
// arrays of the source this is modeled on.
type SparseSet[T any] struct {
	sparse  [][]int32 // buckets of size sparseBucketSize; -1 means absent
	dense   []EntityId
	data    []T
	track   trackingState[T]
	shared  map[uint64]EntityId // beneficiary index -> owner id, single-hop only
	onInsert func(EntityId, *T)
	onRemove func(EntityId, T)
	pinned  bool // non-thread-safe: may only be borrowed from the owning goroutine
}

// NewSparseSet constructs an empty, untracked storage.
func NewSparseSet[T any]() *SparseSet[T] {
	return &SparseSet[T]{}
}

// Track sets the tracking mode. Safe to call at any time; it does not
// retroactively populate timestamps for already-present components.
func (s *SparseSet[T]) Track(mode TrackingMode) {
	s.track.mode = mode
}

// Pin marks the storage non-thread-safe. The mark is advisory: the
// scheduler does not consult it, so a system over a pinned storage is only
// kept in a stage of its own when its System.Sequential is set.
func (s *SparseSet[T]) Pin() { s.pinned = true }

// Pinned reports the non-thread-safe classification.
func (s *SparseSet[T]) Pinned() bool { return s.pinned }

// OnInsert/OnRemove register per-storage insert/remove hooks.
func (s *SparseSet[T]) OnInsert(fn func(EntityId, *T)) { s.onInsert = fn }
func (s *SparseSet[T]) OnRemove(fn func(EntityId, T))  { s.onRemove = fn }

func (s *SparseSet[T]) bucketFor(index uint64) ([]int32, uint64) {
	bucket := index / sparseBucketSize
	offset := index % sparseBucketSize
	for uint64(len(s.sparse)) <= bucket {
		s.sparse = append(s.sparse, nil)
	}
	if s.sparse[bucket] == nil {
		b := make([]int32, sparseBucketSize)
		for i := range b {
			b[i] = -1
		}
		s.sparse[bucket] = b
	}
	return s.sparse[bucket], offset
}

func (s *SparseSet[T]) lookupSlot(index uint64) (int32, bool) {
	bucket := index / sparseBucketSize
	if bucket >= uint64(len(s.sparse)) || s.sparse[bucket] == nil {
		return -1, false
	}
	offset := index % sparseBucketSize
	pos := s.sparse[bucket][offset]
	return pos, pos >= 0
}

// Contains reports presence respecting generation: the dense slot's stored
// id must match id exactly.
func (s *SparseSet[T]) Contains(id EntityId) bool {
	pos, ok := s.lookupSlot(id.Index())
	if !ok {
		return false
	}
	return s.dense[pos] == id
}

// Len returns the number of components stored.
func (s *SparseSet[T]) Len() int { return len(s.dense) }

// Insert installs v for id, returning the previous value if one existed.
// Records the insertion tick and fires the on-insert hook.
func (s *SparseSet[T]) Insert(id EntityId, v T, tick Tick) (prev T, hadPrev bool) {
	if pos, ok := s.lookupSlot(id.Index()); ok && s.dense[pos] == id {
		prev = s.data[pos]
		s.data[pos] = v
		if s.onInsert != nil {
			s.onInsert(id, &s.data[pos])
		}
		return prev, true
	}
	bucket, offset := s.bucketFor(id.Index())
	pos := int32(len(s.dense))
	bucket[offset] = pos
	s.dense = append(s.dense, id)
	s.data = append(s.data, v)
	if s.track.mode.tracksInsertion() || s.track.mode.tracksModification() {
		s.track.onInsertAt(int(pos), tick)
	}
	if s.onInsert != nil {
		s.onInsert(id, &s.data[pos])
	}
	var zero T
	return zero, false
}

// swapRemoveAt performs the O(1) swap-with-last removal at dense index pos,
// patching the relocated element's sparse entry atomically with the
// truncation, preserving the three-vector sparse/dense/data invariant.
func (s *SparseSet[T]) swapRemoveAt(pos int32) T {
	last := int32(len(s.dense) - 1)
	v := s.data[pos]
	if pos != last {
		movedID := s.dense[last]
		s.dense[pos] = movedID
		s.data[pos] = s.data[last]
		bucket, offset := s.bucketFor(movedID.Index())
		bucket[offset] = pos
	}
	s.dense = s.dense[:last]
	s.data = s.data[:last]
	s.track.onSwapRemove(int(pos), int(last))
	return v
}

func (s *SparseSet[T]) clearSlot(index uint64) {
	bucket, ok := s.lookupBucketSlice(index)
	if ok {
		bucket[index%sparseBucketSize] = -1
	}
}

func (s *SparseSet[T]) lookupBucketSlice(index uint64) ([]int32, bool) {
	bucket := index / sparseBucketSize
	if bucket >= uint64(len(s.sparse)) || s.sparse[bucket] == nil {
		return nil, false
	}
	return s.sparse[bucket], true
}

// Remove extracts v for id, recording it in `removed` (value discarded by
// the record, only the id is kept) and firing on-remove. Returns the value
// and whether it was present.
func (s *SparseSet[T]) Remove(id EntityId) (v T, ok bool) {
	pos, found := s.lookupSlot(id.Index())
	if !found || s.dense[pos] != id {
		var zero T
		return zero, false
	}
	s.clearSlot(id.Index())
	v = s.swapRemoveAt(pos)
	s.track.recordRemoved(id)
	if s.onRemove != nil {
		s.onRemove(id, v)
	}
	return v, true
}

// Delete drops v after recording the (id, v) pair in `deleted`, distinct
// from Remove which discards the value from the record.
func (s *SparseSet[T]) Delete(id EntityId) bool {
	pos, found := s.lookupSlot(id.Index())
	if !found || s.dense[pos] != id {
		return false
	}
	s.clearSlot(id.Index())
	v := s.swapRemoveAt(pos)
	s.track.recordDeleted(id, v)
	if s.onRemove != nil {
		s.onRemove(id, v)
	}
	return true
}

// Get looks up &T for id, falling through one shared-link hop if id has
// none of its own component and a link exists. Single-hop only.
func (s *SparseSet[T]) Get(id EntityId) (*T, error) {
	pos, found := s.lookupSlot(id.Index())
	if found && s.dense[pos] == id {
		return &s.data[pos], nil
	}
	if owner, ok := s.shared[id.Index()]; ok {
		if ownerPos, ok := s.lookupSlot(owner.Index()); ok && s.dense[ownerPos] == owner {
			return &s.data[ownerPos], nil
		}
	}
	return nil, MissingComponentError{Id: id, TypeName: typeName[T]()}
}

// GetMut looks up &T for id and bumps the modification tick. Tracked views
// must stamp on access, not on drop, so the stamp happens here rather than
// via any deferred/finalizer mechanism.
func (s *SparseSet[T]) GetMut(id EntityId, tick Tick) (*T, error) {
	pos, found := s.lookupSlot(id.Index())
	if !found || s.dense[pos] != id {
		return nil, MissingComponentError{Id: id, TypeName: typeName[T]()}
	}
	s.track.onModifyAt(int(pos), tick)
	return &s.data[pos], nil
}

// Share installs a beneficiary->owner link: beneficiary sees owner's
// component as if it were its own. Exactly one hop; chained shares are not
// followed, a deliberate choice recorded in DESIGN.md.
func (s *SparseSet[T]) Share(owner, beneficiary EntityId) {
	if s.shared == nil {
		s.shared = make(map[uint64]EntityId)
	}
	s.shared[beneficiary.Index()] = owner
}

// Ids returns the dense id array, in current (insertion/swap) order.
func (s *SparseSet[T]) Ids() []EntityId { return s.dense }

// DenseSlice exposes the contiguous backing data array. Only legal to
// expose externally via a chunk iterator; internal callers (sort, swap,
// retain) use it directly.
func (s *SparseSet[T]) DenseSlice() []T { return s.data }

// Swap exchanges the dense-array positions of two entities' components
// within this storage, touching no other storage. Sort does not go through
// Swap; it swaps by dense index via swapIndices.
func (s *SparseSet[T]) Swap(a, b EntityId) {
	posA, okA := s.lookupSlot(a.Index())
	posB, okB := s.lookupSlot(b.Index())
	if !okA || !okB || s.dense[posA] != a || s.dense[posB] != b {
		panic(bark.AddTrace(fmt.Errorf("hive: Swap requires both entities to own the component")))
	}
	s.dense[posA], s.dense[posB] = s.dense[posB], s.dense[posA]
	s.data[posA], s.data[posB] = s.data[posB], s.data[posA]
	if posA < int32(len(s.track.insertionTimestamps)) && posB < int32(len(s.track.insertionTimestamps)) {
		s.track.insertionTimestamps[posA], s.track.insertionTimestamps[posB] = s.track.insertionTimestamps[posB], s.track.insertionTimestamps[posA]
		s.track.modificationStamps[posA], s.track.modificationStamps[posB] = s.track.modificationStamps[posB], s.track.modificationStamps[posA]
	}
	bucketA, offA := s.bucketFor(a.Index())
	bucketB, offB := s.bucketFor(b.Index())
	bucketA[offA] = posB
	bucketB[offB] = posA
}

// Sort reorders the dense/data arrays ascending by less, preserving the
// sparse-set invariant for every affected entity.
func (s *SparseSet[T]) Sort(less func(a, b T) bool) {
	n := len(s.dense)
	for i := 1; i < n; i++ {
		for j := i; j > 0 && less(s.data[j], s.data[j-1]); j-- {
			s.swapIndices(int32(j), int32(j-1))
		}
	}
}

func (s *SparseSet[T]) swapIndices(i, j int32) {
	s.dense[i], s.dense[j] = s.dense[j], s.dense[i]
	s.data[i], s.data[j] = s.data[j], s.data[i]
	if int(i) < len(s.track.insertionTimestamps) && int(j) < len(s.track.insertionTimestamps) {
		s.track.insertionTimestamps[i], s.track.insertionTimestamps[j] = s.track.insertionTimestamps[j], s.track.insertionTimestamps[i]
		s.track.modificationStamps[i], s.track.modificationStamps[j] = s.track.modificationStamps[j], s.track.modificationStamps[i]
	}
	bucketI, offI := s.bucketFor(s.dense[i].Index())
	bucketJ, offJ := s.bucketFor(s.dense[j].Index())
	bucketI[offI] = i
	bucketJ[offJ] = j
}

// RetainOnly drops every component except those belonging to ids (see
// SPEC_FULL.md).
func (s *SparseSet[T]) RetainOnly(ids ...EntityId) {
	keep := make(map[EntityId]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	for i := 0; i < len(s.dense); {
		id := s.dense[i]
		if _, ok := keep[id]; ok {
			i++
			continue
		}
		s.clearSlot(id.Index())
		v := s.swapRemoveAt(int32(i))
		s.track.recordRemoved(id)
		if s.onRemove != nil {
			s.onRemove(id, v)
		}
	}
}

// Inserted returns ids whose insertion timestamp is strictly greater than
// threshold.
func (s *SparseSet[T]) Inserted(threshold Tick) []EntityId {
	return s.filterByTick(s.track.insertionTimestamps, threshold)
}

// Modified returns ids whose modification timestamp is strictly greater
// than threshold.
func (s *SparseSet[T]) Modified(threshold Tick) []EntityId {
	return s.filterByTick(s.track.modificationStamps, threshold)
}

func (s *SparseSet[T]) filterByTick(stamps []Tick, threshold Tick) []EntityId {
	var out []EntityId
	for i, stamp := range stamps {
		if stamp > threshold && i < len(s.dense) {
			out = append(out, s.dense[i])
		}
	}
	return out
}

// Deleted returns the storage's pending deleted records.
func (s *SparseSet[T]) Deleted() []deletedRecord[T] { return s.track.deleted }

// Removed returns the storage's pending removed ids.
func (s *SparseSet[T]) Removed() []EntityId { return s.track.removed }

// ClearAllInserted resets the insertion-tracking threshold for every
// entity in the storage.
func (s *SparseSet[T]) ClearAllInserted() { s.track.clearAllInserted() }

// ClearAllModified resets the modification-tracking threshold.
func (s *SparseSet[T]) ClearAllModified() { s.track.clearAllModified() }

// TakeDeleted drains and returns the deleted-records list.
func (s *SparseSet[T]) TakeDeleted() []deletedRecord[T] { return s.track.takeDeleted() }

// TakeRemoved drains and returns the removed-ids list.
func (s *SparseSet[T]) TakeRemoved() []EntityId { return s.track.takeRemoved() }

// checkInvariant verifies the three-vector sparse/dense/data invariant.
// Used by tests; a violation is a programmer bug, not a recoverable error.
func (s *SparseSet[T]) checkInvariant() error {
	if len(s.dense) != len(s.data) {
		return fmt.Errorf("hive: sparse set invariant violated: |dense|=%d != |data|=%d", len(s.dense), len(s.data))
	}
	for i, id := range s.dense {
		pos, ok := s.lookupSlot(id.Index())
		if !ok || pos != int32(i) {
			return fmt.Errorf("hive: sparse set invariant violated at dense index %d for entity %v", i, id)
		}
	}
	return nil
}
