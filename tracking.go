package hive

import "github.com/TheBitDrifter/mask"

// Tick is the World's monotonic counter. It advances once per borrow
// acquisition (ad-hoc) or once per workload stage boundary.
type Tick uint64

// TrackingMode is a bitset of which of the four event kinds a storage
// records. Reuses mask.Mask, a fixed-width bitset type, for a small flag
// set instead of a component-presence mask.
type TrackingMode mask.Mask

const (
	trackInsertionBit = iota
	trackModificationBit
	trackDeletionBit
	trackRemovalBit
)

// Untracked, Insertion, ..., All are the tracking mode values.
var (
	Untracked    = TrackingMode(mask.Mask{})
	Insertion    = trackingBit(trackInsertionBit)
	Modification = trackingBit(trackModificationBit)
	Deletion     = trackingBit(trackDeletionBit)
	Removal      = trackingBit(trackRemovalBit)
	All          = Insertion.Or(Modification).Or(Deletion).Or(Removal)
)

func trackingBit(bit uint32) TrackingMode {
	m := mask.Mask{}
	m.Mark(bit)
	return TrackingMode(m)
}

// trackingBitCount is the number of known flag bits; Or only needs to
// union this closed set, so it rebuilds via Mark rather than requiring a
// bitwise-OR primitive from the mask package.
const trackingBitCount = 4

// Or combines two tracking modes.
func (t TrackingMode) Or(other TrackingMode) TrackingMode {
	m := mask.Mask{}
	for bit := uint32(0); bit < trackingBitCount; bit++ {
		if t.has(bit) || other.has(bit) {
			m.Mark(bit)
		}
	}
	return TrackingMode(m)
}

func (t TrackingMode) has(bit uint32) bool {
	m := mask.Mask(t)
	probe := mask.Mask{}
	probe.Mark(bit)
	return m.ContainsAll(probe)
}

func (t TrackingMode) tracksInsertion() bool    { return t.has(trackInsertionBit) }
func (t TrackingMode) tracksModification() bool { return t.has(trackModificationBit) }
func (t TrackingMode) tracksDeletion() bool     { return t.has(trackDeletionBit) }
func (t TrackingMode) tracksRemoval() bool      { return t.has(trackRemovalBit) }

// deletedRecord is one entry of a tracked storage's `deleted` list: the
// value is kept, unlike `removed`.
type deletedRecord[T any] struct {
	id    EntityId
	value T
}

// trackingState holds a storage's per-entity insertion/modification
// timestamps plus its deleted/removed history.
type trackingState[T any] struct {
	mode                TrackingMode
	insertionTimestamps []Tick // index-aligned with dense/data
	modificationStamps  []Tick
	deleted             []deletedRecord[T]
	removed             []EntityId
}

func (s *trackingState[T]) onInsertAt(i int, tick Tick) {
	for len(s.insertionTimestamps) <= i {
		s.insertionTimestamps = append(s.insertionTimestamps, 0)
		s.modificationStamps = append(s.modificationStamps, 0)
	}
	s.insertionTimestamps[i] = tick
	s.modificationStamps[i] = tick
}

func (s *trackingState[T]) onModifyAt(i int, tick Tick) {
	if i < len(s.modificationStamps) {
		s.modificationStamps[i] = tick
	}
}

// onSwapRemove keeps timestamp slices aligned after a dense-array
// swap-with-last, mirroring the data/dense move.
func (s *trackingState[T]) onSwapRemove(removedIdx, lastIdx int) {
	if lastIdx < len(s.insertionTimestamps) {
		if removedIdx != lastIdx {
			s.insertionTimestamps[removedIdx] = s.insertionTimestamps[lastIdx]
			s.modificationStamps[removedIdx] = s.modificationStamps[lastIdx]
		}
		s.insertionTimestamps = s.insertionTimestamps[:lastIdx]
		s.modificationStamps = s.modificationStamps[:lastIdx]
	}
}

func (s *trackingState[T]) recordDeleted(id EntityId, value T) {
	if s.mode.tracksDeletion() {
		s.deleted = append(s.deleted, deletedRecord[T]{id: id, value: value})
	}
}

func (s *trackingState[T]) recordRemoved(id EntityId) {
	if s.mode.tracksRemoval() {
		s.removed = append(s.removed, id)
	}
}

func (s *trackingState[T]) clearAllInserted() {
	for i := range s.insertionTimestamps {
		s.insertionTimestamps[i] = 0
	}
}

func (s *trackingState[T]) clearAllModified() {
	for i := range s.modificationStamps {
		s.modificationStamps[i] = 0
	}
}

func (s *trackingState[T]) takeDeleted() []deletedRecord[T] {
	out := s.deleted
	s.deleted = nil
	return out
}

func (s *trackingState[T]) takeRemoved() []EntityId {
	out := s.removed
	s.removed = nil
	return out
}
