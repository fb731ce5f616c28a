package hive

import (
	"iter"

	"golang.org/x/sync/errgroup"
)

// Tuple2..Tuple4 are the arity-specific result shapes of a join,
// implemented as hand-written const-arity variants rather than a
// reflection-based variadic join.
type Tuple2[A, B any] struct {
	A *A
	B *B
}
type Tuple3[A, B, C any] struct {
	A *A
	B *B
	C *C
}
type Tuple4[A, B, C, D any] struct {
	A *A
	B *B
	C *C
	D *D
}

// pickDriver picks the smallest-length non-optional operand, leftmost on
// ties, given the lengths and optionality of each operand in left-to-right
// tuple position. An optional operand is never chosen as the driver unless
// every operand is optional, since driving off an optional side would
// collapse the join to that side's own entity set instead of visiting
// every entity that satisfies the required sides.
func pickDriver(lens []int, optional []bool) int {
	best := -1
	for i, l := range lens {
		if optional[i] {
			continue
		}
		if best == -1 || l < lens[best] {
			best = i
		}
	}
	if best != -1 {
		return best
	}
	best = 0
	for i := 1; i < len(lens); i++ {
		if lens[i] < lens[best] {
			best = i
		}
	}
	return best
}

// All iterates every (EntityId, *T) pair in View[T]: the single-storage
// "tight" strategy, walking dense in order with no probing needed. Honors
// a Window if one was set.
func (v View[T]) All() iter.Seq2[EntityId, *T] {
	return func(yield func(EntityId, *T) bool) {
		start, end := v.bounds()
		for i := start; i < end; i++ {
			if !yield(v.set.dense[i], &v.set.data[i]) {
				return
			}
		}
	}
}

func (v View[T]) bounds() (int, int) {
	start, end := 0, len(v.set.dense)
	if v.window[1] != 0 || v.window[0] != 0 {
		if v.window[0] > start {
			start = v.window[0]
		}
		if v.window[1] >= 0 && v.window[1] < end {
			end = v.window[1]
		}
	}
	return start, end
}

func (v ViewMut[T]) All(tick Tick) iter.Seq2[EntityId, *T] {
	return func(yield func(EntityId, *T) bool) {
		start, end := v.AsView().bounds()
		for i := start; i < end; i++ {
			v.set.track.onModifyAt(i, tick)
			if !yield(v.set.dense[i], &v.set.data[i]) {
				return
			}
		}
	}
}

// Chunk returns the backing slice directly: only legal for a single,
// contiguous storage. Honors Window bounds.
func (v View[T]) Chunk() []T {
	start, end := v.bounds()
	return v.set.data[start:end]
}

// Iter2 joins two views: the "mixed" strategy, where the smaller storage
// drives and the other is probed through its sparse lookup. When a or b carries
// .AsOptional(), a miss yields nil instead of skipping the entity, as long
// as the other side stays non-optional (so the join stays finite).
func Iter2[A, B any](a View[A], b View[B]) iter.Seq2[EntityId, Tuple2[A, B]] {
	return func(yield func(EntityId, Tuple2[A, B]) bool) {
		driver := pickDriver([]int{a.set.Len(), b.set.Len()}, []bool{a.optional, b.optional})
		var ids []EntityId
		if driver == 0 {
			ids = a.set.Ids()
		} else {
			ids = b.set.Ids()
		}
		for _, id := range ids {
			pa, okA := a.set.lookupSlotOK(id)
			pb, okB := b.set.lookupSlotOK(id)
			if !okA && !a.optional {
				continue
			}
			if !okB && !b.optional {
				continue
			}
			var t Tuple2[A, B]
			if okA {
				t.A = &a.set.data[pa]
			}
			if okB {
				t.B = &b.set.data[pb]
			}
			if !yield(id, t) {
				return
			}
		}
	}
}

// Iter3 / Iter4 generalize Iter2 to three and four storages.
func Iter3[A, B, C any](a View[A], b View[B], c View[C]) iter.Seq2[EntityId, Tuple3[A, B, C]] {
	return func(yield func(EntityId, Tuple3[A, B, C]) bool) {
		driver := pickDriver([]int{a.set.Len(), b.set.Len(), c.set.Len()}, []bool{a.optional, b.optional, c.optional})
		var ids []EntityId
		switch driver {
		case 0:
			ids = a.set.Ids()
		case 1:
			ids = b.set.Ids()
		default:
			ids = c.set.Ids()
		}
		for _, id := range ids {
			pa, okA := a.set.lookupSlotOK(id)
			pb, okB := b.set.lookupSlotOK(id)
			pc, okC := c.set.lookupSlotOK(id)
			if (!okA && !a.optional) || (!okB && !b.optional) || (!okC && !c.optional) {
				continue
			}
			var t Tuple3[A, B, C]
			if okA {
				t.A = &a.set.data[pa]
			}
			if okB {
				t.B = &b.set.data[pb]
			}
			if okC {
				t.C = &c.set.data[pc]
			}
			if !yield(id, t) {
				return
			}
		}
	}
}

func Iter4[A, B, C, D any](a View[A], b View[B], c View[C], d View[D]) iter.Seq2[EntityId, Tuple4[A, B, C, D]] {
	return func(yield func(EntityId, Tuple4[A, B, C, D]) bool) {
		driver := pickDriver([]int{a.set.Len(), b.set.Len(), c.set.Len(), d.set.Len()}, []bool{a.optional, b.optional, c.optional, d.optional})
		var ids []EntityId
		switch driver {
		case 0:
			ids = a.set.Ids()
		case 1:
			ids = b.set.Ids()
		case 2:
			ids = c.set.Ids()
		default:
			ids = d.set.Ids()
		}
		for _, id := range ids {
			pa, okA := a.set.lookupSlotOK(id)
			pb, okB := b.set.lookupSlotOK(id)
			pc, okC := c.set.lookupSlotOK(id)
			pd, okD := d.set.lookupSlotOK(id)
			if (!okA && !a.optional) || (!okB && !b.optional) || (!okC && !c.optional) || (!okD && !d.optional) {
				continue
			}
			var t Tuple4[A, B, C, D]
			if okA {
				t.A = &a.set.data[pa]
			}
			if okB {
				t.B = &b.set.data[pb]
			}
			if okC {
				t.C = &c.set.data[pc]
			}
			if okD {
				t.D = &d.set.data[pd]
			}
			if !yield(id, t) {
				return
			}
		}
	}
}

func (s *SparseSet[T]) lookupSlotOK(id EntityId) (int32, bool) {
	pos, ok := s.lookupSlot(id.Index())
	if !ok || s.dense[pos] != id {
		return -1, false
	}
	return pos, true
}

// OneOfTwo is the result of a composed insert/modified-style filter: each
// matched entity is visited exactly once, tagged by which side matched.
type OneOfTwo[A, B any] struct {
	isFirst bool
	first   A
	second  B
}

func OneOfTwoFirst[A, B any](v A) OneOfTwo[A, B]  { return OneOfTwo[A, B]{isFirst: true, first: v} }
func OneOfTwoSecond[A, B any](v B) OneOfTwo[A, B] { return OneOfTwo[A, B]{isFirst: false, second: v} }
func (o OneOfTwo[A, B]) First() (A, bool)         { return o.first, o.isFirst }
func (o OneOfTwo[A, B]) Second() (B, bool)        { return o.second, !o.isFirst }

// InsertedOrModified composes two filters over the same view: every entity
// recently inserted OR recently modified, visited once each.
func InsertedOrModified[T any](v View[T], threshold Tick) iter.Seq[OneOfTwo[EntityId, EntityId]] {
	return func(yield func(OneOfTwo[EntityId, EntityId]) bool) {
		seen := make(map[EntityId]struct{})
		for _, id := range v.set.Inserted(threshold) {
			seen[id] = struct{}{}
			if !yield(OneOfTwoFirst[EntityId, EntityId](id)) {
				return
			}
		}
		for _, id := range v.set.Modified(threshold) {
			if _, dup := seen[id]; dup {
				continue
			}
			if !yield(OneOfTwoSecond[EntityId, EntityId](id)) {
				return
			}
		}
	}
}

// ParallelTask is the per-entity callback a parallel iteration runs.
type ParallelTask[T any] func(id EntityId, value *T)

// Parallel splits a single-storage ViewMut's driver range across workers
// goroutines and runs fn over each disjoint sub-range concurrently. A
// write to the driver storage through another handle during this call is
// undefined; reads of other storages are safe because probing is
// read-only. The goroutines are joined with an errgroup; since fn returns
// no error, Parallel always returns nil.
func Parallel[T any](v ViewMut[T], workers int, tick Tick, fn ParallelTask[T]) error {
	n := v.set.Len()
	if workers < 1 {
		workers = 1
	}
	if n == 0 {
		return nil
	}
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		start, end := start, end
		g.Go(func() error {
			for i := start; i < end; i++ {
				v.set.track.onModifyAt(i, tick)
				fn(v.set.dense[i], &v.set.data[i])
			}
			return nil
		})
	}
	return g.Wait()
}
