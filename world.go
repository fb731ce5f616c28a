package hive

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// World is the façade that owns Entities, AllStorages, the global tick
// counter, and the workload registry. Views borrow into it; workloads
// reference systems by handle.
type World struct {
	entities  *Entities
	storages  *AllStorages
	tick      atomic.Uint64
	workloads map[string]*Workload
	workMu    sync.RWMutex
	logger    *zap.Logger
	metrics   *Metrics
	lockProv  LockProvider
}

// WorldOption configures a new World.
type WorldOption func(*World)

// WithLockProvider overrides the default sync.RWMutex-backed lock provider.
func WithLockProvider(p LockProvider) WorldOption {
	return func(w *World) { w.lockProv = p }
}

// WithLogger attaches a zap logger. Defaults to a no-op logger so
// embedding the library never forces output.
func WithLogger(l *zap.Logger) WorldOption {
	return func(w *World) { w.logger = l }
}

// WithMetrics attaches a prometheus-backed Metrics collector. Defaults to
// a nil-safe no-op.
func WithMetrics(m *Metrics) WorldOption {
	return func(w *World) { w.metrics = m }
}

// NewWorld constructs an empty World.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		entities:  NewEntities(),
		workloads: make(map[string]*Workload),
		logger:    zap.NewNop(),
		metrics:   noopMetrics(),
		lockProv:  DefaultLockProvider,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.storages = NewAllStorages(w.entities, w.lockProv)
	w.storages.metrics = w.metrics
	// Tick 0 must mean "never inserted/modified" so Inserted/Modified's
	// strict greater-than comparison can distinguish a fresh storage from
	// one touched at the first possible tick.
	w.tick.Store(1)
	return w
}

func (w *World) currentTick() Tick { return Tick(w.tick.Load()) }

// advanceTick bumps the global tick: it advances on each borrow acquisition
// (ad-hoc) and once per workload stage boundary.
func (w *World) advanceTick() Tick {
	w.metrics.tickTotal.Inc()
	return Tick(w.tick.Add(1))
}

// GetTrackingTimestamp returns the World's current tick, the threshold
// value filters compare insertion/modification timestamps against.
func (w *World) GetTrackingTimestamp() Tick { return w.currentTick() }

// AddEntity mints a new entity and inserts the given components onto it,
// in one exclusive pass.
func AddEntity(w *World, components ...ComponentInserter) EntityId {
	id := w.entities.Mint()
	for _, c := range components {
		c.insertInto(w, id)
	}
	w.advanceTick()
	return id
}

// BulkAddEntity mints len(rows) entities, applying each row's components.
// The result is index-aligned with rows: result[i] is always the entity
// created from rows[i].
func BulkAddEntity(w *World, rows [][]ComponentInserter) []EntityId {
	ids := make([]EntityId, len(rows))
	for i, row := range rows {
		ids[i] = AddEntity(w, row...)
	}
	return ids
}

// ComponentInserter erases a (SparseSet[T], value) pair so AddEntity can
// accept a heterogeneous component list.
type ComponentInserter interface {
	insertInto(w *World, id EntityId)
}

// Comp builds a ComponentInserter for T, the entry point users call inside
// AddEntity(...)/AddComponent(...)'s variadic component list.
func Comp[T any](value T) ComponentInserter {
	return compInserter[T]{value: value}
}

type compInserter[T any] struct{ value T }

func (c compInserter[T]) insertInto(w *World, id EntityId) {
	s := sparseSetFor[T](w.storages)
	s.Insert(id, c.value, w.currentTick())
	w.metrics.setStorageLen(typeName[T](), s.Len())
}

// AddComponent installs components onto an already-live id. A dead entity
// is a documented no-op.
func AddComponent(w *World, id EntityId, components ...ComponentInserter) {
	if !w.entities.IsAlive(id) {
		return
	}
	for _, c := range components {
		c.insertInto(w, id)
	}
}

// AddUnique registers U's singleton storage with an initial value. Calling
// it again for the same U simply overwrites the value, the same "insert is
// also update" rule a SparseSet follows for a single entity.
func AddUnique[U any](w *World, value U) {
	uniqueFor[U](w.storages).Set(value, w.currentTick())
	w.advanceTick()
}

// RemoveComponent removes T from id via a single storage, returning the
// value.
func RemoveComponent[T any](w *World, id EntityId) (T, bool) {
	return sparseSetFor[T](w.storages).Remove(id)
}

// DeleteComponent drops T from id after recording it in the storage's
// `deleted` list.
func DeleteComponent[T any](w *World, id EntityId) bool {
	return sparseSetFor[T](w.storages).Delete(id)
}

// DeleteEntity strips every component from id and marks it dead. Returns
// false if id was already dead.
func (w *World) DeleteEntity(id EntityId) bool {
	ok := w.storages.DeleteEntity(id)
	w.advanceTick()
	return ok
}

// Strip drops every component from id, leaving it alive but empty.
func (w *World) Strip(id EntityId) {
	w.storages.Strip(id)
	w.advanceTick()
}

// Clear drops every component from every storage.
func (w *World) Clear() {
	w.storages.Clear()
	w.advanceTick()
}

// IsAlive reports liveness of id.
func (w *World) IsAlive(id EntityId) bool { return w.entities.IsAlive(id) }

// Track sets T's storage tracking mode.
func Track[T any](w *World, mode TrackingMode) {
	sparseSetFor[T](w.storages).Track(mode)
}

// ClearAllInserted/ClearAllModified reset T's storage tracking thresholds.
func ClearAllInserted[T any](w *World) { sparseSetFor[T](w.storages).ClearAllInserted() }
func ClearAllModified[T any](w *World) { sparseSetFor[T](w.storages).ClearAllModified() }

// ad-hoc, single-storage borrows: used outside a workload, where a
// conflicting hold must fail fast rather than block. Each returns a release
// function that must run on every exit path; Go has no destructor, so
// callers `defer release()`.

func borrowOne(w *World, typeName string, entry *storageEntry, mode accessMode) (func(), error) {
	start := time.Now()
	w.storages.selfLock.RLock()
	release, err := acquire([]accessRequest{{typeName: typeName, entry: entry, mode: mode}}, false)
	w.metrics.observeBorrowWait(typeName, time.Since(start).Seconds())
	if err != nil {
		w.storages.selfLock.RUnlock()
		w.logger.Warn("borrow conflict", zap.String("storage", typeName))
		return nil, err
	}
	w.advanceTick()
	return func() {
		release()
		w.storages.selfLock.RUnlock()
	}, nil
}

// ViewOf takes a shared, ad-hoc borrow of SparseSet[T].
func ViewOf[T any](w *World) (View[T], func(), error) {
	set := sparseSetFor[T](w.storages)
	entry, _ := w.storages.entryOf(keyFor[T]())
	release, err := borrowOne(w, typeName[T](), entry, accessShared)
	if err != nil {
		return View[T]{}, nil, err
	}
	return View[T]{set: set, world: w}, release, nil
}

// ViewMutOf takes an exclusive, ad-hoc borrow of SparseSet[T].
func ViewMutOf[T any](w *World) (ViewMut[T], func(), error) {
	set := sparseSetFor[T](w.storages)
	entry, _ := w.storages.entryOf(keyFor[T]())
	release, err := borrowOne(w, typeName[T](), entry, accessExclusive)
	if err != nil {
		return ViewMut[T]{}, nil, err
	}
	return ViewMut[T]{set: set, world: w}, release, nil
}

// UniqueViewOf / UniqueViewMutOf borrow a Unique[U].
func UniqueViewOf[U any](w *World) (UniqueView[U], func(), error) {
	u := uniqueFor[U](w.storages)
	entry, _ := w.storages.entryOf(keyFor[U]())
	release, err := borrowOne(w, typeName[U](), entry, accessShared)
	if err != nil {
		return UniqueView[U]{}, nil, err
	}
	return UniqueView[U]{u: u, world: w}, release, nil
}

func UniqueViewMutOf[U any](w *World) (UniqueViewMut[U], func(), error) {
	u := uniqueFor[U](w.storages)
	entry, _ := w.storages.entryOf(keyFor[U]())
	release, err := borrowOne(w, typeName[U](), entry, accessExclusive)
	if err != nil {
		return UniqueViewMut[U]{}, nil, err
	}
	return UniqueViewMut[U]{u: u, world: w}, release, nil
}

// EntitiesViewOf / EntitiesViewMutOf borrow the allocator.
func (w *World) EntitiesViewOf() EntitiesView       { return EntitiesView{e: w.entities} }
func (w *World) EntitiesViewMutOf() EntitiesViewMut { return EntitiesViewMut{e: w.entities} }

// AllStoragesViewOf / AllStoragesViewMutOf borrow the registry itself.
func (w *World) AllStoragesViewOf() (AllStoragesView, func()) {
	w.storages.selfLock.RLock()
	return AllStoragesView{a: w.storages}, w.storages.selfLock.RUnlock
}

func (w *World) AllStoragesViewMutOf() (AllStoragesViewMut, func()) {
	w.storages.selfLock.Lock()
	return AllStoragesViewMut{a: w.storages}, w.storages.selfLock.Unlock
}

func (w *World) String() string {
	return fmt.Sprintf("World{entities=%d, storages=%d}", len(w.entities.data), len(w.storages.entries))
}
