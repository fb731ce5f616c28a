package hive

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// DynamicStorage is a small object-safe interface: every SparseSet[T]/
// Unique[U] implements it so "every storage" operations (strip,
// delete_entity, clear, whole-world serialize) can iterate storages whose
// concrete types are not statically known to the caller.
type DynamicStorage interface {
	dropComponent(EntityId)
	clearAll()
	serializeAll() []serializedComponent
	insertFromAny(id EntityId, value any, tick Tick) error
	memoryUsage() int
	typeName() string
}

type serializedComponent struct {
	Id    EntityId
	Value any
}

// sparseSetDyn adapts *SparseSet[T] to DynamicStorage.
type sparseSetDyn[T any] struct{ s *SparseSet[T] }

func (d sparseSetDyn[T]) dropComponent(id EntityId) { d.s.Delete(id) }
func (d sparseSetDyn[T]) clearAll() {
	for _, id := range append([]EntityId(nil), d.s.Ids()...) {
		d.s.Delete(id)
	}
}
func (d sparseSetDyn[T]) serializeAll() []serializedComponent {
	out := make([]serializedComponent, 0, d.s.Len())
	for i, id := range d.s.Ids() {
		out = append(out, serializedComponent{Id: id, Value: d.s.data[i]})
	}
	return out
}
func (d sparseSetDyn[T]) insertFromAny(id EntityId, value any, tick Tick) error {
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("hive: cannot restore %T into storage %s", value, d.typeName())
	}
	d.s.Insert(id, v, tick)
	return nil
}
func (d sparseSetDyn[T]) memoryUsage() int {
	var zero T
	return d.s.Len() * int(reflect.TypeOf(zero).Size())
}
func (d sparseSetDyn[T]) typeName() string { return typeName[T]() }

// uniqueDyn adapts *Unique[U] to DynamicStorage. Structural ops that only
// make sense for entity-keyed storages (drop/clear per entity) are no-ops.
type uniqueDyn[U any] struct{ u *Unique[U] }

func (d uniqueDyn[U]) dropComponent(EntityId) {}
func (d uniqueDyn[U]) clearAll()              {}
func (d uniqueDyn[U]) serializeAll() []serializedComponent {
	if !d.u.hasValue {
		return nil
	}
	return []serializedComponent{{Value: *d.u.Get()}}
}
func (d uniqueDyn[U]) insertFromAny(_ EntityId, value any, tick Tick) error {
	v, ok := value.(U)
	if !ok {
		return fmt.Errorf("hive: cannot restore %T into unique %s", value, d.typeName())
	}
	d.u.Set(v, tick)
	return nil
}
func (d uniqueDyn[U]) memoryUsage() int { var zero U; return int(reflect.TypeOf(zero).Size()) }
func (d uniqueDyn[U]) typeName() string { return typeName[U]() }

func typeName[T any]() string {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	return t.String()
}

// storageEntry is one registry slot: the concrete storage, its dynamic
// facade, a reader/writer lock, and a bit number assigned in registration
// order (nothing reads the bit; the mutex is the real lock).
type storageEntry struct {
	name   string
	dyn    DynamicStorage
	mu     RWLocker
	bit    uint32
	pinned bool
}

// AllStorages is the process-wide, type-keyed registry: one storage per
// registered component/unique type, created lazily on first borrow or
// insert.
type AllStorages struct {
	mu       sync.RWMutex // guards the entries map itself (registering new storage types)
	entries  map[reflect.Type]*storageEntry
	nextBit  uint32
	locked   mask.Mask256 // not updated by acquire/release; stays empty
	entities *Entities
	metrics  *Metrics
	locks    LockProvider

	// selfLock is the lock taken on AllStorages itself: a shared read for an
	// ordinary borrow or system, or the exclusive form via
	// AllStoragesViewMutOf, a WritesAllStorages or WritesEntities system, or
	// Restore. Creating
	// a storage type does not take it; the entries map is guarded by mu.
	selfLock RWLocker
}

// NewAllStorages constructs an empty registry bound to the given allocator.
func NewAllStorages(entities *Entities, lockProvider LockProvider) *AllStorages {
	if lockProvider == nil {
		lockProvider = DefaultLockProvider
	}
	return &AllStorages{
		entries:  make(map[reflect.Type]*storageEntry),
		entities: entities,
		locks:    lockProvider,
		selfLock: lockProvider.NewLock(),
	}
}

func keyFor[T any]() reflect.Type {
	var zero T
	return reflect.TypeOf(&zero).Elem()
}

func (a *AllStorages) entryFor(t reflect.Type, makeDyn func() (*storageEntry, error)) (*storageEntry, error) {
	a.mu.RLock()
	e, ok := a.entries[t]
	a.mu.RUnlock()
	if ok {
		return e, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.entries[t]; ok {
		return e, nil
	}
	e, err := makeDyn()
	if err != nil {
		return nil, err
	}
	e.bit = a.nextBit
	a.nextBit++
	a.entries[t] = e
	return e, nil
}

// sparseSetFor returns (creating if necessary) the storage for T.
func sparseSetFor[T any](a *AllStorages) *SparseSet[T] {
	t := keyFor[T]()
	e, _ := a.entryFor(t, func() (*storageEntry, error) {
		s := NewSparseSet[T]()
		s.Track(Config.DefaultTracking)
		return &storageEntry{name: typeName[T](), dyn: sparseSetDyn[T]{s: s}, mu: a.locks.NewLock()}, nil
	})
	return e.dyn.(sparseSetDyn[T]).s
}

// uniqueFor returns (creating with zero value if necessary) the Unique[U].
func uniqueFor[U any](a *AllStorages) *Unique[U] {
	t := keyFor[U]()
	e, _ := a.entryFor(t, func() (*storageEntry, error) {
		u := &Unique[U]{}
		return &storageEntry{name: typeName[U](), dyn: uniqueDyn[U]{u: u}, mu: a.locks.NewLock()}, nil
	})
	return e.dyn.(uniqueDyn[U]).u
}

func (a *AllStorages) entryOf(t reflect.Type) (*storageEntry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[t]
	return e, ok
}

func (a *AllStorages) allEntries() []*storageEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*storageEntry, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e)
	}
	return out
}

// Strip drops id's component from every registered storage, leaving id
// alive but empty. It locks each storage in turn but does not take the
// registry's selfLock; World.Strip and World.DeleteEntity call it without
// that lock too, so only the AllStoragesViewMut path runs it exclusively.
func (a *AllStorages) Strip(id EntityId) {
	for _, e := range a.allEntries() {
		e.mu.Lock()
		e.dyn.dropComponent(id)
		e.mu.Unlock()
	}
}

// DeleteEntity strips id then marks it dead in the allocator. Returns
// false if id was already dead (a documented no-op).
func (a *AllStorages) DeleteEntity(id EntityId) bool {
	if !a.entities.IsAlive(id) {
		return false
	}
	a.Strip(id)
	return a.entities.Delete(id)
}

// Clear drops every component in every storage; entities remain alive but
// empty.
func (a *AllStorages) Clear() {
	for _, e := range a.allEntries() {
		e.mu.Lock()
		e.dyn.clearAll()
		e.mu.Unlock()
	}
}

// DeleteAny deletes every entity that owns a T. A no-op if T was never
// registered.
func DeleteAny[T any](w *World) {
	t := keyFor[T]()
	e, ok := w.storages.entryOf(t)
	if !ok {
		return
	}
	e.mu.RLock()
	ids := append([]EntityId(nil), sparseSetFor[T](w.storages).Ids()...)
	e.mu.RUnlock()
	for _, id := range ids {
		w.storages.DeleteEntity(id)
	}
}

// assertNotNil panics with a bark-traced error when v is nil. Nothing in
// the package calls it at present.
func assertNotNil(v any, msg string) {
	if v == nil {
		panic(bark.AddTrace(fmt.Errorf("hive: %s", msg)))
	}
}
