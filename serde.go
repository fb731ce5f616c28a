package hive

import "fmt"

// EntityIdReadable is the human-readable {index, gen} serialized shape.
type EntityIdReadable struct {
	Index uint64 `json:"index"`
	Gen   uint64 `json:"gen"`
}

// Readable converts id to its human-readable serialized form.
func (id EntityId) Readable() EntityIdReadable {
	return EntityIdReadable{Index: id.Index(), Gen: id.Gen()}
}

// FromReadable reconstructs an EntityId from its human-readable form.
func FromReadable(r EntityIdReadable) EntityId {
	return NewEntityIdFromIndexAndGen(r.Index, r.Gen)
}

// Compact returns id's compact serialized form: the raw 64-bit
// representation, as a single integer.
func (id EntityId) Compact() uint64 { return uint64(id) }

// FromCompact reconstructs an EntityId from its compact form.
func FromCompact(v uint64) EntityId { return EntityId(v) }

// EntityScope controls whether entity ids are preserved or renumbered
// across a serialize/deserialize round trip; SameBinary, WithEntities, and
// WithShared each draw a value from this set.
type EntityScope int

const (
	ScopeAll EntityScope = iota
	ScopeNone
	ScopePerStorage
)

// SerializeOptions configures World-wide serialization.
type SerializeOptions struct {
	SameBinary   EntityScope
	WithEntities EntityScope
	WithShared   EntityScope
}

// DeserializePolicy controls how incoming components are reconciled
// against a World's existing state.
type DeserializePolicy int

const (
	AsNew DeserializePolicy = iota
	Merge
	Replace
	Skip
)

// DeserializeOptions configures World-wide deserialization.
type DeserializeOptions struct {
	Policy DeserializePolicy
}

// StoragePair is one serialized (EntityId, value) record, the unit a
// storage serializes to: a list of (EntityId, T) pairs.
type StoragePair struct {
	Id    EntityId
	Value any
}

// WorldSnapshot is the whole-world serialized shape:
// { "storage-name": [ [id, value], ... ] }.
type WorldSnapshot struct {
	Storages map[string][]StoragePair
}

// Snapshotter is the interface a persistence backend implements; the core
// stays agnostic to storage medium, with no persistence policy living in
// the core itself.
type Snapshotter interface {
	Save(w *World, opts SerializeOptions) error
	Load(w *World, opts DeserializeOptions) error
}

// Snapshot walks every registered storage and produces a WorldSnapshot, the
// in-memory shape Snapshotter implementations serialize onward (e.g. to
// JSON or a badger transaction).
func Snapshot(w *World) WorldSnapshot {
	w.storages.selfLock.RLock()
	defer w.storages.selfLock.RUnlock()
	snap := WorldSnapshot{Storages: make(map[string][]StoragePair)}
	for _, e := range w.storages.allEntries() {
		e.mu.RLock()
		records := e.dyn.serializeAll()
		e.mu.RUnlock()
		pairs := make([]StoragePair, len(records))
		for i, r := range records {
			pairs[i] = StoragePair{Id: r.Id, Value: r.Value}
		}
		snap.Storages[e.name] = pairs
	}
	return snap
}

// Restore applies snap to w under policy. AsNew mints fresh ids for every
// distinct id seen (remapping is stable within one Restore call); Merge
// only fills in components an entity doesn't already have; Replace always
// overwrites; Skip leaves any entity that already owns the component type
// untouched.
func Restore(w *World, snap WorldSnapshot, policy DeserializePolicy) error {
	w.storages.selfLock.Lock()
	defer w.storages.selfLock.Unlock()

	remap := map[EntityId]EntityId{}
	resolve := func(id EntityId) EntityId {
		if policy != AsNew {
			return id
		}
		if mapped, ok := remap[id]; ok {
			return mapped
		}
		fresh := w.entities.Mint()
		remap[id] = fresh
		return fresh
	}

	tick := w.currentTick()
	for name, pairs := range snap.Storages {
		entry := findEntryByName(w.storages, name)
		if entry == nil {
			return fmt.Errorf("hive: restore: unknown storage %q (register its type before loading)", name)
		}
		for _, p := range pairs {
			target := resolve(p.Id)
			if policy != AsNew && !w.entities.IsAlive(target) {
				w.entities.Spawn(target)
			}
			entry.mu.Lock()
			already := hasOwnAnyLocked(entry, target)
			switch policy {
			case Skip:
				if already {
					entry.mu.Unlock()
					continue
				}
			case Merge:
				if already {
					entry.mu.Unlock()
					continue
				}
			}
			err := entry.dyn.insertFromAny(target, p.Value, tick)
			entry.mu.Unlock()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func findEntryByName(a *AllStorages, name string) *storageEntry {
	for _, e := range a.allEntries() {
		if e.name == name {
			return e
		}
	}
	return nil
}

// hasOwnAnyLocked reports whether id currently owns a value in entry's
// storage. Caller must already hold entry.mu.
func hasOwnAnyLocked(entry *storageEntry, id EntityId) bool {
	for _, rec := range entry.dyn.serializeAll() {
		if rec.Id == id {
			return true
		}
	}
	return false
}
