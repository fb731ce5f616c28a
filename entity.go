package hive

import (
	"fmt"

	"github.com/TheBitDrifter/bark"
	"github.com/brinklabs/hive/internal/idgen"
)

// EntityId is an opaque 64-bit handle: (index, generation). Equality and
// hashing use the whole value, so a stored id is live only while its
// generation matches the allocator's current generation for that index.
// The bit layout itself lives in internal/idgen, shared with serde.go's
// serialized forms.
type EntityId uint64

// NewEntityIdFromIndexAndGen builds an EntityId from its parts. Exposed for
// deserialization, where ids must be reconstructed rather than minted.
func NewEntityIdFromIndexAndGen(index uint64, gen uint64) EntityId {
	return EntityId(idgen.Pack(index, gen))
}

// DeadEntityId is the reserved sentinel that never equals any live id.
func DeadEntityId() EntityId {
	return EntityId(idgen.Dead())
}

// Index returns the dense slot number.
func (id EntityId) Index() uint64 {
	return idgen.Index(uint64(id))
}

// Gen returns the reuse/generation counter.
func (id EntityId) Gen() uint64 {
	return idgen.Generation(uint64(id))
}

func (id EntityId) withIndex(index uint64) EntityId {
	return EntityId(idgen.WithIndex(uint64(id), index))
}

func (id EntityId) bumpGeneration() (EntityId, bool) {
	bumped, ok := idgen.Bump(uint64(id))
	return EntityId(bumped), ok
}

func (id EntityId) String() string {
	return fmt.Sprintf("{%d, %d}", id.Index(), id.Gen())
}

// entitySlot is either a live id or a node in the free-list (its index
// field then points at the next recycled slot; the free-list is threaded
// through the index fields exactly like the allocator this is modeled on).
type entitySlot struct {
	id EntityId
}

// Entities is the generational entity allocator: a dense vector of slots
// plus a free-list threaded through recycled index fields.
type Entities struct {
	data    []entitySlot
	hasList bool
	head    uint64
	tail    uint64
}

// NewEntities constructs an empty allocator.
func NewEntities() *Entities {
	return &Entities{}
}

// Mint allocates a fresh EntityId, reusing the free-list head when the
// list is non-empty; otherwise it appends a new generation-0 slot.
func (e *Entities) Mint() EntityId {
	if e.hasList {
		index := e.head
		slot := &e.data[index]
		if e.head == e.tail {
			e.hasList = false
		} else {
			e.head = slot.id.Index()
		}
		slot.id = slot.id.withIndex(index)
		return slot.id
	}
	index := uint64(len(e.data))
	id := EntityId(0).withIndex(index)
	e.data = append(e.data, entitySlot{id: id})
	return id
}

// BulkMint mints n ids. The returned slice is index-aligned one-to-one
// with the request, independent of free-list state: each mint is
// sequential and appended in call order, so result[i] is simply the i'th
// call to Mint, never reordered by what the free-list happens to contain.
func (e *Entities) BulkMint(n int) []EntityId {
	ids := make([]EntityId, n)
	for i := range ids {
		ids[i] = e.Mint()
	}
	return ids
}

// IsAlive reports whether id names a currently-live entity.
func (e *Entities) IsAlive(id EntityId) bool {
	index := id.Index()
	if index >= uint64(len(e.data)) {
		return false
	}
	return e.data[index].id == id
}

// Delete marks id's slot free, bumps its generation, and appends it to the
// free-list tail. If the bump would overflow the generation field the slot
// becomes permanently dead instead and is never returned to the pool.
// Returns whether id was alive.
func (e *Entities) Delete(id EntityId) bool {
	if !e.IsAlive(id) {
		return false
	}
	index := id.Index()
	slot := &e.data[index]
	bumped, ok := slot.id.bumpGeneration()
	if !ok {
		slot.id = DeadEntityId()
		return true
	}
	slot.id = bumped
	if e.hasList {
		e.data[e.tail].id = e.data[e.tail].id.withIndex(index)
		e.tail = index
	} else {
		e.hasList = true
		e.head = index
		e.tail = index
	}
	return true
}

// Spawn forcibly installs id, for deserialization. It fails (returns false)
// if id itself is already live; a slot holding a different id (another
// generation) is overwritten. If id's index falls inside the free-list,
// the list is spliced so the slot is no longer recycled; otherwise the
// vector is extended with dead placeholder slots up to id's index.
func (e *Entities) Spawn(id EntityId) bool {
	index := id.Index()
	if index < uint64(len(e.data)) {
		if e.data[index].id == id {
			return false
		}
		e.unlink(index)
		e.data[index].id = id
		return true
	}
	for uint64(len(e.data)) < index {
		e.data = append(e.data, entitySlot{id: DeadEntityId()})
	}
	e.data = append(e.data, entitySlot{id: id})
	return true
}

// unlink splices index out of the free-list, if present. O(n) worst case,
// documented here rather than left implicit.
func (e *Entities) unlink(index uint64) bool {
	if !e.hasList {
		return false
	}
	if e.head == index {
		if e.head == e.tail {
			e.hasList = false
		} else {
			e.head = e.data[index].id.Index()
		}
		return true
	}
	prev := e.head
	for prev != e.tail {
		next := e.data[prev].id.Index()
		if next == index {
			if index == e.tail {
				e.tail = prev
			} else {
				e.data[prev].id = e.data[prev].id.withIndex(e.data[index].id.Index())
			}
			return true
		}
		prev = next
	}
	return false
}

// assertAlive panics via a bark-traced error if id is not alive. Nothing
// in the package calls it at present.
func (e *Entities) assertAlive(id EntityId) {
	if !e.IsAlive(id) {
		panic(bark.AddTrace(fmt.Errorf("hive: internal invariant violated: entity %v is not alive", id)))
	}
}
