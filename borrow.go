package hive

import "sync"

// RWLocker is the minimal reader/writer lock shape the runtime needs.
// A configurable LockProvider lets a host swap in a lock implementation
// suited to bare-metal, in-browser (no real threads), or an existing async
// runtime, without the core caring which.
type RWLocker interface {
	RLock()
	RUnlock()
	Lock()
	Unlock()
	TryRLock() bool
	TryLock() bool
}

// LockProvider manufactures RWLockers for newly-created storages.
type LockProvider interface {
	NewLock() RWLocker
}

// stdLockProvider is the default: the platform's standard sync.RWMutex.
type stdLockProvider struct{}

func (stdLockProvider) NewLock() RWLocker { return &sync.RWMutex{} }

// DefaultLockProvider is the platform-standard provider used when a World
// is constructed without WithLockProvider.
var DefaultLockProvider LockProvider = stdLockProvider{}

// accessMode is shared or exclusive.
type accessMode int

const (
	accessShared accessMode = iota
	accessExclusive
)

// accessRequest is one (storage-id, mode) pair of a borrow specification.
type accessRequest struct {
	typeName string
	entry    *storageEntry
	mode     accessMode
}

// acquire takes the requested locks in a deterministic order (sorted by
// type name, standing in for "type-id order" since Go has no stable type
// ids) and returns a release function that unwinds in reverse order on
// every exit path, including panics.
//
// If any lock in the set would violate compatibility --- two shared
// borrows of the same storage are fine, a shared and an exclusive are not,
// two exclusives are not --- acquisition fails with GetStorageError and
// anything already acquired in this call is released before returning.
//
// When blocking is false (ad-hoc borrows outside a workload, which may
// block or fail depending on the configured lock kind), a lock already
// held by another in-flight borrow is reported as GetStorageError instead
// of waiting, via TryLock/TryRLock. When blocking is true (workload stage
// execution), a well-formed stage's systems never contend for the same
// lock by construction, so a real wait is both safe and correct: it is how
// one stage's release naturally gates the next.
func acquire(requests []accessRequest, blocking bool) (release func(), err error) {
	sortRequests(requests)
	acquired := make([]accessRequest, 0, len(requests))
	release = func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			r := acquired[i]
			if r.mode == accessExclusive {
				r.entry.mu.Unlock()
			} else {
				r.entry.mu.RUnlock()
			}
		}
	}
	seen := map[*storageEntry]accessMode{}
	for _, r := range requests {
		if prevMode, ok := seen[r.entry]; ok {
			if prevMode == accessExclusive || r.mode == accessExclusive {
				kind := ConflictSharedVsExclusive
				if prevMode == accessExclusive && r.mode == accessExclusive {
					kind = ConflictExclusiveVsExclusive
				}
				release()
				return nil, GetStorageError{StorageName: r.typeName, Cause: kind}
			}
		}
		seen[r.entry] = r.mode
	}
	for _, r := range requests {
		ok := true
		switch {
		case blocking && r.mode == accessExclusive:
			r.entry.mu.Lock()
		case blocking:
			r.entry.mu.RLock()
		case r.mode == accessExclusive:
			ok = r.entry.mu.TryLock()
		default:
			ok = r.entry.mu.TryRLock()
		}
		if !ok {
			release()
			kind := ConflictExclusiveVsExclusive
			if r.mode == accessShared {
				kind = ConflictSharedVsExclusive
			}
			return nil, GetStorageError{StorageName: r.typeName, Cause: kind}
		}
		acquired = append(acquired, r)
	}
	return release, nil
}

// sortRequests orders by type name so independent borrow calls that touch
// the same storages always acquire them in the same order, preventing
// lock-ordering deadlocks across concurrent ad-hoc borrows.
func sortRequests(requests []accessRequest) {
	for i := 1; i < len(requests); i++ {
		for j := i; j > 0 && requests[j].typeName < requests[j-1].typeName; j-- {
			requests[j], requests[j-1] = requests[j-1], requests[j]
		}
	}
}
