package hive

import "fmt"

// MissingComponentError is returned by Get/GetMut when an entity (live or
// dead) owns no instance of the requested component type.
type MissingComponentError struct {
	Id       EntityId
	TypeName string
}

func (e MissingComponentError) Error() string {
	return fmt.Sprintf("hive: entity %v has no component %s", e.Id, e.TypeName)
}

// BorrowConflictKind names why an access set was incompatible with the
// locks already held, for the structured GetStorageError below.
type BorrowConflictKind int

const (
	ConflictSharedVsExclusive BorrowConflictKind = iota
	ConflictExclusiveVsExclusive
)

func (k BorrowConflictKind) String() string {
	switch k {
	case ConflictSharedVsExclusive:
		return "shared access conflicts with an exclusive borrow already held"
	case ConflictExclusiveVsExclusive:
		return "exclusive access conflicts with a borrow already held"
	default:
		return "unknown borrow conflict"
	}
}

// GetStorageError is returned by borrow/run when the requested access set
// is incompatible with currently held locks.
type GetStorageError struct {
	StorageName string
	Cause       BorrowConflictKind
}

func (e GetStorageError) Error() string {
	return fmt.Sprintf("hive: cannot borrow %s: %s", e.StorageName, e.Cause)
}

// AddWorkloadAlreadyExistsError is returned by World.AddWorkload for a
// name already registered.
type AddWorkloadAlreadyExistsError struct {
	Name string
}

func (e AddWorkloadAlreadyExistsError) Error() string {
	return fmt.Sprintf("hive: workload %q already exists", e.Name)
}

// MissingWorkloadError is returned by World.RunWorkload for an unknown name.
type MissingWorkloadError struct {
	Name string
}

func (e MissingWorkloadError) Error() string {
	return fmt.Sprintf("hive: no workload named %q", e.Name)
}

// InvalidSystemReason enumerates why a system was rejected at workload
// construction time.
type InvalidSystemReason int

const (
	MultipleViews InvalidSystemReason = iota
	MultipleViewsMut
	AllStoragesConflict
)

func (r InvalidSystemReason) String() string {
	switch r {
	case MultipleViews:
		return "system declares two shared views of the same storage where one would suffice"
	case MultipleViewsMut:
		return "system declares two exclusive views of the same storage"
	case AllStoragesConflict:
		return "system combines AllStoragesViewMut with another view"
	default:
		return "invalid system"
	}
}

// InvalidSystemError is returned by WorkloadBuilder.Build and
// World.Run/RunWithData when a system's declared access set is
// self-contradictory.
type InvalidSystemError struct {
	System string
	Reason InvalidSystemReason
}

func (e InvalidSystemError) Error() string {
	return fmt.Sprintf("hive: invalid system %q: %s", e.System, e.Reason)
}

// SystemError wraps a user system's own error with its workload label, so
// a failure is surfaced with the system's identifier alongside the error
// value.
type SystemError struct {
	System string
	Err    error
}

func (e SystemError) Error() string {
	return fmt.Sprintf("hive: system %q failed: %v", e.System, e.Err)
}

func (e SystemError) Unwrap() error { return e.Err }

// LockedStorageError reports a storage that refuses a structural mutation
// while a lock is held.
type LockedStorageError struct {
	StorageName string
}

func (e LockedStorageError) Error() string {
	return fmt.Sprintf("hive: storage %s is currently locked", e.StorageName)
}
