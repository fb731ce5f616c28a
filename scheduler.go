package hive

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// declKind distinguishes the four resource families a system can declare
// access to: a component storage, a unique, the entity allocator, or the
// AllStorages registry itself.
type declKind int

const (
	declComponent declKind = iota
	declUnique
	declEntities
	declAllStorages
)

// AccessDecl is one statically-declared borrow a System makes. Go has no
// derive macro to read a function signature at compile time, so systems
// declare their access set explicitly alongside Run, and the scheduler
// builds its DAG from that declared list rather than from reflection.
type AccessDecl struct {
	kind   declKind
	mode   accessMode
	name   string
	ensure func(w *World) *storageEntry
}

// ReadsComponent/WritesComponent declare shared/exclusive access to
// SparseSet[T], creating the storage on first use if it does not exist yet.
func ReadsComponent[T any]() AccessDecl {
	return AccessDecl{kind: declComponent, mode: accessShared, name: typeName[T](), ensure: func(w *World) *storageEntry {
		sparseSetFor[T](w.storages)
		e, _ := w.storages.entryOf(keyFor[T]())
		return e
	}}
}

func WritesComponent[T any]() AccessDecl {
	return AccessDecl{kind: declComponent, mode: accessExclusive, name: typeName[T](), ensure: func(w *World) *storageEntry {
		sparseSetFor[T](w.storages)
		e, _ := w.storages.entryOf(keyFor[T]())
		return e
	}}
}

// ReadsUnique/WritesUnique declare access to Unique[U].
func ReadsUnique[U any]() AccessDecl {
	return AccessDecl{kind: declUnique, mode: accessShared, name: typeName[U](), ensure: func(w *World) *storageEntry {
		uniqueFor[U](w.storages)
		e, _ := w.storages.entryOf(keyFor[U]())
		return e
	}}
}

func WritesUnique[U any]() AccessDecl {
	return AccessDecl{kind: declUnique, mode: accessExclusive, name: typeName[U](), ensure: func(w *World) *storageEntry {
		uniqueFor[U](w.storages)
		e, _ := w.storages.entryOf(keyFor[U]())
		return e
	}}
}

// ReadsEntities/WritesEntities declare access to the entity allocator.
func ReadsEntities() AccessDecl  { return AccessDecl{kind: declEntities, mode: accessShared} }
func WritesEntities() AccessDecl { return AccessDecl{kind: declEntities, mode: accessExclusive} }

// ReadsAllStorages/WritesAllStorages declare access to the registry itself.
// A system declaring either of these may declare nothing else
// (AllStoragesConflict) and always runs in a Barrier stage of its own.
func ReadsAllStorages() AccessDecl  { return AccessDecl{kind: declAllStorages, mode: accessShared} }
func WritesAllStorages() AccessDecl { return AccessDecl{kind: declAllStorages, mode: accessExclusive} }

// RunContext is the handle a System's Run function receives. Views it
// produces borrow directly into the World's storages without re-acquiring
// any lock, because the scheduler already holds every lock the system
// declared for the duration of Run.
type RunContext struct {
	world *World
	data  any
}

func (c *RunContext) World() *World { return c.world }
func (c *RunContext) Tick() Tick    { return c.world.currentTick() }
func (c *RunContext) Data() any     { return c.data }

func ViewFrom[T any](c *RunContext) View[T] {
	return View[T]{set: sparseSetFor[T](c.world.storages), world: c.world}
}
func ViewMutFrom[T any](c *RunContext) ViewMut[T] {
	return ViewMut[T]{set: sparseSetFor[T](c.world.storages), world: c.world}
}
func UniqueViewFrom[U any](c *RunContext) UniqueView[U] {
	return UniqueView[U]{u: uniqueFor[U](c.world.storages), world: c.world}
}
func UniqueViewMutFrom[U any](c *RunContext) UniqueViewMut[U] {
	return UniqueViewMut[U]{u: uniqueFor[U](c.world.storages), world: c.world}
}
func EntitiesFrom(c *RunContext) EntitiesView       { return EntitiesView{e: c.world.entities} }
func EntitiesMutFrom(c *RunContext) EntitiesViewMut { return EntitiesViewMut{e: c.world.entities} }
func AllStoragesFrom(c *RunContext) AllStoragesView { return AllStoragesView{a: c.world.storages} }
func AllStoragesMutFrom(c *RunContext) AllStoragesViewMut {
	return AllStoragesViewMut{a: c.world.storages}
}

// System pairs a declared access set with the function that runs under it.
type System struct {
	Name   string
	Access []AccessDecl
	Run    func(*RunContext) error

	// Sequential forces the system onto its own single-goroutine stage,
	// e.g. because it touches a storage that was marked Pin()'d. The caller
	// is expected to set this when building a System over a pinned
	// component.
	Sequential bool
}

func hasAllStorages(s *System) bool {
	for _, d := range s.Access {
		if d.kind == declAllStorages {
			return true
		}
	}
	return false
}

func validateSystem(s *System) error {
	seen := map[string]accessMode{}
	hasAll := false
	hasOther := false
	for _, d := range s.Access {
		if d.kind == declAllStorages {
			hasAll = true
			continue
		}
		hasOther = true
		key := fmt.Sprintf("%d:%s", d.kind, d.name)
		if prev, ok := seen[key]; ok {
			if prev == accessExclusive || d.mode == accessExclusive {
				return InvalidSystemError{System: s.Name, Reason: MultipleViewsMut}
			}
			return InvalidSystemError{System: s.Name, Reason: MultipleViews}
		}
		seen[key] = d.mode
	}
	if hasAll && hasOther {
		return InvalidSystemError{System: s.Name, Reason: AllStoragesConflict}
	}
	return nil
}

// conflicts reports whether a and b cannot share a Parallel stage: they
// name the same resource with at least one exclusive access, or either
// touches AllStorages (which always isolates itself into a Barrier).
func conflicts(a, b *System) bool {
	if hasAllStorages(a) || hasAllStorages(b) {
		return true
	}
	for _, da := range a.Access {
		for _, db := range b.Access {
			if da.kind != db.kind {
				continue
			}
			if da.kind == declEntities {
				if da.mode == accessExclusive || db.mode == accessExclusive {
					return true
				}
				continue
			}
			if da.name == db.name && (da.mode == accessExclusive || db.mode == accessExclusive) {
				return true
			}
		}
	}
	return false
}

// stageKind tags how a stage's systems are scheduled: Parallel, Sequential,
// or Barrier.
type stageKind int

const (
	stageParallel stageKind = iota
	stageSequential
	stageBarrier
)

type stage struct {
	kind    stageKind
	systems []*System
}

// Workload is a built, ordered sequence of stages.
type Workload struct {
	Name   string
	stages []stage
}

// WorkloadBuilder accumulates systems in declaration order, then
// partitions them into stages at Build time.
type WorkloadBuilder struct {
	name    string
	systems []*System
}

func NewWorkloadBuilder(name string) *WorkloadBuilder {
	return &WorkloadBuilder{name: name}
}

func (b *WorkloadBuilder) With(s *System) *WorkloadBuilder {
	b.systems = append(b.systems, s)
	return b
}

// Build validates every system, then greedily packs non-conflicting runs
// of systems into Parallel stages. A single non-packable system becomes a
// Sequential stage of one; any AllStorages access or an explicitly
// Sequential system starts (and ends) a stage of its own.
func (b *WorkloadBuilder) Build() (*Workload, error) {
	for _, s := range b.systems {
		if err := validateSystem(s); err != nil {
			return nil, err
		}
	}
	var stages []stage
	i := 0
	for i < len(b.systems) {
		s := b.systems[i]
		if hasAllStorages(s) {
			stages = append(stages, stage{kind: stageBarrier, systems: []*System{s}})
			i++
			continue
		}
		if s.Sequential {
			stages = append(stages, stage{kind: stageSequential, systems: []*System{s}})
			i++
			continue
		}
		group := []*System{s}
		j := i + 1
		for j < len(b.systems) {
			cand := b.systems[j]
			if hasAllStorages(cand) || cand.Sequential {
				break
			}
			conflict := false
			for _, g := range group {
				if conflicts(g, cand) {
					conflict = true
					break
				}
			}
			if conflict {
				break
			}
			group = append(group, cand)
			j++
		}
		if len(group) == 1 {
			stages = append(stages, stage{kind: stageSequential, systems: group})
		} else {
			stages = append(stages, stage{kind: stageParallel, systems: group})
		}
		i = j
	}
	return &Workload{Name: b.name, stages: stages}, nil
}

// acquireForSystem takes every lock s declared, in a single deterministic
// pass, and returns a release function that unwinds them all.
func acquireForSystem(w *World, s *System) (func(), error) {
	var reqs []accessRequest
	needsEntitiesExclusive := false
	allStoragesExclusiveWanted := false
	allStoragesSharedWanted := false
	for _, d := range s.Access {
		switch d.kind {
		case declComponent, declUnique:
			reqs = append(reqs, accessRequest{typeName: d.name, entry: d.ensure(w), mode: d.mode})
		case declEntities:
			if d.mode == accessExclusive {
				needsEntitiesExclusive = true
			}
		case declAllStorages:
			if d.mode == accessExclusive {
				allStoragesExclusiveWanted = true
			} else {
				allStoragesSharedWanted = true
			}
		}
	}

	switch {
	case allStoragesExclusiveWanted:
		w.storages.selfLock.Lock()
		return w.storages.selfLock.Unlock, nil
	case allStoragesSharedWanted:
		w.storages.selfLock.RLock()
		return w.storages.selfLock.RUnlock, nil
	}

	// ordinary systems hold a shared lock on the registry for their whole
	// run, plus exclusive/shared locks on entities if declared, plus
	// whichever storages they named.
	w.storages.selfLock.RLock()
	releaseStorages, err := acquire(reqs, true)
	if err != nil {
		w.storages.selfLock.RUnlock()
		return nil, err
	}
	if needsEntitiesExclusive {
		// entities has no lock distinct from the registry's own; an
		// exclusive entities request upgrades by also taking the write
		// side once the shared side is dropped.
		w.storages.selfLock.RUnlock()
		w.storages.selfLock.Lock()
		return func() {
			releaseStorages()
			w.storages.selfLock.Unlock()
		}, nil
	}
	return func() {
		releaseStorages()
		w.storages.selfLock.RUnlock()
	}, nil
}

func runOneSystem(w *World, workloadName, stageLabel string, s *System, data any) error {
	release, err := acquireForSystem(w, s)
	if err != nil {
		return SystemError{System: s.Name, Err: err}
	}
	defer release()
	ctx := &RunContext{world: w, data: data}
	start := time.Now()
	err = s.Run(ctx)
	w.metrics.observeStage(workloadName, stageLabel, time.Since(start).Seconds())
	if err != nil {
		return SystemError{System: s.Name, Err: err}
	}
	return nil
}

func runParallelStage(w *World, workloadName string, systems []*System) error {
	var g errgroup.Group
	for _, s := range systems {
		s := s
		g.Go(func() error {
			return runOneSystem(w, workloadName, "parallel", s, nil)
		})
	}
	return g.Wait()
}

// run executes every stage of wl in order, advancing the World's tick once
// per workload stage boundary.
func (wl *Workload) run(w *World) error {
	for _, st := range wl.stages {
		var err error
		switch st.kind {
		case stageParallel:
			err = runParallelStage(w, wl.Name, st.systems)
		case stageSequential, stageBarrier:
			for _, s := range st.systems {
				if err = runOneSystem(w, wl.Name, "sequential", s, nil); err != nil {
					break
				}
			}
		}
		w.advanceTick()
		if err != nil {
			w.logger.Error("workload stage failed", zap.String("workload", wl.Name), zap.Error(err))
			return err
		}
	}
	return nil
}

// AddWorkload registers a built Workload under its own Name.
func (w *World) AddWorkload(wl *Workload) error {
	w.workMu.Lock()
	defer w.workMu.Unlock()
	if _, exists := w.workloads[wl.Name]; exists {
		return AddWorkloadAlreadyExistsError{Name: wl.Name}
	}
	w.workloads[wl.Name] = wl
	return nil
}

// RunWorkload runs the named, previously-added Workload.
func (w *World) RunWorkload(name string) error {
	w.workMu.RLock()
	wl, ok := w.workloads[name]
	w.workMu.RUnlock()
	if !ok {
		return MissingWorkloadError{Name: name}
	}
	return wl.run(w)
}

// Run executes a single System outside any named workload, as its own
// one-system workload (no stage partitioning needed).
func (w *World) Run(s *System) error {
	if err := validateSystem(s); err != nil {
		return err
	}
	return runOneSystem(w, "<ad-hoc>", "ad-hoc", s, nil)
}

// RunWithData runs s like Run, additionally passing data through to the
// system's RunContext.Data().
func (w *World) RunWithData(s *System, data any) error {
	if err := validateSystem(s); err != nil {
		return err
	}
	return runOneSystem(w, "<ad-hoc>", "ad-hoc", s, data)
}
