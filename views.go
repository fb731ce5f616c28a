package hive

// View is a shared borrow of SparseSet[T]: a short-lived handle holding a
// read lock on that storage (and a shared lock on AllStorages) for the
// view's lifetime.
type View[T any] struct {
	set      *SparseSet[T]
	world    *World
	optional bool
	window   [2]int // [start, end) dense-index window; end==-1 means unbounded
}

// ViewMut is the exclusive counterpart of View.
type ViewMut[T any] struct {
	set      *SparseSet[T]
	world    *World
	optional bool
	window   [2]int
}

// UniqueView / UniqueViewMut borrow a Unique[U].
type UniqueView[U any] struct {
	u     *Unique[U]
	world *World
}
type UniqueViewMut[U any] struct {
	u     *Unique[U]
	world *World
}

// EntitiesView / EntitiesViewMut borrow the allocator itself.
type EntitiesView struct {
	e *Entities
}
type EntitiesViewMut struct {
	e *Entities
}

// AllStoragesView / AllStoragesViewMut borrow the registry itself; the
// exclusive form is required for any mutation of the registry's set of
// storages.
type AllStoragesView struct {
	a *AllStorages
}
type AllStoragesViewMut struct {
	a *AllStorages
}

func (v View[T]) Get(id EntityId) (*T, error)    { return v.set.Get(id) }
func (v View[T]) Contains(id EntityId) bool      { return v.set.Contains(id) }
func (v View[T]) Len() int                       { return v.set.Len() }
func (v View[T]) Ids() []EntityId                { return v.set.Ids() }
func (v View[T]) Inserted(t Tick) []EntityId     { return v.set.Inserted(t) }
func (v View[T]) Modified(t Tick) []EntityId     { return v.set.Modified(t) }
func (v View[T]) AsOptional() View[T]            { v.optional = true; return v }
func (v View[T]) Window(start, end int) View[T]  { v.window = [2]int{start, end}; return v }

func (v ViewMut[T]) Get(id EntityId) (*T, error) { return v.set.Get(id) }
func (v ViewMut[T]) GetMut(id EntityId) (*T, error) {
	return v.set.GetMut(id, v.world.currentTick())
}
func (v ViewMut[T]) Insert(id EntityId, val T) (T, bool) {
	return v.set.Insert(id, val, v.world.currentTick())
}
func (v ViewMut[T]) Remove(id EntityId) (T, bool) { return v.set.Remove(id) }
func (v ViewMut[T]) Delete(id EntityId) bool      { return v.set.Delete(id) }
func (v ViewMut[T]) Contains(id EntityId) bool    { return v.set.Contains(id) }
func (v ViewMut[T]) Len() int                     { return v.set.Len() }
func (v ViewMut[T]) Ids() []EntityId              { return v.set.Ids() }
func (v ViewMut[T]) Sort(less func(a, b T) bool)  { v.set.Sort(less) }
func (v ViewMut[T]) Swap(a, b EntityId)           { v.set.Swap(a, b) }
func (v ViewMut[T]) RetainOnly(ids ...EntityId)   { v.set.RetainOnly(ids...) }
func (v ViewMut[T]) Share(owner, beneficiary EntityId) { v.set.Share(owner, beneficiary) }
func (v ViewMut[T]) ClearAllInserted()            { v.set.ClearAllInserted() }
func (v ViewMut[T]) ClearAllModified()            { v.set.ClearAllModified() }
func (v ViewMut[T]) TakeRemoved() []EntityId      { return v.set.TakeRemoved() }
func (v ViewMut[T]) TakeDeleted() []deletedRecord[T] { return v.set.TakeDeleted() }
func (v ViewMut[T]) AsOptional() ViewMut[T]       { v.optional = true; return v }
func (v ViewMut[T]) Window(start, end int) ViewMut[T] {
	v.window = [2]int{start, end}
	return v
}
func (v ViewMut[T]) AsView() View[T] {
	return View[T]{set: v.set, world: v.world, optional: v.optional, window: v.window}
}

func (v UniqueView[U]) Get() *U { return v.u.Get() }
func (v UniqueViewMut[U]) Get() *U { return v.u.Get() }
func (v UniqueViewMut[U]) Set(val U) { v.u.Set(val, v.world.currentTick()) }

func (v EntitiesView) IsAlive(id EntityId) bool { return v.e.IsAlive(id) }

func (v EntitiesViewMut) Mint() EntityId           { return v.e.Mint() }
func (v EntitiesViewMut) BulkMint(n int) []EntityId { return v.e.BulkMint(n) }
func (v EntitiesViewMut) Delete(id EntityId) bool  { return v.e.Delete(id) }
func (v EntitiesViewMut) Spawn(id EntityId) bool   { return v.e.Spawn(id) }
func (v EntitiesViewMut) IsAlive(id EntityId) bool { return v.e.IsAlive(id) }

func (v AllStoragesView) IsAlive(id EntityId) bool { return v.a.entities.IsAlive(id) }

func (v AllStoragesViewMut) Strip(id EntityId) { v.a.Strip(id) }
func (v AllStoragesViewMut) DeleteEntity(id EntityId) bool { return v.a.DeleteEntity(id) }
func (v AllStoragesViewMut) Clear() { v.a.Clear() }
