package container

// Pool is a bounded map from uint64 keys to values of type V, built from a
// SparseSet for membership and indexing plus a parallel dense value slice.
// The two are kept in lock-step through the same swap-with-last index moves,
// so lookup, insert, and erase are all O(1).
//
// Values move between dense slots by assignment. When V holds a reference
// (for example a slice), erase swaps the vacated entry with the last one
// instead of overwriting it, so every slot permanently owns the resource it
// was constructed with and no two slots ever alias.
type Pool[V any] struct {
	set    *SparseSet
	values []V
}

// NewPool creates a pool over keys in [0, sparseCapacity) holding at most
// denseCapacity entries. Values start as zero values of V.
func NewPool[V any](sparseCapacity, denseCapacity int) *Pool[V] {
	return NewPoolFunc[V](sparseCapacity, denseCapacity, nil)
}

// NewPoolFunc is NewPool with an allocator that pre-fills every dense slot,
// for value types that carry preallocated resources.
func NewPoolFunc[V any](sparseCapacity, denseCapacity int, alloc func() V) *Pool[V] {
	if denseCapacity > sparseCapacity {
		denseCapacity = sparseCapacity
	}
	p := &Pool[V]{
		set:    NewSparseSet(sparseCapacity, denseCapacity),
		values: make([]V, denseCapacity),
	}
	if alloc != nil {
		for i := range p.values {
			p.values[i] = alloc()
		}
	}
	return p
}

// Emplace stores value under key. If key is already present the existing
// entry is returned unchanged with inserted=false. A nil pointer reports
// that the pool rejected the insert (full, or key outside the domain); this
// is the overflow path and callers must check it.
func (p *Pool[V]) Emplace(key uint64, value V) (*V, bool) {
	v, inserted := p.EmplaceEmpty(key)
	if inserted {
		*v = value
	}
	return v, inserted
}

// EmplaceEmpty reserves the entry for key without assigning it, returning a
// pointer to the slot's current value. Semantics otherwise match Emplace.
func (p *Pool[V]) EmplaceEmpty(key uint64) (*V, bool) {
	if p.set.Contains(key) {
		return &p.values[p.set.IndexOf(key)], false
	}
	if !p.set.Insert(key) {
		return nil, false
	}
	return &p.values[p.set.Len()-1], true
}

// Erase removes key, swapping the last dense value into its position so the
// value slice stays in lock-step with the sparse set. It reports whether key
// was present.
func (p *Pool[V]) Erase(key uint64) bool {
	if !p.set.Contains(key) {
		return false
	}
	idx := p.set.IndexOf(key)
	last := p.set.Len() - 1
	p.values[idx], p.values[last] = p.values[last], p.values[idx]
	p.set.Erase(key)
	return true
}

// Contains reports whether key is present.
func (p *Pool[V]) Contains(key uint64) bool { return p.set.Contains(key) }

// At returns a pointer to the value stored under key. Calling At with an
// absent key is a precondition violation and panics.
func (p *Pool[V]) At(key uint64) *V {
	if !p.set.Contains(key) {
		panic("container: Pool.At on absent key")
	}
	return &p.values[p.set.IndexOf(key)]
}

// ValueAt returns a pointer to the value at dense position i, paired with
// Keys()[i]. It is invalidated by Emplace, Erase, and Clear.
func (p *Pool[V]) ValueAt(i int) *V { return &p.values[i] }

// Keys returns the currently held keys in dense order, as a read-only view.
func (p *Pool[V]) Keys() []uint64 { return p.set.Keys() }

// Len returns the number of entries.
func (p *Pool[V]) Len() int { return p.set.Len() }

// Cap returns the entry capacity.
func (p *Pool[V]) Cap() int { return p.set.Cap() }

// Empty reports whether the pool has no entries.
func (p *Pool[V]) Empty() bool { return p.set.Empty() }

// Clear removes all entries. Slot resources are retained.
func (p *Pool[V]) Clear() { p.set.Clear() }

// Each visits every entry in reverse dense order, with the same
// erase-during-iteration tolerance as SparseSet.Each.
func (p *Pool[V]) Each(fn func(key uint64, value *V) bool) {
	for i := p.set.Len() - 1; i >= 0; i-- {
		if i >= p.set.Len() {
			i = p.set.Len() - 1
			if i < 0 {
				return
			}
		}
		if !fn(p.set.Keys()[i], &p.values[i]) {
			return
		}
	}
}
