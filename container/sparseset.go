// Package container provides fixed-capacity data structures that allocate
// all of their storage at construction time. Operations that would grow a
// structure past its capacity are rejected with an explicit failure result
// instead of allocating; callers are responsible for sizing capacities so
// that rejection never happens in practice.
package container

// SparseSet is a bounded set of uint64 keys in [0, sparseCapacity), backed
// by a dense array of members and a sparse key-to-position index. All
// operations are O(1).
//
// Removal swaps the erased entry with the last dense entry, so iteration
// order is unspecified and changes across erases.
type SparseSet struct {
	dense  []uint64
	sparse []uint32
	size   int
}

// NewSparseSet creates a set over keys in [0, sparseCapacity) holding at
// most denseCapacity members. denseCapacity is clamped to sparseCapacity.
func NewSparseSet(sparseCapacity, denseCapacity int) *SparseSet {
	if denseCapacity > sparseCapacity {
		denseCapacity = sparseCapacity
	}
	return &SparseSet{
		dense:  make([]uint64, denseCapacity),
		sparse: make([]uint32, sparseCapacity),
	}
}

// Contains reports whether key is a member.
func (s *SparseSet) Contains(key uint64) bool {
	return key < uint64(len(s.sparse)) &&
		int(s.sparse[key]) < s.size &&
		s.dense[s.sparse[key]] == key
}

// IndexOf returns the dense position of key. key must be a member.
func (s *SparseSet) IndexOf(key uint64) int {
	if !s.Contains(key) {
		panic("container: SparseSet.IndexOf on absent key")
	}
	return int(s.sparse[key])
}

// Insert adds key to the set. It reports whether key is a member after the
// call: inserting a present key is a no-op that reports true, while a key
// outside the sparse domain or an insert into a full set is rejected with
// false.
func (s *SparseSet) Insert(key uint64) bool {
	if key >= uint64(len(s.sparse)) {
		return false
	}
	if s.Contains(key) {
		return true
	}
	if s.size == len(s.dense) {
		return false
	}
	s.sparse[key] = uint32(s.size)
	s.dense[s.size] = key
	s.size++
	return true
}

// Erase removes key, swapping the last dense entry into its position. It
// reports whether key was a member.
func (s *SparseSet) Erase(key uint64) bool {
	if !s.Contains(key) {
		return false
	}
	last := s.dense[s.size-1]
	s.dense[s.sparse[key]] = last
	s.sparse[last] = s.sparse[key]
	s.size--
	return true
}

// Len returns the number of members.
func (s *SparseSet) Len() int { return s.size }

// Cap returns the dense capacity.
func (s *SparseSet) Cap() int { return len(s.dense) }

// Empty reports whether the set has no members.
func (s *SparseSet) Empty() bool { return s.size == 0 }

// Clear removes all members.
func (s *SparseSet) Clear() { s.size = 0 }

// Keys returns the members in dense order. The returned slice is a view
// into the set's storage: it must not be modified and is invalidated by
// Insert, Erase, and Clear.
func (s *SparseSet) Keys() []uint64 { return s.dense[:s.size] }

// Each visits every member in reverse dense order. Erasing the key
// currently being visited is permitted: swap-with-last removal only
// disturbs positions the walk has already passed. Members inserted during
// the walk are not visited. fn returning false stops the walk.
func (s *SparseSet) Each(fn func(key uint64) bool) {
	for i := s.size - 1; i >= 0; i-- {
		if i >= s.size {
			i = s.size - 1
			if i < 0 {
				return
			}
		}
		if !fn(s.dense[i]) {
			return
		}
	}
}
