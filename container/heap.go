package container

import "math/bits"

// HeapMap is a fixed-capacity ordered map stored as a complete binary tree
// in a flat array, where node i's children sit at 2i+1 and 2i+2. Lookups
// walk the array treating each node's key as a binary-search pivot, so this
// is an array-indexed search tree, not a priority heap. Slots carry a
// validity flag instead of pointers; no allocation happens after
// construction.
//
// Because positions are implicit, an insert is rejected once the walk for
// its key falls off the bottom of the array, which can happen before Len
// reaches Cap for skewed key orders.
type HeapMap[K any, V any] struct {
	nodes  []heapNode[K, V]
	less   func(a, b K) bool
	height int
	size   int
}

type heapNode[K any, V any] struct {
	key   K
	value V
	valid bool
}

// NewHeapMap creates a map backed by a complete binary tree of the given
// height, holding at most 2^(height+1)-1 entries.
func NewHeapMap[K any, V any](height int, less func(a, b K) bool) *HeapMap[K, V] {
	return &HeapMap[K, V]{
		nodes:  make([]heapNode[K, V], (1<<(height+1))-1),
		less:   less,
		height: height,
	}
}

// Insert stores value under key. If key is already present the existing
// entry is returned unchanged with inserted=false. A nil pointer reports
// that the walk for key found no usable slot.
func (h *HeapMap[K, V]) Insert(key K, value V) (*V, bool) {
	v, inserted := h.Emplace(key)
	if inserted {
		*v = value
	}
	return v, inserted
}

// Emplace reserves the entry for key without assigning its value.
// Semantics otherwise match Insert.
func (h *HeapMap[K, V]) Emplace(key K) (*V, bool) {
	slot := h.findSlot(key)
	if slot >= len(h.nodes) {
		return nil, false
	}
	node := &h.nodes[slot]
	if !node.valid {
		node.valid = true
		node.key = key
		h.size++
		return &node.value, true
	}
	return &node.value, false
}

// Erase removes key and reports whether it was present.
func (h *HeapMap[K, V]) Erase(key K) bool {
	leaf := h.findLeaf(key)
	if leaf >= len(h.nodes) {
		return false
	}

	// Nodes on the bottom level have no children to re-home.
	if leaf >= (1<<h.height)-1 {
		h.nodes[leaf].valid = false
		h.size--
		return true
	}

	left := 2*leaf + 1
	right := 2*leaf + 2
	hasLeft := !h.isInvalid(left)
	hasRight := !h.isInvalid(right)

	switch {
	case hasLeft && hasRight:
		successor := h.findMin(right)
		h.nodes[leaf] = h.nodes[successor]
		h.nodes[successor].valid = false

		// The successor has no left child, or it would not be the minimum.
		// Its right subtree shifts up into the vacated position level by
		// level.
		succRight := 2*successor + 2
		if !h.isInvalid(succRight) {
			h.iterativeMove(succRight, successor)
		}
	case hasLeft:
		h.iterativeMove(left, leaf)
	case hasRight:
		h.iterativeMove(right, leaf)
	default:
		h.nodes[leaf].valid = false
	}
	h.size--
	return true
}

// Contains reports whether key is present.
func (h *HeapMap[K, V]) Contains(key K) bool {
	return h.findLeaf(key) < len(h.nodes)
}

// Find returns a pointer to the value stored under key.
func (h *HeapMap[K, V]) Find(key K) (*V, bool) {
	leaf := h.findLeaf(key)
	if leaf >= len(h.nodes) {
		return nil, false
	}
	return &h.nodes[leaf].value, true
}

// At returns a pointer to the value stored under key. Calling At with an
// absent key is a precondition violation and panics.
func (h *HeapMap[K, V]) At(key K) *V {
	leaf := h.findLeaf(key)
	if leaf >= len(h.nodes) {
		panic("container: HeapMap.At on absent key")
	}
	return &h.nodes[leaf].value
}

// Len returns the number of entries.
func (h *HeapMap[K, V]) Len() int { return h.size }

// Cap returns the entry capacity.
func (h *HeapMap[K, V]) Cap() int { return len(h.nodes) }

// Each visits the entries in ascending key order. Mutating the map during
// the walk is not supported. fn returning false stops the walk.
func (h *HeapMap[K, V]) Each(fn func(key K, value *V) bool) {
	for n := h.findMin(0); n < len(h.nodes); n = h.next(n) {
		if !fn(h.nodes[n].key, &h.nodes[n].value) {
			return
		}
	}
}

func (h *HeapMap[K, V]) next(node int) int {
	right := 2*node + 2
	if !h.isInvalid(right) {
		return h.findMin(right)
	}
	for {
		parent := 0
		if node > 0 {
			parent = (node - 1) / 2
		}
		if node == parent {
			return len(h.nodes)
		}
		if 2*parent+1 == node {
			return parent
		}
		node = parent
	}
}

// findLeaf returns the position of the valid node holding key, or
// len(nodes) if absent. The walk stops at the first invalid node: an
// invalid node never has valid descendants.
func (h *HeapMap[K, V]) findLeaf(key K) int {
	leaf := 0
	for leaf < len(h.nodes) && h.nodes[leaf].valid && !h.equal(key, h.nodes[leaf].key) {
		if h.less(key, h.nodes[leaf].key) {
			leaf = 2*leaf + 1
		} else {
			leaf = 2*leaf + 2
		}
	}
	if leaf < len(h.nodes) && h.nodes[leaf].valid && h.equal(key, h.nodes[leaf].key) {
		return leaf
	}
	return len(h.nodes)
}

// findSlot returns the position where key is or would be stored: the first
// node on key's walk that is invalid or holds an equal key.
func (h *HeapMap[K, V]) findSlot(key K) int {
	leaf := 0
	for leaf < len(h.nodes) && h.nodes[leaf].valid && !h.equal(key, h.nodes[leaf].key) {
		if h.less(key, h.nodes[leaf].key) {
			leaf = 2*leaf + 1
		} else {
			leaf = 2*leaf + 2
		}
	}
	return leaf
}

func (h *HeapMap[K, V]) findMin(leaf int) int {
	if h.isInvalid(leaf) {
		return len(h.nodes)
	}
	next := leaf
	for !h.isInvalid(next) {
		leaf = next
		next = 2*leaf + 1
	}
	return leaf
}

// iterativeMove shifts the subtree rooted at from into the position of its
// parent to, level by level. Destinations whose source slot is invalid are
// left untouched; Erase's case analysis guarantees they hold no valid
// nodes.
func (h *HeapMap[K, V]) iterativeMove(from, to int) {
	destStart, srcStart := to, from
	curDest, curSrc := destStart, srcStart

	levels := h.height - intLog2(from+1) + 1
	for lvl := 0; lvl < levels; lvl++ {
		width := 1 << lvl
		for i := 0; i < width; i++ {
			if h.nodes[curSrc].valid {
				h.nodes[curDest] = h.nodes[curSrc]
				h.nodes[curSrc].valid = false
			}
			curDest++
			curSrc++
		}
		destStart = 2*destStart + 1
		srcStart = 2*srcStart + 1
		curDest = destStart
		curSrc = srcStart
	}
}

func (h *HeapMap[K, V]) isInvalid(leaf int) bool {
	return leaf >= len(h.nodes) || !h.nodes[leaf].valid
}

func (h *HeapMap[K, V]) equal(a, b K) bool {
	return !h.less(a, b) && !h.less(b, a)
}

func intLog2(n int) int { return bits.Len(uint(n)) - 1 }
