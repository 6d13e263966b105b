package container

// TreeMap is a fixed-capacity ordered map built as a binary search tree
// over a pre-sized node arena. Nodes carry parent/left/right indices and a
// validity flag; an array-based free-list stack supplies slots on insert
// and reclaims them on erase. No allocation happens after construction.
//
// Insert and Erase are O(log n) for balanced input but the tree is not
// rebalanced, so adversarial key order degrades them to O(n).
type TreeMap[K any, V any] struct {
	nodes []treeNode[K, V]
	free  []uint32
	freeN int
	root  uint32
	less  func(a, b K) bool
}

type treeNode[K any, V any] struct {
	key    K
	value  V
	parent uint32
	left   uint32
	right  uint32
	valid  bool
}

// NewTreeMap creates a map holding at most capacity entries, ordered by
// less.
func NewTreeMap[K any, V any](capacity int, less func(a, b K) bool) *TreeMap[K, V] {
	t := &TreeMap[K, V]{
		nodes: make([]treeNode[K, V], capacity),
		free:  make([]uint32, capacity),
		less:  less,
	}
	t.root = t.inv()
	for i := 0; i < capacity; i++ {
		t.pushFree(uint32(i))
	}
	return t
}

// inv is the index used for "no node".
func (t *TreeMap[K, V]) inv() uint32 { return uint32(len(t.nodes)) }

func (t *TreeMap[K, V]) isInvalid(n uint32) bool {
	return n >= uint32(len(t.nodes)) || !t.nodes[n].valid
}

// Insert stores value under key. If key is already present the existing
// entry is returned unchanged with inserted=false. A nil pointer reports
// that the map rejected the insert because no free node slot remained.
func (t *TreeMap[K, V]) Insert(key K, value V) (*V, bool) {
	n, inserted := t.setupNode(key)
	if n == t.inv() {
		return nil, false
	}
	if inserted {
		t.nodes[n].value = value
	}
	return &t.nodes[n].value, inserted
}

// Emplace reserves the entry for key without assigning its value.
// Semantics otherwise match Insert.
func (t *TreeMap[K, V]) Emplace(key K) (*V, bool) {
	n, inserted := t.setupNode(key)
	if n == t.inv() {
		return nil, false
	}
	return &t.nodes[n].value, inserted
}

// Erase removes key and reports whether it was present.
func (t *TreeMap[K, V]) Erase(key K) bool {
	id := t.findExact(key)
	if t.isInvalid(id) {
		return false
	}

	left := t.nodes[id].left
	right := t.nodes[id].right
	hasLeft := !t.isInvalid(left)
	hasRight := !t.isInvalid(right)

	switch {
	case hasLeft && hasRight:
		successor := t.findMin(right)
		oldSuccRight := t.nodes[successor].right

		// Splice the in-order successor into the erased node's place. This
		// frees the erased slot, so the temporary node below always has a
		// free slot available.
		t.moveNode(successor, id, false, false)

		if !t.isInvalid(oldSuccRight) {
			// Re-home the successor's right subtree through a temporary
			// node placed in the successor's vacated spot.
			tmp, _ := t.setupNode(t.nodes[oldSuccRight].key)
			tmpParent := t.nodes[tmp].parent

			t.nodes[oldSuccRight].parent = tmpParent
			if t.nodes[tmpParent].left == tmp {
				t.nodes[tmpParent].left = oldSuccRight
			} else {
				t.nodes[tmpParent].right = oldSuccRight
			}
			t.pushFree(tmp)
		}

	case hasLeft:
		t.moveNode(left, id, true, true)

	case hasRight:
		t.moveNode(right, id, true, true)

	default:
		if id == t.root {
			t.root = t.inv()
		} else {
			parent := t.nodes[id].parent
			if t.nodes[parent].left == id {
				t.nodes[parent].left = t.inv()
			} else {
				t.nodes[parent].right = t.inv()
			}
		}
		t.pushFree(id)
	}
	return true
}

// Contains reports whether key is present.
func (t *TreeMap[K, V]) Contains(key K) bool {
	return !t.isInvalid(t.findExact(key))
}

// Find returns a pointer to the value stored under key.
func (t *TreeMap[K, V]) Find(key K) (*V, bool) {
	id := t.findExact(key)
	if t.isInvalid(id) {
		return nil, false
	}
	return &t.nodes[id].value, true
}

// At returns a pointer to the value stored under key. Calling At with an
// absent key is a precondition violation and panics.
func (t *TreeMap[K, V]) At(key K) *V {
	id := t.findExact(key)
	if t.isInvalid(id) {
		panic("container: TreeMap.At on absent key")
	}
	return &t.nodes[id].value
}

// Len returns the number of entries.
func (t *TreeMap[K, V]) Len() int { return len(t.nodes) - t.freeN }

// Cap returns the entry capacity.
func (t *TreeMap[K, V]) Cap() int { return len(t.nodes) }

// Each visits the entries in ascending key order. Mutating the map during
// the walk is not supported. fn returning false stops the walk.
func (t *TreeMap[K, V]) Each(fn func(key K, value *V) bool) {
	for n := t.findMin(t.root); n != t.inv(); n = t.next(n) {
		if !fn(t.nodes[n].key, &t.nodes[n].value) {
			return
		}
	}
}

// next returns the in-order successor of node, walking parent links when
// the right subtree is empty.
func (t *TreeMap[K, V]) next(node uint32) uint32 {
	if !t.isInvalid(t.nodes[node].right) {
		return t.findMin(t.nodes[node].right)
	}
	for {
		parent := t.nodes[node].parent
		if parent == t.inv() {
			return t.inv()
		}
		if t.nodes[parent].left == node {
			return parent
		}
		node = parent
	}
}

// setupNode finds or creates the node for key. It returns the invalid index
// when the free-list is exhausted, and reports whether a new node was
// created.
func (t *TreeMap[K, V]) setupNode(key K) (uint32, bool) {
	if t.freeN == 0 {
		return t.inv(), false
	}

	if t.isInvalid(t.root) {
		id := t.popFree()
		t.root = id
		t.nodes[id].key = key
		return id, true
	}

	nearest := t.findNearest(key)
	if t.equal(key, t.nodes[nearest].key) {
		return nearest, false
	}

	id := t.popFree()
	t.nodes[id].parent = nearest
	t.nodes[id].key = key
	if t.less(key, t.nodes[nearest].key) {
		t.nodes[nearest].left = id
	} else {
		t.nodes[nearest].right = id
	}
	return id, true
}

// moveNode re-links the node at from into the position of the node at to
// and frees to's slot. The subtree flags keep from's own left/right links
// instead of adopting to's.
func (t *TreeMap[K, V]) moveNode(from, to uint32, keepLeft, keepRight bool) {
	fromParent := t.nodes[from].parent
	if t.nodes[fromParent].left == from {
		t.nodes[fromParent].left = t.inv()
	} else {
		t.nodes[fromParent].right = t.inv()
	}

	t.nodes[from].parent = t.nodes[to].parent

	if !keepLeft {
		toLeft := t.nodes[to].left
		t.nodes[from].left = toLeft
		if !t.isInvalid(toLeft) {
			t.nodes[toLeft].parent = from
		}
	}
	if !keepRight {
		toRight := t.nodes[to].right
		t.nodes[from].right = toRight
		if !t.isInvalid(toRight) {
			t.nodes[toRight].parent = from
		}
	}

	if to != t.root {
		toParent := t.nodes[to].parent
		if t.nodes[toParent].left == to {
			t.nodes[toParent].left = from
		} else {
			t.nodes[toParent].right = from
		}
	} else {
		t.root = from
	}
	t.pushFree(to)
}

func (t *TreeMap[K, V]) findExact(key K) uint32 {
	if t.isInvalid(t.root) {
		return t.inv()
	}
	current, next := t.root, t.root
	for !t.isInvalid(next) && !t.equal(key, t.nodes[current].key) {
		current = next
		if t.less(key, t.nodes[next].key) {
			next = t.nodes[next].left
		} else {
			next = t.nodes[next].right
		}
	}
	if t.equal(key, t.nodes[current].key) {
		return current
	}
	return t.inv()
}

// findNearest returns the node with the given key or, if absent, the node
// that would become its parent. The tree must not be empty.
func (t *TreeMap[K, V]) findNearest(key K) uint32 {
	current, next := t.root, t.root
	for !t.isInvalid(next) && !t.equal(key, t.nodes[current].key) {
		current = next
		if t.less(key, t.nodes[next].key) {
			next = t.nodes[next].left
		} else {
			next = t.nodes[next].right
		}
	}
	return current
}

func (t *TreeMap[K, V]) findMin(node uint32) uint32 {
	if t.isInvalid(node) {
		return t.inv()
	}
	current, next := node, t.nodes[node].left
	for !t.isInvalid(next) {
		current = next
		next = t.nodes[next].left
	}
	return current
}

func (t *TreeMap[K, V]) popFree() uint32 {
	t.freeN--
	id := t.free[t.freeN]
	t.nodes[id].valid = true
	return id
}

func (t *TreeMap[K, V]) pushFree(id uint32) {
	t.free[t.freeN] = id
	t.freeN++

	n := &t.nodes[id]
	n.valid = false
	n.parent = t.inv()
	n.left = t.inv()
	n.right = t.inv()
}

func (t *TreeMap[K, V]) equal(a, b K) bool {
	return !t.less(a, b) && !t.less(b, a)
}
