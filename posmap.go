package pathoram

// PositionMap tracks block-to-leaf assignments.
// For recursive ORAM, this can be implemented as another ORAM instance.
type PositionMap interface {
	// Get returns the leaf position for blockID.
	// Returns (leaf, true) if found, (0, false) if not.
	Get(blockID uint64) (leaf uint64, exists bool)

	// Set assigns blockID to leaf.
	Set(blockID uint64, leaf uint64)

	// Size returns the number of blocks with assigned positions.
	Size() int
}

// noLeaf marks an unassigned position map entry.
const noLeaf = ^uint64(0)

// ArrayPositionMap implements PositionMap as a dense array over the full
// block id range, the natural shape when every id gets a position at
// initialization.
type ArrayPositionMap struct {
	leaves []uint64
	count  int
}

// NewArrayPositionMap creates an empty position map for block IDs in
// [0, numBlocks).
func NewArrayPositionMap(numBlocks int) *ArrayPositionMap {
	leaves := make([]uint64, numBlocks)
	for i := range leaves {
		leaves[i] = noLeaf
	}
	return &ArrayPositionMap{leaves: leaves}
}

// Get returns the leaf position for blockID.
func (p *ArrayPositionMap) Get(blockID uint64) (uint64, bool) {
	if blockID >= uint64(len(p.leaves)) || p.leaves[blockID] == noLeaf {
		return 0, false
	}
	return p.leaves[blockID], true
}

// Set assigns blockID to leaf. IDs outside the map's range are ignored.
func (p *ArrayPositionMap) Set(blockID uint64, leaf uint64) {
	if blockID >= uint64(len(p.leaves)) {
		return
	}
	if p.leaves[blockID] == noLeaf {
		p.count++
	}
	p.leaves[blockID] = leaf
}

// Size returns the number of blocks with assigned positions.
func (p *ArrayPositionMap) Size() int { return p.count }
