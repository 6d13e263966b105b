package pathoram

// writePath evicts stash blocks back onto the just-read path. Every bucket
// on the path is rebuilt from the stash and rewritten, so the read path
// plus write path together touch exactly 2(L+1) buckets per access.
func (o *PathORAM) writePath(leaf uint64) error {
	if o.cfg.ConstantTime {
		return o.evictConstantTime(leaf)
	}
	switch o.cfg.Eviction {
	case EvictGreedyByDepth:
		return o.evictGreedyByDepth(leaf)
	case EvictTwoPath:
		if err := o.evictGreedyByDepth(leaf); err != nil {
			return err
		}
		second := o.randomLeaf()
		if err := o.readPath(second); err != nil {
			return err
		}
		return o.evictGreedyByDepth(second)
	default: // EvictLevelByLevel
		return o.evictLevelByLevel(leaf)
	}
}

// evictLevelByLevel walks the path from leaf to root. At each level it
// fills the bucket with up to Z stash blocks whose assigned leaf shares
// the path prefix down to that level, taken in stash iteration order, and
// pads the rest with empty sentinels. Starting nearest the leaf keeps
// deep-qualifying blocks from being stranded above their own subtree.
// Qualifying blocks beyond Z stay in the stash for a future access.
func (o *PathORAM) evictLevelByLevel(leaf uint64) error {
	bucket := make([]IDBlock, o.cfg.BucketSize)

	for l := o.cfg.Height; l >= 0; l-- {
		node := o.nodeOnPath(leaf, l)

		filled := 0
		var evictErr error
		o.stash.each(func(id uint64) bool {
			if filled == o.cfg.BucketSize {
				return false
			}
			pos, ok := o.posMap.Get(id)
			if !ok || o.nodeOnPath(pos, l) != node {
				return true
			}
			slot, err := o.unstash(id)
			if err != nil {
				evictErr = err
				return false
			}
			bucket[filled] = slot
			filled++
			return true
		})
		if evictErr != nil {
			return evictErr
		}

		for ; filled < o.cfg.BucketSize; filled++ {
			bucket[filled] = o.emptySlot()
		}
		if err := o.storage.WriteBucket(int(node), bucket); err != nil {
			return err
		}
	}
	return nil
}

// evictGreedyByDepth places each stash block at the deepest level of the
// path its assigned leaf allows, then rewrites every path bucket. Every
// block qualifies at the root, so the stash drains until the path is full.
func (o *PathORAM) evictGreedyByDepth(leaf uint64) error {
	levels := o.cfg.Height + 1
	nodes := make([]uint64, levels)
	buckets := make([][]IDBlock, levels)
	filled := make([]int, levels)
	for l := 0; l < levels; l++ {
		nodes[l] = o.nodeOnPath(leaf, l)
		buckets[l] = make([]IDBlock, o.cfg.BucketSize)
	}

	var evictErr error
	o.stash.each(func(id uint64) bool {
		pos, ok := o.posMap.Get(id)
		if !ok {
			return true
		}
		for l := o.cfg.Height; l >= 0; l-- {
			if filled[l] == o.cfg.BucketSize || o.nodeOnPath(pos, l) != nodes[l] {
				continue
			}
			slot, err := o.unstash(id)
			if err != nil {
				evictErr = err
				return false
			}
			buckets[l][filled[l]] = slot
			filled[l]++
			break
		}
		return true
	})
	if evictErr != nil {
		return evictErr
	}

	for l := 0; l < levels; l++ {
		for ; filled[l] < o.cfg.BucketSize; filled[l]++ {
			buckets[l][filled[l]] = o.emptySlot()
		}
		if err := o.storage.WriteBucket(int(nodes[l]), buckets[l]); err != nil {
			return err
		}
	}
	return nil
}
