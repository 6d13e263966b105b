package pathoram

import "crypto/subtle"

// Constant-time variants of the stash operations, for deployments where
// the engine itself runs inside an enclave and memory-access timing must
// not depend on which block was requested.

// findInStashConstantTime copies the stash entry for blockID into out
// without timing leaks. It always scans the entire stash regardless of
// where (or whether) the block matches, and reports whether it was found.
func (o *PathORAM) findInStashConstantTime(blockID uint64, out []byte) bool {
	found := 0
	keys := o.stash.keys()
	for i := range keys {
		match := constantTimeEq64(keys[i], blockID)
		subtle.ConstantTimeCopy(match, out, o.stash.dataAt(i))
		found |= match
	}
	return found == 1
}

// onPathConstantTime reports (as 0/1) whether node lies on the
// root-to-leaf path of pos. It always folds through every level instead of
// exiting on the first hit.
func (o *PathORAM) onPathConstantTime(pos, node uint64) int {
	b := pos + uint64(o.bucketCount/2)
	found := 0
	for l := 0; l <= o.cfg.Height; l++ {
		found |= constantTimeEq64(b, node)
		b = (b+1)/2 - 1
	}
	return found
}

// evictConstantTime rebuilds the path buckets while processing every stash
// block and every level unconditionally, steering placement through
// constant-time flags.
func (o *PathORAM) evictConstantTime(leaf uint64) error {
	levels := o.cfg.Height + 1
	nodes := make([]uint64, levels)
	buckets := make([][]IDBlock, levels)
	filled := make([]int, levels)
	for l := 0; l < levels; l++ {
		nodes[l] = o.nodeOnPath(leaf, l)
		buckets[l] = make([]IDBlock, o.cfg.BucketSize)
	}

	var placed []uint64
	var evictErr error
	o.stash.each(func(id uint64) bool {
		pos, ok := o.posMap.Get(id)
		if !ok {
			return true
		}
		done := 0
		for l := o.cfg.Height; l >= 0; l-- {
			canPlace := o.onPathConstantTime(pos, nodes[l])
			hasRoom := subtle.ConstantTimeLessOrEq(filled[l]+1, o.cfg.BucketSize)
			take := canPlace & hasRoom & (1 ^ done)

			if take == 1 {
				ciphertext, err := o.encrypt.Encrypt(id, o.stash.at(id))
				if err != nil {
					evictErr = err
					return false
				}
				buckets[l][filled[l]] = IDBlock{ID: id, Data: ciphertext}
				filled[l]++
				done = 1
			}
		}
		if done == 1 {
			placed = append(placed, id)
		}
		return true
	})
	if evictErr != nil {
		return evictErr
	}
	for _, id := range placed {
		o.stash.remove(id)
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

// constantTimeEq64 returns 1 if a == b, 0 otherwise, comparing both 32-bit
// halves without data-dependent branches.
func constantTimeEq64(a, b uint64) int {
	return subtle.ConstantTimeEq(int32(uint32(a)), int32(uint32(b))) &
		subtle.ConstantTimeEq(int32(uint32(a>>32)), int32(uint32(b>>32)))
}
