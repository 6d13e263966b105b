package pathoram

import "go.uber.org/zap"

// PathORAM implements the Path ORAM protocol: a client-side engine that
// reads and writes fixed-size blocks held by an untrusted server while
// hiding which logical block each physical access touches. Every access
// reads one full root-to-leaf path into the stash and writes the same path
// back, so an observer sees only uniformly random, independent paths.
//
// A PathORAM is not safe for concurrent use: one Access must run to
// completion before the next begins, or both the block placement invariant
// and the access-pattern guarantee break. Callers sharing an engine must
// serialize externally.
type PathORAM struct {
	cfg         Config
	numLeaves   int
	bucketCount int

	storage Storage     // pluggable storage backend
	posMap  PositionMap // pluggable position map
	encrypt Encryptor   // pluggable payload encryption
	leaves  LeafSource  // pluggable leaf sampling

	stash *stash // blocks not yet written back to the tree
	log   *zap.Logger

	stashPeak int  // high-water mark, for capacity tuning
	failed    bool // latched when an access aborts mid-flight
}

// New creates a new PathORAM instance with explicit dependencies.
// Use this constructor when you need custom storage, position map,
// encryption, or leaf sampling.
func New(cfg Config, storage Storage, posMap PositionMap, enc Encryptor, leaves LeafSource) (*PathORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	numLeaves, bucketCount, _ := cfg.ComputeTreeParams()
	if storage.NumBuckets() != bucketCount ||
		storage.BucketSize() != cfg.BucketSize ||
		storage.PayloadSize() != cfg.BlockSize+enc.Overhead() {
		return nil, ErrInvalidConfig
	}

	return &PathORAM{
		cfg:         cfg,
		numLeaves:   numLeaves,
		bucketCount: bucketCount,
		storage:     storage,
		posMap:      posMap,
		encrypt:     enc,
		leaves:      leaves,
		stash:       newStash(cfg.NumBlocks, cfg.StashSize, cfg.BlockSize),
		log:         cfg.Logger,
	}, nil
}

// NewInMemory creates a new PathORAM instance with in-memory storage, a
// dense position map, no encryption, and a deterministic leaf source. Call
// Initialize to seed it before use, or rely on the zero seed.
func NewInMemory(cfg Config) (*PathORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	_, bucketCount, _ := cfg.ComputeTreeParams()
	storage := NewMemoryStorage(bucketCount, cfg.BucketSize, cfg.BlockSize)
	posMap := NewArrayPositionMap(cfg.NumBlocks)
	return New(cfg, storage, posMap, NoOpEncryptor{}, NewXorShift64(0))
}

// Capacity returns the number of logical blocks this ORAM can store.
func (o *PathORAM) Capacity() int { return o.cfg.NumBlocks }

// Height returns the height L of the binary tree (levels 0..L).
func (o *PathORAM) Height() int { return o.cfg.Height }

// NumLeaves returns the number of leaf nodes in the tree.
func (o *PathORAM) NumLeaves() int { return o.numLeaves }

// NumBuckets returns the total number of buckets in the tree.
func (o *PathORAM) NumBuckets() int { return o.bucketCount }

// BlockSize returns the configured block size.
func (o *PathORAM) BlockSize() int { return o.cfg.BlockSize }

// StashSize returns the current number of blocks in the stash.
func (o *PathORAM) StashSize() int { return o.stash.len() }

// StashPeak returns the largest stash occupancy seen since construction.
func (o *PathORAM) StashPeak() int { return o.stashPeak }

// Initialize resets the engine to the empty state: the leaf generator is
// seeded, every server slot is marked empty, the stash is cleared, and
// every block id is assigned a fresh random leaf. Server payload bytes are
// not meaningful until a block is first written.
func (o *PathORAM) Initialize(seed uint64) error {
	o.leaves.Seed(seed)

	empty := make([]IDBlock, o.cfg.BucketSize)
	for z := range empty {
		empty[z] = IDBlock{
			ID:   EmptyBlockID,
			Data: make([]byte, o.storage.PayloadSize()),
		}
	}
	for idx := 0; idx < o.bucketCount; idx++ {
		if err := o.storage.WriteBucket(idx, empty); err != nil {
			return err
		}
	}

	o.stash.clear()
	o.failed = false
	for id := uint64(0); id < uint64(o.cfg.NumBlocks); id++ {
		o.posMap.Set(id, o.randomLeaf())
	}

	o.log.Debug("oram initialized",
		zap.Int("height", o.cfg.Height),
		zap.Int("bucketSize", o.cfg.BucketSize),
		zap.Int("blockSize", o.cfg.BlockSize),
		zap.Int("numBlocks", o.cfg.NumBlocks),
		zap.Int("stashCapacity", o.stash.cap()),
	)
	return nil
}

// Read reads the block with the given ID. A block that was never written
// reads as zero bytes.
func (o *PathORAM) Read(blockID uint64) ([]byte, error) {
	return o.Access(OpRead, blockID, nil)
}

// Write writes data to the block with the given ID.
func (o *PathORAM) Write(blockID uint64, data []byte) error {
	_, err := o.Access(OpWrite, blockID, data)
	return err
}

// Access performs one oblivious operation. For OpRead the returned slice
// holds the block's current contents and data is ignored; for OpWrite data
// must be BlockSize bytes and the returned slice is nil.
//
// An access either runs to completion or has not happened: argument errors
// are reported before any state changes, and an error after the access has
// started (ErrStashOverflow, a storage failure) latches the engine into a
// failed state where every further access returns ErrEngineFailed until
// Initialize resets it. Serving accesses from the half-committed state
// could hand out stale data.
func (o *PathORAM) Access(op OpType, blockID uint64, data []byte) ([]byte, error) {
	if o.failed {
		return nil, ErrEngineFailed
	}
	if op != OpRead && op != OpWrite {
		return nil, ErrInvalidConfig
	}
	if blockID >= uint64(o.cfg.NumBlocks) {
		return nil, ErrInvalidBlockID
	}
	if op == OpWrite && len(data) != o.cfg.BlockSize {
		return nil, ErrInvalidDataSize
	}

	// The block's new leaf is sampled before any I/O so that nothing read
	// from the server can influence it.
	leaf, ok := o.posMap.Get(blockID)
	if !ok {
		leaf = o.randomLeaf()
	}
	o.posMap.Set(blockID, o.randomLeaf())

	if err := o.readPath(leaf); err != nil {
		return nil, o.fail(err)
	}

	var result []byte
	switch op {
	case OpRead:
		result = make([]byte, o.cfg.BlockSize)
		if o.cfg.ConstantTime {
			o.findInStashConstantTime(blockID, result)
		} else if cur, ok := o.stash.get(blockID); ok {
			copy(result, cur)
		}
	case OpWrite:
		if !o.stash.set(blockID, data) {
			o.log.Warn("stash overflow on write",
				zap.Uint64("blockID", blockID),
				zap.Int("stashCapacity", o.stash.cap()))
			return nil, o.fail(ErrStashOverflow)
		}
	}

	if err := o.writePath(leaf); err != nil {
		return nil, o.fail(err)
	}

	if n := o.stash.len(); n > o.stashPeak {
		o.stashPeak = n
		o.log.Debug("stash high-water mark",
			zap.Int("occupancy", n),
			zap.Int("capacity", o.stash.cap()))
	}
	return result, nil
}

// readPath pulls every bucket on the root-to-leaf path into the stash.
// Blocks already resident are left untouched; a rejected insert surfaces
// as ErrStashOverflow rather than dropping the block.
func (o *PathORAM) readPath(leaf uint64) error {
	for l := 0; l <= o.cfg.Height; l++ {
		bucket, err := o.storage.ReadBucket(int(o.nodeOnPath(leaf, l)))
		if err != nil {
			return err
		}
		for _, blk := range bucket {
			if blk.ID == EmptyBlockID {
				continue
			}
			if o.stash.contains(blk.ID) {
				continue
			}
			plaintext, err := o.encrypt.Decrypt(blk.ID, blk.Data)
			if err != nil {
				return err
			}
			if !o.stash.add(blk.ID, plaintext) {
				o.log.Warn("stash overflow on read path",
					zap.Uint64("blockID", blk.ID),
					zap.Int("stashCapacity", o.stash.cap()))
				return ErrStashOverflow
			}
		}
	}
	return nil
}

// nodeOnPath returns the bucket index at the given level of the
// root-to-leaf path, by folding the leaf's absolute bucket index up
// through parents.
func (o *PathORAM) nodeOnPath(leaf uint64, level int) uint64 {
	node := leaf + uint64(o.bucketCount/2)
	for l := o.cfg.Height - 1; l >= level; l-- {
		node = (node+1)/2 - 1
	}
	return node
}

// fail latches the engine into the failed state. By the time an access can
// error, its position map entry has already moved while the tree has not,
// so blocks pulled by the read path exist both in the stash and in their
// old buckets. Refusing further accesses keeps that state unobservable.
func (o *PathORAM) fail(err error) error {
	o.failed = true
	return err
}

// randomLeaf samples the next leaf assignment.
func (o *PathORAM) randomLeaf() uint64 {
	return o.leaves.Leaf(o.numLeaves)
}

// unstash encrypts the stash entry for id into a storage slot and removes
// it from the stash. The id must be stash-resident.
func (o *PathORAM) unstash(id uint64) (IDBlock, error) {
	ciphertext, err := o.encrypt.Encrypt(id, o.stash.at(id))
	if err != nil {
		return IDBlock{}, err
	}
	o.stash.remove(id)
	return IDBlock{ID: id, Data: ciphertext}, nil
}

// emptySlot returns a storage slot carrying the empty sentinel.
func (o *PathORAM) emptySlot() IDBlock {
	return IDBlock{
		ID:   EmptyBlockID,
		Data: make([]byte, o.storage.PayloadSize()),
	}
}
