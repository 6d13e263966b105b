package pathoram

import (
	"errors"
	"math/bits"

	"go.uber.org/zap"
)

var (
	ErrInvalidConfig    = errors.New("invalid PathORAM configuration")
	ErrInvalidBlockID   = errors.New("invalid block ID")
	ErrInvalidDataSize  = errors.New("data size doesn't match block size")
	ErrStashOverflow    = errors.New("stash overflow")
	ErrEngineFailed     = errors.New("engine failed; Initialize required")
	ErrBucketRange      = errors.New("bucket index out of range")
	ErrEncryptionFailed = errors.New("block encryption failed")
	ErrDecryptionFailed = errors.New("block decryption failed")
)

// OpType represents the type of ORAM operation.
type OpType int

const (
	OpRead OpType = iota
	OpWrite
)

// EvictionStrategy defines how blocks are evicted from stash to tree.
type EvictionStrategy int

const (
	// EvictLevelByLevel rebuilds each path bucket from leaf to root,
	// filling its slots with qualifying stash blocks in stash iteration
	// order. This is the baseline strategy.
	EvictLevelByLevel EvictionStrategy = iota

	// EvictGreedyByDepth places each stash block at its deepest possible
	// level first. Reduces stash pressure by maximizing depth utilization.
	EvictGreedyByDepth

	// EvictTwoPath evicts along the accessed path and then along a second
	// random path per access. Reduces stash size variance at the cost of
	// doubling the per-access bucket I/O: two full paths are read and
	// rewritten instead of one.
	EvictTwoPath
)

// Config holds PathORAM configuration parameters.
//
// The server tree is a complete binary tree of the given Height L: it has
// 2^(L+1)-1 buckets and 2^L leaves. The default NumBlocks is the tree's
// physical slot count, BucketSize * (2^(L+1)-1).
type Config struct {
	Height       int              // Tree height L (levels 0..L)
	BlockSize    int              // Size of each block in bytes
	BucketSize   int              // Number of blocks per bucket (Z parameter)
	NumBlocks    int              // Number of logical block IDs (valid IDs: 0 to NumBlocks-1)
	StashSize    int              // Fixed stash capacity (C parameter)
	Eviction     EvictionStrategy // Eviction strategy to use
	ConstantTime bool             // Enable constant-time stash operations for TEE deployments
	Logger       *zap.Logger      // Optional; defaults to a no-op logger
}

// Validate checks the configuration for errors and applies defaults.
// Returns a copy of the config with defaults applied.
func (c Config) Validate() (Config, error) {
	if c.Height <= 0 || c.Height > 32 || c.BlockSize <= 0 {
		return c, ErrInvalidConfig
	}
	if c.BucketSize == 0 {
		c.BucketSize = 4
	}
	if c.BucketSize < 0 {
		return c, ErrInvalidConfig
	}

	_, _, totalSlots := c.ComputeTreeParams()
	if c.NumBlocks == 0 {
		c.NumBlocks = totalSlots
	}
	if c.NumBlocks < 0 || c.NumBlocks > totalSlots {
		return c, ErrInvalidConfig
	}

	if c.StashSize == 0 {
		c.StashSize = 4 * ceilLog2(uint64(c.NumBlocks))
	}
	if c.StashSize < 1 {
		return c, ErrInvalidConfig
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c, nil
}

// ComputeTreeParams calculates tree dimensions from config.
// Returns (numLeaves, totalBuckets, totalSlots).
func (c Config) ComputeTreeParams() (numLeaves, totalBuckets, totalSlots int) {
	numLeaves = 1 << c.Height
	totalBuckets = (1 << (c.Height + 1)) - 1
	totalSlots = c.BucketSize * totalBuckets
	return
}

// ceilLog2 returns log2(n) rounded up, clamped to at least 1 so derived
// capacities never collapse to zero.
func ceilLog2(n uint64) int {
	if n <= 2 {
		return 1
	}
	return bits.Len64(n - 1)
}
