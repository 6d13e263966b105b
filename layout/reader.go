package layout

import "fmt"

// Source supplies fixed-size data blocks by id. The ORAM engine's Read
// method satisfies it, as does any other block fetcher.
type Source interface {
	Read(blockID uint64) ([]byte, error)
}

// BlockCache is a Source that caches the single most recently fetched
// block. Structured parameter reads touch consecutive elements of the same
// block, so one cached block collapses a run of element reads into one
// fetch from the underlying Source.
//
// A BlockCache is not safe for concurrent use; give each reading goroutine
// its own.
type BlockCache struct {
	src      Source
	blockNum uint64
	block    []byte
	valid    bool
}

// NewBlockCache wraps src with a one-block cache.
func NewBlockCache(src Source) *BlockCache {
	return &BlockCache{src: src}
}

// Read returns the block with the given id, fetching from the underlying
// Source only when the id differs from the cached block's. The returned
// slice is valid until the next Read.
func (c *BlockCache) Read(blockID uint64) ([]byte, error) {
	if c.valid && c.blockNum == blockID {
		return c.block, nil
	}
	block, err := c.src.Read(blockID)
	if err != nil {
		return nil, err
	}
	c.block = block
	c.blockNum = blockID
	c.valid = true
	return c.block, nil
}

// Invalidate drops the cached block, forcing the next Read to fetch.
func (c *BlockCache) Invalidate() { c.valid = false }

// WeightReader fetches individual weight elements through a translator and
// a block Source.
type WeightReader struct {
	trans *WeightTranslator
	cache *BlockCache
}

// NewWeightReader creates a reader over src. Reads go through a one-block
// cache.
func NewWeightReader(trans *WeightTranslator, src Source) *WeightReader {
	return &WeightReader{trans: trans, cache: NewBlockCache(src)}
}

// Element returns the bytes of the element at (layer, pe, tile). The
// returned slice is valid until the next Element call.
func (r *WeightReader) Element(layer, pe, tile int) ([]byte, error) {
	block, offset := r.trans.IndexToBlock(layer, pe, tile)
	return readElement(r.cache, block, offset, r.trans.ElementSize(layer))
}

// ThresholdReader fetches individual threshold elements through a
// translator and a block Source.
type ThresholdReader struct {
	trans *ThresholdTranslator
	cache *BlockCache
}

// NewThresholdReader creates a reader over src. Reads go through a
// one-block cache.
func NewThresholdReader(trans *ThresholdTranslator, src Source) *ThresholdReader {
	return &ThresholdReader{trans: trans, cache: NewBlockCache(src)}
}

// Element returns the bytes of the element at (layer, pe, nf, th). The
// returned slice is valid until the next Element call.
func (r *ThresholdReader) Element(layer, pe, nf, th int) ([]byte, error) {
	block, offset := r.trans.IndexToBlock(layer, pe, nf, th)
	return readElement(r.cache, block, offset, r.trans.ElementSize(layer))
}

func readElement(src Source, block, offset, size int) ([]byte, error) {
	data, err := src.Read(uint64(block))
	if err != nil {
		return nil, err
	}
	if offset+size > len(data) {
		return nil, fmt.Errorf("layout: block %d is %d bytes, need [%d:%d]",
			block, len(data), offset, offset+size)
	}
	return data[offset : offset+size], nil
}
