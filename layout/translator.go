// Package layout maps structured (layer, row, column) parameter coordinates
// onto the linear block/byte address space of externally stored model data.
// Translators are built once from static per-layer shape arrays and are
// read-only afterwards, so they are safe to share across concurrent
// readers.
package layout

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when the per-layer shape slices do not
	// all have the same, non-zero length.
	ErrShapeMismatch = errors.New("layout: per-layer shape slices must have equal non-zero length")

	// ErrElementSize is returned when a layer's element does not fit in a
	// single block.
	ErrElementSize = errors.New("layout: element size invalid for block size")
)

// layerMeta holds the per-layer addressing metadata shared by both
// translator shapes.
type layerMeta struct {
	elementSize   []int // bytes per logical element
	blockElements []int // elements per block
	startBlock    []int // first block of the layer's contiguous range
	blockCount    []int // blocks occupied by the layer
}

// build computes the metadata from per-layer element bit widths and counts.
// Each layer occupies a disjoint, contiguous block range starting at
// blockOffset.
func buildLayerMeta(blockSize int, elementBits, elementCount []int, blockOffset int) (layerMeta, error) {
	n := len(elementBits)
	m := layerMeta{
		elementSize:   make([]int, n),
		blockElements: make([]int, n),
		startBlock:    make([]int, n),
		blockCount:    make([]int, n),
	}

	for i := 0; i < n; i++ {
		size := ceilDiv(elementBits[i], 8)
		if size <= 0 || size > blockSize {
			return layerMeta{}, fmt.Errorf("layer %d: element size %d bytes, block size %d: %w",
				i, size, blockSize, ErrElementSize)
		}

		m.elementSize[i] = size
		m.blockElements[i] = blockSize / size
		m.blockCount[i] = ceilDiv(elementCount[i], m.blockElements[i])
		if i == 0 {
			m.startBlock[i] = blockOffset
		} else {
			m.startBlock[i] = m.startBlock[i-1] + m.blockCount[i-1]
		}
	}
	return m, nil
}

func (m *layerMeta) locate(layer, element int) (block, offset int) {
	block = m.startBlock[layer] + element/m.blockElements[layer]
	offset = m.elementSize[layer] * (element % m.blockElements[layer])
	return block, offset
}

// WeightTranslator addresses weight elements laid out as
// (layer, pe, tile), with linear element index pe*tiles[layer]+tile.
type WeightTranslator struct {
	tiles []int
	meta  layerMeta
}

// NewWeightTranslator builds a translator from per-layer shape arrays:
// simd lanes and weight bit width (their product is one element's bit
// width), processing elements, and tiles per processing element. The
// layers' block ranges start at blockOffset.
func NewWeightTranslator(blockSize int, simd, wt, pe, tiles []int, blockOffset int) (*WeightTranslator, error) {
	n := len(tiles)
	if n == 0 || len(simd) != n || len(wt) != n || len(pe) != n {
		return nil, ErrShapeMismatch
	}

	bits := make([]int, n)
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		bits[i] = wt[i] * simd[i]
		counts[i] = pe[i] * tiles[i]
	}

	meta, err := buildLayerMeta(blockSize, bits, counts, blockOffset)
	if err != nil {
		return nil, err
	}
	return &WeightTranslator{
		tiles: append([]int(nil), tiles...),
		meta:  meta,
	}, nil
}

// Layers returns the number of layers.
func (t *WeightTranslator) Layers() int { return len(t.tiles) }

// ElementSize returns the size in bytes of one element of layer.
func (t *WeightTranslator) ElementSize(layer int) int { return t.meta.elementSize[layer] }

// BlockElements returns how many elements of layer fit in one block.
func (t *WeightTranslator) BlockElements(layer int) int { return t.meta.blockElements[layer] }

// StartBlock returns the first block of layer's contiguous range.
func (t *WeightTranslator) StartBlock(layer int) int { return t.meta.startBlock[layer] }

// BlockCount returns the number of blocks layer occupies.
func (t *WeightTranslator) BlockCount(layer int) int { return t.meta.blockCount[layer] }

// IndexToBlock maps a (layer, pe, tile) coordinate to the block holding the
// element and the element's byte offset within that block.
func (t *WeightTranslator) IndexToBlock(layer, pe, tile int) (block, offset int) {
	return t.meta.locate(layer, pe*t.tiles[layer]+tile)
}

// ThresholdTranslator addresses activation-threshold elements laid out as
// (layer, pe, nf, th), with linear element index
// pe*nf[layer]*numTH[layer] + nf*numTH[layer] + th.
type ThresholdTranslator struct {
	nf    []int
	numTH []int
	meta  layerMeta
}

// NewThresholdTranslator builds a translator from per-layer shape arrays:
// neuron folds, processing elements, thresholds per neuron, and threshold
// accumulator bit width.
func NewThresholdTranslator(blockSize int, nf, pe, numTH, ta []int, blockOffset int) (*ThresholdTranslator, error) {
	n := len(nf)
	if n == 0 || len(pe) != n || len(numTH) != n || len(ta) != n {
		return nil, ErrShapeMismatch
	}

	counts := make([]int, n)
	for i := 0; i < n; i++ {
		counts[i] = pe[i] * nf[i] * numTH[i]
	}

	meta, err := buildLayerMeta(blockSize, ta, counts, blockOffset)
	if err != nil {
		return nil, err
	}
	return &ThresholdTranslator{
		nf:    append([]int(nil), nf...),
		numTH: append([]int(nil), numTH...),
		meta:  meta,
	}, nil
}

// Layers returns the number of layers.
func (t *ThresholdTranslator) Layers() int { return len(t.nf) }

// ElementSize returns the size in bytes of one element of layer.
func (t *ThresholdTranslator) ElementSize(layer int) int { return t.meta.elementSize[layer] }

// BlockElements returns how many elements of layer fit in one block.
func (t *ThresholdTranslator) BlockElements(layer int) int { return t.meta.blockElements[layer] }

// StartBlock returns the first block of layer's contiguous range.
func (t *ThresholdTranslator) StartBlock(layer int) int { return t.meta.startBlock[layer] }

// BlockCount returns the number of blocks layer occupies.
func (t *ThresholdTranslator) BlockCount(layer int) int { return t.meta.blockCount[layer] }

// IndexToBlock maps a (layer, pe, nf, th) coordinate to the block holding
// the element and the element's byte offset within that block.
func (t *ThresholdTranslator) IndexToBlock(layer, pe, nf, th int) (block, offset int) {
	element := pe*t.nf[layer]*t.numTH[layer] + nf*t.numTH[layer] + th
	return t.meta.locate(layer, element)
}

func ceilDiv(num, denom int) int {
	if num == 0 {
		return 0
	}
	return 1 + (num-1)/denom
}
