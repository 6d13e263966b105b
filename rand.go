package pathoram

import (
	"crypto/rand"
	"math/big"
)

// LeafSource produces the random leaf assignments recorded in the position
// map. Implementations must yield leaves uniform over [0, numLeaves).
type LeafSource interface {
	// Seed resets the source's state. Sources backed by real entropy may
	// ignore it.
	Seed(seed uint64)

	// Leaf returns the next leaf index in [0, numLeaves).
	Leaf(numLeaves int) uint64
}

// XorShift64 is a deterministic LeafSource using the xorshift64 generator.
// Deterministic leaf sampling makes runs reproducible for testing and
// simulation; it does not hide the leaf sequence from anyone who learns
// the seed.
type XorShift64 struct {
	state uint64
}

// NewXorShift64 creates a generator seeded with seed.
func NewXorShift64(seed uint64) *XorShift64 {
	x := &XorShift64{}
	x.Seed(seed)
	return x
}

// Seed resets the generator. xorshift64 has an all-zero fixed point, so a
// zero seed is replaced with a fixed non-zero constant.
func (x *XorShift64) Seed(seed uint64) {
	if seed == 0 {
		seed = 0x9e3779b97f4a7c15
	}
	x.state = seed
}

// Uint64 returns the next generator output.
func (x *XorShift64) Uint64() uint64 {
	v := x.state
	v ^= v << 13
	v ^= v >> 7
	v ^= v << 17
	x.state = v
	return v
}

// Leaf returns the next leaf index. numLeaves is a power of two, so the
// modulo reduction is unbiased.
func (x *XorShift64) Leaf(numLeaves int) uint64 {
	return x.Uint64() % uint64(numLeaves)
}

// CryptoLeafSource draws leaves from crypto/rand. Use it when the leaf
// sequence itself must be unpredictable.
type CryptoLeafSource struct{}

// Seed is a no-op; the source is backed by the platform CSPRNG.
func (CryptoLeafSource) Seed(uint64) {}

// Leaf returns a cryptographically random leaf index.
func (CryptoLeafSource) Leaf(numLeaves int) uint64 {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(numLeaves)))
	if err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return n.Uint64()
}
