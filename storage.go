package pathoram

import "encoding/binary"

// EmptyBlockID marks a block slot as empty/dummy. On the wire it is the
// all-ones id.
const EmptyBlockID = ^uint64(0)

// idSize is the number of bytes the block id occupies in a slot.
const idSize = 8

// IDBlock is one storage slot: a block id paired with its payload bytes.
// For encrypted storage, Data contains ciphertext.
type IDBlock struct {
	ID   uint64
	Data []byte
}

// Storage provides bucket-level access to the ORAM tree. Implementations
// may hold the bytes in memory or hand them to a remote service; the
// engine is the only writer.
type Storage interface {
	// ReadBucket returns all slots of the bucket at the given index.
	ReadBucket(idx int) ([]IDBlock, error)

	// WriteBucket overwrites every slot of the bucket at the given index.
	WriteBucket(idx int, bucket []IDBlock) error

	// NumBuckets returns the total number of buckets in storage.
	NumBuckets() int

	// BucketSize returns the number of block slots per bucket.
	BucketSize() int

	// PayloadSize returns the payload bytes per slot. With encryption this
	// exceeds the logical block size by the encryptor's overhead.
	PayloadSize() int
}

// MemoryStorage implements Storage over a single flat byte array holding
// the server tree in its wire format: buckets in level order, each bucket
// BucketSize slots, each slot an 8-byte little-endian id followed by the
// payload bytes. An all-ones id marks an empty slot.
type MemoryStorage struct {
	data        []byte
	numBuckets  int
	bucketSize  int
	payloadSize int
}

// NewMemoryStorage creates storage with the given dimensions. Every slot
// starts empty; payload bytes are zeroed but carry no meaning until first
// written.
func NewMemoryStorage(numBuckets, bucketSize, payloadSize int) *MemoryStorage {
	s := &MemoryStorage{
		data:        make([]byte, numBuckets*bucketSize*(idSize+payloadSize)),
		numBuckets:  numBuckets,
		bucketSize:  bucketSize,
		payloadSize: payloadSize,
	}
	for slot := 0; slot < numBuckets*bucketSize; slot++ {
		s.putID(slot, EmptyBlockID)
	}
	return s
}

// NewMemoryStorageFromBytes wraps an existing server image, for example one
// restored from a snapshot. The image length must match the dimensions.
func NewMemoryStorageFromBytes(data []byte, numBuckets, bucketSize, payloadSize int) (*MemoryStorage, error) {
	if len(data) != numBuckets*bucketSize*(idSize+payloadSize) {
		return nil, ErrInvalidConfig
	}
	return &MemoryStorage{
		data:        data,
		numBuckets:  numBuckets,
		bucketSize:  bucketSize,
		payloadSize: payloadSize,
	}, nil
}

// ReadBucket returns a copy of all slots in the bucket at idx.
func (s *MemoryStorage) ReadBucket(idx int) ([]IDBlock, error) {
	if idx < 0 || idx >= s.numBuckets {
		return nil, ErrBucketRange
	}
	bucket := make([]IDBlock, s.bucketSize)
	for z := 0; z < s.bucketSize; z++ {
		slot := idx*s.bucketSize + z
		data := make([]byte, s.payloadSize)
		copy(data, s.payload(slot))
		bucket[z] = IDBlock{ID: s.getID(slot), Data: data}
	}
	return bucket, nil
}

// WriteBucket writes all slots of the bucket at idx. The bucket must have
// exactly BucketSize slots whose payloads are PayloadSize bytes.
func (s *MemoryStorage) WriteBucket(idx int, bucket []IDBlock) error {
	if idx < 0 || idx >= s.numBuckets {
		return ErrBucketRange
	}
	if len(bucket) != s.bucketSize {
		return ErrInvalidDataSize
	}
	for _, blk := range bucket {
		if len(blk.Data) != s.payloadSize {
			return ErrInvalidDataSize
		}
	}
	for z, blk := range bucket {
		slot := idx*s.bucketSize + z
		s.putID(slot, blk.ID)
		copy(s.payload(slot), blk.Data)
	}
	return nil
}

// NumBuckets returns the total number of buckets.
func (s *MemoryStorage) NumBuckets() int { return s.numBuckets }

// BucketSize returns slots per bucket.
func (s *MemoryStorage) BucketSize() int { return s.bucketSize }

// PayloadSize returns payload bytes per slot.
func (s *MemoryStorage) PayloadSize() int { return s.payloadSize }

// Bytes returns the underlying server image. It is the byte array an
// external transport would ship to the untrusted server; callers must not
// mutate it concurrently with an in-flight access.
func (s *MemoryStorage) Bytes() []byte { return s.data }

func (s *MemoryStorage) getID(slot int) uint64 {
	off := slot * (idSize + s.payloadSize)
	return binary.LittleEndian.Uint64(s.data[off : off+idSize])
}

func (s *MemoryStorage) putID(slot int, id uint64) {
	off := slot * (idSize + s.payloadSize)
	binary.LittleEndian.PutUint64(s.data[off:off+idSize], id)
}

func (s *MemoryStorage) payload(slot int) []byte {
	off := slot*(idSize+s.payloadSize) + idSize
	return s.data[off : off+s.payloadSize]
}
