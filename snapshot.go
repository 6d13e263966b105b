package pathoram

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// SnapshotVersion is the current snapshot envelope version.
const SnapshotVersion = 1

var (
	ErrSnapshotVersion  = errors.New("unsupported snapshot version")
	ErrSnapshotGeometry = errors.New("snapshot geometry mismatch")
	ErrSnapshotStorage  = errors.New("storage does not expose a byte image")
)

// Snapshot is the persistable form of the untrusted server image: the raw
// wire-format bytes plus the geometry needed to validate and rehydrate
// them. It deliberately carries no client state; the position map and
// stash stay with the client.
type Snapshot struct {
	Version     int    `cbor:"1,keyasint"`
	Height      int    `cbor:"2,keyasint"`
	BucketSize  int    `cbor:"3,keyasint"`
	BlockSize   int    `cbor:"4,keyasint"`
	PayloadSize int    `cbor:"5,keyasint"`
	Data        []byte `cbor:"6,keyasint"`
}

// byteImage is implemented by storage backends whose full server image is
// available as a flat byte array.
type byteImage interface {
	Bytes() []byte
}

// Snapshot captures the current server image. The engine's storage must be
// byte-image backed (MemoryStorage is). The stash is client state and is
// not captured; snapshot when StashSize is zero if the image must be
// self-contained.
func (o *PathORAM) Snapshot() (*Snapshot, error) {
	img, ok := o.storage.(byteImage)
	if !ok {
		return nil, ErrSnapshotStorage
	}
	src := img.Bytes()
	data := make([]byte, len(src))
	copy(data, src)

	return &Snapshot{
		Version:     SnapshotVersion,
		Height:      o.cfg.Height,
		BucketSize:  o.cfg.BucketSize,
		BlockSize:   o.cfg.BlockSize,
		PayloadSize: o.storage.PayloadSize(),
		Data:        data,
	}, nil
}

// WriteSnapshot CBOR-encodes the snapshot to w.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	return cbor.NewEncoder(w).Encode(s)
}

// ReadSnapshot decodes and validates a CBOR snapshot from r.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d: %w", s.Version, ErrSnapshotVersion)
	}
	if _, err := snapshotDims(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// RestoreStorage rebuilds a MemoryStorage from a snapshot, for use with a
// New engine configured with the snapshot's geometry.
func RestoreStorage(s *Snapshot) (*MemoryStorage, error) {
	buckets, err := snapshotDims(s)
	if err != nil {
		return nil, err
	}
	data := make([]byte, len(s.Data))
	copy(data, s.Data)
	return NewMemoryStorageFromBytes(data, buckets, s.BucketSize, s.PayloadSize)
}

// snapshotDims validates the snapshot's geometry against its data length
// and returns the bucket count.
func snapshotDims(s *Snapshot) (int, error) {
	if s.Height <= 0 || s.Height > 32 || s.BucketSize <= 0 ||
		s.BlockSize <= 0 || s.PayloadSize < s.BlockSize {
		return 0, ErrSnapshotGeometry
	}
	buckets := (1 << (s.Height + 1)) - 1
	if len(s.Data) != buckets*s.BucketSize*(idSize+s.PayloadSize) {
		return 0, fmt.Errorf("image is %d bytes: %w", len(s.Data), ErrSnapshotGeometry)
	}
	return buckets, nil
}
