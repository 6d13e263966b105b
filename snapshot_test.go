package pathoram

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	oram := mustInit(t, Config{Height: 2, BlockSize: 8}, 17)
	for id := uint64(0); id < 6; id++ {
		require.NoError(t, oram.Write(id, bytes.Repeat([]byte{byte(id)}, 8)))
	}

	snap, err := oram.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, 2, snap.Height)
	assert.Equal(t, 4, snap.BucketSize)
	assert.Equal(t, 8, snap.BlockSize)
	assert.Equal(t, 8, snap.PayloadSize)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, snap))

	decoded, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap, decoded)

	restored, err := RestoreStorage(decoded)
	require.NoError(t, err)
	assert.Equal(t, oram.storage.(*MemoryStorage).Bytes(), restored.Bytes())
	assert.Equal(t, oram.NumBuckets(), restored.NumBuckets())
}

func TestSnapshotIsDetached(t *testing.T) {
	oram := mustInit(t, Config{Height: 2, BlockSize: 8}, 23)
	require.NoError(t, oram.Write(1, bytes.Repeat([]byte{0x11}, 8)))

	snap, err := oram.Snapshot()
	require.NoError(t, err)
	before := append([]byte(nil), snap.Data...)

	// Later accesses must not bleed into an already-taken snapshot.
	require.NoError(t, oram.Write(2, bytes.Repeat([]byte{0x22}, 8)))
	assert.Equal(t, before, snap.Data)
}

func TestReadSnapshotErrors(t *testing.T) {
	oram := mustInit(t, Config{Height: 2, BlockSize: 8}, 31)
	snap, err := oram.Snapshot()
	require.NoError(t, err)

	t.Run("bad version", func(t *testing.T) {
		bad := *snap
		bad.Version = 99
		var buf bytes.Buffer
		require.NoError(t, WriteSnapshot(&buf, &bad))
		_, err := ReadSnapshot(&buf)
		assert.ErrorIs(t, err, ErrSnapshotVersion)
	})

	t.Run("truncated image", func(t *testing.T) {
		bad := *snap
		bad.Data = bad.Data[:len(bad.Data)-1]
		var buf bytes.Buffer
		require.NoError(t, WriteSnapshot(&buf, &bad))
		_, err := ReadSnapshot(&buf)
		assert.ErrorIs(t, err, ErrSnapshotGeometry)
	})

	t.Run("nonsense geometry", func(t *testing.T) {
		bad := *snap
		bad.Height = -3
		var buf bytes.Buffer
		require.NoError(t, WriteSnapshot(&buf, &bad))
		_, err := ReadSnapshot(&buf)
		assert.ErrorIs(t, err, ErrSnapshotGeometry)
	})

	t.Run("garbage bytes", func(t *testing.T) {
		_, err := ReadSnapshot(bytes.NewReader([]byte{0x00, 0x01, 0x02}))
		assert.Error(t, err)
	})
}

// opaqueStorage satisfies Storage without exposing a byte image.
type opaqueStorage struct{ Storage }

func TestSnapshotRequiresByteImage(t *testing.T) {
	cfg, err := Config{Height: 2, BlockSize: 8}.Validate()
	require.NoError(t, err)
	_, buckets, _ := cfg.ComputeTreeParams()
	storage := &opaqueStorage{NewMemoryStorage(buckets, cfg.BucketSize, cfg.BlockSize)}

	oram, err := New(cfg, storage, NewArrayPositionMap(cfg.NumBlocks), NoOpEncryptor{}, NewXorShift64(0))
	require.NoError(t, err)

	_, err = oram.Snapshot()
	assert.ErrorIs(t, err, ErrSnapshotStorage)
}
