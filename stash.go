package pathoram

import "github.com/cbrl/pathoram/container"

// stash is the bounded client-side buffer holding blocks pulled off the
// server tree between a read-path and the following write-path. It maps
// block ids to payloads through a container.Pool whose dense slots own
// preallocated block buffers, so steady-state operation allocates nothing.
//
// The stash capacity is fixed and data-independent; a rejected insert is
// the observable overflow signal, never a silent drop.
type stash struct {
	pool *container.Pool[[]byte]
}

// newStash creates a stash for block ids in [0, numBlocks) holding at most
// capacity blocks of blockSize bytes.
func newStash(numBlocks, capacity, blockSize int) *stash {
	return &stash{
		pool: container.NewPoolFunc(numBlocks, capacity, func() []byte {
			return make([]byte, blockSize)
		}),
	}
}

// add inserts data under id if absent, leaving a present entry unchanged.
// It reports false only when the stash rejected the insert.
func (s *stash) add(id uint64, data []byte) bool {
	buf, inserted := s.pool.EmplaceEmpty(id)
	if buf == nil {
		return false
	}
	if inserted {
		copy(*buf, data)
	}
	return true
}

// set inserts or overwrites the entry for id. It reports false only when
// the stash rejected the insert.
func (s *stash) set(id uint64, data []byte) bool {
	buf, _ := s.pool.EmplaceEmpty(id)
	if buf == nil {
		return false
	}
	copy(*buf, data)
	return true
}

// get returns the payload stored under id as a view into the stash.
func (s *stash) get(id uint64) ([]byte, bool) {
	if !s.pool.Contains(id) {
		return nil, false
	}
	return *s.pool.At(id), true
}

// at returns the payload stored under id. A missing id is a precondition
// violation and panics.
func (s *stash) at(id uint64) []byte { return *s.pool.At(id) }

func (s *stash) contains(id uint64) bool { return s.pool.Contains(id) }

func (s *stash) remove(id uint64) bool { return s.pool.Erase(id) }

func (s *stash) len() int { return s.pool.Len() }

func (s *stash) cap() int { return s.pool.Cap() }

func (s *stash) clear() { s.pool.Clear() }

// keys returns the resident block ids in dense order, as a read-only view.
func (s *stash) keys() []uint64 { return s.pool.Keys() }

// dataAt returns the payload at dense position i, paired with keys()[i].
func (s *stash) dataAt(i int) []byte { return *s.pool.ValueAt(i) }

// each visits resident ids in stash iteration order (reverse dense order).
// Removing the id currently visited is permitted.
func (s *stash) each(fn func(id uint64) bool) {
	s.pool.Each(func(id uint64, _ *[]byte) bool {
		return fn(id)
	})
}
