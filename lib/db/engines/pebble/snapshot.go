package pebble

import (
	"sync"

	"github.com/cockroachdb/pebble"
)

// snapshot implements db.Snapshot
type snapshot struct {
	db *pebbleDB

	mu     sync.Mutex
	snap   *pebble.Snapshot
	closed bool
}

// Close releases the snapshot. Iterators reading through it stay usable.
func (s *snapshot) Close() error {
	err := s.release()

	s.db.mu.Lock()
	if s.db.snaps != nil {
		delete(s.db.snaps, s)
	}
	s.db.mu.Unlock()
	return err
}

func (s *snapshot) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return translate(s.snap.Close())
}
