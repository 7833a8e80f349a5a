package pebble

import (
	"sync"

	"github.com/ValentinKolb/hKV/lib/db"
	"github.com/cockroachdb/pebble"
)

// iterator implements db.Iterator on top of a pebble iterator
type iterator struct {
	db *pebbleDB

	mu     sync.Mutex
	iter   *pebble.Iterator
	err    error // value read error, cleared by the next positioning call
	closed bool
}

// positioned runs a positioning call on the live pebble iterator
func (it *iterator) positioned(move func(*pebble.Iterator)) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return
	}
	it.err = nil
	move(it.iter)
}

func (it *iterator) SeekToFirst() {
	it.positioned(func(i *pebble.Iterator) { i.First() })
}

func (it *iterator) SeekToLast() {
	it.positioned(func(i *pebble.Iterator) { i.Last() })
}

func (it *iterator) Seek(key []byte) {
	it.positioned(func(i *pebble.Iterator) { i.SeekGE(key) })
}

// Next and Prev leave an unpositioned iterator unpositioned
func (it *iterator) Next() {
	it.positioned(func(i *pebble.Iterator) {
		if i.Valid() {
			i.Next()
		}
	})
}

func (it *iterator) Prev() {
	it.positioned(func(i *pebble.Iterator) {
		if i.Valid() {
			i.Prev()
		}
	})
}

func (it *iterator) Valid() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return !it.closed && it.iter.Valid()
}

func (it *iterator) Key() []byte {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed || !it.iter.Valid() {
		return nil
	}
	key := it.iter.Key()
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *iterator) Value() []byte {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed || !it.iter.Valid() {
		return nil
	}
	val, err := it.iter.ValueAndErr()
	if err != nil {
		it.err = err
		return nil
	}
	result := make([]byte, len(val))
	copy(result, val)
	return result
}

func (it *iterator) Error() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return db.ErrClosed
	}
	if it.err != nil {
		return it.err
	}
	return translate(it.iter.Error())
}

// Close closes the iterator and detaches it from its database.
// Closing an iterator whose database is already closed is a no-op.
func (it *iterator) Close() error {
	err := it.release()

	it.db.mu.Lock()
	if it.db.iters != nil {
		delete(it.db.iters, it)
	}
	it.db.mu.Unlock()
	return err
}

// release closes the pebble iterator once
func (it *iterator) release() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return nil
	}
	it.closed = true
	return translate(it.iter.Close())
}
