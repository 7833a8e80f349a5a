package lifecycle

import (
	"time"

	"github.com/ValentinKolb/hKV/lib/db"
	"github.com/ValentinKolb/hKV/lib/handle"
)

// NewIterator creates an unpositioned iterator over the database, reading
// through opts.Snapshot if one is given
func (c *Controller) NewIterator(dbh handle.Handle, opts IteratorOptions) (handle.Handle, error) {
	database, err := c.database(dbh)
	if err != nil {
		return handle.NoHandle, err
	}

	ro := db.ReadOptions{}
	if opts.Snapshot != handle.NoHandle {
		if ro.Snapshot, err = c.snapshotOf(opts.Snapshot, dbh); err != nil {
			return handle.NoHandle, err
		}
	}

	start := time.Now()
	it, err := database.NewIterator(ro)
	c.timed("iterator", start)
	if err != nil {
		return handle.NoHandle, engineError(err, "iterator creation failed")
	}
	return c.register(handle.KindIterator, it, dbh, opts.Snapshot)
}

// step runs an iterator operation and checks the engine status afterward
func (c *Controller) step(itr handle.Handle, op string, fn func(it db.Iterator)) error {
	it, err := c.iterator(itr)
	if err != nil {
		return err
	}

	defer c.timed("iterator_"+op, time.Now())
	fn(it)
	if err := it.Error(); err != nil {
		return engineError(err, "%s failed", op)
	}
	return nil
}

// positioned resolves an iterator that must point at an entry. An iterator
// in an error state reports the engine error first.
func (c *Controller) positioned(itr handle.Handle) (db.Iterator, error) {
	it, err := c.iterator(itr)
	if err != nil {
		return nil, err
	}
	if !it.Valid() {
		if err := it.Error(); err != nil {
			return nil, engineError(err, "iterator %s failed", itr)
		}
		return nil, handle.Errorf(handle.RetCInvalidArgument, "iterator %s is not positioned at an entry", itr)
	}
	return it, nil
}

func (c *Controller) SeekToFirst(itr handle.Handle) error {
	return c.step(itr, "seektofirst", func(it db.Iterator) { it.SeekToFirst() })
}

func (c *Controller) SeekToLast(itr handle.Handle) error {
	return c.step(itr, "seektolast", func(it db.Iterator) { it.SeekToLast() })
}

// Seek positions the iterator at the first key >= key. An empty key seeks to the start.
func (c *Controller) Seek(itr handle.Handle, key []byte) error {
	return c.step(itr, "seek", func(it db.Iterator) { it.Seek(key) })
}

// Valid reports whether the iterator points at an entry
func (c *Controller) Valid(itr handle.Handle) (bool, error) {
	var valid bool
	err := c.step(itr, "valid", func(it db.Iterator) { valid = it.Valid() })
	return valid, err
}

// Next moves to the next entry, the iterator must be positioned
func (c *Controller) Next(itr handle.Handle) error {
	if _, err := c.positioned(itr); err != nil {
		return err
	}
	return c.step(itr, "next", func(it db.Iterator) { it.Next() })
}

// Prev moves to the previous entry, the iterator must be positioned
func (c *Controller) Prev(itr handle.Handle) error {
	if _, err := c.positioned(itr); err != nil {
		return err
	}
	return c.step(itr, "prev", func(it db.Iterator) { it.Prev() })
}

// Key returns the key at the current position
func (c *Controller) Key(itr handle.Handle) ([]byte, error) {
	it, err := c.positioned(itr)
	if err != nil {
		return nil, err
	}
	key := it.Key()
	if err := it.Error(); err != nil {
		return nil, engineError(err, "key failed")
	}
	return key, nil
}

// Value returns the value at the current position
func (c *Controller) Value(itr handle.Handle) ([]byte, error) {
	it, err := c.positioned(itr)
	if err != nil {
		return nil, err
	}
	value := it.Value()
	if err := it.Error(); err != nil {
		return nil, engineError(err, "value failed")
	}
	return value, nil
}
