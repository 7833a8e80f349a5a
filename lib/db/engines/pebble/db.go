package pebble

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ValentinKolb/hKV/lib/db"
	"github.com/cockroachdb/pebble"
	"go.uber.org/multierr"
)

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

// pebbleDB implements db.DB.
//
// pebble panics when a closed database, iterator or snapshot is used, so
// pebbleDB tracks the iterators and snapshots it created and closes them
// before the database itself. Using any of them afterward returns
// db.ErrClosed.
type pebbleDB struct {
	path     string
	db       *pebble.DB
	fsync    bool
	readOnly bool

	mu     sync.RWMutex // guards closed, iters and snaps
	closed bool
	iters  map[*iterator]struct{}
	snaps  map[*snapshot]struct{}
}

func newDB(path string, pdb *pebble.DB, opts db.Options) *pebbleDB {
	return &pebbleDB{
		path:     path,
		db:       pdb,
		fsync:    opts.UseFsync,
		readOnly: opts.ReadOnly,
		iters:    make(map[*iterator]struct{}),
		snaps:    make(map[*snapshot]struct{}),
	}
}

// writeOptions returns the pebble write options, use_fsync forces a sync on every write
func (d *pebbleDB) writeOptions(opts db.WriteOptions) *pebble.WriteOptions {
	if opts.Sync || d.fsync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// translate maps pebble errors to the db sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pebble.ErrNotFound):
		return db.ErrNotFound
	case errors.Is(err, pebble.ErrReadOnly):
		return db.ErrReadOnly
	case errors.Is(err, pebble.ErrClosed):
		return db.ErrClosed
	default:
		return err
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (d *pebbleDB) Put(key, value []byte, opts db.WriteOptions) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return db.ErrClosed
	}
	if d.readOnly {
		return db.ErrReadOnly
	}
	return translate(d.db.Set(key, value, d.writeOptions(opts)))
}

func (d *pebbleDB) Delete(key []byte, opts db.WriteOptions) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return db.ErrClosed
	}
	if d.readOnly {
		return db.ErrReadOnly
	}
	return translate(d.db.Delete(key, d.writeOptions(opts)))
}

// Write replays the recorded operations into a pebble batch and applies it atomically
func (d *pebbleDB) Write(batch *db.Batch, opts db.WriteOptions) error {
	ops, err := batch.Ops()
	if err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return db.ErrClosed
	}
	if d.readOnly {
		return db.ErrReadOnly
	}

	pb := d.db.NewBatch()
	defer pb.Close()

	for _, op := range ops {
		switch op.Kind {
		case db.OpPut:
			err = pb.Set(op.Key, op.Value, nil)
		case db.OpDelete:
			err = pb.Delete(op.Key, nil)
		default:
			err = fmt.Errorf("unknown batch operation %s", op.Kind)
		}
		if err != nil {
			return err
		}
	}
	return translate(d.db.Apply(pb, d.writeOptions(opts)))
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (d *pebbleDB) Get(key []byte, opts db.ReadOptions) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, db.ErrClosed
	}

	var (
		value  []byte
		closer io.Closer
		err    error
	)
	if opts.Snapshot != nil {
		s, err := d.ownSnapshot(opts.Snapshot)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return nil, db.ErrClosed
		}
		value, closer, err = s.snap.Get(key)
		if err != nil {
			return nil, translate(err)
		}
	} else {
		value, closer, err = d.db.Get(key)
		if err != nil {
			return nil, translate(err)
		}
	}
	defer closer.Close()

	// the returned slice is only valid until closer is closed
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// KeyMayExist answers with a full point lookup. pebble's bloom filters are
// not exposed, so a false result is exact.
func (d *pebbleDB) KeyMayExist(key []byte) bool {
	_, err := d.Get(key, db.ReadOptions{})
	return !errors.Is(err, db.ErrNotFound)
}

func (d *pebbleDB) NewIterator(opts db.ReadOptions) (db.Iterator, error) {
	var s *snapshot
	if opts.Snapshot != nil {
		var err error
		if s, err = d.ownSnapshot(opts.Snapshot); err != nil {
			return nil, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, db.ErrClosed
	}

	var (
		pit *pebble.Iterator
		err error
	)
	if s != nil {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, db.ErrClosed
		}
		pit, err = s.snap.NewIter(nil)
		s.mu.Unlock()
	} else {
		pit, err = d.db.NewIter(nil)
	}
	if err != nil {
		return nil, translate(err)
	}

	it := &iterator{db: d, iter: pit}
	d.iters[it] = struct{}{}
	return it, nil
}

func (d *pebbleDB) NewSnapshot() (db.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, db.ErrClosed
	}

	s := &snapshot{db: d, snap: d.db.NewSnapshot()}
	d.snaps[s] = struct{}{}
	return s, nil
}

// ownSnapshot checks that snap was created by this database
func (d *pebbleDB) ownSnapshot(snap db.Snapshot) (*snapshot, error) {
	s, ok := snap.(*snapshot)
	if !ok || s.db != d {
		return nil, errors.New("snapshot belongs to a different database")
	}
	return s, nil
}

func (d *pebbleDB) ApproximateSize(start, limit []byte) (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return 0, db.ErrClosed
	}
	size, err := d.db.EstimateDiskUsage(start, limit)
	return size, translate(err)
}

func (d *pebbleDB) Name() string {
	return d.path
}

// --------------------------------------------------------------------------
// Close
// --------------------------------------------------------------------------

// Close closes all iterators and snapshots still open on the database,
// then the database itself. Closing twice returns db.ErrClosed.
func (d *pebbleDB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return db.ErrClosed
	}
	d.closed = true

	var errs []error
	if n := len(d.iters) + len(d.snaps); n > 0 {
		Logger.Warningf("closing database %s with %d open iterators and snapshots", d.path, n)
	}
	for it := range d.iters {
		errs = append(errs, it.release())
	}
	for s := range d.snaps {
		errs = append(errs, s.release())
	}
	d.iters, d.snaps = nil, nil

	errs = append(errs, d.db.Close())
	Logger.Infof("closed database %s", d.path)
	return multierr.Combine(errs...)
}
