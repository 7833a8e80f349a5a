package db

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplPebble Implementation = "pebble"
)

// Version identifies the release of the underlying engine
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Engine-level errors. Implementations wrap their own errors so that
// callers can match them with errors.Is.
var (
	ErrNotFound    = errors.New("db: key not found")
	ErrReadOnly    = errors.New("db: database is read-only")
	ErrClosed      = errors.New("db: database is closed")
	ErrBatchClosed = errors.New("db: batch is closed")
)

// ReadOptions control a single read.
// A nil Snapshot reads the latest committed state.
type ReadOptions struct {
	FillCache bool
	Snapshot  Snapshot
}

// WriteOptions control a single write.
type WriteOptions struct {
	Sync bool
}

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// Engine is the process-wide entry point of an embedded storage engine.
// It opens database instances and offers the operations that work on a
// database path rather than on an open instance.
type Engine interface {
	// Open opens (or creates, depending on opts) the database at path.
	Open(path string, opts Options) (database DB, err error)

	// Repair checks the database at path and tries to bring it into a
	// consistent state. The database must not be open.
	Repair(path string) (err error)

	// Destroy removes the database at path and all of its files.
	// Destroying a path that does not exist is not an error.
	Destroy(path string) (err error)

	// Version returns the version of the engine.
	Version() (version Version)

	// Implementation returns the identifier of the engine.
	Implementation() Implementation
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// DB is an open database instance.
// All methods must be safe for concurrent use.
type DB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts or updates the value for key.
	Put(key, value []byte, opts WriteOptions) (err error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte, opts WriteOptions) (err error)

	// Write atomically applies all operations recorded in batch.
	// The batch is not modified and can be applied again.
	Write(batch *Batch, opts WriteOptions) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns a copy of the value for key.
	// ErrNotFound is returned if the key does not exist.
	Get(key []byte, opts ReadOptions) (value []byte, err error)

	// KeyMayExist reports whether key may be present.
	// It can return true for absent keys but never false for present keys.
	KeyMayExist(key []byte) (ok bool)

	// NewIterator returns an unpositioned iterator over the whole keyspace.
	NewIterator(opts ReadOptions) (it Iterator, err error)

	// NewSnapshot returns a point-in-time view of the database.
	NewSnapshot() (snapshot Snapshot, err error)

	// ApproximateSize estimates the bytes used on disk by keys in [start, limit).
	ApproximateSize(start, limit []byte) (size uint64, err error)

	// Name returns the path the database was opened with.
	Name() (name string)

	// Property returns the value of an engine property.
	// The boolean is false when the engine does not know the property.
	Property(name string) (value string, ok bool)

	// Close releases the database. No other method may be called afterward.
	Close() (err error)
}

// Snapshot is an opaque consistent view of a database.
// Only the database that created a snapshot can read through it.
type Snapshot interface {
	Close() (err error)
}

// Iterator is a cursor over the ordered keyspace of a database.
// Positioning methods never return an error directly; the status of the
// last operation is reported by Error.
type Iterator interface {
	SeekToFirst()
	SeekToLast()
	Seek(key []byte)
	Valid() (ok bool)
	Next()
	Prev()

	// Key and Value return copies and are only meaningful while Valid is true.
	Key() (key []byte)
	Value() (value []byte)

	// Error returns the engine status of the last operation.
	Error() (err error)
	Close() (err error)
}
