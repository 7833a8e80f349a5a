package db

import "sync"

// OpKind is the type of a recorded batch operation
type OpKind uint8

const (
	OpPut OpKind = iota
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "Put"
	case OpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// BatchOp is a single recorded operation
type BatchOp struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// Batch is an engine independent, ordered list of write operations.
// It is not bound to any database; DB.Write translates it into the
// engine's native batch and applies it atomically.
//
// Thread-safety: All methods are thread-safe.
type Batch struct {
	mu     sync.Mutex
	ops    []BatchOp
	size   int
	closed bool
}

// NewBatch creates an empty batch
func NewBatch() *Batch {
	return &Batch{}
}

// Put records an insert or update of key.
// Key and value are copied.
func (b *Batch) Put(key, value []byte) error {
	return b.record(OpPut, key, value)
}

// Delete records the removal of key.
func (b *Batch) Delete(key []byte) error {
	return b.record(OpDelete, key, nil)
}

func (b *Batch) record(kind OpKind, key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBatchClosed
	}

	op := BatchOp{Kind: kind, Key: append([]byte(nil), key...)}
	if kind == OpPut {
		op.Value = append([]byte(nil), value...)
	}
	b.ops = append(b.ops, op)
	b.size += len(op.Key) + len(op.Value)
	return nil
}

// Ops returns a snapshot of the recorded operations in insertion order.
// The returned slices must not be modified.
func (b *Batch) Ops() ([]BatchOp, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBatchClosed
	}
	ops := make([]BatchOp, len(b.ops))
	copy(ops, b.ops)
	return ops, nil
}

// Count returns the number of recorded operations
func (b *Batch) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Size returns the number of key and value bytes recorded
func (b *Batch) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Clear drops all recorded operations but keeps the batch usable
func (b *Batch) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = nil
	b.size = 0
}

// Close discards the batch. Closing twice is a no-op.
func (b *Batch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.ops = nil
	b.size = 0
	return nil
}
