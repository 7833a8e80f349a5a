package db

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchRecordsInOrder(t *testing.T) {
	b := NewBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Delete([]byte("b")))
	require.NoError(t, b.Put([]byte("c"), []byte("3")))

	ops, err := b.Ops()
	require.NoError(t, err)
	require.Len(t, ops, 3)

	assert.Equal(t, OpPut, ops[0].Kind)
	assert.Equal(t, []byte("a"), ops[0].Key)
	assert.Equal(t, []byte("1"), ops[0].Value)
	assert.Equal(t, OpDelete, ops[1].Kind)
	assert.Nil(t, ops[1].Value)
	assert.Equal(t, OpPut, ops[2].Kind)

	assert.Equal(t, 3, b.Count())
	assert.Equal(t, 5, b.Size())
}

func TestBatchCopiesInput(t *testing.T) {
	b := NewBatch()
	key := []byte("key")
	value := []byte("value")
	require.NoError(t, b.Put(key, value))

	key[0] = 'X'
	value[0] = 'X'

	ops, err := b.Ops()
	require.NoError(t, err)
	assert.Equal(t, []byte("key"), ops[0].Key)
	assert.Equal(t, []byte("value"), ops[0].Value)
}

func TestBatchClose(t *testing.T) {
	b := NewBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Put([]byte("a"), []byte("1")), ErrBatchClosed)
	assert.ErrorIs(t, b.Delete([]byte("a")), ErrBatchClosed)
	_, err := b.Ops()
	assert.ErrorIs(t, err, ErrBatchClosed)

	// double close is fine
	assert.NoError(t, b.Close())
}

func TestBatchClear(t *testing.T) {
	b := NewBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	b.Clear()
	assert.Zero(t, b.Count())
	require.NoError(t, b.Put([]byte("b"), []byte("2")))
	assert.Equal(t, 1, b.Count())
}

func TestBatchConcurrentRecord(t *testing.T) {
	b := NewBatch()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.Put([]byte("k"), []byte("v"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, b.Count())
}
