package lifecycle

import (
	"github.com/ValentinKolb/hKV/lib/db"
	"github.com/ValentinKolb/hKV/lib/handle"
)

// NewBatch creates an empty write batch. Batches belong to no database.
func (c *Controller) NewBatch() (handle.Handle, error) {
	return c.register(handle.KindWriteBatch, db.NewBatch(), handle.NoHandle, handle.NoHandle)
}

// BatchPut records a put in the batch
func (c *Controller) BatchPut(bat handle.Handle, key, value []byte) error {
	batch, err := c.batch(bat)
	if err != nil {
		return err
	}
	if err := requireKey(key, "key"); err != nil {
		return err
	}
	if err := requireKey(value, "value"); err != nil {
		return err
	}
	if err := batch.Put(key, value); err != nil {
		return engineError(err, "batch put failed")
	}
	return nil
}

// BatchDelete records a delete in the batch
func (c *Controller) BatchDelete(bat handle.Handle, key []byte) error {
	batch, err := c.batch(bat)
	if err != nil {
		return err
	}
	if err := requireKey(key, "key"); err != nil {
		return err
	}
	if err := batch.Delete(key); err != nil {
		return engineError(err, "batch delete failed")
	}
	return nil
}

// BatchCount returns the number of operations recorded in the batch
func (c *Controller) BatchCount(bat handle.Handle) (int, error) {
	batch, err := c.batch(bat)
	if err != nil {
		return 0, err
	}
	return batch.Count(), nil
}

// BatchClear drops the recorded operations, the batch stays open
func (c *Controller) BatchClear(bat handle.Handle) error {
	batch, err := c.batch(bat)
	if err != nil {
		return err
	}
	batch.Clear()
	return nil
}
