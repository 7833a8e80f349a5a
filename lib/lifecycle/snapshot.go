package lifecycle

import (
	"time"

	"github.com/ValentinKolb/hKV/lib/handle"
)

// NewSnapshot creates a snapshot of the current state of the database
func (c *Controller) NewSnapshot(dbh handle.Handle) (handle.Handle, error) {
	database, err := c.database(dbh)
	if err != nil {
		return handle.NoHandle, err
	}

	start := time.Now()
	snap, err := database.NewSnapshot()
	c.timed("snapshot", start)
	if err != nil {
		return handle.NoHandle, engineError(err, "snapshot creation failed")
	}
	return c.register(handle.KindSnapshot, snap, dbh, handle.NoHandle)
}

// CloseSnapshot closes a snapshot of the database dbh
func (c *Controller) CloseSnapshot(snap, dbh handle.Handle) error {
	if _, err := c.database(dbh); err != nil {
		return err
	}
	r, err := c.ctx.RemoveDependent(snap, handle.KindSnapshot, dbh)
	if err != nil {
		return err
	}
	return c.release(snap, r)
}
