package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/hKV/lib/common"
	"github.com/ValentinKolb/hKV/lib/db"
	"github.com/ValentinKolb/hKV/lib/handle"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger(common.LoggerLifecycle)

// ReadOptions control a single Get
type ReadOptions struct {
	FillCache bool
	// Snapshot is the handle of a snapshot of the same database, or handle.NoHandle
	Snapshot handle.Handle
}

// IteratorOptions control NewIterator
type IteratorOptions struct {
	// Snapshot is the handle of a snapshot of the same database, or handle.NoHandle
	Snapshot handle.Handle
}

// Controller runs the lifecycle of every resource of one Context.
//
// All handle-taking methods resolve the handle in the Context, call the
// engine outside the registry lock and translate failures into
// *handle.Error values. Nothing is retried.
type Controller struct {
	ctx     *handle.Context
	engine  db.Engine
	metrics metrics.Registry
}

// New creates a Controller for the resources of ctx
func New(ctx *handle.Context, engine db.Engine) *Controller {
	return &Controller{
		ctx:     ctx,
		engine:  engine,
		metrics: metrics.NewRegistry(),
	}
}

// Context returns the handle context of the controller
func (c *Controller) Context() *handle.Context {
	return c.ctx
}

// Metrics returns the registry holding the engine call timers
func (c *Controller) Metrics() metrics.Registry {
	return c.metrics
}

// WriteMetrics writes the current engine call timers to w
func (c *Controller) WriteMetrics(w io.Writer) {
	metrics.WriteOnce(c.metrics, w)
}

// timed records the duration of an engine call under engine.<op>
func (c *Controller) timed(op string, start time.Time) {
	metrics.GetOrRegisterTimer("engine."+op, c.metrics).UpdateSince(start)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func requireKey(key []byte, what string) error {
	if len(key) == 0 {
		return handle.Errorf(handle.RetCInvalidArgument, "%s is empty", what)
	}
	return nil
}

func engineError(err error, format string, args ...interface{}) error {
	return handle.WrapError(handle.RetCEngineError, err, fmt.Sprintf(format, args...))
}

func (c *Controller) database(h handle.Handle) (db.DB, error) {
	r, err := c.ctx.LookupKind(h, handle.KindDatabase)
	if err != nil {
		return nil, err
	}
	return r.Value.(db.DB), nil
}

func (c *Controller) iterator(h handle.Handle) (db.Iterator, error) {
	r, err := c.ctx.LookupKind(h, handle.KindIterator)
	if err != nil {
		return nil, err
	}
	return r.Value.(db.Iterator), nil
}

func (c *Controller) batch(h handle.Handle) (*db.Batch, error) {
	r, err := c.ctx.LookupKind(h, handle.KindWriteBatch)
	if err != nil {
		return nil, err
	}
	return r.Value.(*db.Batch), nil
}

// snapshotOf resolves a snapshot handle and checks it was created from dbh
func (c *Controller) snapshotOf(snap, dbh handle.Handle) (db.Snapshot, error) {
	r, err := c.ctx.LookupKind(snap, handle.KindSnapshot)
	if err != nil {
		return nil, err
	}
	if r.Origin != dbh {
		return nil, handle.Errorf(handle.RetCInvalidArgument, "snapshot %s was not created from %s", snap, dbh)
	}
	return r.Value.(db.Snapshot), nil
}

// register inserts a freshly created native object.
// If the registry refuses it the object is closed again.
func (c *Controller) register(kind handle.Kind, value io.Closer, origin, pinned handle.Handle) (handle.Handle, error) {
	h, err := c.ctx.Insert(kind, value, origin, pinned)
	if err != nil {
		if closeErr := value.Close(); closeErr != nil {
			Logger.Warningf("failed to close unregistered %s: %v", kind, closeErr)
		}
		return handle.NoHandle, err
	}
	return h, nil
}

// --------------------------------------------------------------------------
// Engine Operations
// --------------------------------------------------------------------------

// Open opens the database at path and registers it
func (c *Controller) Open(path string, opts db.Options) (handle.Handle, error) {
	if path == "" {
		return handle.NoHandle, handle.NewError(handle.RetCInvalidArgument, "path is empty")
	}
	if err := opts.Validate(); err != nil {
		return handle.NoHandle, handle.WrapError(handle.RetCInvalidArgument, err, "invalid open options")
	}

	start := time.Now()
	database, err := c.engine.Open(path, opts)
	c.timed("open", start)
	if err != nil {
		return handle.NoHandle, engineError(err, "open %s failed", path)
	}

	h, err := c.register(handle.KindDatabase, database, handle.NoHandle, handle.NoHandle)
	if err != nil {
		return handle.NoHandle, err
	}
	Logger.Infof("opened %s as %s", path, h)
	return h, nil
}

// Repair repairs the database at path, it must not be open
func (c *Controller) Repair(path string) error {
	if path == "" {
		return handle.NewError(handle.RetCInvalidArgument, "path is empty")
	}
	defer c.timed("repair", time.Now())
	if err := c.engine.Repair(path); err != nil {
		return engineError(err, "repair %s failed", path)
	}
	return nil
}

// Destroy removes the database at path, it must not be open
func (c *Controller) Destroy(path string) error {
	if path == "" {
		return handle.NewError(handle.RetCInvalidArgument, "path is empty")
	}
	defer c.timed("destroy", time.Now())
	if err := c.engine.Destroy(path); err != nil {
		return engineError(err, "destroy %s failed", path)
	}
	return nil
}

// Version returns the engine version
func (c *Controller) Version() db.Version {
	return c.engine.Version()
}

// --------------------------------------------------------------------------
// Database Operations
// --------------------------------------------------------------------------

// Get returns the value of key. A missing key is an EngineError.
func (c *Controller) Get(dbh handle.Handle, key []byte, opts ReadOptions) ([]byte, error) {
	database, err := c.database(dbh)
	if err != nil {
		return nil, err
	}
	if err := requireKey(key, "key"); err != nil {
		return nil, err
	}

	ro := db.ReadOptions{FillCache: opts.FillCache}
	if opts.Snapshot != handle.NoHandle {
		if ro.Snapshot, err = c.snapshotOf(opts.Snapshot, dbh); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	value, err := database.Get(key, ro)
	c.timed("get", start)
	if err != nil {
		return nil, engineError(err, "get failed")
	}
	return value, nil
}

// Put stores value under key
func (c *Controller) Put(dbh handle.Handle, key, value []byte, opts db.WriteOptions) error {
	database, err := c.database(dbh)
	if err != nil {
		return err
	}
	if err := requireKey(key, "key"); err != nil {
		return err
	}
	if err := requireKey(value, "value"); err != nil {
		return err
	}

	defer c.timed("put", time.Now())
	if err := database.Put(key, value, opts); err != nil {
		return engineError(err, "put failed")
	}
	return nil
}

// Delete removes key
func (c *Controller) Delete(dbh handle.Handle, key []byte, opts db.WriteOptions) error {
	database, err := c.database(dbh)
	if err != nil {
		return err
	}
	if err := requireKey(key, "key"); err != nil {
		return err
	}

	defer c.timed("delete", time.Now())
	if err := database.Delete(key, opts); err != nil {
		return engineError(err, "delete failed")
	}
	return nil
}

// KeyMayExist reports whether key may be present in the database
func (c *Controller) KeyMayExist(dbh handle.Handle, key []byte) (bool, error) {
	database, err := c.database(dbh)
	if err != nil {
		return false, err
	}
	if err := requireKey(key, "key"); err != nil {
		return false, err
	}

	defer c.timed("exists", time.Now())
	return database.KeyMayExist(key), nil
}

// Write atomically applies the batch to the database. The batch stays open.
func (c *Controller) Write(dbh, bat handle.Handle, opts db.WriteOptions) error {
	database, err := c.database(dbh)
	if err != nil {
		return err
	}
	batch, err := c.batch(bat)
	if err != nil {
		return err
	}

	defer c.timed("write", time.Now())
	if err := database.Write(batch, opts); err != nil {
		return engineError(err, "write of %s failed", bat)
	}
	metrics.GetOrRegisterHistogram("engine.write.bytes", c.metrics, metrics.NewUniformSample(1028)).Update(int64(batch.Size()))
	return nil
}

// ApproximateSize estimates the disk usage of the keys in [start, limit)
func (c *Controller) ApproximateSize(dbh handle.Handle, start, limit []byte) (uint64, error) {
	database, err := c.database(dbh)
	if err != nil {
		return 0, err
	}
	if err := requireKey(start, "start"); err != nil {
		return 0, err
	}
	if err := requireKey(limit, "limit"); err != nil {
		return 0, err
	}

	defer c.timed("approximate_size", time.Now())
	size, err := database.ApproximateSize(start, limit)
	if err != nil {
		return 0, engineError(err, "size estimation failed")
	}
	return size, nil
}

// Name returns the path the database was opened with
func (c *Controller) Name(dbh handle.Handle) (string, error) {
	database, err := c.database(dbh)
	if err != nil {
		return "", err
	}
	return database.Name(), nil
}

// Property returns an engine property of the database
func (c *Controller) Property(dbh handle.Handle, name string) (string, error) {
	database, err := c.database(dbh)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", handle.NewError(handle.RetCInvalidArgument, "property is empty")
	}

	value, ok := database.Property(name)
	if !ok {
		return "", handle.Errorf(handle.RetCUnknownProperty, "%s is not a valid property", name)
	}
	return value, nil
}

// --------------------------------------------------------------------------
// Close
// --------------------------------------------------------------------------

// Close closes a database, iterator or batch handle.
// The handle is invalid afterward even if the engine reports an error while
// releasing the native object. Snapshots are closed with CloseSnapshot.
func (c *Controller) Close(h handle.Handle) error {
	r, err := c.ctx.Lookup(h)
	if err != nil {
		return err
	}
	if r.Kind == handle.KindSnapshot {
		return handle.Errorf(handle.RetCInvalidArgument, "snapshot %s must be closed together with its database", h)
	}

	r, err = c.ctx.Remove(h, r.Kind)
	if err != nil {
		return err
	}
	return c.release(h, r)
}

// release closes a removed resource
func (c *Controller) release(h handle.Handle, r *handle.Resource) error {
	defer c.timed("close", time.Now())
	if err := r.Value.Close(); err != nil && !errors.Is(err, db.ErrClosed) {
		return engineError(err, "close of %s failed", h)
	}
	Logger.Debugf("closed %s %s", r.Kind, h)
	return nil
}

// Teardown force-closes every resource of the context
func (c *Controller) Teardown() error {
	return c.ctx.Teardown()
}
