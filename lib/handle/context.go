package handle

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ValentinKolb/hKV/lib/common"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/multierr"
)

var Logger = logger.GetLogger(common.LoggerHandle)

// ContextOptions configure the behaviour of a Context
type ContextOptions struct {
	// AllowOrphans lets a database be removed while iterators or snapshots
	// created from it are still registered. Teardown still releases the
	// dependents first.
	AllowOrphans bool
}

// Context is the per-worker handle registry together with its allocator.
//
// All resources registered in a Context are owned by it until they are
// removed again. A Context must be torn down when the worker it belongs to
// exits; afterward every lookup fails and no new handle can be registered.
type Context struct {
	id   ContextID
	opts ContextOptions

	// mu guards counters, entries and closed. Allocation and registration
	// happen under the same lock so that a failed registration never
	// consumes a counter value.
	mu       sync.Mutex
	counters [numKinds]uint64
	entries  map[Handle]*Resource
	closed   bool
}

// NewContext creates an empty Context with a fresh random id
func NewContext(opts *ContextOptions) *Context {
	return newContext(ContextID(uuid.NewString()), opts)
}

func newContext(id ContextID, opts *ContextOptions) *Context {
	c := &Context{
		id:      id,
		entries: make(map[Handle]*Resource),
	}
	if opts != nil {
		c.opts = *opts
	}
	contextsActive.Inc()
	Logger.Debugf("context %s created", id)
	return c
}

// ID returns the id of the context
func (c *Context) ID() ContextID {
	return c.id
}

// --------------------------------------------------------------------------
// Allocation and Registration
// --------------------------------------------------------------------------

// Allocate returns the next handle for the kind and advances its counter.
// The handle is not registered.
func (c *Context) Allocate(kind Kind) (Handle, error) {
	if !kind.valid() {
		return NoHandle, Errorf(RetCInvalidArgument, "unknown resource kind %d", kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	h := formatHandle(kind, c.counters[kind])
	c.counters[kind]++
	return h, nil
}

// Register stores r under the given handle.
// The resource's Owner is set to this context.
func (c *Context) Register(h Handle, r *Resource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(h, r)
}

// register does the work of Register, c.mu must be held
func (c *Context) register(h Handle, r *Resource) error {
	if c.closed {
		return Errorf(RetCInvalidArgument, "context %s is closed", c.id)
	}
	if r == nil || r.Value == nil || !r.Kind.valid() {
		return Errorf(RetCInvalidArgument, "cannot register empty resource as %s", h)
	}
	if _, exists := c.entries[h]; exists {
		return Errorf(RetCDuplicateHandle, "handle %s is already registered", h)
	}

	// every resource this one depends on has to be live in this context
	deps := r.deps()
	for _, dep := range deps {
		if _, ok := c.entries[dep]; !ok {
			return Errorf(RetCInvalidHandle, "invalid handle %s", dep)
		}
	}
	for _, dep := range deps {
		c.entries[dep].dependents++
	}

	r.Owner = c.id
	r.dependents = 0
	c.entries[h] = r
	allocatedTotal[r.Kind].Inc()

	Logger.Debugf("registered %s %s in context %s", r.Kind, h, c.id)
	return nil
}

// Insert allocates a handle for the kind and registers value under it in
// one step. On failure no counter value is consumed and nothing is stored;
// ownership of value stays with the caller.
//
// origin names the database an iterator or snapshot is created from and
// pinned names the snapshot an iterator reads through. Both may be NoHandle.
func (c *Context) Insert(kind Kind, value io.Closer, origin, pinned Handle) (Handle, error) {
	if !kind.valid() {
		return NoHandle, Errorf(RetCInvalidArgument, "unknown resource kind %d", kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	h := formatHandle(kind, c.counters[kind])
	err := c.register(h, &Resource{
		Kind:   kind,
		Value:  value,
		Origin: origin,
		Pinned: pinned,
	})
	if err != nil {
		return NoHandle, err
	}
	c.counters[kind]++
	return h, nil
}

// --------------------------------------------------------------------------
// Lookup
// --------------------------------------------------------------------------

// Lookup returns the resource registered under h
func (c *Context) Lookup(h Handle) (*Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.entries[h]
	if !ok {
		return nil, Errorf(RetCInvalidHandle, "invalid handle %s", h)
	}
	return r, nil
}

// LookupKind returns the resource registered under h if it is of the given kind
func (c *Context) LookupKind(h Handle, kind Kind) (*Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.entries[h]
	if !ok || r.Kind != kind {
		return nil, Errorf(RetCInvalidHandle, "invalid %s handle %s", kind, h)
	}
	return r, nil
}

// Dependents returns the number of live resources depending on h
func (c *Context) Dependents(h Handle) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.entries[h]
	if !ok {
		return 0, Errorf(RetCInvalidHandle, "invalid handle %s", h)
	}
	return r.dependents, nil
}

// Len returns the number of live handles
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Handles returns all live handles in teardown order
func (c *Context) Handles() []Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return orderedHandles(c.entries)
}

// Closed reports whether the context was torn down
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// --------------------------------------------------------------------------
// Removal
// --------------------------------------------------------------------------

// Unregister removes h without closing its resource
func (c *Context) Unregister(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.entries[h]
	if !ok {
		return Errorf(RetCInvalidHandle, "invalid handle %s", h)
	}
	_, err := c.remove(h, r)
	return err
}

// Remove unregisters the resource under h and hands it to the caller, who
// becomes responsible for closing it. h must be of the given kind.
func (c *Context) Remove(h Handle, kind Kind) (*Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.entries[h]
	if !ok || r.Kind != kind {
		return nil, Errorf(RetCInvalidHandle, "invalid %s handle %s", kind, h)
	}
	return c.remove(h, r)
}

// RemoveDependent works like Remove but additionally requires the resource
// to have been created from the database origin.
func (c *Context) RemoveDependent(h Handle, kind Kind, origin Handle) (*Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.entries[h]
	if !ok || r.Kind != kind {
		return nil, Errorf(RetCInvalidHandle, "invalid %s handle %s", kind, h)
	}
	if r.Origin != origin {
		return nil, Errorf(RetCInvalidArgument, "%s %s was not created from %s", kind, h, origin)
	}
	return c.remove(h, r)
}

// remove deletes the entry of r, c.mu must be held
func (c *Context) remove(h Handle, r *Resource) (*Resource, error) {
	if r.dependents > 0 && !c.opts.AllowOrphans {
		return nil, Errorf(RetCDependentsOpen, "%s %s still has %d open dependents", r.Kind, h, r.dependents)
	}
	for _, dep := range r.deps() {
		if d, ok := c.entries[dep]; ok {
			d.dependents--
		}
	}
	delete(c.entries, h)
	releasedTotal[r.Kind].Inc()

	Logger.Debugf("removed %s %s from context %s", r.Kind, h, c.id)
	return r, nil
}

// --------------------------------------------------------------------------
// Teardown
// --------------------------------------------------------------------------

// Teardown closes every resource still registered, iterators first and
// databases last, and marks the context closed. It continues past close
// errors and returns all of them combined. The registry is empty afterward.
// Calling Teardown more than once is a no-op.
func (c *Context) Teardown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	entries := c.entries
	c.entries = make(map[Handle]*Resource)
	c.mu.Unlock()

	contextsActive.Dec()

	var errs error
	handles := orderedHandles(entries)
	for _, h := range handles {
		r := entries[h]
		if err := closeResource(r); err != nil {
			Logger.Warningf("context %s: failed to close %s %s: %v", c.id, r.Kind, h, err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", h, err))
		}
		releasedTotal[r.Kind].Inc()
	}

	if len(handles) > 0 {
		Logger.Infof("context %s torn down, released %d handles", c.id, len(handles))
	}
	return errs
}

// closeResource closes r.Value, turning a panic of the native close into an error
func closeResource(r *Resource) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while closing: %v", p)
		}
	}()
	return r.Value.Close()
}

// orderedHandles sorts the handles of entries by teardown order of their
// kind and by allocation order within a kind
func orderedHandles(entries map[Handle]*Resource) []Handle {
	var rank [numKinds]int
	for i, kind := range Kinds {
		rank[kind] = i
	}

	handles := make([]Handle, 0, len(entries))
	for h := range entries {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		ki, ni, _ := ParseHandle(string(handles[i]))
		kj, nj, _ := ParseHandle(string(handles[j]))
		ri, rj := rank[entries[handles[i]].Kind], rank[entries[handles[j]].Kind]
		if ri != rj {
			return ri < rj
		}
		if ki == kj && ni != nj {
			return ni < nj
		}
		return handles[i] < handles[j]
	})
	return handles
}
