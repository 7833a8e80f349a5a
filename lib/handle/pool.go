package handle

import (
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"
)

// Pool keeps track of the Contexts of all workers of a process.
// It is safe for concurrent use; each Context is only ever used by its own worker.
type Pool struct {
	opts     ContextOptions
	contexts *xsync.MapOf[ContextID, *Context]
	closed   atomic.Bool
}

// NewPool creates a Pool whose contexts are created with opts
func NewPool(opts *ContextOptions) *Pool {
	p := &Pool{
		contexts: xsync.NewMapOf[ContextID, *Context](),
	}
	if opts != nil {
		p.opts = *opts
	}
	return p
}

// New creates and tracks a Context with a fresh id
func (p *Pool) New() (*Context, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("handle pool is closed")
	}
	c := NewContext(&p.opts)
	p.contexts.Store(c.id, c)
	return c, nil
}

// Get returns the Context with the given id, creating it on first use
func (p *Pool) Get(id ContextID) (*Context, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("handle pool is closed")
	}
	c, _ := p.contexts.LoadOrCompute(id, func() *Context {
		return newContext(id, &p.opts)
	})
	return c, nil
}

// Release tears down the Context with the given id and forgets it.
// Releasing an unknown id is a no-op.
func (p *Pool) Release(id ContextID) error {
	c, ok := p.contexts.LoadAndDelete(id)
	if !ok {
		return nil
	}
	return c.Teardown()
}

// Run executes fn with a new Context and tears the Context down when fn
// returns or panics. Teardown errors are combined with the error of fn.
func (p *Pool) Run(fn func(c *Context) error) (err error) {
	c, err := p.New()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, p.Release(c.id))
	}()
	return fn(c)
}

// Len returns the number of live contexts
func (p *Pool) Len() int {
	return p.contexts.Size()
}

// Close tears down all contexts. Afterward no new contexts can be created.
func (p *Pool) Close() error {
	p.closed.Store(true)

	var ids []ContextID
	p.contexts.Range(func(id ContextID, _ *Context) bool {
		ids = append(ids, id)
		return true
	})

	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, p.Release(id))
	}
	return errs
}
