package handle

import (
	"io"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Resource Kinds
// --------------------------------------------------------------------------

// Kind is the type of native engine object a handle refers to
type Kind uint8

const (
	KindDatabase Kind = iota
	KindIterator
	KindWriteBatch
	KindSnapshot

	numKinds = 4
)

// Kinds lists all kinds in teardown order: dependents before the
// databases they reference.
var Kinds = [numKinds]Kind{KindIterator, KindSnapshot, KindWriteBatch, KindDatabase}

// Prefix returns the handle prefix of the kind
func (k Kind) Prefix() string {
	switch k {
	case KindDatabase:
		return "db"
	case KindIterator:
		return "itr"
	case KindWriteBatch:
		return "bat"
	case KindSnapshot:
		return "snap"
	default:
		return "unknown"
	}
}

func (k Kind) String() string {
	switch k {
	case KindDatabase:
		return "db"
	case KindIterator:
		return "iterator"
	case KindWriteBatch:
		return "batch"
	case KindSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

func (k Kind) valid() bool {
	return k < numKinds
}

// --------------------------------------------------------------------------
// Handles
// --------------------------------------------------------------------------

// Handle is the opaque string identifier of a registered resource.
// It has the form <prefix><n> where n is a per-kind, per-context counter.
type Handle string

// NoHandle is the empty handle, used where a dependency is optional
const NoHandle Handle = ""

// formatHandle builds the handle string for the n-th resource of a kind
func formatHandle(kind Kind, n uint64) Handle {
	return Handle(kind.Prefix() + strconv.FormatUint(n, 10))
}

// ParseHandle splits a handle into kind and counter.
// The boolean is false for strings that cannot have been produced by an allocator.
func ParseHandle(s string) (Kind, uint64, bool) {
	// "snap" must be tried before shorter prefixes could match
	for _, kind := range [...]Kind{KindSnapshot, KindDatabase, KindIterator, KindWriteBatch} {
		rest, found := strings.CutPrefix(s, kind.Prefix())
		if !found || rest == "" {
			continue
		}
		// no sign, no leading zeros
		if rest[0] < '0' || rest[0] > '9' || (len(rest) > 1 && rest[0] == '0') {
			return 0, 0, false
		}
		n, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return kind, n, true
	}
	return 0, 0, false
}

func (h Handle) String() string {
	return string(h)
}

// --------------------------------------------------------------------------
// Resources
// --------------------------------------------------------------------------

// ContextID identifies the Context owning a resource
type ContextID string

// Resource is a native engine object registered under a handle.
// The Context exclusively owns Value until the resource is removed, at
// which point ownership moves to the caller that closes it.
type Resource struct {
	Kind  Kind
	Value io.Closer
	Owner ContextID

	// Origin is the database an iterator or snapshot was created from.
	Origin Handle
	// Pinned is the snapshot an iterator reads through.
	Pinned Handle

	// dependents counts live resources that name this one as Origin or Pinned
	dependents int
}

// deps returns the handles this resource depends on
func (r *Resource) deps() []Handle {
	var deps []Handle
	if r.Origin != NoHandle {
		deps = append(deps, r.Origin)
	}
	if r.Pinned != NoHandle {
		deps = append(deps, r.Pinned)
	}
	return deps
}
