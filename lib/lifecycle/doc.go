// Package lifecycle drives the Open -> Closed state machines of the four
// resource kinds (database, iterator, write batch, snapshot) on top of a
// handle.Context and a db.Engine.
//
// A Controller is bound to exactly one Context. Creating operations call the
// engine and register the native object in one step, so a handle is only
// ever returned for an object the Context owns. Closing operations first
// remove the handle (refusing while dependents are open) and then release
// the native object outside the registry lock.
//
// Argument rules:
//   - keys and put values must not be empty, paths must not be empty
//   - Key, Value, Next and Prev require a positioned iterator
//   - snapshots passed to Get or NewIterator must stem from the same database
//   - a snapshot is closed with CloseSnapshot, naming its database
//
// Every engine call is timed in a go-metrics registry under engine.<op>.
package lifecycle
