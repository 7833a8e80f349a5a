// Package db provides a standardized interface for embedded, ordered
// key-value storage engines. It defines the Engine and DB interfaces that
// the handle layer brokers access to, while abstracting implementation
// details of the concrete engine.
//
// The package focuses on:
//   - A unified interface for reads, writes, iteration and snapshots
//   - An engine independent write batch
//   - Validated open options shared by all engines
//
// Key Components:
//
//   - Engine Interface: The process-wide entry point of an engine. It opens
//     database instances and offers path based operations (Repair, Destroy)
//     as well as version reporting.
//
//   - DB Interface: An open database. It provides Get, Put, Delete,
//     KeyMayExist, atomic batch application (Write), iterators, snapshots,
//     size estimation and engine properties.
//
//   - Iterator and Snapshot: Native engine objects with their own lifetime.
//     Both must be closed before the database that created them.
//
//   - Batch: A recorded list of Put and Delete operations. A batch is not
//     bound to a database, it can be applied to any database (and more
//     than once) with DB.Write.
//
//   - Options: The open options (create_if_missing, error_if_exists,
//     compression, ...). Options.Set parses the textual form used by
//     scripting hosts and Options.Validate checks value ranges.
//
// Note on errors:
//
// Engines wrap their native errors. Missing keys are always reported as
// ErrNotFound, so that callers can match them with errors.Is regardless of
// the engine.
//
// Related Packages:
//
// The engines/pebble package (github.com/ValentinKolb/hKV/lib/db/engines/pebble)
// implements the interfaces on top of the Pebble LSM engine.
//
// The testing package (github.com/ValentinKolb/hKV/lib/db/testing) provides
// standardized tests and benchmarks for Engine implementations.
//   - RunEngineTests: Runs a standardized test suite to validate implementations
//   - RunEngineBenchmarks: Provides performance benchmarks for comparing implementations
package db
