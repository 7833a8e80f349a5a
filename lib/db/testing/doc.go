// Package testing provides standardised tests and benchmarks for
// storage engines that satisfy the db.Engine interface.
//
// The package contains:
//   - testing: A conformance suite covering open options, reads, writes,
//     batches, iterators, snapshots, close semantics, repair and destroy
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Every test opens its databases below t.TempDir(), so engines only need to
// be able to work on a plain directory path.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.Engine {
//		return NewMyEngine()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunEngineTests(t, "MyEngine", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunEngineBenchmarks(b, "MyEngine", factory)
package testing
