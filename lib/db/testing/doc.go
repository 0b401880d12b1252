// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A comprehensive test suite for validating conformance to the KVDB interface contract
//   - equivalence: A randomized comparison that runs the same operations against two implementations
//     and fails on the first observable difference
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(t testing.TB) db.KVDB {
//		return NewMyDatabase(t.TempDir())
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Comparing against the volatile reference engine
//	dbtesting.RunEquivalenceTests(t, "MyDatabase", factory, "Memory", memoryFactory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
