// Package db provides a standardized interface for the storage engines behind
// tally's persistent map. It defines the byte-level KVDB contract that every
// engine satisfies, so that the typed façade in the store package can run on
// top of any of them without knowing which one is in effect.
//
// The package focuses on:
//   - A unified, context-aware interface for key-value operations
//   - Snapshot enumeration in a deterministic (lexicographic) key order
//   - Standardized metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all engines must satisfy. It
//     covers the lifecycle (Open, Close, Destroy), single and bulk writes
//     (Set, BulkSet, Delete, BulkDelete, Clear), point queries (Get, Has) and
//     full enumeration (Size, Keys, Values, Entries).
//
//   - Implementation Identifiers: The Implementation type provides string
//     constants for the available engines ("bolt" and "memory").
//
//   - Database Information: The DatabaseInfo structure reports key count,
//     estimated size, durability and engine specific metadata.
//
// Note on Equivalence:
//
//	The engines must be observably identical for every operation: the same
//	sequence of calls must produce the same Get, Has, Size, Keys, Values and
//	Entries results on each of them. The only permitted difference is what
//	survives a process restart. The shared suite in the testing package checks
//	this property with RunEquivalenceTests.
//
// Related Packages:
//
// The engines/bolt package provides the durable engine, backed by a bbolt file
// where each table is one bucket. The engines/memory package provides the
// volatile engine, backed by a concurrent in-process map. The testing package
// provides RunKVDBTests, RunEquivalenceTests and RunKVDBBenchmarks.
package db
