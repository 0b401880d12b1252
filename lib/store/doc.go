// Package store provides the typed persistent map abstraction used by tally.
// It sits on top of the byte-level db.KVDB engines and adds typed values,
// a lifecycle guard and unified error reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for key-value operations across backends
//   - Pluggable storage backends through the DBFactory pattern
//   - Structured errors that can be matched with errors.Is
//
// Key Components:
//
//   - IStore Interface: The core abstraction for interacting with a persistent
//     map. Values are of a type parameter V; encoding is done by a codec chosen
//     at construction. The same sequence of calls produces the same results on
//     every backend, enumeration is in ascending key order.
//
//   - Error System: Every failure is an *Error carrying a RetCode and, where one
//     exists, the underlying cause. The package level sentinels (ErrNotInitialized,
//     ErrInvalidValue, ErrInvalidKey, ErrBackendUnavailable, ErrInternal) match any
//     *Error with the same code, so callers write errors.Is(err, store.ErrInvalidValue).
//
//   - DBFactory: A function that creates the db.KVDB instance behind a store. The
//     factory decides the backend (durable bolt or volatile memory) and its options.
//
//   - OrderedMap: The insertion ordered input of BulkSetFromMap.
//
// Implementations:
//
//	The pstore package contains the single implementation of IStore. It
//	delegates to the engine returned by the factory, so switching between the
//	durable and the volatile backend never changes application code.
//	Available in the "github.com/ValentinKolb/tally/lib/store/pstore" package.
package store
