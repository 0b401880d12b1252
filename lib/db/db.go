package db

import (
	"context"
	"errors"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplBolt   Implementation = "bolt"
	ImplMemory Implementation = "memory"
)

// Entry is a single key-value pair as stored by a KVDB.
type Entry struct {
	Key   string
	Value []byte
}

type DatabaseInfo struct {
	SizeBytes int            `json:"size_bytes"`
	Keys      int            `json:"keys"`
	DbType    Implementation `json:"db_type"`
	Durable   bool           `json:"durable"`
	Metadata  interface{}    `json:"metadata"`
}

var (
	// ErrEmptyKey is returned by every write operation that receives an empty key.
	ErrEmptyKey = errors.New("db: key must not be empty")
	// ErrClosed is returned when an operation is issued against a database that is not open.
	ErrClosed = errors.New("db: database is not open")
)

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines the byte-level contract every storage engine implements.
// Values are opaque byte slices, keys are non-empty strings.
// All implementations must return keys, values and entries in ascending
// lexicographic key order, and must return copies that the caller owns.
// A nil value and an empty value are indistinguishable once stored.
//
// Every method that may touch the storage engine accepts a context. If the context
// is already done the call fails with ctx.Err() without touching the engine.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Lifecycle
	// --------------------------------------------------------------------------

	// Open prepares the database. Calling Open on an open database is a no-op.
	Open(ctx context.Context) (err error)

	// Close releases in-process resources. Persisted data is kept.
	Close() (err error)

	// Destroy closes the database and irreversibly erases its data, so that a
	// later Open starts empty.
	Destroy(ctx context.Context) (err error)

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or overwrites the value for key.
	Set(ctx context.Context, key string, value []byte) (err error)

	// BulkSet applies all entries in slice order as a single logical operation.
	BulkSet(ctx context.Context, entries []Entry) (err error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) (err error)

	// BulkDelete removes all keys as a single logical operation. Missing keys are ignored.
	BulkDelete(ctx context.Context, keys []string) (err error)

	// Clear removes all keys.
	Clear(ctx context.Context) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for key. The boolean reports whether the key was found.
	Get(ctx context.Context, key string) (value []byte, loaded bool, err error)

	// Has reports whether key exists, independent of its value.
	Has(ctx context.Context, key string) (loaded bool, err error)

	// Size returns the number of stored keys.
	Size(ctx context.Context) (n int, err error)

	// Keys returns a snapshot of all keys.
	Keys(ctx context.Context) (keys []string, err error)

	// Values returns a snapshot of all values, ordered by key.
	Values(ctx context.Context) (values [][]byte, err error)

	// Entries returns a snapshot of all key-value pairs, ordered by key.
	Entries(ctx context.Context) (entries []Entry, err error)

	// --------------------------------------------------------------------------
	// Metadata
	// --------------------------------------------------------------------------

	// GetInfo returns information about the database.
	// Size values are estimates.
	GetInfo() (info DatabaseInfo)
}
