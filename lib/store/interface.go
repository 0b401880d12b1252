package store

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/tally/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// Entry is a typed key-value pair as returned by IStore.Entries.
type Entry[V any] struct {
	Key   string
	Value V
}

// IStore is the generic interface for interacting with a persistent map.
// It is the only type the rest of the system depends on; which engine is in effect is invisible to callers.
//
// Init must complete before any other operation, otherwise the operation fails with a *Error with code RetCNotInitialized.
// All errors returned by the methods are of type *Error (nil on success).
// No method retries, retry policy belongs to the caller.
type IStore[V any] interface {
	// Init prepares the underlying engine. Repeated calls are safe and settle to the same ready state.
	Init(ctx context.Context) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(ctx context.Context, key string) (value V, loaded bool, err error)
	// Set inserts or overwrites the value for a key.
	Set(ctx context.Context, key string, value V) (err error)
	// BulkSetFromMap writes all entries of m (in insertion order) as a single operation.
	BulkSetFromMap(ctx context.Context, m *OrderedMap[V]) (err error)
	// Has returns whether a key exists, independent of its value.
	Has(ctx context.Context, key string) (loaded bool, err error)
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) (err error)
	// BulkDelete removes all given keys as a single operation. Missing keys are ignored.
	BulkDelete(ctx context.Context, keys ...string) (err error)
	// Clear removes all keys.
	Clear(ctx context.Context) (err error)
	// Size returns the number of keys.
	Size(ctx context.Context) (n int, err error)
	// Keys returns a snapshot of all keys in ascending order.
	Keys(ctx context.Context) (keys []string, err error)
	// Values returns a snapshot of all values, ordered by key.
	Values(ctx context.Context) (values []V, err error)
	// Entries returns a snapshot of all key-value pairs, ordered by key.
	Entries(ctx context.Context) (entries []Entry[V], err error)
	// Unload releases in-process resources without deleting persisted data.
	Unload() (err error)
	// Destroy unloads the store and irreversibly erases all persisted data.
	Destroy(ctx context.Context) (err error)
	// Info returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	Info() (info db.DatabaseInfo)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and the underlying cause.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message.
	Cause error   // The underlying error (may be nil)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("StoreError (code %s): %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause, so errors.Is and errors.As see through the Error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
// This makes the sentinel errors below usable with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new StoreError with the given code and message wrapping cause.
func WrapError(code RetCode, msg string, cause error) *Error {
	return &Error{
		Code:  code,
		Msg:   msg,
		Cause: cause,
	}
}

// Sentinels for errors.Is, matched by code only.
var (
	ErrInternal           = NewError(RetCInternalError, "internal error")
	ErrBackendUnavailable = NewError(RetCBackendUnavailable, "backend unavailable")
	ErrInvalidValue       = NewError(RetCInvalidValue, "invalid value")
	ErrNotInitialized     = NewError(RetCNotInitialized, "store not initialized")
	ErrInvalidKey         = NewError(RetCInvalidKey, "invalid key")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess            RetCode = iota // 0: Command executed successfully.
	RetCInternalError                     // 1: Command failed due to an internal error.
	RetCBackendUnavailable                // 2: The engine could not be opened, read or written.
	RetCInvalidValue                      // 3: The value cannot be represented by the codec.
	RetCNotInitialized                    // 4: The store was used before Init or after Unload.
	RetCInvalidKey                        // 5: The key is empty.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCBackendUnavailable:
		return "BackendUnavailable"
	case RetCInvalidValue:
		return "InvalidValue"
	case RetCNotInitialized:
		return "NotInitialized"
	case RetCInvalidKey:
		return "InvalidKey"
	default:
		return "Unknown"
	}
}
