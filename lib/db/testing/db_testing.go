package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/tally/lib/db"
)

// DBFactory is a function that creates a new, unopened instance of a KVDB implementation.
// It receives the running test so that implementations can allocate temporary resources.
type DBFactory func(t testing.TB) db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("OpenIdempotent", func(t *testing.T) {
			testOpenIdempotent(t, factory(t))
		})

		t.Run("EmptyState", func(t *testing.T) {
			testEmptyState(t, open(t, factory))
		})

		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, open(t, factory))
		})

		t.Run("BinaryRoundTrip", func(t *testing.T) {
			testBinaryRoundTrip(t, open(t, factory))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t, factory))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, open(t, factory))
		})

		t.Run("BulkSet", func(t *testing.T) {
			testBulkSet(t, open(t, factory))
		})

		t.Run("BulkDelete", func(t *testing.T) {
			testBulkDelete(t, open(t, factory))
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, open(t, factory))
		})

		t.Run("Enumeration", func(t *testing.T) {
			testEnumeration(t, open(t, factory))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, open(t, factory))
		})

		t.Run("Context", func(t *testing.T) {
			testContext(t, open(t, factory))
		})

		t.Run("Lifecycle", func(t *testing.T) {
			testLifecycle(t, factory(t))
		})

		t.Run("Concurrency", func(t *testing.T) {
			testConcurrency(t, open(t, factory))
		})

		t.Run("BulkAtomicity", func(t *testing.T) {
			testBulkAtomicity(t, open(t, factory))
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, open(t, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates and opens a database, closing it when the test ends
func open(t testing.TB, factory DBFactory) db.KVDB {
	t.Helper()
	database := factory(t)
	if err := database.Open(context.Background()); err != nil {
		t.Fatalf("Unexpected error during Open: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

// must fails the test if err is not nil
func must(t testing.TB, err error, op string) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error during %s: %v", op, err)
	}
}

func mustSize(t testing.TB, database db.KVDB, expected int) {
	t.Helper()
	n, err := database.Size(context.Background())
	must(t, err, "Size")
	if n != expected {
		t.Errorf("Expected size %d, got %d", expected, n)
	}
}

func mustKeys(t testing.TB, database db.KVDB, expected ...string) {
	t.Helper()
	keys, err := database.Keys(context.Background())
	must(t, err, "Keys")
	if expected == nil {
		expected = []string{}
	}
	if !reflect.DeepEqual(keys, expected) {
		t.Errorf("Expected keys %v, got %v", expected, keys)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testOpenIdempotent(t *testing.T, database db.KVDB) {
	defer database.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		must(t, database.Open(ctx), "Open")
	}
	must(t, database.Set(ctx, "key", []byte("value")), "Set")
	must(t, database.Open(ctx), "Open")

	mustSize(t, database, 1)
	mustKeys(t, database, "key")
}

func testEmptyState(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	mustSize(t, database, 0)
	mustKeys(t, database)

	if has, err := database.Has(ctx, "missing"); err != nil || has {
		t.Errorf("Expected Has to return false on an empty database, got %v (err=%v)", has, err)
	}
	if _, ok, err := database.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("Expected Get to report not found on an empty database, got %v (err=%v)", ok, err)
	}

	values, err := database.Values(ctx)
	must(t, err, "Values")
	if values == nil || len(values) != 0 {
		t.Errorf("Expected empty non-nil values, got %v", values)
	}

	entries, err := database.Entries(ctx)
	must(t, err, "Entries")
	if entries == nil || len(entries) != 0 {
		t.Errorf("Expected empty non-nil entries, got %v", entries)
	}
}

func testSetGet(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	must(t, database.Set(ctx, testKey, testValue1), "Set")

	result, exists, err := database.Get(ctx, testKey)
	must(t, err, "Get")
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	must(t, database.Set(ctx, testKey, testValue2), "Set")

	result, exists, err = database.Get(ctx, testKey)
	must(t, err, "Get")
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists, err = database.Get(ctx, "nonexistent-key")
	must(t, err, "Get")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _, _ := database.Get(ctx, testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _ := database.Get(ctx, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("input")
	must(t, database.Set(ctx, "input-key", input), "Set")
	input[0] = 'X'
	result, _, _ = database.Get(ctx, "input-key")
	if !bytes.Equal(result, []byte("input")) {
		t.Errorf("Set should store a copy of the value, got %s", result)
	}

	mustSize(t, database, 2)
}

func testBinaryRoundTrip(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	small := []byte{0, 1, 2, 3}
	must(t, database.Set(ctx, "small", small), "Set")

	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	must(t, database.Set(ctx, "all-bytes", all), "Set")

	large := make([]byte, 1024*1024)
	for i := range large {
		large[i] = byte(i % 251)
	}
	must(t, database.Set(ctx, "large", large), "Set")

	for key, expected := range map[string][]byte{"small": small, "all-bytes": all, "large": large} {
		result, ok, err := database.Get(ctx, key)
		must(t, err, "Get")
		if !ok {
			t.Errorf("Key %s not found after Set", key)
			continue
		}
		if !bytes.Equal(result, expected) {
			t.Errorf("Binary value mismatch for key %s (len %d vs %d)", key, len(result), len(expected))
		}
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	testKey := "delete-test-key"
	testValue := []byte("delete-test-value")

	must(t, database.Set(ctx, testKey, testValue), "Set")

	_, exists, _ := database.Get(ctx, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	must(t, database.Delete(ctx, testKey), "Delete")

	_, exists, _ = database.Get(ctx, testKey)
	if exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}
	if has, _ := database.Has(ctx, testKey); has {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	if err := database.Delete(ctx, "nonexistent-key"); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}
	mustSize(t, database, 0)
}

func testHas(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	testKey := "has-exists-test-key"

	if has, _ := database.Has(ctx, testKey); has {
		t.Errorf("Expected Has to return false for nonexistent key")
	}

	must(t, database.Set(ctx, testKey, []byte("has-exists-test-value")), "Set")
	if has, _ := database.Has(ctx, testKey); !has {
		t.Errorf("Expected Has to return true after Set")
	}

	// existence is independent of the value content
	must(t, database.Set(ctx, testKey, nil), "Set")
	if has, _ := database.Has(ctx, testKey); !has {
		t.Errorf("Expected Has to return true for a key holding an empty value")
	}
}

func testBulkSet(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	must(t, database.Set(ctx, "c", []byte("3")), "Set")
	must(t, database.Set(ctx, "a", []byte("old")), "Set")

	must(t, database.BulkSet(ctx, []db.Entry{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
		{Key: "b", Value: []byte("22")}, // later entries win
	}), "BulkSet")

	entries, err := database.Entries(ctx)
	must(t, err, "Entries")
	expected := []db.Entry{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("22")},
		{Key: "c", Value: []byte("3")},
	}
	if !reflect.DeepEqual(entries, expected) {
		t.Errorf("Expected entries %v, got %v", expected, entries)
	}

	must(t, database.BulkSet(ctx, nil), "BulkSet")
	mustSize(t, database, 3)

	// a bulk write containing an invalid key must not apply any entry
	err = database.BulkSet(ctx, []db.Entry{{Key: "d", Value: []byte("4")}, {Key: "", Value: []byte("x")}})
	if !errors.Is(err, db.ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey, got %v", err)
	}
	if has, _ := database.Has(ctx, "d"); has {
		t.Errorf("Failed bulk write must not apply entries")
	}
}

func testBulkDelete(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		must(t, database.Set(ctx, fmt.Sprintf("key-%d", i), []byte("v")), "Set")
	}

	must(t, database.BulkDelete(ctx, []string{"key-1", "key-3", "missing", "key-1"}), "BulkDelete")
	mustSize(t, database, 8)

	for _, k := range []string{"key-1", "key-3"} {
		if has, _ := database.Has(ctx, k); has {
			t.Errorf("Expected key %s to be deleted", k)
		}
	}
	if has, _ := database.Has(ctx, "key-2"); !has {
		t.Errorf("BulkDelete must not remove unrelated keys")
	}

	must(t, database.BulkDelete(ctx, nil), "BulkDelete")
	mustSize(t, database, 8)
}

func testClear(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		must(t, database.Set(ctx, fmt.Sprintf("clear-%03d", i), []byte("v")), "Set")
	}
	mustSize(t, database, 100)

	must(t, database.Clear(ctx), "Clear")
	mustSize(t, database, 0)
	mustKeys(t, database)

	// the database stays usable
	must(t, database.Set(ctx, "after", []byte("clear")), "Set")
	mustKeys(t, database, "after")

	must(t, database.Clear(ctx), "Clear")
	must(t, database.Clear(ctx), "Clear")
	mustSize(t, database, 0)
}

func testEnumeration(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	for _, k := range []string{"delta", "alpha", "charlie", "bravo", "Zulu", "alpha2"} {
		must(t, database.Set(ctx, k, []byte("value-"+k)), "Set")
	}

	mustKeys(t, database, "Zulu", "alpha", "alpha2", "bravo", "charlie", "delta")

	values, err := database.Values(ctx)
	must(t, err, "Values")
	expectedValues := [][]byte{
		[]byte("value-Zulu"), []byte("value-alpha"), []byte("value-alpha2"),
		[]byte("value-bravo"), []byte("value-charlie"), []byte("value-delta"),
	}
	if !reflect.DeepEqual(values, expectedValues) {
		t.Errorf("Expected values %q, got %q", expectedValues, values)
	}

	entries, err := database.Entries(ctx)
	must(t, err, "Entries")
	if len(entries) != 6 || entries[0].Key != "Zulu" || entries[5].Key != "delta" {
		t.Errorf("Entries not in key order: %v", entries)
	}

	// snapshots are copies
	entries[0].Value[0] = 'X'
	values[1][0] = 'X'
	v, _, _ := database.Get(ctx, "Zulu")
	if !bytes.Equal(v, []byte("value-Zulu")) {
		t.Errorf("Mutating an entry snapshot changed the stored value: %s", v)
	}
	v, _, _ = database.Get(ctx, "alpha")
	if !bytes.Equal(v, []byte("value-alpha")) {
		t.Errorf("Mutating a values snapshot changed the stored value: %s", v)
	}

	// snapshots do not follow later writes
	must(t, database.Set(ctx, "echo", []byte("value-echo")), "Set")
	if len(entries) != 6 {
		t.Errorf("Snapshot changed after a later write")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	if err := database.Set(ctx, "", []byte("value for empty key")); !errors.Is(err, db.ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey for Set with empty key, got %v", err)
	}
	if err := database.Delete(ctx, ""); !errors.Is(err, db.ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey for Delete with empty key, got %v", err)
	}
	if err := database.BulkDelete(ctx, []string{"a", ""}); !errors.Is(err, db.ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey for BulkDelete with empty key, got %v", err)
	}
	if has, err := database.Has(ctx, ""); err != nil || has {
		t.Errorf("Expected Has(\"\") to be false without error, got %v (err=%v)", has, err)
	}

	emptyValueKey := "empty-value-key"
	must(t, database.Set(ctx, emptyValueKey, []byte{}), "Set")

	result, exists, err := database.Get(ctx, emptyValueKey)
	must(t, err, "Get")
	if !exists {
		t.Errorf("Key for empty value not found after Set")
	} else if result == nil || len(result) != 0 {
		t.Errorf("Expected empty non-nil value, got %#v", result)
	}

	nilValueKey := "nil-value-key"
	must(t, database.Set(ctx, nilValueKey, nil), "Set")

	result, exists, err = database.Get(ctx, nilValueKey)
	must(t, err, "Get")
	if !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	unicodeKey := "ключ/キー/🔑"
	must(t, database.Set(ctx, unicodeKey, []byte("unicode")), "Set")
	if v, ok, _ := database.Get(ctx, unicodeKey); !ok || string(v) != "unicode" {
		t.Errorf("Unicode key not found after Set")
	}

	largeKey := string(bytes.Repeat([]byte("k"), 1000))
	must(t, database.Set(ctx, largeKey, []byte("value for large key")), "Set")
	if v, ok, _ := database.Get(ctx, largeKey); !ok || string(v) != "value for large key" {
		t.Errorf("Large key not found after Set")
	}
}

func testContext(t *testing.T, database db.KVDB) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := database.Set(ctx, "key", []byte("value")); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled for Set, got %v", err)
	}
	if _, _, err := database.Get(ctx, "key"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled for Get, got %v", err)
	}
	if _, err := database.Keys(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled for Keys, got %v", err)
	}

	// nothing was written
	mustSize(t, database, 0)
}

func testLifecycle(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	if err := database.Set(ctx, "key", []byte("value")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed before Open, got %v", err)
	}

	must(t, database.Open(ctx), "Open")
	must(t, database.Set(ctx, "key", []byte("value")), "Set")
	must(t, database.Close(), "Close")
	must(t, database.Close(), "Close")

	if _, _, err := database.Get(ctx, "key"); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}

	// close keeps the data
	must(t, database.Open(ctx), "Open")
	if v, ok, _ := database.Get(ctx, "key"); !ok || string(v) != "value" {
		t.Errorf("Expected key to survive Close/Open, got %q (found=%v)", v, ok)
	}

	// destroy erases it
	must(t, database.Destroy(ctx), "Destroy")
	must(t, database.Open(ctx), "Open")
	mustSize(t, database, 0)
	mustKeys(t, database)

	must(t, database.Destroy(ctx), "Destroy")
	must(t, database.Close(), "Close")
}

func testConcurrency(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	const (
		workers = 8
		perW    = 50
	)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			batch := make([]db.Entry, 0, perW)
			for i := 0; i < perW; i++ {
				key := fmt.Sprintf("w%d-k%03d", w, i)
				if i%2 == 0 {
					if err := database.Set(ctx, key, []byte(key)); err != nil {
						t.Errorf("Unexpected error during Set: %v", err)
					}
				} else {
					batch = append(batch, db.Entry{Key: key, Value: []byte(key)})
				}
				if _, err := database.Keys(ctx); err != nil {
					t.Errorf("Unexpected error during Keys: %v", err)
				}
			}
			if err := database.BulkSet(ctx, batch); err != nil {
				t.Errorf("Unexpected error during BulkSet: %v", err)
			}
		}(w)
	}
	wg.Wait()

	mustSize(t, database, workers*perW)

	entries, err := database.Entries(ctx)
	must(t, err, "Entries")
	for _, e := range entries {
		if e.Key != string(e.Value) {
			t.Errorf("Entry %s holds foreign value %s", e.Key, e.Value)
		}
	}
}

// testBulkAtomicity checks that readers see either none or all entries of a
// bulk write, never a part of it
func testBulkAtomicity(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	const (
		batchSize = 2000
		rounds    = 10
		readers   = 4
	)

	batch := make([]db.Entry, batchSize)
	keys := make([]string, batchSize)
	for i := range batch {
		keys[i] = fmt.Sprintf("bulk-%05d", i)
		batch[i] = db.Entry{Key: keys[i], Value: []byte("v")}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(readers)
	for r := 0; r < readers; r++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				n, err := database.Size(ctx)
				if err != nil {
					t.Errorf("Unexpected error during Size: %v", err)
					return
				}
				if n != 0 && n != batchSize {
					t.Errorf("Size observed a partial bulk write: %d of %d", n, batchSize)
					return
				}
				entries, err := database.Entries(ctx)
				if err != nil {
					t.Errorf("Unexpected error during Entries: %v", err)
					return
				}
				if len(entries) != 0 && len(entries) != batchSize {
					t.Errorf("Entries observed a partial bulk write: %d of %d", len(entries), batchSize)
					return
				}
			}
		}()
	}

	for i := 0; i < rounds; i++ {
		must(t, database.BulkSet(ctx, batch), "BulkSet")
		must(t, database.BulkDelete(ctx, keys), "BulkDelete")
	}
	close(done)
	wg.Wait()

	mustSize(t, database, 0)
}

// testRealisticUsage models the dedup pipeline: counters keyed by signal id
// are read, incremented and written back, results are flushed in bulk.
func testRealisticUsage(t *testing.T, database db.KVDB) {
	ctx := context.Background()

	signals := []string{"req:a", "req:b", "req:a", "evt:x", "req:a", "evt:x"}
	for _, s := range signals {
		v, _, err := database.Get(ctx, s)
		must(t, err, "Get")
		must(t, database.Set(ctx, s, append(v, '+')), "Set")
	}

	entries, err := database.Entries(ctx)
	must(t, err, "Entries")
	expected := []db.Entry{
		{Key: "evt:x", Value: []byte("++")},
		{Key: "req:a", Value: []byte("+++")},
		{Key: "req:b", Value: []byte("+")},
	}
	if !reflect.DeepEqual(entries, expected) {
		t.Errorf("Expected %v, got %v", expected, entries)
	}

	must(t, database.BulkDelete(ctx, []string{"req:a", "req:b"}), "BulkDelete")
	mustKeys(t, database, "evt:x")
}
