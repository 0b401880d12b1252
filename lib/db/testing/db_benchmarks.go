package testing

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/tally/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, open(b, factory))
		})

		b.Run("SetLargeValue", func(b *testing.B) {
			benchmarkSetLargeValue(b, open(b, factory))
		})

		b.Run("BulkSet", func(b *testing.B) {
			benchmarkBulkSet(b, open(b, factory))
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, open(b, factory))
		})

		b.Run("Has(not)", func(b *testing.B) {
			benchmarkHasNot(b, open(b, factory))
		})

		b.Run("Delete", func(b *testing.B) {
			benchmarkDelete(b, open(b, factory))
		})

		b.Run("Entries", func(b *testing.B) {
			benchmarkEntries(b, open(b, factory))
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, open(b, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// prefill writes n keys of the form key-<i>
func prefill(b *testing.B, database db.KVDB, n int) {
	b.Helper()
	entries := make([]db.Entry, n)
	for i := range entries {
		entries[i] = db.Entry{Key: fmt.Sprintf("key-%d", i), Value: []byte(fmt.Sprintf("value-%d", i))}
	}
	if err := database.BulkSet(context.Background(), entries); err != nil {
		b.Fatalf("prefill failed: %v", err)
	}
}

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {
	ctx := context.Background()
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			if err := database.Set(ctx, fmt.Sprintf("key-%d", i%1000), []byte("value")); err != nil {
				b.Errorf("Set failed: %v", err)
			}
		}
	})
}

// Benchmark for Set operation with a 64KB value
func benchmarkSetLargeValue(b *testing.B, database db.KVDB) {
	ctx := context.Background()
	largeValue := make([]byte, 64*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}

	b.SetBytes(int64(len(largeValue)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := database.Set(ctx, fmt.Sprintf("large-%d", i%100), largeValue); err != nil {
			b.Fatalf("Set failed: %v", err)
		}
	}
}

// Benchmark for BulkSet with 100 entries per call
func benchmarkBulkSet(b *testing.B, database db.KVDB) {
	ctx := context.Background()
	entries := make([]db.Entry, 100)
	for i := range entries {
		entries[i] = db.Entry{Key: fmt.Sprintf("bulk-%d", i), Value: []byte("value")}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := database.BulkSet(ctx, entries); err != nil {
			b.Fatalf("BulkSet failed: %v", err)
		}
	}
}

// Benchmark for Get operation on existing keys
func benchmarkGet(b *testing.B, database db.KVDB) {
	ctx := context.Background()
	prefill(b, database, 1000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			if _, _, err := database.Get(ctx, fmt.Sprintf("key-%d", rnd.Intn(1000))); err != nil {
				b.Errorf("Get failed: %v", err)
			}
		}
	})
}

// Benchmark for Has operation on missing keys
func benchmarkHasNot(b *testing.B, database db.KVDB) {
	ctx := context.Background()
	prefill(b, database, 1000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := database.Has(ctx, "missing"); err != nil {
				b.Errorf("Has failed: %v", err)
			}
		}
	})
}

// Benchmark for Delete operation (set + delete pairs)
func benchmarkDelete(b *testing.B, database db.KVDB) {
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("del-%d", i%100)
		if err := database.Set(ctx, key, []byte("value")); err != nil {
			b.Fatalf("Set failed: %v", err)
		}
		if err := database.Delete(ctx, key); err != nil {
			b.Fatalf("Delete failed: %v", err)
		}
	}
}

// Benchmark for a full snapshot of 1000 entries
func benchmarkEntries(b *testing.B, database db.KVDB) {
	ctx := context.Background()
	prefill(b, database, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.Entries(ctx); err != nil {
			b.Fatalf("Entries failed: %v", err)
		}
	}
}

// Benchmark for a read heavy mix (80% Get, 15% Set, 5% Delete)
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	ctx := context.Background()
	prefill(b, database, 1000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := fmt.Sprintf("key-%d", rnd.Intn(1000))
			var err error
			switch p := rnd.Intn(100); {
			case p < 80:
				_, _, err = database.Get(ctx, key)
			case p < 95:
				err = database.Set(ctx, key, []byte("value"))
			default:
				err = database.Delete(ctx, key)
			}
			if err != nil {
				b.Errorf("operation failed: %v", err)
			}
		}
	})
}
