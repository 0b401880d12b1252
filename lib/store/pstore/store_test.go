package pstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ValentinKolb/tally/lib/codec"
	"github.com/ValentinKolb/tally/lib/db"
	"github.com/ValentinKolb/tally/lib/db/engines/bolt"
	"github.com/ValentinKolb/tally/lib/db/engines/memory"
	"github.com/ValentinKolb/tally/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a factory per engine, each creating a fresh database
func backends(t *testing.T) map[string]store.DBFactory {
	return map[string]store.DBFactory{
		"memory": func() db.KVDB {
			return memory.NewMemoryDB()
		},
		"bolt": func() db.KVDB {
			opts := bolt.DefaultOptions(filepath.Join(t.TempDir(), "tally.db"))
			opts.NoSync = true
			return bolt.NewBoltDB(opts)
		},
	}
}

func newStore[V any](t *testing.T, factory store.DBFactory, c codec.ICodec[V]) store.IStore[V] {
	t.Helper()
	s := NewPersistentStore[V](factory, c)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Unload() })
	return s
}

type report struct {
	Signal string            `json:"signal"`
	Count  int               `json:"count"`
	Labels map[string]string `json:"labels"`
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			buffers := newStore(t, factory, codec.NewBytesCodec())
			require.NoError(t, buffers.Set(ctx, "buf", []byte{0, 1, 2, 3}))
			buf, ok, err := buffers.Get(ctx, "buf")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte{0, 1, 2, 3}, buf)

			strings := newStore(t, factory, codec.NewJSONCodec[string]())
			require.NoError(t, strings.Set(ctx, "str", "hello"))
			str, _, err := strings.Get(ctx, "str")
			require.NoError(t, err)
			assert.Equal(t, "hello", str)

			numbers := newStore(t, factory, codec.NewJSONCodec[float64]())
			require.NoError(t, numbers.Set(ctx, "num", 3.5))
			num, _, err := numbers.Get(ctx, "num")
			require.NoError(t, err)
			assert.Equal(t, 3.5, num)

			in := report{Signal: "req", Count: 3, Labels: map[string]string{"host": "a"}}
			objects := newStore(t, factory, codec.NewGOBCodec[report]())
			require.NoError(t, objects.Set(ctx, "obj", in))
			out, _, err := objects.Get(ctx, "obj")
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestEmptyState(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, factory, codec.NewJSONCodec[int]())

			n, err := s.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{}, keys)

			values, err := s.Values(ctx)
			require.NoError(t, err)
			assert.Empty(t, values)

			has, err := s.Has(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, has)

			v, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Zero(t, v)
		})
	}
}

func TestIdempotentInit(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewPersistentStore[int](factory, codec.NewJSONCodec[int]())
			defer s.Unload()

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, s.Init(ctx))
				}()
			}
			wg.Wait()

			require.NoError(t, s.Set(ctx, "a", 1))
			require.NoError(t, s.Init(ctx))

			entries, err := s.Entries(ctx)
			require.NoError(t, err)
			assert.Equal(t, []store.Entry[int]{{Key: "a", Value: 1}}, entries)
		})
	}
}

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewPersistentStore[int](factory, codec.NewJSONCodec[int]())

			err := s.Set(ctx, "a", 1)
			assert.ErrorIs(t, err, store.ErrNotInitialized)
			_, _, err = s.Get(ctx, "a")
			assert.ErrorIs(t, err, store.ErrNotInitialized)
			_, err = s.Keys(ctx)
			assert.ErrorIs(t, err, store.ErrNotInitialized)

			var storeErr *store.Error
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, store.RetCNotInitialized, storeErr.Code)

			// unloading a store that was never initialized is a no-op
			assert.NoError(t, s.Unload())

			require.NoError(t, s.Init(ctx))
			require.NoError(t, s.Set(ctx, "a", 1))
			require.NoError(t, s.Unload())

			_, err = s.Size(ctx)
			assert.ErrorIs(t, err, store.ErrNotInitialized)
		})
	}
}

func TestBulkOperations(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, factory, codec.NewJSONCodec[int]())
			require.NoError(t, s.Set(ctx, "c", 3))

			m := store.NewOrderedMap[int]().Set("b", 2).Set("a", 1)
			require.NoError(t, s.BulkSetFromMap(ctx, m))

			entries, err := s.Entries(ctx)
			require.NoError(t, err)
			assert.Equal(t, []store.Entry[int]{{Key: "a", Value: 1}, {Key: "b", Value: 2}, {Key: "c", Value: 3}}, entries)

			values, err := s.Values(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int{1, 2, 3}, values)

			require.NoError(t, s.BulkDelete(ctx, "a", "missing", "c"))
			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, keys)

			require.NoError(t, s.BulkSetFromMap(ctx, nil))
			require.NoError(t, s.BulkDelete(ctx))

			require.NoError(t, s.Clear(ctx))
			n, err := s.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestInvalidInput(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			channels := newStore(t, factory, codec.NewJSONCodec[chan int]())
			err := channels.Set(ctx, "ch", make(chan int))
			assert.ErrorIs(t, err, store.ErrInvalidValue)

			m := store.NewOrderedMap[chan int]().Set("a", nil).Set("b", make(chan int))
			assert.ErrorIs(t, channels.BulkSetFromMap(ctx, m), store.ErrInvalidValue)

			// nothing of the failed bulk write was applied
			n, err := channels.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			ints := newStore(t, factory, codec.NewJSONCodec[int]())
			assert.ErrorIs(t, ints.Set(ctx, "", 1), store.ErrInvalidKey)
			assert.ErrorIs(t, ints.Delete(ctx, ""), store.ErrInvalidKey)
		})
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, factory, codec.NewJSONCodec[int]())

			err := s.Set(ctx, "a", 1)
			assert.ErrorIs(t, err, store.ErrBackendUnavailable)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestDestroy(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, factory, codec.NewJSONCodec[int]())
			require.NoError(t, s.Set(ctx, "a", 1))

			require.NoError(t, s.Destroy(ctx))
			_, err := s.Size(ctx)
			assert.ErrorIs(t, err, store.ErrNotInitialized)

			require.NoError(t, s.Init(ctx))
			n, err := s.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

// TestDurability checks that the bolt engine keeps data across Unload/Init
// and across store instances, while Destroy erases it.
func TestDurability(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tally.db")
	factory := func() db.KVDB {
		return bolt.NewBoltDB(&bolt.Options{Path: path, Bucket: "counters"})
	}

	first := NewPersistentStore[uint64](factory, codec.NewJSONCodec[uint64]())
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.Set(ctx, "signal", 7))
	require.NoError(t, first.Unload())

	second := NewPersistentStore[uint64](factory, codec.NewJSONCodec[uint64]())
	require.NoError(t, second.Init(ctx))
	v, ok, err := second.Get(ctx, "signal")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), v)
	require.NoError(t, second.Destroy(ctx))

	third := NewPersistentStore[uint64](factory, codec.NewJSONCodec[uint64]())
	require.NoError(t, third.Init(ctx))
	defer third.Unload()
	n, err := third.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// TestCodecMismatch checks that bytes that do not decode surface as invalid value
func TestCodecMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tally.db")
	factory := func() db.KVDB {
		return bolt.NewBoltDB(&bolt.Options{Path: path})
	}

	raw := NewPersistentStore[[]byte](factory, codec.NewBytesCodec())
	require.NoError(t, raw.Init(ctx))
	require.NoError(t, raw.Set(ctx, "broken", []byte("{not json")))
	require.NoError(t, raw.Unload())

	typed := NewPersistentStore[int](factory, codec.NewJSONCodec[int]())
	require.NoError(t, typed.Init(ctx))
	defer typed.Unload()

	_, ok, err := typed.Get(ctx, "broken")
	assert.ErrorIs(t, err, store.ErrInvalidValue)
	assert.False(t, ok)

	_, err = typed.Entries(ctx)
	assert.ErrorIs(t, err, store.ErrInvalidValue)

	// existence does not depend on the value
	has, err := typed.Has(ctx, "broken")
	require.NoError(t, err)
	assert.True(t, has)
}

// TestBackendEquivalence runs the same typed operations on both engines and
// compares every observable result.
func TestBackendEquivalence(t *testing.T) {
	ctx := context.Background()
	type snapshot struct {
		Entries []store.Entry[report]
		Size    int
		HasA    bool
	}

	run := func(s store.IStore[report]) []snapshot {
		var out []snapshot
		take := func() {
			entries, err := s.Entries(ctx)
			require.NoError(t, err)
			n, err := s.Size(ctx)
			require.NoError(t, err)
			has, err := s.Has(ctx, "a")
			require.NoError(t, err)
			out = append(out, snapshot{entries, n, has})
		}

		take()
		require.NoError(t, s.Set(ctx, "b", report{Signal: "b", Count: 1}))
		take()
		require.NoError(t, s.BulkSetFromMap(ctx, store.NewOrderedMap[report]().
			Set("a", report{Signal: "a"}).
			Set("c", report{Signal: "c", Labels: map[string]string{"k": "v"}})))
		take()
		require.NoError(t, s.Delete(ctx, "b"))
		require.NoError(t, s.Delete(ctx, "b"))
		take()
		require.NoError(t, s.Set(ctx, "a", report{Signal: "a", Count: 2}))
		take()
		require.NoError(t, s.BulkDelete(ctx, "a", "zzz"))
		take()
		require.NoError(t, s.Clear(ctx))
		take()
		return out
	}

	factories := backends(t)
	memoryResults := run(newStore(t, factories["memory"], codec.NewJSONCodec[report]()))
	boltResults := run(newStore(t, factories["bolt"], codec.NewJSONCodec[report]()))
	assert.Equal(t, memoryResults, boltResults)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, func() db.KVDB { return memory.NewMemoryDB() }, codec.NewJSONCodec[int]())

	ops := metrics.GetOrCreateCounter(`tally_store_ops_total{op="set",backend="memory"}`)
	errs := metrics.GetOrCreateCounter(`tally_store_errors_total{op="set",backend="memory"}`)
	opsBefore, errsBefore := ops.Get(), errs.Get()

	require.NoError(t, s.Set(ctx, "a", 1))
	assert.Error(t, s.Set(ctx, "", 1))

	assert.Equal(t, opsBefore+2, ops.Get())
	assert.Equal(t, errsBefore+1, errs.Get())
}

func TestInfo(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, factory, codec.NewJSONCodec[int]())
			require.NoError(t, s.Set(context.Background(), "a", 1))
			info := s.Info()
			assert.Equal(t, db.Implementation(name), info.DbType)
			assert.Equal(t, 1, info.Keys)
		})
	}
}

// failingClose wraps a database whose first Close fails
type failingClose struct {
	db.KVDB
	failed bool
}

func (f *failingClose) Close() error {
	if !f.failed {
		f.failed = true
		return errors.New("disk detached")
	}
	return f.KVDB.Close()
}

func TestUnloadFailureKeepsStoreReady(t *testing.T) {
	ctx := context.Background()
	s := NewPersistentStore[string](func() db.KVDB {
		return &failingClose{KVDB: memory.NewMemoryDB()}
	}, codec.NewJSONCodec[string]())
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Set(ctx, "k", "v"))

	err := s.Unload()
	require.ErrorIs(t, err, store.ErrBackendUnavailable)

	// still usable, the database was not released
	n, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Unload())
	_, err = s.Size(ctx)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}
