package pstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/tally/lib/codec"
	"github.com/ValentinKolb/tally/lib/common"
	"github.com/ValentinKolb/tally/lib/db"
	"github.com/ValentinKolb/tally/lib/store"
	"github.com/VictoriaMetrics/metrics"
)

type lifecycle int

const (
	stateNew lifecycle = iota
	stateReady
	stateUnloaded
)

func (l lifecycle) String() string {
	switch l {
	case stateNew:
		return "new"
	case stateReady:
		return "ready"
	case stateUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

type storeImpl[V any] struct {
	db      db.KVDB
	codec   codec.ICodec[V]
	backend string

	// mu is held for reading by every data operation and for writing by Init, Unload and Destroy,
	// so the engine is never closed under a running operation
	mu    sync.RWMutex
	state lifecycle
}

// NewPersistentStore creates a new persistent map on top of the db created by factory.
// Values are converted to bytes with c. The store exclusively owns the db for its lifetime.
// The returned store must be initialized with Init before use.
func NewPersistentStore[V any](factory store.DBFactory, c codec.ICodec[V]) store.IStore[V] {
	database := factory()
	return &storeImpl[V]{
		db:      database,
		codec:   c,
		backend: string(database.GetInfo().DbType),
		state:   stateNew,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// observe records the outcome and duration of an operation
func (s *storeImpl[V]) observe(op string, start time.Time, err error) {
	labels := fmt.Sprintf(`{op=%q,backend=%q}`, op, s.backend)
	metrics.GetOrCreateCounter("tally_store_ops_total" + labels).Inc()
	metrics.GetOrCreateHistogram("tally_store_op_duration_seconds" + labels).Update(time.Since(start).Seconds())
	if err != nil {
		metrics.GetOrCreateCounter("tally_store_errors_total" + labels).Inc()
	}
}

// engineError converts an error returned by the db into a *store.Error
func (s *storeImpl[V]) engineError(op string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *store.Error
	switch {
	case errors.As(err, &storeErr):
		return storeErr
	case errors.Is(err, db.ErrEmptyKey):
		return store.WrapError(store.RetCInvalidKey, op, err)
	case errors.Is(err, db.ErrClosed):
		return store.WrapError(store.RetCNotInitialized, op, err)
	default:
		common.GetLogger(common.LogStore).Errorf("%s on %s backend failed: %v", op, s.backend, err)
		return store.WrapError(store.RetCBackendUnavailable, op, err)
	}
}

// do runs fn while the store is guaranteed to stay ready
func (s *storeImpl[V]) do(op string, fn func() error) (err error) {
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != stateReady {
		return store.NewError(store.RetCNotInitialized, fmt.Sprintf("%s called on a %s store, call Init first", op, s.state))
	}
	return s.engineError(op, fn())
}

func (s *storeImpl[V]) encode(key string, value V) ([]byte, error) {
	b, err := s.codec.Encode(value)
	if err != nil {
		return nil, store.WrapError(store.RetCInvalidValue, fmt.Sprintf("cannot encode value for key %q with %s", key, s.codec.Name()), err)
	}
	return b, nil
}

func (s *storeImpl[V]) decode(key string, b []byte) (V, error) {
	v, err := s.codec.Decode(b)
	if err != nil {
		return v, store.WrapError(store.RetCInvalidValue, fmt.Sprintf("cannot decode value for key %q with %s", key, s.codec.Name()), err)
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Interface Methods - Lifecycle (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl[V]) Init(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe("init", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateReady {
		return nil
	}
	if err := s.db.Open(ctx); err != nil {
		common.GetLogger(common.LogStore).Errorf("init of %s backend failed: %v", s.backend, err)
		return store.WrapError(store.RetCBackendUnavailable, "init", err)
	}
	s.state = stateReady
	common.GetLogger(common.LogStore).Infof("%s store ready (codec %s)", s.backend, s.codec.Name())
	return nil
}

func (s *storeImpl[V]) Unload() (err error) {
	start := time.Now()
	defer func() { s.observe("unload", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateReady {
		return nil
	}
	// the store stays ready on failure, the caller may retry
	if err := s.db.Close(); err != nil {
		common.GetLogger(common.LogStore).Errorf("failed to close %s store: %v", s.backend, err)
		return store.WrapError(store.RetCBackendUnavailable, "unload", err)
	}
	s.state = stateUnloaded
	common.GetLogger(common.LogStore).Infof("%s store unloaded", s.backend)
	return nil
}

func (s *storeImpl[V]) Destroy(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe("destroy", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Destroy(ctx); err != nil {
		return store.WrapError(store.RetCBackendUnavailable, "destroy", err)
	}
	s.state = stateUnloaded
	common.GetLogger(common.LogStore).Warningf("%s store destroyed, all data erased", s.backend)
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods - Write Operations (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl[V]) Set(ctx context.Context, key string, value V) error {
	return s.do("set", func() error {
		b, err := s.encode(key, value)
		if err != nil {
			return err
		}
		return s.db.Set(ctx, key, b)
	})
}

func (s *storeImpl[V]) BulkSetFromMap(ctx context.Context, m *store.OrderedMap[V]) error {
	return s.do("bulk_set", func() error {
		entries := make([]db.Entry, 0, m.Len())
		var encErr error
		m.Range(func(key string, value V) bool {
			b, err := s.encode(key, value)
			if err != nil {
				encErr = err
				return false
			}
			entries = append(entries, db.Entry{Key: key, Value: b})
			return true
		})
		if encErr != nil {
			return encErr
		}
		return s.db.BulkSet(ctx, entries)
	})
}

func (s *storeImpl[V]) Delete(ctx context.Context, key string) error {
	return s.do("delete", func() error {
		return s.db.Delete(ctx, key)
	})
}

func (s *storeImpl[V]) BulkDelete(ctx context.Context, keys ...string) error {
	return s.do("bulk_delete", func() error {
		return s.db.BulkDelete(ctx, keys)
	})
}

func (s *storeImpl[V]) Clear(ctx context.Context) error {
	return s.do("clear", func() error {
		return s.db.Clear(ctx)
	})
}

// --------------------------------------------------------------------------
// Interface Methods - Query Operations (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var (
		value  V
		loaded bool
	)
	err := s.do("get", func() error {
		b, ok, err := s.db.Get(ctx, key)
		if err != nil || !ok {
			return err
		}
		value, err = s.decode(key, b)
		loaded = err == nil
		return err
	})
	return value, loaded, err
}

func (s *storeImpl[V]) Has(ctx context.Context, key string) (bool, error) {
	var loaded bool
	err := s.do("has", func() (err error) {
		loaded, err = s.db.Has(ctx, key)
		return err
	})
	return loaded, err
}

func (s *storeImpl[V]) Size(ctx context.Context) (int, error) {
	var n int
	err := s.do("size", func() (err error) {
		n, err = s.db.Size(ctx)
		return err
	})
	return n, err
}

func (s *storeImpl[V]) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.do("keys", func() (err error) {
		keys, err = s.db.Keys(ctx)
		return err
	})
	return keys, err
}

func (s *storeImpl[V]) Values(ctx context.Context) ([]V, error) {
	var values []V
	err := s.do("values", func() error {
		entries, err := s.db.Entries(ctx)
		if err != nil {
			return err
		}
		values = make([]V, 0, len(entries))
		for _, e := range entries {
			v, err := s.decode(e.Key, e.Value)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (s *storeImpl[V]) Entries(ctx context.Context) ([]store.Entry[V], error) {
	var entries []store.Entry[V]
	err := s.do("entries", func() error {
		raw, err := s.db.Entries(ctx)
		if err != nil {
			return err
		}
		entries = make([]store.Entry[V], 0, len(raw))
		for _, e := range raw {
			v, err := s.decode(e.Key, e.Value)
			if err != nil {
				return err
			}
			entries = append(entries, store.Entry[V]{Key: e.Key, Value: v})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *storeImpl[V]) Info() db.DatabaseInfo {
	return s.db.GetInfo()
}
