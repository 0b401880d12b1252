package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/tally/lib/common"
	"github.com/ValentinKolb/tally/lib/db"
	"github.com/ValentinKolb/tally/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// memoryImpl implements db.KVDB with a concurrent in-process map
type memoryImpl struct {
	data *xsync.MapOf[string, []byte]
	open atomic.Bool

	// bulk is held on the read side by point reads and single writes, on the write side by
	// bulk writes, Clear and snapshots. No reader observes a half applied bulk operation.
	bulk sync.RWMutex
}

// NewMemoryDB creates a new volatile database. Its contents live as long as the
// returned value and survive Close, but not Destroy.
func NewMemoryDB() db.KVDB {
	return &memoryImpl{
		data: xsync.NewMapOf[string, []byte](),
	}
}

// ready fails if the context is done or the database is not open
func (m *memoryImpl) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.open.Load() {
		return db.ErrClosed
	}
	return nil
}

// copyValue returns a caller owned copy, never nil
func copyValue(v []byte) []byte {
	return append(make([]byte, 0, len(v)), v...)
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Lifecycle
// --------------------------------------------------------------------------

func (m *memoryImpl) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.open.Store(true)
	return nil
}

// Close only marks the database as closed, the contents are kept for the next Open
func (m *memoryImpl) Close() error {
	m.open.Store(false)
	return nil
}

func (m *memoryImpl) Destroy(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.bulk.Lock()
	defer m.bulk.Unlock()
	m.data.Clear()
	m.open.Store(false)
	common.GetLogger(common.LogMemory).Debugf("destroyed volatile database")
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Write Operations
// --------------------------------------------------------------------------

func (m *memoryImpl) Set(ctx context.Context, key string, value []byte) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	if key == "" {
		return db.ErrEmptyKey
	}
	m.bulk.RLock()
	defer m.bulk.RUnlock()
	m.data.Store(key, copyValue(value))
	return nil
}

func (m *memoryImpl) BulkSet(ctx context.Context, entries []db.Entry) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	for _, e := range entries {
		if e.Key == "" {
			return db.ErrEmptyKey
		}
	}
	m.bulk.Lock()
	defer m.bulk.Unlock()
	for _, e := range entries {
		m.data.Store(e.Key, copyValue(e.Value))
	}
	return nil
}

func (m *memoryImpl) Delete(ctx context.Context, key string) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	if key == "" {
		return db.ErrEmptyKey
	}
	m.bulk.RLock()
	defer m.bulk.RUnlock()
	m.data.Delete(key)
	return nil
}

func (m *memoryImpl) BulkDelete(ctx context.Context, keys []string) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	for _, k := range keys {
		if k == "" {
			return db.ErrEmptyKey
		}
	}
	m.bulk.Lock()
	defer m.bulk.Unlock()
	for _, k := range keys {
		m.data.Delete(k)
	}
	return nil
}

func (m *memoryImpl) Clear(ctx context.Context) error {
	if err := m.ready(ctx); err != nil {
		return err
	}
	m.bulk.Lock()
	defer m.bulk.Unlock()
	m.data.Clear()
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Query Operations
// --------------------------------------------------------------------------

func (m *memoryImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := m.ready(ctx); err != nil {
		return nil, false, err
	}
	m.bulk.RLock()
	v, ok := m.data.Load(key)
	m.bulk.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return copyValue(v), true, nil
}

func (m *memoryImpl) Has(ctx context.Context, key string) (bool, error) {
	if err := m.ready(ctx); err != nil {
		return false, err
	}
	m.bulk.RLock()
	defer m.bulk.RUnlock()
	_, ok := m.data.Load(key)
	return ok, nil
}

func (m *memoryImpl) Size(ctx context.Context) (int, error) {
	if err := m.ready(ctx); err != nil {
		return 0, err
	}
	m.bulk.RLock()
	defer m.bulk.RUnlock()
	return m.data.Size(), nil
}

// snapshot copies all entries sorted by key
func (m *memoryImpl) snapshot(ctx context.Context) ([]db.Entry, error) {
	if err := m.ready(ctx); err != nil {
		return nil, err
	}
	m.bulk.Lock()
	entries := make([]db.Entry, 0, m.data.Size())
	m.data.Range(func(k string, v []byte) bool {
		entries = append(entries, db.Entry{Key: k, Value: copyValue(v)})
		return true
	})
	m.bulk.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (m *memoryImpl) Keys(ctx context.Context) ([]string, error) {
	entries, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys, nil
}

func (m *memoryImpl) Values(ctx context.Context) ([][]byte, error) {
	entries, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	values := make([][]byte, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	return values, nil
}

func (m *memoryImpl) Entries(ctx context.Context) ([]db.Entry, error) {
	return m.snapshot(ctx)
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (m *memoryImpl) GetInfo() db.DatabaseInfo {
	var (
		sizes    []int
		keyBytes int
	)
	m.data.Range(func(k string, v []byte) bool {
		keyBytes += len(k)
		sizes = append(sizes, len(v))
		return true
	})
	valueSizes := util.NewSizeStats(sizes)

	meta := &struct {
		Open       bool           `json:"open"`
		ValueSizes util.SizeStats `json:"value_sizes"`
	}{
		Open:       m.open.Load(),
		ValueSizes: valueSizes,
	}

	return db.DatabaseInfo{
		SizeBytes: keyBytes + valueSizes.TotalBytes,
		Keys:      len(sizes),
		DbType:    db.ImplMemory,
		Durable:   false,
		Metadata:  meta,
	}
}
