package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ValentinKolb/tally/lib/common"
	"github.com/ValentinKolb/tally/lib/db"
	"github.com/ValentinKolb/tally/lib/db/util"
	bolt "go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultBucket   = "tally"
	defaultTimeout  = 1 * time.Second
	defaultFileMode = 0o600
)

// --------------------------------------------------------------------------
// Core bolt database structure
// --------------------------------------------------------------------------

// boltImpl implements db.KVDB on top of a single bucket of a bbolt file
type boltImpl struct {
	opts   Options
	bucket []byte

	mu sync.RWMutex // guards handle; held for reading during every transaction
	handle *bolt.DB // nil while closed
}

// Options configures the bolt engine
type Options struct {
	Path     string        // Path of the database file
	Bucket   string        // Bucket (table) holding the entries ("" = "tally")
	Timeout  time.Duration // How long to wait for the file lock (0 = 1 sec)
	FileMode os.FileMode   // Mode used when creating the file (0 = 0600)
	NoSync   bool          // Skip fsync after commits (faster, unsafe on power loss)
}

// DefaultOptions returns the default options for the database at path
func DefaultOptions(path string) *Options {
	return &Options{
		Path:     path,
		Bucket:   defaultBucket,
		Timeout:  defaultTimeout,
		FileMode: defaultFileMode,
	}
}

// NewBoltDB creates a new, not yet opened, bolt backed database.
func NewBoltDB(opts *Options) db.KVDB {
	o := *opts
	if o.Bucket == "" {
		o.Bucket = defaultBucket
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.FileMode == 0 {
		o.FileMode = defaultFileMode
	}
	return &boltImpl{
		opts:   o,
		bucket: []byte(o.Bucket),
	}
}

// --------------------------------------------------------------------------
// Transaction Helpers
// --------------------------------------------------------------------------

// view runs fn in a read-only transaction on the bucket
func (b *boltImpl) view(ctx context.Context, fn func(bkt *bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.handle == nil {
		return db.ErrClosed
	}
	return b.handle.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(b.bucket)
		if bkt == nil {
			return fmt.Errorf("bolt: bucket %q not found", b.bucket)
		}
		return fn(bkt)
	})
}

// update runs fn in a read-write transaction on the bucket.
// If fn returns an error the transaction is rolled back.
func (b *boltImpl) update(ctx context.Context, fn func(tx *bolt.Tx, bkt *bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.handle == nil {
		return db.ErrClosed
	}
	return b.handle.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(b.bucket)
		if bkt == nil {
			return fmt.Errorf("bolt: bucket %q not found", b.bucket)
		}
		return fn(tx, bkt)
	})
}

// lookup returns the value for key inside a transaction.
// Seek is used instead of Get so that empty values are found reliably.
func lookup(bkt *bolt.Bucket, key []byte) ([]byte, bool) {
	k, v := bkt.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) || v == nil {
		return nil, false
	}
	return v, true
}

// copyValue copies memory owned by a transaction, never returning nil
func copyValue(v []byte) []byte {
	return append(make([]byte, 0, len(v)), v...)
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Lifecycle
// --------------------------------------------------------------------------

func (b *boltImpl) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != nil {
		return nil
	}

	handle, err := acquireHandle(b.opts)
	if err != nil {
		return err
	}

	if err := handle.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	}); err != nil {
		_ = releaseHandle(b.opts.Path)
		return fmt.Errorf("bolt: create bucket %q: %w", b.bucket, err)
	}

	b.handle = handle
	common.GetLogger(common.LogBolt).Debugf("opened bucket %q in %s", b.bucket, b.opts.Path)
	return nil
}

func (b *boltImpl) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

// closeLocked releases the handle, the caller must hold the write lock
func (b *boltImpl) closeLocked() error {
	if b.handle == nil {
		return nil
	}
	b.handle = nil
	common.GetLogger(common.LogBolt).Debugf("closed bucket %q in %s", b.bucket, b.opts.Path)
	return releaseHandle(b.opts.Path)
}

func (b *boltImpl) Destroy(ctx context.Context) error {
	if err := b.Open(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle == nil {
		return db.ErrClosed
	}

	err := b.handle.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(b.bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt: delete bucket %q: %w", b.bucket, err)
	}

	common.GetLogger(common.LogBolt).Debugf("destroyed bucket %q in %s", b.bucket, b.opts.Path)
	return b.closeLocked()
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Write Operations
// --------------------------------------------------------------------------

func (b *boltImpl) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return db.ErrEmptyKey
	}
	return b.update(ctx, func(_ *bolt.Tx, bkt *bolt.Bucket) error {
		return bkt.Put([]byte(key), copyValue(value))
	})
}

func (b *boltImpl) BulkSet(ctx context.Context, entries []db.Entry) error {
	for _, e := range entries {
		if e.Key == "" {
			return db.ErrEmptyKey
		}
	}
	return b.update(ctx, func(_ *bolt.Tx, bkt *bolt.Bucket) error {
		for _, e := range entries {
			if err := bkt.Put([]byte(e.Key), copyValue(e.Value)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltImpl) Delete(ctx context.Context, key string) error {
	if key == "" {
		return db.ErrEmptyKey
	}
	return b.update(ctx, func(_ *bolt.Tx, bkt *bolt.Bucket) error {
		return bkt.Delete([]byte(key))
	})
}

func (b *boltImpl) BulkDelete(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if k == "" {
			return db.ErrEmptyKey
		}
	}
	return b.update(ctx, func(_ *bolt.Tx, bkt *bolt.Bucket) error {
		for _, k := range keys {
			if err := bkt.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltImpl) Clear(ctx context.Context) error {
	return b.update(ctx, func(tx *bolt.Tx, _ *bolt.Bucket) error {
		if err := tx.DeleteBucket(b.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(b.bucket)
		return err
	})
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Query Operations
// --------------------------------------------------------------------------

func (b *boltImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		out   []byte
		found bool
	)
	err := b.view(ctx, func(bkt *bolt.Bucket) error {
		if v, ok := lookup(bkt, []byte(key)); ok {
			out, found = copyValue(v), true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}

func (b *boltImpl) Has(ctx context.Context, key string) (bool, error) {
	var found bool
	err := b.view(ctx, func(bkt *bolt.Bucket) error {
		_, found = lookup(bkt, []byte(key))
		return nil
	})
	return found, err
}

func (b *boltImpl) Size(ctx context.Context) (int, error) {
	var n int
	err := b.view(ctx, func(bkt *bolt.Bucket) error {
		n = bkt.Stats().KeyN
		return nil
	})
	return n, err
}

// scan walks the bucket in key order
func (b *boltImpl) scan(ctx context.Context, fn func(k, v []byte)) error {
	return b.view(ctx, func(bkt *bolt.Bucket) error {
		c := bkt.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if v == nil {
				continue // nested bucket
			}
			fn(k, v)
		}
		return nil
	})
}

func (b *boltImpl) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	if err := b.scan(ctx, func(k, _ []byte) {
		keys = append(keys, string(k))
	}); err != nil {
		return nil, err
	}
	return keys, nil
}

func (b *boltImpl) Values(ctx context.Context) ([][]byte, error) {
	values := make([][]byte, 0)
	if err := b.scan(ctx, func(_, v []byte) {
		values = append(values, copyValue(v))
	}); err != nil {
		return nil, err
	}
	return values, nil
}

func (b *boltImpl) Entries(ctx context.Context) ([]db.Entry, error) {
	entries := make([]db.Entry, 0)
	if err := b.scan(ctx, func(k, v []byte) {
		entries = append(entries, db.Entry{Key: string(k), Value: copyValue(v)})
	}); err != nil {
		return nil, err
	}
	return entries, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the bucket. On a closed database only the
// static fields are filled in.
func (b *boltImpl) GetInfo() db.DatabaseInfo {
	meta := &struct {
		Path          string         `json:"path"`
		Bucket        string         `json:"bucket"`
		Open          bool           `json:"open"`
		FileSizeBytes int64          `json:"file_size_bytes"`
		Depth         int            `json:"depth"`
		ValueSizes    util.SizeStats `json:"value_sizes"`
	}{
		Path:   b.opts.Path,
		Bucket: b.opts.Bucket,
	}

	info := db.DatabaseInfo{
		DbType:   db.ImplBolt,
		Durable:  true,
		Metadata: meta,
	}

	var sizes []int
	err := b.view(context.Background(), func(bkt *bolt.Bucket) error {
		stats := bkt.Stats()
		info.Keys = stats.KeyN
		info.SizeBytes = stats.LeafInuse + stats.BranchInuse
		meta.Depth = stats.Depth
		meta.FileSizeBytes = bkt.Tx().Size()
		return bkt.ForEach(func(_, v []byte) error {
			if v != nil {
				sizes = append(sizes, len(v))
			}
			return nil
		})
	})
	if err == nil {
		meta.Open = true
		meta.ValueSizes = util.NewSizeStats(sizes)
	}
	return info
}
