package bolt

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ValentinKolb/tally/lib/common"
	bolt "go.etcd.io/bbolt"
)

// bbolt holds an exclusive file lock for as long as a file is open, so a second
// bolt.Open on the same file in the same process would block until its timeout.
// Engines addressing different buckets of one file share a reference counted
// handle instead. The options of the first opener apply to the shared handle.

type sharedHandle struct {
	db   *bolt.DB
	refs int
}

var handles = struct {
	mu sync.Mutex
	m  map[string]*sharedHandle
}{m: make(map[string]*sharedHandle)}

// handleKey normalizes path so that different spellings of a file share a handle
func handleKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// acquireHandle opens the file described by opts or returns the already open handle
func acquireHandle(opts Options) (*bolt.DB, error) {
	key := handleKey(opts.Path)

	handles.mu.Lock()
	defer handles.mu.Unlock()

	if h, ok := handles.m[key]; ok {
		h.refs++
		return h.db, nil
	}

	handle, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
		NoSync:  opts.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", opts.Path, err)
	}
	handles.m[key] = &sharedHandle{db: handle, refs: 1}
	common.GetLogger(common.LogBolt).Debugf("opened file %s", opts.Path)
	return handle, nil
}

// releaseHandle drops one reference and closes the file with the last one
func releaseHandle(path string) error {
	key := handleKey(path)

	handles.mu.Lock()
	defer handles.mu.Unlock()

	h, ok := handles.m[key]
	if !ok {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	delete(handles.m, key)
	if err := h.db.Close(); err != nil {
		return fmt.Errorf("bolt: close %s: %w", path, err)
	}
	common.GetLogger(common.LogBolt).Debugf("closed file %s", path)
	return nil
}
