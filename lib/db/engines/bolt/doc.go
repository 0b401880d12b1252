// Package bolt implements the durable db.KVDB engine on top of bbolt
// (go.etcd.io/bbolt), a transactional, single file, on-disk key-value store.
//
// Each database instance addresses one bucket (the "table") of one bbolt file,
// so several tables can share a file. Every KVDB operation runs as exactly one
// bbolt transaction: reads use View, writes use Update. BulkSet and BulkDelete
// apply all of their entries inside one Update transaction and are therefore
// atomic: either every entry is applied or none is.
//
// Lifecycle:
//
//   - Open opens the file (waiting at most Options.Timeout for the file lock)
//     and creates the bucket if it does not exist yet. Opening an open
//     database is a no-op.
//   - Close releases the bucket. The file and its lock are released together
//     with the last open bucket of the file. All committed data is kept and
//     visible to the next Open, also from another process run.
//   - Destroy deletes the bucket and closes the file. The file itself is kept
//     because other buckets may live in it.
//
// Values returned by Get, Values and Entries are copied out of the
// transaction, so they stay valid after it ends and may be modified freely.
// Binary values survive a round trip byte for byte.
//
// Note: bbolt takes an exclusive lock on the file. Within one process all
// buckets of a file share a single reference counted handle, so they can be
// open at the same time. A second process opening the same file blocks until
// Open times out. Two instances addressing the same table are not supported.
//
// Usage Example:
//
//	database := bolt.NewBoltDB(bolt.DefaultOptions("/var/lib/tally/tally.db"))
//	if err := database.Open(ctx); err != nil {
//		return err
//	}
//	defer database.Close()
//
//	err := database.Set(ctx, "signal:42", []byte{0, 1, 2, 3})
package bolt
