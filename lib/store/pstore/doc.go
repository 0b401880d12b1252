// Package pstore implements the persistent map façade (store.IStore) on top of
// any db.KVDB engine. It is the only store implementation; whether data is
// durable or volatile is decided solely by the engine the DBFactory creates.
//
// Responsibilities on top of the engine:
//
//   - Lifecycle guard: the store moves from new to ready on Init and to
//     unloaded on Unload or Destroy. Every data operation on a store that is not
//     ready fails with store.ErrNotInitialized instead of silently doing
//     nothing. Init is idempotent and safe to call concurrently. Lifecycle
//     changes wait for running operations to finish.
//
//   - Typed values: values are encoded with a codec.ICodec before they reach
//     the engine and decoded on the way back. Values the codec cannot represent
//     fail with store.ErrInvalidValue and never reach the engine.
//
//   - Error classification: engine errors are wrapped into *store.Error with a
//     RetCode (backend unavailable, invalid key, not initialized). The original
//     error stays reachable through errors.Is / errors.As. Nothing is retried.
//
//   - Metrics: every operation updates the VictoriaMetrics series
//     tally_store_ops_total, tally_store_errors_total and
//     tally_store_op_duration_seconds, labelled with op and backend.
//
// Usage Example:
//
//	factory := func() db.KVDB { return bolt.NewBoltDB(bolt.DefaultOptions("tally.db")) }
//	counters := pstore.NewPersistentStore[uint64](factory, codec.NewJSONCodec[uint64]())
//	if err := counters.Init(ctx); err != nil {
//		return err
//	}
//	defer counters.Unload()
//
//	n, _, err := counters.Get(ctx, "signal:42")
//	err = counters.Set(ctx, "signal:42", n+1)
package pstore
