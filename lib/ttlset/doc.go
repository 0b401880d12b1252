// Package ttlset provides a membership set with per item expiry, used to
// suppress duplicate signals inside a time window.
//
// Every call to Add schedules its own removal timer through an IScheduler. The
// timers are first class handles owned by the set, so Clear can cancel all of
// them deterministically; a callback that lost the race against Clear finds
// its handle gone and does nothing.
//
// Expiry Policy:
//
//	Re-adding a present item does not extend its lifetime. Both timers stay
//	pending and the item is removed when the first one fires ("first expiry
//	wins"). The later timer fires without effect unless the item was added again
//	in the meantime. Delete removes an item without cancelling its timers.
//
// The set is safe for concurrent use. Callbacks are serialized with all other
// operations by the set's mutex.
//
// Usage Example:
//
//	seen := ttlset.New(ttlset.Options[string]{})
//	if !seen.Has(id) {
//		seen.Add(id, 30*time.Second)
//		count(id)
//	}
package ttlset
