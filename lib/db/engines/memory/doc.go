// Package memory implements the volatile db.KVDB engine. Data lives in a
// concurrent hash map (xsync.MapOf) inside the process and is lost when the
// process exits.
//
// The engine behaves exactly like the durable bolt engine for every
// operation, which makes it a drop-in test double and a no-persistence
// fallback. Close only marks the database as closed; the contents are kept
// for the next Open. Destroy drops the contents.
//
// Reads go straight to the map and single writes take the shared side of a
// lock. BulkSet, BulkDelete, Clear and the enumerations (Keys, Values,
// Entries) take the exclusive side, so an enumeration never observes a half
// applied bulk operation. Enumerations are sorted by key.
package memory
