// Package util provides helpers shared by the db.KVDB engines.
//
// SizeStats summarizes the byte sizes of a table's entries (count, total,
// min, max, mean, median, p99 and standard deviation). The engines compute it
// from a full scan in GetInfo and report it as part of their metadata.
package util
