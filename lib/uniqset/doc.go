// Package uniqset provides an insertion ordered set whose serialized form is a
// plain list.
//
// It is used where set semantics are needed but the result has to round trip
// through JSON (or gob) unchanged, e.g. the list of distinct signals in an
// ingest report:
//
//	unique := uniqset.New[string]()
//	unique.Add("a")
//	unique.Add("b")
//	unique.Add("a")
//	out, _ := json.Marshal(unique) // ["a","b"]
package uniqset
