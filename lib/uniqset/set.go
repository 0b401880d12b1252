package uniqset

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"slices"
)

// Set is an insertion ordered sequence without duplicates. Membership uses ==
// and a linear scan, which suits the small cardinalities it is used for.
//
// The external representation of a Set is a plain list: it encodes to a JSON
// array and to a gob slice, so it can be persisted or sent as is. A Set is not
// safe for concurrent use.
type Set[T comparable] struct {
	items []T
}

// New creates a set holding values in order, duplicates are dropped
func New[T comparable](values ...T) *Set[T] {
	s := &Set[T]{items: make([]T, 0, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add appends value unless it is already present. It reports whether the set changed.
func (s *Set[T]) Add(value T) bool {
	if s.Has(value) {
		return false
	}
	s.items = append(s.items, value)
	return true
}

// Has reports whether value is present
func (s *Set[T]) Has(value T) bool {
	return slices.Contains(s.items, value)
}

// Delete removes value keeping the order of the remaining items.
// It reports whether value was present.
func (s *Set[T]) Delete(value T) bool {
	i := slices.Index(s.items, value)
	if i < 0 {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true
}

// Clear removes all items
func (s *Set[T]) Clear() {
	clear(s.items)
	s.items = s.items[:0]
}

// Size returns the number of items
func (s *Set[T]) Size() int {
	return len(s.items)
}

// At returns the i-th item in insertion order
func (s *Set[T]) At(i int) T {
	return s.items[i]
}

// Values returns a copy of the items in insertion order
func (s *Set[T]) Values() []T {
	return append(make([]T, 0, len(s.items)), s.items...)
}

func (s *Set[T]) String() string {
	return fmt.Sprint(s.items)
}

// --------------------------------------------------------------------------
// Serialization
// --------------------------------------------------------------------------

// MarshalJSON encodes the set as a plain JSON array. The value receiver keeps
// sets held by value (struct fields, map values) encodable.
func (s Set[T]) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// UnmarshalJSON decodes a JSON array, duplicates keep their first position.
// null decodes to an empty set.
func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var values []T
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	s.replace(values)
	return nil
}

// GobEncode encodes the set as a plain slice
func (s Set[T]) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(append([]T{}, s.items...)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode decodes a slice written by GobEncode
func (s *Set[T]) GobDecode(data []byte) error {
	var values []T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&values); err != nil {
		return err
	}
	s.replace(values)
	return nil
}

func (s *Set[T]) replace(values []T) {
	s.items = make([]T, 0, len(values))
	for _, v := range values {
		s.Add(v)
	}
}
