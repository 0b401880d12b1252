package store

// OrderedMap is an insertion ordered key to value mapping used as input for
// IStore.BulkSetFromMap. Setting an existing key replaces its value but keeps
// its original position. The zero value is not usable, use NewOrderedMap.
type OrderedMap[V any] struct {
	keys  []string
	index map[string]int
	vals  []V
}

// NewOrderedMap creates an empty OrderedMap
func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{index: make(map[string]int)}
}

// Set stores value under key (last write wins)
func (m *OrderedMap[V]) Set(key string, value V) *OrderedMap[V] {
	if i, ok := m.index[key]; ok {
		m.vals[i] = value
		return m
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, value)
	return m
}

// Get returns the value for key
func (m *OrderedMap[V]) Get(key string) (V, bool) {
	if i, ok := m.index[key]; ok {
		return m.vals[i], true
	}
	var zero V
	return zero, false
}

// Len returns the number of keys
func (m *OrderedMap[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls fn for every entry in insertion order until fn returns false
func (m *OrderedMap[V]) Range(fn func(key string, value V) bool) {
	if m == nil {
		return
	}
	for i, k := range m.keys {
		if !fn(k, m.vals[i]) {
			return
		}
	}
}
