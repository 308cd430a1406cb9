package registry

// Table is a read-only map that remembers insertion order.
type Table[V any] struct {
	keys   []string
	values map[string]V
}

func newTable[V any]() *Table[V] {
	return &Table[V]{values: make(map[string]V)}
}

func (t *Table[V]) put(key string, v V) {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
}

// Get returns the value stored under key.
func (t *Table[V]) Get(key string) (V, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (t *Table[V]) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

func (t *Table[V]) Len() int { return len(t.keys) }

// Range calls fn in insertion order until it returns false.
func (t *Table[V]) Range(fn func(key string, v V) bool) {
	for _, k := range t.keys {
		if !fn(k, t.values[k]) {
			return
		}
	}
}
