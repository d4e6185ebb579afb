package champ

import (
	"iter"
	"reflect"

	"github.com/cockroachdb/errors"
)

// Map is a persistent hash map backed by a CHAMP trie.
//
// A Map is never modified after construction: Put and Remove return a new
// Map that shares every subtree not on the path to the changed key. Maps are
// therefore safe for concurrent use by any number of readers.
//
// The zero Map is empty and ready to use.
type Map[K comparable, V any] struct {
	root *bitmapNode[K, V] // nil when empty
	size int
	hash uint64
	h    *hasher[K, V]
}

// Empty returns an empty map configured with options.
func Empty[K comparable, V any](options ...func(*MapConfig)) *Map[K, V] {
	return &Map[K, V]{h: newHasher[K, V](options...)}
}

// Of builds a map from alternating keys and values.
// It fails with ErrInvalidArgument when the count is odd or an element is
// not of the key or value type.
//
// Usage:
//
//	m, err := champ.Of[string, int]("a", 1, "b", 2)
func Of[K comparable, V any](kv ...any) (*Map[K, V], error) {
	if len(kv)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "odd number of arguments: %d", len(kv))
	}
	b := NewBuilder[K, V]()
	for i := 0; i < len(kv); i += 2 {
		key, ok := castArg[K](kv[i])
		if !ok {
			return nil, errors.Wrapf(ErrInvalidArgument, "argument %d: key of type %T", i, kv[i])
		}
		val, ok := castArg[V](kv[i+1])
		if !ok {
			return nil, errors.Wrapf(ErrInvalidArgument, "argument %d: value of type %T", i+1, kv[i+1])
		}
		b.put(key, val, nil)
	}
	return b.Freeze()
}

// castArg accepts an untyped nil for types whose zero value is nil.
func castArg[T any](a any) (T, bool) {
	if t, ok := a.(T); ok {
		return t, true
	}
	var zero T
	if a != nil {
		return zero, false
	}
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return zero, true
	default:
		return zero, false
	}
}

// FromMap returns a map holding the entries of src.
func FromMap[K comparable, V any](src map[K]V, options ...func(*MapConfig)) *Map[K, V] {
	b := NewBuilder[K, V](options...)
	for k, v := range src {
		b.put(k, v, nil)
	}
	m, _ := b.Freeze()
	return m
}

// Collect returns a map holding the pairs of seq. Later pairs win.
func Collect[K comparable, V any](seq iter.Seq2[K, V], options ...func(*MapConfig)) *Map[K, V] {
	b := NewBuilder[K, V](options...)
	for k, v := range seq {
		b.put(k, v, nil)
	}
	m, _ := b.Freeze()
	return m
}

// hasher returns the configuration of m, falling back to the default one
// for the zero Map.
func (m *Map[K, V]) hasher() *hasher[K, V] {
	if m.h != nil {
		return m.h
	}
	return newHasher[K, V]()
}

// Get returns the value stored in the map for a key, or the zero value if
// no value is present.
// The ok result indicates whether value was found in the map.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	return m.GetWith(key, nil)
}

// GetWith is like Get but matches keys with keyEqual instead of ==.
// Keys that keyEqual reports as equal must hash equally.
func (m *Map[K, V]) GetWith(key K, keyEqual func(K, K) bool) (value V, ok bool) {
	if m.root == nil {
		return
	}
	return m.root.get(key, m.hasher().hashKey(key), 0, keyEqual)
}

// ContainsKey reports whether key is present.
func (m *Map[K, V]) ContainsKey(key K) bool {
	_, ok := m.GetWith(key, nil)
	return ok
}

// ContainsKeyWith is like ContainsKey but matches keys with keyEqual.
func (m *Map[K, V]) ContainsKeyWith(key K, keyEqual func(K, K) bool) bool {
	_, ok := m.GetWith(key, keyEqual)
	return ok
}

// Put returns a map with key bound to val.
// If key is already bound to an equal value, Put returns m itself.
func (m *Map[K, V]) Put(key K, val V) *Map[K, V] {
	return m.PutWith(key, val, nil)
}

// PutWith is like Put but matches keys with keyEqual. A matched key keeps
// its stored form; only the value is replaced.
func (m *Map[K, V]) PutWith(key K, val V, keyEqual func(K, K) bool) *Map[K, V] {
	h := m.hasher()
	hash := h.hashKey(key)
	if m.root == nil {
		root := newBitmapNode(nil, bitpos(hash, 0), 0, []entry[K, V]{{hash: hash, key: key, value: val}}, nil)
		return &Map[K, V]{root: root, size: 1, hash: h.entryHash(hash, val), h: h}
	}

	root, res := m.root.update(nil, key, val, hash, 0, keyEqual, h)
	switch res.kind {
	case unchanged:
		return m
	case replaced:
		return &Map[K, V]{
			root: root,
			size: m.size,
			hash: m.hash + h.entryHash(hash, val) - h.entryHash(hash, res.old),
			h:    h,
		}
	default:
		return &Map[K, V]{root: root, size: m.size + 1, hash: m.hash + h.entryHash(hash, val), h: h}
	}
}

// Remove returns a map without key. If key is absent, Remove returns m
// itself.
func (m *Map[K, V]) Remove(key K) *Map[K, V] {
	return m.RemoveWith(key, nil)
}

// RemoveWith is like Remove but matches keys with keyEqual.
func (m *Map[K, V]) RemoveWith(key K, keyEqual func(K, K) bool) *Map[K, V] {
	if m.root == nil {
		return m
	}
	h := m.hasher()
	hash := h.hashKey(key)
	root, res := m.root.remove(nil, key, hash, 0, keyEqual)
	if res.kind == unchanged {
		return m
	}
	if root.sizePredicate() == sizeEmpty {
		root = nil
	}
	return &Map[K, V]{root: root, size: m.size - 1, hash: m.hash - h.entryHash(hash, res.old), h: h}
}

// PutAll returns a map holding the entries of m overridden by those of
// other. It returns m itself when other adds nothing new. A nil other is
// treated as empty.
func (m *Map[K, V]) PutAll(other *Map[K, V]) *Map[K, V] {
	if other == nil || other.IsEmpty() {
		return m
	}
	if m.IsEmpty() && m.h == other.h {
		return other
	}
	b := m.AsTransient()
	for k, v := range other.All() {
		b.put(k, v, nil)
	}
	if b.root == m.root {
		return m
	}
	merged, _ := b.Freeze()
	return merged
}

// Size returns the number of entries in the map.
func (m *Map[K, V]) Size() int {
	return m.size
}

// IsEmpty reports whether the map holds no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.size == 0
}

// HashCode returns the sum over all entries of keyHash ^ valueHash.
// Equal maps built with the same configuration report the same HashCode.
func (m *Map[K, V]) HashCode() uint64 {
	return m.hash
}

// Equal reports whether m and other hold the same keys bound to equal
// values. The value type must be comparable or have a configured value
// equality, otherwise Equal will panic.
func (m *Map[K, V]) Equal(other *Map[K, V]) bool {
	if m == other {
		return true
	}
	if other == nil {
		return m.size == 0
	}
	if m.size != other.size {
		return false
	}
	if m.size == 0 {
		return true
	}
	h := m.hasher()
	if h.valEqual == nil {
		panic("called Equal when value is not of comparable type")
	}
	if h == other.hasher() {
		return m.root.equal(other.root, h)
	}
	// Different hashers lay the same entries out differently.
	for k, v := range m.All() {
		ov, ok := other.Get(k)
		if !ok || !h.valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

// AsTransient returns a builder seeded with the entries of m. m itself is
// never affected by edits to the builder.
func (m *Map[K, V]) AsTransient() *Builder[K, V] {
	return &Builder[K, V]{
		root: m.root,
		size: m.size,
		hash: m.hash,
		h:    m.hasher(),
		edit: newEditToken(),
	}
}

// ToMap returns all key-value pairs as a standard map
func (m *Map[K, V]) ToMap() map[K]V {
	a := make(map[K]V, m.size)
	for k, v := range m.All() {
		a[k] = v
	}
	return a
}
