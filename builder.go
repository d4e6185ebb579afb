package champ

import (
	"github.com/cockroachdb/errors"
)

// Builder is a transient, single-owner view of a Map for batched edits.
//
// Nodes a Builder creates are stamped with its edit token and are updated in
// place by later edits; nodes shared with a Map are copied first, so the Map
// a Builder came from is never affected. Freeze hands the trie back as a new
// Map and ends the Builder's write access.
//
// A Builder must not be used by more than one goroutine at a time.
// The zero Builder is empty and ready to use.
type Builder[K comparable, V any] struct {
	root   *bitmapNode[K, V]
	size   int
	hash   uint64
	h      *hasher[K, V]
	edit   *editToken
	frozen bool
}

// NewBuilder returns an empty builder configured with options.
func NewBuilder[K comparable, V any](options ...func(*MapConfig)) *Builder[K, V] {
	return &Builder[K, V]{h: newHasher[K, V](options...), edit: newEditToken()}
}

func (b *Builder[K, V]) init() {
	if b.h == nil {
		b.h = newHasher[K, V]()
	}
	if b.edit == nil && !b.frozen {
		b.edit = newEditToken()
	}
}

// Put binds key to val.
func (b *Builder[K, V]) Put(key K, val V) error {
	return b.PutWith(key, val, nil)
}

// PutWith is like Put but matches keys with keyEqual.
func (b *Builder[K, V]) PutWith(key K, val V, keyEqual func(K, K) bool) error {
	if b.frozen {
		return ErrAlreadyFrozen
	}
	b.put(key, val, keyEqual)
	return nil
}

func (b *Builder[K, V]) put(key K, val V, keyEqual func(K, K) bool) result[V] {
	b.init()
	hash := b.h.hashKey(key)
	if b.root == nil {
		b.root = newBitmapNode(b.edit, bitpos(hash, 0), 0, []entry[K, V]{{hash: hash, key: key, value: val}}, nil)
		b.size = 1
		b.hash = b.h.entryHash(hash, val)
		return result[V]{kind: inserted}
	}

	root, res := b.root.update(b.edit, key, val, hash, 0, keyEqual, b.h)
	b.root = root
	switch res.kind {
	case inserted:
		b.size++
		b.hash += b.h.entryHash(hash, val)
	case replaced:
		b.hash += b.h.entryHash(hash, val) - b.h.entryHash(hash, res.old)
	}
	return res
}

// Remove deletes key if present.
func (b *Builder[K, V]) Remove(key K) error {
	return b.RemoveWith(key, nil)
}

// RemoveWith is like Remove but matches keys with keyEqual.
func (b *Builder[K, V]) RemoveWith(key K, keyEqual func(K, K) bool) error {
	if b.frozen {
		return ErrAlreadyFrozen
	}
	b.remove(key, keyEqual)
	return nil
}

func (b *Builder[K, V]) remove(key K, keyEqual func(K, K) bool) result[V] {
	if b.root == nil {
		return result[V]{}
	}
	b.init()
	hash := b.h.hashKey(key)
	root, res := b.root.remove(b.edit, key, hash, 0, keyEqual)
	if res.kind == unchanged {
		return res
	}
	if root.sizePredicate() == sizeEmpty {
		root = nil
	}
	b.root = root
	b.size--
	b.hash -= b.h.entryHash(hash, res.old)
	return res
}

// PutAll binds every entry of m, overriding existing keys. A nil m adds
// nothing.
func (b *Builder[K, V]) PutAll(m *Map[K, V]) error {
	if b.frozen {
		return ErrAlreadyFrozen
	}
	if m == nil {
		return nil
	}
	for k, v := range m.All() {
		b.put(k, v, nil)
	}
	return nil
}

// Get returns the value bound to key.
func (b *Builder[K, V]) Get(key K) (value V, ok bool) {
	if b.root == nil {
		return
	}
	b.init()
	return b.root.get(key, b.h.hashKey(key), 0, nil)
}

// ContainsKey reports whether key is present.
func (b *Builder[K, V]) ContainsKey(key K) bool {
	_, ok := b.Get(key)
	return ok
}

// Size returns the number of entries.
func (b *Builder[K, V]) Size() int {
	return b.size
}

// IsEmpty reports whether the builder holds no entries.
func (b *Builder[K, V]) IsEmpty() bool {
	return b.size == 0
}

// HashCode returns the value Freeze's result would report.
func (b *Builder[K, V]) HashCode() uint64 {
	return b.hash
}

// Freeze returns the current contents as a Map and invalidates the
// builder. Every later mutation, including a second Freeze, fails with
// ErrAlreadyFrozen.
func (b *Builder[K, V]) Freeze() (*Map[K, V], error) {
	if b.frozen {
		return nil, ErrAlreadyFrozen
	}
	b.init()
	b.frozen = true
	b.edit = nil
	return &Map[K, V]{root: b.root, size: b.size, hash: b.hash, h: b.h}, nil
}

// Iterator returns an iterator over the current entries whose Remove
// deletes the last yielded key from the builder.
//
// The builder switches to a fresh edit token, so nodes the iterator is
// reading are copied rather than edited by later writes. The iterator
// therefore always walks the entries present when it was created.
func (b *Builder[K, V]) Iterator() *BuilderIterator[K, V] {
	b.init()
	if !b.frozen {
		b.edit = newEditToken()
	}
	return &BuilderIterator[K, V]{it: newIterator(b.root), b: b}
}

// BuilderIterator is an Iterator that can remove yielded keys from the
// Builder it came from.
type BuilderIterator[K comparable, V any] struct {
	it      Iterator[K, V]
	b       *Builder[K, V]
	last    K
	hasLast bool
}

// HasNext reports whether Next will yield another entry.
func (bi *BuilderIterator[K, V]) HasNext() bool {
	return bi.it.HasNext()
}

// Next returns the next entry, or ErrIteratorExhausted.
func (bi *BuilderIterator[K, V]) Next() (key K, value V, err error) {
	key, value, err = bi.it.Next()
	if err != nil {
		return
	}
	bi.last, bi.hasLast = key, true
	return
}

// Remove deletes the key last returned by Next from the builder.
// It fails with ErrIllegalState when Next has not yielded a key since the
// previous Remove.
func (bi *BuilderIterator[K, V]) Remove() error {
	if !bi.hasLast {
		return ErrIllegalState
	}
	if bi.b.frozen {
		return ErrAlreadyFrozen
	}
	bi.hasLast = false
	if res := bi.b.remove(bi.last, nil); res.kind == unchanged {
		return errors.AssertionFailedf("champ: yielded key %v not found in builder", bi.last)
	}
	var zero K
	bi.last = zero
	return nil
}
