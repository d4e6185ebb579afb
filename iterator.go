package champ

import "iter"

// frame is one level of the iterator's explicit stack: the children of a
// bitmap node and the index of the next one to visit.
type frame[K comparable, V any] struct {
	nodes  []*node[K, V]
	cursor int
}

// Iterator walks the entries of a trie depth first. It is single pass and
// holds no locks; any number of iterators may walk the same Map at once.
//
// Only bitmap nodes with children are ever pushed, and there are at most
// maxDepth bitmap levels, so the stack never grows.
type Iterator[K comparable, V any] struct {
	payload []entry[K, V]
	cursor  int
	stack   [maxDepth]frame[K, V]
	depth   int
}

func newIterator[K comparable, V any](root *bitmapNode[K, V]) Iterator[K, V] {
	var it Iterator[K, V]
	if root == nil {
		return it
	}
	it.payload = root.entries
	if len(root.nodes) > 0 {
		it.stack[0] = frame[K, V]{nodes: root.nodes}
		it.depth = 1
	}
	return it
}

// advance makes payload[cursor] the next entry to yield and reports
// whether there is one.
func (it *Iterator[K, V]) advance() bool {
	for it.cursor >= len(it.payload) {
		if it.depth == 0 {
			return false
		}
		f := &it.stack[it.depth-1]
		if f.cursor >= len(f.nodes) {
			it.stack[it.depth-1] = frame[K, V]{}
			it.depth--
			continue
		}
		child := f.nodes[f.cursor]
		f.cursor++
		if c := child.children(); len(c) > 0 {
			if it.depth == len(it.stack) {
				invariantf("trie deeper than %d levels", maxDepth)
			}
			it.stack[it.depth] = frame[K, V]{nodes: c}
			it.depth++
		}
		if p := child.payload(); len(p) > 0 {
			it.payload, it.cursor = p, 0
		}
	}
	return true
}

// HasNext reports whether Next will yield another entry.
func (it *Iterator[K, V]) HasNext() bool {
	return it.advance()
}

// Next returns the next entry, or ErrIteratorExhausted once every entry
// has been yielded.
func (it *Iterator[K, V]) Next() (key K, value V, err error) {
	if !it.advance() {
		return key, value, ErrIteratorExhausted
	}
	e := &it.payload[it.cursor]
	it.cursor++
	return e.key, e.value, nil
}

// Iterator returns a new iterator over the entries of m.
func (m *Map[K, V]) Iterator() *Iterator[K, V] {
	it := newIterator(m.root)
	return &it
}

// All returns an iterator over each key and value present in the map.
// The order is fixed by the key hashes and is not meaningful.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return m.Range
}

// Keys returns an iterator over the keys of m.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		m.Range(func(k K, _ V) bool {
			return yield(k)
		})
	}
}

// Values returns an iterator over the values of m.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		m.Range(func(_ K, v V) bool {
			return yield(v)
		})
	}
}

// Range calls yield sequentially for each key and value present in the map.
// If yield returns false, range stops the iteration.
func (m *Map[K, V]) Range(yield func(K, V) bool) {
	it := newIterator(m.root)
	for it.advance() {
		e := &it.payload[it.cursor]
		it.cursor++
		if !yield(e.key, e.value) {
			return
		}
	}
}
