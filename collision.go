package champ

import "slices"

// collisionNode holds two or more entries whose 32-bit key hashes are
// identical. It only ever appears below the last bitmap level, and entries
// keep insertion order.
type collisionNode[K comparable, V any] struct {
	node[K, V]
	owner   *editToken
	hash    uint32
	entries []entry[K, V]
}

func newCollisionNode[K comparable, V any](edit *editToken, hash uint32, entries []entry[K, V]) *collisionNode[K, V] {
	return &collisionNode[K, V]{
		node:    node[K, V]{isCollision: true},
		owner:   edit,
		hash:    hash,
		entries: entries,
	}
}

func (n *collisionNode[K, V]) find(key K, keq func(K, K) bool) int {
	for i := range n.entries {
		if keysEqual(keq, n.entries[i].key, key) {
			return i
		}
	}
	return -1
}

func (n *collisionNode[K, V]) get(key K, hash uint32, keq func(K, K) bool) (value V, ok bool) {
	if hash != n.hash {
		return
	}
	if i := n.find(key, keq); i >= 0 {
		return n.entries[i].value, true
	}
	return
}

func (n *collisionNode[K, V]) update(
	edit *editToken,
	key K,
	val V,
	hash uint32,
	keq func(K, K) bool,
	h *hasher[K, V],
) (*collisionNode[K, V], result[V]) {
	if hash != n.hash {
		invariantf("collision bucket %#x asked to store hash %#x", n.hash, hash)
	}
	if i := n.find(key, keq); i >= 0 {
		old := n.entries[i].value
		if h.valuesEqual(old, val) {
			return n, result[V]{}
		}
		dst := n
		if !isEditable(n.owner, edit) {
			dst = newCollisionNode(edit, n.hash, slices.Clone(n.entries))
		}
		dst.entries[i].value = val
		return dst, result[V]{kind: replaced, old: old}
	}

	e := entry[K, V]{hash: hash, key: key, value: val}
	if isEditable(n.owner, edit) {
		n.entries = append(n.entries, e)
		return n, result[V]{kind: inserted}
	}
	return newCollisionNode(edit, n.hash, insertAt(n.entries, len(n.entries), e)),
		result[V]{kind: inserted}
}

// remove returns a one-entry bitmap node when a single entry survives. Its
// ancestors inline it, or pass it further up through single-child chains,
// so it settles in the deepest ancestor that holds anything else.
func (n *collisionNode[K, V]) remove(
	edit *editToken,
	key K,
	hash uint32,
	keq func(K, K) bool,
) (*node[K, V], result[V]) {
	if hash != n.hash {
		return &n.node, result[V]{}
	}
	i := n.find(key, keq)
	if i < 0 {
		return &n.node, result[V]{}
	}
	res := result[V]{kind: replaced, old: n.entries[i].value}
	switch {
	case len(n.entries) == 2:
		other := n.entries[1-i]
		return &newBitmapNode(edit, bitpos(other.hash, 0), 0, []entry[K, V]{other}, nil).node, res
	case isEditable(n.owner, edit):
		n.entries = slices.Delete(n.entries, i, i+1)
		return &n.node, res
	default:
		return &newCollisionNode(edit, n.hash, removeAt(n.entries, i)).node, res
	}
}

// equal ignores order. Keys are unique within a bucket, so equal lengths
// plus one-way inclusion imply the reverse inclusion.
func (n *collisionNode[K, V]) equal(o *collisionNode[K, V], h *hasher[K, V]) bool {
	if n == o {
		return true
	}
	if n.hash != o.hash || len(n.entries) != len(o.entries) {
		return false
	}
	for i := range n.entries {
		j := o.find(n.entries[i].key, nil)
		if j < 0 || !h.valuesEqual(n.entries[i].value, o.entries[j].value) {
			return false
		}
	}
	return true
}
