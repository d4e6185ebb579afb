package champ

import (
	"math/bits"
	"slices"
	"unsafe"
)

// node is the header for a trie node. It's polymorphic and
// is actually either a bitmapNode or a collisionNode.
type node[K comparable, V any] struct {
	isCollision bool
}

func (n *node[K, V]) bitmap() *bitmapNode[K, V] {
	if n.isCollision {
		panic("called bitmap on collision node")
	}
	return (*bitmapNode[K, V])(unsafe.Pointer(n))
}

func (n *node[K, V]) collision() *collisionNode[K, V] {
	if !n.isCollision {
		panic("called collision on bitmap node")
	}
	return (*collisionNode[K, V])(unsafe.Pointer(n))
}

func (n *node[K, V]) update(
	edit *editToken,
	key K,
	val V,
	hash uint32,
	shift uint,
	keq func(K, K) bool,
	h *hasher[K, V],
) (*node[K, V], result[V]) {
	if n.isCollision {
		c, res := n.collision().update(edit, key, val, hash, keq, h)
		return &c.node, res
	}
	b, res := n.bitmap().update(edit, key, val, hash, shift, keq, h)
	return &b.node, res
}

func (n *node[K, V]) remove(
	edit *editToken,
	key K,
	hash uint32,
	shift uint,
	keq func(K, K) bool,
) (*node[K, V], result[V]) {
	if n.isCollision {
		return n.collision().remove(edit, key, hash, keq)
	}
	b, res := n.bitmap().remove(edit, key, hash, shift, keq)
	return &b.node, res
}

func (n *node[K, V]) sizePredicate() sizePredicate {
	if n.isCollision {
		return sizeMany
	}
	return n.bitmap().sizePredicate()
}

// payload returns the inline entries of either node kind.
func (n *node[K, V]) payload() []entry[K, V] {
	if n.isCollision {
		return n.collision().entries
	}
	return n.bitmap().entries
}

// children returns nil for collision nodes.
func (n *node[K, V]) children() []*node[K, V] {
	if n.isCollision {
		return nil
	}
	return n.bitmap().nodes
}

func (n *node[K, V]) equal(o *node[K, V], h *hasher[K, V]) bool {
	if n == o {
		return true
	}
	if n.isCollision != o.isCollision {
		return false
	}
	if n.isCollision {
		return n.collision().equal(o.collision(), h)
	}
	return n.bitmap().equal(o.bitmap(), h)
}

// entry is an inline key/value slot. hash is the mixed key hash, kept so
// that entries can be pushed down a level without rehashing.
type entry[K comparable, V any] struct {
	hash  uint32
	key   K
	value V
}

// bitmapNode is one level of the trie. Bit i of dataMap marks an inline
// entry and bit i of nodeMap a child for hash fragment i; the two maps are
// disjoint. entries and nodes are ordered by the rank of their bit.
//
// A non-root bitmapNode always holds at least two entries transitively: it
// never has a single inline entry and no children.
type bitmapNode[K comparable, V any] struct {
	node[K, V]
	owner   *editToken
	dataMap uint32
	nodeMap uint32
	entries []entry[K, V]
	nodes   []*node[K, V]
}

func newBitmapNode[K comparable, V any](
	edit *editToken,
	dataMap, nodeMap uint32,
	entries []entry[K, V],
	nodes []*node[K, V],
) *bitmapNode[K, V] {
	return &bitmapNode[K, V]{
		owner:   edit,
		dataMap: dataMap,
		nodeMap: nodeMap,
		entries: entries,
		nodes:   nodes,
	}
}

func (n *bitmapNode[K, V]) dataIndex(bit uint32) int {
	return bits.OnesCount32(n.dataMap & (bit - 1))
}

func (n *bitmapNode[K, V]) nodeIndex(bit uint32) int {
	return bits.OnesCount32(n.nodeMap & (bit - 1))
}

func (n *bitmapNode[K, V]) sizePredicate() sizePredicate {
	if n.nodeMap != 0 {
		return sizeMany
	}
	switch len(n.entries) {
	case 0:
		return sizeEmpty
	case 1:
		return sizeOne
	default:
		return sizeMany
	}
}

func (n *bitmapNode[K, V]) get(
	key K,
	hash uint32,
	shift uint,
	keq func(K, K) bool,
) (value V, ok bool) {
	for {
		bit := bitpos(hash, shift)
		if n.dataMap&bit != 0 {
			e := &n.entries[n.dataIndex(bit)]
			if keysEqual(keq, e.key, key) {
				return e.value, true
			}
			return
		}
		if n.nodeMap&bit == 0 {
			return
		}
		child := n.nodes[n.nodeIndex(bit)]
		if child.isCollision {
			return child.collision().get(key, hash, keq)
		}
		n = child.bitmap()
		shift += bitPartitionSize
	}
}

func (n *bitmapNode[K, V]) update(
	edit *editToken,
	key K,
	val V,
	hash uint32,
	shift uint,
	keq func(K, K) bool,
	h *hasher[K, V],
) (*bitmapNode[K, V], result[V]) {
	bit := bitpos(hash, shift)

	if n.dataMap&bit != 0 {
		idx := n.dataIndex(bit)
		cur := n.entries[idx]
		if keysEqual(keq, cur.key, key) {
			if h.valuesEqual(cur.value, val) {
				return n, result[V]{}
			}
			dst := n.ensureEditable(edit)
			dst.entries[idx].value = val
			return dst, result[V]{kind: replaced, old: cur.value}
		}
		// Two keys share this fragment: push both one level down.
		sub := mergeTwo(edit, cur, entry[K, V]{hash: hash, key: key, value: val}, shift+bitPartitionSize)
		return n.copyAndMigrateFromInlineToNode(edit, bit, idx, sub), result[V]{kind: inserted}
	}

	if n.nodeMap&bit != 0 {
		idx := n.nodeIndex(bit)
		child := n.nodes[idx]
		newChild, res := child.update(edit, key, val, hash, shift+bitPartitionSize, keq, h)
		if newChild == child {
			return n, res
		}
		dst := n.ensureEditable(edit)
		dst.nodes[idx] = newChild
		return dst, res
	}

	return n.copyAndInsertValue(edit, bit, entry[K, V]{hash: hash, key: key, value: val}),
		result[V]{kind: inserted}
}

func (n *bitmapNode[K, V]) remove(
	edit *editToken,
	key K,
	hash uint32,
	shift uint,
	keq func(K, K) bool,
) (*bitmapNode[K, V], result[V]) {
	bit := bitpos(hash, shift)

	if n.dataMap&bit != 0 {
		idx := n.dataIndex(bit)
		cur := n.entries[idx]
		if !keysEqual(keq, cur.key, key) {
			return n, result[V]{}
		}
		res := result[V]{kind: replaced, old: cur.value}
		if len(n.entries) == 2 && n.nodeMap == 0 {
			// The survivor either becomes the new root or is inlined by
			// the parent, so it is positioned for shift 0.
			other := n.entries[1-idx]
			return newBitmapNode(edit, bitpos(other.hash, 0), 0, []entry[K, V]{other}, nil), res
		}
		return n.copyAndRemoveValue(edit, bit, idx), res
	}

	if n.nodeMap&bit != 0 {
		idx := n.nodeIndex(bit)
		child := n.nodes[idx]
		newChild, res := child.remove(edit, key, hash, shift+bitPartitionSize, keq)
		if res.kind == unchanged {
			return n, res
		}
		switch newChild.sizePredicate() {
		case sizeEmpty:
			return n.copyAndRemoveNode(edit, bit, idx), res
		case sizeOne:
			if len(n.entries) == 0 && len(n.nodes) == 1 {
				// Escalate the singleton through a shared-prefix chain.
				return newChild.bitmap(), res
			}
			return n.copyAndMigrateFromNodeToInline(edit, bit, idx, newChild.bitmap().entries[0]), res
		default:
			if newChild == child {
				return n, res
			}
			dst := n.ensureEditable(edit)
			dst.nodes[idx] = newChild
			return dst, res
		}
	}

	return n, result[V]{}
}

// mergeTwo builds the smallest subtree holding e0 and e1 whose hashes agree
// on every fragment below shift. This is the only place the trie deepens.
func mergeTwo[K comparable, V any](edit *editToken, e0, e1 entry[K, V], shift uint) *node[K, V] {
	if shift >= hashCodeLength {
		return &newCollisionNode(edit, e0.hash, []entry[K, V]{e0, e1}).node
	}
	m0, m1 := mask(e0.hash, shift), mask(e1.hash, shift)
	if m0 != m1 {
		dataMap := uint32(1)<<m0 | uint32(1)<<m1
		if m0 < m1 {
			return &newBitmapNode(edit, dataMap, 0, []entry[K, V]{e0, e1}, nil).node
		}
		return &newBitmapNode(edit, dataMap, 0, []entry[K, V]{e1, e0}, nil).node
	}
	sub := mergeTwo(edit, e0, e1, shift+bitPartitionSize)
	return &newBitmapNode(edit, 0, uint32(1)<<m0, nil, []*node[K, V]{sub}).node
}

// ensureEditable returns n itself when edit owns it, otherwise a copy
// owned by edit whose slices can be written without affecting n.
func (n *bitmapNode[K, V]) ensureEditable(edit *editToken) *bitmapNode[K, V] {
	if isEditable(n.owner, edit) {
		return n
	}
	return newBitmapNode(edit, n.dataMap, n.nodeMap, slices.Clone(n.entries), slices.Clone(n.nodes))
}

// entriesFor and nodesFor return a slice a copy of n may hold untouched.
// Persistent copies are never written, so they share n's slice; a copy a
// builder owns may later be written in place and needs its own.
func (n *bitmapNode[K, V]) entriesFor(edit *editToken) []entry[K, V] {
	if edit == nil {
		return n.entries
	}
	return slices.Clone(n.entries)
}

func (n *bitmapNode[K, V]) nodesFor(edit *editToken) []*node[K, V] {
	if edit == nil {
		return n.nodes
	}
	return slices.Clone(n.nodes)
}

func (n *bitmapNode[K, V]) copyAndInsertValue(edit *editToken, bit uint32, e entry[K, V]) *bitmapNode[K, V] {
	idx := n.dataIndex(bit)
	if isEditable(n.owner, edit) {
		n.entries = slices.Insert(n.entries, idx, e)
		n.dataMap |= bit
		return n
	}
	return newBitmapNode(edit, n.dataMap|bit, n.nodeMap, insertAt(n.entries, idx, e), n.nodesFor(edit))
}

func (n *bitmapNode[K, V]) copyAndRemoveValue(edit *editToken, bit uint32, idx int) *bitmapNode[K, V] {
	if isEditable(n.owner, edit) {
		n.entries = slices.Delete(n.entries, idx, idx+1)
		n.dataMap ^= bit
		return n
	}
	return newBitmapNode(edit, n.dataMap^bit, n.nodeMap, removeAt(n.entries, idx), n.nodesFor(edit))
}

func (n *bitmapNode[K, V]) copyAndRemoveNode(edit *editToken, bit uint32, idx int) *bitmapNode[K, V] {
	if isEditable(n.owner, edit) {
		n.nodes = slices.Delete(n.nodes, idx, idx+1)
		n.nodeMap ^= bit
		return n
	}
	return newBitmapNode(edit, n.dataMap, n.nodeMap^bit, n.entriesFor(edit), removeAt(n.nodes, idx))
}

func (n *bitmapNode[K, V]) copyAndMigrateFromInlineToNode(
	edit *editToken,
	bit uint32,
	dataIdx int,
	sub *node[K, V],
) *bitmapNode[K, V] {
	nodeIdx := n.nodeIndex(bit)
	if isEditable(n.owner, edit) {
		n.entries = slices.Delete(n.entries, dataIdx, dataIdx+1)
		n.nodes = slices.Insert(n.nodes, nodeIdx, sub)
		n.dataMap ^= bit
		n.nodeMap |= bit
		return n
	}
	return newBitmapNode(edit, n.dataMap^bit, n.nodeMap|bit,
		removeAt(n.entries, dataIdx), insertAt(n.nodes, nodeIdx, sub))
}

func (n *bitmapNode[K, V]) copyAndMigrateFromNodeToInline(
	edit *editToken,
	bit uint32,
	nodeIdx int,
	e entry[K, V],
) *bitmapNode[K, V] {
	dataIdx := n.dataIndex(bit)
	if isEditable(n.owner, edit) {
		n.nodes = slices.Delete(n.nodes, nodeIdx, nodeIdx+1)
		n.entries = slices.Insert(n.entries, dataIdx, e)
		n.nodeMap ^= bit
		n.dataMap |= bit
		return n
	}
	return newBitmapNode(edit, n.dataMap|bit, n.nodeMap^bit,
		insertAt(n.entries, dataIdx, e), removeAt(n.nodes, nodeIdx))
}

func (n *bitmapNode[K, V]) equal(o *bitmapNode[K, V], h *hasher[K, V]) bool {
	if n == o {
		return true
	}
	if n.dataMap != o.dataMap || n.nodeMap != o.nodeMap {
		return false
	}
	for i := range n.entries {
		a, b := &n.entries[i], &o.entries[i]
		if a.hash != b.hash || a.key != b.key || !h.valuesEqual(a.value, b.value) {
			return false
		}
	}
	for i := range n.nodes {
		if !n.nodes[i].equal(o.nodes[i], h) {
			return false
		}
	}
	return true
}

func keysEqual[K comparable](keq func(K, K) bool, a, b K) bool {
	if keq == nil {
		return a == b
	}
	return keq(a, b)
}

// insertAt returns a new exactly sized slice with v inserted at i.
func insertAt[T any](s []T, i int, v T) []T {
	dst := make([]T, len(s)+1)
	copy(dst, s[:i])
	dst[i] = v
	copy(dst[i+1:], s[i:])
	return dst
}

// removeAt returns a new exactly sized slice without the element at i.
func removeAt[T any](s []T, i int) []T {
	dst := make([]T, len(s)-1)
	copy(dst, s[:i])
	copy(dst[i:], s[i+1:])
	return dst
}
