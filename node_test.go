package champ

import (
	"math/bits"
	"math/rand/v2"
	"testing"
)

// tableHasher hashes int keys through a fixed table, so tests can place
// keys at chosen trie positions.
func tableHasher(table map[int]uint32) func(*MapConfig) {
	return WithKeyHasher(func(k int, _ uintptr) uintptr {
		return uintptr(table[k])
	})
}

// childAt returns the child of n for hash fragment bit, or nil.
func childAt[K comparable, V any](n *bitmapNode[K, V], bit uint32) *node[K, V] {
	if n.nodeMap&bit == 0 {
		return nil
	}
	return n.nodes[n.nodeIndex(bit)]
}

func TestNodeSplitOneLevelDown(t *testing.T) {
	// 1 and 33 agree on bits 0-4 and differ on bits 5-9.
	m := Empty[int, string]().Put(1, "a").Put(33, "b")

	root := m.root
	if root.dataMap != 0 || root.nodeMap != 1<<1 {
		t.Fatalf("expected root with a single child at fragment 1, got dataMap=%#b nodeMap=%#b", root.dataMap, root.nodeMap)
	}
	child := root.nodes[0].bitmap()
	if child.dataMap != 1<<0|1<<1 || child.nodeMap != 0 {
		t.Fatalf("expected child to inline both keys, got dataMap=%#b nodeMap=%#b", child.dataMap, child.nodeMap)
	}
	if child.entries[0].key != 1 || child.entries[1].key != 33 {
		t.Errorf("expected entries ordered by fragment, got %v and %v", child.entries[0].key, child.entries[1].key)
	}
	expectInvariants(t, m)
}

func TestNodeRemoveCollapsesIntoParent(t *testing.T) {
	m := Empty[int, string]().Put(1, "a").Put(33, "b").Put(2, "c")

	m2 := m.Remove(33)
	root := m2.root
	if root.nodeMap != 0 {
		t.Fatalf("expected no children after collapse, got nodeMap=%#b", root.nodeMap)
	}
	if root.dataMap != 1<<1|1<<2 {
		t.Fatalf("expected 1 and 2 inline at the root, got dataMap=%#b", root.dataMap)
	}
	expectPresent(t, 1, "a")(m2.Get(1))
	expectPresent(t, 2, "c")(m2.Get(2))
	expectInvariants(t, m2)

	// The removed version still holds its child.
	if m.root.nodeMap != 1<<1 {
		t.Errorf("source map was modified: nodeMap=%#b", m.root.nodeMap)
	}
}

func TestNodeRemoveEscalatesThroughChain(t *testing.T) {
	// 1 and 1|1<<30 only differ in the last fragment, so they sit at the
	// bottom of a chain of single-child nodes.
	m := Empty[int, string]().Put(1, "a").Put(1|1<<30, "b")
	if s := m.Stats(); s.MaxDepth != 6 || s.Nodes != 7 {
		t.Fatalf("expected a 7 node chain, got\n%s", s.ToString())
	}

	m2 := m.Remove(1 | 1<<30)
	if s := m2.Stats(); s.MaxDepth != 0 || s.Nodes != 1 || s.Entries != 1 {
		t.Fatalf("expected the survivor at the root, got\n%s", s.ToString())
	}
	if m2.root.dataMap != 1<<1 {
		t.Errorf("expected the survivor at fragment 1, got dataMap=%#b", m2.root.dataMap)
	}
	expectPresent(t, 1, "a")(m2.Get(1))
	expectInvariants(t, m2)

	m3 := m2.Remove(1)
	if m3.root != nil || !m3.IsEmpty() {
		t.Errorf("expected empty map, got size %d", m3.Size())
	}
}

func TestNodeCollisionCollapseDepth(t *testing.T) {
	// 10 and 11 collide; 12 shares their first three fragments.
	m := Empty[int, int](tableHasher(map[int]uint32{10: 0, 11: 0, 12: 1 << 15}))
	m = m.Put(10, 10).Put(11, 11).Put(12, 12)
	if s := m.Stats(); s.CollisionNodes != 1 || s.MaxDepth != 7 {
		t.Fatalf("expected one collision node at depth 7, got\n%s", s.ToString())
	}

	m2 := m.Remove(11)
	expectInvariants(t, m2)
	// The survivor lands in the deepest ancestor that still holds 12.
	n := m2.root
	for depth := 0; depth < 3; depth++ {
		if len(n.entries) != 0 || len(n.nodes) != 1 {
			t.Fatalf("expected single-child chain at depth %d", depth)
		}
		n = childAt(n, 1).bitmap()
	}
	if n.dataMap != 1<<0|1<<1 || n.nodeMap != 0 {
		t.Fatalf("expected 10 and 12 inline at depth 3, got dataMap=%#b nodeMap=%#b", n.dataMap, n.nodeMap)
	}
	if s := m2.Stats(); s.CollisionNodes != 0 || s.MaxDepth != 3 {
		t.Errorf("unexpected shape after collapse\n%s", s.ToString())
	}
	expectPresent(t, 10, 10)(m2.Get(10))
	expectPresent(t, 12, 12)(m2.Get(12))

	m3 := m2.Remove(12)
	if s := m3.Stats(); s.Nodes != 1 || s.Entries != 1 {
		t.Errorf("expected the last key at the root\n%s", s.ToString())
	}
	expectInvariants(t, m3)
}

func TestNodeStructuralSharing(t *testing.T) {
	m := Empty[int, int]()
	for i := range 2000 {
		m = m.Put(i, i)
	}
	key := 1 << 20
	m2 := m.Put(key, key)
	keyBit := bitpos(m.hasher().hashKey(key), 0)

	for nodeMap := m.root.nodeMap; nodeMap != 0; nodeMap &= nodeMap - 1 {
		bit := nodeMap & -nodeMap
		if bit == keyBit {
			if childAt(m.root, bit) == childAt(m2.root, bit) {
				t.Errorf("expected the path to the new key to be copied")
			}
			continue
		}
		if childAt(m.root, bit) != childAt(m2.root, bit) {
			t.Errorf("expected child at fragment %d to be shared", bits.TrailingZeros32(bit))
		}
	}
	expectInvariants(t, m)
	expectInvariants(t, m2)
}

func TestNodeNoSingletons(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	m := Empty[int, int]()
	keys := make([]int, 0, 1000)
	for step := range 4000 {
		if len(keys) > 0 && r.IntN(3) == 0 {
			i := r.IntN(len(keys))
			m = m.Remove(keys[i])
			keys[i] = keys[len(keys)-1]
			keys = keys[:len(keys)-1]
		} else {
			k := r.IntN(1 << 16)
			if !m.ContainsKey(k) {
				keys = append(keys, k)
			}
			m = m.Put(k, step)
		}
		if step%97 == 0 {
			expectInvariants(t, m)
		}
	}
	expectSize(t, m, len(keys))
	expectInvariants(t, m)
}

func TestNodeInPlaceEdits(t *testing.T) {
	b := NewBuilder[int, int]()
	if err := b.Put(1, 1); err != nil {
		t.Fatal(err)
	}
	root := b.root
	for i := 2; i < 32; i++ {
		if err := b.Put(i, i); err != nil {
			t.Fatal(err)
		}
	}
	if b.root != root {
		t.Errorf("expected the builder to edit its own root in place")
	}

	m, _ := b.Freeze()
	m2 := m.Put(1, 100)
	if m2.root == m.root {
		t.Errorf("expected a persistent Put to copy the frozen root")
	}
	expectPresent(t, 1, 1)(m.Get(1))
	expectPresent(t, 1, 100)(m2.Get(1))
}

func TestNodeSizePredicate(t *testing.T) {
	var n bitmapNode[int, int]
	if n.sizePredicate() != sizeEmpty {
		t.Errorf("expected empty")
	}
	n.entries = []entry[int, int]{{}}
	if n.sizePredicate() != sizeOne {
		t.Errorf("expected one")
	}
	n.entries = append(n.entries, entry[int, int]{})
	if n.sizePredicate() != sizeMany {
		t.Errorf("expected many")
	}
	chain := bitmapNode[int, int]{nodeMap: 1, nodes: []*node[int, int]{&n.node}}
	if chain.sizePredicate() != sizeMany {
		t.Errorf("expected a node with a child to count as many")
	}
}

func TestNodeKindPanics(t *testing.T) {
	n := &newBitmapNode[int, int](nil, 0, 0, nil, nil).node
	defer func() {
		if recover() == nil {
			t.Errorf("expected collision() on a bitmap node to panic")
		}
	}()
	n.collision()
}
