package champ

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"
)

// Stats describes the shape of a Map's trie. It is meant for debugging
// and tuning hash functions.
type Stats struct {
	// Nodes is the number of bitmap nodes, including the root.
	Nodes int
	// CollisionNodes is the number of buckets holding keys whose 32-bit
	// hashes are identical.
	CollisionNodes int
	// Entries is the number of entries found by walking the trie. It
	// equals Size for a well-formed Map.
	Entries int
	// MaxDepth is the deepest level holding a node, the root being 0.
	MaxDepth int
	// PayloadArity[i] is the number of bitmap nodes with i inline entries.
	PayloadArity [33]int
	// NodeArity[i] is the number of bitmap nodes with i children.
	NodeArity [33]int
}

// Stats walks the trie and returns its statistics.
func (m *Map[K, V]) Stats() *Stats {
	s := &Stats{}
	if m.root != nil {
		collectStats(s, &m.root.node, 0)
	}
	return s
}

func collectStats[K comparable, V any](s *Stats, n *node[K, V], depth int) {
	s.MaxDepth = max(s.MaxDepth, depth)
	if n.isCollision {
		s.CollisionNodes++
		s.Entries += len(n.collision().entries)
		return
	}
	bn := n.bitmap()
	s.Nodes++
	s.Entries += len(bn.entries)
	s.PayloadArity[len(bn.entries)]++
	s.NodeArity[len(bn.nodes)]++
	for _, child := range bn.nodes {
		collectStats(s, child, depth+1)
	}
}

// ToString returns string representation of trie stats.
func (s *Stats) ToString() string {
	var sb strings.Builder
	sb.WriteString("Stats{\n")
	sb.WriteString(fmt.Sprintf("Nodes:          %d\n", s.Nodes))
	sb.WriteString(fmt.Sprintf("CollisionNodes: %d\n", s.CollisionNodes))
	sb.WriteString(fmt.Sprintf("Entries:        %d\n", s.Entries))
	sb.WriteString(fmt.Sprintf("MaxDepth:       %d\n", s.MaxDepth))
	writeHistogram(&sb, "PayloadArity", s.PayloadArity[:])
	writeHistogram(&sb, "NodeArity", s.NodeArity[:])
	sb.WriteString("}\n")
	return sb.String()
}

func writeHistogram(sb *strings.Builder, name string, h []int) {
	sb.WriteString(name)
	sb.WriteString(":")
	for i, c := range h {
		if c != 0 {
			sb.WriteString(fmt.Sprintf(" %d:%d", i, c))
		}
	}
	sb.WriteString("\n")
}

// CheckInvariants walks the whole trie and verifies its structure and the
// cached size and hash. It returns an assertion failure describing the
// first violation found.
func (m *Map[K, V]) CheckInvariants() error {
	if m.root == nil {
		if m.size != 0 || m.hash != 0 {
			return errors.AssertionFailedf("empty trie with size %d and hash %#x", m.size, m.hash)
		}
		return nil
	}
	if m.root.sizePredicate() == sizeEmpty {
		return errors.AssertionFailedf("empty root node is not normalized to nil")
	}
	c := checker[K, V]{h: m.hasher()}
	if err := c.check(&m.root.node, 0, 0, true); err != nil {
		return err
	}
	if c.size != m.size {
		return errors.AssertionFailedf("cached size %d, trie holds %d entries", m.size, c.size)
	}
	if c.hash != m.hash {
		return errors.AssertionFailedf("cached hash %#x, trie hashes to %#x", m.hash, c.hash)
	}
	return nil
}

type checker[K comparable, V any] struct {
	h    *hasher[K, V]
	size int
	hash uint64
}

// check verifies the subtree n found at shift, whose keys must all agree
// with prefix on the hash bits below shift.
func (c *checker[K, V]) check(n *node[K, V], shift uint, prefix uint32, root bool) error {
	if n.isCollision {
		cn := n.collision()
		if shift < hashCodeLength {
			return errors.AssertionFailedf("collision node at shift %d", shift)
		}
		if cn.hash != prefix {
			return errors.AssertionFailedf("collision node %#x below prefix %#x", cn.hash, prefix)
		}
		if len(cn.entries) < 2 {
			return errors.AssertionFailedf("collision node %#x with %d entries", cn.hash, len(cn.entries))
		}
		for i := range cn.entries {
			e := &cn.entries[i]
			if e.hash != cn.hash {
				return errors.AssertionFailedf("entry hash %#x in collision node %#x", e.hash, cn.hash)
			}
			if cn.find(e.key, nil) != i {
				return errors.AssertionFailedf("duplicate key %v in collision node %#x", e.key, cn.hash)
			}
			if err := c.entry(e); err != nil {
				return err
			}
		}
		return nil
	}

	bn := n.bitmap()
	if shift >= hashCodeLength {
		return errors.AssertionFailedf("bitmap node at shift %d", shift)
	}
	if bn.dataMap&bn.nodeMap != 0 {
		return errors.AssertionFailedf("overlapping bitmaps %#x and %#x at shift %d", bn.dataMap, bn.nodeMap, shift)
	}
	if bits.OnesCount32(bn.dataMap) != len(bn.entries) || bits.OnesCount32(bn.nodeMap) != len(bn.nodes) {
		return errors.AssertionFailedf("bitmaps %#x/%#x disagree with %d entries and %d nodes at shift %d",
			bn.dataMap, bn.nodeMap, len(bn.entries), len(bn.nodes), shift)
	}
	if !root && bn.sizePredicate() != sizeMany {
		return errors.AssertionFailedf("non-root node with %d entries and no children at shift %d", len(bn.entries), shift)
	}

	low := uint32(1)<<shift - 1
	dataMap := bn.dataMap
	for i := range bn.entries {
		e := &bn.entries[i]
		bit := dataMap & -dataMap
		dataMap ^= bit
		if bitpos(e.hash, shift) != bit || e.hash&low != prefix {
			return errors.AssertionFailedf("entry %v with hash %#x misplaced at shift %d", e.key, e.hash, shift)
		}
		if err := c.entry(e); err != nil {
			return err
		}
	}
	nodeMap := bn.nodeMap
	for _, child := range bn.nodes {
		bit := nodeMap & -nodeMap
		nodeMap ^= bit
		childPrefix := prefix | uint32(bits.TrailingZeros32(bit))<<shift
		if err := c.check(child, shift+bitPartitionSize, childPrefix, false); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker[K, V]) entry(e *entry[K, V]) error {
	if hash := c.h.hashKey(e.key); hash != e.hash {
		return errors.AssertionFailedf("entry %v stores hash %#x, key hashes to %#x", e.key, e.hash, hash)
	}
	c.size++
	c.hash += c.h.entryHash(e.hash, e.value)
	return nil
}
