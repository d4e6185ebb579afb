package champ

import "sync/atomic"

// editToken is the exclusive-edit capability a Builder hands to node
// operations. A node stamped with the caller's token may be mutated in
// place; any other node is copied and the copy is stamped with the caller's
// token. Persistent operations pass a nil token, which never matches.
//
// Tokens compare by identity. The generation only makes them distinct in
// size and readable in a debugger.
type editToken struct {
	gen uint64
}

var editGen atomic.Uint64

func newEditToken() *editToken {
	return &editToken{gen: editGen.Add(1)}
}

//go:nosplit
func isEditable(owner, edit *editToken) bool {
	return edit != nil && owner == edit
}

type updateKind uint8

const (
	unchanged updateKind = iota
	inserted
	// replaced is also what remove reports for a deleted entry; old then
	// holds the removed value.
	replaced
)

// result describes what a node update or remove did, so that callers can
// adjust cached size and hash without traversing the trie again.
type result[V any] struct {
	kind updateKind
	old  V
}

// sizePredicate classifies a node by the number of entries it holds,
// counting a node with any child as holding many.
type sizePredicate uint8

const (
	sizeEmpty sizePredicate = iota
	sizeOne
	sizeMany
)
