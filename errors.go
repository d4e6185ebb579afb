package champ

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidArgument is returned by bulk constructors given a malformed
	// key/value list, such as an odd number of arguments or an element of
	// the wrong type.
	ErrInvalidArgument = errors.New("champ: invalid argument")

	// ErrAlreadyFrozen is returned by every mutating Builder method after
	// Freeze has been called.
	ErrAlreadyFrozen = errors.New("champ: builder already frozen")

	// ErrUnsupported is returned when an operation would mutate a Map in
	// place. Maps only ever return new maps.
	ErrUnsupported = errors.New("champ: unsupported operation")

	// ErrIteratorExhausted is returned when an iterator is advanced past its
	// last element.
	ErrIteratorExhausted = errors.New("champ: iterator exhausted")

	// ErrIllegalState is returned by BuilderIterator.Remove when there is no
	// yielded key to remove.
	ErrIllegalState = errors.New("champ: illegal iterator state")
)

// invariantf reports a defect in the trie algorithm itself. It is only
// reachable for a malformed trie.
func invariantf(format string, args ...any) {
	panic(errors.AssertionFailedf(format, args...))
}
