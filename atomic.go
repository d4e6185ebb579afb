package champ

import (
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/champ/internal/opt"
)

// AtomicMap is a shared, atomically replaceable reference to a Map.
//
// Readers Load a snapshot and use it without further synchronization.
// Writers derive a new Map from the current one and publish it with a
// compare-and-swap, retrying if another writer got there first. The holder
// is padded to a cache line so that adjacent holders do not share one.
//
// The zero AtomicMap holds an empty Map and is ready to use.
// It must not be copied after first use.
type AtomicMap[K comparable, V any] struct {
	//lint:ignore U1000 prevents false sharing
	pad [(opt.CacheLineSize_ - unsafe.Sizeof(struct {
		p unsafe.Pointer
	}{})%opt.CacheLineSize_) % opt.CacheLineSize_]byte

	p atomic.Pointer[Map[K, V]]
}

// NewAtomicMap returns a holder initialized with m.
// A nil m is replaced by an empty Map configured with options.
func NewAtomicMap[K comparable, V any](m *Map[K, V], options ...func(*MapConfig)) *AtomicMap[K, V] {
	if m == nil {
		m = Empty[K, V](options...)
	}
	a := &AtomicMap[K, V]{}
	a.p.Store(m)
	return a
}

func (a *AtomicMap[K, V]) init() *Map[K, V] {
	m := a.p.Load()
	if m == nil {
		return a.initSlow()
	}
	return m
}

//go:noinline
func (a *AtomicMap[K, V]) initSlow() *Map[K, V] {
	m := Empty[K, V]()
	if a.p.CompareAndSwap(nil, m) {
		return m
	}
	return a.p.Load()
}

// Load returns the current snapshot.
func (a *AtomicMap[K, V]) Load() *Map[K, V] {
	return a.init()
}

// Store publishes m. A nil m is stored as an empty Map.
func (a *AtomicMap[K, V]) Store(m *Map[K, V]) {
	if m == nil {
		m = Empty[K, V]()
	}
	a.p.Store(m)
}

// Swap publishes m and returns the previous snapshot.
func (a *AtomicMap[K, V]) Swap(m *Map[K, V]) (previous *Map[K, V]) {
	a.init()
	if m == nil {
		m = Empty[K, V]()
	}
	return a.p.Swap(m)
}

// CompareAndSwap publishes new if the current snapshot is old.
// Snapshots are compared by identity.
func (a *AtomicMap[K, V]) CompareAndSwap(old, new *Map[K, V]) (swapped bool) {
	a.init()
	if new == nil {
		new = Empty[K, V]()
	}
	return a.p.CompareAndSwap(old, new)
}

// Update applies fn to the current snapshot and publishes the result,
// retrying with the latest snapshot until no other writer interferes.
// fn may be called more than once and must not have side effects.
// If fn returns its argument, nothing is published.
func (a *AtomicMap[K, V]) Update(fn func(*Map[K, V]) *Map[K, V]) (old, new *Map[K, V]) {
	for {
		old = a.init()
		new = fn(old)
		if new == old {
			return
		}
		if new == nil {
			new = Empty[K, V]()
		}
		if a.p.CompareAndSwap(old, new) {
			return
		}
	}
}

// Put publishes the current snapshot with key bound to val and returns
// the published Map.
func (a *AtomicMap[K, V]) Put(key K, val V) *Map[K, V] {
	_, m := a.Update(func(m *Map[K, V]) *Map[K, V] {
		return m.Put(key, val)
	})
	return m
}

// Remove publishes the current snapshot without key and returns the
// published Map.
func (a *AtomicMap[K, V]) Remove(key K) *Map[K, V] {
	_, m := a.Update(func(m *Map[K, V]) *Map[K, V] {
		return m.Remove(key)
	})
	return m
}
