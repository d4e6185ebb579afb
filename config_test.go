package champ

import (
	"slices"
	"testing"
	"unsafe"
)

func TestIntHasher(t *testing.T) {
	type userID int64
	hs := IntHasher[userID]()
	for _, id := range []userID{0, 1, 1 << 20, -1} {
		if got, want := hs(id, 99), uintptr(uint64(id)); intSize == 64 && got != want {
			t.Errorf("IntHasher(%d) = %#x, want %#x", id, got, want)
		}
	}

	m := Empty[userID, string](WithKeyHasher(IntHasher[userID]()))
	m = m.Put(1, "a").Put(33, "b")
	if m.root.nodeMap != 1<<1 {
		t.Errorf("expected identity hashing to split 1 and 33 one level down")
	}
	expectPresent(t, userID(33), "b")(m.Get(33))
}

func TestWithHashMixer(t *testing.T) {
	calls := 0
	mix := func(h uint32) uint32 {
		calls++
		return ^h
	}
	m := Empty[int, int](WithHashMixer(mix)).Put(1, 1)
	if calls != 1 {
		t.Errorf("expected the mixer to run once per Put, ran %d times", calls)
	}
	if got := m.root.entries[0].hash; got != ^uint32(1) {
		t.Errorf("expected the stored hash to be mixed, got %#x", got)
	}
	expectPresent(t, 1, 1)(m.Get(1))
}

func TestWithSeed(t *testing.T) {
	var seen uintptr
	m := Empty[string, int](WithSeed(12345), WithKeyHasher(func(k string, seed uintptr) uintptr {
		seen = seed
		return uintptr(len(k))
	}))
	m.Put("abc", 1)
	if seen != 12345 {
		t.Errorf("expected the configured seed to reach the hasher, got %d", seen)
	}

	a := Empty[string, int]().Put("x", 1)
	b := Empty[string, int]().Put("x", 1)
	if a.HashCode() != b.HashCode() {
		t.Errorf("expected maps sharing the process seed to agree on HashCode")
	}
}

func TestGetBuiltInHasher(t *testing.T) {
	hs := GetBuiltInHasher[string]()
	if hs == nil {
		t.Fatal("expected a built-in hasher for string")
	}
	a, b := "hello", "hello"
	if hs(unsafe.Pointer(&a), 1) != hs(unsafe.Pointer(&b), 1) {
		t.Errorf("expected equal strings to hash equally")
	}

	m := Empty[int, int](WithBuiltInHasher[int]())
	for i := range 100 {
		m = m.Put(i, i)
	}
	expectInvariants(t, m)
}

type pointKey struct {
	X, Y int
}

// HashFunc collapses every point onto its X coordinate.
func (p *pointKey) HashFunc(seed uintptr) uintptr {
	return uintptr(p.X)
}

type tagged struct {
	Name string
	Tags []string
}

func (t *tagged) EqualFunc(other tagged) bool {
	return t.Name == other.Name && slices.Equal(t.Tags, other.Tags)
}

func (t *tagged) HashFunc(seed uintptr) uintptr {
	return uintptr(len(t.Name)) ^ seed
}

func TestHashInterfaces(t *testing.T) {
	m := Empty[pointKey, int]()
	for y := range 10 {
		m = m.Put(pointKey{1, y}, y)
	}
	if s := m.Stats(); s.CollisionNodes != 1 {
		t.Errorf("expected the key HashFunc to be used\n%s", s.ToString())
	}
	expectPresent(t, pointKey{1, 3}, 3)(m.Get(pointKey{1, 3}))

	v := Empty[string, tagged]().Put("a", tagged{"x", []string{"t"}})
	if got := v.Put("a", tagged{"x", []string{"t"}}); got != v {
		t.Errorf("expected the value EqualFunc to make Put idempotent")
	}
	if !v.Equal(v.Put("b", tagged{}).Remove("b")) {
		t.Errorf("expected maps with EqualFunc values to compare equal")
	}
	h := v.hasher()
	if h.hashValue(tagged{Name: "abc"}) != fold(3^h.seed) {
		t.Errorf("expected the value HashFunc to be used")
	}
}

func TestExplicitOptionsWin(t *testing.T) {
	// Explicit options take precedence over the interfaces.
	m := Empty[pointKey, int](WithKeyHasher(func(p pointKey, _ uintptr) uintptr {
		return uintptr(p.Y)
	}))
	for y := range 10 {
		m = m.Put(pointKey{1, y}, y)
	}
	if s := m.Stats(); s.CollisionNodes != 0 {
		t.Errorf("expected distinct hashes from the explicit hasher\n%s", s.ToString())
	}

	v := Empty[string, tagged](WithValueEqual(func(a, b tagged) bool {
		return a.Name == b.Name
	})).Put("a", tagged{"x", []string{"t"}})
	if got := v.Put("a", tagged{"x", nil}); got != v {
		t.Errorf("expected the explicit value equality to be used")
	}
}
