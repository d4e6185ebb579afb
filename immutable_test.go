package champ

import (
	"math/rand/v2"
	"testing"

	"github.com/benbjohnson/immutable"
)

// TestAgainstHAMT replays random operations on a Map, a Builder and
// benbjohnson/immutable's HAMT, and checks that all three agree.
func TestAgainstHAMT(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	ref := immutable.NewMap[int, int](nil)
	m := Empty[int, int]()
	b := NewBuilder[int, int]()

	steps := 20000
	for step := range steps {
		k := r.IntN(3000)
		switch r.IntN(4) {
		case 0:
			ref = ref.Delete(k)
			m = m.Remove(k)
			_ = b.Remove(k)
		default:
			v := r.IntN(100)
			ref = ref.Set(k, v)
			m = m.Put(k, v)
			_ = b.Put(k, v)
		}
		if m.Size() != ref.Len() || b.Size() != ref.Len() {
			t.Fatalf("step %d: size %d/%d, want %d", step, m.Size(), b.Size(), ref.Len())
		}
		want, wantOK := ref.Get(k)
		got, ok := m.Get(k)
		if ok != wantOK || got != want {
			t.Fatalf("step %d: Get(%d) = %d, %v, want %d, %v", step, k, got, ok, want, wantOK)
		}
	}

	itr := ref.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		expectPresent(t, k, v)(m.Get(k))
		expectPresent(t, k, v)(b.Get(k))
	}
	count := 0
	for k, v := range m.All() {
		if want, ok := ref.Get(k); !ok || want != v {
			t.Errorf("key %d has value %d, reference has %d, %v", k, v, want, ok)
		}
		count++
	}
	if count != ref.Len() {
		t.Errorf("iterated %d entries, want %d", count, ref.Len())
	}

	frozen, err := b.Freeze()
	if err != nil {
		t.Fatal(err)
	}
	if !frozen.Equal(m) || frozen.HashCode() != m.HashCode() {
		t.Errorf("builder and persistent map disagree")
	}
	expectInvariants(t, m)
}
