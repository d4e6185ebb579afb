package champ

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// String Implement the formatting output interface for fmt.Print %v
func (m *Map[K, V]) String() string {
	return strings.Replace(fmt.Sprint(m.ToMap()), "map[", "Map[", 1)
}

// MarshalJSON JSON serialization
func (m *Map[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

// UnmarshalJSON JSON deserialization.
// Only an empty Map may be decoded into, since a Map is never modified once
// it holds entries; otherwise it fails with ErrUnsupported.
func (m *Map[K, V]) UnmarshalJSON(data []byte) error {
	if m.size != 0 {
		return errors.Wrapf(ErrUnsupported, "decoding into a map of size %d", m.size)
	}
	var a map[K]V
	if err := json.Unmarshal(data, &a); err != nil {
		return errors.Wrap(err, "champ: decoding map")
	}
	b := &Builder[K, V]{h: m.hasher(), edit: newEditToken()}
	for k, v := range a {
		b.put(k, v, nil)
	}
	*m = Map[K, V]{root: b.root, size: b.size, hash: b.hash, h: b.h}
	return nil
}
