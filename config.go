package champ

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// ============================================================================
// Configuration
// ============================================================================

// MapConfig defines configurable options for Map and Builder creation.
// Maps derived from one another (Put, Remove, AsTransient, Freeze) share the
// configuration of the map they were derived from.
type MapConfig struct {
	// keyHash specifies a custom hash function for keys.
	// If nil, the built-in hash function will be used.
	keyHash HashFunc

	// valHash specifies a custom hash function for values. Value hashes
	// only feed HashCode. If nil, the built-in hash function is used when
	// the value type is comparable, and values contribute nothing otherwise.
	valHash HashFunc

	// valEqual specifies a custom equality function for values.
	// It decides whether Put of an equal value is a no-op, and is used by
	// Equal. If nil, the built-in comparison is used for comparable types.
	valEqual EqualFunc

	// mix is applied once to every folded 32-bit key hash before it is
	// used to descend the trie. Identity by default.
	mix func(uint32) uint32

	seed    uintptr
	hasSeed bool
}

// WithKeyHasher sets a custom key hashing function.
//
// Usage:
//
//	m := champ.Empty[string, int](champ.WithKeyHasher(func(k string, seed uintptr) uintptr {
//		return uintptr(len(k)) ^ seed
//	}))
//
// Notes:
//   - Keys that are equal must hash equally
//   - Only the low 32 bits (folded with the high bits on 64-bit platforms)
//     select trie slots; keys whose folded hashes collide share a collision
//     bucket
func WithKeyHasher[K comparable](
	keyHash func(key K, seed uintptr) uintptr,
) func(*MapConfig) {
	return func(c *MapConfig) {
		if keyHash != nil {
			c.keyHash = func(pointer unsafe.Pointer, u uintptr) uintptr {
				return keyHash(*(*K)(pointer), u)
			}
		}
	}
}

// WithKeyHasherUnsafe sets a low-level unsafe key hashing function
// operating directly on a pointer to the key.
//
// Usage:
//
//	m := champ.Empty[string, int](champ.WithKeyHasherUnsafe(champ.GetBuiltInHasher[string]()))
func WithKeyHasherUnsafe(hs HashFunc) func(*MapConfig) {
	return func(c *MapConfig) {
		c.keyHash = hs
	}
}

// WithValueEqual sets a custom value equality function.
// It is required for Equal when the value type is not comparable.
func WithValueEqual[V any](
	valEqual func(val, val2 V) bool,
) func(*MapConfig) {
	return func(c *MapConfig) {
		if valEqual != nil {
			c.valEqual = func(val unsafe.Pointer, val2 unsafe.Pointer) bool {
				return valEqual(*(*V)(val), *(*V)(val2))
			}
		}
	}
}

// WithValueHasher sets a custom value hashing function used by HashCode.
func WithValueHasher[V any](
	valHash func(val V, seed uintptr) uintptr,
) func(*MapConfig) {
	return func(c *MapConfig) {
		if valHash != nil {
			c.valHash = func(pointer unsafe.Pointer, u uintptr) uintptr {
				return valHash(*(*V)(pointer), u)
			}
		}
	}
}

// WithSeed fixes the hash seed. By default every map in the process shares
// one random seed, so equal maps report equal HashCode values within a
// process but not across processes.
func WithSeed(seed uintptr) func(*MapConfig) {
	return func(c *MapConfig) {
		c.seed = seed
		c.hasSeed = true
	}
}

// WithHashMixer installs a pre-mix step applied once to every key hash
// before trie descent. It is useful when the key hash has poor low bits,
// for example integer keys that are multiples of a power of two.
//
// Usage:
//
//	m := champ.Empty[int, string](champ.WithHashMixer(func(h uint32) uint32 {
//		h ^= h >> 16
//		h *= 0x45d9f3b
//		return h ^ h>>16
//	}))
func WithHashMixer(mix func(uint32) uint32) func(*MapConfig) {
	return func(c *MapConfig) {
		c.mix = mix
	}
}

// WithBuiltInHasher returns a MapConfig option that explicitly sets the
// built-in hash function for the specified type, bypassing the integer
// fast paths of the default hasher.
//
// Usage:
//
//	m := champ.Empty[int, string](champ.WithBuiltInHasher[int]())
func WithBuiltInHasher[T comparable]() func(*MapConfig) {
	return func(c *MapConfig) {
		c.keyHash = GetBuiltInHasher[T]()
	}
}

// GetBuiltInHasher returns Go's built-in hash function for the specified
// type, the same function the built-in map uses.
func GetBuiltInHasher[T comparable]() HashFunc {
	keyHash, _ := defaultHasherUsingBuiltIn[T, struct{}]()
	return keyHash
}

// IntHasher returns an identity hasher for any integer kind, including
// named integer types that the default hasher cannot recognize.
//
// Usage:
//
//	type UserID int64
//	m := champ.Empty[UserID, string](champ.WithKeyHasher(champ.IntHasher[UserID]()))
func IntHasher[T constraints.Integer]() func(key T, seed uintptr) uintptr {
	return func(key T, _ uintptr) uintptr {
		v := uint64(key)
		if intSize == 64 {
			return uintptr(v)
		}
		return uintptr(v) ^ uintptr(v>>32)
	}
}

// IHashFunc defines a custom hash function interface for key and value
// types. It is detected on the pointer type and takes precedence over the
// built-in hasher, but is overridden by explicit WithKeyHasher or
// WithValueHasher configuration.
//
// Usage:
//
//	type UserID struct {
//		ID     int64
//		Tenant string
//	}
//
//	func (u *UserID) HashFunc(seed uintptr) uintptr {
//		return uintptr(u.ID) ^ seed
//	}
type IHashFunc interface {
	HashFunc(seed uintptr) uintptr
}

// IEqualFunc defines a custom equality comparison interface for value
// types. It is detected on the pointer type and overridden by explicit
// WithValueEqual configuration.
//
// Usage:
//
//	type UserProfile struct {
//		Name string
//		Tags []string // slice makes this non-comparable
//	}
//
//	func (u *UserProfile) EqualFunc(other UserProfile) bool {
//		return u.Name == other.Name && slices.Equal(u.Tags, other.Tags)
//	}
type IEqualFunc[T any] interface {
	EqualFunc(other T) bool
}

func parseHashInterface[T any]() (hash HashFunc) {
	var p *T
	if _, ok := any(p).(IHashFunc); ok {
		hash = func(ptr unsafe.Pointer, seed uintptr) uintptr {
			return any((*T)(ptr)).(IHashFunc).HashFunc(seed)
		}
	}
	return
}

func parseValueInterface[V any]() (valEqual EqualFunc) {
	var v *V
	if _, ok := any(v).(IEqualFunc[V]); ok {
		valEqual = func(ptr unsafe.Pointer, other unsafe.Pointer) bool {
			return any((*V)(ptr)).(IEqualFunc[V]).EqualFunc(*(*V)(other))
		}
	}
	return
}
