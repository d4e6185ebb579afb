package champ

import (
	"math/rand/v2"
	"reflect"
	"sync"
	"unsafe"
)

const (
	intSize = 32 << (^uint(0) >> 63) // 32 or 64

	// bitPartitionSize is the number of hash bits consumed per trie level.
	bitPartitionSize = 5
	bitPartitionMask = 1<<bitPartitionSize - 1
	// hashCodeLength is the width of the hash a key is reduced to.
	hashCodeLength = 32
	// maxDepth is the number of bitmap levels a 32-bit hash can address;
	// a collision node may sit one level below the last of them.
	maxDepth = (hashCodeLength + bitPartitionSize - 1) / bitPartitionSize
)

type (
	// HashFunc is the function to hash a value of type K.
	HashFunc func(ptr unsafe.Pointer, seed uintptr) uintptr
	// EqualFunc is the function to compare two values of type V.
	EqualFunc func(ptr unsafe.Pointer, other unsafe.Pointer) bool
)

// processSeed is shared by every map that does not set WithSeed.
var processSeed = uintptr(rand.Uint64())

// hasher carries everything the trie needs to know about K and V. It is
// created once per Empty/NewBuilder call and shared by every map derived
// from it; Equal compares hashers by identity to decide whether two tries
// can be compared structurally.
type hasher[K comparable, V any] struct {
	seed     uintptr
	keyHash  HashFunc
	valHash  HashFunc
	valEqual EqualFunc
	mix      func(uint32) uint32
}

func newHasher[K comparable, V any](options ...func(*MapConfig)) *hasher[K, V] {
	if len(options) != 0 {
		return buildHasher[K, V](options...)
	}
	// Unconfigured maps of one type share a hasher so Equal can compare
	// their tries node by node.
	typ := [2]reflect.Type{reflect.TypeFor[K](), reflect.TypeFor[V]()}
	if h, ok := defaultHashers.Load(typ); ok {
		return h.(*hasher[K, V])
	}
	h, _ := defaultHashers.LoadOrStore(typ, buildHasher[K, V]())
	return h.(*hasher[K, V])
}

// defaultHashers caches the unconfigured hasher per key and value type.
var defaultHashers sync.Map

func buildHasher[K comparable, V any](options ...func(*MapConfig)) *hasher[K, V] {
	var cfg MapConfig
	for _, o := range options {
		o(&cfg)
	}

	// parse interface
	if cfg.keyHash == nil {
		cfg.keyHash = parseHashInterface[K]()
	}
	if cfg.valHash == nil {
		cfg.valHash = parseHashInterface[V]()
	}
	if cfg.valEqual == nil {
		cfg.valEqual = parseValueInterface[V]()
	}

	h := &hasher[K, V]{seed: processSeed, mix: cfg.mix}
	h.keyHash, h.valEqual = defaultHasher[K, V]()
	h.valHash = valueHasherUsingBuiltIn[V]()
	if reflect.TypeFor[V]().Kind() == reflect.Interface {
		// Dynamic values may be unhashable or uncomparable.
		h.valHash, h.valEqual = tolerantHash(h.valHash), tolerantEqual(h.valEqual)
	}
	if cfg.keyHash != nil {
		h.keyHash = cfg.keyHash
	}
	if cfg.valHash != nil {
		h.valHash = cfg.valHash
	}
	if cfg.valEqual != nil {
		h.valEqual = cfg.valEqual
	}
	if cfg.hasSeed {
		h.seed = cfg.seed
	}
	return h
}

// hashKey folds the platform hash of key to 32 bits and applies the mixer.
func (h *hasher[K, V]) hashKey(key K) uint32 {
	hash := fold(h.keyHash(noescape(unsafe.Pointer(&key)), h.seed))
	if h.mix != nil {
		hash = h.mix(hash)
	}
	return hash
}

// hashValue returns 0 when the value type has no usable hasher.
func (h *hasher[K, V]) hashValue(val V) uint32 {
	if h.valHash == nil {
		return 0
	}
	return fold(h.valHash(noescape(unsafe.Pointer(&val)), h.seed))
}

// valuesEqual reports false when the value type has no equality at all,
// so that Put always replaces such values.
func (h *hasher[K, V]) valuesEqual(a, b V) bool {
	if h.valEqual == nil {
		return false
	}
	return h.valEqual(noescape(unsafe.Pointer(&a)), noescape(unsafe.Pointer(&b)))
}

func (h *hasher[K, V]) entryHash(keyHash uint32, val V) uint64 {
	return uint64(keyHash ^ h.hashValue(val))
}

//go:nosplit
func fold(hash uintptr) uint32 {
	return uint32(hash) ^ uint32(uint64(hash)>>32)
}

//go:nosplit
func mask(hash uint32, shift uint) uint32 {
	return (hash >> shift) & bitPartitionMask
}

//go:nosplit
func bitpos(hash uint32, shift uint) uint32 {
	return 1 << mask(hash, shift)
}

func defaultHasher[K comparable, V any]() (
	keyHash HashFunc,
	valEqual EqualFunc,
) {
	keyHash, valEqual = defaultHasherUsingBuiltIn[K, V]()

	switch any(*new(K)).(type) {
	case uint, int, uintptr:
		return hashUintptr, valEqual
	case uint64, int64:
		if intSize == 64 {
			return hashUint64, valEqual
		} else {
			return hashUint64On32Bit, valEqual
		}
	case uint32, int32:
		return hashUint32, valEqual
	case uint16, int16:
		return hashUint16, valEqual
	case uint8, int8:
		return hashUint8, valEqual
	default:
		return keyHash, valEqual
	}
}

//go:nosplit
func hashUintptr(ptr unsafe.Pointer, _ uintptr) uintptr {
	return *(*uintptr)(ptr)
}

//go:nosplit
func hashUint64On32Bit(ptr unsafe.Pointer, _ uintptr) uintptr {
	v := *(*uint64)(ptr)
	return uintptr(v) ^ uintptr(v>>32)
}

//go:nosplit
func hashUint64(ptr unsafe.Pointer, _ uintptr) uintptr {
	return uintptr(*(*uint64)(ptr))
}

//go:nosplit
func hashUint32(ptr unsafe.Pointer, _ uintptr) uintptr {
	return uintptr(*(*uint32)(ptr))
}

//go:nosplit
func hashUint16(ptr unsafe.Pointer, _ uintptr) uintptr {
	return uintptr(*(*uint16)(ptr))
}

//go:nosplit
func hashUint8(ptr unsafe.Pointer, _ uintptr) uintptr {
	return uintptr(*(*uint8)(ptr))
}

// defaultHasherUsingBuiltIn obtains Go's built-in hash and equality functions
// for the specified types using reflection.
//
// valEqual is nil when V is not comparable.
//
// Notes:
//   - This implementation relies on Go's internal type representation
//   - It should be verified for compatibility with each Go version upgrade
func defaultHasherUsingBuiltIn[K comparable, V any]() (
	keyHash HashFunc,
	valEqual EqualFunc,
) {
	var m map[K]V
	mapType := iTypeOf(m).MapType()
	return mapType.Hasher, mapType.Elem.Equal
}

// valueHasherUsingBuiltIn returns the built-in hasher for V when V is
// comparable. V is not constrained to be comparable, so the map type is
// built through reflection instead of being spelled out.
func valueHasherUsingBuiltIn[V any]() HashFunc {
	t := reflect.TypeFor[V]()
	if !t.Comparable() {
		return nil
	}
	mt := reflect.MapOf(t, reflect.TypeFor[struct{}]())
	return iTypeOf(reflect.Zero(mt).Interface()).MapType().Hasher
}

func tolerantHash(hs HashFunc) HashFunc {
	return func(ptr unsafe.Pointer, seed uintptr) (hash uintptr) {
		defer func() {
			if recover() != nil {
				hash = 0
			}
		}()
		return hs(ptr, seed)
	}
}

func tolerantEqual(eq EqualFunc) EqualFunc {
	return func(ptr unsafe.Pointer, other unsafe.Pointer) (equal bool) {
		defer func() {
			if recover() != nil {
				equal = false
			}
		}()
		return eq(ptr, other)
	}
}

type (
	iTFlag   uint8
	iKind    uint8
	iNameOff int32
)

// TypeOff is the offset to a type from moduledata.types.  See resolveTypeOff in runtime.
type iTypeOff int32

type iType struct {
	Size_       uintptr
	PtrBytes    uintptr // number of (prefix) bytes in the type that can contain pointers
	Hash        uint32  // hash of type; avoids computation in hash tables
	TFlag       iTFlag  // extra type information flags
	Align_      uint8   // alignment of variable with this type
	FieldAlign_ uint8   // alignment of struct field with this type
	Kind_       iKind   // enumeration for C
	// function for comparing objects of this type
	// (ptr to object A, ptr to object B) -> ==?
	Equal     func(unsafe.Pointer, unsafe.Pointer) bool
	GCData    *byte
	Str       iNameOff // string form
	PtrToThis iTypeOff // type for pointer to this type, may be zero
}

func (t *iType) MapType() *iMapType {
	return (*iMapType)(unsafe.Pointer(t))
}

type iMapType struct {
	iType
	Key   *iType
	Elem  *iType
	Group *iType // internal type representing a slot group
	// function for hashing keys (ptr to key, seed) -> hash
	Hasher func(unsafe.Pointer, uintptr) uintptr
}

func iTypeOf(a any) *iType {
	eface := *(*iEmptyInterface)(unsafe.Pointer(&a))
	// Types are either static (for compiler-created types) or
	// heap-allocated but always reachable (for reflection-created
	// types, held in the central map). So there is no need to
	// escape types. noescape here help avoid unnecessary escape
	// of v.
	return (*iType)(noescape(unsafe.Pointer(eface.Type)))
}

type iEmptyInterface struct {
	Type *iType
	Data unsafe.Pointer
}

// noescape hides a pointer from escape analysis.  noescape is
// the identity function but escape analysis doesn't think the
// output depends on the input.  noescape is inlined and currently
// compiles down to zero instructions.
// USE CAREFULLY!
//
// nolint:all
//
//go:nosplit
//goland:noinspection ALL
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
