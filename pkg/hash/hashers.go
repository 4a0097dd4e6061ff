package hash

import (
	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"

	"gatordb/pkg/entry"
)

// Comparator is a total order on keys: negative if a < b, zero if equal,
// positive if a > b.
type Comparator[K any] func(a, b K) int

// HashFunc maps a key to the 32-bit hash the directory is indexed by.
type HashFunc[K any] func(key K) uint32

// Int64Comparator compares int64 keys.
func Int64Comparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// encodeKey runs a key through its codec into a scratch buffer for hashing.
func encodeKey[K any](codec entry.Codec[K], key K) []byte {
	buf := make([]byte, codec.Width)
	codec.Encode(buf, key)
	return buf
}

// MurmurHasher returns a hash capability built on the 32-bit variant of
// MurmurHash3.
func MurmurHasher[K any](codec entry.Codec[K]) HashFunc[K] {
	return func(key K) uint32 {
		return murmur3.Sum32(encodeKey(codec, key))
	}
}

// XxHasher returns a hash capability built on xxHash, downcast to 32 bits.
func XxHasher[K any](codec entry.Codec[K]) HashFunc[K] {
	return func(key K) uint32 {
		return uint32(xxhash.Sum64(encodeKey(codec, key)))
	}
}
