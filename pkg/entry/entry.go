// Package entry defines the key-value pair stored by indexes and the
// fixed-width binary codecs used to lay pairs out on pages.
package entry

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Entry is a key-value pair stored in a hash bucket.
type Entry[K any, V any] struct {
	Key   K
	Value V
}

// New constructs and returns a new Entry with the specified key and value.
func New[K any, V any](key K, value V) Entry[K, V] {
	return Entry[K, V]{Key: key, Value: value}
}

// Print writes the entry to the specified writer in the following format,
// trailing separator included: (<key>, <value>),
func (entry Entry[K, V]) Print(w io.Writer) {
	fmt.Fprintf(w, "(%v, %v), ", entry.Key, entry.Value)
}

// Codec describes a fixed-width binary encoding for a type. Every encoded
// value occupies exactly Width bytes, which is what lets bucket pages address
// slots at fixed offsets.
type Codec[T any] struct {
	Width  int64
	Encode func(buf []byte, v T)
	Decode func(buf []byte) T
}

// Int64Codec stores an int64 as a varint inside a fixed MaxVarintLen64 slot.
var Int64Codec = Codec[int64]{
	Width: binary.MaxVarintLen64,
	Encode: func(buf []byte, v int64) {
		binary.PutVarint(buf[:binary.MaxVarintLen64], v)
	},
	Decode: func(buf []byte) int64 {
		v, _ := binary.Varint(buf[:binary.MaxVarintLen64])
		return v
	},
}

// Int32Codec stores an int32 in 4 little-endian bytes.
var Int32Codec = Codec[int32]{
	Width: 4,
	Encode: func(buf []byte, v int32) {
		binary.LittleEndian.PutUint32(buf, uint32(v))
	},
	Decode: func(buf []byte) int32 {
		return int32(binary.LittleEndian.Uint32(buf))
	},
}
