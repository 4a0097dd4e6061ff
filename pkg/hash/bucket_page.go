package hash

import (
	"io"

	"gatordb/pkg/buffer"
	"gatordb/pkg/disk"
	"gatordb/pkg/entry"
)

// bucketCapacity solves for the number of slots a bucket page can hold given
// the fixed entry width: two bitmap bytes regions of ceil(n/8) bytes each,
// then n slots of entryWidth bytes.
func bucketCapacity(entryWidth int64) int {
	n := (disk.PageSize * 8) / (entryWidth*8 + 2)
	for 2*((n+7)/8)+n*entryWidth > disk.PageSize {
		n--
	}
	return int(n)
}

// bucketPage is a typed view over a pinned bucket page: an occupied bitmap,
// a readable bitmap, and a fixed-capacity array of key/value slots. The view
// carries the codecs and capacity from its owning table.
type bucketPage[K any, V comparable] struct {
	page     *buffer.Page
	keyCodec entry.Codec[K]
	valCodec entry.Codec[V]
	capacity int
}

func (b *bucketPage[K, V]) bitmapBytes() int64 {
	return int64((b.capacity + 7) / 8)
}

func (b *bucketPage[K, V]) slotOffset(idx int) int64 {
	entryWidth := b.keyCodec.Width + b.valCodec.Width
	return 2*b.bitmapBytes() + int64(idx)*entryWidth
}

func (b *bucketPage[K, V]) testBit(base int64, idx int) bool {
	return b.page.GetData()[base+int64(idx/8)]&(1<<(idx%8)) != 0
}

func (b *bucketPage[K, V]) setBit(base int64, idx int, on bool) {
	offset := base + int64(idx/8)
	by := b.page.GetData()[offset]
	if on {
		by |= 1 << (idx % 8)
	} else {
		by &^= 1 << (idx % 8)
	}
	b.page.Update([]byte{by}, offset, 1)
}

// IsOccupied reports whether slot idx holds an entry.
func (b *bucketPage[K, V]) IsOccupied(idx int) bool {
	return b.testBit(0, idx)
}

// IsReadable reports whether slot idx holds a readable entry.
func (b *bucketPage[K, V]) IsReadable(idx int) bool {
	return b.testBit(b.bitmapBytes(), idx)
}

// KeyAt returns the key stored in slot idx.
func (b *bucketPage[K, V]) KeyAt(idx int) K {
	off := b.slotOffset(idx)
	return b.keyCodec.Decode(b.page.GetData()[off : off+b.keyCodec.Width])
}

// ValueAt returns the value stored in slot idx.
func (b *bucketPage[K, V]) ValueAt(idx int) V {
	off := b.slotOffset(idx) + b.keyCodec.Width
	return b.valCodec.Decode(b.page.GetData()[off : off+b.valCodec.Width])
}

// writeAt stores the pair into slot idx and marks it occupied and readable.
func (b *bucketPage[K, V]) writeAt(idx int, key K, value V) {
	off := b.slotOffset(idx)
	buf := make([]byte, b.keyCodec.Width+b.valCodec.Width)
	b.keyCodec.Encode(buf[:b.keyCodec.Width], key)
	b.valCodec.Encode(buf[b.keyCodec.Width:], value)
	b.page.Update(buf, off, int64(len(buf)))
	b.setBit(0, idx, true)
	b.setBit(b.bitmapBytes(), idx, true)
}

// ClearAt removes the entry in slot idx, clearing both bitmap bits so the
// slot is reusable and fullness reflects live entries.
func (b *bucketPage[K, V]) ClearAt(idx int) {
	b.setBit(0, idx, false)
	b.setBit(b.bitmapBytes(), idx, false)
}

// IsFull reports whether every slot is occupied.
func (b *bucketPage[K, V]) IsFull() bool {
	for i := 0; i < b.capacity; i++ {
		if !b.IsOccupied(i) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no slot is readable.
func (b *bucketPage[K, V]) IsEmpty() bool {
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			return false
		}
	}
	return true
}

// NumReadable returns the number of readable entries.
func (b *bucketPage[K, V]) NumReadable() int {
	count := 0
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			count++
		}
	}
	return count
}

// GetValue accumulates the values of every readable entry whose key compares
// equal to the given key.
func (b *bucketPage[K, V]) GetValue(key K, cmp Comparator[K]) []V {
	var result []V
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) && cmp(b.KeyAt(i), key) == 0 {
			result = append(result, b.ValueAt(i))
		}
	}
	return result
}

// Insert stores the pair in the first free slot. Returns false if the exact
// pair is already present or the bucket is full.
func (b *bucketPage[K, V]) Insert(key K, value V, cmp Comparator[K]) bool {
	free := -1
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			if cmp(b.KeyAt(i), key) == 0 && b.ValueAt(i) == value {
				return false
			}
		} else if free == -1 && !b.IsOccupied(i) {
			free = i
		}
	}
	if free == -1 {
		return false
	}
	b.writeAt(free, key, value)
	return true
}

// Remove clears the first entry matching both key and value. Returns whether
// anything was removed.
func (b *bucketPage[K, V]) Remove(key K, value V, cmp Comparator[K]) bool {
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) && cmp(b.KeyAt(i), key) == 0 && b.ValueAt(i) == value {
			b.ClearAt(i)
			return true
		}
	}
	return false
}

// Select returns all readable entries within this bucket.
func (b *bucketPage[K, V]) Select() []entry.Entry[K, V] {
	ret := make([]entry.Entry[K, V], 0, b.NumReadable())
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			ret = append(ret, entry.New(b.KeyAt(i), b.ValueAt(i)))
		}
	}
	return ret
}

// Print writes a string representation of this bucket's entries to the
// specified writer.
func (b *bucketPage[K, V]) Print(w io.Writer) {
	io.WriteString(w, "entries:")
	for _, e := range b.Select() {
		e.Print(w)
	}
	io.WriteString(w, "\n")
}
