package hash

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"gatordb/pkg/buffer"
	"gatordb/pkg/disk"
)

// directoryPage is a typed view over the pinned page holding the hash
// table's directory. All reads and writes go through fixed offsets on the
// raw page bytes; writes mark the page dirty.
type directoryPage struct {
	page *buffer.Page
}

func asDirectoryPage(page *buffer.Page) *directoryPage {
	return &directoryPage{page: page}
}

func (d *directoryPage) readU32(offset int64) uint32 {
	return binary.LittleEndian.Uint32(d.page.GetData()[offset : offset+4])
}

func (d *directoryPage) writeU32(offset int64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	d.page.Update(buf[:], offset, 4)
}

// PageID returns the directory's own page id as recorded on the page.
func (d *directoryPage) PageID() disk.PageID {
	return disk.PageID(d.readU32(dirPageIDOffset))
}

// SetPageID records the directory's own page id on the page.
func (d *directoryPage) SetPageID(id disk.PageID) {
	d.writeU32(dirPageIDOffset, uint32(id))
}

// LSN returns the log sequence number recorded on the page.
func (d *directoryPage) LSN() uint32 {
	return d.readU32(dirLSNOffset)
}

// SetLSN records a log sequence number on the page.
func (d *directoryPage) SetLSN(lsn uint32) {
	d.writeU32(dirLSNOffset, lsn)
}

// GlobalDepth returns the number of low hash bits used to index the directory.
func (d *directoryPage) GlobalDepth() uint32 {
	return d.readU32(dirGlobalDepthOffset)
}

// GlobalDepthMask returns the mask selecting the low globalDepth hash bits.
func (d *directoryPage) GlobalDepthMask() uint32 {
	return (1 << d.GlobalDepth()) - 1
}

// IncrGlobalDepth doubles the live portion of the directory.
func (d *directoryPage) IncrGlobalDepth() {
	d.writeU32(dirGlobalDepthOffset, d.GlobalDepth()+1)
}

// Size returns the number of live directory slots, 2^globalDepth.
func (d *directoryPage) Size() uint32 {
	return 1 << d.GlobalDepth()
}

// LocalDepth returns the local depth of the bucket pointed to by slot idx.
func (d *directoryPage) LocalDepth(idx uint32) uint32 {
	return uint32(d.page.GetData()[dirLocalDepthsOffset+int64(idx)])
}

// SetLocalDepth records the local depth of the bucket pointed to by slot idx.
func (d *directoryPage) SetLocalDepth(idx uint32, depth uint32) {
	d.page.Update([]byte{byte(depth)}, dirLocalDepthsOffset+int64(idx), 1)
}

// BucketPageID returns the page id of the bucket pointed to by slot idx.
func (d *directoryPage) BucketPageID(idx uint32) disk.PageID {
	return disk.PageID(d.readU32(dirBucketIDsOffset + int64(idx)*4))
}

// SetBucketPageID points slot idx at the given bucket page.
func (d *directoryPage) SetBucketPageID(idx uint32, id disk.PageID) {
	d.writeU32(dirBucketIDsOffset+int64(idx)*4, uint32(id))
}

// VerifyIntegrity checks the directory invariants: every live slot's local
// depth is bounded by the global depth, and slots agreeing on their low
// localDepth bits point at the same bucket with the same local depth.
func (d *directoryPage) VerifyIntegrity() error {
	gd := d.GlobalDepth()
	if gd > MaxDepth {
		return errors.Errorf("global depth %d exceeds max depth %d", gd, MaxDepth)
	}
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		ld := d.LocalDepth(i)
		if ld > gd {
			return errors.Errorf("slot %d has local depth %d > global depth %d", i, ld, gd)
		}
		canonical := i & ((1 << ld) - 1)
		if d.BucketPageID(i) != d.BucketPageID(canonical) {
			return errors.Errorf("slots %d and %d disagree on bucket page", i, canonical)
		}
		if d.LocalDepth(i) != d.LocalDepth(canonical) {
			return errors.Errorf("slots %d and %d disagree on local depth", i, canonical)
		}
	}
	return nil
}

// Print writes a string representation of the directory to the specified writer.
func (d *directoryPage) Print(w io.Writer) {
	fmt.Fprintf(w, "====\nglobal depth: %d\n", d.GlobalDepth())
	for i := uint32(0); i < d.Size(); i++ {
		fmt.Fprintf(w, "slot %d -> page %d (local depth %d)\n", i, d.BucketPageID(i), d.LocalDepth(i))
	}
	fmt.Fprint(w, "====\n")
}
