package buffer

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/ncw/directio"
	"github.com/pkg/errors"

	"gatordb/pkg/disk"
	"gatordb/pkg/list"
	"gatordb/pkg/recovery"
)

// Instance is one buffer pool shard: a fixed array of frames, a page table,
// a free list, an LRU replacer and a page-identifier allocator. Within a
// parallel pool of N instances, instance i owns page ids congruent to i mod N.
type Instance struct {
	poolSize      int
	numInstances  int
	instanceIndex int

	frames    []Page
	pageTable map[disk.PageID]FrameID
	freeList  *list.List[FrameID]
	replacer  *LRUReplacer

	nextPageID  disk.PageID
	deallocated *bitset.BitSet // identifiers retired by DeletePage

	dm disk.Manager
	lm *recovery.LogManager // opaque handle, never consulted here

	mtx sync.Mutex
}

// NewInstance constructs a buffer pool instance with poolSize frames, owning
// page ids congruent to instanceIndex mod numInstances. All frames start
// empty and on the free list; the allocator starts at instanceIndex and
// strides by numInstances.
func NewInstance(poolSize, numInstances, instanceIndex int, dm disk.Manager, lm *recovery.LogManager) (*Instance, error) {
	if poolSize <= 0 {
		return nil, errors.New("pool size must be positive")
	}
	if numInstances <= 0 || instanceIndex < 0 || instanceIndex >= numInstances {
		return nil, errors.Errorf("bad instance index %d of %d", instanceIndex, numInstances)
	}
	in := &Instance{
		poolSize:      poolSize,
		numInstances:  numInstances,
		instanceIndex: instanceIndex,
		frames:        make([]Page, poolSize),
		pageTable:     make(map[disk.PageID]FrameID, poolSize),
		freeList:      list.New[FrameID](),
		replacer:      NewLRUReplacer(poolSize),
		nextPageID:    disk.PageID(instanceIndex),
		deallocated:   bitset.New(uint(poolSize)),
		dm:            dm,
		lm:            lm,
	}
	// One contiguous aligned block, sliced into frames.
	block := directio.AlignedBlock(poolSize * int(disk.PageSize))
	for i := 0; i < poolSize; i++ {
		in.frames[i].id = disk.InvalidPageID
		in.frames[i].data = block[i*int(disk.PageSize) : (i+1)*int(disk.PageSize)]
		in.freeList.PushTail(FrameID(i))
	}
	return in, nil
}

// GetPoolSize returns the number of frames this instance holds.
func (in *Instance) GetPoolSize() int {
	return in.poolSize
}

// allocatePage hands out the next page identifier owned by this instance.
func (in *Instance) allocatePage() disk.PageID {
	id := in.nextPageID
	in.nextPageID += disk.PageID(in.numInstances)
	if int(id)%in.numInstances != in.instanceIndex {
		panic(fmt.Sprintf("allocated page %d does not route to instance %d", id, in.instanceIndex))
	}
	return id
}

// victimFrame obtains a reusable frame, preferring the free list over the
// replacer. An evicted frame's dirty contents are written back and its page
// table entry removed. Expects in.mtx to be locked.
func (in *Instance) victimFrame() (FrameID, error) {
	if freeLink := in.freeList.PeekHead(); freeLink != nil {
		freeLink.PopSelf()
		return freeLink.GetValue(), nil
	}
	frame, ok := in.replacer.Victim()
	if !ok {
		return 0, ErrNoFreeFrames
	}
	page := &in.frames[frame]
	if page.id != disk.InvalidPageID {
		if page.dirty {
			if err := in.dm.WritePage(page.id, page.data); err != nil {
				// Put the frame back so it is not leaked.
				in.replacer.Unpin(frame)
				return 0, err
			}
			page.dirty = false
		}
		delete(in.pageTable, page.id)
	}
	return frame, nil
}

// NewPage allocates a fresh page identifier, pins a zeroed frame for it and
// returns the frame. Fails with ErrNoFreeFrames if every frame is pinned.
func (in *Instance) NewPage() (*Page, error) {
	in.mtx.Lock()
	defer in.mtx.Unlock()
	frame, err := in.victimFrame()
	if err != nil {
		return nil, err
	}
	page := &in.frames[frame]
	page.id = in.allocatePage()
	page.dirty = false
	page.pinCount.Store(1)
	page.zero()
	in.replacer.Pin(frame)
	in.pageTable[page.id] = frame
	return page, nil
}

// FetchPage pins the frame holding the requested page, faulting it in from
// disk on a miss. Fetching a deallocated identifier fails.
func (in *Instance) FetchPage(id disk.PageID) (*Page, error) {
	in.mtx.Lock()
	defer in.mtx.Unlock()
	if id < 0 {
		return nil, errors.Errorf("invalid page id %d", id)
	}
	if in.deallocated.Test(uint(id)) {
		return nil, ErrPageDeallocated
	}
	if frame, ok := in.pageTable[id]; ok {
		page := &in.frames[frame]
		page.pinCount.Add(1)
		in.replacer.Pin(frame)
		return page, nil
	}
	frame, err := in.victimFrame()
	if err != nil {
		return nil, err
	}
	page := &in.frames[frame]
	page.id = id
	page.dirty = false
	page.pinCount.Store(1)
	if err := in.dm.ReadPage(id, page.data); err != nil {
		// Return the frame so it is not leaked.
		page.id = disk.InvalidPageID
		page.pinCount.Store(0)
		in.freeList.PushTail(frame)
		return nil, err
	}
	in.replacer.Pin(frame)
	in.pageTable[id] = frame
	return page, nil
}

// UnpinPage releases one reference to the page. The caller's dirty bit is
// OR-ed in so a concurrent clean unpin cannot clobber a dirty one. Returns
// false if the page is not resident or already has a zero pin count.
func (in *Instance) UnpinPage(id disk.PageID, dirty bool) bool {
	in.mtx.Lock()
	defer in.mtx.Unlock()
	frame, ok := in.pageTable[id]
	if !ok {
		return false
	}
	page := &in.frames[frame]
	if page.pinCount.Load() <= 0 {
		return false
	}
	page.dirty = page.dirty || dirty
	if page.pinCount.Add(-1) == 0 {
		in.replacer.Unpin(frame)
	}
	return true
}

// FlushPage unconditionally writes the resident page to disk and clears its
// dirty flag. Returns ErrPageNotResident if the page is absent.
func (in *Instance) FlushPage(id disk.PageID) error {
	in.mtx.Lock()
	defer in.mtx.Unlock()
	return in.flushPage(id)
}

// flushPage is FlushPage without locking. Expects in.mtx to be locked.
func (in *Instance) flushPage(id disk.PageID) error {
	frame, ok := in.pageTable[id]
	if !ok {
		return ErrPageNotResident
	}
	page := &in.frames[frame]
	if err := in.dm.WritePage(id, page.data); err != nil {
		return err
	}
	page.dirty = false
	return nil
}

// FlushAllPages flushes every resident page.
func (in *Instance) FlushAllPages() error {
	in.mtx.Lock()
	defer in.mtx.Unlock()
	for id := range in.pageTable {
		if err := in.flushPage(id); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage evicts an unpinned resident page, retires its identifier and
// frees the frame. Deleting a non-resident page vacuously succeeds; deleting
// a pinned page fails.
func (in *Instance) DeletePage(id disk.PageID) bool {
	in.mtx.Lock()
	defer in.mtx.Unlock()
	frame, ok := in.pageTable[id]
	if !ok {
		if id >= 0 {
			in.deallocated.Set(uint(id))
		}
		return true
	}
	page := &in.frames[frame]
	if page.pinCount.Load() != 0 {
		return false
	}
	page.id = disk.InvalidPageID
	page.dirty = false
	page.zero()
	// The frame sat in the replacer with pin count zero; it moves to the
	// free list and must not remain evictable.
	in.replacer.Pin(frame)
	delete(in.pageTable, id)
	in.freeList.PushTail(frame)
	in.deallocated.Set(uint(id))
	return true
}

// FreeFrameCount returns the number of empty frames on the free list.
func (in *Instance) FreeFrameCount() int {
	in.mtx.Lock()
	defer in.mtx.Unlock()
	return in.freeList.Size()
}

// EvictableFrameCount returns the number of loaded, unpinned frames.
func (in *Instance) EvictableFrameCount() int {
	return in.replacer.Size()
}
