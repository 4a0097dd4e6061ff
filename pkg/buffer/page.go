package buffer

import (
	"sync"
	"sync/atomic"

	"gatordb/pkg/disk"
)

// FrameID indexes a slot in a buffer pool instance's frame array.
type FrameID int32

// Page is one frame of the cache: a page's bytes plus residency metadata.
type Page struct {
	id       disk.PageID  // Identifier of the held page, or InvalidPageID if the frame is empty
	pinCount atomic.Int32 // The number of active references to this page
	dirty    bool         // Whether the page's data has changed and needs to be written to disk
	rwlock   sync.RWMutex // Reader-writer lock on the page contents
	data     []byte       // The actual PageSize bytes of the page
}

// GetPageID returns the identifier of the page held by this frame.
func (page *Page) GetPageID() disk.PageID {
	return page.id
}

// GetPinCount returns the number of active references to this page.
func (page *Page) GetPinCount() int32 {
	return page.pinCount.Load()
}

// IsDirty reports whether the page's data has changed and needs to be written to disk.
func (page *Page) IsDirty() bool {
	return page.dirty
}

// SetDirty changes the dirty status of a page.
func (page *Page) SetDirty(dirty bool) {
	page.dirty = dirty
}

// GetData returns the byte data held by the page.
func (page *Page) GetData() []byte {
	return page.data
}

// Update updates this page with `size` bytes of the given data slice at the
// specified offset, marking the page dirty.
func (page *Page) Update(data []byte, offset int64, size int64) {
	page.dirty = true
	copy(page.data[offset:offset+size], data)
}

// zero clears the frame's bytes.
func (page *Page) zero() {
	for i := range page.data {
		page.data[i] = 0
	}
}

// [CONCURRENCY] Grab a writers lock on the page contents.
func (page *Page) WLock() {
	page.rwlock.Lock()
}

// [CONCURRENCY] Release a writers lock.
func (page *Page) WUnlock() {
	page.rwlock.Unlock()
}

// [CONCURRENCY] Grab a readers lock on the page contents.
func (page *Page) RLock() {
	page.rwlock.RLock()
}

// [CONCURRENCY] Release a readers lock.
func (page *Page) RUnlock() {
	page.rwlock.RUnlock()
}
