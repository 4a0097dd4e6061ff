// Package buffer implements the page-frame cache: a bounded set of in-memory
// frames over the database file, with pin/unpin lifecycle, LRU eviction and
// dirty write-back, plus a parallel wrapper that shards page identifiers
// across independent instances.
package buffer

import (
	"github.com/pkg/errors"

	"gatordb/pkg/disk"
)

// Error for when every frame is pinned and no page can be brought in.
var ErrNoFreeFrames = errors.New("no available frames")

// Error for fetching a page identifier that has been deleted.
var ErrPageDeallocated = errors.New("page has been deallocated")

// Error for flushing a page that is not resident in the pool.
var ErrPageNotResident = errors.New("page not resident")

// Pool is the surface shared by a single buffer pool instance and the
// parallel sharded pool.
type Pool interface {
	// NewPage allocates a fresh page identifier and pins a zeroed frame for it.
	NewPage() (*Page, error)
	// FetchPage pins the frame holding the requested page, faulting it in
	// from disk if necessary.
	FetchPage(id disk.PageID) (*Page, error)
	// UnpinPage releases one reference to the page, OR-ing in the caller's
	// dirty bit. Returns false if the page is not resident or not pinned.
	UnpinPage(id disk.PageID, dirty bool) bool
	// FlushPage unconditionally writes the resident page to disk and clears
	// its dirty flag. Returns ErrPageNotResident if the page is absent.
	FlushPage(id disk.PageID) error
	// FlushAllPages flushes every resident page.
	FlushAllPages() error
	// DeletePage evicts an unpinned page and retires its identifier. Returns
	// false only if the page is still pinned.
	DeletePage(id disk.PageID) bool
	// GetPoolSize returns the total number of frames.
	GetPoolSize() int
}
