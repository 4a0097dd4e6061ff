package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatordb/pkg/disk"
)

// setupInstance creates a single-shard instance with poolSize frames backed
// by a temp database file.
func setupInstance(t *testing.T, poolSize int) *Instance {
	t.Helper()
	fm, err := disk.NewFileManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })
	in, err := NewInstance(poolSize, 1, 0, fm, nil)
	require.NoError(t, err)
	return in
}

// frameAccounting asserts that free, evictable and pinned frames partition
// the pool.
func frameAccounting(t *testing.T, in *Instance) {
	t.Helper()
	pinned := 0
	for i := range in.frames {
		if in.frames[i].id != disk.InvalidPageID && in.frames[i].pinCount.Load() > 0 {
			pinned++
		}
	}
	assert.Equal(t, in.GetPoolSize(), in.FreeFrameCount()+in.EvictableFrameCount()+pinned)
}

func TestNewPageSaturation(t *testing.T) {
	in := setupInstance(t, 3)

	var ids []disk.PageID
	for i := 0; i < 3; i++ {
		page, err := in.NewPage()
		require.NoError(t, err)
		ids = append(ids, page.GetPageID())
	}
	assert.Equal(t, []disk.PageID{0, 1, 2}, ids)
	frameAccounting(t, in)

	// All frames pinned: allocation fails.
	_, err := in.NewPage()
	assert.ErrorIs(t, err, ErrNoFreeFrames)

	require.True(t, in.UnpinPage(1, false))
	page, err := in.NewPage()
	require.NoError(t, err)
	assert.Equal(t, disk.PageID(3), page.GetPageID())
	assert.EqualValues(t, 1, page.GetPinCount())

	// Page 1 was evicted to make room and nothing can fault it back in.
	_, err = in.FetchPage(1)
	assert.ErrorIs(t, err, ErrNoFreeFrames)
	frameAccounting(t, in)
}

func TestDirtyWriteBack(t *testing.T) {
	in := setupInstance(t, 3)

	page, err := in.NewPage()
	require.NoError(t, err)
	require.Equal(t, disk.PageID(0), page.GetPageID())
	page.Update([]byte{0xAB}, 0, 1)
	require.True(t, in.UnpinPage(0, true))

	// Saturate the pool to force page 0 out.
	for i := 0; i < 3; i++ {
		_, err := in.NewPage()
		require.NoError(t, err)
	}
	require.True(t, in.UnpinPage(1, false))

	page, err = in.FetchPage(0)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), page.GetData()[0])
	assert.False(t, page.IsDirty())
}

func TestFetchHitPins(t *testing.T) {
	in := setupInstance(t, 2)

	page, err := in.NewPage()
	require.NoError(t, err)
	id := page.GetPageID()

	again, err := in.FetchPage(id)
	require.NoError(t, err)
	assert.Same(t, page, again)
	assert.EqualValues(t, 2, page.GetPinCount())

	// Both references must be released before the frame is evictable.
	require.True(t, in.UnpinPage(id, false))
	assert.Equal(t, 0, in.EvictableFrameCount())
	require.True(t, in.UnpinPage(id, false))
	assert.Equal(t, 1, in.EvictableFrameCount())

	// A third unpin has nothing to release.
	assert.False(t, in.UnpinPage(id, false))
}

func TestUnpinDirtyBitORs(t *testing.T) {
	in := setupInstance(t, 2)

	page, err := in.NewPage()
	require.NoError(t, err)
	id := page.GetPageID()
	_, err = in.FetchPage(id)
	require.NoError(t, err)

	require.True(t, in.UnpinPage(id, true))
	// A later clean unpin must not clobber the dirty bit.
	require.True(t, in.UnpinPage(id, false))

	frame := in.pageTable[id]
	assert.True(t, in.frames[frame].IsDirty())
}

func TestUnpinAbsent(t *testing.T) {
	in := setupInstance(t, 2)
	assert.False(t, in.UnpinPage(17, false))
}

func TestAllocatorStride(t *testing.T) {
	fm, err := disk.NewFileManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })

	// Instance 1 of 4 hands out 1, 5, 9, ...
	in, err := NewInstance(3, 4, 1, fm, nil)
	require.NoError(t, err)
	var ids []disk.PageID
	for i := 0; i < 3; i++ {
		page, err := in.NewPage()
		require.NoError(t, err)
		ids = append(ids, page.GetPageID())
	}
	assert.Equal(t, []disk.PageID{1, 5, 9}, ids)
}

func TestFlushPage(t *testing.T) {
	in := setupInstance(t, 2)

	page, err := in.NewPage()
	require.NoError(t, err)
	id := page.GetPageID()
	page.Update([]byte{1, 2, 3}, 0, 3)

	require.NoError(t, in.FlushPage(id))
	assert.False(t, page.IsDirty())

	// Flush is idempotent.
	require.NoError(t, in.FlushPage(id))

	assert.ErrorIs(t, in.FlushPage(99), ErrPageNotResident)
}

func TestDeletePage(t *testing.T) {
	in := setupInstance(t, 3)

	page, err := in.NewPage()
	require.NoError(t, err)
	id := page.GetPageID()

	// Still pinned: delete fails.
	assert.False(t, in.DeletePage(id))

	require.True(t, in.UnpinPage(id, false))
	assert.True(t, in.DeletePage(id))
	frameAccounting(t, in)

	// The identifier is retired for good.
	_, err = in.FetchPage(id)
	assert.ErrorIs(t, err, ErrPageDeallocated)

	// Deleting a page that was never resident vacuously succeeds.
	assert.True(t, in.DeletePage(42))
}

func TestRoundTripThroughEviction(t *testing.T) {
	in := setupInstance(t, 2)

	page, err := in.NewPage()
	require.NoError(t, err)
	id := page.GetPageID()
	payload := []byte("round trip payload")
	page.Update(payload, 64, int64(len(payload)))
	require.True(t, in.UnpinPage(id, true))

	// Saturate to evict, then fault back in.
	for i := 0; i < 2; i++ {
		_, err := in.NewPage()
		require.NoError(t, err)
	}
	require.True(t, in.UnpinPage(1, false))

	page, err = in.FetchPage(id)
	require.NoError(t, err)
	assert.Equal(t, payload, page.GetData()[64:64+len(payload)])
}
