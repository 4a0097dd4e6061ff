package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"gatordb/pkg/disk"
)

func setupParallelPool(t *testing.T, numInstances, poolSize int) *ParallelPool {
	t.Helper()
	fm, err := disk.NewFileManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })
	p, err := NewParallelPool(numInstances, poolSize, fm, nil)
	require.NoError(t, err)
	return p
}

func TestShardedAllocation(t *testing.T) {
	p := setupParallelPool(t, 4, 2)
	assert.Equal(t, 8, p.GetPoolSize())

	seen := make(map[disk.PageID]bool)
	for i := 0; i < 4; i++ {
		page, err := p.NewPage()
		require.NoError(t, err)
		seen[page.GetPageID()] = true
	}
	// Round-robin allocation spreads the first four pages over all shards.
	assert.Equal(t, map[disk.PageID]bool{0: true, 1: true, 2: true, 3: true}, seen)

	page, err := p.NewPage()
	require.NoError(t, err)
	assert.Contains(t, []disk.PageID{4, 5, 6, 7}, page.GetPageID())
}

func TestRouting(t *testing.T) {
	p := setupParallelPool(t, 4, 2)
	var ids []disk.PageID
	for i := 0; i < 4; i++ {
		page, err := p.NewPage()
		require.NoError(t, err)
		ids = append(ids, page.GetPageID())
	}
	// Every resident page sits in the instance its id routes to.
	for _, id := range ids {
		owner := p.instances[int(id)%4]
		_, resident := owner.pageTable[id]
		assert.True(t, resident, "page %d not resident in its owning shard", id)
	}
	for _, id := range ids {
		assert.True(t, p.UnpinPage(id, false))
	}
}

func TestNewPageSweepsFullShards(t *testing.T) {
	p := setupParallelPool(t, 2, 1)
	// Fill both shards.
	a, err := p.NewPage()
	require.NoError(t, err)
	_, err = p.NewPage()
	require.NoError(t, err)

	// One full sweep fails.
	_, err = p.NewPage()
	assert.ErrorIs(t, err, ErrNoFreeFrames)

	// Freeing one shard lets the sweep find it regardless of the cursor.
	require.True(t, p.UnpinPage(a.GetPageID(), false))
	page, err := p.NewPage()
	require.NoError(t, err)
	assert.EqualValues(t, int(a.GetPageID())%2, int(page.GetPageID())%2)
}

func TestParallelFetchAndFlush(t *testing.T) {
	p := setupParallelPool(t, 4, 2)

	page, err := p.NewPage()
	require.NoError(t, err)
	id := page.GetPageID()
	page.Update([]byte{0xCD}, 0, 1)
	require.True(t, p.UnpinPage(id, true))

	require.NoError(t, p.FlushAllPages())

	fetched, err := p.FetchPage(id)
	require.NoError(t, err)
	assert.Equal(t, byte(0xCD), fetched.GetData()[0])
	require.True(t, p.UnpinPage(id, false))

	require.NoError(t, p.FlushPage(id))
	assert.True(t, p.DeletePage(id))
}

func TestConcurrentShards(t *testing.T) {
	p := setupParallelPool(t, 4, 8)

	var eg errgroup.Group
	for w := 0; w < 4; w++ {
		eg.Go(func() error {
			for i := 0; i < 16; i++ {
				page, err := p.NewPage()
				if err != nil {
					return err
				}
				id := page.GetPageID()
				page.WLock()
				page.Update([]byte{byte(id)}, 0, 1)
				page.WUnlock()
				if !p.UnpinPage(id, true) {
					return ErrPageNotResident
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.NoError(t, p.FlushAllPages())
}
