package buffer

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"gatordb/pkg/config"
	"gatordb/pkg/disk"
	"gatordb/pkg/recovery"
)

// ParallelPool shards page identifiers across independent buffer pool
// instances. Page id p is owned by instance p mod N, so operations on
// distinct shards never contend.
type ParallelPool struct {
	instances []*Instance
	lastIndex int
	mtx       sync.Mutex // guards lastIndex and the NewPage probe sweep
}

// NewParallelPool constructs numInstances buffer pool instances of poolSize
// frames each, all backed by the same disk manager.
func NewParallelPool(numInstances, poolSize int, dm disk.Manager, lm *recovery.LogManager) (*ParallelPool, error) {
	instances := make([]*Instance, numInstances)
	for i := 0; i < numInstances; i++ {
		in, err := NewInstance(poolSize, numInstances, i, dm, lm)
		if err != nil {
			return nil, err
		}
		instances[i] = in
	}
	return &ParallelPool{instances: instances}, nil
}

// NewDefaultParallelPool constructs a parallel pool with the default shard
// count and per-shard frame count.
func NewDefaultParallelPool(dm disk.Manager, lm *recovery.LogManager) (*ParallelPool, error) {
	return NewParallelPool(config.DefaultNumInstances, config.DefaultPoolSize, dm, lm)
}

// instanceFor returns the instance owning the given page id.
func (p *ParallelPool) instanceFor(id disk.PageID) *Instance {
	return p.instances[int(id)%len(p.instances)]
}

// GetPoolSize returns the total number of frames across all instances.
func (p *ParallelPool) GetPoolSize() int {
	return len(p.instances) * p.instances[0].GetPoolSize()
}

// NewPage probes instances round-robin starting at the cursor, returning the
// first successful allocation. The cursor advances by one after every call,
// success or failure, so consecutive allocations spread across shards.
func (p *ParallelPool) NewPage() (*Page, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	defer func() {
		p.lastIndex = (p.lastIndex + 1) % len(p.instances)
	}()
	for probe := 0; probe < len(p.instances); probe++ {
		idx := (p.lastIndex + probe) % len(p.instances)
		page, err := p.instances[idx].NewPage()
		if err == nil {
			return page, nil
		}
		if err != ErrNoFreeFrames {
			return nil, err
		}
	}
	return nil, ErrNoFreeFrames
}

// FetchPage delegates to the owning instance.
func (p *ParallelPool) FetchPage(id disk.PageID) (*Page, error) {
	return p.instanceFor(id).FetchPage(id)
}

// UnpinPage delegates to the owning instance.
func (p *ParallelPool) UnpinPage(id disk.PageID, dirty bool) bool {
	return p.instanceFor(id).UnpinPage(id, dirty)
}

// FlushPage delegates to the owning instance.
func (p *ParallelPool) FlushPage(id disk.PageID) error {
	return p.instanceFor(id).FlushPage(id)
}

// FlushAllPages flushes every instance, fanning out one goroutine per shard.
func (p *ParallelPool) FlushAllPages() error {
	var eg errgroup.Group
	for _, in := range p.instances {
		in := in
		eg.Go(in.FlushAllPages)
	}
	return eg.Wait()
}

// DeletePage delegates to the owning instance.
func (p *ParallelPool) DeletePage(id disk.PageID) bool {
	return p.instanceFor(id).DeletePage(id)
}
