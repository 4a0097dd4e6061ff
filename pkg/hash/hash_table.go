// Package hash implements a page-resident extendible hash table backed by a
// buffer pool: a directory page mapping the low bits of a key's hash to
// bucket pages, with bucket splits and directory doubling on overflow.
package hash

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"

	"gatordb/pkg/buffer"
	"gatordb/pkg/concurrency"
	"gatordb/pkg/disk"
	"gatordb/pkg/entry"
	"gatordb/pkg/recovery"
)

// ExtendibleHashTable is a multi-valued hash index over keys of type K and
// values of type V. All state lives in pages borrowed from the buffer pool;
// the struct itself only remembers where the directory is.
type ExtendibleHashTable[K any, V comparable] struct {
	name            string
	pool            buffer.Pool
	cmp             Comparator[K]
	hash            HashFunc[K]
	keyCodec        entry.Codec[K]
	valCodec        entry.Codec[V]
	bucketCap       int
	directoryPageID disk.PageID
	lm              *recovery.LogManager // optional; appended to, never read
	rwlock          sync.RWMutex         // table latch guarding directory structure
}

// NewExtendibleHashTable creates a table with global depth 1 and two buckets
// of local depth 1 wired to slots 0 and 1.
func NewExtendibleHashTable[K any, V comparable](
	name string,
	pool buffer.Pool,
	cmp Comparator[K],
	hashFn HashFunc[K],
	keyCodec entry.Codec[K],
	valCodec entry.Codec[V],
	lm *recovery.LogManager,
) (*ExtendibleHashTable[K, V], error) {
	table := &ExtendibleHashTable[K, V]{
		name:      name,
		pool:      pool,
		cmp:       cmp,
		hash:      hashFn,
		keyCodec:  keyCodec,
		valCodec:  valCodec,
		bucketCap: bucketCapacity(keyCodec.Width + valCodec.Width),
		lm:        lm,
	}
	dirPage, err := pool.NewPage()
	if err != nil {
		return nil, errors.Wrap(err, "allocating directory page")
	}
	table.directoryPageID = dirPage.GetPageID()
	dir := asDirectoryPage(dirPage)
	dir.SetPageID(table.directoryPageID)
	dir.IncrGlobalDepth()

	bucket0, err := pool.NewPage()
	if err != nil {
		pool.UnpinPage(table.directoryPageID, true)
		return nil, errors.Wrap(err, "allocating bucket page")
	}
	dir.SetBucketPageID(0, bucket0.GetPageID())
	dir.SetLocalDepth(0, 1)

	bucket1, err := pool.NewPage()
	if err != nil {
		pool.UnpinPage(bucket0.GetPageID(), false)
		pool.UnpinPage(table.directoryPageID, true)
		return nil, errors.Wrap(err, "allocating bucket page")
	}
	dir.SetBucketPageID(1, bucket1.GetPageID())
	dir.SetLocalDepth(1, 1)

	pool.UnpinPage(bucket0.GetPageID(), false)
	pool.UnpinPage(bucket1.GetPageID(), false)
	pool.UnpinPage(table.directoryPageID, true)
	return table, nil
}

// GetDirectoryPageID returns the page id of the directory page.
func (table *ExtendibleHashTable[K, V]) GetDirectoryPageID() disk.PageID {
	return table.directoryPageID
}

// BucketCapacity returns the number of slots each bucket page holds.
func (table *ExtendibleHashTable[K, V]) BucketCapacity() int {
	return table.bucketCap
}

// keyToIndex returns the directory index for the key under the current mask.
func (table *ExtendibleHashTable[K, V]) keyToIndex(key K, dir *directoryPage) uint32 {
	return table.hash(key) & dir.GlobalDepthMask()
}

// fetchDirectory borrows the directory page from the pool.
func (table *ExtendibleHashTable[K, V]) fetchDirectory() (*directoryPage, error) {
	page, err := table.pool.FetchPage(table.directoryPageID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching directory page")
	}
	return asDirectoryPage(page), nil
}

// fetchBucket borrows a bucket page from the pool.
func (table *ExtendibleHashTable[K, V]) fetchBucket(id disk.PageID) (*bucketPage[K, V], error) {
	page, err := table.pool.FetchPage(id)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching bucket page %d", id)
	}
	return table.asBucket(page), nil
}

func (table *ExtendibleHashTable[K, V]) asBucket(page *buffer.Page) *bucketPage[K, V] {
	return &bucketPage[K, V]{
		page:     page,
		keyCodec: table.keyCodec,
		valCodec: table.valCodec,
		capacity: table.bucketCap,
	}
}

// GetValue accumulates the values stored under the given key.
func (table *ExtendibleHashTable[K, V]) GetValue(txn *concurrency.Transaction, key K) ([]V, error) {
	table.rwlock.RLock()
	defer table.rwlock.RUnlock()
	dir, err := table.fetchDirectory()
	if err != nil {
		return nil, err
	}
	bucketPID := dir.BucketPageID(table.keyToIndex(key, dir))
	bucket, err := table.fetchBucket(bucketPID)
	if err != nil {
		table.pool.UnpinPage(table.directoryPageID, false)
		return nil, err
	}
	bucket.page.RLock()
	result := bucket.GetValue(key, table.cmp)
	bucket.page.RUnlock()
	table.pool.UnpinPage(bucketPID, false)
	table.pool.UnpinPage(table.directoryPageID, false)
	return result, nil
}

// Insert stores the key-value pair, splitting buckets and doubling the
// directory as needed. Returns false without error if the exact pair is
// already present, or if the table is saturated and the bucket cannot be
// partitioned any further.
func (table *ExtendibleHashTable[K, V]) Insert(txn *concurrency.Transaction, key K, value V) (bool, error) {
	table.rwlock.Lock()
	defer table.rwlock.Unlock()
	for {
		dir, err := table.fetchDirectory()
		if err != nil {
			return false, err
		}
		idx := table.keyToIndex(key, dir)
		bucketPID := dir.BucketPageID(idx)
		bucket, err := table.fetchBucket(bucketPID)
		if err != nil {
			table.pool.UnpinPage(table.directoryPageID, false)
			return false, err
		}
		if !bucket.IsFull() {
			bucket.page.WLock()
			ok := bucket.Insert(key, value, table.cmp)
			bucket.page.WUnlock()
			table.pool.UnpinPage(bucketPID, ok)
			table.pool.UnpinPage(table.directoryPageID, false)
			if ok && table.lm != nil && txn != nil {
				// Fire-and-forget: the core never reads the log back.
				_ = table.lm.Insert(txn.GetClientID(), table.name, fmt.Sprint(key), fmt.Sprint(value))
			}
			return ok, nil
		}
		// Bucket is full: split and retry. A bucket at max depth whose keys
		// cannot be partitioned saturates the insert.
		if dir.LocalDepth(idx) == MaxDepth {
			table.pool.UnpinPage(bucketPID, false)
			table.pool.UnpinPage(table.directoryPageID, false)
			return false, nil
		}
		err = table.splitBucket(dir, idx, bucket, bucketPID)
		table.pool.UnpinPage(table.directoryPageID, true)
		if err != nil {
			return false, err
		}
	}
}

// splitBucket splits the full bucket behind directory slot idx, doubling the
// directory first when the bucket's local depth equals the global depth.
// The caller holds pins on both the directory and the bucket; the bucket pin
// is released here, the directory pin stays with the caller.
func (table *ExtendibleHashTable[K, V]) splitBucket(dir *directoryPage, idx uint32, bucket *bucketPage[K, V], bucketPID disk.PageID) error {
	ld := dir.LocalDepth(idx)
	if ld == dir.GlobalDepth() {
		// Double the directory: each new slot mirrors its image under mask
		// truncation.
		half := dir.Size()
		dir.IncrGlobalDepth()
		for i := half; i < dir.Size(); i++ {
			image := i - half
			dir.SetBucketPageID(i, dir.BucketPageID(image))
			dir.SetLocalDepth(i, dir.LocalDepth(image))
		}
	}

	oldLow := idx & ((1 << ld) - 1)
	sibling := oldLow | (1 << ld)
	newDepth := ld + 1

	newPage, err := table.pool.NewPage()
	if err != nil {
		table.pool.UnpinPage(bucketPID, false)
		return errors.Wrap(err, "allocating split bucket page")
	}
	newPID := newPage.GetPageID()
	newBucket := table.asBucket(newPage)

	// Repoint every slot sharing the split's low ld bits to the correct
	// side and deepen it.
	for i := uint32(0); i < dir.Size(); i++ {
		if i&((1<<ld)-1) != oldLow {
			continue
		}
		if i&(1<<ld) != 0 {
			dir.SetBucketPageID(i, newPID)
		} else {
			dir.SetBucketPageID(i, bucketPID)
		}
		dir.SetLocalDepth(i, newDepth)
	}

	// Rehash: move entries whose deeper hash lands on the split image.
	bucket.page.WLock()
	newBucket.page.WLock()
	for i := 0; i < table.bucketCap; i++ {
		if !bucket.IsReadable(i) {
			continue
		}
		k := bucket.KeyAt(i)
		if table.hash(k)&((1<<newDepth)-1) == sibling {
			newBucket.Insert(k, bucket.ValueAt(i), table.cmp)
			bucket.ClearAt(i)
		}
	}
	newBucket.page.WUnlock()
	bucket.page.WUnlock()

	table.pool.UnpinPage(bucketPID, true)
	table.pool.UnpinPage(newPID, true)
	return nil
}

// Remove clears the first entry matching both key and value. A bucket left
// empty invokes Merge, which is deliberately a no-op: buckets never shrink
// and the directory never halves.
func (table *ExtendibleHashTable[K, V]) Remove(txn *concurrency.Transaction, key K, value V) (bool, error) {
	table.rwlock.Lock()
	defer table.rwlock.Unlock()
	dir, err := table.fetchDirectory()
	if err != nil {
		return false, err
	}
	bucketPID := dir.BucketPageID(table.keyToIndex(key, dir))
	bucket, err := table.fetchBucket(bucketPID)
	if err != nil {
		table.pool.UnpinPage(table.directoryPageID, false)
		return false, err
	}
	bucket.page.WLock()
	removed := bucket.Remove(key, value, table.cmp)
	empty := bucket.IsEmpty()
	bucket.page.WUnlock()
	table.pool.UnpinPage(bucketPID, removed)
	table.pool.UnpinPage(table.directoryPageID, false)
	if removed && empty {
		table.merge(txn, key, value)
	}
	if removed && table.lm != nil && txn != nil {
		_ = table.lm.Delete(txn.GetClientID(), table.name, fmt.Sprint(key), fmt.Sprint(value))
	}
	return removed, nil
}

// merge is the mirror of split. Bucket reclamation is out of scope, so this
// does nothing.
func (table *ExtendibleHashTable[K, V]) merge(txn *concurrency.Transaction, key K, value V) {
}

// GetGlobalDepth returns the directory's global depth.
func (table *ExtendibleHashTable[K, V]) GetGlobalDepth() (uint32, error) {
	table.rwlock.RLock()
	defer table.rwlock.RUnlock()
	dir, err := table.fetchDirectory()
	if err != nil {
		return 0, err
	}
	depth := dir.GlobalDepth()
	table.pool.UnpinPage(table.directoryPageID, false)
	return depth, nil
}

// VerifyIntegrity checks the directory invariants and that every readable
// entry lives in the bucket its hash routes to.
func (table *ExtendibleHashTable[K, V]) VerifyIntegrity() error {
	table.rwlock.RLock()
	defer table.rwlock.RUnlock()
	dir, err := table.fetchDirectory()
	if err != nil {
		return err
	}
	defer table.pool.UnpinPage(table.directoryPageID, false)
	if err := dir.VerifyIntegrity(); err != nil {
		return err
	}
	for i := uint32(0); i < dir.Size(); i++ {
		pid := dir.BucketPageID(i)
		bucket, err := table.fetchBucket(pid)
		if err != nil {
			return err
		}
		for _, e := range bucket.Select() {
			route := table.hash(e.Key) & dir.GlobalDepthMask()
			if dir.BucketPageID(route) != pid {
				table.pool.UnpinPage(pid, false)
				return errors.Errorf("key %v resident in bucket %d but routes to bucket %d", e.Key, pid, dir.BucketPageID(route))
			}
		}
		table.pool.UnpinPage(pid, false)
	}
	return nil
}

// Select returns every readable entry in the table.
func (table *ExtendibleHashTable[K, V]) Select() ([]entry.Entry[K, V], error) {
	table.rwlock.RLock()
	defer table.rwlock.RUnlock()
	dir, err := table.fetchDirectory()
	if err != nil {
		return nil, err
	}
	defer table.pool.UnpinPage(table.directoryPageID, false)
	seen := make(map[disk.PageID]bool)
	ret := make([]entry.Entry[K, V], 0)
	for i := uint32(0); i < dir.Size(); i++ {
		pid := dir.BucketPageID(i)
		if seen[pid] {
			continue
		}
		seen[pid] = true
		bucket, err := table.fetchBucket(pid)
		if err != nil {
			return nil, err
		}
		bucket.page.RLock()
		ret = append(ret, bucket.Select()...)
		bucket.page.RUnlock()
		table.pool.UnpinPage(pid, false)
	}
	return ret, nil
}

// Print writes a string representation of this entire table (including its
// buckets) to the specified writer.
func (table *ExtendibleHashTable[K, V]) Print(w io.Writer) {
	table.rwlock.RLock()
	defer table.rwlock.RUnlock()
	dir, err := table.fetchDirectory()
	if err != nil {
		fmt.Fprintf(w, "error fetching directory: %v\n", err)
		return
	}
	dir.Print(w)
	for i := uint32(0); i < dir.Size(); i++ {
		pid := dir.BucketPageID(i)
		fmt.Fprintf(w, "====\nbucket at slot %d (page %d, local depth %d)\n", i, pid, dir.LocalDepth(i))
		bucket, err := table.fetchBucket(pid)
		if err != nil {
			continue
		}
		bucket.Print(w)
		table.pool.UnpinPage(pid, false)
	}
	table.pool.UnpinPage(table.directoryPageID, false)
	fmt.Fprint(w, "====\n")
}
