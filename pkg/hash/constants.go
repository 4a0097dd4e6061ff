package hash

// MaxDepth is the largest global depth the directory supports; the directory
// page reserves space for 1 << MaxDepth slots.
const MaxDepth uint32 = 9

// DirectorySlots is the number of slots physically present on the directory
// page. Only the first 1 << globalDepth are live.
const DirectorySlots = 1 << MaxDepth

// Directory page layout: page id, lsn and global depth up front, then one
// byte of local depth per slot, then one 4-byte bucket page id per slot.
const (
	dirPageIDOffset      int64 = 0
	dirLSNOffset         int64 = 4
	dirGlobalDepthOffset int64 = 8
	dirLocalDepthsOffset int64 = 12
	dirBucketIDsOffset   int64 = dirLocalDepthsOffset + DirectorySlots
	directoryPageSize    int64 = dirBucketIDsOffset + DirectorySlots*4
)
