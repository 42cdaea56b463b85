package accel

const (
	// SizeOfCompactionDescriptor is the size in bytes of one compacted-size
	// value written by the device
	SizeOfCompactionDescriptor = 8

	// BlockAlignment is the placement alignment of pool backing blocks
	BlockAlignment = 65536

	// AccelStructAlignment is the placement alignment of every acceleration
	// structure suballocation
	AccelStructAlignment = 256

	// CompactionSizeBlockSize is the backing block size of the compaction-size
	// write and readback pools
	CompactionSizeBlockSize = 65536

	// DefaultSuballocatorBlockSize is the backing block size of the scratch,
	// result, and compaction pools unless overridden with WithBlockSize
	DefaultSuballocatorBlockSize = 8 * 1024 * 1024

	// ReservedID is never handed out by a Manager and never refers to a live
	// acceleration structure
	ReservedID uint64 = 0
)
