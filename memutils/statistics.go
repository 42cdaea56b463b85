package memutils

// PoolStatistics is an aggregate view of a single suballocation pool.
type PoolStatistics struct {
	// BlockCount is the number of backing blocks currently held by the pool
	BlockCount int
	// AllocationCount is the number of live suballocations across all blocks
	AllocationCount int
	// BlockBytes is the total resident size of all backing blocks in bytes
	BlockBytes int
	// AlignmentSavings is the running total of bytes lost to rounding requests
	// up to the pool's allocation alignment
	AlignmentSavings int
	// UnusedBytes is the number of free bytes across all blocks, including both
	// freed regions and unconsumed block tails
	UnusedBytes int
	// Fragmentation scores how badly the pool's free space is split up, from 0
	// (no free space, or one contiguous region) toward 100 (many small equal
	// regions)
	Fragmentation float64
}

func (s *PoolStatistics) Clear() {
	s.BlockCount = 0
	s.AllocationCount = 0
	s.BlockBytes = 0
	s.AlignmentSavings = 0
	s.UnusedBytes = 0
	s.Fragmentation = 0
}
