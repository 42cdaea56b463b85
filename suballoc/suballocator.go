// Package suballoc packs many small, variably-sized allocation requests into a
// small number of large backing blocks, reusing freed regions before growing.
// It is generic over the backing resource type, so each pool purpose (scratch,
// result, readback, ...) can carry its own native resource implementation.
package suballoc

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/rtmem/memutils"
)

// Resource is one physically-backed region of memory. Implementations wrap
// whatever native object backs a block (a buffer, a heap, a query pool) and
// must report a process-unique identity token so a sub-block can be matched
// back to its owning block.
type Resource interface {
	// Free releases the backing memory
	Free()
	// Alignment returns the native placement alignment of the backing resource in bytes
	Alignment() uint
	// Identity returns a stable token unique to this resource
	Identity() uint64
}

// CreateResourceFunc allocates the backing memory for a new block. It stands in
// for whatever device or allocator context the resource type needs- there is no
// package-level state involved.
type CreateResourceFunc[R Resource] func(size int) (R, error)

// SubBlockRef is an opaque reference to a sub-block owned by a Suballocator.
// The zero value refers to nothing. Callers must present a live ref back to
// Suballocator.Free exactly once.
type SubBlockRef[R Resource] struct {
	sb *subBlock[R]
}

// IsNil returns true if this ref does not refer to a sub-block
func (r SubBlockRef[R]) IsNil() bool { return r.sb == nil }

// Size returns the full size in bytes of the region this sub-block occupies
func (r SubBlockRef[R]) Size() int {
	if r.sb == nil {
		return 0
	}
	return r.sb.size
}

// Unused returns the bytes of this sub-block the caller did not request
func (r SubBlockRef[R]) Unused() int {
	if r.sb == nil {
		return 0
	}
	return r.sb.unusedSize
}

// IsFree returns true once the sub-block has been freed back to its pool
func (r SubBlockRef[R]) IsFree() bool {
	if r.sb == nil {
		return false
	}
	return r.sb.isFree
}

// SubAllocation is the value handed to callers of Allocate: the backing
// resource of the satisfying block, the byte offset within it, and an opaque
// ref used to free the region. The Suballocator owns all bookkeeping behind
// SubBlock; the caller owns this value.
type SubAllocation[R Resource] struct {
	Resource R
	Offset   int
	SubBlock SubBlockRef[R]
}

// Suballocator hands out sub-allocations carved from a growable set of backing
// blocks. It is not internally synchronized- callers serialize access.
type Suballocator[R Resource] struct {
	blockSize           int
	allocationAlignment uint
	createResource      CreateResourceFunc[R]
	mergeFreeRegions    bool

	blocks           []*blockDesc[R]
	blocksByIdentity *swiss.Map[uint64, *blockDesc[R]]

	alignmentSavings int
}

// Option adjusts Suballocator construction.
type Option func(config *suballocatorConfig)

type suballocatorConfig struct {
	mergeFreeRegions bool
}

// MergeFreeRegions coalesces adjacent free sub-blocks after a block fails to
// satisfy a request, before moving on to the next block. Off by default, which
// matches the reference fragmentation behavior.
func MergeFreeRegions() Option {
	return func(config *suballocatorConfig) {
		config.mergeFreeRegions = true
	}
}

// New creates a Suballocator that grows in blocks of blockSize bytes and rounds
// every request up to allocationAlignment, which must be a power of two.
func New[R Resource](blockSize int, allocationAlignment uint, createResource CreateResourceFunc[R], options ...Option) (*Suballocator[R], error) {
	if blockSize < 1 {
		return nil, cerrors.Newf("block size must be positive, but was %d", blockSize)
	}
	if createResource == nil {
		return nil, cerrors.New("a CreateResourceFunc must be provided")
	}
	err := memutils.CheckPow2(allocationAlignment, "allocation alignment")
	if err != nil {
		return nil, err
	}

	var config suballocatorConfig
	for _, option := range options {
		option(&config)
	}

	return &Suballocator[R]{
		blockSize:           blockSize,
		allocationAlignment: allocationAlignment,
		createResource:      createResource,
		mergeFreeRegions:    config.mergeFreeRegions,
		blocksByIdentity:    swiss.NewMap[uint64, *blockDesc[R]](8),
	}, nil
}

// Allocate reserves size bytes from the pool. Requests larger than the block
// size receive a dedicated block of exactly the aligned request; all other
// requests are packed first-fit in block creation order, preferring reuse of
// freed regions over bump allocation.
func (s *Suballocator[R]) Allocate(size int) (SubAllocation[R], error) {
	sizeInBytes := memutils.AlignUp(size, s.allocationAlignment)
	roundingWaste := sizeInBytes - size

	// Memory requests larger than the block size cannot be packed- they get a
	// dedicated block that is released in full when freed
	if sizeInBytes > s.blockSize {
		block, err := s.createBlock(sizeInBytes)
		if err != nil {
			return SubAllocation[R]{}, err
		}

		sb, _ := block.bumpAllocate(sizeInBytes, roundingWaste)
		s.alignmentSavings += roundingWaste
		return SubAllocation[R]{
			Resource: block.resource,
			Offset:   sb.offset,
			SubBlock: SubBlockRef[R]{sb},
		}, nil
	}

	for _, block := range s.blocks {
		if sb, ok := block.takeFreeSubBlock(sizeInBytes); ok {
			return SubAllocation[R]{
				Resource: block.resource,
				Offset:   sb.offset,
				SubBlock: SubBlockRef[R]{sb},
			}, nil
		}

		if sb, ok := block.bumpAllocate(sizeInBytes, roundingWaste); ok {
			s.alignmentSavings += roundingWaste
			return SubAllocation[R]{
				Resource: block.resource,
				Offset:   sb.offset,
				SubBlock: SubBlockRef[R]{sb},
			}, nil
		}

		if s.mergeFreeRegions && block.mergeAdjacentFreeRegions() {
			if sb, ok := block.takeFreeSubBlock(sizeInBytes); ok {
				return SubAllocation[R]{
					Resource: block.resource,
					Offset:   sb.offset,
					SubBlock: SubBlockRef[R]{sb},
				}, nil
			}
		}
	}

	newBlockSize := s.blockSize
	if sizeInBytes > newBlockSize {
		newBlockSize = sizeInBytes
	}
	block, err := s.createBlock(newBlockSize)
	if err != nil {
		return SubAllocation[R]{}, err
	}

	sb, _ := block.bumpAllocate(sizeInBytes, roundingWaste)
	s.alignmentSavings += roundingWaste
	return SubAllocation[R]{
		Resource: block.resource,
		Offset:   sb.offset,
		SubBlock: SubBlockRef[R]{sb},
	}, nil
}

// Free returns a sub-block to its pool. If the sub-block spans its entire
// block, the backing resource is released outright. A block whose last live
// sub-allocation is freed is also released, unless it is the pool's only
// remaining block. Freeing a ref this Suballocator does not own, or freeing
// the same ref twice, is a caller-contract violation and panics.
func (s *Suballocator[R]) Free(ref SubBlockRef[R]) {
	sb := ref.sb
	if sb == nil {
		panic("attempting to free a nil sub-block reference")
	}
	if sb.isFree {
		panic("attempting to free a sub-block reference twice")
	}

	block, ok := s.blocksByIdentity.Get(sb.block.resource.Identity())
	if !ok || block != sb.block {
		panic("attempting to free a sub-block that is not owned by this suballocator")
	}

	if !sb.reused {
		s.alignmentSavings -= sb.unusedSize
	}
	sb.isFree = true

	// Release the big chunks that are a single resource
	if sb.size == block.size {
		s.releaseBlock(block)
		return
	}

	block.freeSubBlocks = append(block.freeSubBlocks, &subBlock[R]{
		block:  block,
		offset: sb.offset,
		size:   sb.size,
		isFree: true,
	})
	block.numSubBlocks--

	// If this was the final remaining allocation then release the block, but
	// never shrink the pool below one block
	if block.numSubBlocks == 0 && len(s.blocks) > 1 {
		s.releaseBlock(block)
	}

	memutils.DebugValidate(s)
}

// Fragmentation reports how badly the pool's free space is split up, as a
// percentage in [0, 100], along with the total free bytes. The score derives
// from normalized free-region-size variance: a few large regions score near 0,
// many small regions push toward 100. A pool with no free space scores 0.
func (s *Suballocator[R]) Fragmentation() (percentage float64, unusedBytes int) {
	var sumSquares float64
	var sum int

	for _, block := range s.blocks {
		for _, free := range block.freeSubBlocks {
			sumSquares += float64(free.size) * float64(free.size)
			sum += free.size
		}

		tail := block.size - block.currentOffset
		sumSquares += float64(tail) * float64(tail)
		sum += tail
	}

	if sum == 0 {
		return 0, 0
	}

	return (1.0 - sumSquares/(float64(sum)*float64(sum))) * 100.0, sum
}

// Stats derives the pool's aggregate statistics from its current block set.
func (s *Suballocator[R]) Stats() memutils.PoolStatistics {
	var stats memutils.PoolStatistics
	stats.Clear()

	stats.BlockCount = len(s.blocks)
	stats.AlignmentSavings = s.alignmentSavings
	for _, block := range s.blocks {
		stats.AllocationCount += block.numSubBlocks
		stats.BlockBytes += block.size
	}
	stats.Fragmentation, stats.UnusedBytes = s.Fragmentation()

	return stats
}

// TotalSize returns the resident size of the pool- the sum of all block sizes.
func (s *Suballocator[R]) TotalSize() int {
	var size int
	for _, block := range s.blocks {
		size += block.size
	}
	return size
}

// BlockCount returns the number of backing blocks currently held by the pool.
func (s *Suballocator[R]) BlockCount() int {
	return len(s.blocks)
}

// Resources returns the backing resource of every block in creation order.
// Pools that are grown in lockstep (such as the compaction-size write and
// readback pools) yield pairwise-matching slices.
func (s *Suballocator[R]) Resources() []R {
	resources := make([]R, 0, len(s.blocks))
	for _, block := range s.blocks {
		resources = append(resources, block.resource)
	}
	return resources
}

// Destroy releases every backing block. The Suballocator may be reused
// afterward, beginning empty.
func (s *Suballocator[R]) Destroy() {
	for _, block := range s.blocks {
		block.resource.Free()
	}
	s.blocks = nil
	s.blocksByIdentity = swiss.NewMap[uint64, *blockDesc[R]](8)
	s.alignmentSavings = 0
}

func (s *Suballocator[R]) createBlock(blockAllocationSize int) (*blockDesc[R], error) {
	resource, err := s.createResource(blockAllocationSize)
	if err != nil {
		return nil, cerrors.Wrapf(err, "failed to allocate a %d-byte backing block", blockAllocationSize)
	}

	block := &blockDesc[R]{
		resource: resource,
		size:     blockAllocationSize,
	}
	s.blocks = append(s.blocks, block)
	s.blocksByIdentity.Put(resource.Identity(), block)
	memutils.DebugValidate(s)
	return block, nil
}

func (s *Suballocator[R]) releaseBlock(block *blockDesc[R]) {
	for i, candidate := range s.blocks {
		if candidate == block {
			s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
			break
		}
	}
	s.blocksByIdentity.Delete(block.resource.Identity())
	block.resource.Free()
}
