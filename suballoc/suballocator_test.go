package suballoc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/rtmem/memutils"
)

type testResource struct {
	id    uint64
	size  int
	freed bool
}

func (r *testResource) Free()            { r.freed = true }
func (r *testResource) Alignment() uint  { return 65536 }
func (r *testResource) Identity() uint64 { return r.id }

type testResourceFactory struct {
	nextID  uint64
	created []*testResource

	// When createErr is set, creation fails once failAfter resources exist
	createErr error
	failAfter int
}

func (f *testResourceFactory) create(size int) (*testResource, error) {
	if f.createErr != nil && len(f.created) >= f.failAfter {
		return nil, f.createErr
	}

	f.nextID++
	resource := &testResource{id: f.nextID, size: size}
	f.created = append(f.created, resource)
	return resource, nil
}

func createSuballocator(t require.TestingT, blockSize int, options ...Option) (*Suballocator[*testResource], *testResourceFactory) {
	factory := &testResourceFactory{}
	allocator, err := New[*testResource](blockSize, 256, factory.create, options...)
	require.NoError(t, err)
	return allocator, factory
}

func TestNewRejectsBadArguments(t *testing.T) {
	factory := &testResourceFactory{}

	_, err := New[*testResource](0, 256, factory.create)
	require.Error(t, err)

	_, err = New[*testResource](1024, 768, factory.create)
	require.Error(t, err)

	_, err = New[*testResource](1024, 256, nil)
	require.Error(t, err)
}

func TestAllocateRoundsUpToAlignment(t *testing.T) {
	allocator, _ := createSuballocator(t, 4096)

	alloc, err := allocator.Allocate(100)
	require.NoError(t, err)
	require.Equal(t, 0, alloc.Offset)
	require.Equal(t, 256, alloc.SubBlock.Size())
	require.Equal(t, 156, alloc.SubBlock.Unused())

	stats := allocator.Stats()
	require.Equal(t, 156, stats.AlignmentSavings)
	require.Equal(t, 1, stats.AllocationCount)
}

func TestExactFitReuse(t *testing.T) {
	allocator, factory := createSuballocator(t, 1024*1024)

	alloc1, err := allocator.Allocate(1000)
	require.NoError(t, err)
	_, err = allocator.Allocate(2048)
	require.NoError(t, err)

	allocator.Free(alloc1.SubBlock)
	require.True(t, alloc1.SubBlock.IsFree())

	// An identical request must come back at the identical offset
	alloc3, err := allocator.Allocate(1000)
	require.NoError(t, err)
	require.Equal(t, alloc1.Offset, alloc3.Offset)
	require.Equal(t, alloc1.Resource.Identity(), alloc3.Resource.Identity())
	require.Len(t, factory.created, 1)
}

func TestClosestFitUnderDoubleRequest(t *testing.T) {
	allocator, _ := createSuballocator(t, 4096)

	alloc1, err := allocator.Allocate(1024)
	require.NoError(t, err)
	_, err = allocator.Allocate(512)
	require.NoError(t, err)
	_, err = allocator.Allocate(2048)
	require.NoError(t, err)

	allocator.Free(alloc1.SubBlock)

	// A 1024-byte free region must not serve a 512-byte request, since the
	// residual would equal the request itself
	alloc4, err := allocator.Allocate(512)
	require.NoError(t, err)
	require.Equal(t, 3584, alloc4.Offset)

	// A 768-byte request fits the region with a residual under the request
	alloc5, err := allocator.Allocate(768)
	require.NoError(t, err)
	require.Equal(t, 0, alloc5.Offset)
	require.Equal(t, 1024, alloc5.SubBlock.Size())
	require.Equal(t, 256, alloc5.SubBlock.Unused())
}

func TestOversizedRequestGetsDedicatedBlock(t *testing.T) {
	allocator, factory := createSuballocator(t, 65536)

	_, err := allocator.Allocate(1024)
	require.NoError(t, err)

	alloc, err := allocator.Allocate(100000)
	require.NoError(t, err)
	require.Equal(t, 0, alloc.Offset)
	require.Equal(t, 100096, alloc.SubBlock.Size())
	require.Equal(t, 2, allocator.BlockCount())
	require.Equal(t, 65536+100096, allocator.TotalSize())

	// Dedicated blocks are released in full
	allocator.Free(alloc.SubBlock)
	require.Equal(t, 1, allocator.BlockCount())
	require.True(t, factory.created[1].freed)
}

func TestPoolNeverShrinksBelowOneBlock(t *testing.T) {
	allocator, factory := createSuballocator(t, 4096)

	alloc1, err := allocator.Allocate(1024)
	require.NoError(t, err)
	alloc2, err := allocator.Allocate(1024)
	require.NoError(t, err)

	allocator.Free(alloc1.SubBlock)
	allocator.Free(alloc2.SubBlock)

	require.Equal(t, 1, allocator.BlockCount())
	require.False(t, factory.created[0].freed)
}

func TestEmptySecondBlockIsReleased(t *testing.T) {
	allocator, factory := createSuballocator(t, 4096)

	for i := 0; i < 4; i++ {
		_, err := allocator.Allocate(1024)
		require.NoError(t, err)
	}

	spill, err := allocator.Allocate(1024)
	require.NoError(t, err)
	require.Equal(t, 2, allocator.BlockCount())

	allocator.Free(spill.SubBlock)
	require.Equal(t, 1, allocator.BlockCount())
	require.True(t, factory.created[1].freed)
}

func TestFragmentation(t *testing.T) {
	allocator, _ := createSuballocator(t, 4096)

	// No free space at all
	fragmentation, unusedBytes := allocator.Fragmentation()
	require.Zero(t, fragmentation)
	require.Zero(t, unusedBytes)

	allocs := make([]SubAllocation[*testResource], 4)
	for i := range allocs {
		var err error
		allocs[i], err = allocator.Allocate(1024)
		require.NoError(t, err)
	}

	fragmentation, unusedBytes = allocator.Fragmentation()
	require.Zero(t, fragmentation)
	require.Zero(t, unusedBytes)

	// One contiguous free region scores 0
	allocator.Free(allocs[1].SubBlock)
	fragmentation, unusedBytes = allocator.Fragmentation()
	require.Zero(t, fragmentation)
	require.Equal(t, 1024, unusedBytes)

	// Two equal disjoint regions score 50
	allocator.Free(allocs[3].SubBlock)
	fragmentation, unusedBytes = allocator.Fragmentation()
	require.InDelta(t, 50.0, fragmentation, 0.001)
	require.Equal(t, 2048, unusedBytes)
}

func TestAllocateFailsWhenResourceCreationFails(t *testing.T) {
	allocator, factory := createSuballocator(t, 4096)

	_, err := allocator.Allocate(1024)
	require.NoError(t, err)

	factory.createErr = memutils.OutOfDeviceMemoryError
	factory.failAfter = 1

	// A spilling request needs a fresh block
	_, err = allocator.Allocate(4096)
	require.Error(t, err)
	require.ErrorIs(t, err, memutils.OutOfDeviceMemoryError)

	// An oversized request needs a dedicated block
	_, err = allocator.Allocate(100000)
	require.Error(t, err)
	require.ErrorIs(t, err, memutils.OutOfDeviceMemoryError)

	// The pool is untouched by the failed requests and keeps working
	require.Equal(t, 1, allocator.BlockCount())
	alloc, err := allocator.Allocate(1024)
	require.NoError(t, err)
	require.Equal(t, 1024, alloc.Offset)
}

func TestFreeContractViolationsPanic(t *testing.T) {
	allocator, _ := createSuballocator(t, 4096)
	other, _ := createSuballocator(t, 4096)

	alloc, err := allocator.Allocate(1024)
	require.NoError(t, err)

	require.Panics(t, func() {
		allocator.Free(SubBlockRef[*testResource]{})
	})
	require.Panics(t, func() {
		other.Free(alloc.SubBlock)
	})

	allocator.Free(alloc.SubBlock)
	require.Panics(t, func() {
		allocator.Free(alloc.SubBlock)
	})
}

func TestMergeFreeRegions(t *testing.T) {
	allocator, _ := createSuballocator(t, 4096, MergeFreeRegions())

	allocs := make([]SubAllocation[*testResource], 4)
	for i := range allocs {
		var err error
		allocs[i], err = allocator.Allocate(1024)
		require.NoError(t, err)
	}

	allocator.Free(allocs[1].SubBlock)
	allocator.Free(allocs[2].SubBlock)

	// Neither 1024-byte region fits alone, but they touch and coalesce
	alloc, err := allocator.Allocate(2048)
	require.NoError(t, err)
	require.Equal(t, 1024, alloc.Offset)
	require.Equal(t, 1, allocator.BlockCount())
}

func TestMergeDisabledByDefault(t *testing.T) {
	allocator, _ := createSuballocator(t, 4096)

	allocs := make([]SubAllocation[*testResource], 4)
	for i := range allocs {
		var err error
		allocs[i], err = allocator.Allocate(1024)
		require.NoError(t, err)
	}

	allocator.Free(allocs[1].SubBlock)
	allocator.Free(allocs[2].SubBlock)

	alloc, err := allocator.Allocate(2048)
	require.NoError(t, err)
	require.Equal(t, 0, alloc.Offset)
	require.Equal(t, 2, allocator.BlockCount())
}

func TestLiveBytesNeverExceedBlockBytes(t *testing.T) {
	allocator, _ := createSuballocator(t, 8192)

	var live []SubAllocation[*testResource]
	sizes := []int{1000, 3000, 500, 8192, 2500, 700, 4096, 100}
	for i, size := range sizes {
		alloc, err := allocator.Allocate(size)
		require.NoError(t, err)
		live = append(live, alloc)

		if i%3 == 2 {
			allocator.Free(live[0].SubBlock)
			live = live[1:]
		}

		var liveBytes int
		for _, l := range live {
			liveBytes += l.SubBlock.Size()
		}
		require.LessOrEqual(t, liveBytes, allocator.TotalSize())
		require.GreaterOrEqual(t, allocator.BlockCount(), 1)
	}
}

func TestDestroyReleasesEverything(t *testing.T) {
	allocator, factory := createSuballocator(t, 4096)

	_, err := allocator.Allocate(1024)
	require.NoError(t, err)
	_, err = allocator.Allocate(100000)
	require.NoError(t, err)

	allocator.Destroy()
	require.Zero(t, allocator.BlockCount())
	for _, resource := range factory.created {
		require.True(t, resource.freed)
	}

	// The allocator is reusable after Destroy
	alloc, err := allocator.Allocate(512)
	require.NoError(t, err)
	require.Equal(t, 0, alloc.Offset)
}
