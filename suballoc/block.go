package suballoc

import (
	"sort"
)

type subBlock[R Resource] struct {
	block  *blockDesc[R]
	offset int
	size   int
	// Bytes of this sub-block the caller did not ask for: rounding waste for
	// fresh allocations, the leftover tail of the free region for reused ones
	unusedSize int
	isFree     bool
	// reused is set when this sub-block was carved from a freed region rather
	// than bump-allocated, in which case unusedSize was never counted as
	// alignment savings
	reused bool
}

type blockDesc[R Resource] struct {
	resource      R
	size          int
	currentOffset int
	numSubBlocks  int
	freeSubBlocks []*subBlock[R]
}

// takeFreeSubBlock searches the block's free list for a region that can hold
// sizeInBytes. An exact-size match wins immediately; otherwise the minimum-waste
// candidate is accepted only when its leftover is strictly smaller than the
// request itself, bounding worst-case waste to under 100%.
func (b *blockDesc[R]) takeFreeSubBlock(sizeInBytes int) (*subBlock[R], bool) {
	minUnusedIndex := -1
	minUnused := int(^uint(0) >> 1)

	for i, free := range b.freeSubBlocks {
		if sizeInBytes > free.size {
			continue
		}

		unused := free.size - sizeInBytes
		if unused == 0 {
			return b.claimFreeSubBlock(i, 0), true
		}

		if unused < minUnused {
			minUnusedIndex = i
			minUnused = unused
		}
	}

	// No perfect match, so take the closest and get hit with fragmentation.
	// Reject the candidate if it is at least twice the required size.
	if minUnusedIndex >= 0 && minUnused < sizeInBytes {
		return b.claimFreeSubBlock(minUnusedIndex, minUnused), true
	}

	return nil, false
}

func (b *blockDesc[R]) claimFreeSubBlock(index, unused int) *subBlock[R] {
	sb := b.freeSubBlocks[index]
	b.freeSubBlocks = append(b.freeSubBlocks[:index], b.freeSubBlocks[index+1:]...)

	// The sub-block keeps the full size of the region it occupies
	sb.isFree = false
	sb.unusedSize = unused
	sb.reused = true
	b.numSubBlocks++
	return sb
}

func (b *blockDesc[R]) bumpAllocate(sizeInBytes, unused int) (*subBlock[R], bool) {
	offsetInBytes := b.currentOffset + sizeInBytes
	if offsetInBytes > b.size {
		return nil, false
	}

	sb := &subBlock[R]{
		block:      b,
		offset:     b.currentOffset,
		size:       sizeInBytes,
		unusedSize: unused,
	}
	b.currentOffset = offsetInBytes
	b.numSubBlocks++
	return sb, true
}

// mergeAdjacentFreeRegions coalesces free sub-blocks that touch one another.
// Returns true if at least one merge happened. Merged regions do not absorb
// the block's trailing bump region.
func (b *blockDesc[R]) mergeAdjacentFreeRegions() bool {
	if len(b.freeSubBlocks) < 2 {
		return false
	}

	sort.Slice(b.freeSubBlocks, func(i, j int) bool {
		return b.freeSubBlocks[i].offset < b.freeSubBlocks[j].offset
	})

	merged := false
	out := b.freeSubBlocks[:1]
	for _, free := range b.freeSubBlocks[1:] {
		last := out[len(out)-1]
		if last.offset+last.size == free.offset {
			last.size += free.size
			merged = true
			continue
		}
		out = append(out, free)
	}

	b.freeSubBlocks = out
	return merged
}
