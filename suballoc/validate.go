package suballoc

import (
	cerrors "github.com/cockroachdb/errors"
)

// Validate performs an internal consistency audit of the pool and returns an
// error describing the first violation found. It is run automatically at the
// end of every mutating operation when the debug_rtmem build tag is present.
func (s *Suballocator[R]) Validate() error {
	for blockIndex, block := range s.blocks {
		if block.size < 1 {
			return cerrors.Newf("block %d has a non-positive size %d", blockIndex, block.size)
		}
		if block.currentOffset > block.size {
			return cerrors.Newf("block %d has bump offset %d past its size %d", blockIndex, block.currentOffset, block.size)
		}
		if block.numSubBlocks < 0 {
			return cerrors.Newf("block %d has a negative live count %d", blockIndex, block.numSubBlocks)
		}

		mapped, ok := s.blocksByIdentity.Get(block.resource.Identity())
		if !ok || mapped != block {
			return cerrors.Newf("block %d is missing from the identity index", blockIndex)
		}

		for _, free := range block.freeSubBlocks {
			if !free.isFree {
				return cerrors.Newf("block %d holds a live sub-block in its free list at offset %d", blockIndex, free.offset)
			}
			if free.size < 1 {
				return cerrors.Newf("block %d holds a free region of non-positive size %d", blockIndex, free.size)
			}
			if free.offset+free.size > block.currentOffset {
				return cerrors.Newf("block %d holds a free region ending at %d, past the bump offset %d", blockIndex, free.offset+free.size, block.currentOffset)
			}
		}
	}
	return nil
}
