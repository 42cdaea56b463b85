package suballoc

import (
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// PrintDetailedMap populates a json object with every block in the pool and
// the free regions within each, keyed by block index in creation order.
func (s *Suballocator[R]) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	for i, block := range s.blocks {
		blockObj := objState.Name(strconv.Itoa(i)).Object()
		block.blockJsonData(blockObj)
		blockObj.End()
	}
}

func (b *blockDesc[R]) blockJsonData(json jwriter.ObjectState) {
	var freeBytes int
	for _, free := range b.freeSubBlocks {
		freeBytes += free.size
	}

	json.Name("TotalBytes").Int(b.size)
	json.Name("BumpOffset").Int(b.currentOffset)
	json.Name("Allocations").Int(b.numSubBlocks)
	json.Name("UnusedBytes").Int(freeBytes + b.size - b.currentOffset)

	arrayState := json.Name("FreeRegions").Array()
	defer arrayState.End()

	for _, free := range b.freeSubBlocks {
		obj := arrayState.Object()
		obj.Name("Offset").Int(free.offset)
		obj.Name("Size").Int(free.size)
		obj.End()
	}
}
