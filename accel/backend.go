package accel

import (
	"github.com/vkngwrapper/rtmem/suballoc"
)

// Purpose identifies what a backing resource will be used for, so the Backend
// can choose usage flags, memory types, and residency appropriately.
type Purpose uint32

const (
	// PurposeScratch backs transient build and update scratch memory
	PurposeScratch Purpose = iota
	// PurposeResult backs uncompacted acceleration structure storage
	PurposeResult
	// PurposeCompaction backs compacted acceleration structure storage
	PurposeCompaction
	// PurposeCompactionSizeWrite backs device-written compacted-size values
	PurposeCompactionSizeWrite
	// PurposeCompactionSizeReadback backs host-readable copies of compacted-size values
	PurposeCompactionSizeReadback
)

var purposeMapping = map[Purpose]string{
	PurposeScratch:                "SCRATCH",
	PurposeResult:                 "RESULT",
	PurposeCompaction:             "COMPACTION",
	PurposeCompactionSizeWrite:    "COMPACTION_SIZE_WRITE",
	PurposeCompactionSizeReadback: "COMPACTION_SIZE_READBACK",
}

func (p Purpose) String() string {
	str, ok := purposeMapping[p]
	if !ok {
		return "unknown"
	}
	return str
}

// Resource extends the pool-level backing resource with the device address
// accessor the lifecycle engine needs to point build and copy commands at
// specific sub-allocations.
type Resource interface {
	suballoc.Resource

	// DeviceAddress returns the device-visible base address of this resource.
	// Readback resources that are never addressed by the device may return 0.
	DeviceAddress() uint64
}

// BuildFlags mirror the device build flags the lifecycle engine inspects.
// Flags it does not inspect travel inside BuildInput.Geometry.
type BuildFlags uint32

const (
	// AllowUpdate marks a structure as refittable; update scratch is reserved at build
	AllowUpdate BuildFlags = 1 << iota
	// AllowCompaction requests a post-build compacted-size query and a later compaction copy
	AllowCompaction
	// PerformUpdate refits an existing structure in place instead of rebuilding it
	PerformUpdate
)

// BuildInput is one build or update request. Geometry is opaque to the
// lifecycle engine and is handed through to the Backend and CommandList.
type BuildInput struct {
	Flags    BuildFlags
	Geometry any
}

// PrebuildInfo is the device's size estimate for a build request.
type PrebuildInfo struct {
	// ResultSize is the maximum size in bytes of the built structure
	ResultSize int
	// ScratchSize is the scratch memory required by the initial build
	ScratchSize int
	// UpdateScratchSize is the scratch memory required by a refit
	UpdateScratchSize int
}

// Location addresses a byte range within a backing resource.
type Location[R Resource] struct {
	Resource R
	Offset   int
	Size     int
}

// DeviceAddress returns the device-visible address of the start of the range.
func (l Location[R]) DeviceAddress() uint64 {
	return l.Resource.DeviceAddress() + uint64(l.Offset)
}

// BuildDesc is a fully-resolved build or refit command: the caller's input
// plus the memory locations the lifecycle engine assigned to it. Source is
// only populated for refits and aliases Dest. CompactionSizeWrite is only
// populated when the input requested compaction.
type BuildDesc[R Resource] struct {
	Input               BuildInput
	Dest                Location[R]
	Scratch             Location[R]
	Source              Location[R]
	CompactionSizeWrite Location[R]
}

// Backend is the device-facing collaborator of a Manager: it allocates
// backing resources and answers size queries. Implementations wrap a native
// graphics API device.
type Backend[R Resource] interface {
	// CreateResource allocates one backing block for the given purpose
	CreateResource(purpose Purpose, size int) (R, error)
	// PrebuildInfo queries the device for the memory requirements of a build
	PrebuildInfo(input BuildInput) (PrebuildInfo, error)
	// ReadCompactedSize reads one device-written compacted-size value out of a
	// readback resource. Only called after the caller has guaranteed the
	// initiating build completed on the device.
	ReadCompactedSize(readback R, offset int) (int, error)
}

// CommandList records device work at the points the lifecycle engine dictates.
// Implementations wrap a native command buffer; recording must not block.
type CommandList[R Resource] interface {
	// BuildAccelStruct records one build or refit
	BuildAccelStruct(desc *BuildDesc[R])
	// CopyResource records a full-resource copy, used to bulk-transfer
	// device-written compacted sizes into readback memory
	CopyResource(dst R, src R)
	// CopyCompact records a compacting copy of a built structure into dst
	CopyCompact(dst Location[R], src Location[R])
	// Barrier records a synchronization barrier covering the given ranges
	Barrier(locations []Location[R])
}
