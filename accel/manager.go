package accel

import (
	"fmt"

	cerrors "github.com/cockroachdb/errors"
	"github.com/eapache/queue"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/rtmem/accel/internal/utils"
	"github.com/vkngwrapper/rtmem/memutils"
	"github.com/vkngwrapper/rtmem/suballoc"
	"golang.org/x/exp/slog"
)

// accelerationStructure is the lifecycle record behind one handle.
type accelerationStructure[R Resource] struct {
	resultMemory                 suballoc.SubAllocation[R]
	scratchMemory                suballoc.SubAllocation[R]
	updateMemory                 suballoc.SubAllocation[R]
	compactionMemory             suballoc.SubAllocation[R]
	compactionSizeWriteMemory    suballoc.SubAllocation[R]
	compactionSizeReadbackMemory suballoc.SubAllocation[R]

	resultSize     int
	scratchSize    int
	compactionSize int

	isCompacted         bool
	requestedCompaction bool
	readyToFree         bool
}

// Manager drives batches of acceleration structures through the
// build/compaction/garbage-collection lifecycle, suballocating every piece of
// backing memory from purpose-specific pools. All mutating batch operations
// serialize on one internal mutex; read accessors are unsynchronized and are
// only safe while no mutator runs on the same handle.
type Manager[R Resource] struct {
	backend   Backend[R]
	logger    *slog.Logger
	blockSize int

	mutex utils.OptionalMutex

	// Index 0 is the reserved sentinel and is never populated
	structs []*accelerationStructure[R]
	freeIDs *queue.Queue
	nextID  uint64

	totalUncompactedMemory int
	totalCompactedMemory   int

	scratchPool                *suballoc.Suballocator[R]
	updatePool                 *suballoc.Suballocator[R]
	resultPool                 *suballoc.Suballocator[R]
	transientResultPool        *suballoc.Suballocator[R]
	compactionPool             *suballoc.Suballocator[R]
	compactionSizeWritePool    *suballoc.Suballocator[R]
	compactionSizeReadbackPool *suballoc.Suballocator[R]
}

type managerConfig struct {
	blockSize              int
	logger                 *slog.Logger
	mergeFreeRegions       bool
	externallySynchronized bool
}

// Option adjusts Manager construction.
type Option func(config *managerConfig)

// WithBlockSize overrides the backing block size of the scratch, result, and
// compaction pools. The compaction-size pools keep their own fixed block size.
func WithBlockSize(blockSize int) Option {
	return func(config *managerConfig) {
		config.blockSize = blockSize
	}
}

// WithLogger routes the Manager's diagnostic output to the provided logger.
func WithLogger(logger *slog.Logger) Option {
	return func(config *managerConfig) {
		config.logger = logger
	}
}

// WithMergeFreeRegions enables the adjacent-free-region merge pass in every
// pool. Off by default, which matches the reference fragmentation behavior.
func WithMergeFreeRegions() Option {
	return func(config *managerConfig) {
		config.mergeFreeRegions = true
	}
}

// WithExternalSynchronization disables the Manager's internal mutex for
// embedders that already serialize all calls on one goroutine.
func WithExternalSynchronization() Option {
	return func(config *managerConfig) {
		config.externallySynchronized = true
	}
}

// NewManager creates a lifecycle Manager on top of the provided Backend.
func NewManager[R Resource](backend Backend[R], options ...Option) (*Manager[R], error) {
	if backend == nil {
		return nil, cerrors.New("a Backend must be provided")
	}

	config := managerConfig{
		blockSize: DefaultSuballocatorBlockSize,
		logger:    slog.Default(),
	}
	for _, option := range options {
		option(&config)
	}
	if config.blockSize < 1 {
		return nil, cerrors.Newf("block size must be positive, but was %d", config.blockSize)
	}
	if config.logger == nil {
		config.logger = slog.Default()
	}

	m := &Manager[R]{
		backend:   backend,
		logger:    config.logger,
		blockSize: config.blockSize,
		structs:   make([]*accelerationStructure[R], 1),
		freeIDs:   queue.New(),
		nextID:    ReservedID + 1,
	}
	m.mutex.UseMutex = !config.externallySynchronized

	err := m.createPools(config.mergeFreeRegions)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager[R]) createPools(mergeFreeRegions bool) error {
	var poolOptions []suballoc.Option
	if mergeFreeRegions {
		poolOptions = append(poolOptions, suballoc.MergeFreeRegions())
	}

	poolSpecs := []struct {
		pool      **suballoc.Suballocator[R]
		purpose   Purpose
		blockSize int
		alignment uint
	}{
		{&m.scratchPool, PurposeScratch, m.blockSize, AccelStructAlignment},
		{&m.updatePool, PurposeScratch, m.blockSize, AccelStructAlignment},
		{&m.resultPool, PurposeResult, m.blockSize, AccelStructAlignment},
		{&m.transientResultPool, PurposeResult, m.blockSize, AccelStructAlignment},
		{&m.compactionPool, PurposeCompaction, m.blockSize, AccelStructAlignment},
		{&m.compactionSizeWritePool, PurposeCompactionSizeWrite, CompactionSizeBlockSize, SizeOfCompactionDescriptor},
		{&m.compactionSizeReadbackPool, PurposeCompactionSizeReadback, CompactionSizeBlockSize, SizeOfCompactionDescriptor},
	}

	for _, spec := range poolSpecs {
		purpose := spec.purpose
		pool, err := suballoc.New[R](spec.blockSize, spec.alignment,
			func(size int) (R, error) {
				return m.backend.CreateResource(purpose, size)
			}, poolOptions...)
		if err != nil {
			return cerrors.Wrapf(err, "failed to create the %s pool", purpose)
		}
		*spec.pool = pool
	}
	return nil
}

func (m *Manager[R]) allPools() []*suballoc.Suballocator[R] {
	return []*suballoc.Suballocator[R]{
		m.scratchPool, m.updatePool, m.resultPool, m.transientResultPool,
		m.compactionPool, m.compactionSizeWritePool, m.compactionSizeReadbackPool,
	}
}

func (m *Manager[R]) getAccelStructID() uint64 {
	if m.freeIDs.Length() > 0 {
		id := m.freeIDs.Remove().(uint64)
		m.structs[id] = &accelerationStructure[R]{}
		return id
	}

	m.structs = append(m.structs, &accelerationStructure[R]{})
	id := m.nextID
	m.nextID++
	return id
}

func (m *Manager[R]) releaseAccelStructID(accelStructID uint64) {
	m.freeIDs.Add(accelStructID)
	m.structs[accelStructID] = nil
}

func (m *Manager[R]) mustGet(accelStructID uint64) *accelerationStructure[R] {
	if accelStructID == ReservedID || accelStructID >= uint64(len(m.structs)) || m.structs[accelStructID] == nil {
		panic(fmt.Sprintf("acceleration structure id %d does not refer to a live structure", accelStructID))
	}
	return m.structs[accelStructID]
}

func location[R Resource](alloc suballoc.SubAllocation[R]) Location[R] {
	return Location[R]{
		Resource: alloc.Resource,
		Offset:   alloc.Offset,
		Size:     alloc.SubBlock.Size(),
	}
}

func (m *Manager[R]) currentLocation(as *accelerationStructure[R]) Location[R] {
	if as.isCompacted {
		return location(as.compactionMemory)
	}
	return location(as.resultMemory)
}

func freePoolMemory[R Resource](pool *suballoc.Suballocator[R], alloc suballoc.SubAllocation[R]) {
	if alloc.SubBlock.IsNil() || alloc.SubBlock.IsFree() {
		return
	}
	pool.Free(alloc.SubBlock)
}

// resultPoolFor returns the pool backing a structure's uncompacted result:
// compaction-requested builds draw from the transient pool, since that memory
// is discarded once the compacted copy exists.
func (m *Manager[R]) resultPoolFor(as *accelerationStructure[R]) *suballoc.Suballocator[R] {
	if as.requestedCompaction {
		return m.transientResultPool
	}
	return m.resultPool
}

// PopulateBuildCommandList issues a handle for every build input, suballocates
// its result and scratch memory, and records the build on the command list.
// Inputs that allow compaction also receive a compacted-size write location,
// which the recorded build instructs the device to fill.
//
// On error, the handles issued so far are returned alongside it; the caller
// should discard the recorded commands and remove those handles.
func (m *Manager[R]) PopulateBuildCommandList(commandList CommandList[R], inputs []BuildInput) ([]uint64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	accelStructIDs := make([]uint64, 0, len(inputs))
	for buildIndex := range inputs {
		input := inputs[buildIndex]

		prebuildInfo, err := m.backend.PrebuildInfo(input)
		if err != nil {
			return accelStructIDs, cerrors.Wrap(err, "failed to query prebuild info")
		}

		accelStructID := m.getAccelStructID()
		accelStructIDs = append(accelStructIDs, accelStructID)
		as := m.structs[accelStructID]
		as.requestedCompaction = input.Flags&AllowCompaction != 0

		as.resultMemory, err = m.resultPoolFor(as).Allocate(prebuildInfo.ResultSize)
		if err != nil {
			return accelStructIDs, err
		}
		as.resultSize = as.resultMemory.SubBlock.Size()
		m.totalUncompactedMemory += as.resultSize

		if input.Flags&AllowUpdate != 0 {
			as.updateMemory, err = m.updatePool.Allocate(prebuildInfo.UpdateScratchSize)
			if err != nil {
				return accelStructIDs, err
			}
		}

		as.scratchMemory, err = m.scratchPool.Allocate(prebuildInfo.ScratchSize)
		if err != nil {
			return accelStructIDs, err
		}
		as.scratchSize = as.scratchMemory.SubBlock.Size()

		desc := BuildDesc[R]{
			Input:   input,
			Dest:    location(as.resultMemory),
			Scratch: location(as.scratchMemory),
		}

		if as.requestedCompaction {
			as.compactionSizeWriteMemory, err = m.compactionSizeWritePool.Allocate(SizeOfCompactionDescriptor)
			if err != nil {
				return accelStructIDs, err
			}
			as.compactionSizeReadbackMemory, err = m.compactionSizeReadbackPool.Allocate(SizeOfCompactionDescriptor)
			if err != nil {
				return accelStructIDs, err
			}
			desc.CompactionSizeWrite = location(as.compactionSizeWriteMemory)
		}

		commandList.BuildAccelStruct(&desc)

		m.logger.Debug("recorded acceleration structure build",
			slog.Uint64("accelStructId", accelStructID),
			slog.Int("resultSize", as.resultSize),
			slog.Int("scratchSize", as.scratchSize),
			slog.Bool("requestedCompaction", as.requestedCompaction),
		)
	}
	return accelStructIDs, nil
}

// PopulateUpdateCommandList records a refit for inputs that perform an update
// on an updatable structure, and a full rebuild otherwise. Rebuilds that have
// outgrown their reserved memory reallocate it; the stale sub-allocations are
// deliberately abandoned rather than freed mid-batch, since the device may
// still be reading them. Mixing a rebuild with a compaction request panics.
func (m *Manager[R]) PopulateUpdateCommandList(commandList CommandList[R], inputs []BuildInput, accelStructIDs []uint64) error {
	if len(inputs) != len(accelStructIDs) {
		panic(fmt.Sprintf("received %d build inputs for %d acceleration structure ids", len(inputs), len(accelStructIDs)))
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for buildIndex := range inputs {
		input := inputs[buildIndex]
		accelStructID := accelStructIDs[buildIndex]
		as := m.mustGet(accelStructID)

		if input.Flags&PerformUpdate != 0 && input.Flags&AllowUpdate != 0 {
			current := m.currentLocation(as)
			commandList.BuildAccelStruct(&BuildDesc[R]{
				Input:   input,
				Dest:    current,
				Source:  current,
				Scratch: location(as.updateMemory),
			})
			continue
		}

		if input.Flags&AllowCompaction != 0 {
			panic("rebuilding an acceleration structure with compaction requested is not supported")
		}

		prebuildInfo, err := m.backend.PrebuildInfo(input)
		if err != nil {
			return cerrors.Wrap(err, "failed to query prebuild info")
		}

		// Scratch is discarded after compaction, so a recurring rebuild may
		// need to take new scratch memory
		if as.scratchMemory.SubBlock.IsNil() || as.scratchMemory.SubBlock.IsFree() {
			as.scratchMemory, err = m.scratchPool.Allocate(as.scratchSize)
			if err != nil {
				return err
			}
		}

		if prebuildInfo.ResultSize > as.resultSize || prebuildInfo.ScratchSize > as.scratchSize {
			m.logger.Warn("rebuild outgrew its reserved memory, reallocating",
				slog.Uint64("accelStructId", accelStructID),
				slog.Int("resultSize", as.resultSize),
				slog.Int("requiredResultSize", prebuildInfo.ResultSize),
				slog.Int("scratchSize", as.scratchSize),
				slog.Int("requiredScratchSize", prebuildInfo.ScratchSize),
			)

			as.resultMemory, err = m.resultPoolFor(as).Allocate(prebuildInfo.ResultSize)
			if err != nil {
				return err
			}
			as.resultSize = as.resultMemory.SubBlock.Size()
			m.totalUncompactedMemory += as.resultSize

			as.scratchMemory, err = m.scratchPool.Allocate(prebuildInfo.ScratchSize)
			if err != nil {
				return err
			}
			as.scratchSize = as.scratchMemory.SubBlock.Size()

			if as.resultSize < prebuildInfo.ResultSize || as.scratchSize < prebuildInfo.ScratchSize {
				m.logger.Error("reallocated memory is still too small for the rebuild",
					slog.Uint64("accelStructId", accelStructID))
				panic("device-reported build sizes are internally inconsistent")
			}
		}

		commandList.BuildAccelStruct(&BuildDesc[R]{
			Input:   input,
			Dest:    location(as.resultMemory),
			Scratch: location(as.scratchMemory),
		})
	}
	return nil
}

// PopulateUAVBarriersCommandList records one barrier covering the current
// backing range of every listed structure, for use between the build batch
// and any read of the built structures.
func (m *Manager[R]) PopulateUAVBarriersCommandList(commandList CommandList[R], accelStructIDs []uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	locations := make([]Location[R], 0, len(accelStructIDs))
	for _, accelStructID := range accelStructIDs {
		locations = append(locations, m.currentLocation(m.mustGet(accelStructID)))
	}
	if len(locations) > 0 {
		commandList.Barrier(locations)
	}
}

// PopulateCompactionSizeCopiesCommandList records the transfers that move
// device-written compacted sizes into host-readable memory. It copies one
// whole backing block per (write, readback) block pair rather than 8 bytes
// per structure, so the ids only indicate that a batch is pending; the copies
// cover every outstanding structure at once.
func (m *Manager[R]) PopulateCompactionSizeCopiesCommandList(commandList CommandList[R], accelStructIDs []uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	pending := false
	for _, accelStructID := range accelStructIDs {
		as := m.mustGet(accelStructID)
		if as.requestedCompaction && !as.isCompacted {
			pending = true
			break
		}
	}
	if !pending {
		return
	}

	// Both pools grow in lockstep, one descriptor at a time
	writeResources := m.compactionSizeWritePool.Resources()
	readbackResources := m.compactionSizeReadbackPool.Resources()
	for i := 0; i < len(writeResources) && i < len(readbackResources); i++ {
		commandList.CopyResource(readbackResources[i], writeResources[i])
	}
}

// PopulateCompactionCommandList reads the device-reported compacted size of
// every structure that requested compaction and has not been compacted yet,
// suballocates a right-sized compacted copy, and records the compacting copy.
// A single barrier is recorded after the whole batch. The caller must have
// waited for the initiating builds and size copies to complete on the device.
func (m *Manager[R]) PopulateCompactionCommandList(commandList CommandList[R], accelStructIDs []uint64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var lastCompaction Location[R]
	compactionCopiesPerformed := false
	for _, accelStructID := range accelStructIDs {
		as := m.mustGet(accelStructID)
		if !as.requestedCompaction || as.isCompacted {
			continue
		}

		compactedSize, err := m.backend.ReadCompactedSize(
			as.compactionSizeReadbackMemory.Resource,
			as.compactionSizeReadbackMemory.Offset)
		if err != nil {
			return cerrors.Wrapf(err, "failed to read the compacted size of acceleration structure %d", accelStructID)
		}

		as.compactionMemory, err = m.compactionPool.Allocate(compactedSize)
		if err != nil {
			return err
		}
		as.compactionSize = as.compactionMemory.SubBlock.Size()
		m.totalCompactedMemory += as.compactionSize

		dst := location(as.compactionMemory)
		commandList.CopyCompact(dst, location(as.resultMemory))
		as.isCompacted = true

		lastCompaction = dst
		compactionCopiesPerformed = true

		m.logger.Debug("recorded compaction copy",
			slog.Uint64("accelStructId", accelStructID),
			slog.Int("resultSize", as.resultSize),
			slog.Int("compactionSize", as.compactionSize),
		)
	}

	if compactionCopiesPerformed {
		commandList.Barrier([]Location[R]{lastCompaction})
	}
	return nil
}

// GarbageCollection frees the memory each listed structure no longer needs
// once its compaction copy has completed on the device: the uncompacted
// result, both compacted-size transfers, and scratch. Structures that never
// requested compaction keep all of it, since they may still be rebuilt. The
// handle itself stays live until RemoveAccelerationStructures.
func (m *Manager[R]) GarbageCollection(accelStructIDs []uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, accelStructID := range accelStructIDs {
		as := m.mustGet(accelStructID)
		m.postBuildRelease(as)
		as.readyToFree = true
	}
}

func (m *Manager[R]) postBuildRelease(as *accelerationStructure[R]) {
	if as.isCompacted {
		freePoolMemory(m.transientResultPool, as.resultMemory)
		freePoolMemory(m.compactionSizeWritePool, as.compactionSizeWriteMemory)
		freePoolMemory(m.compactionSizeReadbackPool, as.compactionSizeReadbackMemory)
	}
	if as.requestedCompaction {
		freePoolMemory(m.scratchPool, as.scratchMemory)
	}
}

// RemoveAccelerationStructures unconditionally frees every remaining
// sub-allocation of each listed structure and releases its handle for reuse.
func (m *Manager[R]) RemoveAccelerationStructures(accelStructIDs []uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, accelStructID := range accelStructIDs {
		m.releaseAccelerationStructure(accelStructID)
	}
}

func (m *Manager[R]) releaseAccelerationStructure(accelStructID uint64) {
	as := m.mustGet(accelStructID)

	m.totalCompactedMemory -= as.compactionSize
	m.totalUncompactedMemory -= as.resultSize

	freePoolMemory(m.scratchPool, as.scratchMemory)
	freePoolMemory(m.updatePool, as.updateMemory)
	freePoolMemory(m.resultPoolFor(as), as.resultMemory)
	freePoolMemory(m.compactionPool, as.compactionMemory)
	freePoolMemory(m.compactionSizeWritePool, as.compactionSizeWriteMemory)
	freePoolMemory(m.compactionSizeReadbackPool, as.compactionSizeReadbackMemory)

	m.releaseAccelStructID(accelStructID)
}

// Reset drops every pool and record and returns the Manager to its
// freshly-constructed state. All outstanding handles become invalid.
func (m *Manager[R]) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, pool := range m.allPools() {
		pool.Destroy()
	}
	m.structs = make([]*accelerationStructure[R], 1)
	m.freeIDs = queue.New()
	m.nextID = ReservedID + 1
	m.totalUncompactedMemory = 0
	m.totalCompactedMemory = 0
}

// IsValid reports whether the id refers to a live acceleration structure. The
// reserved sentinel, out-of-range ids, and released handles are all invalid.
func (m *Manager[R]) IsValid(accelStructID uint64) bool {
	return accelStructID != ReservedID &&
		accelStructID < uint64(len(m.structs)) &&
		m.structs[accelStructID] != nil
}

// GetAccelStructLocation returns the structure's current backing range: the
// compacted copy once compaction has completed, the original result otherwise.
func (m *Manager[R]) GetAccelStructLocation(accelStructID uint64) Location[R] {
	return m.currentLocation(m.mustGet(accelStructID))
}

// GetDeviceAddress returns the device-visible address of the structure's
// current backing.
func (m *Manager[R]) GetDeviceAddress(accelStructID uint64) uint64 {
	return m.currentLocation(m.mustGet(accelStructID)).DeviceAddress()
}

// GetInitialSize returns the size of the structure's uncompacted build.
func (m *Manager[R]) GetInitialSize(accelStructID uint64) int {
	return m.mustGet(accelStructID).resultSize
}

// GetCompactionSize returns the size of the compacted copy, or 0 before
// compaction completes.
func (m *Manager[R]) GetCompactionSize(accelStructID uint64) int {
	return m.mustGet(accelStructID).compactionSize
}

// GetRequestedCompaction reports whether the structure was built with a
// compaction request.
func (m *Manager[R]) GetRequestedCompaction(accelStructID uint64) bool {
	return m.mustGet(accelStructID).requestedCompaction
}

// GetCompactionComplete reports whether the compacting copy has been recorded
// for this structure.
func (m *Manager[R]) GetCompactionComplete(accelStructID uint64) bool {
	return m.mustGet(accelStructID).isCompacted
}

// ResultPoolStats returns aggregate statistics for the persistent result pool.
func (m *Manager[R]) ResultPoolStats() memutils.PoolStatistics {
	return m.resultPool.Stats()
}

// TransientResultPoolStats returns aggregate statistics for the pool backing
// compaction-requested builds.
func (m *Manager[R]) TransientResultPoolStats() memutils.PoolStatistics {
	return m.transientResultPool.Stats()
}

// CompactionPoolStats returns aggregate statistics for the compacted-copy pool.
func (m *Manager[R]) CompactionPoolStats() memutils.PoolStatistics {
	return m.compactionPool.Stats()
}

// ScratchPoolStats returns aggregate statistics for the build scratch pool.
func (m *Manager[R]) ScratchPoolStats() memutils.PoolStatistics {
	return m.scratchPool.Stats()
}

// GetLog returns a human-readable multi-line memory consumption report.
func (m *Manager[R]) GetLog() string {
	memoryReductionRatio := float64(m.totalCompactedMemory) / (float64(m.totalUncompactedMemory) + 1.0)
	fragmentedRatio := 1.0 - float64(m.totalCompactedMemory)/(float64(m.compactionPool.TotalSize())+1.0)

	return fmt.Sprintf(
		"Theoretical uncompacted  memory:     %f MB\n"+
			"Compaction               memory:     %f MB\n"+
			"Compaction  memory       reduction:  %f %%\n"+
			"Uncompacted suballocator memory:     %f MB\n"+
			"Transient   suballocator memory:     %f MB\n"+
			"Compaction  suballocator memory:     %f MB\n"+
			"Scratch     suballocator memory:     %f MB\n"+
			"Update      suballocator memory:     %f MB\n"+
			"Compaction  fragmented   percentage: %f %%\n",
		float64(m.totalUncompactedMemory)/1000000.0,
		float64(m.totalCompactedMemory)/1000000.0,
		memoryReductionRatio*100.0,
		float64(m.resultPool.TotalSize())/1000000.0,
		float64(m.transientResultPool.TotalSize())/1000000.0,
		float64(m.compactionPool.TotalSize())/1000000.0,
		float64(m.scratchPool.TotalSize())/1000000.0,
		float64(m.updatePool.TotalSize())/1000000.0,
		fragmentedRatio*100.0,
	)
}

// BuildStatsString returns a json string documenting the memory totals and
// the state of every pool. When detailedMap is true, each pool also includes
// a block-by-block map of its free regions.
func (m *Manager[R]) BuildStatsString(detailedMap bool) string {
	writer := jwriter.NewWriter()
	m.printStatsJson(&writer, detailedMap)
	return string(writer.Bytes())
}

func (m *Manager[R]) printStatsJson(writer *jwriter.Writer, detailedMap bool) {
	obj := writer.Object()
	defer obj.End()

	obj.Name("TotalUncompactedBytes").Int(m.totalUncompactedMemory)
	obj.Name("TotalCompactedBytes").Int(m.totalCompactedMemory)

	poolNames := []struct {
		name string
		pool *suballoc.Suballocator[R]
	}{
		{"Result", m.resultPool},
		{"TransientResult", m.transientResultPool},
		{"Compaction", m.compactionPool},
		{"Scratch", m.scratchPool},
		{"UpdateScratch", m.updatePool},
		{"CompactionSizeWrite", m.compactionSizeWritePool},
		{"CompactionSizeReadback", m.compactionSizeReadbackPool},
	}
	for _, entry := range poolNames {
		poolObj := obj.Name(entry.name).Object()

		stats := entry.pool.Stats()
		poolObj.Name("BlockCount").Int(stats.BlockCount)
		poolObj.Name("AllocationCount").Int(stats.AllocationCount)
		poolObj.Name("BlockBytes").Int(stats.BlockBytes)
		poolObj.Name("UnusedBytes").Int(stats.UnusedBytes)
		poolObj.Name("AlignmentSavings").Int(stats.AlignmentSavings)
		poolObj.Name("Fragmentation").Float64(stats.Fragmentation)

		if detailedMap {
			entry.pool.PrintDetailedMap(poolObj.Name("DetailedMap"))
		}

		poolObj.End()
	}
}
