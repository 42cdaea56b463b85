// Package vulkan adapts vulkan buffers and device memory to the backing
// resource interface the acceleration structure pools allocate from. The
// ray-tracing pipeline itself (prebuild queries, build and copy commands)
// stays with the embedding application; this package only covers resource
// creation and compacted-size readback.
package vulkan

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_buffer_device_address"
	"github.com/vkngwrapper/rtmem/accel"
)

// AddressQueryFunc returns the device address of a buffer created with
// khr_buffer_device_address.BufferUsageShaderDeviceAddress. The embedder
// supplies it from core 1.2 or the khr_buffer_device_address extension.
type AddressQueryFunc func(buffer core1_0.Buffer) uint64

// ResourceAllocator creates pool backing resources on one vulkan device.
type ResourceAllocator struct {
	device              core1_0.Device
	physicalDevice      core1_0.PhysicalDevice
	addressQuery        AddressQueryFunc
	allocationCallbacks *driver.AllocationCallbacks

	nextIdentity uint64
}

// NewResourceAllocator creates a ResourceAllocator for the given device.
// addressQuery may be nil when the embedder never reads device addresses,
// such as in replay or test scenarios.
func NewResourceAllocator(
	device core1_0.Device,
	physicalDevice core1_0.PhysicalDevice,
	addressQuery AddressQueryFunc,
	allocationCallbacks *driver.AllocationCallbacks,
) (*ResourceAllocator, error) {
	if device == nil {
		return nil, errors.New("a device must be provided")
	}
	if physicalDevice == nil {
		return nil, errors.New("a physical device must be provided")
	}

	return &ResourceAllocator{
		device:              device,
		physicalDevice:      physicalDevice,
		addressQuery:        addressQuery,
		allocationCallbacks: allocationCallbacks,
	}, nil
}

func purposeTraits(purpose accel.Purpose) (usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags, deviceAddress bool) {
	switch purpose {
	case accel.PurposeCompactionSizeReadback:
		return core1_0.BufferUsageTransferDst,
			core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent | core1_0.MemoryPropertyHostCached,
			false
	case accel.PurposeCompactionSizeWrite:
		return core1_0.BufferUsageStorageBuffer | core1_0.BufferUsageTransferSrc | khr_buffer_device_address.BufferUsageShaderDeviceAddress,
			core1_0.MemoryPropertyDeviceLocal,
			true
	default:
		return core1_0.BufferUsageStorageBuffer | khr_buffer_device_address.BufferUsageShaderDeviceAddress,
			core1_0.MemoryPropertyDeviceLocal,
			true
	}
}

// CreateResource allocates one buffer with its own memory binding, chosen to
// suit the pool purpose: device-local addressable memory for structures and
// scratch, host-readable memory for compacted-size readback.
func (a *ResourceAllocator) CreateResource(purpose accel.Purpose, size int) (*Resource, error) {
	usage, properties, wantsDeviceAddress := purposeTraits(purpose)

	buffer, _, err := a.device.CreateBuffer(a.allocationCallbacks, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create a %d-byte %s buffer", size, purpose)
	}

	memReqs := buffer.MemoryRequirements()
	memoryTypeIndex, err := a.findMemoryTypeIndex(memReqs.MemoryTypeBits, properties)
	if err != nil {
		buffer.Destroy(a.allocationCallbacks)
		return nil, err
	}

	allocInfo := core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryTypeIndex,
	}
	if wantsDeviceAddress {
		allocInfo.NextOptions = common.NextOptions{
			Next: core1_1.MemoryAllocateFlagsInfo{
				Flags: khr_buffer_device_address.MemoryAllocateDeviceAddress,
			},
		}
	}

	memory, _, err := a.device.AllocateMemory(a.allocationCallbacks, allocInfo)
	if err != nil {
		buffer.Destroy(a.allocationCallbacks)
		return nil, errors.Wrapf(err, "failed to allocate %d bytes of backing memory for a %s buffer", memReqs.Size, purpose)
	}

	_, err = buffer.BindBufferMemory(memory, 0)
	if err != nil {
		buffer.Destroy(a.allocationCallbacks)
		memory.Free(a.allocationCallbacks)
		return nil, errors.Wrap(err, "failed to bind a pool buffer to its memory")
	}

	var deviceAddress uint64
	if wantsDeviceAddress && a.addressQuery != nil {
		deviceAddress = a.addressQuery(buffer)
	}

	return &Resource{
		buffer:              buffer,
		memory:              memory,
		size:                size,
		alignment:           uint(memReqs.Alignment),
		identity:            atomic.AddUint64(&a.nextIdentity, 1),
		deviceAddress:       deviceAddress,
		allocationCallbacks: a.allocationCallbacks,
	}, nil
}

// ReadCompactedSize maps one device-written compacted-size value out of a
// readback resource. Only valid once the size copy has completed on the
// device.
func (a *ResourceAllocator) ReadCompactedSize(readback *Resource, offset int) (int, error) {
	ptr, _, err := readback.memory.Map(offset, accel.SizeOfCompactionDescriptor, 0)
	if err != nil {
		return 0, errors.Wrap(err, "failed to map compacted-size readback memory")
	}
	defer readback.memory.Unmap()

	data := unsafe.Slice((*byte)(ptr), accel.SizeOfCompactionDescriptor)
	return int(binary.LittleEndian.Uint64(data)), nil
}

func (a *ResourceAllocator) findMemoryTypeIndex(typeBits uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memoryProperties := a.physicalDevice.MemoryProperties()
	for typeIndex, memoryType := range memoryProperties.MemoryTypes {
		if typeBits&(1<<typeIndex) == 0 {
			continue
		}
		if memoryType.PropertyFlags&properties == properties {
			return typeIndex, nil
		}
	}
	return 0, errors.Newf("no device memory type matches type bits %x with properties %s", typeBits, properties)
}
