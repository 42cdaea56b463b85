package vulkan

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

// Resource is one buffer bound to its own device memory allocation. It backs
// a single suballocation pool block.
type Resource struct {
	buffer        core1_0.Buffer
	memory        core1_0.DeviceMemory
	size          int
	alignment     uint
	identity      uint64
	deviceAddress uint64

	allocationCallbacks *driver.AllocationCallbacks
}

// Buffer returns the underlying vulkan buffer
func (r *Resource) Buffer() core1_0.Buffer { return r.buffer }

// Memory returns the device memory the buffer is bound to
func (r *Resource) Memory() core1_0.DeviceMemory { return r.memory }

// Size returns the buffer size in bytes
func (r *Resource) Size() int { return r.size }

func (r *Resource) Free() {
	r.buffer.Destroy(r.allocationCallbacks)
	r.memory.Free(r.allocationCallbacks)
}

func (r *Resource) Alignment() uint { return r.alignment }

func (r *Resource) Identity() uint64 { return r.identity }

// DeviceAddress returns the buffer's device address, or 0 for host readback
// resources that are never addressed by the device.
func (r *Resource) DeviceAddress() uint64 { return r.deviceAddress }
