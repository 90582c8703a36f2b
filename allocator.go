package vkframe

import (
	"math"
	"math/bits"
	"unsafe"

	"github.com/andewx/vkframe/log"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// MemoryUsage describes how the host and device access an allocation.
type MemoryUsage int

const (
	// MemoryUsageDeviceLocal is only touched by the GPU.
	MemoryUsageDeviceLocal MemoryUsage = iota
	// MemoryUsageHostOnly is host memory, used for staging.
	MemoryUsageHostOnly
	// MemoryUsageHostToDevice is written by the host and read by the device.
	MemoryUsageHostToDevice
	// MemoryUsageDeviceToHost is written by the device and read back by the host.
	MemoryUsageDeviceToHost
	// MemoryUsageHostCopy is host memory the device should not prefer.
	MemoryUsageHostCopy
	// MemoryUsageLazilyAllocated is transient attachment memory.
	MemoryUsageLazilyAllocated
)

func (u MemoryUsage) String() string {
	switch u {
	case MemoryUsageDeviceLocal:
		return "DeviceLocal"
	case MemoryUsageHostOnly:
		return "HostOnly"
	case MemoryUsageHostToDevice:
		return "HostToDevice"
	case MemoryUsageDeviceToHost:
		return "DeviceToHost"
	case MemoryUsageHostCopy:
		return "HostCopy"
	case MemoryUsageLazilyAllocated:
		return "LazilyAllocated"
	}
	return "MemoryUsage(?)"
}

const (
	memDeviceLocal = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	memHostVisible = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	memCoherent    = vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	memCached      = vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit)
	memLazy        = vk.MemoryPropertyFlags(vk.MemoryPropertyLazilyAllocatedBit)
)

// memoryPreferences returns the required, preferred and not-preferred
// property flags for a usage.
func memoryPreferences(usage MemoryUsage) (required, preferred, notPreferred vk.MemoryPropertyFlags) {
	switch usage {
	case MemoryUsageDeviceLocal:
		preferred = memDeviceLocal
	case MemoryUsageHostOnly:
		required = memHostVisible | memCoherent
	case MemoryUsageHostToDevice:
		required = memHostVisible
		preferred = memDeviceLocal
	case MemoryUsageDeviceToHost:
		required = memHostVisible
		preferred = memCached
	case MemoryUsageHostCopy:
		required = memHostVisible
		notPreferred = memDeviceLocal
	case MemoryUsageLazilyAllocated:
		required = memLazy
	default:
		assertf(false, "vkframe: unknown memory usage %d", int(usage))
	}
	return required, preferred, notPreferred
}

// findMemoryType picks the cheapest memory type allowed by typeBits that has
// every required flag. Cost counts missing preferred flags plus present
// not-preferred flags.
func findMemoryType(props *vk.PhysicalDeviceMemoryProperties, typeBits uint32, usage MemoryUsage) (uint32, bool) {
	required, preferred, notPreferred := memoryPreferences(usage)
	best := -1
	minCost := math.MaxInt
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		flags := props.MemoryTypes[i].PropertyFlags
		if required&flags != required {
			continue
		}
		cost := bits.OnesCount32(uint32(preferred&^flags)) + bits.OnesCount32(uint32(notPreferred&flags))
		if cost == 0 {
			return i, true
		}
		if cost < minCost {
			minCost = cost
			best = int(i)
		}
	}
	if best < 0 {
		return 0, false
	}
	return uint32(best), true
}

// Allocation is one dedicated block of device memory bound to a single
// buffer or image.
type Allocation struct {
	memory    vk.DeviceMemory
	size      vk.DeviceSize
	typeIndex uint32
	flags     vk.MemoryPropertyFlags
	usage     MemoryUsage
	mapped    unsafe.Pointer
}

// Memory returns the backing device memory handle.
func (a *Allocation) Memory() vk.DeviceMemory { return a.memory }

// Size returns the allocation size in bytes.
func (a *Allocation) Size() vk.DeviceSize { return a.size }

// HostVisible reports whether the allocation can be mapped.
func (a *Allocation) HostVisible() bool { return a.flags&memHostVisible != 0 }

// Coherent reports whether host writes are visible without a flush.
func (a *Allocation) Coherent() bool { return a.flags&memCoherent != 0 }

// AllocatorStats summarizes live allocations.
type AllocatorStats struct {
	Allocations int
	Bytes       vk.DeviceSize
}

// Allocator hands out device memory for buffers and images. Each resource
// gets its own allocation.
type Allocator struct {
	drv      Driver
	device   vk.Device
	props    vk.PhysicalDeviceMemoryProperties
	atomSize vk.DeviceSize
	stats    AllocatorStats
	logger   log.Logger
}

// NewAllocator creates an allocator for device using the memory layout of gpu.
func NewAllocator(drv Driver, gpu vk.PhysicalDevice, device vk.Device) *Allocator {
	limits := drv.GetPhysicalDeviceProperties(gpu).Limits
	atom := limits.NonCoherentAtomSize
	if atom == 0 {
		atom = 1
	}
	return &Allocator{
		drv:      drv,
		device:   device,
		props:    drv.GetPhysicalDeviceMemoryProperties(gpu),
		atomSize: atom,
		logger:   log.New("vkframe"),
	}
}

func (a *Allocator) allocate(reqs vk.MemoryRequirements, usage MemoryUsage) (*Allocation, error) {
	typeIndex, ok := findMemoryType(&a.props, reqs.MemoryTypeBits, usage)
	if !ok {
		return nil, errors.Newf("vkframe: no memory type for usage %s (type bits %#x)", usage, reqs.MemoryTypeBits)
	}
	memory, ret := a.drv.AllocateMemory(a.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIndex,
	})
	if err := newError(ret, "allocate memory"); err != nil {
		return nil, err
	}
	a.stats.Allocations++
	a.stats.Bytes += reqs.Size
	return &Allocation{
		memory:    memory,
		size:      reqs.Size,
		typeIndex: typeIndex,
		flags:     a.props.MemoryTypes[typeIndex].PropertyFlags,
		usage:     usage,
	}, nil
}

func (a *Allocator) free(alloc *Allocation) {
	if alloc.mapped != nil {
		a.drv.UnmapMemory(a.device, alloc.memory)
		alloc.mapped = nil
	}
	a.drv.FreeMemory(a.device, alloc.memory)
	a.stats.Allocations--
	a.stats.Bytes -= alloc.size
}

// CreateBuffer creates a buffer and binds fresh memory to it.
func (a *Allocator) CreateBuffer(info *vk.BufferCreateInfo, usage MemoryUsage) (vk.Buffer, *Allocation, error) {
	buffer, ret := a.drv.CreateBuffer(a.device, info)
	if err := newError(ret, "create buffer"); err != nil {
		return nil, nil, err
	}
	alloc, err := a.allocate(a.drv.GetBufferMemoryRequirements(a.device, buffer), usage)
	if err != nil {
		a.drv.DestroyBuffer(a.device, buffer)
		return nil, nil, errors.Wrapf(err, "buffer of %d bytes", info.Size)
	}
	if err := newError(a.drv.BindBufferMemory(a.device, buffer, alloc.memory, 0), "bind buffer memory"); err != nil {
		a.free(alloc)
		a.drv.DestroyBuffer(a.device, buffer)
		return nil, nil, err
	}
	return buffer, alloc, nil
}

// CreateImage creates an image and binds fresh memory to it.
func (a *Allocator) CreateImage(info *vk.ImageCreateInfo, usage MemoryUsage) (vk.Image, *Allocation, error) {
	image, ret := a.drv.CreateImage(a.device, info)
	if err := newError(ret, "create image"); err != nil {
		return nil, nil, err
	}
	alloc, err := a.allocate(a.drv.GetImageMemoryRequirements(a.device, image), usage)
	if err != nil {
		a.drv.DestroyImage(a.device, image)
		return nil, nil, errors.Wrapf(err, "image %dx%d", info.Extent.Width, info.Extent.Height)
	}
	if err := newError(a.drv.BindImageMemory(a.device, image, alloc.memory, 0), "bind image memory"); err != nil {
		a.free(alloc)
		a.drv.DestroyImage(a.device, image)
		return nil, nil, err
	}
	return image, alloc, nil
}

// DestroyBuffer releases a buffer and its memory.
func (a *Allocator) DestroyBuffer(buffer vk.Buffer, alloc *Allocation) {
	a.drv.DestroyBuffer(a.device, buffer)
	a.free(alloc)
}

// DestroyImage releases an image and its memory.
func (a *Allocator) DestroyImage(image vk.Image, alloc *Allocation) {
	a.drv.DestroyImage(a.device, image)
	a.free(alloc)
}

// Map returns a host pointer to the start of the allocation. Mapping an
// already mapped allocation returns the same pointer.
func (a *Allocator) Map(alloc *Allocation) (unsafe.Pointer, error) {
	if alloc.mapped != nil {
		return alloc.mapped, nil
	}
	if !alloc.HostVisible() {
		return nil, errors.Newf("vkframe: cannot map %s memory", alloc.usage)
	}
	ptr, ret := a.drv.MapMemory(a.device, alloc.memory, 0, vk.DeviceSize(vk.WholeSize))
	if err := newError(ret, "map memory"); err != nil {
		return nil, err
	}
	alloc.mapped = ptr
	return ptr, nil
}

// Unmap releases the host mapping.
func (a *Allocator) Unmap(alloc *Allocation) {
	if alloc.mapped == nil {
		return
	}
	a.drv.UnmapMemory(a.device, alloc.memory)
	alloc.mapped = nil
}

// alignedRange widens [offset, offset+size) to the non-coherent atom size,
// clamped to the allocation.
func (a *Allocator) alignedRange(alloc *Allocation, offset, size vk.DeviceSize) vk.MappedMemoryRange {
	start := offset / a.atomSize * a.atomSize
	end := (offset + size + a.atomSize - 1) / a.atomSize * a.atomSize
	if end > alloc.size {
		end = alloc.size
	}
	return vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: alloc.memory,
		Offset: start,
		Size:   end - start,
	}
}

// Flush makes host writes visible to the device. Coherent memory needs no flush.
func (a *Allocator) Flush(alloc *Allocation, offset, size vk.DeviceSize) error {
	if alloc.Coherent() {
		return nil
	}
	r := a.alignedRange(alloc, offset, size)
	return newError(a.drv.FlushMappedMemoryRanges(a.device, []vk.MappedMemoryRange{r}), "flush memory")
}

// Invalidate makes device writes visible to the host.
func (a *Allocator) Invalidate(alloc *Allocation, offset, size vk.DeviceSize) error {
	if alloc.Coherent() {
		return nil
	}
	r := a.alignedRange(alloc, offset, size)
	return newError(a.drv.InvalidateMappedMemoryRanges(a.device, []vk.MappedMemoryRange{r}), "invalidate memory")
}

// Stats returns live allocation counters.
func (a *Allocator) Stats() AllocatorStats {
	return a.stats
}

// Destroy reports leaked allocations. Device memory itself is reclaimed
// when the device is destroyed.
func (a *Allocator) Destroy() {
	if a.stats.Allocations > 0 {
		a.logger.Warningf("allocator destroyed with %d live allocations (%d bytes)", a.stats.Allocations, a.stats.Bytes)
	}
}
