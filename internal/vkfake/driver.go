// Package vkfake is an in-memory Vulkan device used by tests. Handles are
// opaque unique pointers, device memory is Go memory and every recorded
// command is kept per command buffer for inspection.
package vkfake

import (
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Memory type indices exposed by the fake device.
const (
	MemoryTypeDeviceLocal = iota
	MemoryTypeHostCoherent
	MemoryTypeHostCached
)

// ErrorOutOfPoolMemory is returned when a descriptor pool runs out of sets.
const ErrorOutOfPoolMemory = vk.Result(-1000069000)

// Command is one recorded vkCmd* call. Only the fields relevant to Op are set.
type Command struct {
	Op            string
	Viewports     []vk.Viewport
	Scissors      []vk.Rect2D
	RenderArea    vk.Rect2D
	RenderPass    vk.RenderPass
	Framebuffer   vk.Framebuffer
	ClearValues   int
	Args          [4]uint32
	SrcStage      vk.PipelineStageFlags
	DstStage      vk.PipelineStageFlags
	ImageBarriers []vk.ImageMemoryBarrier
	Src           vk.Image
	Dst           vk.Image
	SrcLayout     vk.ImageLayout
	DstLayout     vk.ImageLayout
	Blits         []vk.ImageBlit
	Pipeline      vk.Pipeline
	BindPoint     vk.PipelineBindPoint
	Sets          []vk.DescriptorSet
	PushStages    vk.ShaderStageFlags
	PushOffset    uint32
	PushData      []byte
	BufferCopies  []vk.BufferCopy
	ImageCopies   []vk.BufferImageCopy
}

type memoryObject struct {
	data      []byte
	typeIndex uint32
	mapped    bool
}

type descriptorPool struct {
	maxSets   uint32
	allocated uint32
	resets    int
}

// Driver implements the vkframe driver interface in memory. It is safe for
// concurrent use so tests can signal fences from another goroutine.
type Driver struct {
	mu   sync.Mutex
	cond *sync.Cond

	// Device description returned by queries. Tests may tweak these before
	// the backend is created.
	DeviceName       string
	DeviceType       vk.PhysicalDeviceType
	MemoryProperties vk.PhysicalDeviceMemoryProperties
	QueueFamilies    []vk.QueueFamilyProperties
	PresentFamilies  map[uint32]bool
	SurfaceFormats   []vk.SurfaceFormat
	PresentModes     []vk.PresentMode
	MinImageCount    uint32
	MaxImageCount    uint32
	Extensions       []string
	Layers           []string
	NonCoherentAtom  vk.DeviceSize

	gpu        vk.PhysicalDevice
	autoSignal bool

	memory    map[vk.DeviceMemory]*memoryObject
	buffers   map[vk.Buffer]vk.DeviceSize
	images    map[vk.Image]vk.ImageCreateInfo
	fences    map[vk.Fence]bool
	pools     map[vk.DescriptorPool]*descriptorPool
	setPool   map[vk.DescriptorSet]vk.DescriptorPool
	commands  map[vk.CommandBuffer][]Command
	swapchain map[vk.Swapchain][]vk.Image
	live      map[string]int

	surfaceExtent vk.Extent2D
	imageIndex    uint32

	acquireResults []vk.Result
	presentResults []vk.Result
	submits        [][]vk.CommandBuffer
	presents       int
	flushes        int
	allocFailure   vk.Result
	submitFailure  vk.Result
	invalidates    int
}

// New returns a fake device with one graphics+compute+present queue family,
// three memory types and auto-signalling fences.
func New() *Driver {
	d := &Driver{
		DeviceName:      "vkfake",
		DeviceType:      vk.PhysicalDeviceTypeDiscreteGpu,
		PresentFamilies: map[uint32]bool{0: true},
		QueueFamilies: []vk.QueueFamilyProperties{{
			QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit),
			QueueCount: 1,
		}},
		SurfaceFormats: []vk.SurfaceFormat{{
			Format:     vk.FormatB8g8r8a8Unorm,
			ColorSpace: vk.ColorSpaceSrgbNonlinear,
		}},
		PresentModes:    []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		MinImageCount:   2,
		MaxImageCount:   3,
		NonCoherentAtom: 64,
		Extensions:      []string{"VK_KHR_surface"},
		autoSignal:      true,
		memory:          make(map[vk.DeviceMemory]*memoryObject),
		buffers:         make(map[vk.Buffer]vk.DeviceSize),
		images:          make(map[vk.Image]vk.ImageCreateInfo),
		fences:          make(map[vk.Fence]bool),
		pools:           make(map[vk.DescriptorPool]*descriptorPool),
		setPool:         make(map[vk.DescriptorSet]vk.DescriptorPool),
		commands:        make(map[vk.CommandBuffer][]Command),
		swapchain:       make(map[vk.Swapchain][]vk.Image),
		live:            make(map[string]int),
	}
	d.cond = sync.NewCond(&d.mu)
	d.gpu = vk.PhysicalDevice(newHandle())

	props := &d.MemoryProperties
	props.MemoryTypeCount = 3
	props.MemoryTypes[MemoryTypeDeviceLocal] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		HeapIndex:     0,
	}
	props.MemoryTypes[MemoryTypeHostCoherent] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit),
		HeapIndex:     1,
	}
	props.MemoryTypes[MemoryTypeHostCached] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCachedBit),
		HeapIndex:     1,
	}
	props.MemoryHeapCount = 2
	props.MemoryHeaps[0] = vk.MemoryHeap{Size: 1 << 30, Flags: vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit)}
	props.MemoryHeaps[1] = vk.MemoryHeap{Size: 1 << 30}
	return d
}

var handleMu sync.Mutex
var handleSeq uint64

// newHandle returns a unique non-nil pointer usable as any Vulkan handle.
func newHandle() unsafe.Pointer {
	handleMu.Lock()
	defer handleMu.Unlock()
	handleSeq++
	p := new(uint64)
	*p = handleSeq
	return unsafe.Pointer(p)
}

func (d *Driver) created(kind string) {
	d.live[kind]++
}

func (d *Driver) destroyed(kind string) {
	d.live[kind]--
}

// Live reports how many objects of a kind ("Buffer", "Image", "Fence", ...)
// are currently alive.
func (d *Driver) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[kind]
}

// SetAutoSignal controls whether QueueSubmit signals its fence immediately.
// With auto signalling off, fences stay pending until SignalFence.
func (d *Driver) SetAutoSignal(on bool) {
	d.mu.Lock()
	d.autoSignal = on
	d.mu.Unlock()
}

// SignalFence marks a fence as signalled and wakes any waiters.
func (d *Driver) SignalFence(fence vk.Fence) {
	d.mu.Lock()
	d.fences[fence] = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// SignalAll signals every pending fence.
func (d *Driver) SignalAll() {
	d.mu.Lock()
	for f := range d.fences {
		d.fences[f] = true
	}
	d.cond.Broadcast()
	d.mu.Unlock()
}

// FenceSignaled reports the current fence state.
func (d *Driver) FenceSignaled(fence vk.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fences[fence]
}

// QueueAcquireResult makes the next AcquireNextImage calls return ret.
func (d *Driver) QueueAcquireResult(ret ...vk.Result) {
	d.mu.Lock()
	d.acquireResults = append(d.acquireResults, ret...)
	d.mu.Unlock()
}

// QueuePresentResult makes the next QueuePresent calls return ret.
func (d *Driver) QueuePresentResult(ret ...vk.Result) {
	d.mu.Lock()
	d.presentResults = append(d.presentResults, ret...)
	d.mu.Unlock()
}

// SetSurfaceExtent sets the extent reported by surface capabilities.
func (d *Driver) SetSurfaceExtent(width, height uint32) {
	d.mu.Lock()
	d.surfaceExtent = vk.Extent2D{Width: width, Height: height}
	d.mu.Unlock()
}

// Commands returns the commands recorded into cmd since its last begin.
func (d *Driver) Commands(cmd vk.CommandBuffer) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Command, len(d.commands[cmd]))
	copy(out, d.commands[cmd])
	return out
}

// CountOps counts recorded commands of the given op in cmd.
func (d *Driver) CountOps(cmd vk.CommandBuffer, op string) int {
	n := 0
	for _, c := range d.Commands(cmd) {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Submits returns the command buffers of every QueueSubmit so far.
func (d *Driver) Submits() [][]vk.CommandBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]vk.CommandBuffer(nil), d.submits...)
}

// Presents returns the number of QueuePresent calls.
func (d *Driver) Presents() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presents
}

// Flushes returns the number of FlushMappedMemoryRanges calls.
func (d *Driver) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

// FailAllocations makes every descriptor set allocation return ret until
// called again with vk.Success.
func (d *Driver) FailAllocations(ret vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allocFailure = ret
}

// FailSubmits makes every queue submission return ret, leaving its fence
// untouched, until called again with vk.Success.
func (d *Driver) FailSubmits(ret vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitFailure = ret
}

// MemoryBytes exposes the backing store of an allocation.
func (d *Driver) MemoryBytes(memory vk.DeviceMemory) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.memory[memory]; ok {
		return m.data
	}
	return nil
}

// MemoryTypeOf returns the memory type index an allocation was made from.
func (d *Driver) MemoryTypeOf(memory vk.DeviceMemory) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.memory[memory]
	if !ok {
		return 0, false
	}
	return m.typeIndex, true
}

// PoolOf returns the pool a descriptor set was allocated from.
func (d *Driver) PoolOf(set vk.DescriptorSet) (vk.DescriptorPool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.setPool[set]
	return p, ok
}

// PoolResets returns how many times a pool has been reset.
func (d *Driver) PoolResets(pool vk.DescriptorPool) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pools[pool]; ok {
		return p.resets
	}
	return 0
}

// ImageInfo returns the create info of a live image.
func (d *Driver) ImageInfo(image vk.Image) (vk.ImageCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.images[image]
	return info, ok
}

func (d *Driver) record(cmd vk.CommandBuffer, c Command) {
	d.mu.Lock()
	d.commands[cmd] = append(d.commands[cmd], c)
	d.mu.Unlock()
}
