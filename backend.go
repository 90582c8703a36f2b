package vkframe

import (
	"fmt"

	"github.com/andewx/vkframe/log"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// BackendState is the lifecycle stage of a Backend.
type BackendState int

const (
	StateUninitialized BackendState = iota
	StateInitialized
	StateFrameActive
	StateShuttingDown
	StateDestroyed
)

func (s BackendState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateFrameActive:
		return "frame active"
	case StateShuttingDown:
		return "shutting down"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("BackendState(%d)", int(s))
}

// Backend is the device context of one window: instance, device, queues,
// swapchain, allocators and the virtual frames. Every resource created from
// it must be destroyed before it.
type Backend struct {
	drv    Driver
	win    Window
	cfg    Config
	logger log.Logger
	state  BackendState

	instance vk.Instance
	layers   []string
	gpu      PhysicalDeviceInfo
	surface  vk.Surface
	families QueueFamilyIndices
	support  surfaceSupport
	format   vk.SurfaceFormat
	mode     vk.PresentMode
	device   vk.Device
	queues   Queues
	pool     vk.CommandPool

	allocator    *Allocator
	layouts      *DescriptorLayoutCache
	descriptors  *DescriptorAllocator
	framebuffers *FramebufferCache
	frames       *VirtualFrameProvider
	swapchain    *Swapchain
	imageIndex   uint32
}

// NewBackend brings up Vulkan for win. On failure everything created so far
// is released.
func NewBackend(drv Driver, win Window, cfg Config) (b *Backend, err error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	b = &Backend{
		drv:    drv,
		win:    win,
		cfg:    cfg,
		logger: log.New("vkframe"),
	}
	defer func() {
		if err != nil {
			b.Destroy()
			b = nil
		}
	}()

	if b.instance, b.layers, err = createInstance(drv, cfg, win.RequiredInstanceExtensions(), b.logger); err != nil {
		return b, err
	}
	devices, err := EnumeratePhysicalDevices(drv, b.instance)
	if err != nil {
		return b, err
	}
	if b.gpu, err = pickPhysicalDevice(devices, cfg.DeviceIndex); err != nil {
		return b, err
	}
	b.logger.Infof("using %s device %q (Vulkan %s)", b.gpu.TypeName(), b.gpu.Name, b.gpu.Version())

	if b.surface, err = win.CreateSurface(b.instance); err != nil {
		return b, errors.Wrap(err, "create surface")
	}
	if b.families, err = findQueueFamilies(drv, b.gpu.Handle, b.surface); err != nil {
		return b, err
	}
	if b.support, err = querySurfaceSupport(drv, b.gpu.Handle, b.surface); err != nil {
		return b, err
	}
	b.format = chooseSurfaceFormat(b.support.formats)
	b.mode = choosePresentMode(b.support.modes, cfg.PresentMode)
	if b.mode != cfg.PresentMode {
		b.logger.Warningf("present mode %d not supported, falling back to FIFO", cfg.PresentMode)
	}

	if b.device, err = createLogicalDevice(drv, b.gpu, b.families, b.layers); err != nil {
		return b, err
	}
	b.allocator = NewAllocator(drv, b.gpu.Handle, b.device)
	b.queues = getQueues(drv, b.device, b.families)

	pool, ret := drv.CreateCommandPool(b.device, b.families.Graphics)
	if err := newError(ret, "create command pool"); err != nil {
		return b, err
	}
	b.pool = pool

	b.layouts = NewDescriptorLayoutCache(drv, b.device)
	b.descriptors = NewDescriptorAllocator(drv, b.device, cfg.SetsPerPool)
	b.framebuffers = NewFramebufferCache(drv, b.device)

	if b.frames, err = NewVirtualFrameProvider(drv, b.device, b.pool, cfg.FramesInFlight, cfg.SetsPerPool); err != nil {
		return b, err
	}
	if err := b.createSwapchain(); err != nil {
		return b, err
	}
	b.state = StateInitialized
	b.logger.Infof("backend ready: %d frames in flight, %d swapchain images, %dx%d",
		b.frames.Count(), b.swapchain.ImageCount(), b.swapchain.extent.Width, b.swapchain.extent.Height)
	return b, nil
}

func (b *Backend) createSwapchain() error {
	support, err := querySurfaceSupport(b.drv, b.gpu.Handle, b.surface)
	if err != nil {
		return err
	}
	b.support = support
	w, h := b.win.FramebufferSize()
	sc, err := newSwapchain(b.drv, b.device, swapchainParams{
		surface:     b.surface,
		support:     support,
		format:      b.format,
		presentMode: b.mode,
		imageCount:  b.cfg.SwapchainImages,
		width:       w,
		height:      h,
	}, b.swapchain)
	if err != nil {
		return err
	}
	if b.swapchain != nil {
		b.swapchain.Destroy()
	}
	b.swapchain = sc
	return nil
}

func (b *Backend) checkState(want BackendState, op string) error {
	if b.state != want {
		return errors.Wrapf(ErrInvalidState, "%s while %s", op, b.state)
	}
	return nil
}

// StartFrame waits for the current slot's previous submission, acquires a
// swapchain image and begins recording. ErrSwapchainOutOfDate means the
// caller should Resize and try again; the slot is left untouched.
func (b *Backend) StartFrame() (*VirtualFrame, error) {
	if err := b.checkState(StateInitialized, "start frame"); err != nil {
		return nil, err
	}
	f := b.frames.Current()
	fences := []vk.Fence{f.fence}
	if err := newError(b.drv.WaitForFences(b.device, fences, vk.MaxUint64), "wait for frame fence"); err != nil {
		return nil, err
	}
	index, ret := b.drv.AcquireNextImage(b.device, b.swapchain.handle, vk.MaxUint64, f.imageAvailable, nil)
	switch ret {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		return nil, errors.Wrap(ErrSwapchainOutOfDate, "acquire next image")
	default:
		return nil, newError(ret, "acquire next image")
	}
	if err := f.descriptors.ResetPools(); err != nil {
		return nil, b.abandon(f, err)
	}
	b.imageIndex = index
	b.swapchain.Image(index).SetUsage(UsageUnknown)
	if err := f.cmd.Begin(); err != nil {
		return nil, b.abandon(f, err)
	}
	f.recording = true
	b.state = StateFrameActive
	return f, nil
}

// EndFrame submits the current slot and presents its swapchain image. The
// frame index advances even when presentation reports an out of date
// swapchain, since the submission went through.
func (b *Backend) EndFrame() error {
	if err := b.checkState(StateFrameActive, "end frame"); err != nil {
		return err
	}
	f := b.frames.Current()
	f.recording = false
	b.state = StateInitialized

	if err := b.submit(f); err != nil {
		return b.abandon(f, err)
	}
	b.frames.Advance()

	ret := b.drv.QueuePresent(b.queues.Present, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{f.renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{b.swapchain.handle},
		PImageIndices:      []uint32{b.imageIndex},
	})
	switch ret {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return errors.Wrap(ErrSwapchainOutOfDate, "present")
	}
	return newError(ret, "present")
}

// submit ends recording and queues the slot's command buffer. The fence is
// reset right before the submission that signals it again.
func (b *Backend) submit(f *VirtualFrame) error {
	f.cmd.transitionToPresent(b.swapchain.Image(b.imageIndex))
	if err := f.cmd.End(); err != nil {
		return err
	}
	if err := newError(b.drv.ResetFences(b.device, []vk.Fence{f.fence}), "reset frame fence"); err != nil {
		return err
	}
	ret := b.drv.QueueSubmit(b.queues.Graphics, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{f.imageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{f.cmd.handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{f.renderFinished},
	}}, f.fence)
	return newError(ret, "submit frame")
}

// abandon renews the sync objects of a slot whose frame failed between
// acquire and submit, so the next StartFrame on it does not block forever.
func (b *Backend) abandon(f *VirtualFrame, err error) error {
	b.logger.Warningf("frame %d abandoned: %v", f.index, err)
	if rerr := b.frames.renewSync(f); rerr != nil {
		return errors.CombineErrors(err, rerr)
	}
	return err
}

// Resize recreates the swapchain at the window's current size and drops
// framebuffers referencing the old images.
func (b *Backend) Resize() error {
	if err := b.checkState(StateInitialized, "resize"); err != nil {
		return err
	}
	if err := newError(b.drv.DeviceWaitIdle(b.device), "wait idle"); err != nil {
		return err
	}
	b.framebuffers.Clear()
	if err := b.createSwapchain(); err != nil {
		return err
	}
	b.logger.Infof("swapchain recreated at %dx%d", b.swapchain.extent.Width, b.swapchain.extent.Height)
	return nil
}

// WaitIdle blocks until the device has finished all submitted work.
func (b *Backend) WaitIdle() error {
	return newError(b.drv.DeviceWaitIdle(b.device), "wait idle")
}

// Destroy tears everything down in reverse creation order. It is safe on a
// partially initialized backend and a no-op once destroyed.
func (b *Backend) Destroy() {
	if b.state == StateDestroyed {
		return
	}
	b.state = StateShuttingDown
	if b.device != nil {
		b.drv.DeviceWaitIdle(b.device)
	}
	if b.frames != nil {
		b.frames.Destroy()
	}
	if b.descriptors != nil {
		b.descriptors.CleanUp()
	}
	if b.layouts != nil {
		b.layouts.CleanUp()
	}
	if b.framebuffers != nil {
		b.framebuffers.Clear()
	}
	if b.swapchain != nil {
		b.swapchain.Destroy()
	}
	if b.pool != nil {
		b.drv.DestroyCommandPool(b.device, b.pool)
	}
	if b.allocator != nil {
		b.allocator.Destroy()
	}
	if b.device != nil {
		b.drv.DestroyDevice(b.device)
	}
	if b.surface != nil {
		b.drv.DestroySurface(b.instance, b.surface)
	}
	if b.instance != nil {
		b.drv.DestroyInstance(b.instance)
	}
	*b = Backend{drv: b.drv, logger: b.logger, state: StateDestroyed}
}

// CreateBuffer creates a buffer of size bytes.
func (b *Backend) CreateBuffer(size uint64, usage vk.BufferUsageFlags, memUsage MemoryUsage) (*Buffer, error) {
	return NewBuffer(b.allocator, size, usage, memUsage)
}

// CreateImage creates an image and its views.
// CreateImage creates an image whose cached framebuffers are dropped when its
// views go away.
func (b *Backend) CreateImage(desc ImageDesc) (*Image, error) {
	img, err := NewImage(b.allocator, desc)
	if err != nil {
		return nil, err
	}
	img.framebuffers = b.framebuffers
	return img, nil
}

// CreatePerFrameBuffer creates one mapped buffer per frame slot.
func (b *Backend) CreatePerFrameBuffer(size uint64, usage vk.BufferUsageFlags) (*PerFrameBuffer, error) {
	return NewPerFrameBuffer(b.allocator, b.frames.Count(), size, usage)
}

// CreateRenderPass creates a single subpass render pass.
func (b *Backend) CreateRenderPass(attachments []AttachmentDesc) (*RenderPass, error) {
	return NewRenderPass(b.drv, b.device, attachments)
}

func (b *Backend) CreateGraphicsPipeline(desc GraphicsPipelineDesc) (*Pipeline, error) {
	return NewGraphicsPipeline(b.drv, b.device, desc)
}

func (b *Backend) CreateComputePipeline(desc ComputePipelineDesc) (*Pipeline, error) {
	return NewComputePipeline(b.drv, b.device, desc)
}

// CreateSampler creates a linear, repeating sampler covering every mip level.
func (b *Backend) CreateSampler(filter vk.Filter) (vk.Sampler, error) {
	sampler, ret := b.drv.CreateSampler(b.device, &vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapMode:   vk.SamplerMipmapModeLinear,
		AddressModeU: vk.SamplerAddressModeRepeat,
		AddressModeV: vk.SamplerAddressModeRepeat,
		AddressModeW: vk.SamplerAddressModeRepeat,
		MaxLod:       vk.LodClampNone,
		BorderColor:  vk.BorderColorFloatOpaqueBlack,
	})
	if err := newError(ret, "create sampler"); err != nil {
		return nil, err
	}
	return sampler, nil
}

func (b *Backend) DestroySampler(sampler vk.Sampler) {
	b.drv.DestroySampler(b.device, sampler)
}

func (b *Backend) State() BackendState                 { return b.state }
func (b *Backend) Driver() Driver                      { return b.drv }
func (b *Backend) Config() Config                      { return b.cfg }
func (b *Backend) Instance() vk.Instance               { return b.instance }
func (b *Backend) PhysicalDevice() PhysicalDeviceInfo  { return b.gpu }
func (b *Backend) Device() vk.Device                   { return b.device }
func (b *Backend) Queues() Queues                      { return b.queues }
func (b *Backend) QueueFamilies() QueueFamilyIndices   { return b.families }
func (b *Backend) Allocator() *Allocator               { return b.allocator }
func (b *Backend) LayoutCache() *DescriptorLayoutCache { return b.layouts }
func (b *Backend) Descriptors() *DescriptorAllocator   { return b.descriptors }
func (b *Backend) Framebuffers() *FramebufferCache     { return b.framebuffers }
func (b *Backend) Swapchain() *Swapchain               { return b.swapchain }
func (b *Backend) SurfaceFormat() vk.Format            { return b.format.Format }
func (b *Backend) PresentMode() vk.PresentMode         { return b.mode }
func (b *Backend) FramesInFlight() int                 { return b.frames.Count() }
func (b *Backend) CurrentFrame() *VirtualFrame         { return b.frames.Current() }
func (b *Backend) Extent() vk.Extent2D                 { return b.swapchain.extent }

// SwapchainImage returns the image acquired by the last StartFrame.
func (b *Backend) SwapchainImage() *Image {
	return b.swapchain.Image(b.imageIndex)
}
