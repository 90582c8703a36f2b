package vkframe

import (
	vk "github.com/vulkan-go/vulkan"
)

// VirtualFrame is one slot of the frame pipeline: a command buffer, the
// fence guarding it and the semaphores chaining acquire, submit and present.
// A slot's command buffer is never re-recorded before its fence signals.
type VirtualFrame struct {
	index          int
	cmd            *CommandBuffer
	fence          vk.Fence
	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore
	descriptors    *DescriptorAllocator
	recording      bool
}

func (f *VirtualFrame) Index() int { return f.index }

// Recording reports whether the slot is between StartFrame and EndFrame.
func (f *VirtualFrame) Recording() bool { return f.recording }

func (f *VirtualFrame) Command() *CommandBuffer { return f.cmd }

// Descriptors returns the slot's transient allocator. Sets allocated from it
// are valid until the slot comes around again.
func (f *VirtualFrame) Descriptors() *DescriptorAllocator { return f.descriptors }

func (f *VirtualFrame) Fence() vk.Fence { return f.fence }

// VirtualFrameProvider owns the frame slots and cycles through them.
// It is not thread-safe; frames are recorded from the render goroutine only.
type VirtualFrameProvider struct {
	drv     Driver
	device  vk.Device
	pool    vk.CommandPool
	buffers []vk.CommandBuffer
	frames  []*VirtualFrame
	current int
}

// NewVirtualFrameProvider creates count slots with command buffers from pool.
// Fences start signaled so the first wait returns at once.
func NewVirtualFrameProvider(drv Driver, device vk.Device, pool vk.CommandPool, count int, setsPerPool uint32) (p *VirtualFrameProvider, err error) {
	assertf(count > 0, "vkframe: frame count must be positive, got %d", count)
	p = &VirtualFrameProvider{drv: drv, device: device, pool: pool}
	defer func() {
		if err != nil {
			p.Destroy()
			p = nil
		}
	}()
	buffers, ret := drv.AllocateCommandBuffers(device, pool, uint32(count))
	if err := newError(ret, "allocate command buffers"); err != nil {
		return p, err
	}
	p.buffers = buffers
	for i := 0; i < count; i++ {
		f := &VirtualFrame{
			index:       i,
			cmd:         NewCommandBuffer(drv, buffers[i]),
			descriptors: NewDescriptorAllocator(drv, device, setsPerPool),
		}
		p.frames = append(p.frames, f)
		if f.fence, ret = drv.CreateFence(device, true); isError(ret) {
			return p, newError(ret, "create frame fence")
		}
		if f.imageAvailable, ret = drv.CreateSemaphore(device); isError(ret) {
			return p, newError(ret, "create image available semaphore")
		}
		if f.renderFinished, ret = drv.CreateSemaphore(device); isError(ret) {
			return p, newError(ret, "create render finished semaphore")
		}
	}
	return p, nil
}

// Current returns the slot being (or about to be) recorded.
func (p *VirtualFrameProvider) Current() *VirtualFrame { return p.frames[p.current] }

// Advance moves to the next slot.
func (p *VirtualFrameProvider) Advance() {
	p.current = (p.current + 1) % len(p.frames)
}

// renewSync replaces the fence and image semaphore of a slot whose frame was
// abandoned after acquire: the fence comes back signaled and the semaphore
// unsignaled, so the next StartFrame on the slot neither blocks nor reuses a
// pending semaphore.
func (p *VirtualFrameProvider) renewSync(f *VirtualFrame) error {
	p.drv.DestroyFence(p.device, f.fence)
	p.drv.DestroySemaphore(p.device, f.imageAvailable)
	f.fence, f.imageAvailable = nil, nil
	var ret vk.Result
	if f.fence, ret = p.drv.CreateFence(p.device, true); isError(ret) {
		return newError(ret, "create frame fence")
	}
	if f.imageAvailable, ret = p.drv.CreateSemaphore(p.device); isError(ret) {
		return newError(ret, "create image available semaphore")
	}
	return nil
}

func (p *VirtualFrameProvider) Count() int { return len(p.frames) }

func (p *VirtualFrameProvider) Frame(i int) *VirtualFrame { return p.frames[i] }

// Destroy releases every slot and returns the command buffers to the pool.
// The device must be idle.
func (p *VirtualFrameProvider) Destroy() {
	for _, f := range p.frames {
		f.descriptors.CleanUp()
		if f.fence != nil {
			p.drv.DestroyFence(p.device, f.fence)
		}
		if f.imageAvailable != nil {
			p.drv.DestroySemaphore(p.device, f.imageAvailable)
		}
		if f.renderFinished != nil {
			p.drv.DestroySemaphore(p.device, f.renderFinished)
		}
	}
	if len(p.buffers) > 0 {
		p.drv.FreeCommandBuffers(p.device, p.pool, p.buffers)
	}
	p.buffers = nil
	p.frames = nil
}
