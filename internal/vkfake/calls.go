package vkfake

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

func (d *Driver) EnumerateInstanceExtensions() ([]string, error) {
	return append([]string(nil), d.Extensions...), nil
}

func (d *Driver) EnumerateInstanceLayers() ([]string, error) {
	return append([]string(nil), d.Layers...), nil
}

func (d *Driver) CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("Instance")
	return vk.Instance(newHandle()), vk.Success
}

func (d *Driver) DestroyInstance(instance vk.Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("Instance")
}

func (d *Driver) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result) {
	return []vk.PhysicalDevice{d.gpu}, vk.Success
}

func (d *Driver) GetPhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	var props vk.PhysicalDeviceProperties
	props.DeviceType = d.DeviceType
	props.ApiVersion = vk.MakeVersion(1, 1, 0)
	copy(props.DeviceName[:], d.DeviceName)
	props.Limits.NonCoherentAtomSize = d.NonCoherentAtom
	props.Limits.MaxPushConstantsSize = 128
	return props
}

func (d *Driver) GetPhysicalDeviceMemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	return d.MemoryProperties
}

func (d *Driver) GetPhysicalDeviceQueueFamilyProperties(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties {
	return append([]vk.QueueFamilyProperties(nil), d.QueueFamilies...)
}

func (d *Driver) EnumerateDeviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	return []string{"VK_KHR_swapchain"}, nil
}

func (d *Driver) GetPhysicalDeviceSurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) bool {
	return d.PresentFamilies[family]
}

func (d *Driver) GetPhysicalDeviceSurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return vk.SurfaceCapabilities{
		MinImageCount:           d.MinImageCount,
		MaxImageCount:           d.MaxImageCount,
		CurrentExtent:           d.surfaceExtent,
		MinImageExtent:          vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent:          vk.Extent2D{Width: 16384, Height: 16384},
		MaxImageArrayLayers:     1,
		SupportedTransforms:     vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit),
		CurrentTransform:        vk.SurfaceTransformIdentityBit,
		SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit),
		SupportedUsageFlags:     vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
	}, vk.Success
}

func (d *Driver) GetPhysicalDeviceSurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	return append([]vk.SurfaceFormat(nil), d.SurfaceFormats...), vk.Success
}

func (d *Driver) GetPhysicalDeviceSurfacePresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result) {
	return append([]vk.PresentMode(nil), d.PresentModes...), vk.Success
}

func (d *Driver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("Surface")
}

func (d *Driver) CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("Device")
	return vk.Device(newHandle()), vk.Success
}

func (d *Driver) DestroyDevice(device vk.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("Device")
}

func (d *Driver) GetDeviceQueue(device vk.Device, family, index uint32) vk.Queue {
	return vk.Queue(newHandle())
}

func (d *Driver) DeviceWaitIdle(device vk.Device) vk.Result {
	return vk.Success
}

func (d *Driver) QueueWaitIdle(queue vk.Queue) vk.Result {
	return vk.Success
}

func (d *Driver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitFailure != vk.Success {
		return d.submitFailure
	}
	for _, s := range submits {
		d.submits = append(d.submits, append([]vk.CommandBuffer(nil), s.PCommandBuffers...))
	}
	if fence != nil {
		d.fences[fence] = d.autoSignal
		d.cond.Broadcast()
	}
	return vk.Success
}

func (d *Driver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	swapchain := vk.Swapchain(newHandle())
	images := make([]vk.Image, info.MinImageCount)
	for i := range images {
		images[i] = vk.Image(newHandle())
		d.images[images[i]] = vk.ImageCreateInfo{
			ImageType:   vk.ImageType2d,
			Format:      info.ImageFormat,
			Extent:      vk.Extent3D{Width: info.ImageExtent.Width, Height: info.ImageExtent.Height, Depth: 1},
			MipLevels:   1,
			ArrayLayers: 1,
			Usage:       info.ImageUsage,
		}
	}
	d.swapchain[swapchain] = images
	d.imageIndex = 0
	d.created("Swapchain")
	return swapchain, vk.Success
}

func (d *Driver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, img := range d.swapchain[swapchain] {
		delete(d.images, img)
	}
	delete(d.swapchain, swapchain)
	d.destroyed("Swapchain")
}

func (d *Driver) GetSwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]vk.Image(nil), d.swapchain[swapchain]...), vk.Success
}

func (d *Driver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ret := vk.Success
	if len(d.acquireResults) > 0 {
		ret = d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
	}
	if ret != vk.Success && ret != vk.Suboptimal {
		return 0, ret
	}
	index := d.imageIndex
	if n := uint32(len(d.swapchain[swapchain])); n > 0 {
		d.imageIndex = (d.imageIndex + 1) % n
	}
	return index, ret
}

func (d *Driver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presents++
	if len(d.presentResults) > 0 {
		ret := d.presentResults[0]
		d.presentResults = d.presentResults[1:]
		return ret
	}
	return vk.Success
}

func (d *Driver) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.MemoryTypeIndex >= d.MemoryProperties.MemoryTypeCount {
		return nil, vk.ErrorOutOfDeviceMemory
	}
	memory := vk.DeviceMemory(newHandle())
	d.memory[memory] = &memoryObject{
		data:      make([]byte, info.AllocationSize),
		typeIndex: info.MemoryTypeIndex,
	}
	d.created("Memory")
	return memory, vk.Success
}

func (d *Driver) FreeMemory(device vk.Device, memory vk.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.memory, memory)
	d.destroyed("Memory")
}

func (d *Driver) MapMemory(device vk.Device, memory vk.DeviceMemory, offset, size vk.DeviceSize) (unsafe.Pointer, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.memory[memory]
	if !ok || m.mapped || len(m.data) == 0 || int(offset) >= len(m.data) {
		return nil, vk.ErrorMemoryMapFailed
	}
	flags := d.MemoryProperties.MemoryTypes[m.typeIndex].PropertyFlags
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) == 0 {
		return nil, vk.ErrorMemoryMapFailed
	}
	m.mapped = true
	return unsafe.Pointer(&m.data[offset]), vk.Success
}

func (d *Driver) UnmapMemory(device vk.Device, memory vk.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.memory[memory]; ok {
		m.mapped = false
	}
}

func (d *Driver) FlushMappedMemoryRanges(device vk.Device, ranges []vk.MappedMemoryRange) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushes++
	return vk.Success
}

func (d *Driver) InvalidateMappedMemoryRanges(device vk.Device, ranges []vk.MappedMemoryRange) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invalidates++
	return vk.Success
}

func alignUp(v, a vk.DeviceSize) vk.DeviceSize {
	return (v + a - 1) / a * a
}

func (d *Driver) CreateBuffer(device vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buffer := vk.Buffer(newHandle())
	d.buffers[buffer] = info.Size
	d.created("Buffer")
	return buffer, vk.Success
}

func (d *Driver) DestroyBuffer(device vk.Device, buffer vk.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, buffer)
	d.destroyed("Buffer")
}

func (d *Driver) GetBufferMemoryRequirements(device vk.Device, buffer vk.Buffer) vk.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	return vk.MemoryRequirements{
		Size:           alignUp(d.buffers[buffer], 16),
		Alignment:      16,
		MemoryTypeBits: 0x7,
	}
}

func (d *Driver) BindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result {
	return vk.Success
}

func (d *Driver) CreateImage(device vk.Device, info *vk.ImageCreateInfo) (vk.Image, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	image := vk.Image(newHandle())
	d.images[image] = *info
	d.created("Image")
	return image, vk.Success
}

func (d *Driver) DestroyImage(device vk.Device, image vk.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.images, image)
	d.destroyed("Image")
}

func (d *Driver) GetImageMemoryRequirements(device vk.Device, image vk.Image) vk.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	info := d.images[image]
	size := vk.DeviceSize(info.Extent.Width) * vk.DeviceSize(info.Extent.Height) * 4 * vk.DeviceSize(info.ArrayLayers)
	if info.MipLevels > 1 {
		size *= 2
	}
	return vk.MemoryRequirements{
		Size:           alignUp(size, 256),
		Alignment:      256,
		MemoryTypeBits: 0x7,
	}
}

func (d *Driver) BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result {
	return vk.Success
}

func (d *Driver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("ImageView")
	return vk.ImageView(newHandle()), vk.Success
}

func (d *Driver) DestroyImageView(device vk.Device, view vk.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("ImageView")
}

func (d *Driver) CreateSampler(device vk.Device, info *vk.SamplerCreateInfo) (vk.Sampler, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("Sampler")
	return vk.Sampler(newHandle()), vk.Success
}

func (d *Driver) DestroySampler(device vk.Device, sampler vk.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("Sampler")
}

func (d *Driver) CreateDescriptorSetLayout(device vk.Device, info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("DescriptorSetLayout")
	return vk.DescriptorSetLayout(newHandle()), vk.Success
}

func (d *Driver) DestroyDescriptorSetLayout(device vk.Device, layout vk.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("DescriptorSetLayout")
}

func (d *Driver) CreateDescriptorPool(device vk.Device, info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pool := vk.DescriptorPool(newHandle())
	d.pools[pool] = &descriptorPool{maxSets: info.MaxSets}
	d.created("DescriptorPool")
	return pool, vk.Success
}

func (d *Driver) DestroyDescriptorPool(device vk.Device, pool vk.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pools, pool)
	d.destroyed("DescriptorPool")
}

func (d *Driver) ResetDescriptorPool(device vk.Device, pool vk.DescriptorPool) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pools[pool]; ok {
		p.allocated = 0
		p.resets++
	}
	for set, owner := range d.setPool {
		if owner == pool {
			delete(d.setPool, set)
		}
	}
	return vk.Success
}

func (d *Driver) AllocateDescriptorSets(device vk.Device, info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[info.DescriptorPool]
	if !ok {
		return nil, vk.ErrorInitializationFailed
	}
	if d.allocFailure != vk.Success {
		return nil, d.allocFailure
	}
	if p.allocated+info.DescriptorSetCount > p.maxSets {
		return nil, ErrorOutOfPoolMemory
	}
	p.allocated += info.DescriptorSetCount
	sets := make([]vk.DescriptorSet, info.DescriptorSetCount)
	for i := range sets {
		sets[i] = vk.DescriptorSet(newHandle())
		d.setPool[sets[i]] = info.DescriptorPool
	}
	return sets, vk.Success
}

func (d *Driver) UpdateDescriptorSets(device vk.Device, writes []vk.WriteDescriptorSet) {}

func (d *Driver) CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("ShaderModule")
	return vk.ShaderModule(newHandle()), vk.Success
}

func (d *Driver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("ShaderModule")
}

func (d *Driver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("PipelineLayout")
	return vk.PipelineLayout(newHandle()), vk.Success
}

func (d *Driver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("PipelineLayout")
}

func (d *Driver) CreateGraphicsPipeline(device vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("Pipeline")
	return vk.Pipeline(newHandle()), vk.Success
}

func (d *Driver) CreateComputePipeline(device vk.Device, info *vk.ComputePipelineCreateInfo) (vk.Pipeline, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("Pipeline")
	return vk.Pipeline(newHandle()), vk.Success
}

func (d *Driver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("Pipeline")
}

func (d *Driver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("RenderPass")
	return vk.RenderPass(newHandle()), vk.Success
}

func (d *Driver) DestroyRenderPass(device vk.Device, pass vk.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("RenderPass")
}

func (d *Driver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("Framebuffer")
	return vk.Framebuffer(newHandle()), vk.Success
}

func (d *Driver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("Framebuffer")
}

func (d *Driver) CreateFence(device vk.Device, signaled bool) (vk.Fence, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fence := vk.Fence(newHandle())
	d.fences[fence] = signaled
	d.created("Fence")
	return fence, vk.Success
}

func (d *Driver) DestroyFence(device vk.Device, fence vk.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fences, fence)
	d.destroyed("Fence")
}

// WaitForFences blocks until every fence is signalled. The timeout is ignored.
func (d *Driver) WaitForFences(device vk.Device, fences []vk.Fence, timeout uint64) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	for !d.allSignaled(fences) {
		d.cond.Wait()
	}
	return vk.Success
}

func (d *Driver) allSignaled(fences []vk.Fence) bool {
	for _, f := range fences {
		if !d.fences[f] {
			return false
		}
	}
	return true
}

func (d *Driver) ResetFences(device vk.Device, fences []vk.Fence) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range fences {
		d.fences[f] = false
	}
	return vk.Success
}

func (d *Driver) CreateSemaphore(device vk.Device) (vk.Semaphore, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("Semaphore")
	return vk.Semaphore(newHandle()), vk.Success
}

func (d *Driver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("Semaphore")
}

func (d *Driver) CreateCommandPool(device vk.Device, family uint32) (vk.CommandPool, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created("CommandPool")
	return vk.CommandPool(newHandle()), vk.Success
}

func (d *Driver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed("CommandPool")
}

func (d *Driver) AllocateCommandBuffers(device vk.Device, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buffers := make([]vk.CommandBuffer, count)
	for i := range buffers {
		buffers[i] = vk.CommandBuffer(newHandle())
		d.created("CommandBuffer")
	}
	return buffers, vk.Success
}

func (d *Driver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range buffers {
		delete(d.commands, b)
		d.destroyed("CommandBuffer")
	}
}

// BeginCommandBuffer clears previously recorded commands.
func (d *Driver) BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[cmd] = nil
	return vk.Success
}

func (d *Driver) EndCommandBuffer(cmd vk.CommandBuffer) vk.Result {
	return vk.Success
}

func (d *Driver) ResetCommandBuffer(cmd vk.CommandBuffer) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[cmd] = nil
	return vk.Success
}

func (d *Driver) CmdPipelineBarrier(cmd vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, buffers []vk.BufferMemoryBarrier, images []vk.ImageMemoryBarrier) {
	d.record(cmd, Command{
		Op:            "PipelineBarrier",
		SrcStage:      srcStage,
		DstStage:      dstStage,
		ImageBarriers: append([]vk.ImageMemoryBarrier(nil), images...),
	})
}

func (d *Driver) CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	d.record(cmd, Command{
		Op:          "BeginRenderPass",
		RenderPass:  info.RenderPass,
		Framebuffer: info.Framebuffer,
		RenderArea:  info.RenderArea,
		ClearValues: int(info.ClearValueCount),
	})
}

func (d *Driver) CmdEndRenderPass(cmd vk.CommandBuffer) {
	d.record(cmd, Command{Op: "EndRenderPass"})
}

func (d *Driver) CmdSetViewport(cmd vk.CommandBuffer, viewports []vk.Viewport) {
	d.record(cmd, Command{Op: "SetViewport", Viewports: append([]vk.Viewport(nil), viewports...)})
}

func (d *Driver) CmdSetScissor(cmd vk.CommandBuffer, scissors []vk.Rect2D) {
	d.record(cmd, Command{Op: "SetScissor", Scissors: append([]vk.Rect2D(nil), scissors...)})
}

func (d *Driver) CmdBindPipeline(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	d.record(cmd, Command{Op: "BindPipeline", BindPoint: bindPoint, Pipeline: pipeline})
}

func (d *Driver) CmdBindDescriptorSets(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	d.record(cmd, Command{
		Op:        "BindDescriptorSets",
		BindPoint: bindPoint,
		Args:      [4]uint32{firstSet},
		Sets:      append([]vk.DescriptorSet(nil), sets...),
	})
}

func (d *Driver) CmdBindVertexBuffers(cmd vk.CommandBuffer, first uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	d.record(cmd, Command{Op: "BindVertexBuffers", Args: [4]uint32{first, uint32(len(buffers))}})
}

func (d *Driver) CmdBindIndexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	d.record(cmd, Command{Op: "BindIndexBuffer", Args: [4]uint32{uint32(offset), uint32(indexType)}})
}

func (d *Driver) CmdDraw(cmd vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.record(cmd, Command{Op: "Draw", Args: [4]uint32{vertexCount, instanceCount, firstVertex, firstInstance}})
}

func (d *Driver) CmdDrawIndexed(cmd vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.record(cmd, Command{Op: "DrawIndexed", Args: [4]uint32{indexCount, instanceCount, firstIndex, firstInstance}})
}

func (d *Driver) CmdDispatch(cmd vk.CommandBuffer, x, y, z uint32) {
	d.record(cmd, Command{Op: "Dispatch", Args: [4]uint32{x, y, z}})
}

func (d *Driver) CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	d.record(cmd, Command{Op: "CopyBuffer", BufferCopies: append([]vk.BufferCopy(nil), regions...)})
}

func (d *Driver) CmdCopyImage(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageCopy) {
	d.record(cmd, Command{Op: "CopyImage", Src: src, Dst: dst, SrcLayout: srcLayout, DstLayout: dstLayout})
}

func (d *Driver) CmdCopyBufferToImage(cmd vk.CommandBuffer, src vk.Buffer, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.BufferImageCopy) {
	d.record(cmd, Command{
		Op:          "CopyBufferToImage",
		Dst:         dst,
		DstLayout:   dstLayout,
		ImageCopies: append([]vk.BufferImageCopy(nil), regions...),
	})
}

func (d *Driver) CmdCopyImageToBuffer(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy) {
	d.record(cmd, Command{
		Op:          "CopyImageToBuffer",
		Src:         src,
		SrcLayout:   srcLayout,
		ImageCopies: append([]vk.BufferImageCopy(nil), regions...),
	})
}

func (d *Driver) CmdBlitImage(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter) {
	d.record(cmd, Command{
		Op:        "BlitImage",
		Src:       src,
		Dst:       dst,
		SrcLayout: srcLayout,
		DstLayout: dstLayout,
		Blits:     append([]vk.ImageBlit(nil), regions...),
	})
}

func (d *Driver) CmdPushConstants(cmd vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset, size uint32, values unsafe.Pointer) {
	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(values), size))
	d.record(cmd, Command{Op: "PushConstants", PushStages: stages, PushOffset: offset, PushData: data})
}
