package vkframe

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// VulkanDriver forwards every call to the vulkan-go bindings. vk.Init (or
// vk.SetGetInstanceProcAddr followed by vk.Init) must run before use.
type VulkanDriver struct{}

// NewVulkanDriver returns the production driver.
func NewVulkanDriver() *VulkanDriver {
	return &VulkanDriver{}
}

// EnumerateInstanceExtensions gets a list of instance extensions available on the platform.
func (VulkanDriver) EnumerateInstanceExtensions() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	orPanic(newError(ret, "enumerate instance extensions"))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	orPanic(newError(ret, "enumerate instance extensions"))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

// EnumerateInstanceLayers gets a list of validation layers available on the platform.
func (VulkanDriver) EnumerateInstanceLayers() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	orPanic(newError(ret, "enumerate instance layers"))
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	orPanic(newError(ret, "enumerate instance layers"))
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, err
}

func (VulkanDriver) CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result) {
	var instance vk.Instance
	ret := vk.CreateInstance(info, nil, &instance)
	if ret == vk.Success {
		vk.InitInstance(instance)
	}
	return instance, ret
}

func (VulkanDriver) DestroyInstance(instance vk.Instance) {
	vk.DestroyInstance(instance, nil)
}

func (VulkanDriver) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result) {
	var count uint32
	ret := vk.EnumeratePhysicalDevices(instance, &count, nil)
	if isError(ret) {
		return nil, ret
	}
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(instance, &count, gpus)
	return gpus, ret
}

func (VulkanDriver) GetPhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	props.Limits.Deref()
	return props
}

func (VulkanDriver) GetPhysicalDeviceMemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &props)
	props.Deref()
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		props.MemoryTypes[i].Deref()
	}
	for i := uint32(0); i < props.MemoryHeapCount; i++ {
		props.MemoryHeaps[i].Deref()
	}
	return props
}

func (VulkanDriver) GetPhysicalDeviceQueueFamilyProperties(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)
	for i := range props {
		props[i].Deref()
	}
	return props
}

// EnumerateDeviceExtensions gets a list of extensions available on the provided physical device.
func (VulkanDriver) EnumerateDeviceExtensions(gpu vk.PhysicalDevice) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)
	orPanic(newError(ret, "enumerate device extensions"))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)
	orPanic(newError(ret, "enumerate device extensions"))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

func (VulkanDriver) GetPhysicalDeviceSurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) bool {
	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(gpu, family, surface, &supported)
	return !isError(ret) && supported == vk.True
}

func (VulkanDriver) GetPhysicalDeviceSurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &caps)
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, ret
}

func (VulkanDriver) GetPhysicalDeviceSurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	var count uint32
	ret := vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, nil)
	if isError(ret) {
		return nil, ret
	}
	formats := make([]vk.SurfaceFormat, count)
	ret = vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
	}
	return formats, ret
}

func (VulkanDriver) GetPhysicalDeviceSurfacePresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result) {
	var count uint32
	ret := vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, nil)
	if isError(ret) {
		return nil, ret
	}
	modes := make([]vk.PresentMode, count)
	ret = vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, modes)
	return modes, ret
}

func (VulkanDriver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	vk.DestroySurface(instance, surface, nil)
}

func (VulkanDriver) CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result) {
	var device vk.Device
	ret := vk.CreateDevice(gpu, info, nil, &device)
	return device, ret
}

func (VulkanDriver) DestroyDevice(device vk.Device) {
	vk.DestroyDevice(device, nil)
}

func (VulkanDriver) GetDeviceQueue(device vk.Device, family, index uint32) vk.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(device, family, index, &queue)
	return queue
}

func (VulkanDriver) DeviceWaitIdle(device vk.Device) vk.Result {
	return vk.DeviceWaitIdle(device)
}

func (VulkanDriver) QueueWaitIdle(queue vk.Queue) vk.Result {
	return vk.QueueWaitIdle(queue)
}

func (VulkanDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	return vk.QueueSubmit(queue, uint32(len(submits)), submits, fence)
}

func (VulkanDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(device, info, nil, &swapchain)
	return swapchain, ret
}

func (VulkanDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	vk.DestroySwapchain(device, swapchain, nil)
}

func (VulkanDriver) GetSwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	var count uint32
	ret := vk.GetSwapchainImages(device, swapchain, &count, nil)
	if isError(ret) {
		return nil, ret
	}
	images := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(device, swapchain, &count, images)
	return images, ret
}

func (VulkanDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	var index uint32
	ret := vk.AcquireNextImage(device, swapchain, timeout, semaphore, fence, &index)
	return index, ret
}

func (VulkanDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (VulkanDriver) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, vk.Result) {
	var memory vk.DeviceMemory
	ret := vk.AllocateMemory(device, info, nil, &memory)
	return memory, ret
}

func (VulkanDriver) FreeMemory(device vk.Device, memory vk.DeviceMemory) {
	vk.FreeMemory(device, memory, nil)
}

func (VulkanDriver) MapMemory(device vk.Device, memory vk.DeviceMemory, offset, size vk.DeviceSize) (unsafe.Pointer, vk.Result) {
	var data unsafe.Pointer
	ret := vk.MapMemory(device, memory, offset, size, 0, &data)
	return data, ret
}

func (VulkanDriver) UnmapMemory(device vk.Device, memory vk.DeviceMemory) {
	vk.UnmapMemory(device, memory)
}

func (VulkanDriver) FlushMappedMemoryRanges(device vk.Device, ranges []vk.MappedMemoryRange) vk.Result {
	return vk.FlushMappedMemoryRanges(device, uint32(len(ranges)), ranges)
}

func (VulkanDriver) InvalidateMappedMemoryRanges(device vk.Device, ranges []vk.MappedMemoryRange) vk.Result {
	return vk.InvalidateMappedMemoryRanges(device, uint32(len(ranges)), ranges)
}

func (VulkanDriver) CreateBuffer(device vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, vk.Result) {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(device, info, nil, &buffer)
	return buffer, ret
}

func (VulkanDriver) DestroyBuffer(device vk.Device, buffer vk.Buffer) {
	vk.DestroyBuffer(device, buffer, nil)
}

func (VulkanDriver) GetBufferMemoryRequirements(device vk.Device, buffer vk.Buffer) vk.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &reqs)
	reqs.Deref()
	return reqs
}

func (VulkanDriver) BindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result {
	return vk.BindBufferMemory(device, buffer, memory, offset)
}

func (VulkanDriver) CreateImage(device vk.Device, info *vk.ImageCreateInfo) (vk.Image, vk.Result) {
	var image vk.Image
	ret := vk.CreateImage(device, info, nil, &image)
	return image, ret
}

func (VulkanDriver) DestroyImage(device vk.Device, image vk.Image) {
	vk.DestroyImage(device, image, nil)
}

func (VulkanDriver) GetImageMemoryRequirements(device vk.Device, image vk.Image) vk.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image, &reqs)
	reqs.Deref()
	return reqs
}

func (VulkanDriver) BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result {
	return vk.BindImageMemory(device, image, memory, offset)
}

func (VulkanDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, info, nil, &view)
	return view, ret
}

func (VulkanDriver) DestroyImageView(device vk.Device, view vk.ImageView) {
	vk.DestroyImageView(device, view, nil)
}

func (VulkanDriver) CreateSampler(device vk.Device, info *vk.SamplerCreateInfo) (vk.Sampler, vk.Result) {
	var sampler vk.Sampler
	ret := vk.CreateSampler(device, info, nil, &sampler)
	return sampler, ret
}

func (VulkanDriver) DestroySampler(device vk.Device, sampler vk.Sampler) {
	vk.DestroySampler(device, sampler, nil)
}

func (VulkanDriver) CreateDescriptorSetLayout(device vk.Device, info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, vk.Result) {
	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(device, info, nil, &layout)
	return layout, ret
}

func (VulkanDriver) DestroyDescriptorSetLayout(device vk.Device, layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(device, layout, nil)
}

func (VulkanDriver) CreateDescriptorPool(device vk.Device, info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result) {
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(device, info, nil, &pool)
	return pool, ret
}

func (VulkanDriver) DestroyDescriptorPool(device vk.Device, pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(device, pool, nil)
}

func (VulkanDriver) ResetDescriptorPool(device vk.Device, pool vk.DescriptorPool) vk.Result {
	return vk.ResetDescriptorPool(device, pool, 0)
}

func (VulkanDriver) AllocateDescriptorSets(device vk.Device, info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, vk.Result) {
	sets := make([]vk.DescriptorSet, info.DescriptorSetCount)
	if len(sets) == 0 {
		return nil, vk.Success
	}
	ret := vk.AllocateDescriptorSets(device, info, &sets[0])
	return sets, ret
}

func (VulkanDriver) UpdateDescriptorSets(device vk.Device, writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)
}

func (VulkanDriver) CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result) {
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, info, nil, &module)
	return module, ret
}

func (VulkanDriver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	vk.DestroyShaderModule(device, module, nil)
}

func (VulkanDriver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result) {
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(device, info, nil, &layout)
	return layout, ret
}

func (VulkanDriver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(device, layout, nil)
}

func (VulkanDriver) CreateGraphicsPipeline(device vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result) {
	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(device, nil, 1, []vk.GraphicsPipelineCreateInfo{*info}, nil, pipelines)
	return pipelines[0], ret
}

func (VulkanDriver) CreateComputePipeline(device vk.Device, info *vk.ComputePipelineCreateInfo) (vk.Pipeline, vk.Result) {
	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateComputePipelines(device, nil, 1, []vk.ComputePipelineCreateInfo{*info}, nil, pipelines)
	return pipelines[0], ret
}

func (VulkanDriver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	vk.DestroyPipeline(device, pipeline, nil)
}

func (VulkanDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result) {
	var pass vk.RenderPass
	ret := vk.CreateRenderPass(device, info, nil, &pass)
	return pass, ret
}

func (VulkanDriver) DestroyRenderPass(device vk.Device, pass vk.RenderPass) {
	vk.DestroyRenderPass(device, pass, nil)
}

func (VulkanDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result) {
	var framebuffer vk.Framebuffer
	ret := vk.CreateFramebuffer(device, info, nil, &framebuffer)
	return framebuffer, ret
}

func (VulkanDriver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(device, framebuffer, nil)
}

func (VulkanDriver) CreateFence(device vk.Device, signaled bool) (vk.Fence, vk.Result) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(device, &info, nil, &fence)
	return fence, ret
}

func (VulkanDriver) DestroyFence(device vk.Device, fence vk.Fence) {
	vk.DestroyFence(device, fence, nil)
}

func (VulkanDriver) WaitForFences(device vk.Device, fences []vk.Fence, timeout uint64) vk.Result {
	return vk.WaitForFences(device, uint32(len(fences)), fences, vk.True, timeout)
}

func (VulkanDriver) ResetFences(device vk.Device, fences []vk.Fence) vk.Result {
	return vk.ResetFences(device, uint32(len(fences)), fences)
}

func (VulkanDriver) CreateSemaphore(device vk.Device) (vk.Semaphore, vk.Result) {
	var semaphore vk.Semaphore
	ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &semaphore)
	return semaphore, ret
}

func (VulkanDriver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore) {
	vk.DestroySemaphore(device, semaphore, nil)
}

func (VulkanDriver) CreateCommandPool(device vk.Device, family uint32) (vk.CommandPool, vk.Result) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		// ResetCommandBufferBit allows command buffers to be reset individually.
		Flags: vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	return pool, ret
}

func (VulkanDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	vk.DestroyCommandPool(device, pool, nil)
}

func (VulkanDriver) AllocateCommandBuffers(device vk.Device, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, vk.Result) {
	buffers := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}, buffers)
	return buffers, ret
}

func (VulkanDriver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	vk.FreeCommandBuffers(device, pool, uint32(len(buffers)), buffers)
}

func (VulkanDriver) BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	return vk.BeginCommandBuffer(cmd, info)
}

func (VulkanDriver) EndCommandBuffer(cmd vk.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(cmd)
}

func (VulkanDriver) ResetCommandBuffer(cmd vk.CommandBuffer) vk.Result {
	return vk.ResetCommandBuffer(cmd, 0)
}

func (VulkanDriver) CmdPipelineBarrier(cmd vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, buffers []vk.BufferMemoryBarrier, images []vk.ImageMemoryBarrier) {
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil,
		uint32(len(buffers)), buffers, uint32(len(images)), images)
}

func (VulkanDriver) CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(cmd, info, vk.SubpassContentsInline)
}

func (VulkanDriver) CmdEndRenderPass(cmd vk.CommandBuffer) {
	vk.CmdEndRenderPass(cmd)
}

func (VulkanDriver) CmdSetViewport(cmd vk.CommandBuffer, viewports []vk.Viewport) {
	vk.CmdSetViewport(cmd, 0, uint32(len(viewports)), viewports)
}

func (VulkanDriver) CmdSetScissor(cmd vk.CommandBuffer, scissors []vk.Rect2D) {
	vk.CmdSetScissor(cmd, 0, uint32(len(scissors)), scissors)
}

func (VulkanDriver) CmdBindPipeline(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cmd, bindPoint, pipeline)
}

func (VulkanDriver) CmdBindDescriptorSets(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(cmd, bindPoint, layout, firstSet, uint32(len(sets)), sets, 0, nil)
}

func (VulkanDriver) CmdBindVertexBuffers(cmd vk.CommandBuffer, first uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(cmd, first, uint32(len(buffers)), buffers, offsets)
}

func (VulkanDriver) CmdBindIndexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(cmd, buffer, offset, indexType)
}

func (VulkanDriver) CmdDraw(cmd vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cmd, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (VulkanDriver) CmdDrawIndexed(cmd vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(cmd, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (VulkanDriver) CmdDispatch(cmd vk.CommandBuffer, x, y, z uint32) {
	vk.CmdDispatch(cmd, x, y, z)
}

func (VulkanDriver) CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	vk.CmdCopyBuffer(cmd, src, dst, uint32(len(regions)), regions)
}

func (VulkanDriver) CmdCopyImage(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageCopy) {
	vk.CmdCopyImage(cmd, src, srcLayout, dst, dstLayout, uint32(len(regions)), regions)
}

func (VulkanDriver) CmdCopyBufferToImage(cmd vk.CommandBuffer, src vk.Buffer, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.BufferImageCopy) {
	vk.CmdCopyBufferToImage(cmd, src, dst, dstLayout, uint32(len(regions)), regions)
}

func (VulkanDriver) CmdCopyImageToBuffer(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy) {
	vk.CmdCopyImageToBuffer(cmd, src, srcLayout, dst, uint32(len(regions)), regions)
}

func (VulkanDriver) CmdBlitImage(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter) {
	vk.CmdBlitImage(cmd, src, srcLayout, dst, dstLayout, uint32(len(regions)), regions, filter)
}

func (VulkanDriver) CmdPushConstants(cmd vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset, size uint32, values unsafe.Pointer) {
	vk.CmdPushConstants(cmd, layout, stages, offset, size, values)
}
