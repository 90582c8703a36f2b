package vkframe

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Driver is the set of Vulkan entry points used by vkframe. The production
// implementation forwards to the vulkan bindings; tests plug in an in-memory
// device. Returned structs are already dereferenced.
type Driver interface {
	EnumerateInstanceExtensions() ([]string, error)
	EnumerateInstanceLayers() ([]string, error)
	CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result)
	DestroyInstance(instance vk.Instance)
	EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result)
	GetPhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties
	GetPhysicalDeviceMemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties
	GetPhysicalDeviceQueueFamilyProperties(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties
	EnumerateDeviceExtensions(gpu vk.PhysicalDevice) ([]string, error)

	GetPhysicalDeviceSurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) bool
	GetPhysicalDeviceSurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result)
	GetPhysicalDeviceSurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result)
	GetPhysicalDeviceSurfacePresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result)
	DestroySurface(instance vk.Instance, surface vk.Surface)

	CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result)
	DestroyDevice(device vk.Device)
	GetDeviceQueue(device vk.Device, family, index uint32) vk.Queue
	DeviceWaitIdle(device vk.Device) vk.Result
	QueueWaitIdle(queue vk.Queue) vk.Result
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result

	CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result)
	DestroySwapchain(device vk.Device, swapchain vk.Swapchain)
	GetSwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result)
	AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result)
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result

	AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, vk.Result)
	FreeMemory(device vk.Device, memory vk.DeviceMemory)
	MapMemory(device vk.Device, memory vk.DeviceMemory, offset, size vk.DeviceSize) (unsafe.Pointer, vk.Result)
	UnmapMemory(device vk.Device, memory vk.DeviceMemory)
	FlushMappedMemoryRanges(device vk.Device, ranges []vk.MappedMemoryRange) vk.Result
	InvalidateMappedMemoryRanges(device vk.Device, ranges []vk.MappedMemoryRange) vk.Result

	CreateBuffer(device vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, vk.Result)
	DestroyBuffer(device vk.Device, buffer vk.Buffer)
	GetBufferMemoryRequirements(device vk.Device, buffer vk.Buffer) vk.MemoryRequirements
	BindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result
	CreateImage(device vk.Device, info *vk.ImageCreateInfo) (vk.Image, vk.Result)
	DestroyImage(device vk.Device, image vk.Image)
	GetImageMemoryRequirements(device vk.Device, image vk.Image) vk.MemoryRequirements
	BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result
	CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result)
	DestroyImageView(device vk.Device, view vk.ImageView)
	CreateSampler(device vk.Device, info *vk.SamplerCreateInfo) (vk.Sampler, vk.Result)
	DestroySampler(device vk.Device, sampler vk.Sampler)

	CreateDescriptorSetLayout(device vk.Device, info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, vk.Result)
	DestroyDescriptorSetLayout(device vk.Device, layout vk.DescriptorSetLayout)
	CreateDescriptorPool(device vk.Device, info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result)
	DestroyDescriptorPool(device vk.Device, pool vk.DescriptorPool)
	ResetDescriptorPool(device vk.Device, pool vk.DescriptorPool) vk.Result
	AllocateDescriptorSets(device vk.Device, info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, vk.Result)
	UpdateDescriptorSets(device vk.Device, writes []vk.WriteDescriptorSet)

	CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result)
	DestroyShaderModule(device vk.Device, module vk.ShaderModule)
	CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result)
	DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout)
	CreateGraphicsPipeline(device vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result)
	CreateComputePipeline(device vk.Device, info *vk.ComputePipelineCreateInfo) (vk.Pipeline, vk.Result)
	DestroyPipeline(device vk.Device, pipeline vk.Pipeline)
	CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result)
	DestroyRenderPass(device vk.Device, pass vk.RenderPass)
	CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result)
	DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer)

	CreateFence(device vk.Device, signaled bool) (vk.Fence, vk.Result)
	DestroyFence(device vk.Device, fence vk.Fence)
	WaitForFences(device vk.Device, fences []vk.Fence, timeout uint64) vk.Result
	ResetFences(device vk.Device, fences []vk.Fence) vk.Result
	CreateSemaphore(device vk.Device) (vk.Semaphore, vk.Result)
	DestroySemaphore(device vk.Device, semaphore vk.Semaphore)
	CreateCommandPool(device vk.Device, family uint32) (vk.CommandPool, vk.Result)
	DestroyCommandPool(device vk.Device, pool vk.CommandPool)
	AllocateCommandBuffers(device vk.Device, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, vk.Result)
	FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer)
	BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result
	EndCommandBuffer(cmd vk.CommandBuffer) vk.Result
	ResetCommandBuffer(cmd vk.CommandBuffer) vk.Result

	CmdPipelineBarrier(cmd vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, buffers []vk.BufferMemoryBarrier, images []vk.ImageMemoryBarrier)
	CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(cmd vk.CommandBuffer)
	CmdSetViewport(cmd vk.CommandBuffer, viewports []vk.Viewport)
	CmdSetScissor(cmd vk.CommandBuffer, scissors []vk.Rect2D)
	CmdBindPipeline(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	CmdBindDescriptorSets(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet)
	CmdBindVertexBuffers(cmd vk.CommandBuffer, first uint32, buffers []vk.Buffer, offsets []vk.DeviceSize)
	CmdBindIndexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType)
	CmdDraw(cmd vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cmd vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdDispatch(cmd vk.CommandBuffer, x, y, z uint32)
	CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy)
	CmdCopyImage(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageCopy)
	CmdCopyBufferToImage(cmd vk.CommandBuffer, src vk.Buffer, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.BufferImageCopy)
	CmdCopyImageToBuffer(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy)
	CmdBlitImage(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter)
	CmdPushConstants(cmd vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset, size uint32, values unsafe.Pointer)
}
