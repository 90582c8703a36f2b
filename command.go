package vkframe

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// PassType tells which queue capabilities a pass uses.
type PassType int

const (
	PassGraphics PassType = iota
	PassCompute
	PassTransfer
)

func (t PassType) String() string {
	switch t {
	case PassGraphics:
		return "graphics"
	case PassCompute:
		return "compute"
	case PassTransfer:
		return "transfer"
	}
	return "PassType(?)"
}

// MaxPushConstantSize is the push constant block every pipeline declares.
const MaxPushConstantSize = 128

// pushStages returns the stages push constants are visible to for a pass type.
func pushStages(t PassType) vk.ShaderStageFlags {
	if t == PassCompute {
		return vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	}
	return vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
}

// CommandBuffer is one recording session on a primary command buffer.
// Transfer verbs insert the barriers they need from the tracked image usage.
type CommandBuffer struct {
	drv      Driver
	handle   vk.CommandBuffer
	pipeline *Pipeline

	pass        *RenderPass
	attachments []*Image
}

// NewCommandBuffer wraps an allocated command buffer.
func NewCommandBuffer(drv Driver, handle vk.CommandBuffer) *CommandBuffer {
	return &CommandBuffer{drv: drv, handle: handle}
}

// Handle returns the native command buffer.
func (c *CommandBuffer) Handle() vk.CommandBuffer { return c.handle }

// Begin resets the buffer and starts one-time-submit recording.
func (c *CommandBuffer) Begin() error {
	if err := newError(c.drv.ResetCommandBuffer(c.handle), "reset command buffer"); err != nil {
		return err
	}
	c.pipeline = nil
	c.pass = nil
	c.attachments = nil
	return newError(c.drv.BeginCommandBuffer(c.handle, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}), "begin command buffer")
}

// End finishes recording.
func (c *CommandBuffer) End() error {
	assertf(c.pass == nil, "vkframe: command buffer ended inside a render pass")
	return newError(c.drv.EndCommandBuffer(c.handle), "end command buffer")
}

// BeginRenderPass starts rp on fb. images are the framebuffer attachments in
// render pass order; attachments that load their contents are first moved to
// their attachment usage.
func (c *CommandBuffer) BeginRenderPass(rp *RenderPass, fb vk.Framebuffer, area vk.Rect2D, images []*Image) {
	assertf(c.pass == nil, "vkframe: nested render pass")
	assertf(len(images) == len(rp.attachments), "vkframe: render pass has %d attachments, got %d images",
		len(rp.attachments), len(images))
	var barriers []vk.ImageMemoryBarrier
	var src, dst vk.PipelineStageFlags
	for i, a := range rp.attachments {
		img := images[i]
		if a.LoadOp != vk.AttachmentLoadOpLoad || img.usage == a.Usage {
			continue
		}
		barriers = append(barriers, imageBarrier(img, img.usage, a.Usage, img.fullRange()))
		src |= img.usage.Stage()
		dst |= a.Usage.Stage()
		img.SetUsage(a.Usage)
	}
	c.barrier(src, dst, barriers)

	c.drv.CmdBeginRenderPass(c.handle, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      rp.handle,
		Framebuffer:     fb,
		RenderArea:      area,
		ClearValueCount: uint32(len(rp.clears)),
		PClearValues:    rp.clears,
	})
	c.pass = rp
	c.attachments = images
}

// EndRenderPass ends the current render pass and records the usage each
// attachment was left in.
func (c *CommandBuffer) EndRenderPass() {
	assertf(c.pass != nil, "vkframe: no render pass to end")
	c.drv.CmdEndRenderPass(c.handle)
	for i, a := range c.pass.attachments {
		img := c.attachments[i]
		if a.Present {
			img.markPresented()
			continue
		}
		img.SetUsage(a.finalUsage())
	}
	c.pass = nil
	c.attachments = nil
}

// SetViewport sets a viewport covering area with a [0, 1] depth range.
func (c *CommandBuffer) SetViewport(area vk.Rect2D) {
	c.drv.CmdSetViewport(c.handle, []vk.Viewport{{
		X:        float32(area.Offset.X),
		Y:        float32(area.Offset.Y),
		Width:    float32(area.Extent.Width),
		Height:   float32(area.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
}

func (c *CommandBuffer) SetScissor(area vk.Rect2D) {
	c.drv.CmdSetScissor(c.handle, []vk.Rect2D{area})
}

// BindPipeline binds p. Later descriptor and push constant calls use its layout.
func (c *CommandBuffer) BindPipeline(p *Pipeline) {
	c.drv.CmdBindPipeline(c.handle, p.BindPoint(), p.handle)
	c.pipeline = p
}

// BindDescriptorSets binds sets starting at firstSet on the bound pipeline.
func (c *CommandBuffer) BindDescriptorSets(firstSet uint32, sets ...vk.DescriptorSet) {
	assertf(c.pipeline != nil, "vkframe: descriptor sets bound without a pipeline")
	c.drv.CmdBindDescriptorSets(c.handle, c.pipeline.BindPoint(), c.pipeline.layout, firstSet, sets)
}

func (c *CommandBuffer) BindVertexBuffers(first uint32, buffers ...*Buffer) {
	handles := make([]vk.Buffer, len(buffers))
	offsets := make([]vk.DeviceSize, len(buffers))
	for i, b := range buffers {
		handles[i] = b.Handle()
	}
	c.drv.CmdBindVertexBuffers(c.handle, first, handles, offsets)
}

func (c *CommandBuffer) BindIndexBuffer(b *Buffer, indexType vk.IndexType) {
	c.drv.CmdBindIndexBuffer(c.handle, b.Handle(), 0, indexType)
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.drv.CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.drv.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	c.drv.CmdDispatch(c.handle, x, y, z)
}

// PushConstants pushes data zero-padded to the full MaxPushConstantSize
// block, visible to the stages of the bound pipeline's pass type.
func (c *CommandBuffer) PushConstants(data []byte) {
	assertf(c.pipeline != nil, "vkframe: push constants without a pipeline")
	assertf(len(data) <= MaxPushConstantSize, "vkframe: %d bytes of push constants exceed %d", len(data), MaxPushConstantSize)
	var block [MaxPushConstantSize]byte
	copy(block[:], data)
	c.drv.CmdPushConstants(c.handle, c.pipeline.layout, pushStages(c.pipeline.passType), 0,
		MaxPushConstantSize, unsafe.Pointer(&block[0]))
}

func imageBarrier(img *Image, from, to UsageKind, rng vk.ImageSubresourceRange) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       from.Access(),
		DstAccessMask:       to.Access(),
		OldLayout:           from.Layout(),
		NewLayout:           to.Layout(),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.handle,
		SubresourceRange:    rng,
	}
}

func (c *CommandBuffer) barrier(src, dst vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	if len(barriers) == 0 {
		return
	}
	c.drv.CmdPipelineBarrier(c.handle, src, dst, nil, barriers)
}

// TransferLayout moves img from one usage to another.
func (c *CommandBuffer) TransferLayout(img *Image, from, to UsageKind) {
	c.TransferLayouts([]*Image{img}, from, to)
}

// TransferLayouts moves every image from one usage to another in one barrier.
func (c *CommandBuffer) TransferLayouts(imgs []*Image, from, to UsageKind) {
	barriers := make([]vk.ImageMemoryBarrier, 0, len(imgs))
	for _, img := range imgs {
		barriers = append(barriers, imageBarrier(img, from, to, img.fullRange()))
		img.SetUsage(to)
	}
	c.barrier(from.Stage(), to.Stage(), barriers)
}

// TransferTracked moves every image from its tracked usage to usage. Images
// already there are skipped.
func (c *CommandBuffer) TransferTracked(imgs []*Image, usage UsageKind) {
	var barriers []vk.ImageMemoryBarrier
	var src vk.PipelineStageFlags
	for _, img := range imgs {
		if img.usage == usage && !img.presented {
			continue
		}
		barriers = append(barriers, imageBarrier(img, img.usage, usage, img.fullRange()))
		src |= img.usage.Stage()
		img.SetUsage(usage)
	}
	c.barrier(src, usage.Stage(), barriers)
}

// prepareTransfer moves src to transfer-src and dst to transfer-dst,
// skipping images already in place.
func (c *CommandBuffer) prepareTransfer(src, dst *Image) {
	var barriers []vk.ImageMemoryBarrier
	var stages vk.PipelineStageFlags
	if src != nil && src.usage != UsageTransferSrc {
		barriers = append(barriers, imageBarrier(src, src.usage, UsageTransferSrc, src.fullRange()))
		stages |= src.usage.Stage()
		src.SetUsage(UsageTransferSrc)
	}
	if dst != nil && dst.usage != UsageTransferDst {
		barriers = append(barriers, imageBarrier(dst, dst.usage, UsageTransferDst, dst.fullRange()))
		stages |= dst.usage.Stage()
		dst.SetUsage(UsageTransferDst)
	}
	c.barrier(stages, UsageTransferDst.Stage(), barriers)
}

func subresourceLayers(img *Image, level uint32) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     img.aspect(),
		MipLevel:       level,
		BaseArrayLayer: 0,
		LayerCount:     img.layerCount,
	}
}

// CopyImage copies level 0 of src into dst. The copied extent is the
// intersection of both images.
func (c *CommandBuffer) CopyImage(src, dst *Image) {
	c.prepareTransfer(src, dst)
	w, h := src.Width(), src.Height()
	if dst.Width() < w {
		w = dst.Width()
	}
	if dst.Height() < h {
		h = dst.Height()
	}
	c.drv.CmdCopyImage(c.handle, src.handle, UsageTransferSrc.Layout(), dst.handle, UsageTransferDst.Layout(),
		[]vk.ImageCopy{{
			SrcSubresource: subresourceLayers(src, 0),
			DstSubresource: subresourceLayers(dst, 0),
			Extent:         vk.Extent3D{Width: w, Height: h, Depth: 1},
		}})
}

// CopyBufferToImage copies tightly packed texels at offset into one mip level
// of every layer of dst.
func (c *CommandBuffer) CopyBufferToImage(src *Buffer, offset uint64, dst *Image, level uint32) {
	c.prepareTransfer(nil, dst)
	c.drv.CmdCopyBufferToImage(c.handle, src.Handle(), dst.handle, UsageTransferDst.Layout(),
		[]vk.BufferImageCopy{{
			BufferOffset:     vk.DeviceSize(offset),
			ImageSubresource: subresourceLayers(dst, level),
			ImageExtent:      vk.Extent3D{Width: dst.MipWidth(level), Height: dst.MipHeight(level), Depth: 1},
		}})
}

// CopyImageToBuffer copies one mip level of src into dst at offset.
func (c *CommandBuffer) CopyImageToBuffer(src *Image, level uint32, dst *Buffer, offset uint64) {
	c.prepareTransfer(src, nil)
	c.drv.CmdCopyImageToBuffer(c.handle, src.handle, UsageTransferSrc.Layout(), dst.Handle(),
		[]vk.BufferImageCopy{{
			BufferOffset:     vk.DeviceSize(offset),
			ImageSubresource: subresourceLayers(src, level),
			ImageExtent:      vk.Extent3D{Width: src.MipWidth(level), Height: src.MipHeight(level), Depth: 1},
		}})
}

// CopyBuffer copies size bytes between buffers.
func (c *CommandBuffer) CopyBuffer(src, dst *Buffer, srcOffset, dstOffset, size uint64) {
	assertf(inRange(srcOffset, size, src.Size()) && inRange(dstOffset, size, dst.Size()),
		"vkframe: buffer copy of %d bytes out of range", size)
	c.drv.CmdCopyBuffer(c.handle, src.Handle(), dst.Handle(), []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}})
}

// inRange reports whether [offset, offset+size) fits in limit without wrapping.
func inRange(offset, size, limit uint64) bool {
	return offset <= limit && size <= limit-offset
}

func blitOffsets(w, h uint32) [2]vk.Offset3D {
	return [2]vk.Offset3D{{X: 0, Y: 0, Z: 0}, {X: int32(w), Y: int32(h), Z: 1}}
}

// BlitImage scales level 0 of src onto level 0 of dst.
func (c *CommandBuffer) BlitImage(src, dst *Image, filter vk.Filter) {
	c.prepareTransfer(src, dst)
	c.drv.CmdBlitImage(c.handle, src.handle, UsageTransferSrc.Layout(), dst.handle, UsageTransferDst.Layout(),
		[]vk.ImageBlit{{
			SrcSubresource: subresourceLayers(src, 0),
			SrcOffsets:     blitOffsets(src.Width(), src.Height()),
			DstSubresource: subresourceLayers(dst, 0),
			DstOffsets:     blitOffsets(dst.Width(), dst.Height()),
		}}, filter)
}

func levelRange(img *Image, base, count uint32) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     img.aspect(),
		BaseMipLevel:   base,
		LevelCount:     count,
		BaseArrayLayer: 0,
		LayerCount:     img.layerCount,
	}
}

// GenerateMipLevels fills levels 1..n-1 by successive blits from level 0.
// Afterwards the whole image is in transfer-dst usage.
func (c *CommandBuffer) GenerateMipLevels(img *Image, filter vk.Filter) {
	levels := img.mipLevels
	if levels <= 1 {
		return
	}
	for i := uint32(0); i+1 < levels; i++ {
		from := UsageTransferDst
		if i == 0 {
			from = img.usage
		}
		c.barrier(from.Stage()|UsageUnknown.Stage(), UsageTransferSrc.Stage(), []vk.ImageMemoryBarrier{
			imageBarrier(img, from, UsageTransferSrc, levelRange(img, i, 1)),
			imageBarrier(img, UsageUnknown, UsageTransferDst, levelRange(img, i+1, 1)),
		})
		c.drv.CmdBlitImage(c.handle, img.handle, UsageTransferSrc.Layout(), img.handle, UsageTransferDst.Layout(),
			[]vk.ImageBlit{{
				SrcSubresource: subresourceLayers(img, i),
				SrcOffsets:     blitOffsets(img.MipWidth(i), img.MipHeight(i)),
				DstSubresource: subresourceLayers(img, i+1),
				DstOffsets:     blitOffsets(img.MipWidth(i+1), img.MipHeight(i+1)),
			}}, filter)
	}
	c.barrier(UsageTransferSrc.Stage(), UsageTransferDst.Stage(), []vk.ImageMemoryBarrier{
		imageBarrier(img, UsageTransferSrc, UsageTransferDst, levelRange(img, 0, levels-1)),
	})
	img.SetUsage(UsageTransferDst)
}

// transitionToPresent moves a swapchain image to the present layout unless a
// render pass already left it there.
func (c *CommandBuffer) transitionToPresent(img *Image) {
	if img.presented {
		return
	}
	b := imageBarrier(img, img.usage, UsageUnknown, img.fullRange())
	b.NewLayout = vk.ImageLayoutPresentSrc
	b.DstAccessMask = vk.AccessFlags(vk.AccessMemoryReadBit)
	c.barrier(img.usage.Stage(), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), []vk.ImageMemoryBarrier{b})
	img.markPresented()
}
