package vkframe

import (
	vk "github.com/vulkan-go/vulkan"
)

// AttachmentDesc describes one attachment of a single-subpass render pass.
type AttachmentDesc struct {
	Format  vk.Format
	LoadOp  vk.AttachmentLoadOp
	StoreOp vk.AttachmentStoreOp
	// Usage is ColorAttachment or DepthStencilAttachment.
	Usage UsageKind
	// Final is the usage the pass leaves the image in. Zero keeps Usage.
	Final UsageKind
	// Present leaves the image ready for presentation, overriding Final.
	Present bool
	Clear   vk.ClearValue
}

func (a AttachmentDesc) finalUsage() UsageKind {
	if a.Final == UsageUnknown {
		return a.Usage
	}
	return a.Final
}

func (a AttachmentDesc) initialLayout() vk.ImageLayout {
	if a.LoadOp == vk.AttachmentLoadOpLoad {
		return a.Usage.Layout()
	}
	return vk.ImageLayoutUndefined
}

func (a AttachmentDesc) finalLayout() vk.ImageLayout {
	if a.Present {
		return vk.ImageLayoutPresentSrc
	}
	return a.finalUsage().Layout()
}

// ColorAttachment is a cleared, stored color attachment.
func ColorAttachment(format vk.Format, clear [4]float32) AttachmentDesc {
	return AttachmentDesc{
		Format:  format,
		LoadOp:  vk.AttachmentLoadOpClear,
		StoreOp: vk.AttachmentStoreOpStore,
		Usage:   UsageColorAttachment,
		Clear:   vk.NewClearValue(clear[:]),
	}
}

// DepthAttachment is a depth attachment cleared to 1.
func DepthAttachment(format vk.Format) AttachmentDesc {
	return AttachmentDesc{
		Format:  format,
		LoadOp:  vk.AttachmentLoadOpClear,
		StoreOp: vk.AttachmentStoreOpDontCare,
		Usage:   UsageDepthStencilAttachment,
		Clear:   vk.NewClearDepthStencil(1.0, 0),
	}
}

// RenderPass is a native render pass with one graphics subpass.
type RenderPass struct {
	drv         Driver
	device      vk.Device
	handle      vk.RenderPass
	attachments []AttachmentDesc
	clears      []vk.ClearValue
}

// NewRenderPass creates a render pass writing every color attachment and at
// most one depth attachment.
func NewRenderPass(drv Driver, device vk.Device, attachments []AttachmentDesc) (*RenderPass, error) {
	descs := make([]vk.AttachmentDescription, len(attachments))
	var colorRefs []vk.AttachmentReference
	var depthRef *vk.AttachmentReference
	clears := make([]vk.ClearValue, len(attachments))
	for i, a := range attachments {
		descs[i] = vk.AttachmentDescription{
			Format:         a.Format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         a.LoadOp,
			StoreOp:        a.StoreOp,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  a.initialLayout(),
			FinalLayout:    a.finalLayout(),
		}
		clears[i] = a.Clear
		ref := vk.AttachmentReference{Attachment: uint32(i), Layout: a.Usage.Layout()}
		switch a.Usage {
		case UsageColorAttachment:
			colorRefs = append(colorRefs, ref)
		case UsageDepthStencilAttachment:
			assertf(depthRef == nil, "vkframe: render pass with two depth attachments")
			depthRef = &ref
		default:
			assertf(false, "vkframe: attachment %d has usage %s", i, a.Usage)
		}
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: depthRef,
	}
	deps := []vk.SubpassDependency{{
		SrcSubpass:    vk.MaxUint32,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}}

	handle, ret := drv.CreateRenderPass(device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descs)),
		PAttachments:    descs,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(deps)),
		PDependencies:   deps,
	})
	if err := newError(ret, "create render pass"); err != nil {
		return nil, err
	}
	return &RenderPass{
		drv:         drv,
		device:      device,
		handle:      handle,
		attachments: append([]AttachmentDesc(nil), attachments...),
		clears:      clears,
	}, nil
}

func (rp *RenderPass) Handle() vk.RenderPass { return rp.handle }

// Attachments returns the attachment descriptions in order.
func (rp *RenderPass) Attachments() []AttachmentDesc { return rp.attachments }

// Destroy releases the render pass. Framebuffers built on it must be dropped
// from the cache first.
func (rp *RenderPass) Destroy() {
	if rp.handle == nil {
		return
	}
	rp.drv.DestroyRenderPass(rp.device, rp.handle)
	rp.handle = nil
}

const maxFramebufferAttachments = 8

type framebufferKey struct {
	pass   vk.RenderPass
	views  [maxFramebufferAttachments]vk.ImageView
	width  uint32
	height uint32
}

// FramebufferCache builds framebuffers on demand, keyed by render pass,
// attachment views and extent.
type FramebufferCache struct {
	drv    Driver
	device vk.Device
	cache  map[framebufferKey]vk.Framebuffer
}

func NewFramebufferCache(drv Driver, device vk.Device) *FramebufferCache {
	return &FramebufferCache{
		drv:    drv,
		device: device,
		cache:  make(map[framebufferKey]vk.Framebuffer),
	}
}

// Get returns the framebuffer for rp over views, creating it if needed.
func (fc *FramebufferCache) Get(rp *RenderPass, views []vk.ImageView, extent vk.Extent2D) (vk.Framebuffer, error) {
	assertf(len(views) <= maxFramebufferAttachments, "vkframe: %d framebuffer attachments", len(views))
	key := framebufferKey{pass: rp.handle, width: extent.Width, height: extent.Height}
	copy(key.views[:], views)
	if fb, ok := fc.cache[key]; ok {
		return fb, nil
	}
	fb, ret := fc.drv.CreateFramebuffer(fc.device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	})
	if err := newError(ret, "create framebuffer"); err != nil {
		return nil, err
	}
	fc.cache[key] = fb
	return fb, nil
}

// Len returns the number of cached framebuffers.
func (fc *FramebufferCache) Len() int { return len(fc.cache) }

// Forget destroys the framebuffers that use any of views. Nil views are
// ignored. The device must be idle.
func (fc *FramebufferCache) Forget(views []vk.ImageView) {
	gone := make(map[vk.ImageView]bool, len(views))
	for _, v := range views {
		if v != nil {
			gone[v] = true
		}
	}
	if len(gone) == 0 {
		return
	}
	for key, fb := range fc.cache {
		for _, v := range key.views {
			if gone[v] {
				fc.drv.DestroyFramebuffer(fc.device, fb)
				delete(fc.cache, key)
				break
			}
		}
	}
}

// Clear destroys every cached framebuffer. The device must be idle.
func (fc *FramebufferCache) Clear() {
	for key, fb := range fc.cache {
		fc.drv.DestroyFramebuffer(fc.device, fb)
		delete(fc.cache, key)
	}
}
