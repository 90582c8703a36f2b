package vkframe

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// surfaceSupport is what a physical device offers for a surface.
type surfaceSupport struct {
	caps    vk.SurfaceCapabilities
	formats []vk.SurfaceFormat
	modes   []vk.PresentMode
}

func querySurfaceSupport(drv Driver, gpu vk.PhysicalDevice, surface vk.Surface) (surfaceSupport, error) {
	var s surfaceSupport
	var ret vk.Result
	if s.caps, ret = drv.GetPhysicalDeviceSurfaceCapabilities(gpu, surface); isError(ret) {
		return s, newError(ret, "get surface capabilities")
	}
	if s.formats, ret = drv.GetPhysicalDeviceSurfaceFormats(gpu, surface); isError(ret) {
		return s, newError(ret, "get surface formats")
	}
	if s.modes, ret = drv.GetPhysicalDeviceSurfacePresentModes(gpu, surface); isError(ret) {
		return s, newError(ret, "get surface present modes")
	}
	if len(s.formats) == 0 {
		return s, errors.Wrap(ErrNoSuitableDevice, "surface reports no formats")
	}
	return s, nil
}

// chooseSurfaceFormat prefers 8-bit BGRA/RGBA with the sRGB color space and
// otherwise takes the first format offered.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: formats[0].ColorSpace}
	}
	for _, want := range []vk.Format{vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Unorm} {
		for _, f := range formats {
			if f.Format == want && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
				return f
			}
		}
	}
	return formats[0]
}

// choosePresentMode returns preferred when offered. FIFO is always available.
func choosePresentMode(modes []vk.PresentMode, preferred vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == preferred {
			return m
		}
	}
	return vk.PresentModeFifo
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

// chooseExtent uses the surface's current extent unless the surface lets the
// swapchain decide, in which case the window size is clamped to the limits.
func chooseExtent(caps vk.SurfaceCapabilities, width, height int) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clampUint32(uint32(width), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampUint32(uint32(height), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseImageCount clamps desired to the surface limits. A zero maximum means
// no limit.
func chooseImageCount(caps vk.SurfaceCapabilities, desired uint32) uint32 {
	return clampUint32(desired, caps.MinImageCount, caps.MaxImageCount)
}

func choosePreTransform(caps vk.SurfaceCapabilities) vk.SurfaceTransformFlagBits {
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		return vk.SurfaceTransformIdentityBit
	}
	return caps.CurrentTransform
}

// chooseCompositeAlpha picks the first supported mode. One is always set.
func chooseCompositeAlpha(caps vk.SurfaceCapabilities) vk.CompositeAlphaFlagBits {
	for _, mode := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(mode) != 0 {
			return mode
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

// Swapchain owns the presentable images of a surface, wrapped as Images with
// their usage tracked like any other attachment.
type Swapchain struct {
	drv         Driver
	device      vk.Device
	handle      vk.Swapchain
	format      vk.SurfaceFormat
	presentMode vk.PresentMode
	extent      vk.Extent2D
	images      []*Image
}

type swapchainParams struct {
	surface     vk.Surface
	support     surfaceSupport
	format      vk.SurfaceFormat
	presentMode vk.PresentMode
	imageCount  uint32
	width       int
	height      int
}

// newSwapchain creates a swapchain for the current surface state. When old is
// given it is passed along for resource reuse; the caller destroys it.
func newSwapchain(drv Driver, device vk.Device, p swapchainParams, old *Swapchain) (*Swapchain, error) {
	caps := p.support.caps
	extent := chooseExtent(caps, p.width, p.height)
	if extent.Width == 0 || extent.Height == 0 {
		return nil, errors.Wrapf(ErrSwapchainOutOfDate, "surface extent %dx%d", extent.Width, extent.Height)
	}
	usage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	if caps.SupportedUsageFlags&vk.ImageUsageFlags(vk.ImageUsageTransferDstBit) != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	}
	var oldHandle vk.Swapchain
	if old != nil {
		oldHandle = old.handle
	}
	handle, ret := drv.CreateSwapchain(device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          p.surface,
		MinImageCount:    chooseImageCount(caps, p.imageCount),
		ImageFormat:      p.format.Format,
		ImageColorSpace:  p.format.ColorSpace,
		ImageExtent:      extent,
		ImageUsage:       usage,
		PreTransform:     choosePreTransform(caps),
		CompositeAlpha:   chooseCompositeAlpha(caps),
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		PresentMode:      p.presentMode,
		OldSwapchain:     oldHandle,
		Clipped:          vk.True,
	})
	if err := newError(ret, "create swapchain"); err != nil {
		return nil, err
	}
	sc := &Swapchain{
		drv:         drv,
		device:      device,
		handle:      handle,
		format:      p.format,
		presentMode: p.presentMode,
		extent:      extent,
	}
	handles, ret := drv.GetSwapchainImages(device, handle)
	if err := newError(ret, "get swapchain images"); err != nil {
		sc.Destroy()
		return nil, err
	}
	for _, h := range handles {
		img, err := WrapSwapchainImage(drv, device, h, extent.Width, extent.Height, p.format.Format, usage)
		if err != nil {
			sc.Destroy()
			return nil, errors.Wrap(err, "wrap swapchain image")
		}
		sc.images = append(sc.images, img)
	}
	return sc, nil
}

func (sc *Swapchain) Handle() vk.Swapchain        { return sc.handle }
func (sc *Swapchain) Format() vk.SurfaceFormat    { return sc.format }
func (sc *Swapchain) PresentMode() vk.PresentMode { return sc.presentMode }
func (sc *Swapchain) Extent() vk.Extent2D         { return sc.extent }
func (sc *Swapchain) ImageCount() int             { return len(sc.images) }

// Image returns the wrapped image at index.
func (sc *Swapchain) Image(index uint32) *Image { return sc.images[index] }

// Destroy releases the image views and the swapchain. The images themselves
// belong to the swapchain.
func (sc *Swapchain) Destroy() {
	for _, img := range sc.images {
		img.Destroy()
	}
	sc.images = nil
	if sc.handle != nil {
		sc.drv.DestroySwapchain(sc.device, sc.handle)
		sc.handle = nil
	}
}
