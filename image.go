package vkframe

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// ImageOptions are creation options for images.
type ImageOptions uint32

const (
	ImageMipmaps ImageOptions = 1 << iota
	ImageCubemap
)

// ViewKind selects which aspect a view exposes.
type ViewKind int

const (
	ViewNative ViewKind = iota
	ViewDepth
	ViewStencil
)

// ImageDesc describes an image to create.
type ImageDesc struct {
	Width       uint32
	Height      uint32
	Format      vk.Format
	Usage       vk.ImageUsageFlags
	MemoryUsage MemoryUsage
	Options     ImageOptions
}

// ImageData is decoded pixel data handed over by asset loaders. Mips, when
// present, holds the payload of levels 1 and up.
type ImageData struct {
	Width  uint32
	Height uint32
	Format vk.Format
	Pixels []byte
	Mips   [][]byte
}

// CalculateMipLevelCount returns floor(log2(max(w, h))) + 1 when mipmaps are
// requested and 1 otherwise.
func CalculateMipLevelCount(width, height uint32, mipmaps bool) uint32 {
	if !mipmaps {
		return 1
	}
	m := width
	if height > m {
		m = height
	}
	if m == 0 {
		return 1
	}
	return uint32(bits.Len32(m))
}

func mipDimension(d, level uint32) uint32 {
	if level >= 32 {
		return 1
	}
	v := uint32(1) << level
	if d > v {
		v = d
	}
	return v >> level
}

// AspectMask returns the aspects a format carries.
func AspectMask(format vk.Format) vk.ImageAspectFlags {
	switch format {
	case vk.FormatD16Unorm, vk.FormatX8D24UnormPack32, vk.FormatD32Sfloat:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	case vk.FormatS8Uint:
		return vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	case vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// imageViews is the native/depth/stencil triplet. Unused slots are nil.
type imageViews [3]vk.ImageView

// Image is a 2D texture, cubemap or attachment. It owns one allocation and
// the views derived from it, except for swapchain images which are borrowed.
type Image struct {
	drv        Driver
	device     vk.Device
	allocator  *Allocator
	handle     vk.Image
	alloc      *Allocation
	desc       ImageDesc
	mipLevels  uint32
	layerCount uint32
	usage      UsageKind
	presented  bool
	views      imageViews
	layerViews []imageViews

	// framebuffers built over the views are dropped with them.
	framebuffers *FramebufferCache
}

// NewImage creates an image and its view set.
func NewImage(a *Allocator, desc ImageDesc) (*Image, error) {
	img := &Image{
		drv:       a.drv,
		device:    a.device,
		allocator: a,
		desc:      desc,
	}
	if err := img.allocate(); err != nil {
		return nil, err
	}
	return img, nil
}

// WrapSwapchainImage wraps an image owned by a swapchain. Destroy releases
// only the views.
func WrapSwapchainImage(drv Driver, device vk.Device, handle vk.Image, width, height uint32, format vk.Format, usage vk.ImageUsageFlags) (*Image, error) {
	img := &Image{
		drv:    drv,
		device: device,
		handle: handle,
		desc: ImageDesc{
			Width:  width,
			Height: height,
			Format: format,
			Usage:  usage,
		},
		mipLevels:  1,
		layerCount: 1,
	}
	if err := img.createViews(); err != nil {
		return nil, err
	}
	return img, nil
}

func (img *Image) allocate() error {
	d := img.desc
	img.mipLevels = CalculateMipLevelCount(d.Width, d.Height, d.Options&ImageMipmaps != 0)
	img.layerCount = 1
	var flags vk.ImageCreateFlags
	if d.Options&ImageCubemap != 0 {
		img.layerCount = 6
		flags |= vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	if img.mipLevels > 1 {
		// Levels are generated by blitting within the image.
		d.Usage |= vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit)
		img.desc.Usage = d.Usage
	}
	handle, alloc, err := img.allocator.CreateImage(&vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		Flags:         flags,
		ImageType:     vk.ImageType2d,
		Format:        d.Format,
		Extent:        vk.Extent3D{Width: d.Width, Height: d.Height, Depth: 1},
		MipLevels:     img.mipLevels,
		ArrayLayers:   img.layerCount,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         d.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, d.MemoryUsage)
	if err != nil {
		return err
	}
	img.handle = handle
	img.alloc = alloc
	img.usage = UsageUnknown
	if err := img.createViews(); err != nil {
		img.release()
		return err
	}
	return nil
}

func (img *Image) createView(viewType vk.ImageViewType, aspect vk.ImageAspectFlags, baseLayer, layers uint32) (vk.ImageView, error) {
	view, ret := img.drv.CreateImageView(img.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.handle,
		ViewType: viewType,
		Format:   img.desc.Format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     img.mipLevels,
			BaseArrayLayer: baseLayer,
			LayerCount:     layers,
		},
	})
	return view, newError(ret, "create image view")
}

// viewTriplet builds the native view plus depth-only and stencil-only views
// when the format has those aspects.
func (img *Image) viewTriplet(viewType vk.ImageViewType, baseLayer, layers uint32) (imageViews, error) {
	var views imageViews
	aspect := AspectMask(img.desc.Format)
	var err error
	if views[ViewNative], err = img.createView(viewType, aspect, baseLayer, layers); err != nil {
		return views, err
	}
	depth := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	stencil := vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	if aspect&depth != 0 {
		if views[ViewDepth], err = img.createView(viewType, depth, baseLayer, layers); err != nil {
			return views, err
		}
	}
	if aspect&stencil != 0 {
		if views[ViewStencil], err = img.createView(viewType, stencil, baseLayer, layers); err != nil {
			return views, err
		}
	}
	return views, nil
}

func (img *Image) createViews() (err error) {
	viewType := vk.ImageViewType2d
	if img.layerCount == 6 && img.desc.Options&ImageCubemap != 0 {
		viewType = vk.ImageViewTypeCube
	} else if img.layerCount > 1 {
		viewType = vk.ImageViewType2dArray
	}
	if img.views, err = img.viewTriplet(viewType, 0, img.layerCount); err != nil {
		img.destroyViews()
		return errors.Wrap(err, "image views")
	}
	if img.layerCount > 1 {
		img.layerViews = make([]imageViews, img.layerCount)
		for layer := uint32(0); layer < img.layerCount; layer++ {
			if img.layerViews[layer], err = img.viewTriplet(vk.ImageViewType2d, layer, 1); err != nil {
				img.destroyViews()
				return errors.Wrapf(err, "image layer %d views", layer)
			}
		}
	}
	return nil
}

func (img *Image) destroyViews() {
	if img.framebuffers != nil {
		all := append([]vk.ImageView(nil), img.views[:]...)
		for _, lv := range img.layerViews {
			all = append(all, lv[:]...)
		}
		img.framebuffers.Forget(all)
	}
	destroy := func(views imageViews) {
		for _, v := range views {
			if v != nil {
				img.drv.DestroyImageView(img.device, v)
			}
		}
	}
	for _, lv := range img.layerViews {
		destroy(lv)
	}
	destroy(img.views)
	img.views = imageViews{}
	img.layerViews = nil
}

// release destroys views before the allocation.
func (img *Image) release() {
	img.destroyViews()
	if img.alloc != nil {
		img.allocator.DestroyImage(img.handle, img.alloc)
	}
	img.handle = nil
	img.alloc = nil
}

// Reallocate replaces the allocation with one of the new size and rebuilds
// the view set. Contents are lost.
func (img *Image) Reallocate(width, height uint32) error {
	assertf(img.alloc != nil, "vkframe: reallocating a borrowed image")
	img.drv.DeviceWaitIdle(img.device)
	img.release()
	img.desc.Width, img.desc.Height = width, height
	return img.allocate()
}

// NativeView returns the whole-image view of the given kind. Nil when the
// format lacks the aspect.
func (img *Image) NativeView(kind ViewKind) vk.ImageView {
	assertf(kind >= ViewNative && kind <= ViewStencil, "vkframe: unknown view kind %d", int(kind))
	return img.views[kind]
}

// LayerView returns the view of a single layer. Single-layer images return
// their default views.
func (img *Image) LayerView(kind ViewKind, layer uint32) vk.ImageView {
	assertf(kind >= ViewNative && kind <= ViewStencil, "vkframe: unknown view kind %d", int(kind))
	if img.layerCount <= 1 {
		return img.views[kind]
	}
	assertf(layer < img.layerCount, "vkframe: layer %d out of %d", layer, img.layerCount)
	return img.layerViews[layer][kind]
}

func (img *Image) Handle() vk.Image               { return img.handle }
func (img *Image) Width() uint32                  { return img.desc.Width }
func (img *Image) Height() uint32                 { return img.desc.Height }
func (img *Image) Format() vk.Format              { return img.desc.Format }
func (img *Image) UsageFlags() vk.ImageUsageFlags { return img.desc.Usage }
func (img *Image) MipLevels() uint32              { return img.mipLevels }
func (img *Image) LayerCount() uint32             { return img.layerCount }
func (img *Image) Extent() vk.Extent2D {
	return vk.Extent2D{Width: img.desc.Width, Height: img.desc.Height}
}

// MipWidth returns the width of a mip level, at least 1.
func (img *Image) MipWidth(level uint32) uint32 { return mipDimension(img.desc.Width, level) }

// MipHeight returns the height of a mip level, at least 1.
func (img *Image) MipHeight(level uint32) uint32 { return mipDimension(img.desc.Height, level) }

// Usage returns the tracked usage of the whole image.
func (img *Image) Usage() UsageKind { return img.usage }

// SetUsage records the usage the image was last transitioned to.
func (img *Image) SetUsage(u UsageKind) {
	img.usage = u
	img.presented = false
}

// Presented reports whether the image was last left in the present layout.
func (img *Image) Presented() bool { return img.presented }

func (img *Image) markPresented() {
	img.usage = UsageUnknown
	img.presented = true
}

// Borrowed reports whether the image memory belongs to someone else.
func (img *Image) Borrowed() bool { return img.alloc == nil }

func (img *Image) aspect() vk.ImageAspectFlags { return AspectMask(img.desc.Format) }

func (img *Image) fullRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     img.aspect(),
		BaseMipLevel:   0,
		LevelCount:     img.mipLevels,
		BaseArrayLayer: 0,
		LayerCount:     img.layerCount,
	}
}

// Move transfers ownership to a new Image and empties img.
func (img *Image) Move() *Image {
	moved := *img
	*img = Image{}
	return &moved
}

// Destroy waits for the device, then releases views and the allocation.
// Destroying an empty image is a no-op.
func (img *Image) Destroy() {
	if img.handle == nil {
		return
	}
	img.drv.DeviceWaitIdle(img.device)
	if img.alloc == nil {
		img.destroyViews()
		*img = Image{}
		return
	}
	img.release()
	*img = Image{}
}
