package vkframe

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestCalculateMipLevelCount(t *testing.T) {
	type spec struct {
		w, h    uint32
		mipmaps bool
		exp     uint32
	}
	specs := []spec{
		{1024, 512, true, 11},
		{512, 1024, true, 11},
		{256, 256, true, 9},
		{1, 1, true, 1},
		{3, 5, true, 3},
		{1024, 512, false, 1},
		{0, 0, true, 1},
	}
	for index, s := range specs {
		if got := CalculateMipLevelCount(s.w, s.h, s.mipmaps); got != s.exp {
			t.Errorf("[spec %d] expected %d levels for %dx%d; got %d", index, s.exp, s.w, s.h, got)
		}
	}
}

func TestMipDimensions(t *testing.T) {
	b, _, _ := newTestBackend(t, DefaultConfig())
	img, err := b.CreateImage(ImageDesc{
		Width:   256,
		Height:  64,
		Format:  vk.FormatR8g8b8a8Unorm,
		Usage:   vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		Options: ImageMipmaps,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer img.Destroy()

	if img.MipLevels() != 9 {
		t.Fatalf("expected 9 levels; got %d", img.MipLevels())
	}
	expW := []uint32{256, 128, 64, 32, 16, 8, 4, 2, 1}
	expH := []uint32{64, 32, 16, 8, 4, 2, 1, 1, 1}
	for level := uint32(0); level < img.MipLevels(); level++ {
		if img.MipWidth(level) != expW[level] || img.MipHeight(level) != expH[level] {
			t.Errorf("[level %d] expected %dx%d; got %dx%d", level, expW[level], expH[level], img.MipWidth(level), img.MipHeight(level))
		}
	}

	for _, level := range []uint32{31, 32, 33, 1 << 20} {
		if img.MipWidth(level) != 1 || img.MipHeight(level) != 1 {
			t.Errorf("[level %d] expected 1x1; got %dx%d", level, img.MipWidth(level), img.MipHeight(level))
		}
	}
	if got := mipDimension(1<<31, 31); got != 1 {
		t.Errorf("expected the widest level 31 to be 1; got %d", got)
	}

	transfer := vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit)
	if img.UsageFlags()&transfer != transfer {
		t.Fatal("expected mipmapped images to carry transfer usage for level generation")
	}
}

func TestAspectMask(t *testing.T) {
	type spec struct {
		format vk.Format
		exp    vk.ImageAspectFlags
	}
	depth := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	depthStencil := vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	specs := []spec{
		{vk.FormatR8g8b8a8Unorm, vk.ImageAspectFlags(vk.ImageAspectColorBit)},
		{vk.FormatD32Sfloat, depth},
		{vk.FormatD16Unorm, depth},
		{vk.FormatD24UnormS8Uint, depthStencil},
		{vk.FormatD32SfloatS8Uint, depthStencil},
	}
	for index, s := range specs {
		if got := AspectMask(s.format); got != s.exp {
			t.Errorf("[spec %d] expected aspect %d for format %d; got %d", index, s.exp, s.format, got)
		}
	}
}

func TestImageViews(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	before := drv.Live("ImageView")

	color, err := b.CreateImage(ImageDesc{Width: 16, Height: 16, Format: vk.FormatR8g8b8a8Unorm,
		Usage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)})
	if err != nil {
		t.Fatal(err)
	}
	if color.NativeView(ViewNative) == nil {
		t.Fatal("expected a native view")
	}
	if color.NativeView(ViewDepth) != nil {
		t.Fatal("expected no depth view on a color image")
	}

	depth, err := b.CreateImage(ImageDesc{Width: 16, Height: 16, Format: vk.FormatD24UnormS8Uint,
		Usage: vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)})
	if err != nil {
		t.Fatal(err)
	}
	if depth.NativeView(ViewDepth) == nil || depth.NativeView(ViewStencil) == nil {
		t.Fatal("expected depth and stencil views on a depth-stencil image")
	}

	cube, err := b.CreateImage(ImageDesc{Width: 16, Height: 16, Format: vk.FormatR8g8b8a8Unorm,
		Usage: vk.ImageUsageFlags(vk.ImageUsageSampledBit), Options: ImageCubemap})
	if err != nil {
		t.Fatal(err)
	}
	if cube.LayerCount() != 6 {
		t.Fatalf("expected 6 layers; got %d", cube.LayerCount())
	}
	for layer := uint32(0); layer < 6; layer++ {
		if cube.LayerView(ViewNative, layer) == nil {
			t.Fatalf("expected a view for layer %d", layer)
		}
	}

	color.Destroy()
	depth.Destroy()
	cube.Destroy()
	if got := drv.Live("ImageView"); got != before {
		t.Fatalf("expected views to be released; %d live, want %d", got, before)
	}
}

func TestUnknownViewKindPanics(t *testing.T) {
	b, _, _ := newTestBackend(t, DefaultConfig())
	img, err := b.CreateImage(ImageDesc{Width: 4, Height: 4, Format: vk.FormatR8g8b8a8Unorm,
		Usage: vk.ImageUsageFlags(vk.ImageUsageSampledBit)})
	if err != nil {
		t.Fatal(err)
	}
	defer img.Destroy()
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an unknown view kind")
		}
	}()
	img.NativeView(ViewKind(42))
}

func TestImageMoveAndDestroy(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	img, err := b.CreateImage(ImageDesc{Width: 8, Height: 8, Format: vk.FormatR8g8b8a8Unorm,
		Usage: vk.ImageUsageFlags(vk.ImageUsageSampledBit)})
	if err != nil {
		t.Fatal(err)
	}
	handle := img.Handle()

	moved := img.Move()
	if img.Handle() != nil {
		t.Fatal("expected the source image to be empty after Move")
	}
	if moved.Handle() != handle {
		t.Fatal("expected the moved image to own the handle")
	}
	img.Destroy()
	if got := drv.Live("Image"); got != 1 {
		t.Fatalf("expected destroying an empty image to be a no-op; %d live", got)
	}
	moved.Destroy()
	moved.Destroy()
	if got := drv.Live("Image"); got != 0 {
		t.Fatalf("expected the image to be released; %d live", got)
	}
	if got := drv.Live("Memory"); got != 0 {
		t.Fatalf("expected the allocation to be released; %d live", got)
	}
}

func TestSwapchainImagesAreBorrowed(t *testing.T) {
	b, _, _ := newTestBackend(t, DefaultConfig())
	img := b.SwapchainImage()
	if !img.Borrowed() {
		t.Fatal("expected swapchain images to be borrowed")
	}
	if img.Extent() != b.Extent() {
		t.Fatalf("expected swapchain image extent %v; got %v", b.Extent(), img.Extent())
	}
}

func TestReallocateRebuildsViews(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	img, err := b.CreateImage(ImageDesc{Width: 64, Height: 64, Format: vk.FormatR8g8b8a8Unorm,
		Usage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit), Options: ImageMipmaps})
	if err != nil {
		t.Fatal(err)
	}
	defer img.Destroy()
	rp, err := b.CreateRenderPass([]AttachmentDesc{ColorAttachment(vk.FormatR8g8b8a8Unorm, [4]float32{})})
	if err != nil {
		t.Fatal(err)
	}
	defer rp.Destroy()

	swap := b.SwapchainImage()
	if _, err := b.Framebuffers().Get(rp, []vk.ImageView{swap.NativeView(ViewNative)}, b.Extent()); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Framebuffers().Get(rp, []vk.ImageView{img.NativeView(ViewNative)}, img.Extent()); err != nil {
		t.Fatal(err)
	}
	oldHandle, oldView := img.Handle(), img.NativeView(ViewNative)
	views, images, memory := drv.Live("ImageView"), drv.Live("Image"), drv.Live("Memory")
	stats := b.Allocator().Stats()

	if err := img.Reallocate(128, 32); err != nil {
		t.Fatal(err)
	}
	if img.Handle() == oldHandle || img.NativeView(ViewNative) == oldView || img.NativeView(ViewNative) == nil {
		t.Fatal("expected a new image and view set")
	}
	if drv.Live("ImageView") != views || drv.Live("Image") != images || drv.Live("Memory") != memory {
		t.Fatalf("expected the old image, views and memory to be destroyed; got %d images, %d views, %d allocations",
			drv.Live("Image"), drv.Live("ImageView"), drv.Live("Memory"))
	}
	if got := b.Allocator().Stats(); got.Allocations != stats.Allocations {
		t.Fatalf("expected %d live allocations; got %d", stats.Allocations, got.Allocations)
	}
	if img.Width() != 128 || img.Height() != 32 || img.MipLevels() != 8 {
		t.Fatalf("expected 128x32 with 8 levels; got %dx%d with %d", img.Width(), img.Height(), img.MipLevels())
	}
	if b.Framebuffers().Len() != 1 || drv.Live("Framebuffer") != 1 {
		t.Fatalf("expected only the swapchain framebuffer to stay cached; got %d", b.Framebuffers().Len())
	}

	if _, err := b.Framebuffers().Get(rp, []vk.ImageView{img.NativeView(ViewNative)}, img.Extent()); err != nil {
		t.Fatal(err)
	}
	img.Destroy()
	if b.Framebuffers().Len() != 1 {
		t.Fatalf("expected Destroy to drop the image's framebuffer; got %d cached", b.Framebuffers().Len())
	}
}
