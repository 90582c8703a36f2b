package vkframe

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := vk.ColorSpaceSrgbNonlinear
	type spec struct {
		formats []vk.SurfaceFormat
		exp     vk.Format
	}
	specs := []spec{
		{[]vk.SurfaceFormat{{Format: vk.FormatUndefined, ColorSpace: srgb}}, vk.FormatB8g8r8a8Unorm},
		{[]vk.SurfaceFormat{{Format: vk.FormatR16g16b16a16Sfloat, ColorSpace: srgb}, {Format: vk.FormatR8g8b8a8Unorm, ColorSpace: srgb}}, vk.FormatR8g8b8a8Unorm},
		{[]vk.SurfaceFormat{{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: srgb}, {Format: vk.FormatB8g8r8a8Unorm, ColorSpace: srgb}}, vk.FormatB8g8r8a8Unorm},
		{[]vk.SurfaceFormat{{Format: vk.FormatA2b10g10r10UnormPack32, ColorSpace: srgb}}, vk.FormatA2b10g10r10UnormPack32},
	}
	for index, s := range specs {
		if got := chooseSurfaceFormat(s.formats); got.Format != s.exp {
			t.Errorf("[spec %d] expected format %d; got %d", index, s.exp, got.Format)
		}
	}
}

func TestChoosePresentMode(t *testing.T) {
	type spec struct {
		modes     []vk.PresentMode
		preferred vk.PresentMode
		exp       vk.PresentMode
	}
	specs := []spec{
		{[]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}, vk.PresentModeMailbox, vk.PresentModeMailbox},
		{[]vk.PresentMode{vk.PresentModeFifo}, vk.PresentModeMailbox, vk.PresentModeFifo},
		{[]vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo}, vk.PresentModeImmediate, vk.PresentModeImmediate},
		{nil, vk.PresentModeFifoRelaxed, vk.PresentModeFifo},
	}
	for index, s := range specs {
		if got := choosePresentMode(s.modes, s.preferred); got != s.exp {
			t.Errorf("[spec %d] expected mode %d; got %d", index, s.exp, got)
		}
	}
}

func TestChooseExtent(t *testing.T) {
	limits := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: vk.MaxUint32, Height: vk.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 16, Height: 16},
		MaxImageExtent: vk.Extent2D{Width: 2048, Height: 2048},
	}
	fixed := limits
	fixed.CurrentExtent = vk.Extent2D{Width: 800, Height: 600}

	type spec struct {
		caps vk.SurfaceCapabilities
		w, h int
		exp  vk.Extent2D
	}
	specs := []spec{
		{fixed, 1920, 1080, vk.Extent2D{Width: 800, Height: 600}},
		{limits, 1280, 720, vk.Extent2D{Width: 1280, Height: 720}},
		{limits, 4096, 8, vk.Extent2D{Width: 2048, Height: 16}},
	}
	for index, s := range specs {
		if got := chooseExtent(s.caps, s.w, s.h); got != s.exp {
			t.Errorf("[spec %d] expected %dx%d; got %dx%d", index, s.exp.Width, s.exp.Height, got.Width, got.Height)
		}
	}
}

func TestChooseImageCount(t *testing.T) {
	type spec struct {
		min, max, desired uint32
		exp               uint32
	}
	specs := []spec{
		{2, 3, 3, 3},
		{2, 3, 8, 3},
		{2, 3, 1, 2},
		// A zero maximum means unbounded.
		{2, 0, 8, 8},
	}
	for index, s := range specs {
		caps := vk.SurfaceCapabilities{MinImageCount: s.min, MaxImageCount: s.max}
		if got := chooseImageCount(caps, s.desired); got != s.exp {
			t.Errorf("[spec %d] expected %d images; got %d", index, s.exp, got)
		}
	}
}

func TestChooseTransformAndAlpha(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		SupportedTransforms:     vk.SurfaceTransformFlags(vk.SurfaceTransformRotate90Bit),
		CurrentTransform:        vk.SurfaceTransformRotate90Bit,
		SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaInheritBit | vk.CompositeAlphaPreMultipliedBit),
	}
	if got := choosePreTransform(caps); got != vk.SurfaceTransformRotate90Bit {
		t.Fatalf("expected the current transform without identity support; got %d", got)
	}
	caps.SupportedTransforms |= vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit)
	if got := choosePreTransform(caps); got != vk.SurfaceTransformIdentityBit {
		t.Fatalf("expected identity when supported; got %d", got)
	}
	if got := chooseCompositeAlpha(caps); got != vk.CompositeAlphaPreMultipliedBit {
		t.Fatalf("expected pre-multiplied alpha; got %d", got)
	}
}

func TestSwapchainUsesSurfaceImageCount(t *testing.T) {
	b, _, _ := newTestBackend(t, DefaultConfig())
	if got := b.Swapchain().ImageCount(); got != 3 {
		t.Fatalf("expected 3 swapchain images; got %d", got)
	}
	if b.PresentMode() != vk.PresentModeFifo {
		t.Fatalf("expected FIFO; got %d", b.PresentMode())
	}

	cfg := DefaultConfig()
	cfg.PresentMode = vk.PresentModeImmediate
	b, _, _ = newTestBackend(t, cfg)
	if b.PresentMode() != vk.PresentModeFifo {
		t.Fatalf("expected an unsupported mode to fall back to FIFO; got %d", b.PresentMode())
	}
}
