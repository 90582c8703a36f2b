package vkframe

import (
	"math"
	"testing"

	"github.com/andewx/vkframe/internal/vkfake"
	vk "github.com/vulkan-go/vulkan"
)

var testSpirv = []uint32{SpirvMagic, 0x00010000, 0, 1, 0}

// recordingFrame starts a frame and returns its command buffer.
func recordingFrame(t *testing.T, b *Backend) *CommandBuffer {
	t.Helper()
	frame, err := b.StartFrame()
	if err != nil {
		t.Fatal(err)
	}
	return frame.Command()
}

func newTestImage(t *testing.T, b *Backend, w, h uint32, opts ImageOptions) *Image {
	t.Helper()
	img, err := b.CreateImage(ImageDesc{
		Width:   w,
		Height:  h,
		Format:  vk.FormatR8g8b8a8Unorm,
		Usage:   vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit),
		Options: opts,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(img.Destroy)
	return img
}

func countBarriers(cmds []vkfake.Command) int {
	n := 0
	for _, c := range cmds {
		if c.Op == "PipelineBarrier" {
			n += len(c.ImageBarriers)
		}
	}
	return n
}

func TestCopyImageSkipsRedundantBarriers(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	src := newTestImage(t, b, 32, 32, 0)
	dst := newTestImage(t, b, 16, 64, 0)
	cmd := recordingFrame(t, b)

	cmd.CopyImage(src, dst)
	if got := countBarriers(drv.Commands(cmd.Handle())); got != 2 {
		t.Fatalf("expected 2 image barriers for the first copy; got %d", got)
	}
	cmd.CopyImage(src, dst)
	if got := countBarriers(drv.Commands(cmd.Handle())); got != 2 {
		t.Fatalf("expected no new barriers for the second copy; got %d total", got)
	}
	if src.Usage() != UsageTransferSrc || dst.Usage() != UsageTransferDst {
		t.Fatalf("expected TransferSrc and TransferDst; got %s and %s", src.Usage(), dst.Usage())
	}
	if drv.CountOps(cmd.Handle(), "CopyImage") != 2 {
		t.Fatal("expected two copies to be recorded")
	}
	if err := b.EndFrame(); err != nil {
		t.Fatal(err)
	}
}

func TestPushConstantsFillWholeBlock(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	compute, err := b.CreateComputePipeline(ComputePipelineDesc{Compute: testSpirv})
	if err != nil {
		t.Fatal(err)
	}
	defer compute.Destroy()

	type spec struct {
		pipeline  *Pipeline
		data      []byte
		expStages vk.ShaderStageFlags
	}
	specs := []spec{
		{compute, []byte{1, 2, 3, 4}, vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{&Pipeline{passType: PassGraphics}, []byte{9}, vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)},
		{&Pipeline{passType: PassTransfer}, nil, vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)},
	}
	cmd := recordingFrame(t, b)
	for index, s := range specs {
		cmd.BindPipeline(s.pipeline)
		cmd.PushConstants(s.data)
		cmds := drv.Commands(cmd.Handle())
		push := cmds[len(cmds)-1]
		if push.Op != "PushConstants" {
			t.Fatalf("[spec %d] expected PushConstants; got %s", index, push.Op)
		}
		if len(push.PushData) != MaxPushConstantSize {
			t.Errorf("[spec %d] expected %d bytes pushed; got %d", index, MaxPushConstantSize, len(push.PushData))
		}
		if push.PushStages != s.expStages {
			t.Errorf("[spec %d] expected stages %#x; got %#x", index, s.expStages, push.PushStages)
		}
		for i, v := range s.data {
			if push.PushData[i] != v {
				t.Errorf("[spec %d] expected byte %d to be %d; got %d", index, i, v, push.PushData[i])
			}
		}
		for i := len(s.data); i < MaxPushConstantSize; i++ {
			if push.PushData[i] != 0 {
				t.Errorf("[spec %d] expected zero padding at %d", index, i)
				break
			}
		}
	}
	if err := b.EndFrame(); err != nil {
		t.Fatal(err)
	}
}

func TestPushConstantsPanics(t *testing.T) {
	b, _, _ := newTestBackend(t, DefaultConfig())
	cmd := recordingFrame(t, b)
	defer b.EndFrame()

	type spec struct {
		bind bool
		size int
	}
	specs := []spec{
		{false, 4},
		{true, MaxPushConstantSize + 1},
	}
	for index, s := range specs {
		if s.bind {
			cmd.BindPipeline(&Pipeline{passType: PassGraphics})
		}
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("[spec %d] expected a panic", index)
				}
			}()
			cmd.PushConstants(make([]byte, s.size))
		}()
	}
}

func TestTransferTrackedSkipsImagesInPlace(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	a := newTestImage(t, b, 8, 8, 0)
	c := newTestImage(t, b, 8, 8, 0)
	c.SetUsage(UsageShaderRead)
	cmd := recordingFrame(t, b)

	cmd.TransferTracked([]*Image{a, c}, UsageShaderRead)
	cmds := drv.Commands(cmd.Handle())
	if len(cmds) != 1 || len(cmds[0].ImageBarriers) != 1 {
		t.Fatalf("expected one barrier for the image not yet in place; got %v", cmds)
	}
	if cmds[0].ImageBarriers[0].Image != a.Handle() {
		t.Fatal("expected the barrier to target the untracked image")
	}

	cmd.TransferTracked([]*Image{a, c}, UsageShaderRead)
	if got := len(drv.Commands(cmd.Handle())); got != 1 {
		t.Fatalf("expected no barrier when every image is in place; got %d commands", got)
	}
	if err := b.EndFrame(); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateMipLevels(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	img := newTestImage(t, b, 64, 16, ImageMipmaps)
	cmd := recordingFrame(t, b)

	cmd.GenerateMipLevels(img, vk.FilterLinear)
	if got, want := drv.CountOps(cmd.Handle(), "BlitImage"), int(img.MipLevels()-1); got != want {
		t.Fatalf("expected %d blits; got %d", want, got)
	}
	cmds := drv.Commands(cmd.Handle())
	var level uint32
	for _, c := range cmds {
		if c.Op != "BlitImage" {
			continue
		}
		blit := c.Blits[0]
		if blit.SrcSubresource.MipLevel != level || blit.DstSubresource.MipLevel != level+1 {
			t.Fatalf("expected blit %d -> %d; got %d -> %d", level, level+1,
				blit.SrcSubresource.MipLevel, blit.DstSubresource.MipLevel)
		}
		if want := int32(img.MipWidth(level + 1)); blit.DstOffsets[1].X != want {
			t.Fatalf("expected level %d width %d; got %d", level+1, want, blit.DstOffsets[1].X)
		}
		level++
	}
	last := cmds[len(cmds)-1]
	if last.Op != "PipelineBarrier" || last.ImageBarriers[0].NewLayout != vk.ImageLayoutTransferDstOptimal {
		t.Fatal("expected a final barrier leaving every level in transfer-dst")
	}
	if img.Usage() != UsageTransferDst {
		t.Fatalf("expected usage TransferDst; got %s", img.Usage())
	}
	if err := b.EndFrame(); err != nil {
		t.Fatal(err)
	}
}

func TestRenderPassBarriersAndPresent(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	load := ColorAttachment(b.SurfaceFormat(), [4]float32{})
	load.LoadOp = vk.AttachmentLoadOpLoad
	load.Present = true
	rp, err := b.CreateRenderPass([]AttachmentDesc{load})
	if err != nil {
		t.Fatal(err)
	}
	defer rp.Destroy()

	cmd := recordingFrame(t, b)
	img := b.SwapchainImage()
	area := vk.Rect2D{Extent: b.Extent()}
	fb, err := b.Framebuffers().Get(rp, []vk.ImageView{img.NativeView(ViewNative)}, b.Extent())
	if err != nil {
		t.Fatal(err)
	}
	cmd.BeginRenderPass(rp, fb, area, []*Image{img})
	cmd.EndRenderPass()
	if err := b.EndFrame(); err != nil {
		t.Fatal(err)
	}

	cmds := drv.Commands(cmd.Handle())
	ops := make([]string, len(cmds))
	for i, c := range cmds {
		ops[i] = c.Op
	}
	exp := []string{"PipelineBarrier", "BeginRenderPass", "EndRenderPass"}
	if len(ops) != len(exp) {
		t.Fatalf("expected ops %v; got %v", exp, ops)
	}
	for i := range exp {
		if ops[i] != exp[i] {
			t.Fatalf("expected ops %v; got %v", exp, ops)
		}
	}
	if !img.Presented() {
		t.Fatal("expected the render pass to leave the image presented")
	}
}

func TestCopyBufferRange(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	src, err := b.CreateBuffer(16, uniformUsage, MemoryUsageHostOnly)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Destroy()
	dst, err := b.CreateBuffer(16, uniformUsage, MemoryUsageHostOnly)
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Destroy()
	cmd := recordingFrame(t, b)
	defer b.EndFrame()

	type spec struct {
		srcOffset, dstOffset, size uint64
		panics                     bool
	}
	specs := []spec{
		{0, 0, 16, false},
		{8, 0, 8, false},
		{0, 9, 8, true},
		{math.MaxUint64 - 7, 0, 16, true},
		{0, math.MaxUint64, 1, true},
	}
	copies := 0
	for index, s := range specs {
		panicked := func() (p bool) {
			defer func() { p = recover() != nil }()
			cmd.CopyBuffer(src, dst, s.srcOffset, s.dstOffset, s.size)
			return false
		}()
		if panicked != s.panics {
			t.Errorf("[spec %d] expected panic=%t; got %t", index, s.panics, panicked)
		}
		if !s.panics {
			copies++
		}
	}
	if got := drv.CountOps(cmd.Handle(), "CopyBuffer"); got != copies {
		t.Fatalf("expected %d recorded copies; got %d", copies, got)
	}
}

func TestBeginClearsOpenRenderPass(t *testing.T) {
	b, _, _ := newTestBackend(t, DefaultConfig())
	rp, err := b.CreateRenderPass([]AttachmentDesc{ColorAttachment(b.SurfaceFormat(), [4]float32{})})
	if err != nil {
		t.Fatal(err)
	}
	defer rp.Destroy()

	cmd := recordingFrame(t, b)
	img := b.SwapchainImage()
	fb, err := b.Framebuffers().Get(rp, []vk.ImageView{img.NativeView(ViewNative)}, b.Extent())
	if err != nil {
		t.Fatal(err)
	}
	cmd.BeginRenderPass(rp, fb, vk.Rect2D{Extent: b.Extent()}, []*Image{img})
	if err := cmd.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := b.EndFrame(); err != nil {
		t.Fatalf("expected a restarted command buffer to end cleanly; got %v", err)
	}
}
