package graph

import (
	"strings"
	"testing"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/internal/vkfake"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

const backbuffer = "backbuffer"

func newTestBackend(t *testing.T) (*vkframe.Backend, *vkfake.Driver) {
	t.Helper()
	drv := vkfake.New()
	b, err := vkframe.NewBackend(drv, vkfake.NewWindow(drv, 320, 240), vkframe.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Destroy)
	return b, drv
}

func newTestGraph(t *testing.T, b *vkframe.Backend) *Graph {
	t.Helper()
	g := New(b)
	t.Cleanup(g.Destroy)
	return g
}

func testBuffer(t *testing.T, b *vkframe.Backend) *vkframe.Buffer {
	t.Helper()
	buf, err := b.CreateBuffer(64, vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit), vkframe.MemoryUsageDeviceLocal)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(buf.Destroy)
	return buf
}

// noop returns a setup declaring reads and writes with an empty execute closure.
func noop(reads, writes []string, ran *[]string) SetupFunc {
	return func(b *PassBuilder) (ExecFunc, error) {
		for _, r := range reads {
			b.Read(r)
		}
		for _, w := range writes {
			b.Write(w)
		}
		name := b.Name()
		return func(*vkframe.VirtualFrame, *Register) {
			if ran != nil {
				*ran = append(*ran, name)
			}
		}, nil
	}
}

func TestSinglePassFrame(t *testing.T) {
	b, drv := newTestBackend(t)
	g := newTestGraph(t, b)
	if err := g.ImportImage(backbuffer, b.SwapchainImage()); err != nil {
		t.Fatal(err)
	}
	attachment := vkframe.ColorAttachment(b.SurfaceFormat(), [4]float32{0, 0, 0, 1})
	attachment.Present = true
	err := g.AddRenderPass("triangle", func(pb *PassBuilder) (ExecFunc, error) {
		pb.Attachment(backbuffer, attachment)
		if _, err := pb.RenderPass(); err != nil {
			return nil, err
		}
		return func(frame *vkframe.VirtualFrame, reg *Register) {
			frame.Command().Draw(3, 1, 0, 0)
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}

	frame, err := b.StartFrame()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.ImportImage(backbuffer, b.SwapchainImage()); err != nil {
		t.Fatal(err)
	}
	if err := g.Exec(frame); err != nil {
		t.Fatal(err)
	}
	if err := b.EndFrame(); err != nil {
		t.Fatal(err)
	}

	cmd := frame.Command().Handle()
	for op, exp := range map[string]int{"BeginRenderPass": 1, "EndRenderPass": 1, "Draw": 1, "SetViewport": 1, "SetScissor": 1} {
		if got := drv.CountOps(cmd, op); got != exp {
			t.Errorf("expected %d %s; got %d", exp, op, got)
		}
	}
	area := vk.Rect2D{Extent: b.Extent()}
	for _, c := range drv.Commands(cmd) {
		switch c.Op {
		case "BeginRenderPass":
			if c.RenderArea != area {
				t.Errorf("expected render area %v; got %v", area, c.RenderArea)
			}
			if c.ClearValues != 1 {
				t.Errorf("expected one clear value; got %d", c.ClearValues)
			}
		case "SetViewport":
			vp := c.Viewports[0]
			if vp.Width != float32(area.Extent.Width) || vp.Height != float32(area.Extent.Height) || vp.MaxDepth != 1 {
				t.Errorf("expected viewport to cover %v; got %+v", area, vp)
			}
		case "SetScissor":
			if c.Scissors[0] != area {
				t.Errorf("expected scissor %v; got %v", area, c.Scissors[0])
			}
		case "PipelineBarrier":
			t.Errorf("expected the render pass to leave the image presentable without a barrier")
		}
	}
	if b.Framebuffers().Len() != 1 {
		t.Fatalf("expected one cached framebuffer; got %d", b.Framebuffers().Len())
	}
}

func TestCompileOrdersWritersBeforeReaders(t *testing.T) {
	b, _ := newTestBackend(t)
	g := newTestGraph(t, b)
	for _, name := range []string{"a", "b", "c"} {
		if err := g.ImportBuffer(name, testBuffer(t, b)); err != nil {
			t.Fatal(err)
		}
	}
	var ran []string
	type spec struct {
		name          string
		reads, writes []string
	}
	specs := []spec{
		{"post", []string{"b"}, []string{"c"}},
		{"shade", []string{"a"}, []string{"b"}},
		{"gbuffer", nil, []string{"a"}},
		{"ui", nil, nil},
		{"present", []string{"c"}, nil},
	}
	for _, s := range specs {
		if err := g.AddComputePass(s.name, noop(s.reads, s.writes, &ran)); err != nil {
			t.Fatal(err)
		}
	}
	if got := strings.Join(g.Passes(), ","); got != "post,shade,gbuffer,ui,present" {
		t.Fatalf("expected declaration order before compile; got %s", got)
	}
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	exp := "gbuffer,shade,post,ui,present"
	if got := strings.Join(g.Passes(), ","); got != exp {
		t.Fatalf("expected order %s; got %s", exp, got)
	}

	frame, err := b.StartFrame()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Exec(frame); err != nil {
		t.Fatal(err)
	}
	if err := b.EndFrame(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(ran, ","); got != exp {
		t.Fatalf("expected passes to run as %s; got %s", exp, got)
	}
}

func TestMultipleWritersKeepDeclarationOrder(t *testing.T) {
	b, _ := newTestBackend(t)
	g := newTestGraph(t, b)
	if err := g.ImportBuffer("r", testBuffer(t, b)); err != nil {
		t.Fatal(err)
	}
	g.AddTransferPass("consume", noop([]string{"r"}, nil, nil))
	g.AddTransferPass("first", noop(nil, []string{"r"}, nil))
	g.AddTransferPass("second", noop([]string{"r"}, []string{"r"}, nil))
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(g.Passes(), ","); got != "first,second,consume" {
		t.Fatalf("expected first,second,consume; got %s", got)
	}
}

func TestCompileKeepsVersionsOfReusedResources(t *testing.T) {
	b, _ := newTestBackend(t)
	g := newTestGraph(t, b)
	for _, name := range []string{"tmp", "out"} {
		if err := g.ImportBuffer(name, testBuffer(t, b)); err != nil {
			t.Fatal(err)
		}
	}
	type spec struct {
		name          string
		reads, writes []string
	}
	specs := []spec{
		{"blur1", nil, []string{"tmp"}},
		{"consume1", []string{"tmp"}, []string{"out"}},
		{"blur2", nil, []string{"tmp"}},
		{"consume2", []string{"tmp", "out"}, nil},
		{"late", []string{"tmp"}, nil},
	}
	for _, s := range specs {
		if err := g.AddComputePass(s.name, noop(s.reads, s.writes, nil)); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	exp := "blur1,consume1,blur2,consume2,late"
	if got := strings.Join(g.Passes(), ","); got != exp {
		t.Fatalf("expected order %s; got %s", exp, got)
	}
}

func TestWriteAfterReadWaitsForReaders(t *testing.T) {
	b, _ := newTestBackend(t)
	g := newTestGraph(t, b)
	for _, name := range []string{"tmp", "other"} {
		if err := g.ImportBuffer(name, testBuffer(t, b)); err != nil {
			t.Fatal(err)
		}
	}
	// read is held back by a writer declared after it, overwrite must still
	// wait for read to finish with the first version of tmp.
	g.AddComputePass("produce", noop(nil, []string{"tmp"}, nil))
	g.AddComputePass("read", noop([]string{"tmp", "other"}, nil, nil))
	g.AddComputePass("overwrite", noop(nil, []string{"tmp"}, nil))
	g.AddComputePass("late", noop(nil, []string{"other"}, nil))
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	exp := "produce,late,read,overwrite"
	if got := strings.Join(g.Passes(), ","); got != exp {
		t.Fatalf("expected order %s; got %s", exp, got)
	}
}

func TestCompileDetectsCycle(t *testing.T) {
	b, _ := newTestBackend(t)
	g := newTestGraph(t, b)
	g.ImportBuffer("x", testBuffer(t, b))
	g.ImportBuffer("y", testBuffer(t, b))
	g.AddComputePass("ping", noop([]string{"x"}, []string{"y"}, nil))
	g.AddComputePass("pong", noop([]string{"y"}, []string{"x"}, nil))
	g.AddComputePass("free", noop(nil, nil, nil))

	err := g.Compile()
	if !errors.Is(err, ErrGraphCycle) {
		t.Fatalf("expected ErrGraphCycle; got %v", err)
	}
	if !strings.Contains(err.Error(), "ping") || !strings.Contains(err.Error(), "pong") {
		t.Fatalf("expected the cycle to name both passes; got %v", err)
	}
	if strings.Contains(err.Error(), "free") {
		t.Fatalf("expected the independent pass not to be reported; got %v", err)
	}
}

func TestCompileRequiresDeclaredResources(t *testing.T) {
	b, _ := newTestBackend(t)
	g := newTestGraph(t, b)
	g.AddComputePass("blur", noop([]string{"missing"}, nil, nil))
	if err := g.Compile(); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound; got %v", err)
	}
}

func TestExecPreconditions(t *testing.T) {
	b, _ := newTestBackend(t)
	g := newTestGraph(t, b)
	g.AddComputePass("work", noop(nil, nil, nil))

	frame, err := b.StartFrame()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Exec(frame); !errors.Is(err, ErrNotCompiled) {
		t.Fatalf("expected ErrNotCompiled; got %v", err)
	}
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if err := b.EndFrame(); err != nil {
		t.Fatal(err)
	}
	if err := g.Exec(frame); !errors.Is(err, vkframe.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for a frame that is not recording; got %v", err)
	}

	// Adding a pass invalidates the compiled order.
	g.AddComputePass("more", noop(nil, nil, nil))
	frame, err = b.StartFrame()
	if err != nil {
		t.Fatal(err)
	}
	defer b.EndFrame()
	if err := g.Exec(frame); !errors.Is(err, ErrNotCompiled) {
		t.Fatalf("expected ErrNotCompiled after adding a pass; got %v", err)
	}
}

func TestDuplicates(t *testing.T) {
	b, _ := newTestBackend(t)
	g := newTestGraph(t, b)
	if err := g.AddComputePass("p", noop(nil, nil, nil)); err != nil {
		t.Fatal(err)
	}
	if err := g.AddRenderPass("p", noop(nil, nil, nil)); !errors.Is(err, ErrDuplicatePass) {
		t.Fatalf("expected ErrDuplicatePass; got %v", err)
	}

	err := g.AddComputePass("owner", func(pb *PassBuilder) (ExecFunc, error) {
		if _, err := pb.CreateBuffer("scratch", 16, vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit), vkframe.MemoryUsageDeviceLocal); err != nil {
			return nil, err
		}
		if _, err := pb.CreateBuffer("scratch", 16, vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit), vkframe.MemoryUsageDeviceLocal); !errors.Is(err, ErrDuplicateResource) {
			t.Errorf("expected ErrDuplicateResource creating scratch twice; got %v", err)
		}
		return func(*vkframe.VirtualFrame, *Register) {}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.ImportBuffer("scratch", testBuffer(t, b)); !errors.Is(err, ErrDuplicateResource) {
		t.Fatalf("expected importing over an owned resource to fail; got %v", err)
	}

	if err := g.ImportBuffer("input", testBuffer(t, b)); err != nil {
		t.Fatal(err)
	}
	other := testBuffer(t, b)
	if err := g.ImportBuffer("input", other); err != nil {
		t.Fatalf("expected an imported resource to be rebound; got %v", err)
	}
	if buf, _ := g.Register().Buffer("input"); buf != other {
		t.Fatal("expected the register to resolve the rebound buffer")
	}
	if err := g.ImportImage("input", b.SwapchainImage()); !errors.Is(err, ErrDuplicateResource) {
		t.Fatalf("expected rebinding a buffer to an image to fail; got %v", err)
	}
}

func TestSetupFailureIsReported(t *testing.T) {
	b, drv := newTestBackend(t)
	g := newTestGraph(t, b)
	g.ImportImage(backbuffer, b.SwapchainImage())
	boom := errors.New("boom")
	err := g.AddRenderPass("broken", func(pb *PassBuilder) (ExecFunc, error) {
		pb.Attachment(backbuffer, vkframe.ColorAttachment(b.SurfaceFormat(), [4]float32{}))
		if _, err := pb.RenderPass(); err != nil {
			return nil, err
		}
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the setup error; got %v", err)
	}
	if got := drv.Live("RenderPass"); got != 0 {
		t.Fatalf("expected the render pass of a failed setup to be released; got %d", got)
	}
	if len(g.Passes()) != 0 {
		t.Fatal("expected the failed pass not to be added")
	}

	if err := g.AddComputePass("nil", func(*PassBuilder) (ExecFunc, error) { return nil, nil }); err == nil {
		t.Fatal("expected an error for a setup without execute function")
	}
}

func TestExecReturnsLookupFailures(t *testing.T) {
	b, _ := newTestBackend(t)
	g := newTestGraph(t, b)
	g.ImportBuffer("declared", testBuffer(t, b))
	g.ImportBuffer("hidden", testBuffer(t, b))
	err := g.AddComputePass("sneaky", func(pb *PassBuilder) (ExecFunc, error) {
		pb.Read("declared")
		return func(frame *vkframe.VirtualFrame, reg *Register) {
			reg.MustBuffer("declared")
			reg.MustBuffer("hidden")
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	frame, err := b.StartFrame()
	if err != nil {
		t.Fatal(err)
	}
	defer b.EndFrame()
	if err := g.Exec(frame); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound for an undeclared resource; got %v", err)
	}
}

func TestDestroyReleasesOwnedResources(t *testing.T) {
	b, drv := newTestBackend(t)
	g := New(b)
	imported := testBuffer(t, b)
	g.ImportBuffer("imported", imported)
	g.ImportImage(backbuffer, b.SwapchainImage())

	var owned *vkframe.Image
	err := g.AddRenderPass("offscreen", func(pb *PassBuilder) (ExecFunc, error) {
		img, err := pb.CreateImage("color", vkframe.ImageDesc{
			Width: 64, Height: 64, Format: vk.FormatR8g8b8a8Unorm,
			Usage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit),
		})
		if err != nil {
			return nil, err
		}
		owned = img
		pb.Read("imported")
		pb.Attachment("color", vkframe.ColorAttachment(vk.FormatR8g8b8a8Unorm, [4]float32{}))
		return func(*vkframe.VirtualFrame, *Register) {}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if drv.Live("RenderPass") != 1 {
		t.Fatal("expected Compile to build the render pass")
	}
	frame, err := b.StartFrame()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Exec(frame); err != nil {
		t.Fatal(err)
	}
	if err := b.EndFrame(); err != nil {
		t.Fatal(err)
	}
	if err := b.WaitIdle(); err != nil {
		t.Fatal(err)
	}

	g.Destroy()
	if owned.Handle() != nil {
		t.Fatal("expected the graph-owned image to be destroyed")
	}
	if imported.Handle() == nil {
		t.Fatal("expected the imported buffer to survive")
	}
	if drv.Live("RenderPass") != 0 || drv.Live("Framebuffer") != 0 {
		t.Fatal("expected render passes and framebuffers to be released")
	}
	if len(g.Register().Names()) != 0 {
		t.Fatal("expected an empty register")
	}
}

func TestFailedLookupClosesRenderPass(t *testing.T) {
	b, drv := newTestBackend(t)
	g := newTestGraph(t, b)
	if err := g.ImportImage(backbuffer, b.SwapchainImage()); err != nil {
		t.Fatal(err)
	}
	attachment := vkframe.ColorAttachment(b.SurfaceFormat(), [4]float32{})
	attachment.Present = true
	err := g.AddRenderPass("p", func(pb *PassBuilder) (ExecFunc, error) {
		pb.Attachment(backbuffer, attachment)
		return func(frame *vkframe.VirtualFrame, reg *Register) {
			reg.MustBuffer("missing")
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		frame, err := b.StartFrame()
		if err != nil {
			t.Fatal(err)
		}
		g.ImportImage(backbuffer, b.SwapchainImage())
		if err := g.Exec(frame); !errors.Is(err, ErrResourceNotFound) {
			t.Fatalf("[frame %d] expected ErrResourceNotFound; got %v", i, err)
		}
		cmd := frame.Command().Handle()
		if drv.CountOps(cmd, "BeginRenderPass") != 1 || drv.CountOps(cmd, "EndRenderPass") != 1 {
			t.Fatalf("[frame %d] expected the render pass to be closed", i)
		}
		if err := b.EndFrame(); err != nil {
			t.Fatalf("[frame %d] expected the frame to end cleanly; got %v", i, err)
		}
	}
}
