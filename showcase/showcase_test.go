package showcase

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/graph"
	"github.com/andewx/vkframe/internal/vkfake"
	"github.com/go-gl/mathgl/mgl32"
)

// writeShaders puts minimal SPIR-V headers under every name the showcases load.
func writeShaders(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	var header []byte
	for _, w := range []uint32{vkframe.SpirvMagic, 0x00010000, 0, 1, 0} {
		header = binary.LittleEndian.AppendUint32(header, w)
	}
	for _, name := range []string{
		"triangle.vert.spv", "triangle.frag.spv",
		"fullscreen.vert.spv", "mipmaps.frag.spv",
		"gradient.comp.spv",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), header, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestNames(t *testing.T) {
	names := Names()
	exp := []string{"compute", "mipmaps", "triangle"}
	if len(names) != len(exp) {
		t.Fatalf("expected %v; got %v", exp, names)
	}
	for i := range exp {
		if names[i] != exp[i] {
			t.Fatalf("expected %v; got %v", exp, names)
		}
	}
	if _, err := New("teapot", nil, Options{}); err == nil {
		t.Fatal("expected an error for an unknown showcase")
	}
}

func TestShowcasesRender(t *testing.T) {
	dir := writeShaders(t)
	type spec struct {
		name     string
		expOps   map[string]int
		expOrder []string
	}
	specs := []spec{
		{"triangle", map[string]int{"BeginRenderPass": 1, "Draw": 1, "PushConstants": 1}, []string{"triangle"}},
		{"mipmaps", map[string]int{"BeginRenderPass": 1, "Draw": 1, "BindDescriptorSets": 1}, []string{"mipmaps"}},
		{"compute", map[string]int{"Dispatch": 1, "BlitImage": 1, "BeginRenderPass": 0}, []string{"gradient", "blit"}},
	}
	for index, s := range specs {
		drv := vkfake.New()
		b, err := vkframe.NewBackend(drv, vkfake.NewWindow(drv, 320, 200), vkframe.DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		sc, err := New(s.name, b, Options{ShaderDir: dir})
		if err != nil {
			t.Fatal(err)
		}
		g := graph.New(b)
		if err := g.ImportImage(Backbuffer, b.SwapchainImage()); err != nil {
			t.Fatal(err)
		}
		if err := sc.Build(g); err != nil {
			t.Fatalf("[spec %d] build %s: %v", index, s.name, err)
		}
		if err := g.Compile(); err != nil {
			t.Fatalf("[spec %d] compile %s: %v", index, s.name, err)
		}
		passes := g.Passes()
		if len(passes) != len(s.expOrder) {
			t.Fatalf("[spec %d] expected passes %v; got %v", index, s.expOrder, passes)
		}
		for i := range passes {
			if passes[i] != s.expOrder[i] {
				t.Fatalf("[spec %d] expected passes %v; got %v", index, s.expOrder, passes)
			}
		}

		for i := 0; i < 3; i++ {
			frame, err := b.StartFrame()
			if err != nil {
				t.Fatal(err)
			}
			if err := g.ImportImage(Backbuffer, b.SwapchainImage()); err != nil {
				t.Fatal(err)
			}
			if err := sc.Update(frame, time.Duration(i)*100*time.Millisecond); err != nil {
				t.Fatalf("[spec %d] update: %v", index, err)
			}
			if err := g.Exec(frame); err != nil {
				t.Fatalf("[spec %d] exec: %v", index, err)
			}
			cmd := frame.Command().Handle()
			for op, n := range s.expOps {
				if got := drv.CountOps(cmd, op); got != n {
					t.Errorf("[spec %d] frame %d: expected %d %s; got %d", index, i, n, op, got)
				}
			}
			if err := b.EndFrame(); err != nil {
				t.Fatal(err)
			}
			if !b.SwapchainImage().Presented() {
				t.Errorf("[spec %d] frame %d: expected the backbuffer to be presentable", index, i)
			}
		}

		if err := b.WaitIdle(); err != nil {
			t.Fatal(err)
		}
		g.Destroy()
		sc.Destroy()
		b.Destroy()
		for _, kind := range []string{"Pipeline", "PipelineLayout", "ShaderModule", "Image", "Buffer", "Sampler", "RenderPass"} {
			if got := drv.Live(kind); got != 0 {
				t.Errorf("[spec %d] expected no live %s after teardown; got %d", index, kind, got)
			}
		}
	}
}

func TestShowcaseMissingShaders(t *testing.T) {
	drv := vkfake.New()
	b, err := vkframe.NewBackend(drv, vkfake.NewWindow(drv, 64, 64), vkframe.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()
	for _, name := range Names() {
		sc, err := New(name, b, Options{ShaderDir: t.TempDir()})
		if err != nil {
			t.Fatal(err)
		}
		g := graph.New(b)
		g.ImportImage(Backbuffer, b.SwapchainImage())
		if err := sc.Build(g); err == nil {
			t.Errorf("expected %s to fail without shaders", name)
		}
		g.Destroy()
		sc.Destroy()
	}
}

func TestPushBlock(t *testing.T) {
	p := pushBlock(nil).mat4(mgl32.Ident4()).float(1.5).uint(7)
	if len(p) != 16*4+4+4 {
		t.Fatalf("expected 72 bytes; got %d", len(p))
	}
	if binary.LittleEndian.Uint32(p[68:]) != 7 {
		t.Fatal("expected the uint to be packed last")
	}
}
