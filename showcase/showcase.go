// Package showcase holds small render paths that drive the backend and the
// render graph end to end.
package showcase

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/graph"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// Backbuffer is the name under which the current swapchain image is imported
// into the graph every frame.
const Backbuffer = "backbuffer"

// Options configure a showcase.
type Options struct {
	ShaderDir string
	// Texture is an image file for the mipmaps showcase. Empty uses a
	// generated checkerboard.
	Texture string
	Clear   [4]float32
}

// Showcase is one render path.
type Showcase interface {
	Name() string
	// Build adds the passes to g. The backbuffer is imported by the caller.
	Build(g *graph.Graph) error
	// Update runs after StartFrame and before the graph executes.
	Update(frame *vkframe.VirtualFrame, elapsed time.Duration) error
	// Destroy releases what the showcase created outside the graph. The
	// device must be idle.
	Destroy()
}

type factory func(b *vkframe.Backend, opts Options) Showcase

var registry = map[string]factory{
	"triangle": newTriangle,
	"mipmaps":  newMipmaps,
	"compute":  newCompute,
}

// Names lists the available showcases.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New returns the showcase called name.
func New(name string, b *vkframe.Backend, opts Options) (Showcase, error) {
	f, ok := registry[name]
	if !ok {
		return nil, errors.Newf("showcase: unknown showcase %q, have %v", name, Names())
	}
	return f(b, opts), nil
}

func loadShader(dir, name string) ([]uint32, error) {
	code, err := vkframe.ReadSpirvFile(filepath.Join(dir, name))
	if err != nil {
		return nil, errors.Wrapf(err, "showcase: shader %s", name)
	}
	return code, nil
}

// pushBlock packs floats and matrices little endian, in order.
type pushBlock []byte

func (p pushBlock) mat4(m mgl32.Mat4) pushBlock {
	for _, f := range m {
		p = p.float(f)
	}
	return p
}

func (p pushBlock) float(f float32) pushBlock {
	return binary.LittleEndian.AppendUint32(p, math.Float32bits(f))
}

func (p pushBlock) uint(u uint32) pushBlock {
	return binary.LittleEndian.AppendUint32(p, u)
}

func presentAttachment(b *vkframe.Backend, clear [4]float32) vkframe.AttachmentDesc {
	a := vkframe.ColorAttachment(b.SurfaceFormat(), clear)
	a.Present = true
	return a
}
