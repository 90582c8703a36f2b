package graph

import (
	"github.com/andewx/vkframe"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Access tags how a pass touches a resource.
type Access int

const (
	Read Access = iota
	Write
)

func (a Access) String() string {
	if a == Write {
		return "write"
	}
	return "read"
}

// ExecFunc records a pass into the frame's command buffer. It runs once per
// Exec. reg resolves only the resources the pass declared.
type ExecFunc func(frame *vkframe.VirtualFrame, reg *Register)

// SetupFunc declares a pass and returns its execute closure. It runs once,
// when the pass is added.
type SetupFunc func(b *PassBuilder) (ExecFunc, error)

type attachment struct {
	name string
	desc vkframe.AttachmentDesc
}

type passNode struct {
	name        string
	index       int
	typ         vkframe.PassType
	attachments []attachment
	area        vk.Rect2D
	reads       []string
	writes      []string
	exec        ExecFunc
	renderPass  *vkframe.RenderPass
}

func (p *passNode) resources() []string {
	out := append([]string(nil), p.reads...)
	for _, w := range p.writes {
		if !containsName(out, w) {
			out = append(out, w)
		}
	}
	return out
}

func (p *passNode) reading(name string) bool { return containsName(p.reads, name) }
func (p *passNode) writing(name string) bool { return containsName(p.writes, name) }

func containsName(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// PassBuilder is handed to a SetupFunc to declare what the pass touches.
type PassBuilder struct {
	g    *Graph
	pass *passNode
}

func (b *PassBuilder) Name() string { return b.pass.name }

func (b *PassBuilder) Type() vkframe.PassType { return b.pass.typ }

// Read declares that the pass reads name.
func (b *PassBuilder) Read(name string) *PassBuilder {
	if !containsName(b.pass.reads, name) {
		b.pass.reads = append(b.pass.reads, name)
	}
	return b
}

// Write declares that the pass writes name.
func (b *PassBuilder) Write(name string) *PassBuilder {
	if !containsName(b.pass.writes, name) {
		b.pass.writes = append(b.pass.writes, name)
	}
	return b
}

// Use declares access to name.
func (b *PassBuilder) Use(name string, access Access) *PassBuilder {
	if access == Write {
		return b.Write(name)
	}
	return b.Read(name)
}

// Attachment declares name as the next framebuffer attachment. Attachments
// that load their contents are read as well as written.
func (b *PassBuilder) Attachment(name string, desc vkframe.AttachmentDesc) *PassBuilder {
	if b.pass.typ != vkframe.PassGraphics {
		panic(errors.AssertionFailedf("graph: attachment %q on %s pass %q", name, b.pass.typ, b.pass.name))
	}
	if b.pass.renderPass != nil {
		panic(errors.AssertionFailedf("graph: attachment %q declared after the render pass of %q was built", name, b.pass.name))
	}
	b.pass.attachments = append(b.pass.attachments, attachment{name: name, desc: desc})
	if desc.LoadOp == vk.AttachmentLoadOpLoad {
		b.Read(name)
	}
	return b.Write(name)
}

// SetRenderArea fixes the render area. By default it covers the first
// attachment.
func (b *PassBuilder) SetRenderArea(area vk.Rect2D) *PassBuilder {
	b.pass.area = area
	return b
}

// RenderPass builds, once, the native render pass for the declared
// attachments so pipelines can be created against it.
func (b *PassBuilder) RenderPass() (*vkframe.RenderPass, error) {
	return b.g.renderPassFor(b.pass)
}

// CreateImage creates a graph-owned image registered under name. The pass
// is recorded as its writer.
func (b *PassBuilder) CreateImage(name string, desc vkframe.ImageDesc) (*vkframe.Image, error) {
	if err := b.g.checkFree(name); err != nil {
		return nil, err
	}
	img, err := b.g.backend.CreateImage(desc)
	if err != nil {
		return nil, errors.Wrapf(err, "graph: create image %q", name)
	}
	b.g.reg.nodes[name] = &resourceNode{name: name, res: ImageResource(img), owner: Owned}
	b.Write(name)
	return img, nil
}

// CreateBuffer creates a graph-owned buffer registered under name. The pass
// is recorded as its writer.
func (b *PassBuilder) CreateBuffer(name string, size uint64, usage vk.BufferUsageFlags, mem vkframe.MemoryUsage) (*vkframe.Buffer, error) {
	if err := b.g.checkFree(name); err != nil {
		return nil, err
	}
	buf, err := b.g.backend.CreateBuffer(size, usage, mem)
	if err != nil {
		return nil, errors.Wrapf(err, "graph: create buffer %q", name)
	}
	b.g.reg.nodes[name] = &resourceNode{name: name, res: BufferResource(buf), owner: Owned}
	b.Write(name)
	return buf, nil
}

// Register resolves resources already known to the graph, for setup code
// that needs them to build descriptor sets.
func (b *PassBuilder) Register() *Register { return b.g.reg }
