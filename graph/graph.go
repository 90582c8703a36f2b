// Package graph orders render, compute and transfer passes by the resources
// they declare and records them into a virtual frame.
//
// A pass is added with a setup function that runs immediately. Setup declares
// the attachments, reads and writes of the pass, builds its pipeline state
// and returns the closure that records the pass every frame:
//
//	g.AddRenderPass("triangle", func(b *graph.PassBuilder) (graph.ExecFunc, error) {
//		b.Attachment("backbuffer", vkframe.ColorAttachment(format, clear))
//		rp, err := b.RenderPass()
//		...
//		return func(frame *vkframe.VirtualFrame, reg *graph.Register) {
//			frame.Command().BindPipeline(pipeline)
//			frame.Command().Draw(3, 1, 0, 0)
//		}, nil
//	})
//
// Compile sorts the passes so that writers of a resource run before its
// readers, keeping declaration order where the resources leave it open.
package graph

import (
	"sort"
	"strings"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/log"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

var (
	ErrResourceNotFound  = errors.New("graph: resource not found")
	ErrDuplicateResource = errors.New("graph: duplicate resource")
	ErrDuplicatePass     = errors.New("graph: duplicate pass")
	ErrGraphCycle        = errors.New("graph: dependency cycle")
	ErrNotCompiled       = errors.New("graph: not compiled")
)

// Backend is what the graph needs from the device context. *vkframe.Backend
// implements it.
type Backend interface {
	CreateImage(desc vkframe.ImageDesc) (*vkframe.Image, error)
	CreateBuffer(size uint64, usage vk.BufferUsageFlags, mem vkframe.MemoryUsage) (*vkframe.Buffer, error)
	CreateRenderPass(attachments []vkframe.AttachmentDesc) (*vkframe.RenderPass, error)
	Framebuffers() *vkframe.FramebufferCache
}

// Graph holds pass and resource nodes for one render path.
type Graph struct {
	backend  Backend
	logger   log.Logger
	passes   []*passNode
	reg      *Register
	order    []*passNode
	compiled bool
}

// New returns an empty graph recording through backend.
func New(backend Backend) *Graph {
	return &Graph{
		backend: backend,
		logger:  log.New("graph"),
		reg:     newRegister(),
	}
}

// Register resolves every resource of the graph.
func (g *Graph) Register() *Register { return g.reg }

func (g *Graph) checkFree(name string) error {
	if _, ok := g.reg.nodes[name]; ok {
		return errors.Wrapf(ErrDuplicateResource, "%q", name)
	}
	return nil
}

func (g *Graph) addPass(name string, typ vkframe.PassType, setup SetupFunc) error {
	for _, p := range g.passes {
		if p.name == name {
			return errors.Wrapf(ErrDuplicatePass, "%q", name)
		}
	}
	pass := &passNode{name: name, index: len(g.passes), typ: typ}
	exec, err := setup(&PassBuilder{g: g, pass: pass})
	if err != nil {
		if pass.renderPass != nil {
			pass.renderPass.Destroy()
		}
		return errors.Wrapf(err, "graph: setup of pass %q", name)
	}
	if exec == nil {
		return errors.Newf("graph: setup of pass %q returned no execute function", name)
	}
	pass.exec = exec
	g.passes = append(g.passes, pass)
	g.compiled = false
	return nil
}

// AddRenderPass adds a graphics pass. setup runs before AddRenderPass returns.
func (g *Graph) AddRenderPass(name string, setup SetupFunc) error {
	return g.addPass(name, vkframe.PassGraphics, setup)
}

// AddComputePass adds a compute pass.
func (g *Graph) AddComputePass(name string, setup SetupFunc) error {
	return g.addPass(name, vkframe.PassCompute, setup)
}

// AddTransferPass adds a pass that only records copies and blits.
func (g *Graph) AddTransferPass(name string, setup SetupFunc) error {
	return g.addPass(name, vkframe.PassTransfer, setup)
}

// ImportResource registers a borrowed resource under name. Importing a name
// that is already imported rebinds it, which is how the swapchain image of
// each frame is handed in.
func (g *Graph) ImportResource(name string, res Resource) error {
	if n, ok := g.reg.nodes[name]; ok {
		if n.owner == Owned {
			return errors.Wrapf(ErrDuplicateResource, "%q is owned by the graph", name)
		}
		if n.res.Kind() != res.Kind() {
			return errors.Wrapf(ErrDuplicateResource, "%q rebound from %s to %s", name, n.res.Kind(), res.Kind())
		}
		n.res = res
		return nil
	}
	g.reg.nodes[name] = &resourceNode{name: name, res: res, owner: Imported}
	return nil
}

func (g *Graph) ImportImage(name string, img *vkframe.Image) error {
	return g.ImportResource(name, ImageResource(img))
}

func (g *Graph) ImportBuffer(name string, buf *vkframe.Buffer) error {
	return g.ImportResource(name, BufferResource(buf))
}

// ImportSceneTextures imports a set of loaded textures at once.
func (g *Graph) ImportSceneTextures(textures map[string]*vkframe.Image) error {
	names := make([]string, 0, len(textures))
	for n := range textures {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := g.ImportImage(n, textures[n]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) renderPassFor(p *passNode) (*vkframe.RenderPass, error) {
	if p.renderPass != nil {
		return p.renderPass, nil
	}
	if len(p.attachments) == 0 {
		return nil, errors.Newf("graph: render pass %q declares no attachments", p.name)
	}
	descs := make([]vkframe.AttachmentDesc, len(p.attachments))
	for i, a := range p.attachments {
		descs[i] = a.desc
	}
	rp, err := g.backend.CreateRenderPass(descs)
	if err != nil {
		return nil, errors.Wrapf(err, "graph: render pass of %q", p.name)
	}
	p.renderPass = rp
	return rp, nil
}

// Compile checks that every declared resource exists and orders the passes.
// Writers of a resource run before its readers and multiple writers keep
// their declaration order. Among passes the resources leave unordered,
// declaration order wins.
func (g *Graph) Compile() error {
	for _, p := range g.passes {
		for _, name := range p.resources() {
			if _, ok := g.reg.nodes[name]; !ok {
				return errors.Wrapf(ErrResourceNotFound, "%q used by pass %q", name, p.name)
			}
		}
		if p.typ == vkframe.PassGraphics {
			if _, err := g.renderPassFor(p); err != nil {
				return err
			}
		}
	}
	order, err := sortPasses(g.passes)
	if err != nil {
		return err
	}
	g.order = order
	g.compiled = true
	g.logger.Debugf("compiled %d passes: %s", len(order), strings.Join(g.Passes(), " -> "))
	return nil
}

// sortPasses is Kahn's algorithm picking the earliest declared ready pass.
func sortPasses(passes []*passNode) ([]*passNode, error) {
	n := len(passes)
	succ := make([][]int, n)
	indeg := make([]int, n)
	edge := make(map[[2]int]bool)
	addEdge := func(from, to int) {
		if from == to || edge[[2]int{from, to}] {
			return
		}
		edge[[2]int{from, to}] = true
		succ[from] = append(succ[from], to)
		indeg[to]++
	}

	var names []string
	seen := make(map[string]bool)
	for _, p := range passes {
		for _, r := range p.resources() {
			if !seen[r] {
				seen[r] = true
				names = append(names, r)
			}
		}
	}
	for _, r := range names {
		// Every write starts a new version of r. Readers see the version of
		// the last writer declared before them and the next writer waits for
		// them. Readers declared ahead of every writer see the final version.
		last := -1
		var early, readers []int
		for _, p := range passes {
			switch {
			case p.writing(r):
				if last >= 0 {
					addEdge(last, p.index)
				}
				for _, rd := range readers {
					addEdge(rd, p.index)
				}
				last, readers = p.index, nil
			case p.reading(r) && last < 0:
				early = append(early, p.index)
			case p.reading(r):
				addEdge(last, p.index)
				readers = append(readers, p.index)
			}
		}
		if last >= 0 {
			for _, rd := range early {
				addEdge(last, rd)
			}
		}
	}

	var ready []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]*passNode, 0, n)
	for len(ready) > 0 {
		sort.Ints(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, passes[next])
		for _, s := range succ[next] {
			indeg[s]--
			if indeg[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	if len(order) != n {
		var stuck []string
		for i := 0; i < n; i++ {
			if indeg[i] > 0 {
				stuck = append(stuck, passes[i].name)
			}
		}
		return nil, errors.Wrapf(ErrGraphCycle, "between passes %s", strings.Join(stuck, ", "))
	}
	return order, nil
}

// Passes returns pass names in execution order once compiled, declaration
// order before.
func (g *Graph) Passes() []string {
	src := g.passes
	if g.compiled {
		src = g.order
	}
	names := make([]string, len(src))
	for i, p := range src {
		names[i] = p.name
	}
	return names
}

// recoverLookup turns a failed Must lookup inside an execute closure into an
// error. Anything else keeps panicking.
func recoverLookup(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok && errors.Is(e, ErrResourceNotFound) {
			*err = e
			return
		}
		panic(v)
	}
}

// Exec records every pass, in compiled order, into frame's command buffer.
// Graphics passes are wrapped in their render pass with viewport and scissor
// set to the render area.
func (g *Graph) Exec(frame *vkframe.VirtualFrame) (err error) {
	if !g.compiled {
		return ErrNotCompiled
	}
	if !frame.Recording() {
		return errors.Wrapf(vkframe.ErrInvalidState, "graph: frame %d is not recording", frame.Index())
	}
	defer recoverLookup(&err)
	for _, p := range g.order {
		reg := g.reg.scoped(p.name, p.resources())
		if p.typ != vkframe.PassGraphics {
			p.exec(frame, reg)
			continue
		}
		if err := g.execRenderPass(frame, p, reg); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) execRenderPass(frame *vkframe.VirtualFrame, p *passNode, reg *Register) error {
	images := make([]*vkframe.Image, len(p.attachments))
	views := make([]vk.ImageView, len(p.attachments))
	for i, a := range p.attachments {
		img, err := reg.Image(a.name)
		if err != nil {
			return errors.Wrapf(err, "graph: attachment of pass %q", p.name)
		}
		images[i] = img
		views[i] = img.NativeView(vkframe.ViewNative)
	}
	extent := images[0].Extent()
	fb, err := g.backend.Framebuffers().Get(p.renderPass, views, extent)
	if err != nil {
		return errors.Wrapf(err, "graph: framebuffer of pass %q", p.name)
	}
	area := p.area
	if area.Extent.Width == 0 || area.Extent.Height == 0 {
		area = vk.Rect2D{Extent: extent}
	}
	cmd := frame.Command()
	cmd.BeginRenderPass(p.renderPass, fb, area, images)
	cmd.SetViewport(area)
	cmd.SetScissor(area)
	// Closed on the way out of a failed lookup too, so the frame can end.
	defer cmd.EndRenderPass()
	p.exec(frame, reg)
	return nil
}

// Destroy releases render passes, cached framebuffers and graph-owned
// resources. Imported resources are left alone. The device must be idle.
func (g *Graph) Destroy() {
	g.backend.Framebuffers().Clear()
	for _, p := range g.passes {
		if p.renderPass != nil {
			p.renderPass.Destroy()
			p.renderPass = nil
		}
	}
	names := make([]string, 0, len(g.reg.nodes))
	for n := range g.reg.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if node := g.reg.nodes[n]; node.owner == Owned {
			node.res.destroy()
		}
	}
	g.reg = newRegister()
	g.passes = nil
	g.order = nil
	g.compiled = false
}
