package showcase

import (
	"time"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/graph"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// triangle spins a shader-generated triangle. The vertex shader reads the
// model-view-projection matrix from push constants.
type triangle struct {
	backend  *vkframe.Backend
	opts     Options
	pipeline *vkframe.Pipeline
	angle    float32
}

func newTriangle(b *vkframe.Backend, opts Options) Showcase {
	return &triangle{backend: b, opts: opts}
}

func (t *triangle) Name() string { return "triangle" }

func (t *triangle) Build(g *graph.Graph) error {
	return g.AddRenderPass("triangle", func(pb *graph.PassBuilder) (graph.ExecFunc, error) {
		pb.Attachment(Backbuffer, presentAttachment(t.backend, t.opts.Clear))
		rp, err := pb.RenderPass()
		if err != nil {
			return nil, err
		}
		vert, err := loadShader(t.opts.ShaderDir, "triangle.vert.spv")
		if err != nil {
			return nil, err
		}
		frag, err := loadShader(t.opts.ShaderDir, "triangle.frag.spv")
		if err != nil {
			return nil, err
		}
		t.pipeline, err = t.backend.CreateGraphicsPipeline(vkframe.GraphicsPipelineDesc{
			Vertex:     vert,
			Fragment:   frag,
			RenderPass: rp,
			Topology:   vk.PrimitiveTopologyTriangleList,
			CullMode:   vk.CullModeNone,
		})
		if err != nil {
			return nil, err
		}
		return func(frame *vkframe.VirtualFrame, reg *graph.Register) {
			cmd := frame.Command()
			cmd.BindPipeline(t.pipeline)
			cmd.PushConstants(pushBlock(nil).mat4(t.mvp()))
			cmd.Draw(3, 1, 0, 0)
		}, nil
	})
}

func (t *triangle) mvp() mgl32.Mat4 {
	ext := t.backend.Extent()
	aspect := float32(ext.Width) / float32(max(ext.Height, 1))
	proj := vkframe.Perspective(mgl32.DegToRad(45), aspect, 0.1, 10)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 3}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view).Mul4(mgl32.HomogRotate3DY(t.angle))
}

func (t *triangle) Update(frame *vkframe.VirtualFrame, elapsed time.Duration) error {
	t.angle = float32(elapsed.Seconds())
	return nil
}

func (t *triangle) Destroy() {
	if t.pipeline != nil {
		t.pipeline.Destroy()
		t.pipeline = nil
	}
}
