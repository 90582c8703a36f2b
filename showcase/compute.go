package showcase

import (
	"time"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/graph"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

const (
	gradientName  = "gradient"
	computeGroup  = 8
	paramsSize    = 16
	gradientUsage = vk.ImageUsageStorageBit | vk.ImageUsageTransferSrcBit
)

// compute fills a storage image from a compute shader and blits it onto the
// backbuffer. Shader parameters live in a per-frame uniform buffer and the
// descriptor set is allocated from the frame's transient pools.
type compute struct {
	backend  *vkframe.Backend
	opts     Options
	layout   vk.DescriptorSetLayout
	pipeline *vkframe.Pipeline
	params   *vkframe.PerFrameBuffer
	image    *vkframe.Image
	sets     []vk.DescriptorSet
}

func newCompute(b *vkframe.Backend, opts Options) Showcase {
	return &compute{backend: b, opts: opts}
}

func (c *compute) Name() string { return "compute" }

func (c *compute) Build(g *graph.Graph) error {
	if c.backend.SwapchainImage().UsageFlags()&vk.ImageUsageFlags(vk.ImageUsageTransferDstBit) == 0 {
		return errors.New("showcase: swapchain images cannot be blitted to on this surface")
	}
	var err error
	c.layout, err = c.backend.LayoutCache().CreateLayout([]vkframe.DescriptorBinding{
		{Binding: 0, Type: vk.DescriptorTypeStorageImage, Count: 1, Stages: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Stages: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	})
	if err != nil {
		return err
	}
	c.params, err = c.backend.CreatePerFrameBuffer(paramsSize, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
	if err != nil {
		return err
	}
	c.sets = make([]vk.DescriptorSet, c.backend.FramesInFlight())

	err = g.AddComputePass("gradient", func(pb *graph.PassBuilder) (graph.ExecFunc, error) {
		ext := c.backend.Extent()
		var err error
		c.image, err = pb.CreateImage(gradientName, vkframe.ImageDesc{
			Width:       ext.Width,
			Height:      ext.Height,
			Format:      vk.FormatR8g8b8a8Unorm,
			Usage:       vk.ImageUsageFlags(gradientUsage),
			MemoryUsage: vkframe.MemoryUsageDeviceLocal,
		})
		if err != nil {
			return nil, err
		}
		code, err := loadShader(c.opts.ShaderDir, "gradient.comp.spv")
		if err != nil {
			return nil, err
		}
		c.pipeline, err = c.backend.CreateComputePipeline(vkframe.ComputePipelineDesc{
			Compute:    code,
			SetLayouts: []vk.DescriptorSetLayout{c.layout},
		})
		if err != nil {
			return nil, err
		}
		return func(frame *vkframe.VirtualFrame, reg *graph.Register) {
			img := reg.MustImage(gradientName)
			cmd := frame.Command()
			cmd.TransferTracked([]*vkframe.Image{img}, vkframe.UsageStorage)
			cmd.BindPipeline(c.pipeline)
			cmd.BindDescriptorSets(0, c.sets[frame.Index()])
			cmd.PushConstants(pushBlock(nil).uint(img.Width()).uint(img.Height()))
			cmd.Dispatch((img.Width()+computeGroup-1)/computeGroup, (img.Height()+computeGroup-1)/computeGroup, 1)
		}, nil
	})
	if err != nil {
		return err
	}

	return g.AddTransferPass("blit", func(pb *graph.PassBuilder) (graph.ExecFunc, error) {
		pb.Read(gradientName).Write(Backbuffer)
		return func(frame *vkframe.VirtualFrame, reg *graph.Register) {
			frame.Command().BlitImage(reg.MustImage(gradientName), reg.MustImage(Backbuffer), vk.FilterLinear)
		}, nil
	})
}

// Update writes this frame's parameters and binds them, with the gradient
// image, in a set from the frame's pools. StartFrame resets those pools so
// the set is rebuilt every frame.
func (c *compute) Update(frame *vkframe.VirtualFrame, elapsed time.Duration) error {
	if err := c.params.CopyData(frame, pushBlock(nil).float(float32(elapsed.Seconds())), 0); err != nil {
		return err
	}
	set, err := frame.Descriptors().Allocate(c.layout)
	if err != nil {
		return errors.Wrap(err, "showcase: gradient descriptors")
	}
	var w vkframe.DescriptorWriter
	w.WriteImage(set, 0, vk.DescriptorTypeStorageImage, c.image, nil, vkframe.UsageStorage).
		WriteBuffer(set, 1, vk.DescriptorTypeUniformBuffer, c.params.For(frame), 0, paramsSize).
		Update(c.backend.Driver(), c.backend.Device())
	c.sets[frame.Index()] = set
	return nil
}

func (c *compute) Destroy() {
	if c.pipeline != nil {
		c.pipeline.Destroy()
	}
	if c.params != nil {
		c.params.Destroy()
	}
	*c = compute{backend: c.backend, opts: c.opts}
}
