package showcase

import (
	"image/color"
	"math"
	"time"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/graph"
	"github.com/andewx/vkframe/internal/texload"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

const textureName = "texture"

// mipmaps draws a fullscreen triangle sampling a mipmapped texture, sweeping
// the sampled level over time.
type mipmaps struct {
	backend  *vkframe.Backend
	opts     Options
	texture  *vkframe.Image
	sampler  vk.Sampler
	layout   vk.DescriptorSetLayout
	set      vk.DescriptorSet
	pipeline *vkframe.Pipeline
	lod      float32
}

func newMipmaps(b *vkframe.Backend, opts Options) Showcase {
	return &mipmaps{backend: b, opts: opts}
}

func (m *mipmaps) Name() string { return "mipmaps" }

func (m *mipmaps) loadTexture() (vkframe.ImageData, error) {
	if m.opts.Texture == "" {
		return texload.Checkerboard(512, 16,
			color.RGBA{R: 230, G: 230, B: 230, A: 255},
			color.RGBA{R: 40, G: 60, B: 160, A: 255}), nil
	}
	data, err := texload.Load(texload.Options{}, m.opts.Texture)
	if err != nil {
		return vkframe.ImageData{}, err
	}
	return data[0], nil
}

func (m *mipmaps) createTexture() error {
	data, err := m.loadTexture()
	if err != nil {
		return err
	}
	m.texture, err = m.backend.CreateImage(vkframe.ImageDesc{
		Width:       data.Width,
		Height:      data.Height,
		Format:      data.Format,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit),
		MemoryUsage: vkframe.MemoryUsageDeviceLocal,
		Options:     vkframe.ImageMipmaps,
	})
	if err != nil {
		return err
	}
	if err := m.backend.UploadImage(m.texture, data); err != nil {
		return errors.Wrap(err, "showcase: upload texture")
	}
	if m.sampler, err = m.backend.CreateSampler(vk.FilterLinear); err != nil {
		return err
	}
	m.layout, err = m.backend.LayoutCache().CreateLayout([]vkframe.DescriptorBinding{{
		Binding: 0,
		Type:    vk.DescriptorTypeCombinedImageSampler,
		Count:   1,
		Stages:  vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}})
	if err != nil {
		return err
	}
	if m.set, err = m.backend.Descriptors().Allocate(m.layout); err != nil {
		return err
	}
	var w vkframe.DescriptorWriter
	w.WriteImage(m.set, 0, vk.DescriptorTypeCombinedImageSampler, m.texture, m.sampler, vkframe.UsageShaderRead).
		Update(m.backend.Driver(), m.backend.Device())
	return nil
}

func (m *mipmaps) Build(g *graph.Graph) error {
	if err := m.createTexture(); err != nil {
		return err
	}
	if err := g.ImportImage(textureName, m.texture); err != nil {
		return err
	}
	return g.AddRenderPass("mipmaps", func(pb *graph.PassBuilder) (graph.ExecFunc, error) {
		pb.Read(textureName)
		pb.Attachment(Backbuffer, presentAttachment(m.backend, m.opts.Clear))
		rp, err := pb.RenderPass()
		if err != nil {
			return nil, err
		}
		vert, err := loadShader(m.opts.ShaderDir, "fullscreen.vert.spv")
		if err != nil {
			return nil, err
		}
		frag, err := loadShader(m.opts.ShaderDir, "mipmaps.frag.spv")
		if err != nil {
			return nil, err
		}
		m.pipeline, err = m.backend.CreateGraphicsPipeline(vkframe.GraphicsPipelineDesc{
			Vertex:     vert,
			Fragment:   frag,
			SetLayouts: []vk.DescriptorSetLayout{m.layout},
			RenderPass: rp,
			Topology:   vk.PrimitiveTopologyTriangleList,
			CullMode:   vk.CullModeNone,
		})
		if err != nil {
			return nil, err
		}
		return func(frame *vkframe.VirtualFrame, reg *graph.Register) {
			tex := reg.MustImage(textureName)
			cmd := frame.Command()
			cmd.BindPipeline(m.pipeline)
			cmd.BindDescriptorSets(0, m.set)
			cmd.PushConstants(pushBlock(nil).float(m.lod).uint(tex.MipLevels()))
			cmd.Draw(3, 1, 0, 0)
		}, nil
	})
}

// Update sweeps the level of detail up and down once every few seconds.
func (m *mipmaps) Update(frame *vkframe.VirtualFrame, elapsed time.Duration) error {
	top := float64(m.texture.MipLevels() - 1)
	phase := math.Mod(elapsed.Seconds()/4, 2)
	if phase > 1 {
		phase = 2 - phase
	}
	m.lod = float32(phase * top)
	return nil
}

func (m *mipmaps) Destroy() {
	if m.pipeline != nil {
		m.pipeline.Destroy()
	}
	if m.sampler != nil {
		m.backend.DestroySampler(m.sampler)
	}
	if m.texture != nil {
		m.texture.Destroy()
	}
	*m = mipmaps{backend: m.backend, opts: m.opts}
}
