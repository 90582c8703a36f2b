package vkframe

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// VertexLayout describes vertex buffer bindings and attributes. The zero
// value means the vertex shader generates its own positions.
type VertexLayout struct {
	Bindings   []vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription
}

// GraphicsPipelineDesc is everything needed to build a graphics pipeline for
// one subpass. Viewport and scissor are always dynamic.
type GraphicsPipelineDesc struct {
	Vertex       []uint32
	Fragment     []uint32
	SetLayouts   []vk.DescriptorSetLayout
	RenderPass   *RenderPass
	VertexLayout VertexLayout
	Topology     vk.PrimitiveTopology
	CullMode     vk.CullModeFlagBits
	DepthTest    bool
	Blend        bool
}

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	Compute    []uint32
	SetLayouts []vk.DescriptorSetLayout
}

// Pipeline is a native pipeline plus its layout. Every layout declares one
// MaxPushConstantSize push constant range for the stages of its pass type.
type Pipeline struct {
	drv      Driver
	device   vk.Device
	handle   vk.Pipeline
	layout   vk.PipelineLayout
	passType PassType
}

func (p *Pipeline) Handle() vk.Pipeline       { return p.handle }
func (p *Pipeline) Layout() vk.PipelineLayout { return p.layout }
func (p *Pipeline) PassType() PassType        { return p.passType }

// BindPoint returns the bind point matching the pass type.
func (p *Pipeline) BindPoint() vk.PipelineBindPoint {
	if p.passType == PassCompute {
		return vk.PipelineBindPointCompute
	}
	return vk.PipelineBindPointGraphics
}

// Destroy releases the pipeline and its layout.
func (p *Pipeline) Destroy() {
	if p.handle == nil {
		return
	}
	p.drv.DestroyPipeline(p.device, p.handle)
	p.drv.DestroyPipelineLayout(p.device, p.layout)
	p.handle = nil
	p.layout = nil
}

func newPipelineLayout(drv Driver, device vk.Device, sets []vk.DescriptorSetLayout, t PassType) (vk.PipelineLayout, error) {
	layout, ret := drv.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(sets)),
		PSetLayouts:            sets,
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: pushStages(t),
			Offset:     0,
			Size:       MaxPushConstantSize,
		}},
	})
	return layout, newError(ret, "create pipeline layout")
}

func shaderStage(stage vk.ShaderStageFlagBits, module vk.ShaderModule) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: module,
		PName:  safeString("main"),
	}
}

// NewGraphicsPipeline builds a graphics pipeline. Shader modules only live
// for the duration of the call.
func NewGraphicsPipeline(drv Driver, device vk.Device, desc GraphicsPipelineDesc) (*Pipeline, error) {
	assertf(desc.RenderPass != nil, "vkframe: graphics pipeline without a render pass")
	vert, err := NewShaderModule(drv, device, desc.Vertex)
	if err != nil {
		return nil, errors.Wrap(err, "vertex stage")
	}
	defer drv.DestroyShaderModule(device, vert)
	frag, err := NewShaderModule(drv, device, desc.Fragment)
	if err != nil {
		return nil, errors.Wrap(err, "fragment stage")
	}
	defer drv.DestroyShaderModule(device, frag)

	layout, err := newPipelineLayout(drv, device, desc.SetLayouts, PassGraphics)
	if err != nil {
		return nil, err
	}

	topology := desc.Topology
	if topology == 0 {
		topology = vk.PrimitiveTopologyTriangleList
	}
	writeMask := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
		vk.ColorComponentBBit | vk.ColorComponentABit)
	var blends []vk.PipelineColorBlendAttachmentState
	for _, a := range desc.RenderPass.attachments {
		if a.Usage != UsageColorAttachment {
			continue
		}
		state := vk.PipelineColorBlendAttachmentState{ColorWriteMask: writeMask}
		if desc.Blend {
			state.BlendEnable = vk.True
			state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
			state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			state.ColorBlendOp = vk.BlendOpAdd
			state.SrcAlphaBlendFactor = vk.BlendFactorOne
			state.DstAlphaBlendFactor = vk.BlendFactorZero
			state.AlphaBlendOp = vk.BlendOpAdd
		}
		blends = append(blends, state)
	}
	depth := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vk.CompareOpLessOrEqual,
	}
	if desc.DepthTest {
		depth.DepthTestEnable = vk.True
		depth.DepthWriteEnable = vk.True
	}
	dynamic := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}

	handle, ret := drv.CreateGraphicsPipeline(device, &vk.GraphicsPipelineCreateInfo{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: 2,
		PStages: []vk.PipelineShaderStageCreateInfo{
			shaderStage(vk.ShaderStageVertexBit, vert),
			shaderStage(vk.ShaderStageFragmentBit, frag),
		},
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(desc.VertexLayout.Bindings)),
			PVertexBindingDescriptions:      desc.VertexLayout.Bindings,
			VertexAttributeDescriptionCount: uint32(len(desc.VertexLayout.Attributes)),
			PVertexAttributeDescriptions:    desc.VertexLayout.Attributes,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: topology,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(desc.CullMode),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1.0,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			MinSampleShading:     1.0,
		},
		PDepthStencilState: &depth,
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: uint32(len(blends)),
			PAttachments:    blends,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamic)),
			PDynamicStates:    dynamic,
		},
		Layout:     layout,
		RenderPass: desc.RenderPass.handle,
		Subpass:    0,
	})
	if err := newError(ret, "create graphics pipeline"); err != nil {
		drv.DestroyPipelineLayout(device, layout)
		return nil, err
	}
	return &Pipeline{drv: drv, device: device, handle: handle, layout: layout, passType: PassGraphics}, nil
}

// NewComputePipeline builds a compute pipeline.
func NewComputePipeline(drv Driver, device vk.Device, desc ComputePipelineDesc) (*Pipeline, error) {
	module, err := NewShaderModule(drv, device, desc.Compute)
	if err != nil {
		return nil, errors.Wrap(err, "compute stage")
	}
	defer drv.DestroyShaderModule(device, module)
	layout, err := newPipelineLayout(drv, device, desc.SetLayouts, PassCompute)
	if err != nil {
		return nil, err
	}
	handle, ret := drv.CreateComputePipeline(device, &vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  shaderStage(vk.ShaderStageComputeBit, module),
		Layout: layout,
	})
	if err := newError(ret, "create compute pipeline"); err != nil {
		drv.DestroyPipelineLayout(device, layout)
		return nil, err
	}
	return &Pipeline{drv: drv, device: device, handle: handle, layout: layout, passType: PassCompute}, nil
}
