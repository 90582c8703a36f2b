package vkframe

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// UsageKind is the intended use of an image at a point in the frame. Each kind
// maps to exactly one image layout, access mask and pipeline stage.
type UsageKind int

const (
	UsageUnknown UsageKind = iota
	UsageTransferSrc
	UsageTransferDst
	UsageShaderRead
	UsageStorage
	UsageColorAttachment
	UsageDepthStencilAttachment
	UsageInputAttachment
	UsageFragmentShadingRateAttachment
)

// Values from VK_KHR_fragment_shading_rate, not exported by the bindings.
const (
	imageLayoutFragmentShadingRateAttachment = vk.ImageLayout(1000164003)
	accessFragmentShadingRateAttachmentRead  = vk.AccessFlags(0x00800000)
	pipelineStageFragmentShadingRate         = vk.PipelineStageFlags(0x00400000)
)

type usageMapping struct {
	layout vk.ImageLayout
	access vk.AccessFlags
	stage  vk.PipelineStageFlags
	name   string
}

var usageTable = [...]usageMapping{
	UsageUnknown: {
		layout: vk.ImageLayoutUndefined,
		access: 0,
		stage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		name:   "Unknown",
	},
	UsageTransferSrc: {
		layout: vk.ImageLayoutTransferSrcOptimal,
		access: vk.AccessFlags(vk.AccessTransferReadBit),
		stage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		name:   "TransferSrc",
	},
	UsageTransferDst: {
		layout: vk.ImageLayoutTransferDstOptimal,
		access: vk.AccessFlags(vk.AccessTransferWriteBit),
		stage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		name:   "TransferDst",
	},
	UsageShaderRead: {
		layout: vk.ImageLayoutShaderReadOnlyOptimal,
		access: vk.AccessFlags(vk.AccessShaderReadBit),
		stage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit | vk.PipelineStageComputeShaderBit),
		name:   "ShaderRead",
	},
	UsageStorage: {
		layout: vk.ImageLayoutGeneral,
		access: vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit),
		stage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit | vk.PipelineStageComputeShaderBit),
		name:   "Storage",
	},
	UsageColorAttachment: {
		layout: vk.ImageLayoutColorAttachmentOptimal,
		access: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
		stage:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		name:   "ColorAttachment",
	},
	UsageDepthStencilAttachment: {
		layout: vk.ImageLayoutDepthStencilAttachmentOptimal,
		access: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
		stage:  vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit),
		name:   "DepthStencilAttachment",
	},
	UsageInputAttachment: {
		layout: vk.ImageLayoutShaderReadOnlyOptimal,
		access: vk.AccessFlags(vk.AccessInputAttachmentReadBit),
		stage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		name:   "InputAttachment",
	},
	UsageFragmentShadingRateAttachment: {
		layout: imageLayoutFragmentShadingRateAttachment,
		access: accessFragmentShadingRateAttachmentRead,
		stage:  pipelineStageFragmentShadingRate,
		name:   "FragmentShadingRateAttachment",
	},
}

func (u UsageKind) mapping() usageMapping {
	assertf(u >= UsageUnknown && int(u) < len(usageTable), "vkframe: unknown usage kind %d", int(u))
	return usageTable[u]
}

// Layout returns the image layout for u.
func (u UsageKind) Layout() vk.ImageLayout { return u.mapping().layout }

// Access returns the access mask for u.
func (u UsageKind) Access() vk.AccessFlags { return u.mapping().access }

// Stage returns the pipeline stage for u.
func (u UsageKind) Stage() vk.PipelineStageFlags { return u.mapping().stage }

func (u UsageKind) String() string {
	if u < UsageUnknown || int(u) >= len(usageTable) {
		return fmt.Sprintf("UsageKind(%d)", int(u))
	}
	return usageTable[u].name
}
