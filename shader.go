package vkframe

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// SpirvMagic is the first word of every SPIR-V module.
const SpirvMagic = 0x07230203

// ReadSpirvFile reads a compiled SPIR-V module from path.
func ReadSpirvFile(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", path)
	}
	code, err := ParseSpirv(data)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}
	return code, nil
}

// ParseSpirv converts a SPIR-V blob into words. Blobs that are empty, not a
// whole number of words or missing the magic number are rejected. Big-endian
// modules are byte swapped.
func ParseSpirv(data []byte) ([]uint32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidSpirv, "length %d is not a multiple of 4", len(data))
	}
	var order binary.ByteOrder = binary.LittleEndian
	switch {
	case binary.LittleEndian.Uint32(data) == SpirvMagic:
	case binary.BigEndian.Uint32(data) == SpirvMagic:
		order = binary.BigEndian
	default:
		return nil, errors.Wrapf(ErrInvalidSpirv, "bad magic %#08x", binary.LittleEndian.Uint32(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = order.Uint32(data[i*4:])
	}
	return words, nil
}

// NewShaderModule creates a shader module from SPIR-V words.
func NewShaderModule(drv Driver, device vk.Device, code []uint32) (vk.ShaderModule, error) {
	if len(code) == 0 || code[0] != SpirvMagic {
		return nil, errors.Wrap(ErrInvalidSpirv, "shader module")
	}
	module, ret := drv.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	})
	if err := newError(ret, "create shader module"); err != nil {
		return nil, err
	}
	return module, nil
}
