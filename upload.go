package vkframe

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// FormatTexelSize returns the size in bytes of one texel of an uncompressed
// color format, or 0 when the format is not supported for uploads.
func FormatTexelSize(format vk.Format) uint32 {
	switch format {
	case vk.FormatR8Unorm, vk.FormatR8Srgb:
		return 1
	case vk.FormatR8g8Unorm:
		return 2
	case vk.FormatR8g8b8a8Unorm, vk.FormatR8g8b8a8Srgb, vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb,
		vk.FormatR32Sfloat, vk.FormatR16g16Sfloat:
		return 4
	case vk.FormatR16g16b16a16Sfloat, vk.FormatR32g32Sfloat:
		return 8
	case vk.FormatR32g32b32a32Sfloat:
		return 16
	}
	return 0
}

// levelSize is the byte size of one mip level over every layer.
func levelSize(img *Image, level uint32) uint64 {
	return uint64(img.MipWidth(level)) * uint64(img.MipHeight(level)) *
		uint64(FormatTexelSize(img.Format())) * uint64(img.LayerCount())
}

// ImmediateSubmit records fn into a one-off command buffer, submits it on the
// graphics queue and waits for completion.
func (b *Backend) ImmediateSubmit(fn func(cmd *CommandBuffer)) error {
	buffers, ret := b.drv.AllocateCommandBuffers(b.device, b.pool, 1)
	if err := newError(ret, "allocate upload command buffer"); err != nil {
		return err
	}
	defer b.drv.FreeCommandBuffers(b.device, b.pool, buffers)

	fence, ret := b.drv.CreateFence(b.device, false)
	if err := newError(ret, "create upload fence"); err != nil {
		return err
	}
	defer b.drv.DestroyFence(b.device, fence)

	cmd := NewCommandBuffer(b.drv, buffers[0])
	if err := cmd.Begin(); err != nil {
		return err
	}
	fn(cmd)
	if err := cmd.End(); err != nil {
		return err
	}
	ret = b.drv.QueueSubmit(b.queues.Graphics, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    buffers,
	}}, fence)
	if err := newError(ret, "submit upload"); err != nil {
		return err
	}
	return newError(b.drv.WaitForFences(b.device, []vk.Fence{fence}, vk.MaxUint64), "wait for upload")
}

func (b *Backend) stage(data ...[]byte) (*Buffer, error) {
	var total uint64
	for _, d := range data {
		total += uint64(len(d))
	}
	staging, err := b.CreateBuffer(total, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), MemoryUsageHostOnly)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}
	var offset uint64
	for _, d := range data {
		if err := staging.CopyData(d, offset); err != nil {
			staging.Destroy()
			return nil, err
		}
		offset += uint64(len(d))
	}
	return staging, nil
}

// UploadBuffer copies data into dst at offset through a staging buffer.
func (b *Backend) UploadBuffer(dst *Buffer, data []byte, offset uint64) error {
	assertf(offset+uint64(len(data)) <= dst.Size(), "vkframe: upload of %d bytes at %d exceeds buffer of %d", len(data), offset, dst.Size())
	if len(data) == 0 {
		return nil
	}
	staging, err := b.stage(data)
	if err != nil {
		return err
	}
	defer staging.Destroy()
	return b.ImmediateSubmit(func(cmd *CommandBuffer) {
		cmd.CopyBuffer(staging, dst, 0, offset, uint64(len(data)))
	})
}

// CreateDeviceBuffer creates a device local buffer holding data.
func (b *Backend) CreateDeviceBuffer(data []byte, usage vk.BufferUsageFlags) (*Buffer, error) {
	buf, err := b.CreateBuffer(uint64(len(data)), usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), MemoryUsageDeviceLocal)
	if err != nil {
		return nil, err
	}
	if err := b.UploadBuffer(buf, data, 0); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

// UploadImage fills img from decoded pixel data. Level 0 comes from Pixels,
// further levels from Mips when present and are otherwise generated by
// blitting, provided the image has more than one level. Sampled images end up
// in shader-read usage.
func (b *Backend) UploadImage(img *Image, data ImageData) error {
	if data.Width != img.Width() || data.Height != img.Height() {
		return errors.Newf("vkframe: image data is %dx%d, image is %dx%d", data.Width, data.Height, img.Width(), img.Height())
	}
	if FormatTexelSize(img.Format()) == 0 {
		return errors.Newf("vkframe: upload to format %d not supported", img.Format())
	}
	if got, want := uint64(len(data.Pixels)), levelSize(img, 0); got != want {
		return errors.Newf("vkframe: level 0 holds %d bytes, want %d", got, want)
	}
	if uint32(len(data.Mips))+1 > img.MipLevels() {
		return errors.Newf("vkframe: %d mip payloads for %d levels", len(data.Mips), img.MipLevels())
	}
	for i, m := range data.Mips {
		if got, want := uint64(len(m)), levelSize(img, uint32(i+1)); got != want {
			return errors.Newf("vkframe: level %d holds %d bytes, want %d", i+1, got, want)
		}
	}

	staging, err := b.stage(append([][]byte{data.Pixels}, data.Mips...)...)
	if err != nil {
		return err
	}
	defer staging.Destroy()

	return b.ImmediateSubmit(func(cmd *CommandBuffer) {
		cmd.CopyBufferToImage(staging, 0, img, 0)
		offset := uint64(len(data.Pixels))
		for i, m := range data.Mips {
			cmd.CopyBufferToImage(staging, offset, img, uint32(i+1))
			offset += uint64(len(m))
		}
		if len(data.Mips) == 0 {
			cmd.GenerateMipLevels(img, vk.FilterLinear)
		}
		if img.UsageFlags()&vk.ImageUsageFlags(vk.ImageUsageSampledBit) != 0 {
			cmd.TransferTracked([]*Image{img}, UsageShaderRead)
		}
	})
}
