package vkframe

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Buffer is a linear GPU resource owning exactly one allocation.
type Buffer struct {
	allocator *Allocator
	handle    vk.Buffer
	alloc     *Allocation
	size      uint64
	usage     vk.BufferUsageFlags
	memUsage  MemoryUsage
	mapped    unsafe.Pointer
}

// NewBuffer creates a buffer of size bytes.
func NewBuffer(a *Allocator, size uint64, usage vk.BufferUsageFlags, memUsage MemoryUsage) (*Buffer, error) {
	assertf(size > 0, "vkframe: zero sized buffer")
	handle, alloc, err := a.CreateBuffer(&vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}, memUsage)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		allocator: a,
		handle:    handle,
		alloc:     alloc,
		size:      size,
		usage:     usage,
		memUsage:  memUsage,
	}, nil
}

// Handle returns the native buffer. Nil after Destroy or Move.
func (b *Buffer) Handle() vk.Buffer { return b.handle }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() vk.BufferUsageFlags { return b.usage }

// MemoryUsage returns the memory usage the buffer was allocated with.
func (b *Buffer) MemoryUsage() MemoryUsage { return b.memUsage }

// Allocation returns the memory backing the buffer.
func (b *Buffer) Allocation() *Allocation { return b.alloc }

// IsMapped reports whether the buffer is persistently mapped.
func (b *Buffer) IsMapped() bool { return b.mapped != nil }

// MapMemory maps the buffer persistently. Writes through CopyData then go
// straight to the mapping without a flush.
func (b *Buffer) MapMemory() (unsafe.Pointer, error) {
	if b.mapped != nil {
		return b.mapped, nil
	}
	ptr, err := b.allocator.Map(b.alloc)
	if err != nil {
		return nil, err
	}
	b.mapped = ptr
	return ptr, nil
}

// UnmapMemory ends a persistent mapping.
func (b *Buffer) UnmapMemory() {
	if b.mapped == nil {
		return
	}
	b.allocator.Unmap(b.alloc)
	b.mapped = nil
}

func (b *Buffer) checkRange(n int, offset uint64) {
	assertf(b.handle != nil, "vkframe: use of destroyed buffer")
	assertf(offset <= b.size && uint64(n) <= b.size-offset,
		"vkframe: copy of %d bytes at offset %d exceeds buffer size %d", n, offset, b.size)
}

// CopyData writes data at offset. A persistently mapped buffer is written in
// place; otherwise the buffer is mapped, written, flushed and unmapped.
func (b *Buffer) CopyData(data []byte, offset uint64) error {
	b.checkRange(len(data), offset)
	if len(data) == 0 {
		return nil
	}
	if b.mapped != nil {
		vk.Memcopy(unsafe.Add(b.mapped, offset), data)
		return nil
	}
	ptr, err := b.allocator.Map(b.alloc)
	if err != nil {
		return errors.Wrap(err, "copy to buffer")
	}
	vk.Memcopy(unsafe.Add(ptr, offset), data)
	err = b.allocator.Flush(b.alloc, vk.DeviceSize(offset), vk.DeviceSize(len(data)))
	b.allocator.Unmap(b.alloc)
	return err
}

// ReadData copies len(dst) bytes starting at offset out of the buffer.
func (b *Buffer) ReadData(dst []byte, offset uint64) error {
	b.checkRange(len(dst), offset)
	if len(dst) == 0 {
		return nil
	}
	ptr := b.mapped
	if ptr == nil {
		var err error
		if ptr, err = b.allocator.Map(b.alloc); err != nil {
			return errors.Wrap(err, "read from buffer")
		}
		defer b.allocator.Unmap(b.alloc)
	}
	if err := b.allocator.Invalidate(b.alloc, vk.DeviceSize(offset), vk.DeviceSize(len(dst))); err != nil {
		return err
	}
	copy(dst, unsafe.Slice((*byte)(unsafe.Add(ptr, offset)), len(dst)))
	return nil
}

// Move transfers ownership of the allocation to a new Buffer and empties b.
func (b *Buffer) Move() *Buffer {
	moved := *b
	*b = Buffer{}
	return &moved
}

// Destroy releases the buffer and its allocation. Destroying an empty buffer
// is a no-op.
func (b *Buffer) Destroy() {
	if b.handle == nil {
		return
	}
	b.allocator.DestroyBuffer(b.handle, b.alloc)
	*b = Buffer{}
}

// PerFrameBuffer holds one persistently mapped buffer per virtual frame so the
// host never writes memory a submission in flight may still read.
type PerFrameBuffer struct {
	buffers []*Buffer
}

// NewPerFrameBuffer creates frames host-visible buffers of size bytes each and
// maps them persistently.
func NewPerFrameBuffer(a *Allocator, frames int, size uint64, usage vk.BufferUsageFlags) (*PerFrameBuffer, error) {
	p := &PerFrameBuffer{}
	for i := 0; i < frames; i++ {
		buf, err := NewBuffer(a, size, usage, MemoryUsageHostToDevice)
		if err == nil {
			_, err = buf.MapMemory()
		}
		if err != nil {
			if buf != nil {
				buf.Destroy()
			}
			p.Destroy()
			return nil, err
		}
		p.buffers = append(p.buffers, buf)
	}
	return p, nil
}

// For returns the buffer owned by frame's slot.
func (p *PerFrameBuffer) For(frame *VirtualFrame) *Buffer {
	return p.buffers[frame.Index()]
}

// CopyData writes into frame's buffer. The frame must be recording, which
// guarantees its fence has been waited on.
func (p *PerFrameBuffer) CopyData(frame *VirtualFrame, data []byte, offset uint64) error {
	assertf(frame.Recording(), "vkframe: per-frame buffer written outside frame %d recording", frame.Index())
	return p.For(frame).CopyData(data, offset)
}

// Destroy releases every per-frame buffer.
func (p *PerFrameBuffer) Destroy() {
	for _, b := range p.buffers {
		b.Destroy()
	}
	p.buffers = nil
}
