package vkframe

import (
	"testing"

	"github.com/andewx/vkframe/internal/vkfake"
)

func TestFindMemoryType(t *testing.T) {
	props := vkfake.New().MemoryProperties

	type spec struct {
		usage    MemoryUsage
		typeBits uint32
		expIndex uint32
		expOK    bool
	}
	specs := []spec{
		{MemoryUsageDeviceLocal, 0x7, vkfake.MemoryTypeDeviceLocal, true},
		{MemoryUsageHostOnly, 0x7, vkfake.MemoryTypeHostCoherent, true},
		{MemoryUsageHostToDevice, 0x7, vkfake.MemoryTypeHostCoherent, true},
		{MemoryUsageDeviceToHost, 0x7, vkfake.MemoryTypeHostCached, true},
		{MemoryUsageHostCopy, 0x7, vkfake.MemoryTypeHostCoherent, true},
		{MemoryUsageLazilyAllocated, 0x7, 0, false},
		// Device local falls back to host memory when the resource forbids type 0.
		{MemoryUsageDeviceLocal, 0x6, vkfake.MemoryTypeHostCoherent, true},
		{MemoryUsageHostOnly, 0x1, 0, false},
	}
	for index, s := range specs {
		got, ok := findMemoryType(&props, s.typeBits, s.usage)
		if ok != s.expOK {
			t.Errorf("[spec %d] expected ok=%t for %s; got %t", index, s.expOK, s.usage, ok)
			continue
		}
		if ok && got != s.expIndex {
			t.Errorf("[spec %d] expected memory type %d for %s; got %d", index, s.expIndex, s.usage, got)
		}
	}
}

func TestAllocationsUseSelectedMemoryType(t *testing.T) {
	b, drv, _ := newTestBackend(t, DefaultConfig())
	type spec struct {
		usage   MemoryUsage
		expType uint32
	}
	specs := []spec{
		{MemoryUsageDeviceLocal, vkfake.MemoryTypeDeviceLocal},
		{MemoryUsageHostOnly, vkfake.MemoryTypeHostCoherent},
		{MemoryUsageDeviceToHost, vkfake.MemoryTypeHostCached},
	}
	for index, s := range specs {
		buf, err := b.CreateBuffer(100, uniformUsage, s.usage)
		if err != nil {
			t.Fatal(err)
		}
		got, ok := drv.MemoryTypeOf(buf.Allocation().Memory())
		if !ok || got != s.expType {
			t.Errorf("[spec %d] expected memory type %d; got %d", index, s.expType, got)
		}
		if buf.Allocation().Size() != 112 {
			t.Errorf("[spec %d] expected the allocation to follow requirements (112 bytes); got %d", index, buf.Allocation().Size())
		}
		buf.Destroy()
	}
	if stats := b.Allocator().Stats(); stats.Allocations != 0 || stats.Bytes != 0 {
		t.Fatalf("expected empty stats; got %+v", stats)
	}
}

func TestUnknownMemoryUsagePanics(t *testing.T) {
	props := vkfake.New().MemoryProperties
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an unknown memory usage")
		}
	}()
	findMemoryType(&props, 0x7, MemoryUsage(99))
}
