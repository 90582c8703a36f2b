package vkframe

import (
	"sort"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// DescriptorBinding is one binding slot of a descriptor set layout.
type DescriptorBinding struct {
	Binding uint32
	Type    vk.DescriptorType
	Count   uint32
	Stages  vk.ShaderStageFlags
}

type layoutKey []DescriptorBinding

// canonicalKey copies and sorts bindings by binding index.
func canonicalKey(bindings []DescriptorBinding) layoutKey {
	key := make(layoutKey, len(bindings))
	copy(key, bindings)
	sort.SliceStable(key, func(i, j int) bool { return key[i].Binding < key[j].Binding })
	return key
}

func (k layoutKey) equal(o layoutKey) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}
	return true
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// hash folds the binding count with one packed value per binding.
func (k layoutKey) hash() uint64 {
	h := mix64(uint64(len(k)))
	for _, b := range k {
		packed := uint64(b.Binding) | uint64(b.Type)<<8 | uint64(b.Count)<<16 | uint64(b.Stages)<<24
		h ^= mix64(packed)
	}
	return h
}

type cachedLayout struct {
	key    layoutKey
	layout vk.DescriptorSetLayout
}

// DescriptorLayoutCache deduplicates descriptor set layouts by shape.
type DescriptorLayoutCache struct {
	drv     Driver
	device  vk.Device
	buckets map[uint64][]cachedLayout
	count   int
}

// NewDescriptorLayoutCache creates an empty cache.
func NewDescriptorLayoutCache(drv Driver, device vk.Device) *DescriptorLayoutCache {
	return &DescriptorLayoutCache{
		drv:     drv,
		device:  device,
		buckets: make(map[uint64][]cachedLayout),
	}
}

// CreateLayout returns the layout for the given bindings, creating it on the
// first request for that shape. Binding order does not matter.
func (c *DescriptorLayoutCache) CreateLayout(bindings []DescriptorBinding) (vk.DescriptorSetLayout, error) {
	key := canonicalKey(bindings)
	h := key.hash()
	for _, e := range c.buckets[h] {
		if e.key.equal(key) {
			return e.layout, nil
		}
	}
	native := make([]vk.DescriptorSetLayoutBinding, len(key))
	for i, b := range key {
		native[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: b.Count,
			StageFlags:      b.Stages,
		}
	}
	layout, ret := c.drv.CreateDescriptorSetLayout(c.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(native)),
		PBindings:    native,
	})
	if err := newError(ret, "create descriptor set layout"); err != nil {
		return nil, err
	}
	c.buckets[h] = append(c.buckets[h], cachedLayout{key: key, layout: layout})
	c.count++
	return layout, nil
}

// Len returns the number of distinct layouts.
func (c *DescriptorLayoutCache) Len() int {
	return c.count
}

// CleanUp destroys every cached layout.
func (c *DescriptorLayoutCache) CleanUp() {
	for _, bucket := range c.buckets {
		for _, e := range bucket {
			c.drv.DestroyDescriptorSetLayout(c.device, e.layout)
		}
	}
	c.buckets = make(map[uint64][]cachedLayout)
	c.count = 0
}

// poolSizeRatio gives descriptors of a type per set in a new pool.
type poolSizeRatio struct {
	typ   vk.DescriptorType
	ratio float32
}

var defaultPoolSizes = []poolSizeRatio{
	{vk.DescriptorTypeSampler, 0.5},
	{vk.DescriptorTypeCombinedImageSampler, 4},
	{vk.DescriptorTypeSampledImage, 4},
	{vk.DescriptorTypeStorageImage, 1},
	{vk.DescriptorTypeUniformTexelBuffer, 1},
	{vk.DescriptorTypeStorageTexelBuffer, 1},
	{vk.DescriptorTypeUniformBuffer, 2},
	{vk.DescriptorTypeStorageBuffer, 2},
	{vk.DescriptorTypeUniformBufferDynamic, 1},
	{vk.DescriptorTypeStorageBufferDynamic, 1},
	{vk.DescriptorTypeInputAttachment, 0.5},
}

// DefaultSetsPerPool is the pool capacity used when none is configured.
const DefaultSetsPerPool = 1000

// DescriptorAllocator hands out descriptor sets from a growing list of pools.
// Pools in use are only recycled through ResetPools.
type DescriptorAllocator struct {
	drv         Driver
	device      vk.Device
	setsPerPool uint32
	current     vk.DescriptorPool
	used        []vk.DescriptorPool
	free        []vk.DescriptorPool
}

// NewDescriptorAllocator creates an allocator whose pools hold setsPerPool sets.
func NewDescriptorAllocator(drv Driver, device vk.Device, setsPerPool uint32) *DescriptorAllocator {
	if setsPerPool == 0 {
		setsPerPool = DefaultSetsPerPool
	}
	return &DescriptorAllocator{
		drv:         drv,
		device:      device,
		setsPerPool: setsPerPool,
	}
}

func (a *DescriptorAllocator) createPool() (vk.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, 0, len(defaultPoolSizes))
	for _, r := range defaultPoolSizes {
		n := uint32(r.ratio * float32(a.setsPerPool))
		if n == 0 {
			n = 1
		}
		sizes = append(sizes, vk.DescriptorPoolSize{Type: r.typ, DescriptorCount: n})
	}
	pool, ret := a.drv.CreateDescriptorPool(a.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       a.setsPerPool,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	})
	return pool, newError(ret, "create descriptor pool")
}

// grabPool makes a free or new pool current and tracks it as used.
func (a *DescriptorAllocator) grabPool() error {
	var pool vk.DescriptorPool
	if n := len(a.free); n > 0 {
		pool = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		var err error
		if pool, err = a.createPool(); err != nil {
			return err
		}
	}
	a.current = pool
	a.used = append(a.used, pool)
	return nil
}

func (a *DescriptorAllocator) allocateFrom(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	sets, ret := a.drv.AllocateDescriptorSets(a.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	})
	if isError(ret) {
		return nil, ret
	}
	return sets[0], ret
}

// Allocate returns a set with the given layout. When the current pool is
// exhausted the allocation is retried once on a fresh pool.
func (a *DescriptorAllocator) Allocate(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	if a.current == nil {
		if err := a.grabPool(); err != nil {
			return nil, err
		}
	}
	set, ret := a.allocateFrom(a.current, layout)
	switch ret {
	case vk.Success:
		return set, nil
	case errorFragmentedPool, errorOutOfPoolMemory:
	default:
		return nil, newError(ret, "allocate descriptor set")
	}
	if err := a.grabPool(); err != nil {
		return nil, err
	}
	set, ret = a.allocateFrom(a.current, layout)
	if isError(ret) {
		return nil, errors.WithSecondaryError(ErrDescriptorPoolExhausted, newError(ret, "allocate descriptor set"))
	}
	return set, nil
}

// ResetPools resets every used pool and returns it to the free list. Sets
// allocated before the reset become invalid.
func (a *DescriptorAllocator) ResetPools() error {
	for _, pool := range a.used {
		if err := newError(a.drv.ResetDescriptorPool(a.device, pool), "reset descriptor pool"); err != nil {
			return err
		}
		a.free = append(a.free, pool)
	}
	a.used = a.used[:0]
	a.current = nil
	return nil
}

// UsedPools returns the pools currently holding live sets.
func (a *DescriptorAllocator) UsedPools() []vk.DescriptorPool {
	return append([]vk.DescriptorPool(nil), a.used...)
}

// FreePools returns the number of reset pools ready for reuse.
func (a *DescriptorAllocator) FreePools() int {
	return len(a.free)
}

// CleanUp destroys every pool.
func (a *DescriptorAllocator) CleanUp() {
	for _, pool := range a.free {
		a.drv.DestroyDescriptorPool(a.device, pool)
	}
	for _, pool := range a.used {
		a.drv.DestroyDescriptorPool(a.device, pool)
	}
	a.free = nil
	a.used = nil
	a.current = nil
}

// DescriptorWriter batches descriptor writes into one update call.
type DescriptorWriter struct {
	writes []vk.WriteDescriptorSet
}

// WriteBuffer queues a buffer binding.
func (w *DescriptorWriter) WriteBuffer(set vk.DescriptorSet, binding uint32, typ vk.DescriptorType, buf *Buffer, offset, size uint64) *DescriptorWriter {
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  typ,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buf.Handle(),
			Offset: vk.DeviceSize(offset),
			Range:  vk.DeviceSize(size),
		}},
	})
	return w
}

// WriteImage queues an image binding using the image's native view.
func (w *DescriptorWriter) WriteImage(set vk.DescriptorSet, binding uint32, typ vk.DescriptorType, img *Image, sampler vk.Sampler, usage UsageKind) *DescriptorWriter {
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  typ,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler,
			ImageView:   img.NativeView(ViewNative),
			ImageLayout: usage.Layout(),
		}},
	})
	return w
}

// Update submits the queued writes and clears the writer.
func (w *DescriptorWriter) Update(drv Driver, device vk.Device) {
	if len(w.writes) == 0 {
		return
	}
	drv.UpdateDescriptorSets(device, w.writes)
	w.writes = w.writes[:0]
}
