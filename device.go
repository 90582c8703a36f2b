package vkframe

import (
	"fmt"

	"github.com/andewx/vkframe/log"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

const (
	swapchainExtension         = "VK_KHR_swapchain"
	portabilitySubsetExtension = "VK_KHR_portability_subset"
)

// PhysicalDeviceInfo summarizes a physical device for selection and listing.
type PhysicalDeviceInfo struct {
	Index            int
	Handle           vk.PhysicalDevice
	Name             string
	Type             vk.PhysicalDeviceType
	APIVersion       uint32
	DeviceLocalBytes uint64
	QueueFamilies    int
	Graphics         bool
	Swapchain        bool
	extensions       []string
}

// TypeName returns a short name for the device type.
func (d PhysicalDeviceInfo) TypeName() string {
	switch d.Type {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "other"
}

// Version formats the supported API version as major.minor.patch.
func (d PhysicalDeviceInfo) Version() string {
	v := d.APIVersion
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}

// Suitable reports whether the device can render and present.
func (d PhysicalDeviceInfo) Suitable() bool {
	return d.Graphics && d.Swapchain
}

func (d PhysicalDeviceInfo) score() int {
	s := 0
	switch d.Type {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		s = 1000
	case vk.PhysicalDeviceTypeIntegratedGpu:
		s = 500
	case vk.PhysicalDeviceTypeVirtualGpu:
		s = 100
	}
	return s + int(d.DeviceLocalBytes>>30)
}

// EnumeratePhysicalDevices describes every physical device of instance.
func EnumeratePhysicalDevices(drv Driver, instance vk.Instance) ([]PhysicalDeviceInfo, error) {
	gpus, ret := drv.EnumeratePhysicalDevices(instance)
	if err := newError(ret, "enumerate physical devices"); err != nil {
		return nil, err
	}
	infos := make([]PhysicalDeviceInfo, 0, len(gpus))
	for i, gpu := range gpus {
		props := drv.GetPhysicalDeviceProperties(gpu)
		mem := drv.GetPhysicalDeviceMemoryProperties(gpu)
		families := drv.GetPhysicalDeviceQueueFamilyProperties(gpu)
		exts, err := drv.EnumerateDeviceExtensions(gpu)
		if err != nil {
			return nil, errors.Wrapf(err, "device %d extensions", i)
		}
		info := PhysicalDeviceInfo{
			Index:         i,
			Handle:        gpu,
			Name:          vk.ToString(props.DeviceName[:]),
			Type:          props.DeviceType,
			APIVersion:    props.ApiVersion,
			QueueFamilies: len(families),
			Swapchain:     contains(exts, swapchainExtension),
			extensions:    exts,
		}
		for h := uint32(0); h < mem.MemoryHeapCount; h++ {
			if mem.MemoryHeaps[h].Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
				info.DeviceLocalBytes += uint64(mem.MemoryHeaps[h].Size)
			}
		}
		for _, f := range families {
			if hasFlags(f, vk.QueueGraphicsBit) {
				info.Graphics = true
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ListPhysicalDevices creates a short-lived instance with the given
// extensions and describes every physical device it sees.
func ListPhysicalDevices(drv Driver, cfg Config, extensions []string) ([]PhysicalDeviceInfo, error) {
	instance, _, err := createInstance(drv, cfg, extensions, log.New("vkframe"))
	if err != nil {
		return nil, err
	}
	defer drv.DestroyInstance(instance)
	return EnumeratePhysicalDevices(drv, instance)
}

// pickPhysicalDevice returns the device at index, or the best suitable one
// when index is negative.
func pickPhysicalDevice(infos []PhysicalDeviceInfo, index int) (PhysicalDeviceInfo, error) {
	if index >= 0 {
		if index >= len(infos) {
			return PhysicalDeviceInfo{}, errors.Wrapf(ErrNoSuitableDevice, "device index %d of %d", index, len(infos))
		}
		if !infos[index].Suitable() {
			return PhysicalDeviceInfo{}, errors.Wrapf(ErrNoSuitableDevice, "device %q cannot render and present", infos[index].Name)
		}
		return infos[index], nil
	}
	best := -1
	for i, info := range infos {
		if !info.Suitable() {
			continue
		}
		if best < 0 || info.score() > infos[best].score() {
			best = i
		}
	}
	if best < 0 {
		return PhysicalDeviceInfo{}, errors.Wrapf(ErrNoSuitableDevice, "%d devices enumerated", len(infos))
	}
	return infos[best], nil
}

// createLogicalDevice creates a device with one queue per unique family.
func createLogicalDevice(drv Driver, gpu PhysicalDeviceInfo, families QueueFamilyIndices, layers []string) (vk.Device, error) {
	var queueInfos []vk.DeviceQueueCreateInfo
	for _, f := range families.Unique() {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: f,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}
	wanted := []string{swapchainExtension}
	if contains(gpu.extensions, portabilitySubsetExtension) {
		wanted = append(wanted, portabilitySubsetExtension)
	}
	extensions, missing := checkExisting(gpu.extensions, wanted)
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrNoSuitableDevice, "missing device extensions %v", missing)
	}
	device, ret := drv.CreateDevice(gpu.Handle, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	})
	if err := newError(ret, "create device"); err != nil {
		return nil, err
	}
	return device, nil
}
