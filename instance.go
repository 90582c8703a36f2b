package vkframe

import (
	"runtime"

	"github.com/andewx/vkframe/log"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

const (
	portabilityEnumerationExtension    = "VK_KHR_portability_enumeration"
	instanceCreateEnumeratePortability = vk.InstanceCreateFlags(0x00000001)
)

// createInstance creates an instance with the window's required extensions
// and, when asked for and available, the validation layers. Enabled layers
// are returned so the device can enable the same set.
func createInstance(drv Driver, cfg Config, required []string, logger log.Logger) (vk.Instance, []string, error) {
	available, err := drv.EnumerateInstanceExtensions()
	if err != nil {
		return nil, nil, errors.Wrap(err, "enumerate instance extensions")
	}
	wanted := append([]string(nil), required...)
	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" && contains(available, portabilityEnumerationExtension) {
		wanted = append(wanted, portabilityEnumerationExtension)
		flags |= instanceCreateEnumeratePortability
	}
	extensions, missing := checkExisting(available, wanted)
	if len(missing) > 0 {
		return nil, nil, errors.Newf("vkframe: missing required instance extensions %v", missing)
	}
	logger.Infof("enabling %d instance extensions", len(extensions))

	var layers []string
	if cfg.Validation {
		availableLayers, err := drv.EnumerateInstanceLayers()
		if err != nil {
			return nil, nil, errors.Wrap(err, "enumerate instance layers")
		}
		var missingLayers []string
		layers, missingLayers = checkExisting(availableLayers, validationLayers)
		if len(missingLayers) > 0 {
			logger.Warningf("validation layers not available: %v", missingLayers)
		}
	}

	instance, ret := drv.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		Flags: flags,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(cfg.AppName),
			PEngineName:        safeString("vkframe"),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	})
	if err := newError(ret, "create instance"); err != nil {
		return nil, nil, err
	}
	return instance, layers, nil
}
