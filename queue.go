package vkframe

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// QueueFamilyIndices are the families work is submitted to. They may alias.
type QueueFamilyIndices struct {
	Graphics uint32
	Compute  uint32
	Present  uint32
}

// Unique returns each distinct family once, graphics first.
func (q QueueFamilyIndices) Unique() []uint32 {
	out := []uint32{q.Graphics}
	for _, f := range []uint32{q.Compute, q.Present} {
		seen := false
		for _, o := range out {
			if o == f {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, f)
		}
	}
	return out
}

func hasFlags(props vk.QueueFamilyProperties, bits vk.QueueFlagBits) bool {
	return props.QueueFlags&vk.QueueFlags(bits) == vk.QueueFlags(bits)
}

// findQueueFamilies prefers a graphics family that can also present, and a
// compute family without graphics when the device has one.
func findQueueFamilies(drv Driver, gpu vk.PhysicalDevice, surface vk.Surface) (QueueFamilyIndices, error) {
	props := drv.GetPhysicalDeviceQueueFamilyProperties(gpu)
	const none = ^uint32(0)
	graphics, compute, present := none, none, none
	for i, p := range props {
		family := uint32(i)
		if p.QueueCount == 0 {
			continue
		}
		canPresent := drv.GetPhysicalDeviceSurfaceSupport(gpu, family, surface)
		if hasFlags(p, vk.QueueGraphicsBit) {
			if graphics == none || (canPresent && present != graphics) {
				graphics = family
			}
		}
		if canPresent && (present == none || family == graphics) {
			present = family
		}
		if hasFlags(p, vk.QueueComputeBit) {
			if compute == none || !hasFlags(p, vk.QueueGraphicsBit) {
				compute = family
			}
		}
	}
	if graphics == none {
		return QueueFamilyIndices{}, errors.Wrap(ErrNoSuitableDevice, "no graphics queue family")
	}
	if present == none {
		return QueueFamilyIndices{}, errors.Wrap(ErrNoSuitableDevice, "no queue family can present to the surface")
	}
	if compute == none {
		compute = graphics
	}
	return QueueFamilyIndices{Graphics: graphics, Compute: compute, Present: present}, nil
}

// Queues holds one queue per role, aliased when families are shared.
type Queues struct {
	Graphics vk.Queue
	Compute  vk.Queue
	Present  vk.Queue
}

func getQueues(drv Driver, device vk.Device, families QueueFamilyIndices) Queues {
	byFamily := make(map[uint32]vk.Queue)
	for _, f := range families.Unique() {
		byFamily[f] = drv.GetDeviceQueue(device, f, 0)
	}
	return Queues{
		Graphics: byFamily[families.Graphics],
		Compute:  byFamily[families.Compute],
		Present:  byFamily[families.Present],
	}
}
