package vkframe

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Config controls backend creation.
type Config struct {
	AppName string
	// FramesInFlight is the number of virtual frames, 2 or 3 in practice.
	FramesInFlight int
	// PresentMode is used when the surface supports it; FIFO otherwise.
	PresentMode vk.PresentMode
	// SwapchainImages is a hint, clamped to the surface limits.
	SwapchainImages uint32
	Validation      bool
	SetsPerPool     uint32
	// DeviceIndex selects a physical device by enumeration order. Negative
	// picks the most capable one.
	DeviceIndex int
}

// DefaultConfig returns a double buffered FIFO configuration.
func DefaultConfig() Config {
	return Config{
		AppName:         "vkframe",
		FramesInFlight:  2,
		PresentMode:     vk.PresentModeFifo,
		SwapchainImages: 3,
		SetsPerPool:     DefaultSetsPerPool,
		DeviceIndex:     -1,
	}
}

func (c Config) validate() error {
	if c.FramesInFlight < 1 {
		return errors.Newf("vkframe: frames in flight must be at least 1, got %d", c.FramesInFlight)
	}
	if c.SwapchainImages == 0 {
		return errors.New("vkframe: swapchain image count must be positive")
	}
	return nil
}

// ParsePresentMode maps a mode name used on the command line to its value.
func ParsePresentMode(name string) (vk.PresentMode, error) {
	switch name {
	case "fifo", "":
		return vk.PresentModeFifo, nil
	case "mailbox":
		return vk.PresentModeMailbox, nil
	case "immediate":
		return vk.PresentModeImmediate, nil
	case "relaxed":
		return vk.PresentModeFifoRelaxed, nil
	}
	return 0, errors.Newf("vkframe: unknown present mode %q", name)
}
