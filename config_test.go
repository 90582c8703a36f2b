package vkframe

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestParsePresentMode(t *testing.T) {
	type spec struct {
		name   string
		exp    vk.PresentMode
		expErr bool
	}
	specs := []spec{
		{"", vk.PresentModeFifo, false},
		{"fifo", vk.PresentModeFifo, false},
		{"mailbox", vk.PresentModeMailbox, false},
		{"immediate", vk.PresentModeImmediate, false},
		{"relaxed", vk.PresentModeFifoRelaxed, false},
		{"vsync", 0, true},
		{"FIFO", 0, true},
	}
	for index, s := range specs {
		got, err := ParsePresentMode(s.name)
		if s.expErr {
			if err == nil {
				t.Errorf("[spec %d] expected an error for %q", index, s.name)
			}
			continue
		}
		if err != nil || got != s.exp {
			t.Errorf("[spec %d] expected mode %d for %q; got %d (%v)", index, s.exp, s.name, got, err)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	type spec struct {
		mutate func(*Config)
		expErr bool
	}
	specs := []spec{
		{func(*Config) {}, false},
		{func(c *Config) { c.FramesInFlight = 3 }, false},
		{func(c *Config) { c.FramesInFlight = 0 }, true},
		{func(c *Config) { c.SwapchainImages = 0 }, true},
	}
	for index, s := range specs {
		cfg := DefaultConfig()
		s.mutate(&cfg)
		if err := cfg.validate(); (err != nil) != s.expErr {
			t.Errorf("[spec %d] expected error=%t; got %v", index, s.expErr, err)
		}
	}
}
