package main

import (
	"flag"
	"testing"

	"github.com/urfave/cli"
	vk "github.com/vulkan-go/vulkan"
)

func runContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("run", flag.ContinueOnError)
	for _, f := range runFlags {
		f.Apply(set)
	}
	if err := set.Parse(args); err != nil {
		t.Fatal(err)
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestConfigFromFlags(t *testing.T) {
	type spec struct {
		args      []string
		expMode   vk.PresentMode
		expFrames int
		expDevice int
		expErr    bool
	}
	specs := []spec{
		{nil, vk.PresentModeFifo, 2, -1, false},
		{[]string{"-present-mode", "mailbox", "-frames-in-flight", "3"}, vk.PresentModeMailbox, 3, -1, false},
		{[]string{"-device", "1", "-validation"}, vk.PresentModeFifo, 2, 1, false},
		{[]string{"-present-mode", "tearing"}, 0, 0, 0, true},
	}
	for index, s := range specs {
		cfg, err := configFromFlags(runContext(t, s.args...))
		if s.expErr {
			if err == nil {
				t.Errorf("[spec %d] expected an error", index)
			}
			continue
		}
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", index, err)
			continue
		}
		if cfg.PresentMode != s.expMode || cfg.FramesInFlight != s.expFrames || cfg.DeviceIndex != s.expDevice {
			t.Errorf("[spec %d] expected mode %d, %d frames, device %d; got %+v", index, s.expMode, s.expFrames, s.expDevice, cfg)
		}
	}
}
