package main

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/andewx/vkframe"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// ListDevices prints the physical devices vulkan exposes.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)
	runtime.LockOSThread()

	window, err := openWindow(64, 64, "vkframe", false)
	if err != nil {
		return err
	}
	defer glfw.Terminate()
	defer window.Destroy()

	extensions := vkframe.NewGLFWWindow(window).RequiredInstanceExtensions()
	devices, err := vkframe.ListPhysicalDevices(vkframe.NewVulkanDriver(), vkframe.DefaultConfig(), extensions)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Name", "Type", "Vulkan", "VRAM", "Queue families", "Suitable"})
	suitable := 0
	for _, d := range devices {
		if d.Suitable() {
			suitable++
		}
		table.Append([]string{
			fmt.Sprint(d.Index),
			d.Name,
			d.TypeName(),
			d.Version(),
			fmt.Sprintf("%d MiB", d.DeviceLocalBytes>>20),
			fmt.Sprint(d.QueueFamilies),
			fmt.Sprint(d.Suitable()),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", fmt.Sprintf("%d of %d", suitable, len(devices))})
	table.Render()

	logger.Noticef("system provides %d vulkan device(s)\n%s", len(devices), buf.String())
	return nil
}
