package vkfake

import (
	vk "github.com/vulkan-go/vulkan"
)

// Window is a headless window with a fixed framebuffer size.
type Window struct {
	driver *Driver
	width  int
	height int
}

// NewWindow returns a window whose surface reports the given extent.
func NewWindow(d *Driver, width, height int) *Window {
	d.SetSurfaceExtent(uint32(width), uint32(height))
	return &Window{driver: d, width: width, height: height}
}

// Resize changes the framebuffer size and the surface extent.
func (w *Window) Resize(width, height int) {
	w.width, w.height = width, height
	w.driver.SetSurfaceExtent(uint32(width), uint32(height))
}

func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	w.driver.mu.Lock()
	defer w.driver.mu.Unlock()
	w.driver.created("Surface")
	return vk.Surface(newHandle()), nil
}

func (w *Window) FramebufferSize() (int, int) {
	return w.width, w.height
}

func (w *Window) RequiredInstanceExtensions() []string {
	return []string{"VK_KHR_surface"}
}
