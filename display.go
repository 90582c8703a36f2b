package vkframe

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// Window is the windowing collaborator a Backend presents to.
type Window interface {
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	// FramebufferSize is the drawable size in pixels. Zero while minimized.
	FramebufferSize() (int, int)
	RequiredInstanceExtensions() []string
}

// GLFWWindow adapts a GLFW window created with the NoAPI client hint.
type GLFWWindow struct {
	window *glfw.Window
}

func NewGLFWWindow(window *glfw.Window) *GLFWWindow {
	return &GLFWWindow{window: window}
}

func (w *GLFWWindow) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

func (w *GLFWWindow) FramebufferSize() (int, int) {
	return w.window.GetFramebufferSize()
}

func (w *GLFWWindow) RequiredInstanceExtensions() []string {
	return w.window.GetRequiredInstanceExtensions()
}

// Window returns the adapted GLFW window.
func (w *GLFWWindow) Window() *glfw.Window { return w.window }
