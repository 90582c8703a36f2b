package main

import (
	"runtime"
	"time"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/graph"
	"github.com/andewx/vkframe/showcase"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/urfave/cli"
)

func configFromFlags(ctx *cli.Context) (vkframe.Config, error) {
	cfg := vkframe.DefaultConfig()
	mode, err := vkframe.ParsePresentMode(ctx.String("present-mode"))
	if err != nil {
		return cfg, err
	}
	cfg.AppName = "vkframe " + ctx.String("showcase")
	cfg.PresentMode = mode
	cfg.FramesInFlight = ctx.Int("frames-in-flight")
	cfg.DeviceIndex = ctx.Int("device")
	cfg.Validation = ctx.Bool("validation")
	return cfg, nil
}

// Run renders a showcase until the window closes or the frame limit is hit.
func Run(ctx *cli.Context) error {
	setupLogging(ctx)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cfg, err := configFromFlags(ctx)
	if err != nil {
		return err
	}
	window, err := openWindow(ctx.Int("width"), ctx.Int("height"), cfg.AppName, true)
	if err != nil {
		return err
	}
	defer glfw.Terminate()
	defer window.Destroy()

	resized := false
	window.SetFramebufferSizeCallback(func(*glfw.Window, int, int) { resized = true })

	backend, err := vkframe.NewBackend(vkframe.NewVulkanDriver(), vkframe.NewGLFWWindow(window), cfg)
	if err != nil {
		return errors.Wrap(err, "create backend")
	}
	defer backend.Destroy()
	gpu := backend.PhysicalDevice()
	logger.Infof("rendering on %s (%s, vulkan %s)", gpu.Name, gpu.TypeName(), gpu.Version())

	sc, err := showcase.New(ctx.String("showcase"), backend, showcase.Options{
		ShaderDir: ctx.String("shaders"),
		Texture:   ctx.String("texture"),
		Clear:     [4]float32{0.02, 0.02, 0.03, 1},
	})
	if err != nil {
		return err
	}
	g := graph.New(backend)
	defer func() {
		if err := backend.WaitIdle(); err != nil {
			logger.Warningf("wait idle on shutdown: %v", err)
		}
		g.Destroy()
		sc.Destroy()
	}()

	if err := g.ImportImage(showcase.Backbuffer, backend.SwapchainImage()); err != nil {
		return err
	}
	if err := sc.Build(g); err != nil {
		return errors.Wrapf(err, "build %s", sc.Name())
	}
	if err := g.Compile(); err != nil {
		return err
	}
	logger.Infof("passes: %v", g.Passes())

	limit := ctx.Int("frames")
	start := time.Now()
	frames := 0
	for !window.ShouldClose() && (limit == 0 || frames < limit) {
		glfw.PollEvents()
		if resized {
			resized = false
			if err := resize(backend, window); err != nil {
				return err
			}
		}
		err := renderFrame(backend, g, sc, time.Since(start))
		if errors.Is(err, vkframe.ErrSwapchainOutOfDate) {
			logger.Debugf("swapchain out of date after %d frames", frames)
			if err := resize(backend, window); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		frames++
	}

	elapsed := time.Since(start)
	logger.Noticef("rendered %d frames in %s (%.1f fps)", frames, elapsed.Round(time.Millisecond), float64(frames)/elapsed.Seconds())
	return nil
}

func renderFrame(b *vkframe.Backend, g *graph.Graph, sc showcase.Showcase, elapsed time.Duration) error {
	frame, err := b.StartFrame()
	if err != nil {
		return err
	}
	if err := g.ImportImage(showcase.Backbuffer, b.SwapchainImage()); err != nil {
		return err
	}
	if err := sc.Update(frame, elapsed); err != nil {
		return err
	}
	if err := g.Exec(frame); err != nil {
		return err
	}
	return b.EndFrame()
}

// resize waits out a minimized window, then recreates the swapchain.
func resize(b *vkframe.Backend, window *glfw.Window) error {
	for {
		w, h := window.GetFramebufferSize()
		if w > 0 && h > 0 {
			break
		}
		if window.ShouldClose() {
			return nil
		}
		glfw.WaitEvents()
	}
	if err := b.Resize(); err != nil && !errors.Is(err, vkframe.ErrSwapchainOutOfDate) {
		return errors.Wrap(err, "resize")
	}
	return nil
}
