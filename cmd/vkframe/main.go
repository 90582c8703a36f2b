package main

import (
	"os"

	"github.com/urfave/cli"
)

var runFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "showcase",
		Value: "triangle",
		Usage: "showcase to render: triangle, mipmaps or compute",
	},
	cli.IntFlag{
		Name:  "width",
		Value: 1280,
		Usage: "window width",
	},
	cli.IntFlag{
		Name:  "height",
		Value: 720,
		Usage: "window height",
	},
	cli.IntFlag{
		Name:  "frames",
		Value: 0,
		Usage: "exit after this many frames, 0 runs until the window closes",
	},
	cli.IntFlag{
		Name:  "frames-in-flight",
		Value: 2,
		Usage: "number of virtual frames",
	},
	cli.StringFlag{
		Name:  "present-mode",
		Value: "fifo",
		Usage: "fifo, mailbox, immediate or relaxed",
	},
	cli.StringFlag{
		Name:  "shaders",
		Value: "shaders",
		Usage: "directory holding the compiled .spv shaders",
	},
	cli.StringFlag{
		Name:  "texture",
		Usage: "image file for the mipmaps showcase",
	},
	cli.IntFlag{
		Name:  "device",
		Value: -1,
		Usage: "physical device index, -1 picks the best one",
	},
	cli.BoolFlag{
		Name:  "validation",
		Usage: "enable the khronos validation layer",
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "vkframe"
	app.Usage = "drive the vkframe render backend and render graph"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "list-devices",
			Usage:  "list available vulkan devices",
			Action: ListDevices,
		},
		{
			Name:  "run",
			Usage: "open a window and render a showcase",
			Description: `
Create a window, bring up the vulkan backend and record the selected showcase
through the render graph every frame. Shaders are read as precompiled SPIR-V
from the shader directory.`,
			Flags:  runFlags,
			Action: Run,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
