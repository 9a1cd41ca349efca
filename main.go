package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/achilleasa/wavefront/cmd"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "wavefront"
	app.Usage = "progressive wavefront path tracer"
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
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load configuration from a YAML file",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render the demo scene",
			Description: `
Render a number of progressively refined frames of the built-in demo scene
and write them to the configured output file. A "%d" in the output file name
is replaced by the frame index.

When a config file is supplied, changes to its settings, brightness and
contrast values are applied between frames.`,
			Action: cmd.RenderFrames,
		},
		{
			Name:   "list-devices",
			Usage:  "list available compute devices",
			Action: cmd.ListDevices,
		},
		{
			Name:  "config",
			Usage: "inspect or create configuration files",
			Subcommands: []cli.Command{
				{
					Name:   "dump",
					Usage:  "print the effective configuration",
					Action: cmd.DumpConfig,
				},
				{
					Name:      "init",
					Usage:     "write the default configuration to a file",
					ArgsUsage: "config.yaml",
					Action:    cmd.WriteDefaultConfig,
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
