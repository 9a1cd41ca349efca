package cmd

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/achilleasa/wavefront/config"
	"github.com/achilleasa/wavefront/renderer"
	"github.com/achilleasa/wavefront/tracer/device"
)

// Load the config file selected by the global --config flag and set up
// logging.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if err = setupLogging(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Map the device section of the config to render core options.
func coreOptions(cfg *config.Config) (renderer.Options, error) {
	validation, err := device.ParseValidationLevel(cfg.Device.Validation)
	if err != nil {
		return renderer.Options{}, err
	}
	return renderer.Options{
		Backend: cfg.Device.Backend,
		Device: device.Options{
			Name:           cfg.Device.Name,
			Blacklist:      cfg.Device.Blacklist,
			Workers:        cfg.Device.Workers,
			Validation:     validation,
			KernelCacheDir: cfg.Device.KernelCache,
		},
		Settings: settingsFromConfig(cfg),
	}, nil
}

func settingsFromConfig(cfg *config.Config) renderer.Settings {
	return renderer.Settings{
		Epsilon:    cfg.Settings.Epsilon,
		ClampValue: cfg.Settings.ClampValue,
	}
}

// Print the effective configuration as YAML.
func DumpConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprint(ctx.App.Writer, string(data))
	return nil
}

// Write the default configuration to a file.
func WriteDefaultConfig(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("missing output file argument")
	}
	return config.Default().SaveTo(ctx.Args().First())
}
