package cmd

import (
	"time"

	"github.com/urfave/cli"

	"github.com/achilleasa/wavefront/config"
	"github.com/achilleasa/wavefront/renderer"
	"github.com/achilleasa/wavefront/tracer"
)

// Render a sequence of progressively refined frames of the built-in demo
// scene. Each frame is written to the configured output file.
func RenderFrames(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	opts, err := coreOptions(cfg)
	if err != nil {
		return err
	}
	opts.PostProcess = append(opts.PostProcess, tracer.SaveFrame(cfg.Render.Output))

	var core renderer.Core
	if err = core.Init(opts); err != nil {
		return err
	}
	defer core.Shutdown()

	width, height := cfg.Render.Width, cfg.Render.Height
	if err = core.SetTarget(renderer.NewImageSurface(width, height), cfg.Render.SamplesPerPixel); err != nil {
		return err
	}
	if err = loadDemoScene(&core); err != nil {
		return err
	}
	view := demoCamera(width, height).ViewPyramid()
	logger.Debugf("%s", view)

	// Pick up brightness, contrast and settings changes between frames.
	var changes chan *config.Config
	if path := ctx.GlobalString("config"); path != "" {
		changes = make(chan *config.Config, 1)
		stop, err := config.Watch(path, func(newCfg *config.Config) {
			select {
			case <-changes:
			default:
			}
			changes <- newCfg
		})
		if err != nil {
			return err
		}
		defer stop()
	}

	brightness, contrast := cfg.Render.Brightness, cfg.Render.Contrast
	convergence := renderer.Restart
	start := time.Now()
	for frame := 0; frame < cfg.Render.Frames; frame++ {
		select {
		case newCfg := <-changes:
			brightness, contrast = newCfg.Render.Brightness, newCfg.Render.Contrast
			if err = core.SetSettings(settingsFromConfig(newCfg)); err != nil {
				return err
			}
			convergence = renderer.Restart
			logger.Noticef("applied config changes at frame %d", frame)
		default:
		}

		if err = core.Render(view, convergence, brightness, contrast); err != nil {
			return err
		}
		convergence = renderer.Continue
	}

	stats, err := core.Stats()
	if err != nil {
		return err
	}
	logger.Noticef("rendered %d frames in %s\n%s", cfg.Render.Frames, time.Since(start), stats.Table())
	return nil
}
