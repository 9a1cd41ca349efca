package cmd

import (
	"github.com/urfave/cli"

	"github.com/achilleasa/wavefront/config"
	"github.com/achilleasa/wavefront/log"
)

var logger = log.New("wavefront")

// Apply the logging section of the config. The -v and -vv flags override
// the configured level.
func setupLogging(ctx *cli.Context, cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	if ctx.GlobalBool("v") {
		level = log.Info
	}
	if ctx.GlobalBool("vv") {
		level = log.Debug
	}
	log.SetLevel(level)

	return log.SetFileSink(log.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
}
