// Package config holds the render core configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds all render settings.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Render   RenderConfig   `yaml:"render"`
	Settings SettingsConfig `yaml:"settings"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig selects and tunes the compute backend.
type DeviceConfig struct {
	Backend     string   `yaml:"backend"`      // host or opencl
	Name        string   `yaml:"name"`         // select the first device whose name contains this value
	Blacklist   []string `yaml:"blacklist"`    // skip devices whose names contain any of these values
	Workers     int      `yaml:"workers"`      // host backend worker goroutines; 0 uses all CPUs
	Validation  string   `yaml:"validation"`   // none or report
	KernelCache string   `yaml:"kernel_cache"` // kernel program cache directory; empty disables caching
}

// RenderConfig holds the frame settings used by the render command.
type RenderConfig struct {
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	SamplesPerPixel int     `yaml:"spp"`
	Frames          int     `yaml:"frames"`
	Brightness      float32 `yaml:"brightness"`
	Contrast        float32 `yaml:"contrast"`
	Output          string  `yaml:"output"`
}

// SettingsConfig holds the named numeric render parameters.
type SettingsConfig struct {
	Epsilon    float32 `yaml:"epsilon"`
	ClampValue float32 `yaml:"clamp_value"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Backend:    "host",
			Validation: "none",
		},
		Render: RenderConfig{
			Width:           256,
			Height:          256,
			SamplesPerPixel: 1,
			Frames:          16,
			Output:          "frame.png",
		},
		Settings: SettingsConfig{
			Epsilon:    1e-4,
			ClampValue: 10,
		},
		Logging: LoggingConfig{
			Level:      "notice",
			MaxSizeMB:  16,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks that all values are within their allowed ranges.
func (c *Config) Validate() error {
	var problems []string

	switch c.Device.Backend {
	case "host", "opencl":
	default:
		problems = append(problems, fmt.Sprintf("unknown device backend %q", c.Device.Backend))
	}
	switch c.Device.Validation {
	case "none", "report":
	default:
		problems = append(problems, fmt.Sprintf("unknown validation level %q", c.Device.Validation))
	}
	if c.Device.Workers < 0 {
		problems = append(problems, "device workers must not be negative")
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		problems = append(problems, fmt.Sprintf("invalid frame size %dx%d", c.Render.Width, c.Render.Height))
	}
	if c.Render.SamplesPerPixel <= 0 {
		problems = append(problems, "spp must be positive")
	}
	if c.Render.Frames <= 0 {
		problems = append(problems, "frames must be positive")
	}
	if c.Settings.Epsilon <= 0 {
		problems = append(problems, "epsilon must be positive")
	}
	if c.Settings.ClampValue <= 0 {
		problems = append(problems, "clamp value must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
