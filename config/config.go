// Package config loads the fixture configuration.
//
// Settings come from three layers, later ones winning:
//
//  1. Compiled-in defaults (Default), matching the Challenger fixture wiring
//  2. An optional YAML file
//  3. ESPLOADER_* environment variables, optionally read from a .env file
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-esploader/catalog"
	"github.com/moffa90/go-esploader/heartbeat"
	"github.com/moffa90/go-esploader/link"
	"github.com/moffa90/go-esploader/logger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ESPLOADER_"

// DefaultIndicatorPin is the LED toggled while flashing.
const DefaultIndicatorPin = "GPIO25"

// Config is the complete fixture configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Pins      PinConfig       `yaml:"pins"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Transfer  TransferConfig  `yaml:"transfer"`
	Images    ImagesConfig    `yaml:"images"`
	Log       LogConfig       `yaml:"log"`
}

// SerialConfig describes the serial link to the target.
type SerialConfig struct {
	Port             string        `yaml:"port"`
	BaudRate         int           `yaml:"baud_rate"`
	TransferBaudRate int           `yaml:"transfer_baud_rate"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
}

// PinConfig names the control and indicator GPIOs.
type PinConfig struct {
	Reset     string        `yaml:"reset"`
	Boot      string        `yaml:"boot"`
	Indicator string        `yaml:"indicator"`
	ResetHold time.Duration `yaml:"reset_hold"`
	BootHold  time.Duration `yaml:"boot_hold"`
}

// HeartbeatConfig controls the indicator blink.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// TransferConfig controls the loader protocol and failure policy.
type TransferConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	Retries       int           `yaml:"retries"`
	AbortOnError  bool          `yaml:"abort_on_error"`
	HaltOnFailure bool          `yaml:"halt_on_failure"`
}

// ImagesConfig locates the firmware images.
type ImagesConfig struct {
	// Dir is the catalog root holding one directory per variant
	Dir string `yaml:"dir"`

	// Manifests maps a variant to a flash_args manifest inside its
	// directory; variants without one use the compiled-in layout
	Manifests map[string]string `yaml:"manifests"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Port:             "/dev/ttyUSB0",
			BaudRate:         link.DefaultBaudRate,
			TransferBaudRate: link.DefaultTransferBaudRate,
			ReadTimeout:      link.DefaultReadTimeout,
		},
		Pins: PinConfig{
			Reset:     link.DefaultResetPin,
			Boot:      link.DefaultBootPin,
			Indicator: DefaultIndicatorPin,
			ResetHold: link.DefaultResetHold,
			BootHold:  link.DefaultBootHold,
		},
		Heartbeat: HeartbeatConfig{
			Interval: heartbeat.DefaultInterval,
		},
		Transfer: TransferConfig{
			Timeout:       3 * time.Second,
			Retries:       7,
			HaltOnFailure: true,
		},
		Images: ImagesConfig{
			Dir: "images",
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment. A .env file in the working
// directory is read first if present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from ESPLOADER_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("PORT", &c.Serial.Port)
	str("RESET_PIN", &c.Pins.Reset)
	str("BOOT_PIN", &c.Pins.Boot)
	str("INDICATOR_PIN", &c.Pins.Indicator)
	str("IMAGES_DIR", &c.Images.Dir)
	str("LOG_LEVEL", &c.Log.Level)

	return errors.Join(
		num("BAUD_RATE", &c.Serial.BaudRate),
		num("TRANSFER_BAUD_RATE", &c.Serial.TransferBaudRate),
		num("RETRIES", &c.Transfer.Retries),
		dur("READ_TIMEOUT", &c.Serial.ReadTimeout),
		dur("HEARTBEAT_INTERVAL", &c.Heartbeat.Interval),
		dur("TIMEOUT", &c.Transfer.Timeout),
		flag("ABORT_ON_ERROR", &c.Transfer.AbortOnError),
		flag("HALT_ON_FAILURE", &c.Transfer.HaltOnFailure),
		flag("LOG_CONSOLE", &c.Log.Console),
	)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Link().Validate(); err != nil {
		return fmt.Errorf("invalid serial config: %w", err)
	}
	if c.Pins.Indicator != "" && (c.Pins.Indicator == c.Pins.Reset || c.Pins.Indicator == c.Pins.Boot) {
		return fmt.Errorf("indicator pin %s is also a control pin", c.Pins.Indicator)
	}
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %s", c.Heartbeat.Interval)
	}
	if c.Transfer.Retries < 0 {
		return fmt.Errorf("transfer retries cannot be negative")
	}
	if c.Images.Dir == "" {
		return fmt.Errorf("images directory is required")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	for v := range c.Images.Manifests {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("manifest with empty variant name")
		}
	}
	return nil
}

// Link returns the link driver configuration.
func (c Config) Link() link.Config {
	return link.Config{
		PortName:         c.Serial.Port,
		BaudRate:         c.Serial.BaudRate,
		TransferBaudRate: c.Serial.TransferBaudRate,
		ResetPin:         c.Pins.Reset,
		BootPin:          c.Pins.Boot,
		ResetHold:        c.Pins.ResetHold,
		BootHold:         c.Pins.BootHold,
		ReadTimeout:      c.Serial.ReadTimeout,
	}
}

// Layouts returns the image layouts: the compiled-in table with any variant
// that has a manifest replaced by the manifest's slots. fsys is the catalog
// root (Images.Dir).
func (c Config) Layouts(fsys fs.FS) (map[catalog.Variant]catalog.Layout, error) {
	layouts := catalog.DefaultLayouts()
	for name, manifest := range c.Images.Manifests {
		v := catalog.Variant(name)
		layout, ok := layouts[v]
		if !ok {
			layout = catalog.Layout{Dir: strings.ToLower(strings.ReplaceAll(name, "-", ""))}
		}
		slots, err := catalog.ParseManifestFile(fsys, layout.Dir+"/"+manifest)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", name, err)
		}
		layout.Slots = slots
		layouts[v] = layout
	}
	return layouts, nil
}

// LogLevel returns the parsed log level.
func (c Config) LogLevel() logger.Level {
	level, _ := logger.ParseLevel(c.Log.Level)
	return level
}
