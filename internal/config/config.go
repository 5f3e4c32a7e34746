// Package config loads the pipeline configuration: built-in defaults, then an
// optional YAML file, then USFRAME_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/focus"
	"github.com/goodmattg/ultrasound-frames/internal/logging"
	"github.com/goodmattg/ultrasound-frames/internal/metadata"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel       = "USFRAME_LOG_LEVEL"
	EnvTessdataPrefix = "USFRAME_TESSDATA_PREFIX"
	EnvWorkers        = "USFRAME_WORKERS"
)

// Config is the complete pipeline configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// TessdataPrefix points Tesseract at a non-default language data directory.
	TessdataPrefix string `yaml:"tessdata_prefix"`

	// Workers bounds the number of frames processed concurrently in batch mode.
	Workers int `yaml:"workers"`
	// FrameTimeout bounds the time spent on one frame. Zero disables it.
	FrameTimeout time.Duration `yaml:"frame_timeout"`

	Grayscale focus.GrayscaleConfig `yaml:"grayscale"`
	Highlight focus.HighlightConfig `yaml:"highlight"`
	Metadata  metadata.Config       `yaml:"metadata"`
}

// Default returns the configuration used when no file or environment
// override is given.
func Default() Config {
	return Config{
		LogLevel:     "info",
		Workers:      runtime.NumCPU(),
		FrameTimeout: 30 * time.Second,
		Grayscale:    focus.DefaultGrayscaleConfig(),
		Highlight:    focus.DefaultHighlightConfig(),
		Metadata:     metadata.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fault.Misconfigured("invalid config: %v", err)
	}
	return nil
}

// ApplyEnv overrides fields from USFRAME_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvTessdataPrefix); ok && v != "" {
		c.TessdataPrefix = v
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fault.Misconfigured("%s=%q is not an integer", EnvWorkers, v)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fault.Misconfigured("workers must be at least 1, got %d", c.Workers)
	}
	if c.FrameTimeout < 0 {
		return fault.Misconfigured("frame timeout %v is negative", c.FrameTimeout)
	}
	if err := c.Grayscale.Validate(); err != nil {
		return fmt.Errorf("grayscale: %w", err)
	}
	if err := c.Highlight.Validate(); err != nil {
		return fmt.Errorf("highlight: %w", err)
	}
	if err := c.Metadata.Validate(); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	return nil
}

// Resolve loads path (or the defaults when path is empty), applies the
// environment and validates the result.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
