// Package config loads michelangelo's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "michelangelo.yaml"

var validate = validator.New()

// Config is the full configuration. Zero-valued keys in a file keep their
// defaults.
type Config struct {
	Mesh     MeshConfig     `yaml:"mesh"`
	Eval     EvalConfig     `yaml:"eval"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Log      LogConfig      `yaml:"log"`
}

// MeshConfig controls tessellation.
type MeshConfig struct {
	Cells    int     `yaml:"cells" validate:"gte=8,lte=2000"`
	Padding  float64 `yaml:"padding" validate:"gte=0,lte=1"`
	Exploded bool    `yaml:"exploded"`
}

// EvalConfig bounds script evaluation and sampling.
type EvalConfig struct {
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	Workers int           `yaml:"workers" validate:"gte=0,lte=1024"` // 0 = GOMAXPROCS
}

// DefaultsConfig is the operation used when a scene line gives none.
type DefaultsConfig struct {
	Blend    float64 `yaml:"blend" validate:"gte=0"`
	Softness float64 `yaml:"softness" validate:"gte=0"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Mesh:     MeshConfig{Cells: 200, Padding: 0.05},
		Eval:     EvalConfig{Timeout: 5 * time.Second},
		Defaults: DefaultsConfig{Blend: 1},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and validates the result. An empty
// path reads DefaultFile if it exists and otherwise returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg, err = Parse(data); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its validate tag.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
