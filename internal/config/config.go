// Package config provides the per-run grid and physical parameters of the
// reaction-diffusion simulation.
package config

import (
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// MaxCells bounds width*height so that one float32 field buffer stays within
// 128 MiB, the smallest storage binding limit the supported devices report.
const MaxCells = 128 << 20 / 4

// ErrInvalid marks configuration errors. They are fatal at construction.
var ErrInvalid = errors.New("invalid configuration")

// ErrUnknownKey is returned by Set for keys that are not configuration fields.
var ErrUnknownKey = errors.New("unknown configuration key")

// Config holds the grid size and physical parameters for one run.
type Config struct {
	Width         uint32  `yaml:"width"`
	Height        uint32  `yaml:"height"`
	StepsPerFrame uint32  `yaml:"steps_per_frame"`
	Timestep      float32 `yaml:"timestep"`
	DiffusionA    float32 `yaml:"diffusion_a"`
	DiffusionB    float32 `yaml:"diffusion_b"`
	Feed          float32 `yaml:"feed"`
	Kill          float32 `yaml:"kill"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Width:         512,
		Height:        512,
		StepsPerFrame: 20,
		Timestep:      1.0,
		DiffusionA:    1.0,
		DiffusionB:    0.5,
		Feed:          0.03,
		Kill:          0.09,
	}
}

// WithSize returns the default configuration resized to width x height.
func WithSize(width, height uint32) Config {
	c := Default()
	c.Width = width
	c.Height = height
	return c
}

// Load reads the embedded defaults and overlays the YAML file at path. Only
// the fields present in the file are overwritten. An empty path yields the
// embedded defaults.
func Load(path string) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(defaultsYAML, &c); err != nil {
		return Config{}, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return c, nil
}

// Size returns width*height.
func (c Config) Size() uint64 {
	return uint64(c.Width) * uint64(c.Height)
}

// Validate reports configuration errors wrapped in ErrInvalid.
func (c Config) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("%w: grid dimensions must be positive, got %dx%d", ErrInvalid, c.Width, c.Height)
	}
	if c.Size() > MaxCells {
		return fmt.Errorf("%w: grid %dx%d has %d cells, limit is %d", ErrInvalid, c.Width, c.Height, c.Size(), MaxCells)
	}
	if c.StepsPerFrame == 0 {
		return fmt.Errorf("%w: steps per frame must be positive", ErrInvalid)
	}
	return nil
}

// Set assigns one field from its flag-style key and textual value.
func (c *Config) Set(key, value string) error {
	switch key {
	case "width":
		return setUint32(&c.Width, key, value)
	case "height":
		return setUint32(&c.Height, key, value)
	case "steps-per-frame":
		return setUint32(&c.StepsPerFrame, key, value)
	case "timestep":
		return setFloat32(&c.Timestep, key, value)
	case "diffusion-a":
		return setFloat32(&c.DiffusionA, key, value)
	case "diffusion-b":
		return setFloat32(&c.DiffusionB, key, value)
	case "feed":
		return setFloat32(&c.Feed, key, value)
	case "kill":
		return setFloat32(&c.Kill, key, value)
	}
	return fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// Keys lists the keys accepted by Set, in flag order.
func Keys() []string {
	return []string{"width", "height", "steps-per-frame", "timestep", "diffusion-a", "diffusion-b", "feed", "kill"}
}

// RegisterFlags binds the configuration fields to fs. Parsed flags write
// straight into c.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.Var((*uint32Value)(&c.Width), "width", "grid width in cells")
	fs.Var((*uint32Value)(&c.Height), "height", "grid height in cells")
	fs.Var((*uint32Value)(&c.StepsPerFrame), "steps-per-frame", "simulation steps advanced per displayed frame")
	fs.Var((*float32Value)(&c.Timestep), "timestep", "integration timestep")
	fs.Var((*float32Value)(&c.DiffusionA), "diffusion-a", "diffusion rate of species A")
	fs.Var((*float32Value)(&c.DiffusionB), "diffusion-b", "diffusion rate of species B")
	fs.Var((*float32Value)(&c.Feed), "feed", "feed rate of species A")
	fs.Var((*float32Value)(&c.Kill), "kill", "kill rate of species B")
}

// ApplySetFlags copies every configuration flag that was explicitly set on fs
// into c, so command-line values win over a loaded file.
func (c *Config) ApplySetFlags(fs *flag.FlagSet) error {
	var firstErr error
	fs.Visit(func(f *flag.Flag) {
		if firstErr != nil {
			return
		}
		err := c.Set(f.Name, f.Value.String())
		if err != nil && !errors.Is(err, ErrUnknownKey) {
			firstErr = err
		}
	})
	return firstErr
}

// WriteYAML writes the configuration to a YAML file.
func (c Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func setUint32(dst *uint32, key, value string) error {
	v, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = uint32(v)
	return nil
}

func setFloat32(dst *float32, key, value string) error {
	v, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = float32(v)
	return nil
}

type uint32Value uint32

func (v *uint32Value) String() string { return strconv.FormatUint(uint64(*v), 10) }

func (v *uint32Value) Set(s string) error {
	parsed, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return err
	}
	*v = uint32Value(parsed)
	return nil
}

type float32Value float32

func (v *float32Value) String() string { return strconv.FormatFloat(float64(*v), 'g', -1, 32) }

func (v *float32Value) Set(s string) error {
	parsed, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return err
	}
	*v = float32Value(parsed)
	return nil
}
