// Package config handles garnet.toml and garnet.yaml runtime configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/garnet/vm"
	"gopkg.in/yaml.v3"
)

// FileNames lists the configuration files searched in each directory, in
// order of preference.
var FileNames = []string{"garnet.toml", "garnet.yaml", "garnet.yml"}

// DefaultAddr is the inspection server address when none is configured.
const DefaultAddr = "127.0.0.1:7411"

// Config represents a garnet configuration file.
type Config struct {
	Runtime Runtime `toml:"runtime" yaml:"runtime"`
	Log     Log     `toml:"log" yaml:"log"`
	Server  Server  `toml:"server" yaml:"server"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-" yaml:"-"`
}

// Runtime configures the object space.
type Runtime struct {
	SafeLevel         int  `toml:"safe-level" yaml:"safe-level"`
	MaxCallDepth      int  `toml:"max-call-depth" yaml:"max-call-depth"`
	AliasRootFallback bool `toml:"alias-root-fallback" yaml:"alias-root-fallback"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	Path      string `toml:"path" yaml:"path"`
}

// Server configures the inspection service.
type Server struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Runtime.MaxCallDepth == 0 {
		c.Runtime.MaxCallDepth = vm.DefaultMaxCallDepth
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	if c.Runtime.SafeLevel < 0 || c.Runtime.SafeLevel > 4 {
		return fmt.Errorf("runtime.safe-level must be between 0 and 4, got %d", c.Runtime.SafeLevel)
	}
	if c.Runtime.MaxCallDepth < 0 {
		return fmt.Errorf("runtime.max-call-depth must not be negative, got %d", c.Runtime.MaxCallDepth)
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity must not be negative, got %d", c.Log.Verbosity)
	}
	return nil
}

// RuntimeOptions converts the [runtime] section to vm.Options.
func (c *Config) RuntimeOptions() vm.Options {
	opts := vm.DefaultOptions()
	opts.SafeLevel = c.Runtime.SafeLevel
	if c.Runtime.MaxCallDepth > 0 {
		opts.MaxCallDepth = c.Runtime.MaxCallDepth
	}
	opts.AliasRootFallback = c.Runtime.AliasRootFallback
	return opts
}

// LoadFile parses a configuration file. The format follows the extension:
// .toml, or .yaml/.yml. Unknown keys are an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), &c)
		if err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse error in %s: unknown key %s", path, undecoded[0])
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// Load reads the first of FileNames present in dir.
func Load(dir string) (*Config, error) {
	if path, ok := find(dir); ok {
		return LoadFile(path)
	}
	return nil, fmt.Errorf("no %s in %s", strings.Join(FileNames, " or "), dir)
}

func find(dir string) (string, bool) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// FindAndLoad walks up from startDir to find a configuration file, then
// loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if path, ok := find(dir); ok {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}
