// Package config loads the segalloc command configuration from YAML. The
// zero value of every section means "use the package default", so a config
// file only needs the settings it changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/segalloc/alloc"
	"github.com/joshuapare/segalloc/internal/format"
	"github.com/joshuapare/segalloc/region"
)

// Region backends.
const (
	BackendMem  = "mem"
	BackendAnon = "anon"
	BackendFile = "file"
)

// Config is the serialisable configuration of the segalloc tool.
type Config struct {
	Alloc  AllocConfig  `json:"alloc" yaml:"alloc"`
	Region RegionConfig `json:"region" yaml:"region"`
	Log    LogConfig    `json:"log" yaml:"log"`
}

// AllocConfig mirrors alloc.Config.
type AllocConfig struct {
	ChunkSize    ByteSize `json:"chunk_size" yaml:"chunk_size"`
	CheckEveryOp bool     `json:"check_every_op" yaml:"check_every_op"`
}

// RegionConfig selects and sizes the heap backing.
type RegionConfig struct {
	Backend string   `json:"backend" yaml:"backend"`
	MaxHeap ByteSize `json:"max_heap" yaml:"max_heap"`
	Path    string   `json:"path" yaml:"path"` // file backend only
}

// LogConfig configures the process logger.
type LogConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Level   string `json:"level" yaml:"level"` // debug, info, warn, error
	JSON    bool   `json:"json" yaml:"json"`
	Dir     string `json:"dir" yaml:"dir"` // empty logs to stderr
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Default returns a Config populated with the package defaults.
func Default() *Config {
	return &Config{
		Alloc: AllocConfig{
			ChunkSize: ByteSize(format.DefaultChunkSize),
		},
		Region: RegionConfig{
			Backend: BackendMem,
			MaxHeap: ByteSize(format.DefaultMaxHeap),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.AllocatorConfig().Validate(); err != nil {
		return fmt.Errorf("%w: alloc.chunk_size: %w", ErrInvalid, err)
	}
	switch c.Region.Backend {
	case BackendMem, BackendAnon:
	case BackendFile:
		if c.Region.Path == "" {
			return fmt.Errorf("%w: region.path is required for the file backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: region.backend %q (want mem, anon or file)", ErrInvalid, c.Region.Backend)
	}
	if c.Region.MaxHeap <= 0 || int64(c.Region.MaxHeap) > region.MaxHeap {
		return fmt.Errorf("%w: region.max_heap %d out of range (1..%d)", ErrInvalid, c.Region.MaxHeap, region.MaxHeap)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	return nil
}

// AllocatorConfig converts the alloc section for alloc.New.
func (c *Config) AllocatorConfig() alloc.Config {
	return alloc.Config{
		ChunkSize:    int(c.Alloc.ChunkSize),
		CheckEveryOp: c.Alloc.CheckEveryOp,
	}
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.ToUpper(c.Log.Level)))
	return l, err
}
