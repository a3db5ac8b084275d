package stash

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the file-loadable configuration surface for an Engine.
//
// Example YAML:
//
//	dir: .stash
//	max_size: 512mb
//	compress: true
//	work_dir: .
type Config struct {
	// Dir is the workspace directory holding archives and the metadata
	// document.
	Dir string `yaml:"dir"`

	// MaxSize is a human-readable cache size budget ("512mb", "2gb").
	// Empty means unlimited.
	MaxSize string `yaml:"max_size"`

	// Compress is the default compression flag.
	Compress bool `yaml:"compress"`

	// WorkDir is the default working directory for operations.
	WorkDir string `yaml:"work_dir"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// NewFromConfig creates an Engine from a Config.
func NewFromConfig(cfg Config) (*Engine, error) {
	var opts []Option
	if cfg.MaxSize != "" {
		opts = append(opts, WithMaxSizeString(cfg.MaxSize))
	}
	opts = append(opts, WithCompression(cfg.Compress))
	if cfg.WorkDir != "" {
		opts = append(opts, WithWorkDir(cfg.WorkDir))
	}
	return New(cfg.Dir, opts...)
}

// ParseSize converts a human-readable size string like "512mb" or "1.5GiB"
// to bytes.
func ParseSize(size string) (int64, error) {
	n, err := humanize.ParseBytes(size)
	if err != nil {
		return 0, fmt.Errorf("parsing size %q: %w", size, err)
	}
	return int64(n), nil
}
