package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMemstoreMaxBytes triggers an automatic flush once a table's
	// memstore grows past this size. Zero disables auto-flush.
	DefaultMemstoreMaxBytes = 1 << 20

	// DefaultBloomFilterBits is the bitmap size of each segment's bloom filter.
	DefaultBloomFilterBits = 1 << 13
)

type Config struct {
	// Dir is the storage root. Namespaces are direct subdirectories.
	Dir string `yaml:"dir"`

	// MemstoreMaxBytes is the approximate memstore size at which a table
	// flushes itself. 0 disables automatic flushing.
	MemstoreMaxBytes int64 `yaml:"memstore_max_bytes"`

	// BloomFilterBits is the bitmap length for per-segment bloom filters.
	BloomFilterBits int `yaml:"bloom_filter_bits"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// New returns a config with defaults for the given storage root.
func New(dir string) *Config {
	return &Config{
		Dir:              dir,
		MemstoreMaxBytes: DefaultMemstoreMaxBytes,
		BloomFilterBits:  DefaultBloomFilterBits,
		LogLevel:         "info",
	}
}

// FromFile loads a YAML config file and fills in defaults for absent fields.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	conf := &Config{}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if conf.Dir == "" {
		conf.Dir = "kvstore"
	}
	if conf.MemstoreMaxBytes == 0 {
		conf.MemstoreMaxBytes = DefaultMemstoreMaxBytes
	}
	if conf.BloomFilterBits == 0 {
		conf.BloomFilterBits = DefaultBloomFilterBits
	}
	if conf.LogLevel == "" {
		conf.LogLevel = "info"
	}
	return conf, nil
}
