package kiln

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/hupe1980/kiln/loader"
	"github.com/hupe1980/kiln/memory"
)

// Config is the file form of the Open options.
type Config struct {
	Memory   MemoryConfig   `toml:"memory"`
	Registry RegistryConfig `toml:"registry"`
	Tracker  TrackerConfig  `toml:"tracker"`
	Handles  HandlesConfig  `toml:"handles"`
	Loader   LoaderConfig   `toml:"loader"`
	Logging  LoggingConfig  `toml:"logging"`
}

type MemoryConfig struct {
	LinearCapacity   int   `toml:"linear_capacity"`
	TrackingCapacity int   `toml:"tracking_capacity"`
	MemoryLimit      int64 `toml:"memory_limit"` // bytes, 0 is unlimited
	HeapLinear       bool  `toml:"heap_linear"`
}

type RegistryConfig struct {
	BucketCount int `toml:"bucket_count"`
}

type TrackerConfig struct {
	BucketCount int `toml:"bucket_count"`
}

type HandlesConfig struct {
	Capacity int `toml:"capacity"`
}

type LoaderConfig struct {
	Workers       int   `toml:"workers"`
	QueueSize     int   `toml:"queue_size"`
	IOBytesPerSec int64 `toml:"io_bytes_per_sec"`
	CacheBytes    int64 `toml:"cache_bytes"` // source read cache, 0 disables
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Memory: MemoryConfig{
			LinearCapacity:   memory.DefaultLinearCapacity,
			TrackingCapacity: memory.DefaultTrackingCapacity,
		},
		Handles: HandlesConfig{
			Capacity: DefaultHandleCapacity,
		},
		Loader: LoaderConfig{
			Workers:   loader.DefaultWorkers,
			QueueSize: loader.DefaultQueueSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads a TOML file. Keys absent from the file keep their
// DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects negative sizes and unknown logging formats.
func (c *Config) Validate() error {
	switch {
	case c.Memory.LinearCapacity < 0:
		return fmt.Errorf("memory.linear_capacity must not be negative")
	case c.Memory.TrackingCapacity < 0:
		return fmt.Errorf("memory.tracking_capacity must not be negative")
	case c.Memory.MemoryLimit < 0:
		return fmt.Errorf("memory.memory_limit must not be negative")
	case c.Registry.BucketCount < 0:
		return fmt.Errorf("registry.bucket_count must not be negative")
	case c.Tracker.BucketCount < 0:
		return fmt.Errorf("tracker.bucket_count must not be negative")
	case c.Handles.Capacity < 0:
		return fmt.Errorf("handles.capacity must not be negative")
	case c.Loader.Workers < 0, c.Loader.QueueSize < 0, c.Loader.IOBytesPerSec < 0, c.Loader.CacheBytes < 0:
		return fmt.Errorf("loader settings must not be negative")
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q: want json or console", c.Logging.Format)
	}
	return nil
}

// Options converts the configuration into Open options.
func (c *Config) Options() []Option {
	opts := []Option{
		WithLinearCapacity(c.Memory.LinearCapacity),
		WithTrackingCapacity(c.Memory.TrackingCapacity),
		WithMemoryLimit(c.Memory.MemoryLimit),
		WithRegistryBuckets(c.Registry.BucketCount),
		WithTrackerBuckets(c.Tracker.BucketCount),
		WithHandleCapacity(c.Handles.Capacity),
		WithLoaderOptions(
			loader.WithWorkers(c.Loader.Workers),
			loader.WithQueueSize(c.Loader.QueueSize),
			loader.WithIORate(c.Loader.IOBytesPerSec),
		),
	}
	if c.Memory.HeapLinear {
		opts = append(opts, WithHeapLinear())
	}
	return opts
}
