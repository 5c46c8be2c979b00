package engine

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// MaxYoungWosize is the largest block allocated in the minor heap.
const MaxYoungWosize = 256

// Config holds configuration for heap creation
type Config struct {
	// MinorHeapWords sets the size of the minor heap in words.
	// 0 means default (256K words).
	MinorHeapWords int `toml:"minor_heap_words"`

	// MajorChunkWords is the minimum size of a major heap chunk in words.
	MajorChunkWords int `toml:"major_chunk_words"`

	// MajorHeapWords is the major heap budget. Exceeding it triggers a compaction,
	// after which the budget grows to twice the live size.
	MajorHeapWords int `toml:"major_heap_words"`

	// MaxHeapWords caps the major heap. Allocation beyond it raises Out_of_memory.
	// 0 means unlimited.
	MaxHeapWords int `toml:"max_heap_words"`

	// MaxCallDepth bounds nested closure applications. Deeper calls raise Stack_overflow.
	MaxCallDepth int `toml:"max_call_depth"`

	// GCStress runs a compaction before every allocation, relocating every live block.
	GCStress bool `toml:"gc_stress"`

	// Poison fills retired heap memory with PoisonWord and keeps it mapped until Close.
	Poison bool `toml:"poison"`

	// LogLevel is consumed by command-line tools building a logger.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		MinorHeapWords:  256 << 10,
		MajorChunkWords: 64 << 10,
		MajorHeapWords:  1 << 20,
		MaxCallDepth:    10000,
		LogLevel:        "info",
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinorHeapWords <= 0 {
		c.MinorHeapWords = d.MinorHeapWords
	}
	if c.MinorHeapWords < MaxYoungWosize+1 {
		c.MinorHeapWords = MaxYoungWosize + 1
	}
	if c.MajorChunkWords <= 0 {
		c.MajorChunkWords = d.MajorChunkWords
	}
	if c.MajorHeapWords <= 0 {
		c.MajorHeapWords = d.MajorHeapWords
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = d.MaxCallDepth
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	return c
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	if c.MaxHeapWords < 0 {
		return fmt.Errorf("max_heap_words must not be negative, got %d", c.MaxHeapWords)
	}
	if c.MinorHeapWords < 0 || c.MajorHeapWords < 0 || c.MajorChunkWords < 0 {
		return fmt.Errorf("heap sizes must not be negative")
	}
	if c.MaxCallDepth < 0 {
		return fmt.Errorf("max_call_depth must not be negative, got %d", c.MaxCallDepth)
	}
	return nil
}

// LoadConfig reads a TOML configuration file. Missing keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes TOML configuration text. Missing keys keep their defaults.
func ParseConfig(data string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("parse config: unknown key %q", undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
