package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config configures tiers and coordinators.
type Config struct {
	// Root is the disk tier root directory. Each namespace gets a subdirectory.
	// Default: <user cache dir>/imagecache
	Root string `mapstructure:"root"`

	// MemoryBudgetBytes bounds the memory tier per namespace.
	// Zero or negative means unbounded.
	// Default: 64 MiB
	MemoryBudgetBytes int64 `mapstructure:"memory_budget_bytes"`

	// DiskBudgetBytes bounds the disk tier per namespace.
	// Zero or negative means unbounded.
	// Default: 512 MiB
	DiskBudgetBytes int64 `mapstructure:"disk_budget_bytes"`

	// PersistVolatile writes non-permanent entries through to disk as well.
	// Permanent entries are always persisted.
	// Default: true
	PersistVolatile bool `mapstructure:"persist_volatile"`

	// HeaderWhitelist lists the request headers that participate in keys.
	// Default: DefaultHeaderWhitelist
	HeaderWhitelist []string `mapstructure:"header_whitelist"`

	// LookupConcurrency bounds concurrent disk lookups per coordinator.
	// Default: 8
	LookupConcurrency int `mapstructure:"lookup_concurrency"`

	// LookupMaxWait is how long a lookup waits for a free slot before
	// reporting a miss.
	// Default: 5s
	LookupMaxWait time.Duration `mapstructure:"lookup_max_wait"`

	// PersistAttempts is the number of attempts for a disk write.
	// Default: 3
	PersistAttempts int `mapstructure:"persist_attempts"`
}

// Defaults applied by DefaultConfig and ApplyDefaults.
const (
	DefaultMemoryBudgetBytes int64 = 64 << 20
	DefaultDiskBudgetBytes   int64 = 512 << 20
	DefaultLookupConcurrency       = 8
	DefaultLookupMaxWait           = 5 * time.Second
	DefaultPersistAttempts         = 3
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Root:              DefaultRoot(),
		MemoryBudgetBytes: DefaultMemoryBudgetBytes,
		DiskBudgetBytes:   DefaultDiskBudgetBytes,
		PersistVolatile:   true,
		HeaderWhitelist:   append([]string(nil), DefaultHeaderWhitelist...),
		LookupConcurrency: DefaultLookupConcurrency,
		LookupMaxWait:     DefaultLookupMaxWait,
		PersistAttempts:   DefaultPersistAttempts,
	}
}

// DefaultRoot returns the default disk tier root.
func DefaultRoot() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "imagecache")
}

// ApplyDefaults fills zero-valued fields that have no meaningful zero value.
// Budgets are left alone: zero means unbounded.
func (c *Config) ApplyDefaults() {
	if c.Root == "" {
		c.Root = DefaultRoot()
	}
	if len(c.HeaderWhitelist) == 0 {
		c.HeaderWhitelist = append([]string(nil), DefaultHeaderWhitelist...)
	}
	if c.LookupConcurrency <= 0 {
		c.LookupConcurrency = DefaultLookupConcurrency
	}
	if c.LookupMaxWait <= 0 {
		c.LookupMaxWait = DefaultLookupMaxWait
	}
	if c.PersistAttempts <= 0 {
		c.PersistAttempts = DefaultPersistAttempts
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("cache: root directory is required")
	}
	if c.LookupConcurrency < 0 {
		return fmt.Errorf("cache: lookup concurrency must not be negative, got %d", c.LookupConcurrency)
	}
	if c.LookupMaxWait < 0 {
		return fmt.Errorf("cache: lookup max wait must not be negative, got %s", c.LookupMaxWait)
	}
	if c.PersistAttempts < 0 {
		return fmt.Errorf("cache: persist attempts must not be negative, got %d", c.PersistAttempts)
	}
	return nil
}
