package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/jonwraymond/imagecache/cache"
	"github.com/jonwraymond/imagecache/observe"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IMAGECACHE"

// Settings is the complete imagecache configuration.
type Settings struct {
	Cache   cache.Config   `mapstructure:"cache"`
	Observe observe.Config `mapstructure:"observe"`
}

// Validate validates both sections.
func (s *Settings) Validate() error {
	if err := s.Cache.Validate(); err != nil {
		return err
	}
	return s.Observe.Validate()
}

// Load reads settings from path, then applies environment overrides and
// defaults. An empty path loads defaults and environment only.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	s.Cache.ApplyDefaults()
	root, err := expandPath("cache.root", s.Cache.Root)
	if err != nil {
		return nil, err
	}
	if s.Cache.Root, err = filepath.Abs(root); err != nil {
		return nil, fmt.Errorf("config: resolve cache root: %w", err)
	}
	if s.Observe.Logging.File, err = expandPath("observe.logging.file", s.Observe.Logging.File); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	c := cache.DefaultConfig()
	v.SetDefault("cache.root", c.Root)
	v.SetDefault("cache.memory_budget_bytes", c.MemoryBudgetBytes)
	v.SetDefault("cache.disk_budget_bytes", c.DiskBudgetBytes)
	v.SetDefault("cache.persist_volatile", c.PersistVolatile)
	v.SetDefault("cache.header_whitelist", c.HeaderWhitelist)
	v.SetDefault("cache.lookup_concurrency", c.LookupConcurrency)
	v.SetDefault("cache.lookup_max_wait", c.LookupMaxWait)
	v.SetDefault("cache.persist_attempts", c.PersistAttempts)

	o := observe.DefaultConfig()
	v.SetDefault("observe.service_name", o.ServiceName)
	v.SetDefault("observe.version", o.Version)
	v.SetDefault("observe.tracing.enabled", o.Tracing.Enabled)
	v.SetDefault("observe.tracing.exporter", o.Tracing.Exporter)
	v.SetDefault("observe.tracing.sample_pct", o.Tracing.SamplePct)
	v.SetDefault("observe.metrics.enabled", o.Metrics.Enabled)
	v.SetDefault("observe.metrics.exporter", o.Metrics.Exporter)
	v.SetDefault("observe.logging.enabled", o.Logging.Enabled)
	v.SetDefault("observe.logging.level", o.Logging.Level)
	v.SetDefault("observe.logging.file", o.Logging.File)
	v.SetDefault("observe.logging.max_size_mb", o.Logging.MaxSizeMB)
	v.SetDefault("observe.logging.max_backups", o.Logging.MaxBackups)
	v.SetDefault("observe.logging.compress", o.Logging.Compress)
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		byteSizeDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook accepts sizes such as "64MiB", "1.5 GB" or "4096" for
// int64 fields. Durations are handled before this hook runs.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	target := reflect.TypeOf(int64(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != target || from.Kind() != reflect.String {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return int64(0), nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("invalid byte size %q: %w", s, err)
		}
		if n > uint64(1<<63-1) {
			return nil, fmt.Errorf("byte size %q overflows int64", s)
		}
		return int64(n), nil
	}
}
