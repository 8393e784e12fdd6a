package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/imagecache/cache"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}

	want := cache.DefaultConfig()
	if s.Cache.MemoryBudgetBytes != want.MemoryBudgetBytes {
		t.Errorf("MemoryBudgetBytes = %d, want %d", s.Cache.MemoryBudgetBytes, want.MemoryBudgetBytes)
	}
	if s.Cache.DiskBudgetBytes != want.DiskBudgetBytes {
		t.Errorf("DiskBudgetBytes = %d, want %d", s.Cache.DiskBudgetBytes, want.DiskBudgetBytes)
	}
	if !s.Cache.PersistVolatile {
		t.Error("PersistVolatile = false, want true")
	}
	if s.Cache.LookupMaxWait != want.LookupMaxWait {
		t.Errorf("LookupMaxWait = %v, want %v", s.Cache.LookupMaxWait, want.LookupMaxWait)
	}
	if len(s.Cache.HeaderWhitelist) != 1 || s.Cache.HeaderWhitelist[0] != "Accept" {
		t.Errorf("HeaderWhitelist = %v, want [Accept]", s.Cache.HeaderWhitelist)
	}
	if !filepath.IsAbs(s.Cache.Root) {
		t.Errorf("Root = %q, want absolute path", s.Cache.Root)
	}
	if s.Observe.ServiceName != "imagecache" {
		t.Errorf("ServiceName = %q, want imagecache", s.Observe.ServiceName)
	}
	if s.Observe.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", s.Observe.Logging.Level)
	}
}

func TestLoad_YAML(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, "imagecache.yaml", `
cache:
  root: `+root+`
  memory_budget_bytes: 16MiB
  disk_budget_bytes: "1 GB"
  persist_volatile: false
  header_whitelist: [Accept, Accept-Language]
  lookup_concurrency: 2
  lookup_max_wait: 250ms
  persist_attempts: 5
observe:
  service_name: thumbs
  logging:
    level: debug
    max_backups: 2
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c := s.Cache
	if c.Root != root {
		t.Errorf("Root = %q, want %q", c.Root, root)
	}
	if c.MemoryBudgetBytes != 16<<20 {
		t.Errorf("MemoryBudgetBytes = %d, want %d", c.MemoryBudgetBytes, 16<<20)
	}
	if c.DiskBudgetBytes != 1_000_000_000 {
		t.Errorf("DiskBudgetBytes = %d, want 1000000000", c.DiskBudgetBytes)
	}
	if c.PersistVolatile {
		t.Error("PersistVolatile = true, want false")
	}
	if len(c.HeaderWhitelist) != 2 || c.HeaderWhitelist[1] != "Accept-Language" {
		t.Errorf("HeaderWhitelist = %v", c.HeaderWhitelist)
	}
	if c.LookupConcurrency != 2 {
		t.Errorf("LookupConcurrency = %d, want 2", c.LookupConcurrency)
	}
	if c.LookupMaxWait != 250*time.Millisecond {
		t.Errorf("LookupMaxWait = %v, want 250ms", c.LookupMaxWait)
	}
	if c.PersistAttempts != 5 {
		t.Errorf("PersistAttempts = %d, want 5", c.PersistAttempts)
	}
	if s.Observe.ServiceName != "thumbs" {
		t.Errorf("ServiceName = %q, want thumbs", s.Observe.ServiceName)
	}
	if s.Observe.Logging.Level != "debug" || s.Observe.Logging.MaxBackups != 2 {
		t.Errorf("Logging = %+v", s.Observe.Logging)
	}
	if !s.Observe.Logging.Enabled {
		t.Error("Logging.Enabled default lost when section is partially set")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	root := t.TempDir()
	t.Setenv("IMAGECACHE_CACHE_ROOT", root)
	t.Setenv("IMAGECACHE_CACHE_MEMORY_BUDGET_BYTES", "128MiB")
	t.Setenv("IMAGECACHE_CACHE_HEADER_WHITELIST", "Accept,Accept-Encoding")
	t.Setenv("IMAGECACHE_CACHE_LOOKUP_MAX_WAIT", "1s")
	t.Setenv("IMAGECACHE_OBSERVE_LOGGING_LEVEL", "warn")

	path := writeFile(t, "imagecache.toml", `
[cache]
memory_budget_bytes = "8MiB"
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Cache.Root != root {
		t.Errorf("Root = %q, want %q", s.Cache.Root, root)
	}
	if s.Cache.MemoryBudgetBytes != 128<<20 {
		t.Errorf("MemoryBudgetBytes = %d, want env value %d", s.Cache.MemoryBudgetBytes, 128<<20)
	}
	if got := s.Cache.HeaderWhitelist; len(got) != 2 || got[1] != "Accept-Encoding" {
		t.Errorf("HeaderWhitelist = %v", got)
	}
	if s.Cache.LookupMaxWait != time.Second {
		t.Errorf("LookupMaxWait = %v, want 1s", s.Cache.LookupMaxWait)
	}
	if s.Observe.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", s.Observe.Logging.Level)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad byte size",
			content: "cache:\n  memory_budget_bytes: lots\n",
			wantErr: "invalid byte size",
		},
		{
			name:    "bad duration",
			content: "cache:\n  lookup_max_wait: soon\n",
			wantErr: "decode",
		},
		{
			name:    "bad log level",
			content: "observe:\n  logging:\n    level: loud\n",
			wantErr: "log level",
		},
		{
			name:    "sample pct out of range",
			content: "observe:\n  tracing:\n    enabled: true\n    exporter: none\n    sample_pct: 2\n",
			wantErr: "sample percentage",
		},
		{
			name:    "unset variable in root",
			content: "cache:\n  root: ${IMAGECACHE_TEST_UNSET_ROOT}/cache\n",
			wantErr: "IMAGECACHE_TEST_UNSET_ROOT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "imagecache.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil for missing file")
	}
}

func TestLoad_ExpandsPaths(t *testing.T) {
	base := t.TempDir()
	t.Setenv("IMAGECACHE_TEST_BASE", base)

	path := writeFile(t, "imagecache.yaml", `
cache:
  root: ${IMAGECACHE_TEST_BASE}/images
observe:
  logging:
    file: $IMAGECACHE_TEST_BASE/logs/$$cache.log
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Join(base, "images"); s.Cache.Root != want {
		t.Errorf("Root = %q, want %q", s.Cache.Root, want)
	}
	if want := base + "/logs/$cache.log"; s.Observe.Logging.File != want {
		t.Errorf("Logging.File = %q, want %q", s.Observe.Logging.File, want)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("IMAGECACHE_TEST_PRESENT", "ok")

	got, err := expandPath("f", "a=${IMAGECACHE_TEST_PRESENT} b=$$")
	if err != nil {
		t.Fatalf("expandPath() error = %v", err)
	}
	if got != "a=ok b=$" {
		t.Errorf("expandPath() = %q", got)
	}

	_, err = expandPath("f", "${IMAGECACHE_TEST_B_MISSING}/${IMAGECACHE_TEST_A_MISSING}/${IMAGECACHE_TEST_A_MISSING}")
	if err == nil {
		t.Fatal("expandPath() error = nil for unset variables")
	}
	if !strings.Contains(err.Error(), "IMAGECACHE_TEST_A_MISSING, IMAGECACHE_TEST_B_MISSING") {
		t.Errorf("error = %v, want sorted unique names", err)
	}
}
