package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jdbm/internal/journal"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Store.Backend != "bolt" {
		t.Errorf("Backend: got %q, want bolt", cfg.Store.Backend)
	}
	if cfg.Store.Path != "~/.jdbm/data.db" {
		t.Errorf("Path: got %q, want ~/.jdbm/data.db", cfg.Store.Path)
	}
	if cfg.Store.Sync != "always" {
		t.Errorf("Sync: got %q, want always", cfg.Store.Sync)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[store]
backend = "sorted"
journal_path = "/tmp/jdbm-test/kv.journal"
codec = "snappy"
sync = "none"

[log]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "sorted" {
		t.Errorf("Backend: got %q", cfg.Store.Backend)
	}
	if cfg.Store.JournalPath != "/tmp/jdbm-test/kv.journal" {
		t.Errorf("JournalPath: got %q", cfg.Store.JournalPath)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log: got %+v", cfg.Log)
	}
	// Unset keys keep their defaults.
	if cfg.Store.Path != "~/.jdbm/data.db" {
		t.Errorf("Path: got %q, want default", cfg.Store.Path)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `
store:
  backend: bolt
  path: /var/lib/jdbm/data.db
  bucket: records
log:
  level: warn
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/var/lib/jdbm/data.db" {
		t.Errorf("Path: got %q", cfg.Store.Path)
	}
	if cfg.Store.Bucket != "records" {
		t.Errorf("Bucket: got %q", cfg.Store.Bucket)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format: got %q, want default", cfg.Log.Format)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[store\nbackend = "), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Error("expected error for an explicit missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"no backend", func(c *Config) { c.Store.Backend = "" }, "store.backend"},
		{"no paths", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"bad codec", func(c *Config) { c.Store.Codec = "zstd" }, "store.codec"},
		{"bad sync", func(c *Config) { c.Store.Sync = "sometimes" }, "store.sync"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}

	cfg := Defaults()
	cfg.Store.Path = ""
	cfg.Store.JournalPath = "/tmp/only.journal"
	if err := cfg.Validate(); err != nil {
		t.Errorf("journal path alone should be enough: %v", err)
	}
}

func TestStoreOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Path = "~/kv/data.db"
	cfg.Store.Codec = "snappy"
	cfg.Store.Sync = "none"
	cfg.Store.Bucket = "records"

	o, err := cfg.StoreOptions()
	if err != nil {
		t.Fatalf("StoreOptions: %v", err)
	}
	home, _ := os.UserHomeDir()
	if o.Path != filepath.Join(home, "kv/data.db") {
		t.Errorf("Path: got %q", o.Path)
	}
	if o.Codec != journal.CodecSnappy {
		t.Errorf("Codec: got %v", o.Codec)
	}
	if o.SyncMode != journal.SyncNone {
		t.Errorf("SyncMode: got %v", o.SyncMode)
	}
	if o.BackendOptions["bucket"] != "records" {
		t.Errorf("bucket option: got %v", o.BackendOptions)
	}
	if !o.Makedirs {
		t.Error("Makedirs should carry over")
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandHome("~/foo"); got != filepath.Join(home, "foo") {
		t.Errorf("ExpandHome(~/foo) = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandHome(/abs/path) = %q", got)
	}
}
