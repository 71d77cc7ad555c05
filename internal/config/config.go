package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"jdbm/internal/journal"
	"jdbm/internal/kv"
)

type Config struct {
	Store StoreConfig `toml:"store" yaml:"store"`
	Log   LogConfig   `toml:"log" yaml:"log"`
}

type StoreConfig struct {
	Backend     string `toml:"backend" yaml:"backend"`
	Path        string `toml:"path" yaml:"path"`
	JournalPath string `toml:"journal_path" yaml:"journal_path"`
	Codec       string `toml:"codec" yaml:"codec"`
	Sync        string `toml:"sync" yaml:"sync"`
	Makedirs    bool   `toml:"makedirs" yaml:"makedirs"`
	// Bucket is passed to the bolt backend; other backends ignore it.
	Bucket string `toml:"bucket" yaml:"bucket"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "~/.jdbm/config.toml"

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:  "bolt",
			Path:     "~/.jdbm/data.db",
			Codec:    "none",
			Sync:     string(journal.SyncAlways),
			Makedirs: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a config file and returns the parsed Config. Files ending in
// .yaml or .yml are YAML, anything else is TOML.
// If path is empty, DefaultPath is used when it exists, else only defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = expandHome(DefaultPath)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks the values that Options would otherwise reject late.
func (c *Config) Validate() error {
	if c.Store.Backend == "" {
		return fmt.Errorf("store.backend must be set")
	}
	if c.Store.Path == "" && c.Store.JournalPath == "" {
		return fmt.Errorf("store.path or store.journal_path must be set")
	}
	if _, err := journal.ParseCodec(c.Store.Codec); err != nil {
		return fmt.Errorf("store.codec: %w", err)
	}
	if _, err := journal.ParseSyncMode(c.Store.Sync); err != nil {
		return fmt.Errorf("store.sync: %w", err)
	}
	return nil
}

// StoreOptions converts the store section into kv.Options, expanding ~ in
// paths. The registry and metrics are left for the caller.
func (c *Config) StoreOptions() (kv.Options, error) {
	if err := c.Validate(); err != nil {
		return kv.Options{}, err
	}
	codec, _ := journal.ParseCodec(c.Store.Codec)
	sync, _ := journal.ParseSyncMode(c.Store.Sync)
	o := kv.Options{
		Backend:     c.Store.Backend,
		Path:        expandHome(c.Store.Path),
		JournalPath: expandHome(c.Store.JournalPath),
		Codec:       codec,
		SyncMode:    sync,
		Makedirs:    c.Store.Makedirs,
	}
	if c.Store.Bucket != "" {
		o.BackendOptions = map[string]string{"bucket": c.Store.Bucket}
	}
	return o, nil
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	return expandHome(path)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
