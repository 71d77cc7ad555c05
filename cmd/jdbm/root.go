package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"jdbm/internal/backend/builtin"
	"jdbm/internal/config"
	"jdbm/internal/kv"
	"jdbm/internal/logging"
	"jdbm/internal/metrics"
)

var logger = logging.For("cli")

// volatile backends lose their contents on close and are rebuilt from the
// journal whenever the CLI opens them.
var volatile = []string{builtin.Memory, builtin.Sorted}

type app struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	registry *prometheus.Registry

	configPath  string
	backendName string
	path        string
	journalPath string
	logLevel    string
	logFormat   string
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "jdbm",
		Short: "A journaling key-value store",
		Long: `jdbm stores string keys and values in a pluggable backend and records
every mutation in an append-only journal first, so the backend can be
rebuilt from the journal at any time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to config file (TOML, or YAML by extension)")
	pf.StringVar(&a.backendName, "backend", "", "backend variant (overrides config)")
	pf.StringVar(&a.path, "path", "", "backend data path (overrides config)")
	pf.StringVar(&a.journalPath, "journal", "", "journal path (overrides config; default <path>.journal)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json (overrides config)")

	root.AddCommand(
		a.putCmd(),
		a.getCmd(),
		a.delCmd(),
		a.existsCmd(),
		a.lenCmd(),
		a.keysCmd(),
		a.clearCmd(),
		a.restoreCmd(),
		a.journalCmd(),
		a.backendsCmd(),
		a.shellCmd(),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.backendName != "" {
		cfg.Store.Backend = a.backendName
	}
	if a.path != "" {
		cfg.Store.Path = a.path
	}
	if a.journalPath != "" {
		cfg.Store.JournalPath = a.journalPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	return cfg, nil
}

// openStore opens the configured store. Volatile backends are restored
// from the journal so one-shot commands see the journaled state.
func (a *app) openStore() (*kv.Store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	logging.Init(a.errOut, cfg.Log.Level, cfg.Log.Format)

	opts, err := cfg.StoreOptions()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a.registry = prometheus.NewRegistry()
	opts.Metrics = metrics.New(a.registry)

	store, err := kv.Open(opts)
	if err != nil {
		return nil, err
	}
	if slices.Contains(volatile, opts.Backend) {
		if err := store.RestoreFromJournal(); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	logger.Debug("store ready", "backend", opts.Backend)
	return store, nil
}

// withStore opens the store, runs fn and closes the store.
func (a *app) withStore(fn func(*kv.Store) error) (err error) {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()
	return fn(store)
}
