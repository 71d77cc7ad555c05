// Package shell runs an interactive line-oriented session over a kv.Store.
package shell

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"jdbm/internal/kv"
	"jdbm/internal/logging"
)

var logger = logging.For("shell")

// Prompt is shown before every input line.
const Prompt = "jdbm> "

// Shell reads commands from a terminal and applies them to a store.
type Shell struct {
	store    *kv.Store
	stats    prometheus.Gatherer
	commands *CommandRegistry
}

// New returns a shell over store with the store and session commands
// registered. stats may be nil.
func New(store *kv.Store, stats prometheus.Gatherer) *Shell {
	reg := NewCommandRegistry()
	RegisterStoreCommands(reg)
	reg.RegisterBuiltins()
	return &Shell{store: store, stats: stats, commands: reg}
}

// Commands returns the registry so callers can add commands before Run.
// Once Run starts, the registry is frozen and Register will panic.
func (s *Shell) Commands() CommandRegistrar {
	return s.commands
}

// Run serves one session on rw until /quit or end of input.
func (s *Shell) Run(rw io.ReadWriter) error {
	s.commands.Freeze()
	terminal := term.NewTerminal(rw, Prompt)

	_, _ = fmt.Fprintln(terminal, "jdbm shell. Type /help for commands.")

	base := CommandContext{Store: s.store, Terminal: terminal, Stats: s.stats}
	for {
		line, err := terminal.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			_, _ = fmt.Fprintln(terminal, "Commands start with / (try /help)")
			continue
		}
		logger.Debug("command", "line", line)
		if s.commands.Dispatch(line, base) {
			return nil
		}
	}
}
