package shell

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/term"

	"jdbm/internal/backend/memory"
	"jdbm/internal/journal"
	"jdbm/internal/kv"
)

// readWriter combines separate read and write halves into an io.ReadWriter.
type readWriter struct {
	io.Reader
	io.Writer
}

// mockTerminal creates a term.Terminal backed by an in-memory pipe.
// Returns the terminal and a function that reads all written output.
func mockTerminal(t *testing.T) (*term.Terminal, func() string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	t.Cleanup(func() { _ = w.Close() })
	terminal := term.NewTerminal(readWriter{r, w}, "> ")
	readOutput := func() string {
		_ = w.Close()
		data, _ := io.ReadAll(r)
		return string(data)
	}
	return terminal, readOutput
}

func memStore(t *testing.T) *kv.Store {
	t.Helper()
	s := kv.New(memory.New(), journal.NewMemory())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fileStore(t *testing.T) *kv.Store {
	t.Helper()
	s, err := kv.Open(kv.Options{JournalPath: filepath.Join(t.TempDir(), "shell.journal")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
