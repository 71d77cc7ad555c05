package kv

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"jdbm/internal/backend"
	"jdbm/internal/backend/builtin"
	"jdbm/internal/journal"
)

// corruptFirstRecord flips a byte inside the first frame's payload.
// The header is 24 bytes and each frame starts with 8 bytes of framing.
func corruptFirstRecord(t *testing.T, path string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()
	const off = 24 + 8 + 2
	b := make([]byte, 1)
	_, err = f.ReadAt(b, off)
	require.NoError(t, err)
	b[0] ^= 0xFF
	_, err = f.WriteAt(b, off)
	require.NoError(t, err)
}

func TestOpenRequiresJournalPath(t *testing.T) {
	_, err := Open(Options{Backend: builtin.Memory})
	require.ErrorIs(t, err, ErrNoJournalPath)
}

func TestOpenDerivesJournalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	o := Options{Backend: builtin.Bolt, Path: path}
	jpath, err := o.ResolvedJournalPath()
	require.NoError(t, err)
	require.Equal(t, path+JournalSuffix, jpath)

	s, err := Open(o)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = os.Stat(jpath)
	require.NoError(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "tc", JournalPath: filepath.Join(t.TempDir(), "j")})
	require.ErrorIs(t, err, backend.ErrUnknownBackend)
	require.ErrorIs(t, err, ErrBackend)
}

func TestOpenJournalFailureReleasesBackend(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data.db")
	// A directory where the journal file should be makes the journal fail
	// after the backend is already open.
	jpath := filepath.Join(dir, "journal-dir")
	require.NoError(t, os.Mkdir(jpath, 0755))

	_, err := Open(Options{Backend: builtin.Bolt, Path: dbPath, JournalPath: jpath})
	require.ErrorIs(t, err, ErrJournal)

	// bbolt holds an exclusive file lock while open; reopening proves the
	// failed Open closed it.
	s, err := Open(Options{Backend: builtin.Bolt, Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpenMakedirs(t *testing.T) {
	root := t.TempDir()
	s, err := Open(Options{
		Backend:     builtin.Bolt,
		Path:        filepath.Join(root, "var", "data.db"),
		JournalPath: filepath.Join(root, "journals", "data.journal"),
		Makedirs:    true,
	})
	require.NoError(t, err)
	require.NoError(t, s.Put("a", "1"))
	require.NoError(t, s.Close())
}

func TestVolatileBackendRecoversAfterReopen(t *testing.T) {
	jpath := filepath.Join(t.TempDir(), "mem.journal")

	s, err := Open(Options{Backend: builtin.Memory, JournalPath: jpath})
	require.NoError(t, err)
	require.NoError(t, s.Put("a", "111"))
	require.NoError(t, s.Put("b", "222"))
	require.NoError(t, s.Delete("b"))
	require.NoError(t, s.Close())

	s2, err := Open(Options{Backend: builtin.Memory, JournalPath: jpath})
	require.NoError(t, err)
	defer s2.Close()
	require.Equal(t, 0, length(t, s2), "memory backend starts empty")

	require.NoError(t, s2.RestoreFromJournal())
	require.Equal(t, []string{"a"}, keySet(t, s2))
}

func TestPersistentBackendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	s, err := Open(Options{Backend: builtin.Bolt, Path: path, Codec: journal.CodecSnappy})
	require.NoError(t, err)
	require.NoError(t, s.Put("a", "foo"))
	require.NoError(t, s.Close())

	s2, err := Open(Options{Backend: builtin.Bolt, Path: path, Codec: journal.CodecSnappy})
	require.NoError(t, err)
	defer s2.Close()
	v, err := s2.Get("a")
	require.NoError(t, err)
	require.Equal(t, "foo", v)

	require.NoError(t, s2.RestoreFromJournal())
	require.Equal(t, []string{"a"}, keySet(t, s2))
}

func TestJournalContents(t *testing.T) {
	s, err := Open(Options{JournalPath: filepath.Join(t.TempDir(), "j.journal")})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("a", "111"))
	require.NoError(t, s.Clear(false))
	require.NoError(t, s.RestoreFromJournal())
	require.NoError(t, s.Delete("a"))

	var buf bytes.Buffer
	n, err := s.DumpJournal(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "1\t+ \"a\" \"111\"\n2\t- \"a\"\n", buf.String())

	require.NoError(t, s.Clear(true))
	buf.Reset()
	n, err = s.DumpJournal(&buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, buf.String())
}

func TestCloseReleasesBoth(t *testing.T) {
	s := openStore(t, builtin.Sorted)
	require.NoError(t, s.Close())
	err := s.Put("a", "1")
	require.ErrorIs(t, err, journal.ErrClosed)
}
