package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"jdbm/internal/metrics"
)

// On-disk layout:
//
//	header: magic "JDBM" | version u8 | codec u8 | reserved [2] | journal id [16]
//	frame:  length u32 | crc32(stored) u32 | stored
//
// stored is the codec-compressed protobuf encoding of a Record. Integers are
// little-endian.
const (
	headerSize      = 24
	frameHeaderSize = 8
	formatVersion   = 1
	maxPayload      = 64 << 20
)

var magic = [4]byte{'J', 'D', 'B', 'M'}

type fileHeader struct {
	Magic   [4]byte
	Version uint8
	Codec   uint8
	_       [2]byte
	ID      [16]byte
}

// errTorn marks an incomplete final frame, the expected residue of a crash
// during Append.
var errTorn = errors.New("torn journal record")

// Options configures a File journal.
type Options struct {
	// Codec applies to new journal files and to every generation started
	// by Clear. An existing file keeps the codec recorded in its header.
	Codec    Codec
	SyncMode SyncMode
	// Makedirs creates the journal's parent directory if it is missing.
	Makedirs bool
	Metrics  *metrics.Metrics
}

// journalFile is the part of *os.File the journal writes through.
type journalFile interface {
	io.Writer
	io.ReaderAt
	Sync() error
	Truncate(size int64) error
	Stat() (os.FileInfo, error)
	Close() error
}

// File is a Journal stored in a single append-only file.
type File struct {
	mu     sync.Mutex
	path   string
	opts   Options
	f      journalFile
	size   int64
	id     uuid.UUID
	codec  Codec
	seq    Sequence
	err    error // sticky: the file's tail is in an unknown state
	closed bool
}

var _ Journal = (*File)(nil)

// Open opens or creates the journal at path. A torn final record left by a
// crash is truncated away; any other damage fails with ErrCorrupt.
func Open(path string, opts Options) (*File, error) {
	if opts.SyncMode == "" {
		opts.SyncMode = SyncAlways
	}
	if !opts.Codec.valid() {
		return nil, fmt.Errorf("unknown journal codec %s", opts.Codec)
	}
	if opts.Makedirs {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	j := &File{path: path, opts: opts, f: f}
	if err := j.load(); err != nil {
		_ = f.Close()
		return nil, err
	}
	logger.Info("journal opened", "path", path, "id", j.id.String(), "codec", j.codec.String(), "last_seq", j.seq.Current())
	return j, nil
}

func (j *File) load() error {
	info, err := j.f.Stat()
	if err != nil {
		return fmt.Errorf("stat journal: %w", err)
	}
	size := info.Size()
	if size < headerSize {
		if size > 0 {
			logger.Warn("discarding incomplete journal header", "path", j.path, "size", size)
		}
		return j.initEmpty()
	}

	hdr, err := readHeader(io.NewSectionReader(j.f, 0, headerSize))
	if err != nil {
		return err
	}
	j.id = uuid.UUID(hdr.ID)
	j.codec = Codec(hdr.Codec)
	if j.codec != j.opts.Codec {
		logger.Info("journal codec differs from configuration, keeping file codec until clear",
			"path", j.path, "file", j.codec.String(), "configured", j.opts.Codec.String())
	}

	var last uint64
	body := bufio.NewReader(io.NewSectionReader(j.f, headerSize, size-headerSize))
	good, err := scanFrames(body, j.codec, func(r Record) bool {
		last = r.Seq
		return true
	})
	end := headerSize + good
	switch {
	case err == nil:
	case errors.Is(err, errTorn):
		logger.Warn("truncating torn journal tail", "path", j.path, "offset", end, "discarded_bytes", size-end)
		if err := j.f.Truncate(end); err != nil {
			return fmt.Errorf("truncating torn journal tail: %w", err)
		}
		if err := j.f.Sync(); err != nil {
			return fmt.Errorf("syncing journal: %w", err)
		}
		j.opts.Metrics.ObserveTornTail()
	default:
		return err
	}
	j.size = end
	j.seq.SetFloor(last)
	return nil
}

// initEmpty turns the open file into a fresh, header-only journal.
func (j *File) initEmpty() error {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("generating journal id: %w", err)
	}
	if err := j.f.Truncate(0); err != nil {
		return fmt.Errorf("truncating journal: %w", err)
	}
	if err := writeHeader(j.f, j.opts.Codec, id); err != nil {
		return err
	}
	if err := j.f.Sync(); err != nil {
		return fmt.Errorf("syncing journal header: %w", err)
	}
	j.id = id
	j.codec = j.opts.Codec
	j.size = headerSize
	return nil
}

// Append writes r as one frame and fsyncs it (SyncAlways). A failed write or
// sync is rolled back so that earlier records stay readable and the failed
// record is never replayed. After a failed sync the journal refuses further
// appends until Clear.
func (j *File) Append(r Record) (Record, error) {
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return Record{}, ErrClosed
	}
	if j.err != nil {
		return Record{}, j.err
	}

	r.Seq = j.seq.Next()
	frame, err := encodeFrame(j.codec, r)
	if err != nil {
		return Record{}, err
	}
	if _, err := j.f.Write(frame); err != nil {
		j.rollback()
		return Record{}, fmt.Errorf("writing journal record: %w", err)
	}
	if j.opts.SyncMode == SyncAlways {
		if err := j.f.Sync(); err != nil {
			// The record was never acknowledged, so it must not replay.
			j.rollback()
			j.err = fmt.Errorf("journal %s: earlier sync failed: %w", j.path, err)
			return Record{}, fmt.Errorf("syncing journal: %w", err)
		}
	}
	j.size += int64(len(frame))
	j.seq.SetFloor(r.Seq)
	j.opts.Metrics.ObserveAppend(r.Op.String(), len(frame))
	return r, nil
}

func (j *File) rollback() {
	if err := j.f.Truncate(j.size); err != nil {
		j.err = fmt.Errorf("journal %s: rollback after failed write: %w", j.path, err)
		logger.Error("journal rollback failed", "path", j.path, "size", j.size, "err", err)
	}
}

// ReadAll reads through a private file handle, so ranging does not disturb
// appends.
func (j *File) ReadAll() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		j.mu.Lock()
		closed, path := j.closed, j.path
		j.mu.Unlock()
		if closed {
			yield(Record{}, ErrClosed)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			yield(Record{}, fmt.Errorf("opening journal for read: %w", err))
			return
		}
		defer f.Close()

		br := bufio.NewReader(f)
		hdr, err := readHeader(br)
		if err != nil {
			yield(Record{}, err)
			return
		}
		_, err = scanFrames(br, Codec(hdr.Codec), func(r Record) bool {
			return yield(r, nil)
		})
		if errors.Is(err, errTorn) {
			logger.Debug("journal read stopped at incomplete record", "path", path)
			return
		}
		if err != nil {
			yield(Record{}, err)
		}
	}
}

// Clear starts a new, empty journal generation: a header-only file is
// written beside the journal and renamed over it.
func (j *File) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("generating journal id: %w", err)
	}
	tmp := j.path + ".tmp"
	if err := writeFresh(tmp, j.opts.Codec, id); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("clearing journal: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("clearing journal: %w", err)
	}
	dirErr := syncDir(filepath.Dir(j.path))

	f, err := os.OpenFile(j.path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		j.err = fmt.Errorf("journal %s: reopen after clear: %w", j.path, err)
		return j.err
	}
	if err := j.f.Close(); err != nil {
		logger.Warn("closing previous journal generation", "path", j.path, "err", err)
	}
	j.f = f
	j.size = headerSize
	j.id = id
	j.codec = j.opts.Codec
	j.seq.Reset()
	j.err = nil
	j.opts.Metrics.ObserveClear()
	logger.Info("journal cleared", "path", j.path, "id", id.String())

	if dirErr != nil {
		return fmt.Errorf("clearing journal: syncing directory: %w", dirErr)
	}
	return nil
}

func (j *File) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.f.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}
	return nil
}

// Path returns the journal file path.
func (j *File) Path() string { return j.path }

// ID identifies the current generation; Clear assigns a new one.
func (j *File) ID() uuid.UUID {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.id
}

// Codec returns the codec of the current generation.
func (j *File) Codec() Codec {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.codec
}

// LastSeq returns the sequence number of the last appended record.
func (j *File) LastSeq() uint64 { return j.seq.Current() }

// Size returns the journal size in bytes, header included.
func (j *File) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

func encodeFrame(c Codec, r Record) ([]byte, error) {
	stored := c.encode(marshalRecord(nil, r))
	if len(stored) > maxPayload {
		return nil, fmt.Errorf("%w: record for %q is %d bytes, limit %d", ErrInvalidRecord, r.Key, len(stored), maxPayload)
	}
	frame := make([]byte, frameHeaderSize, frameHeaderSize+len(stored))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(stored)))
	binary.LittleEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(stored))
	return append(frame, stored...), nil
}

func decodeFrame(c Codec, stored []byte, sum uint32) (Record, error) {
	if crc32.ChecksumIEEE(stored) != sum {
		return Record{}, errors.New("checksum mismatch")
	}
	payload, err := c.decode(stored)
	if err != nil {
		return Record{}, err
	}
	return unmarshalRecord(payload)
}

// scanFrames decodes frames from r until EOF or until fn returns false, and
// returns the number of bytes of intact frames consumed.
//
// A frame cut short by EOF, or a damaged frame with nothing after it, is
// reported as errTorn. Damage anywhere else is ErrCorrupt, as is a sequence
// number that does not increase.
func scanFrames(r *bufio.Reader, c Codec, fn func(Record) bool) (int64, error) {
	var (
		off  int64
		hdr  [frameHeaderSize]byte
		prev uint64
	)
	for idx := 1; ; idx++ {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				return off, nil
			}
			if err == io.ErrUnexpectedEOF {
				return off, errTorn
			}
			return off, fmt.Errorf("reading journal: %w", err)
		}
		n := binary.LittleEndian.Uint32(hdr[0:4])
		sum := binary.LittleEndian.Uint32(hdr[4:8])
		if n > maxPayload {
			if _, err := r.Peek(1); err == io.EOF {
				return off, errTorn
			}
			return off, fmt.Errorf("%w: record %d: length %d exceeds limit", ErrCorrupt, idx, n)
		}
		stored, err := io.ReadAll(io.LimitReader(r, int64(n)))
		if err != nil {
			return off, fmt.Errorf("reading journal: %w", err)
		}
		if len(stored) < int(n) {
			// A crash leaves at most one partial frame. Intact frames inside
			// the shortfall mean the length field itself is damaged.
			if containsFrame(c, stored) {
				return off, fmt.Errorf("%w: record %d: length %d runs over later records", ErrCorrupt, idx, n)
			}
			return off, errTorn
		}

		rec, err := decodeFrame(c, stored, sum)
		if err != nil {
			if _, perr := r.Peek(1); perr == io.EOF {
				return off, errTorn
			}
			return off, fmt.Errorf("%w: record %d: %w", ErrCorrupt, idx, err)
		}
		if rec.Seq <= prev {
			return off, fmt.Errorf("%w: record %d: sequence %d after %d", ErrCorrupt, idx, rec.Seq, prev)
		}
		if !fn(rec) {
			return off, nil
		}
		off += frameHeaderSize + int64(n)
		prev = rec.Seq
	}
}

// containsFrame reports whether an intact frame starts anywhere in b.
func containsFrame(c Codec, b []byte) bool {
	for i := 0; i+frameHeaderSize <= len(b); i++ {
		n := int(binary.LittleEndian.Uint32(b[i : i+4]))
		if n == 0 || n > len(b)-i-frameHeaderSize {
			continue
		}
		sum := binary.LittleEndian.Uint32(b[i+4 : i+8])
		stored := b[i+frameHeaderSize : i+frameHeaderSize+n]
		if _, err := decodeFrame(c, stored, sum); err == nil {
			return true
		}
	}
	return false
}

func readHeader(r io.Reader) (fileHeader, error) {
	var h fileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return h, fmt.Errorf("%w: short header", ErrCorrupt)
		}
		return h, fmt.Errorf("reading journal header: %w", err)
	}
	if h.Magic != magic {
		return h, fmt.Errorf("%w: bad magic %x", ErrCorrupt, h.Magic)
	}
	if h.Version != formatVersion {
		return h, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, h.Version)
	}
	if !Codec(h.Codec).valid() {
		return h, fmt.Errorf("%w: unknown codec %d", ErrCorrupt, h.Codec)
	}
	return h, nil
}

func writeHeader(w io.Writer, c Codec, id uuid.UUID) error {
	h := fileHeader{Magic: magic, Version: formatVersion, Codec: uint8(c), ID: id}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("writing journal header: %w", err)
	}
	return nil
}

func writeFresh(path string, c Codec, id uuid.UUID) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := writeHeader(f, c, id); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
