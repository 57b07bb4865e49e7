// Package fileops implements chunked file transfers between the desktop and
// the device filesystem.
//
// Downloads and uploads are identified by transfer ids. Chunks are numbered
// from 1 and carry at most ChunkSize raw bytes, base64-encoded on the wire.
// An upload is written to a temporary file and moved into place only after
// its CRC32 matches the value announced when it started.
package fileops

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pithecene-io/desklink/iox"
	"github.com/pithecene-io/desklink/log"
)

// ChunkSize is the number of raw bytes per chunk.
const ChunkSize = 12 * 1024

var (
	// ErrUnknownTransfer is returned for a transfer id that is not active.
	ErrUnknownTransfer = errors.New("unknown transfer")
	// ErrChunkNumber is returned for a chunk outside the file or out of order.
	ErrChunkNumber = errors.New("invalid chunk number")
	// ErrCRCMismatch is returned when a completed upload fails verification.
	ErrCRCMismatch = errors.New("crc32 mismatch")
	// ErrOverflow is returned when an upload exceeds its announced size.
	ErrOverflow = errors.New("more data than announced")
	// ErrNotFile is returned when a download names a directory.
	ErrNotFile = errors.New("not a regular file")
)

// Download describes a started download.
type Download struct {
	RxID      uint32
	FileSize  int64
	ChunkSize int
	CRC32     string
}

// Chunk is one downloaded chunk.
type Chunk struct {
	Data string
	Last bool
	// CRC32 of the whole file, set on the last chunk.
	CRC32 string
}

// Entry is one directory listing entry.
type Entry struct {
	Path string
	Size int64
	Type string
}

// Entry types.
const (
	TypeDirectory = "directory"
	TypeRegular   = "regularFile"
	TypeSymlink   = "symlink"
	TypeOther     = "other"
)

type receive struct {
	path   string
	size   int64
	crc    string
	chunks uint32
}

type transmit struct {
	dest     string
	tmp      *os.File
	w        *iox.CRC32Writer
	size     int64
	crc      uint32
	received uint32
}

// Manager tracks active transfers below a root directory.
type Manager struct {
	root   string
	logger *log.Logger

	mu     sync.Mutex
	nextID uint32
	rx     map[uint32]*receive
	tx     map[uint32]*transmit
}

// New creates a Manager confined to root.
func New(root string, logger *log.Logger) *Manager {
	return &Manager{
		root:   root,
		logger: log.OrNop(logger).Named("fileops"),
		rx:     make(map[uint32]*receive),
		tx:     make(map[uint32]*transmit),
	}
}

// Root returns the directory every path is resolved against.
func (m *Manager) Root() string { return m.root }

// Resolve maps a device path to a host path below the root. Absolute device
// paths are taken relative to the root and ".." cannot climb above it.
func (m *Manager) Resolve(name string) string {
	rel := strings.TrimPrefix(filepath.Clean("/"+filepath.ToSlash(name)), "/")
	return filepath.Join(m.root, filepath.FromSlash(rel))
}

func (m *Manager) allocID() uint32 {
	m.nextID++
	return m.nextID
}

// StartDownload opens a download of name.
func (m *Manager) StartDownload(name string) (Download, error) {
	path := m.Resolve(name)
	info, err := os.Stat(path)
	if err != nil {
		return Download{}, err
	}
	if !info.Mode().IsRegular() {
		return Download{}, fmt.Errorf("%s: %w", name, ErrNotFile)
	}
	sum, size, err := iox.FileCRC32(path)
	if err != nil {
		return Download{}, err
	}

	r := &receive{
		path:   path,
		size:   size,
		crc:    iox.FormatCRC32(sum),
		chunks: uint32((size + ChunkSize - 1) / ChunkSize),
	}
	// An empty file is one empty last chunk.
	if r.chunks == 0 {
		r.chunks = 1
	}
	m.mu.Lock()
	id := m.allocID()
	m.rx[id] = r
	m.mu.Unlock()

	m.logger.Debug("download started", map[string]any{"rx_id": id, "path": name, "size": size})
	return Download{RxID: id, FileSize: size, ChunkSize: ChunkSize, CRC32: r.crc}, nil
}

// DownloadChunk reads chunk chunkNo of a download. The download ends after
// its last chunk was read.
func (m *Manager) DownloadChunk(rxID, chunkNo uint32) (Chunk, error) {
	m.mu.Lock()
	r, ok := m.rx[rxID]
	m.mu.Unlock()
	if !ok {
		return Chunk{}, fmt.Errorf("rx %d: %w", rxID, ErrUnknownTransfer)
	}
	if chunkNo == 0 || chunkNo > r.chunks {
		return Chunk{}, fmt.Errorf("rx %d chunk %d of %d: %w", rxID, chunkNo, r.chunks, ErrChunkNumber)
	}

	f, err := os.Open(r.path)
	if err != nil {
		return Chunk{}, err
	}
	defer iox.DiscardClose(f)

	buf := make([]byte, ChunkSize)
	n, err := f.ReadAt(buf, int64(chunkNo-1)*ChunkSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return Chunk{}, fmt.Errorf("read %s: %w", r.path, err)
	}

	c := Chunk{Data: base64.StdEncoding.EncodeToString(buf[:n])}
	if chunkNo == r.chunks {
		c.Last = true
		c.CRC32 = r.crc
		m.mu.Lock()
		delete(m.rx, rxID)
		m.mu.Unlock()
		m.logger.Debug("download finished", map[string]any{"rx_id": rxID})
	}
	return c, nil
}

// StartUpload opens an upload of size bytes to name. created reports
// whether name did not exist yet.
func (m *Manager) StartUpload(name string, size int64, crc string) (txID uint32, created bool, err error) {
	want, err := iox.ParseCRC32(crc)
	if err != nil {
		return 0, false, err
	}
	if size <= 0 {
		return 0, false, fmt.Errorf("invalid file size %d", size)
	}
	dest := m.Resolve(name)
	if _, err := os.Stat(dest); errors.Is(err, fs.ErrNotExist) {
		created = true
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, false, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part*")
	if err != nil {
		return 0, false, err
	}

	t := &transmit{dest: dest, tmp: tmp, w: iox.NewCRC32Writer(tmp), size: size, crc: want}
	m.mu.Lock()
	id := m.allocID()
	m.tx[id] = t
	m.mu.Unlock()

	m.logger.Debug("upload started", map[string]any{"tx_id": id, "path": name, "size": size})
	return id, created, nil
}

// UploadChunk appends chunk chunkNo of an upload. Chunks must arrive in
// order. done reports that the file is complete, verified and in place. Any
// error aborts the upload.
func (m *Manager) UploadChunk(txID, chunkNo uint32, data string) (done bool, err error) {
	m.mu.Lock()
	t, ok := m.tx[txID]
	m.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("tx %d: %w", txID, ErrUnknownTransfer)
	}

	fail := func(err error) (bool, error) {
		m.abort(txID, t)
		return false, err
	}
	if chunkNo != t.received+1 {
		return fail(fmt.Errorf("tx %d chunk %d, want %d: %w", txID, chunkNo, t.received+1, ErrChunkNumber))
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fail(fmt.Errorf("tx %d chunk %d: %w", txID, chunkNo, err))
	}
	if t.w.Count()+int64(len(raw)) > t.size {
		return fail(fmt.Errorf("tx %d: %w", txID, ErrOverflow))
	}
	if _, err := t.w.Write(raw); err != nil {
		return fail(fmt.Errorf("tx %d write: %w", txID, err))
	}
	t.received = chunkNo
	if t.w.Count() < t.size {
		return false, nil
	}

	if got := t.w.Sum32(); got != t.crc {
		return fail(fmt.Errorf("tx %d: got %s, want %s: %w",
			txID, iox.FormatCRC32(got), iox.FormatCRC32(t.crc), ErrCRCMismatch))
	}
	if err := t.tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(t.tmp.Name(), t.dest); err != nil {
		return fail(err)
	}
	m.mu.Lock()
	delete(m.tx, txID)
	m.mu.Unlock()
	m.logger.Info("upload finished", map[string]any{"tx_id": txID, "size": t.size})
	return true, nil
}

func (m *Manager) abort(id uint32, t *transmit) {
	m.mu.Lock()
	delete(m.tx, id)
	m.mu.Unlock()
	iox.DiscardClose(t.tmp)
	iox.DiscardErr(func() error { return os.Remove(t.tmp.Name()) })
	m.logger.Warn("upload aborted", map[string]any{"tx_id": id})
}

// Rename moves a file within the root.
func (m *Manager) Rename(from, to string) error {
	src, dst := m.Resolve(from), m.Resolve(to)
	if _, err := os.Stat(src); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// Remove deletes a file.
func (m *Manager) Remove(name string) error {
	return os.Remove(m.Resolve(name))
}

// ListDir lists a directory. Paths in the result are device paths.
func (m *Manager) ListDir(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(m.Resolve(dir))
	if err != nil {
		return nil, err
	}
	base := "/" + strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+dir)), "/")
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		entry := Entry{Path: strings.TrimSuffix(base, "/") + "/" + e.Name()}
		switch {
		case e.IsDir():
			entry.Type = TypeDirectory
		case e.Type()&fs.ModeSymlink != 0:
			entry.Type = TypeSymlink
		case e.Type().IsRegular():
			entry.Type = TypeRegular
		default:
			entry.Type = TypeOther
		}
		if !e.IsDir() {
			if info, err := e.Info(); err == nil {
				entry.Size = info.Size()
			}
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Active returns the number of downloads and uploads in progress.
func (m *Manager) Active() (downloads, uploads int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rx), len(m.tx)
}

// Close aborts every transfer.
func (m *Manager) Close() {
	m.mu.Lock()
	tx := m.tx
	m.tx = make(map[uint32]*transmit)
	m.rx = make(map[uint32]*receive)
	m.mu.Unlock()
	for id, t := range tx {
		m.abort(id, t)
	}
}
