// Package backup archives and restores the user partition.
//
// A backup is a flat tar of the regular files at the top of the user
// directory plus a backup_info member holding a copy of boot.json. Restore
// unpacks an archive into a scratch directory, moves every member except
// backup_info over the user files and reboots the device.
package backup

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/iox"
	"github.com/pithecene-io/desklink/lode"
	"github.com/pithecene-io/desklink/log"
)

// InfoFile is the archive member holding the boot.json copy.
const InfoFile = "backup_info"

// Extension is the backup archive extension.
const Extension = ".tar"

var (
	// ErrBusy is returned while another backup or restore runs.
	ErrBusy = errors.New("backup or restore already running")
	// ErrInvalidName rejects archive names that are not bare .tar names.
	ErrInvalidName = errors.New("invalid backup file name")
	// ErrEmptyBackup is returned when an archive restores no user file.
	ErrEmptyBackup = errors.New("backup archive holds no user files")
)

// Journal records backup activity and keeps exported archives.
// *lode.Journal implements it.
type Journal interface {
	Record(ctx context.Context, kind string, fields map[string]any) error
	PutFile(ctx context.Context, name string, r io.Reader) (string, error)
}

// Config wires a Manager.
type Config struct {
	UserDir   string
	BackupDir string
	TmpDir    string
	BootJSON  string
	// Flush persists the database files before they are archived.
	Flush func() error
	// Reload reopens the database after its files were replaced.
	Reload func() error
	// Device receives the restore reboot. Nil skips the reboot.
	Device device.Device
	// Journal records runs. With Export set every new archive is also
	// copied into the journal store.
	Journal Journal
	Export  bool
	Logger  *log.Logger
}

// Manager runs backups and restores one at a time.
type Manager struct {
	cfg    Config
	logger *log.Logger
	mu     sync.Mutex
}

// New creates a manager.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg, logger: log.OrNop(cfg.Logger).Named("backup")}
}

// Result describes a finished backup.
type Result struct {
	Name  string   `json:"backupFile"`
	Size  int64    `json:"size"`
	Files []string `json:"files"`
	// ExportPath is the journal object key, empty when not exported.
	ExportPath string `json:"exportPath,omitempty"`
}

// Backup writes a new archive into the backup directory.
func (m *Manager) Backup(ctx context.Context) (Result, error) {
	if !m.mu.TryLock() {
		return Result{}, ErrBusy
	}
	defer m.mu.Unlock()

	res, err := m.backup(ctx)
	m.record(ctx, lode.KindBackup, res.Name, err, map[string]any{"files": len(res.Files), "size": res.Size})
	return res, err
}

func (m *Manager) backup(ctx context.Context) (Result, error) {
	if m.cfg.Flush != nil {
		if err := m.cfg.Flush(); err != nil {
			return Result{}, fmt.Errorf("flush database: %w", err)
		}
	}
	if err := os.MkdirAll(m.cfg.BackupDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create backup dir: %w", err)
	}
	files, err := m.userFiles()
	if err != nil {
		return Result{}, err
	}

	name := m.newName()
	dst := filepath.Join(m.cfg.BackupDir, name)
	tmp, err := os.CreateTemp(m.cfg.BackupDir, "."+name+".*")
	if err != nil {
		return Result{}, fmt.Errorf("create archive: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) (Result, error) {
		iox.DiscardClose(tmp)
		iox.DiscardErr(func() error { return os.Remove(tmpName) })
		return Result{}, err
	}

	tw := tar.NewWriter(tmp)
	if err := addFile(tw, InfoFile, m.cfg.BootJSON); err != nil {
		return fail(fmt.Errorf("add %s: %w", InfoFile, err))
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := addFile(tw, f, filepath.Join(m.cfg.UserDir, f)); err != nil {
			return fail(fmt.Errorf("add %s: %w", f, err))
		}
	}
	if err := tw.Close(); err != nil {
		return fail(fmt.Errorf("finish archive: %w", err))
	}
	if err := tmp.Close(); err != nil {
		iox.DiscardErr(func() error { return os.Remove(tmpName) })
		return Result{}, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		iox.DiscardErr(func() error { return os.Remove(tmpName) })
		return Result{}, fmt.Errorf("rename archive: %w", err)
	}

	res := Result{Name: name, Files: files}
	if info, err := os.Stat(dst); err == nil {
		res.Size = info.Size()
	}
	m.logger.Info("backup created", map[string]any{"file": name, "files": len(files), "size": res.Size})

	if m.cfg.Export && m.cfg.Journal != nil {
		res.ExportPath = m.export(ctx, dst, name)
	}
	return res, nil
}

// export failures are logged only; the local archive stands.
func (m *Manager) export(ctx context.Context, src, name string) string {
	f, err := os.Open(src)
	if err != nil {
		m.logger.Warn("backup export failed", map[string]any{"file": name, "error": err.Error()})
		return ""
	}
	defer iox.DiscardClose(f)
	key, err := m.cfg.Journal.PutFile(ctx, name, f)
	if err != nil {
		m.logger.Warn("backup export failed", map[string]any{"file": name, "error": err.Error()})
		return ""
	}
	return key
}

func (m *Manager) newName() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	ts := "00000000T000000"
	if m.cfg.Device != nil {
		ts = m.cfg.Device.Now().UTC().Format("20060102T150405")
	}
	return "backup-" + ts + "-" + id + Extension
}

// userFiles lists the top-level regular files of the user directory.
func (m *Manager) userFiles() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.UserDir)
	if err != nil {
		return nil, fmt.Errorf("read user dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && e.Name() != InfoFile {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func addFile(tw *tar.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(f)
	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:     name,
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// List returns the archive names in the backup directory, sorted. A
// missing directory lists nothing.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.BackupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), Extension) && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Path resolves an archive name. It fails with ErrInvalidName for names
// that are not bare .tar names and with fs.ErrNotExist for missing ones.
func (m *Manager) Path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || !filepath.IsLocal(name) || !strings.HasSuffix(name, Extension) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	p := filepath.Join(m.cfg.BackupDir, name)
	info, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q is not a file", ErrInvalidName, name)
	}
	return p, nil
}

// Restore replaces the user files with the members of archive name,
// reloads the database and reboots. The archive is kept.
func (m *Manager) Restore(ctx context.Context, name string) error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	defer m.mu.Unlock()

	n, err := m.restore(ctx, name)
	m.record(ctx, lode.KindRestore, name, err, map[string]any{"files": n})
	if err != nil {
		return err
	}
	if m.cfg.Device != nil {
		return m.cfg.Device.Reboot(device.RebootRestore)
	}
	return nil
}

func (m *Manager) restore(ctx context.Context, name string) (int, error) {
	src, err := m.Path(name)
	if err != nil {
		return 0, err
	}
	stage := filepath.Join(m.cfg.TmpDir, strings.TrimSuffix(name, Extension))
	if err := os.RemoveAll(stage); err != nil {
		return 0, fmt.Errorf("clear %s: %w", stage, err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", stage, err)
	}
	defer iox.DiscardErr(func() error { return os.RemoveAll(stage) })

	files, err := m.unpack(ctx, src, stage)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, ErrEmptyBackup
	}
	if err := m.replaceUserFiles(stage, files); err != nil {
		return 0, err
	}
	if m.cfg.Reload != nil {
		if err := m.cfg.Reload(); err != nil {
			return len(files), fmt.Errorf("reload database: %w", err)
		}
	}
	m.logger.Info("backup restored", map[string]any{"file": name, "files": len(files)})
	return len(files), nil
}

// unpack extracts regular top-level members into stage and returns the
// names of the user files among them.
func (m *Manager) unpack(ctx context.Context, src, stage string) ([]string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(f)

	var files []string
	tr := tar.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Clean(strings.TrimPrefix(hdr.Name, "./"))
		if strings.Contains(name, "/") || !filepath.IsLocal(name) {
			m.logger.Warn("skipping archive member", map[string]any{"member": hdr.Name})
			continue
		}
		if err := writeMember(filepath.Join(stage, name), tr, hdr); err != nil {
			return nil, fmt.Errorf("extract %s: %w", name, err)
		}
		if name != InfoFile {
			files = append(files, name)
		}
	}
	return files, nil
}

func writeMember(dst string, r io.Reader, hdr *tar.Header) error {
	mode := fs.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		iox.DiscardClose(out)
		return err
	}
	return out.Close()
}

func (m *Manager) replaceUserFiles(stage string, files []string) error {
	if err := os.MkdirAll(m.cfg.UserDir, 0o755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}
	for _, name := range files {
		from := filepath.Join(stage, name)
		to := filepath.Join(m.cfg.UserDir, name)
		if err := os.Remove(to); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", to, err)
		}
		if err := os.Rename(from, to); err != nil {
			if err := iox.CopyFile(from, to); err != nil {
				return fmt.Errorf("replace %s: %w", to, err)
			}
		}
	}
	return nil
}

func (m *Manager) record(ctx context.Context, kind, name string, err error, fields map[string]any) {
	if m.cfg.Journal == nil {
		return
	}
	fields["file"] = name
	fields["ok"] = err == nil
	if err != nil {
		fields["error"] = err.Error()
	}
	if jerr := m.cfg.Journal.Record(context.WithoutCancel(ctx), kind, fields); jerr != nil {
		m.logger.Warn("journal record failed", map[string]any{"kind": kind, "error": jerr.Error()})
	}
}
