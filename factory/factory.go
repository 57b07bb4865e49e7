// Package factory restores the user partition to its factory state.
//
// With a factory tree present the user directory is emptied and the tree
// copied back into it. Without one only the database files are deleted,
// and the system recreates them with factory content on the next boot.
package factory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/iox"
	"github.com/pithecene-io/desklink/lode"
	"github.com/pithecene-io/desklink/log"
)

// MaxDepth bounds directory recursion while copying the factory tree.
// Deeper trees are assumed broken.
const MaxDepth = 120

// DatabaseExtensions are the files deleted by a database-only reset.
var DatabaseExtensions = []string{".db", ".db-journal", ".db-wal"}

var (
	// ErrUserDirEmpty refuses a reset of an empty or missing user directory.
	ErrUserDirEmpty = errors.New("user directory is empty")
	// ErrTooDeep is returned when the factory tree exceeds MaxDepth.
	ErrTooDeep = errors.New("factory tree too deep")
	// ErrBusy is returned while a reset runs.
	ErrBusy = errors.New("factory reset already running")
)

// Recorder journals reset runs. *lode.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, kind string, fields map[string]any) error
}

// Config wires a Resetter.
type Config struct {
	UserDir string
	// FactoryDir holds the factory tree. Empty or missing selects the
	// database-only reset.
	FactoryDir string
	// Close shuts the database down before its files go away.
	Close func() error
	// Device receives the reboot. Nil skips it.
	Device  device.Device
	Journal Recorder
	Logger  *log.Logger
}

// Resetter runs factory resets.
type Resetter struct {
	cfg    Config
	logger *log.Logger
	mu     sync.Mutex
}

// New creates a resetter.
func New(cfg Config) *Resetter {
	return &Resetter{cfg: cfg, logger: log.OrNop(cfg.Logger).Named("factory")}
}

// Run resets the user partition and reboots.
func (r *Resetter) Run(ctx context.Context) error {
	if !r.mu.TryLock() {
		return ErrBusy
	}
	defer r.mu.Unlock()

	r.logger.Info("restoring factory state", map[string]any{"user_dir": r.cfg.UserDir})
	mode, err := r.run(ctx)
	r.record(ctx, mode, err)
	if err != nil {
		r.logger.Error("factory reset failed", map[string]any{"error": err.Error()})
		return err
	}
	if r.cfg.Device != nil {
		r.logger.Info("rebooting", nil)
		return r.cfg.Device.Reboot(device.RebootFactoryReset)
	}
	return nil
}

func (r *Resetter) run(ctx context.Context) (string, error) {
	entries, err := os.ReadDir(r.cfg.UserDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read user dir: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUserDirEmpty, r.cfg.UserDir)
	}

	if r.cfg.Close != nil {
		if err := r.cfg.Close(); err != nil {
			return "", fmt.Errorf("close database: %w", err)
		}
	}

	if !r.hasFactoryTree() {
		return "database", DeleteSelectedUserFiles(r.cfg.UserDir, r.logger)
	}
	if err := DeleteDirContent(r.cfg.UserDir, r.cfg.FactoryDir); err != nil {
		return "full", err
	}
	return "full", CopyDirContent(ctx, r.cfg.FactoryDir, r.cfg.UserDir, r.cfg.FactoryDir)
}

func (r *Resetter) hasFactoryTree() bool {
	if r.cfg.FactoryDir == "" {
		return false
	}
	info, err := os.Stat(r.cfg.FactoryDir)
	return err == nil && info.IsDir()
}

func (r *Resetter) record(ctx context.Context, mode string, err error) {
	if r.cfg.Journal == nil {
		return
	}
	fields := map[string]any{"mode": mode, "ok": err == nil}
	if err != nil {
		fields["error"] = err.Error()
	}
	if jerr := r.cfg.Journal.Record(context.WithoutCancel(ctx), lode.KindFactoryReset, fields); jerr != nil {
		r.logger.Warn("journal record failed", map[string]any{"error": jerr.Error()})
	}
}

// DeleteSelectedUserFiles removes the database files at the top of dir.
// It keeps going past failures and reports the first.
func DeleteSelectedUserFiles(dir string, logger *log.Logger) error {
	logger = log.OrNop(logger)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var first error
	for _, e := range entries {
		if e.IsDir() || !isDatabaseFile(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.Remove(p); err != nil {
			logger.Error("delete failed", map[string]any{"path": p, "error": err.Error()})
			if first == nil {
				first = err
			}
			continue
		}
		logger.Info("deleted", map[string]any{"path": p})
	}
	return first
}

func isDatabaseFile(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range DatabaseExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// DeleteDirContent empties dir, leaving keep in place when it lies inside.
func DeleteDirContent(dir, keep string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if keep != "" && filepath.Clean(p) == filepath.Clean(keep) {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("delete %s: %w", p, err)
		}
	}
	return nil
}

// CopyDirContent copies the tree at src into dst. The directory skip is
// never copied, so a factory tree inside src does not copy itself.
func CopyDirContent(ctx context.Context, src, dst, skip string) error {
	return copyDir(ctx, src, dst, filepath.Clean(skip), 0)
}

func copyDir(ctx context.Context, src, dst, skip string, depth int) error {
	if depth >= MaxDepth {
		return fmt.Errorf("%w: %s", ErrTooDeep, src)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		switch {
		case e.IsDir():
			if filepath.Clean(to) == skip {
				continue
			}
			if err := copyDir(ctx, from, to, skip, depth+1); err != nil {
				return err
			}
		case e.Type().IsRegular():
			if err := iox.CopyFile(from, to); err != nil {
				return fmt.Errorf("restore %s: %w", to, err)
			}
		}
	}
	return nil
}
