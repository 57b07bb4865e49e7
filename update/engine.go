// Package update installs OS update packages.
//
// An update package is a tar archive holding a "version" JSON member, a
// "checksums.txt" manifest and the OS tree. The Engine unpacks it into a
// private temp directory, verifies every member against the manifest and
// the version policy, and only then swaps the tree into place:
//
//	sys/current  -> sys/previous
//	sys/tmp/<id> -> sys/current
//
// Nothing outside the temp directory changes before PrepareRoot, so a run
// that fails earlier leaves the device on its running OS. Once PrepareRoot
// starts the run always ends in a reboot.
package update

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/iox"
	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/metrics"
	"github.com/pithecene-io/desklink/settings"
)

// BlockSize is the unpack block size.
const BlockSize = 8 * 1024

// userSubtree is the package directory migrated to the user partition.
const userSubtree = "user"

// ErrBusy is returned by RunUpdate while another run is in progress.
var ErrBusy = errors.New("update already running")

// Config wires an Engine.
type Config struct {
	Dirs Dirs
	// AllowDowngrade accepts packages older than the running OS.
	AllowDowngrade bool
	Device         device.Device
	// Bootloader installs a bootloader image named by the package. Nil
	// skips the phase.
	Bootloader device.Bootloader
	// Settings keeps the run history. Nil disables history.
	Settings  settings.Store
	Logger    *log.Logger
	Collector *metrics.Collector
	// Notify receives progress and error notifications. It is called on
	// the goroutine running the update and must not block.
	Notify func(Event)
}

// Engine is one update session. It is safe to query State and Stats while
// RunUpdate runs on another goroutine.
type Engine struct {
	cfg    Config
	logger *log.Logger

	abort atomic.Bool
	runMu sync.Mutex

	mu         sync.Mutex
	state      State
	stats      Stats
	updateFile string
	tempDir    string
	version    *VersionInfo
	pkgVersion *VersionInfo
	files      []FileInfo
}

// New creates an engine. The temp directory name is derived from a random
// id chosen here and reused by every run of this engine.
func New(cfg Config) *Engine {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return &Engine{
		cfg:     cfg,
		logger:  log.OrNop(cfg.Logger).Named("update"),
		tempDir: filepath.Join(cfg.Dirs.Tmp, "update-"+id),
	}
}

// TempDir returns the extraction directory.
func (e *Engine) TempDir() string { return e.tempDir }

// State returns the current phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns the latest progress snapshot.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.State = e.state
	return s
}

// Files returns the members extracted by the last unpack.
func (e *Engine) Files() []FileInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]FileInfo(nil), e.files...)
}

// PackageVersion returns the version info read by SetUpdateFile, or nil.
func (e *Engine) PackageVersion() *VersionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pkgVersion
}

// SetAbort asks the session to stop at the next phase boundary. The flag
// is consumed by the first phase that sees it and cleared when RunUpdate
// returns.
func (e *Engine) SetAbort() {
	e.abort.Store(true)
	e.logger.Info("update abort requested", nil)
}

// Abortable reports whether an abort can still take effect: PrepareRoot
// and later phases move the running tree and are not interrupted.
func (e *Engine) Abortable() bool {
	return e.State() < StatePreparingRoot
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// checkAbort consumes the abort flag. An abort forces a reboot.
func (e *Engine) checkAbort(state State) error {
	if !e.abort.CompareAndSwap(true, false) {
		return nil
	}
	e.logger.Warn("update aborted", map[string]any{"state": state.String()})
	e.reboot(device.RebootUpdateAborted)
	return newError(UpdateAborted, state, nil, "update aborted by user")
}

func (e *Engine) reboot(reason device.RebootReason) {
	if e.cfg.Device == nil {
		return
	}
	if err := e.cfg.Device.Reboot(reason); err != nil {
		e.logger.Error("reboot request failed", map[string]any{
			"reason": reason.String(),
			"error":  err.Error(),
		})
	}
}

// informUpdate logs msg and sends a progress notification.
func (e *Engine) informUpdate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.logger.Info(msg, nil)
	e.notify(EventInform, NoError, msg)
}

// informError logs err and sends an error notification.
func (e *Engine) informError(err error) {
	code := CodeOf(err)
	e.logger.Error("update failed", map[string]any{
		"code":  code.String(),
		"state": e.State().String(),
		"error": err.Error(),
	})
	msg := err.Error()
	var ue *Error
	if errors.As(err, &ue) {
		msg = ue.Msg
	}
	e.notify(EventError, code, msg)
}

func (e *Engine) notify(kind EventKind, code Code, msg string) {
	e.mu.Lock()
	e.stats.MessageText = msg
	s := e.stats
	s.State = e.state
	e.mu.Unlock()
	if e.cfg.Notify != nil {
		e.cfg.Notify(Event{Kind: kind, Code: code, Stats: s})
	}
}

// resolveUpdateFile places bare names in the updates directory.
func (e *Engine) resolveUpdateFile(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(e.cfg.Dirs.Updates, filepath.Base(name))
}

// SetUpdateFile selects the package to install. name is either absolute or
// a file name inside the updates directory. The version member is read
// without unpacking the rest.
func (e *Engine) SetUpdateFile(name string) error {
	if err := e.checkAbort(StateInitial); err != nil {
		return err
	}
	path := e.resolveUpdateFile(name)
	info, err := os.Stat(path)
	if err != nil {
		return newError(CantOpenUpdateFile, StateInitial, err, "%s does not exist", path)
	}
	if !info.Mode().IsRegular() {
		return newError(CantOpenUpdateFile, StateInitial, nil, "%s is not a file", path)
	}
	if err := probeTar(path); err != nil {
		return newError(CantOpenUpdateFile, StateInitial, err, "can't open tar file %s", path)
	}
	v, err := VersionInfoFromFile(path)
	if err != nil {
		e.logger.Warn("update package has no readable version", map[string]any{
			"file":  path,
			"error": err.Error(),
		})
	}

	e.mu.Lock()
	e.updateFile = path
	e.pkgVersion = v
	e.version = nil
	e.files = nil
	e.stats = Stats{TotalBytes: info.Size()}
	e.state = StateUpdateFileSet
	e.mu.Unlock()
	return nil
}

// UpdateFile returns the selected package path.
func (e *Engine) UpdateFile() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateFile
}

func probeTar(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(f)
	if _, err := tar.NewReader(f).Next(); err != nil {
		return err
	}
	return nil
}

// RunUpdate runs every phase in order. The first failure is reported and
// ends the run. A PrepareRoot failure is reported but cleanup and the
// reboot still happen, because the running tree may already have moved.
func (e *Engine) RunUpdate(ctx context.Context) error {
	if !e.runMu.TryLock() {
		return ErrBusy
	}
	defer e.runMu.Unlock()
	// An abort that arrives after the last phase check must not leak into
	// the next session.
	defer e.abort.Store(false)

	run := RunStatus{
		StartTime:  e.now().Format(time.RFC3339Nano),
		UpdateFile: e.UpdateFile(),
	}
	if e.cfg.Device != nil {
		run.FromVersion = e.cfg.Device.OSVersion()
	}
	if v := e.PackageVersion(); v != nil {
		run.ToVersion = v.Version()
	}
	e.cfg.Collector.IncUpdateStarted()
	e.logger.Info("update started", map[string]any{
		"file": run.UpdateFile,
		"from": run.FromVersion,
		"to":   run.ToVersion,
	})

	err := e.run(ctx)
	e.finish(ctx, run, err)
	return err
}

func (e *Engine) run(ctx context.Context) error {
	steps := []struct {
		phase func(context.Context) error
		done  string
	}{
		{e.prepareTempDir, ""},
		{e.UnpackUpdate, "Unpacked"},
		{e.verifyChecksums, "Verify checksums"},
		{e.verifyVersion, "Verify version"},
		{e.UpdateBootloader, "Update bootloader"},
	}
	for _, s := range steps {
		if err := s.phase(ctx); err != nil {
			if !IsAborted(err) {
				e.informError(err)
			} else {
				e.notify(EventError, UpdateAborted, "update aborted by user")
			}
			return err
		}
		if s.done != "" {
			e.informUpdate("%s", s.done)
		}
	}

	err := e.PrepareRoot()
	if IsAborted(err) {
		e.notify(EventError, UpdateAborted, "update aborted by user")
		return err
	}
	if err != nil {
		e.informError(err)
	} else {
		e.informUpdate("Ready for reset")
	}
	if cerr := e.CleanupAfterUpdate(); cerr != nil {
		e.informError(fmt.Errorf("cleanup failed, resetting anyway: %w", cerr))
		if err == nil {
			err = cerr
		}
	}
	if !IsAborted(err) {
		e.reboot(device.RebootUpdate)
	}
	return err
}

func (e *Engine) finish(ctx context.Context, run RunStatus, err error) {
	run.FinishedState = e.State()
	run.FinishedError = CodeOf(err)
	if v := e.installedVersion(); v != "" {
		run.ToVersion = v
	}
	switch {
	case err == nil:
		e.cfg.Collector.IncUpdateSucceeded()
		e.logger.Info("update finished", map[string]any{"to": run.ToVersion})
	case IsAborted(err):
		e.cfg.Collector.IncUpdateAborted()
		run.Message = "aborted"
	default:
		e.cfg.Collector.IncUpdateFailed()
		run.Message = err.Error()
	}
	if e.cfg.Settings == nil {
		return
	}
	if herr := AppendHistory(context.WithoutCancel(ctx), e.cfg.Settings, run); herr != nil {
		e.logger.Error("update history not saved", map[string]any{"error": herr.Error()})
	}
}

func (e *Engine) installedVersion() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version.Version()
}

// History returns the recorded runs, oldest first.
func (e *Engine) History(ctx context.Context) ([]RunStatus, error) {
	if e.cfg.Settings == nil {
		return nil, nil
	}
	return LoadHistory(ctx, e.cfg.Settings)
}

func (e *Engine) now() time.Time {
	if e.cfg.Device != nil {
		return e.cfg.Device.Now()
	}
	return time.Now()
}

func (e *Engine) prepareTempDir(context.Context) error  { return e.PrepareTempDirForUpdate() }
func (e *Engine) verifyChecksums(context.Context) error { return e.VerifyChecksums() }
func (e *Engine) verifyVersion(context.Context) error   { return e.VerifyVersion() }

// PrepareTempDirForUpdate creates the updates directory, the temp parent
// and a fresh extraction directory, removing a stale one first.
func (e *Engine) PrepareTempDirForUpdate() error {
	const st = StateCreatingDirectories
	if err := e.checkAbort(st); err != nil {
		return err
	}
	e.setState(st)
	e.logger.Debug("temp dir for update", map[string]any{"dir": e.tempDir})

	if err := os.MkdirAll(e.cfg.Dirs.Updates, 0o755); err != nil {
		return newError(CantCreateUpdatesDir, st, err, "can't create %s", e.cfg.Dirs.Updates)
	}
	if err := os.MkdirAll(e.cfg.Dirs.Tmp, 0o755); err != nil {
		return newError(CantCreateTempDir, st, err, "can't create %s", e.cfg.Dirs.Tmp)
	}
	if _, err := os.Stat(e.tempDir); err == nil {
		if err := os.RemoveAll(e.tempDir); err != nil {
			return newError(CantRemoveUniqueTmpDir, st, err, "can't remove %s", e.tempDir)
		}
	}
	if err := os.Mkdir(e.tempDir, 0o755); err != nil {
		return newError(CantCreateUniqueTmpDir, st, err, "can't create %s", e.tempDir)
	}
	return nil
}

// UnpackUpdate extracts the package into the temp directory, checksumming
// every regular member as it is written.
func (e *Engine) UnpackUpdate(ctx context.Context) error {
	const st = StateExtractingFiles
	if err := e.checkAbort(st); err != nil {
		return err
	}
	e.setState(st)
	e.mu.Lock()
	e.files = nil
	e.stats.CurrentExtractedBytes = 0
	path := e.updateFile
	e.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return newError(CantOpenUpdateFile, st, err, "can't open %s", path)
	}
	defer iox.DiscardClose(f)

	buf := make([]byte, BlockSize)
	tr := tar.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return newError(CantCreateExtractedFile, st, err, "unpack interrupted")
		}
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return newError(CantCreateExtractedFile, st, err, "can't read %s", path)
		}
		name := memberName(h.Name)
		if name == "" || name == "." {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return newError(CantCreateExtractedFile, st, nil, "member %s escapes the update directory", h.Name)
		}
		target := filepath.Join(e.tempDir, filepath.FromSlash(name))

		switch h.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return newError(CantCreateExtractedFile, st, err, "failed to create %s", target)
			}
		case tar.TypeReg:
			sum, err := e.unpackFile(tr, h, name, target, buf)
			if err != nil {
				return newError(CantCreateExtractedFile, st, err, "failed to extract %s", name)
			}
			e.mu.Lock()
			e.files = append(e.files, FileInfo{Name: name, Size: h.Size, CRC32: sum})
			e.mu.Unlock()
		default:
			e.logger.Debug("skipping package member", map[string]any{
				"name": name,
				"type": string(h.Typeflag),
			})
		}
	}
}

func (e *Engine) unpackFile(r io.Reader, h *tar.Header, name, target string, buf []byte) (uint32, error) {
	e.mu.Lock()
	e.stats.FileExtracted = name
	e.stats.FileExtractedSize = h.Size
	e.mu.Unlock()
	e.informUpdate("Unpack %s", filepath.Base(target))

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	w := iox.NewCRC32Writer(out)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				iox.DiscardClose(out)
				return 0, werr
			}
			e.mu.Lock()
			e.stats.CurrentExtractedBytes += int64(n)
			e.mu.Unlock()
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			iox.DiscardClose(out)
			return 0, rerr
		}
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	return w.Sum32(), nil
}

// VerifyChecksums compares every manifest entry with the checksum taken
// during unpack. Lines starting with ';' are comments; the checksum is the
// token after the last space so paths may contain spaces.
func (e *Engine) VerifyChecksums() error {
	const st = StateChecksumVerification
	if err := e.checkAbort(st); err != nil {
		return err
	}
	e.setState(st)

	path := filepath.Join(e.tempDir, ChecksumsFile)
	f, err := os.Open(path)
	if err != nil {
		return newError(CantOpenChecksumsFile, st, err, "can't open checksums file %s", path)
	}
	defer iox.DiscardClose(f)

	extracted := make(map[string]uint32)
	for _, fi := range e.Files() {
		extracted[fi.Name] = fi.CRC32
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n\t ")
		if line == "" || line[0] == ';' {
			continue
		}
		name, want, err := parseChecksumLine(line)
		if err != nil {
			return newError(VerifyChecksumsFailure, st, err, "bad checksum line %q", line)
		}
		got, ok := extracted[name]
		if !ok {
			return newError(VerifyChecksumsFailure, st, nil, "%s listed in %s but not in package", name, ChecksumsFile)
		}
		if got != want {
			return newError(VerifyChecksumsFailure, st, nil, "%s crc32 match FAIL %s != %s",
				name, iox.FormatCRC32(want), iox.FormatCRC32(got))
		}
	}
	if err := sc.Err(); err != nil {
		return newError(CantOpenChecksumsFile, st, err, "can't read %s", path)
	}
	return nil
}

func parseChecksumLine(line string) (string, uint32, error) {
	i := strings.LastIndexByte(line, ' ')
	if i <= 0 {
		return "", 0, errors.New("missing checksum")
	}
	sum, err := iox.ParseCRC32(line[i+1:])
	if err != nil {
		return "", 0, err
	}
	return memberName(strings.TrimSpace(line[:i])), sum, nil
}

// VerifyVersion reads the extracted version member and applies the
// downgrade policy against the running OS.
func (e *Engine) VerifyVersion() error {
	const st = StateVersionVerification
	if err := e.checkAbort(st); err != nil {
		return err
	}
	e.setState(st)

	path := filepath.Join(e.tempDir, VersionFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return newError(VerifyVersionFailure, st, err, "%s does not exist", path)
	}
	v, err := ParseVersionInfo(data)
	if err != nil {
		return newError(VerifyVersionFailure, st, err, "parse json error")
	}
	if v.Version() == "" {
		return newError(VerifyVersionFailure, st, nil, "%s has no version string", VersionFile)
	}

	running := ""
	if e.cfg.Device != nil {
		running = e.cfg.Device.OSVersion()
	}
	cmp := CompareVersions(v.Version(), running)
	e.logger.Info("update version", map[string]any{
		"running": running,
		"package": v.Version(),
		"compare": cmp,
	})
	if cmp < 0 && !e.cfg.AllowDowngrade {
		return newError(VerifyVersionFailure, st, nil, "package version %s is older than running %s", v.Version(), running)
	}

	e.mu.Lock()
	e.version = v
	e.mu.Unlock()
	return nil
}

// UpdateBootloader hands a bootloader image named by the package to the
// bootloader collaborator.
func (e *Engine) UpdateBootloader(ctx context.Context) error {
	const st = StateUpdatingBootloader
	if err := e.checkAbort(st); err != nil {
		return err
	}
	e.setState(st)

	e.mu.Lock()
	v := e.version
	e.mu.Unlock()
	if v == nil || v.Bootloader.Filename == "" || e.cfg.Bootloader == nil {
		e.logger.Debug("bootloader update skipped", nil)
		return nil
	}
	name := filepath.FromSlash(memberName(v.Bootloader.Filename))
	if !filepath.IsLocal(name) {
		return newError(CantUpdateBootloader, st, nil, "bootloader path %s escapes the package", v.Bootloader.Filename)
	}
	image := filepath.Join(e.tempDir, name)
	if _, err := os.Stat(image); err != nil {
		return newError(CantUpdateBootloader, st, err, "bootloader image %s missing", v.Bootloader.Filename)
	}
	if err := e.cfg.Bootloader.Install(ctx, image); err != nil {
		return newError(CantUpdateBootloader, st, err, "failed to update the bootloader")
	}
	return nil
}

// PrepareRoot moves the running tree to previous and the extracted tree to
// current, migrates packaged user data and refreshes the boot descriptor
// checksum.
func (e *Engine) PrepareRoot() error {
	const st = StatePreparingRoot
	if err := e.checkAbort(st); err != nil {
		return err
	}
	e.setState(st)
	d := e.cfg.Dirs

	for _, dir := range []string{d.Previous, d.Current, d.User} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			e.logger.Warn("prepare root mkdir failed", map[string]any{"dir": dir, "error": err.Error()})
		}
	}

	if err := os.RemoveAll(d.Previous); err != nil {
		e.logger.Error("deltree failed", map[string]any{"dir": d.Previous, "error": err.Error()})
	}
	if _, err := os.Stat(d.Previous); err == nil {
		return newError(CantDeletePreviousOS, st, nil, "%s still exists, we can't continue", d.Previous)
	}

	if err := os.Rename(d.Current, d.Previous); err != nil {
		return newError(CantRenameCurrentToPrevious, st, err, "can't rename %s -> %s", d.Current, d.Previous)
	}

	if err := os.Rename(e.tempDir, d.Current); err != nil {
		e.logger.Warn("rename temp to current failed, copying", map[string]any{"error": err.Error()})
		if err := iox.CopyTree(e.tempDir, d.Current); err != nil {
			return newError(CantCopyTempToCurrent, st, err, "can't copy %s -> %s", e.tempDir, d.Current)
		}
	}

	if err := e.updateUserData(); err != nil {
		e.logger.Warn("user data migration failed", map[string]any{"error": err.Error()})
	}

	return e.updateBootJSON()
}

// updateUserData moves current/user into the user partition.
func (e *Engine) updateUserData() error {
	src := filepath.Join(e.cfg.Dirs.Current, userSubtree)
	info, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}
	if err := iox.CopyTree(src, e.cfg.Dirs.User); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// updateBootJSON writes the boot descriptor checksum to its sidecar as
// upper-case hex.
func (e *Engine) updateBootJSON() error {
	const st = StatePreparingRoot
	path := e.cfg.Dirs.BootJSON
	sum, _, err := iox.FileCRC32(path)
	if err != nil {
		return newError(CantUpdateCRC32JSON, st, err, "can't read %s", path)
	}
	if err := iox.WriteFileAtomic(path+CRC32Suffix, []byte(fmt.Sprintf("%X", sum)), 0o644); err != nil {
		return newError(CantUpdateCRC32JSON, st, err, "can't write %s%s", path, CRC32Suffix)
	}
	return nil
}

// CleanupAfterUpdate removes the temp directory and the consumed package.
func (e *Engine) CleanupAfterUpdate() error {
	st := e.State()
	if err := e.checkAbort(st); err != nil {
		return err
	}
	if err := os.RemoveAll(e.tempDir); err != nil {
		return newError(CantRemoveUniqueTmpDir, st, err, "can't remove %s", e.tempDir)
	}
	path := e.UpdateFile()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return newError(CantRemoveUpdateFile, st, err, "failed to delete %s", path)
	}
	e.setState(StateReadyForReset)
	return nil
}

// CheckForUpdate returns the first package in the updates directory whose
// version info is readable and passes the version policy, or "" when none
// does.
func (e *Engine) CheckForUpdate() (string, *VersionInfo, error) {
	pkgs, err := e.Packages()
	if err != nil {
		return "", nil, err
	}
	for _, p := range pkgs {
		if p.Version == nil || p.Version.Version() == "" {
			continue
		}
		if e.acceptsVersion(p.Version.Version()) {
			return p.Path, p.Version, nil
		}
	}
	return "", nil, nil
}

func (e *Engine) acceptsVersion(v string) bool {
	if e.cfg.AllowDowngrade || e.cfg.Device == nil {
		return true
	}
	return CompareVersions(v, e.cfg.Device.OSVersion()) >= 0
}

// Package is an update package found in the updates directory.
type Package struct {
	Name    string       `json:"fileName"`
	Path    string       `json:"-"`
	Size    int64        `json:"size"`
	Version *VersionInfo `json:"version,omitempty"`
}

// Packages lists the packages in the updates directory in name order.
func (e *Engine) Packages() ([]Package, error) {
	entries, err := os.ReadDir(e.cfg.Dirs.Updates)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", e.cfg.Dirs.Updates, err)
	}
	var out []Package
	for _, de := range entries {
		if !de.Type().IsRegular() || !strings.HasSuffix(de.Name(), Extension) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		p := Package{
			Name: de.Name(),
			Path: filepath.Join(e.cfg.Dirs.Updates, de.Name()),
			Size: info.Size(),
		}
		v, err := VersionInfoFromFile(p.Path)
		if err != nil {
			e.logger.Debug("package version unreadable", map[string]any{"file": p.Name, "error": err.Error()})
		} else {
			p.Version = v
		}
		out = append(out, p)
	}
	return out, nil
}
