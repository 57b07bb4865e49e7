// Package device models the phone state the desktop service depends on:
// battery, screen lock, identity, storage and reboot control.
//
// Hardware drivers are out of reach on a host build, so Simulator provides
// a configurable, thread-safe stand-in used by the service and tests.
package device

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// BatteryCriticalLevel is the charge percentage at or below which the device
// refuses desktop access.
const BatteryCriticalLevel = 5

// RebootReason tells the system manager why a reboot was requested.
type RebootReason int

// Reboot reasons.
const (
	RebootNormal RebootReason = iota
	RebootUpdate
	RebootUpdateAborted
	RebootFactoryReset
	RebootRestore
)

func (r RebootReason) String() string {
	switch r {
	case RebootNormal:
		return "normal"
	case RebootUpdate:
		return "update"
	case RebootUpdateAborted:
		return "update_aborted"
	case RebootFactoryReset:
		return "factory_reset"
	case RebootRestore:
		return "restore"
	default:
		return fmt.Sprintf("reboot(%d)", int(r))
	}
}

// Battery is a battery reading.
type Battery struct {
	Level    int
	Charging bool
}

// Critical reports whether the level is at or below BatteryCriticalLevel
// while not charging.
func (b Battery) Critical() bool {
	return !b.Charging && b.Level <= BatteryCriticalLevel
}

// Storage is a filesystem usage reading in bytes.
type Storage struct {
	Total uint64
	Free  uint64
}

// FreePercent returns free space as a percentage of total.
func (s Storage) FreePercent() int {
	if s.Total == 0 {
		return 0
	}
	return int(s.Free * 100 / s.Total)
}

// Device is the phone as seen by the desktop service.
type Device interface {
	Battery() Battery
	IsLocked() bool
	SetLocked(locked bool)
	SerialNumber() string
	OSVersion() string
	GitRevision() string
	CaseColour() string
	Now() time.Time
	Storage() (Storage, error)
	// Reboot asks the system to restart. It returns once the request is queued.
	Reboot(reason RebootReason) error
}

// Bootloader installs a bootloader image shipped in an update package.
type Bootloader interface {
	Install(ctx context.Context, imagePath string) error
}

// Config seeds a Simulator.
type Config struct {
	Root         string
	SerialNumber string
	OSVersion    string
	GitRevision  string
	CaseColour   string
	BatteryLevel int
	Charging     bool
	Locked       bool
	// StorageTotal is the simulated partition size in bytes.
	StorageTotal uint64
}

// DefaultStorageTotal is the simulated user partition size.
const DefaultStorageTotal = 14 << 30

// Simulator is an in-process Device and Bootloader.
type Simulator struct {
	mu      sync.Mutex
	cfg     Config
	reboots []RebootReason
	images  []string
	onBoot  func(RebootReason)
	clock   func() time.Time
}

var (
	_ Device     = (*Simulator)(nil)
	_ Bootloader = (*Simulator)(nil)
)

// NewSimulator creates a simulator from cfg.
func NewSimulator(cfg Config) *Simulator {
	if cfg.StorageTotal == 0 {
		cfg.StorageTotal = DefaultStorageTotal
	}
	if cfg.CaseColour == "" {
		cfg.CaseColour = "gray"
	}
	return &Simulator{cfg: cfg, clock: time.Now}
}

// OnReboot registers a callback run for every reboot request.
func (s *Simulator) OnReboot(fn func(RebootReason)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBoot = fn
}

// SetBattery changes the simulated battery reading.
func (s *Simulator) SetBattery(level int, charging bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.BatteryLevel = level
	s.cfg.Charging = charging
}

// SetOSVersion changes the reported OS version.
func (s *Simulator) SetOSVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.OSVersion = v
}

// Battery implements Device.
func (s *Simulator) Battery() Battery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Battery{Level: s.cfg.BatteryLevel, Charging: s.cfg.Charging}
}

// IsLocked implements Device.
func (s *Simulator) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Locked
}

// SetLocked implements Device.
func (s *Simulator) SetLocked(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Locked = locked
}

// SerialNumber implements Device.
func (s *Simulator) SerialNumber() string { return s.cfg.SerialNumber }

// OSVersion implements Device.
func (s *Simulator) OSVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.OSVersion
}

// GitRevision implements Device.
func (s *Simulator) GitRevision() string { return s.cfg.GitRevision }

// CaseColour implements Device.
func (s *Simulator) CaseColour() string { return s.cfg.CaseColour }

// Now implements Device.
func (s *Simulator) Now() time.Time { return s.clock() }

// Storage implements Device. Used space is the size of all files under Root.
func (s *Simulator) Storage() (Storage, error) {
	st := Storage{Total: s.cfg.StorageTotal, Free: s.cfg.StorageTotal}
	if s.cfg.Root == "" {
		return st, nil
	}
	var used uint64
	err := filepath.WalkDir(s.cfg.Root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			used += uint64(info.Size())
		}
		return nil
	})
	if err != nil {
		return Storage{}, fmt.Errorf("measure storage: %w", err)
	}
	if used > st.Total {
		used = st.Total
	}
	st.Free = st.Total - used
	return st, nil
}

// Reboot implements Device. The simulator records the request.
func (s *Simulator) Reboot(reason RebootReason) error {
	s.mu.Lock()
	s.reboots = append(s.reboots, reason)
	fn := s.onBoot
	s.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
	return nil
}

// Reboots returns the recorded reboot requests.
func (s *Simulator) Reboots() []RebootReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RebootReason(nil), s.reboots...)
}

// Install implements Bootloader. The host build has no boot ROM to flash,
// so the image path is only recorded.
func (s *Simulator) Install(ctx context.Context, imagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, imagePath)
	return nil
}

// InstalledImages returns bootloader images passed to Install.
func (s *Simulator) InstalledImages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.images...)
}
