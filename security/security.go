// Package security decides whether a desktop request may reach its endpoint.
//
// The decision is recomputed for every request from live device state and
// the settings store, so a device that unlocks or finishes onboarding is
// reachable on the very next frame.
package security

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/settings"
)

// Access is the gate verdict.
type Access int

// Verdicts.
const (
	Allow Access = iota
	Block
)

func (a Access) String() string {
	if a == Allow {
		return "allow"
	}
	return "block"
}

// Reason explains a Block. Values are sent to the desktop as integers.
type Reason int

// Block reasons.
const (
	NoReason Reason = iota
	DeviceLocked
	BatteryCriticalLevel
	OnboardingNotFinished
)

func (r Reason) String() string {
	switch r {
	case NoReason:
		return "no_reason"
	case DeviceLocked:
		return "device_locked"
	case BatteryCriticalLevel:
		return "battery_critical_level"
	case OnboardingNotFinished:
		return "onboarding_not_finished"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Decision is the verdict for one request.
type Decision struct {
	Access Access
	Reason Reason
}

// Allowed is the decision for an unrestricted request.
var Allowed = Decision{Access: Allow, Reason: NoReason}

// ErrWrongPasscode is returned by Unlock for a mismatching code.
var ErrWrongPasscode = errors.New("wrong passcode")

// Model evaluates the gate.
type Model struct {
	device   device.Device
	settings settings.Store
	logger   *log.Logger
}

// NewModel creates a Model.
func NewModel(dev device.Device, store settings.Store, logger *log.Logger) *Model {
	return &Model{device: dev, settings: store, logger: log.OrNop(logger).Named("security")}
}

// EndpointSecurity returns the decision for a request arriving now.
// Precedence: critical battery, then unfinished onboarding, then a locked
// device with a passcode configured.
func (m *Model) EndpointSecurity(ctx context.Context) Decision {
	if m.device.Battery().Critical() {
		return Decision{Access: Block, Reason: BatteryCriticalLevel}
	}

	onboarded, err := settings.GetBool(ctx, m.settings, settings.KeyOnboardingFinished)
	if err != nil {
		m.logger.Warn("cannot read onboarding state", map[string]any{"error": err.Error()})
	}
	if !onboarded {
		return Decision{Access: Block, Reason: OnboardingNotFinished}
	}

	if m.device.IsLocked() && m.PasscodeEnabled(ctx) {
		return Decision{Access: Block, Reason: DeviceLocked}
	}
	return Allowed
}

// PasscodeEnabled reports whether a lock passcode is configured.
func (m *Model) PasscodeEnabled(ctx context.Context) bool {
	code, err := settings.GetDefault(ctx, m.settings, settings.KeyLockPasscode, "")
	if err != nil {
		m.logger.Warn("cannot read passcode", map[string]any{"error": err.Error()})
		return false
	}
	return code != ""
}

// Unlock compares code with the configured passcode and unlocks the device
// on a match. Without a configured passcode any code unlocks.
func (m *Model) Unlock(ctx context.Context, code []int) error {
	want, err := settings.GetDefault(ctx, m.settings, settings.KeyLockPasscode, "")
	if err != nil {
		return fmt.Errorf("read passcode: %w", err)
	}
	if want != "" && FormatPasscode(code) != want {
		m.logger.Info("unlock rejected", nil)
		return ErrWrongPasscode
	}
	m.device.SetLocked(false)
	m.logger.Info("device unlocked", nil)
	return nil
}

// FormatPasscode renders digits as the string stored in settings.
func FormatPasscode(code []int) string {
	var b strings.Builder
	for _, d := range code {
		fmt.Fprintf(&b, "%d", d)
	}
	return b.String()
}
