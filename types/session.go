package types

import (
	"errors"

	"github.com/google/uuid"
)

// SessionMeta identifies one desktop session: a single attachment of the
// companion tool over the transport. Log entries and journal records carry it.
type SessionMeta struct {
	// SessionID is generated per attachment.
	SessionID string
	// DeviceSerial is the serial number reported by the device.
	DeviceSerial string
}

// NewSessionMeta creates session metadata with a fresh session id.
func NewSessionMeta(deviceSerial string) *SessionMeta {
	return &SessionMeta{
		SessionID:    uuid.NewString(),
		DeviceSerial: deviceSerial,
	}
}

// Validate checks that the session id is present.
func (m *SessionMeta) Validate() error {
	if m == nil {
		return errors.New("session metadata is nil")
	}
	if m.SessionID == "" {
		return errors.New("session_id is required")
	}
	return nil
}
