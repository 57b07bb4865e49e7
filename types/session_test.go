package types //nolint:revive // types is a valid package name

import "testing"

func TestNewSessionMeta(t *testing.T) {
	a := NewSessionMeta("SN-1")
	b := NewSessionMeta("SN-1")

	if a.SessionID == "" {
		t.Fatal("SessionID is empty")
	}
	if a.SessionID == b.SessionID {
		t.Errorf("two sessions share id %q", a.SessionID)
	}
	if a.DeviceSerial != "SN-1" {
		t.Errorf("DeviceSerial = %q, want %q", a.DeviceSerial, "SN-1")
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestSessionMeta_Validate(t *testing.T) {
	var nilMeta *SessionMeta
	if err := nilMeta.Validate(); err == nil {
		t.Error("expected error for nil metadata")
	}
	if err := (&SessionMeta{}).Validate(); err == nil {
		t.Error("expected error for empty session id")
	}
}
