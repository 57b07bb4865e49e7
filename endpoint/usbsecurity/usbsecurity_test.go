package usbsecurity

import (
	"testing"

	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/endpoint/endpointtest"
	"github.com/pithecene-io/desklink/security"
	"github.com/pithecene-io/desklink/settings"
	"github.com/pithecene-io/desklink/types"
)

type fixture struct {
	sim   *device.Simulator
	store *settings.Memory
	rec   *endpointtest.Recorder
	h     *Handler
}

func newFixture(t *testing.T, locked bool, battery int, onboarded bool) *fixture {
	t.Helper()
	sim := device.NewSimulator(device.Config{Root: t.TempDir(), BatteryLevel: battery, Locked: locked})
	initial := map[string]string{settings.KeyLockPasscode: "1234"}
	if onboarded {
		initial[settings.KeyOnboardingFinished] = "1"
	}
	store := settings.NewMemory(initial)
	rec := endpointtest.NewRecorder()
	model := security.NewModel(sim, store, nil)
	return &fixture{sim: sim, store: store, rec: rec, h: New(endpoint.Deps{Sender: rec}, model)}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		locked     bool
		battery    int
		onboarded  bool
		wantStatus types.Status
		wantReason security.Reason
	}{
		{"allowed", false, 80, true, types.StatusNoContent, security.NoReason},
		{"locked", true, 80, true, types.StatusLocked, security.NoReason},
		{"battery", true, 3, true, types.StatusForbidden, security.BatteryCriticalLevel},
		{"onboarding", false, 80, false, types.StatusForbidden, security.OnboardingNotFinished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, tt.locked, tt.battery, tt.onboarded)
			fx.h.Handle(endpointtest.Request(t, types.EndpointUSBSecurity, types.MethodGet, 1, nil))

			f := fx.rec.Wait(t, 1)[0]
			if f.Status != tt.wantStatus {
				t.Fatalf("Status = %d, want %d", f.Status, tt.wantStatus)
			}
			if tt.wantStatus == types.StatusForbidden {
				var b endpoint.ReasonBody
				f.DecodeBody(t, &b)
				if b.Reason != tt.wantReason {
					t.Errorf("reason = %v, want %v", b.Reason, tt.wantReason)
				}
			}
		})
	}
}

func TestUnlock(t *testing.T) {
	fx := newFixture(t, true, 80, true)

	fx.h.Handle(endpointtest.Request(t, types.EndpointUSBSecurity, types.MethodPut, 1,
		map[string]any{"phoneLockCode": []int{0, 0, 0, 0}}))
	if f := fx.rec.Wait(t, 1)[0]; f.Status != types.StatusForbidden {
		t.Fatalf("wrong code Status = %d, want 403", f.Status)
	}
	if !fx.sim.IsLocked() {
		t.Fatal("device unlocked by a wrong code")
	}

	fx.h.Handle(endpointtest.Request(t, types.EndpointUSBSecurity, types.MethodPut, 2,
		map[string]any{"phoneLockCode": []int{1, 2, 3, 4}}))
	if f := fx.rec.Wait(t, 2)[1]; f.Status != types.StatusNoContent {
		t.Fatalf("right code Status = %d, want 204", f.Status)
	}
	if fx.sim.IsLocked() {
		t.Error("device still locked")
	}

	fx.h.Handle(endpointtest.Request(t, types.EndpointUSBSecurity, types.MethodGet, 3, nil))
	if f := fx.rec.Wait(t, 3)[2]; f.Status != types.StatusNoContent {
		t.Errorf("status after unlock = %d, want 204", f.Status)
	}
}

func TestUnlock_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing code", map[string]any{}},
		{"not digits", map[string]any{"phoneLockCode": []int{1, 12}}},
		{"wrong type", map[string]any{"phoneLockCode": "1234"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, true, 80, true)
			fx.h.Handle(endpointtest.Request(t, types.EndpointUSBSecurity, types.MethodPut, 1, tt.body))
			if f := fx.rec.Wait(t, 1)[0]; f.Status != types.StatusBadRequest {
				t.Errorf("Status = %d, want 400", f.Status)
			}
		})
	}
}
