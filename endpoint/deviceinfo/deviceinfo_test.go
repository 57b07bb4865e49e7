package deviceinfo

import (
	"testing"

	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/endpoint/endpointtest"
	"github.com/pithecene-io/desklink/types"
)

func TestGet(t *testing.T) {
	sim := device.NewSimulator(device.Config{
		Root:         t.TempDir(),
		SerialNumber: "PURE-0001",
		OSVersion:    "1.2.3",
		GitRevision:  "abc123",
		BatteryLevel: 64,
		Charging:     true,
	})
	rec := endpointtest.NewRecorder()
	h := New(endpoint.Deps{Sender: rec}, sim)

	h.Handle(endpointtest.Request(t, types.EndpointDeviceInfo, types.MethodGet, 9, nil))

	f := rec.Wait(t, 1)[0]
	if f.Status != types.StatusOK || f.UUID != "9" {
		t.Fatalf("frame = %+v, want 200 uuid 9", f)
	}
	var info Info
	f.DecodeBody(t, &info)
	if info.BatteryLevel != "64" || info.BatteryState != BatteryCharging {
		t.Errorf("battery = %s/%s, want 64/charging", info.BatteryLevel, info.BatteryState)
	}
	if info.SerialNumber != "PURE-0001" || info.Version != "1.2.3" || info.GitRevision != "abc123" {
		t.Errorf("identity = %+v", info)
	}
	if info.FSTotal == "" || info.FSFreePercent == "" {
		t.Errorf("storage readings missing: %+v", info)
	}
}

func TestOtherMethods(t *testing.T) {
	rec := endpointtest.NewRecorder()
	h := New(endpoint.Deps{Sender: rec}, device.NewSimulator(device.Config{Root: t.TempDir()}))

	h.Handle(endpointtest.Request(t, types.EndpointDeviceInfo, types.MethodPost, 1, nil))
	if f := rec.Wait(t, 1)[0]; f.Status != types.StatusBadRequest {
		t.Errorf("Status = %d, want 400", f.Status)
	}
}
