// Package deviceinfo serves the device information endpoint.
package deviceinfo

import (
	"strconv"

	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/types"
)

// Info is the body of a device information response. Numeric readings are
// sent as strings.
type Info struct {
	BatteryLevel   string `json:"batteryLevel"`
	BatteryState   string `json:"batteryState"`
	FSTotal        string `json:"fsTotal"`
	FSFree         string `json:"fsFree"`
	FSFreePercent  string `json:"fsFreePercent"`
	GitRevision    string `json:"gitRevision"`
	CurrentRTCTime string `json:"currentRTCTime"`
	Version        string `json:"version"`
	SerialNumber   string `json:"serialNumber"`
	CaseColour     string `json:"caseColour"`
	Locked         bool   `json:"locked"`
}

// Battery states.
const (
	BatteryDischarging = "discharging"
	BatteryCharging    = "charging"
)

// Handler is the device information endpoint.
type Handler struct {
	deps   endpoint.Deps
	device device.Device
}

// New creates the device information endpoint.
func New(deps endpoint.Deps, dev device.Device) *Handler {
	return &Handler{deps: deps, device: dev}
}

// Handle answers GET with the current readings. Other methods answer 400.
func (h *Handler) Handle(ctx *endpoint.Context) {
	if ctx.Method != types.MethodGet {
		h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
		return
	}

	info, err := h.Info()
	if err != nil {
		h.deps.Log().Error("cannot read device info", map[string]any{"error": err.Error()})
		h.deps.RespondStatus(ctx, types.StatusInternalServerError, nil)
		return
	}
	h.deps.RespondStatus(ctx, types.StatusOK, info)
}

// Info reads the device.
func (h *Handler) Info() (Info, error) {
	storage, err := h.device.Storage()
	if err != nil {
		return Info{}, err
	}
	battery := h.device.Battery()
	state := BatteryDischarging
	if battery.Charging {
		state = BatteryCharging
	}
	const mib = 1 << 20
	return Info{
		BatteryLevel:   strconv.Itoa(battery.Level),
		BatteryState:   state,
		FSTotal:        strconv.FormatUint(storage.Total/mib, 10),
		FSFree:         strconv.FormatUint(storage.Free/mib, 10),
		FSFreePercent:  strconv.Itoa(storage.FreePercent()),
		GitRevision:    h.device.GitRevision(),
		CurrentRTCTime: strconv.FormatInt(h.device.Now().Unix(), 10),
		Version:        h.device.OSVersion(),
		SerialNumber:   h.device.SerialNumber(),
		CaseColour:     h.device.CaseColour(),
		Locked:         h.device.IsLocked(),
	}, nil
}
