// Package usbsecurity serves the endpoint that reports the security gate
// and unlocks the phone from the desktop.
package usbsecurity

import (
	"context"
	"errors"

	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/security"
	"github.com/pithecene-io/desklink/types"
)

// Gate is the part of the security model the endpoint needs.
type Gate interface {
	EndpointSecurity(ctx context.Context) security.Decision
	Unlock(ctx context.Context, code []int) error
}

type unlockRequest struct {
	PhoneLockCode []int `json:"phoneLockCode"`
}

// Handler is the USB security endpoint.
type Handler struct {
	deps endpoint.Deps
	gate Gate
}

// New creates the USB security endpoint.
func New(deps endpoint.Deps, gate Gate) *Handler {
	return &Handler{deps: deps, gate: gate}
}

// Handle answers GET with the gate state: 204 when requests are allowed,
// 423 while locked and 403 with the reason otherwise. PUT with a lock code
// unlocks the phone (204) or answers 403.
func (h *Handler) Handle(ctx *endpoint.Context) {
	switch ctx.Method {
	case types.MethodGet:
		h.status(ctx)
	case types.MethodPut:
		h.unlock(ctx)
	default:
		h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
	}
}

func (h *Handler) status(ctx *endpoint.Context) {
	d := h.gate.EndpointSecurity(ctx.Context())
	switch {
	case d.Access == security.Allow:
		h.deps.RespondStatus(ctx, types.StatusNoContent, nil)
	case d.Reason == security.DeviceLocked:
		h.deps.RespondStatus(ctx, types.StatusLocked, nil)
	default:
		h.deps.RespondStatus(ctx, types.StatusForbidden, endpoint.ReasonBody{Reason: d.Reason})
	}
}

func (h *Handler) unlock(ctx *endpoint.Context) {
	var req unlockRequest
	if err := ctx.DecodeBody(&req); err != nil || len(req.PhoneLockCode) == 0 {
		h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
		return
	}
	for _, d := range req.PhoneLockCode {
		if d < 0 || d > 9 {
			h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
			return
		}
	}

	err := h.gate.Unlock(ctx.Context(), req.PhoneLockCode)
	switch {
	case err == nil:
		h.deps.RespondStatus(ctx, types.StatusNoContent, nil)
	case errors.Is(err, security.ErrWrongPasscode):
		h.deps.RespondStatus(ctx, types.StatusForbidden, nil)
	default:
		h.deps.Log().Error("unlock failed", map[string]any{"error": err.Error()})
		h.deps.RespondStatus(ctx, types.StatusInternalServerError, nil)
	}
}
