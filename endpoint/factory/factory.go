// Package factory serves the factory reset endpoint.
package factory

import (
	"sync"

	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/factory"
	"github.com/pithecene-io/desklink/types"
)

// Body is both the request and the response.
type Body struct {
	FactoryRequest bool `json:"factoryRequest"`
}

// Handler is the factory reset endpoint.
type Handler struct {
	deps     endpoint.Deps
	resetter *factory.Resetter
	wg       sync.WaitGroup
}

// New creates the factory reset endpoint.
func New(deps endpoint.Deps, r *factory.Resetter) *Handler {
	return &Handler{deps: deps, resetter: r}
}

// Handle answers POST {"factoryRequest": true} with 200 and then resets the
// device on its own goroutine.
func (h *Handler) Handle(ctx *endpoint.Context) {
	var req Body
	if ctx.Method != types.MethodPost || ctx.DecodeBody(&req) != nil || !req.FactoryRequest {
		h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
		return
	}
	h.deps.RespondStatus(ctx, types.StatusOK, Body{FactoryRequest: true})

	runCtx := ctx.Context()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.resetter.Run(runCtx); err != nil {
			h.deps.Log().Error("factory reset failed", map[string]any{"error": err.Error()})
		}
	}()
}

// Wait blocks until a running reset has finished.
func (h *Handler) Wait() { h.wg.Wait() }
