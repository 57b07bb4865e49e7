// Package dispatch turns complete frame payloads into endpoint calls.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/ipc"
	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/metrics"
	"github.com/pithecene-io/desklink/security"
)

// Gate evaluates the security policy for one request.
type Gate interface {
	EndpointSecurity(ctx context.Context) security.Decision
}

// RawDataHandler consumes '$' frames.
type RawDataHandler interface {
	HandleRawData(payload []byte)
}

// Config configures a MessageHandler.
type Config struct {
	Factory endpoint.Factory
	Gate    Gate
	// RawData receives '$' frames. Optional; without it they are dropped.
	RawData RawDataHandler
	// OnProcessed runs after every dispatched request. Optional.
	OnProcessed func(ctx *endpoint.Context)
	// BaseContext is the context requests decoded by HandleMessage are
	// served under. Defaults to context.Background.
	BaseContext context.Context
	Logger      *log.Logger
	Collector   *metrics.Collector
}

// MessageHandler decodes request envelopes and dispatches them. It is an
// ipc.Handler and runs on the transport read goroutine.
type MessageHandler struct {
	cfg    Config
	logger *log.Logger

	req     endpoint.Request
	valid   bool
	rawJSON []byte
}

var _ ipc.Handler = (*MessageHandler)(nil)

// New creates a MessageHandler.
func New(cfg Config) *MessageHandler {
	return &MessageHandler{cfg: cfg, logger: log.OrNop(cfg.Logger).Named("dispatch")}
}

// ParseMessage decodes payload as a request envelope. Decode failures leave
// the handler invalid.
func (h *MessageHandler) ParseMessage(payload []byte) error {
	h.req = endpoint.Request{}
	h.valid = false
	h.rawJSON = bytes.TrimSpace(payload)

	if bytes.Equal(h.rawJSON, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(h.rawJSON, &h.req); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	h.valid = true
	return nil
}

// IsValid reports whether the last ParseMessage produced an envelope.
func (h *MessageHandler) IsValid() bool { return h.valid }

// IsJSONNull reports whether the last payload was the JSON literal null.
func (h *MessageHandler) IsJSONNull() bool {
	return bytes.Equal(h.rawJSON, []byte("null"))
}

// ProcessMessage dispatches the parsed envelope. Requests for endpoints
// without a handler are dropped without a response.
func (h *MessageHandler) ProcessMessage(ctx context.Context) {
	rctx := endpoint.NewContext(h.req).WithContext(ctx)
	decision := security.Allowed
	if h.cfg.Gate != nil {
		decision = h.cfg.Gate.EndpointSecurity(ctx)
	}

	handler := h.cfg.Factory.Create(rctx, decision)
	if handler == nil {
		h.cfg.Collector.IncUnhandledEndpoint()
		h.logger.Warn("no handler for endpoint", map[string]any{
			"endpoint": rctx.Endpoint.String(),
			"uuid":     rctx.UUID,
		})
		return
	}
	if decision.Access == security.Block && !endpoint.ReachableWhenBlocked(rctx.Endpoint) {
		h.cfg.Collector.IncBlocked()
		h.logger.Info("request blocked", map[string]any{
			"endpoint": rctx.Endpoint.String(),
			"reason":   decision.Reason.String(),
		})
	} else {
		h.cfg.Collector.IncDispatched()
	}

	h.logger.Debug("dispatch", map[string]any{
		"endpoint": rctx.Endpoint.String(),
		"method":   rctx.Method.String(),
		"uuid":     rctx.UUID,
	})
	handler.Handle(rctx)

	if h.cfg.OnProcessed != nil {
		h.cfg.OnProcessed(rctx)
	}
}

// HandleMessage implements ipc.Handler.
func (h *MessageHandler) HandleMessage(payload []byte) {
	if err := h.ParseMessage(payload); err != nil {
		h.cfg.Collector.IncDecodeError()
		h.logger.Warn("dropping undecodable message", map[string]any{"error": err.Error()})
		return
	}
	if h.IsJSONNull() {
		h.cfg.Collector.IncDecodeError()
		h.logger.Warn("dropping null message", nil)
		return
	}
	if !h.IsValid() {
		return
	}
	if !h.req.Endpoint.Valid() {
		h.cfg.Collector.IncUnhandledEndpoint()
		h.logger.Warn("dropping message for unknown endpoint", map[string]any{"endpoint": int(h.req.Endpoint)})
		return
	}
	ctx := h.cfg.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	h.ProcessMessage(ctx)
}

// HandleRawData implements ipc.Handler.
func (h *MessageHandler) HandleRawData(payload []byte) {
	if h.cfg.RawData == nil {
		h.logger.Debug("dropping raw data", map[string]any{"length": len(payload)})
		return
	}
	h.cfg.RawData.HandleRawData(payload)
}
