package endpoint

import (
	"github.com/pithecene-io/desklink/security"
	"github.com/pithecene-io/desklink/types"
)

// Factory returns the handler for a request given the security decision.
// A nil handler means the endpoint has no handler and the request is dropped.
type Factory interface {
	Create(ctx *Context, decision security.Decision) Handler
}

// Registry is the Factory used by the service: one shared handler per
// endpoint plus the rejecting handler for blocked requests.
type Registry struct {
	handlers map[types.Endpoint]Handler
	deps     Deps
}

var _ Factory = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{handlers: make(map[types.Endpoint]Handler), deps: deps}
}

// Register installs h for e, replacing any previous handler.
func (r *Registry) Register(e types.Endpoint, h Handler) {
	r.handlers[e] = h
}

// Lookup returns the handler registered for e.
func (r *Registry) Lookup(e types.Endpoint) (Handler, bool) {
	h, ok := r.handlers[e]
	return h, ok
}

// ReachableWhenBlocked reports whether e answers while the gate blocks.
// The desktop needs device info and the unlock endpoint to recover.
func ReachableWhenBlocked(e types.Endpoint) bool {
	return e == types.EndpointDeviceInfo || e == types.EndpointUSBSecurity
}

// Create implements Factory.
func (r *Registry) Create(ctx *Context, decision security.Decision) Handler {
	if decision.Access == security.Block && !ReachableWhenBlocked(ctx.Endpoint) {
		return &rejectHandler{deps: r.deps, reason: decision.Reason}
	}
	h, ok := r.handlers[ctx.Endpoint]
	if !ok {
		return nil
	}
	return h
}

// rejectHandler answers a blocked request.
type rejectHandler struct {
	deps   Deps
	reason security.Reason
}

// ReasonBody is the body of a security rejection.
type ReasonBody struct {
	Reason security.Reason `json:"reason"`
}

func (h *rejectHandler) Handle(ctx *Context) {
	status := types.StatusForbidden
	if h.reason == security.DeviceLocked {
		status = types.StatusLocked
	}
	h.deps.RespondStatus(ctx, status, ReasonBody{Reason: h.reason})
}
