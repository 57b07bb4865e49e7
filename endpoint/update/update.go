// Package update serves the OS update endpoint.
//
// POST starts a run and answers 202 at once. The run continues on its own
// goroutine and every engine notification is sent as a further frame
// carrying the uuid of the POST, until the device reboots.
package update

import (
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"

	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/types"
	"github.com/pithecene-io/desklink/update"
)

type request struct {
	FileName string `json:"fileName"`
	History  bool   `json:"history"`
}

// ProgressBody is the body of a notification frame.
type ProgressBody struct {
	Kind      string       `json:"kind"`
	ErrorCode update.Code  `json:"errorCode"`
	Stats     update.Stats `json:"updateStats"`
}

// StartBody answers an accepted POST.
type StartBody struct {
	FileName string `json:"fileName"`
	Version  string `json:"version,omitempty"`
}

// ErrorBody answers a rejected POST.
type ErrorBody struct {
	ErrorCode update.Code `json:"errorCode"`
	Reason    string      `json:"reason"`
}

// StatusBody answers GET.
type StatusBody struct {
	State     update.State     `json:"state"`
	Running   bool             `json:"running"`
	Available string           `json:"available,omitempty"`
	Updates   []update.Package `json:"updates"`
}

// HistoryBody answers GET with history set.
type HistoryBody struct {
	History []update.RunStatus `json:"history"`
}

// Handler is the update endpoint. It owns the single update session.
type Handler struct {
	deps   endpoint.Deps
	engine *update.Engine

	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	session *endpoint.Context
}

// New creates the update endpoint over engine. The engine's Notify hook
// must call Notify on the returned handler.
func New(deps endpoint.Deps, engine *update.Engine) *Handler {
	return &Handler{deps: deps, engine: engine}
}

// Handle serves GET (packages or history), POST (start) and DEL (abort).
func (h *Handler) Handle(ctx *endpoint.Context) {
	var req request
	if len(ctx.Body) > 0 {
		if err := ctx.DecodeBody(&req); err != nil {
			h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
			return
		}
	}
	switch ctx.Method {
	case types.MethodGet:
		if req.History {
			h.history(ctx)
			return
		}
		h.status(ctx)
	case types.MethodPost:
		h.start(ctx, req.FileName)
	case types.MethodDel:
		h.abort(ctx)
	default:
		h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
	}
}

func (h *Handler) status(ctx *endpoint.Context) {
	pkgs, err := h.engine.Packages()
	if err != nil {
		h.deps.Log().Error("list update packages failed", map[string]any{"error": err.Error()})
		h.deps.RespondStatus(ctx, types.StatusInternalServerError, nil)
		return
	}
	body := StatusBody{
		State:   h.engine.State(),
		Running: h.running.Load(),
		Updates: pkgs,
	}
	if body.Updates == nil {
		body.Updates = []update.Package{}
	}
	if path, _, err := h.engine.CheckForUpdate(); err == nil && path != "" {
		for _, p := range pkgs {
			if p.Path == path {
				body.Available = p.Name
			}
		}
	}
	h.deps.RespondStatus(ctx, types.StatusOK, body)
}

func (h *Handler) history(ctx *endpoint.Context) {
	runs, err := h.engine.History(ctx.Context())
	if err != nil {
		h.deps.Log().Error("read update history failed", map[string]any{"error": err.Error()})
		h.deps.RespondStatus(ctx, types.StatusInternalServerError, nil)
		return
	}
	if runs == nil {
		runs = []update.RunStatus{}
	}
	h.deps.RespondStatus(ctx, types.StatusOK, HistoryBody{History: runs})
}

func (h *Handler) start(ctx *endpoint.Context, name string) {
	if name == "" {
		h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
		return
	}
	if !h.running.CompareAndSwap(false, true) {
		h.deps.RespondStatus(ctx, types.StatusConflict, nil)
		return
	}

	if err := h.engine.SetUpdateFile(name); err != nil {
		h.running.Store(false)
		status := types.StatusBadRequest
		if errors.Is(err, fs.ErrNotExist) {
			status = types.StatusNotFound
		}
		h.deps.RespondStatus(ctx, status, ErrorBody{ErrorCode: update.CodeOf(err), Reason: err.Error()})
		return
	}

	session := *ctx
	h.mu.Lock()
	h.session = &session
	h.mu.Unlock()

	h.deps.RespondStatus(ctx, types.StatusAccepted, StartBody{
		FileName: name,
		Version:  h.engine.PackageVersion().Version(),
	})

	runCtx := ctx.Context()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.running.Store(false)
		err := h.engine.RunUpdate(runCtx)
		if err == nil {
			h.send(types.StatusOK, ProgressBody{Kind: "done", Stats: h.engine.Stats()})
		}
		h.mu.Lock()
		h.session = nil
		h.mu.Unlock()
	}()
}

func (h *Handler) abort(ctx *endpoint.Context) {
	if !h.running.Load() {
		h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
		return
	}
	if !h.engine.Abortable() {
		h.deps.RespondStatus(ctx, types.StatusConflict, nil)
		return
	}
	h.engine.SetAbort()
	h.deps.RespondStatus(ctx, types.StatusAccepted, nil)
}

// Notify forwards an engine notification to the desktop tool that started
// the run. Notifications outside a session are dropped.
func (h *Handler) Notify(ev update.Event) {
	status := types.StatusAccepted
	if ev.Kind == update.EventError {
		status = types.StatusInternalServerError
	}
	h.send(status, ProgressBody{Kind: ev.Kind.String(), ErrorCode: ev.Code, Stats: ev.Stats})
}

func (h *Handler) send(status types.Status, body ProgressBody) {
	h.mu.Lock()
	s := h.session
	h.mu.Unlock()
	if s == nil {
		return
	}
	c := *s
	h.deps.RespondStatus(&c, status, body)
}

// Running reports whether a session is in progress.
func (h *Handler) Running() bool { return h.running.Load() }

// Wait blocks until the current session, if any, has finished.
func (h *Handler) Wait() { h.wg.Wait() }
