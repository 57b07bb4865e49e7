// Package backup serves the backup and restore endpoints.
package backup

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/pithecene-io/desklink/backup"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/types"
)

type request struct {
	BackupFile string `json:"backupFile"`
}

// FileBody names one archive.
type FileBody struct {
	BackupFile string `json:"backupFile"`
}

// ListBody answers GET.
type ListBody struct {
	Backups []string `json:"backups"`
}

// ErrorBody carries a failure reason.
type ErrorBody struct {
	BackupFile string `json:"backupFile,omitempty"`
	Reason     string `json:"reason"`
}

// Handler is the backup endpoint, or the restore endpoint when created with
// NewRestore.
type Handler struct {
	deps    endpoint.Deps
	manager *backup.Manager
	restore bool
	wg      sync.WaitGroup
}

// New creates the backup endpoint.
func New(deps endpoint.Deps, m *backup.Manager) *Handler {
	return &Handler{deps: deps, manager: m}
}

// NewRestore creates the restore endpoint.
func NewRestore(deps endpoint.Deps, m *backup.Manager) *Handler {
	return &Handler{deps: deps, manager: m, restore: true}
}

// Handle serves GET (list archives) and POST (backup, or restore of the
// named archive).
func (h *Handler) Handle(ctx *endpoint.Context) {
	switch ctx.Method {
	case types.MethodGet:
		h.list(ctx)
	case types.MethodPost:
		if h.restore {
			h.startRestore(ctx)
			return
		}
		h.backup(ctx)
	default:
		h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
	}
}

func (h *Handler) list(ctx *endpoint.Context) {
	names, err := h.manager.List()
	if err != nil {
		h.deps.Log().Error("list backups failed", map[string]any{"error": err.Error()})
		h.deps.RespondStatus(ctx, types.StatusInternalServerError, nil)
		return
	}
	if names == nil {
		names = []string{}
	}
	h.deps.RespondStatus(ctx, types.StatusOK, ListBody{Backups: names})
}

func (h *Handler) backup(ctx *endpoint.Context) {
	res, err := h.manager.Backup(ctx.Context())
	switch {
	case err == nil:
		h.deps.RespondStatus(ctx, types.StatusOK, FileBody{BackupFile: res.Name})
	case errors.Is(err, backup.ErrBusy):
		h.deps.RespondStatus(ctx, types.StatusConflict, nil)
	default:
		h.deps.Log().Error("backup failed", map[string]any{"error": err.Error()})
		h.deps.RespondStatus(ctx, types.StatusInternalServerError, ErrorBody{Reason: err.Error()})
	}
}

// startRestore validates the archive name, answers 202 and restores on
// its own goroutine. Only a failure produces a further frame; success ends
// in a reboot.
func (h *Handler) startRestore(ctx *endpoint.Context) {
	var req request
	if err := ctx.DecodeBody(&req); err != nil || req.BackupFile == "" {
		h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
		return
	}
	if _, err := h.manager.Path(req.BackupFile); err != nil {
		status := types.StatusBadRequest
		if errors.Is(err, fs.ErrNotExist) {
			status = types.StatusNotFound
		}
		h.deps.RespondStatus(ctx, status, ErrorBody{BackupFile: req.BackupFile, Reason: err.Error()})
		return
	}

	h.deps.RespondStatus(ctx, types.StatusAccepted, FileBody{BackupFile: req.BackupFile})

	session := *ctx
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		err := h.manager.Restore(session.Context(), req.BackupFile)
		if err == nil {
			return
		}
		h.deps.Log().Error("restore failed", map[string]any{"file": req.BackupFile, "error": err.Error()})
		status := types.StatusInternalServerError
		if errors.Is(err, backup.ErrBusy) {
			status = types.StatusConflict
		}
		h.deps.RespondStatus(&session, status, ErrorBody{BackupFile: req.BackupFile, Reason: err.Error()})
	}()
}

// Wait blocks until running restores have finished.
func (h *Handler) Wait() { h.wg.Wait() }
