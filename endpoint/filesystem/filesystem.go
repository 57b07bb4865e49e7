// Package filesystem serves the file transfer endpoint.
package filesystem

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/fileops"
	"github.com/pithecene-io/desklink/types"
)

// ReasonFileDoesNotExist is the rejection reason for a missing download.
const ReasonFileDoesNotExist = "file does not exist"

// request is the union of the request shapes. Pointer fields distinguish a
// missing key from a zero value.
type request struct {
	FileName     *string `json:"fileName"`
	FileSize     *int64  `json:"fileSize"`
	FileCRC32    *string `json:"fileCrc32"`
	RxID         *uint32 `json:"rxID"`
	TxID         *uint32 `json:"txID"`
	ChunkNo      uint32  `json:"chunkNo"`
	Data         *string `json:"data"`
	ListDir      *string `json:"listDir"`
	RenameFile   *string `json:"renameFile"`
	DestFilename *string `json:"destFilename"`
	RemoveFile   *string `json:"removeFile"`
}

type reasonBody struct {
	Reason string `json:"reason"`
}

type downloadBody struct {
	RxID      uint32 `json:"rxID"`
	FileSize  int64  `json:"fileSize"`
	ChunkSize int    `json:"chunkSize"`
	FileCRC32 string `json:"fileCrc32"`
}

type chunkBody struct {
	RxID      uint32 `json:"rxID"`
	ChunkNo   uint32 `json:"chunkNo"`
	Data      string `json:"data"`
	FileCRC32 string `json:"fileCrc32,omitempty"`
}

type uploadBody struct {
	TxID      uint32 `json:"txID"`
	ChunkSize int    `json:"chunkSize"`
}

type uploadChunkBody struct {
	TxID    uint32 `json:"txID"`
	ChunkNo uint32 `json:"chunkNo"`
}

type entryBody struct {
	Path     string `json:"path"`
	FileSize int64  `json:"fileSize"`
	Type     string `json:"type"`
}

// Handler is the filesystem endpoint.
type Handler struct {
	deps   endpoint.Deps
	files  *fileops.Manager
	device device.Device
}

// New creates the filesystem endpoint. dev is consulted for free space
// before an upload starts and may be nil.
func New(deps endpoint.Deps, files *fileops.Manager, dev device.Device) *Handler {
	return &Handler{deps: deps, files: files, device: dev}
}

// Handle implements endpoint.Handler. Every request is answered
// synchronously.
func (h *Handler) Handle(ctx *endpoint.Context) {
	var req request
	if err := ctx.DecodeBody(&req); err != nil {
		h.deps.RespondStatus(ctx, types.StatusBadRequest, nil)
		return
	}
	switch ctx.Method {
	case types.MethodGet:
		h.get(ctx, req)
	case types.MethodPut:
		h.put(ctx, req)
	case types.MethodDel:
		h.del(ctx, req)
	default:
		ctx.SetResponseStatus(types.StatusBadRequest)
	}
	h.deps.Respond(ctx)
}

func (h *Handler) fail(ctx *endpoint.Context, status types.Status, err error) {
	h.deps.Log().Warn("filesystem request failed", map[string]any{
		"status": int(status),
		"error":  err.Error(),
	})
	ctx.SetResponseStatus(status)
	ctx.SetResponseBody(reasonBody{Reason: err.Error()})
}

func (h *Handler) get(ctx *endpoint.Context, req request) {
	switch {
	case req.FileName != nil:
		d, err := h.files.StartDownload(*req.FileName)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			ctx.SetResponseStatus(types.StatusNotFound)
			ctx.SetResponseBody(reasonBody{Reason: ReasonFileDoesNotExist})
		case errors.Is(err, fileops.ErrNotFile):
			h.fail(ctx, types.StatusBadRequest, err)
		case err != nil:
			h.fail(ctx, types.StatusInternalServerError, err)
		default:
			ctx.SetResponseBody(downloadBody{RxID: d.RxID, FileSize: d.FileSize, ChunkSize: d.ChunkSize, FileCRC32: d.CRC32})
		}
	case req.RxID != nil:
		c, err := h.files.DownloadChunk(*req.RxID, req.ChunkNo)
		if err != nil {
			h.fail(ctx, types.StatusBadRequest, err)
			return
		}
		ctx.SetResponseBody(chunkBody{RxID: *req.RxID, ChunkNo: req.ChunkNo, Data: c.Data, FileCRC32: c.CRC32})
	case req.ListDir != nil:
		entries, err := h.files.ListDir(*req.ListDir)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			ctx.SetResponseStatus(types.StatusNotFound)
		case err != nil:
			h.fail(ctx, types.StatusInternalServerError, err)
		default:
			out := make([]entryBody, 0, len(entries))
			for _, e := range entries {
				out = append(out, entryBody{Path: e.Path, FileSize: e.Size, Type: e.Type})
			}
			ctx.SetResponseBody(map[string][]entryBody{*req.ListDir: out})
		}
	default:
		ctx.SetResponseStatus(types.StatusBadRequest)
	}
}

func (h *Handler) put(ctx *endpoint.Context, req request) {
	switch {
	case req.FileName != nil && req.FileSize != nil && req.FileCRC32 != nil:
		h.startUpload(ctx, *req.FileName, *req.FileSize, *req.FileCRC32)
	case req.TxID != nil && req.Data != nil:
		if *req.Data == "" {
			h.fail(ctx, types.StatusBadRequest, fmt.Errorf("empty chunk %d for tx %d", req.ChunkNo, *req.TxID))
			return
		}
		_, err := h.files.UploadChunk(*req.TxID, req.ChunkNo, *req.Data)
		if err != nil {
			h.fail(ctx, types.StatusNotAcceptable, err)
			return
		}
		ctx.SetResponseBody(uploadChunkBody{TxID: *req.TxID, ChunkNo: req.ChunkNo})
	case req.RenameFile != nil && req.DestFilename != nil:
		if err := h.files.Rename(*req.RenameFile, *req.DestFilename); err != nil {
			ctx.SetResponseStatus(types.StatusNotFound)
			return
		}
		ctx.SetResponseStatus(types.StatusNoContent)
	default:
		ctx.SetResponseStatus(types.StatusBadRequest)
	}
}

func (h *Handler) startUpload(ctx *endpoint.Context, name string, size int64, crc string) {
	if size <= 0 || crc == "" {
		ctx.SetResponseStatus(types.StatusBadRequest)
		return
	}
	if h.device != nil {
		storage, err := h.device.Storage()
		if err != nil {
			h.fail(ctx, types.StatusInternalServerError, err)
			return
		}
		if uint64(size) > storage.Free {
			ctx.SetResponseStatus(types.StatusInsufficientStorage)
			return
		}
	}
	id, _, err := h.files.StartUpload(name, size, crc)
	if err != nil {
		h.fail(ctx, types.StatusBadRequest, err)
		return
	}
	ctx.SetResponseBody(uploadBody{TxID: id, ChunkSize: fileops.ChunkSize})
}

func (h *Handler) del(ctx *endpoint.Context, req request) {
	if req.RemoveFile == nil {
		ctx.SetResponseStatus(types.StatusBadRequest)
		return
	}
	err := h.files.Remove(*req.RemoveFile)
	switch {
	case err == nil:
		ctx.SetResponseStatus(types.StatusNoContent)
	case errors.Is(err, fs.ErrNotExist):
		ctx.SetResponseStatus(types.StatusNotFound)
	default:
		h.fail(ctx, types.StatusInternalServerError, err)
	}
}
