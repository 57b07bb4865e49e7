// Package calllog serves the call log endpoint.
package calllog

import (
	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/endpoint"
)

type request struct {
	Count     bool   `json:"count"`
	ContactID uint32 `json:"contactID"`
	ID        uint32 `json:"id"`
	Offset    uint32 `json:"offset"`
	Limit     uint32 `json:"limit"`
}

// Call is the JSON form of a call log entry.
type Call struct {
	ID           uint32 `json:"id"`
	PhoneNumber  string `json:"phoneNumber"`
	Presentation uint32 `json:"presentation"`
	Date         uint32 `json:"date"`
	Duration     uint32 `json:"duration"`
	Type         uint32 `json:"type"`
	Name         string `json:"name"`
	ContactID    uint32 `json:"contactID"`
	IsRead       bool   `json:"isRead"`
}

type callsPage struct {
	Calls      []Call `json:"calls"`
	TotalCount uint32 `json:"totalCount"`
}

func toCalls(recs []db.Calllog) []Call {
	out := make([]Call, 0, len(recs))
	for _, c := range recs {
		out = append(out, Call{
			ID:           c.ID,
			PhoneNumber:  c.PhoneNumber,
			Presentation: c.Presentation,
			Date:         c.Date,
			Duration:     c.Duration,
			Type:         uint32(c.Type),
			Name:         c.Name,
			ContactID:    c.ContactID,
			IsRead:       c.IsRead,
		})
	}
	return out
}

// Handler is the call log endpoint. Entries can be read and removed; they
// are created by the modem, never by the desktop.
type Handler struct {
	deps endpoint.Deps
}

var _ endpoint.DBHelper = (*Handler)(nil)

// New creates the call log endpoint.
func New(deps endpoint.Deps) *Handler {
	return &Handler{deps: deps}
}

// Handle implements endpoint.Handler.
func (h *Handler) Handle(ctx *endpoint.Context) {
	endpoint.HandleDB(ctx, h, h.deps)
}

// RequestDataFromDB reads the count, a contact's calls or a page of calls.
func (h *Handler) RequestDataFromDB(ctx *endpoint.Context) endpoint.Result {
	var req request
	if err := ctx.DecodeBody(&req); err != nil {
		return endpoint.ResultUnresolved
	}
	switch {
	case req.Count:
		return endpoint.Reply(h.deps, ctx, db.NewCalllogGetCount(), func(c *endpoint.Context, r db.Result) {
			res, ok := r.(*db.CountResult)
			if !ok {
				endpoint.Unexpected(c)
				return
			}
			c.SetResponseBody(endpoint.CountBody{Count: res.Count})
		})
	case req.ContactID != 0:
		return endpoint.Reply(h.deps, ctx, db.NewCalllogGetByContactID(req.ContactID), func(c *endpoint.Context, r db.Result) {
			res, ok := r.(*db.CalllogResult)
			if !ok {
				endpoint.Unexpected(c)
				return
			}
			c.SetResponseBody(toCalls(res.Records))
		})
	default:
		q := db.NewCalllogGetLimited(req.Offset, req.Limit)
		return endpoint.Reply(h.deps, ctx, q, func(c *endpoint.Context, r db.Result) {
			res, ok := r.(*db.CalllogResult)
			if !ok {
				endpoint.Unexpected(c)
				return
			}
			c.SetPage(req.Offset, req.Limit, res.TotalCount)
			c.SetResponseBody(callsPage{Calls: toCalls(res.Records), TotalCount: res.TotalCount})
		})
	}
}

// CreateDBEntry is not supported.
func (h *Handler) CreateDBEntry(*endpoint.Context) endpoint.Result {
	return endpoint.ResultUnresolved
}

// UpdateDBEntry is not supported.
func (h *Handler) UpdateDBEntry(*endpoint.Context) endpoint.Result {
	return endpoint.ResultUnresolved
}

// DeleteDBEntry removes one entry.
func (h *Handler) DeleteDBEntry(ctx *endpoint.Context) endpoint.Result {
	var req request
	if err := ctx.DecodeBody(&req); err != nil || req.ID == 0 {
		return endpoint.ResultUnresolved
	}
	return endpoint.Reply(h.deps, ctx, db.NewCalllogRemove(req.ID), func(c *endpoint.Context, r db.Result) {
		c.SetResponseStatus(endpoint.SuccessStatus(r))
	})
}
