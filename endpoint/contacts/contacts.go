// Package contacts serves the phonebook endpoint.
package contacts

import (
	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/types"
)

// Contact is the JSON form of a phonebook entry. The same shape is accepted
// by add and update.
type Contact struct {
	ID              uint32   `json:"id"`
	PrimaryName     string   `json:"primaryName"`
	AlternativeName string   `json:"alternativeName"`
	Address         string   `json:"address"`
	Numbers         []string `json:"numbers"`
	IsBlocked       bool     `json:"isBlocked"`
	IsFavourite     bool     `json:"isFavourite"`
}

type request struct {
	Contact
	Count  bool   `json:"count"`
	Offset uint32 `json:"offset"`
	Limit  uint32 `json:"limit"`
}

type contactsPage struct {
	Entries    []Contact `json:"entries"`
	TotalCount uint32    `json:"totalCount"`
}

type idBody struct {
	ID uint32 `json:"id"`
}

func fromRecord(c db.Contact) Contact {
	numbers := c.Numbers
	if numbers == nil {
		numbers = []string{}
	}
	return Contact{
		ID:              c.ID,
		PrimaryName:     c.PrimaryName,
		AlternativeName: c.AlternativeName,
		Address:         c.Address,
		Numbers:         numbers,
		IsBlocked:       c.Blocked,
		IsFavourite:     c.Favourite,
	}
}

func (c Contact) record() db.Contact {
	return db.Contact{
		ID:              c.ID,
		PrimaryName:     c.PrimaryName,
		AlternativeName: c.AlternativeName,
		Address:         c.Address,
		Numbers:         c.Numbers,
		Blocked:         c.IsBlocked,
		Favourite:       c.IsFavourite,
	}
}

// Handler is the contacts endpoint.
type Handler struct {
	deps endpoint.Deps
}

var _ endpoint.DBHelper = (*Handler)(nil)

// New creates the contacts endpoint.
func New(deps endpoint.Deps) *Handler {
	return &Handler{deps: deps}
}

// Handle implements endpoint.Handler.
func (h *Handler) Handle(ctx *endpoint.Context) {
	endpoint.HandleDB(ctx, h, h.deps)
}

func decode(ctx *endpoint.Context) (request, bool) {
	var req request
	if err := ctx.DecodeBody(&req); err != nil {
		return request{}, false
	}
	return req, true
}

// RequestDataFromDB reads the count, one contact or a page of contacts.
func (h *Handler) RequestDataFromDB(ctx *endpoint.Context) endpoint.Result {
	req, ok := decode(ctx)
	if !ok {
		return endpoint.ResultUnresolved
	}
	switch {
	case req.Count:
		return endpoint.Reply(h.deps, ctx, db.NewContactGetCount(), func(c *endpoint.Context, r db.Result) {
			res, ok := r.(*db.CountResult)
			if !ok {
				endpoint.Unexpected(c)
				return
			}
			c.SetResponseBody(endpoint.CountBody{Count: res.Count})
		})
	case req.ID != 0:
		return endpoint.Reply(h.deps, ctx, db.NewContactGetByID(req.ID), func(c *endpoint.Context, r db.Result) {
			res, ok := r.(*db.ContactsResult)
			if !ok || len(res.Records) == 0 {
				endpoint.Unexpected(c)
				return
			}
			c.SetResponseBody(fromRecord(res.Records[0]))
		})
	default:
		q := db.NewContactGetLimited(req.Offset, req.Limit)
		return endpoint.Reply(h.deps, ctx, q, func(c *endpoint.Context, r db.Result) {
			res, ok := r.(*db.ContactsResult)
			if !ok {
				endpoint.Unexpected(c)
				return
			}
			entries := make([]Contact, 0, len(res.Records))
			for _, rec := range res.Records {
				entries = append(entries, fromRecord(rec))
			}
			c.SetPage(req.Offset, req.Limit, res.TotalCount)
			c.SetResponseBody(contactsPage{Entries: entries, TotalCount: res.TotalCount})
		})
	}
}

// CreateDBEntry adds a contact. A contact sharing a number with an existing
// one is refused with 409 and the id of the existing contact.
func (h *Handler) CreateDBEntry(ctx *endpoint.Context) endpoint.Result {
	req, ok := decode(ctx)
	if !ok {
		return endpoint.ResultUnresolved
	}
	if len(req.Numbers) == 0 {
		h.deps.Log().Warn("contact without numbers not added", nil)
		return endpoint.Fail(ctx, types.StatusBadRequest, nil)
	}
	rec := req.record()
	rec.ID = 0
	return endpoint.Reply(h.deps, ctx, db.NewContactAdd(rec), func(c *endpoint.Context, r db.Result) {
		res, ok := r.(*db.ContactAddResult)
		switch {
		case !ok:
			endpoint.Unexpected(c)
		case res.Duplicated:
			c.SetResponseStatus(types.StatusConflict)
			c.SetResponseBody(idBody{ID: res.DuplicateID})
		case res.Succeed:
			c.SetResponseBody(idBody{ID: res.ID})
		default:
			c.SetResponseStatus(types.StatusInternalServerError)
		}
	})
}

// UpdateDBEntry replaces the contact with the body's id.
func (h *Handler) UpdateDBEntry(ctx *endpoint.Context) endpoint.Result {
	req, ok := decode(ctx)
	if !ok || req.ID == 0 {
		return endpoint.ResultUnresolved
	}
	return endpoint.Reply(h.deps, ctx, db.NewContactUpdate(req.record()), func(c *endpoint.Context, r db.Result) {
		c.SetResponseStatus(endpoint.SuccessStatus(r))
	})
}

// DeleteDBEntry removes a contact.
func (h *Handler) DeleteDBEntry(ctx *endpoint.Context) endpoint.Result {
	req, ok := decode(ctx)
	if !ok || req.ID == 0 {
		return endpoint.ResultUnresolved
	}
	return endpoint.Reply(h.deps, ctx, db.NewContactRemove(req.ID), func(c *endpoint.Context, r db.Result) {
		c.SetResponseStatus(endpoint.SuccessStatus(r))
	})
}
