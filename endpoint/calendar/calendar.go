// Package calendar serves the calendar events endpoint.
package calendar

import (
	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/ical"
	"github.com/pithecene-io/desklink/types"
)

type eventsBody struct {
	Events []ical.Event `json:"calendar_events"`
}

type eventsPage struct {
	Events     []ical.Event `json:"calendar_events"`
	TotalCount uint32       `json:"totalCount"`
}

type uidBody struct {
	UID string `json:"UID"`
}

// Handler is the calendar events endpoint.
type Handler struct {
	deps endpoint.Deps
}

var _ endpoint.DBHelper = (*Handler)(nil)

// New creates the calendar events endpoint.
func New(deps endpoint.Deps) *Handler {
	return &Handler{deps: deps}
}

// Handle implements endpoint.Handler.
func (h *Handler) Handle(ctx *endpoint.Context) {
	endpoint.HandleDB(ctx, h, h.deps)
}

// RequestDataFromDB reads a page of events.
func (h *Handler) RequestDataFromDB(ctx *endpoint.Context) endpoint.Result {
	var req endpoint.PageRequest
	if err := ctx.DecodeBody(&req); err != nil {
		return endpoint.ResultUnresolved
	}
	q := db.NewEventsGetAllLimited(req.Offset, req.Limit)
	return endpoint.Reply(h.deps, ctx, q, func(c *endpoint.Context, r db.Result) {
		res, ok := r.(*db.EventsResult)
		if !ok {
			endpoint.Unexpected(c)
			return
		}
		events := make([]ical.Event, 0, len(res.Records))
		for _, rec := range res.Records {
			events = append(events, ical.FromRecord(rec))
		}
		c.SetPage(req.Offset, req.Limit, res.TotalCount)
		c.SetResponseStatus(types.StatusOK)
		c.SetResponseBody(eventsPage{Events: events, TotalCount: res.TotalCount})
	})
}

// decodeEvents validates every event of the body before anything is
// submitted.
func decodeEvents(ctx *endpoint.Context) ([]db.Event, bool) {
	var body eventsBody
	if err := ctx.DecodeBody(&body); err != nil || len(body.Events) == 0 {
		return nil, false
	}
	records := make([]db.Event, 0, len(body.Events))
	for _, e := range body.Events {
		rec, err := e.Record()
		if err != nil {
			return nil, false
		}
		records = append(records, rec)
	}
	return records, true
}

// CreateDBEntry adds events. Each added event is answered separately with
// its UID.
func (h *Handler) CreateDBEntry(ctx *endpoint.Context) endpoint.Result {
	records, ok := decodeEvents(ctx)
	if !ok {
		return endpoint.Fail(ctx, types.StatusBadRequest, nil)
	}
	for _, rec := range records {
		uid := rec.UID
		res := endpoint.Reply(h.deps, ctx, db.NewEventsAdd(rec), func(c *endpoint.Context, r db.Result) {
			c.SetResponseBody(uidBody{UID: uid})
			c.SetResponseStatus(endpoint.SuccessStatus(r))
		})
		if res != endpoint.ResultSuccess {
			return res
		}
	}
	return endpoint.ResultSuccess
}

// UpdateDBEntry replaces events matched by UID.
func (h *Handler) UpdateDBEntry(ctx *endpoint.Context) endpoint.Result {
	records, ok := decodeEvents(ctx)
	if !ok {
		return endpoint.Fail(ctx, types.StatusBadRequest, nil)
	}
	for _, rec := range records {
		res := endpoint.Reply(h.deps, ctx, db.NewEventsEdit(rec), func(c *endpoint.Context, r db.Result) {
			c.SetResponseStatus(endpoint.SuccessStatus(r))
		})
		if res != endpoint.ResultSuccess {
			return res
		}
	}
	return endpoint.ResultSuccess
}

// DeleteDBEntry removes the event with the given UID.
func (h *Handler) DeleteDBEntry(ctx *endpoint.Context) endpoint.Result {
	var body uidBody
	if err := ctx.DecodeBody(&body); err != nil || !ical.ValidUID(body.UID) {
		return endpoint.Fail(ctx, types.StatusBadRequest, nil)
	}
	return endpoint.Reply(h.deps, ctx, db.NewEventsRemove(body.UID), func(c *endpoint.Context, r db.Result) {
		c.SetResponseStatus(endpoint.SuccessStatus(r))
	})
}
