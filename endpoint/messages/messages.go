// Package messages serves the messages endpoint: text messages, threads and
// message templates.
package messages

import (
	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/types"
)

// CategoryThread selects the thread listing.
const CategoryThread = "thread"

// request is the union of every request shape the endpoint accepts. The
// first set field (in the order checked by each operation) selects the
// query.
type request struct {
	Template     bool    `json:"template"`
	Count        bool    `json:"count"`
	ID           uint32  `json:"id"`
	ContactID    uint32  `json:"contactID"`
	ThreadID     uint32  `json:"threadID"`
	MessageBody  string  `json:"messageBody"`
	Category     string  `json:"category"`
	Offset       uint32  `json:"offset"`
	Limit        uint32  `json:"limit"`
	TemplateText *string `json:"templateText"`
	IsUnread     bool    `json:"isUnread"`
}

// Message is the JSON form of a text message.
type Message struct {
	ID          uint32 `json:"id"`
	ContactID   uint32 `json:"contactID"`
	Date        uint32 `json:"date"`
	DateSent    uint32 `json:"dateSent"`
	MessageBody string `json:"messageBody"`
	PhoneNumber string `json:"phoneNumber"`
	Type        uint32 `json:"type"`
	ThreadID    uint32 `json:"threadID"`
}

// Thread is the JSON form of a conversation.
type Thread struct {
	ID             uint32 `json:"id"`
	ContactID      uint32 `json:"contactID"`
	Date           uint32 `json:"date"`
	MsgCount       uint32 `json:"msgCount"`
	UnreadMsgCount uint32 `json:"unreadMsgCount"`
	IsUnread       bool   `json:"isUnread"`
	Snippet        string `json:"snippet"`
	Type           uint32 `json:"type"`
	PhoneNumber    string `json:"phoneNumber"`
}

// Template is the JSON form of a message template.
type Template struct {
	ID                 uint32 `json:"id"`
	TemplateText       string `json:"templateText"`
	LastUsageTimestamp uint32 `json:"lastUsedAt"`
}

type messagesPage struct {
	Messages   []Message `json:"messages"`
	TotalCount uint32    `json:"totalCount"`
}

type threadsPage struct {
	Threads    []Thread `json:"threads"`
	TotalCount uint32   `json:"totalCount"`
}

type templatesPage struct {
	Templates  []Template `json:"templates"`
	TotalCount uint32     `json:"totalCount"`
}

type idBody struct {
	ID uint32 `json:"id"`
}

func toMessage(m db.SMS) Message {
	return Message{
		ID:          m.ID,
		ContactID:   m.ContactID,
		Date:        m.Date,
		DateSent:    m.DateSent,
		MessageBody: m.Body,
		PhoneNumber: m.PhoneNumber,
		Type:        uint32(m.Type),
		ThreadID:    m.ThreadID,
	}
}

func toMessages(recs []db.SMS) []Message {
	out := make([]Message, 0, len(recs))
	for _, m := range recs {
		out = append(out, toMessage(m))
	}
	return out
}

func toThread(t db.Thread) Thread {
	return Thread{
		ID:             t.ID,
		ContactID:      t.ContactID,
		Date:           t.Date,
		MsgCount:       t.MsgCount,
		UnreadMsgCount: t.UnreadMsgCount,
		IsUnread:       t.UnreadMsgCount > 0,
		Snippet:        t.Snippet,
		Type:           uint32(t.Type),
		PhoneNumber:    t.PhoneNumber,
	}
}

func toTemplate(t db.Template) Template {
	return Template{ID: t.ID, TemplateText: t.Text, LastUsageTimestamp: t.LastUsageTimestamp}
}

// Handler is the messages endpoint.
type Handler struct {
	deps endpoint.Deps
}

var _ endpoint.DBHelper = (*Handler)(nil)

// New creates the messages endpoint.
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

// RequestDataFromDB reads messages, threads or templates.
func (h *Handler) RequestDataFromDB(ctx *endpoint.Context) endpoint.Result {
	req, ok := decode(ctx)
	if !ok {
		return endpoint.ResultUnresolved
	}
	if req.Template {
		return h.requestTemplates(ctx, req)
	}

	switch {
	case req.Count:
		return endpoint.Reply(h.deps, ctx, db.NewSMSGetCount(), answerCount)
	case req.ID != 0:
		return endpoint.Reply(h.deps, ctx, db.NewSMSGetByID(req.ID), func(c *endpoint.Context, r db.Result) {
			res, ok := r.(*db.SMSResult)
			if !ok || len(res.Records) == 0 {
				endpoint.Unexpected(c)
				return
			}
			c.SetResponseBody(toMessage(res.Records[0]))
		})
	case req.ContactID != 0:
		return endpoint.Reply(h.deps, ctx, db.NewSMSGetByContactID(req.ContactID), answerMessages)
	case req.ThreadID != 0:
		q := db.NewSMSGetByThreadID(req.ThreadID, req.Offset, req.Limit)
		return endpoint.Reply(h.deps, ctx, q, answerMessagesPage(req))
	case req.MessageBody != "":
		return endpoint.Reply(h.deps, ctx, db.NewSMSGetByText(req.MessageBody), answerMessages)
	case req.Category == CategoryThread:
		q := db.NewThreadsGetLimited(req.Offset, req.Limit)
		return endpoint.Reply(h.deps, ctx, q, func(c *endpoint.Context, r db.Result) {
			res, ok := r.(*db.ThreadsResult)
			if !ok {
				endpoint.Unexpected(c)
				return
			}
			threads := make([]Thread, 0, len(res.Records))
			for _, t := range res.Records {
				threads = append(threads, toThread(t))
			}
			c.SetPage(req.Offset, req.Limit, res.TotalCount)
			c.SetResponseBody(threadsPage{Threads: threads, TotalCount: res.TotalCount})
		})
	case req.Category != "":
		return endpoint.Fail(ctx, types.StatusBadRequest, nil)
	default:
		q := db.NewSMSGetLimited(req.Offset, req.Limit)
		return endpoint.Reply(h.deps, ctx, q, answerMessagesPage(req))
	}
}

func (h *Handler) requestTemplates(ctx *endpoint.Context, req request) endpoint.Result {
	switch {
	case req.Count:
		return endpoint.Reply(h.deps, ctx, db.NewTemplateGetCount(), answerCount)
	case req.ID != 0:
		return endpoint.Reply(h.deps, ctx, db.NewTemplateGetByID(req.ID), func(c *endpoint.Context, r db.Result) {
			res, ok := r.(*db.TemplatesResult)
			if !ok || len(res.Records) == 0 {
				endpoint.Unexpected(c)
				return
			}
			c.SetResponseBody(toTemplate(res.Records[0]))
		})
	default:
		q := db.NewTemplateGetLimited(req.Offset, req.Limit)
		return endpoint.Reply(h.deps, ctx, q, func(c *endpoint.Context, r db.Result) {
			res, ok := r.(*db.TemplatesResult)
			if !ok {
				endpoint.Unexpected(c)
				return
			}
			templates := make([]Template, 0, len(res.Records))
			for _, t := range res.Records {
				templates = append(templates, toTemplate(t))
			}
			c.SetPage(req.Offset, req.Limit, res.TotalCount)
			c.SetResponseBody(templatesPage{Templates: templates, TotalCount: res.TotalCount})
		})
	}
}

func answerCount(c *endpoint.Context, r db.Result) {
	res, ok := r.(*db.CountResult)
	if !ok {
		endpoint.Unexpected(c)
		return
	}
	c.SetResponseBody(endpoint.CountBody{Count: res.Count})
}

func answerMessages(c *endpoint.Context, r db.Result) {
	res, ok := r.(*db.SMSResult)
	if !ok {
		endpoint.Unexpected(c)
		return
	}
	c.SetResponseBody(toMessages(res.Records))
}

func answerMessagesPage(req request) func(*endpoint.Context, db.Result) {
	return func(c *endpoint.Context, r db.Result) {
		res, ok := r.(*db.SMSResult)
		if !ok {
			endpoint.Unexpected(c)
			return
		}
		c.SetPage(req.Offset, req.Limit, res.TotalCount)
		c.SetResponseBody(messagesPage{Messages: toMessages(res.Records), TotalCount: res.TotalCount})
	}
}

// CreateDBEntry adds a template. Sending messages is not supported.
func (h *Handler) CreateDBEntry(ctx *endpoint.Context) endpoint.Result {
	req, ok := decode(ctx)
	if !ok || !req.Template {
		return endpoint.ResultUnresolved
	}
	if req.TemplateText == nil {
		return endpoint.Fail(ctx, types.StatusBadRequest, nil)
	}
	q := db.NewTemplateAdd(db.Template{Text: *req.TemplateText})
	return endpoint.Reply(h.deps, ctx, q, func(c *endpoint.Context, r db.Result) {
		c.SetResponseStatus(endpoint.SuccessStatus(r))
		if res, ok := r.(*db.SuccessResult); ok {
			if id, ok := res.RecordID(); ok {
				c.SetResponseBody(idBody{ID: id})
			}
		}
	})
}

// UpdateDBEntry updates a template or marks a thread as read or unread.
func (h *Handler) UpdateDBEntry(ctx *endpoint.Context) endpoint.Result {
	req, ok := decode(ctx)
	if !ok {
		return endpoint.ResultUnresolved
	}
	answer := func(c *endpoint.Context, r db.Result) {
		c.SetResponseStatus(endpoint.SuccessStatus(r))
	}
	if req.Template {
		if req.ID == 0 || req.TemplateText == nil {
			return endpoint.Fail(ctx, types.StatusBadRequest, nil)
		}
		q := db.NewTemplateUpdate(db.Template{ID: req.ID, Text: *req.TemplateText})
		return endpoint.Reply(h.deps, ctx, q, answer)
	}
	if req.ThreadID == 0 {
		return endpoint.ResultUnresolved
	}
	return endpoint.Reply(h.deps, ctx, db.NewThreadMarkAsRead(req.ThreadID, !req.IsUnread), answer)
}

// DeleteDBEntry removes a message or a template.
func (h *Handler) DeleteDBEntry(ctx *endpoint.Context) endpoint.Result {
	req, ok := decode(ctx)
	if !ok || req.ID == 0 {
		return endpoint.ResultUnresolved
	}
	answer := func(c *endpoint.Context, r db.Result) {
		c.SetResponseStatus(endpoint.SuccessStatus(r))
	}
	if req.Template {
		return endpoint.Reply(h.deps, ctx, db.NewTemplateRemove(req.ID), answer)
	}
	return endpoint.Reply(h.deps, ctx, db.NewSMSRemove(req.ID), answer)
}
