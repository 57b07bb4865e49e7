// Package endpoint holds the request context and handler plumbing shared by
// all desktop endpoints.
package endpoint

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pithecene-io/desklink/ipc"
	"github.com/pithecene-io/desklink/types"
)

// Request is the decoded request envelope.
type Request struct {
	Endpoint types.Endpoint  `json:"endpoint"`
	Method   types.Method    `json:"method"`
	UUID     int64           `json:"uuid"`
	Body     json.RawMessage `json:"body"`
}

// Page is the continuation hint of a paged response.
type Page struct {
	Offset uint32 `json:"offset"`
	Limit  uint32 `json:"limit"`
}

// Response is the encoded response envelope.
type Response struct {
	Endpoint types.Endpoint `json:"endpoint"`
	Status   types.Status   `json:"status"`
	UUID     string         `json:"uuid"`
	Body     any            `json:"body"`
	NextPage *Page          `json:"nextPage,omitempty"`
}

// Context is one request and the response being built for it.
//
// Context is a plain value: listener closures copy it so the asynchronous
// answer carries the request's endpoint and uuid after the handler returned.
type Context struct {
	Endpoint types.Endpoint
	Method   types.Method
	UUID     int64
	Body     json.RawMessage

	// Paging, filled by handlers of paged reads.
	Offset     uint32
	Limit      uint32
	TotalCount uint32

	ctx    context.Context
	status types.Status
	body   any
}

// NewContext creates a context for req with a 200 response status.
func NewContext(req Request) *Context {
	return &Context{
		Endpoint: req.Endpoint,
		Method:   req.Method,
		UUID:     req.UUID,
		Body:     req.Body,
		status:   types.StatusOK,
	}
}

// Context returns the context the request is served under.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// WithContext sets the context the request is served under.
func (c *Context) WithContext(ctx context.Context) *Context {
	c.ctx = ctx
	return c
}

// DecodeBody unmarshals the request body into v. A missing body decodes as
// an empty object.
func (c *Context) DecodeBody(v any) error {
	if len(c.Body) == 0 || string(c.Body) == "null" {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(c.Body, v)
}

// SetResponseStatus sets the response status.
func (c *Context) SetResponseStatus(s types.Status) { c.status = s }

// ResponseStatus returns the response status.
func (c *Context) ResponseStatus() types.Status { return c.status }

// SetResponseBody sets the response body. It must be JSON-encodable.
func (c *Context) SetResponseBody(body any) { c.body = body }

// ResponseBody returns the response body.
func (c *Context) ResponseBody() any { return c.body }

// SetPage records the requested window and the total number of records.
func (c *Context) SetPage(offset, limit, total uint32) {
	c.Offset = offset
	c.Limit = limit
	c.TotalCount = total
}

// Response builds the response envelope. nextPage is present when the
// requested window ends before the last record.
func (c *Context) Response() Response {
	r := Response{
		Endpoint: c.Endpoint,
		Status:   c.status,
		UUID:     strconv.FormatInt(c.UUID, 10),
		Body:     c.body,
	}
	if c.Limit > 0 && uint64(c.Offset)+uint64(c.Limit) < uint64(c.TotalCount) {
		r.NextPage = &Page{Offset: c.Offset + c.Limit, Limit: c.Limit}
	}
	return r
}

// CreateSimpleResponse returns the response as a complete '#' frame.
func (c *Context) CreateSimpleResponse() []byte {
	payload, err := json.Marshal(c.Response())
	if err != nil {
		// Bodies are built from plain structs and maps; a failure here means
		// a handler stored something unencodable.
		fallback := Response{
			Endpoint: c.Endpoint,
			Status:   types.StatusInternalServerError,
			UUID:     strconv.FormatInt(c.UUID, 10),
		}
		payload, _ = json.Marshal(fallback)
	}
	return ipc.EncodeMessage(payload)
}
