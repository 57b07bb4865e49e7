package endpoint

import (
	"errors"

	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/types"
)

// Result is the synchronous outcome of a helper operation.
type Result int

const (
	// ResultSuccess means a query was submitted; its listener will respond.
	ResultSuccess Result = iota
	// ResultFailure means the helper set an error status on the context;
	// HandleDB responds immediately.
	ResultFailure
	// ResultUnresolved means the body matched no known request shape;
	// HandleDB responds 400.
	ResultUnresolved
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	default:
		return "unresolved"
	}
}

// DBHelper maps the four methods of a DB-backed endpoint onto queries.
type DBHelper interface {
	RequestDataFromDB(ctx *Context) Result
	CreateDBEntry(ctx *Context) Result
	UpdateDBEntry(ctx *Context) Result
	DeleteDBEntry(ctx *Context) Result
}

// HandleDB routes ctx to the helper operation for its method and sends the
// synchronous response when the helper did not submit a query.
func HandleDB(ctx *Context, h DBHelper, deps Deps) {
	var res Result
	switch ctx.Method {
	case types.MethodGet:
		res = h.RequestDataFromDB(ctx)
	case types.MethodPost:
		res = h.UpdateDBEntry(ctx)
	case types.MethodPut:
		res = h.CreateDBEntry(ctx)
	case types.MethodDel:
		res = h.DeleteDBEntry(ctx)
	default:
		res = ResultUnresolved
	}

	switch res {
	case ResultSuccess:
	case ResultFailure:
		if ctx.ResponseStatus().IsSuccess() {
			ctx.SetResponseStatus(types.StatusBadRequest)
		}
		deps.Respond(ctx)
	default:
		ctx.SetResponseStatus(types.StatusBadRequest)
		deps.Respond(ctx)
	}
}

// Submit attaches listener to q and hands it to the query service. A
// rejected submit sets 503 on ctx and returns ResultFailure.
func Submit(deps Deps, ctx *Context, q db.Query, listener db.ListenerFunc) Result {
	q.SetListener(listener)
	if !deps.DB.Submit(q) {
		deps.Log().Warn("query rejected", map[string]any{"query": q.Name(), "uuid": ctx.UUID})
		ctx.SetResponseStatus(types.StatusServiceUnavailable)
		return ResultFailure
	}
	return ResultSuccess
}

// Fail sets status and an optional error body and returns ResultFailure.
func Fail(ctx *Context, status types.Status, body any) Result {
	ctx.SetResponseStatus(status)
	ctx.SetResponseBody(body)
	return ResultFailure
}

// Reply submits q and answers the request when the query completes. answer
// receives a copy of ctx and fills in its status and body; the copy is sent
// after answer returns. An ErrorResult is answered with 404 for a missing
// record and 500 otherwise, without calling answer.
func Reply(deps Deps, ctx *Context, q db.Query, answer func(c *Context, r db.Result)) Result {
	c := *ctx
	return Submit(deps, ctx, q, func(r db.Result) bool {
		if er, ok := r.(*db.ErrorResult); ok {
			status := types.StatusInternalServerError
			if errors.Is(er.Err, db.ErrNotFound) {
				status = types.StatusNotFound
			}
			deps.RespondStatus(&c, status, nil)
			return false
		}
		answer(&c, r)
		deps.Respond(&c)
		return true
	})
}

// Unexpected marks c as failed because a listener received a result of the
// wrong kind.
func Unexpected(c *Context) {
	c.SetResponseStatus(types.StatusInternalServerError)
	c.SetResponseBody(nil)
}

// SuccessStatus maps a SuccessResult to 200 and anything else to 500.
func SuccessStatus(r db.Result) types.Status {
	if res, ok := r.(*db.SuccessResult); ok && res.Succeed {
		return types.StatusOK
	}
	return types.StatusInternalServerError
}

// PageRequest is the window of a paged read. A zero Limit reads to the end.
type PageRequest struct {
	Offset uint32 `json:"offset"`
	Limit  uint32 `json:"limit"`
}

// CountBody answers the count requests.
type CountBody struct {
	Count uint32 `json:"count"`
}
