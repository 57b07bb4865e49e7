package endpoint

import (
	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/metrics"
	"github.com/pithecene-io/desklink/types"
)

// Handler serves one endpoint.
type Handler interface {
	Handle(ctx *Context)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx *Context)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx *Context) { f(ctx) }

// Sender queues an encoded frame for the transport. It must be safe to call
// from any goroutine and must not block.
type Sender interface {
	Send(frame []byte) bool
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(frame []byte) bool

// Send implements Sender.
func (f SenderFunc) Send(frame []byte) bool { return f(frame) }

// Querier accepts persistence queries.
type Querier interface {
	Submit(q db.Query) bool
}

// Deps are the collaborators shared by endpoint handlers.
type Deps struct {
	Sender    Sender
	DB        Querier
	Logger    *log.Logger
	Collector *metrics.Collector
}

// Log returns the dependency logger, or a no-op logger.
func (d Deps) Log() *log.Logger {
	return log.OrNop(d.Logger)
}

// Respond sends the response held by ctx.
func (d Deps) Respond(ctx *Context) {
	if !d.Sender.Send(ctx.CreateSimpleResponse()) {
		d.Log().Warn("response dropped", map[string]any{
			"endpoint": ctx.Endpoint.String(),
			"uuid":     ctx.UUID,
		})
	}
}

// RespondStatus sets status and body on ctx and sends it.
func (d Deps) RespondStatus(ctx *Context, status types.Status, body any) {
	ctx.SetResponseStatus(status)
	ctx.SetResponseBody(body)
	d.Respond(ctx)
}
