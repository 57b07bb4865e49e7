// Package db defines the asynchronous persistence queries used by the
// endpoint handlers.
//
// A Query is a request object carrying exactly one Listener. The Service
// executes queries on a single worker goroutine and hands each Result back
// to the originating query's listener through Handle. The set of query kinds
// is closed: Query is sealed by an unexported method.
package db

import "fmt"

// Type classifies a query by the kind of change it makes.
type Type int

// Query types.
const (
	TypeCreate Type = iota
	TypeRead
	TypeUpdate
	TypeDelete
)

func (t Type) String() string {
	switch t {
	case TypeCreate:
		return "create"
	case TypeRead:
		return "read"
	case TypeUpdate:
		return "update"
	case TypeDelete:
		return "delete"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Listener receives the result of a query. The returned bool reports whether
// the result was handled.
type Listener interface {
	HandleQueryResult(result Result) bool
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(result Result) bool

// HandleQueryResult implements Listener.
func (f ListenerFunc) HandleQueryResult(result Result) bool {
	return f(result)
}

// Query is a persistence request. Every query kind embeds Base.
type Query interface {
	QueryType() Type
	Listener() Listener
	SetListener(l Listener)
	// Name is a short stable name used in logs.
	Name() string
	sealed()
}

// Base carries the query type and its listener. The listener is set before
// the query is submitted and read by the worker afterwards.
type Base struct {
	typ      Type
	listener Listener
}

func newBase(t Type) Base {
	return Base{typ: t}
}

// QueryType returns the query type.
func (b *Base) QueryType() Type { return b.typ }

// Listener returns the attached listener, or nil.
func (b *Base) Listener() Listener {
	return b.listener
}

// SetListener attaches l. A query has at most one listener; attaching a
// second one panics.
func (b *Base) SetListener(l Listener) {
	if b.listener != nil {
		panic("db: query listener already set")
	}
	b.listener = l
}

func (b *Base) sealed() {}

// Result is the outcome of a query.
type Result interface {
	// Request returns the query this result answers.
	Request() Query
	sealedResult()
}

// ResultBase links a result to its query and an optional record id.
type ResultBase struct {
	query    Query
	recordID uint32
	hasID    bool
}

// Request returns the originating query.
func (r *ResultBase) Request() Query { return r.query }

// RecordID returns the record id the query produced, if any.
func (r *ResultBase) RecordID() (uint32, bool) { return r.recordID, r.hasID }

// SetRecordID records the id of the affected record.
func (r *ResultBase) SetRecordID(id uint32) {
	r.recordID = id
	r.hasID = true
}

// SetRequest links the result to q. Executors call it before returning.
func (r *ResultBase) SetRequest(q Query) { r.query = q }

func (r *ResultBase) sealedResult() {}

// Handle delivers result to the listener of the query that produced it.
// The listener runs exactly once per result. A result whose query has no
// listener is a programming error and panics.
func Handle(result Result) bool {
	if result == nil {
		panic("db: nil result")
	}
	q := result.Request()
	if q == nil {
		panic(fmt.Sprintf("db: %T has no originating query", result))
	}
	l := q.Listener()
	if l == nil {
		panic(fmt.Sprintf("db: query %s has no listener", q.Name()))
	}
	return l.HandleQueryResult(result)
}
