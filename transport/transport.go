// Package transport carries frames between the desktop tool and the
// service.
//
// A Transport delivers received byte chunks, in arrival order and without
// any framing, to its receive handler on a single goroutine, and queues
// outgoing frames for a writer goroutine. Link changes are reported to the
// status handler.
package transport

import (
	"context"
	"fmt"
)

// Status is a link status event.
type Status int

// Link status events.
const (
	Connected Status = iota
	Configured
	Disconnected
	DataReceived
	Reset
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case Configured:
		return "configured"
	case Disconnected:
		return "disconnected"
	case DataReceived:
		return "data_received"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ReceiveHandler consumes one received chunk. The slice is only valid for
// the duration of the call.
type ReceiveHandler func(data []byte)

// StatusHandler observes link status events.
type StatusHandler func(s Status)

// Transport is a bidirectional byte link.
type Transport interface {
	// Start begins reading. It returns once the link is up; reading goes
	// on until ctx is canceled, the peer hangs up or Close is called.
	Start(ctx context.Context) error
	// Send queues a complete frame. It never blocks and reports false when
	// the frame was dropped.
	Send(frame []byte) bool
	SetReceiveHandler(h ReceiveHandler)
	SetStatusHandler(h StatusHandler)
	// Done is closed when the read loop has exited.
	Done() <-chan struct{}
	Close() error
}
