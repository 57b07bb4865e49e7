// Package endpointtest provides helpers for endpoint handler tests.
package endpointtest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/ipc"
	"github.com/pithecene-io/desklink/types"
)

// Frame is a decoded response frame.
type Frame struct {
	Endpoint types.Endpoint  `json:"endpoint"`
	Status   types.Status    `json:"status"`
	UUID     string          `json:"uuid"`
	Body     json.RawMessage `json:"body"`
	NextPage *endpoint.Page  `json:"nextPage"`
}

// DecodeBody unmarshals the frame body into v.
func (f Frame) DecodeBody(t testing.TB, v any) {
	t.Helper()
	if err := json.Unmarshal(f.Body, v); err != nil {
		t.Fatalf("decode body %s: %v", f.Body, err)
	}
}

// Recorder is an endpoint.Sender that keeps every frame.
type Recorder struct {
	mu     sync.Mutex
	frames [][]byte
	notify chan struct{}
}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Send implements endpoint.Sender.
func (r *Recorder) Send(frame []byte) bool {
	r.mu.Lock()
	r.frames = append(r.frames, append([]byte(nil), frame...))
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return true
}

// Count returns the number of frames sent so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Wait blocks until at least n frames were sent and returns them decoded.
func (r *Recorder) Wait(t testing.TB, n int) []Frame {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for r.Count() < n {
		select {
		case <-r.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("got %d frames, want %d", r.Count(), n)
		}
	}
	return r.Frames(t)
}

// Frames decodes every frame sent so far.
func (r *Recorder) Frames(t testing.TB) []Frame {
	t.Helper()
	r.mu.Lock()
	raw := append([][]byte(nil), r.frames...)
	r.mu.Unlock()

	out := make([]Frame, 0, len(raw))
	for _, b := range raw {
		typ, n, err := ipc.ParseHeader(b[:ipc.HeaderLength])
		if err != nil {
			t.Fatalf("bad frame header %q: %v", b[:ipc.HeaderLength], err)
		}
		if typ != ipc.FrameMessage || n != len(b)-ipc.HeaderLength {
			t.Fatalf("bad frame %q", b)
		}
		var f Frame
		if err := json.Unmarshal(b[ipc.HeaderLength:], &f); err != nil {
			t.Fatalf("bad frame payload %q: %v", b[ipc.HeaderLength:], err)
		}
		out = append(out, f)
	}
	return out
}

// Deps wires a Recorder and a started query service over exec into
// endpoint.Deps. The service is closed when the test ends.
func Deps(t testing.TB, exec db.Executor) (endpoint.Deps, *Recorder) {
	t.Helper()
	rec := NewRecorder()
	svc := db.NewService(exec, db.ServiceConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		svc.Close()
		cancel()
	})
	return endpoint.Deps{Sender: rec, DB: svc}, rec
}

// Request builds a context for endpoint e with a JSON body.
func Request(t testing.TB, e types.Endpoint, m types.Method, uuid int64, body any) *endpoint.Context {
	t.Helper()
	var raw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		raw = b
	}
	return endpoint.NewContext(endpoint.Request{Endpoint: e, Method: m, UUID: uuid, Body: raw})
}
