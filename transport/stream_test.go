package transport

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"
)

// duplex is the device side of an in-memory link; the test holds the host
// side ends.
type duplex struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (d *duplex) Close() error {
	for _, c := range d.closers {
		_ = c.Close()
	}
	return nil
}

type link struct {
	dev      *duplex
	toDevice *io.PipeWriter
	fromDev  *io.PipeReader
}

func newLink() *link {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	return &link{
		dev:      &duplex{Reader: inR, Writer: outW, closers: []io.Closer{inR, outW}},
		toDevice: inW,
		fromDev:  outR,
	}
}

type collector struct {
	mu       sync.Mutex
	data     bytes.Buffer
	statuses []Status
}

func (c *collector) recv(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Write(b)
}

func (c *collector) status(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, s)
}

func (c *collector) received() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.String()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStream_ReceiveAndSend(t *testing.T) {
	l := newLink()
	c := &collector{}
	s := NewStream(l.dev, StreamConfig{ReadBuffer: 4})
	s.SetReceiveHandler(c.recv)
	s.SetStatusHandler(c.status)
	if err := s.Start(t.Context()); err != nil {
		t.Fatal(err)
	}

	go func() { _, _ = l.toDevice.Write([]byte("#000000002{}")) }()
	waitFor(t, func() bool { return c.received() == "#000000002{}" })

	if !s.Send([]byte("reply")) {
		t.Fatal("Send dropped")
	}
	buf := make([]byte, 5)
	if _, err := io.ReadFull(l.fromDev, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "reply" {
		t.Errorf("peer read %q", buf)
	}

	_ = l.toDevice.Close()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not exit on EOF")
	}
	_ = s.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	want := []Status{Connected, Configured, Disconnected}
	if len(c.statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", c.statuses, want)
	}
	for i := range want {
		if c.statuses[i] != want[i] {
			t.Errorf("status[%d] = %v, want %v", i, c.statuses[i], want[i])
		}
	}
}

func TestStream_SendQueueFull(t *testing.T) {
	l := newLink()
	s := NewStream(l.dev, StreamConfig{SendQueue: 2})
	// Not started: nothing drains the queue.
	if !s.Send([]byte("a")) || !s.Send([]byte("b")) {
		t.Fatal("queue rejected frames below capacity")
	}
	if s.Send([]byte("c")) {
		t.Error("Send accepted a frame beyond capacity")
	}
	_ = s.Close()
	if s.Send([]byte("d")) {
		t.Error("Send accepted a frame after Close")
	}
}

func TestStream_ContextCancelCloses(t *testing.T) {
	l := newLink()
	s := NewStream(l.dev, StreamConfig{})
	ctx, cancel := contextWithCancel(t)
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not exit on cancel")
	}
}
