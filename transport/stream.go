package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/metrics"
)

// Stream defaults.
const (
	DefaultReadBuffer = 4096
	DefaultSendQueue  = 64
)

// DrainTimeout bounds how long Close waits for queued frames.
var DrainTimeout = time.Second

// StreamConfig configures a Stream.
type StreamConfig struct {
	// ReadBuffer is the read chunk size (default 4096).
	ReadBuffer int
	// SendQueue is the outgoing frame queue depth (default 64).
	SendQueue int
	Logger    *log.Logger
	Collector *metrics.Collector
}

// Stream is a Transport over any io.ReadWriteCloser: a serial port, a pipe
// or a network connection. The connection counts as connected and
// configured once Start returns.
type Stream struct {
	rwc    io.ReadWriteCloser
	cfg    StreamConfig
	logger *log.Logger

	mu       sync.RWMutex
	onRecv   ReceiveHandler
	onStatus StatusHandler

	queue     chan []byte
	done      chan struct{}
	writeDone chan struct{}
	startOnce sync.Once
	started   atomic.Bool
	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

var _ Transport = (*Stream)(nil)

// NewStream wraps rwc.
func NewStream(rwc io.ReadWriteCloser, cfg StreamConfig) *Stream {
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = DefaultReadBuffer
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = DefaultSendQueue
	}
	return &Stream{
		rwc:       rwc,
		cfg:       cfg,
		logger:    log.OrNop(cfg.Logger).Named("transport"),
		queue:     make(chan []byte, cfg.SendQueue),
		done:      make(chan struct{}),
		writeDone: make(chan struct{}),
		closed:    make(chan struct{}),
	}
}

// SetReceiveHandler implements Transport.
func (s *Stream) SetReceiveHandler(h ReceiveHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRecv = h
}

// SetStatusHandler implements Transport.
func (s *Stream) SetStatusHandler(h StatusHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = h
}

func (s *Stream) status(st Status) {
	s.mu.RLock()
	h := s.onStatus
	s.mu.RUnlock()
	if h != nil {
		h(st)
	}
}

// Start implements Transport. A second call is a no-op.
func (s *Stream) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.started.Store(true)
		s.status(Connected)
		s.status(Configured)
		go s.writeLoop()
		go s.readLoop(ctx)
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-s.closed:
			}
		}()
	})
	return nil
}

func (s *Stream) readLoop(ctx context.Context) {
	defer close(s.done)
	defer s.status(Disconnected)

	buf := make([]byte, s.cfg.ReadBuffer)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := s.rwc.Read(buf)
		if n > 0 {
			s.mu.RLock()
			h := s.onRecv
			s.mu.RUnlock()
			if h != nil {
				h(buf[:n])
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !s.isClosed() {
				s.logger.Warn("read failed", map[string]any{"error": err.Error()})
			}
			return
		}
	}
}

func (s *Stream) writeLoop() {
	defer close(s.writeDone)
	for {
		select {
		case frame := <-s.queue:
			if _, err := s.rwc.Write(frame); err != nil {
				s.cfg.Collector.IncFrameDropped("write_error")
				s.logger.Warn("write failed", map[string]any{"error": err.Error(), "length": len(frame)})
			}
		case <-s.closed:
			s.drain()
			return
		}
	}
}

// drain writes what is already queued, best effort.
func (s *Stream) drain() {
	for {
		select {
		case frame := <-s.queue:
			if _, err := s.rwc.Write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send implements Transport.
func (s *Stream) Send(frame []byte) bool {
	if s.isClosed() {
		return false
	}
	select {
	case s.queue <- frame:
		return true
	default:
		s.cfg.Collector.IncFrameDropped("send_queue_full")
		return false
	}
}

func (s *Stream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Done implements Transport.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Close stops the writer after flushing queued frames, waiting at most
// DrainTimeout, and closes the underlying connection, which ends the read
// loop.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.startOnce.Do(func() {})
		if s.started.Load() {
			select {
			case <-s.writeDone:
			case <-time.After(DrainTimeout):
				s.logger.Warn("send queue not drained before close", nil)
			}
		}
		s.closeErr = s.rwc.Close()
	})
	return s.closeErr
}
