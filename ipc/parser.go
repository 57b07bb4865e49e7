package ipc

import (
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/metrics"
)

// DefaultTimeout is the inactivity window after which partial state is dropped.
const DefaultTimeout = 500 * time.Millisecond

// State is the parser state.
type State int

const (
	// StateNoMessage is the initial and terminal state.
	StateNoMessage State = iota
	// StatePartialHeader holds fewer than HeaderLength header bytes.
	StatePartialHeader
	// StatePartialPayload holds a parsed header and part of its payload.
	StatePartialPayload
)

func (s State) String() string {
	switch s {
	case StateNoMessage:
		return "no_message"
	case StatePartialHeader:
		return "partial_header"
	case StatePartialPayload:
		return "partial_payload"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handler receives complete frame payloads.
type Handler interface {
	HandleMessage(payload []byte)
	HandleRawData(payload []byte)
}

// Handlers adapts two functions to Handler. Nil fields drop the payload.
type Handlers struct {
	Message func(payload []byte)
	Raw     func(payload []byte)
}

// HandleMessage implements Handler.
func (h Handlers) HandleMessage(payload []byte) {
	if h.Message != nil {
		h.Message(payload)
	}
}

// HandleRawData implements Handler.
func (h Handlers) HandleRawData(payload []byte) {
	if h.Raw != nil {
		h.Raw(payload)
	}
}

// Option configures a Parser.
type Option func(*Parser)

// WithTimeout sets the inactivity timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(p *Parser) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxPayloadSize sets the payload limit. Values outside (0, MaxLength]
// keep the default.
func WithMaxPayloadSize(n int) Option {
	return func(p *Parser) {
		if n > 0 && n <= MaxLength {
			p.maxPayload = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Parser) {
		p.logger = log.OrNop(l).Named("parser")
	}
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(p *Parser) {
		p.collector = c
	}
}

type frame struct {
	typ     FrameType
	payload []byte
}

// Parser reassembles frames from arbitrarily fragmented chunks.
//
// ProcessMessage is called from a single reader goroutine. The inactivity
// timer fires on its own goroutine and synchronises through mu. Complete
// payloads are handed to the Handler after mu is released, in arrival order.
type Parser struct {
	handler    Handler
	timeout    time.Duration
	maxPayload int
	logger     *log.Logger
	collector  *metrics.Collector

	mu        sync.Mutex
	state     State
	header    []byte
	payload   []byte
	frameType FrameType
	length    int
	timer     *time.Timer
	timerGen  uint64
	closed    bool
}

// NewParser creates a parser delivering frames to handler.
func NewParser(handler Handler, opts ...Option) *Parser {
	p := &Parser{
		handler:    handler,
		timeout:    DefaultTimeout,
		maxPayload: MaxPayloadSize,
		logger:     log.Nop(),
		header:     make([]byte, 0, HeaderLength),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessMessage consumes one chunk of bytes. It never blocks on I/O.
// The returned *FrameError reports the first discard in this chunk; frames
// completed in the same chunk are still delivered.
func (p *Parser) ProcessMessage(data []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	frames, err := p.consume(data)
	if p.state == StateNoMessage {
		p.stopTimerLocked()
	} else {
		p.armTimerLocked()
	}
	p.mu.Unlock()

	for _, f := range frames {
		p.collector.IncFrameReceived(f.typ == FrameRawData)
		if f.typ == FrameRawData {
			p.handler.HandleRawData(f.payload)
		} else {
			p.handler.HandleMessage(f.payload)
		}
	}
	return err
}

// consume runs the state machine over data. Caller holds mu.
func (p *Parser) consume(data []byte) ([]frame, error) {
	var (
		frames   []frame
		firstErr error
	)
	fail := func(err error) {
		p.recordDrop(err)
		if firstErr == nil {
			firstErr = err
		}
	}

	for len(data) > 0 {
		switch p.state {
		case StateNoMessage:
			start := indexFrameStart(data)
			if start < 0 {
				fail(&FrameError{
					Kind: FrameErrorNoHeader,
					Msg:  fmt.Sprintf("no frame marker in %d bytes", len(data)),
				})
				data = nil
				continue
			}
			data = data[start:]
			if len(data) < HeaderLength {
				p.header = append(p.header[:0], data...)
				p.state = StatePartialHeader
				data = nil
				continue
			}
			if err := p.startFrame(data[:HeaderLength]); err != nil {
				fail(err)
				data = nil
				continue
			}
			data = p.consumePayload(data[HeaderLength:], &frames)

		case StatePartialHeader:
			need := HeaderLength - len(p.header)
			if len(data) < need {
				p.header = append(p.header, data...)
				data = nil
				continue
			}
			p.header = append(p.header, data[:need]...)
			data = data[need:]
			if err := p.startFrame(p.header); err != nil {
				p.resetLocked()
				fail(err)
				data = nil
				continue
			}
			data = p.consumePayload(data, &frames)

		case StatePartialPayload:
			data = p.consumePayload(data, &frames)
		}
	}
	return frames, firstErr
}

// startFrame parses header and records the frame being assembled.
func (p *Parser) startFrame(header []byte) error {
	t, n, err := parseHeader(header, p.maxPayload)
	if err != nil {
		return err
	}
	p.frameType = t
	p.length = n
	p.header = p.header[:0]
	p.payload = make([]byte, 0, n)
	return nil
}

// consumePayload appends up to the remaining payload length and emits the
// frame when complete. It returns the bytes following the payload.
func (p *Parser) consumePayload(data []byte, frames *[]frame) []byte {
	need := p.length - len(p.payload)
	if len(data) < need {
		p.payload = append(p.payload, data...)
		p.state = StatePartialPayload
		return nil
	}
	p.payload = append(p.payload, data[:need]...)
	*frames = append(*frames, frame{typ: p.frameType, payload: p.payload})
	p.resetLocked()
	return data[need:]
}

func (p *Parser) recordDrop(err error) {
	kind, _ := KindOf(err)
	p.collector.IncFrameDropped(kind.String())
	p.logger.Debug("frame bytes discarded", map[string]any{
		"reason": kind.String(),
		"error":  err.Error(),
	})
}

// resetLocked returns to StateNoMessage, discarding partial state.
func (p *Parser) resetLocked() {
	p.state = StateNoMessage
	p.header = p.header[:0]
	p.payload = nil
	p.frameType = 0
	p.length = 0
}

func (p *Parser) armTimerLocked() {
	p.stopTimerLocked()
	gen := p.timerGen
	p.timer = time.AfterFunc(p.timeout, func() { p.onTimeout(gen) })
}

func (p *Parser) stopTimerLocked() {
	p.timerGen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// onTimeout discards partial state if no bytes arrived since the timer was armed.
func (p *Parser) onTimeout(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || gen != p.timerGen || p.state == StateNoMessage {
		return
	}
	err := &FrameError{
		Kind: FrameErrorTimeout,
		Msg:  fmt.Sprintf("inactivity in state %s after %s", p.state, p.timeout),
	}
	p.recordDrop(err)
	p.resetLocked()
	p.timer = nil
}

// State returns the current parser state.
func (p *Parser) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reset discards partial state and stops the timer.
func (p *Parser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
	p.resetLocked()
}

// Close stops the timer. Later calls to ProcessMessage are ignored.
func (p *Parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
	p.resetLocked()
	p.closed = true
}
