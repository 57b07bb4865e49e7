// Package ipc implements the desktop serial framing.
//
// A frame is a one byte type marker, a nine digit zero padded decimal
// payload length, and the payload:
//
//	#000000017{"endpoint":1,...}
//
// '#' frames carry a JSON endpoint message, '$' frames carry raw data.
package ipc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Frame size constants.
const (
	// HeaderLength is the size of the type marker plus the length field.
	HeaderLength = 1 + LengthDigits
	// LengthDigits is the width of the decimal length field.
	LengthDigits = 9
	// MaxLength is the largest value the length field can express.
	MaxLength = 999_999_999
	// MaxPayloadSize is the default payload limit (16 MiB).
	MaxPayloadSize = 16 * 1024 * 1024
)

// FrameType is the first byte of a frame.
type FrameType byte

const (
	// FrameMessage marks a JSON endpoint message.
	FrameMessage FrameType = '#'
	// FrameRawData marks an opaque raw data payload.
	FrameRawData FrameType = '$'
)

func (t FrameType) String() string {
	switch t {
	case FrameMessage:
		return "message"
	case FrameRawData:
		return "raw"
	default:
		return fmt.Sprintf("frame(0x%02x)", byte(t))
	}
}

// Valid reports whether t is a known frame type marker.
func (t FrameType) Valid() bool {
	return t == FrameMessage || t == FrameRawData
}

// FrameErrorKind classifies framing errors.
type FrameErrorKind int

const (
	// FrameErrorNoHeader indicates bytes arrived with no type marker and were dropped.
	FrameErrorNoHeader FrameErrorKind = iota
	// FrameErrorDamagedHeader indicates an unparsable or zero length field.
	FrameErrorDamagedHeader
	// FrameErrorTooLarge indicates a length above the payload limit.
	FrameErrorTooLarge
	// FrameErrorTimeout indicates partial state discarded after inactivity.
	FrameErrorTimeout
	// FrameErrorPartial indicates a stream that ended inside a frame.
	FrameErrorPartial
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorNoHeader:
		return "no_header"
	case FrameErrorDamagedHeader:
		return "damaged_header"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorTimeout:
		return "timeout"
	case FrameErrorPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// FrameError represents a framing error. Bytes covered by it were discarded.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream cannot continue.
// Only a truncated stream is fatal; every other kind resynchronises on the
// next type marker.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// KindOf returns the frame error kind of err, and false if err is not a FrameError.
func KindOf(err error) (FrameErrorKind, bool) {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.Kind, true
	}
	return 0, false
}

// EncodeFrame builds a complete frame. The payload must be non-empty and
// within MaxPayloadSize.
func EncodeFrame(t FrameType, payload []byte) ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid frame type %s", t)
	}
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	if len(payload) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	frame := make([]byte, 0, HeaderLength+len(payload))
	frame = append(frame, byte(t))
	frame = fmt.Appendf(frame, "%09d", len(payload))
	frame = append(frame, payload...)
	return frame, nil
}

// EncodeMessage builds a '#' frame around a JSON payload.
// It panics on an empty or oversized payload; responses are produced
// internally and never hit either case.
func EncodeMessage(payload []byte) []byte {
	frame, err := EncodeFrame(FrameMessage, payload)
	if err != nil {
		panic(fmt.Sprintf("ipc: encode message: %v", err))
	}
	return frame
}

// ParseHeader decodes a 10 byte header with the default payload limit.
func ParseHeader(header []byte) (FrameType, int, error) {
	return parseHeader(header, MaxPayloadSize)
}

func parseHeader(header []byte, limit int) (FrameType, int, error) {
	if len(header) != HeaderLength {
		return 0, 0, &FrameError{
			Kind: FrameErrorDamagedHeader,
			Msg:  fmt.Sprintf("header length %d, want %d", len(header), HeaderLength),
		}
	}
	t := FrameType(header[0])
	if !t.Valid() {
		return 0, 0, &FrameError{
			Kind: FrameErrorDamagedHeader,
			Msg:  fmt.Sprintf("unknown frame type 0x%02x", header[0]),
		}
	}
	digits := header[1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, 0, &FrameError{
				Kind: FrameErrorDamagedHeader,
				Msg:  fmt.Sprintf("non-digit in length field %q", digits),
			}
		}
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, 0, &FrameError{Kind: FrameErrorDamagedHeader, Msg: "invalid length field", Err: err}
	}
	if n == 0 {
		return 0, 0, &FrameError{Kind: FrameErrorDamagedHeader, Msg: "zero payload length"}
	}
	if n > limit {
		return 0, 0, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", n, limit),
		}
	}
	return t, n, nil
}

// FrameDecoder reads frames from a blocking stream. It is the host side
// counterpart of Parser: the CLI uses it to read device responses.
type FrameDecoder struct {
	reader *bufio.Reader
	limit  int
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: bufio.NewReader(r), limit: MaxPayloadSize}
}

// ReadFrame reads a single frame from the stream. Bytes before the next type
// marker are skipped.
//
// Errors:
//   - io.EOF: stream ended cleanly between frames
//   - *FrameError with Kind=FrameErrorPartial: stream ended inside a frame (fatal)
//   - *FrameError with Kind=FrameErrorDamagedHeader or FrameErrorTooLarge
func (d *FrameDecoder) ReadFrame() (FrameType, []byte, error) {
	for {
		b, err := d.reader.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		if FrameType(b).Valid() {
			if err := d.reader.UnreadByte(); err != nil {
				return 0, nil, err
			}
			break
		}
	}

	var header [HeaderLength]byte
	if _, err := io.ReadFull(d.reader, header[:]); err != nil {
		return 0, nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read header", Err: err}
	}
	t, n, err := parseHeader(header[:], d.limit)
	if err != nil {
		return 0, nil, err
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return 0, nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read payload", Err: err}
	}
	return t, payload, nil
}

// indexFrameStart returns the offset of the first type marker in data, or -1.
func indexFrameStart(data []byte) int {
	return bytes.IndexAny(data, "#$")
}
