// Package log provides structured logging with desktop session context.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for the protocol path (frames, dispatch, queries)
//   - SugaredLogger: printf-style logging for CLI surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/desklink/types"
)

// Logger provides structured logging with session context.
// Entries carry session_id and device_serial when a session is attached.
type Logger struct {
	zap *zap.Logger
	// fields are the bound context fields, re-applied by WithOutput.
	fields []zap.Field
}

// SugaredLogger provides printf-style logging for CLI and debug surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		NameKey:     "component",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeName:  zapcore.FullNameEncoder,
	}
}

func newCore(w io.Writer, level zapcore.Level) zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		level,
	)
}

// NewLogger creates a new logger with session context.
// Output defaults to os.Stderr. A nil session yields a logger without
// session fields.
func NewLogger(session *types.SessionMeta) *Logger {
	return NewLoggerWithWriter(session, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w.
func NewLoggerWithWriter(session *types.SessionMeta, w io.Writer) *Logger {
	var contextFields []zap.Field
	if session != nil {
		contextFields = append(contextFields, zap.String("session_id", session.SessionID))
		if session.DeviceSerial != "" {
			contextFields = append(contextFields, zap.String("device_serial", session.DeviceSerial))
		}
	}
	return &Logger{zap: zap.New(newCore(w, zapcore.DebugLevel)).With(contextFields...), fields: contextFields}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// OrNop returns l, or a no-op logger when l is nil.
// Components call this on their optional logger dependency.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// WithOutput returns a new logger with a different output writer. Session
// and With fields carry over.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := newCore(w, zapcore.DebugLevel).With(l.fields)
	return &Logger{
		zap:    l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core })),
		fields: l.fields,
	}
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{zap: l.zap.Named(component), fields: l.fields}
}

// With returns a child logger carrying additional fixed fields.
func (l *Logger) With(fields map[string]any) *Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	all := append(append([]zap.Field(nil), l.fields...), zf...)
	return &Logger{zap: l.zap.With(zf...), fields: all}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
