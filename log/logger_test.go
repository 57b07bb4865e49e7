package log

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/pithecene-io/desklink/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_SessionFields(t *testing.T) {
	var buf bytes.Buffer
	session := &types.SessionMeta{SessionID: "sess-1", DeviceSerial: "SN123"}
	logger := NewLoggerWithWriter(session, &buf)

	logger.Info("frame received", map[string]any{"length": 12})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["message"] != "frame received" {
		t.Errorf("message = %v, want %q", e["message"], "frame received")
	}
	if e["level"] != "info" {
		t.Errorf("level = %v, want info", e["level"])
	}
	if e["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", e["session_id"])
	}
	if e["device_serial"] != "SN123" {
		t.Errorf("device_serial = %v, want SN123", e["device_serial"])
	}
	fields, ok := e["fields"].(map[string]any)
	if !ok {
		t.Fatalf("fields missing or wrong type: %v", e["fields"])
	}
	if fields["length"] != float64(12) {
		t.Errorf("fields.length = %v, want 12", fields["length"])
	}
}

func TestLogger_NilSession(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(nil, &buf)
	logger.Warn("no session", nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if _, ok := entries[0]["session_id"]; ok {
		t.Error("session_id should be absent without a session")
	}
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(nil, &buf).Named("parser")
	logger.Debug("reset", nil)

	entries := decodeLines(t, &buf)
	if entries[0]["component"] != "parser" {
		t.Errorf("component = %v, want parser", entries[0]["component"])
	}
}

func TestLogger_WithOutput(t *testing.T) {
	var first, second bytes.Buffer
	session := &types.SessionMeta{SessionID: "s", DeviceSerial: "SN1"}
	logger := NewLoggerWithWriter(session, &first).
		Named("transport").
		With(map[string]any{"port": "/dev/ttyACM0"})
	redirected := logger.WithOutput(&second)

	redirected.Error("boom", nil)

	if first.Len() != 0 {
		t.Errorf("original writer received output: %q", first.String())
	}
	entries := decodeLines(t, &second)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e["session_id"] != "s" {
		t.Errorf("session_id = %v, want s", e["session_id"])
	}
	if e["device_serial"] != "SN1" {
		t.Errorf("device_serial = %v, want SN1", e["device_serial"])
	}
	if e["port"] != "/dev/ttyACM0" {
		t.Errorf("port = %v, want /dev/ttyACM0", e["port"])
	}
	if e["component"] != "transport" {
		t.Errorf("component = %v, want transport", e["component"])
	}
}

func TestLogger_WithOutputThenNamed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&types.SessionMeta{SessionID: "s"}, io.Discard).
		WithOutput(&buf).
		Named("update")

	logger.Info("state", nil)

	entries := decodeLines(t, &buf)
	if entries[0]["session_id"] != "s" || entries[0]["component"] != "update" {
		t.Errorf("entry = %v", entries[0])
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := Nop()
	if OrNop(l) != l {
		t.Error("OrNop should return a non-nil logger unchanged")
	}
	// Must not panic.
	OrNop(nil).Info("discarded", map[string]any{"k": "v"})
}

func TestSugar(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter(nil, &buf).Sugar().With("port", "/dev/ttyACM0").Infof("opened %d", 1)

	entries := decodeLines(t, &buf)
	if entries[0]["message"] != "opened 1" {
		t.Errorf("message = %v, want %q", entries[0]["message"], "opened 1")
	}
	if entries[0]["port"] != "/dev/ttyACM0" {
		t.Errorf("port = %v, want /dev/ttyACM0", entries[0]["port"])
	}
}
