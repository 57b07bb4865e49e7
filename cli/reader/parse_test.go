package reader

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseMetricsRecord(t *testing.T) {
	record := map[string]any{
		"ts":                 "2026-03-01T15:00:00Z",
		"frames_received":    float64(12),
		"raw_frames":         float64(1),
		"frames_dropped":     float64(2),
		"dropped_by":         map[string]any{"timeout": float64(2)},
		"decode_errors":      int64(1),
		"dispatched":         9,
		"blocked":            json.Number("3"),
		"responses":          float64(9),
		"queries_submitted":  float64(4),
		"updates_started":    float64(1),
		"updates_succeeded":  float64(1),
		"transport":          "serial",
		"settings_store":     "redis",
		"journal_backend":    "s3",
		"session_id":         "sess-1",
		"device":             "SN1",
		"unhandled_endpoint": nil,
	}
	got, err := ParseMetricsRecord(record)
	if err != nil {
		t.Fatalf("ParseMetricsRecord: %v", err)
	}
	if got.FramesReceived != 12 || got.RawFrames != 1 || got.FramesDropped != 2 {
		t.Errorf("framing = %+v", got)
	}
	if got.DecodeErrors != 1 || got.Dispatched != 9 || got.Blocked != 3 || got.UnhandledEndpoint != 0 {
		t.Errorf("dispatch = %+v", got)
	}
	if got.DroppedBy["timeout"] != 2 {
		t.Errorf("DroppedBy = %v", got.DroppedBy)
	}
	if got.SettingsStore != "redis" || got.JournalBackend != "s3" || got.Device != "SN1" {
		t.Errorf("dimensions = %+v", got)
	}
}

func TestParseMetricsRecord_DroppedByInt64(t *testing.T) {
	got, err := ParseMetricsRecord(map[string]any{
		"ts": "x", "session_id": "s", "transport": "stdio",
		"dropped_by": map[string]int64{"overflow": 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.DroppedBy["overflow"] != 4 {
		t.Errorf("DroppedBy = %v", got.DroppedBy)
	}
}

func TestParseMetricsRecord_Errors(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{"nil", nil, "nil record"},
		{"no ts", map[string]any{"session_id": "s", "transport": "serial"}, "ts"},
		{"no session", map[string]any{"ts": "x", "transport": "serial"}, "session_id"},
		{"no transport", map[string]any{"ts": "x", "session_id": "s"}, "transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMetricsRecord(tt.record)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
