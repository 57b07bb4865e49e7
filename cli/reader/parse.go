package reader

import (
	"encoding/json"
	"errors"
)

// ParseMetricsRecord converts a journal metrics record to a MetricsSnapshot.
// Numbers may be int64 (written in process) or float64 (read back from JSONL).
func ParseMetricsRecord(record map[string]any) (*MetricsSnapshot, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	snap := &MetricsSnapshot{
		Ts: toString(record["ts"]),

		FramesReceived: toInt64(record["frames_received"]),
		RawFrames:      toInt64(record["raw_frames"]),
		FramesDropped:  toInt64(record["frames_dropped"]),

		DecodeErrors:      toInt64(record["decode_errors"]),
		Dispatched:        toInt64(record["dispatched"]),
		Blocked:           toInt64(record["blocked"]),
		UnhandledEndpoint: toInt64(record["unhandled_endpoint"]),
		Responses:         toInt64(record["responses"]),

		QueriesSubmitted: toInt64(record["queries_submitted"]),
		QueriesCompleted: toInt64(record["queries_completed"]),
		QueriesRejected:  toInt64(record["queries_rejected"]),

		UpdatesStarted:   toInt64(record["updates_started"]),
		UpdatesSucceeded: toInt64(record["updates_succeeded"]),
		UpdatesFailed:    toInt64(record["updates_failed"]),
		UpdatesAborted:   toInt64(record["updates_aborted"]),

		Transport:      toString(record["transport"]),
		SettingsStore:  toString(record["settings_store"]),
		JournalBackend: toString(record["journal_backend"]),
		SessionID:      toString(record["session_id"]),
		Device:         toString(record["device"]),
	}

	if v, ok := record["dropped_by"]; ok && v != nil {
		snap.DroppedBy = parseDroppedBy(v)
	}

	// The write path always sets these.
	if snap.Ts == "" {
		return nil, errors.New("metrics record missing required field: ts")
	}
	if snap.SessionID == "" {
		return nil, errors.New("metrics record missing required field: session_id")
	}
	if snap.Transport == "" {
		return nil, errors.New("metrics record missing required field: transport")
	}
	return snap, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func parseDroppedBy(v any) map[string]int64 {
	switch m := v.(type) {
	case map[string]int64:
		return m
	case map[string]any:
		out := make(map[string]int64, len(m))
		for k, val := range m {
			out[k] = toInt64(val)
		}
		return out
	default:
		return nil
	}
}
