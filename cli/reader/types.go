package reader

import "time"

// HistoryEntry is one update run from the device history.
type HistoryEntry struct {
	Started     time.Time `json:"started"`
	FromVersion string    `json:"from_version"`
	ToVersion   string    `json:"to_version"`
	File        string    `json:"update_file,omitempty"`
	State       string    `json:"state"`
	Result      string    `json:"result"`
	Error       string    `json:"error,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// Run results.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// HistoryStats summarizes the update history.
type HistoryStats struct {
	Total         int        `json:"total"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	Aborted       int        `json:"aborted"`
	LastVersion   string     `json:"last_version,omitempty"`
	LastStartedAt *time.Time `json:"last_started_at"`
}

// PackageItem is an update package waiting in the updates directory.
type PackageItem struct {
	File        string `json:"file"`
	Size        int64  `json:"size"`
	Version     string `json:"version"`
	GitRevision string `json:"git_revision,omitempty"`
	Installable bool   `json:"installable"`
	// Next marks the package an update check would pick.
	Next bool `json:"next"`
}

// JournalEntry is one journal record. Fields holds everything except the
// timestamp and kind.
type JournalEntry struct {
	Ts     string         `json:"ts"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// MetricsSnapshot is the session metrics record journaled when a serve
// session ends.
type MetricsSnapshot struct {
	Ts string `json:"ts"`

	FramesReceived int64            `json:"frames_received"`
	RawFrames      int64            `json:"raw_frames"`
	FramesDropped  int64            `json:"frames_dropped"`
	DroppedBy      map[string]int64 `json:"dropped_by,omitempty"`

	DecodeErrors      int64 `json:"decode_errors"`
	Dispatched        int64 `json:"dispatched"`
	Blocked           int64 `json:"blocked"`
	UnhandledEndpoint int64 `json:"unhandled_endpoint"`
	Responses         int64 `json:"responses"`

	QueriesSubmitted int64 `json:"queries_submitted"`
	QueriesCompleted int64 `json:"queries_completed"`
	QueriesRejected  int64 `json:"queries_rejected"`

	UpdatesStarted   int64 `json:"updates_started"`
	UpdatesSucceeded int64 `json:"updates_succeeded"`
	UpdatesFailed    int64 `json:"updates_failed"`
	UpdatesAborted   int64 `json:"updates_aborted"`

	Transport      string `json:"transport"`
	SettingsStore  string `json:"settings_store"`
	JournalBackend string `json:"journal_backend"`
	SessionID      string `json:"session_id"`
	Device         string `json:"device"`
}
