package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/desklink/metrics"
)

// Report is the structured JSON report written by serve --report.
type Report struct {
	SessionID  string        `json:"session_id"`
	Device     string        `json:"device"`
	Outcome    OutcomeStatus `json:"outcome"`
	Message    string        `json:"message"`
	ExitCode   int           `json:"exit_code"`
	DurationMs int64         `json:"duration_ms"`

	Frames  *ReportFrames  `json:"frames"`
	Queries *ReportQueries `json:"queries"`
	Updates *ReportUpdates `json:"updates"`
	Metrics *ReportMetrics `json:"metrics"`
}

// ReportFrames holds framing and dispatch counters.
type ReportFrames struct {
	Received     int64            `json:"received"`
	Raw          int64            `json:"raw"`
	Dropped      int64            `json:"dropped"`
	DroppedBy    map[string]int64 `json:"dropped_by,omitempty"`
	DecodeErrors int64            `json:"decode_errors"`
	Dispatched   int64            `json:"dispatched"`
	Blocked      int64            `json:"blocked"`
	Unhandled    int64            `json:"unhandled"`
	Responses    int64            `json:"responses"`
}

// ReportQueries holds query service counters.
type ReportQueries struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
}

// ReportUpdates holds update engine counters.
type ReportUpdates struct {
	Started   int64 `json:"started"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Aborted   int64 `json:"aborted"`
}

// ReportMetrics holds the session dimensions and journal counters.
type ReportMetrics struct {
	Transport           string `json:"transport"`
	SettingsStore       string `json:"settings_store"`
	JournalBackend      string `json:"journal_backend"`
	JournalWriteSuccess int64  `json:"journal_write_success"`
	JournalWriteFailure int64  `json:"journal_write_failure"`
}

// BuildReport composes a Report from a session result.
func BuildReport(result *Result) *Report {
	snap := result.Metrics
	report := &Report{
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		ExitCode:   result.Outcome.ExitCode(),
		DurationMs: result.Duration.Milliseconds(),
		Frames:     reportFrames(snap),
		Queries: &ReportQueries{
			Submitted: snap.QueriesSubmitted,
			Completed: snap.QueriesCompleted,
			Rejected:  snap.QueriesRejected,
		},
		Updates: &ReportUpdates{
			Started:   snap.UpdatesStarted,
			Succeeded: snap.UpdatesSucceeded,
			Failed:    snap.UpdatesFailed,
			Aborted:   snap.UpdatesAborted,
		},
		Metrics: &ReportMetrics{
			Transport:           snap.Transport,
			SettingsStore:       snap.SettingsStore,
			JournalBackend:      snap.JournalBackend,
			JournalWriteSuccess: snap.JournalWriteSuccess,
			JournalWriteFailure: snap.JournalWriteFailure,
		},
	}
	if result.Session != nil {
		report.SessionID = result.Session.SessionID
		report.Device = result.Session.DeviceSerial
	}
	return report
}

func reportFrames(snap metrics.Snapshot) *ReportFrames {
	f := &ReportFrames{
		Received:     snap.FramesReceived,
		Raw:          snap.RawFrames,
		Dropped:      snap.FramesDropped,
		DecodeErrors: snap.DecodeErrors,
		Dispatched:   snap.Dispatched,
		Blocked:      snap.Blocked,
		Unhandled:    snap.UnhandledEndpoint,
		Responses:    snap.Responses,
	}
	if len(snap.DroppedBy) > 0 {
		f.DroppedBy = snap.DroppedBy
	}
	return f
}

// WriteReport writes the report as JSON to path. A path of "-" writes to
// stderr.
func WriteReport(report *Report, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		if err := writeReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeReportTo(report *Report, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
