// Package metrics provides per-session counters for the desktop protocol path.
//
// The Collector accumulates counters while a session is attached. It is a
// leaf package with no internal dependencies: callers pass drop reasons as
// plain strings so the parser and dispatcher can stay decoupled from it.
package metrics

import "sync"

// Drop reasons recorded by IncFrameDropped.
const (
	DropNoHeader      = "no_header"
	DropDamagedHeader = "damaged_header"
	DropTooLarge      = "too_large"
	DropTimeout       = "timeout"
)

// Snapshot is an immutable point-in-time view of all counters.
type Snapshot struct {
	// Framing
	FramesReceived int64
	RawFrames      int64
	FramesDropped  int64
	DroppedBy      map[string]int64

	// Dispatch
	DecodeErrors      int64
	Dispatched        int64
	Blocked           int64
	UnhandledEndpoint int64
	Responses         int64

	// Persistence queries
	QueriesSubmitted int64
	QueriesCompleted int64
	QueriesRejected  int64

	// Update engine
	UpdatesStarted   int64
	UpdatesSucceeded int64
	UpdatesFailed    int64
	UpdatesAborted   int64

	// Journal
	JournalWriteSuccess int64
	JournalWriteFailure int64

	// Dimensions (informational, set at construction)
	Transport      string
	SettingsStore  string
	JournalBackend string
	SessionID      string
}

// Collector accumulates counters for one session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	framesReceived int64
	rawFrames      int64
	framesDropped  int64
	droppedBy      map[string]int64

	decodeErrors      int64
	dispatched        int64
	blocked           int64
	unhandledEndpoint int64
	responses         int64

	queriesSubmitted int64
	queriesCompleted int64
	queriesRejected  int64

	updatesStarted   int64
	updatesSucceeded int64
	updatesFailed    int64
	updatesAborted   int64

	journalWriteSuccess int64
	journalWriteFailure int64

	transport      string
	settingsStore  string
	journalBackend string
	sessionID      string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(transport, settingsStore, journalBackend, sessionID string) *Collector {
	return &Collector{
		droppedBy:      make(map[string]int64),
		transport:      transport,
		settingsStore:  settingsStore,
		journalBackend: journalBackend,
		sessionID:      sessionID,
	}
}

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// --- Framing ---

// IncFrameReceived records a complete frame. raw is true for '$' frames.
func (c *Collector) IncFrameReceived(raw bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesReceived++
	if raw {
		c.rawFrames++
	}
	c.mu.Unlock()
}

// IncFrameDropped records bytes discarded by the parser for the given reason.
func (c *Collector) IncFrameDropped(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesDropped++
	c.droppedBy[reason]++
	c.mu.Unlock()
}

// --- Dispatch ---

// IncDecodeError records an envelope that failed to decode.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.inc(&c.decodeErrors)
}

// IncDispatched records a request handed to an endpoint handler.
func (c *Collector) IncDispatched() {
	if c == nil {
		return
	}
	c.inc(&c.dispatched)
}

// IncBlocked records a request rejected by the security gate.
func (c *Collector) IncBlocked() {
	if c == nil {
		return
	}
	c.inc(&c.blocked)
}

// IncUnhandledEndpoint records a request for an endpoint with no handler.
func (c *Collector) IncUnhandledEndpoint() {
	if c == nil {
		return
	}
	c.inc(&c.unhandledEndpoint)
}

// IncResponse records a frame queued to the transport.
func (c *Collector) IncResponse() {
	if c == nil {
		return
	}
	c.inc(&c.responses)
}

// --- Queries ---

// IncQuerySubmitted records a query accepted by the query service.
func (c *Collector) IncQuerySubmitted() {
	if c == nil {
		return
	}
	c.inc(&c.queriesSubmitted)
}

// IncQueryCompleted records a query whose listener ran.
func (c *Collector) IncQueryCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.queriesCompleted)
}

// IncQueryRejected records a query the service refused (queue full or closed).
func (c *Collector) IncQueryRejected() {
	if c == nil {
		return
	}
	c.inc(&c.queriesRejected)
}

// --- Update engine ---

// IncUpdateStarted records the start of an update run.
func (c *Collector) IncUpdateStarted() {
	if c == nil {
		return
	}
	c.inc(&c.updatesStarted)
}

// IncUpdateSucceeded records an update run that reached ReadyForReset.
func (c *Collector) IncUpdateSucceeded() {
	if c == nil {
		return
	}
	c.inc(&c.updatesSucceeded)
}

// IncUpdateFailed records an update run that stopped on an error.
func (c *Collector) IncUpdateFailed() {
	if c == nil {
		return
	}
	c.inc(&c.updatesFailed)
}

// IncUpdateAborted records an update run stopped by an abort request.
func (c *Collector) IncUpdateAborted() {
	if c == nil {
		return
	}
	c.inc(&c.updatesAborted)
}

// --- Journal ---
// Journal counters are per write call, not per record.

// IncJournalWriteSuccess records a successful journal write.
func (c *Collector) IncJournalWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.journalWriteSuccess)
}

// IncJournalWriteFailure records a failed journal write.
func (c *Collector) IncJournalWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.journalWriteFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := make(map[string]int64, len(c.droppedBy))
	for k, v := range c.droppedBy {
		dropped[k] = v
	}

	return Snapshot{
		FramesReceived: c.framesReceived,
		RawFrames:      c.rawFrames,
		FramesDropped:  c.framesDropped,
		DroppedBy:      dropped,

		DecodeErrors:      c.decodeErrors,
		Dispatched:        c.dispatched,
		Blocked:           c.blocked,
		UnhandledEndpoint: c.unhandledEndpoint,
		Responses:         c.responses,

		QueriesSubmitted: c.queriesSubmitted,
		QueriesCompleted: c.queriesCompleted,
		QueriesRejected:  c.queriesRejected,

		UpdatesStarted:   c.updatesStarted,
		UpdatesSucceeded: c.updatesSucceeded,
		UpdatesFailed:    c.updatesFailed,
		UpdatesAborted:   c.updatesAborted,

		JournalWriteSuccess: c.journalWriteSuccess,
		JournalWriteFailure: c.journalWriteFailure,

		Transport:      c.transport,
		SettingsStore:  c.settingsStore,
		JournalBackend: c.journalBackend,
		SessionID:      c.sessionID,
	}
}

// Fields flattens a snapshot into log fields.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"frames_received":    s.FramesReceived,
		"raw_frames":         s.RawFrames,
		"frames_dropped":     s.FramesDropped,
		"dropped_by":         s.DroppedBy,
		"decode_errors":      s.DecodeErrors,
		"dispatched":         s.Dispatched,
		"blocked":            s.Blocked,
		"unhandled_endpoint": s.UnhandledEndpoint,
		"responses":          s.Responses,
		"queries_submitted":  s.QueriesSubmitted,
		"queries_completed":  s.QueriesCompleted,
		"queries_rejected":   s.QueriesRejected,
		"updates_started":    s.UpdatesStarted,
		"updates_succeeded":  s.UpdatesSucceeded,
		"updates_failed":     s.UpdatesFailed,
		"updates_aborted":    s.UpdatesAborted,
		"transport":          s.Transport,
		"settings_store":     s.SettingsStore,
		"journal_backend":    s.JournalBackend,
		"session_id":         s.SessionID,
	}
}
