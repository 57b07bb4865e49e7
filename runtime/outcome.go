package runtime

import (
	"time"

	"github.com/pithecene-io/desklink/metrics"
	"github.com/pithecene-io/desklink/types"
)

// OutcomeStatus classifies how a session ended.
type OutcomeStatus string

// Session outcomes.
const (
	// OutcomeCompleted is a session that ended because the link closed or
	// the service was stopped.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeReboot is a session ended by a device reboot: after an
	// update, a restore or a factory reset.
	OutcomeReboot OutcomeStatus = "reboot"
	// OutcomeTransportError is a session whose link never came up.
	OutcomeTransportError OutcomeStatus = "transport_error"
)

// Process exit codes for a finished session.
const (
	ExitCodeCompleted      = 0
	ExitCodeTransportError = 2
	// ExitCodeReboot tells a supervisor to restart the service once the
	// device is back.
	ExitCodeReboot = 3
)

// Outcome is the session outcome.
type Outcome struct {
	Status  OutcomeStatus
	Message string
}

// ExitCode maps the outcome to a process exit code.
func (o *Outcome) ExitCode() int {
	switch o.Status {
	case OutcomeReboot:
		return ExitCodeReboot
	case OutcomeTransportError:
		return ExitCodeTransportError
	default:
		return ExitCodeCompleted
	}
}

// Result is what Run reports.
type Result struct {
	Session  *types.SessionMeta
	Outcome  *Outcome
	Duration time.Duration
	Metrics  metrics.Snapshot
}
