package transport

import "sync"

// Signal is what a status event means to the service.
type Signal int

// Signals.
const (
	SignalNone Signal = iota
	// SignalFirstConfiguration is the first Configured after Connected.
	SignalFirstConfiguration
	// SignalReconfiguration is a Configured while already configured.
	SignalReconfiguration
	// SignalDisconnected is a Disconnected while connected.
	SignalDisconnected
)

func (s Signal) String() string {
	switch s {
	case SignalFirstConfiguration:
		return "first_configuration"
	case SignalReconfiguration:
		return "reconfiguration"
	case SignalDisconnected:
		return "disconnected"
	default:
		return "none"
	}
}

// StateTracker follows the USB link state and turns raw status events into
// signals. It is safe for concurrent use.
type StateTracker struct {
	mu         sync.Mutex
	connected  bool
	configured bool
}

// Observe records s and returns the resulting signal.
func (t *StateTracker) Observe(s Status) Signal {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch s {
	case Connected:
		t.connected = true
		t.configured = false
	case Configured:
		t.connected = true
		if t.configured {
			return SignalReconfiguration
		}
		t.configured = true
		return SignalFirstConfiguration
	case Disconnected:
		was := t.connected
		t.connected = false
		t.configured = false
		if was {
			return SignalDisconnected
		}
	case Reset:
		t.configured = false
	}
	return SignalNone
}

// Configured reports whether the link is configured.
func (t *StateTracker) Configured() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.configured
}
