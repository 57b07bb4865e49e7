package transport

import (
	"context"
	"testing"
)

func contextWithCancel(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithCancel(t.Context())
}

func TestStateTracker(t *testing.T) {
	tests := []struct {
		name   string
		events []Status
		want   []Signal
	}{
		{
			name:   "first configuration",
			events: []Status{Connected, Configured},
			want:   []Signal{SignalNone, SignalFirstConfiguration},
		},
		{
			name:   "reconfiguration",
			events: []Status{Connected, Configured, Configured},
			want:   []Signal{SignalNone, SignalFirstConfiguration, SignalReconfiguration},
		},
		{
			name:   "reconnect starts over",
			events: []Status{Connected, Configured, Disconnected, Connected, Configured},
			want:   []Signal{SignalNone, SignalFirstConfiguration, SignalDisconnected, SignalNone, SignalFirstConfiguration},
		},
		{
			name:   "reset clears configuration",
			events: []Status{Configured, Reset, Configured},
			want:   []Signal{SignalFirstConfiguration, SignalNone, SignalFirstConfiguration},
		},
		{
			name:   "disconnect while idle",
			events: []Status{Disconnected, DataReceived},
			want:   []Signal{SignalNone, SignalNone},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr StateTracker
			for i, ev := range tt.events {
				if got := tr.Observe(ev); got != tt.want[i] {
					t.Errorf("Observe(%v) #%d = %v, want %v", ev, i, got, tt.want[i])
				}
			}
		})
	}
}
