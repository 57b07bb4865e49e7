package runtime

import (
	"slices"
	"strings"
	"testing"

	"github.com/pithecene-io/desklink/adapter"
	"github.com/pithecene-io/desklink/lode"
	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/types"
	"github.com/pithecene-io/desklink/update"
)

func newSink(t *testing.T) (*eventSink, *fakeAdapter) {
	t.Helper()
	j, err := lode.NewMemory(lode.Config{Device: "SN1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	a := &fakeAdapter{}
	return &eventSink{
		adapter: a,
		journal: j,
		session: types.NewSessionMeta("SN1"),
		logger:  log.Nop(),
	}, a
}

func TestEventSink_UpdateEvents(t *testing.T) {
	sink, a := newSink(t)
	ctx := t.Context()

	inform := func(s update.State) update.Event {
		return update.Event{Kind: update.EventInform, Stats: update.Stats{State: s}}
	}
	sink.updateEvent(ctx, inform(update.StateExtractingFiles))
	sink.updateEvent(ctx, inform(update.StateExtractingFiles))
	sink.updateEvent(ctx, inform(update.StateChecksumVerification))
	sink.updateEvent(ctx, update.Event{
		Kind:  update.EventError,
		Code:  update.VerifyChecksumsFailure,
		Stats: update.Stats{State: update.StateChecksumVerification},
	})
	sink.updateEvent(ctx, inform(update.StateReadyForReset))
	sink.wait()

	got := a.eventTypes()
	want := map[string]int{
		adapter.EventUpdateProgress:  2,
		adapter.EventUpdateError:     1,
		adapter.EventUpdateCompleted: 1,
	}
	for typ, n := range want {
		count := 0
		for _, g := range got {
			if g == typ {
				count++
			}
		}
		if count != n {
			t.Errorf("%s published %d times, want %d (all: %v)", typ, count, n, got)
		}
	}

	recs, err := sink.journal.Records(ctx, lode.KindUpdate)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("update records = %d, want 2", len(recs))
	}
	failed := slices.ContainsFunc(recs, func(r map[string]any) bool {
		return r["error"] == update.VerifyChecksumsFailure.String()
	})
	if !failed {
		t.Errorf("no record carries the checksum failure: %v", recs)
	}
}

func TestEventSink_RecordPublishesMilestones(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{lode.KindBackup, adapter.EventBackupCreated},
		{lode.KindRestore, adapter.EventRestoreStarted},
		{lode.KindFactoryReset, adapter.EventFactoryReset},
		{lode.KindDeviceEvent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			sink, a := newSink(t)
			if err := sink.Record(t.Context(), tt.kind, map[string]any{"name": "x"}); err != nil {
				t.Fatalf("Record: %v", err)
			}
			sink.wait()
			got := a.eventTypes()
			if tt.want == "" {
				if len(got) != 0 {
					t.Errorf("published %v, want nothing", got)
				}
				return
			}
			if !slices.Equal(got, []string{tt.want}) {
				t.Errorf("published %v, want [%s]", got, tt.want)
			}
			if _, err := sink.journal.Latest(t.Context(), tt.kind); err != nil {
				t.Errorf("journal record: %v", err)
			}
		})
	}
}

func TestEventSink_WithoutJournal(t *testing.T) {
	sink := &eventSink{session: types.NewSessionMeta("SN1"), logger: log.Nop()}
	if err := sink.Record(t.Context(), lode.KindBackup, nil); err != nil {
		t.Errorf("Record = %v, want nil", err)
	}
	if _, err := sink.PutFile(t.Context(), "a.tar", strings.NewReader("x")); err != errNoJournal {
		t.Errorf("PutFile error = %v, want errNoJournal", err)
	}
	sink.deviceEvent(t.Context(), adapter.EventUSBConfigured, nil)
	sink.wait()
}

func TestEventSink_EventFields(t *testing.T) {
	sink, a := newSink(t)
	sink.deviceEvent(t.Context(), adapter.EventUSBReconfigured, map[string]any{"status": "configured"})
	sink.wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) != 1 {
		t.Fatalf("events = %d, want 1", len(a.events))
	}
	ev := a.events[0]
	if ev.ContractVersion != adapter.ContractVersion || ev.Device != "SN1" || ev.SessionID != sink.session.SessionID {
		t.Errorf("event = %+v", ev)
	}
	if ev.Timestamp == "" {
		t.Error("Timestamp empty")
	}
}
