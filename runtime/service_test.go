package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/desklink/adapter"
	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/db/memdb"
	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/endpoint/deviceinfo"
	"github.com/pithecene-io/desklink/endpoint/endpointtest"
	"github.com/pithecene-io/desklink/ipc"
	"github.com/pithecene-io/desklink/lode"
	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/metrics"
	"github.com/pithecene-io/desklink/settings"
	"github.com/pithecene-io/desklink/transport"
	"github.com/pithecene-io/desklink/types"
)

// fakeLink is an in-process transport. Frames sent by the service land in
// the embedded Recorder.
type fakeLink struct {
	*endpointtest.Recorder
	startErr error

	mu     sync.Mutex
	recv   transport.ReceiveHandler
	status transport.StatusHandler

	started   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		Recorder: endpointtest.NewRecorder(),
		started:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (l *fakeLink) Start(context.Context) error {
	if l.startErr != nil {
		return l.startErr
	}
	l.emit(transport.Connected)
	l.emit(transport.Configured)
	close(l.started)
	return nil
}

func (l *fakeLink) SetReceiveHandler(h transport.ReceiveHandler) {
	l.mu.Lock()
	l.recv = h
	l.mu.Unlock()
}

func (l *fakeLink) SetStatusHandler(h transport.StatusHandler) {
	l.mu.Lock()
	l.status = h
	l.mu.Unlock()
}

func (l *fakeLink) Done() <-chan struct{} { return l.done }

func (l *fakeLink) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

func (l *fakeLink) emit(s transport.Status) {
	l.mu.Lock()
	h := l.status
	l.mu.Unlock()
	if h != nil {
		h(s)
	}
}

func (l *fakeLink) deliver(t *testing.T, req endpoint.Request) {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	l.mu.Lock()
	h := l.recv
	l.mu.Unlock()
	h(ipc.EncodeMessage(payload))
}

// deliverRaw hands each chunk to the receive handler as a separate read.
func (l *fakeLink) deliverRaw(chunks ...[]byte) {
	l.mu.Lock()
	h := l.recv
	l.mu.Unlock()
	for _, c := range chunks {
		h(c)
	}
}

func (l *fakeLink) hangUp() {
	l.emit(transport.Disconnected)
	_ = l.Close()
}

// fakeAdapter records published events.
type fakeAdapter struct {
	mu     sync.Mutex
	events []*adapter.DeviceEvent
	closed bool
}

func (a *fakeAdapter) Publish(_ context.Context, e *adapter.DeviceEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *fakeAdapter) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

func (a *fakeAdapter) eventTypes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.events {
		out = append(out, e.EventType)
	}
	return out
}

type harness struct {
	link      *fakeLink
	adapter   *fakeAdapter
	journal   *lode.Journal
	collector *metrics.Collector
	store     *memdb.Store
	svc       *Service
}

func newHarness(t *testing.T, onboarded bool) *harness {
	t.Helper()
	root := t.TempDir()
	sim := device.NewSimulator(device.Config{
		Root:         root,
		SerialNumber: "SN1",
		OSVersion:    "1.0.0",
		BatteryLevel: 80,
	})
	initial := map[string]string{}
	if onboarded {
		initial[settings.KeyOnboardingFinished] = "1"
	}
	session := types.NewSessionMeta("SN1")
	h := &harness{
		link:      newFakeLink(),
		adapter:   &fakeAdapter{},
		collector: metrics.NewCollector("fake", "memory", "memory", session.SessionID),
		store:     memdb.New(),
	}
	var err error
	h.journal, err = lode.NewMemory(lode.Config{Device: "SN1"}, h.collector)
	if err != nil {
		t.Fatal(err)
	}
	h.svc, err = NewService(&Config{
		Transport: h.link,
		Device:    sim,
		Settings:  settings.NewMemory(initial),
		Store:     h.store,
		Dirs:      DirsFromRoot(root),
		Journal:   h.journal,
		Adapter:   h.adapter,
		Session:   session,
		Logger:    log.Nop(),
		Collector: h.collector,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return h
}

// start runs the service and waits until the link is up.
func (h *harness) start(t *testing.T) <-chan *Result {
	t.Helper()
	results := make(chan *Result, 1)
	go func() {
		res, err := h.svc.Run(t.Context())
		if err != nil {
			t.Errorf("Run: %v", err)
		}
		results <- res
	}()
	select {
	case <-h.link.started:
	case <-time.After(5 * time.Second):
		t.Fatal("transport never started")
	}
	return results
}

func waitResult(t *testing.T, results <-chan *Result) *Result {
	t.Helper()
	select {
	case res := <-results:
		if res == nil {
			t.Fatal("nil result")
		}
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestService_ServesDeviceInfo(t *testing.T) {
	h := newHarness(t, true)
	results := h.start(t)

	h.link.deliver(t, endpoint.Request{Endpoint: types.EndpointDeviceInfo, Method: types.MethodGet, UUID: 11})
	fr := h.link.Wait(t, 1)[0]
	if fr.Status != types.StatusOK || fr.UUID != "11" {
		t.Fatalf("frame = %+v, want 200 uuid 11", fr)
	}
	var info deviceinfo.Info
	fr.DecodeBody(t, &info)
	if info.SerialNumber != "SN1" {
		t.Errorf("SerialNumber = %q, want SN1", info.SerialNumber)
	}

	h.link.hangUp()
	res := waitResult(t, results)

	if res.Outcome.Status != OutcomeCompleted || res.Outcome.ExitCode() != ExitCodeCompleted {
		t.Errorf("Outcome = %+v, want completed", res.Outcome)
	}
	if res.Metrics.FramesReceived != 1 || res.Metrics.Dispatched != 1 || res.Metrics.Responses != 1 {
		t.Errorf("Metrics = %+v", res.Metrics)
	}

	got := h.adapter.eventTypes()
	for _, want := range []string{adapter.EventUSBConfigured, adapter.EventUSBDisconnected, adapter.EventSessionCompleted} {
		if !slices.Contains(got, want) {
			t.Errorf("published %v, missing %s", got, want)
		}
	}
	if !h.adapter.closed {
		t.Error("adapter not closed")
	}

	ctx := t.Context()
	events, err := h.journal.Records(ctx, lode.KindDeviceEvent)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("device event records = %d, want 2", len(events))
	}
	if _, err := h.journal.Latest(ctx, lode.KindMetrics); err != nil {
		t.Errorf("metrics record: %v", err)
	}
}

func TestService_CalendarPageOverFragmentedFrame(t *testing.T) {
	h := newHarness(t, true)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range 5 {
		start := base.Add(time.Duration(i) * 24 * time.Hour)
		h.store.InsertEvent(db.Event{
			UID:             fmt.Sprintf("event-%d", i),
			Title:           fmt.Sprintf("Event %d", i),
			Start:           start,
			End:             start.Add(time.Hour),
			ReminderMinutes: db.ReminderNever,
		})
	}
	results := h.start(t)

	payload := `{"endpoint":10,"method":1,"uuid":42,"body":{"offset":0,"limit":2}}`
	frame := []byte(fmt.Sprintf("#%09d%s", len(payload), payload))
	// Split inside the header, on the header boundary and inside the payload.
	h.link.deliverRaw(frame[:1], frame[1:6], frame[6:10], frame[10:25], frame[25:])

	fr := h.link.Wait(t, 1)[0]
	if fr.Status != types.StatusOK || fr.UUID != "42" || fr.Endpoint != types.EndpointCalendarEvents {
		t.Fatalf("frame = %+v, want 200 uuid 42 calendarEvents", fr)
	}
	var body struct {
		Events []struct {
			UID string `json:"UID"`
		} `json:"calendar_events"`
		TotalCount int `json:"totalCount"`
	}
	fr.DecodeBody(t, &body)
	if len(body.Events) != 2 || body.Events[0].UID != "event-0" || body.Events[1].UID != "event-1" {
		t.Errorf("events = %+v, want event-0 and event-1", body.Events)
	}
	if body.TotalCount != 5 {
		t.Errorf("totalCount = %d, want 5", body.TotalCount)
	}
	if fr.NextPage == nil || *fr.NextPage != (endpoint.Page{Offset: 2, Limit: 2}) {
		t.Errorf("NextPage = %+v, want {2 2}", fr.NextPage)
	}

	h.link.hangUp()
	res := waitResult(t, results)
	if res.Metrics.FramesReceived != 1 || res.Metrics.Dispatched != 1 || res.Metrics.Responses != 1 {
		t.Errorf("Metrics = %+v", res.Metrics)
	}
}

func TestService_BlocksBeforeOnboarding(t *testing.T) {
	h := newHarness(t, false)
	results := h.start(t)

	h.link.deliver(t, endpoint.Request{Endpoint: types.EndpointContacts, Method: types.MethodGet, UUID: 3})
	if got := h.link.Wait(t, 1)[0].Status; got != types.StatusForbidden {
		t.Errorf("Status = %d, want 403", got)
	}

	h.link.hangUp()
	res := waitResult(t, results)
	if res.Metrics.Blocked != 1 {
		t.Errorf("Blocked = %d, want 1", res.Metrics.Blocked)
	}
}

func TestService_NotifyRebootEndsSession(t *testing.T) {
	h := newHarness(t, true)
	results := h.start(t)

	h.svc.NotifyReboot(device.RebootUpdate)
	res := waitResult(t, results)
	if res.Outcome.Status != OutcomeReboot {
		t.Errorf("Status = %s, want reboot", res.Outcome.Status)
	}
	if res.Outcome.ExitCode() != ExitCodeReboot {
		t.Errorf("ExitCode = %d, want %d", res.Outcome.ExitCode(), ExitCodeReboot)
	}
}

func TestService_TransportStartFailure(t *testing.T) {
	h := newHarness(t, true)
	h.link.startErr = errors.New("port busy")

	res, err := h.svc.Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome.Status != OutcomeTransportError {
		t.Errorf("Status = %s, want transport_error", res.Outcome.Status)
	}
	if res.Outcome.ExitCode() != ExitCodeTransportError {
		t.Errorf("ExitCode = %d, want %d", res.Outcome.ExitCode(), ExitCodeTransportError)
	}
}

func TestNewService_Required(t *testing.T) {
	sim := device.NewSimulator(device.Config{})
	store := settings.NewMemory(nil)
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no transport", cfg: Config{Device: sim, Settings: store}},
		{name: "no device", cfg: Config{Transport: newFakeLink(), Settings: store}},
		{name: "no settings", cfg: Config{Transport: newFakeLink(), Device: sim}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(&tt.cfg); err == nil {
				t.Error("NewService succeeded, want error")
			}
		})
	}
}

func TestDirsFromRoot(t *testing.T) {
	d := DirsFromRoot("/r")
	if d.Root != "/r" || d.User != "/r/user" {
		t.Errorf("Dirs = %+v", d)
	}
	if d.Backup != "/r/user/backup" || d.Factory != "/r/user/factory" {
		t.Errorf("Backup/Factory = %s/%s", d.Backup, d.Factory)
	}
	if got := d.DatabasePath(); got != "/r/user/desklink.db" {
		t.Errorf("DatabasePath = %s", got)
	}
}
