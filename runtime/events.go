package runtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pithecene-io/desklink/adapter"
	"github.com/pithecene-io/desklink/lode"
	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/types"
	"github.com/pithecene-io/desklink/update"
)

// PublishTimeout bounds one adapter publish, retries included.
var PublishTimeout = 30 * time.Second

var errNoJournal = errors.New("no journal configured")

// kindEvents maps journal record kinds to the device event published
// alongside them.
var kindEvents = map[string]string{
	lode.KindBackup:       adapter.EventBackupCreated,
	lode.KindRestore:      adapter.EventRestoreStarted,
	lode.KindFactoryReset: adapter.EventFactoryReset,
}

// eventSink journals session activity and publishes it as device events.
// Publishing runs in the background; wait drains it. The journal and the
// adapter are both optional.
type eventSink struct {
	adapter adapter.Adapter
	journal *lode.Journal
	session *types.SessionMeta
	logger  *log.Logger
	now     func() time.Time

	wg sync.WaitGroup

	mu          sync.Mutex
	updateState update.State
}

// Record implements backup.Journal and factory.Recorder.
func (e *eventSink) Record(ctx context.Context, kind string, fields map[string]any) error {
	var err error
	if e.journal != nil {
		err = e.journal.Record(ctx, kind, fields)
	}
	if eventType, ok := kindEvents[kind]; ok {
		e.publish(ctx, eventType, "", "", fields)
	}
	return err
}

// PutFile implements backup.Journal.
func (e *eventSink) PutFile(ctx context.Context, name string, r io.Reader) (string, error) {
	if e.journal == nil {
		return "", errNoJournal
	}
	return e.journal.PutFile(ctx, name, r)
}

// deviceEvent journals and publishes a link event.
func (e *eventSink) deviceEvent(ctx context.Context, eventType string, fields map[string]any) {
	rec := map[string]any{"event_type": eventType, "session_id": e.session.SessionID}
	for k, v := range fields {
		rec[k] = v
	}
	if e.journal != nil {
		if err := e.journal.Record(ctx, lode.KindDeviceEvent, rec); err != nil {
			e.logger.Warn("device event journal write failed", map[string]any{
				"event_type": eventType,
				"error":      err.Error(),
			})
		}
	}
	e.publish(ctx, eventType, "", "", fields)
}

// updateEvent turns an engine notification into at most one device event:
// errors and completion always, progress only when the phase changes.
func (e *eventSink) updateEvent(ctx context.Context, ev update.Event) {
	fields := map[string]any{
		"state":       ev.Stats.State.String(),
		"total_bytes": ev.Stats.TotalBytes,
	}
	switch {
	case ev.Kind == update.EventError:
		fields["error"] = ev.Code.String()
		e.recordUpdate(ctx, fields)
		e.resetUpdateState()
		e.publish(ctx, adapter.EventUpdateError, ev.Code.String(), ev.Stats.MessageText, fields)
	case ev.Stats.State == update.StateReadyForReset:
		e.recordUpdate(ctx, fields)
		e.resetUpdateState()
		e.publish(ctx, adapter.EventUpdateCompleted, "", ev.Stats.MessageText, fields)
	default:
		e.mu.Lock()
		changed := ev.Stats.State != e.updateState
		e.updateState = ev.Stats.State
		e.mu.Unlock()
		if changed {
			e.publish(ctx, adapter.EventUpdateProgress, "", ev.Stats.MessageText, fields)
		}
	}
}

func (e *eventSink) resetUpdateState() {
	e.mu.Lock()
	e.updateState = update.StateInitial
	e.mu.Unlock()
}

func (e *eventSink) recordUpdate(ctx context.Context, fields map[string]any) {
	if e.journal == nil {
		return
	}
	rec := map[string]any{"session_id": e.session.SessionID}
	for k, v := range fields {
		rec[k] = v
	}
	if err := e.journal.Record(ctx, lode.KindUpdate, rec); err != nil {
		e.logger.Warn("update journal write failed", map[string]any{"error": err.Error()})
	}
}

// publish sends one device event in the background.
func (e *eventSink) publish(ctx context.Context, eventType, code, message string, fields map[string]any) {
	if e.adapter == nil {
		return
	}
	now := time.Now
	if e.now != nil {
		now = e.now
	}
	event := &adapter.DeviceEvent{
		ContractVersion: adapter.ContractVersion,
		EventType:       eventType,
		Device:          e.session.DeviceSerial,
		SessionID:       e.session.SessionID,
		Timestamp:       now().UTC().Format(time.RFC3339),
		Code:            code,
		Message:         message,
		Fields:          fields,
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
		defer cancel()
		if err := e.adapter.Publish(pctx, event); err != nil {
			e.logger.Warn("device event publish failed", map[string]any{
				"event_type": eventType,
				"error":      err.Error(),
			})
		}
	}()
}

// wait blocks until every background publish has finished, then closes
// the adapter.
func (e *eventSink) wait() {
	e.wg.Wait()
	if e.adapter == nil {
		return
	}
	if err := e.adapter.Close(); err != nil {
		e.logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
	}
}
