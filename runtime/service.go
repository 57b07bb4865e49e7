// Package runtime runs one desktop session: it attaches the frame parser
// and dispatcher to a transport, serves every endpoint until the link goes
// away, and reports how the session ended.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pithecene-io/desklink/adapter"
	"github.com/pithecene-io/desklink/backup"
	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/db/memdb"
	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/dispatch"
	"github.com/pithecene-io/desklink/endpoint"
	epbackup "github.com/pithecene-io/desklink/endpoint/backup"
	"github.com/pithecene-io/desklink/endpoint/calendar"
	"github.com/pithecene-io/desklink/endpoint/calllog"
	"github.com/pithecene-io/desklink/endpoint/contacts"
	"github.com/pithecene-io/desklink/endpoint/deviceinfo"
	epfactory "github.com/pithecene-io/desklink/endpoint/factory"
	"github.com/pithecene-io/desklink/endpoint/filesystem"
	"github.com/pithecene-io/desklink/endpoint/messages"
	epupdate "github.com/pithecene-io/desklink/endpoint/update"
	"github.com/pithecene-io/desklink/endpoint/usbsecurity"
	"github.com/pithecene-io/desklink/factory"
	"github.com/pithecene-io/desklink/fileops"
	"github.com/pithecene-io/desklink/ipc"
	"github.com/pithecene-io/desklink/lode"
	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/metrics"
	"github.com/pithecene-io/desklink/security"
	"github.com/pithecene-io/desklink/settings"
	"github.com/pithecene-io/desklink/transport"
	"github.com/pithecene-io/desklink/types"
	"github.com/pithecene-io/desklink/update"
)

// DatabaseFile is the name of the record store inside the user partition.
const DatabaseFile = "desklink.db"

// ShutdownTimeout bounds the journal and adapter work done after the link
// went away.
var ShutdownTimeout = 10 * time.Second

// Dirs is the on-device layout a session works in.
type Dirs struct {
	update.Dirs
	// Root is the filesystem endpoint root.
	Root string
	// Backup holds backup archives.
	Backup string
	// Factory is the factory tree inside the user partition.
	Factory string
}

// DirsFromRoot lays the session directories out under root.
func DirsFromRoot(root string) Dirs {
	ud := update.DirsFromRoot(root)
	return Dirs{
		Dirs:    ud,
		Root:    root,
		Backup:  filepath.Join(ud.User, "backup"),
		Factory: filepath.Join(ud.User, "factory"),
	}
}

// DatabasePath is the record store file for dirs.
func (d Dirs) DatabasePath() string {
	return filepath.Join(d.User, DatabaseFile)
}

// Config configures a session.
type Config struct {
	// Transport is the link to the desktop tool (required).
	Transport transport.Transport
	// Device is the phone the session serves (required).
	Device device.Device
	// Bootloader installs bootloader images from update packages. Optional.
	Bootloader device.Bootloader
	// Settings holds the passcode, onboarding flag and update history
	// (required).
	Settings settings.Store
	// Store backs the database endpoints. Nil opens Dirs.DatabasePath.
	Store *memdb.Store
	Dirs  Dirs

	AllowDowngrade bool
	// ParserTimeout is the idle timeout of a partial frame. Zero uses
	// ipc.DefaultTimeout.
	ParserTimeout time.Duration
	// MaxPayloadSize caps a frame payload. Zero means no cap beyond the
	// header width.
	MaxPayloadSize int
	// ExportBackups copies every backup archive into the journal store.
	ExportBackups bool

	// Journal records update runs, backups, device events and the final
	// metrics snapshot. Optional.
	Journal *lode.Journal
	// Adapter receives device events. Optional; the session closes it.
	Adapter adapter.Adapter

	// Session identifies the attachment. Nil creates one.
	Session   *types.SessionMeta
	Logger    *log.Logger
	Collector *metrics.Collector
}

// Service is one desktop session.
type Service struct {
	config    *Config
	logger    *log.Logger
	session   *types.SessionMeta
	startTime time.Time

	store    *memdb.Store
	queries  *db.Service
	files    *fileops.Manager
	engine   *update.Engine
	gate     *security.Model
	registry *endpoint.Registry
	tracker  transport.StateTracker
	events   *eventSink

	updates  *epupdate.Handler
	backups  *epbackup.Handler
	restores *epbackup.Handler
	resets   *epfactory.Handler

	// dbClosed is set once a factory reset shut the store down; the
	// store must not be flushed back over the wiped partition.
	dbClosed bool
	mu       sync.Mutex
	reboot   *device.RebootReason
	stop     context.CancelFunc
}

// NewService wires a session. It returns an error if a required
// collaborator is missing or the record store cannot be opened.
func NewService(config *Config) (*Service, error) {
	switch {
	case config.Transport == nil:
		return nil, errors.New("transport is required")
	case config.Device == nil:
		return nil, errors.New("device is required")
	case config.Settings == nil:
		return nil, errors.New("settings store is required")
	}

	session := config.Session
	if session == nil {
		session = types.NewSessionMeta(config.Device.SerialNumber())
	}
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session metadata: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(session)
	}

	store := config.Store
	if store == nil {
		var err error
		store, err = memdb.Open(config.Dirs.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("open record store: %w", err)
		}
	}

	s := &Service{
		config:  config,
		logger:  logger,
		session: session,
		store:   store,
		events: &eventSink{
			adapter: config.Adapter,
			journal: config.Journal,
			session: session,
			logger:  logger.Named("events"),
		},
	}
	s.queries = db.NewService(store, db.ServiceConfig{Logger: logger, Collector: config.Collector})
	s.files = fileops.New(config.Dirs.Root, logger)
	s.gate = security.NewModel(config.Device, config.Settings, logger)

	deps := endpoint.Deps{
		Sender:    &countingSender{t: config.Transport, c: config.Collector},
		DB:        s.queries,
		Logger:    logger,
		Collector: config.Collector,
	}

	s.engine = update.New(update.Config{
		Dirs:           config.Dirs.Dirs,
		AllowDowngrade: config.AllowDowngrade,
		Device:         config.Device,
		Bootloader:     config.Bootloader,
		Settings:       config.Settings,
		Logger:         logger,
		Collector:      config.Collector,
		Notify:         s.notifyUpdate,
	})
	s.updates = epupdate.New(deps, s.engine)

	manager := backup.New(backup.Config{
		UserDir:   config.Dirs.User,
		BackupDir: config.Dirs.Backup,
		TmpDir:    config.Dirs.Tmp,
		BootJSON:  config.Dirs.BootJSON,
		Flush:     store.Flush,
		Reload:    store.Reload,
		Device:    config.Device,
		Journal:   s.events,
		Export:    config.ExportBackups && config.Journal != nil,
		Logger:    logger,
	})
	s.backups = epbackup.New(deps, manager)
	s.restores = epbackup.NewRestore(deps, manager)

	resetter := factory.New(factory.Config{
		UserDir:    config.Dirs.User,
		FactoryDir: config.Dirs.Factory,
		Close:      s.closeStore,
		Device:     config.Device,
		Journal:    s.events,
		Logger:     logger,
	})
	s.resets = epfactory.New(deps, resetter)

	r := endpoint.NewRegistry(deps)
	r.Register(types.EndpointDeviceInfo, deviceinfo.New(deps, config.Device))
	r.Register(types.EndpointUpdate, s.updates)
	r.Register(types.EndpointFilesystem, filesystem.New(deps, s.files, config.Device))
	r.Register(types.EndpointBackup, s.backups)
	r.Register(types.EndpointRestore, s.restores)
	r.Register(types.EndpointFactory, s.resets)
	r.Register(types.EndpointContacts, contacts.New(deps))
	r.Register(types.EndpointMessages, messages.New(deps))
	r.Register(types.EndpointCalllog, calllog.New(deps))
	r.Register(types.EndpointCalendarEvents, calendar.New(deps))
	r.Register(types.EndpointUSBSecurity, usbsecurity.New(deps, s.gate))
	s.registry = r

	return s, nil
}

// Session returns the session identity.
func (s *Service) Session() *types.SessionMeta { return s.session }

// Engine returns the update engine.
func (s *Service) Engine() *update.Engine { return s.engine }

// Run serves the session until ctx is canceled, the link goes away or the
// device reboots, then shuts down and reports the outcome.
//
// Run flow:
//  1. Start the query worker
//  2. Attach parser and dispatcher to the transport
//  3. Serve until the link, ctx or a reboot ends the session
//  4. Stop background work and flush the record store
//  5. Journal and publish the session summary
func (s *Service) Run(ctx context.Context) (*Result, error) {
	s.startTime = time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.stop = cancel
	s.mu.Unlock()

	s.logger.Info("starting session", map[string]any{
		"device":     s.config.Device.SerialNumber(),
		"os_version": s.config.Device.OSVersion(),
	})

	s.queries.Start(ctx)

	dispatcher := dispatch.New(dispatch.Config{
		Factory:     s.registry,
		Gate:        s.gate,
		BaseContext: ctx,
		Logger:      s.logger,
		Collector:   s.config.Collector,
	})
	opts := []ipc.Option{ipc.WithLogger(s.logger), ipc.WithCollector(s.config.Collector)}
	if s.config.ParserTimeout > 0 {
		opts = append(opts, ipc.WithTimeout(s.config.ParserTimeout))
	}
	if s.config.MaxPayloadSize > 0 {
		opts = append(opts, ipc.WithMaxPayloadSize(s.config.MaxPayloadSize))
	}
	parser := ipc.NewParser(dispatcher, opts...)

	t := s.config.Transport
	t.SetReceiveHandler(func(data []byte) {
		if err := parser.ProcessMessage(data); err != nil {
			s.logger.Debug("frame discarded", map[string]any{"error": err.Error()})
		}
	})
	t.SetStatusHandler(func(st transport.Status) {
		s.onStatus(ctx, parser, st)
	})

	if err := t.Start(ctx); err != nil {
		s.logger.Error("failed to start transport", map[string]any{"error": err.Error()})
		parser.Close()
		s.queries.Close()
		return s.finish(&Outcome{
			Status:  OutcomeTransportError,
			Message: fmt.Sprintf("failed to start transport: %v", err),
		}), nil
	}

	select {
	case <-ctx.Done():
	case <-t.Done():
	}

	// An update keeps running on its own goroutine; ask it to stop at the
	// next phase boundary.
	if s.updates.Running() {
		s.engine.SetAbort()
	}
	parser.Close()
	if err := t.Close(); err != nil {
		s.logger.Warn("transport close failed", map[string]any{"error": err.Error()})
	}
	s.updates.Wait()
	s.backups.Wait()
	s.restores.Wait()
	s.resets.Wait()
	s.files.Close()
	if err := s.closeStore(); err != nil {
		s.logger.Warn("record store flush failed", map[string]any{"error": err.Error()})
	}

	return s.finish(s.outcome(ctx)), nil
}

// NotifyReboot ends the session because the device is restarting.
func (s *Service) NotifyReboot(reason device.RebootReason) {
	s.mu.Lock()
	s.reboot = &reason
	stop := s.stop
	s.mu.Unlock()
	s.logger.Info("device rebooting, ending session", map[string]any{"reason": reason.String()})
	if stop != nil {
		stop()
	}
}

func (s *Service) outcome(ctx context.Context) *Outcome {
	s.mu.Lock()
	reboot := s.reboot
	s.mu.Unlock()
	switch {
	case reboot != nil:
		return &Outcome{Status: OutcomeReboot, Message: "device rebooting: " + reboot.String()}
	case ctx.Err() != nil:
		return &Outcome{Status: OutcomeCompleted, Message: "session stopped"}
	default:
		return &Outcome{Status: OutcomeCompleted, Message: "link closed"}
	}
}

// closeStore stops the query worker and persists the store, once.
func (s *Service) closeStore() error {
	s.queries.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dbClosed {
		return nil
	}
	s.dbClosed = true
	return s.store.Flush()
}

func (s *Service) onStatus(ctx context.Context, parser *ipc.Parser, st transport.Status) {
	s.logger.Debug("link status", map[string]any{"status": st.String()})
	switch st {
	case transport.Disconnected, transport.Reset:
		parser.Reset()
	}

	var eventType string
	switch s.tracker.Observe(st) {
	case transport.SignalFirstConfiguration:
		parser.Reset()
		eventType = adapter.EventUSBConfigured
	case transport.SignalReconfiguration:
		eventType = adapter.EventUSBReconfigured
	case transport.SignalDisconnected:
		eventType = adapter.EventUSBDisconnected
	default:
		return
	}
	s.events.deviceEvent(ctx, eventType, map[string]any{"status": st.String()})
}

// notifyUpdate fans engine notifications out to the desktop tool, the
// journal and the adapter. It runs on the update goroutine.
func (s *Service) notifyUpdate(ev update.Event) {
	if s.updates != nil {
		s.updates.Notify(ev)
	}
	s.events.updateEvent(context.Background(), ev)
}

func (s *Service) finish(outcome *Outcome) *Result {
	result := &Result{
		Session:  s.session,
		Outcome:  outcome,
		Duration: time.Since(s.startTime),
	}
	snap := s.config.Collector.Snapshot()
	result.Metrics = snap

	fields := snap.Fields()
	fields["outcome"] = string(outcome.Status)
	fields["duration"] = result.Duration.String()
	s.logger.Info("session completed", fields)

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if s.config.Journal != nil {
		if err := s.config.Journal.RecordMetrics(ctx, snap); err != nil {
			s.logger.Warn("metrics journal write failed", map[string]any{"error": err.Error()})
		}
	}
	s.events.publish(ctx, adapter.EventSessionCompleted, string(outcome.Status), outcome.Message, map[string]any{
		"duration_ms": result.Duration.Milliseconds(),
	})
	s.events.wait()
	return result
}

// countingSender counts queued responses.
type countingSender struct {
	t transport.Transport
	c *metrics.Collector
}

func (s *countingSender) Send(frame []byte) bool {
	if !s.t.Send(frame) {
		return false
	}
	s.c.IncResponse()
	return true
}
