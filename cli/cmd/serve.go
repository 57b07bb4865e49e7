package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/desklink/ipc"
	"github.com/pithecene-io/desklink/metrics"
	"github.com/pithecene-io/desklink/runtime"
	"github.com/pithecene-io/desklink/types"
)

// ServeCommand returns the serve command.
// Serve is the only command that answers a desktop tool.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the desktop protocol on a serial port or stdin/stdout",
		Flags: withFlags(storeFlags(), []cli.Flag{
			// Link flags
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Serial device path, or - for stdin/stdout",
			},
			&cli.IntFlag{
				Name:  "baud",
				Usage: "Baud rate (ignored by USB CDC devices)",
			},
			&cli.DurationFlag{
				Name:  "parser-timeout",
				Usage: "Discard a partial frame after this long without data",
				Value: ipc.DefaultTimeout,
			},
			// Device flags
			&cli.StringFlag{
				Name:  "os-version",
				Usage: "Running OS version reported by the device",
			},
			&cli.IntFlag{
				Name:  "battery",
				Usage: "Battery level in percent",
			},
			&cli.BoolFlag{
				Name:  "locked",
				Usage: "Start with the screen locked",
			},
			&cli.BoolFlag{
				Name:  "onboarded",
				Usage: "Mark onboarding as finished",
			},
			&cli.StringFlag{
				Name:  "passcode",
				Usage: "Screen lock passcode",
			},
			// Policy flags
			&cli.BoolFlag{
				Name:  "allow-downgrade",
				Usage: "Accept update packages older than the running OS",
			},
			&cli.BoolFlag{
				Name:  "export-backups",
				Usage: "Copy backup archives into the journal store",
			},
			// Adapter flags
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Event adapter: webhook or redis",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Webhook endpoint or Redis URL",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis pub/sub channel",
			},
			// Output flags
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON session report to this path (- for stderr)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the session summary",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Append logs to this file instead of stderr",
			},
		}),
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), runtime.ExitCodeTransportError)
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	sim := newSimulator(cfg.Device)
	session := types.NewSessionMeta(sim.SerialNumber())
	logger, closeLog, err := sessionLogger(session, c.String("log-file"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeLog()

	store, err := openSettings(cfg.Settings)
	if err != nil {
		return fmt.Errorf("failed to open settings: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := seedSettings(ctx, store, cfg.Device); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	collector := metrics.NewCollector(transportName(cfg.Transport.Port), cfg.Settings.Backend, cfg.Journal.Backend, session.SessionID)

	journal, err := openJournal(ctx, cfg.Journal, sim.SerialNumber(), collector)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	events, err := openAdapter(cfg.Adapter)
	if err != nil {
		return fmt.Errorf("failed to create adapter: %w", err)
	}

	link, err := openTransport(cfg.Transport, logger.Named("transport"), collector)
	if err != nil {
		if events != nil {
			_ = events.Close()
		}
		return cli.Exit(fmt.Sprintf("failed to open transport: %v", err), runtime.ExitCodeTransportError)
	}

	svc, err := runtime.NewService(&runtime.Config{
		Transport:      link,
		Device:         sim,
		Bootloader:     sim,
		Settings:       store,
		Dirs:           runtime.DirsFromRoot(cfg.Device.Root),
		AllowDowngrade: cfg.Update.AllowDowngrade,
		ParserTimeout:  cfg.Parser.Timeout.Duration,
		MaxPayloadSize: cfg.Parser.MaxPayload,
		ExportBackups:  cfg.Backup.Export,
		Journal:        journal,
		Adapter:        events,
		Session:        session,
		Logger:         logger,
		Collector:      collector,
	})
	if err != nil {
		_ = link.Close()
		if events != nil {
			_ = events.Close()
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	sim.OnReboot(svc.NotifyReboot)

	result, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("session failed: %w", err)
	}

	if path := c.String("report"); path != "" {
		if err := runtime.WriteReport(runtime.BuildReport(result), path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write report: %v\n", err)
		}
	}
	if !c.Bool("quiet") {
		printSessionResult(result)
	}

	return cli.Exit("", result.Outcome.ExitCode())
}

// printSessionResult writes a human summary to stderr; stdout may be the
// protocol link.
func printSessionResult(result *runtime.Result) {
	m := result.Metrics
	w := os.Stderr
	fmt.Fprintf(w, "\nsession=%s, device=%s, outcome=%s, duration=%s\n",
		result.Session.SessionID,
		result.Session.DeviceSerial,
		result.Outcome.Status,
		result.Duration.Round(time.Millisecond),
	)
	fmt.Fprintf(w, "\n=== Session Result ===\n")
	fmt.Fprintf(w, "Message:      %s\n", result.Outcome.Message)
	fmt.Fprintf(w, "Transport:    %s\n", m.Transport)
	fmt.Fprintf(w, "Settings:     %s\n", m.SettingsStore)
	if m.JournalBackend != "" {
		fmt.Fprintf(w, "Journal:      %s\n", m.JournalBackend)
	}

	fmt.Fprintf(w, "\n=== Frames ===\n")
	fmt.Fprintf(w, "Received:     %d\n", m.FramesReceived)
	fmt.Fprintf(w, "Dispatched:   %d\n", m.Dispatched)
	fmt.Fprintf(w, "Blocked:      %d\n", m.Blocked)
	fmt.Fprintf(w, "Unhandled:    %d\n", m.UnhandledEndpoint)
	fmt.Fprintf(w, "Dropped:      %d\n", m.FramesDropped)
	fmt.Fprintf(w, "Responses:    %d\n", m.Responses)

	if m.UpdatesStarted > 0 {
		fmt.Fprintf(w, "\n=== Updates ===\n")
		fmt.Fprintf(w, "Started:      %d\n", m.UpdatesStarted)
		fmt.Fprintf(w, "Succeeded:    %d\n", m.UpdatesSucceeded)
		fmt.Fprintf(w, "Failed:       %d\n", m.UpdatesFailed)
		fmt.Fprintf(w, "Aborted:      %d\n", m.UpdatesAborted)
	}
}
