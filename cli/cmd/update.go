package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/desklink/cli/reader"
	"github.com/pithecene-io/desklink/cli/render"
	"github.com/pithecene-io/desklink/lode"
	"github.com/pithecene-io/desklink/update"
)

// UpdateCommand returns the update command with subcommands. Both work on
// the device root directly, without a desktop tool attached.
func UpdateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Inspect and install update packages on the device root",
		Subcommands: []*cli.Command{
			updateCheckCommand(),
			updateInstallCommand(),
		},
	}
}

func updateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "os-version",
			Usage: "Running OS version the version policy compares against",
		},
		&cli.BoolFlag{
			Name:  "allow-downgrade",
			Usage: "Accept update packages older than the running OS",
		},
	}
}

func updateCheckCommand() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "List waiting update packages and the one an update would install",
		Flags:  withFlags(ReadOnlyFlags(), storeFlags(), updateFlags()),
		Action: updateCheckAction,
	}
}

func updateCheckAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for update check", 1)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	engine := update.New(update.Config{
		Dirs:           update.DirsFromRoot(cfg.Device.Root),
		AllowDowngrade: cfg.Update.AllowDowngrade,
		Device:         newSimulator(cfg.Device),
	})
	pkgs, err := reader.New(reader.Sources{Packages: engine}).Packages()
	if err != nil {
		return err
	}
	return r.Render(pkgs)
}

func updateInstallCommand() *cli.Command {
	return &cli.Command{
		Name:  "install",
		Usage: "Install an update package into the device root",
		Flags: withFlags(storeFlags(), updateFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Package name in the updates directory, or a path (default: newest acceptable package)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress progress output",
			},
		}),
		Action: updateInstallAction,
	}
}

func updateInstallAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	sim := newSimulator(cfg.Device)
	store, err := openSettings(cfg.Settings)
	if err != nil {
		return fmt.Errorf("failed to open settings: %w", err)
	}
	defer func() { _ = store.Close() }()

	journal, err := openJournal(ctx, cfg.Journal, sim.SerialNumber(), nil)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	var progress io.Writer = io.Discard
	if !c.Bool("quiet") {
		progress = os.Stderr
	}
	engine := update.New(update.Config{
		Dirs:           update.DirsFromRoot(cfg.Device.Root),
		AllowDowngrade: cfg.Update.AllowDowngrade,
		Device:         sim,
		Bootloader:     sim,
		Settings:       store,
		Notify:         progressPrinter(progress),
	})

	file := c.String("file")
	if file == "" {
		file, _, err = engine.CheckForUpdate()
		if err != nil {
			return err
		}
		if file == "" {
			return cli.Exit("no acceptable update package in "+update.DirsFromRoot(cfg.Device.Root).Updates, 1)
		}
	}
	if err := engine.SetUpdateFile(file); err != nil {
		return cli.Exit(fmt.Sprintf("cannot use %s: %v", file, err), 1)
	}

	runErr := engine.RunUpdate(ctx)
	if journal != nil {
		if err := recordInstall(ctx, journal, engine); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: journal write failed: %v\n", err)
		}
	}
	if runErr != nil {
		if errors.Is(runErr, update.ErrBusy) {
			return cli.Exit(runErr.Error(), 1)
		}
		return cli.Exit(fmt.Sprintf("update failed (%s): %v", update.CodeOf(runErr), runErr), 1)
	}
	if !c.Bool("quiet") {
		fmt.Fprintf(os.Stderr, "installed %s\n", engine.UpdateFile())
	}
	return nil
}

// recordInstall journals the newest history entry, the run just finished.
func recordInstall(ctx context.Context, j *lode.Journal, engine *update.Engine) error {
	runs, err := engine.History(ctx)
	if err != nil || len(runs) == 0 {
		return err
	}
	run := runs[len(runs)-1]
	return j.Record(ctx, lode.KindUpdate, map[string]any{
		"start_time":     run.StartTime,
		"from_version":   run.FromVersion,
		"to_version":     run.ToVersion,
		"update_file":    run.UpdateFile,
		"finished_state": run.FinishedState.String(),
		"finished_error": run.FinishedError.String(),
		"message":        run.Message,
		"source":         "cli",
	})
}

// progressPrinter prints one line per state change and every error.
func progressPrinter(w io.Writer) func(update.Event) {
	last := update.State(-1)
	return func(ev update.Event) {
		if ev.Kind == update.EventError {
			fmt.Fprintf(w, "error   %-22s %s: %s\n", ev.Stats.State, ev.Code, ev.Stats.MessageText)
			return
		}
		if ev.Stats.State == last {
			return
		}
		last = ev.Stats.State
		fmt.Fprintf(w, "%-7s %-22s %s\n", "state", ev.Stats.State, ev.Stats.MessageText)
	}
}
