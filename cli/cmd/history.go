package cmd

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/desklink/cli/config"
	"github.com/pithecene-io/desklink/cli/reader"
	"github.com/pithecene-io/desklink/cli/render"
	"github.com/pithecene-io/desklink/cli/tui"
	"github.com/pithecene-io/desklink/lode"
)

// openReader opens the stores cfg names and returns a reader over them.
// The close func releases the settings store.
func openReader(ctx context.Context, cfg *config.Config) (*reader.Store, func(), error) {
	store, err := openSettings(cfg.Settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open settings: %w", err)
	}
	journal, err := openJournal(ctx, cfg.Journal, cfg.Device.Serial, nil)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	closeFn := func() { _ = store.Close() }
	return reader.New(reader.Sources{Settings: store, Journal: journal}), closeFn, nil
}

// readerFor loads the configuration and opens a reader.
func readerFor(c *cli.Context) (*reader.Store, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return openReader(ctx, cfg)
}

// HistoryCommand returns the history command.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:   "history",
		Usage:  "Show the update run history, newest first",
		Flags:  withFlags(ReadOnlyFlags(), storeFlags()),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	rd, closeFn, err := readerFor(c)
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := rd.History(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewHistory, entries)
	}
	return r.Render(entries)
}

// journalKinds are the record kinds the journal command accepts.
var journalKinds = []string{
	lode.KindUpdate,
	lode.KindBackup,
	lode.KindRestore,
	lode.KindFactoryReset,
	lode.KindDeviceEvent,
	lode.KindMetrics,
}

// JournalCommand returns the journal command.
func JournalCommand() *cli.Command {
	return &cli.Command{
		Name:      "journal",
		Usage:     "Show journal records of one kind, newest first",
		ArgsUsage: "<kind>",
		Flags: withFlags(ReadOnlyFlags(), storeFlags(), []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Show at most this many records (0 for all)",
				Value: 50,
			},
		}),
		Action: journalAction,
	}
}

func journalAction(c *cli.Context) error {
	kind := c.Args().First()
	if !slices.Contains(journalKinds, kind) {
		return cli.Exit(fmt.Sprintf("journal kind must be one of %v", journalKinds), 1)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for journal", 1)
	}
	rd, closeFn, err := readerFor(c)
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := rd.Journal(c.Context, kind)
	if err != nil {
		return err
	}
	if limit := c.Int("limit"); limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return r.Render(entries)
}
