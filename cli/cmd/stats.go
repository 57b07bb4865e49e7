package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/desklink/cli/render"
	"github.com/pithecene-io/desklink/cli/tui"
)

// StatsCommand returns the stats command with subcommands.
// Stats returns aggregated, derived facts.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated statistics (updates, last session)",
		Subcommands: []*cli.Command{
			statsUpdatesCommand(),
			statsSessionCommand(),
		},
	}
}

func statsUpdatesCommand() *cli.Command {
	return &cli.Command{
		Name:   "updates",
		Usage:  "Show update run counts by result",
		Flags:  withFlags(ReadOnlyFlags(), storeFlags()),
		Action: statsUpdatesAction,
	}
}

func statsUpdatesAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	rd, closeFn, err := readerFor(c)
	if err != nil {
		return err
	}
	defer closeFn()

	stats, err := rd.HistoryStats(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsUpdates, stats)
	}
	return r.Render(stats)
}

func statsSessionCommand() *cli.Command {
	return &cli.Command{
		Name:   "session",
		Usage:  "Show the metrics of the last journaled serve session",
		Flags:  withFlags(ReadOnlyFlags(), storeFlags()),
		Action: statsSessionAction,
	}
}

func statsSessionAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	rd, closeFn, err := readerFor(c)
	if err != nil {
		return err
	}
	defer closeFn()

	snap, err := rd.Metrics(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsSession, snap)
	}
	return r.Render(snap)
}
