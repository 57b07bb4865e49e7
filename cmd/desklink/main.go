// Package main provides the desklink CLI entrypoint.
//
// Usage:
//
//	desklink <command> [subcommand] [options]
//
// Exit codes for `serve`:
//   - 0: the link closed normally
//   - 1: usage or configuration error
//   - 2: the transport failed or could not be opened
//   - 3: the device rebooted (update, restore or factory reset)
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/desklink/cli/cmd"
	"github.com/pithecene-io/desklink/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "desklink",
		Usage:          "Device side of the desktop serial protocol",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.UpdateCommand(),
			cmd.HistoryCommand(),
			cmd.JournalCommand(),
			cmd.StatsCommand(),
			cmd.PortsCommand(),
			cmd.SendCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	code, msg := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus maps err to a process exit code and the message to print.
// cli.Exit("", N) prints nothing.
func exitStatus(err error) (int, string) {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return code, msg
	}
	return 1, fmt.Sprintf("Error: %v", err)
}
