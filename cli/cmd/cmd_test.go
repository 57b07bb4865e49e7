package cmd

import (
	"testing"

	"github.com/urfave/cli/v2"
)

func flagNames(flags []cli.Flag) map[string]bool {
	names := make(map[string]bool)
	for _, f := range flags {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	return names
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	if !flagNames(ReadOnlyFlags())["tui"] {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestCommands_ReadOnlyFlags(t *testing.T) {
	readOnly := []*cli.Command{
		HistoryCommand(),
		JournalCommand(),
		PortsCommand(),
		SendCommand(),
		VersionCommand("abc"),
	}
	for _, sub := range StatsCommand().Subcommands {
		readOnly = append(readOnly, sub)
	}
	readOnly = append(readOnly, updateCheckCommand())

	for _, c := range readOnly {
		t.Run(c.Name, func(t *testing.T) {
			names := flagNames(c.Flags)
			for _, want := range []string{"format", "f", "no-color", "tui"} {
				if !names[want] {
					t.Errorf("%s is missing --%s", c.Name, want)
				}
			}
		})
	}
}

func TestCommands_NoDuplicateFlags(t *testing.T) {
	commands := []*cli.Command{
		ServeCommand(),
		HistoryCommand(),
		JournalCommand(),
		SendCommand(),
		updateCheckCommand(),
		updateInstallCommand(),
	}
	for _, c := range commands {
		t.Run(c.Name, func(t *testing.T) {
			seen := make(map[string]bool)
			for _, f := range c.Flags {
				for _, n := range f.Names() {
					if seen[n] {
						t.Errorf("%s defines --%s twice", c.Name, n)
					}
					seen[n] = true
				}
			}
		})
	}
}

func TestServeCommand_StoreFlags(t *testing.T) {
	names := flagNames(ServeCommand().Flags)
	for _, want := range []string{"config", "root", "port", "settings-backend", "journal-backend", "adapter", "report"} {
		if !names[want] {
			t.Errorf("serve is missing --%s", want)
		}
	}
}
