// Package cmd provides CLI commands for the desklink binary.
package cmd

import (
	"github.com/urfave/cli/v2"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for history and stats.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (history, stats only)",
	}
)

// ConfigFlag points at a desklink.yaml. Flags override its values.
var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to desklink.yaml",
	EnvVars: []string{"DESKLINK_CONFIG"},
}

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can reject it explicitly
// instead of failing with "flag provided but not defined".
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// storeFlags select the device root and the stores read-only commands
// read from.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:  "root",
			Usage: "Device filesystem root",
		},
		&cli.StringFlag{
			Name:  "serial",
			Usage: "Device serial number (journal partition)",
		},
		&cli.StringFlag{
			Name:  "settings-backend",
			Usage: "Settings store: memory, file or redis",
		},
		&cli.StringFlag{
			Name:  "settings-path",
			Usage: "Settings file (file backend)",
		},
		&cli.StringFlag{
			Name:  "settings-url",
			Usage: "Redis URL (redis backend)",
		},
		&cli.StringFlag{
			Name:  "journal-backend",
			Usage: "Journal store: fs, s3 or memory",
		},
		&cli.StringFlag{
			Name:  "journal-path",
			Usage: "Journal location (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "journal-region",
			Usage: "AWS region for the s3 journal (optional, uses default chain)",
		},
	}
}

func withFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
