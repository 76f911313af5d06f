// Package cli wires the run-control and monitoring flags described by
// the engine's external interface onto a cobra command tree, grounded on
// the example pack's cobra+godotenv host-program convention (the teacher
// repo is a library with no CLI of its own).
package cli

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Options holds every flag recognized by desim, shared across
// subcommands.
type Options struct {
	MaxSecs     time.Duration
	MaxWall     time.Duration
	Seed        uint64
	LogLevel    string
	LogGlob     string
	Workers     int
	MonitorPort int
	OpenMonitor bool
	TraceFile   string
	PerfCSV     string
}

// NewRootCommand builds the desim root command. It loads a .env file from
// the current directory (and its two parents, for running from a
// subpackage during development) into the process environment before the
// subcommands are built. No flag reads its default from the environment:
// every flag default is the literal given where the flag is declared.
func NewRootCommand() *cobra.Command {
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	opts := &Options{}

	root := &cobra.Command{
		Use:           "desim",
		Short:         "Host and introspect discrete-event simulations built on the sim package",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newLintNameCommand())

	return root
}
