// Command desim is a thin host for programs built on the sim package. It
// recognizes the run-control and monitoring flags described by the
// engine's external interface and wires them to a *sim.Simulation built
// by one of its built-in scenarios (telephone, pingpong, heartbeat),
// selected with "run <scenario>"; it also offers "lint-name" for checking
// component names. Grounded on the rest of the example pack's cobra+godotenv CLI
// convention, since the teacher repo is a library with no CLI of its own.
package main

import (
	"fmt"
	"os"

	"github.com/desimio/desim/cmd/desim/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
