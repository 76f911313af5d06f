package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/desimio/desim/sim"
)

// newLintNameCommand builds "lint-name", a small standalone check over
// component name strings, grounded on the teacher's "check" command
// (akita/cmd/linter.go) which validates a component package's structure
// against its naming/builder conventions. This repo has no component
// packages to parse an AST over, so lint-name narrows the same idea down
// to the one naming convention sim.ValidateName enforces: it validates
// every argument and reports every failure before exiting non-zero,
// rather than stopping at the first bad name.
func newLintNameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lint-name <name> [name...]",
		Short: "Validate component names against the hierarchical naming convention",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invalid := 0

			for _, name := range args {
				if err := sim.ValidateName(name); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
					invalid++

					continue
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", name)
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d name(s) invalid", invalid, len(args))
			}

			return nil
		},
	}
}
