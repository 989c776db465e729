// Command cc_semantic runs the thin structural validator over one AST
// file (spec.md §6.2).
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zealcc/zcc/internal/diag"
	"github.com/zealcc/zcc/internal/semantic"
)

var command = &cobra.Command{
	Use:  "cc_semantic <input.ast>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reporter := diag.NewReporter(os.Stdout, os.Stderr)
		if err := semantic.Validate(args[0]); err != nil {
			reporter.Fatal("%s", err.Error())
			os.Exit(1)
		}
		reporter.Msg("%s: OK", args[0])
		return nil
	},
}

func main() {
	command.SetUsageTemplate("Usage: cc_semantic <input.ast>\n")
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
