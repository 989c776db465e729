// Command cc_codegen lowers one AST file to Z80 assembly text (spec.md
// §6.3). The --target flag picks the host-vs-Zeal-8-bit-OS output
// profile original_source's src/target split carries per build.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zealcc/zcc/internal/astfile"
	"github.com/zealcc/zcc/internal/codegen"
	"github.com/zealcc/zcc/internal/diag"
	"github.com/zealcc/zcc/internal/ioadapt"
)

func parseTarget(name string) (ioadapt.Target, error) {
	switch name {
	case "", "host", "modern":
		return ioadapt.TargetHost, nil
	case "zeal8bit":
		return ioadapt.TargetZeal8Bit, nil
	default:
		return 0, diag.New(diag.InvalidArg, "unknown target %q (want host or zeal8bit)", name)
	}
}

func run(reporter *diag.Reporter, input, output, targetName string) error {
	target, err := parseTarget(targetName)
	if err != nil {
		return err
	}

	rd, err := astfile.Open(input)
	if err != nil {
		return diag.New(diag.FileNotFound, "%s", err.Error())
	}
	defer rd.Close()

	prog, err := rd.ReadProgram()
	if err != nil {
		return err
	}

	out, err := ioadapt.CreateOutput(output)
	if err != nil {
		return diag.New(diag.FileNotFound, "%s", err.Error())
	}
	defer out.Close()

	gen := codegen.New(out, target)
	if err := gen.Generate(prog); err != nil {
		return err
	}

	reporter.Msg("%s -> %s", input, output)
	return nil
}

var command = &cobra.Command{
	Use:  "cc_codegen <input.ast> <output.asm>",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetName, _ := cmd.Flags().GetString("target")
		reporter := diag.NewReporter(os.Stdout, os.Stderr)
		if err := run(reporter, args[0], args[1], targetName); err != nil {
			reporter.Fatal("%s", err.Error())
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	command.Flags().String("target", "host", "output profile: host or zeal8bit")
}

func main() {
	command.SetUsageTemplate("Usage: cc_codegen <input.ast> <output.asm> [--target host|zeal8bit]\n")
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
