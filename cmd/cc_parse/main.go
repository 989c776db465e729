// Command cc_parse runs the lexer and parser over one C source file
// and writes its binary AST encoding (spec.md §6.1).
package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zealcc/zcc/internal/ast"
	"github.com/zealcc/zcc/internal/astfile"
	"github.com/zealcc/zcc/internal/diag"
	"github.com/zealcc/zcc/internal/ioadapt"
	"github.com/zealcc/zcc/internal/lexer"
	"github.com/zealcc/zcc/internal/parser"
)

// parseSource adapts a *parser.Parser to astfile.DeclSource: ParseNext
// reports errors through the parser's own reporter as it goes and
// returns nil at end of input, so Next never itself fails.
type parseSource struct {
	p *parser.Parser
}

func (s parseSource) Next() (ast.Node, error) {
	return s.p.ParseNext(), nil
}

// openParser opens path fresh and returns a parser reading it,
// reporting through reporter.
func openParser(path string, reporter *diag.Reporter) (*ioadapt.Reader, *parser.Parser, error) {
	r, err := ioadapt.Open(path)
	if err != nil {
		return nil, nil, err
	}
	lex := lexer.New(r)
	return r, parser.New(lex, reporter), nil
}

func run(reporter *diag.Reporter, input, output string) error {
	// The writer's measure/emit passes each need their own declaration
	// stream (astfile.Write's documented contract), so the input is
	// lexed and parsed twice from independent file handles. The first
	// (measure) pass owns the real reporter; the second (emit) pass
	// would otherwise repeat every diagnostic it already produced, so
	// it reports to a discarded sink and the measure pass's error count
	// is what decides success.
	measureFile, measureParser, err := openParser(input, reporter)
	if err != nil {
		return diag.New(diag.FileNotFound, "%s", err.Error())
	}
	defer measureFile.Close()

	silent := diag.NewReporter(io.Discard, io.Discard)
	emitFile, emitParser, err := openParser(input, silent)
	if err != nil {
		return diag.New(diag.FileNotFound, "%s", err.Error())
	}
	defer emitFile.Close()

	out, err := ioadapt.CreateOutput(output)
	if err != nil {
		return diag.New(diag.FileNotFound, "%s", err.Error())
	}
	defer out.Close()

	if err := astfile.Write(parseSource{measureParser}, parseSource{emitParser}, out); err != nil {
		return err
	}

	if measureParser.ErrorCount() > 0 {
		return diag.New(diag.Syntax, "%d parse error(s)", measureParser.ErrorCount())
	}

	reporter.Msg("%s -> %s", input, output)
	return nil
}

var command = &cobra.Command{
	Use:  "cc_parse <input.c> <output.ast>",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reporter := diag.NewReporter(os.Stdout, os.Stderr)
		if err := run(reporter, args[0], args[1]); err != nil {
			reporter.Fatal("%s", err.Error())
			os.Exit(1)
		}
		return nil
	},
}

func main() {
	command.SetUsageTemplate("Usage: cc_parse <input.c> <output.ast>\n")
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
