// Package diag centralizes the stage diagnostics: the stable error
// kinds from the spec's error-handling design and the one-line,
// no-stack-trace reporting every stage uses on the error channel.
package diag

import (
	"fmt"
	"io"
)

// Code is the abstract error kind a stage can fail with.
type Code int

const (
	OK Code = iota
	FileNotFound
	Memory
	Syntax
	Semantic
	Codegen
	Internal
	InvalidArg
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case FileNotFound:
		return "FILE_NOT_FOUND"
	case Memory:
		return "MEMORY"
	case Syntax:
		return "SYNTAX"
	case Semantic:
		return "SEMANTIC"
	case Codegen:
		return "CODEGEN"
	case Internal:
		return "INTERNAL"
	case InvalidArg:
		return "INVALID_ARG"
	default:
		return "UNKNOWN"
	}
}

// Error pairs a stable Code with a human-readable message. Stages
// return *Error (not bare strings) so main() can map a failure to an
// exit code without re-parsing text.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Reporter is the single place each binary funnels user-visible
// output through, mirroring the teacher's main.go pattern of one
// fmt.Fprintln(os.Stderr, ...) call per failure site.
type Reporter struct {
	Out io.Writer
	Err io.Writer
}

func NewReporter(out, err io.Writer) *Reporter {
	return &Reporter{Out: out, Err: err}
}

// Error prints a recoverable diagnostic, prefixed per spec §7.
func (r *Reporter) Error(format string, args ...any) {
	fmt.Fprintf(r.Err, "ERROR: "+format+"\n", args...)
}

// Fatal prints a format/usage-level diagnostic with no prefix.
func (r *Reporter) Fatal(format string, args ...any) {
	fmt.Fprintf(r.Err, format+"\n", args...)
}

// Msg prints the one-line success report to the standard channel.
func (r *Reporter) Msg(format string, args ...any) {
	fmt.Fprintf(r.Out, format+"\n", args...)
}
