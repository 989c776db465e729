// Package semantic implements the thin structural validator of
// spec.md §4.5: it confirms an AST file decodes as a well-formed
// PROGRAM whose declarations all skip cleanly, without building a
// tree or checking types. Richer typechecking is out of scope.
package semantic

import (
	"errors"

	"github.com/zealcc/zcc/internal/astfile"
	"github.com/zealcc/zcc/internal/diag"
)

// Validate opens path, walks every top-level declaration with the
// skip-node walker, and returns nil if the file is structurally
// sound. Any failure — bad magic, wrong version, an unknown tag, or a
// short read — is returned as a *diag.Error.
func Validate(path string) error {
	rd, err := astfile.Open(path)
	if err != nil {
		return toDiagError(err)
	}
	defer rd.Close()

	count, err := rd.BeginProgram()
	if err != nil {
		return toDiagError(err)
	}
	for i := 0; i < count; i++ {
		if err := rd.SkipDecl(); err != nil {
			return toDiagError(err)
		}
	}
	return nil
}

// toDiagError normalizes a reader failure to a *diag.Error. Format
// errors from astfile (a bad header, a short read) already carry
// diag.Internal and pass through unchanged; anything else (an unknown
// tag during skip, a file that cannot be opened) is a SEMANTIC failure
// per spec.md §4.5.
func toDiagError(err error) error {
	if err == nil {
		return nil
	}
	var de *diag.Error
	if errors.As(err, &de) {
		return err
	}
	return diag.New(diag.Semantic, "%s", err.Error())
}
