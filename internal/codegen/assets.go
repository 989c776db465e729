package codegen

import _ "embed"

// crt0Asm and runtimeAsm are concatenated verbatim into every
// generated listing (spec.md §4.6 items 1 and 5); embedding them
// keeps the Go binary self-contained the way original_source's
// reader_open("runtime/crt0.asm") pulled them from a sibling file at
// compile time.
var (
	//go:embed runtime/crt0.asm
	crt0Asm string

	//go:embed runtime/runtime.asm
	runtimeAsm string
)
