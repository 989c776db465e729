package astfile

import (
	"github.com/zealcc/zcc/internal/ast"
)

// DeclSource yields top-level declarations one at a time, returning
// (nil, nil) once exhausted. cmd/cc_parse adapts *parser.Parser's
// ParseNext to this interface; the writer never holds more than one declaration's subtree in
// memory at a time (spec.md §4.4.2).
type DeclSource interface {
	Next() (ast.Node, error)
}

// outputSink is the write-side contract the writer emits onto;
// *ioadapt.Output satisfies it.
type outputSink interface {
	Write(p []byte) error
}

// Write runs the two-pass protocol of spec.md §4.4.2: measure consumes
// one DeclSource to compute node_count, string_count, and
// string_table_off without holding the tree, then emit re-parses the
// same source from a fresh DeclSource and writes the header, body,
// and string table to out.
//
// measure and emit must walk an identical sequence of declarations —
// the caller is expected to build both from independent re-opens of
// the same input, exactly as original_source's ast_writer does.
func Write(measure, emit DeclSource, out outputSink) error {
	st := newStringTable()
	nodeCount := 1 // the PROGRAM node itself
	declSizes := make([]int, 0, 32)

	for {
		decl, err := measure.Next()
		if err != nil {
			return err
		}
		if decl == nil {
			break
		}
		size, err := measureNode(decl, st)
		if err != nil {
			return err
		}
		declSizes = append(declSizes, size)
		nodeCount += countNodes(decl)
	}
	st.freeze()

	bodySize := 0
	for _, s := range declSizes {
		bodySize += s
	}
	stringTableOff := uint32(headerSize) + 1 + 2 + uint32(bodySize)

	if err := writeHeader(out, Header{
		Version:        formatVer,
		NodeCount:      uint16(nodeCount),
		StringCount:    uint16(st.count()),
		StringTableOff: stringTableOff,
	}); err != nil {
		return err
	}

	if err := out.Write(putU8(uint8(ast.TagProgram))); err != nil {
		return err
	}
	if err := out.Write(putU16(uint16(len(declSizes)))); err != nil {
		return err
	}

	for {
		decl, err := emit.Next()
		if err != nil {
			return err
		}
		if decl == nil {
			break
		}
		if err := emitNode(decl, st, out); err != nil {
			return err
		}
	}

	for _, s := range st.order {
		if err := out.Write(putU16(uint16(len(s)))); err != nil {
			return err
		}
		if err := out.Write([]byte(s)); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(out outputSink, h Header) error {
	if err := out.Write([]byte(magic)); err != nil {
		return err
	}
	if err := out.Write(putU8(h.Version)); err != nil {
		return err
	}
	if err := out.Write(putU8(0)); err != nil { // reserved
		return err
	}
	if err := out.Write(putU16(0)); err != nil { // flags
		return err
	}
	if err := out.Write(putU16(h.NodeCount)); err != nil {
		return err
	}
	if err := out.Write(putU16(h.StringCount)); err != nil {
		return err
	}
	return out.Write(putU32(h.StringTableOff))
}
