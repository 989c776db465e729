// Package astfile implements the binary AST codec (spec.md §4.4): a
// 16-byte header, a recursively tagged node stream starting at byte
// 16, and a deferred string table. The writer runs the two-pass
// measure-then-emit protocol described in §4.4.2; the reader supports
// full-tree reconstruction, streaming per-declaration reads, and a
// table-driven skip walker, matching §4.4.3.
package astfile

import (
	"github.com/zealcc/zcc/internal/ast"
	"github.com/zealcc/zcc/internal/diag"
)

const (
	magic      = "ZAST"
	formatVer  = 1
	headerSize = 16
)

// Header mirrors the 16-byte on-disk layout of spec.md §4.4.
type Header struct {
	Version        uint8
	NodeCount      uint16
	StringCount    uint16
	StringTableOff uint32
}

func formatError(format string, args ...any) *diag.Error {
	return diag.New(diag.Internal, format, args...)
}

// Type wire encoding: base(1 byte, bit7=unsigned) | depth(1 byte) |
// array_len(u16) — a fixed 4-byte TypeInfo triple (spec.md §4.4).
const (
	typeInfoSize = 4

	baseInt  = 1
	baseChar = 2
	baseVoid = 3
	unsignedBit = 0x80
)

// encodeTypeTriple flattens an *ast.Type into the wire (base, depth,
// array_len) triple. short and long both narrow to the wire's "int"
// base code — the wire format has no distinct short/long base value
// (spec.md §9's char-size open question).
func encodeTypeTriple(t *ast.Type) (base uint8, unsigned bool, depth uint8, arrayLen uint16) {
	if t.Kind == ast.KindArray {
		arrayLen = uint16(t.Len)
		t = t.Elem
	}
	for t != nil && t.Kind == ast.KindPointer {
		depth++
		t = t.Elem
	}
	if t == nil {
		return baseInt, false, depth, arrayLen
	}
	switch t.Kind {
	case ast.KindChar:
		return baseChar, t.Unsigned, depth, arrayLen
	case ast.KindVoid:
		return baseVoid, false, depth, arrayLen
	default: // short, int, long all narrow to the wire's int code
		return baseInt, t.Unsigned, depth, arrayLen
	}
}

// decodeTypeTriple reconstructs an *ast.Type from a wire triple.
func decodeTypeTriple(base uint8, unsigned bool, depth uint8, arrayLen uint16) (*ast.Type, error) {
	var scalar *ast.Type
	switch base {
	case baseInt:
		scalar = ast.Basic(ast.KindInt, unsigned)
	case baseChar:
		scalar = ast.Basic(ast.KindChar, unsigned)
	case baseVoid:
		scalar = ast.Basic(ast.KindVoid, false)
	default:
		return nil, formatError("unknown type base code %d", base)
	}
	t := scalar
	for i := uint8(0); i < depth; i++ {
		t = ast.Pointer(t)
	}
	if arrayLen > 0 {
		t = ast.Array(t, int(arrayLen))
	}
	return t, nil
}
