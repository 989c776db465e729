package astfile

import (
	"errors"

	"github.com/zealcc/zcc/internal/ast"
	"github.com/zealcc/zcc/internal/ioadapt"
)

// ErrUnknownTag is returned by SkipDecl when it encounters a tag byte
// outside the closed set in internal/ast — a fatal format error per
// spec.md §4.4.4.
var ErrUnknownTag = errors.New("astfile: unknown tag")

// Reader loads an AST file's header and string table up front, then
// serves either full-tree reconstruction or streaming per-declaration
// reads over the body (spec.md §4.4.3). Both modes need the string
// table before the body can be meaningfully decoded, so Open seeks
// ahead to load it, then seeks back to byte 16.
type Reader struct {
	r       *ioadapt.Reader
	Header  Header
	strings []string

	remaining uint16 // decl_count not yet consumed, set by BeginProgram
	started   bool
}

// Open reads the header and string table of path and positions the
// reader at the start of the body (byte 16), ready for ReadProgram or
// BeginProgram.
func Open(path string) (*Reader, error) {
	r, err := ioadapt.Open(path)
	if err != nil {
		return nil, err
	}
	rd := &Reader{r: r}
	if err := rd.readHeader(); err != nil {
		r.Close()
		return nil, err
	}
	if err := rd.loadStrings(); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.Seek(headerSize); err != nil {
		r.Close()
		return nil, err
	}
	return rd, nil
}

func (rd *Reader) Close() error { return rd.r.Close() }

func (rd *Reader) readHeader() error {
	var m [4]byte
	for i := range m {
		b, err := readByte(rd.r)
		if err != nil {
			return err
		}
		m[i] = b
	}
	if string(m[:]) != magic {
		return formatError("bad magic %q, want %q", m[:], magic)
	}
	version, err := readU8(rd.r)
	if err != nil {
		return err
	}
	if version != formatVer {
		return formatError("unsupported format version %d, want %d", version, formatVer)
	}
	if _, err := readU8(rd.r); err != nil { // reserved
		return err
	}
	if _, err := readU16(rd.r); err != nil { // flags
		return err
	}
	nodeCount, err := readU16(rd.r)
	if err != nil {
		return err
	}
	stringCount, err := readU16(rd.r)
	if err != nil {
		return err
	}
	off, err := readU32(rd.r)
	if err != nil {
		return err
	}
	rd.Header = Header{Version: version, NodeCount: nodeCount, StringCount: stringCount, StringTableOff: off}
	return nil
}

func (rd *Reader) loadStrings() error {
	if err := rd.r.Seek(rd.Header.StringTableOff); err != nil {
		return err
	}
	strs := make([]string, 0, rd.Header.StringCount)
	for i := uint16(0); i < rd.Header.StringCount; i++ {
		length, err := readU16(rd.r)
		if err != nil {
			return err
		}
		buf := make([]byte, length)
		for j := range buf {
			b, err := readByte(rd.r)
			if err != nil {
				return err
			}
			buf[j] = b
		}
		strs = append(strs, string(buf))
	}
	rd.strings = strs
	return nil
}

func (rd *Reader) lookupString(idx uint16) (string, error) {
	if int(idx) >= len(rd.strings) {
		return "", formatError("string index %d out of range (table has %d entries)", idx, len(rd.strings))
	}
	return rd.strings[idx], nil
}

// ReadProgram performs full-tree reconstruction (spec.md §4.4.3): the
// PROGRAM tag and decl_count, then decl_count declarations built into
// an owned *ast.Program.
func (rd *Reader) ReadProgram() (*ast.Program, error) {
	n, err := rd.BeginProgram()
	if err != nil {
		return nil, err
	}
	prog := &ast.Program{}
	for i := 0; i < n; i++ {
		decl, err := rd.ReadDecl()
		if err != nil {
			return nil, err
		}
		prog.Decls = append(prog.Decls, decl)
	}
	return prog, nil
}

// BeginProgram consumes the PROGRAM tag and decl_count, returning the
// number of declarations to expect from ReadDecl. This is the
// streaming entry point used by the semantic validator and code
// generator (spec.md §4.4.3).
func (rd *Reader) BeginProgram() (int, error) {
	tag, err := readU8(rd.r)
	if err != nil {
		return 0, err
	}
	if ast.Tag(tag) != ast.TagProgram {
		return 0, formatError("expected PROGRAM tag, got %d", tag)
	}
	count, err := readU16(rd.r)
	if err != nil {
		return 0, err
	}
	rd.remaining = count
	rd.started = true
	return int(count), nil
}

// ReadDecl deserializes one top-level declaration. Callers must call
// BeginProgram first.
func (rd *Reader) ReadDecl() (ast.Node, error) {
	if !rd.started {
		return nil, formatError("ReadDecl called before BeginProgram")
	}
	if rd.remaining == 0 {
		return nil, formatError("no more declarations to read")
	}
	rd.remaining--
	return readNode(rd.r, rd.strings)
}

// SkipDecl advances past one top-level declaration without building
// any node, for the semantic validator's thin structural check
// (spec.md §4.5). Returns ErrUnknownTag on an unrecognized tag.
func (rd *Reader) SkipDecl() error {
	if !rd.started {
		return formatError("SkipDecl called before BeginProgram")
	}
	if rd.remaining == 0 {
		return formatError("no more declarations to skip")
	}
	rd.remaining--
	return skipNode(rd.r)
}

// Remaining reports how many declarations BeginProgram promised that
// have not yet been consumed by ReadDecl/SkipDecl.
func (rd *Reader) Remaining() int { return int(rd.remaining) }

func readByte(r *ioadapt.Reader) (byte, error) {
	b := r.Next()
	if b < 0 {
		return 0, formatError("unexpected end of file")
	}
	return byte(b), nil
}

func readU8(r *ioadapt.Reader) (uint8, error) {
	b, err := readByte(r)
	return uint8(b), err
}

func readU16(r *ioadapt.Reader) (uint16, error) {
	lo, err := readByte(r)
	if err != nil {
		return 0, err
	}
	hi, err := readByte(r)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

func readI16(r *ioadapt.Reader) (int16, error) {
	u, err := readU16(r)
	return int16(u), err
}

func readU32(r *ioadapt.Reader) (uint32, error) {
	lo, err := readU16(r)
	if err != nil {
		return 0, err
	}
	hi, err := readU16(r)
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

func readTypeInfo(r *ioadapt.Reader) (*ast.Type, error) {
	base, err := readU8(r)
	if err != nil {
		return nil, err
	}
	unsigned := base&unsignedBit != 0
	base &^= unsignedBit
	depth, err := readU8(r)
	if err != nil {
		return nil, err
	}
	arrayLen, err := readU16(r)
	if err != nil {
		return nil, err
	}
	return decodeTypeTriple(base, unsigned, depth, arrayLen)
}

func readString(r *ioadapt.Reader, strs []string) (string, error) {
	idx, err := readU16(r)
	if err != nil {
		return "", err
	}
	if int(idx) >= len(strs) {
		return "", formatError("string index %d out of range (table has %d entries)", idx, len(strs))
	}
	return strs[idx], nil
}

// readNode recursively deserializes one node starting at its tag
// byte.
func readNode(r *ioadapt.Reader, strs []string) (ast.Node, error) {
	tagByte, err := readU8(r)
	if err != nil {
		return nil, err
	}
	switch ast.Tag(tagByte) {
	case ast.TagFunction:
		name, err := readString(r, strs)
		if err != nil {
			return nil, err
		}
		ret, err := readTypeInfo(r)
		if err != nil {
			return nil, err
		}
		paramCount, err := readU8(r)
		if err != nil {
			return nil, err
		}
		var params []*ast.VarDecl
		for i := uint8(0); i < paramCount; i++ {
			p, err := readNode(r, strs)
			if err != nil {
				return nil, err
			}
			pd, ok := p.(*ast.VarDecl)
			if !ok {
				return nil, formatError("function parameter is not a VAR_DECL")
			}
			params = append(params, pd)
		}
		body, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		bc, ok := body.(*ast.Compound)
		if !ok {
			return nil, formatError("function body is not a COMPOUND_STMT")
		}
		return &ast.Function{Name: name, Ret: ret, Params: params, Body: bc}, nil

	case ast.TagVarDecl:
		name, err := readString(r, strs)
		if err != nil {
			return nil, err
		}
		typ, err := readTypeInfo(r)
		if err != nil {
			return nil, err
		}
		hasInit, err := readU8(r)
		if err != nil {
			return nil, err
		}
		var init ast.Node
		if hasInit != 0 {
			init, err = readNode(r, strs)
			if err != nil {
				return nil, err
			}
		}
		return &ast.VarDecl{Name: name, Type: typ, Init: init}, nil

	case ast.TagCompoundStmt:
		count, err := readU16(r)
		if err != nil {
			return nil, err
		}
		stmts := make([]ast.Node, 0, count)
		for i := uint16(0); i < count; i++ {
			s, err := readNode(r, strs)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
		return &ast.Compound{Stmts: stmts}, nil

	case ast.TagReturnStmt:
		hasExpr, err := readU8(r)
		if err != nil {
			return nil, err
		}
		var expr ast.Node
		if hasExpr != 0 {
			expr, err = readNode(r, strs)
			if err != nil {
				return nil, err
			}
		}
		return &ast.Return{Expr: expr}, nil

	case ast.TagBreakStmt:
		return &ast.Break{}, nil

	case ast.TagContinueStmt:
		return &ast.Continue{}, nil

	case ast.TagGotoStmt:
		name, err := readString(r, strs)
		if err != nil {
			return nil, err
		}
		return &ast.Goto{Name: name}, nil

	case ast.TagLabelStmt:
		name, err := readString(r, strs)
		if err != nil {
			return nil, err
		}
		return &ast.Label{Name: name}, nil

	case ast.TagIfStmt:
		hasElse, err := readU8(r)
		if err != nil {
			return nil, err
		}
		cond, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		then, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		var els ast.Node
		if hasElse != 0 {
			els, err = readNode(r, strs)
			if err != nil {
				return nil, err
			}
		}
		return &ast.If{Cond: cond, Then: then, Else: els}, nil

	case ast.TagWhileStmt:
		cond, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		body, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		return &ast.While{Cond: cond, Body: body}, nil

	case ast.TagForStmt:
		hasInit, err := readU8(r)
		if err != nil {
			return nil, err
		}
		hasCond, err := readU8(r)
		if err != nil {
			return nil, err
		}
		hasInc, err := readU8(r)
		if err != nil {
			return nil, err
		}
		var init, cond, inc ast.Node
		if hasInit != 0 {
			if init, err = readNode(r, strs); err != nil {
				return nil, err
			}
		}
		if hasCond != 0 {
			if cond, err = readNode(r, strs); err != nil {
				return nil, err
			}
		}
		if hasInc != 0 {
			if inc, err = readNode(r, strs); err != nil {
				return nil, err
			}
		}
		body, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		return &ast.For{Init: init, Cond: cond, Inc: inc, Body: body}, nil

	case ast.TagAssign:
		lv, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		rv, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{LValue: lv, RValue: rv}, nil

	case ast.TagCall:
		name, err := readString(r, strs)
		if err != nil {
			return nil, err
		}
		argCount, err := readU8(r)
		if err != nil {
			return nil, err
		}
		args := make([]ast.Node, 0, argCount)
		for i := uint8(0); i < argCount; i++ {
			a, err := readNode(r, strs)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return &ast.Call{Name: name, Args: args}, nil

	case ast.TagBinaryOp:
		op, err := readU8(r)
		if err != nil {
			return nil, err
		}
		left, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		right, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOp{Op: ast.BinOp(op), Left: left, Right: right}, nil

	case ast.TagUnaryOp:
		op, err := readU8(r)
		if err != nil {
			return nil, err
		}
		operand, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: ast.UnOp(op), Operand: operand}, nil

	case ast.TagIdentifier:
		name, err := readString(r, strs)
		if err != nil {
			return nil, err
		}
		return &ast.Identifier{Name: name}, nil

	case ast.TagConstant:
		v, err := readI16(r)
		if err != nil {
			return nil, err
		}
		return &ast.Constant{Value: v}, nil

	case ast.TagStringLiteral:
		s, err := readString(r, strs)
		if err != nil {
			return nil, err
		}
		return &ast.StringLiteral{Value: s}, nil

	case ast.TagArrayAccess:
		base, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		index, err := readNode(r, strs)
		if err != nil {
			return nil, err
		}
		return &ast.ArrayAccess{Base: base, Index: index}, nil

	default:
		return nil, ErrUnknownTag
	}
}

// skipNode advances past one node (tag included) without allocating
// any AST value — the table-driven walker of spec.md §4.4.3.
func skipNode(r *ioadapt.Reader) error {
	tagByte, err := readU8(r)
	if err != nil {
		return err
	}
	skipU16 := func() error { _, err := readU16(r); return err }
	skipU8 := func() error { _, err := readU8(r); return err }
	skipType := func() error {
		if err := skipU8(); err != nil {
			return err
		}
		if err := skipU8(); err != nil {
			return err
		}
		return skipU16()
	}

	switch ast.Tag(tagByte) {
	case ast.TagFunction:
		if err := skipU16(); err != nil { // name_idx
			return err
		}
		if err := skipType(); err != nil {
			return err
		}
		paramCount, err := readU8(r)
		if err != nil {
			return err
		}
		for i := uint8(0); i < paramCount; i++ {
			if err := skipNode(r); err != nil {
				return err
			}
		}
		return skipNode(r) // body

	case ast.TagVarDecl:
		if err := skipU16(); err != nil {
			return err
		}
		if err := skipType(); err != nil {
			return err
		}
		hasInit, err := readU8(r)
		if err != nil {
			return err
		}
		if hasInit != 0 {
			return skipNode(r)
		}
		return nil

	case ast.TagCompoundStmt:
		count, err := readU16(r)
		if err != nil {
			return err
		}
		for i := uint16(0); i < count; i++ {
			if err := skipNode(r); err != nil {
				return err
			}
		}
		return nil

	case ast.TagReturnStmt:
		hasExpr, err := readU8(r)
		if err != nil {
			return err
		}
		if hasExpr != 0 {
			return skipNode(r)
		}
		return nil

	case ast.TagBreakStmt, ast.TagContinueStmt:
		return nil

	case ast.TagGotoStmt, ast.TagLabelStmt, ast.TagIdentifier, ast.TagStringLiteral:
		return skipU16()

	case ast.TagIfStmt:
		hasElse, err := readU8(r)
		if err != nil {
			return err
		}
		if err := skipNode(r); err != nil { // cond
			return err
		}
		if err := skipNode(r); err != nil { // then
			return err
		}
		if hasElse != 0 {
			return skipNode(r)
		}
		return nil

	case ast.TagWhileStmt:
		if err := skipNode(r); err != nil {
			return err
		}
		return skipNode(r)

	case ast.TagForStmt:
		hasInit, err := readU8(r)
		if err != nil {
			return err
		}
		hasCond, err := readU8(r)
		if err != nil {
			return err
		}
		hasInc, err := readU8(r)
		if err != nil {
			return err
		}
		if hasInit != 0 {
			if err := skipNode(r); err != nil {
				return err
			}
		}
		if hasCond != 0 {
			if err := skipNode(r); err != nil {
				return err
			}
		}
		if hasInc != 0 {
			if err := skipNode(r); err != nil {
				return err
			}
		}
		return skipNode(r) // body

	case ast.TagAssign:
		if err := skipNode(r); err != nil {
			return err
		}
		return skipNode(r)

	case ast.TagCall:
		if err := skipU16(); err != nil {
			return err
		}
		argCount, err := readU8(r)
		if err != nil {
			return err
		}
		for i := uint8(0); i < argCount; i++ {
			if err := skipNode(r); err != nil {
				return err
			}
		}
		return nil

	case ast.TagBinaryOp:
		if err := skipU8(); err != nil { // op
			return err
		}
		if err := skipNode(r); err != nil {
			return err
		}
		return skipNode(r)

	case ast.TagUnaryOp:
		if err := skipU8(); err != nil { // op
			return err
		}
		return skipNode(r)

	case ast.TagConstant:
		_, err := readI16(r)
		return err

	case ast.TagArrayAccess:
		if err := skipNode(r); err != nil {
			return err
		}
		return skipNode(r)

	default:
		return ErrUnknownTag
	}
}
