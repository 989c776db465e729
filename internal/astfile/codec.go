package astfile

import (
	"encoding/binary"

	"github.com/zealcc/zcc/internal/ast"
)

func putU8(v uint8) []byte { return []byte{v} }

func putU16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func putI16(v int16) []byte { return putU16(uint16(v)) }

func putU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func putTypeInfo(t *ast.Type) []byte {
	base, unsigned, depth, arrayLen := encodeTypeTriple(t)
	if unsigned {
		base |= unsignedBit
	}
	out := append([]byte{base, depth}, putU16(arrayLen)...)
	return out
}

// measureNode computes the exact encoded byte size of n (tag included)
// and interns every string it references, per spec.md §4.4.2's
// measure pass.
func measureNode(n ast.Node, st *stringTable) (int, error) {
	size := 1 // tag byte
	switch v := n.(type) {
	case *ast.Function:
		if _, err := st.intern(v.Name); err != nil {
			return 0, err
		}
		size += 2 + typeInfoSize + 1 // name_idx, ret type, param_count
		for _, p := range v.Params {
			n, err := measureNode(p, st)
			if err != nil {
				return 0, err
			}
			size += n
		}
		n, err := measureNode(v.Body, st)
		if err != nil {
			return 0, err
		}
		size += n

	case *ast.VarDecl:
		if _, err := st.intern(v.Name); err != nil {
			return 0, err
		}
		size += 2 + typeInfoSize + 1 // name_idx, var_type, has_init
		if v.Init != nil {
			n, err := measureNode(v.Init, st)
			if err != nil {
				return 0, err
			}
			size += n
		}

	case *ast.Compound:
		size += 2 // stmt_count
		for _, s := range v.Stmts {
			n, err := measureNode(s, st)
			if err != nil {
				return 0, err
			}
			size += n
		}

	case *ast.Return:
		size += 1
		if v.Expr != nil {
			n, err := measureNode(v.Expr, st)
			if err != nil {
				return 0, err
			}
			size += n
		}

	case *ast.Break, *ast.Continue:
		// no payload

	case *ast.Goto:
		if _, err := st.intern(v.Name); err != nil {
			return 0, err
		}
		size += 2

	case *ast.Label:
		if _, err := st.intern(v.Name); err != nil {
			return 0, err
		}
		size += 2

	case *ast.If:
		size += 1
		n, err := measureNode(v.Cond, st)
		if err != nil {
			return 0, err
		}
		size += n
		n, err = measureNode(v.Then, st)
		if err != nil {
			return 0, err
		}
		size += n
		if v.Else != nil {
			n, err = measureNode(v.Else, st)
			if err != nil {
				return 0, err
			}
			size += n
		}

	case *ast.While:
		n, err := measureNode(v.Cond, st)
		if err != nil {
			return 0, err
		}
		size += n
		n, err = measureNode(v.Body, st)
		if err != nil {
			return 0, err
		}
		size += n

	case *ast.For:
		size += 3
		if v.Init != nil {
			n, err := measureNode(v.Init, st)
			if err != nil {
				return 0, err
			}
			size += n
		}
		if v.Cond != nil {
			n, err := measureNode(v.Cond, st)
			if err != nil {
				return 0, err
			}
			size += n
		}
		if v.Inc != nil {
			n, err := measureNode(v.Inc, st)
			if err != nil {
				return 0, err
			}
			size += n
		}
		n, err := measureNode(v.Body, st)
		if err != nil {
			return 0, err
		}
		size += n

	case *ast.Assign:
		n, err := measureNode(v.LValue, st)
		if err != nil {
			return 0, err
		}
		size += n
		n, err = measureNode(v.RValue, st)
		if err != nil {
			return 0, err
		}
		size += n

	case *ast.Call:
		if _, err := st.intern(v.Name); err != nil {
			return 0, err
		}
		size += 2 + 1 // name_idx, arg_count
		for _, a := range v.Args {
			n, err := measureNode(a, st)
			if err != nil {
				return 0, err
			}
			size += n
		}

	case *ast.BinaryOp:
		size += 1
		n, err := measureNode(v.Left, st)
		if err != nil {
			return 0, err
		}
		size += n
		n, err = measureNode(v.Right, st)
		if err != nil {
			return 0, err
		}
		size += n

	case *ast.UnaryOp:
		size += 1
		n, err := measureNode(v.Operand, st)
		if err != nil {
			return 0, err
		}
		size += n

	case *ast.Identifier:
		if _, err := st.intern(v.Name); err != nil {
			return 0, err
		}
		size += 2

	case *ast.Constant:
		size += 2

	case *ast.StringLiteral:
		if _, err := st.intern(v.Value); err != nil {
			return 0, err
		}
		size += 2

	case *ast.ArrayAccess:
		n, err := measureNode(v.Base, st)
		if err != nil {
			return 0, err
		}
		size += n
		n, err = measureNode(v.Index, st)
		if err != nil {
			return 0, err
		}
		size += n

	default:
		return 0, formatError("unknown node type %T", n)
	}
	return size, nil
}

// countNodes returns the total node count of n and its subtree, for
// the header's node_count field.
func countNodes(n ast.Node) int {
	switch v := n.(type) {
	case *ast.Function:
		c := 1
		for _, p := range v.Params {
			c += countNodes(p)
		}
		c += countNodes(v.Body)
		return c
	case *ast.VarDecl:
		c := 1
		if v.Init != nil {
			c += countNodes(v.Init)
		}
		return c
	case *ast.Compound:
		c := 1
		for _, s := range v.Stmts {
			c += countNodes(s)
		}
		return c
	case *ast.Return:
		c := 1
		if v.Expr != nil {
			c += countNodes(v.Expr)
		}
		return c
	case *ast.If:
		c := 1 + countNodes(v.Cond) + countNodes(v.Then)
		if v.Else != nil {
			c += countNodes(v.Else)
		}
		return c
	case *ast.While:
		return 1 + countNodes(v.Cond) + countNodes(v.Body)
	case *ast.For:
		c := 1
		if v.Init != nil {
			c += countNodes(v.Init)
		}
		if v.Cond != nil {
			c += countNodes(v.Cond)
		}
		if v.Inc != nil {
			c += countNodes(v.Inc)
		}
		c += countNodes(v.Body)
		return c
	case *ast.Assign:
		return 1 + countNodes(v.LValue) + countNodes(v.RValue)
	case *ast.Call:
		c := 1
		for _, a := range v.Args {
			c += countNodes(a)
		}
		return c
	case *ast.BinaryOp:
		return 1 + countNodes(v.Left) + countNodes(v.Right)
	case *ast.UnaryOp:
		return 1 + countNodes(v.Operand)
	case *ast.ArrayAccess:
		return 1 + countNodes(v.Base) + countNodes(v.Index)
	default:
		return 1 // Break, Continue, Goto, Label, Identifier, Constant, StringLiteral
	}
}

// emitNode writes n (tag included) to out, resolving strings against
// the frozen table built during the measure pass.
func emitNode(n ast.Node, st *stringTable, out outputSink) error {
	write := func(b []byte) error { return out.Write(b) }
	idx := func(s string) ([]byte, error) {
		i, err := st.intern(s)
		if err != nil {
			return nil, err
		}
		return putU16(i), nil
	}

	switch v := n.(type) {
	case *ast.Function:
		if err := write(putU8(uint8(ast.TagFunction))); err != nil {
			return err
		}
		b, err := idx(v.Name)
		if err != nil {
			return err
		}
		if err := write(b); err != nil {
			return err
		}
		if err := write(putTypeInfo(v.Ret)); err != nil {
			return err
		}
		if err := write(putU8(uint8(len(v.Params)))); err != nil {
			return err
		}
		for _, p := range v.Params {
			if err := emitNode(p, st, out); err != nil {
				return err
			}
		}
		return emitNode(v.Body, st, out)

	case *ast.VarDecl:
		if err := write(putU8(uint8(ast.TagVarDecl))); err != nil {
			return err
		}
		b, err := idx(v.Name)
		if err != nil {
			return err
		}
		if err := write(b); err != nil {
			return err
		}
		if err := write(putTypeInfo(v.Type)); err != nil {
			return err
		}
		hasInit := uint8(0)
		if v.Init != nil {
			hasInit = 1
		}
		if err := write(putU8(hasInit)); err != nil {
			return err
		}
		if v.Init != nil {
			return emitNode(v.Init, st, out)
		}
		return nil

	case *ast.Compound:
		if err := write(putU8(uint8(ast.TagCompoundStmt))); err != nil {
			return err
		}
		if err := write(putU16(uint16(len(v.Stmts)))); err != nil {
			return err
		}
		for _, s := range v.Stmts {
			if err := emitNode(s, st, out); err != nil {
				return err
			}
		}
		return nil

	case *ast.Return:
		if err := write(putU8(uint8(ast.TagReturnStmt))); err != nil {
			return err
		}
		hasExpr := uint8(0)
		if v.Expr != nil {
			hasExpr = 1
		}
		if err := write(putU8(hasExpr)); err != nil {
			return err
		}
		if v.Expr != nil {
			return emitNode(v.Expr, st, out)
		}
		return nil

	case *ast.Break:
		return write(putU8(uint8(ast.TagBreakStmt)))

	case *ast.Continue:
		return write(putU8(uint8(ast.TagContinueStmt)))

	case *ast.Goto:
		if err := write(putU8(uint8(ast.TagGotoStmt))); err != nil {
			return err
		}
		b, err := idx(v.Name)
		if err != nil {
			return err
		}
		return write(b)

	case *ast.Label:
		if err := write(putU8(uint8(ast.TagLabelStmt))); err != nil {
			return err
		}
		b, err := idx(v.Name)
		if err != nil {
			return err
		}
		return write(b)

	case *ast.If:
		if err := write(putU8(uint8(ast.TagIfStmt))); err != nil {
			return err
		}
		hasElse := uint8(0)
		if v.Else != nil {
			hasElse = 1
		}
		if err := write(putU8(hasElse)); err != nil {
			return err
		}
		if err := emitNode(v.Cond, st, out); err != nil {
			return err
		}
		if err := emitNode(v.Then, st, out); err != nil {
			return err
		}
		if v.Else != nil {
			return emitNode(v.Else, st, out)
		}
		return nil

	case *ast.While:
		if err := write(putU8(uint8(ast.TagWhileStmt))); err != nil {
			return err
		}
		if err := emitNode(v.Cond, st, out); err != nil {
			return err
		}
		return emitNode(v.Body, st, out)

	case *ast.For:
		if err := write(putU8(uint8(ast.TagForStmt))); err != nil {
			return err
		}
		flag := func(n ast.Node) uint8 {
			if n != nil {
				return 1
			}
			return 0
		}
		if err := write(putU8(flag(v.Init))); err != nil {
			return err
		}
		if err := write(putU8(flag(v.Cond))); err != nil {
			return err
		}
		if err := write(putU8(flag(v.Inc))); err != nil {
			return err
		}
		if v.Init != nil {
			if err := emitNode(v.Init, st, out); err != nil {
				return err
			}
		}
		if v.Cond != nil {
			if err := emitNode(v.Cond, st, out); err != nil {
				return err
			}
		}
		if v.Inc != nil {
			if err := emitNode(v.Inc, st, out); err != nil {
				return err
			}
		}
		return emitNode(v.Body, st, out)

	case *ast.Assign:
		if err := write(putU8(uint8(ast.TagAssign))); err != nil {
			return err
		}
		if err := emitNode(v.LValue, st, out); err != nil {
			return err
		}
		return emitNode(v.RValue, st, out)

	case *ast.Call:
		if err := write(putU8(uint8(ast.TagCall))); err != nil {
			return err
		}
		b, err := idx(v.Name)
		if err != nil {
			return err
		}
		if err := write(b); err != nil {
			return err
		}
		if err := write(putU8(uint8(len(v.Args)))); err != nil {
			return err
		}
		for _, a := range v.Args {
			if err := emitNode(a, st, out); err != nil {
				return err
			}
		}
		return nil

	case *ast.BinaryOp:
		if err := write(putU8(uint8(ast.TagBinaryOp))); err != nil {
			return err
		}
		if err := write(putU8(uint8(v.Op))); err != nil {
			return err
		}
		if err := emitNode(v.Left, st, out); err != nil {
			return err
		}
		return emitNode(v.Right, st, out)

	case *ast.UnaryOp:
		if err := write(putU8(uint8(ast.TagUnaryOp))); err != nil {
			return err
		}
		if err := write(putU8(uint8(v.Op))); err != nil {
			return err
		}
		return emitNode(v.Operand, st, out)

	case *ast.Identifier:
		if err := write(putU8(uint8(ast.TagIdentifier))); err != nil {
			return err
		}
		b, err := idx(v.Name)
		if err != nil {
			return err
		}
		return write(b)

	case *ast.Constant:
		if err := write(putU8(uint8(ast.TagConstant))); err != nil {
			return err
		}
		return write(putI16(v.Value))

	case *ast.StringLiteral:
		if err := write(putU8(uint8(ast.TagStringLiteral))); err != nil {
			return err
		}
		b, err := idx(v.Value)
		if err != nil {
			return err
		}
		return write(b)

	case *ast.ArrayAccess:
		if err := write(putU8(uint8(ast.TagArrayAccess))); err != nil {
			return err
		}
		if err := emitNode(v.Base, st, out); err != nil {
			return err
		}
		return emitNode(v.Index, st, out)

	default:
		return formatError("unknown node type %T", n)
	}
}
