package codegen

import (
	"github.com/zealcc/zcc/internal/ast"
	"github.com/zealcc/zcc/internal/diag"
	"github.com/zealcc/zcc/internal/symtab"
)

// lowerExpr lowers an expression node, leaving a scalar in A or a
// pointer in HL depending on shape (spec.md §4.6.4). Grounded on
// original_source's codegen_expression.
func (g *Generator) lowerExpr(n ast.Node) error {
	switch node := n.(type) {
	case *ast.Constant:
		g.emit("  ld a, %d\n", node.Value)
		return nil

	case *ast.Identifier:
		return g.lowerIdentifierLoad(node.Name)

	case *ast.UnaryOp:
		return g.lowerUnary(node)

	case *ast.BinaryOp:
		return g.lowerBinary(node)

	case *ast.Call:
		return g.lowerCall(node)

	case *ast.StringLiteral:
		return diag.New(diag.Codegen, "string literal used without index")

	case *ast.ArrayAccess:
		return g.lowerArrayAccess(node)

	case *ast.Assign:
		return g.lowerAssign(node)

	default:
		return diag.New(diag.Codegen, "unsupported expression node %T", n)
	}
}

// lowerIdentifierLoad loads a scalar identifier's value into A: a
// local/param loads from (ix+offset), a global loads from its
// mangled label.
func (g *Generator) lowerIdentifierLoad(name string) error {
	res := symtab.Lookup(g.fn, g.globals, name)
	switch res.Kind {
	case symtab.ResolutionLocal:
		g.emit("  ld a, (ix%+d)  ; Load local: %s\n", res.Local.Offset, name)
	case symtab.ResolutionParam:
		g.emit("  ld a, (ix%+d)  ; Load param: %s\n", res.Param.Offset, name)
	default:
		g.emit("  ld a, (_v_%s)  ; Load variable: %s\n", name, name)
	}
	return nil
}

func (g *Generator) lowerUnary(node *ast.UnaryOp) error {
	switch node.Op {
	case ast.OpDeref:
		id, ok := node.Operand.(*ast.Identifier)
		if !ok {
			return diag.New(diag.Codegen, "unsupported dereference operand")
		}
		if err := g.loadPointerToHL(id.Name); err != nil {
			return err
		}
		g.emit("  ld a, (hl)\n")
		return nil
	case ast.OpAddr:
		return diag.New(diag.Codegen, "address-of used without pointer assignment")
	case ast.OpNeg:
		if err := g.lowerExpr(node.Operand); err != nil {
			return err
		}
		g.emit("  neg\n")
		return nil
	case ast.OpNot:
		if err := g.lowerExpr(node.Operand); err != nil {
			return err
		}
		g.emit("  cpl\n")
		return nil
	case ast.OpLNot:
		if err := g.lowerExpr(node.Operand); err != nil {
			return err
		}
		set, done := g.newLabel(), g.newLabel()
		g.emit("  or a\n  jr nz, %s\n  ld a, 1\n  jr %s\n", set, done)
		g.emitLabel(set)
		g.emit("  ld a, 0\n")
		g.emitLabel(done)
		return nil
	case ast.OpPreInc, ast.OpPreDec, ast.OpPostInc, ast.OpPostDec:
		return g.lowerIncDec(node)
	default:
		return diag.New(diag.Codegen, "unsupported unary operator")
	}
}

// lowerIncDec lowers ++/-- on a plain identifier: load its current
// value, store back the adjusted one, and leave either the old value
// (postfix) or the new one (prefix) in A.
func (g *Generator) lowerIncDec(node *ast.UnaryOp) error {
	id, ok := node.Operand.(*ast.Identifier)
	if !ok {
		return diag.New(diag.Codegen, "unsupported increment/decrement operand")
	}
	mnemonic := "  inc a\n"
	if node.Op == ast.OpPreDec || node.Op == ast.OpPostDec {
		mnemonic = "  dec a\n"
	}
	res := symtab.Lookup(g.fn, g.globals, id.Name)

	if err := g.lowerIdentifierLoad(id.Name); err != nil {
		return err
	}
	if node.Op == ast.OpPreInc || node.Op == ast.OpPreDec {
		g.emit(mnemonic)
		return g.storeScalar(id.Name, res)
	}

	g.emit("  ld e, a\n")
	g.emit(mnemonic)
	if err := g.storeScalar(id.Name, res); err != nil {
		return err
	}
	g.emit("  ld a, e\n")
	return nil
}

// lowerBinary evaluates left into A, saves it, evaluates right into
// A, moves right into L and recovers left into A via the push-af/pop-af
// dance, then performs A op L — exactly original_source's register
// choreography.
func (g *Generator) lowerBinary(node *ast.BinaryOp) error {
	if err := g.lowerExpr(node.Left); err != nil {
		return err
	}
	g.emit("  push af\n")
	if err := g.lowerExpr(node.Right); err != nil {
		return err
	}
	g.emit("  ld l, a\n  pop af\n")

	switch node.Op {
	case ast.OpAdd:
		g.emit("  add a, l\n")
	case ast.OpSub:
		g.emit("  sub l\n")
	case ast.OpMul:
		g.emit("; Multiplication (A * L)\n  call __mul_a_l\n")
	case ast.OpDiv:
		g.emit("; Division (A / L)\n  call __div_a_l\n")
	case ast.OpMod:
		g.emit("; Modulo (A %% L)\n  call __mod_a_l\n")
	case ast.OpAnd:
		g.emit("  and l\n")
	case ast.OpOr:
		g.emit("  or l\n")
	case ast.OpXor:
		g.emit("  xor l\n")
	case ast.OpShl:
		g.emitShift("  sla a\n")
	case ast.OpShr:
		g.emitShift("  sra a\n")
	case ast.OpEq:
		g.emitCompare("equality", "cp l", "jr nz")
	case ast.OpNe:
		g.emitCompare("inequality", "cp l", "jr z")
	case ast.OpLt:
		g.emitCompare("less than", "cp l", "jr nc")
	case ast.OpGe:
		g.emitCompare("greater or equal", "cp l", "jr c")
	case ast.OpGt:
		g.emitGtOrLe(false)
	case ast.OpLe:
		g.emitGtOrLe(true)
	case ast.OpLAnd:
		g.emitLogical("and e")
	case ast.OpLOr:
		g.emitLogical("or e")
	default:
		return diag.New(diag.Codegen, "unsupported binary operator")
	}
	return nil
}

// emitShift lowers a variable-count shift with the Z80's native
// decrement-and-loop idiom: the count (already in L from the binary
// op dance) moves to B, and djnz repeats a single-bit shift B times.
// Neither bitwise op nor shift appears in original_source's codegen
// switch (it falls through to CC_ERROR_CODEGEN for both); this and
// the AND/OR/XOR cases above are this port's own lowering, grounded
// on the Z80 instruction set bitwise.c otherwise has no way to use.
func (g *Generator) emitShift(mnemonic string) {
	loop := g.newLabel()
	g.emit("  ld b, l\n")
	g.emitLabel(loop)
	g.emit(mnemonic)
	g.emit("  djnz %s\n", loop)
}

// emitCompare lowers a comparison whose true/false branches differ
// only in which conditional jump skips the "set 1" instruction
// (original_source's EQ/NE/LT/GE shapes).
func (g *Generator) emitCompare(name, test, jumpIfFalse string) {
	g.emit("; %s test (A vs L)\n  %s\n", name, test)
	g.emit("  ld a, 0\n")
	end := g.newLabel()
	g.emitJump(jumpIfFalse, end)
	g.emit("  ld a, 1\n")
	g.emitLabel(end)
}

// emitGtOrLe lowers GT/LE, which need two chained conditional jumps
// because a bare `sub`'s carry/zero flags alone can't distinguish
// "greater" from "equal" in one test.
func (g *Generator) emitGtOrLe(le bool) {
	name := "greater than"
	if le {
		name = "less or equal"
	}
	g.emit("; %s test (A vs L)\n  sub l\n", name)
	g.emit("  ld a, 0\n")
	end := g.newLabel()
	if !le {
		g.emitJump("jr z", end)
		g.emitJump("jr c", end)
		g.emit("  ld a, 1\n")
		g.emitLabel(end)
		return
	}
	set := g.newLabel()
	g.emitJump("jr z", set)
	g.emitJump("jr c", set)
	g.emitJump("jr", end)
	g.emitLabel(set)
	g.emit("  ld a, 1\n")
	g.emitLabel(end)
}

// emitLogical lowers && / || by strict (non-short-circuit) boolean
// evaluation, which spec.md explicitly allows: both sides already
// evaluated to A (left) and L (right) by the shared binary-op dance,
// this normalizes each to 0/1, stashes the left in E, then combines
// with a plain bitwise and/or — both booleans being 0/1 makes bitwise
// and logical combination identical.
func (g *Generator) emitLogical(combine string) {
	setA1, doneA := g.newLabel(), g.newLabel()
	g.emit("  or a\n  jr nz, %s\n  ld a, 0\n  jr %s\n", setA1, doneA)
	g.emitLabel(setA1)
	g.emit("  ld a, 1\n")
	g.emitLabel(doneA)
	g.emit("  ld e, a\n")

	setB1, doneB := g.newLabel(), g.newLabel()
	g.emit("  ld a, l\n  or a\n  jr nz, %s\n  ld a, 0\n  jr %s\n", setB1, doneB)
	g.emitLabel(setB1)
	g.emit("  ld a, 1\n")
	g.emitLabel(doneB)
	g.emit("  %s\n", combine)
}

// lowerCall pushes arguments right-to-left as zero-extended 16-bit
// words (H = 0), calls the function, then pops them back off (spec.md
// §4.6.1).
func (g *Generator) lowerCall(node *ast.Call) error {
	g.emit("; Call function: %s\n", node.Name)
	for i := len(node.Args) - 1; i >= 0; i-- {
		if err := g.lowerExpr(node.Args[i]); err != nil {
			return err
		}
		g.emit("  ld l, a\n  ld h, 0\n  push hl\n")
	}
	g.emit("  call %s\n", node.Name)
	for range node.Args {
		g.emit("  pop bc\n")
	}
	return nil
}

// lowerArrayAccess supports exactly the two shapes original_source
// does: a string-literal base with a constant index, or a
// pointer-typed identifier base with a constant index.
func (g *Generator) lowerArrayAccess(node *ast.ArrayAccess) error {
	index, ok := node.Index.(*ast.Constant)
	if !ok {
		return diag.New(diag.Codegen, "unsupported array access")
	}

	switch base := node.Base.(type) {
	case *ast.StringLiteral:
		label := g.internString(base.Value)
		g.emit("  ld hl, %s\n", label)
		g.emitOffsetAdd(int(index.Value))
		g.emit("  ld a, (hl)\n")
		return nil

	case *ast.Identifier:
		res := symtab.Lookup(g.fn, g.globals, base.Name)
		if !res.IsPointer {
			return diag.New(diag.Codegen, "unsupported array access")
		}
		if err := g.loadPointerToHL(base.Name); err != nil {
			return err
		}
		g.emitOffsetAdd(int(index.Value))
		g.emit("  ld a, (hl)\n")
		return nil

	default:
		return diag.New(diag.Codegen, "unsupported array access")
	}
}

func (g *Generator) emitOffsetAdd(offset int) {
	if offset == 0 {
		return
	}
	g.emit("  ld de, %d\n  add hl, de\n", offset)
}

// lowerAssign lowers the three assignment shapes: dereference
// lvalues, pointer-typed identifier lvalues (four accepted rvalue
// shapes), and scalar identifier lvalues.
func (g *Generator) lowerAssign(node *ast.Assign) error {
	if deref, ok := node.LValue.(*ast.UnaryOp); ok && deref.Op == ast.OpDeref {
		if err := g.lowerExpr(node.RValue); err != nil {
			return err
		}
		id, ok := deref.Operand.(*ast.Identifier)
		if !ok {
			return diag.New(diag.Codegen, "unsupported dereference assignment")
		}
		if err := g.loadPointerToHL(id.Name); err != nil {
			return err
		}
		g.emit("  ld (hl), a\n")
		return nil
	}

	id, ok := node.LValue.(*ast.Identifier)
	if !ok {
		return diag.New(diag.Codegen, "unsupported assignment target")
	}
	res := symtab.Lookup(g.fn, g.globals, id.Name)
	if res.IsPointer {
		return g.lowerPointerInit(id.Name, node.RValue)
	}

	if err := g.lowerExpr(node.RValue); err != nil {
		return err
	}
	return g.storeScalar(id.Name, res)
}

// lowerPointerInit lowers the four rvalue shapes a pointer-typed
// identifier accepts on assignment or declaration: a string literal
// (address of its pool label), &identifier, another pointer
// identifier (copy), or the constant 0 (null) — anything else is a
// codegen error, matching original_source's exhaustive shape check.
func (g *Generator) lowerPointerInit(name string, rvalue ast.Node) error {
	switch rv := rvalue.(type) {
	case *ast.StringLiteral:
		label := g.internString(rv.Value)
		g.emit("  ld hl, %s\n", label)
		return g.storePointerFromHL(name)

	case *ast.UnaryOp:
		if rv.Op != ast.OpAddr {
			return diag.New(diag.Codegen, "unsupported pointer assignment")
		}
		id, ok := rv.Operand.(*ast.Identifier)
		if !ok {
			return diag.New(diag.Codegen, "unsupported pointer assignment")
		}
		if err := g.addressOfIdentifier(id.Name); err != nil {
			return err
		}
		return g.storePointerFromHL(name)

	case *ast.Identifier:
		res := symtab.Lookup(g.fn, g.globals, rv.Name)
		if !res.IsPointer {
			return diag.New(diag.Codegen, "unsupported pointer assignment")
		}
		if err := g.loadPointerToHL(rv.Name); err != nil {
			return err
		}
		return g.storePointerFromHL(name)

	case *ast.Constant:
		if rv.Value != 0 {
			return diag.New(diag.Codegen, "unsupported pointer assignment")
		}
		g.emit("  ld hl, 0\n")
		return g.storePointerFromHL(name)

	default:
		return diag.New(diag.Codegen, "unsupported pointer assignment")
	}
}

// storeScalar stores A into a resolved scalar identifier's slot.
func (g *Generator) storeScalar(name string, res symtab.Resolution) error {
	switch res.Kind {
	case symtab.ResolutionLocal:
		g.emit("  ld (ix%+d), a\n", res.Local.Offset)
	case symtab.ResolutionParam:
		g.emit("  ld (ix%+d), a\n", res.Param.Offset)
	default:
		g.emit("  ld (_v_%s), a\n", name)
	}
	return nil
}

// loadPointerToHL loads a 2-byte pointer value into HL: locals/params
// load two adjacent (ix+offset) bytes, globals load a single 16-bit
// word from the mangled label.
func (g *Generator) loadPointerToHL(name string) error {
	res := symtab.Lookup(g.fn, g.globals, name)
	switch res.Kind {
	case symtab.ResolutionLocal:
		g.emit("  ld l, (ix%+d)\n  ld h, (ix%+d)\n", res.Local.Offset, res.Local.Offset+1)
	case symtab.ResolutionParam:
		g.emit("  ld l, (ix%+d)\n  ld h, (ix%+d)\n", res.Param.Offset, res.Param.Offset+1)
	default:
		g.emit("  ld hl, (_v_%s)\n", name)
	}
	return nil
}

// storePointerFromHL is the inverse of loadPointerToHL.
func (g *Generator) storePointerFromHL(name string) error {
	res := symtab.Lookup(g.fn, g.globals, name)
	switch res.Kind {
	case symtab.ResolutionLocal:
		g.emit("  ld (ix%+d), l\n  ld (ix%+d), h\n", res.Local.Offset, res.Local.Offset+1)
	case symtab.ResolutionParam:
		g.emit("  ld (ix%+d), l\n  ld (ix%+d), h\n", res.Param.Offset, res.Param.Offset+1)
	default:
		g.emit("  ld (_v_%s), hl\n", name)
	}
	return nil
}

// addressOfIdentifier computes &name into HL: for a local/param,
// IX plus its frame offset; for a global, its mangled label address.
func (g *Generator) addressOfIdentifier(name string) error {
	res := symtab.Lookup(g.fn, g.globals, name)
	switch res.Kind {
	case symtab.ResolutionLocal:
		g.emit("  push ix\n  pop hl\n")
		if res.Local.Offset != 0 {
			g.emit("  ld de, %d\n  add hl, de\n", res.Local.Offset)
		}
	case symtab.ResolutionParam:
		g.emit("  push ix\n  pop hl\n")
		if res.Param.Offset != 0 {
			g.emit("  ld de, %d\n  add hl, de\n", res.Param.Offset)
		}
	default:
		g.emit("  ld hl, _v_%s\n", name)
	}
	return nil
}
