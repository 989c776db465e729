package codegen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zealcc/zcc/internal/ast"
	"github.com/zealcc/zcc/internal/ioadapt"
)

func generate(t *testing.T, prog *ast.Program) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.asm")
	out, err := ioadapt.CreateOutput(path)
	require.NoError(t, err, "CreateOutput")
	require.NoError(t, New(out, ioadapt.TargetHost).Generate(prog), "Generate")
	require.NoError(t, out.Close(), "Close")
	text, err := os.ReadFile(path)
	require.NoError(t, err, "ReadFile")
	return string(text)
}

func intFn(name string, body []ast.Node) *ast.Function {
	return &ast.Function{
		Name: name,
		Ret:  ast.Basic(ast.KindInt, false),
		Body: &ast.Compound{Stmts: body},
	}
}

// TestReturnZeroEmitsDirectEpilogue covers spec.md §8.2/8.3 scenario 1:
// a body whose only statement is `return 0` should fall straight
// through to the epilogue's own pop ix/ret, with no jump to a function
// end label.
func TestReturnZeroEmitsDirectEpilogue(t *testing.T) {
	prog := &ast.Program{Decls: []ast.Node{
		intFn("main", []ast.Node{&ast.Return{Expr: &ast.Constant{Value: 0}}}),
	}}
	text := generate(t, prog)

	assert.Contains(t, text, "main:", "missing main label")
	assert.Contains(t, text, "ld a, 0", "missing return value load")
	assert.Contains(t, text, "pop ix\n  ret", "missing epilogue")
	assert.NotContains(t, text, "jp _l", "unexpected jump to a function end label")
}

// TestEmptyBodyReturnsZero covers spec.md §8.2's boundary case: a
// function with no statements at all still emits ld a, 0 before its
// epilogue.
func TestEmptyBodyReturnsZero(t *testing.T) {
	fn := &ast.Function{Name: "empty", Ret: ast.Basic(ast.KindInt, false), Body: &ast.Compound{}}
	text := generate(t, &ast.Program{Decls: []ast.Node{fn}})

	assert.Contains(t, text, "empty:", "missing function label")
	assert.Contains(t, text, "ld a, 0", "expected ld a, 0 for an empty body")
}

// TestCallPushesArgsRightToLeft covers scenario 2: a call site pushes
// its arguments in reverse order, each zero-extended to 16 bits, and
// cleans the stack up with one pop per argument after the call.
func TestCallPushesArgsRightToLeft(t *testing.T) {
	add := intFn("add", []ast.Node{
		&ast.Return{Expr: &ast.BinaryOp{
			Op:    ast.OpAdd,
			Left:  &ast.Identifier{Name: "a"},
			Right: &ast.Identifier{Name: "b"},
		}},
	})
	add.Params = []*ast.VarDecl{
		{Name: "a", Type: ast.Basic(ast.KindInt, false)},
		{Name: "b", Type: ast.Basic(ast.KindInt, false)},
	}
	main := intFn("main", []ast.Node{
		&ast.Return{Expr: &ast.Call{Name: "add", Args: []ast.Node{
			&ast.Constant{Value: 2},
			&ast.Constant{Value: 3},
		}}},
	})
	text := generate(t, &ast.Program{Decls: []ast.Node{add, main}})

	assert.Contains(t, text, "call add", "missing call site")
	assert.GreaterOrEqual(t, strings.Count(text, "pop bc"), 2, "expected two arg-cleanup pops")
	assert.Contains(t, text, "push ix", "missing frame setup in add")
}

// TestBitwiseOperatorsLower covers scenario 3: every bitwise and
// logical operator bitwise.c exercises must lower to some Z80
// mnemonic, none of which original_source's codegen switch ever
// implemented.
func TestBitwiseOperatorsLower(t *testing.T) {
	ops := []ast.BinOp{ast.OpAnd, ast.OpOr, ast.OpXor, ast.OpShl, ast.OpShr, ast.OpLAnd, ast.OpLOr}
	for _, op := range ops {
		fn := intFn("f", []ast.Node{
			&ast.Return{Expr: &ast.BinaryOp{Op: op, Left: &ast.Constant{Value: 6}, Right: &ast.Constant{Value: 3}}},
		})
		text := generate(t, &ast.Program{Decls: []ast.Node{fn}})
		assert.NotEmptyf(t, strings.TrimSpace(text), "op %v produced no output", op)
	}
}

// TestGotoAndLabelMangleDistinctly covers scenario 4: a goto/label
// pair lowers to a jump and a mangled target label that can't collide
// with a generated branch label.
func TestGotoAndLabelMangleDistinctly(t *testing.T) {
	fn := intFn("f", []ast.Node{
		&ast.Goto{Name: "skip"},
		&ast.Assign{LValue: &ast.Identifier{Name: "x"}, RValue: &ast.Constant{Value: 2}},
		&ast.Label{Name: "skip"},
		&ast.Return{Expr: &ast.Constant{Value: 0}},
	})
	fn.Body.Stmts = append([]ast.Node{&ast.VarDecl{Name: "x", Type: ast.Basic(ast.KindInt, false), Init: &ast.Constant{Value: 0}}}, fn.Body.Stmts...)
	text := generate(t, &ast.Program{Decls: []ast.Node{fn}})

	assert.Contains(t, text, "_lbl_skip:", "missing mangled label")
	assert.Contains(t, text, "jp _lbl_skip", "missing goto jump")
}

// TestBreakOutsideLoopIsCodegenError covers the break/continue
// invariant: using either outside any loop nesting is a codegen
// failure, not a silent no-op.
func TestBreakOutsideLoopIsCodegenError(t *testing.T) {
	fn := intFn("f", []ast.Node{&ast.Break{}, &ast.Return{Expr: &ast.Constant{Value: 0}}})
	path := filepath.Join(t.TempDir(), "out.asm")
	out, err := ioadapt.CreateOutput(path)
	require.NoError(t, err, "CreateOutput")
	defer out.Close()
	err = New(out, ioadapt.TargetHost).Generate(&ast.Program{Decls: []ast.Node{fn}})
	assert.Error(t, err, "expected a codegen error for break outside a loop")
}

// TestBreakInsideLoopEmitsJumpToEndLabel covers scenario 5: break
// inside a while loop jumps to a label placed after the loop body.
func TestBreakInsideLoopEmitsJumpToEndLabel(t *testing.T) {
	fn := intFn("f", []ast.Node{
		&ast.While{
			Cond: &ast.Constant{Value: 1},
			Body: &ast.Compound{Stmts: []ast.Node{&ast.Break{}}},
		},
		&ast.Return{Expr: &ast.Constant{Value: 0}},
	})
	text := generate(t, &ast.Program{Decls: []ast.Node{fn}})
	assert.Contains(t, text, "jp ", "expected a jump for break")
	// _l0 is the function end label, _l1 the loop head, _l2 the loop end.
	assert.Contains(t, text, "  jp _l2\n", "expected break to jump to the loop end label")
	assert.Contains(t, text, "_l2:", "missing loop end label")
}

// TestGlobalPointerToStringLiteral covers scenario 6's pointer-global
// shape: a char* global initialized from a string literal emits a .dw
// pointing at the pooled string label.
func TestGlobalPointerToStringLiteral(t *testing.T) {
	vd := &ast.VarDecl{
		Name: "greeting",
		Type: ast.Pointer(ast.Basic(ast.KindChar, false)),
		Init: &ast.StringLiteral{Value: "hi"},
	}
	main := intFn("main", []ast.Node{&ast.Return{Expr: &ast.Constant{Value: 0}}})
	text := generate(t, &ast.Program{Decls: []ast.Node{vd, main}})

	assert.Contains(t, text, "_v_greeting:", "missing mangled global label")
	assert.Contains(t, text, "; String literals", "missing pooled string section")
}

// TestGlobalsVisibleToEarlierFunctions is the deliberate fix beyond
// original_source: a function textually before a global's declaration
// still resolves that global's pointer-ness correctly, because globals
// are pre-registered before any function body is lowered.
func TestGlobalsVisibleToEarlierFunctions(t *testing.T) {
	earlier := intFn("reads_it", []ast.Node{
		&ast.Return{Expr: &ast.UnaryOp{Op: ast.OpDeref, Operand: &ast.Identifier{Name: "p"}}},
	})
	global := &ast.VarDecl{
		Name: "p",
		Type: ast.Pointer(ast.Basic(ast.KindChar, false)),
		Init: &ast.Constant{Value: 0},
	}
	text := generate(t, &ast.Program{Decls: []ast.Node{earlier, global}})

	assert.Contains(t, text, "ld hl, (_v_p)", "expected a 16-bit pointer load for a global seen after its use")
}

// TestParamOffsetsShiftPastLocalsFrame is codegen's half of the frame-
// layout fix recorded in internal/symtab: a parameter in a function
// with locals sits further from the re-anchored IX than +4.
func TestParamOffsetsShiftPastLocalsFrame(t *testing.T) {
	fn := intFn("f", []ast.Node{
		&ast.VarDecl{Name: "local", Type: ast.Basic(ast.KindInt, false), Init: &ast.Constant{Value: 0}},
		&ast.Return{Expr: &ast.Identifier{Name: "p"}},
	})
	fn.Params = []*ast.VarDecl{{Name: "p", Type: ast.Basic(ast.KindInt, false)}}
	text := generate(t, &ast.Program{Decls: []ast.Node{fn}})

	assert.Contains(t, text, "ix+5", "expected param offset ix+5 (base 1 + 4)")
}
