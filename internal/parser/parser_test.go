package parser

import (
	"testing"

	"github.com/zealcc/zcc/internal/ast"
	"github.com/zealcc/zcc/internal/lexer"
)

type sliceSource struct {
	data []byte
	pos  int
}

func (s *sliceSource) Next() int {
	if s.pos >= len(s.data) {
		return -1
	}
	b := s.data[s.pos]
	s.pos++
	return int(b)
}

func (s *sliceSource) Peek() int {
	if s.pos >= len(s.data) {
		return -1
	}
	return int(s.data[s.pos])
}

func parse(t *testing.T, src string) (*ast.Program, *Parser) {
	t.Helper()
	lex := lexer.New(&sliceSource{data: []byte(src)})
	p := New(lex, nil)
	prog := p.Parse()
	return prog, p
}

func TestParseEmptyFunction(t *testing.T) {
	prog, p := parse(t, "int main(void) { return 0; }")
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
	if len(prog.Decls) != 1 {
		t.Fatalf("got %d decls, want 1", len(prog.Decls))
	}
	fn, ok := prog.Decls[0].(*ast.Function)
	if !ok {
		t.Fatalf("decl is %T, want *ast.Function", prog.Decls[0])
	}
	if fn.Name != "main" || len(fn.Params) != 0 {
		t.Errorf("got %+v", fn)
	}
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(fn.Body.Stmts))
	}
	ret, ok := fn.Body.Stmts[0].(*ast.Return)
	if !ok {
		t.Fatalf("stmt is %T, want *ast.Return", fn.Body.Stmts[0])
	}
	c, ok := ret.Expr.(*ast.Constant)
	if !ok || c.Value != 0 {
		t.Errorf("got %+v, want Constant(0)", ret.Expr)
	}
}

func TestParseGlobalVarDecl(t *testing.T) {
	prog, p := parse(t, "int counter = 42;")
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
	v, ok := prog.Decls[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("decl is %T, want *ast.VarDecl", prog.Decls[0])
	}
	if v.Name != "counter" || v.Type.Kind != ast.KindInt {
		t.Errorf("got %+v", v)
	}
}

func TestParseArrayDecl(t *testing.T) {
	prog, p := parse(t, "char buf[16];")
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
	v := prog.Decls[0].(*ast.VarDecl)
	if v.Type.Kind != ast.KindArray || v.Type.Len != 16 || v.Type.Elem.Kind != ast.KindChar {
		t.Errorf("got %+v", v.Type)
	}
}

func TestParseMissingArrayLengthIsParseError(t *testing.T) {
	_, p := parse(t, "int main(void) { int x[]; return 0; }")
	if p.ErrorCount() == 0 {
		t.Fatalf("expected a parse error for missing array length")
	}
}

func TestParseParameterArrayDegradesToPointer(t *testing.T) {
	prog, p := parse(t, "int sum(int arr[], int n) { return 0; }")
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
	fn := prog.Decls[0].(*ast.Function)
	arr := fn.Params[0].Type
	if arr.Kind != ast.KindPointer || arr.Elem == nil || arr.Elem.Kind != ast.KindInt {
		t.Errorf("got %+v, want pointer(int)", arr)
	}
}

func TestParsePointerAndUnsignedTypes(t *testing.T) {
	prog, p := parse(t, "unsigned int *p;")
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
	v := prog.Decls[0].(*ast.VarDecl)
	if !v.Type.IsPointer() || !v.Type.Elem.Unsigned || v.Type.Elem.Kind != ast.KindInt {
		t.Errorf("got %+v", v.Type)
	}
}

func TestParseVoidCannotBeSigned(t *testing.T) {
	_, p := parse(t, "unsigned void f(void) { return; }")
	if p.ErrorCount() == 0 {
		t.Fatalf("expected a parse error for unsigned void")
	}
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 should bind as 1 + (2 * 3).
	prog, p := parse(t, "int x = 1 + 2 * 3;")
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
	v := prog.Decls[0].(*ast.VarDecl)
	top, ok := v.Init.(*ast.BinaryOp)
	if !ok || top.Op != ast.OpAdd {
		t.Fatalf("got %+v, want top-level Add", v.Init)
	}
	mul, ok := top.Right.(*ast.BinaryOp)
	if !ok || mul.Op != ast.OpMul {
		t.Errorf("got %+v, want right-hand Mul", top.Right)
	}
}

func TestParseAssignmentRightAssociative(t *testing.T) {
	prog, p := parse(t, "int main(void) { int a; int b; a = b = 1; return 0; }")
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
	fn := prog.Decls[0].(*ast.Function)
	assign, ok := fn.Body.Stmts[2].(*ast.Assign)
	if !ok {
		t.Fatalf("stmt is %T, want *ast.Assign", fn.Body.Stmts[2])
	}
	inner, ok := assign.RValue.(*ast.Assign)
	if !ok {
		t.Errorf("rvalue is %T, want nested *ast.Assign", assign.RValue)
	}
	_ = inner
}

func TestParseIfElseWhileFor(t *testing.T) {
	src := `int main(void) {
		if (1) { return 1; } else { return 2; }
		while (1) { break; }
		for (int i = 0; i < 10; i = i + 1) { continue; }
		return 0;
	}`
	_, p := parse(t, src)
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
}

func TestParseGotoAndLabel(t *testing.T) {
	src := `int main(void) {
		goto done;
		done:
		return 0;
	}`
	_, p := parse(t, src)
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
}

func TestParseCallWithArgs(t *testing.T) {
	prog, p := parse(t, "int f(int a, int b) { return g(a, b, 1); }")
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
	fn := prog.Decls[0].(*ast.Function)
	ret := fn.Body.Stmts[0].(*ast.Return)
	call, ok := ret.Expr.(*ast.Call)
	if !ok || call.Name != "g" || len(call.Args) != 3 {
		t.Errorf("got %+v", ret.Expr)
	}
}

func TestParseTooManyArgsIsParseError(t *testing.T) {
	_, p := parse(t, "int main(void) { return f(1,2,3,4,5,6,7,8,9); }")
	if p.ErrorCount() == 0 {
		t.Fatalf("expected a parse error for call arguments over the limit")
	}
}

func TestParseTooManyParamsIsParseError(t *testing.T) {
	_, p := parse(t, "int f(int a, int b, int c, int d, int e, int f2, int g, int h, int i) { return 0; }")
	if p.ErrorCount() == 0 {
		t.Fatalf("expected a parse error for parameters over the limit")
	}
}

func TestParseArrayAccessAndPointerOps(t *testing.T) {
	prog, p := parse(t, "int f(int *p) { return *p + p[0]; }")
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
	fn := prog.Decls[0].(*ast.Function)
	ret := fn.Body.Stmts[0].(*ast.Return)
	bin, ok := ret.Expr.(*ast.BinaryOp)
	if !ok {
		t.Fatalf("got %T", ret.Expr)
	}
	if _, ok := bin.Left.(*ast.UnaryOp); !ok {
		t.Errorf("left is %T, want *ast.UnaryOp (deref)", bin.Left)
	}
	if _, ok := bin.Right.(*ast.ArrayAccess); !ok {
		t.Errorf("right is %T, want *ast.ArrayAccess", bin.Right)
	}
}

func TestParseStreamingEntryPoint(t *testing.T) {
	lex := lexer.New(&sliceSource{data: []byte("int a; int b; int c;")})
	p := New(lex, nil)
	var names []string
	for {
		decl := p.ParseNext()
		if decl == nil {
			break
		}
		names = append(names, decl.(*ast.VarDecl).Name)
	}
	if p.ErrorCount() != 0 {
		t.Fatalf("unexpected errors: %d", p.ErrorCount())
	}
	want := []string{"a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("decl %d: got %q, want %q", i, names[i], want[i])
		}
	}
}
