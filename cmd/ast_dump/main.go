// Command ast_dump prints an indented tree for one AST file, for
// developers inspecting cc_parse's output directly (grounded on
// original_source's src/tools/ast_dump.c — not part of the compiler
// pipeline itself).
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zealcc/zcc/internal/ast"
	"github.com/zealcc/zcc/internal/astfile"
	"github.com/zealcc/zcc/internal/diag"
)

func binOpName(op ast.BinOp) string {
	switch op {
	case ast.OpAdd:
		return "OP_ADD"
	case ast.OpSub:
		return "OP_SUB"
	case ast.OpMul:
		return "OP_MUL"
	case ast.OpDiv:
		return "OP_DIV"
	case ast.OpMod:
		return "OP_MOD"
	case ast.OpAnd:
		return "OP_AND"
	case ast.OpOr:
		return "OP_OR"
	case ast.OpXor:
		return "OP_XOR"
	case ast.OpShl:
		return "OP_SHL"
	case ast.OpShr:
		return "OP_SHR"
	case ast.OpEq:
		return "OP_EQ"
	case ast.OpNe:
		return "OP_NE"
	case ast.OpLt:
		return "OP_LT"
	case ast.OpLe:
		return "OP_LE"
	case ast.OpGt:
		return "OP_GT"
	case ast.OpGe:
		return "OP_GE"
	case ast.OpLAnd:
		return "OP_LAND"
	case ast.OpLOr:
		return "OP_LOR"
	default:
		return "OP_UNKNOWN"
	}
}

func unaryOpName(op ast.UnOp) string {
	switch op {
	case ast.OpNeg:
		return "OP_NEG"
	case ast.OpNot:
		return "OP_NOT"
	case ast.OpLNot:
		return "OP_LNOT"
	case ast.OpAddr:
		return "OP_ADDR"
	case ast.OpDeref:
		return "OP_DEREF"
	case ast.OpPreInc:
		return "OP_PREINC"
	case ast.OpPreDec:
		return "OP_PREDEC"
	case ast.OpPostInc:
		return "OP_POSTINC"
	case ast.OpPostDec:
		return "OP_POSTDEC"
	default:
		return "OP_UNKNOWN"
	}
}

// formatType renders a type the way the C tool's format_type_info did:
// base name, "unsigned " prefix, trailing "*" per pointer level, and a
// "[N]" suffix for arrays.
func formatType(t *ast.Type) string {
	if t == nil {
		return "unknown"
	}
	var b strings.Builder
	depth := 0
	cur := t
	for cur.Kind == ast.KindPointer {
		depth++
		cur = cur.Elem
		if cur == nil {
			break
		}
	}
	arrayLen := 0
	if cur != nil && cur.Kind == ast.KindArray {
		arrayLen = cur.Len
		if cur.Elem != nil {
			cur = cur.Elem
		}
	}
	for cur != nil && cur.Kind == ast.KindPointer {
		depth++
		cur = cur.Elem
	}
	if cur != nil && cur.Unsigned && cur.Kind != ast.KindVoid {
		b.WriteString("unsigned ")
	}
	switch {
	case cur == nil:
		b.WriteString("unknown")
	case cur.Kind == ast.KindVoid:
		b.WriteString("void")
	case cur.Kind == ast.KindChar:
		b.WriteString("char")
	case cur.Kind == ast.KindShort:
		b.WriteString("short")
	case cur.Kind == ast.KindInt:
		b.WriteString("int")
	case cur.Kind == ast.KindLong:
		b.WriteString("long")
	default:
		b.WriteString("unknown")
	}
	for i := 0; i < depth; i++ {
		b.WriteByte('*')
	}
	if arrayLen > 0 {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(arrayLen))
		b.WriteByte(']')
	}
	return b.String()
}

func dump(w *strings.Builder, n ast.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch node := n.(type) {
	case *ast.Function:
		fmt.Fprintf(w, "%sAST_FUNCTION (name=%s, return_type=%s)\n", indent, node.Name, formatType(node.Ret))
		for _, p := range node.Params {
			dump(w, p, depth+1)
		}
		if node.Body != nil {
			dump(w, node.Body, depth+1)
		}
	case *ast.VarDecl:
		fmt.Fprintf(w, "%sAST_VAR_DECL (name=%s, var_type=%s)\n", indent, node.Name, formatType(node.Type))
		if node.Init != nil {
			dump(w, node.Init, depth+1)
		}
	case *ast.Compound:
		fmt.Fprintf(w, "%sAST_COMPOUND_STMT\n", indent)
		for _, s := range node.Stmts {
			dump(w, s, depth+1)
		}
	case *ast.Return:
		fmt.Fprintf(w, "%sAST_RETURN_STMT\n", indent)
		if node.Expr != nil {
			dump(w, node.Expr, depth+1)
		}
	case *ast.Break:
		fmt.Fprintf(w, "%sAST_BREAK_STMT\n", indent)
	case *ast.Continue:
		fmt.Fprintf(w, "%sAST_CONTINUE_STMT\n", indent)
	case *ast.Goto:
		fmt.Fprintf(w, "%sAST_GOTO_STMT (label=%s)\n", indent, node.Name)
	case *ast.Label:
		fmt.Fprintf(w, "%sAST_LABEL_STMT (label=%s)\n", indent, node.Name)
	case *ast.If:
		fmt.Fprintf(w, "%sAST_IF_STMT\n", indent)
		dump(w, node.Cond, depth+1)
		dump(w, node.Then, depth+1)
		if node.Else != nil {
			dump(w, node.Else, depth+1)
		}
	case *ast.While:
		fmt.Fprintf(w, "%sAST_WHILE_STMT\n", indent)
		dump(w, node.Cond, depth+1)
		dump(w, node.Body, depth+1)
	case *ast.For:
		fmt.Fprintf(w, "%sAST_FOR_STMT\n", indent)
		if node.Init != nil {
			dump(w, node.Init, depth+1)
		}
		if node.Cond != nil {
			dump(w, node.Cond, depth+1)
		}
		if node.Inc != nil {
			dump(w, node.Inc, depth+1)
		}
		dump(w, node.Body, depth+1)
	case *ast.Assign:
		fmt.Fprintf(w, "%sAST_ASSIGN\n", indent)
		dump(w, node.LValue, depth+1)
		dump(w, node.RValue, depth+1)
	case *ast.Call:
		fmt.Fprintf(w, "%sAST_CALL (name=%s)\n", indent, node.Name)
		for _, a := range node.Args {
			dump(w, a, depth+1)
		}
	case *ast.BinaryOp:
		fmt.Fprintf(w, "%sAST_BINARY_OP (op=%s)\n", indent, binOpName(node.Op))
		dump(w, node.Left, depth+1)
		dump(w, node.Right, depth+1)
	case *ast.UnaryOp:
		fmt.Fprintf(w, "%sAST_UNARY_OP (op=%s)\n", indent, unaryOpName(node.Op))
		dump(w, node.Operand, depth+1)
	case *ast.Identifier:
		fmt.Fprintf(w, "%sAST_IDENTIFIER (name=%s)\n", indent, node.Name)
	case *ast.Constant:
		fmt.Fprintf(w, "%sAST_CONSTANT (value=%d)\n", indent, node.Value)
	case *ast.StringLiteral:
		fmt.Fprintf(w, "%sAST_STRING_LITERAL (value=%s)\n", indent, node.Value)
	case *ast.ArrayAccess:
		fmt.Fprintf(w, "%sAST_ARRAY_ACCESS\n", indent)
		dump(w, node.Base, depth+1)
		dump(w, node.Index, depth+1)
	default:
		fmt.Fprintf(w, "%sAST_UNKNOWN\n", indent)
	}
}

func run(input string) (string, error) {
	rd, err := astfile.Open(input)
	if err != nil {
		return "", diag.New(diag.FileNotFound, "%s", err.Error())
	}
	defer rd.Close()

	prog, err := rd.ReadProgram()
	if err != nil {
		return "", err
	}

	var w strings.Builder
	w.WriteString("AST_PROGRAM\n")
	for _, decl := range prog.Decls {
		dump(&w, decl, 1)
	}
	return w.String(), nil
}

var command = &cobra.Command{
	Use:  "ast_dump <input.ast>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reporter := diag.NewReporter(os.Stdout, os.Stderr)
		text, err := run(args[0])
		if err != nil {
			reporter.Fatal("%s", err.Error())
			os.Exit(1)
		}
		reporter.Msg("%s", text)
		return nil
	},
}

func main() {
	command.SetUsageTemplate("Usage: ast_dump <input.ast>\n")
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
