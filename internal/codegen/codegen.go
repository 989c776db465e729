// Package codegen lowers a parsed program into Z80 assembly text
// (spec.md §4.6). It walks the same AST the parser builds — either
// read back whole via astfile.Reader.ReadProgram, since the two
// output passes (functions, then globals) both need every
// declaration in hand, the same shape original_source's
// codegen_generate loops over.
//
// Expressions leave their value in A (a 1-byte scalar) or HL (a
// 2-byte pointer); every local and parameter is 1 or 2 bytes
// depending on IsPointer, matching the char-size-accounting
// convention carried over from original_source (see DESIGN.md).
package codegen

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/zealcc/zcc/internal/ast"
	"github.com/zealcc/zcc/internal/diag"
	"github.com/zealcc/zcc/internal/ioadapt"
	"github.com/zealcc/zcc/internal/symtab"
)

// stringEntry is one pooled string literal: its generated label and
// its raw value, deduplicated by value during lowering.
type stringEntry struct {
	label string
	value string
}

// loopLabels is one nesting level's break/continue targets.
type loopLabels struct {
	continueLabel string
	breakLabel    string
}

// Generator owns the running state of one code-generation pass: the
// output sink, the label/string counters, the global and per-function
// symbol scopes, and the loop-nesting stack that gives break/continue
// a target (original_source's codegen.c never finished these two
// statements; see DESIGN.md).
type Generator struct {
	out    *ioadapt.Output
	target ioadapt.Target

	globals *symtab.Globals
	fn      *symtab.Function

	labelCounter  int
	stringCounter int
	strings       []stringEntry

	loops []loopLabels

	functionEndLabel    string
	useFunctionEndLabel bool
	returnDirect        bool
}

// New creates a Generator writing to out for the given target
// profile (spec.md §4.6, SPEC_FULL.md §4.8's two-target-profile
// supplement).
func New(out *ioadapt.Output, target ioadapt.Target) *Generator {
	return &Generator{
		out:     out,
		target:  target,
		globals: symtab.NewGlobals(),
	}
}

// Generate lowers every declaration in prog: functions first, then
// global variables, then the pooled string literals and the runtime
// helper library — the same ordering as original_source's
// codegen_generate, with one fix: globals are pre-registered in the
// symbol table before any function body is generated, so a function
// that references a global declared later in the file still resolves
// its pointer-ness correctly (original_source's codegen_register_global
// existed but was never called; DESIGN.md's "Deliberate fixes" section
// records the fix).
func (g *Generator) Generate(prog *ast.Program) error {
	g.emitPreamble()

	globals := lo.Filter(prog.Decls, func(n ast.Node, _ int) bool {
		_, ok := n.(*ast.VarDecl)
		return ok
	})
	for _, decl := range globals {
		vd := decl.(*ast.VarDecl)
		g.globals.Add(vd.Name, vd.Type.IsPointer())
	}

	functions := lo.Filter(prog.Decls, func(n ast.Node, _ int) bool {
		_, ok := n.(*ast.Function)
		return ok
	})
	for _, decl := range functions {
		if err := g.generateFunction(decl.(*ast.Function)); err != nil {
			return err
		}
	}
	for _, decl := range globals {
		if err := g.generateGlobal(decl.(*ast.VarDecl)); err != nil {
			return err
		}
	}

	g.emitStrings()
	g.emitRuntime()
	return nil
}

// emitPreamble writes the banner, org directive, and crt0 startup
// stub (spec.md §4.6 item 1).
func (g *Generator) emitPreamble() {
	g.emit("; Generated by zcc\n")
	g.emit("; Target: Z80 (%s)\n\n", g.target)
	g.emit("  org 0x4000\n\n")
	g.emitAsset(crt0Asm)
	g.emit("\n; Program code\n")
}

// generateFunction lowers one function: prologue, body, epilogue
// (spec.md §4.6.2-4.6.3).
func (g *Generator) generateFunction(fn *ast.Function) error {
	g.fn = symtab.NewFunction()
	g.functionEndLabel = ""
	g.useFunctionEndLabel = false
	g.returnDirect = false

	g.emitLabel(fn.Name)

	if fn.Body != nil {
		g.collectLocals(fn.Body)
	}
	frameSize := g.fn.LocalsSize()
	for i, p := range fn.Params {
		g.fn.AddParam(p.Name, i, p.Type.IsPointer(), frameSize)
	}

	g.functionEndLabel = g.newLabel()
	g.emit("  push ix\n")
	g.emit("  ld ix, 0\n  add ix, sp\n")
	if frameSize > 0 {
		g.emitStackAdjust(frameSize, true)
		g.emit("  ld ix, 0\n  add ix, sp\n")
	}

	lastWasReturn := false
	var stmts []ast.Node
	if fn.Body != nil {
		stmts = fn.Body.Stmts
	}
	if len(stmts) == 0 {
		// No statements to fall through from (either no body at all, or
		// an empty one) — default the return value to 0 (spec.md §8.2).
		g.emit("  ld a, 0\n")
	} else {
		for i := 0; i+1 < len(stmts); i++ {
			if err := g.lowerStmt(stmts[i]); err != nil {
				return err
			}
		}
		last := stmts[len(stmts)-1]
		if _, ok := last.(*ast.Return); ok {
			lastWasReturn = true
			g.returnDirect = true
		}
		err := g.lowerStmt(last)
		g.returnDirect = false
		if err != nil {
			return err
		}
	}

	if g.useFunctionEndLabel {
		g.emitLabel(g.functionEndLabel)
		if frameSize > 0 {
			g.emitStackAdjust(frameSize, false)
		}
		g.emit("  pop ix\n  ret\n")
	} else if !lastWasReturn {
		if frameSize > 0 {
			g.emitStackAdjust(frameSize, false)
		}
		g.emit("  pop ix\n  ret\n")
	}

	g.emit("\n")
	g.fn = nil
	return nil
}

// collectLocals walks a function body recording every VAR_DECL's
// frame slot before any code is emitted for it (spec.md §4.6.3),
// grounded on original_source's codegen_collect_locals recursion
// shape: compound, if (both arms), while, for (init + body only —
// condition and increment never declare locals).
func (g *Generator) collectLocals(n ast.Node) {
	switch node := n.(type) {
	case *ast.VarDecl:
		size := 1
		if node.Type.IsPointer() {
			size = 2
		}
		g.fn.AddLocal(node.Name, size, node.Type.IsPointer())
	case *ast.Compound:
		for _, s := range node.Stmts {
			g.collectLocals(s)
		}
	case *ast.If:
		g.collectLocals(node.Then)
		if node.Else != nil {
			g.collectLocals(node.Else)
		}
	case *ast.While:
		g.collectLocals(node.Body)
	case *ast.For:
		if node.Init != nil {
			g.collectLocals(node.Init)
		}
		if node.Body != nil {
			g.collectLocals(node.Body)
		}
	}
}

// generateGlobal emits one global's mangled label and storage
// directive (spec.md §4.6.6).
func (g *Generator) generateGlobal(vd *ast.VarDecl) error {
	g.emit("; Global variable: %s\n", vd.Name)
	g.emitMangledVar(vd.Name)

	if vd.Type.IsPointer() {
		switch init := vd.Init.(type) {
		case *ast.StringLiteral:
			label := g.internString(init.Value)
			g.emit("  .dw %s\n", label)
		case *ast.UnaryOp:
			if init.Op == ast.OpAddr {
				if id, ok := init.Operand.(*ast.Identifier); ok {
					g.emit("  .dw _v_%s\n", id.Name)
					return nil
				}
			}
			g.emit("  .dw 0\n")
		default:
			g.emit("  .dw 0\n")
		}
		return nil
	}

	if c, ok := vd.Init.(*ast.Constant); ok {
		g.emit("  .db %d\n", c.Value)
	} else {
		g.emit("  .db 0\n")
	}
	return nil
}

// emitStrings writes the pooled string-literal labels (spec.md
// §4.6.6): each byte followed by a trailing NUL byte.
func (g *Generator) emitStrings() {
	if len(g.strings) == 0 {
		return
	}
	g.emit("\n; String literals\n")
	for _, s := range g.strings {
		g.emit("%s:\n", s.label)
		for _, b := range []byte(s.value) {
			g.emit("  .db %d\n", b)
		}
		g.emit("  .db 0\n")
	}
}

// emitRuntime appends the runtime helper library verbatim (spec.md
// §4.6 item 5).
func (g *Generator) emitRuntime() {
	g.emitAsset(runtimeAsm)
}

// --- low-level emission helpers ---

func (g *Generator) emit(format string, args ...any) {
	g.out.WriteString(fmt.Sprintf(format, args...))
}

func (g *Generator) emitAsset(asset string) {
	g.out.WriteString(asset)
}

func (g *Generator) emitLabel(label string) {
	g.emit("%s:\n", label)
}

func (g *Generator) emitJump(mnemonic, label string) {
	g.emit("  %s %s\n", mnemonic, label)
}

func (g *Generator) emitMangledVar(name string) {
	g.emit("_v_%s:\n", name)
}

func (g *Generator) emitStackAdjust(offset int, subtract bool) {
	if offset <= 0 {
		return
	}
	g.emit("  ld hl, 0\n  add hl, sp\n  ld de, %d\n", offset)
	if subtract {
		g.emit("  or a\n  sbc hl, de\n")
	} else {
		g.emit("  add hl, de\n")
	}
	g.emit("  ld sp, hl\n")
}

func (g *Generator) newLabel() string {
	n := g.labelCounter
	g.labelCounter++
	return fmt.Sprintf("_l%d", n)
}

// internString dedupes a string literal by value and returns its
// pool label, assigning a fresh _s<N> label on first sight (spec.md
// §4.6.6).
func (g *Generator) internString(value string) string {
	if label, ok := lo.Find(g.strings, func(e stringEntry) bool { return e.value == value }); ok {
		return label.label
	}
	label := fmt.Sprintf("_s%d", g.stringCounter)
	g.stringCounter++
	g.strings = append(g.strings, stringEntry{label: label, value: value})
	return label
}

func (g *Generator) pushLoop(continueLabel, breakLabel string) {
	g.loops = append(g.loops, loopLabels{continueLabel: continueLabel, breakLabel: breakLabel})
}

func (g *Generator) popLoop() {
	g.loops = g.loops[:len(g.loops)-1]
}

func (g *Generator) currentLoop() (loopLabels, error) {
	if len(g.loops) == 0 {
		return loopLabels{}, diag.New(diag.Codegen, "break/continue used outside a loop")
	}
	return g.loops[len(g.loops)-1], nil
}

// mangleLabel renders a source goto/label identifier as an assembly
// label, keeping it disjoint from generated (_l<N>), string (_s<N>),
// and global (_v_<name>) labels.
func mangleLabel(name string) string {
	return "_lbl_" + name
}
