// Package parser implements the recursive-descent parser described
// in spec.md §4.3: one token of lookahead (current + next), a
// streaming ParseNext entry point for the parser stage, and a
// full-tree Parse entry point. Grammar and precedence follow spec.md
// §4.3.1/§4.3.2 exactly; error messages are grounded on
// original_source's src/parser/parser.c diagnostics.
package parser

import (
	"github.com/zealcc/zcc/internal/ast"
	"github.com/zealcc/zcc/internal/diag"
	"github.com/zealcc/zcc/internal/lexer"
)

// TokenSource is anything that can hand the parser a stream of
// tokens one at a time — satisfied by *lexer.Lexer.
type TokenSource interface {
	NextToken() lexer.Token
}

// Parser is a two-token-lookahead recursive-descent parser.
type Parser struct {
	lex        TokenSource
	current    lexer.Token
	next       lexer.Token
	errorCount int
	reporter   *diag.Reporter
	declCount  int // top-level declarations produced so far, for the MaxDecls fanout limit
}

// New creates a parser positioned at the lexer's first two tokens.
func New(lex TokenSource, reporter *diag.Reporter) *Parser {
	p := &Parser{lex: lex, reporter: reporter}
	p.current = lex.NextToken()
	p.next = lex.NextToken()
	return p
}

// ErrorCount returns the number of parse errors reported so far; a
// non-zero count is fatal to the stage (spec.md §4.3.4).
func (p *Parser) ErrorCount() int { return p.errorCount }

func (p *Parser) advance() {
	p.current = p.next
	p.next = p.lex.NextToken()
}

func (p *Parser) check(k lexer.Kind) bool { return p.current.Kind == k }

func (p *Parser) match(k lexer.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) errorAt(tok lexer.Token, format string, args ...any) {
	p.errorCount++
	if p.reporter != nil {
		msg := diag.New(diag.Syntax, format, args...).Msg
		p.reporter.Error("[Parse error] %s at line %d, column %d", msg, tok.Line, tok.Column)
	}
}

func (p *Parser) errorHere(format string, args ...any) {
	p.errorAt(p.current, format, args...)
}

// expect consumes the current token if it matches k, else reports a
// diagnostic and continues without consuming (spec.md §4.3.3).
func (p *Parser) expect(k lexer.Kind, msg string) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	p.errorHere("Expected %s", msg)
	return false
}

// Parse returns a full Program node, consuming the entire token
// stream (spec.md §4.3).
func (p *Parser) Parse() *ast.Program {
	prog := &ast.Program{}
	for !p.check(lexer.EOF) {
		decl := p.ParseNext()
		if decl == nil {
			break
		}
		prog.Decls = append(prog.Decls, decl)
	}
	return prog
}

// ParseNext returns the next top-level declaration, or nil at EOF.
// This is the streaming entry point the parser stage drives
// (spec.md §4.3). A syntax error in one declaration skips forward and
// retries rather than returning nil immediately — nil is reserved for
// genuine end of input, so neither Parse nor a streaming DeclSource
// consumer (cmd/cc_parse's parseSource) mistakes a bad declaration for
// the end of the file and drops everything that follows it.
func (p *Parser) ParseNext() ast.Node {
	for !p.check(lexer.EOF) {
		if p.declCount >= ast.MaxDecls {
			p.errorHere("Too many top-level declarations (max %d)", ast.MaxDecls)
			// Stop producing further declarations without truncating
			// the ones already returned.
			for !p.check(lexer.EOF) {
				p.advance()
			}
			return nil
		}
		decl := p.parseDeclaration()
		if decl != nil {
			p.declCount++
			return decl
		}
		if !p.check(lexer.EOF) {
			p.advance()
		}
	}
	return nil
}

func isStorageQualifier(k lexer.Kind) bool {
	switch k {
	case lexer.CONST, lexer.VOLATILE, lexer.STATIC, lexer.EXTERN, lexer.REGISTER:
		return true
	}
	return false
}

func (p *Parser) skipStorageQualifiers() {
	for isStorageQualifier(p.current.Kind) {
		p.advance()
	}
}

func isBaseTypeToken(k lexer.Kind) bool {
	switch k {
	case lexer.VOID, lexer.CHAR, lexer.SHORT, lexer.INT, lexer.LONG:
		return true
	}
	return false
}

// parseType implements spec.md's Type grammar: optional sign
// qualifier(s) around a base type, then zero or more '*'.
// Storage qualifiers are lexed and discarded wherever they appear.
func (p *Parser) parseType() *ast.Type {
	p.skipStorageQualifiers()

	signSeen := false
	unsigned := false
	trySign := func() bool {
		if p.check(lexer.SIGNED) || p.check(lexer.UNSIGNED) {
			u := p.check(lexer.UNSIGNED)
			if signSeen && unsigned != u {
				p.errorHere("Cannot combine signed and unsigned")
			}
			signSeen = true
			unsigned = u
			p.advance()
			return true
		}
		return false
	}
	trySign()
	p.skipStorageQualifiers()

	var kind ast.TypeKind
	haveBase := false
	switch p.current.Kind {
	case lexer.VOID:
		kind = ast.KindVoid
		haveBase = true
		p.advance()
	case lexer.CHAR:
		kind = ast.KindChar
		haveBase = true
		p.advance()
	case lexer.SHORT:
		kind = ast.KindShort
		haveBase = true
		p.advance()
	case lexer.INT:
		kind = ast.KindInt
		haveBase = true
		p.advance()
	case lexer.LONG:
		kind = ast.KindLong
		haveBase = true
		p.advance()
	default:
		if !signSeen {
			return nil // not a type at all
		}
		// Sign qualifier with no base type defaults to int.
		kind = ast.KindInt
	}
	_ = haveBase

	p.skipStorageQualifiers()
	trySign()
	p.skipStorageQualifiers()

	if kind == ast.KindVoid && signSeen {
		p.errorHere("Void type cannot be signed or unsigned")
	}

	t := &ast.Type{Kind: kind}
	if kind == ast.KindChar || kind == ast.KindInt {
		t.Unsigned = unsigned
	}

	for p.check(lexer.STAR) {
		p.advance()
		t = ast.Pointer(t)
	}
	return t
}

func (p *Parser) startsType() bool {
	if isBaseTypeToken(p.current.Kind) || p.check(lexer.SIGNED) || p.check(lexer.UNSIGNED) {
		return true
	}
	return isStorageQualifier(p.current.Kind)
}

// parseDeclaration implements Declaration := Type Identifier
// (FunctionTail | VarTail).
func (p *Parser) parseDeclaration() ast.Node {
	typ := p.parseType()
	if typ == nil {
		p.errorHere("Expected declaration")
		p.advance()
		return nil
	}
	for p.check(lexer.STAR) {
		p.advance()
		typ = ast.Pointer(typ)
	}
	if !p.check(lexer.IDENTIFIER) {
		p.errorHere("Expected function or variable name")
		return nil
	}
	name := p.current.Lexeme
	p.advance()

	if p.check(lexer.LPAREN) {
		return p.parseFunctionTail(name, typ)
	}
	return p.parseVarTail(name, typ, "global declaration")
}

// parseVarTail implements VarTail := ("[" Number "]")? ("=" Expression)? ";"
func (p *Parser) parseVarTail(name string, typ *ast.Type, afterMsg string) ast.Node {
	if p.check(lexer.LBRACKET) {
		p.advance()
		if p.check(lexer.NUMBER) {
			length := int(p.current.IntVal)
			p.advance()
			if length <= 0 {
				p.errorHere("Array length must be positive")
			}
			typ = ast.Array(typ, length)
		} else {
			p.errorHere("Expected array length")
		}
		p.expect(lexer.RBRACKET, "array length")
	}

	var init ast.Node
	if p.check(lexer.ASSIGN) {
		p.advance()
		init = p.parseExpression()
	}
	p.expect(lexer.SEMICOLON, afterMsg)

	return &ast.VarDecl{Name: name, Type: typ, Init: init}
}

// parseFunctionTail implements FunctionTail := "(" Params? ")" Statement.
func (p *Parser) parseFunctionTail(name string, ret *ast.Type) ast.Node {
	p.expect(lexer.LPAREN, "'('")
	var params []*ast.VarDecl
	if !p.check(lexer.RPAREN) {
		params = p.parseParams()
	}
	p.expect(lexer.RPAREN, "')'")

	var body *ast.Compound
	if p.check(lexer.LBRACE) {
		body = p.parseCompound()
	} else {
		p.errorHere("Expected '{'")
		body = &ast.Compound{}
	}
	return &ast.Function{Name: name, Ret: ret, Params: params, Body: body}
}

// parseParams implements Params := "void" | Parameter ("," Parameter)*
func (p *Parser) parseParams() []*ast.VarDecl {
	if p.check(lexer.VOID) && p.next.Kind == lexer.RPAREN {
		p.advance()
		return nil
	}
	var params []*ast.VarDecl
	for {
		if len(params) >= ast.MaxParams {
			p.errorHere("Too many parameters (max %d)", ast.MaxParams)
			for !p.check(lexer.RPAREN) && !p.check(lexer.EOF) {
				p.advance()
			}
			break
		}
		param := p.parseParameter()
		if param != nil {
			params = append(params, param)
		}
		if !p.check(lexer.COMMA) {
			break
		}
		p.advance()
	}
	return params
}

// parseParameter implements Parameter := Type "*"* Identifier
// ("[" Number? "]")?. A "T[]" array parameter degrades to pointer(T)
// per spec.md §4.3.3.
func (p *Parser) parseParameter() *ast.VarDecl {
	typ := p.parseType()
	if typ == nil {
		p.errorHere("Expected parameter type")
		return nil
	}
	for p.check(lexer.STAR) {
		p.advance()
		typ = ast.Pointer(typ)
	}
	if !p.check(lexer.IDENTIFIER) {
		p.errorHere("Expected parameter name")
		return nil
	}
	name := p.current.Lexeme
	p.advance()

	if p.check(lexer.LBRACKET) {
		p.advance()
		if p.check(lexer.NUMBER) {
			length := int(p.current.IntVal)
			p.advance()
			typ = ast.Array(typ, length)
		} else {
			// T[] in parameter position: normalize to pointer(T).
			typ = ast.Pointer(typ)
		}
		p.expect(lexer.RBRACKET, "array length")
	}
	return &ast.VarDecl{Name: name, Type: typ}
}

// parseCompound implements Compound := "{" Statement* "}".
func (p *Parser) parseCompound() *ast.Compound {
	p.expect(lexer.LBRACE, "'{'")
	c := &ast.Compound{}
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		if len(c.Stmts) >= ast.MaxStmts {
			p.errorHere("Too many statements in block (max %d)", ast.MaxStmts)
			for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
				p.advance()
			}
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			c.Stmts = append(c.Stmts, stmt)
		}
	}
	p.expect(lexer.RBRACE, "'}'")
	return c
}

// parseStatement implements Statement := VarDecl | If | While | For |
// Return | Break | Continue | Goto | Label | Compound | ExprStmt.
func (p *Parser) parseStatement() ast.Node {
	switch {
	case p.check(lexer.LBRACE):
		return p.parseCompound()
	case p.check(lexer.IF):
		return p.parseIf()
	case p.check(lexer.WHILE):
		return p.parseWhile()
	case p.check(lexer.FOR):
		return p.parseFor()
	case p.check(lexer.RETURN):
		return p.parseReturn()
	case p.check(lexer.BREAK):
		p.advance()
		p.expect(lexer.SEMICOLON, "'break'")
		return &ast.Break{}
	case p.check(lexer.CONTINUE):
		p.advance()
		p.expect(lexer.SEMICOLON, "'continue'")
		return &ast.Continue{}
	case p.check(lexer.GOTO):
		p.advance()
		if !p.check(lexer.IDENTIFIER) {
			p.errorHere("Expected label name")
			return nil
		}
		name := p.current.Lexeme
		p.advance()
		p.expect(lexer.SEMICOLON, "'goto'")
		return &ast.Goto{Name: name}
	case p.check(lexer.IDENTIFIER) && p.next.Kind == lexer.COLON:
		name := p.current.Lexeme
		p.advance()
		p.advance() // ':'
		return &ast.Label{Name: name}
	case p.startsType():
		return p.parseLocalVarDecl()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseLocalVarDecl() ast.Node {
	typ := p.parseType()
	if typ == nil {
		p.errorHere("Expected variable name")
		p.advance()
		return nil
	}
	for p.check(lexer.STAR) {
		p.advance()
		typ = ast.Pointer(typ)
	}
	if !p.check(lexer.IDENTIFIER) {
		p.errorHere("Expected variable name")
		return nil
	}
	name := p.current.Lexeme
	p.advance()
	return p.parseVarTail(name, typ, "variable declaration")
}

func (p *Parser) parseIf() ast.Node {
	p.advance() // 'if'
	p.expect(lexer.LPAREN, "'if'")
	cond := p.parseExpression()
	p.expect(lexer.RPAREN, "'if' condition")
	then := p.parseStatement()
	n := &ast.If{Cond: cond, Then: then}
	if p.check(lexer.ELSE) {
		p.advance()
		n.Else = p.parseStatement()
	}
	return n
}

func (p *Parser) parseWhile() ast.Node {
	p.advance() // 'while'
	p.expect(lexer.LPAREN, "'while'")
	cond := p.parseExpression()
	p.expect(lexer.RPAREN, "'while' condition")
	body := p.parseStatement()
	return &ast.While{Cond: cond, Body: body}
}

func (p *Parser) parseFor() ast.Node {
	p.advance() // 'for'
	p.expect(lexer.LPAREN, "'for'")

	var init ast.Node
	if p.check(lexer.SEMICOLON) {
		p.advance()
	} else if p.startsType() {
		init = p.parseLocalVarDecl()
	} else {
		init = p.parseExprStmt()
	}

	var cond ast.Node
	if !p.check(lexer.SEMICOLON) {
		cond = p.parseExpression()
	}
	p.expect(lexer.SEMICOLON, "for condition")

	var inc ast.Node
	if !p.check(lexer.RPAREN) {
		inc = p.parseExpression()
	}
	p.expect(lexer.RPAREN, "'for'")

	body := p.parseStatement()
	return &ast.For{Init: init, Cond: cond, Inc: inc, Body: body}
}

func (p *Parser) parseReturn() ast.Node {
	p.advance() // 'return'
	n := &ast.Return{}
	if !p.check(lexer.SEMICOLON) {
		n.Expr = p.parseExpression()
	}
	p.expect(lexer.SEMICOLON, "return statement")
	return n
}

func (p *Parser) parseExprStmt() ast.Node {
	expr := p.parseExpression()
	p.expect(lexer.SEMICOLON, "expression")
	return expr
}

// parseExpression implements Expression := Assignment.
func (p *Parser) parseExpression() ast.Node {
	return p.parseAssignment()
}

// parseAssignment implements Assignment := LogicalOr ("=" Assignment)?,
// right-associative.
func (p *Parser) parseAssignment() ast.Node {
	left := p.parseLogicalOr()
	if p.check(lexer.ASSIGN) {
		p.advance()
		right := p.parseAssignment()
		return &ast.Assign{LValue: left, RValue: right}
	}
	return left
}

type binLevel struct {
	kinds []lexer.Kind
	ops   []ast.BinOp
	next  func(*Parser) ast.Node
}

func (p *Parser) parseLeftAssoc(kinds []lexer.Kind, ops []ast.BinOp, next func(*Parser) ast.Node) ast.Node {
	left := next(p)
	for {
		matched := false
		for i, k := range kinds {
			if p.check(k) {
				p.advance()
				right := next(p)
				left = &ast.BinaryOp{Op: ops[i], Left: left, Right: right}
				matched = true
				break
			}
		}
		if !matched {
			return left
		}
	}
}

func (p *Parser) parseLogicalOr() ast.Node {
	return p.parseLeftAssoc([]lexer.Kind{lexer.OR}, []ast.BinOp{ast.OpLOr}, (*Parser).parseLogicalAnd)
}

func (p *Parser) parseLogicalAnd() ast.Node {
	return p.parseLeftAssoc([]lexer.Kind{lexer.AND}, []ast.BinOp{ast.OpLAnd}, (*Parser).parseBitwiseOr)
}

func (p *Parser) parseBitwiseOr() ast.Node {
	return p.parseLeftAssoc([]lexer.Kind{lexer.PIPE}, []ast.BinOp{ast.OpOr}, (*Parser).parseBitwiseXor)
}

func (p *Parser) parseBitwiseXor() ast.Node {
	return p.parseLeftAssoc([]lexer.Kind{lexer.CARET}, []ast.BinOp{ast.OpXor}, (*Parser).parseBitwiseAnd)
}

func (p *Parser) parseBitwiseAnd() ast.Node {
	return p.parseLeftAssoc([]lexer.Kind{lexer.AMP}, []ast.BinOp{ast.OpAnd}, (*Parser).parseComparison)
}

func (p *Parser) parseComparison() ast.Node {
	return p.parseLeftAssoc(
		[]lexer.Kind{lexer.LT, lexer.GT, lexer.LE, lexer.GE, lexer.EQ, lexer.NE},
		[]ast.BinOp{ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe, ast.OpEq, ast.OpNe},
		(*Parser).parseShift)
}

func (p *Parser) parseShift() ast.Node {
	return p.parseLeftAssoc([]lexer.Kind{lexer.LSHIFT, lexer.RSHIFT}, []ast.BinOp{ast.OpShl, ast.OpShr}, (*Parser).parseTerm)
}

func (p *Parser) parseTerm() ast.Node {
	return p.parseLeftAssoc([]lexer.Kind{lexer.PLUS, lexer.MINUS}, []ast.BinOp{ast.OpAdd, ast.OpSub}, (*Parser).parseFactor)
}

func (p *Parser) parseFactor() ast.Node {
	return p.parseLeftAssoc([]lexer.Kind{lexer.STAR, lexer.SLASH, lexer.PERCENT}, []ast.BinOp{ast.OpMul, ast.OpDiv, ast.OpMod}, (*Parser).parseUnary)
}

// parseUnary implements Unary := ("+"|"-"|"!"|"~"|"++"|"--"|"*"|"&")
// Unary | Postfix. Unary '+' collapses to its operand.
func (p *Parser) parseUnary() ast.Node {
	switch {
	case p.check(lexer.PLUS):
		p.advance()
		return p.parseUnary()
	case p.check(lexer.MINUS):
		p.advance()
		return &ast.UnaryOp{Op: ast.OpNeg, Operand: p.parseUnary()}
	case p.check(lexer.BANG):
		p.advance()
		return &ast.UnaryOp{Op: ast.OpLNot, Operand: p.parseUnary()}
	case p.check(lexer.TILDE):
		p.advance()
		return &ast.UnaryOp{Op: ast.OpNot, Operand: p.parseUnary()}
	case p.check(lexer.PLUS_PLUS):
		p.advance()
		return &ast.UnaryOp{Op: ast.OpPreInc, Operand: p.parseUnary()}
	case p.check(lexer.MINUS_MINUS):
		p.advance()
		return &ast.UnaryOp{Op: ast.OpPreDec, Operand: p.parseUnary()}
	case p.check(lexer.STAR):
		p.advance()
		return &ast.UnaryOp{Op: ast.OpDeref, Operand: p.parseUnary()}
	case p.check(lexer.AMP):
		p.advance()
		return &ast.UnaryOp{Op: ast.OpAddr, Operand: p.parseUnary()}
	default:
		return p.parsePostfix()
	}
}

// parsePostfix implements Postfix := Primary ("[" Expression "]" |
// "++" | "--")*.
func (p *Parser) parsePostfix() ast.Node {
	expr := p.parsePrimary()
	for {
		switch {
		case p.check(lexer.LBRACKET):
			p.advance()
			idx := p.parseExpression()
			p.expect(lexer.RBRACKET, "index confirmation")
			expr = &ast.ArrayAccess{Base: expr, Index: idx}
		case p.check(lexer.PLUS_PLUS):
			p.advance()
			expr = &ast.UnaryOp{Op: ast.OpPostInc, Operand: expr}
		case p.check(lexer.MINUS_MINUS):
			p.advance()
			expr = &ast.UnaryOp{Op: ast.OpPostDec, Operand: expr}
		default:
			return expr
		}
	}
}

// parsePrimary implements Primary := Identifier ("(" ArgList? ")")? |
// Number | Char | String | "(" Expression ")".
func (p *Parser) parsePrimary() ast.Node {
	switch {
	case p.check(lexer.IDENTIFIER):
		name := p.current.Lexeme
		p.advance()
		if p.check(lexer.LPAREN) {
			p.advance()
			var args []ast.Node
			if !p.check(lexer.RPAREN) {
				args = p.parseArgList()
			}
			p.expect(lexer.RPAREN, "call arguments")
			return &ast.Call{Name: name, Args: args}
		}
		return &ast.Identifier{Name: name}
	case p.check(lexer.NUMBER):
		v := p.current.IntVal
		p.advance()
		return &ast.Constant{Value: v}
	case p.check(lexer.CHAR_LITERAL):
		v := p.current.IntVal
		p.advance()
		return &ast.Constant{Value: v}
	case p.check(lexer.STRING_LITERAL):
		s := p.current.Lexeme
		p.advance()
		return &ast.StringLiteral{Value: s}
	case p.check(lexer.LPAREN):
		p.advance()
		expr := p.parseExpression()
		p.expect(lexer.RPAREN, "parenthesized expression")
		return expr
	default:
		p.errorHere("Unexpected token in expression")
		tok := p.current
		if tok.Kind != lexer.EOF {
			p.advance()
		}
		return &ast.Constant{Value: 0}
	}
}

func (p *Parser) parseArgList() []ast.Node {
	var args []ast.Node
	for {
		if len(args) >= ast.MaxArgs {
			p.errorHere("Too many call arguments (max %d)", ast.MaxArgs)
			for !p.check(lexer.RPAREN) && !p.check(lexer.EOF) {
				p.advance()
			}
			break
		}
		args = append(args, p.parseExpression())
		if !p.check(lexer.COMMA) {
			break
		}
		p.advance()
	}
	return args
}
