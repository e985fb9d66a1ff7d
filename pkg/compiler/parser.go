package compiler

import (
	"fmt"
	"strings"
)

// Parser is a recursive-descent parser with bounded lookahead over a
// Lexer. It builds the AST and populates the SymbolTable in the same
// pass — there is no separate semantic-analysis walk.
//
// Grammar (see the project's BNF for the authoritative version):
//
//	program    := (func_decl | var_decl)*
//	func_decl  := type ID '(' args_formal? ')' block
//	var_decl   := type ID init? (',' ID init?)* ';'
//	init       := '=' expr | '[' INTLIT ']'
//	block      := '{' stmt* '}' | stmt
//	stmt       := ';' | block | if | while | do_while | for
//	            | break ';' | return expr? ';' | var_decl | expr ';'
//	expr       := assign | compare
//	assign     := lvalue '=' expr
//	compare    := additive (('=='|'!='|'>'|'>='|'<'|'<=') additive)?
//	additive   := mult (('+'|'-') mult)*
//	mult       := val (('*'|'/') val)*
//	val        := INTLIT | STRLIT | '(' expr ')' | '&' ID | '*' val
//	            | ID | ID '(' args? ')' | ID '[' expr ']'
//	lvalue     := '*' val | ID | ID '[' expr ']'
//
// A leading type keyword always opens a declaration; a one-token peek of
// STAR or IDENTIFIER opens an expression-statement. Distinguishing a
// function declaration from a variable declaration, and an assignment
// from a bare expression, both need a second disambiguating peek — a Peek
// at the token after the identifier for the former, a Lexer.PeekAt scan
// for the latter — rather than a full backtracking parse.
type Parser struct {
	lx   *Lexer
	syms *SymbolTable

	sourceLines []string

	currentFunc int // symbol index of the enclosing function, -1 at top level
	loopDepth   int
}

// NewParser builds a Parser reading from lx, resolving names against syms.
// rawSource is kept only to render the one-line source snippet in error
// messages.
func NewParser(lx *Lexer, syms *SymbolTable, rawSource string) *Parser {
	return &Parser{
		lx:          lx,
		syms:        syms,
		sourceLines: strings.Split(rawSource, "\n"),
		currentFunc: -1,
	}
}

// fmtError renders a tagged, line-anchored, single-line diagnostic in the
// teacher's style: the message, followed on the same line by the offending
// source line trimmed of surrounding whitespace.
func (p *Parser) fmtError(tag string, line int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	snippet := ""
	if line >= 1 && line <= len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[line-1])
	}
	if snippet == "" {
		return fmt.Errorf("%s line %d: %s", tag, line, msg)
	}
	return fmt.Errorf("%s line %d: %s: %s", tag, line, msg, snippet)
}

// ParseProgram parses an entire translation unit: a flat sequence of
// function and variable declarations terminated by EOF.
func ParseProgram(lx *Lexer, syms *SymbolTable, rawSource string) ([]Stmt, error) {
	p := NewParser(lx, syms, rawSource)

	var decls []Stmt
	for {
		tok, err := lx.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == EOF {
			break
		}
		if !IsTypeKeyword(tok.Type) {
			return nil, p.fmtError("[DECL]", tok.Line, "expected a declaration, got %s", tok.Type)
		}

		typ, err := ParseType(lx)
		if err != nil {
			return nil, err
		}
		nameTok, err := lx.Match(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		next, err := lx.Peek()
		if err != nil {
			return nil, err
		}
		if next.Type == LPAREN {
			fd, err := p.parseFunctionDecl(typ, nameTok)
			if err != nil {
				return nil, err
			}
			decls = append(decls, fd)
			continue
		}
		vs, err := p.parseVarDeclList(typ, nameTok)
		if err != nil {
			return nil, err
		}
		decls = append(decls, vs...)
	}
	return decls, nil
}

// maxFormals caps user functions to the single argument the generated
// code's calling convention actually delivers in rdi.
const maxFormals = 1

func (p *Parser) parseFunctionDecl(ret *Type, nameTok Token) (*FuncDecl, error) {
	idx, err := p.syms.AddFunction(nameTok.Lexeme, ret)
	if err != nil {
		return nil, p.fmtError("[DECL]", nameTok.Line, "%v", err)
	}

	if _, err := p.lx.Match(LPAREN); err != nil {
		return nil, err
	}

	var formals []VarDecl
	first, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}
	if first.Type != RPAREN {
		for {
			ftyp, err := ParseType(p.lx)
			if err != nil {
				return nil, err
			}
			fnameTok, err := p.lx.Match(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			if len(formals) >= maxFormals {
				return nil, p.fmtError("[DECL]", fnameTok.Line,
					"function %q takes at most %d formal argument(s)", nameTok.Lexeme, maxFormals)
			}
			p.syms.AddFormal(idx, fnameTok.Lexeme, ftyp)
			varIdx, err := p.syms.AddVariable(fnameTok.Lexeme, ftyp)
			if err != nil {
				return nil, p.fmtError("[DECL]", fnameTok.Line, "%v", err)
			}
			formals = append(formals, VarDecl{Name: fnameTok.Lexeme, SymbolIndex: varIdx, Type: ftyp})

			comma, err := p.lx.Peek()
			if err != nil {
				return nil, err
			}
			if comma.Type != COMMA {
				break
			}
			if _, err := p.lx.Scan(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.lx.Match(RPAREN); err != nil {
		return nil, err
	}

	prevFunc := p.currentFunc
	p.currentFunc = idx
	body, err := p.parseBlock()
	p.currentFunc = prevFunc
	if err != nil {
		return nil, err
	}

	return &FuncDecl{Name: nameTok.Lexeme, SymbolIndex: idx, ReturnType: ret, Formals: formals, Body: body}, nil
}

// parseVarDeclList parses the remainder of `ID init? (',' ID init?)* ';'`
// given that typ and the first identifier have already been scanned.
func (p *Parser) parseVarDeclList(typ *Type, firstName Token) ([]Stmt, error) {
	var out []Stmt

	first, err := p.parseOneVarDecl(typ, firstName)
	if err != nil {
		return nil, err
	}
	out = append(out, first)

	for {
		tok, err := p.lx.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Type != COMMA {
			break
		}
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		nameTok, err := p.lx.Match(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		d, err := p.parseOneVarDecl(typ, nameTok)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}

	if _, err := p.lx.Match(SEMICOLON); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Parser) parseOneVarDecl(typ *Type, nameTok Token) (*VarDecl, error) {
	declType := typ
	var init Expr

	tok, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case ASSIGN:
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		e, err := p.parseExprEntry()
		if err != nil {
			return nil, err
		}
		if err := CheckAssign(declType, e.Type()); err != nil {
			return nil, p.fmtError("[DECL]", nameTok.Line, "%v", err)
		}
		init = e
	case LBRACKET:
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		lenTok, err := p.lx.Match(INTLIT)
		if err != nil {
			return nil, err
		}
		if _, err := p.lx.Match(RBRACKET); err != nil {
			return nil, err
		}
		declType = ArrayOf(typ, int(lenTok.IntValue))
	}

	if declType.Width == WidthVoid && declType.PointerLvl == 0 {
		return nil, p.fmtError("[DECL]", nameTok.Line, "cannot declare %q with type void", nameTok.Lexeme)
	}

	idx, err := p.syms.AddVariable(nameTok.Lexeme, declType)
	if err != nil {
		return nil, p.fmtError("[DECL]", nameTok.Line, "%v", err)
	}
	return &VarDecl{Name: nameTok.Lexeme, SymbolIndex: idx, Type: declType, Init: init}, nil
}

// parseBlock parses `'{' stmt* '}'`.
func (p *Parser) parseBlock() (*BlockStmt, error) {
	if _, err := p.lx.Match(LBRACE); err != nil {
		return nil, err
	}
	var stmts []Stmt
	for {
		tok, err := p.lx.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == RBRACE {
			break
		}
		ss, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, ss...)
	}
	if _, err := p.lx.Match(RBRACE); err != nil {
		return nil, err
	}
	return &BlockStmt{Stmts: stmts}, nil
}

// parseBlockOrStmt parses a brace-delimited block, or wraps a single
// bodiless statement in an implicit one-statement block.
func (p *Parser) parseBlockOrStmt() (Stmt, error) {
	tok, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Type == LBRACE {
		return p.parseBlock()
	}
	ss, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &BlockStmt{Stmts: ss}, nil
}

// parseStatement parses exactly one grammar-level statement, but returns a
// slice because a local variable declaration can introduce several
// sibling VarDecl nodes (`int a, b;`) from one statement.
func (p *Parser) parseStatement() ([]Stmt, error) {
	tok, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}

	switch {
	case tok.Type == SEMICOLON:
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		return []Stmt{&EmptyStmt{}}, nil

	case tok.Type == LBRACE:
		s, err := p.parseBlock()
		return wrap(s, err)

	case tok.Type == IF:
		s, err := p.parseIf()
		return wrap(s, err)

	case tok.Type == WHILE:
		s, err := p.parseWhile()
		return wrap(s, err)

	case tok.Type == DO:
		s, err := p.parseDoWhile()
		return wrap(s, err)

	case tok.Type == FOR:
		s, err := p.parseFor()
		return wrap(s, err)

	case tok.Type == BREAK:
		s, err := p.parseBreak()
		return wrap(s, err)

	case tok.Type == RETURN:
		s, err := p.parseReturn()
		return wrap(s, err)

	case IsTypeKeyword(tok.Type):
		typ, err := ParseType(p.lx)
		if err != nil {
			return nil, err
		}
		nameTok, err := p.lx.Match(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		return p.parseVarDeclList(typ, nameTok)

	case tok.Type == STAR || tok.Type == IDENTIFIER:
		s, err := p.parseExprStatement()
		return wrap(s, err)

	default:
		return nil, p.fmtError("[STMT]", tok.Line, "unexpected token %s starting a statement", tok.Type)
	}
}

// wrap lifts a single (Stmt, error) pair into parseStatement's ([]Stmt,
// error) shape.
func wrap(s Stmt, err error) ([]Stmt, error) {
	if err != nil {
		return nil, err
	}
	return []Stmt{s}, nil
}

func (p *Parser) parseExprStatement() (Stmt, error) {
	e, err := p.parseExprEntry()
	if err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: e}, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	if _, err := p.lx.Match(IF); err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(LPAREN); err != nil {
		return nil, err
	}
	condTok, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExprEntry()
	if err != nil {
		return nil, err
	}
	if cond.Type().Width == WidthVoid {
		return nil, p.fmtError("[STMT]", condTok.Line, "if condition may not be void")
	}
	if _, err := p.lx.Match(RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlockOrStmt()
	if err != nil {
		return nil, err
	}

	var elseBody Stmt
	tok, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Type == ELSE {
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		elseBody, err = p.parseBlockOrStmt()
		if err != nil {
			return nil, err
		}
	}
	return &IfStmt{Condition: cond, Body: body, ElseBody: elseBody}, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	if _, err := p.lx.Match(WHILE); err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExprEntry()
	if err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(RPAREN); err != nil {
		return nil, err
	}
	p.loopDepth++
	body, err := p.parseBlockOrStmt()
	p.loopDepth--
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Condition: cond, Body: body}, nil
}

func (p *Parser) parseDoWhile() (Stmt, error) {
	if _, err := p.lx.Match(DO); err != nil {
		return nil, err
	}
	p.loopDepth++
	body, err := p.parseBlockOrStmt()
	p.loopDepth--
	if err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(WHILE); err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExprEntry()
	if err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(SEMICOLON); err != nil {
		return nil, err
	}
	return &DoWhileStmt{Body: body, Condition: cond}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	if _, err := p.lx.Match(FOR); err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(LPAREN); err != nil {
		return nil, err
	}

	initStmts, err := p.parseStatement() // consumes its own trailing ';'
	if err != nil {
		return nil, err
	}
	var init Stmt
	switch len(initStmts) {
	case 0:
	case 1:
		init = initStmts[0]
	default:
		init = &BlockStmt{Stmts: initStmts}
	}

	cond, err := p.parseExprEntry()
	if err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(SEMICOLON); err != nil {
		return nil, err
	}

	var post Stmt
	tok, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Type != RPAREN {
		post, err = p.parseBareAssignment()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.lx.Match(RPAREN); err != nil {
		return nil, err
	}

	p.loopDepth++
	body, err := p.parseBlockOrStmt()
	p.loopDepth--
	if err != nil {
		return nil, err
	}

	return &ForStmt{Init: init, Cond: cond, Post: post, Body: body}, nil
}

// parseBareAssignment parses `lvalue '=' expr` with no surrounding
// semicolon, for the for-loop post clause.
func (p *Parser) parseBareAssignment() (Stmt, error) {
	e, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: e}, nil
}

func (p *Parser) parseBreak() (Stmt, error) {
	tok, err := p.lx.Match(BREAK)
	if err != nil {
		return nil, err
	}
	if _, err := p.lx.Match(SEMICOLON); err != nil {
		return nil, err
	}
	if p.loopDepth == 0 {
		return nil, p.fmtError("[STMT]", tok.Line, "break outside of a loop")
	}
	return &BreakStmt{}, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	tok, err := p.lx.Match(RETURN)
	if err != nil {
		return nil, err
	}
	if p.currentFunc < 0 {
		return nil, p.fmtError("[STMT]", tok.Line, "return outside of a function")
	}
	funcSym := p.syms.Get(p.currentFunc)

	if funcSym.Type.Width == WidthVoid && funcSym.Type.PointerLvl == 0 {
		if _, err := p.lx.Match(SEMICOLON); err != nil {
			return nil, err
		}
		return &ReturnStmt{FuncSymbolIndex: p.currentFunc}, nil
	}

	e, err := p.parseExprEntry()
	if err != nil {
		return nil, err
	}
	if err := CheckAssign(funcSym.Type, e.Type()); err != nil {
		return nil, p.fmtError("[STMT]", tok.Line, "%v", err)
	}
	if _, err := p.lx.Match(SEMICOLON); err != nil {
		return nil, err
	}
	return &ReturnStmt{Expr: e, FuncSymbolIndex: p.currentFunc}, nil
}

// parseExprEntry is the general <expr> entry point used wherever the
// grammar calls for one: it resolves the assign/compare ambiguity with a
// bounded forward scan for the first of '=' ';' ',' ')' EOF, skipping over
// any bracketed index and stopping at a ']' that closes an enclosing index.
func (p *Parser) parseExprEntry() (Expr, error) {
	isAssign, err := p.aheadHasAssignBeforeTerminator()
	if err != nil {
		return nil, err
	}
	if isAssign {
		return p.parseAssignment()
	}
	return p.parseComparison()
}

var assignScanTerminators = map[TokenType]bool{
	ASSIGN:    true,
	SEMICOLON: true,
	COMMA:     true,
	RPAREN:    true,
	EOF:       true,
}

func (p *Parser) aheadHasAssignBeforeTerminator() (bool, error) {
	depth := 0 // '[' ... ']' nesting opened inside the scanned span
	for n := 0; ; n++ {
		tok, err := p.lx.PeekAt(n)
		if err != nil {
			return false, err
		}
		switch {
		case tok.Type == LBRACKET:
			depth++
		case tok.Type == RBRACKET:
			if depth == 0 {
				// Closes the index this expression sits inside.
				return false, nil
			}
			depth--
		case tok.Type == EOF:
			return false, nil
		case depth == 0 && assignScanTerminators[tok.Type]:
			return tok.Type == ASSIGN, nil
		}
	}
}

func (p *Parser) parseAssignment() (Expr, error) {
	target, err := p.parseLValue()
	if err != nil {
		return nil, err
	}
	eqTok, err := p.lx.Match(ASSIGN)
	if err != nil {
		return nil, err
	}
	value, err := p.parseExprEntry()
	if err != nil {
		return nil, err
	}
	if err := CheckAssign(target.Type(), value.Type()); err != nil {
		return nil, p.fmtError("[EXPR]", eqTok.Line, "%v", err)
	}
	return &Assign{Target: target, Value: value, ComputedType: target.Type()}, nil
}

// parseLValue parses the full <val> production and rejects the result if
// it is not one of the three node kinds the grammar's lvalue production
// allows: VarRef, PtrDeref, or ArrayIndex. A VarRef naming an array (no
// index) is rejected too.
func (p *Parser) parseLValue() (Expr, error) {
	tok, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}
	e, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	switch v := e.(type) {
	case *VarRef:
		if v.ComputedType.IsArray() {
			return nil, p.fmtError("[EXPR]", tok.Line, "array %q is not assignable", v.Name)
		}
		return e, nil
	case *PtrDeref, *ArrayIndex:
		return e, nil
	default:
		return nil, p.fmtError("[EXPR]", tok.Line, "%s is not assignable", e)
	}
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	tok, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}
	op, ok := cmpOpFor(tok.Type)
	if !ok {
		return left, nil
	}
	if _, err := p.lx.Scan(); err != nil {
		return nil, err
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if _, err := UnifyExpr(left.Type(), right.Type()); err != nil {
		return nil, p.fmtError("[EXPR]", tok.Line, "%v", err)
	}
	return &BinaryExpr{Op: op, Left: left, Right: right, ComputedType: CharType}, nil
}

func cmpOpFor(tt TokenType) (BinOp, bool) {
	switch tt {
	case EQUALS:
		return OpCmpEQ, true
	case NOT_EQ:
		return OpCmpNE, true
	case GREATER:
		return OpCmpGT, true
	case GREATER_EQ:
		return OpCmpGE, true
	case LESS:
		return OpCmpLT, true
	case LESS_EQ:
		return OpCmpLE, true
	default:
		return 0, false
	}
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.lx.Peek()
		if err != nil {
			return nil, err
		}
		var op BinOp
		switch tok.Type {
		case PLUS:
			op = OpAdd
		case MINUS:
			op = OpSub
		default:
			return left, nil
		}
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}

		rewrittenLeft, rewrittenRight, resultType, err := p.rewritePointerArith(left, right, tok)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: rewrittenLeft, Right: rewrittenRight, ComputedType: resultType}
	}
}

// rewritePointerArith implements the ADDITIVE lowering rule: when exactly
// one side of a + or - is a pointer, the other side is wrapped in an
// OffsetScale that multiplies it by the pointee's element size, and the
// whole expression's type becomes the pointer's type. When neither side
// is a pointer, the two operands are combined via the ordinary arithmetic
// unification rule.
func (p *Parser) rewritePointerArith(left, right Expr, opTok Token) (Expr, Expr, *Type, error) {
	lp := left.Type().IsPointer()
	rp := right.Type().IsPointer()

	if lp == rp {
		t, err := UnifyExpr(left.Type(), right.Type())
		if err != nil {
			return nil, nil, nil, p.fmtError("[EXPR]", opTok.Line, "%v", err)
		}
		return left, right, t, nil
	}
	if lp {
		return left, wrapOffsetScale(right, left.Type()), left.Type(), nil
	}
	return wrapOffsetScale(left, right.Type()), right, right.Type(), nil
}

// wrapOffsetScale scales operand by ptrType's element size: 8 bytes for a
// pointer-to-pointer, otherwise the pointee primitive's width in bytes.
func wrapOffsetScale(operand Expr, ptrType *Type) Expr {
	var scale int64 = 8
	if ptrType.PointerLvl <= 1 {
		scale = int64(ptrType.baseOrSelf().Width) / 8
	}
	return &OffsetScale{Operand: operand, ScaleBytes: scale, ComputedType: operand.Type()}
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.lx.Peek()
		if err != nil {
			return nil, err
		}
		var op BinOp
		switch tok.Type {
		case STAR:
			op = OpMul
		case SLASH:
			op = OpDiv
		default:
			return left, nil
		}
		if left.Type().IsPointer() {
			return nil, p.fmtError("[EXPR]", tok.Line, "pointer operand not allowed in multiplicative expression")
		}
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		right, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if right.Type().IsPointer() {
			return nil, p.fmtError("[EXPR]", tok.Line, "pointer operand not allowed in multiplicative expression")
		}
		resultType, err := UnifyExpr(left.Type(), right.Type())
		if err != nil {
			return nil, p.fmtError("[EXPR]", tok.Line, "%v", err)
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right, ComputedType: resultType}
	}
}

func (p *Parser) parseValue() (Expr, error) {
	tok, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case INTLIT:
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		t := CharType
		if tok.IntValue >= 256 {
			t = IntType
		}
		return &IntLit{Value: tok.IntValue, ComputedType: t}, nil

	case STRLIT:
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		return &StrLit{Value: tok.Lexeme, ComputedType: PointerOf(CharType)}, nil

	case LPAREN:
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		e, err := p.parseExprEntry()
		if err != nil {
			return nil, err
		}
		if _, err := p.lx.Match(RPAREN); err != nil {
			return nil, err
		}
		return e, nil

	case AMP:
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		idTok, err := p.lx.Match(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		idx, ok := p.syms.Lookup(idTok.Lexeme)
		if !ok {
			return nil, p.fmtError("[EXPR]", idTok.Line, "undefined identifier %q", idTok.Lexeme)
		}
		sym := p.syms.Get(idx)
		if sym.Kind != SymVar {
			return nil, p.fmtError("[EXPR]", idTok.Line, "%q is not a variable", idTok.Lexeme)
		}
		ref := &VarRef{Name: idTok.Lexeme, SymbolIndex: idx, ComputedType: sym.Type}
		return &AddressOf{Operand: ref, ComputedType: PointerOf(sym.Type)}, nil

	case STAR:
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		inner, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		resultType, err := Deref(inner.Type(), 1)
		if err != nil {
			return nil, p.fmtError("[EXPR]", tok.Line, "%v", err)
		}
		return &PtrDeref{Operand: inner, ComputedType: resultType}, nil

	case IDENTIFIER:
		if _, err := p.lx.Scan(); err != nil {
			return nil, err
		}
		idx, ok := p.syms.Lookup(tok.Lexeme)
		if !ok {
			return nil, p.fmtError("[EXPR]", tok.Line, "undefined identifier %q", tok.Lexeme)
		}
		sym := p.syms.Get(idx)

		next, err := p.lx.Peek()
		if err != nil {
			return nil, err
		}
		switch next.Type {
		case LPAREN:
			if sym.Kind != SymFunc {
				return nil, p.fmtError("[EXPR]", tok.Line, "%q is not a function", tok.Lexeme)
			}
			return p.parseFunctionCallArgs(tok, idx, sym)
		case LBRACKET:
			if sym.Kind != SymVar {
				return nil, p.fmtError("[EXPR]", tok.Line, "%q is not a variable", tok.Lexeme)
			}
			if _, err := p.lx.Scan(); err != nil {
				return nil, err
			}
			idxExpr, err := p.parseExprEntry()
			if err != nil {
				return nil, err
			}
			if _, err := p.lx.Match(RBRACKET); err != nil {
				return nil, err
			}
			elemType, err := ElemType(sym.Type)
			if err != nil {
				return nil, p.fmtError("[EXPR]", tok.Line, "%v", err)
			}
			base := &VarRef{Name: tok.Lexeme, SymbolIndex: idx, ComputedType: sym.Type}
			return &ArrayIndex{Base: base, Index: idxExpr, ComputedType: elemType}, nil
		default:
			if sym.Kind != SymVar {
				return nil, p.fmtError("[EXPR]", tok.Line, "%q is a function; call it with ()", tok.Lexeme)
			}
			return &VarRef{Name: tok.Lexeme, SymbolIndex: idx, ComputedType: sym.Type}, nil
		}

	default:
		return nil, p.fmtError("[EXPR]", tok.Line, "expected a value, got %s", tok.Type)
	}
}

func (p *Parser) parseFunctionCallArgs(nameTok Token, idx int, sym Symbol) (Expr, error) {
	if _, err := p.lx.Match(LPAREN); err != nil {
		return nil, err
	}
	var args []Expr
	first, err := p.lx.Peek()
	if err != nil {
		return nil, err
	}
	if first.Type != RPAREN {
		for {
			arg, err := p.parseExprEntry()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			tok, err := p.lx.Peek()
			if err != nil {
				return nil, err
			}
			if tok.Type != COMMA {
				break
			}
			if _, err := p.lx.Scan(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.lx.Match(RPAREN); err != nil {
		return nil, err
	}

	if len(args) != len(sym.Formals) {
		return nil, p.fmtError("[EXPR]", nameTok.Line,
			"%q takes %d argument(s), got %d", nameTok.Lexeme, len(sym.Formals), len(args))
	}
	for i, a := range args {
		if err := CheckAssign(sym.Formals[i].Type, a.Type()); err != nil {
			return nil, p.fmtError("[EXPR]", nameTok.Line, "argument %d: %v", i+1, err)
		}
	}

	return &FuncCall{Name: nameTok.Lexeme, SymbolIndex: idx, Args: args, ComputedType: sym.Type}, nil
}
