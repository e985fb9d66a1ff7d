package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EMPTY TokenType = iota // sentinel: uninitialized token slot
	EOF                    // end of input

	// Literals and identifiers
	IDENTIFIER
	INTLIT
	STRLIT

	// Reserved words
	INT
	CHAR
	VOID
	LONG
	IF
	ELSE
	WHILE
	DO
	FOR
	BREAK
	RETURN

	// Paired delimiters
	LBRACE
	RBRACE
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET

	// Punctuation
	SEMICOLON
	COMMA

	// Operators
	ASSIGN
	STAR
	AMP
	PLUS
	MINUS
	SLASH

	EQUALS
	NOT_EQ
	LESS
	LESS_EQ
	GREATER
	GREATER_EQ
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EMPTY:      "EMPTY",
	EOF:        "EOF",
	IDENTIFIER: "IDENTIFIER",
	INTLIT:     "INTLIT",
	STRLIT:     "STRLIT",
	INT:        "INT",
	CHAR:       "CHAR",
	VOID:       "VOID",
	LONG:       "LONG",
	IF:         "IF",
	ELSE:       "ELSE",
	WHILE:      "WHILE",
	DO:         "DO",
	FOR:        "FOR",
	BREAK:      "BREAK",
	RETURN:     "RETURN",
	LBRACE:     "LBRACE",
	RBRACE:     "RBRACE",
	LPAREN:     "LPAREN",
	RPAREN:     "RPAREN",
	LBRACKET:   "LBRACKET",
	RBRACKET:   "RBRACKET",
	SEMICOLON:  "SEMICOLON",
	COMMA:      "COMMA",
	ASSIGN:     "ASSIGN",
	STAR:       "STAR",
	AMP:        "AMP",
	PLUS:       "PLUS",
	MINUS:      "MINUS",
	SLASH:      "SLASH",
	EQUALS:     "EQUALS",
	NOT_EQ:     "NOT_EQ",
	LESS:       "LESS",
	LESS_EQ:    "LESS_EQ",
	GREATER:    "GREATER",
	GREATER_EQ: "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// reservedWords maps source text to its reserved-word TokenType. An
// identifier is looked up here after scanning; a miss means it stays an
// IDENTIFIER.
var reservedWords = map[string]TokenType{
	"int":    INT,
	"char":   CHAR,
	"void":   VOID,
	"long":   LONG,
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"do":     DO,
	"for":    FOR,
	"break":  BREAK,
	"return": RETURN,
}

// Token is a single lexical unit produced by the Lexer.
//
// Payload is carried in IntValue (for INTLIT) or Lexeme (identifier name,
// decoded string bytes, or the punctuation/reserved-word spelling).
type Token struct {
	Type     TokenType
	Lexeme   string
	IntValue int64
	Line     int
	Column   int
}

func (t Token) String() string {
	if t.Type == INTLIT {
		return fmt.Sprintf("%-10s %-14d line %d col %d", t.Type, t.IntValue, t.Line, t.Column)
	}
	return fmt.Sprintf("%-10s %-14q line %d col %d", t.Type, t.Lexeme, t.Line, t.Column)
}
