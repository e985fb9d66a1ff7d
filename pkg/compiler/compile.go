package compiler

import "fmt"

// Result holds everything a caller might want out of a successful compile:
// the generated assembly text, and the symbol table for TOYC_DEBUG dumps.
type Result struct {
	Assembly string
	Symbols  *SymbolTable
}

// CompileFile reads path, lexes, parses, and generates assembly for it,
// returning the complete NASM-syntax text ready to write to disk. There is
// no preprocessor pass and no assembler invocation — the caller is
// responsible for running nasm/ld (or whatever toolchain it prefers) over
// the returned text.
func CompileFile(path string) (*Result, error) {
	lx, err := Open(path)
	if err != nil {
		return nil, err
	}
	return compile(lx, path)
}

// CompileSource compiles in-memory source text, identified as name only
// for diagnostics. Used by tests that don't want to round-trip through the
// filesystem.
func CompileSource(src string, name string) (*Result, error) {
	return compile(NewLexer(src), name)
}

// compile parses and generates code for lx. The raw source text for
// error-snippet rendering is recovered straight from the Lexer's own rune
// buffer rather than re-reading the file, since Open already consumed it.
func compile(lx *Lexer, sourceName string) (*Result, error) {
	raw := string(lx.src)

	syms := NewSymbolTable()
	decls, err := ParseProgram(lx, syms, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: parse error: %w", sourceName, err)
	}

	assembly, err := Generate(decls, syms)
	if err != nil {
		return nil, fmt.Errorf("%s: codegen error: %w", sourceName, err)
	}

	return &Result{Assembly: assembly, Symbols: syms}, nil
}
