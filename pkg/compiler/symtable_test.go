package compiler

import (
	"fmt"
	"testing"
)

func TestNewSymbolTablePrePopulatesBuiltins(t *testing.T) {
	syms := NewSymbolTable()
	want := []struct {
		name       string
		formalType *Type
	}{
		{"print", LongType},
		{"print_char", CharType},
		{"print_str", PointerOf(CharType)},
		{"print_ln", PointerOf(CharType)},
	}
	if syms.Len() != len(want) {
		t.Fatalf("got %d pre-populated symbols, want %d", syms.Len(), len(want))
	}
	for i, w := range want {
		idx, ok := syms.Lookup(w.name)
		if !ok {
			t.Fatalf("builtin %q not found", w.name)
		}
		if idx != i {
			t.Errorf("%q: got index %d, want %d (dense/stable/zero-based)", w.name, idx, i)
		}
		sym := syms.Get(idx)
		if sym.Kind != SymFunc {
			t.Errorf("%q should be a function symbol", w.name)
		}
		if !sym.IsBuiltin {
			t.Errorf("%q should be marked builtin", w.name)
		}
		if sym.Type != VoidType {
			t.Errorf("%q should return void, got %v", w.name, sym.Type)
		}
		// Derived types such as char* are allocated fresh, so compare shape
		// rather than pointer identity.
		if len(sym.Formals) != 1 || sym.Formals[0].Type.String() != w.formalType.String() ||
			sym.Formals[0].Type.Width != w.formalType.Width {
			t.Errorf("%q: unexpected formals %v", w.name, sym.Formals)
		}
	}
}

func TestAddVariableReturnsStableDenseIndices(t *testing.T) {
	syms := NewSymbolTable()
	base := syms.Len()

	i1, err := syms.AddVariable("a", IntType)
	if err != nil {
		t.Fatal(err)
	}
	i2, err := syms.AddVariable("b", CharType)
	if err != nil {
		t.Fatal(err)
	}
	if i1 != base || i2 != base+1 {
		t.Errorf("got indices %d, %d, want %d, %d", i1, i2, base, base+1)
	}
	if syms.Get(i1).Name != "a" || syms.Get(i2).Name != "b" {
		t.Errorf("index lookup returned the wrong symbol")
	}
}

func TestAddFunctionAndFormals(t *testing.T) {
	syms := NewSymbolTable()
	idx, err := syms.AddFunction("add", IntType)
	if err != nil {
		t.Fatal(err)
	}
	syms.AddFormal(idx, "a", IntType)
	syms.AddFormal(idx, "b", IntType)

	sym := syms.Get(idx)
	if sym.Kind != SymFunc {
		t.Fatalf("expected a function symbol")
	}
	if len(sym.Formals) != 2 {
		t.Fatalf("got %d formals, want 2", len(sym.Formals))
	}
	if sym.Formals[0].Name != "a" || sym.Formals[1].Name != "b" {
		t.Errorf("formals out of order: %v", sym.Formals)
	}
}

func TestRedefinitionIsFatal(t *testing.T) {
	syms := NewSymbolTable()
	if _, err := syms.AddVariable("x", IntType); err != nil {
		t.Fatal(err)
	}
	if _, err := syms.AddVariable("x", CharType); err == nil {
		t.Fatal("expected redefinition of 'x' to fail")
	}
	if _, err := syms.AddFunction("x", VoidType); err == nil {
		t.Fatal("expected redefinition of 'x' as a function to fail")
	}
	// A builtin name is already taken too.
	if _, err := syms.AddVariable("print", IntType); err == nil {
		t.Fatal("expected redefinition of a builtin to fail")
	}
}

func TestLookupMissingNameFails(t *testing.T) {
	syms := NewSymbolTable()
	if _, ok := syms.Lookup("nonexistent"); ok {
		t.Fatal("expected lookup of an undeclared name to fail")
	}
}

func TestSymbolTableFullIsFatal(t *testing.T) {
	syms := NewSymbolTable()
	// 4 builtins are already in; fill up to the cap.
	for i := syms.Len(); i < maxSymbols; i++ {
		if _, err := syms.AddVariable(namef(i), IntType); err != nil {
			t.Fatalf("unexpected error filling the table at %d: %v", i, err)
		}
	}
	if syms.Len() != maxSymbols {
		t.Fatalf("got %d symbols, want %d", syms.Len(), maxSymbols)
	}
	if _, err := syms.AddVariable("one_too_many", IntType); err == nil {
		t.Fatal("expected the 256th symbol to be rejected")
	}
}

func namef(i int) string {
	return fmt.Sprintf("sym%d", i)
}
