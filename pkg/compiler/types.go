package compiler

import "fmt"

// Primitive widths in bits, per the Data Model.
const (
	WidthVoid = 0
	WidthChar = 8
	WidthInt  = 32
	WidthLong = 64
)

// Type describes a value's shape: a primitive, or a pointer/array derived
// from one. Primitive instances are singletons; derived instances are
// allocated fresh and reference their primitive base.
type Type struct {
	Name        string
	Width       int
	PointerLvl  int
	ArrayLength int // 0 for a non-array type
	Base        *Type
}

// The four primitive singletons. Never mutate these; derived types point
// at them but never alias over them.
var (
	VoidType = &Type{Name: "void", Width: WidthVoid}
	CharType = &Type{Name: "char", Width: WidthChar}
	IntType  = &Type{Name: "int", Width: WidthInt}
	LongType = &Type{Name: "long", Width: WidthLong}
)

func primitiveFor(tt TokenType) (*Type, bool) {
	switch tt {
	case VOID:
		return VoidType, true
	case CHAR:
		return CharType, true
	case INT:
		return IntType, true
	case LONG:
		return LongType, true
	default:
		return nil, false
	}
}

// IsPointer reports whether t has at least one level of pointer indirection
// (this also covers arrays, which are pointer-levels with a length).
func (t *Type) IsPointer() bool {
	return t.PointerLvl > 0
}

// IsArray reports whether t was declared with an array length.
func (t *Type) IsArray() bool {
	return t.ArrayLength > 0
}

func (t *Type) baseOrSelf() *Type {
	if t.Base != nil {
		return t.Base
	}
	return t
}

func (t *Type) String() string {
	s := t.Name
	for i := 0; i < t.PointerLvl; i++ {
		s += "*"
	}
	if t.ArrayLength > 0 {
		s += fmt.Sprintf("[%d]", t.ArrayLength)
	}
	return s
}

// PointerOf returns a derived type one pointer-level deeper than t, always
// 64 bits wide, based on t's underlying primitive.
func PointerOf(t *Type) *Type {
	return &Type{
		Name:       t.Name,
		Width:      64,
		PointerLvl: t.PointerLvl + 1,
		Base:       t.baseOrSelf(),
	}
}

// ArrayOf returns a derived array type of base t with the given element
// count: pointer-level is one more than t's, width is 64 like any pointer.
func ArrayOf(t *Type, length int) *Type {
	return &Type{
		Name:        t.Name,
		Width:       64,
		PointerLvl:  t.PointerLvl + 1,
		ArrayLength: length,
		Base:        t.baseOrSelf(),
	}
}

// Deref peels k pointer-levels off t. Fatal if that would drive the level
// negative. A fully-peeled result takes the base primitive's width; a
// still-pointer result stays 64-bit.
func Deref(t *Type, k int) (*Type, error) {
	if t.PointerLvl-k < 0 {
		return nil, fmt.Errorf("[DATATYPE] cannot dereference %s %d time(s): not enough pointer levels", t, k)
	}
	lvl := t.PointerLvl - k
	if lvl == 0 {
		base := t.baseOrSelf()
		return base, nil
	}
	return &Type{Name: t.Name, Width: 64, PointerLvl: lvl, Base: t.baseOrSelf()}, nil
}

// ElemType returns the type one pointer-level below t — the element type
// of an array or the pointee type of a pointer.
func ElemType(t *Type) (*Type, error) {
	return Deref(t, 1)
}

// UnifyExpr computes the result type of combining two arithmetic or
// comparison operands. void is never allowed in an expression. Equal types
// pass through unchanged; otherwise the wider primitive width wins.
func UnifyExpr(left, right *Type) (*Type, error) {
	if left.Width == WidthVoid || right.Width == WidthVoid {
		return nil, fmt.Errorf("[DATATYPE] void may not appear in an expression")
	}
	if left.PointerLvl == right.PointerLvl && left.Name == right.Name && left.ArrayLength == right.ArrayLength {
		return left, nil
	}
	if left.Width >= right.Width {
		return left, nil
	}
	return right, nil
}

// CheckAssign validates that value may be stored into a location of type
// target, per the assignment-compatibility rules: pointer-levels must
// match except the long<->pointer exemption, pointer base primitives must
// agree, void is never allowed, and no narrowing is permitted.
func CheckAssign(target, value *Type) error {
	if target.Width == WidthVoid || value.Width == WidthVoid {
		return fmt.Errorf("[DATATYPE] void may not be used in an assignment")
	}

	longPointerExempt := (target.Name == "long" && target.PointerLvl == 0 && value.IsPointer()) ||
		(value.Name == "long" && value.PointerLvl == 0 && target.IsPointer())

	if target.PointerLvl != value.PointerLvl && !longPointerExempt {
		return fmt.Errorf("[DATATYPE] cannot assign %s to %s: pointer levels differ", value, target)
	}

	if target.IsPointer() && value.IsPointer() && target.baseOrSelf().Name != value.baseOrSelf().Name {
		return fmt.Errorf("[DATATYPE] cannot assign %s to %s: incompatible pointer base types", value, target)
	}

	if !longPointerExempt && !target.IsPointer() && !value.IsPointer() && value.Width > target.Width {
		return fmt.Errorf("[DATATYPE] cannot assign %s to %s: narrowing assignment", value, target)
	}

	return nil
}

// ParseType reads a primitive keyword followed by zero or more '*' tokens,
// each wrapping the current type into a deeper pointer.
func ParseType(lx *Lexer) (*Type, error) {
	tok, err := lx.Scan()
	if err != nil {
		return nil, err
	}
	base, ok := primitiveFor(tok.Type)
	if !ok {
		return nil, fmt.Errorf("[DATATYPE] line %d: expected a type keyword, got %s", tok.Line, tok.Type)
	}

	t := base
	for {
		next, err := lx.Peek()
		if err != nil {
			return nil, err
		}
		if next.Type != STAR {
			break
		}
		if _, err := lx.Scan(); err != nil {
			return nil, err
		}
		t = PointerOf(t)
	}
	return t, nil
}

// IsTypeKeyword reports whether tt opens a type per the grammar's
// ('void'|'char'|'int'|'long') alternation, used by the parser's
// statement-dispatch lookahead.
func IsTypeKeyword(tt TokenType) bool {
	switch tt {
	case VOID, CHAR, INT, LONG:
		return true
	default:
		return false
	}
}
