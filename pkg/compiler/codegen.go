package compiler

import "fmt"

// RegAlloc is the fixed four-register scratch pool backing r12-r15.
// There is no spilling: exhausting the pool is a fatal compile-time
// error, and double-freeing a handle is a generator bug, not a user
// error — it panics.
type RegAlloc struct {
	free [4]bool
}

func NewRegAlloc() *RegAlloc {
	return &RegAlloc{free: [4]bool{true, true, true, true}}
}

func (r *RegAlloc) Alloc() (int, error) {
	for i, f := range r.free {
		if f {
			r.free[i] = false
			return i, nil
		}
	}
	return -1, fmt.Errorf("[CG] register pool exhausted: expression needs more than 4 live values")
}

func (r *RegAlloc) Free(idx int) {
	if r.free[idx] {
		panic(fmt.Sprintf("codegen: double-free of register handle %d", idx))
	}
	r.free[idx] = true
}

// AllFree reports whether every handle is back in the pool — checked at
// each function boundary as an internal consistency invariant.
func (r *RegAlloc) AllFree() bool {
	return r.free == [4]bool{true, true, true, true}
}

// CodeGen walks the AST in post-order and drives an AsmWriter. It owns
// register-allocation policy; AsmWriter only knows how to spell the
// instruction once CodeGen has decided which handles and widths are
// involved.
type CodeGen struct {
	syms *SymbolTable
	w    *AsmWriter
	regs *RegAlloc

	labelCounter int
	loopEndStack []string
}

func newCodeGen(syms *SymbolTable) *CodeGen {
	return &CodeGen{syms: syms, w: NewAsmWriter(), regs: NewRegAlloc()}
}

func (cg *CodeGen) newLabel() string {
	id := cg.labelCounter
	cg.labelCounter++
	return fmt.Sprintf("__label__%d", id)
}

// widthOf is the storage width (bits) a value of type t is carried in: 64
// for any pointer, else the primitive's own width.
func widthOf(t *Type) int {
	if t.IsPointer() {
		return 64
	}
	return t.Width
}

// globalReservation returns the .bss layout (element width in bits, and
// element count) for a variable of type t: an array reserves its whole
// backing store; anything else reserves one pointer- or primitive-sized
// cell.
func globalReservation(t *Type) (width int, nelem int) {
	if t.ArrayLength > 0 {
		return t.baseOrSelf().Width, t.ArrayLength
	}
	return widthOf(t), 1
}

// arrayElementSizeBytes is the per-element size used to scale an index in
// ARRAY_INDEX lowering — distinct from OffsetScale's pointee-size rule,
// since here elemType is already the array's element type, not a
// pointer whose pointee must be peeled.
func arrayElementSizeBytes(elemType *Type) int64 {
	if elemType.IsPointer() {
		return 8
	}
	return int64(elemType.Width) / 8
}

// Generate runs the full code-generation pass over a parsed program and
// returns the complete assembly text, ready to write to out.s.
func Generate(decls []Stmt, syms *SymbolTable) (string, error) {
	cg := newCodeGen(syms)

	if err := cg.reserveGlobals(decls, true); err != nil {
		return "", err
	}
	for _, d := range decls {
		if fd, ok := d.(*FuncDecl); ok {
			if err := cg.genFuncDecl(fd); err != nil {
				return "", err
			}
		}
	}

	return cg.w.Wrapup(builtinExternNames(syms)), nil
}

func builtinExternNames(syms *SymbolTable) []string {
	var names []string
	for i := 0; i < syms.Len(); i++ {
		sym := syms.Get(i)
		if sym.IsBuiltin {
			names = append(names, sym.Name)
		}
	}
	return names
}

// reserveGlobals walks every VarDecl reachable from decls — at top level
// and nested inside any function body, including formal parameters —
// and records its .bss or .data entry. This runs once, before any
// function body is emitted, since section layout doesn't follow program
// order the way .text does.
func (cg *CodeGen) reserveGlobals(stmts []Stmt, topLevel bool) error {
	for _, s := range stmts {
		if err := cg.reserveGlobalsIn(s, topLevel); err != nil {
			return err
		}
	}
	return nil
}

func (cg *CodeGen) reserveGlobalsIn(s Stmt, topLevel bool) error {
	switch n := s.(type) {
	case *VarDecl:
		return cg.reserveOneGlobal(n, topLevel)
	case *FuncDecl:
		for _, f := range n.Formals {
			w, c := globalReservation(f.Type)
			if err := cg.w.AddGlobalVar(f.Name, w, c); err != nil {
				return err
			}
		}
		return cg.reserveGlobals(n.Body.Stmts, false)
	case *BlockStmt:
		return cg.reserveGlobals(n.Stmts, topLevel)
	case *IfStmt:
		if err := cg.reserveGlobalsIn(n.Body, topLevel); err != nil {
			return err
		}
		if n.ElseBody != nil {
			return cg.reserveGlobalsIn(n.ElseBody, topLevel)
		}
		return nil
	case *WhileStmt:
		return cg.reserveGlobalsIn(n.Body, topLevel)
	case *DoWhileStmt:
		return cg.reserveGlobalsIn(n.Body, topLevel)
	case *ForStmt:
		if n.Init != nil {
			if err := cg.reserveGlobalsIn(n.Init, topLevel); err != nil {
				return err
			}
		}
		return cg.reserveGlobalsIn(n.Body, topLevel)
	default:
		return nil
	}
}

// reserveOneGlobal records n's backing storage. A top-level declaration's
// constant initializer (IntLit/StrLit) is folded straight into .data, since
// a top-level declaration's initializer only ever runs once, at program
// start, and never again. A local declaration always gets a plain .bss
// cell instead, even with a constant initializer: a local declaration's
// initializer runs in source position every time control reaches it (e.g.
// on every call of the enclosing function), which genLocalVarDecl emits as
// ordinary store code — folding it into .data would only set it once for
// the whole program.
func (cg *CodeGen) reserveOneGlobal(n *VarDecl, topLevel bool) error {
	if n.Init != nil {
		switch v := n.Init.(type) {
		case *IntLit:
			if topLevel {
				return cg.w.SetGlobalInitialInt(n.Name, widthOf(n.Type), v.Value)
			}
		case *StrLit:
			if topLevel {
				label := cg.w.GenerateStringLiteral([]byte(v.Value))
				return cg.w.SetGlobalInitialAddress(n.Name, label)
			}
		default:
			if topLevel {
				return fmt.Errorf("[CG] global %q: initializer must be a constant expression", n.Name)
			}
		}
	}
	w, c := globalReservation(n.Type)
	return cg.w.AddGlobalVar(n.Name, w, c)
}

func (cg *CodeGen) genFuncDecl(n *FuncDecl) error {
	cg.w.FuncPrologue(n.Name)

	if len(n.Formals) == 1 {
		f := n.Formals[0]
		cg.w.StoreArgIntoGlobal(f.Name, widthOf(f.Type))
	}

	if err := cg.genStmt(n.Body); err != nil {
		return err
	}

	if !blockEndsInReturn(n.Body) {
		cg.w.ZeroReturn()
		cg.w.FuncEpilogue()
	}

	if !cg.regs.AllFree() {
		panic(fmt.Sprintf("codegen: register pool leaked out of function %q", n.Name))
	}
	return nil
}

// blockEndsInReturn is a purely syntactic check — this compiler does no
// control-flow reachability analysis, matching its single-pass, no
// optimization-passes design. A function whose last top-level statement
// isn't literally a ReturnStmt falls through to an implicit `return 0`.
func blockEndsInReturn(b *BlockStmt) bool {
	if len(b.Stmts) == 0 {
		return false
	}
	_, ok := b.Stmts[len(b.Stmts)-1].(*ReturnStmt)
	return ok
}

func (cg *CodeGen) genStmt(s Stmt) error {
	switch n := s.(type) {
	case *EmptyStmt:
		return nil
	case *BlockStmt:
		for _, st := range n.Stmts {
			if err := cg.genStmt(st); err != nil {
				return err
			}
		}
		return nil
	case *VarDecl:
		return cg.genLocalVarDecl(n)
	case *ExprStmt:
		reg, err := cg.genExpr(n.Expr)
		if err != nil {
			return err
		}
		if reg >= 0 {
			cg.regs.Free(reg)
		}
		return nil
	case *IfStmt:
		return cg.genIf(n)
	case *WhileStmt:
		return cg.genWhile(n)
	case *DoWhileStmt:
		return cg.genDoWhile(n)
	case *ForStmt:
		return cg.genFor(n)
	case *BreakStmt:
		return cg.genBreak()
	case *ReturnStmt:
		return cg.genReturn(n)
	default:
		return fmt.Errorf("[CG] unhandled statement kind %T", n)
	}
}

// genLocalVarDecl emits the store for a local declaration's initializer,
// run every time control reaches this statement — unlike a top-level
// declaration's initializer, which reserveGlobals folds into .data and
// runs exactly once, for the whole program.
func (cg *CodeGen) genLocalVarDecl(n *VarDecl) error {
	if n.Init == nil {
		return nil
	}
	reg, err := cg.genExpr(n.Init)
	if err != nil {
		return err
	}
	cg.w.SetGlobal(n.Name, reg, widthOf(n.Type))
	cg.regs.Free(reg)
	return nil
}

func (cg *CodeGen) genIf(n *IfStmt) error {
	condReg, err := cg.genExpr(n.Condition)
	if err != nil {
		return err
	}
	elseOrEnd := cg.newLabel()
	cg.w.JmpNe(condReg, widthOf(n.Condition.Type()), 1, elseOrEnd)
	cg.regs.Free(condReg)

	if err := cg.genStmt(n.Body); err != nil {
		return err
	}

	if n.ElseBody == nil {
		cg.w.Label(elseOrEnd)
		return nil
	}

	end := cg.newLabel()
	cg.w.Jmp(end)
	cg.w.Label(elseOrEnd)
	if err := cg.genStmt(n.ElseBody); err != nil {
		return err
	}
	cg.w.Label(end)
	return nil
}

func (cg *CodeGen) genWhile(n *WhileStmt) error {
	start := cg.newLabel()
	end := cg.newLabel()
	cg.loopEndStack = append(cg.loopEndStack, end)
	defer cg.popLoopEnd()

	cg.w.Label(start)
	condReg, err := cg.genExpr(n.Condition)
	if err != nil {
		return err
	}
	cg.w.JmpNe(condReg, widthOf(n.Condition.Type()), 1, end)
	cg.regs.Free(condReg)

	if err := cg.genStmt(n.Body); err != nil {
		return err
	}
	cg.w.Jmp(start)
	cg.w.Label(end)
	return nil
}

func (cg *CodeGen) genDoWhile(n *DoWhileStmt) error {
	start := cg.newLabel()
	end := cg.newLabel()
	cg.loopEndStack = append(cg.loopEndStack, end)
	defer cg.popLoopEnd()

	cg.w.Label(start)
	if err := cg.genStmt(n.Body); err != nil {
		return err
	}
	condReg, err := cg.genExpr(n.Condition)
	if err != nil {
		return err
	}
	cg.w.JmpEq(condReg, widthOf(n.Condition.Type()), 1, start)
	cg.regs.Free(condReg)
	cg.w.Label(end)
	return nil
}

func (cg *CodeGen) genFor(n *ForStmt) error {
	if n.Init != nil {
		if err := cg.genStmt(n.Init); err != nil {
			return err
		}
	}
	start := cg.newLabel()
	end := cg.newLabel()
	cg.loopEndStack = append(cg.loopEndStack, end)
	defer cg.popLoopEnd()

	cg.w.Label(start)
	condReg, err := cg.genExpr(n.Cond)
	if err != nil {
		return err
	}
	cg.w.JmpNe(condReg, widthOf(n.Cond.Type()), 1, end)
	cg.regs.Free(condReg)

	if err := cg.genStmt(n.Body); err != nil {
		return err
	}
	if n.Post != nil {
		if err := cg.genStmt(n.Post); err != nil {
			return err
		}
	}
	cg.w.Jmp(start)
	cg.w.Label(end)
	return nil
}

func (cg *CodeGen) popLoopEnd() {
	cg.loopEndStack = cg.loopEndStack[:len(cg.loopEndStack)-1]
}

// genBreak resolves BREAK lexically against the generator's own loop
// stack rather than an AST parent pointer — the parser already rejected
// a break outside any loop, so an empty stack here is a generator bug.
func (cg *CodeGen) genBreak() error {
	if len(cg.loopEndStack) == 0 {
		return fmt.Errorf("[CG] break outside of a loop")
	}
	cg.w.Jmp(cg.loopEndStack[len(cg.loopEndStack)-1])
	return nil
}

func (cg *CodeGen) genReturn(n *ReturnStmt) error {
	if n.Expr == nil {
		cg.w.ZeroReturn()
		cg.w.FuncEpilogue()
		return nil
	}
	reg, err := cg.genExpr(n.Expr)
	if err != nil {
		return err
	}
	funcSym := cg.syms.Get(n.FuncSymbolIndex)
	cg.w.FuncReturn(reg, widthOf(funcSym.Type))
	cg.regs.Free(reg)
	cg.w.FuncEpilogue()
	return nil
}

// genExpr lowers e and returns the scratch-register handle holding its
// value, or -1 for a void function call with nothing to hold.
func (cg *CodeGen) genExpr(e Expr) (int, error) {
	switch n := e.(type) {
	case *IntLit:
		reg, err := cg.regs.Alloc()
		if err != nil {
			return -1, err
		}
		cg.w.InitImm(reg, widthOf(n.ComputedType), n.Value)
		return reg, nil

	case *StrLit:
		label := cg.w.GenerateStringLiteral([]byte(n.Value))
		reg, err := cg.regs.Alloc()
		if err != nil {
			return -1, err
		}
		cg.w.AddressOf(reg, label)
		return reg, nil

	case *VarRef:
		sym := cg.syms.Get(n.SymbolIndex)
		reg, err := cg.regs.Alloc()
		if err != nil {
			return -1, err
		}
		if n.ComputedType.IsArray() {
			// An array name used as a value decays to the address of its
			// first element, never a load of its backing bytes.
			cg.w.AddressOf(reg, sym.Name)
		} else {
			cg.w.GetGlobal(reg, sym.Name, widthOf(n.ComputedType))
		}
		return reg, nil

	case *AddressOf:
		sym := cg.syms.Get(n.Operand.SymbolIndex)
		reg, err := cg.regs.Alloc()
		if err != nil {
			return -1, err
		}
		cg.w.AddressOf(reg, sym.Name)
		return reg, nil

	case *PtrDeref:
		addrReg, err := cg.genExpr(n.Operand)
		if err != nil {
			return -1, err
		}
		cg.w.LoadMem(addrReg, addrReg, widthOf(n.ComputedType))
		return addrReg, nil

	case *OffsetScale:
		reg, err := cg.genExpr(n.Operand)
		if err != nil {
			return -1, err
		}
		scaleReg(cg.w, reg, n.ScaleBytes)
		return reg, nil

	case *ArrayIndex:
		addrReg, err := cg.genArrayIndexAddr(n)
		if err != nil {
			return -1, err
		}
		cg.w.LoadMem(addrReg, addrReg, widthOf(n.ComputedType))
		return addrReg, nil

	case *BinaryExpr:
		return cg.genBinaryExpr(n)

	case *Assign:
		return cg.genAssign(n)

	case *FuncCall:
		return cg.genFuncCall(n)

	default:
		return -1, fmt.Errorf("[CG] unhandled expression kind %T", n)
	}
}

// scaleReg multiplies reg (treated as a 64-bit address offset) by scale,
// using a shift when scale is a power of two.
func scaleReg(w *AsmWriter, reg int, scale int64) {
	switch scale {
	case 1:
	case 2:
		w.Sll(reg, 64, 1)
	case 4:
		w.Sll(reg, 64, 2)
	case 8:
		w.Sll(reg, 64, 3)
	default:
		w.MulImm(reg, 64, scale)
	}
}

// genArrayIndexAddr computes the address id+idx*elemsize into a fresh
// register, without loading through it — shared by genExpr's ArrayIndex
// case (which loads) and genAssign's ArrayIndex target case (which
// stores).
func (cg *CodeGen) genArrayIndexAddr(n *ArrayIndex) (int, error) {
	sym := cg.syms.Get(n.Base.SymbolIndex)
	idxReg, err := cg.genExpr(n.Index)
	if err != nil {
		return -1, err
	}
	scaleReg(cg.w, idxReg, arrayElementSizeBytes(n.ComputedType))

	baseReg, err := cg.regs.Alloc()
	if err != nil {
		return -1, err
	}
	cg.w.AddressOf(baseReg, sym.Name)
	cg.w.Add(baseReg, idxReg, 64)
	cg.regs.Free(idxReg)
	return baseReg, nil
}

func (cg *CodeGen) genBinaryExpr(n *BinaryExpr) (int, error) {
	lReg, err := cg.genExpr(n.Left)
	if err != nil {
		return -1, err
	}
	rReg, err := cg.genExpr(n.Right)
	if err != nil {
		return -1, err
	}

	if n.Op.IsComparison() {
		width := widthOf(n.Left.Type())
		if rw := widthOf(n.Right.Type()); rw > width {
			width = rw
		}
		cg.w.Compare(n.Op, lReg, rReg, width)
		cg.regs.Free(rReg)
		return lReg, nil
	}

	width := widthOf(n.ComputedType)
	switch n.Op {
	case OpAdd:
		cg.w.Add(lReg, rReg, width)
	case OpSub:
		cg.w.Sub(lReg, rReg, width)
	case OpMul:
		cg.w.Mul(lReg, rReg, width)
	case OpDiv:
		cg.w.Div(lReg, rReg, width)
	default:
		return -1, fmt.Errorf("[CG] unhandled binary operator %s", n.Op)
	}
	cg.regs.Free(rReg)
	return lReg, nil
}

func (cg *CodeGen) genAssign(n *Assign) (int, error) {
	valReg, err := cg.genExpr(n.Value)
	if err != nil {
		return -1, err
	}

	switch target := n.Target.(type) {
	case *VarRef:
		sym := cg.syms.Get(target.SymbolIndex)
		cg.w.SetGlobal(sym.Name, valReg, widthOf(target.ComputedType))

	case *PtrDeref:
		addrReg, err := cg.genExpr(target.Operand)
		if err != nil {
			return -1, err
		}
		cg.w.StoreMem(addrReg, valReg, widthOf(n.ComputedType))
		cg.regs.Free(addrReg)

	case *ArrayIndex:
		addrReg, err := cg.genArrayIndexAddr(target)
		if err != nil {
			return -1, err
		}
		cg.w.StoreMem(addrReg, valReg, widthOf(n.ComputedType))
		cg.regs.Free(addrReg)

	default:
		return -1, fmt.Errorf("[CG] unhandled assignment target %T", target)
	}

	return valReg, nil
}

func (cg *CodeGen) genFuncCall(n *FuncCall) (int, error) {
	sym := cg.syms.Get(n.SymbolIndex)

	argReg := -1
	if len(n.Args) >= 1 {
		reg, err := cg.genExpr(n.Args[0])
		if err != nil {
			return -1, err
		}
		argReg = reg
	}

	// Scratch registers are always held zero-extended to 64 bits (see
	// AsmWriter's width-aware writers), so the argument is moved into rdi
	// at full width regardless of its logical type — narrower widths would
	// leave rdi's upper bits stale, since an 8/16-bit write to it doesn't
	// clear them the way a 32/64-bit write does.
	cg.w.FuncCall(sym.Name, argReg, 64)
	if argReg >= 0 {
		cg.regs.Free(argReg)
	}

	isVoid := sym.Type.Width == WidthVoid && sym.Type.PointerLvl == 0
	if isVoid {
		return -1, nil
	}

	resultReg, err := cg.regs.Alloc()
	if err != nil {
		return -1, err
	}
	cg.w.MovFromRax(resultReg, widthOf(sym.Type))
	return resultReg, nil
}
