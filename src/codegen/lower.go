package codegen

import (
	"github.com/pkg/errors"

	"riscc/src/ast"
	"riscc/src/lir"
	"riscc/src/riscv"
	"riscc/src/types"
)

// lowerInstr dispatches one LIR instruction to its RISC-V lowering.
func lowerInstr(in lir.Instr, fs *funcState, globals map[string]globalSym) ([]riscv.Instruction, error) {
	switch v := in.(type) {
	case *lir.Alloc:
		return lowerAlloc(v, fs)
	case *lir.Return:
		return lowerReturn(v, fs), nil
	case *lir.MovC:
		return lowerMovC(v, fs), nil
	case *lir.Cast:
		return lowerCast(v)
	case *lir.Store:
		return storeTo(fs, v.Addr, v.Value, v.Typ)
	case *lir.LoadA:
		return lowerLoadA(v, globals)
	case *lir.LoadR:
		return loadFrom(fs, v.Dest, v.Addr, v.Typ)
	case *lir.Label:
		return []riscv.Instruction{{Opcode: riscv.OpLabel, Label: v.ID, LabelFunction: fs.idx}}, nil
	case *lir.Call:
		return lowerCall(v), nil
	case *lir.Branch:
		return lowerBranch(v, fs)
	case *lir.Unary:
		return lowerUnary(v)
	case *lir.Binary:
		return lowerBinary(v, fs)
	default:
		return nil, errors.Errorf("codegen: unhandled instruction %T", in)
	}
}

// lowerAlloc stores the initializer, if any, to the local's slot. The
// slot itself isn't "allocated" at runtime: its space was already
// folded into the frame size by computeFrame.
func lowerAlloc(v *lir.Alloc, fs *funcState) ([]riscv.Instruction, error) {
	if v.IsGlobal {
		return nil, nil // Handled once, up front, by collectGlobals/renderGlobals.
	}
	if v.FromReg {
		return nil, errors.Wrapf(ErrUnsupportedFeature, "array %q: backing storage sized from a register", v.Name)
	}
	if v.Init == lir.RegNone {
		return nil, nil
	}
	return storeTo(fs, v.Dest, v.Init, v.Typ)
}

// lowerReturn lowers a return. A jump to the function's single epilogue
// is added so a function with more than one return statement doesn't
// fall through into whatever lowers next.
func lowerReturn(v *lir.Return, fs *funcState) []riscv.Instruction {
	var out []riscv.Instruction
	if v.Src != lir.RegNone {
		out = append(out, riscv.Instruction{Opcode: riscv.OpAddI, Dest: riscv.RegA0, Src1: riscv.Reg(v.Src), Immediate: 0})
	}
	out = append(out, riscv.Instruction{Opcode: riscv.OpJ, Label: epilogueLabel, LabelFunction: fs.idx})
	return out
}

// lowerMovC materializes a constant. When the LUI form is needed, the
// low-12 ADDI accumulates onto the register LUI already wrote rather
// than onto x0 (the literal alternative would discard the upper bits
// LUI just set).
func lowerMovC(v *lir.MovC, fs *funcState) []riscv.Instruction {
	fs.constants[v.Dest] = v.Constant
	dest := riscv.Reg(v.Dest)
	lo := int32(v.Constant % maxImm12)
	if v.Constant <= maxImm12 {
		return []riscv.Instruction{{Opcode: riscv.OpAddI, Dest: dest, Src1: riscv.RegX0, Immediate: int32(v.Constant)}}
	}
	return []riscv.Instruction{
		{Opcode: riscv.OpLui, Dest: dest, Immediate: int32(v.Constant >> 12)},
		{Opcode: riscv.OpAddI, Dest: dest, Src1: dest, Immediate: lo},
	}
}

const maxImm12 = 1 << 12

// lowerCast lowers a cast, sized by the narrower of the source and
// destination types: a cast from U16 to I32 still masks and
// sign-extends at 16 bits, even though the destination is 4 bytes wide.
func lowerCast(v *lir.Cast) ([]riscv.Instruction, error) {
	srcSize, err := v.SrcTyp.SizeInBytes()
	if err != nil {
		return nil, errors.Wrap(ErrNotSized, err.Error())
	}
	destSize, err := v.DestTyp.SizeInBytes()
	if err != nil {
		return nil, errors.Wrap(ErrNotSized, err.Error())
	}
	minSize := srcSize
	if destSize < minSize {
		minSize = destSize
	}
	dest, src := riscv.Reg(v.Dest), riscv.Reg(v.Src)

	if minSize >= 4 {
		if v.Dest == v.Src {
			return nil, nil
		}
		return []riscv.Instruction{{Opcode: riscv.OpAddI, Dest: dest, Src1: src, Immediate: 0}}, nil
	}

	mask := int32(0xff)
	if minSize == 2 {
		mask = 0xffff
	}
	out := []riscv.Instruction{{Opcode: riscv.OpAndI, Dest: dest, Src1: src, Immediate: mask}}
	if v.DestTyp.IsSigned() {
		shift := int32(32 - 8*minSize)
		out = append(out,
			riscv.Instruction{Opcode: riscv.OpSllI, Dest: dest, Src1: dest, Immediate: shift},
			riscv.Instruction{Opcode: riscv.OpSraI, Dest: dest, Src1: dest, Immediate: shift},
		)
	}
	return out, nil
}

// lowerLoadA materializes a global's address as a %hi/%lo pair
// addressing the symbol's .data/.bss label, valid for a single
// translation unit with no linker relocation pass.
func lowerLoadA(v *lir.LoadA, globals map[string]globalSym) ([]riscv.Instruction, error) {
	if _, ok := globals[v.Name]; !ok {
		return nil, errors.Wrapf(ErrUnsupportedFeature, "LoadA of unresolved symbol %q", v.Name)
	}
	dest := riscv.Reg(v.Dest)
	return []riscv.Instruction{
		{Opcode: riscv.OpLui, Dest: dest, Name: v.Name},
		{Opcode: riscv.OpAddI, Dest: dest, Src1: dest, Name: v.Name},
	}, nil
}

// lowerUnary lowers a unary operator.
func lowerUnary(v *lir.Unary) ([]riscv.Instruction, error) {
	dest, src := riscv.Reg(v.Dest), riscv.Reg(v.Src)
	switch v.Op {
	case ast.OpMinus:
		return []riscv.Instruction{{Opcode: riscv.OpSub, Dest: dest, Src1: riscv.RegX0, Src2: src}}, nil
	case ast.OpTilde:
		return []riscv.Instruction{{Opcode: riscv.OpXorI, Dest: dest, Src1: src, Immediate: -1}}, nil
	case ast.OpNot:
		return []riscv.Instruction{{Opcode: riscv.OpSltIU, Dest: dest, Src1: src, Immediate: 1}}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidOperator, "unary operator %v", v.Op)
	}
}

// lowerBranch lowers a conditional or unconditional branch.
func lowerBranch(v *lir.Branch, fs *funcState) ([]riscv.Instruction, error) {
	s1, s2 := riscv.Reg(v.Src1), riscv.Reg(v.Src2)
	unsigned := !v.Typ.IsSigned()
	switch v.Kind {
	case lir.CmpAlways:
		return []riscv.Instruction{{Opcode: riscv.OpJ, Label: v.Target, LabelFunction: fs.idx}}, nil
	case lir.CmpEQ:
		return []riscv.Instruction{{Opcode: riscv.OpBeq, Src1: s1, Src2: s2, Label: v.Target, LabelFunction: fs.idx}}, nil
	case lir.CmpNE:
		return []riscv.Instruction{{Opcode: riscv.OpBne, Src1: s1, Src2: s2, Label: v.Target, LabelFunction: fs.idx}}, nil
	case lir.CmpLT:
		return []riscv.Instruction{{Opcode: riscv.OpBlt, Src1: s1, Src2: s2, Label: v.Target, LabelFunction: fs.idx, IsUnsigned: unsigned}}, nil
	case lir.CmpGE:
		return []riscv.Instruction{{Opcode: riscv.OpBge, Src1: s1, Src2: s2, Label: v.Target, LabelFunction: fs.idx, IsUnsigned: unsigned}}, nil
	case lir.CmpGT:
		return []riscv.Instruction{{Opcode: riscv.OpBlt, Src1: s2, Src2: s1, Label: v.Target, LabelFunction: fs.idx, IsUnsigned: unsigned}}, nil
	case lir.CmpLE:
		return []riscv.Instruction{{Opcode: riscv.OpBge, Src1: s2, Src2: s1, Label: v.Target, LabelFunction: fs.idx, IsUnsigned: unsigned}}, nil
	case lir.CmpS:
		return []riscv.Instruction{{Opcode: riscv.OpBne, Src1: s1, Src2: riscv.RegX0, Label: v.Target, LabelFunction: fs.idx}}, nil
	case lir.CmpNS:
		return []riscv.Instruction{{Opcode: riscv.OpBeq, Src1: s1, Src2: riscv.RegX0, Label: v.Target, LabelFunction: fs.idx}}, nil
	default:
		return nil, errors.Errorf("codegen: unknown compare kind %v", v.Kind)
	}
}

// lowerCall lowers a call. Arguments beyond the eighth spill to the
// stack, highest index first, directly above the callee's own frame
// (the ninth argument at the lowest address), and the spill space is
// reclaimed right after the call returns.
func lowerCall(v *lir.Call) []riscv.Instruction {
	var out []riscv.Instruction
	n := len(v.Args)
	spilled := n - maxArgRegs
	if spilled > 0 {
		grow := int32(wordSize * spilled)
		out = append(out, riscv.Instruction{Opcode: riscv.OpAddI, Dest: riscv.RegSP, Src1: riscv.RegSP, Immediate: -grow})
		for i := n - 1; i >= maxArgRegs; i-- {
			off := int32(i-maxArgRegs) * wordSize
			out = append(out, riscv.Instruction{Opcode: riscv.OpSW, Src1: riscv.RegSP, Src2: riscv.Reg(v.Args[i]), Immediate: off})
		}
	} else {
		spilled = 0
	}
	limit := n
	if limit > maxArgRegs {
		limit = maxArgRegs
	}
	for i := 0; i < limit; i++ {
		out = append(out, riscv.Instruction{Opcode: riscv.OpAddI, Dest: riscv.ArgReg(i), Src1: riscv.Reg(v.Args[i]), Immediate: 0})
	}
	out = append(out, riscv.Instruction{Opcode: riscv.OpJalr, Dest: riscv.RegRA, Name: v.Name})
	if spilled > 0 {
		out = append(out, riscv.Instruction{Opcode: riscv.OpAddI, Dest: riscv.RegSP, Src1: riscv.RegSP, Immediate: int32(wordSize * spilled)})
	}
	if v.Dest != lir.RegNone {
		out = append(out, riscv.Instruction{Opcode: riscv.OpAddI, Dest: riscv.Reg(v.Dest), Src1: riscv.RegA0, Immediate: 0})
	}
	return out
}

// lowerBinary lowers a binary operator, including the synthesized
// comparisons and immediate folding.
func lowerBinary(v *lir.Binary, fs *funcState) ([]riscv.Instruction, error) {
	d, s1, s2 := riscv.Reg(v.Dest), riscv.Reg(v.Src1), riscv.Reg(v.Src2)
	signed := v.Typ.IsSigned()
	switch v.Op {
	case ast.OpPlus:
		if out, ok := foldCommutative(riscv.OpAdd, riscv.OpAddI, d, s1, s2, v.Src1, v.Src2, fs); ok {
			return out, nil
		}
		return []riscv.Instruction{{Opcode: riscv.OpAdd, Dest: d, Src1: s1, Src2: s2}}, nil
	case ast.OpMinus:
		return []riscv.Instruction{{Opcode: riscv.OpSub, Dest: d, Src1: s1, Src2: s2}}, nil
	case ast.OpAsterisk:
		return []riscv.Instruction{{Opcode: riscv.OpMul, Dest: d, Src1: s1, Src2: s2}}, nil
	case ast.OpSlash:
		return []riscv.Instruction{{Opcode: riscv.OpDiv, Dest: d, Src1: s1, Src2: s2, IsUnsigned: !signed}}, nil
	case ast.OpPercent:
		return []riscv.Instruction{{Opcode: riscv.OpRem, Dest: d, Src1: s1, Src2: s2, IsUnsigned: !signed}}, nil
	case ast.OpAnd:
		if out, ok := foldCommutative(riscv.OpAnd, riscv.OpAndI, d, s1, s2, v.Src1, v.Src2, fs); ok {
			return out, nil
		}
		return []riscv.Instruction{{Opcode: riscv.OpAnd, Dest: d, Src1: s1, Src2: s2}}, nil
	case ast.OpOr:
		if out, ok := foldCommutative(riscv.OpOr, riscv.OpOrI, d, s1, s2, v.Src1, v.Src2, fs); ok {
			return out, nil
		}
		return []riscv.Instruction{{Opcode: riscv.OpOr, Dest: d, Src1: s1, Src2: s2}}, nil
	case ast.OpXor:
		if out, ok := foldCommutative(riscv.OpXor, riscv.OpXorI, d, s1, s2, v.Src1, v.Src2, fs); ok {
			return out, nil
		}
		return []riscv.Instruction{{Opcode: riscv.OpXor, Dest: d, Src1: s1, Src2: s2}}, nil
	case ast.OpShl:
		if out, ok := foldShift(riscv.OpSll, riscv.OpSllI, d, s1, s2, v.Src2, fs); ok {
			return out, nil
		}
		return []riscv.Instruction{{Opcode: riscv.OpSll, Dest: d, Src1: s1, Src2: s2}}, nil
	case ast.OpShr:
		op, opI := riscv.OpSrl, riscv.OpSrlI
		if signed {
			op, opI = riscv.OpSra, riscv.OpSraI
		}
		if out, ok := foldShift(op, opI, d, s1, s2, v.Src2, fs); ok {
			return out, nil
		}
		return []riscv.Instruction{{Opcode: op, Dest: d, Src1: s1, Src2: s2}}, nil
	case ast.OpEq:
		return []riscv.Instruction{
			{Opcode: riscv.OpSub, Dest: d, Src1: s1, Src2: s2},
			{Opcode: riscv.OpSltIU, Dest: d, Src1: d, Immediate: 1},
		}, nil
	case ast.OpNe:
		return []riscv.Instruction{
			{Opcode: riscv.OpSub, Dest: d, Src1: s1, Src2: s2},
			{Opcode: riscv.OpSltU, Dest: d, Src1: riscv.RegX0, Src2: d},
		}, nil
	case ast.OpLt:
		return []riscv.Instruction{{Opcode: riscv.OpSlt, Dest: d, Src1: s1, Src2: s2, IsUnsigned: !signed}}, nil
	case ast.OpGt:
		return []riscv.Instruction{{Opcode: riscv.OpSlt, Dest: d, Src1: s2, Src2: s1, IsUnsigned: !signed}}, nil
	case ast.OpLe:
		return []riscv.Instruction{
			{Opcode: riscv.OpSlt, Dest: d, Src1: s2, Src2: s1, IsUnsigned: !signed},
			{Opcode: riscv.OpSltIU, Dest: d, Src1: d, Immediate: 1},
		}, nil
	case ast.OpGe:
		return []riscv.Instruction{
			{Opcode: riscv.OpSlt, Dest: d, Src1: s1, Src2: s2, IsUnsigned: !signed},
			{Opcode: riscv.OpSltU, Dest: d, Src1: riscv.RegX0, Src2: d},
		}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidOperator, "binary operator %v", v.Op)
	}
}

// foldCommutative folds a known constant operand into an immediate
// form for +, ^, &, |: either operand may supply the immediate.
func foldCommutative(op, opI riscv.Opcode, d, s1, s2 riscv.Reg, lir1, lir2 lir.Reg, fs *funcState) ([]riscv.Instruction, bool) {
	if c, ok := fs.constants[lir2]; ok {
		return []riscv.Instruction{{Opcode: opI, Dest: d, Src1: s1, Immediate: int32(c)}}, true
	}
	if c, ok := fs.constants[lir1]; ok {
		return []riscv.Instruction{{Opcode: opI, Dest: d, Src1: s2, Immediate: int32(c)}}, true
	}
	return nil, false
}

// foldShift folds a known constant shift amount into an immediate
// form: only the right-hand (shift amount) operand may fold.
func foldShift(op, opI riscv.Opcode, d, s1, s2 riscv.Reg, lir2 lir.Reg, fs *funcState) ([]riscv.Instruction, bool) {
	if c, ok := fs.constants[lir2]; ok {
		return []riscv.Instruction{{Opcode: opI, Dest: d, Src1: s1, Immediate: int32(c)}}, true
	}
	return nil, false
}

// storeTo writes valueReg to addrReg's memory location: a frame slot if
// addrReg names one, otherwise a store through the register itself at
// offset 0.
func storeTo(fs *funcState, addrReg, valueReg lir.Reg, typ types.Type) ([]riscv.Instruction, error) {
	op, err := storeOpcode(typ)
	if err != nil {
		return nil, err
	}
	if off, ok := fs.offsets[addrReg]; ok {
		return []riscv.Instruction{{Opcode: op, Src1: riscv.RegFP, Src2: riscv.Reg(valueReg), Immediate: off}}, nil
	}
	return []riscv.Instruction{{Opcode: op, Src1: riscv.Reg(addrReg), Src2: riscv.Reg(valueReg), Immediate: 0}}, nil
}

// loadFrom reads from addrReg's memory location into destReg, frame
// slot if known, else through the register itself.
func loadFrom(fs *funcState, destReg, addrReg lir.Reg, typ types.Type) ([]riscv.Instruction, error) {
	op, err := loadOpcode(typ)
	if err != nil {
		return nil, err
	}
	if off, ok := fs.offsets[addrReg]; ok {
		return []riscv.Instruction{{Opcode: op, Dest: riscv.Reg(destReg), Src1: riscv.RegFP, Immediate: off}}, nil
	}
	return []riscv.Instruction{{Opcode: op, Dest: riscv.Reg(destReg), Src1: riscv.Reg(addrReg), Immediate: 0}}, nil
}

func storeOpcode(t types.Type) (riscv.Opcode, error) {
	n, err := t.SizeInBytes()
	if err != nil {
		return 0, errors.Wrap(ErrNotSized, err.Error())
	}
	switch n {
	case 1:
		return riscv.OpSB, nil
	case 2:
		return riscv.OpSH, nil
	default:
		return riscv.OpSW, nil
	}
}

func loadOpcode(t types.Type) (riscv.Opcode, error) {
	n, err := t.SizeInBytes()
	if err != nil {
		return 0, errors.Wrap(ErrNotSized, err.Error())
	}
	switch n {
	case 1:
		return riscv.OpLB, nil
	case 2:
		return riscv.OpLH, nil
	default:
		return riscv.OpLW, nil
	}
}
