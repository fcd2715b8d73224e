// Package llvmgen is the alternate code generator backend reached via
// --emit=llvm: it lowers a lir.Program straight to LLVM IR through
// tinygo.org/x/go-llvm instead of through package riscv. Module and
// builder setup, the value table, and the basic-block shapes for
// if/while follow the same structure as the riscv backend, but driven
// by a typed lir.Program instead of an untyped tree.
package llvmgen

import (
	"sort"

	"github.com/pkg/errors"

	"tinygo.org/x/go-llvm"

	"riscc/src/ast"
	"riscc/src/lir"
	"riscc/src/types"
)

// Options configures one Emit call. ModuleName names the produced LLVM
// module.
type Options struct {
	ModuleName string
}

const defaultModuleName = "riscc"

// Emit lowers prog to LLVM IR text. Every register's LLVM value,
// pointer or scalar alike, is tracked in one map per function so the
// lowering never needs a separate scope-stack symbol table: lir's
// virtual registers already carry the scoping a node-keyed symbol
// table would otherwise exist to reconstruct.
func Emit(prog *lir.Program, opt Options) (string, error) {
	if len(prog.Functions) == 0 {
		return "", errors.New("llvmgen: empty program")
	}

	name := opt.ModuleName
	if name == "" {
		name = defaultModuleName
	}

	ctx := llvm.NewContext()
	defer ctx.Dispose()
	b := ctx.NewBuilder()
	defer b.Dispose()
	m := ctx.NewModule(name)
	defer m.Dispose()

	globals, err := declareGlobals(m, prog)
	if err != nil {
		return "", err
	}

	for _, fn := range prog.Functions {
		target, ok := globals[fn.Name]
		if !ok {
			return "", errors.Errorf("llvmgen: function %q was not declared", fn.Name)
		}
		if err := emitFunctionBody(b, target, fn, globals); err != nil {
			return "", errors.Wrapf(err, "function %s", fn.Name)
		}
	}

	return m.String(), nil
}

// declareGlobals declares every function header and every global
// variable up front, so forward calls (including init's call to main,
// which textually precedes main in source order) resolve. init always
// running first doesn't imply anything about declaration order.
func declareGlobals(m llvm.Module, prog *lir.Program) (map[string]llvm.Value, error) {
	globals := map[string]llvm.Value{}

	for _, fn := range prog.Functions {
		argTys := make([]llvm.Type, len(fn.ArgTypes))
		for i, t := range fn.ArgTypes {
			ty, err := llvmType(t)
			if err != nil {
				return nil, err
			}
			argTys[i] = ty
		}
		retTy, err := llvmType(fn.ReturnType)
		if err != nil {
			return nil, err
		}
		ftyp := llvm.FunctionType(retTy, argTys, false)
		globals[fn.Name] = llvm.AddFunction(m, fn.Name, ftyp)
	}

	if len(prog.Functions) == 0 {
		return globals, nil
	}

	// Global variables are declared by the synthesized init function's
	// Alloc(is_global=true) instructions, the same pass codegen's
	// collectGlobals runs, here targeting an LLVM global definition
	// instead of a .data/.bss directive.
	constOf := map[lir.Reg]uint32{}
	for _, in := range prog.Functions[0].Body {
		switch v := in.(type) {
		case *lir.MovC:
			constOf[v.Dest] = v.Constant
		case *lir.Alloc:
			if !v.IsGlobal {
				continue
			}
			ty, err := llvmType(v.Typ)
			if err != nil {
				return nil, err
			}
			g := llvm.AddGlobal(m, ty, v.Name)
			if v.Init != lir.RegNone {
				if c, ok := constOf[v.Init]; ok {
					g.SetInitializer(llvm.ConstInt(ty, uint64(c), v.Typ.IsSigned()))
				} else {
					g.SetInitializer(llvm.ConstNull(ty))
				}
			} else {
				g.SetInitializer(llvm.ConstNull(ty))
			}
			globals[v.Name] = g
		}
	}
	return globals, nil
}

// llvmType maps a types.Type to its LLVM representation. Addresses are
// kept as genuinely typed LLVM pointers (unlike the flat 32-bit-word
// model package codegen uses), since LLVM IR needs real pointer types
// for CreateLoad/CreateStore/CreateGEP to type-check.
func llvmType(t types.Type) (llvm.Type, error) {
	if t.Pointer > 0 {
		elem, err := llvmType(t.Pointee())
		if err != nil {
			return llvm.Type{}, err
		}
		return llvm.PointerType(elem, 0), nil
	}
	switch t.Native {
	case types.Void:
		return llvm.VoidType(), nil
	case types.U8, types.I8:
		return llvm.Int8Type(), nil
	case types.U16, types.I16:
		return llvm.Int16Type(), nil
	case types.U32, types.I32, types.Null:
		return llvm.Int32Type(), nil
	default:
		return llvm.Type{}, errors.Errorf("llvmgen: no LLVM type for %s", t)
	}
}

// emitFunctionBody partitions decl.Body into basic blocks (one per
// Label target, one right after every Branch for its fallthrough) and
// lowers each instruction in order, operating over a flat instruction
// list instead of a recursive tree walk.
func emitFunctionBody(b llvm.Builder, fn llvm.Value, decl *lir.FunctionDecl, globals map[string]llvm.Value) error {
	body := decl.Body

	starts := map[int]bool{0: true}
	labelIdx := map[int]int{}
	for i, in := range body {
		switch v := in.(type) {
		case *lir.Label:
			starts[i] = true
			labelIdx[v.ID] = i
		case *lir.Branch:
			if i+1 < len(body) {
				starts[i+1] = true
			}
		}
	}
	ordered := make([]int, 0, len(starts))
	for idx := range starts {
		ordered = append(ordered, idx)
	}
	sort.Ints(ordered)

	blockAt := make(map[int]llvm.BasicBlock, len(ordered))
	for _, idx := range ordered {
		blockAt[idx] = llvm.AddBasicBlock(fn, "")
	}
	labelBlock := func(id int) (llvm.BasicBlock, error) {
		idx, ok := labelIdx[id]
		if !ok {
			return llvm.BasicBlock{}, errors.Errorf("llvmgen: branch to undefined label %d", id)
		}
		return blockAt[idx], nil
	}

	values := map[lir.Reg]llvm.Value{}

	b.SetInsertPointAtEnd(blockAt[0])
	terminated := false

	for i, in := range body {
		if blk, isStart := blockAt[i]; isStart && i != 0 {
			if !terminated {
				b.CreateBr(blk)
			}
			b.SetInsertPointAtEnd(blk)
			terminated = false
		}

		switch v := in.(type) {
		case *lir.Alloc:
			if v.IsGlobal {
				continue
			}
			if v.FromReg {
				return errors.Errorf("llvmgen: array %q: backing storage sized from a register is unsupported", v.Name)
			}
			elemTy, err := llvmType(v.Typ)
			if err != nil {
				return err
			}
			ptr := b.CreateAlloca(elemTy, v.Name)
			if i < len(decl.ArgTypes) {
				b.CreateStore(fn.Param(i), ptr)
			} else if v.Init != lir.RegNone {
				src, err := resolve(values, v.Init)
				if err != nil {
					return err
				}
				b.CreateStore(src, ptr)
			}
			values[v.Dest] = ptr

		case *lir.Return:
			if v.Src == lir.RegNone {
				b.CreateRetVoid()
			} else {
				src, err := resolve(values, v.Src)
				if err != nil {
					return err
				}
				b.CreateRet(src)
			}
			terminated = true

		case *lir.MovC:
			ty, err := llvmType(v.Typ)
			if err != nil {
				return err
			}
			values[v.Dest] = llvm.ConstInt(ty, uint64(v.Constant), v.Typ.IsSigned())

		case *lir.Cast:
			src, err := resolve(values, v.Src)
			if err != nil {
				return err
			}
			destTy, err := llvmType(v.DestTyp)
			if err != nil {
				return err
			}
			srcSize, err := v.SrcTyp.SizeInBytes()
			if err != nil {
				return errors.Wrap(err, "llvmgen cast")
			}
			destSize, err := v.DestTyp.SizeInBytes()
			if err != nil {
				return errors.Wrap(err, "llvmgen cast")
			}
			switch {
			case destSize > srcSize:
				if v.SrcTyp.IsSigned() {
					values[v.Dest] = b.CreateSExt(src, destTy, "")
				} else {
					values[v.Dest] = b.CreateZExt(src, destTy, "")
				}
			case destSize < srcSize:
				values[v.Dest] = b.CreateTrunc(src, destTy, "")
			default:
				values[v.Dest] = src
			}

		case *lir.Store:
			ptr, err := resolve(values, v.Addr)
			if err != nil {
				return err
			}
			val, err := resolve(values, v.Value)
			if err != nil {
				return err
			}
			b.CreateStore(val, ptr)

		case *lir.LoadA:
			g, ok := globals[v.Name]
			if !ok {
				return errors.Errorf("llvmgen: LoadA of unresolved symbol %q", v.Name)
			}
			values[v.Dest] = g

		case *lir.LoadR:
			ptr, err := resolve(values, v.Addr)
			if err != nil {
				return err
			}
			values[v.Dest] = b.CreateLoad(ptr, "")

		case *lir.Label:
			// Block boundary only; no instruction to emit.

		case *lir.Call:
			target, ok := globals[v.Name]
			if !ok {
				return errors.Errorf("llvmgen: call to undeclared function %q", v.Name)
			}
			args := make([]llvm.Value, len(v.Args))
			for i1, a := range v.Args {
				val, err := resolve(values, a)
				if err != nil {
					return err
				}
				args[i1] = val
			}
			ret := b.CreateCall(target, args, "")
			if v.Dest != lir.RegNone {
				values[v.Dest] = ret
			}

		case *lir.Branch:
			if v.Kind == lir.CmpAlways {
				target, err := labelBlock(v.Target)
				if err != nil {
					return err
				}
				b.CreateBr(target)
				terminated = true
				continue
			}
			cond, err := emitCondition(b, values, v)
			if err != nil {
				return err
			}
			target, err := labelBlock(v.Target)
			if err != nil {
				return err
			}
			fallthroughBlk, ok := blockAt[i+1]
			if !ok {
				return errors.New("llvmgen: conditional branch is the last instruction in its function")
			}
			b.CreateCondBr(cond, target, fallthroughBlk)
			terminated = true

		case *lir.Unary:
			src, err := resolve(values, v.Src)
			if err != nil {
				return err
			}
			out, err := emitUnary(b, v, src)
			if err != nil {
				return err
			}
			values[v.Dest] = out

		case *lir.Binary:
			s1, err := resolve(values, v.Src1)
			if err != nil {
				return err
			}
			s2, err := resolve(values, v.Src2)
			if err != nil {
				return err
			}
			out, err := emitBinary(b, v, s1, s2)
			if err != nil {
				return err
			}
			values[v.Dest] = out

		default:
			return errors.Errorf("llvmgen: unhandled instruction %T", in)
		}
	}
	return nil
}

func resolve(values map[lir.Reg]llvm.Value, r lir.Reg) (llvm.Value, error) {
	v, ok := values[r]
	if !ok {
		return llvm.Value{}, errors.Errorf("llvmgen: register r%d used before it was defined", r)
	}
	return v, nil
}

// emitCondition lowers a non-CmpAlways Branch's test to an i1 value.
func emitCondition(b llvm.Builder, values map[lir.Reg]llvm.Value, v *lir.Branch) (llvm.Value, error) {
	s1, err := resolve(values, v.Src1)
	if err != nil {
		return llvm.Value{}, err
	}
	if v.Kind == lir.CmpS || v.Kind == lir.CmpNS {
		zero := llvm.ConstInt(s1.Type(), 0, false)
		if v.Kind == lir.CmpS {
			return b.CreateICmp(llvm.IntNE, s1, zero, ""), nil
		}
		return b.CreateICmp(llvm.IntEQ, s1, zero, ""), nil
	}
	s2, err := resolve(values, v.Src2)
	if err != nil {
		return llvm.Value{}, err
	}
	signed := v.Typ.IsSigned()
	switch v.Kind {
	case lir.CmpEQ:
		return b.CreateICmp(llvm.IntEQ, s1, s2, ""), nil
	case lir.CmpNE:
		return b.CreateICmp(llvm.IntNE, s1, s2, ""), nil
	case lir.CmpGT:
		if signed {
			return b.CreateICmp(llvm.IntSGT, s1, s2, ""), nil
		}
		return b.CreateICmp(llvm.IntUGT, s1, s2, ""), nil
	case lir.CmpGE:
		if signed {
			return b.CreateICmp(llvm.IntSGE, s1, s2, ""), nil
		}
		return b.CreateICmp(llvm.IntUGE, s1, s2, ""), nil
	case lir.CmpLT:
		if signed {
			return b.CreateICmp(llvm.IntSLT, s1, s2, ""), nil
		}
		return b.CreateICmp(llvm.IntULT, s1, s2, ""), nil
	case lir.CmpLE:
		if signed {
			return b.CreateICmp(llvm.IntSLE, s1, s2, ""), nil
		}
		return b.CreateICmp(llvm.IntULE, s1, s2, ""), nil
	default:
		return llvm.Value{}, errors.Errorf("llvmgen: unsupported branch condition %s", v.Kind)
	}
}

func emitUnary(b llvm.Builder, v *lir.Unary, src llvm.Value) (llvm.Value, error) {
	switch v.Op {
	case ast.OpMinus:
		return b.CreateSub(llvm.ConstInt(src.Type(), 0, false), src, ""), nil
	case ast.OpTilde:
		return b.CreateXor(src, llvm.ConstInt(src.Type(), ^uint64(0), false), ""), nil
	case ast.OpNot:
		zero := llvm.ConstInt(src.Type(), 0, false)
		return b.CreateICmp(llvm.IntEQ, src, zero, ""), nil
	default:
		return llvm.Value{}, errors.Errorf("llvmgen: invalid unary operator %d", v.Op)
	}
}

// emitBinary lowers arithmetic, bitwise, pointer-arithmetic and the
// six synthesized comparisons. Pointer-typed operands use CreateGEP
// instead of integer add/sub, since LLVM pointers aren't integers.
func emitBinary(b llvm.Builder, v *lir.Binary, s1, s2 llvm.Value) (llvm.Value, error) {
	if v.Typ.IsPointer() && (v.Op == ast.OpPlus || v.Op == ast.OpMinus) {
		off := s2
		if v.Op == ast.OpMinus {
			off = b.CreateSub(llvm.ConstInt(s2.Type(), 0, false), s2, "")
		}
		return b.CreateGEP(s1, []llvm.Value{off}, ""), nil
	}

	signed := v.Typ.IsSigned()
	switch v.Op {
	case ast.OpPlus:
		return b.CreateAdd(s1, s2, ""), nil
	case ast.OpMinus:
		return b.CreateSub(s1, s2, ""), nil
	case ast.OpAsterisk:
		return b.CreateMul(s1, s2, ""), nil
	case ast.OpSlash:
		if signed {
			return b.CreateSDiv(s1, s2, ""), nil
		}
		return b.CreateUDiv(s1, s2, ""), nil
	case ast.OpPercent:
		if signed {
			return b.CreateSRem(s1, s2, ""), nil
		}
		return b.CreateURem(s1, s2, ""), nil
	case ast.OpAnd:
		return b.CreateAnd(s1, s2, ""), nil
	case ast.OpOr:
		return b.CreateOr(s1, s2, ""), nil
	case ast.OpXor:
		return b.CreateXor(s1, s2, ""), nil
	case ast.OpShl:
		return b.CreateShl(s1, s2, ""), nil
	case ast.OpShr:
		if signed {
			return b.CreateAShr(s1, s2, ""), nil
		}
		return b.CreateLShr(s1, s2, ""), nil
	case ast.OpEq:
		return b.CreateZExt(b.CreateICmp(llvm.IntEQ, s1, s2, ""), s1.Type(), ""), nil
	case ast.OpNe:
		return b.CreateZExt(b.CreateICmp(llvm.IntNE, s1, s2, ""), s1.Type(), ""), nil
	case ast.OpLt:
		return b.CreateZExt(cmpLT(b, signed, s1, s2), s1.Type(), ""), nil
	case ast.OpGt:
		return b.CreateZExt(cmpGT(b, signed, s1, s2), s1.Type(), ""), nil
	case ast.OpLe:
		return b.CreateZExt(cmpLE(b, signed, s1, s2), s1.Type(), ""), nil
	case ast.OpGe:
		return b.CreateZExt(cmpGE(b, signed, s1, s2), s1.Type(), ""), nil
	default:
		return llvm.Value{}, errors.Errorf("llvmgen: invalid binary operator %d", v.Op)
	}
}

func cmpLT(b llvm.Builder, signed bool, s1, s2 llvm.Value) llvm.Value {
	if signed {
		return b.CreateICmp(llvm.IntSLT, s1, s2, "")
	}
	return b.CreateICmp(llvm.IntULT, s1, s2, "")
}

func cmpGT(b llvm.Builder, signed bool, s1, s2 llvm.Value) llvm.Value {
	if signed {
		return b.CreateICmp(llvm.IntSGT, s1, s2, "")
	}
	return b.CreateICmp(llvm.IntUGT, s1, s2, "")
}

func cmpLE(b llvm.Builder, signed bool, s1, s2 llvm.Value) llvm.Value {
	if signed {
		return b.CreateICmp(llvm.IntSLE, s1, s2, "")
	}
	return b.CreateICmp(llvm.IntULE, s1, s2, "")
}

func cmpGE(b llvm.Builder, signed bool, s1, s2 llvm.Value) llvm.Value {
	if signed {
		return b.CreateICmp(llvm.IntSGE, s1, s2, "")
	}
	return b.CreateICmp(llvm.IntUGE, s1, s2, "")
}
