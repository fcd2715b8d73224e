// Package codegen lowers an optimized lir.Program to RISC-V assembly
// text.
package codegen

import (
	"io"

	"github.com/pkg/errors"

	"riscc/src/lir"
	"riscc/src/riscv"
)

const (
	maxArgRegs   = 8  // Argument registers a0..a7; the ninth argument onward spills to the stack.
	stackAlign   = 16 // RISC-V's activation record alignment requirement.
	savedSlots   = 8  // Bytes reserved for saved RA and saved FP.
	wordSize     = 4
	epilogueLabel = -1 // Never collides with a lir label id, which are all >= 0.
)

// funcState holds the per-function codegen state accumulated while
// lowering one function's body.
type funcState struct {
	idx       int
	name      string
	frameSize int32
	offsets   map[lir.Reg]int32  // Local virtual register -> stack slot offset from FP.
	constants map[lir.Reg]uint32 // Virtual register -> known constant, for immediate folding.
}

// Generate lowers prog to RISC-V assembly text and writes it to w.
// Globals are rendered as a leading .data/.bss section; functions
// follow in a .text section, init first.
func Generate(prog *lir.Program, w io.Writer) error {
	globals, err := collectGlobals(prog)
	if err != nil {
		return err
	}
	if len(globals) > 0 {
		if _, err := io.WriteString(w, renderGlobals(globals)); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, ".text\n"); err != nil {
		return err
	}
	for idx, fn := range prog.Functions {
		instrs, err := generateFunction(idx, fn, globals)
		if err != nil {
			return errors.Wrapf(err, "function %s", fn.Name)
		}
		if _, err := io.WriteString(w, riscv.Print(instrs)); err != nil {
			return err
		}
	}
	return nil
}

// generateFunction builds one function's prologue, lowered body and
// epilogue in order.
func generateFunction(idx int, fn *lir.FunctionDecl, globals map[string]globalSym) ([]riscv.Instruction, error) {
	offsets, frameSize, err := computeFrame(fn.Body)
	if err != nil {
		return nil, err
	}
	fs := &funcState{idx: idx, name: fn.Name, frameSize: frameSize, offsets: offsets, constants: map[lir.Reg]uint32{}}

	out := prologue(fs)
	out = append(out, materializeParams(fs, fn)...)
	for _, in := range fn.Body {
		lowered, err := lowerInstr(in, fs, globals)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered...)
	}
	out = trimRedundantEpilogueJump(out, fs.idx)
	out = append(out, epilogue(fs)...)
	return out, nil
}

// trimRedundantEpilogueJump drops a trailing unconditional jump to the
// epilogue when it is already the last instruction lowered: the
// epilogue's label comes immediately after, so falling through reaches
// the same place. lir-level redundant-jump removal runs before
// codegen and never sees this jump, since it doesn't exist until
// lowerReturn emits it.
func trimRedundantEpilogueJump(out []riscv.Instruction, idx int) []riscv.Instruction {
	if n := len(out); n > 0 {
		last := out[n-1]
		if last.Opcode == riscv.OpJ && last.Label == epilogueLabel && last.LabelFunction == idx {
			return out[:n-1]
		}
	}
	return out
}

// computeFrame assigns each non-global, non-array local a stack slot,
// grouped by size class 4, 2, 1 to keep natural alignment. Arrays
// whose backing storage size lives in a register (Alloc.FromReg) are
// an explicitly unsupported feature.
func computeFrame(body []lir.Instr) (map[lir.Reg]int32, int32, error) {
	var byClass [3][]lir.Reg // 4-byte, 2-byte, 1-byte locals, in declaration order.
	for _, in := range body {
		a, ok := in.(*lir.Alloc)
		if !ok || a.IsGlobal {
			continue
		}
		if a.FromReg {
			return nil, 0, errors.Wrapf(ErrUnsupportedFeature, "array %q: backing storage sized from a register", a.Name)
		}
		n, err := a.Typ.SizeInBytes()
		if err != nil {
			return nil, 0, errors.Wrap(ErrNotSized, err.Error())
		}
		switch n {
		case 4:
			byClass[0] = append(byClass[0], a.Dest)
		case 2:
			byClass[1] = append(byClass[1], a.Dest)
		default:
			byClass[2] = append(byClass[2], a.Dest)
		}
	}

	offsets := map[lir.Reg]int32{}
	sizes := [3]int32{4, 2, 1}
	cursor := int32(savedSlots)
	for class, regs := range byClass {
		for _, r := range regs {
			cursor += sizes[class]
			offsets[r] = -cursor
		}
	}
	return offsets, roundUp16(cursor), nil
}

func roundUp16(n int32) int32 {
	if r := n % stackAlign; r != 0 {
		return n + (stackAlign - r)
	}
	return n
}

// prologue emits the standard entry sequence: allocate the frame, save
// RA and FP, then set up the new frame pointer.
func prologue(fs *funcState) []riscv.Instruction {
	return []riscv.Instruction{
		{Opcode: riscv.OpLabelFunction, Name: fs.name},
		{Opcode: riscv.OpAddI, Dest: riscv.RegSP, Src1: riscv.RegSP, Immediate: -fs.frameSize},
		{Opcode: riscv.OpSW, Src1: riscv.RegSP, Src2: riscv.RegRA, Immediate: fs.frameSize - 4},
		{Opcode: riscv.OpSW, Src1: riscv.RegSP, Src2: riscv.RegFP, Immediate: fs.frameSize - 8},
		{Opcode: riscv.OpAddI, Dest: riscv.RegFP, Src1: riscv.RegSP, Immediate: fs.frameSize},
	}
}

// materializeParams copies each incoming argument into its parameter's
// frame slot right after the prologue. fn.ParamRegs carries the
// destination register lirgen assigned to each parameter's Alloc, in
// declaration order, independent of where (or whether) that Alloc
// still appears in the optimized Body — dead-code removal keeps every
// parameter's Alloc precisely so this lookup always finds a slot, but
// the indexing itself no longer assumes Body's first entries are the
// parameter Allocs in position order. The first eight arguments arrive
// in a0..a7; the rest were spilled by the caller's lowerCall directly
// above this function's own frame, so they are loaded from
// frameSize+(i-8)*4(sp).
func materializeParams(fs *funcState, fn *lir.FunctionDecl) []riscv.Instruction {
	var out []riscv.Instruction
	for i, typ := range fn.ArgTypes {
		if i >= len(fn.ParamRegs) {
			break
		}
		off, ok := fs.offsets[fn.ParamRegs[i]]
		if !ok {
			continue
		}
		op, err := storeOpcode(typ)
		if err != nil {
			continue
		}
		if i < maxArgRegs {
			out = append(out, riscv.Instruction{Opcode: op, Src1: riscv.RegFP, Src2: riscv.ArgReg(i), Immediate: off})
		} else {
			tmp := riscv.Reg(fn.ParamRegs[i])
			loadOp, err := loadOpcode(typ)
			if err != nil {
				continue
			}
			spillOff := fs.frameSize + int32(i-maxArgRegs)*wordSize
			out = append(out,
				riscv.Instruction{Opcode: loadOp, Dest: tmp, Src1: riscv.RegSP, Immediate: spillOff},
				riscv.Instruction{Opcode: op, Src1: riscv.RegFP, Src2: tmp, Immediate: off},
			)
		}
	}
	return out
}

// epilogue restores RA and FP, deallocates the frame and returns. Its
// Label is the target of every Return's unconditional jump (see
// lowerReturn), since a function may have more than one return point.
func epilogue(fs *funcState) []riscv.Instruction {
	return []riscv.Instruction{
		{Opcode: riscv.OpLabel, Label: epilogueLabel, LabelFunction: fs.idx},
		{Opcode: riscv.OpLW, Dest: riscv.RegRA, Src1: riscv.RegSP, Immediate: fs.frameSize - 4},
		{Opcode: riscv.OpLW, Dest: riscv.RegFP, Src1: riscv.RegSP, Immediate: fs.frameSize - 8},
		{Opcode: riscv.OpAddI, Dest: riscv.RegSP, Src1: riscv.RegSP, Immediate: fs.frameSize},
		{Opcode: riscv.OpJalr, Dest: riscv.RegX0, Src1: riscv.RegRA},
	}
}
