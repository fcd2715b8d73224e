package riscv

import "fmt"

// Instruction is a single lowered RISC-V instruction or pseudo-op.
// Not every field is meaningful for every Opcode; the printer below
// reads only the fields its category needs.
type Instruction struct {
	Opcode            Opcode
	Dest              Reg
	Src1              Reg
	Src2              Reg
	Immediate         int32
	Label             int    // Local label id, for OpLabel/OpJ/branches.
	LabelFunction     int    // Function index, used to build L_<idx>_<id> names.
	IsUnsigned        bool   // Selects the 'u' mnemonic suffix where the ISA distinguishes it.
	Name              string // Symbol name: function label, callee, global.
	RegisterAllocated bool   // True once physical-register assignment has run (never, in this core).
}

// mnemonics gives the base (signed/unconditional) text for each opcode.
var mnemonics = map[Opcode]string{
	OpAdd: "add", OpAddI: "addi",
	OpSub: "sub", OpMul: "mul",
	OpDiv: "div", OpRem: "rem",
	OpAnd: "and", OpAndI: "andi",
	OpOr: "or", OpOrI: "ori",
	OpXor: "xor", OpXorI: "xori",
	OpSll: "sll", OpSllI: "slli",
	OpSrl: "srl", OpSrlI: "srli",
	OpSra: "sra", OpSraI: "srai",
	OpSlt: "slt", OpSltI: "slti",
	OpSltIU: "sltiu", OpSltU: "sltu",
	OpLui: "lui",
	OpLB:  "lb", OpLH: "lh", OpLW: "lw",
	OpSB: "sb", OpSH: "sh", OpSW: "sw",
	OpBeq: "beq", OpBne: "bne",
	OpBlt: "blt", OpBge: "bge",
	OpJalr: "jalr", OpNop: "nop",
}

// suffixed reports whether opcode op appends 'u' to its mnemonic when
// IsUnsigned is set.
func suffixed(op Opcode) bool {
	switch op {
	case OpSlt, OpSltI, OpDiv, OpRem, OpBlt, OpBge:
		return true
	default:
		return false
	}
}

func mnemonic(in Instruction) string {
	m := mnemonics[in.Opcode]
	if suffixed(in.Opcode) && in.IsUnsigned {
		return m + "u"
	}
	return m
}

// regNames are the fixed-register spellings in output order, indexed
// by -Reg - 1 (since fixed registers are negative, starting at -1).
var regNames = []string{"sp", "gp", "s0", "ra", "x0", "a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"}

// RegName formats register r: fixed registers by their ABI name,
// unallocated virtual registers as
// r<n>, and (once register allocation has assigned one, which this
// core never performs) t<n>/s<n> by allocated index.
func RegName(r Reg, allocated bool) string {
	if r < 0 {
		idx := int(-r - 1)
		if idx >= 0 && idx < len(regNames) {
			return regNames[idx]
		}
	}
	if r.IsVirtual() {
		if allocated {
			if int(r) <= 6 {
				return fmt.Sprintf("t%d", r)
			}
			return fmt.Sprintf("s%d", r)
		}
		return fmt.Sprintf("r%d", r)
	}
	return "x0"
}

func (in Instruction) regName(r Reg) string {
	return RegName(r, in.RegisterAllocated)
}

// funcLabel formats a Label or Jump target as
// L_<function-index>_<label-id>.
func funcLabel(funcIdx, id int) string {
	return fmt.Sprintf("L_%d_%d", funcIdx, id)
}

// String formats one instruction. A label is bare text followed by a
// colon; anything else is "\tMNEMONIC\tOPS\n".
func (in Instruction) String() string {
	switch in.Opcode {
	case OpLabel:
		return funcLabel(in.LabelFunction, in.Label) + ":\n"
	case OpLabelFunction:
		return in.Name + ":\n"
	case OpNop:
		return "\tnop\n"
	case OpJ:
		return fmt.Sprintf("\tj\t%s\n", funcLabel(in.LabelFunction, in.Label))
	case OpJalr:
		// Name set: a direct call by symbol ("jalr ra, callee"). Name
		// empty: a register-indirect jalr, used by the epilogue's return
		// ("jalr x0, ra, 0").
		if in.Name != "" {
			return fmt.Sprintf("\tjalr\t%s, %s\n", in.regName(in.Dest), in.Name)
		}
		return fmt.Sprintf("\tjalr\t%s, %s, 0\n", in.regName(in.Dest), in.regName(in.Src1))
	case OpLui:
		if in.Name != "" {
			return fmt.Sprintf("\tlui\t%s, %%hi(%s)\n", in.regName(in.Dest), in.Name)
		}
		return fmt.Sprintf("\tlui\t%s, %d\n", in.regName(in.Dest), in.Immediate)
	case OpAddI:
		if in.Name != "" {
			return fmt.Sprintf("\taddi\t%s, %s, %%lo(%s)\n", in.regName(in.Dest), in.regName(in.Src1), in.Name)
		}
		return fmt.Sprintf("\taddi\t%s, %s, %d\n", in.regName(in.Dest), in.regName(in.Src1), in.Immediate)
	case OpAndI, OpOrI, OpXorI, OpSllI, OpSrlI, OpSraI, OpSltI, OpSltIU:
		return fmt.Sprintf("\t%s\t%s, %s, %d\n", mnemonic(in), in.regName(in.Dest), in.regName(in.Src1), in.Immediate)
	case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpAnd, OpOr, OpXor, OpSll, OpSrl, OpSra, OpSlt, OpSltU:
		return fmt.Sprintf("\t%s\t%s, %s, %s\n", mnemonic(in), in.regName(in.Dest), in.regName(in.Src1), in.regName(in.Src2))
	case OpLB, OpLH, OpLW:
		return fmt.Sprintf("\t%s\t%s, %d(%s)\n", mnemonic(in), in.regName(in.Dest), in.Immediate, in.regName(in.Src1))
	case OpSB, OpSH, OpSW:
		return fmt.Sprintf("\t%s\t%s, %d(%s)\n", mnemonic(in), in.regName(in.Src2), in.Immediate, in.regName(in.Src1))
	case OpBeq, OpBne, OpBlt, OpBge:
		return fmt.Sprintf("\t%s\t%s, %s, %s\n", mnemonic(in), in.regName(in.Src1), in.regName(in.Src2), funcLabel(in.LabelFunction, in.Label))
	default:
		return fmt.Sprintf("\t; unknown opcode %d\n", in.Opcode)
	}
}

// Print formats a full instruction stream.
func Print(in []Instruction) string {
	var sb []byte
	for _, i1 := range in {
		sb = append(sb, i1.String()...)
	}
	return string(sb)
}
