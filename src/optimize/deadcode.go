package optimize

import "riscc/src/lir"

// localSet collects the destination registers of every Alloc in body:
// the set of addresses known not to escape the function.
func localSet(body []lir.Instr) map[lir.Reg]bool {
	l := map[lir.Reg]bool{}
	for _, in := range body {
		if a, ok := in.(*lir.Alloc); ok {
			l[a.Dest] = true
		}
	}
	return l
}

// srcRegs returns the (up to two) source/operand registers an
// instruction reads, excluding lir.RegNone.
func srcRegs(in lir.Instr) []lir.Reg {
	add := func(regs []lir.Reg, rs ...lir.Reg) []lir.Reg {
		for _, r := range rs {
			if r != lir.RegNone {
				regs = append(regs, r)
			}
		}
		return regs
	}
	var regs []lir.Reg
	switch i := in.(type) {
	case *lir.Alloc:
		regs = add(regs, i.Init)
		if i.FromReg {
			regs = add(regs, i.SizeReg)
		}
	case *lir.Return:
		regs = add(regs, i.Src)
	case *lir.MovC:
		// No source registers.
	case *lir.Cast:
		regs = add(regs, i.Src)
	case *lir.Store:
		regs = add(regs, i.Addr, i.Value)
	case *lir.LoadA:
		// No source registers.
	case *lir.LoadR:
		regs = add(regs, i.Addr)
	case *lir.Label:
		// No source registers.
	case *lir.Call:
		regs = add(regs, i.Args...)
	case *lir.Branch:
		regs = add(regs, i.Src1, i.Src2)
	case *lir.Binary:
		regs = add(regs, i.Src1, i.Src2)
	case *lir.Unary:
		regs = add(regs, i.Src)
	}
	return regs
}

// destReg returns the register an instruction writes, or lir.RegNone if
// it writes none.
func destReg(in lir.Instr) lir.Reg {
	switch i := in.(type) {
	case *lir.Alloc:
		return i.Dest
	case *lir.MovC:
		return i.Dest
	case *lir.Cast:
		return i.Dest
	case *lir.LoadA:
		return i.Dest
	case *lir.LoadR:
		return i.Dest
	case *lir.Call:
		return i.Dest
	case *lir.Binary:
		return i.Dest
	case *lir.Unary:
		return i.Dest
	default:
		return lir.RegNone
	}
}

// removeDeadCode runs a backward mark-sweep liveness pass over one
// function body, dropping instructions whose results are never used.
// paramRegs are the destination registers of the function's parameter
// Allocs (lir.FunctionDecl.ParamRegs): codegen's materializeParams
// keys on these regardless of whether anything in the body reads them,
// since the ABI requires a slot for every parameter, so their Allocs
// are always kept.
func removeDeadCode(body []lir.Instr, paramRegs []lir.Reg) []lir.Instr {
	l := localSet(body)
	mustKeep := make(map[lir.Reg]bool, len(paramRegs))
	for _, r := range paramRegs {
		mustKeep[r] = true
	}
	critical := make([]bool, len(body))
	criticalRegs := map[lir.Reg]bool{}

	for changed := true; changed; {
		changed = false
		for i := len(body) - 1; i >= 0; i-- {
			if critical[i] {
				continue
			}
			in := body[i]
			mark := false
			switch v := in.(type) {
			case *lir.Return, *lir.Call, *lir.Branch, *lir.Label:
				mark = true
			case *lir.Alloc:
				if mustKeep[v.Dest] {
					mark = true
				}
			case *lir.Store:
				// A write through an address outside the known-local set
				// may alias anything and is always kept. A write to a
				// known local is kept once that local's address register
				// is itself critical — i.e. some surviving LoadR reads
				// through the same register later, which is exactly the
				// case after a call or an aliased write forces a reload.
				if !l[v.Addr] || criticalRegs[v.Addr] {
					mark = true
					criticalRegs[v.Addr] = true
					criticalRegs[v.Value] = true
				}
			}
			if !mark {
				if d := destReg(in); d != lir.RegNone && criticalRegs[d] {
					mark = true
				}
			}
			if mark {
				critical[i] = true
				changed = true
				for _, r := range srcRegs(in) {
					if !criticalRegs[r] {
						criticalRegs[r] = true
					}
				}
			}
		}
	}

	out := make([]lir.Instr, 0, len(body))
	for i, in := range body {
		if critical[i] {
			out = append(out, in)
		}
	}
	return out
}
