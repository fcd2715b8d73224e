// Package optimize implements the post-pass optimizer. It runs
// dead-code removal and redundant-jump removal in a fixed-point
// loop over every function except the synthesized init, which is never
// touched (its Alloc/Call/Branch sequence is already minimal and its
// is_global Allocs must survive regardless of use).
package optimize

import "riscc/src/lir"

// initFunctionName matches lirgen.initFunctionName; duplicated here
// (rather than imported) to keep package optimize from depending on
// package lirgen, which would be a layering inversion — optimize only
// ever depends on lir.
const initFunctionName = "init"

// Optimize runs Pass A (dead-code removal) then Pass B (redundant-jump
// removal) repeatedly until a full round changes nothing, and returns the
// optimized Program. Optimize does not mutate p; it builds a new
// Program with (possibly) shorter function bodies.
func Optimize(p *lir.Program) *lir.Program {
	out := &lir.Program{Functions: make([]*lir.FunctionDecl, len(p.Functions))}
	for i, f := range p.Functions {
		if f.Name == initFunctionName {
			out.Functions[i] = f
			continue
		}
		out.Functions[i] = optimizeFunction(f)
	}
	return out
}

// optimizeFunction runs the fixed-point loop for a single function:
// repeat Pass A then Pass B until Pass B reports no change.
func optimizeFunction(f *lir.FunctionDecl) *lir.FunctionDecl {
	body := f.Body
	for {
		body = removeDeadCode(body, f.ParamRegs)
		next, changed := removeRedundantJumps(body)
		body = next
		if !changed {
			break
		}
	}
	out := *f
	out.Body = body
	return &out
}
