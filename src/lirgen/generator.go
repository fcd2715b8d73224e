// Package lirgen implements the LIR generator. It walks a
// type-annotated ast.Node tree and emits a flat per-function lir.Instr
// list, performing on-the-fly constant/CSE/value-register memoization
// when the optimization level allows it.
package lirgen

import (
	"riscc/src/ast"
	"riscc/src/lir"
	"riscc/src/types"
)

// cseKey identifies a binary operation by its operator, operand
// registers and type, for common-subexpression reuse.
type cseKey struct {
	op   ast.Op
	typ  types.Type
	src1 lir.Reg
	src2 lir.Reg
}

// Generator holds all per-function state for the LIR generator
// Generator holds the per-function LIR generation state. A fresh
// Generator is used for every function — including the synthesized
// init — so state never leaks across functions.
type Generator struct {
	memo bool // true when OptLevel >= 1: enables constant/value/CSE reuse.

	isGlobal bool

	body      []lir.Instr
	nextReg   int
	nextLabel int

	ptrMap   map[string]lir.Reg // identifier name -> register holding its address.
	valMap   map[string]lir.Reg // identifier name -> register holding its last known value.
	constMap map[uint32]lir.Reg // constant value -> register holding a MovC of it.
	cse      map[cseKey]lir.Reg

	// Invalidation protocol.
	toInvalidate bool
	pending      []string
}

// newGenerator returns a fresh Generator for one function body.
func newGenerator(optLevel int, isGlobal bool) *Generator {
	return &Generator{
		memo:     optLevel >= 1,
		isGlobal: isGlobal,
		ptrMap:   map[string]lir.Reg{},
		valMap:   map[string]lir.Reg{},
		constMap: map[uint32]lir.Reg{},
		cse:      map[cseKey]lir.Reg{},
	}
}

func (g *Generator) newReg() lir.Reg {
	g.nextReg++
	return lir.Reg(g.nextReg)
}

func (g *Generator) newLabel() int {
	id := g.nextLabel
	g.nextLabel++
	return id
}

func (g *Generator) emit(i lir.Instr) {
	g.body = append(g.body, i)
}

// setValue records that Reg r currently holds the value of identifier
// name, and — if a conditionally executed region is open — schedules
// that binding to be forgotten when the region ends.
func (g *Generator) setValue(name string, r lir.Reg) {
	g.valMap[name] = r
	if g.toInvalidate {
		g.pending = append(g.pending, name)
	}
}

// invalidateAll drops every memoized value-register binding: used after
// a Call or a Store through an address that isn't a known local
// identifier, since the write may alias anything.
func (g *Generator) invalidateAll() {
	g.valMap = map[string]lir.Reg{}
}

// enterConditional opens a conditionally executed region (a then/else
// arm or a loop body). For loops, clearLoop additionally clears the
// entire value map, because the back edge may bring any assignment made
// anywhere in the loop body into scope before a later iteration reads it.
func (g *Generator) enterConditional(clearLoop bool) (savedFlag bool, savedPending []string) {
	if clearLoop {
		g.invalidateAll()
	}
	savedFlag, savedPending = g.toInvalidate, g.pending
	g.toInvalidate = true
	g.pending = nil
	return
}

// exitConditional closes a region opened by enterConditional: every name
// added to the value map while the region was open is forgotten, then
// the enclosing region's flag/pending list is restored.
func (g *Generator) exitConditional(savedFlag bool, savedPending []string) {
	for _, name := range g.pending {
		delete(g.valMap, name)
	}
	g.toInvalidate = savedFlag
	g.pending = savedPending
}

// lookupConst returns a register already holding constant v, memoizing a
// fresh MovC if none exists yet (or if memoization is disabled).
func (g *Generator) lookupConst(typ types.Type, v uint32) lir.Reg {
	if g.memo {
		if r, ok := g.constMap[v]; ok {
			return r
		}
	}
	r := g.newReg()
	g.emit(&lir.MovC{Typ: typ, Dest: r, Constant: v})
	if g.memo {
		g.constMap[v] = r
	}
	return r
}

// lookupCSE returns a register already holding the result of op(src1,
// src2) for the given type, checking the commuted operand order too
// when op is commutative. ok is false on a miss.
func (g *Generator) lookupCSE(op ast.Op, typ types.Type, src1, src2 lir.Reg) (lir.Reg, bool) {
	if !g.memo {
		return 0, false
	}
	if r, ok := g.cse[cseKey{op, typ, src1, src2}]; ok {
		return r, true
	}
	if isCommutative(op) {
		if r, ok := g.cse[cseKey{op, typ, src2, src1}]; ok {
			return r, true
		}
	}
	return 0, false
}

func (g *Generator) recordCSE(op ast.Op, typ types.Type, src1, src2, dest lir.Reg) {
	if g.memo {
		g.cse[cseKey{op, typ, src1, src2}] = dest
	}
}

func isCommutative(op ast.Op) bool {
	switch op {
	case ast.OpPlus, ast.OpAsterisk, ast.OpAnd, ast.OpOr, ast.OpXor:
		return true
	default:
		return false
	}
}

func isComparison(op ast.Op) (lir.CompareKind, bool) {
	switch op {
	case ast.OpEq:
		return lir.CmpEQ, true
	case ast.OpNe:
		return lir.CmpNE, true
	case ast.OpLt:
		return lir.CmpLT, true
	case ast.OpLe:
		return lir.CmpLE, true
	case ast.OpGt:
		return lir.CmpGT, true
	case ast.OpGe:
		return lir.CmpGE, true
	default:
		return 0, false
	}
}
