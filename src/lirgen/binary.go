package lirgen

import (
	"github.com/pkg/errors"

	"riscc/src/ast"
	"riscc/src/lir"
)

// linearizeBinary lowers a binary expression. Assignment is
// special-cased (it stores rather than computes a pure value); every
// other binary operator goes through the CSE table.
func (g *Generator) linearizeBinary(n *ast.Binary, wantAddress bool, breakLabel, continueLabel int) (lir.Reg, error) {
	if n.Op.Op == ast.OpAssign {
		return g.linearizeAssign(n, wantAddress, breakLabel, continueLabel)
	}

	if !isArithmeticOrCompare(n.Op.Op) {
		return 0, errors.Wrapf(ErrInvalidOperator, "binary operator %v", n.Op.Op)
	}

	src1, err := g.linearize(n.Left, false, breakLabel, continueLabel)
	if err != nil {
		return 0, err
	}
	src2, err := g.linearize(n.Right, false, breakLabel, continueLabel)
	if err != nil {
		return 0, err
	}

	if r, ok := g.lookupCSE(n.Op.Op, n.Typ, src1, src2); ok {
		return r, nil
	}
	dest := g.newReg()
	g.emit(&lir.Binary{Op: n.Op.Op, Typ: n.Typ, Dest: dest, Src1: src1, Src2: src2})
	g.recordCSE(n.Op.Op, n.Typ, src1, src2, dest)
	return dest, nil
}

func isArithmeticOrCompare(op ast.Op) bool {
	switch op {
	case ast.OpPlus, ast.OpMinus, ast.OpAsterisk, ast.OpSlash, ast.OpPercent,
		ast.OpAnd, ast.OpOr, ast.OpXor, ast.OpShl, ast.OpShr,
		ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	default:
		return false
	}
}

// linearizeAssign lowers an assignment: the LHS is linearized for its
// address, the RHS for its value, and a
// Store is emitted. A bare-identifier LHS updates the value map (subject
// to the invalidation protocol); any other LHS invalidates the entire
// value map, since we cannot prove the written address doesn't alias
// something we've cached.
func (g *Generator) linearizeAssign(n *ast.Binary, wantAddress bool, breakLabel, continueLabel int) (lir.Reg, error) {
	addr, err := g.linearize(n.Left, true, breakLabel, continueLabel)
	if err != nil {
		return 0, err
	}
	val, err := g.linearize(n.Right, false, breakLabel, continueLabel)
	if err != nil {
		return 0, err
	}

	typ := n.Left.TypeOf()
	g.emit(&lir.Store{Typ: typ, Addr: addr, Value: val})

	if prim, ok := n.Left.(*ast.Primary); ok && prim.Kind == ast.PrimaryIdent {
		g.setValue(prim.Tok.StrVal, val)
	} else {
		g.invalidateAll()
	}

	if wantAddress {
		return addr, nil
	}
	return val, nil
}
