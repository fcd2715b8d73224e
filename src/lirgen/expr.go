package lirgen

import (
	"github.com/pkg/errors"

	"riscc/src/ast"
	"riscc/src/lir"
)

// linearize is the recursive walker for expression-shaped nodes.
// wantAddress asks the callee to produce the operand's
// address rather than its value; breakLabel/continueLabel are threaded
// through purely so nested procedure-call argument expressions (which
// cannot themselves contain break/continue, but may contain nested
// statement-like constructs in a richer grammar) have somewhere to pass
// them on.
func (g *Generator) linearize(n ast.Node, wantAddress bool, breakLabel, continueLabel int) (lir.Reg, error) {
	switch e := n.(type) {
	case *ast.Primary:
		return g.linearizePrimary(e, wantAddress)
	case *ast.Prefix:
		return g.linearizePrefix(e, wantAddress, breakLabel, continueLabel)
	case *ast.Binary:
		return g.linearizeBinary(e, wantAddress, breakLabel, continueLabel)
	case *ast.Selector:
		return g.linearizeSelector(e, wantAddress, breakLabel, continueLabel)
	case *ast.Cast:
		return g.linearizeCast(e, breakLabel, continueLabel)
	case *ast.Procedure:
		return g.linearizeCall(e, breakLabel, continueLabel)
	default:
		return 0, errors.Wrapf(ErrStructuralMismatch, "cannot linearize node of type %T as an expression", n)
	}
}

// linearizePrimary lowers an identifier, integer, or character literal.
func (g *Generator) linearizePrimary(n *ast.Primary, wantAddress bool) (lir.Reg, error) {
	switch n.Kind {
	case ast.PrimaryIdent:
		name := n.Tok.StrVal
		addr, known := g.ptrMap[name]
		if !known {
			// A global symbol not yet materialized in this function:
			// load its address and remember it.
			addr = g.newReg()
			g.emit(&lir.LoadA{Typ: n.Typ.AddrOf(), Dest: addr, Name: name})
			g.ptrMap[name] = addr
		}
		if wantAddress {
			return addr, nil
		}
		if g.memo {
			if v, ok := g.valMap[name]; ok {
				return v, nil
			}
		}
		v := g.newReg()
		g.emit(&lir.LoadR{Typ: n.Typ, Dest: v, Addr: addr})
		g.setValue(name, v)
		return v, nil

	case ast.PrimaryInt:
		return g.lookupConst(n.Typ, n.Tok.IntVal), nil

	case ast.PrimaryChar:
		// Char literals are never memoized.
		r := g.newReg()
		g.emit(&lir.MovC{Typ: n.Typ, Dest: r, Constant: n.Tok.IntVal})
		return r, nil

	default:
		return 0, errors.Errorf("unknown primary kind %d", n.Kind)
	}
}

// linearizePrefix lowers a prefix operator: address-of, dereference,
// unary plus/minus, or bitwise/logical not.
func (g *Generator) linearizePrefix(n *ast.Prefix, wantAddress bool, breakLabel, continueLabel int) (lir.Reg, error) {
	switch n.Op.Op {
	case ast.OpPlus:
		// Unary +x is the value of x, unchanged.
		return g.linearize(n.Expr, false, breakLabel, continueLabel)

	case ast.OpMinus, ast.OpTilde, ast.OpNot:
		src, err := g.linearize(n.Expr, false, breakLabel, continueLabel)
		if err != nil {
			return 0, err
		}
		dest := g.newReg()
		g.emit(&lir.Unary{Op: n.Op.Op, Typ: n.Typ, Dest: dest, Src: src})
		return dest, nil

	case ast.OpAsterisk:
		return g.linearizeDeref(n, wantAddress, breakLabel, continueLabel)

	case ast.OpAnd:
		return g.linearize(n.Expr, true, breakLabel, continueLabel)

	default:
		return 0, errors.Wrapf(ErrInvalidOperator, "prefix operator %v", n.Op.Op)
	}
}

// linearizeDeref implements *x. If x is an identifier whose current
// value is already memoized, that cached register is reused directly as
// the address to avoid re-deriving it; otherwise x is linearized for its
// value (the pointer it evaluates to), which becomes the address.
func (g *Generator) linearizeDeref(n *ast.Prefix, wantAddress bool, breakLabel, continueLabel int) (lir.Reg, error) {
	var addr lir.Reg
	if prim, ok := n.Expr.(*ast.Primary); ok && prim.Kind == ast.PrimaryIdent && g.memo {
		if v, ok := g.valMap[prim.Tok.StrVal]; ok {
			addr = v
		}
	}
	if addr == 0 {
		v, err := g.linearize(n.Expr, false, breakLabel, continueLabel)
		if err != nil {
			return 0, err
		}
		addr = v
	}
	if wantAddress {
		return addr, nil
	}
	dest := g.newReg()
	g.emit(&lir.LoadR{Typ: n.Typ, Dest: dest, Addr: addr})
	return dest, nil
}

// linearizeSelector lowers an array index expression a[i].
func (g *Generator) linearizeSelector(n *ast.Selector, wantAddress bool, breakLabel, continueLabel int) (lir.Reg, error) {
	arr, err := g.linearize(n.Arr, false, breakLabel, continueLabel)
	if err != nil {
		return 0, err
	}
	idx, err := g.linearize(n.Index, false, breakLabel, continueLabel)
	if err != nil {
		return 0, err
	}

	ptrTyp := n.Arr.TypeOf()
	elemTyp := ptrTyp.Pointee()
	s, err := elemTyp.SizeInBytes()
	if err != nil {
		return 0, errors.Wrap(ErrNotSized, err.Error())
	}

	off := idx
	if s != 1 {
		shiftReg := g.lookupConst(ptrTyp, uint32(s/2))
		if r, ok := g.lookupCSE(ast.OpShl, ptrTyp, idx, shiftReg); ok {
			off = r
		} else {
			off = g.newReg()
			g.emit(&lir.Binary{Op: ast.OpShl, Typ: ptrTyp, Dest: off, Src1: idx, Src2: shiftReg})
			g.recordCSE(ast.OpShl, ptrTyp, idx, shiftReg, off)
		}
	}

	var addr lir.Reg
	if r, ok := g.lookupCSE(ast.OpPlus, ptrTyp, arr, off); ok {
		addr = r
	} else {
		addr = g.newReg()
		g.emit(&lir.Binary{Op: ast.OpPlus, Typ: ptrTyp, Dest: addr, Src1: arr, Src2: off})
		g.recordCSE(ast.OpPlus, ptrTyp, arr, off, addr)
	}

	if wantAddress {
		return addr, nil
	}
	val := g.newReg()
	g.emit(&lir.LoadR{Typ: elemTyp, Dest: val, Addr: addr})
	return val, nil
}

// linearizeCast lowers a cast. A cast to a pointer type is a no-op:
// the operand register is reused unchanged.
func (g *Generator) linearizeCast(n *ast.Cast, breakLabel, continueLabel int) (lir.Reg, error) {
	src, err := g.linearize(n.Expr, false, breakLabel, continueLabel)
	if err != nil {
		return 0, err
	}
	if n.Target.IsPointer() {
		return src, nil
	}
	dest := g.newReg()
	g.emit(&lir.Cast{DestTyp: n.Target, SrcTyp: n.Expr.TypeOf(), Dest: dest, Src: src})
	return dest, nil
}
