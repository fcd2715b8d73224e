package lirgen

import (
	"github.com/pkg/errors"

	"riscc/src/ast"
	"riscc/src/lir"
	"riscc/src/types"
)

// linearizeIf lowers an if/else. When the else arm is empty, the
// "else label" and the "end label" coincide and no unconditional jump
// is emitted.
func (g *Generator) linearizeIf(n *ast.If, breakLabel, continueLabel int) error {
	if n.Else == nil {
		end := g.newLabel()
		if err := g.addBranchCondition(n.Cond, end, breakLabel, continueLabel); err != nil {
			return err
		}
		saved, pending := g.enterConditional(false)
		_, err := g.linearizeStmt(n.Then, breakLabel, continueLabel)
		g.exitConditional(saved, pending)
		if err != nil {
			return err
		}
		g.emit(&lir.Label{ID: end})
		return nil
	}

	elseLabel := g.newLabel()
	end := g.newLabel()
	if err := g.addBranchCondition(n.Cond, elseLabel, breakLabel, continueLabel); err != nil {
		return err
	}

	saved, pending := g.enterConditional(false)
	_, err := g.linearizeStmt(n.Then, breakLabel, continueLabel)
	g.exitConditional(saved, pending)
	if err != nil {
		return err
	}
	g.emit(&lir.Branch{Kind: lir.CmpAlways, Target: end})
	g.emit(&lir.Label{ID: elseLabel})

	saved, pending = g.enterConditional(false)
	_, err = g.linearizeStmt(n.Else, breakLabel, continueLabel)
	g.exitConditional(saved, pending)
	if err != nil {
		return err
	}
	g.emit(&lir.Label{ID: end})
	return nil
}

// linearizeWhile lowers a while loop.
func (g *Generator) linearizeWhile(n *ast.While, _ int) error {
	head := g.newLabel()
	end := g.newLabel()

	g.emit(&lir.Label{ID: head})
	saved, pending := g.enterConditional(true) // loop entry clears the value map.
	if err := g.addBranchCondition(n.Cond, end, end, head); err != nil {
		g.exitConditional(saved, pending)
		return err
	}
	if _, err := g.linearizeStmt(n.Body, end, head); err != nil {
		g.exitConditional(saved, pending)
		return err
	}
	g.exitConditional(saved, pending)
	g.emit(&lir.Branch{Kind: lir.CmpAlways, Target: head})
	g.emit(&lir.Label{ID: end})
	return nil
}

// linearizeFor lowers a for(init; cond; step) loop.
func (g *Generator) linearizeFor(n *ast.For) error {
	forLabel := g.newLabel()
	start := g.newLabel()
	next := g.newLabel()
	end := g.newLabel()

	g.emit(&lir.Label{ID: forLabel})
	if n.Init != nil {
		if _, err := g.linearizeStmt(n.Init, 0, 0); err != nil {
			return err
		}
	}

	g.emit(&lir.Label{ID: start})
	saved, pending := g.enterConditional(true)
	if n.Cond != nil {
		if err := g.addBranchCondition(n.Cond, end, end, next); err != nil {
			g.exitConditional(saved, pending)
			return err
		}
	}
	if _, err := g.linearizeStmt(n.Body, end, next); err != nil {
		g.exitConditional(saved, pending)
		return err
	}
	g.exitConditional(saved, pending)

	g.emit(&lir.Label{ID: next})
	if n.Step != nil {
		if _, err := g.linearizeStmt(n.Step, 0, 0); err != nil {
			return err
		}
	}
	g.emit(&lir.Branch{Kind: lir.CmpAlways, Target: start})
	g.emit(&lir.Label{ID: end})
	return nil
}

// linearizeJump lowers a return/break/continue statement.
func (g *Generator) linearizeJump(n *ast.Jump, breakLabel, continueLabel int) (lir.Reg, error) {
	switch n.Kind {
	case ast.JumpReturn:
		if n.Expr == nil {
			g.emit(&lir.Return{Typ: types.Type{Native: types.Void}, Src: 0})
			return 0, nil
		}
		r, err := g.linearize(n.Expr, false, breakLabel, continueLabel)
		if err != nil {
			return 0, err
		}
		g.emit(&lir.Return{Typ: n.Expr.TypeOf(), Src: r})
		return 0, nil
	case ast.JumpContinue:
		g.emit(&lir.Branch{Kind: lir.CmpAlways, Target: continueLabel})
		return 0, nil
	case ast.JumpBreak:
		g.emit(&lir.Branch{Kind: lir.CmpAlways, Target: breakLabel})
		return 0, nil
	default:
		return 0, errors.Errorf("unknown jump kind %d", n.Kind)
	}
}

// addBranchCondition emits a branch taken when cond is false. When
// memoization is enabled and cond is a top-level comparison,
// a single Branch on the opposite relation is emitted directly;
// otherwise cond is linearized to a value and a CmpNS (src1 == 0)
// branch is used.
func (g *Generator) addBranchCondition(cond ast.Node, target, breakLabel, continueLabel int) error {
	if g.memo {
		if bin, ok := cond.(*ast.Binary); ok {
			if kind, ok := isComparison(bin.Op.Op); ok {
				s1, err := g.linearize(bin.Left, false, breakLabel, continueLabel)
				if err != nil {
					return err
				}
				s2, err := g.linearize(bin.Right, false, breakLabel, continueLabel)
				if err != nil {
					return err
				}
				g.emit(&lir.Branch{Kind: kind.Opposite(), Typ: bin.Left.TypeOf(), Src1: s1, Src2: s2, Target: target})
				return nil
			}
		}
	}
	v, err := g.linearize(cond, false, breakLabel, continueLabel)
	if err != nil {
		return err
	}
	g.emit(&lir.Branch{Kind: lir.CmpNS, Typ: cond.TypeOf(), Src1: v, Target: target})
	return nil
}
