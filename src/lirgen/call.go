package lirgen

import (
	"github.com/pkg/errors"

	"riscc/src/ast"
	"riscc/src/lir"
	"riscc/src/types"
)

// linearizeCall lowers a procedure call. The callee
// must be a bare identifier; anything else is a contract violation
// upstream (name resolution should never produce a call through any
// other expression shape for this language).
func (g *Generator) linearizeCall(n *ast.Procedure, breakLabel, continueLabel int) (lir.Reg, error) {
	callee, ok := n.Callee.(*ast.Primary)
	if !ok || callee.Kind != ast.PrimaryIdent {
		return 0, errors.Wrapf(ErrStructuralMismatch, "call target is %T, want identifier", n.Callee)
	}

	args := make([]lir.Reg, 0, len(n.Args))
	for _, a := range n.Args {
		r, err := g.linearize(a, false, breakLabel, continueLabel)
		if err != nil {
			return 0, err
		}
		args = append(args, r)
	}

	var dest lir.Reg
	if n.RetTyp.Native != types.Void {
		dest = g.newReg()
	}
	g.emit(&lir.Call{Name: callee.Tok.StrVal, Typ: n.RetTyp, Args: args, Dest: dest})

	// A call may mutate anything reachable through a pointer; drop every
	// memoized value-register binding.
	g.invalidateAll()

	return dest, nil
}
