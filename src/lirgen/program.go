package lirgen

import (
	"github.com/pkg/errors"

	"riscc/src/ast"
	"riscc/src/lir"
	"riscc/src/types"
)

// initFunctionName is the synthesized entry point's name.
const initFunctionName = "init"

// LinearizeAST implements linearize_ast: given the AST root produced by
// an external parser/resolver and an optimization level, it produces a
// Program whose function list starts with a synthesized init and
// continues with each user function in source order.
func LinearizeAST(root *ast.DeclarationList, optLevel int) (*lir.Program, error) {
	var funcs []*ast.FunctionDecl
	var globals []ast.Node

	for _, d := range root.Decls {
		switch n := d.(type) {
		case *ast.FunctionDecl:
			funcs = append(funcs, n)
		case *ast.VarDecl, *ast.ArrayDecl:
			globals = append(globals, n)
		default:
			return nil, errors.Wrapf(ErrStructuralMismatch, "top-level declaration of type %T", d)
		}
	}

	prog := &lir.Program{}

	userFns := make([]*lir.FunctionDecl, 0, len(funcs))
	for _, fn := range funcs {
		lf, err := linearizeFunction(fn, optLevel)
		if err != nil {
			return nil, errors.Wrapf(err, "function %q", fn.Name)
		}
		userFns = append(userFns, lf)
	}

	initFn, err := linearizeInit(globals, optLevel)
	if err != nil {
		return nil, errors.Wrap(err, "synthesized init")
	}

	prog.Functions = append(prog.Functions, initFn)
	prog.Functions = append(prog.Functions, userFns...)
	return prog, nil
}

// linearizeFunction lowers one user-defined function with fresh
// per-function Generator state.
func linearizeFunction(fn *ast.FunctionDecl, optLevel int) (*lir.FunctionDecl, error) {
	g := newGenerator(optLevel, false)

	argTypes := make([]types.Type, len(fn.Params))
	paramRegs := make([]lir.Reg, len(fn.Params))
	for i, p := range fn.Params {
		argTypes[i] = p.Typ
		// A parameter is a local with no initializer: its address is
		// the frame slot codegen assigns and fills from the incoming
		// argument. No value-map entry is recorded, so the first read
		// of a parameter loads it from that slot.
		dest := g.newReg()
		g.emit(&lir.Alloc{Typ: p.Typ, Dest: dest, Init: 0, Size: 1, Name: p.Name})
		g.ptrMap[p.Name] = dest
		paramRegs[i] = dest
	}

	if fn.Body != nil {
		if _, err := g.linearizeStmt(fn.Body, 0, 0); err != nil {
			return nil, err
		}
	}

	return &lir.FunctionDecl{
		Name:       fn.Name,
		ReturnType: fn.ReturnType,
		ArgTypes:   argTypes,
		ParamRegs:  paramRegs,
		Body:       g.body,
	}, nil
}

// linearizeInit builds the synthesized entry point: every global
// variable/array declaration's Alloc, a call to main, and the
// terminating infinite self-loop.
func linearizeInit(globals []ast.Node, optLevel int) (*lir.FunctionDecl, error) {
	g := newGenerator(optLevel, true)

	for _, decl := range globals {
		if _, err := g.linearizeStmt(decl, 0, 0); err != nil {
			return nil, err
		}
	}

	g.emit(&lir.Call{Name: "main", Typ: types.Type{Native: types.Void}, Dest: 0})
	self := g.newLabel()
	g.emit(&lir.Label{ID: self})
	g.emit(&lir.Branch{Kind: lir.CmpAlways, Target: self})

	return &lir.FunctionDecl{
		Name:       initFunctionName,
		ReturnType: types.Type{Native: types.Void},
		Body:       g.body,
	}, nil
}

// linearizeStmt dispatches any statement-shaped node. It exists
// separately from the expression-oriented linearize (see expr.go)
// because statements never produce a meaningful result register.
func (g *Generator) linearizeStmt(n ast.Node, breakLabel, continueLabel int) (lir.Reg, error) {
	switch s := n.(type) {
	case *ast.VarDecl:
		return 0, g.linearizeVarDecl(s)
	case *ast.ArrayDecl:
		return 0, g.linearizeArrayDecl(s)
	case *ast.CompoundStmt:
		return 0, g.linearizeCompound(s, breakLabel, continueLabel)
	case *ast.ExprStmt:
		_, err := g.linearize(s.Expr, false, breakLabel, continueLabel)
		return 0, err
	case *ast.If:
		return 0, g.linearizeIf(s, breakLabel, continueLabel)
	case *ast.While:
		return 0, g.linearizeWhile(s, continueLabel)
	case *ast.For:
		return 0, g.linearizeFor(s)
	case *ast.Jump:
		return g.linearizeJump(s, breakLabel, continueLabel)
	default:
		// Any bare expression reachable as a statement (rare, but the
		// grammar allows e.g. a lone identifier statement).
		return g.linearize(n, false, breakLabel, continueLabel)
	}
}

func (g *Generator) linearizeCompound(n *ast.CompoundStmt, breakLabel, continueLabel int) error {
	for _, s := range n.Stmts {
		if _, err := g.linearizeStmt(s, breakLabel, continueLabel); err != nil {
			return err
		}
	}
	return nil
}
