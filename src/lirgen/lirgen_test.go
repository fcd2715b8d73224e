package lirgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riscc/src/ast"
	"riscc/src/lir"
	"riscc/src/types"
)

var i32 = types.Type{Native: types.I32}

func ident(name string, typ types.Type) *ast.Primary {
	return &ast.Primary{Kind: ast.PrimaryIdent, Tok: ast.Ident(name), Typ: typ}
}

func intLit(v uint32, typ types.Type) *ast.Primary {
	return &ast.Primary{Kind: ast.PrimaryInt, Tok: ast.IntLit(v), Typ: typ}
}

func binOp(op ast.Op, left, right ast.Node, typ types.Type) *ast.Binary {
	return &ast.Binary{Op: ast.Token{Kind: ast.KindOperator, Op: op}, Left: left, Right: right, Typ: typ}
}

func returnStmt(expr ast.Node) *ast.Jump {
	return &ast.Jump{Kind: ast.JumpReturn, Expr: expr}
}

func mainReturning(expr ast.Node) *ast.FunctionDecl {
	return &ast.FunctionDecl{
		Name:       "main",
		ReturnType: i32,
		Body:       &ast.CompoundStmt{Stmts: []ast.Node{returnStmt(expr)}},
	}
}

func TestLinearizeAST_InitPrecedesUserFunctionsAndCallsMain(t *testing.T) {
	root := &ast.DeclarationList{
		Decls: []ast.Node{
			&ast.VarDecl{Name: "g", Typ: i32, Init: intLit(7, i32)},
			mainReturning(intLit(0, i32)),
		},
	}

	prog, err := LinearizeAST(root, 1)
	require.NoError(t, err)
	require.Len(t, prog.Functions, 2)
	assert.Equal(t, "init", prog.Functions[0].Name)
	assert.Equal(t, "main", prog.Functions[1].Name)

	init := prog.Functions[0]
	var sawGlobalAlloc, sawCallMain bool
	for _, in := range init.Body {
		switch v := in.(type) {
		case *lir.Alloc:
			if v.IsGlobal && v.Name == "g" {
				sawGlobalAlloc = true
			}
		case *lir.Call:
			if v.Name == "main" {
				sawCallMain = true
			}
		}
	}
	assert.True(t, sawGlobalAlloc, "init must materialize global g")
	assert.True(t, sawCallMain, "init must call main")

	last := init.Body[len(init.Body)-1]
	br, ok := last.(*lir.Branch)
	require.True(t, ok, "init must end in a branch")
	assert.Equal(t, lir.CmpAlways, br.Kind)
	lbl, ok := init.Body[len(init.Body)-2].(*lir.Label)
	require.True(t, ok, "init's self-loop label must precede its branch")
	assert.Equal(t, lbl.ID, br.Target, "the self-loop branch must target its own label")
}

func TestLinearizeAST_RejectsUnknownTopLevelDecl(t *testing.T) {
	root := &ast.DeclarationList{Decls: []ast.Node{&ast.CompoundStmt{}}}
	_, err := LinearizeAST(root, 0)
	assert.ErrorIs(t, err, ErrStructuralMismatch)
}

func TestLinearizeFunction_ParametersAllocateFirst(t *testing.T) {
	fn := &ast.FunctionDecl{
		Name:       "add",
		ReturnType: i32,
		Params:     []*ast.Parameter{{Name: "x", Typ: i32}, {Name: "y", Typ: i32}},
		Body: &ast.CompoundStmt{Stmts: []ast.Node{
			returnStmt(binOp(ast.OpPlus, ident("x", i32), ident("y", i32), i32)),
		}},
	}
	lf, err := linearizeFunction(fn, 0)
	require.NoError(t, err)
	require.Len(t, lf.ArgTypes, 2)

	require.True(t, len(lf.Body) >= 2)
	a0, ok := lf.Body[0].(*lir.Alloc)
	require.True(t, ok)
	assert.Equal(t, "x", a0.Name)
	assert.Equal(t, lir.RegNone, a0.Init)
	a1, ok := lf.Body[1].(*lir.Alloc)
	require.True(t, ok)
	assert.Equal(t, "y", a1.Name)

	require.Len(t, lf.ParamRegs, 2)
	assert.Equal(t, a0.Dest, lf.ParamRegs[0])
	assert.Equal(t, a1.Dest, lf.ParamRegs[1])
}

func TestCSE_DedupesRepeatedBinaryExpression(t *testing.T) {
	// a + b, twice in a row, at opt level 1: the second occurrence must
	// reuse the first's destination register instead of re-emitting.
	expr := binOp(ast.OpPlus,
		binOp(ast.OpPlus, ident("a", i32), ident("b", i32), i32),
		binOp(ast.OpPlus, ident("a", i32), ident("b", i32), i32),
		i32)
	fn := &ast.FunctionDecl{
		Name:       "f",
		ReturnType: i32,
		Params:     []*ast.Parameter{{Name: "a", Typ: i32}, {Name: "b", Typ: i32}},
		Body:       &ast.CompoundStmt{Stmts: []ast.Node{returnStmt(expr)}},
	}
	lf, err := linearizeFunction(fn, 1)
	require.NoError(t, err)

	var binaryCount int
	for _, in := range lf.Body {
		if _, ok := in.(*lir.Binary); ok {
			binaryCount++
		}
	}
	// Exactly one Binary for "a+b" (memoized) plus one for the outer sum.
	assert.Equal(t, 2, binaryCount)
}

func TestAddBranchCondition_MemoizedComparisonUsesOppositeKind(t *testing.T) {
	g := newGenerator(1, false)
	cond := binOp(ast.OpLt, ident("a", i32), ident("b", i32), i32)
	g.ptrMap["a"] = g.newReg()
	g.ptrMap["b"] = g.newReg()
	err := g.addBranchCondition(cond, 42, 0, 0)
	require.NoError(t, err)

	var branch *lir.Branch
	for _, in := range g.body {
		if b, ok := in.(*lir.Branch); ok {
			branch = b
		}
	}
	require.NotNil(t, branch)
	assert.Equal(t, lir.CmpGE, branch.Kind, "branch taken when `a < b` is false must use the opposite (>=) condition")
	assert.Equal(t, 42, branch.Target)
}

func TestLinearizeCall_RejectsNonIdentifierCallee(t *testing.T) {
	g := newGenerator(0, false)
	call := &ast.Procedure{Callee: intLit(0, i32), RetTyp: i32}
	_, err := g.linearizeCall(call, 0, 0)
	assert.ErrorIs(t, err, ErrStructuralMismatch)
}

func TestLinearizeCall_VoidReturnGetsNoDestRegister(t *testing.T) {
	g := newGenerator(0, false)
	call := &ast.Procedure{Callee: ident("f", i32), RetTyp: types.Type{Native: types.Void}}
	dest, err := g.linearizeCall(call, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, lir.RegNone, dest)
}

func TestLinearizeArrayDecl_MarksBackingStorageFromReg(t *testing.T) {
	g := newGenerator(0, false)
	decl := &ast.ArrayDecl{Name: "arr", ElemType: i32, SizeExpr: intLit(10, i32)}
	err := g.linearizeArrayDecl(decl)
	require.NoError(t, err)

	var backing, ptr *lir.Alloc
	for _, in := range g.body {
		if a, ok := in.(*lir.Alloc); ok {
			if a.FromReg {
				backing = a
			} else if a.Name == "arr" {
				ptr = a
			}
		}
	}
	require.NotNil(t, backing, "array backing storage must be allocated from_reg")
	require.NotNil(t, ptr, "the named pointer variable must be allocated separately")
	assert.True(t, ptr.Typ.IsPointer())
}

func TestLinearizeDeref_ReusesMemoizedAddressRegister(t *testing.T) {
	g := newGenerator(1, true)
	addr := g.newReg()
	g.valMap["p"] = addr

	deref := &ast.Prefix{Op: ast.Token{Kind: ast.KindOperator, Op: ast.OpAsterisk}, Expr: ident("p", i32.AddrOf()), Typ: i32}
	dest, err := g.linearizeDeref(deref, true, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, addr, dest, "dereferencing an identifier whose value is memoized must reuse that register as the address")
}
