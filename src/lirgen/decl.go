package lirgen

import (
	"github.com/pkg/errors"

	"riscc/src/ast"
	"riscc/src/lir"
)

// linearizeVarDecl lowers a variable declaration: linearize a
// non-null initializer for its value, record it as the
// variable's current value, then emit the Alloc and record its
// destination as the variable's address.
func (g *Generator) linearizeVarDecl(n *ast.VarDecl) error {
	var initReg lir.Reg
	if n.Init != nil {
		r, err := g.linearize(n.Init, false, 0, 0)
		if err != nil {
			return err
		}
		initReg = r
	}

	dest := g.newReg()
	g.emit(&lir.Alloc{
		Typ:      n.Typ,
		Dest:     dest,
		Init:     initReg,
		IsGlobal: g.isGlobal,
		Size:     1,
		Name:     n.Name,
	})
	g.ptrMap[n.Name] = dest
	if n.Init != nil {
		g.setValue(n.Name, initReg)
	}
	return nil
}

// linearizeArrayDecl lowers an array declaration: the
// backing storage is allocated as an Alloc whose element count comes
// from a register (from_reg), then a second Alloc declares the named
// pointer variable initialized to point at that storage.
func (g *Generator) linearizeArrayDecl(n *ast.ArrayDecl) error {
	sizeReg, err := g.linearize(n.SizeExpr, false, 0, 0)
	if err != nil {
		return err
	}

	backing := g.newReg()
	g.emit(&lir.Alloc{
		Typ:      n.ElemType,
		Dest:     backing,
		Init:     sizeReg,
		IsGlobal: g.isGlobal,
		Size:     0,
		FromReg:  true,
		SizeReg:  sizeReg,
	})

	ptrTyp := n.ElemType.AddrOf()
	elemSize, err := n.ElemType.SizeInBytes()
	if err != nil {
		return errors.Wrap(ErrNotSized, err.Error())
	}
	ptr := g.newReg()
	g.emit(&lir.Alloc{
		Typ:      ptrTyp,
		Dest:     ptr,
		Init:     backing,
		IsGlobal: g.isGlobal,
		Size:     elemSize,
		Name:     n.Name,
	})
	g.ptrMap[n.Name] = ptr
	return nil
}
