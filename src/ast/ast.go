// Package ast defines the typed abstract syntax tree the mid-end consumes.
// Building this tree — lexing, parsing, name resolution, type inference —
// happens upstream; this package only states the contract: every node
// variant the LIR generator knows how to linearize, each already
// carrying a resolved Type.
package ast

import "riscc/src/types"

// Node is implemented by every AST node variant. TypeOf returns the
// resolved type of the node: for an expression node, the type of its
// value; for an lvalue node, the type of the thing it points to (the
// generator adds one pointer level itself when it needs the address).
type Node interface {
	TypeOf() types.Type
	node()
}

// DeclarationList is the AST root: a flat list of top-level function and
// variable/array declarations, in source order.
type DeclarationList struct {
	Decls []Node
}

func (n *DeclarationList) TypeOf() types.Type { return types.Type{Native: types.Void} }
func (*DeclarationList) node()                {}

// Parameter is one formal parameter of a FunctionDecl.
type Parameter struct {
	Name string
	Typ  types.Type
}

func (n *Parameter) TypeOf() types.Type { return n.Typ }
func (*Parameter) node()                {}

// FunctionDecl declares a function: its name, return type, parameters and
// body. Body is nil for a forward declaration (not otherwise used by this
// spec's surface language, but the field exists to keep the contract
// general).
type FunctionDecl struct {
	Name       string
	ReturnType types.Type
	Params     []*Parameter
	Body       *CompoundStmt
}

func (n *FunctionDecl) TypeOf() types.Type { return n.ReturnType }
func (*FunctionDecl) node()                {}

// VarDecl declares a single scalar local or global, with an optional
// initializer expression.
type VarDecl struct {
	Name string
	Typ  types.Type
	Init Node // nil if uninitialized.
}

func (n *VarDecl) TypeOf() types.Type { return n.Typ }
func (*VarDecl) node()                {}

// ArrayDecl declares a named pointer backed by freshly allocated storage
// for ElemType[Size]. Size is an expression so VLA-style register-sized
// arrays are representable.
type ArrayDecl struct {
	Name      string
	ElemType  types.Type
	SizeExpr  Node
}

// TypeOf returns the type of the named pointer variable: ElemType plus
// one pointer level.
func (n *ArrayDecl) TypeOf() types.Type { return n.ElemType.AddrOf() }
func (*ArrayDecl) node()                {}

// CompoundStmt is a `{ ... }` block: a sequence of statements, each of
// which may itself be any statement-shaped Node (VarDecl, ArrayDecl,
// ExprStmt, If, While, For, Jump, CompoundStmt, ...).
type CompoundStmt struct {
	Stmts []Node
}

func (n *CompoundStmt) TypeOf() types.Type { return types.Type{Native: types.Void} }
func (*CompoundStmt) node()                {}

// ExprStmt is an expression evaluated for side effect only; its value is
// discarded.
type ExprStmt struct {
	Expr Node
}

func (n *ExprStmt) TypeOf() types.Type { return types.Type{Native: types.Void} }
func (*ExprStmt) node()                {}

// If is `if (Cond) Then [else Else]`. Else is nil for an if-then with no
// else arm.
type If struct {
	Cond Node
	Then Node
	Else Node // nil if absent.
}

func (n *If) TypeOf() types.Type { return types.Type{Native: types.Void} }
func (*If) node()                {}

// While is `while (Cond) Body`.
type While struct {
	Cond Node
	Body Node
}

func (n *While) TypeOf() types.Type { return types.Type{Native: types.Void} }
func (*While) node()                {}

// For is `for (Init; Cond; Step) Body`. Init, Cond and Step may each be
// nil for the corresponding empty clause.
type For struct {
	Init Node
	Cond Node
	Step Node
	Body Node
}

func (n *For) TypeOf() types.Type { return types.Type{Native: types.Void} }
func (*For) node()                {}

// JumpKind distinguishes the three jump statement forms.
type JumpKind int

const (
	JumpReturn JumpKind = iota
	JumpBreak
	JumpContinue
)

// Jump is `return [Expr];`, `break;` or `continue;`. Expr is only
// meaningful (and may be nil, for `return;`) when Kind is JumpReturn.
type Jump struct {
	Kind JumpKind
	Expr Node
}

func (n *Jump) TypeOf() types.Type { return types.Type{Native: types.Void} }
func (*Jump) node()                {}

// Procedure is a call `Callee(Args...)`. The callee must
// resolve to a Primary identifier; that is a contract requirement, not
// something this package enforces structurally (callers may still plug
// in something else, and the generator must report
// ErrStructuralMismatch when they do).
type Procedure struct {
	Callee Node
	Args   []Node
	RetTyp types.Type
}

func (n *Procedure) TypeOf() types.Type { return n.RetTyp }
func (*Procedure) node()                {}

// Cast is an explicit `(T) Expr` conversion.
type Cast struct {
	Target types.Type
	Expr   Node
}

func (n *Cast) TypeOf() types.Type { return n.Target }
func (*Cast) node()                {}

// PrimaryKind distinguishes the three Primary leaf forms.
type PrimaryKind int

const (
	PrimaryIdent PrimaryKind = iota
	PrimaryInt
	PrimaryChar
)

// Primary is a leaf expression: an identifier reference or a literal.
type Primary struct {
	Kind PrimaryKind
	Tok  Token
	Typ  types.Type
}

func (n *Primary) TypeOf() types.Type { return n.Typ }
func (*Primary) node()                {}

// Prefix is a unary prefix expression: +x -x !x ~x *x &x.
type Prefix struct {
	Op   Token
	Expr Node
	Typ  types.Type
}

func (n *Prefix) TypeOf() types.Type { return n.Typ }
func (*Prefix) node()                {}

// Binary is a binary expression, including assignment (Op.Op ==
// ast.OpAssign).
type Binary struct {
	Op    Token
	Left  Node
	Right Node
	Typ   types.Type
}

func (n *Binary) TypeOf() types.Type { return n.Typ }
func (*Binary) node()                {}

// Selector is an array index expression `Arr[Index]`; Arr must have
// pointer type and the result has one less pointer level.
type Selector struct {
	Arr   Node
	Index Node
	Typ   types.Type
}

func (n *Selector) TypeOf() types.Type { return n.Typ }
func (*Selector) node()                {}
