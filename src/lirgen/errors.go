package lirgen

import "errors"

// Sentinel error kinds. Each detection site
// wraps one of these with github.com/pkg/errors so %+v prints a stack
// trace alongside a message naming the offending construct, while
// callers can still errors.Is against the sentinel.
var (
	// ErrStructuralMismatch: a walker was handed a node it cannot
	// linearize in the position it appears (e.g. a non-identifier call
	// target).
	ErrStructuralMismatch = errors.New("structural AST mismatch")

	// ErrUnsupportedFeature: a construct recognized by the grammar but
	// not implemented by this mid-end. No lirgen path returns it at
	// present; calls with any number of arguments are accepted.
	ErrUnsupportedFeature = errors.New("unsupported feature")

	// ErrInvalidOperator: an operator token reached unary/binary
	// lowering that isn't defined for that arity.
	ErrInvalidOperator = errors.New("invalid operator for this arity")

	// ErrNotSized: size-of was requested for void/null.
	ErrNotSized = errors.New("size requested for non-sized type")
)
