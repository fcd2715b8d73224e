package codegen

import "errors"

// Error kinds the code generator can report.
var (
	// ErrUnsupportedFeature marks a construct the backend does not lower:
	// arrays whose backing storage size is only known in a register
	// (Alloc.FromReg), and LoadA of a symbol that is not a global
	// declared in init.
	ErrUnsupportedFeature = errors.New("codegen: unsupported feature")
	// ErrInvalidOperator marks a Binary/Unary operator outside the set
	// this backend knows how to lower for that arity.
	ErrInvalidOperator = errors.New("codegen: invalid operator")
	// ErrNotSized marks a SizeInBytes query against Void/Null.
	ErrNotSized = errors.New("codegen: size of non-sized type")
)
