// Package types defines the type descriptor shared by the AST, LIR and
// code generator: native integer kind, pointer depth and const qualifier,
// plus the derived operations the mid-end needs (size, signedness,
// compatibility).
package types

import "fmt"

// Native identifies the built-in scalar kinds the language supports.
type Native uint

const (
	Void Native = iota // Void has no value and no size.
	Null               // Null is the type of the literal 0 used as a generic pointer constant.
	U8
	U16
	U32
	I8
	I16
	I32
)

var nativeNames = [...]string{
	"void",
	"null",
	"u8",
	"u16",
	"u32",
	"i8",
	"i16",
	"i32",
}

// String returns the source-level spelling of n.
func (n Native) String() string {
	if int(n) < len(nativeNames) {
		return nativeNames[n]
	}
	return fmt.Sprintf("Native(%d)", uint(n))
}

// Type is the full type descriptor carried by every AST node and every
// LIR operand: a native kind, a pointer nesting depth and a const flag.
type Type struct {
	Native  Native
	Pointer int // Nonnegative pointer nesting depth; 0 = not a pointer.
	Const   bool
}

// Pointee returns the type one pointer level down from t. Callers must
// ensure t.Pointer > 0.
func (t Type) Pointee() Type {
	return Type{Native: t.Native, Pointer: t.Pointer - 1, Const: t.Const}
}

// AddrOf returns the type one pointer level above t: the type of &x for
// an x of type t.
func (t Type) AddrOf() Type {
	return Type{Native: t.Native, Pointer: t.Pointer + 1, Const: t.Const}
}

// IsPointer reports whether t is any pointer type.
func (t Type) IsPointer() bool {
	return t.Pointer > 0
}

// SizeInBytes returns the size of a value of type t. Pointers are always
// 4 bytes (the ISA is 32-bit); integers are sized by their native kind.
// Calling SizeInBytes on Void or Null with zero pointer depth is a
// contract violation — callers must check IsSized first.
func (t Type) SizeInBytes() (int, error) {
	if t.Pointer > 0 {
		return 4, nil
	}
	switch t.Native {
	case U8, I8:
		return 1, nil
	case U16, I16:
		return 2, nil
	case U32, I32:
		return 4, nil
	default:
		return 0, fmt.Errorf("size of non-sized type %s", t)
	}
}

// IsSized reports whether SizeInBytes would succeed for t.
func (t Type) IsSized() bool {
	if t.Pointer > 0 {
		return true
	}
	switch t.Native {
	case U8, U16, U32, I8, I16, I32:
		return true
	default:
		return false
	}
}

// IsSigned reports whether arithmetic and comparisons on t use signed
// semantics. Pointers and unsigned natives are unsigned; I8/I16/I32 are
// signed. Void/Null default to unsigned (they never reach arithmetic).
func (t Type) IsSigned() bool {
	if t.Pointer > 0 {
		return false
	}
	switch t.Native {
	case I8, I16, I32:
		return true
	default:
		return false
	}
}

// Compatible reports whether t and o describe the same storage shape:
// identical native kind and identical pointer depth. Const is ignored,
// matching the upstream resolver's assignability rule.
func (t Type) Compatible(o Type) bool {
	return t.Native == o.Native && t.Pointer == o.Pointer
}

// String renders t the way the code generator and LIR printer spell
// types in textual output, e.g. "u32", "u32*", "const i8**".
func (t Type) String() string {
	s := ""
	if t.Const {
		s += "const "
	}
	s += t.Native.String()
	for i := 0; i < t.Pointer; i++ {
		s += "*"
	}
	return s
}
