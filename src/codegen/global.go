package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"riscc/src/ast"
	"riscc/src/lir"
	"riscc/src/types"
)

// globalSym is one global variable's resolved storage description.
type globalSym struct {
	typ     types.Type
	value   uint32
	hasInit bool
}

const initFunctionName = "init" // Matches lirgen.initFunctionName; see optimize.initFunctionName for why it's duplicated rather than imported.

// collectGlobals scans the synthesized init function for
// Alloc(is_global=true) instructions and resolves each one's
// initializer, if any, back to a literal constant. init is
// straight-line code (every global's initializer is linearized as a
// flat expression, with no branches until the trailing call to main),
// so a single forward pass folding each MovC/Unary/Binary/Cast over
// already-known constants is enough to evaluate any compile-time
// constant expression, not just a bare literal.
func collectGlobals(prog *lir.Program) (map[string]globalSym, error) {
	globals := map[string]globalSym{}
	for _, fn := range prog.Functions {
		if fn.Name != initFunctionName {
			continue
		}
		constOf := map[lir.Reg]uint32{}
		for _, in := range fn.Body {
			switch v := in.(type) {
			case *lir.MovC:
				constOf[v.Dest] = v.Constant
			case *lir.Unary:
				if a, ok := constOf[v.Src]; ok {
					if c, ok := foldUnary(v.Op, a); ok {
						constOf[v.Dest] = c
					}
				}
			case *lir.Binary:
				a, ok1 := constOf[v.Src1]
				b, ok2 := constOf[v.Src2]
				if ok1 && ok2 {
					if c, ok := foldBinary(v.Op, v.Typ, a, b); ok {
						constOf[v.Dest] = c
					}
				}
			case *lir.Cast:
				if a, ok := constOf[v.Src]; ok {
					if c, ok := foldCastConst(v.SrcTyp, v.DestTyp, a); ok {
						constOf[v.Dest] = c
					}
				}
			case *lir.Alloc:
				if !v.IsGlobal {
					continue
				}
				if v.FromReg {
					return nil, errors.Wrapf(ErrUnsupportedFeature, "global array %q: backing storage sized from a register", v.Name)
				}
				sym := globalSym{typ: v.Typ}
				if v.Init != lir.RegNone {
					if c, ok := constOf[v.Init]; ok {
						sym.value = c
						sym.hasInit = true
					}
				}
				globals[v.Name] = sym
			}
		}
	}
	return globals, nil
}

// foldUnary evaluates a unary operator over a known constant operand,
// matching lowerUnary's runtime semantics.
func foldUnary(op ast.Op, a uint32) (uint32, bool) {
	switch op {
	case ast.OpPlus:
		return a, true
	case ast.OpMinus:
		return uint32(-int32(a)), true
	case ast.OpTilde:
		return ^a, true
	case ast.OpNot:
		return boolConst(a == 0), true
	default:
		return 0, false
	}
}

// foldBinary evaluates a binary operator over two known constant
// operands, matching lowerBinary's runtime semantics (signedness for
// division, remainder, shift-right and the ordered comparisons follows
// typ.IsSigned(), exactly as it does downstream of lowerBinary).
func foldBinary(op ast.Op, typ types.Type, a, b uint32) (uint32, bool) {
	signed := typ.IsSigned()
	switch op {
	case ast.OpPlus:
		return a + b, true
	case ast.OpMinus:
		return a - b, true
	case ast.OpAsterisk:
		return a * b, true
	case ast.OpSlash:
		if b == 0 {
			return 0, false
		}
		if signed {
			return uint32(int32(a) / int32(b)), true
		}
		return a / b, true
	case ast.OpPercent:
		if b == 0 {
			return 0, false
		}
		if signed {
			return uint32(int32(a) % int32(b)), true
		}
		return a % b, true
	case ast.OpAnd:
		return a & b, true
	case ast.OpOr:
		return a | b, true
	case ast.OpXor:
		return a ^ b, true
	case ast.OpShl:
		return a << (b & 31), true
	case ast.OpShr:
		if signed {
			return uint32(int32(a) >> (b & 31)), true
		}
		return a >> (b & 31), true
	case ast.OpEq:
		return boolConst(a == b), true
	case ast.OpNe:
		return boolConst(a != b), true
	case ast.OpLt:
		if signed {
			return boolConst(int32(a) < int32(b)), true
		}
		return boolConst(a < b), true
	case ast.OpGt:
		if signed {
			return boolConst(int32(a) > int32(b)), true
		}
		return boolConst(a > b), true
	case ast.OpLe:
		if signed {
			return boolConst(int32(a) <= int32(b)), true
		}
		return boolConst(a <= b), true
	case ast.OpGe:
		if signed {
			return boolConst(int32(a) >= int32(b)), true
		}
		return boolConst(a >= b), true
	default:
		return 0, false
	}
}

// foldCastConst evaluates a narrowing or widening cast over a known
// constant, matching lowerCast's truncate-then-sign-extend sequence.
func foldCastConst(srcTyp, destTyp types.Type, a uint32) (uint32, bool) {
	srcSize, err := srcTyp.SizeInBytes()
	if err != nil {
		return 0, false
	}
	destSize, err := destTyp.SizeInBytes()
	if err != nil {
		return 0, false
	}
	minSize := srcSize
	if destSize < minSize {
		minSize = destSize
	}
	if minSize >= 4 {
		return a, true
	}
	mask := uint32(0xff)
	if minSize == 2 {
		mask = 0xffff
	}
	v := a & mask
	if destTyp.IsSigned() {
		shift := uint(32 - 8*minSize)
		v = uint32(int32(v<<shift) >> shift)
	}
	return v, true
}

func boolConst(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// renderGlobals formats the .data/.bss directive pair for every global
// symbol: initialized globals go to .data as .word/.half/.byte,
// uninitialized ones to .bss as .zero, matching the original_source/
// codegen this behavior was adopted from.
func renderGlobals(globals map[string]globalSym) string {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names) // Deterministic output; source order isn't preserved by the map.

	var data, bss strings.Builder
	for _, name := range names {
		sym := globals[name]
		size, err := sym.typ.SizeInBytes()
		if err != nil {
			size = 4
		}
		if sym.hasInit {
			directive := ".word"
			switch size {
			case 1:
				directive = ".byte"
			case 2:
				directive = ".half"
			}
			fmt.Fprintf(&data, "%s:\n\t%s\t%d\n", name, directive, sym.value)
		} else {
			fmt.Fprintf(&bss, "%s:\n\t.zero\t%d\n", name, size)
		}
	}

	var out strings.Builder
	if data.Len() > 0 {
		out.WriteString(".data\n")
		out.WriteString(data.String())
	}
	if bss.Len() > 0 {
		out.WriteString(".bss\n")
		out.WriteString(bss.String())
	}
	return out.String()
}
