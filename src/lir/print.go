package lir

import (
	"fmt"
	"strings"

	"riscc/src/ast"
)

// opName renders the Operator the way the textual LIR dump spells it:
// a lower-case mnemonic such as "add" or "mul".
func opName(op Operator) string {
	switch op {
	case ast.OpPlus:
		return "add"
	case ast.OpMinus:
		return "sub"
	case ast.OpAsterisk:
		return "mul"
	case ast.OpSlash:
		return "div"
	case ast.OpPercent:
		return "rem"
	case ast.OpAnd:
		return "and"
	case ast.OpOr:
		return "or"
	case ast.OpXor:
		return "xor"
	case ast.OpShl:
		return "shl"
	case ast.OpShr:
		return "shr"
	case ast.OpNot:
		return "not"
	case ast.OpTilde:
		return "inv"
	case ast.OpEq:
		return "eq"
	case ast.OpNe:
		return "ne"
	case ast.OpLt:
		return "lt"
	case ast.OpLe:
		return "le"
	case ast.OpGt:
		return "gt"
	case ast.OpGe:
		return "ge"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

func regName(r Reg) string {
	switch r {
	case RegNone:
		return "v0"
	case RegSP:
		return "sp"
	case RegGP:
		return "gp"
	case RegFP:
		return "fp"
	case RegRA:
		return "ra"
	case RegX0:
		return "x0"
	case RegA0:
		return "a0"
	case RegA1:
		return "a1"
	case RegA2:
		return "a2"
	case RegA3:
		return "a3"
	case RegA4:
		return "a4"
	case RegA5:
		return "a5"
	case RegA6:
		return "a6"
	case RegA7:
		return "a7"
	}
	if r > 0 {
		return fmt.Sprintf("v%d", int(r))
	}
	return fmt.Sprintf("reg(%d)", int(r))
}

// String renders a single instruction in the textual LIR dump format,
// e.g. "v1 = <u32> $5", "v2 = alloc<u32> v1  ;name=x",
// "v4 = add<u32> v1, v3", "return<u32> v4".
func String(in Instr) string {
	switch i := in.(type) {
	case *Alloc:
		s := fmt.Sprintf("%s = alloc<%s> %s", regName(i.Dest), i.Typ, regName(i.Init))
		if i.FromReg {
			s += fmt.Sprintf(" %s", regName(i.SizeReg))
		}
		if i.IsGlobal {
			s += " ;global"
		}
		if i.Name != "" {
			s += fmt.Sprintf("  ;name=%s", i.Name)
		}
		return s
	case *Return:
		if i.Src == RegNone {
			return fmt.Sprintf("return<%s>", i.Typ)
		}
		return fmt.Sprintf("return<%s> %s", i.Typ, regName(i.Src))
	case *MovC:
		return fmt.Sprintf("%s = <%s> $%d", regName(i.Dest), i.Typ, i.Constant)
	case *Cast:
		return fmt.Sprintf("%s = cast<%s<-%s> %s", regName(i.Dest), i.DestTyp, i.SrcTyp, regName(i.Src))
	case *Store:
		return fmt.Sprintf("store<%s> %s, %s", i.Typ, regName(i.Addr), regName(i.Value))
	case *LoadA:
		return fmt.Sprintf("%s = loada<%s> %s", regName(i.Dest), i.Typ, i.Name)
	case *LoadR:
		return fmt.Sprintf("%s = load<%s> %s", regName(i.Dest), i.Typ, regName(i.Addr))
	case *Label:
		return fmt.Sprintf("L%d:", i.ID)
	case *Call:
		args := make([]string, len(i.Args))
		for j, a := range i.Args {
			args[j] = regName(a)
		}
		s := fmt.Sprintf("call<%s> %s(%s)", i.Typ, i.Name, strings.Join(args, ", "))
		if i.Dest != RegNone {
			s = fmt.Sprintf("%s = %s", regName(i.Dest), s)
		}
		return s
	case *Branch:
		if i.Kind == CmpAlways {
			return fmt.Sprintf("branch always -> L%d", i.Target)
		}
		if i.Kind == CmpS || i.Kind == CmpNS {
			return fmt.Sprintf("branch.%s<%s> %s -> L%d", i.Kind, i.Typ, regName(i.Src1), i.Target)
		}
		return fmt.Sprintf("branch.%s<%s> %s, %s -> L%d", i.Kind, i.Typ, regName(i.Src1), regName(i.Src2), i.Target)
	case *Binary:
		return fmt.Sprintf("%s = %s<%s> %s, %s", regName(i.Dest), opName(i.Op), i.Typ, regName(i.Src1), regName(i.Src2))
	case *Unary:
		return fmt.Sprintf("%s = %s<%s> %s", regName(i.Dest), opName(i.Op), i.Typ, regName(i.Src))
	default:
		return fmt.Sprintf("<unknown instr %T>", in)
	}
}

// String renders the full Program as a function-by-function textual
// LIR dump. The CLI does not print it; -v/--verbose only logs pass
// timings and instruction counts.
func (p *Program) String() string {
	sb := strings.Builder{}
	for _, f := range p.Functions {
		sb.WriteString(fmt.Sprintf("function %s(", f.Name))
		for j, t := range f.ArgTypes {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(t.String())
		}
		sb.WriteString(fmt.Sprintf("): %s {\n", f.ReturnType))
		for _, in := range f.Body {
			if _, ok := in.(*Label); ok {
				sb.WriteString(String(in))
				sb.WriteByte('\n')
				continue
			}
			sb.WriteByte('\t')
			sb.WriteString(String(in))
			sb.WriteByte('\n')
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}
