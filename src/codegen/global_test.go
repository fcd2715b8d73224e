package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riscc/src/ast"
	"riscc/src/lir"
	"riscc/src/types"
)

var u32 = types.Type{Native: types.U32}

func TestCollectGlobals_DirectConstantInitializer(t *testing.T) {
	prog := &lir.Program{Functions: []*lir.FunctionDecl{
		{Name: "init", Body: []lir.Instr{
			&lir.MovC{Typ: i32, Dest: 1, Constant: 7},
			&lir.Alloc{Typ: i32, Dest: 2, Init: 1, IsGlobal: true, Name: "g"},
		}},
	}}
	globals, err := collectGlobals(prog)
	require.NoError(t, err)
	sym := globals["g"]
	assert.True(t, sym.hasInit)
	assert.EqualValues(t, 7, sym.value)
}

func TestCollectGlobals_FoldsComputedConstantInitializer(t *testing.T) {
	// u32 g = 1 + 2;
	prog := &lir.Program{Functions: []*lir.FunctionDecl{
		{Name: "init", Body: []lir.Instr{
			&lir.MovC{Typ: u32, Dest: 1, Constant: 1},
			&lir.MovC{Typ: u32, Dest: 2, Constant: 2},
			&lir.Binary{Op: ast.OpPlus, Typ: u32, Dest: 3, Src1: 1, Src2: 2},
			&lir.Alloc{Typ: u32, Dest: 4, Init: 3, IsGlobal: true, Name: "g"},
		}},
	}}
	globals, err := collectGlobals(prog)
	require.NoError(t, err)
	sym := globals["g"]
	assert.True(t, sym.hasInit, "a computed constant initializer must still fold to a literal")
	assert.EqualValues(t, 3, sym.value)
}

func TestCollectGlobals_FoldsChainedUnaryAndBinary(t *testing.T) {
	// i32 g = -(2 * 3);
	prog := &lir.Program{Functions: []*lir.FunctionDecl{
		{Name: "init", Body: []lir.Instr{
			&lir.MovC{Typ: i32, Dest: 1, Constant: 2},
			&lir.MovC{Typ: i32, Dest: 2, Constant: 3},
			&lir.Binary{Op: ast.OpAsterisk, Typ: i32, Dest: 3, Src1: 1, Src2: 2},
			&lir.Unary{Op: ast.OpMinus, Typ: i32, Dest: 4, Src: 3},
			&lir.Alloc{Typ: i32, Dest: 5, Init: 4, IsGlobal: true, Name: "g"},
		}},
	}}
	globals, err := collectGlobals(prog)
	require.NoError(t, err)
	sym := globals["g"]
	require.True(t, sym.hasInit)
	assert.Equal(t, uint32(int32(-6)), sym.value)
}

func TestCollectGlobals_FoldsThroughNarrowingCast(t *testing.T) {
	// i8 g = (i8)200; // truncates to 0xc8, whose top bit makes it -56
	prog := &lir.Program{Functions: []*lir.FunctionDecl{
		{Name: "init", Body: []lir.Instr{
			&lir.MovC{Typ: i32, Dest: 1, Constant: 200},
			&lir.Cast{SrcTyp: i32, DestTyp: i8, Dest: 2, Src: 1},
			&lir.Alloc{Typ: i8, Dest: 3, Init: 2, IsGlobal: true, Name: "g"},
		}},
	}}
	globals, err := collectGlobals(prog)
	require.NoError(t, err)
	sym := globals["g"]
	require.True(t, sym.hasInit)
	assert.Equal(t, uint32(0xffffffc8), sym.value) // 200 as i8 is -56
}

func TestCollectGlobals_UnresolvableInitializerStaysZeroed(t *testing.T) {
	// A global initialized from another global's address can't be
	// folded to a literal constant; it must fall back to .bss rather
	// than emit a bogus value.
	prog := &lir.Program{Functions: []*lir.FunctionDecl{
		{Name: "init", Body: []lir.Instr{
			&lir.LoadA{Typ: types.Type{Native: types.I32, Pointer: 1}, Dest: 1, Name: "other"},
			&lir.Alloc{Typ: types.Type{Native: types.I32, Pointer: 1}, Dest: 2, Init: 1, IsGlobal: true, Name: "g"},
		}},
	}}
	globals, err := collectGlobals(prog)
	require.NoError(t, err)
	assert.False(t, globals["g"].hasInit)
}

func TestCollectGlobals_RejectsGlobalArraySizedFromRegister(t *testing.T) {
	prog := &lir.Program{Functions: []*lir.FunctionDecl{
		{Name: "init", Body: []lir.Instr{
			&lir.MovC{Typ: i32, Dest: 1, Constant: 4},
			&lir.Alloc{Typ: i32, Dest: 2, IsGlobal: true, FromReg: true, SizeReg: 1, Name: "arr"},
		}},
	}}
	_, err := collectGlobals(prog)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFeature)
}

func TestRenderGlobals_InitializedByteGoesToDataWithByteDirective(t *testing.T) {
	out := renderGlobals(map[string]globalSym{
		"g": {typ: i8, value: 5, hasInit: true},
	})
	assert.Contains(t, out, ".data")
	assert.Contains(t, out, ".byte\t5")
}

func TestRenderGlobals_UninitializedGoesToBss(t *testing.T) {
	out := renderGlobals(map[string]globalSym{
		"g": {typ: i32, hasInit: false},
	})
	assert.Contains(t, out, ".bss")
	assert.Contains(t, out, ".zero\t4")
}
