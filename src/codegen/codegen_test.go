package codegen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riscc/src/lir"
	"riscc/src/riscv"
	"riscc/src/types"
)

var i32 = types.Type{Native: types.I32}
var i8 = types.Type{Native: types.I8}

func TestComputeFrame_GroupsBySizeClassAndAligns(t *testing.T) {
	body := []lir.Instr{
		&lir.Alloc{Typ: i32, Dest: 1, Name: "a"},
		&lir.Alloc{Typ: i8, Dest: 2, Name: "b"},
		&lir.Alloc{Typ: i32, Dest: 3, Name: "c"},
	}
	offsets, frameSize, err := computeFrame(body)
	require.NoError(t, err)

	// savedSlots(8) + 4 (a) + 4 (c) both 4-byte class before the 1-byte
	// class's b, then rounded up to 16.
	assert.Equal(t, int32(-12), offsets[1])
	assert.Equal(t, int32(-16), offsets[3])
	assert.Equal(t, int32(-17), offsets[2])
	assert.Equal(t, int32(32), frameSize)
}

func TestComputeFrame_RejectsArrayBackedByRegisterSize(t *testing.T) {
	body := []lir.Instr{
		&lir.Alloc{Typ: i32, Dest: 1, FromReg: true, SizeReg: 2, Name: "arr"},
	}
	_, _, err := computeFrame(body)
	assert.ErrorIs(t, err, ErrUnsupportedFeature)
}

func TestComputeFrame_SkipsGlobals(t *testing.T) {
	body := []lir.Instr{
		&lir.Alloc{Typ: i32, Dest: 1, IsGlobal: true, Name: "g"},
	}
	offsets, frameSize, err := computeFrame(body)
	require.NoError(t, err)
	assert.Empty(t, offsets)
	assert.Equal(t, int32(16), frameSize) // savedSlots(8) rounded up to 16
}

func TestPrologueEpilogue_SaveAndRestoreRAAndFP(t *testing.T) {
	fs := &funcState{idx: 0, name: "f", frameSize: 32}
	pro := prologue(fs)
	require.Len(t, pro, 5)
	assert.Equal(t, riscv.OpSW, pro[2].Opcode)
	assert.Equal(t, riscv.RegRA, pro[2].Src2)
	assert.Equal(t, riscv.OpSW, pro[3].Opcode)
	assert.Equal(t, riscv.RegFP, pro[3].Src2)

	epi := epilogue(fs)
	require.Len(t, epi, 5)
	assert.Equal(t, riscv.OpJalr, epi[4].Opcode)
	assert.Equal(t, riscv.RegX0, epi[4].Dest)
}

func TestMaterializeParams_FirstEightArriveFromArgRegisters(t *testing.T) {
	fn := &lir.FunctionDecl{
		ArgTypes:  []types.Type{i32, i32},
		ParamRegs: []lir.Reg{1, 2},
		Body: []lir.Instr{
			&lir.Alloc{Typ: i32, Dest: 1, Name: "x"},
			&lir.Alloc{Typ: i32, Dest: 2, Name: "y"},
		},
	}
	fs := &funcState{frameSize: 32, offsets: map[lir.Reg]int32{1: -12, 2: -16}}
	out := materializeParams(fs, fn)
	require.Len(t, out, 2)
	assert.Equal(t, riscv.OpSW, out[0].Opcode)
	assert.Equal(t, riscv.RegA0, out[0].Src2)
	assert.Equal(t, int32(-12), out[0].Immediate)
	assert.Equal(t, riscv.RegA1, out[1].Src2)
	assert.Equal(t, int32(-16), out[1].Immediate)
}

func TestMaterializeParams_NinthArgumentLoadsFromCallerSpillSlot(t *testing.T) {
	argTypes := make([]types.Type, 9)
	paramRegs := make([]lir.Reg, 9)
	body := make([]lir.Instr, 9)
	offsets := map[lir.Reg]int32{}
	for i := 0; i < 9; i++ {
		argTypes[i] = i32
		paramRegs[i] = lir.Reg(i + 1)
		body[i] = &lir.Alloc{Typ: i32, Dest: lir.Reg(i + 1), Name: "p"}
		offsets[lir.Reg(i+1)] = int32(-12 - 4*i)
	}
	fn := &lir.FunctionDecl{ArgTypes: argTypes, ParamRegs: paramRegs, Body: body}
	fs := &funcState{frameSize: 64, offsets: offsets}

	out := materializeParams(fs, fn)
	// Eight store-from-register pairs (one instruction each) plus one
	// load+store pair for the ninth (spilled) argument.
	require.Len(t, out, 8+2)

	loadSpill := out[8]
	assert.Equal(t, riscv.OpLW, loadSpill.Opcode)
	assert.Equal(t, riscv.RegSP, loadSpill.Src1)
	assert.Equal(t, int32(64), loadSpill.Immediate) // frameSize + (8-8)*4

	storeToSlot := out[9]
	assert.Equal(t, riscv.OpSW, storeToSlot.Opcode)
	assert.Equal(t, riscv.RegFP, storeToSlot.Src1)
}

func TestMaterializeParams_SkippedLeadingParameterKeepsOffsetsAligned(t *testing.T) {
	// i32 f(i32 a, i32 b) { return b; } as the *optimized* body sees it:
	// a's Alloc was dropped by dead-code removal, so Body[0] is b's
	// Alloc even though b is parameter index 1. ParamRegs must still
	// steer a0 into a's slot and a1 into b's.
	fn := &lir.FunctionDecl{
		ArgTypes:  []types.Type{i32, i32},
		ParamRegs: []lir.Reg{1, 2},
		Body: []lir.Instr{
			&lir.Alloc{Typ: i32, Dest: 2, Name: "b"},
			&lir.Return{Typ: i32, Src: 2},
		},
	}
	fs := &funcState{frameSize: 32, offsets: map[lir.Reg]int32{2: -12}}

	out := materializeParams(fs, fn)
	// a's slot was dropped along with its Alloc, so only b's store
	// survives -- but it must still carry a1, not a0.
	require.Len(t, out, 1)
	assert.Equal(t, riscv.RegA1, out[0].Src2)
	assert.Equal(t, int32(-12), out[0].Immediate)
}

func TestLowerMovC_SmallConstantUsesSingleAddi(t *testing.T) {
	fs := &funcState{constants: map[lir.Reg]uint32{}}
	out := lowerMovC(&lir.MovC{Dest: 1, Constant: 100}, fs)
	require.Len(t, out, 1)
	assert.Equal(t, riscv.OpAddI, out[0].Opcode)
	assert.Equal(t, riscv.RegX0, out[0].Src1)
	assert.EqualValues(t, 100, fs.constants[1])
}

func TestLowerMovC_LargeConstantAccumulatesOntoLUIDestination(t *testing.T) {
	fs := &funcState{constants: map[lir.Reg]uint32{}}
	out := lowerMovC(&lir.MovC{Dest: 1, Constant: 0x12345678}, fs)
	require.Len(t, out, 2)
	assert.Equal(t, riscv.OpLui, out[0].Opcode)
	assert.Equal(t, riscv.OpAddI, out[1].Opcode)
	// The addi must accumulate onto the register lui just wrote, not x0.
	assert.Equal(t, out[0].Dest, out[1].Src1)
	assert.NotEqual(t, riscv.RegX0, out[1].Src1)
}

func TestLowerCast_SizedByNarrowerOfSrcAndDest(t *testing.T) {
	u16 := types.Type{Native: types.U16}
	out, err := lowerCast(&lir.Cast{DestTyp: i32, SrcTyp: u16, Dest: 2, Src: 1})
	require.NoError(t, err)
	// masked at 16 bits (0xffff) even though the destination is 4 bytes.
	require.NotEmpty(t, out)
	assert.Equal(t, riscv.OpAndI, out[0].Opcode)
	assert.EqualValues(t, 0xffff, out[0].Immediate)
}

func TestLowerCast_FullWidthNoOpWhenSameRegister(t *testing.T) {
	out, err := lowerCast(&lir.Cast{DestTyp: i32, SrcTyp: i32, Dest: 1, Src: 1})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLowerReturn_JumpsToSharedEpilogue(t *testing.T) {
	fs := &funcState{idx: 3}
	out := lowerReturn(&lir.Return{Src: 5}, fs)
	require.Len(t, out, 2)
	assert.Equal(t, riscv.OpAddI, out[0].Opcode)
	assert.Equal(t, riscv.RegA0, out[0].Dest)
	assert.Equal(t, riscv.OpJ, out[1].Opcode)
	assert.Equal(t, epilogueLabel, out[1].Label)
	assert.Equal(t, 3, out[1].LabelFunction)
}

func TestLowerCall_SpillsArgumentsBeyondEighth(t *testing.T) {
	args := make([]lir.Reg, 9)
	for i := range args {
		args[i] = lir.Reg(i + 1)
	}
	out := lowerCall(&lir.Call{Name: "f", Args: args})

	require.NotEmpty(t, out)
	assert.Equal(t, riscv.OpAddI, out[0].Opcode)
	assert.Equal(t, riscv.RegSP, out[0].Dest)
	assert.Equal(t, int32(-wordSize), out[0].Immediate)

	assert.Equal(t, riscv.OpSW, out[1].Opcode)
	assert.Equal(t, int32(0), out[1].Immediate)

	var sawCall bool
	for _, in := range out {
		if in.Opcode == riscv.OpJalr && in.Name == "f" {
			sawCall = true
		}
	}
	assert.True(t, sawCall)
}

func TestGenerate_RendersGlobalsBeforeText(t *testing.T) {
	prog := &lir.Program{Functions: []*lir.FunctionDecl{
		{Name: "init", Body: []lir.Instr{
			&lir.MovC{Typ: i32, Dest: 1, Constant: 7},
			&lir.Alloc{Typ: i32, Dest: 1, IsGlobal: true, Init: 1, Name: "g"},
			&lir.Call{Name: "main", Typ: types.Type{Native: types.Void}},
		}},
		{Name: "main", ReturnType: i32, Body: []lir.Instr{
			&lir.Return{Typ: i32, Src: 0},
		}},
	}}
	var buf bytes.Buffer
	err := Generate(prog, &buf)
	require.NoError(t, err)
	out := buf.String()
	assert.True(t, strings.Contains(out, ".data"))
	assert.True(t, strings.Contains(out, "g:"))
	assert.True(t, strings.Contains(out, ".text"))
	assert.True(t, strings.Index(out, ".data") < strings.Index(out, ".text"))
}

func TestGenerateFunction_DropsJumpImmediatelyPrecedingEpilogue(t *testing.T) {
	fn := &lir.FunctionDecl{Name: "f", ReturnType: i32, Body: []lir.Instr{
		&lir.Return{Typ: i32, Src: 0},
	}}
	out, err := generateFunction(0, fn, map[string]globalSym{})
	require.NoError(t, err)

	// The lowered Return always emits "j <epilogue>"; since nothing
	// else follows it here, it must be dropped before the epilogue
	// label is appended rather than jumping one instruction forward.
	for i, in := range out {
		if in.Opcode == riscv.OpLabel && in.Label == epilogueLabel {
			require.Greater(t, i, 0)
			prev := out[i-1]
			assert.False(t, prev.Opcode == riscv.OpJ && prev.Label == epilogueLabel,
				"a jump immediately preceding the epilogue label is redundant")
			return
		}
	}
	t.Fatal("epilogue label not found in generated output")
}
