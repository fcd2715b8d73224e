package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riscc/src/lir"
	"riscc/src/types"
)

var i32 = types.Type{Native: types.I32}

func TestRemoveDeadCode_DropsUnusedComputation(t *testing.T) {
	body := []lir.Instr{
		&lir.MovC{Typ: i32, Dest: 1, Constant: 5},  // never read
		&lir.MovC{Typ: i32, Dest: 2, Constant: 9},
		&lir.Return{Typ: i32, Src: 2},
	}
	out := removeDeadCode(body, nil)
	require.Len(t, out, 2)
	mc, ok := out[0].(*lir.MovC)
	require.True(t, ok)
	assert.EqualValues(t, 9, mc.Constant)
	_, ok = out[1].(*lir.Return)
	assert.True(t, ok)
}

func TestRemoveDeadCode_KeepsStoreReloadedAcrossCall(t *testing.T) {
	// x := 10 (Alloc+Store); call f(); return x -- the Store must survive
	// dead-code elimination even though nothing reads the Store's own
	// result register (Store writes memory, not a register).
	body := []lir.Instr{
		&lir.Alloc{Typ: i32, Dest: 1, Name: "x"},
		&lir.MovC{Typ: i32, Dest: 2, Constant: 10},
		&lir.Store{Typ: i32, Addr: 1, Value: 2},
		&lir.Call{Name: "f", Typ: types.Type{Native: types.Void}},
		&lir.LoadR{Typ: i32, Dest: 3, Addr: 1},
		&lir.Return{Typ: i32, Src: 3},
	}
	out := removeDeadCode(body, nil)

	var sawStore bool
	for _, in := range out {
		if s, ok := in.(*lir.Store); ok {
			require.EqualValues(t, 2, s.Value)
			sawStore = true
		}
	}
	assert.True(t, sawStore, "a store later reloaded through the same address must survive dead-code elimination")
}

func TestRemoveDeadCode_DropsStoreNeverReloaded(t *testing.T) {
	body := []lir.Instr{
		&lir.Alloc{Typ: i32, Dest: 1, Name: "x"},
		&lir.MovC{Typ: i32, Dest: 2, Constant: 10},
		&lir.Store{Typ: i32, Addr: 1, Value: 2},
		&lir.Return{Typ: i32, Src: 0},
	}
	out := removeDeadCode(body, nil)
	for _, in := range out {
		_, isStore := in.(*lir.Store)
		assert.False(t, isStore, "a store to a local never read again is genuinely dead")
	}
}

func TestRemoveDeadCode_KeepsUnusedParameterAlloc(t *testing.T) {
	// i32 f(i32 a, i32 b) { return b; } -- a's Alloc is never read or
	// written by the body, but its slot must still survive so
	// materializeParams has somewhere to store the incoming argument.
	body := []lir.Instr{
		&lir.Alloc{Typ: i32, Dest: 1, Name: "a"},
		&lir.Alloc{Typ: i32, Dest: 2, Name: "b"},
		&lir.Return{Typ: i32, Src: 2},
	}
	out := removeDeadCode(body, []lir.Reg{1, 2})

	var sawA bool
	for _, in := range out {
		if a, ok := in.(*lir.Alloc); ok && a.Dest == 1 {
			sawA = true
		}
	}
	assert.True(t, sawA, "an unused parameter's Alloc must survive so codegen can still fill its ABI slot")
}

func TestRemoveRedundantJumps_CollapsesFallthroughBranch(t *testing.T) {
	body := []lir.Instr{
		&lir.Branch{Kind: lir.CmpAlways, Target: 0},
		&lir.Label{ID: 0},
		&lir.Return{Typ: i32},
	}
	out, changed := removeRedundantJumps(body)
	assert.True(t, changed)
	// The branch was the label's only reference, so collapsing it also
	// orphans (and drops) the label itself.
	require.Len(t, out, 1)
	_, ok := out[0].(*lir.Return)
	assert.True(t, ok)
}

func TestRemoveRedundantJumps_KeepsLabelWithSurvivingReference(t *testing.T) {
	body := []lir.Instr{
		&lir.Branch{Kind: lir.CmpAlways, Target: 0}, // collapses (falls straight into label 0)
		&lir.Label{ID: 0},
		&lir.Branch{Kind: lir.CmpEQ, Src1: 1, Src2: 2, Target: 0}, // still targets label 0
		&lir.Return{Typ: i32},
	}
	out, changed := removeRedundantJumps(body)
	assert.True(t, changed)

	var sawLabel bool
	for _, in := range out {
		if l, ok := in.(*lir.Label); ok {
			assert.Equal(t, 0, l.ID)
			sawLabel = true
		}
	}
	assert.True(t, sawLabel, "a label still targeted by a surviving branch must not be deleted")
}

func TestOptimize_SkipsSynthesizedInit(t *testing.T) {
	initBody := []lir.Instr{
		&lir.MovC{Typ: i32, Dest: 1, Constant: 1}, // dead, by construction
		&lir.Call{Name: "main", Typ: types.Type{Native: types.Void}},
	}
	prog := &lir.Program{Functions: []*lir.FunctionDecl{
		{Name: "init", Body: append([]lir.Instr{}, initBody...)},
		{Name: "main", Body: []lir.Instr{&lir.Return{Typ: i32}}},
	}}
	out := Optimize(prog)
	require.Len(t, out.Functions[0].Body, len(initBody), "init must pass through Optimize unchanged")
}
