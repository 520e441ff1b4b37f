package pypperoni

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLowerExceptionMachinerySetupFinally(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerExceptionMachinery(Instruction{Opcode: SETUP_FINALLY, Label: 4, Oparg: 10})
	body := l.Ctx.Body()
	require.Contains(t, body, "__PYPPERONI_BLOCK_FINALLY")
	require.Contains(t, body, "label_16")
}

func TestLowerExceptionMachineryRaiseVarargsZero(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerExceptionMachinery(Instruction{Opcode: RAISE_VARARGS, Oparg: 0})
	body := l.Ctx.Body()
	require.Contains(t, body, "__pypperoni_IMPL_do_raise(NULL, NULL);")
	require.Contains(t, body, "why = WHY_EXCEPTION;")
}

func TestLowerExceptionMachineryBreakLoop(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerExceptionMachinery(Instruction{Opcode: BREAK_LOOP})
	body := l.Ctx.Body()
	require.Contains(t, body, "why = WHY_BREAK;")
	require.Contains(t, body, "goto fast_block_end;")
}

func TestBlockKindMacro(t *testing.T) {
	require.Equal(t, "__PYPPERONI_BLOCK_LOOP", blockKindMacro(SETUP_LOOP))
	require.Equal(t, "__PYPPERONI_BLOCK_EXCEPT", blockKindMacro(SETUP_EXCEPT))
	require.Equal(t, "__PYPPERONI_BLOCK_FINALLY", blockKindMacro(SETUP_WITH))
}

func TestLowerYieldValueEmitsSuspendAndResumeLabel(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerYield(Instruction{Opcode: YIELD_VALUE, Label: 4, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "why = WHY_YIELD;")
	require.Contains(t, body, "label_6:")
	require.Equal(t, []int{4}, l.Ctx.YieldLabels())
}

func TestLowerYieldFromChecksDoneSentinel(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerYield(Instruction{Opcode: YIELD_FROM, Label: 8, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "__PYPPERONI_YIELD_FROM_DONE")
}

func TestEmitGeneratorPrologueListsYieldLabels(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.instrs = []Instruction{
		{Label: 0, Opcode: NOP},
		{Label: 2, Opcode: YIELD_VALUE},
		{Label: 6, Opcode: NOP},
	}
	l.emitGeneratorPrologue()
	body := l.Ctx.Body()
	require.Contains(t, body, "case 4: goto label_4;")
	require.Contains(t, body, "__pypperoni_IMPL_fatal_bad_resume(f)")
}

func TestLowerWithSetupWithInstallsFinallyBlock(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerWith(Instruction{Opcode: SETUP_WITH, Label: 0, Oparg: 6, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "__pypperoni_IMPL_setup_with(x, &v);")
	require.Contains(t, body, "__PYPPERONI_BLOCK_FINALLY")
}

func TestLowerReturnSetsWhyReturn(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerReturn(Instruction{Opcode: RETURN_VALUE})
	body := l.Ctx.Body()
	require.Contains(t, body, "why = WHY_RETURN;")
	require.Contains(t, body, "goto fast_block_end;")
}

func TestLowerImportStarChecksError(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerImportStar(Instruction{Line: 1})
	require.Contains(t, l.Ctx.Body(), "__pypperoni_IMPL_import_star(f, TOP());")
}

func TestLowerMakeFunctionQueuesNestedLowerer(t *testing.T) {
	nestedCode := &CodeObject{QualName: "inner"}
	co := &CodeObject{
		Consts: []Value{CodeValue{Code: nestedCode}, StrValue("inner")},
	}
	l := newBareLowerer(co)
	l.Module = &Module{Name: "app"}
	l.Code.Path = "app"

	l.instrs = []Instruction{
		{Label: 0, Opcode: LOAD_CONST, Oparg: 0},
		{Label: 2, Opcode: LOAD_CONST, Oparg: 1},
		{Label: 4, Opcode: MAKE_FUNCTION, Oparg: 0, Line: 1},
	}
	l.byLbl = map[int]int{0: 0, 2: 1, 4: 2}

	l.lowerLoad(Instruction{Opcode: LOAD_CONST, Label: 0, Oparg: 0, Line: 1})
	l.lowerLoad(Instruction{Opcode: LOAD_CONST, Label: 2, Oparg: 1, Line: 1})
	l.lowerMakeFunction(Instruction{Opcode: MAKE_FUNCTION, Label: 4, Oparg: 0, Line: 1})

	require.Len(t, l.nested, 1)
	require.Equal(t, "inner", l.nested[0].Code.QualName)
	require.Empty(t, l.pendingCode)
	body := l.Ctx.Body()
	require.Contains(t, body, "__pypperoni_IMPL_make_function((void*)app_4, x, v, u, defaults, kwdefaults);")
}
