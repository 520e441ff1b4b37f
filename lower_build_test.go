package pypperoni

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLowerBuilderBuildList(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerBuilder(Instruction{Opcode: BUILD_LIST, Oparg: 3, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "__pypperoni_IMPL_build_list(&stack_pointer, 3);")
	require.Contains(t, body, "PUSH(x);")
}

func TestLowerBuilderBuildSliceTwoArg(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerBuilder(Instruction{Opcode: BUILD_SLICE, Oparg: 2, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "PySlice_New(x, w, NULL);")
}

func TestLowerBuilderBuildSliceThreeArg(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerBuilder(Instruction{Opcode: BUILD_SLICE, Oparg: 3, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "PySlice_New(x, w, v);")
}

func TestLowerBuilderListAppendPeeksStack(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerBuilder(Instruction{Opcode: LIST_APPEND, Oparg: 2, Line: 1})
	require.Contains(t, l.Ctx.Body(), "PyList_Append(PEEK(2), x);")
}

func TestLowerUnpackSequence(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerUnpack(Instruction{Opcode: UNPACK_SEQUENCE, Oparg: 3, Line: 1})
	require.Contains(t, l.Ctx.Body(), "__pypperoni_IMPL_unpack_sequence(x, 3, &stack_pointer);")
}

func TestLowerUnpackExSplitsBeforeAfter(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerUnpack(Instruction{Opcode: UNPACK_EX, Oparg: (2 << 8) | 1, Line: 1})
	require.Contains(t, l.Ctx.Body(), "__pypperoni_IMPL_unpack_ex(x, 1, 2, &stack_pointer);")
}

func TestLowerFormatValueNoSpec(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerFormatValue(Instruction{Opcode: FORMAT_VALUE, Oparg: 0, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "w = NULL;")
	require.Contains(t, body, "__pypperoni_IMPL_format_value(x, w, 0);")
}

func TestLowerFormatValueWithSpec(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerFormatValue(Instruction{Opcode: FORMAT_VALUE, Oparg: 0x05, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "format spec")
	require.Contains(t, body, "__pypperoni_IMPL_format_value(x, w, 1);")
}
