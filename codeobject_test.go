package pypperoni

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeFlagHas(t *testing.T) {
	f := CoOptimized | CoGenerator
	require.True(t, f.Has(CoOptimized))
	require.True(t, f.Has(CoGenerator))
	require.False(t, f.Has(CoVarArgs))
}

func TestCodeObjectString(t *testing.T) {
	c := &CodeObject{QualName: "foo", Filename: "f.py", FirstLine: 3}
	require.Equal(t, "<code foo at f.py:3>", c.String())
}

func TestCodeObjectLineAtWalksBackward(t *testing.T) {
	c := &CodeObject{FirstLine: 1, LineTable: map[int]int{0: 1, 4: 2, 10: 5}}
	require.Equal(t, 1, c.LineAt(0))
	require.Equal(t, 1, c.LineAt(2))
	require.Equal(t, 2, c.LineAt(4))
	require.Equal(t, 2, c.LineAt(8))
	require.Equal(t, 5, c.LineAt(10))
}

func TestCodeObjectLineAtFallsBackToFirstLine(t *testing.T) {
	c := &CodeObject{FirstLine: 7, LineTable: map[int]int{}}
	require.Equal(t, 7, c.LineAt(-1))
}

func TestDecodeInstructionsPlain(t *testing.T) {
	c := &CodeObject{
		Code:      []byte{byte(LOAD_CONST), 0, byte(RETURN_VALUE), 0},
		LineTable: map[int]int{0: 1},
		FirstLine: 1,
	}
	instrs := DecodeInstructions(c)
	require.Len(t, instrs, 2)
	require.Equal(t, LOAD_CONST, instrs[0].Opcode)
	require.Equal(t, 0, instrs[0].Label)
	require.Equal(t, RETURN_VALUE, instrs[1].Opcode)
	require.Equal(t, 2, instrs[1].Label)
}

func TestDecodeInstructionsFoldsExtendedArg(t *testing.T) {
	c := &CodeObject{
		Code: []byte{
			byte(EXTENDED_ARG), 1,
			byte(LOAD_CONST), 44,
		},
		LineTable: map[int]int{0: 1},
		FirstLine: 1,
	}
	instrs := DecodeInstructions(c)
	require.Len(t, instrs, 2)
	require.Equal(t, NOP, instrs[0].Opcode)
	require.Equal(t, 0, instrs[0].Label)
	require.Equal(t, LOAD_CONST, instrs[1].Opcode)
	require.Equal(t, 2, instrs[1].Label)
	require.Equal(t, (1<<8)|44, instrs[1].Oparg)
}

func TestInstructionAtFindsByLabel(t *testing.T) {
	instrs := []Instruction{{Label: 0}, {Label: 2}, {Label: 4}, {Label: 6}}
	found, ok := InstructionAt(instrs, 4)
	require.True(t, ok)
	require.Equal(t, 4, found.Label)

	_, ok = InstructionAt(instrs, 5)
	require.False(t, ok)
}
