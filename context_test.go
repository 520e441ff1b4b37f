package pypperoni

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmissionContextBeginEndBlockIndents(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	c.BeginBlock()
	c.InsertLine("x = 1;")
	c.EndBlock()
	require.Equal(t, "{\n  x = 1;\n}\n", c.Body())
}

func TestEmissionContextInsertLineFormats(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	c.InsertLine("x = %d;", 42)
	require.Equal(t, "x = 42;\n", c.Body())
}

func TestEmissionContextInsertLabelIdempotent(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	c.InsertLabel(4)
	c.InsertLabel(4)
	require.Equal(t, 1, countOccurrences(c.Body(), "label_4:"))
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}

func TestEmissionContextAddDeclDedupsByName(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	c.AddDecl("x", "PyObject*", "NULL", true)
	c.AddDecl("x", "PyObject*", "something_else", false)
	require.Equal(t, "  PyObject* x = NULL;\n", c.DeclsC())
}

func TestEmissionContextNewScratchAllocatesUniqueNames(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	a := c.NewScratch("PyObject*", "NULL")
	b := c.NewScratch("PyObject*", "NULL")
	require.NotEqual(t, a, b)
	require.Contains(t, c.DeclsC(), a)
	require.Contains(t, c.DeclsC(), b)
}

func TestEmissionContextRegisterConstNoneIsPyNone(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	require.Equal(t, "Py_None", c.RegisterConst(NoneValue{}))
}

func TestEmissionContextRegisterConstDedupsHashable(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	a := c.RegisterConst(IntValue{V: big.NewInt(5)})
	b := c.RegisterConst(IntValue{V: big.NewInt(5)})
	require.Equal(t, a, b)
	require.Len(t, c.Consts(), 1)
}

func TestEmissionContextRegisterConstAppendsUnhashable(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	a := c.RegisterConst(TupleValue{StrValue("x")})
	b := c.RegisterConst(TupleValue{StrValue("x")})
	require.NotEqual(t, a, b)
	require.Len(t, c.Consts(), 2)
}

func TestEmissionContextRegisterLiteralDedups(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	a := c.RegisterLiteral("foo")
	b := c.RegisterLiteral("foo")
	cLit := c.RegisterLiteral("bar")
	require.Equal(t, a, b)
	require.NotEqual(t, a, cLit)
	require.Equal(t, []string{"foo", "bar"}, c.Literals())
}

func TestEmissionContextSharedPoolAcrossChunks(t *testing.T) {
	base := NewEmissionContext("mod", nil)
	chunk := NewChunkContext("mod_chunk2", "mod", base.pool, base.mu)

	base.RegisterConst(IntValue{V: big.NewInt(1)})
	chunk.RegisterConst(IntValue{V: big.NewInt(2)})

	require.Len(t, base.Consts(), 2)
	require.Len(t, chunk.Consts(), 2)
}

func TestEmissionContextInsertHandleErrorAndYield(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	c.InsertHandleError(10, 0)
	require.Contains(t, c.Body(), "f->f_lineno = 10;")
	require.Contains(t, c.Body(), "goto error;")

	c2 := NewEmissionContext("mod", nil)
	c2.InsertYield(4, 8)
	require.Contains(t, c2.Body(), "why = WHY_YIELD;")
	require.Equal(t, []int{8}, c2.YieldLabels())
}

func TestEmissionContextFinishEmitsDecrefsInOrder(t *testing.T) {
	c := NewEmissionContext("mod", nil)
	c.AddDecl("a", "PyObject*", "NULL", true)
	c.AddDecl("b", "PyObject*", "NULL", false)
	c.Finish(false)

	body := c.Body()
	require.Contains(t, body, "Py_XDECREF(a);")
	require.NotContains(t, body, "Py_XDECREF(b);")
	require.Contains(t, body, "fast_block_end:")
	require.Contains(t, body, "return retval;")
}
