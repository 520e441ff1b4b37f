package pypperoni

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLowerLoadConstRegistersAndPushes(t *testing.T) {
	co := &CodeObject{Consts: []Value{IntValue{V: big.NewInt(9)}}}
	l := newBareLowerer(co)
	l.lowerLoad(Instruction{Opcode: LOAD_CONST, Oparg: 0, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "__pypperoni_get_const_mod(0)")
	require.NotContains(t, body, "Py_INCREF(x);")
	require.Contains(t, body, "PUSH(x);")
}

func TestLowerLoadConstCodeObjectStashesAtCompileTime(t *testing.T) {
	nestedCode := &CodeObject{QualName: "inner"}
	co := &CodeObject{Consts: []Value{CodeValue{Code: nestedCode}}}
	l := newBareLowerer(co)
	l.lowerLoad(Instruction{Opcode: LOAD_CONST, Oparg: 0, Line: 1})
	require.Empty(t, l.Ctx.Body())
	require.Equal(t, []*CodeObject{nestedCode}, l.pendingCode)
}

func TestLowerLoadNameUsesLiteral(t *testing.T) {
	co := &CodeObject{Names: []string{"foo"}}
	l := newBareLowerer(co)
	l.lowerLoad(Instruction{Opcode: LOAD_NAME, Oparg: 0, Line: 1})
	require.Contains(t, l.Ctx.Body(), "__pypperoni_IMPL_load_name(f,")
}

func TestLowerLoadFastChecksUnboundLocal(t *testing.T) {
	co := &CodeObject{VarNames: []string{"x"}}
	l := newBareLowerer(co)
	l.lowerLoad(Instruction{Opcode: LOAD_FAST, Oparg: 0, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "GETLOCAL(0);")
	require.Contains(t, body, "__pypperoni_IMPL_raise_unbound_local(")
}

func TestLowerLoadAttrPopsAndGets(t *testing.T) {
	co := &CodeObject{Names: []string{"attr"}}
	l := newBareLowerer(co)
	l.lowerLoad(Instruction{Opcode: LOAD_ATTR, Oparg: 0, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "PyObject_GetAttr(w, u)")
	require.Contains(t, body, "Py_DECREF(u); Py_DECREF(w);")
}

func TestLowerStoreOrDeleteStoreFast(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerStoreOrDelete(Instruction{Opcode: STORE_FAST, Oparg: 2, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "SETLOCAL(2, x);")
	require.Contains(t, body, "Py_XDECREF(w);")
}

func TestLowerStoreOrDeleteDeleteFastChecksUnbound(t *testing.T) {
	co := &CodeObject{VarNames: []string{"y"}}
	l := newBareLowerer(co)
	l.lowerStoreOrDelete(Instruction{Opcode: DELETE_FAST, Oparg: 0, Line: 1})
	body := l.Ctx.Body()
	require.Contains(t, body, "__pypperoni_IMPL_raise_unbound_local(")
	require.Contains(t, body, "SETLOCAL(0, NULL);")
}

func TestLowerStoreOrDeleteStoreSubscr(t *testing.T) {
	l := newBareLowerer(&CodeObject{})
	l.lowerStoreOrDelete(Instruction{Opcode: STORE_SUBSCR, Line: 1})
	require.Contains(t, l.Ctx.Body(), "PyObject_SetItem(v, w, x);")
}
