// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import "strings"

// lowerArith lowers every UNARY_*/BINARY_*/INPLACE_* opcode through the
// single uniform pattern spec §4.4 describes: "pop arg(s), call
// __pypperoni_IMPL_<opname_lower>, check error, set top." One runtime helper
// per opcode name is assumed to exist; this function only has to know the
// arity (1 for unary, 2 for binary/inplace).
func (l *Lowerer) lowerArith(ins Instruction) {
	helper := "__pypperoni_IMPL_" + strings.ToLower(ins.Opcode.String())

	if ins.Opcode.IsUnary() {
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("w = %s(x);", helper)
		l.Ctx.InsertLine("Py_DECREF(x);")
	} else {
		l.Ctx.InsertLine("w = POP(); x = POP();")
		l.Ctx.InsertLine("v = %s(x, w);", helper)
		l.Ctx.InsertLine("Py_DECREF(x); Py_DECREF(w);")
		l.Ctx.InsertLine("w = v;")
	}

	l.Ctx.InsertLine("if (w == NULL) {")
	l.Ctx.InsertHandleError(ins.Line, ins.Label)
	l.Ctx.InsertLine("}")
	l.Ctx.InsertLine("PUSH(w);")
}

// lowerCompare lowers COMPARE_OP (spec §4.4 "Comparisons").
func (l *Lowerer) lowerCompare(ins Instruction) {
	l.Ctx.InsertLine("w = POP(); x = POP();")
	l.Ctx.InsertLine("err = __pypperoni_IMPL_compare(x, w, %d, &v);", ins.Oparg)
	l.Ctx.InsertLine("Py_DECREF(x); Py_DECREF(w);")
	l.Ctx.InsertLine("if (err != 0) {")
	l.Ctx.InsertHandleError(ins.Line, ins.Label)
	l.Ctx.InsertLine("}")
	l.Ctx.InsertLine("PUSH(v); /* %s */", CompareOp(ins.Oparg))
}
