// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

// lowerBranch lowers JUMP_FORWARD/JUMP_ABSOLUTE/POP_JUMP_IF_*/JUMP_IF_*_OR_POP
// (spec §4.4 "Branches"). JUMP_FORWARD's target is label+oparg+2 (one
// wordcode unit past the instruction itself); JUMP_ABSOLUTE and the
// POP_JUMP_IF_* family target oparg directly (a raw byte offset, spec §4.4
// "Jump targets are always raw byte offsets").
func (l *Lowerer) lowerBranch(ins Instruction) {
	switch ins.Opcode {
	case JUMP_FORWARD:
		l.Ctx.InsertLine("goto label_%d;", ins.Label+ins.Oparg+2)

	case JUMP_ABSOLUTE:
		l.Ctx.InsertLine("goto label_%d;", ins.Oparg)

	case POP_JUMP_IF_TRUE:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("err = __pypperoni_IMPL_check_cond(x);")
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (err < 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("if (err > 0) { goto label_%d; }", ins.Oparg)

	case POP_JUMP_IF_FALSE:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("err = __pypperoni_IMPL_check_cond(x);")
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (err < 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("if (err == 0) { goto label_%d; }", ins.Oparg)

	case JUMP_IF_TRUE_OR_POP:
		l.Ctx.InsertLine("x = TOP();")
		l.Ctx.InsertLine("err = __pypperoni_IMPL_check_cond(x);")
		l.Ctx.InsertLine("if (err < 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("if (err > 0) { goto label_%d; }", ins.Oparg)
		l.Ctx.InsertLine("STACKADJ(-1); Py_DECREF(x);")

	case JUMP_IF_FALSE_OR_POP:
		l.Ctx.InsertLine("x = TOP();")
		l.Ctx.InsertLine("err = __pypperoni_IMPL_check_cond(x);")
		l.Ctx.InsertLine("if (err < 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("if (err == 0) { goto label_%d; }", ins.Oparg)
		l.Ctx.InsertLine("STACKADJ(-1); Py_DECREF(x);")
	}
}

// lowerIteration handles GET_ITER/FOR_ITER/GET_YIELD_FROM_ITER/GET_AWAITABLE/
// GET_AITER/GET_ANEXT (spec §4.4 "Iteration"). FOR_ITER's oparg is a
// relative jump past the loop body, taken when the iterator is exhausted.
func (l *Lowerer) lowerIteration(ins Instruction) {
	switch ins.Opcode {
	case GET_ITER:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("w = PyObject_GetIter(x);")
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (w == NULL) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("PUSH(w);")

	case GET_YIELD_FROM_ITER:
		l.Ctx.InsertLine("x = TOP();")
		l.Ctx.InsertLine("w = __pypperoni_IMPL_yield_from_iter(x);")
		l.Ctx.InsertLine("if (w == NULL) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("SET_TOP(w); Py_DECREF(x);")

	case GET_AWAITABLE:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("w = __pypperoni_IMPL_get_awaitable(x);")
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (w == NULL) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("PUSH(w);")

	case GET_AITER:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("w = __pypperoni_IMPL_get_aiter(x);")
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (w == NULL) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("PUSH(w);")

	case GET_ANEXT:
		l.Ctx.InsertLine("x = TOP();")
		l.Ctx.InsertLine("w = __pypperoni_IMPL_get_anext(x);")
		l.Ctx.InsertLine("if (w == NULL) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("PUSH(w);")

	case FOR_ITER:
		l.Ctx.InsertLine("x = TOP();")
		l.Ctx.InsertLine("w = (*x->ob_type->tp_iternext)(x);")
		l.Ctx.InsertLine("if (w == NULL) {")
		l.Ctx.InsertLine("  if (PyErr_Occurred()) {")
		l.Ctx.InsertLine("    if (!PyErr_ExceptionMatches(PyExc_StopIteration)) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("    }")
		l.Ctx.InsertLine("    PyErr_Clear();")
		l.Ctx.InsertLine("  }")
		l.Ctx.InsertLine("  STACKADJ(-1); Py_DECREF(x);")
		l.Ctx.InsertLine("  goto label_%d;", ins.Label+ins.Oparg+2)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("PUSH(w);")
	}
}

// lowerCall handles CALL_FUNCTION/CALL_FUNCTION_KW/CALL_FUNCTION_EX (spec
// §4.4 "Calls").
func (l *Lowerer) lowerCall(ins Instruction) {
	switch ins.Opcode {
	case CALL_FUNCTION:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_call_func(&stack_pointer, %d, NULL);", ins.Oparg)

	case CALL_FUNCTION_KW:
		l.Ctx.InsertLine("w = POP(); /* kwnames tuple */")
		l.Ctx.InsertLine("x = __pypperoni_IMPL_call_func_kw(&stack_pointer, %d, w);", ins.Oparg)
		l.Ctx.InsertLine("Py_DECREF(w);")

	case CALL_FUNCTION_EX:
		if ins.Oparg&0x01 != 0 {
			l.Ctx.InsertLine("w = POP(); /* kwargs dict */")
		} else {
			l.Ctx.InsertLine("w = NULL;")
		}
		l.Ctx.InsertLine("v = POP(); /* args tuple/iterable */")
		l.Ctx.InsertLine("u = POP(); /* callable */")
		l.Ctx.InsertLine("x = __pypperoni_IMPL_call_func_ex(u, v, w);")
		l.Ctx.InsertLine("Py_DECREF(u); Py_DECREF(v); Py_XDECREF(w);")
	}

	l.Ctx.InsertLine("if (x == NULL) {")
	l.Ctx.InsertHandleError(ins.Line, ins.Label)
	l.Ctx.InsertLine("}")
	l.Ctx.InsertLine("PUSH(x);")
}
