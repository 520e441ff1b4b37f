// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

// lowerBuilder handles BUILD_* and the comprehension-append trio (spec §4.4
// "Builders"). Oparg is the element count for fixed-size builders, or the
// stack-depth-to-peek for LIST_APPEND/SET_ADD/MAP_ADD.
func (l *Lowerer) lowerBuilder(ins Instruction) {
	switch ins.Opcode {
	case BUILD_TUPLE:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_build_tuple(&stack_pointer, %d);", ins.Oparg)
		l.emitBuildErrorCheckReplaceTop(ins, ins.Oparg)

	case BUILD_LIST:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_build_list(&stack_pointer, %d);", ins.Oparg)
		l.emitBuildErrorCheckReplaceTop(ins, ins.Oparg)

	case BUILD_SET:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_build_set(&stack_pointer, %d);", ins.Oparg)
		l.emitBuildErrorCheckReplaceTop(ins, ins.Oparg)

	case BUILD_MAP:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_build_map(&stack_pointer, %d);", ins.Oparg)
		l.emitBuildErrorCheckReplaceTop(ins, ins.Oparg*2)

	case BUILD_CONST_KEY_MAP:
		l.Ctx.InsertLine("w = POP(); /* keys tuple */")
		l.Ctx.InsertLine("x = __pypperoni_IMPL_build_const_key_map(&stack_pointer, %d, w);", ins.Oparg)
		l.Ctx.InsertLine("Py_DECREF(w);")
		l.emitBuildErrorCheckReplaceTop(ins, ins.Oparg)

	case BUILD_SLICE:
		if ins.Oparg == 3 {
			l.Ctx.InsertLine("v = POP(); w = POP(); x = POP();")
			l.Ctx.InsertLine("u = PySlice_New(x, w, v);")
			l.Ctx.InsertLine("Py_DECREF(x); Py_DECREF(w); Py_DECREF(v);")
		} else {
			l.Ctx.InsertLine("w = POP(); x = POP();")
			l.Ctx.InsertLine("u = PySlice_New(x, w, NULL);")
			l.Ctx.InsertLine("Py_DECREF(x); Py_DECREF(w);")
		}
		l.Ctx.InsertLine("if (u == NULL) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("PUSH(u);")

	case BUILD_STRING:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_build_string(&stack_pointer, %d);", ins.Oparg)
		l.emitBuildErrorCheckReplaceTop(ins, ins.Oparg)

	case BUILD_TUPLE_UNPACK, BUILD_TUPLE_UNPACK_WITH_CALL:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_build_tuple_unpack(&stack_pointer, %d);", ins.Oparg)
		l.emitBuildErrorCheckReplaceTop(ins, ins.Oparg)

	case BUILD_LIST_UNPACK:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_build_list_unpack(&stack_pointer, %d);", ins.Oparg)
		l.emitBuildErrorCheckReplaceTop(ins, ins.Oparg)

	case BUILD_MAP_UNPACK, BUILD_MAP_UNPACK_WITH_CALL:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_build_map_unpack(&stack_pointer, %d);", ins.Oparg)
		l.emitBuildErrorCheckReplaceTop(ins, ins.Oparg)

	case LIST_APPEND:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("err = PyList_Append(PEEK(%d), x);", ins.Oparg)
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (err != 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")

	case SET_ADD:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("err = PySet_Add(PEEK(%d), x);", ins.Oparg)
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (err != 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")

	case MAP_ADD:
		l.Ctx.InsertLine("w = POP(); x = POP();")
		l.Ctx.InsertLine("err = PyDict_SetItem(PEEK(%d), x, w);", ins.Oparg)
		l.Ctx.InsertLine("Py_DECREF(x); Py_DECREF(w);")
		l.Ctx.InsertLine("if (err != 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
	}
}

// emitBuildErrorCheckReplaceTop pops nothing itself (the caller's runtime
// helper already consumed its `consumed` operands via &stack_pointer); it
// checks x for NULL and pushes the built object.
func (l *Lowerer) emitBuildErrorCheckReplaceTop(ins Instruction, consumed int) {
	l.Ctx.InsertLine("if (x == NULL) {")
	l.Ctx.InsertHandleError(ins.Line, ins.Label)
	l.Ctx.InsertLine("}")
	l.Ctx.InsertLine("PUSH(x);")
}

// lowerUnpack handles UNPACK_SEQUENCE/UNPACK_EX (spec §4.4 "Unpacking"):
// delegate to a helper that writes directly into the stack pointer.
func (l *Lowerer) lowerUnpack(ins Instruction) {
	switch ins.Opcode {
	case UNPACK_SEQUENCE:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("err = __pypperoni_IMPL_unpack_sequence(x, %d, &stack_pointer);", ins.Oparg)
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (err != 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")

	case UNPACK_EX:
		before := ins.Oparg & 0xFF
		after := (ins.Oparg >> 8) & 0xFF
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("err = __pypperoni_IMPL_unpack_ex(x, %d, %d, &stack_pointer);", before, after)
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (err != 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
	}
}

// lowerFormatValue applies conversion (str/repr/ascii) and optional format
// spec (spec §4.4 "Formatted values"), bits 0-1 = conversion, bit 2 = "has
// format spec".
func (l *Lowerer) lowerFormatValue(ins Instruction) {
	hasSpec := ins.Oparg&0x04 != 0
	conversion := ins.Oparg & 0x03

	if hasSpec {
		l.Ctx.InsertLine("w = POP(); /* format spec */")
	} else {
		l.Ctx.InsertLine("w = NULL;")
	}
	l.Ctx.InsertLine("x = POP();")
	l.Ctx.InsertLine("v = __pypperoni_IMPL_format_value(x, w, %d);", conversion)
	l.Ctx.InsertLine("Py_DECREF(x); Py_XDECREF(w);")
	l.Ctx.InsertLine("if (v == NULL) {")
	l.Ctx.InsertHandleError(ins.Line, ins.Label)
	l.Ctx.InsertLine("}")
	l.Ctx.InsertLine("PUSH(v);")
}
