// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import "fmt"

// lowerExceptionMachinery handles SETUP_LOOP/EXCEPT/FINALLY, POP_BLOCK,
// POP_EXCEPT, END_FINALLY, RAISE_VARARGS, BREAK_LOOP, CONTINUE_LOOP (spec
// §4.4 "Exception machinery", §4.3 "Finish protocol"). Each SETUP_* installs
// a block-stack entry; the label captured as its handler address is resolved
// at the shared fast_block_end loop emitted by EmissionContext.Finish.
func (l *Lowerer) lowerExceptionMachinery(ins Instruction) {
	switch ins.Opcode {
	case SETUP_LOOP, SETUP_EXCEPT, SETUP_FINALLY:
		handler := ins.Label + ins.Oparg + 2
		l.Ctx.InsertLine("__pypperoni_IMPL_push_block(f, %s, label_%d, STACK_LEVEL());", blockKindMacro(ins.Opcode), handler)

	case POP_BLOCK:
		l.Ctx.InsertLine("__pypperoni_IMPL_pop_block(f);")

	case POP_EXCEPT:
		l.Ctx.InsertLine("__pypperoni_IMPL_pop_except(f);")

	case END_FINALLY:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("why = __pypperoni_IMPL_end_finally(f, x, &retval);")
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (why != WHY_NOT) { goto fast_block_end; }")

	case RAISE_VARARGS:
		switch ins.Oparg {
		case 0:
			l.Ctx.InsertLine("err = __pypperoni_IMPL_do_raise(NULL, NULL);")
		case 1:
			l.Ctx.InsertLine("x = POP();")
			l.Ctx.InsertLine("err = __pypperoni_IMPL_do_raise(x, NULL);")
			l.Ctx.InsertLine("Py_DECREF(x);")
		case 2:
			l.Ctx.InsertLine("w = POP(); x = POP();")
			l.Ctx.InsertLine("err = __pypperoni_IMPL_do_raise(x, w);")
			l.Ctx.InsertLine("Py_DECREF(x); Py_DECREF(w);")
		}
		l.Ctx.InsertLine("why = WHY_EXCEPTION;")
		l.Ctx.InsertLine("goto fast_block_end;")

	case BREAK_LOOP:
		l.Ctx.InsertLine("why = WHY_BREAK;")
		l.Ctx.InsertLine("goto fast_block_end;")

	case CONTINUE_LOOP:
		l.Ctx.InsertLine("retval = __pypperoni_IMPL_make_long(%d);", ins.Oparg)
		l.Ctx.InsertLine("why = WHY_CONTINUE;")
		l.Ctx.InsertLine("goto fast_block_end;")
	}
}

func blockKindMacro(op Opcode) string {
	switch op {
	case SETUP_LOOP:
		return "__PYPPERONI_BLOCK_LOOP"
	case SETUP_EXCEPT:
		return "__PYPPERONI_BLOCK_EXCEPT"
	case SETUP_FINALLY:
		return "__PYPPERONI_BLOCK_FINALLY"
	case SETUP_WITH:
		return "__PYPPERONI_BLOCK_FINALLY"
	default:
		return "__PYPPERONI_BLOCK_LOOP"
	}
}

// lowerYield handles YIELD_VALUE/YIELD_FROM (spec §4.4 "Generators &
// coroutines").
func (l *Lowerer) lowerYield(ins Instruction) {
	switch ins.Opcode {
	case YIELD_VALUE:
		l.Ctx.InsertLine("retval = POP();")
		if l.Code.Flags.Has(CoAsyncGenerator) {
			l.Ctx.InsertLine("retval = _PyAsyncGenValueWrapperNew(retval);")
		}
		l.Ctx.InsertYield(ins.Line, ins.Label)
		l.Ctx.InsertLabel(ins.Label + 2) // resumption re-enters right after the yield

	case YIELD_FROM:
		l.Ctx.InsertLine("w = POP(); x = TOP();")
		l.Ctx.InsertLine("v = __pypperoni_IMPL_yield_from_send(x, w);")
		l.Ctx.InsertLine("Py_DECREF(w);")
		l.Ctx.InsertLine("if (v == __PYPPERONI_YIELD_FROM_DONE) {")
		l.Ctx.InsertLine("  STACKADJ(-1); Py_DECREF(x);")
		l.Ctx.InsertLine("  PUSH(__pypperoni_IMPL_yield_from_result());")
		l.Ctx.InsertLine("} else if (v == NULL) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("} else {")
		l.Ctx.InsertLine("  retval = v;")
		l.Ctx.InsertYield(ins.Line, ins.Label)
		l.Ctx.InsertLabel(ins.Label + 2)
		l.Ctx.InsertLine("}")
	}
}

// emitGeneratorPrologue emits the switch(f->f_lasti) resumption dispatch
// (spec §4.4): must run before the first instruction is lowered, but the
// yield labels it switches on aren't known until lowering finishes, so this
// two-pass shape pre-scans the instruction stream for YIELD_VALUE/YIELD_FROM
// labels rather than depending on Ctx.YieldLabels() (which is only
// populated after lowering runs).
func (l *Lowerer) emitGeneratorPrologue() {
	var labels []int
	for _, ins := range l.instrs {
		if ins.Opcode == YIELD_VALUE || ins.Opcode == YIELD_FROM {
			labels = append(labels, ins.Label+2)
		}
	}

	l.Ctx.InsertLine("switch (f->f_lasti) {")
	l.Ctx.InsertLine("  case -1: break;")
	for _, label := range labels {
		l.Ctx.InsertLine("  case %d: goto label_%d;", label, label)
	}
	l.Ctx.InsertLine("  default: __pypperoni_IMPL_fatal_bad_resume(f); break;")
	l.Ctx.InsertLine("}")
}

// lowerWith handles SETUP_WITH/WITH_CLEANUP_START/WITH_CLEANUP_FINISH/
// BEFORE_ASYNC_WITH (spec §4.4 "With blocks").
func (l *Lowerer) lowerWith(ins Instruction) {
	switch ins.Opcode {
	case SETUP_WITH:
		handler := ins.Label + ins.Oparg + 2
		l.Ctx.InsertLine("x = TOP();")
		l.Ctx.InsertLine("w = __pypperoni_IMPL_setup_with(x, &v);")
		l.Ctx.InsertLine("if (w == NULL) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("SET_TOP(v); PUSH(w);")
		l.Ctx.InsertLine("__pypperoni_IMPL_push_block(f, __PYPPERONI_BLOCK_FINALLY, label_%d, STACK_LEVEL());", handler)

	case SETUP_ASYNC_WITH:
		// The awaited __aenter__ result is already on TOP (GET_AWAITABLE +
		// YIELD_FROM ran first); this only installs the finally block.
		handler := ins.Label + ins.Oparg + 2
		l.Ctx.InsertLine("__pypperoni_IMPL_push_block(f, __PYPPERONI_BLOCK_FINALLY, label_%d, STACK_LEVEL());", handler)

	case BEFORE_ASYNC_WITH:
		l.Ctx.InsertLine("x = TOP();")
		l.Ctx.InsertLine("w = __pypperoni_IMPL_before_async_with(x, &v);")
		l.Ctx.InsertLine("if (w == NULL) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("SET_TOP(v); PUSH(w);")

	case WITH_CLEANUP_START:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_with_cleanup_start(f, &stack_pointer);")
		l.Ctx.InsertLine("PUSH(x);")

	case WITH_CLEANUP_FINISH:
		l.Ctx.InsertLine("w = POP(); x = POP();")
		l.Ctx.InsertLine("err = __pypperoni_IMPL_with_cleanup_finish(f, x, w, &why, &retval);")
		l.Ctx.InsertLine("Py_DECREF(x); Py_DECREF(w);")
		l.Ctx.InsertLine("if (err != 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("if (why != WHY_NOT) { goto fast_block_end; }")
	}
}

// lowerReturn handles RETURN_VALUE.
func (l *Lowerer) lowerReturn(ins Instruction) {
	l.Ctx.InsertLine("retval = POP();")
	l.Ctx.InsertLine("why = WHY_RETURN;")
	l.Ctx.InsertLine("goto fast_block_end;")
}

// lowerMakeFunction handles MAKE_FUNCTION (spec §4.4 "Function & class
// construction"): pops qualname off the runtime stack, pulls the nested code
// object off the compile-time pendingCode stash LOAD_CONST left for it, and
// wires the generated C function for the recursively-lowered nested object
// as the entry point, then attaches closure/annotations/kwdefaults/defaults
// per the low 4 oparg bits.
func (l *Lowerer) lowerMakeFunction(ins Instruction) {
	l.Ctx.InsertLine("x = POP(); /* qualname */")

	if ins.Oparg&0x08 != 0 {
		l.Ctx.InsertLine("v = POP(); /* closure tuple */")
	} else {
		l.Ctx.InsertLine("v = NULL;")
	}
	if ins.Oparg&0x04 != 0 {
		l.Ctx.InsertLine("u = POP(); /* annotations dict */")
	} else {
		l.Ctx.InsertLine("u = NULL;")
	}

	l.Ctx.AddDeclOnce("kwdefaults", "PyObject*", "NULL", true)
	l.Ctx.AddDeclOnce("defaults", "PyObject*", "NULL", true)
	if ins.Oparg&0x02 != 0 {
		l.Ctx.InsertLine("kwdefaults = POP();")
	}
	if ins.Oparg&0x01 != 0 {
		l.Ctx.InsertLine("defaults = POP();")
	}

	entry := "NULL"
	if n := len(l.pendingCode); n > 0 {
		nested := l.pendingCode[n-1]
		l.pendingCode = l.pendingCode[:n-1]

		path := nestedPath(l.Code.Path, ins.Label)
		nested.Path = path
		l.nested = append(l.nested, newNestedLowerer(l.Module, nested, l.Graph, path, l.PoolPath, l.pool))
		entry = fmt.Sprintf("(void*)%s", path)
	}

	l.Ctx.InsertLine("w = __pypperoni_IMPL_make_function(%s, x, v, u, defaults, kwdefaults);", entry)
	l.Ctx.InsertLine("Py_XDECREF(v); Py_XDECREF(u); Py_XDECREF(defaults); Py_XDECREF(kwdefaults); Py_DECREF(x);")
	l.Ctx.InsertLine("defaults = NULL; kwdefaults = NULL;")
	l.Ctx.InsertLine("if (w == NULL) {")
	l.Ctx.InsertHandleError(ins.Line, ins.Label)
	l.Ctx.InsertLine("}")
	l.Ctx.InsertLine("PUSH(w);")
}

func (l *Lowerer) lowerImportStar(ins Instruction) {
	l.Ctx.InsertLine("err = __pypperoni_IMPL_import_star(f, TOP());")
	l.Ctx.InsertLine("x = POP(); Py_DECREF(x);")
	l.Ctx.InsertLine("if (err != 0) {")
	l.Ctx.InsertHandleError(ins.Line, ins.Label)
	l.Ctx.InsertLine("}")
}
