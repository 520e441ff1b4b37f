// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

// lowerLoad handles every LOAD_* opcode plus LOAD_BUILD_CLASS (spec §4.4
// "Loads"): each delegates to a runtime helper returning NULL on error,
// requiring the caller to INCREF on success, then PUSHes.
func (l *Lowerer) lowerLoad(ins Instruction) {
	switch ins.Opcode {
	case LOAD_CONST:
		c := l.Code.Consts[ins.Oparg]
		if cv, ok := c.(CodeValue); ok {
			// Code-object constants never reach the runtime stack or the
			// marshal const pool: MAKE_FUNCTION consumes this compile-time
			// stash directly to wire its generated C function as the entry
			// point (spec §4.4).
			l.pendingCode = append(l.pendingCode, cv.Code)
			return
		}
		l.Ctx.InsertLine("x = %s;", l.Ctx.RegisterConst(c))
		if _, ok := c.(NoneValue); ok {
			l.Ctx.InsertLine("Py_INCREF(x);")
		}
		l.Ctx.InsertLine("PUSH(x);")

	case LOAD_NAME:
		name := l.Code.Names[ins.Oparg]
		l.Ctx.InsertLine("x = __pypperoni_IMPL_load_name(f, %s);", l.Ctx.RegisterLiteral(name))
		l.emitLoadErrorCheckAndPush(ins)

	case LOAD_GLOBAL:
		name := l.Code.Names[ins.Oparg]
		l.Ctx.InsertLine("x = __pypperoni_IMPL_load_global(f, %s);", l.Ctx.RegisterLiteral(name))
		l.emitLoadErrorCheckAndPush(ins)

	case LOAD_FAST:
		name := l.Code.VarNames[ins.Oparg]
		l.Ctx.InsertLine("x = GETLOCAL(%d); /* %s */", ins.Oparg, name)
		l.Ctx.InsertLine("if (x == NULL) {")
		l.Ctx.InsertLine("  __pypperoni_IMPL_raise_unbound_local(%s);", l.Ctx.RegisterLiteral(name))
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("Py_INCREF(x);")
		l.Ctx.InsertLine("PUSH(x);")

	case LOAD_DEREF:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_load_deref(f, %d);", ins.Oparg)
		l.emitLoadErrorCheckAndPush(ins)

	case LOAD_CLOSURE:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_load_closure(f, %d);", ins.Oparg)
		l.Ctx.InsertLine("Py_INCREF(x);")
		l.Ctx.InsertLine("PUSH(x);")

	case LOAD_BUILD_CLASS:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_load_build_class(f);")
		l.emitLoadErrorCheckAndPush(ins)

	case LOAD_CLASSDEREF:
		l.Ctx.InsertLine("x = __pypperoni_IMPL_load_classderef(f, %d);", ins.Oparg)
		l.emitLoadErrorCheckAndPush(ins)

	case LOAD_ATTR:
		name := l.Code.Names[ins.Oparg]
		l.Ctx.InsertLine("w = POP();")
		l.Ctx.InsertLine("u = %s;", l.Ctx.RegisterConst(StrValue(name)))
		l.Ctx.InsertLine("x = PyObject_GetAttr(w, u);")
		l.Ctx.InsertLine("Py_DECREF(u); Py_DECREF(w);")
		l.Ctx.InsertLine("if (x == NULL) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("PUSH(x);")
	}
}

func (l *Lowerer) emitLoadErrorCheckAndPush(ins Instruction) {
	l.Ctx.InsertLine("if (x == NULL) {")
	l.Ctx.InsertHandleError(ins.Line, ins.Label)
	l.Ctx.InsertLine("}")
	l.Ctx.InsertLine("Py_INCREF(x);")
	l.Ctx.InsertLine("PUSH(x);")
}

// lowerStoreOrDelete handles STORE_*/DELETE_* (spec §4.4 "Stores & deletes").
func (l *Lowerer) lowerStoreOrDelete(ins Instruction) {
	switch ins.Opcode {
	case STORE_NAME:
		name := l.Code.Names[ins.Oparg]
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("err = __pypperoni_IMPL_store_name(f, %s, x);", l.Ctx.RegisterLiteral(name))
		l.emitStoreErrorCheck(ins)

	case STORE_GLOBAL:
		name := l.Code.Names[ins.Oparg]
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("err = __pypperoni_IMPL_store_global(f, %s, x);", l.Ctx.RegisterLiteral(name))
		l.emitStoreErrorCheck(ins)

	case STORE_FAST:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("w = GETLOCAL(%d);", ins.Oparg)
		l.Ctx.InsertLine("SETLOCAL(%d, x);", ins.Oparg)
		l.Ctx.InsertLine("Py_XDECREF(w);")

	case STORE_ATTR:
		name := l.Code.Names[ins.Oparg]
		l.Ctx.InsertLine("w = POP(); x = POP();")
		l.Ctx.InsertLine("u = %s;", l.Ctx.RegisterConst(StrValue(name)))
		l.Ctx.InsertLine("err = PyObject_SetAttr(w, u, x);")
		l.Ctx.InsertLine("Py_DECREF(u); Py_DECREF(w); Py_DECREF(x);")
		l.emitStoreErrorCheck(ins)

	case STORE_SUBSCR:
		l.Ctx.InsertLine("w = POP(); v = POP(); x = POP();")
		l.Ctx.InsertLine("err = PyObject_SetItem(v, w, x);")
		l.Ctx.InsertLine("Py_DECREF(w); Py_DECREF(v); Py_DECREF(x);")
		l.emitStoreErrorCheck(ins)

	case STORE_DEREF:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("__pypperoni_IMPL_store_deref(f, %d, x);", ins.Oparg)

	case DELETE_NAME:
		name := l.Code.Names[ins.Oparg]
		l.Ctx.InsertLine("err = __pypperoni_IMPL_delete_name(f, %s);", l.Ctx.RegisterLiteral(name))
		l.emitStoreErrorCheck(ins)

	case DELETE_GLOBAL:
		name := l.Code.Names[ins.Oparg]
		l.Ctx.InsertLine("err = __pypperoni_IMPL_delete_global(f, %s);", l.Ctx.RegisterLiteral(name))
		l.emitStoreErrorCheck(ins)

	case DELETE_FAST:
		name := l.Code.VarNames[ins.Oparg]
		l.Ctx.InsertLine("x = GETLOCAL(%d);", ins.Oparg)
		l.Ctx.InsertLine("if (x == NULL) {")
		l.Ctx.InsertLine("  __pypperoni_IMPL_raise_unbound_local(%s);", l.Ctx.RegisterLiteral(name))
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("SETLOCAL(%d, NULL);", ins.Oparg)
		l.Ctx.InsertLine("Py_DECREF(x);")

	case DELETE_ATTR:
		name := l.Code.Names[ins.Oparg]
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("u = %s;", l.Ctx.RegisterConst(StrValue(name)))
		l.Ctx.InsertLine("err = PyObject_SetAttr(x, u, NULL);")
		l.Ctx.InsertLine("Py_DECREF(u); Py_DECREF(x);")
		l.emitStoreErrorCheck(ins)

	case DELETE_SUBSCR:
		l.Ctx.InsertLine("w = POP(); x = POP();")
		l.Ctx.InsertLine("err = PyObject_DelItem(x, w);")
		l.Ctx.InsertLine("Py_DECREF(w); Py_DECREF(x);")
		l.emitStoreErrorCheck(ins)

	case DELETE_DEREF:
		l.Ctx.InsertLine("__pypperoni_IMPL_delete_deref(f, %d);", ins.Oparg)
	}
}

func (l *Lowerer) emitStoreErrorCheck(ins Instruction) {
	l.Ctx.InsertLine("if (err != 0) {")
	l.Ctx.InsertHandleError(ins.Line, ins.Label)
	l.Ctx.InsertLine("}")
}
