// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import "strings"

// isImportIdiomStartIn reports whether instrs[i] begins the
// `LOAD_CONST <level>; LOAD_CONST <fromlist>; IMPORT_NAME` idiom (spec
// §4.6), the only shape the Python compiler ever emits ahead of IMPORT_NAME.
// instrs is the chunk currently being lowered (the Chunker guarantees the
// whole idiom always lands in one chunk, spec §4.5).
func (l *Lowerer) isImportIdiomStartIn(instrs []Instruction, i int) bool {
	if i+2 >= len(instrs) {
		return false
	}
	return instrs[i].Opcode == LOAD_CONST &&
		instrs[i+1].Opcode == LOAD_CONST &&
		instrs[i+2].Opcode == IMPORT_NAME
}

// lowerImportNameIn rewrites the whole import idiom starting at i into direct
// runtime-import calls (spec §4.6), returning the number of *additional*
// instructions (beyond instrs[i] itself) consumed.
func (l *Lowerer) lowerImportNameIn(instrs []Instruction, i int, ins Instruction) (int, error) {
	levelConst := l.Code.Consts[instrs[i].Oparg]
	fromlistConst := l.Code.Consts[instrs[i+1].Oparg]
	nameIns := instrs[i+2]
	origName := l.Code.Names[nameIns.Oparg]

	level := 0
	if iv, ok := levelConst.(IntValue); ok {
		level = int(iv.V.Int64())
	}

	targetName, err := l.Graph.resolveImport(l.Module, origName, level)
	if err != nil {
		return 0, err
	}
	mod, _ := l.Graph.Lookup(targetName)

	l.Ctx.BeginBlock()
	defer l.Ctx.EndBlock()

	switch from := fromlistConst.(type) {
	case NoneValue:
		return l.lowerPlainImport(instrs, nameIns, origName, targetName, mod, i)

	case TupleValue:
		if len(from) == 1 {
			if s, ok := from[0].(StrValue); ok && string(s) == "*" {
				l.emitImportCall(mod, nameIns)
				l.Ctx.InsertLine("PUSH(x);")
				return 2, nil // second LOAD_CONST + IMPORT_NAME; IMPORT_STAR follows separately
			}
		}
		return l.lowerFromImportNames(instrs, nameIns, mod, from, i)

	default:
		return l.lowerPlainImport(instrs, nameIns, origName, targetName, mod, i)
	}
}

// lowerPlainImport handles "import a.b.c [as x]" (spec §4.6 case 1): ground:
// original_source/module.py's __handle_import, "Case 1: Import and store".
func (l *Lowerer) lowerPlainImport(instrs []Instruction, nameIns Instruction, origName, targetName string, mod *Module, i int) (int, error) {
	consumed := 2 // the two LOAD_CONSTs preceding IMPORT_NAME

	if targetName == origName && strings.Contains(origName, ".") {
		parts := strings.Split(origName, ".")
		root := parts[0]
		if rootMod, ok := l.Graph.Lookup(root); ok {
			// Count trailing LOAD_ATTR (the "as" form consumes the leaf).
			storeTail := false
			j := i + 3
			for j < len(instrs) && instrs[j].Opcode == LOAD_ATTR {
				storeTail = true
				j++
			}
			consumed += (j - (i + 3))

			l.Ctx.InsertLine("w = x = __pypperoni_IMPL_import((Py_ssize_t)%dU); /* %s */", rootMod.ID(), rootMod.Name)
			l.Ctx.InsertLine("Py_INCREF(x);")
			l.Ctx.InsertLine("if (x == NULL) {")
			l.Ctx.InsertHandleError(nameIns.Line, nameIns.Label)
			l.Ctx.InsertLine("}")

			modname := root
			for _, tail := range parts[1:] {
				modname += "." + tail
				child, ok := l.Graph.Lookup(modname)
				if !ok {
					continue
				}
				l.Ctx.InsertLine("u = __pypperoni_IMPL_import((Py_ssize_t)%dU); /* %s */", child.ID(), child.Name)
				l.Ctx.InsertLine("if (u == NULL) {")
				l.Ctx.InsertLine("  Py_DECREF(x); Py_DECREF(w);")
				l.Ctx.InsertHandleError(nameIns.Line, nameIns.Label)
				l.Ctx.InsertLine("}")
				l.Ctx.InsertLine("v = %s;", l.Ctx.RegisterConst(StrValue(tail)))
				l.Ctx.InsertLine("PyObject_SetAttr(x, v, u);")
				l.Ctx.InsertLine("Py_DECREF(v); Py_DECREF(x);")
				l.Ctx.InsertLine("x = u;")
			}

			if storeTail {
				l.Ctx.InsertLine("Py_DECREF(w);")
			} else {
				l.Ctx.InsertLine("Py_DECREF(x);")
				l.Ctx.InsertLine("x = w;")
			}

			l.Ctx.InsertLine("PUSH(x);")
			return consumed, nil
		}
	}

	l.emitImportCall(mod, nameIns)
	l.Ctx.InsertLine("PUSH(x);")
	return consumed, nil
}

// lowerFromImportNames handles "from x import a, b, c" (spec §4.6 case 3):
// ground: original_source/module.py's "Case 3: Importing N names".
func (l *Lowerer) lowerFromImportNames(instrs []Instruction, nameIns Instruction, mod *Module, names TupleValue, i int) (int, error) {
	l.Ctx.AddDeclOnce("mod", "PyObject*", "NULL", false)
	l.emitImportCall(mod, nameIns)
	l.Ctx.InsertLine("mod = x;")

	consumed := 2
	j := i + 3
	for range names {
		if j >= len(instrs) {
			break
		}
		importFrom := instrs[j]
		storeIns := instrs[j+1]
		name := l.Code.Names[importFrom.Oparg]

		fullname := mod.Name + "." + name
		resolved, _ := l.Graph.resolveAbsolute(fullname)
		if sub, ok := l.Graph.Lookup(resolved); ok && resolved == fullname {
			l.Ctx.InsertLine("v = __pypperoni_IMPL_import_from_or_module(mod, %s, (Py_ssize_t)%dU); /* %s */",
				l.Ctx.RegisterConst(StrValue(name)), sub.ID(), sub.Name)
		} else {
			l.Ctx.InsertLine("v = __pypperoni_IMPL_import_from(mod, %s);", l.Ctx.RegisterLiteral(name))
		}
		l.Ctx.InsertLine("if (v == NULL) {")
		l.Ctx.InsertLine("  Py_DECREF(mod);")
		l.Ctx.InsertHandleError(importFrom.Line, importFrom.Label)
		l.Ctx.InsertLine("}")
		l.Ctx.InsertLine("PUSH(v);")

		l.lowerStoreOrDelete(storeIns)

		consumed += 2
		j += 2
	}

	l.Ctx.InsertLine("Py_DECREF(mod);")
	if j < len(instrs) && instrs[j].Opcode == POP_TOP {
		consumed++ // the trailing POP_TOP that discards `mod` on the real stack
	}

	return consumed, nil
}

func (l *Lowerer) emitImportCall(mod *Module, at Instruction) {
	if mod == nil {
		l.Ctx.InsertLine("x = NULL; PyErr_SetString(PyExc_ImportError, \"unresolved module\");")
		return
	}
	l.Ctx.InsertLine("x = __pypperoni_IMPL_import((Py_ssize_t)%dU); /* %s */", mod.ID(), mod.Name)
	l.Ctx.InsertLine("if (x == NULL) {")
	l.Ctx.InsertHandleError(at.Line, at.Label)
	l.Ctx.InsertLine("}")
}
