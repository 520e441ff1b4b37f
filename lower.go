// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import (
	"fmt"
	"strings"
)

// Lowerer drives one code object's instructions through the per-opcode
// rules into an EmissionContext (spec §4.4). One Lowerer exists per code
// object, including nested ones reached via MAKE_FUNCTION; the Orchestrator
// creates the top-level one per module and lowering recurses for nested
// code objects.
type Lowerer struct {
	Module *Module
	Code   *CodeObject
	Graph  *Graph
	Ctx    *EmissionContext // the chunk currently being lowered

	// SplitInterval overrides the Chunker's threshold (Options.SplitInterval,
	// spec §6); zero means DefaultSplitInterval.
	SplitInterval int

	// PoolPath is the enclosing module's top-level symbol path. Every code
	// object reached while lowering one module — the top-level body and
	// every MAKE_FUNCTION-nested function, however deep — shares ONE
	// constant pool flushed once per module (ground:
	// original_source/module.py's __gen_code: a nested function's recursive
	// __gen_code call is passed `context._consts` itself, not a fresh list,
	// and only the outermost `generate_c_code` call passes `flushconsts=True`).
	PoolPath string

	pool *constPool

	// Contexts collects every chunk's EmissionContext (one, unless the
	// Chunker split the code object) plus the trampoline's, in emission
	// order, for the caller to pull C text/consts out of afterward.
	Contexts []*EmissionContext

	instrs []Instruction
	byLbl  map[int]int // label -> index into instrs

	// nested collects code objects reached via MAKE_FUNCTION, lowered after
	// the enclosing body (spec §4.4 "recursively lowered under a
	// deterministic symbol name").
	nested []*Lowerer

	// pendingCode is the compile-time stash LOAD_CONST pushes a nested code
	// object onto instead of emitting any runtime code for it; MAKE_FUNCTION
	// pops it LIFO to wire the generated C function as the entry point
	// (spec §4.4).
	pendingCode []*CodeObject
}

// NewLowerer prepares a Lowerer for one code object. path is the dotted
// C-symbol path assigned by the caller (module name for a top-level module,
// "<parent>_<label>" for nested code objects per spec §4.4).
func NewLowerer(mod *Module, co *CodeObject, graph *Graph, path string) *Lowerer {
	return newLowerer(mod, co, graph, path, path, newConstPool())
}

// newNestedLowerer prepares a Lowerer for a MAKE_FUNCTION-nested code
// object, sharing the enclosing module's constant pool (poolPath/pool)
// instead of starting a fresh one.
func newNestedLowerer(mod *Module, co *CodeObject, graph *Graph, path, poolPath string, pool *constPool) *Lowerer {
	return newLowerer(mod, co, graph, path, poolPath, pool)
}

func newLowerer(mod *Module, co *CodeObject, graph *Graph, path, poolPath string, pool *constPool) *Lowerer {
	co.Path = path
	instrs := DecodeInstructions(co)
	byLbl := make(map[int]int, len(instrs))
	for i, ins := range instrs {
		byLbl[ins.Label] = i
	}
	return &Lowerer{
		Module:   mod,
		Code:     co,
		Graph:    graph,
		PoolPath: poolPath,
		pool:     pool,
		instrs:   instrs,
		byLbl:    byLbl,
	}
}

// Lower runs every instruction through its opcode rule and appends the
// standard Finish tail, splitting into multiple C functions plus a
// trampoline when the Chunker decides the body is too large (spec §4.5). It
// returns the list of nested Lowerers created along the way (for
// MAKE_FUNCTION's recursively-lowered code objects), which the caller
// (Orchestrator) lowers in turn into the same File Sink.
func (l *Lowerer) Lower() ([]*Lowerer, error) {
	isGen := l.Code.Flags.Has(CoGenerator) || l.Code.Flags.Has(CoCoroutine) || l.Code.Flags.Has(CoAsyncGenerator)

	chunks := SplitInstructions(l.instrs, isGen, l.SplitInterval)

	for _, chunk := range chunks {
		path := l.Code.Path
		if len(chunks) > 1 {
			path = fmt.Sprintf("%s_%d", l.Code.Path, chunk.Index)
		}
		l.Ctx = NewChunkContext(path, l.PoolPath, l.pool, nil)
		l.Contexts = append(l.Contexts, l.Ctx)

		l.declScratch()
		if isGen {
			l.emitGeneratorPrologue()
		}

		if err := l.lowerChunk(chunk.Instrs); err != nil {
			return nil, err
		}

		l.Ctx.Finish(isGen)
	}

	if len(chunks) > 1 {
		l.emitTrampoline(chunks)
	}

	return l.nested, nil
}

// lowerChunk runs every instruction of one chunk through its opcode rule
// against the currently-active l.Ctx.
func (l *Lowerer) lowerChunk(instrs []Instruction) error {
	for i := 0; i < len(instrs); i++ {
		ins := instrs[i]
		l.Ctx.InsertLabel(ins.Label)

		if ins.Opcode == NOP {
			continue
		}

		// The import idiom starts two instructions ahead of IMPORT_NAME
		// itself (spec §4.6: "LOAD_CONST <level>; LOAD_CONST <fromlist>;
		// IMPORT_NAME"), so it has to be recognized before the generic
		// LOAD_CONST dispatch below would otherwise emit the level/fromlist
		// pushes as ordinary constants.
		if l.isImportIdiomStartIn(instrs, i) {
			consumed, err := l.lowerImportNameIn(instrs, i, ins)
			if err != nil {
				return err
			}
			i += consumed
			continue
		}

		consumed, err := l.lowerOne(i, ins)
		if err != nil {
			return err
		}
		if consumed > 0 {
			i += consumed
		}
	}
	return nil
}

// emitTrampoline writes the dispatcher function that calls each chunk in
// turn (ground: original_source/module.py's __gen_code trampoline: a loop of
// "call chunk_i; propagate return/error/clear_stack" C fragments).
func (l *Lowerer) emitTrampoline(chunks []Chunk) {
	tc := NewChunkContext(l.Code.Path, l.PoolPath, l.pool, nil)
	l.Contexts = append(l.Contexts, tc)

	tc.InsertLine("if (f->f_lasti == -2) goto clear_stack;")
	for _, chunk := range chunks {
		chunkPath := fmt.Sprintf("%s_%d", l.Code.Path, chunk.Index)
		tc.BeginBlock()
		tc.InsertLine("PyObject* ret = %s(f);", chunkPath)
		tc.InsertLine("if (ret != NULL) {")
		tc.indent++
		tc.InsertLine("retval = ret;")
		tc.InsertLine("if (f->f_lasti == -2) goto clear_stack;")
		tc.InsertLine("else goto end;")
		tc.indent--
		tc.InsertLine("} else if (f->f_exci != -1) { goto error; }")
		tc.EndBlock()
	}
	tc.InsertLine("goto clear_stack;")
	tc.InsertLine("")
	tc.InsertLine("error:")
	tc.indent++
	tc.InsertLine("__pypperoni_IMPL_traceback_add_frame(%s, f);", tc.RegisterLiteral(l.Code.QualName))
	tc.indent--
	tc.InsertLine("")
	tc.InsertLine("clear_stack:")
	tc.BeginBlock()
	tc.InsertLine("PyObject** stack_pointer = f->f_stacktop;")
	tc.InsertLine("while (STACK_LEVEL() > 0) {")
	tc.indent++
	tc.InsertLine("Py_DECREF(TOP());")
	tc.InsertLine("STACKADJ(-1);")
	tc.indent--
	tc.InsertLine("}")
	tc.EndBlock()
	tc.InsertLine("")
	tc.InsertLine("end:")
	tc.indent++
	tc.InsertLine("return retval;")
	tc.indent--
}

// lowerOne dispatches a single instruction to its family handler. It returns
// the number of *additional* instructions consumed (for multi-instruction
// idioms like IMPORT_NAME sequences or "from x import a,b,c"), so the main
// loop can skip them.
func (l *Lowerer) lowerOne(i int, ins Instruction) (int, error) {
	switch {
	case ins.Opcode == NOP, ins.Opcode == POP_TOP, ins.Opcode == DUP_TOP,
		ins.Opcode == DUP_TOP_TWO, ins.Opcode == ROT_TWO, ins.Opcode == ROT_THREE:
		l.lowerStackShuffle(ins)
		return 0, nil

	case isLoadOpcode(ins.Opcode):
		l.lowerLoad(ins)
		return 0, nil

	case isStoreOpcode(ins.Opcode), isDeleteOpcode(ins.Opcode):
		l.lowerStoreOrDelete(ins)
		return 0, nil

	case isBuilderOpcode(ins.Opcode):
		l.lowerBuilder(ins)
		return 0, nil

	case ins.Opcode.IsUnary(), ins.Opcode.IsBinary(), ins.Opcode.IsInplace():
		l.lowerArith(ins)
		return 0, nil

	case ins.Opcode == COMPARE_OP:
		l.lowerCompare(ins)
		return 0, nil

	case isBranchOpcode(ins.Opcode):
		l.lowerBranch(ins)
		return 0, nil

	case ins.Opcode == GET_ITER, ins.Opcode == FOR_ITER,
		ins.Opcode == GET_YIELD_FROM_ITER, ins.Opcode == GET_AWAITABLE,
		ins.Opcode == GET_AITER, ins.Opcode == GET_ANEXT:
		l.lowerIteration(ins)
		return 0, nil

	case ins.Opcode == CALL_FUNCTION, ins.Opcode == CALL_FUNCTION_KW, ins.Opcode == CALL_FUNCTION_EX:
		l.lowerCall(ins)
		return 0, nil

	case ins.Opcode == MAKE_FUNCTION:
		l.lowerMakeFunction(ins)
		return 0, nil

	case ins.Opcode == LOAD_BUILD_CLASS:
		l.lowerLoad(ins) // LOAD_BUILD_CLASS is handled uniformly with loads
		return 0, nil

	case ins.Opcode == SETUP_LOOP, ins.Opcode == SETUP_EXCEPT, ins.Opcode == SETUP_FINALLY,
		ins.Opcode == POP_BLOCK, ins.Opcode == POP_EXCEPT, ins.Opcode == END_FINALLY,
		ins.Opcode == RAISE_VARARGS, ins.Opcode == BREAK_LOOP, ins.Opcode == CONTINUE_LOOP:
		l.lowerExceptionMachinery(ins)
		return 0, nil

	case ins.Opcode == YIELD_VALUE, ins.Opcode == YIELD_FROM:
		l.lowerYield(ins)
		return 0, nil

	case ins.Opcode == SETUP_WITH, ins.Opcode == SETUP_ASYNC_WITH, ins.Opcode == WITH_CLEANUP_START,
		ins.Opcode == WITH_CLEANUP_FINISH, ins.Opcode == BEFORE_ASYNC_WITH:
		l.lowerWith(ins)
		return 0, nil

	case ins.Opcode == UNPACK_SEQUENCE, ins.Opcode == UNPACK_EX:
		l.lowerUnpack(ins)
		return 0, nil

	case ins.Opcode == FORMAT_VALUE:
		l.lowerFormatValue(ins)
		return 0, nil

	case ins.Opcode == IMPORT_STAR:
		l.lowerImportStar(ins)
		return 0, nil

	case ins.Opcode == RETURN_VALUE:
		l.lowerReturn(ins)
		return 0, nil

	case ins.Opcode == PRINT_EXPR:
		l.Ctx.InsertLine("x = POP();")
		l.Ctx.InsertLine("err = __pypperoni_IMPL_print_expr(x);")
		l.Ctx.InsertLine("Py_DECREF(x);")
		l.Ctx.InsertLine("if (err != 0) {")
		l.Ctx.InsertHandleError(ins.Line, ins.Label)
		l.Ctx.InsertLine("}")
		return 0, nil

	default:
		return 0, &UnknownOpcodeError{Module: l.Module.Name, Path: l.Code.Path, Label: ins.Label, Opcode: ins.Opcode}
	}
}

func (l *Lowerer) lowerStackShuffle(ins Instruction) {
	switch ins.Opcode {
	case NOP:
	case POP_TOP:
		l.Ctx.InsertLine("x = POP(); Py_DECREF(x);")
	case DUP_TOP:
		l.Ctx.InsertLine("x = TOP(); Py_INCREF(x); PUSH(x);")
	case DUP_TOP_TWO:
		l.Ctx.InsertLine("x = TOP(); w = SECOND(); Py_INCREF(x); Py_INCREF(w); STACKADJ(2); SET_TOP(x); SECOND() = w;")
	case ROT_TWO:
		l.Ctx.InsertLine("x = TOP(); SET_TOP(SECOND()); SECOND() = x;")
	case ROT_THREE:
		l.Ctx.InsertLine("x = TOP(); w = SECOND(); v = THIRD(); SET_TOP(w); SECOND() = v; THIRD() = x;")
	}
}

// AddDecl shortcuts used by most lowering rules; declared once per context.
func (l *Lowerer) declScratch() {
	l.Ctx.AddDeclOnce("x", "PyObject*", "NULL", false)
	l.Ctx.AddDeclOnce("w", "PyObject*", "NULL", false)
	l.Ctx.AddDeclOnce("v", "PyObject*", "NULL", false)
	l.Ctx.AddDeclOnce("u", "PyObject*", "NULL", false)
	l.Ctx.AddDeclOnce("err", "int", "0", false)
}

// symbolSafe strips characters that can't appear in a C identifier, used to
// derive nested code objects' symbol names (spec §4.4: "dots, `<`, `>`
// stripped").
func symbolSafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func nestedPath(parent string, label int) string {
	return fmt.Sprintf("%s_%d", symbolSafe(parent), label)
}
