// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import "strings"

// Opcode is one Python 3.6 bytecode instruction (spec §9: exactly one
// bytecode version is targeted). Numbering is internally consistent but is
// NOT wire-compatible with CPython's own opcode.py — see DESIGN.md. The
// external PyCompiler boundary is responsible for translating whatever the
// host interpreter emits into this table (marshal.DecodeCode does the
// translation by opcode name, not by raw byte value).
type Opcode byte

func (o Opcode) String() string {
	if int(o) < len(OpcodeNames) && OpcodeNames[o] != "" {
		return OpcodeNames[o]
	}
	return "UNKNOWN"
}

// List of opcodes. Grouped the way spec §4.4 groups lowering families;
// ground: gad-lang-gad/opcodes.go's iota block shape, generalized to the
// Python 3.6 opcode surface named throughout spec §4.4.
const (
	NOP Opcode = iota
	POP_TOP
	ROT_TWO
	ROT_THREE
	DUP_TOP
	DUP_TOP_TWO

	// Loads
	LOAD_CONST
	LOAD_NAME
	LOAD_GLOBAL
	LOAD_FAST
	LOAD_DEREF
	LOAD_CLOSURE
	LOAD_BUILD_CLASS
	LOAD_CLASSDEREF
	LOAD_ATTR

	// Stores & deletes
	STORE_NAME
	STORE_GLOBAL
	STORE_FAST
	STORE_ATTR
	STORE_SUBSCR
	STORE_DEREF
	DELETE_NAME
	DELETE_GLOBAL
	DELETE_FAST
	DELETE_ATTR
	DELETE_SUBSCR
	DELETE_DEREF

	// Builders
	BUILD_TUPLE
	BUILD_LIST
	BUILD_SET
	BUILD_MAP
	BUILD_CONST_KEY_MAP
	BUILD_SLICE
	BUILD_STRING
	BUILD_TUPLE_UNPACK
	BUILD_TUPLE_UNPACK_WITH_CALL
	BUILD_LIST_UNPACK
	BUILD_MAP_UNPACK
	BUILD_MAP_UNPACK_WITH_CALL
	LIST_APPEND
	SET_ADD
	MAP_ADD

	// Unary
	UNARY_POSITIVE
	UNARY_NEGATIVE
	UNARY_NOT
	UNARY_INVERT

	// Binary
	BINARY_POWER
	BINARY_MULTIPLY
	BINARY_MATRIX_MULTIPLY
	BINARY_FLOOR_DIVIDE
	BINARY_TRUE_DIVIDE
	BINARY_MODULO
	BINARY_ADD
	BINARY_SUBTRACT
	BINARY_SUBSCR
	BINARY_LSHIFT
	BINARY_RSHIFT
	BINARY_AND
	BINARY_XOR
	BINARY_OR

	// Inplace
	INPLACE_POWER
	INPLACE_MULTIPLY
	INPLACE_MATRIX_MULTIPLY
	INPLACE_FLOOR_DIVIDE
	INPLACE_TRUE_DIVIDE
	INPLACE_MODULO
	INPLACE_ADD
	INPLACE_SUBTRACT
	INPLACE_LSHIFT
	INPLACE_RSHIFT
	INPLACE_AND
	INPLACE_XOR
	INPLACE_OR

	COMPARE_OP

	// Branches
	JUMP_FORWARD
	JUMP_ABSOLUTE
	POP_JUMP_IF_TRUE
	POP_JUMP_IF_FALSE
	JUMP_IF_TRUE_OR_POP
	JUMP_IF_FALSE_OR_POP

	// Iteration
	GET_ITER
	FOR_ITER
	GET_YIELD_FROM_ITER
	GET_AWAITABLE
	GET_AITER
	GET_ANEXT
	BEFORE_ASYNC_WITH

	// Calls
	CALL_FUNCTION
	CALL_FUNCTION_KW
	CALL_FUNCTION_EX
	MAKE_FUNCTION

	// Exceptions
	SETUP_LOOP
	SETUP_EXCEPT
	SETUP_FINALLY
	POP_BLOCK
	POP_EXCEPT
	END_FINALLY
	RAISE_VARARGS
	BREAK_LOOP
	CONTINUE_LOOP

	// Generators / coroutines
	YIELD_VALUE
	YIELD_FROM

	// With-blocks
	SETUP_WITH
	SETUP_ASYNC_WITH
	WITH_CLEANUP_START
	WITH_CLEANUP_FINISH

	// Unpacking
	UNPACK_SEQUENCE
	UNPACK_EX

	// Formatted values
	FORMAT_VALUE

	// Imports
	IMPORT_NAME
	IMPORT_FROM
	IMPORT_STAR

	// Misc
	RETURN_VALUE
	PRINT_EXPR
	EXTENDED_ARG

	numOpcodes
)

// OpcodeNames are string representations, ground: gad-lang-gad/opcodes.go's
// OpcodeNames array (same shape: a byte-indexed array literal).
var OpcodeNames = [numOpcodes]string{
	NOP:                          "NOP",
	POP_TOP:                      "POP_TOP",
	ROT_TWO:                      "ROT_TWO",
	ROT_THREE:                    "ROT_THREE",
	DUP_TOP:                      "DUP_TOP",
	DUP_TOP_TWO:                  "DUP_TOP_TWO",
	LOAD_CONST:                   "LOAD_CONST",
	LOAD_NAME:                    "LOAD_NAME",
	LOAD_GLOBAL:                  "LOAD_GLOBAL",
	LOAD_FAST:                    "LOAD_FAST",
	LOAD_DEREF:                   "LOAD_DEREF",
	LOAD_CLOSURE:                 "LOAD_CLOSURE",
	LOAD_BUILD_CLASS:             "LOAD_BUILD_CLASS",
	LOAD_CLASSDEREF:              "LOAD_CLASSDEREF",
	LOAD_ATTR:                    "LOAD_ATTR",
	STORE_NAME:                   "STORE_NAME",
	STORE_GLOBAL:                 "STORE_GLOBAL",
	STORE_FAST:                   "STORE_FAST",
	STORE_ATTR:                   "STORE_ATTR",
	STORE_SUBSCR:                 "STORE_SUBSCR",
	STORE_DEREF:                  "STORE_DEREF",
	DELETE_NAME:                  "DELETE_NAME",
	DELETE_GLOBAL:                "DELETE_GLOBAL",
	DELETE_FAST:                  "DELETE_FAST",
	DELETE_ATTR:                  "DELETE_ATTR",
	DELETE_SUBSCR:                "DELETE_SUBSCR",
	DELETE_DEREF:                 "DELETE_DEREF",
	BUILD_TUPLE:                  "BUILD_TUPLE",
	BUILD_LIST:                   "BUILD_LIST",
	BUILD_SET:                    "BUILD_SET",
	BUILD_MAP:                    "BUILD_MAP",
	BUILD_CONST_KEY_MAP:          "BUILD_CONST_KEY_MAP",
	BUILD_SLICE:                  "BUILD_SLICE",
	BUILD_STRING:                 "BUILD_STRING",
	BUILD_TUPLE_UNPACK:           "BUILD_TUPLE_UNPACK",
	BUILD_TUPLE_UNPACK_WITH_CALL: "BUILD_TUPLE_UNPACK_WITH_CALL",
	BUILD_LIST_UNPACK:            "BUILD_LIST_UNPACK",
	BUILD_MAP_UNPACK:             "BUILD_MAP_UNPACK",
	BUILD_MAP_UNPACK_WITH_CALL:   "BUILD_MAP_UNPACK_WITH_CALL",
	LIST_APPEND:                  "LIST_APPEND",
	SET_ADD:                      "SET_ADD",
	MAP_ADD:                      "MAP_ADD",
	UNARY_POSITIVE:               "UNARY_POSITIVE",
	UNARY_NEGATIVE:               "UNARY_NEGATIVE",
	UNARY_NOT:                    "UNARY_NOT",
	UNARY_INVERT:                 "UNARY_INVERT",
	BINARY_POWER:                 "BINARY_POWER",
	BINARY_MULTIPLY:              "BINARY_MULTIPLY",
	BINARY_MATRIX_MULTIPLY:       "BINARY_MATRIX_MULTIPLY",
	BINARY_FLOOR_DIVIDE:          "BINARY_FLOOR_DIVIDE",
	BINARY_TRUE_DIVIDE:           "BINARY_TRUE_DIVIDE",
	BINARY_MODULO:                "BINARY_MODULO",
	BINARY_ADD:                   "BINARY_ADD",
	BINARY_SUBTRACT:              "BINARY_SUBTRACT",
	BINARY_SUBSCR:                "BINARY_SUBSCR",
	BINARY_LSHIFT:                "BINARY_LSHIFT",
	BINARY_RSHIFT:                "BINARY_RSHIFT",
	BINARY_AND:                   "BINARY_AND",
	BINARY_XOR:                   "BINARY_XOR",
	BINARY_OR:                    "BINARY_OR",
	INPLACE_POWER:                "INPLACE_POWER",
	INPLACE_MULTIPLY:             "INPLACE_MULTIPLY",
	INPLACE_MATRIX_MULTIPLY:      "INPLACE_MATRIX_MULTIPLY",
	INPLACE_FLOOR_DIVIDE:         "INPLACE_FLOOR_DIVIDE",
	INPLACE_TRUE_DIVIDE:          "INPLACE_TRUE_DIVIDE",
	INPLACE_MODULO:               "INPLACE_MODULO",
	INPLACE_ADD:                  "INPLACE_ADD",
	INPLACE_SUBTRACT:             "INPLACE_SUBTRACT",
	INPLACE_LSHIFT:               "INPLACE_LSHIFT",
	INPLACE_RSHIFT:               "INPLACE_RSHIFT",
	INPLACE_AND:                  "INPLACE_AND",
	INPLACE_XOR:                  "INPLACE_XOR",
	INPLACE_OR:                   "INPLACE_OR",
	COMPARE_OP:                   "COMPARE_OP",
	JUMP_FORWARD:                 "JUMP_FORWARD",
	JUMP_ABSOLUTE:                "JUMP_ABSOLUTE",
	POP_JUMP_IF_TRUE:             "POP_JUMP_IF_TRUE",
	POP_JUMP_IF_FALSE:            "POP_JUMP_IF_FALSE",
	JUMP_IF_TRUE_OR_POP:          "JUMP_IF_TRUE_OR_POP",
	JUMP_IF_FALSE_OR_POP:         "JUMP_IF_FALSE_OR_POP",
	GET_ITER:                     "GET_ITER",
	FOR_ITER:                     "FOR_ITER",
	GET_YIELD_FROM_ITER:          "GET_YIELD_FROM_ITER",
	GET_AWAITABLE:                "GET_AWAITABLE",
	GET_AITER:                    "GET_AITER",
	GET_ANEXT:                    "GET_ANEXT",
	BEFORE_ASYNC_WITH:            "BEFORE_ASYNC_WITH",
	CALL_FUNCTION:                "CALL_FUNCTION",
	CALL_FUNCTION_KW:             "CALL_FUNCTION_KW",
	CALL_FUNCTION_EX:             "CALL_FUNCTION_EX",
	MAKE_FUNCTION:                "MAKE_FUNCTION",
	SETUP_LOOP:                   "SETUP_LOOP",
	SETUP_EXCEPT:                 "SETUP_EXCEPT",
	SETUP_FINALLY:                "SETUP_FINALLY",
	POP_BLOCK:                    "POP_BLOCK",
	POP_EXCEPT:                   "POP_EXCEPT",
	END_FINALLY:                  "END_FINALLY",
	RAISE_VARARGS:                "RAISE_VARARGS",
	BREAK_LOOP:                   "BREAK_LOOP",
	CONTINUE_LOOP:                "CONTINUE_LOOP",
	YIELD_VALUE:                  "YIELD_VALUE",
	YIELD_FROM:                   "YIELD_FROM",
	SETUP_WITH:                   "SETUP_WITH",
	SETUP_ASYNC_WITH:             "SETUP_ASYNC_WITH",
	WITH_CLEANUP_START:           "WITH_CLEANUP_START",
	WITH_CLEANUP_FINISH:          "WITH_CLEANUP_FINISH",
	UNPACK_SEQUENCE:              "UNPACK_SEQUENCE",
	UNPACK_EX:                    "UNPACK_EX",
	FORMAT_VALUE:                 "FORMAT_VALUE",
	IMPORT_NAME:                  "IMPORT_NAME",
	IMPORT_FROM:                  "IMPORT_FROM",
	IMPORT_STAR:                  "IMPORT_STAR",
	RETURN_VALUE:                 "RETURN_VALUE",
	PRINT_EXPR:                   "PRINT_EXPR",
	EXTENDED_ARG:                 "EXTENDED_ARG",
}

// opcodeByName supports marshal's CPython-name -> Opcode translation.
var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for i, n := range OpcodeNames {
		if n != "" {
			m[n] = Opcode(i)
		}
	}
	return m
}()

// OpcodeByName looks up an Opcode by its CPython mnemonic. Returns
// (0, false) for names outside the supported set (e.g. Python 2-only or
// post-3.6 opcodes); callers treat that as an unknown opcode (spec §4.4/§7).
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

// Jump classifications, ground: spec §4.4 "Branches" and §4.5's yield_at
// extension rules, which distinguish relative (JUMP_FORWARD, SETUP_*) from
// absolute (*_ABSOLUTE, POP_JUMP_IF_*, JUMP_IF_*_OR_POP) jump targets.
func (o Opcode) IsRelativeJump() bool {
	switch o {
	case JUMP_FORWARD, SETUP_LOOP, SETUP_EXCEPT, SETUP_FINALLY, SETUP_WITH, SETUP_ASYNC_WITH, FOR_ITER:
		return true
	}
	return false
}

func (o Opcode) IsAbsoluteJump() bool {
	switch o {
	case JUMP_ABSOLUTE, POP_JUMP_IF_TRUE, POP_JUMP_IF_FALSE,
		JUMP_IF_TRUE_OR_POP, JUMP_IF_FALSE_OR_POP:
		return true
	}
	return false
}

func (o Opcode) IsUnary() bool    { return strings.HasPrefix(o.String(), "UNARY_") }
func (o Opcode) IsBinary() bool   { return strings.HasPrefix(o.String(), "BINARY_") }
func (o Opcode) IsInplace() bool  { return strings.HasPrefix(o.String(), "INPLACE_") }
func (o Opcode) IsSetupBlock() bool {
	switch o {
	case SETUP_LOOP, SETUP_EXCEPT, SETUP_FINALLY, SETUP_WITH, SETUP_ASYNC_WITH:
		return true
	}
	return false
}

// CompareOp enumerates COMPARE_OP's oparg values (spec §4.4).
type CompareOp int

const (
	CmpLT CompareOp = iota
	CmpLE
	CmpEQ
	CmpNE
	CmpGT
	CmpGE
	CmpIn
	CmpNotIn
	CmpIs
	CmpIsNot
	CmpExcMatch
)

var compareOpNames = [...]string{
	CmpLT: "<", CmpLE: "<=", CmpEQ: "==", CmpNE: "!=", CmpGT: ">", CmpGE: ">=",
	CmpIn: "in", CmpNotIn: "not in", CmpIs: "is", CmpIsNot: "is not",
	CmpExcMatch: "exception match",
}

func (c CompareOp) String() string {
	if int(c) < len(compareOpNames) {
		return compareOpNames[c]
	}
	return "?"
}
