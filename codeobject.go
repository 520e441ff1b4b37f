// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import "fmt"

// CodeFlag mirrors CPython's code object flags (spec §3).
type CodeFlag uint32

const (
	CoOptimized CodeFlag = 1 << iota
	CoNewLocals
	CoVarArgs
	CoVarKeywords
	CoNested
	CoGenerator
	CoNoFree
	CoCoroutine
	CoIterableCoroutine
	CoAsyncGenerator
)

func (f CodeFlag) Has(bit CodeFlag) bool { return f&bit != 0 }

// CodeObject is a compiled Python unit: module body, function, lambda,
// comprehension, class body, or nested generator (spec §3). Produced once by
// the external PyCompiler and never mutated by the lowering engine — lowering
// only reads it, consistent with the "Lifetime" invariant in spec §3.
type CodeObject struct {
	ArgCount       int
	KwOnlyArgCount int
	NLocals        int
	StackSize      int
	Flags          CodeFlag

	Code []byte // raw wordcode: (opcode byte, oparg byte) pairs

	Consts   []Value // LOAD_CONST operands; may themselves hold *CodeObject
	Names    []string
	VarNames []string
	FreeVars []string
	CellVars []string

	Filename    string
	QualName    string
	FirstLine   int
	LineTable   map[int]int // byte offset -> source line, spec §3

	// Path is the dotted C-symbol path assigned during lowering
	// ("<parent_path>_<label>" for nested objects, spec §3/§9). Empty until
	// the Chunker/Lowering stage assigns it.
	Path string
}

func (c *CodeObject) String() string {
	return fmt.Sprintf("<code %s at %s:%d>", c.QualName, c.Filename, c.FirstLine)
}

// LineAt resolves the source line for a byte offset the way CPython does:
// walk backward from ip until an entry is found (ground: gad-lang-gad's
// CompiledFunction.SourcePos in bytecode.go, which uses the same
// walk-backward-through-a-sparse-map strategy over its own SourceMap).
func (c *CodeObject) LineAt(ip int) int {
	for ip >= 0 {
		if line, ok := c.LineTable[ip]; ok {
			return line
		}
		ip--
	}
	return c.FirstLine
}

// Instruction is one decoded bytecode instruction (spec §3): its label is
// the raw byte offset in Code, the sole jump-target identifier.
type Instruction struct {
	Label  int
	Opcode Opcode
	Oparg  int
	Line   int
}

// DecodeInstructions decodes the wordcode stream of a CodeObject into the
// Instruction sequence used by every downstream stage (Chunker, Lowering,
// Import Rewriter). EXTENDED_ARG instructions are folded into the following
// instruction's Oparg and represented as a NOP at their own Label so that
// jump targets pointing at the EXTENDED_ARG byte offset remain valid (spec
// §3, §4.4, §8 property 8).
func DecodeInstructions(c *CodeObject) []Instruction {
	code := c.Code
	out := make([]Instruction, 0, len(code)/2)

	var extended int
	for i := 0; i+1 < len(code); i += 2 {
		label := i
		op := Opcode(code[i])
		oparg := extended | int(code[i+1])
		extended = 0

		if op == EXTENDED_ARG {
			extended = oparg << 8
			out = append(out, Instruction{Label: label, Opcode: NOP, Oparg: 0, Line: c.LineAt(label)})
			continue
		}

		out = append(out, Instruction{Label: label, Opcode: op, Oparg: oparg, Line: c.LineAt(label)})
	}
	return out
}

// InstructionAt finds the decoded Instruction whose Label equals label.
// Labels in a decoded slice are monotonic, so this binary-searches on that
// invariant.
func InstructionAt(instrs []Instruction, label int) (Instruction, bool) {
	lo, hi := 0, len(instrs)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if instrs[mid].Label == label {
			return instrs[mid], true
		}
		if instrs[mid].Label < label {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return Instruction{}, false
}
