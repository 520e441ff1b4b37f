// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

// Chunk is one piece of a split instruction stream, lowered into its own C
// function named "<path>_<index>" (1-based, spec §4.5).
type Chunk struct {
	Index  int
	Instrs []Instruction
}

// SplitInstructions partitions instrs into Chunks, ground:
// original_source/module.py's __split_buf. Generators are never split (a
// generator's f_lasti switch-dispatch spans the whole function, spec §4.5
// "never split a generator"), matching __split_buf's
// `if codeobj.co_flags & CO_GENERATOR: yield buf; return`. interval is the
// configured SplitInterval (Options.SplitInterval/DefaultSplitInterval,
// falling back to DefaultSplitInterval if <= 0).
//
// yield_at widens past any jump target, SETUP_* handler offset, or import
// idiom that would otherwise straddle a chunk boundary — splitting there
// would require a `goto label_N` into a C function that doesn't contain that
// label.
func SplitInstructions(instrs []Instruction, isGenerator bool, interval int) []Chunk {
	if interval <= 0 {
		interval = DefaultSplitInterval
	}
	if isGenerator || len(instrs) == 0 {
		return []Chunk{{Index: 1, Instrs: instrs}}
	}

	var chunks []Chunk
	yieldAt := interval
	var cur []Instruction

	for i, instr := range instrs {
		if instr.Label >= yieldAt && len(cur) >= interval {
			chunks = append(chunks, Chunk{Index: len(chunks) + 1, Instrs: cur})
			cur = nil
			yieldAt = instr.Label + interval
		}

		cur = append(cur, instr)

		switch {
		case instr.Opcode.IsRelativeJump():
			if end := instr.Label + instr.Oparg + 4; end > yieldAt {
				yieldAt = end
			}

		case instr.Opcode.IsAbsoluteJump():
			if instr.Oparg+1 > yieldAt {
				yieldAt = instr.Oparg + 1
			}

		case instr.Opcode == LOAD_CONST && i+2 < len(instrs) && instrs[i+2].Opcode == IMPORT_NAME:
			// Don't split inside the LOAD_CONST/LOAD_CONST/IMPORT_NAME idiom
			// (and its IMPORT_FROM/STORE_*/LOAD_ATTR continuation) — widen
			// past every following instruction still on the same source
			// line, the same proxy original_source/module.py uses.
			j := i
			for j < len(instrs) && instrs[j].Line == instr.Line {
				j++
			}
			end := instrs[len(instrs)-1].Label + 1
			if j < len(instrs) {
				end = instrs[j].Label
			}
			if end > yieldAt {
				yieldAt = end
			}
		}
	}

	if len(cur) > 0 {
		chunks = append(chunks, Chunk{Index: len(chunks) + 1, Instrs: cur})
	}

	return chunks
}
