package pypperoni

// newBareLowerer builds a Lowerer with a fresh EmissionContext, bypassing
// the Graph/Module machinery, for unit-testing single opcode-family
// lowering rules (lowerArith, lowerBranch, lowerBuilder, ...) that never
// touch l.Graph or l.Module.
func newBareLowerer(co *CodeObject) *Lowerer {
	l := &Lowerer{Code: co, PoolPath: "mod", pool: newConstPool()}
	l.Ctx = NewChunkContext("mod", "mod", l.pool, nil)
	l.declScratch()
	return l
}
