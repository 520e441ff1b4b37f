// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Orchestrator drains the reduced module graph with a bounded worker pool,
// one goroutine lowering one module at a time into its own File Sink (spec
// §4.8/§5). Ground: original_source/cmake.py's CMakeFileGenerator — its
// Queue+Thread worker pool generalized to Go channels+goroutines, its
// __process_one/__worker/run sequence kept as the three-phase shape (queue
// fill -> drain -> single-pass manifest write).
type Orchestrator struct {
	Graph *Graph
	Opts  Options
}

// NewOrchestrator prepares an Orchestrator for a graph that has already had
// AddFile/AddDirectory/AddTree/SetMain called on it.
func NewOrchestrator(g *Graph, opts Options) *Orchestrator {
	return &Orchestrator{Graph: g, Opts: opts.WithDefaults()}
}

type moduleOutcome struct {
	module *Module
	files  []string
	err    error
}

// Run performs one full build: reduce the graph, compile+lower every
// surviving module across Opts.Workers goroutines, and write the manifest
// (spec §4.8). It returns every generated filename (module .c files plus
// modules.I), relative to Opts.OutDir/gen, in the order CMakeLists.txt
// should list them.
func (o *Orchestrator) Run() ([]string, error) {
	if err := o.Graph.Build(); err != nil {
		return nil, &FatalError{Reason: "resolving module import graph", Err: err}
	}
	o.Graph.Reduce()

	genDir := filepath.Join(o.Opts.OutDir, "gen")
	modulesDir := filepath.Join(genDir, "modules")
	if err := os.MkdirAll(modulesDir, 0o755); err != nil {
		return nil, &FatalError{Reason: "creating output directory", Err: err}
	}

	modules := o.Graph.Modules()
	var pending []*Module
	for _, m := range modules {
		if m.Kind == KindBuiltin {
			continue
		}
		pending = append(pending, m)
	}

	jobs := make(chan *Module)
	results := make(chan moduleOutcome)

	for i := 0; i < o.Opts.Workers; i++ {
		go o.worker(modulesDir, jobs, results)
	}

	go func() {
		defer close(jobs)
		n := len(pending)
		digits := len(fmt.Sprintf("%d", n))
		format := fmt.Sprintf("[%%%dd/%%%dd] %%s", digits, digits)
		for i, m := range pending {
			o.Opts.Logger.Info(fmt.Sprintf(format, i+1, n, m.Name))
			jobs <- m
		}
	}()

	var allFiles []string
	var firstErr error
	for i := 0; i < len(pending); i++ {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = &FatalError{
					Reason: fmt.Sprintf("lowering module %q", res.module.Name),
					Err:    res.err,
				}
			}
			continue
		}
		allFiles = append(allFiles, res.files...)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	manifest := BuildManifest(o.Graph, o.Opts.ExtraStackSize)
	mainName := ""
	for _, m := range modules {
		if m.IsMain {
			mainName = m.Name
			break
		}
	}

	mf := &conditionalFile{path: filepath.Join(genDir, "modules.I")}
	mf.write(WriteManifest(manifest, mainName))
	if _, err := mf.close(); err != nil {
		return nil, &FatalError{Reason: "writing manifest", Err: err}
	}
	allFiles = append(allFiles, "modules.I")

	sort.Strings(allFiles)
	return allFiles, nil
}

func (o *Orchestrator) worker(modulesDir string, jobs <-chan *Module, results chan<- moduleOutcome) {
	for m := range jobs {
		files, err := o.processOne(modulesDir, m)
		results <- moduleOutcome{module: m, files: files, err: err}
	}
}

// processOne compiles (if needed) and lowers one module's whole code-object
// tree into its own File Sink (spec §4.8 "each worker lowers one module in
// isolation into its own File Sink"), ground: cmake.py's __process_one.
func (o *Orchestrator) processOne(modulesDir string, m *Module) ([]string, error) {
	if m.Code == nil {
		code, err := o.compile(m)
		if err != nil {
			return nil, err
		}
		m.Code = code
	}

	entrySym := fmt.Sprintf("_%s_MODULE__", strings.ReplaceAll(m.Name, ".", "_"))

	top := NewLowerer(m, m.Code, o.Graph, entrySym)
	queue := []*Lowerer{top}
	var contexts []*EmissionContext
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		nested, err := cur.Lower()
		if err != nil {
			return nil, &CompilerError{Module: m.Name, Path: cur.Code.Path, Err: err}
		}
		contexts = append(contexts, cur.Contexts...)
		queue = append(queue, nested...)
	}

	sink := NewFileSink(modulesDir, m.Name, o.Opts.MaxFileSize)
	for _, ctx := range contexts {
		renderFunction(sink, ctx)
		sink.ConsiderNext()
	}
	if err := flushConstPool(sink, top.PoolPath, top.pool); err != nil {
		return nil, &CompilerError{Module: m.Name, Path: top.PoolPath, Err: err}
	}

	results, err := sink.Close()
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(results))
	for _, r := range results {
		files = append(files, filepath.Join("modules", filepath.Base(r.Path)))
	}
	return files, nil
}

// compile writes a module's in-memory source to a temp file (synthesized
// modules like codecs_index never had one on disk) and invokes the
// external Python-compiler boundary on it (spec §4.1).
func (o *Orchestrator) compile(m *Module) (*CodeObject, error) {
	base := strings.ReplaceAll(m.Name, ".", "_")
	tmp, err := os.CreateTemp("", base+"-*.py")
	if err != nil {
		return nil, &CompilerError{Module: m.Name, Err: err}
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(m.Source); err != nil {
		tmp.Close()
		return nil, &CompilerError{Module: m.Name, Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return nil, &CompilerError{Module: m.Name, Path: path, Err: err}
	}

	return o.Opts.Compiler.Compile(path)
}

// renderFunction writes one EmissionContext's full C function definition —
// signature, standard preamble (retval/why/stack_pointer, spec §4.3's
// Finish()-protocol locals that every chunk's Finish()/emitTrampoline
// output assumes are already in scope), the chunk's own declarations, then
// its accumulated body — plus the matching forward declaration in the
// sink's shared header block.
func renderFunction(sink *FileSink, ctx *EmissionContext) {
	sink.AddCommonHeader(fmt.Sprintf("PyObject* %s(PyFrameObject* f);", ctx.Path))

	sink.Write(fmt.Sprintf("PyObject* %s(PyFrameObject* f)\n{\n", ctx.Path))
	sink.Write("  PyObject* retval = NULL;\n")
	sink.Write("  WhyCode why = WHY_NOT;\n")
	sink.Write("  PyObject** stack_pointer = f->f_stacktop;\n")
	sink.Write(ctx.DeclsC())
	sink.Write("\n")
	sink.Write(ctx.Body())
	sink.Write("}\n\n")
}

// flushConstPool writes one module's shared constant pool exactly once
// (spec §4.2/§6 "one load-on-first-use function per file"), ground:
// original_source/context.py's flushconsts: a marshalled-tuple byte blob
// plus a lazily-initialized getter, generalized here to go through this
// core's own EncodeConstPool instead of cPython's cStringIO `marshal.dumps`.
func flushConstPool(sink *FileSink, poolPath string, pool *constPool) error {
	pool.mu.Lock()
	consts := append([]Value(nil), pool.consts...)
	literals := make([]string, len(pool.literals))
	for s, i := range pool.literals {
		literals[i] = s
	}
	pool.mu.Unlock()

	safe := symbolSafe(poolPath)

	blob, err := EncodeConstPool(consts)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "static const unsigned char __pypperoni_constblob_%s[%d] = {\n  ", safe, len(blob))
	for i, c := range blob {
		fmt.Fprintf(&b, "%d,", c)
		if (i+1)%16 == 0 {
			b.WriteString("\n  ")
		} else {
			b.WriteString(" ")
		}
	}
	b.WriteString("\n};\n\n")

	fmt.Fprintf(&b, "PyObject* __pypperoni_get_const_%s(Py_ssize_t index)\n{\n", safe)
	b.WriteString("  static PyObject* page = NULL;\n")
	b.WriteString("  PyObject* it;\n")
	b.WriteString("  if (page == NULL) {\n")
	fmt.Fprintf(&b, "    page = PyMarshal_ReadObjectFromString((char*)__pypperoni_constblob_%s, %d);\n", safe, len(blob))
	b.WriteString("  }\n")
	b.WriteString("  it = PyTuple_GET_ITEM(page, index);\n")
	b.WriteString("  Py_INCREF(it);\n")
	b.WriteString("  return it;\n")
	b.WriteString("}\n\n")

	if len(literals) > 0 {
		fmt.Fprintf(&b, "static const char* __pypperoni_literals_%s[%d] = {\n", safe, len(literals))
		for _, lit := range literals {
			fmt.Fprintf(&b, "  %q,\n", lit)
		}
		b.WriteString("};\n\n")
	}

	sink.AddCommonHeader(fmt.Sprintf("PyObject* __pypperoni_get_const_%s(Py_ssize_t index);", safe))
	sink.Write(b.String())
	return nil
}
