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

	"github.com/sirupsen/logrus"
	"github.com/xlab/treeprint"
)

// Graph is the Module Graph Builder (spec §4.1): it ingests source files,
// extracts their import statements, resolves each to a Module, and reduces
// the set to what's reachable from main + the mandatory roots. Ground:
// original_source/cmake.py's CMakeFileGenerator.add_file/add_directory for
// the ingestion shape, original_source/modulereducer.py for the
// edge-collection + DFS reduction, both reworked around ImportStmt/Module
// instead of ast.NodeVisitor + live CPython objects.
type Graph struct {
	modules map[string]*Module
	edges   map[string][]string // A -> [B, ...], A imports B
	aliases map[string]string
	main    string

	compiler PyCompiler
	log      *logrus.Logger
}

// MandatoryRoots are always kept regardless of reachability from main (spec
// §4.1: "DFS from the main module and from codecs_index").
var MandatoryRoots = []string{CodecsIndexModuleName}

func NewGraph(opts Options) *Graph {
	opts = opts.WithDefaults()
	aliases := make(map[string]string, len(opts.ImportAliases))
	for k, v := range opts.ImportAliases {
		aliases[k] = v
	}
	return &Graph{
		modules:  make(map[string]*Module),
		edges:    make(map[string][]string),
		aliases:  aliases,
		compiler: opts.Compiler,
		log:      opts.Logger,
	}
}

func (g *Graph) addModule(name string, src []byte, kind ModuleKind) *Module {
	if m, ok := g.modules[name]; ok {
		return m
	}
	m := &Module{Name: name, Source: src, Kind: kind}
	if src != nil {
		imports, err := ScanImports(src)
		if err != nil && g.log != nil {
			g.log.WithError(err).WithField("module", name).Warn("failed scanning imports")
		}
		m.Imports = imports
	}
	g.modules[name] = m
	g.ensurePackageAncestors(name)
	return m
}

// AddSource registers a module from already-in-memory source, without
// touching the filesystem (spec §4.1's ingestion step generalized for
// sources that have no file of their own — a zipped stdlib member, or a
// synthesized module like codecs_index). kind follows the same
// KindRegular/KindPackage convention AddFile derives from a path; callers
// feeding package members are responsible for passing KindPackage
// themselves since there's no "__init__.py" filename to sniff. Ground: the
// importers subpackage's SourceProvider, generalized from
// gad-lang-gad/importers.FileImporter's Name/Import/Fork shape to a
// byte-source rather than a gad module value.
func (g *Graph) AddSource(name string, src []byte, kind ModuleKind) *Module {
	return g.addModule(name, src, kind)
}

// ensurePackageAncestors enforces the tree invariant (spec §3): if "a.b.c"
// exists, "a" and "a.b" must exist too, synthesized as empty packages if no
// explicit __init__.py registered them first.
func (g *Graph) ensurePackageAncestors(name string) {
	parent := ParentName(name)
	for parent != "" {
		if _, ok := g.modules[parent]; !ok {
			g.modules[parent] = &Module{Name: parent, Kind: KindPackage}
		}
		parent = ParentName(parent)
	}
}

// AddFile reads one source file and registers it as a module (spec §4.1). If
// name is empty it's derived from path: "dir/sub/file.py" -> "dir.sub.file",
// and a trailing "__init__" component collapses into its parent package.
func (g *Graph) AddFile(path string, name string) (*Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &CompilerError{Path: path, Err: err}
	}

	if name == "" {
		name = deriveModuleName(path)
	}

	kind := KindRegular
	if strings.HasSuffix(name, ".__init__") {
		name = strings.TrimSuffix(name, ".__init__")
		kind = KindPackage
	} else if filepath.Base(path) == "__init__.py" {
		kind = KindPackage
	}

	m := g.addModule(name, src, kind)
	return m, nil
}

func deriveModuleName(path string) string {
	clean := filepath.ToSlash(path)
	clean = strings.TrimSuffix(clean, ".py")
	clean = strings.Trim(clean, "/")
	parts := strings.Split(clean, "/")
	return strings.Join(parts, ".")
}

// AddDirectory walks path non-recursively, adding every *.py as a top-level
// module named by its basename only (spec §4.1).
func (g *Graph) AddDirectory(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return &CompilerError{Path: path, Err: err}
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".py") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".py")
		if _, err := g.AddFile(filepath.Join(path, e.Name()), name); err != nil {
			return err
		}
	}
	return nil
}

// AddTree walks path recursively, preserving the relative dotted name (spec
// §4.1: "tree.file1").
func (g *Graph) AddTree(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(p, ".py") {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		name := deriveModuleName(rel)
		_, err = g.AddFile(p, name)
		return err
	})
}

// SetMain marks the module as the program's entry point (id 0).
func (g *Graph) SetMain(name string) error {
	m, ok := g.modules[name]
	if !ok {
		return fmt.Errorf("pypperoni: cannot set main: module %q not registered", name)
	}
	if g.main != "" {
		g.modules[g.main].IsMain = false
	}
	m.IsMain = true
	g.main = name
	return nil
}

// GenerateCodecsIndex synthesizes the mandatory codecs_index module (spec
// §4.1): it registers every known module under the `encodings.` prefix via a
// guarded import, so the runtime's codec machinery can find them without a
// full-blown standard-library graph.
func (g *Graph) GenerateCodecsIndex() *Module {
	var names []string
	for name := range g.modules {
		if strings.HasPrefix(name, "encodings.") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "try:\n    import %s\nexcept (ImportError, LookupError):\n    pass\n\n", name)
	}

	return g.addModule(CodecsIndexModuleName, []byte(b.String()), KindRegular)
}

// Build resolves every registered module's import statements into graph
// edges (spec §4.1). Resolution may register new Builtin/External modules,
// so it iterates a snapshot and loops until no new modules appear.
func (g *Graph) Build() error {
	for {
		var names []string
		for name := range g.modules {
			names = append(names, name)
		}
		sort.Strings(names)

		before := len(g.modules)
		for _, name := range names {
			m := g.modules[name]
			if err := g.resolveModuleImports(m); err != nil {
				return err
			}
		}
		if len(g.modules) == before {
			break
		}
	}
	return nil
}

func (g *Graph) resolveModuleImports(m *Module) error {
	addEdge := func(target string) {
		for _, e := range g.edges[m.Name] {
			if e == target {
				return
			}
		}
		g.edges[m.Name] = append(g.edges[m.Name], target)
	}

	for _, stmt := range m.Imports {
		if stmt.Star || len(stmt.Names) > 0 {
			base := stmt.Module
			if base == "" && stmt.Level > 0 {
				base = "."
			}
			target, err := g.resolveImport(m, base, stmt.Level)
			if err != nil {
				return err
			}
			addEdge(target)

			for _, n := range stmt.Names {
				sub := target + "." + n.Name
				if resolved, err := g.resolveImport(m, sub, 0); err == nil {
					addEdge(resolved)
				}
			}
			continue
		}

		// Plain "import a.b.c [as x]": chain-resolve every prefix.
		parts := strings.Split(stmt.Module, ".")
		for i := range parts {
			prefix := strings.Join(parts[:i+1], ".")
			target, err := g.resolveImport(m, prefix, stmt.Level)
			if err != nil {
				return err
			}
			addEdge(target)
		}
	}
	return nil
}

// resolveImport is the single resolution site the redesign flag in spec §9
// calls for ("the alias map is consulted inconsistently across the two
// resolver variants in the source; specify it once, check at every
// resolution site"). Order: relative-prefix resolution (level>0 only) ->
// alias map -> already-known module -> host-import probe -> external stub.
// Ground: original_source/module.py's __lookup_import, cleaned up to a
// single code path instead of its two divergent callers.
func (g *Graph) resolveImport(from *Module, name string, level int) (string, error) {
	if level > 0 {
		pkgPrefix := from.Name
		if from.Kind != KindPackage {
			pkgPrefix = ParentName(from.Name)
		}
		for i := 1; i < level; i++ {
			if pkgPrefix == "" {
				return "", &ErrRelativeImportTooDeep{Module: from.Name, Level: level}
			}
			pkgPrefix = ParentName(pkgPrefix)
		}

		full := pkgPrefix
		if name != "" && name != "." {
			if full != "" {
				full += "." + name
			} else {
				full = name
			}
		}
		if full == "" {
			return "", &ErrRelativeImportTooDeep{Module: from.Name, Level: level}
		}
		return g.resolveAbsolute(full)
	}

	return g.resolveAbsolute(name)
}

func (g *Graph) resolveAbsolute(name string) (string, error) {
	if alias, ok := g.aliases[name]; ok {
		name = alias
	}
	if _, ok := g.modules[name]; ok {
		return name, nil
	}
	if g.compiler != nil && g.compiler.CanImport(name) {
		g.log.WithField("module", name).Debug("resolved as builtin")
		g.modules[name] = &Module{Name: name, Kind: KindBuiltin}
		return name, nil
	}
	g.log.WithField("module", name).Warn("found unknown module, stubbing as external")
	g.modules[name] = &Module{Name: name, Kind: KindExternal}
	return name, nil
}

// Reduce prunes every module not reachable from main or a mandatory root
// (spec §4.1, §3 "Module Graph"). Must be called after Build.
func (g *Graph) Reduce() {
	reachable := make(map[string]bool)
	var visit func(string)
	visit = func(name string) {
		if reachable[name] {
			return
		}
		reachable[name] = true
		for _, ancestor := range g.ancestorChain(name) {
			reachable[ancestor] = true
		}
		for _, e := range g.edges[name] {
			visit(e)
		}
	}

	if g.main != "" {
		visit(g.main)
	}
	for _, root := range MandatoryRoots {
		if _, ok := g.modules[root]; ok {
			visit(root)
		}
	}

	for name := range g.modules {
		if !reachable[name] {
			delete(g.modules, name)
			delete(g.edges, name)
		}
	}
}

func (g *Graph) ancestorChain(name string) []string {
	var out []string
	parent := ParentName(name)
	for parent != "" {
		out = append(out, parent)
		parent = ParentName(parent)
	}
	return out
}

// Modules returns every surviving module, sorted by name for deterministic
// downstream iteration (the Orchestrator's worker-dispatch order).
func (g *Graph) Modules() []*Module {
	out := make([]*Module, 0, len(g.modules))
	for _, m := range g.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns a module by name.
func (g *Graph) Lookup(name string) (*Module, bool) {
	m, ok := g.modules[name]
	return m, ok
}

// Tree renders the reduced graph as an import tree rooted at main, for the
// `pypperonic graph` debug subcommand (spec's DOMAIN STACK wiring of
// treeprint, carried over from the teacher's dependency on
// github.com/xlab/treeprint though the teacher never used it for this).
func (g *Graph) Tree() string {
	root := treeprint.New()
	root.SetValue(g.main)
	seen := map[string]bool{g.main: true}
	g.addBranch(root, g.main, seen)
	return root.String()
}

func (g *Graph) addBranch(node treeprint.Tree, name string, seen map[string]bool) {
	edges := append([]string(nil), g.edges[name]...)
	sort.Strings(edges)
	for _, e := range edges {
		label := e
		if m, ok := g.modules[e]; ok {
			label = fmt.Sprintf("%s [%s]", e, m.Kind)
		}
		if seen[e] {
			node.AddNode(label + " (*)")
			continue
		}
		seen[e] = true
		child := node.AddBranch(label)
		g.addBranch(child, e, seen)
	}
}
