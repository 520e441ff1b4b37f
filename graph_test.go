package pypperoni

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeCompiler answers CanImport from a fixed set, never shelling out to a
// real python3 (ground: pycompile.go's PyCompiler interface is the seam the
// teacher's own Compiler/CompilerOptions split models).
type fakeCompiler struct {
	builtins map[string]bool
}

func (f *fakeCompiler) Compile(path string) (*CodeObject, error) {
	return &CodeObject{Path: path}, nil
}

func (f *fakeCompiler) CanImport(name string) bool { return f.builtins[name] }

func newTestGraph(builtins ...string) *Graph {
	set := make(map[string]bool, len(builtins))
	for _, b := range builtins {
		set[b] = true
	}
	opts := Options{Compiler: &fakeCompiler{builtins: set}}
	return NewGraph(opts)
}

func TestGraphAddFileDerivesNameAndKind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mod.py"), []byte("x = 1\n"), 0o644))

	g := newTestGraph()
	m, err := g.AddFile(filepath.Join(dir, "mod.py"), "")
	require.NoError(t, err)
	require.Equal(t, "mod", m.Name)
	require.Equal(t, KindRegular, m.Kind)
}

func TestGraphAddFileInitPyBecomesPackage(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	path := filepath.Join(sub, "__init__.py")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	g := newTestGraph()
	m, err := g.AddFile(path, "")
	require.NoError(t, err)
	require.Equal(t, KindPackage, m.Kind)
}

func TestGraphEnsurePackageAncestors(t *testing.T) {
	g := newTestGraph()
	_, err := g.AddFile(writeTempPy(t, "c.py", "pass\n"), "a.b.c")
	require.NoError(t, err)

	_, ok := g.Lookup("a")
	require.True(t, ok)
	_, ok = g.Lookup("a.b")
	require.True(t, ok)
}

func TestGraphBuildResolvesPlainImportChain(t *testing.T) {
	g := newTestGraph("os")
	_, err := g.AddFile(writeTempPy(t, "app.py", "import os\n"), "app")
	require.NoError(t, err)
	require.NoError(t, g.SetMain("app"))

	require.NoError(t, g.Build())

	m, ok := g.Lookup("os")
	require.True(t, ok)
	require.Equal(t, KindBuiltin, m.Kind)
}

func TestGraphBuildResolvesRelativeImport(t *testing.T) {
	g := newTestGraph()
	_, err := g.AddFile(writeTempPy(t, "init.py", ""), "pkg.__init__")
	require.NoError(t, err)
	_, err = g.AddFile(writeTempPy(t, "sibling.py", "from . import sibling\n"), "pkg.a")
	require.NoError(t, err)
	_, err = g.AddFile(writeTempPy(t, "b.py", "x = 1\n"), "pkg.sibling")
	require.NoError(t, err)
	require.NoError(t, g.SetMain("pkg.a"))

	require.NoError(t, g.Build())
}

func TestGraphReduceDropsUnreachableModules(t *testing.T) {
	g := newTestGraph()
	_, err := g.AddFile(writeTempPy(t, "app.py", "x = 1\n"), "app")
	require.NoError(t, err)
	_, err = g.AddFile(writeTempPy(t, "orphan.py", "x = 1\n"), "orphan")
	require.NoError(t, err)
	require.NoError(t, g.SetMain("app"))

	require.NoError(t, g.Build())
	g.Reduce()

	_, ok := g.Lookup("orphan")
	require.False(t, ok)
	_, ok = g.Lookup("app")
	require.True(t, ok)
}

func TestGraphReduceKeepsMandatoryRoots(t *testing.T) {
	g := newTestGraph()
	_, err := g.AddFile(writeTempPy(t, "app.py", "x = 1\n"), "app")
	require.NoError(t, err)
	require.NoError(t, g.SetMain("app"))
	g.GenerateCodecsIndex()

	require.NoError(t, g.Build())
	g.Reduce()

	_, ok := g.Lookup(CodecsIndexModuleName)
	require.True(t, ok)
}

func TestGraphSetMainUnknownModule(t *testing.T) {
	g := newTestGraph()
	err := g.SetMain("nope")
	require.Error(t, err)
}

func TestGraphTreeRendersModuleNames(t *testing.T) {
	g := newTestGraph()
	_, err := g.AddFile(writeTempPy(t, "app.py", "x = 1\n"), "app")
	require.NoError(t, err)
	require.NoError(t, g.SetMain("app"))

	tree := g.Tree()
	require.Contains(t, tree, "app")
}

func writeTempPy(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
