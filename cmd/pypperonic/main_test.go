package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pypperoni/pypperoni"
)

func TestRootCommandHasBuildAndGraphSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["build"])
	require.True(t, names["graph"])
}

func TestBuildRequiresAtLeastOneSource(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"build"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))

	err := root.Execute()
	require.Error(t, err)
}

// stubCompiler never reaches out to a real python3 process, so graph
// assembly in tests doesn't depend on the host having one installed.
type stubCompiler struct{}

func (stubCompiler) Compile(path string) (*pypperoni.CodeObject, error) {
	return &pypperoni.CodeObject{Path: path}, nil
}

func (stubCompiler) CanImport(name string) bool { return true }

func TestBuildGraphRegistersMainFromFirstSource(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(main, []byte("import os\n"), 0o644))

	flagOut = t.TempDir()
	flagProject = "app"
	flagMain = ""
	defer func() { flagMain = "" }()

	g, err := buildGraphWithCompiler([]string{main}, stubCompiler{})
	require.NoError(t, err)

	require.NoError(t, g.Build())
	g.Reduce()

	m, ok := g.Lookup("app")
	require.True(t, ok)
	require.True(t, m.IsMain)
}
