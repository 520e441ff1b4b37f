package pypperoni

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanImportsPlainImport(t *testing.T) {
	stmts, err := ScanImports([]byte("import os\nimport sys as system, json\n"))
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	require.Equal(t, "os", stmts[0].Module)
	require.Equal(t, "sys", stmts[1].Module)
	require.Equal(t, "system", stmts[1].Alias)
	require.Equal(t, "json", stmts[2].Module)
}

func TestScanImportsFromImport(t *testing.T) {
	stmts, err := ScanImports([]byte("from os import path, sep as S\n"))
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	require.Equal(t, "os", stmts[0].Module)
	require.Equal(t, []ImportName{{Name: "path"}, {Name: "sep", Alias: "S"}}, stmts[0].Names)
}

func TestScanImportsStarImport(t *testing.T) {
	stmts, err := ScanImports([]byte("from os import *\n"))
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	require.True(t, stmts[0].Star)
}

func TestScanImportsRelativeImport(t *testing.T) {
	stmts, err := ScanImports([]byte("from ..pkg import a as b\n"))
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	require.Equal(t, 2, stmts[0].Level)
	require.Equal(t, "pkg", stmts[0].Module)
}

func TestScanImportsIgnoresStringsAndComments(t *testing.T) {
	src := []byte(`
# import fake
doc = """
import alsofake
"""
x = "import alsofake2"
import real
`)
	stmts, err := ScanImports(src)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	require.Equal(t, "real", stmts[0].Module)
}

func TestScanImportsParenWrappedFromImportContinues(t *testing.T) {
	src := []byte("from pkg import (\n    a,\n    b,\n)\n")
	stmts, err := ScanImports(src)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	require.Len(t, stmts[0].Names, 2)
}

func TestScanImportsBackslashContinuation(t *testing.T) {
	src := []byte("import a, \\\n    b\n")
	stmts, err := ScanImports(src)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
}
