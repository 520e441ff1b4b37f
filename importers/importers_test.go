package importers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileProviderImport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 1\n"), 0o644))

	p := &FileProvider{WorkDir: dir}
	src, err := p.Import("a.py")
	require.NoError(t, err)
	require.Equal(t, "x = 1\n", string(src))
	require.Equal(t, filepath.Join(dir, "a.py"), p.Name())
}

func TestFileProviderImportAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "b.py")
	require.NoError(t, os.WriteFile(abs, []byte("y = 2\n"), 0o644))

	p := &FileProvider{WorkDir: "/irrelevant"}
	src, err := p.Import(abs)
	require.NoError(t, err)
	require.Equal(t, "y = 2\n", string(src))
	require.Equal(t, abs, p.Name())
}

func TestFileProviderForkScopesToContainingDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "mod.py"), []byte("z = 3\n"), 0o644))

	p := &FileProvider{WorkDir: dir}
	forked := p.Fork(filepath.Join(sub, "mod.py"))

	src, err := forked.Import("mod.py")
	require.NoError(t, err)
	require.Equal(t, "z = 3\n", string(src))
}

func TestFileProviderImportMissingName(t *testing.T) {
	p := &FileProvider{WorkDir: t.TempDir()}
	_, err := p.Import("")
	require.Error(t, err)
}

func TestShebangReadFileBlanksShebang(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.py")
	require.NoError(t, os.WriteFile(path, []byte("#!/usr/bin/env python\nprint(1)\n"), 0o644))

	data, err := ShebangReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "//usr/bin/env python\nprint(1)\n", string(data))
}

func TestShebangReadFileLeavesOrdinaryCommentAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.py")
	require.NoError(t, os.WriteFile(path, []byte("# a comment\nx = 1\n"), 0o644))

	data, err := ShebangReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "# a comment\nx = 1\n", string(data))
}

func TestMemProviderRoundTrip(t *testing.T) {
	p := NewMemProvider().Add("codecs_index", []byte("index = {}\n"))

	src, err := p.Import("codecs_index")
	require.NoError(t, err)
	require.Equal(t, "index = {}\n", string(src))
	require.Equal(t, "codecs_index", p.Name())
}

func TestMemProviderImportUnknown(t *testing.T) {
	p := NewMemProvider()
	_, err := p.Import("missing")
	require.Error(t, err)
}

func TestMemProviderForkReturnsSameTable(t *testing.T) {
	p := NewMemProvider().Add("a", []byte("1"))
	forked := p.Fork("a")

	src, err := forked.Import("a")
	require.NoError(t, err)
	require.Equal(t, "1", string(src))
}
