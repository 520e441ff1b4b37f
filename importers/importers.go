// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

// Package importers supplies source-ingestion providers for the module
// graph builder: pluggable origins a Graph can pull (name, []byte) pairs
// from besides a plain AddFile/AddDirectory/AddTree walk of the local
// filesystem. Ground: gad-lang-gad/importers.FileImporter's Get/Name/
// Import/Fork shape, generalized from importing gad script values to
// importing raw Python source bytes.
package importers

import (
	"errors"
	"os"
	"path/filepath"
)

// SourceProvider resolves a module name to its source bytes and can Fork a
// sibling provider rooted at whatever directory a just-resolved module
// lives in, so relative imports discovered while walking one package keep
// resolving against the right base.
type SourceProvider interface {
	// Name returns the provider's canonical identifier for the module most
	// recently resolved via Import, or "" if none has been resolved yet.
	Name() string

	// Import returns the source bytes for moduleName.
	Import(moduleName string) ([]byte, error)

	// Fork returns a new provider scoped to the directory containing
	// moduleName, for resolving that module's own relative imports.
	Fork(moduleName string) SourceProvider
}

// FileProvider resolves modules from a directory on the local filesystem,
// using absolute paths as import names (ground: FileImporter.Name/Import's
// WorkDir-relative-then-Abs resolution).
type FileProvider struct {
	WorkDir    string
	FileReader func(string) ([]byte, error)

	name string
}

var _ SourceProvider = (*FileProvider)(nil)

// Name returns the absolute path of the most recently imported module, or
// "" if Import hasn't been called yet.
func (p *FileProvider) Name() string {
	if p.name == "" {
		return ""
	}
	path := p.name
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.WorkDir, path)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	return path
}

// Import reads moduleName's source, resolving it relative to WorkDir first.
func (p *FileProvider) Import(moduleName string) ([]byte, error) {
	if moduleName == "" {
		return nil, errors.New("pypperoni/importers: empty module name")
	}
	p.name = moduleName

	path := moduleName
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.WorkDir, path)
	}

	if p.FileReader != nil {
		return p.FileReader(path)
	}
	return os.ReadFile(path)
}

// Fork returns a FileProvider rooted at moduleName's containing directory,
// carrying over FileReader (ground: FileImporter.Fork).
func (p *FileProvider) Fork(moduleName string) SourceProvider {
	return &FileProvider{
		WorkDir:    filepath.Dir(moduleName),
		FileReader: p.FileReader,
	}
}

// ShebangReadFile reads path and blanks a leading "#!" shebang line into
// "//" so it can't collide with C preprocessing further down the pipeline.
// It's a no-op for ordinary Python source (the host compiler consumes it
// long before any C text is emitted) but is kept as a FileReader hook for
// providers fed scripts with an executable shebang line, matching the
// teacher's own ShebangReadFile/Shebang2Slashes pair.
func ShebangReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	shebang2Slashes(data)
	return data, nil
}

func shebang2Slashes(p []byte) {
	if len(p) > 1 && p[0] == '#' && p[1] == '!' {
		p[0] = '/'
		p[1] = '/'
	}
}
