// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import (
	"github.com/sirupsen/logrus"
)

// Default tunables, ground: original_source/config.py.
const (
	DefaultMaxFileSize     = 250_000 // bytes, spec §6
	DefaultExtraStackSize  = 7       // spec §6
	DefaultSplitInterval   = 4000    // instructions, spec §5/§6
	DefaultWorkerCount     = 4       // spec §4.8/§5
	RootModuleID           = 0
	CodecsIndexModuleName  = "codecs_index"
)

// Options configures one Orchestrator run. Mirrors the shape of the
// teacher's CompilerOptions/CompileOptions (compiler.go): a flat struct of
// tunables plus an injected logger and collaborator (PyCompiler) rather
// than package-level globals.
type Options struct {
	// ProjectName names the CMakeLists.txt project.
	ProjectName string

	// OutDir is the output root; generated files land under OutDir/gen.
	OutDir string

	MaxFileSize    int
	ExtraStackSize int
	SplitInterval  int
	Workers        int

	// ImportAliases reroutes an import name to a replacement name before
	// resolution (spec §6, ground: original_source/config.py's
	// IMPORT_ALIASES / add_import_alias).
	ImportAliases map[string]string

	// Compiler is the external Python-compiler collaborator (spec §1 Non-goals:
	// "assumed available as an external service"). Required.
	Compiler PyCompiler

	Logger *logrus.Logger
}

// WithDefaults returns a copy of o with zero-valued tunables replaced by
// their defaults. The logger defaults to logrus.StandardLogger(), matching
// the teacher's pattern of an injectable-but-defaulted writer (Compiler.trace
// in compiler.go defaults to nil/os.Stdout depending on options).
func (o Options) WithDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.ExtraStackSize <= 0 {
		o.ExtraStackSize = DefaultExtraStackSize
	}
	if o.SplitInterval <= 0 {
		o.SplitInterval = DefaultSplitInterval
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkerCount
	}
	if o.ImportAliases == nil {
		o.ImportAliases = map[string]string{}
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}
