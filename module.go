// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import (
	"crypto/sha1"
	"encoding/binary"
)

// ModuleKind classifies a Module (spec §3).
type ModuleKind int

const (
	KindRegular ModuleKind = iota
	KindPackage            // originated from __init__.py
	KindNull               // empty module (synthesized, e.g. NullModule)
	KindBuiltin            // resolved via host interpreter at graph time
	KindExternal           // unresolved, stubbed
)

func (k ModuleKind) String() string {
	switch k {
	case KindRegular:
		return "DEFINED"
	case KindPackage:
		return "DEFINED"
	case KindNull:
		return "DEFINED"
	case KindBuiltin:
		return "BUILTIN"
	case KindExternal:
		return "BUILTIN" // stubbed the same way as builtin from the manifest's point of view
	default:
		return "UNKNOWN"
	}
}

// Module is one Python source file (spec §3). Immutable after construction
// except for IsMain and Kind (kind promotion during graph resolution, §4.1).
type Module struct {
	Name   string // fully-qualified dotted name, unique
	Source []byte
	Code   *CodeObject // nil until lowering compiles it (deferred, §4.1)
	Kind   ModuleKind
	IsMain bool

	// Imports are the raw import statements discovered by the lightweight
	// scanner (importscan.go) before graph reduction resolves them.
	Imports []ImportStmt

	id    uint32
	idSet bool
}

// ID returns the module's stable 32-bit id (spec §3/§8 properties 2,9):
// 0 for main, else the low 32 bits (little-endian) of SHA-1(name).
func (m *Module) ID() uint32 {
	if m.IsMain {
		return RootModuleID
	}
	if !m.idSet {
		m.id = ModuleID(m.Name)
		m.idSet = true
	}
	return m.id
}

// ModuleID computes the non-main module id formula directly, so callers that
// need another module's id (e.g. the Import Resolver referencing a not-yet-
// visited module) don't need a *Module in hand.
func ModuleID(name string) uint32 {
	sum := sha1.Sum([]byte(name))
	return binary.LittleEndian.Uint32(sum[:4])
}

// ParentName returns the dotted-prefix parent of a package-tree name, or ""
// if name has no parent (spec §3 invariant: "a.b.c" implies "a" and "a.b"
// exist as packages).
func ParentName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return ""
}
