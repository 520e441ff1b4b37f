// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import (
	"fmt"
	"sort"
	"strings"
)

// ManifestEntry is one module's row in modules.I (spec §4.8): id, kind,
// parent id, name, entry-point symbol (DEFINED only), stack size, local
// count.
type ManifestEntry struct {
	ID         uint32
	Kind       ModuleKind
	ParentID   int64 // -1 if no parent
	Name       string
	EntrySym   string // "" for BUILTIN/EXTERNAL
	StackSize  int
	LocalCount int
}

// BuildManifest derives one ManifestEntry per surviving module (ground:
// original_source/cmake.py's final manifest-writing pass, generalized from
// its CSV-like `modules.I` emission). extraStackSize adds the runtime's
// safety margin (spec §6 "EXTRA_STACK_SIZE") to each defined module's frame
// stack size.
func BuildManifest(g *Graph, extraStackSize int) []ManifestEntry {
	modules := g.Modules()
	byName := make(map[string]*Module, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
	}

	entries := make([]ManifestEntry, 0, len(modules))
	for _, m := range modules {
		parentID := int64(-1)
		if parent := ParentName(m.Name); parent != "" {
			if pm, ok := byName[parent]; ok {
				parentID = int64(pm.ID())
			}
		}

		e := ManifestEntry{
			ID:       m.ID(),
			Kind:     m.Kind,
			ParentID: parentID,
			Name:     m.Name,
		}

		if m.Kind == KindRegular || m.Kind == KindPackage || m.Kind == KindNull {
			e.EntrySym = fmt.Sprintf("_%s_MODULE__", strings.ReplaceAll(m.Name, ".", "_"))
			if m.Code != nil {
				e.StackSize = m.Code.StackSize + extraStackSize
				e.LocalCount = m.Code.NLocals
			} else {
				e.StackSize = extraStackSize
			}
		}

		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// WriteManifest renders modules.I (spec §4.8, §6 "modules.I — the manifest
// described in §4.8"): one line per module, plus a bootstrap section
// listing the modules the runtime must import at startup before running
// main (`encodings`, `codecs_index`, and the host-provided `_io`).
func WriteManifest(entries []ManifestEntry, mainName string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Pypperoni module manifest\n")
	fmt.Fprintf(&b, "# id kind parent_id name entry_symbol stack_size local_count\n")
	for _, e := range entries {
		entry := e.EntrySym
		if entry == "" {
			entry = "-"
		}
		fmt.Fprintf(&b, "%d %s %d %s %s %d %d\n",
			e.ID, e.Kind.String(), e.ParentID, e.Name, entry, e.StackSize, e.LocalCount)
	}

	fmt.Fprintf(&b, "\n# Bootstrap order (spec §4.8: \"a second function... bootstraps the\n")
	fmt.Fprintf(&b, "# encodings and codecs_index modules (plus _io from the host runtime)\")\n")
	fmt.Fprintf(&b, "BOOTSTRAP _io HOST\n")
	fmt.Fprintf(&b, "BOOTSTRAP encodings %d\n", ModuleID("encodings"))
	fmt.Fprintf(&b, "BOOTSTRAP %s %d\n", CodecsIndexModuleName, ModuleID(CodecsIndexModuleName))
	fmt.Fprintf(&b, "MAIN %s\n", mainName)

	return b.String()
}
