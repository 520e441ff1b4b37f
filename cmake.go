// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import (
	"os"
	"path/filepath"
	"strings"
)

// cmakeTemplate is the project's CMakeLists.txt.in (ground:
// original_source/cmake.py's run(), which reads a standalone cmake.in file
// from disk and substitutes four placeholders into it). This core has no
// separate pypperoni checkout to read a template off of, so the template
// lives here as the one asset this package owns outright.
const cmakeTemplate = `cmake_minimum_required(VERSION 3.10)
project($$project$$ C)

set(CMAKE_C_STANDARD 99)

include_directories(
  $$pypperoni_root$$/include
  $$python_root$$/Include
)

add_executable($$project$$
$$files$$
)

target_link_libraries($$project$$ python3)
`

// WriteCMakeLists substitutes project, the generated file list,
// pypperoniRoot and pythonRoot into the project's CMakeLists.txt template and
// writes it under outDir (spec §6). files is the list Orchestrator.Run
// returned: every generated module .c file plus modules.I, relative to
// outDir/gen. Ground: original_source/cmake.py's run() tail — the same four
// $$placeholder$$ substitutions, generalized from string.replace chaining to
// a single strings.NewReplacer pass.
func WriteCMakeLists(outDir, project string, files []string, pypperoniRoot, pythonRoot string) error {
	var fileLines strings.Builder
	for _, f := range files {
		fileLines.WriteString("     ")
		fileLines.WriteString(filepath.ToSlash(filepath.Join("gen", f)))
		fileLines.WriteString("\n")
	}

	replacer := strings.NewReplacer(
		"$$project$$", project,
		"$$files$$", fileLines.String(),
		"$$pypperoni_root$$", filepath.ToSlash(pypperoniRoot),
		"$$python_root$$", filepath.ToSlash(pythonRoot),
	)

	out := replacer.Replace(cmakeTemplate)
	return os.WriteFile(filepath.Join(outDir, "CMakeLists.txt"), []byte(out), 0o644)
}
