// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteResult reports what happened to one physical file (spec §6): its
// path, content hash, and whether an existing file's content changed and was
// rewritten. A file that did not exist before is written but reports
// Modified false.
type WriteResult struct {
	Path     string
	Hash     string
	Modified bool
}

// conditionalFile buffers one physical .c file in memory and only rewrites
// it on disk if its content hash changed (ground: original_source/files.py's
// ConditionalFile — same read-old/compare-hash/skip-if-unchanged shape,
// generalized from Python's cStringIO buffer to strings.Builder).
type conditionalFile struct {
	path string
	buf  strings.Builder
}

func (f *conditionalFile) write(s string) { f.buf.WriteString(s) }
func (f *conditionalFile) size() int      { return f.buf.Len() }

// close hashes the buffered content (SHA-256 truncated to 7 hex digits,
// spec §6 "conditional rewrite") and only touches disk if the file is new or
// the hash changed.
func (f *conditionalFile) close() (WriteResult, error) {
	data := []byte(f.buf.String())
	sum := sha256.Sum256(data)
	newHash := hex.EncodeToString(sum[:])[:7]

	old, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return WriteResult{}, err
		}
		if werr := os.WriteFile(f.path, data, 0o644); werr != nil {
			return WriteResult{}, werr
		}
		return WriteResult{Path: f.path, Hash: newHash, Modified: false}, nil
	}

	oldSum := sha256.Sum256(old)
	oldHash := hex.EncodeToString(oldSum[:])[:7]
	modified := oldHash != newHash
	if modified {
		if werr := os.WriteFile(f.path, data, 0o644); werr != nil {
			return WriteResult{}, werr
		}
	}
	return WriteResult{Path: f.path, Hash: newHash, Modified: modified}, nil
}

// FileSink is one module's output: a sequence of .c files split at
// MaxFileSize boundaries, sharing a common set of header #includes (ground:
// original_source/files.py's FileContainer — "uid" naming, `consider_next`
// size-triggered rollover, headers prepended on close).
type FileSink struct {
	prefix      string
	maxFileSize int

	headers []string
	files   []*conditionalFile
}

// NewFileSink creates a sink writing "<prefix>_N.c" files under outDir,
// where prefix is derived from the module's dotted name (ground:
// FileContainer.uid: "os.path.basename(prefix).replace('.', '_')").
func NewFileSink(outDir, moduleName string, maxFileSize int) *FileSink {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	uid := strings.ReplaceAll(moduleName, ".", "_")
	s := &FileSink{
		prefix:      filepath.Join(outDir, uid),
		maxFileSize: maxFileSize,
		headers:     []string{`#include "pypperoni_impl.h"`},
	}
	s.next()
	return s
}

func (s *FileSink) next() {
	idx := len(s.files) + 1
	path := fmt.Sprintf("%s_%d.c", s.prefix, idx)
	s.files = append(s.files, &conditionalFile{path: path})
}

// AddCommonHeader registers an extra #include/forward-declaration line
// emitted at the top of every physical file this sink produces (ground:
// FileContainer.add_common_header, used by __gen_code for each chunk
// function's forward declaration).
func (s *FileSink) AddCommonHeader(header string) {
	s.headers = append(s.headers, header)
}

// Write appends text to the currently active physical file.
func (s *FileSink) Write(text string) {
	s.files[len(s.files)-1].write(text)
}

// ConsiderNext rolls over to a new physical file once the current one
// exceeds MaxFileSize (spec §6, ground: FileContainer.consider_next). Must
// be called between C functions, never inside one, so a function body is
// never split across physical files.
func (s *FileSink) ConsiderNext() {
	if s.files[len(s.files)-1].size() > s.maxFileSize {
		s.next()
	}
}

// Close finalizes every physical file: each gets the shared headers
// prepended, then the conditional-rewrite check runs (ground:
// FileContainer.close's header-prepend-then-write-each sequence).
func (s *FileSink) Close() ([]WriteResult, error) {
	results := make([]WriteResult, 0, len(s.files))
	for _, f := range s.files {
		body := f.buf.String()
		var full strings.Builder
		for _, h := range s.headers {
			full.WriteString(h)
			full.WriteByte('\n')
		}
		full.WriteByte('\n')
		full.WriteString(body)
		f.buf.Reset()
		f.buf.WriteString(full.String())

		res, err := f.close()
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Filenames returns the physical file paths this sink will produce, in
// order, for the manifest/CMake file list.
func (s *FileSink) Filenames() []string {
	out := make([]string, len(s.files))
	for i, f := range s.files {
		out[i] = f.path
	}
	return out
}
