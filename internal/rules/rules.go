// Package rules implements exclusion matching for backup runs.
//
// A rule set is compiled once from a config section and shared read-only
// across traversal and copy workers. Each pattern is classified at compile
// time as either a literal name or a glob, so no pattern parsing happens on
// the per-entry match path.
package rules

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jtarrant/dirsnap/internal/errors"
)

// pattern is a single compiled exclusion pattern. The kind is decided once
// at compile time: names without glob metacharacters are exact literals.
type pattern struct {
	raw    string
	isGlob bool
}

func compilePattern(raw string) (pattern, error) {
	if !strings.ContainsAny(raw, "*?[\\{") {
		return pattern{raw: raw}, nil
	}
	if !doublestar.ValidatePattern(raw) {
		return pattern{}, errors.Wrapf(errors.ErrBadPattern, "%q", raw)
	}
	return pattern{raw: raw, isGlob: true}, nil
}

// match reports whether s matches the pattern. Matching is case-sensitive.
func (p pattern) match(s string) bool {
	if !p.isGlob {
		return p.raw == s
	}
	ok, err := doublestar.Match(p.raw, s)
	return err == nil && ok
}

// Set is an immutable compiled rule set for one config section.
type Set struct {
	section string
	names   []pattern
	exts    []pattern
}

// Compile builds a Set from the raw pattern lists of a config section.
//
// Name patterns match directory and file base names. Extension patterns
// match the file suffix without the dot; a conventional "*.ext" form is
// normalized to "ext" before classification. A malformed glob is a
// configuration error.
func Compile(section string, names, exts []string) (*Set, error) {
	s := &Set{section: section}

	for _, raw := range names {
		p, err := compilePattern(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "section %q, skip_folders_and_files", section)
		}
		s.names = append(s.names, p)
	}

	for _, raw := range exts {
		// "*.pyc" and "pyc" are the same rule.
		raw = strings.TrimPrefix(raw, "*.")
		p, err := compilePattern(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "section %q, skip_file_extensions", section)
		}
		s.exts = append(s.exts, p)
	}

	return s, nil
}

// Section returns the name of the config section this set was compiled from.
func (s *Set) Section() string {
	return s.section
}

// ShouldSkip reports whether the entry at path should be excluded from the
// backup. Only the base name and (for files) the extension participate in
// matching. The function is pure; rule evaluation does not depend on
// traversal order.
func (s *Set) ShouldSkip(path string, isDir bool) bool {
	name := filepath.Base(path)

	for _, p := range s.names {
		if p.match(name) {
			return true
		}
	}

	if isDir {
		return false
	}

	ext, ok := extension(name)
	if !ok {
		return false
	}
	for _, p := range s.exts {
		if p.match(ext) {
			return true
		}
	}

	return false
}

// extension returns the text after the final dot of name. Dotfiles like
// ".venv" have no extension: a leading dot marks a hidden name, not a suffix.
func extension(name string) (string, bool) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return "", false
	}
	return name[idx+1:], true
}
