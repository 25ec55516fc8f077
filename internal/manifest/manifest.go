// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/pkg/types"
)

type (
	// Entry is one manifest line.
	Entry struct {
		Path        types.RelativePath
		Description string
	}

	// Manifest is the ordered list of release files.
	Manifest struct {
		Entries []Entry
	}

	// SkipList holds the regular expressions of a manifest skip file.
	// A tree file matching any of them is not expected in the manifest.
	SkipList struct {
		patterns []*regexp.Regexp
	}
)

// Parse reads manifest lines from r. Blank lines are ignored. A path may be
// single-quoted when it contains whitespace; \\ and \' escape inside quotes.
func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	seen := make(map[types.RelativePath]int)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		path, desc, err := splitLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rel := types.RelativePath(path)
		if err := rel.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if first, dup := seen[rel]; dup {
			return nil, fmt.Errorf("line %d: %q already listed on line %d", lineNo, path, first)
		}
		seen[rel] = lineNo
		m.Entries = append(m.Entries, Entry{Path: rel, Description: desc})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadFile parses the manifest at path.
func ReadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &issue.PreconditionError{Condition: "manifest is not readable", Path: path}
	}
	defer func() { _ = f.Close() }()

	m, err := Parse(f)
	if err != nil {
		return nil, &issue.ConfigError{Source: path, Reason: "malformed manifest", Err: err}
	}
	return m, nil
}

func splitLine(line string) (path, desc string, err error) {
	if !strings.HasPrefix(line, "'") {
		fields := strings.Fields(line)
		path = fields[0]
		desc = strings.TrimSpace(strings.TrimPrefix(strings.TrimLeft(line, " \t"), path))
		return path, desc, nil
	}

	var b strings.Builder
	for i := 1; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line) && (line[i+1] == '\\' || line[i+1] == '\''):
			i++
			b.WriteByte(line[i])
		case c == '\'':
			return b.String(), strings.TrimSpace(line[i+1:]), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", "", fmt.Errorf("unterminated quoted path %q", line)
}

// Paths returns the entry paths in manifest order.
func (m *Manifest) Paths() []types.RelativePath {
	paths := make([]types.RelativePath, len(m.Entries))
	for i, e := range m.Entries {
		paths[i] = e.Path
	}
	return paths
}

// Set returns the entry paths as a lookup set of slash-separated strings.
func (m *Manifest) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(m.Entries))
	for _, e := range m.Entries {
		set[filepath.ToSlash(filepath.Clean(filepath.FromSlash(e.Path.String())))] = struct{}{}
	}
	return set
}

// Missing returns the manifest paths that do not exist under root, in
// manifest order. An empty result means every listed file is present.
func (m *Manifest) Missing(root string) []string {
	var missing []string
	for _, e := range m.Entries {
		if _, err := os.Lstat(e.Path.Join(root)); err != nil {
			missing = append(missing, e.Path.String())
		}
	}
	return missing
}

// Validate returns a ValidationError naming every missing path.
func (m *Manifest) Validate(root string) error {
	missing := m.Missing(root)
	if len(missing) == 0 {
		return nil
	}
	return &issue.ValidationError{Problem: "listed in the manifest but missing", Paths: missing}
}

// Extras walks root and returns regular files that the manifest does not list
// and skip does not exclude, sorted. Version control metadata is never reported.
func (m *Manifest) Extras(root string, skip *SkipList) ([]string, error) {
	listed := m.Set()
	extra := make(map[string]struct{})

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := listed[rel]; ok {
			return nil
		}
		if skip.Match(rel) {
			return nil
		}
		extra[rel] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	keys := maps.Keys(extra)
	slices.Sort(keys)
	return keys, nil
}

// ParseSkip reads a skip file: one regular expression per line, blank lines
// and lines starting with '#' ignored.
func ParseSkip(r io.Reader) (*SkipList, error) {
	s := &SkipList{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return nil, fmt.Errorf("skip pattern %q: %w", line, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, sc.Err()
}

// ReadSkipFile parses the skip file at path. A missing file yields an empty list.
func ReadSkipFile(path string) (*SkipList, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &SkipList{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseSkip(f)
}

// Match reports whether rel is excluded. A nil list excludes nothing.
func (s *SkipList) Match(rel string) bool {
	if s == nil {
		return false
	}
	for _, re := range s.patterns {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}
