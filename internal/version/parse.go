// SPDX-License-Identifier: MPL-2.0

package version

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/invowk/makerel/internal/issue"
)

type (
	// Options names the directives Parse looks for.
	Options struct {
		RevisionDefine   string
		VersionDefine    string
		SubversionDefine string
		// UncommittedMarker is the tag (or macro) that flags a dirty work tree.
		// Rows mentioning it are never turned into suffix tags.
		UncommittedMarker string
	}

	// header is the parsed shape of the version header.
	header struct {
		defines map[string]string
		patches []string
	}
)

var (
	defineRe = regexp.MustCompile(`^#\s*define\s+(\w+)(?:\s+(.*))?$`)
	tagRe    = regexp.MustCompile(`^,?\s*"(\w+)`)
	nullRe   = regexp.MustCompile(`^,?\s*NULL\b`)
	intRe    = regexp.MustCompile(`^\d+`)
)

// DefaultOptions matches the layout of perl's patchlevel.h.
func DefaultOptions() Options {
	return Options{
		RevisionDefine:    "PERL_REVISION",
		VersionDefine:     "PERL_VERSION",
		SubversionDefine:  "PERL_SUBVERSION",
		UncommittedMarker: "uncommitted-changes",
	}
}

// ParseFile reads and parses the header at path.
func ParseFile(path string, opts Options) (Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return Identity{}, &issue.PreconditionError{Condition: "version header is not readable", Path: path}
	}
	defer func() { _ = f.Close() }()

	id, err := Parse(f, opts)
	if err != nil {
		var ce *issue.ConfigError
		if errors.As(err, &ce) && ce.Source == "" {
			ce.Source = path
		}
		return Identity{}, err
	}
	return id, nil
}

// Parse derives an Identity from header text.
func Parse(r io.Reader, opts Options) (Identity, error) {
	h, err := scan(r, opts.UncommittedMarker)
	if err != nil {
		return Identity{}, &issue.ConfigError{Reason: "reading version header", Err: err}
	}

	rev, hasRev := h.integer(opts.RevisionDefine)
	ver, hasVer := h.integer(opts.VersionDefine)
	sub, hasSub := h.integer(opts.SubversionDefine)
	if !hasRev && !hasVer && !hasSub {
		return Identity{}, &issue.ConfigError{Reason: "no version definitions found"}
	}
	if !hasSub {
		return Identity{}, &issue.ConfigError{Reason: fmt.Sprintf("%s is not defined", opts.SubversionDefine)}
	}

	return Identity{
		Revision:     rev,
		Version:      ver,
		Subversion:   sub,
		LocalPatches: h.patches,
	}, nil
}

func scan(r io.Reader, marker string) (*header, error) {
	h := &header{defines: make(map[string]string)}
	inPatches := false

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if inPatches {
			if strings.HasPrefix(trimmed, "};") {
				inPatches = false
				continue
			}
			if tag, ok := patchTag(trimmed, marker); ok {
				h.patches = append(h.patches, tag)
			}
			continue
		}

		if strings.HasPrefix(line, "static") && strings.Contains(line, "local_patches") {
			inPatches = true
			continue
		}

		if m := defineRe.FindStringSubmatch(trimmed); m != nil {
			h.defines[m[1]] = stripComment(m[2])
		}
	}
	return h, sc.Err()
}

// patchTag extracts the tag of one local_patches row.
func patchTag(row, marker string) (string, bool) {
	if nullRe.MatchString(row) {
		return "", false
	}
	if marker != "" && strings.Contains(row, marker) {
		return "", false
	}
	m := tagRe.FindStringSubmatch(row)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func stripComment(v string) string {
	if i := strings.Index(v, "/*"); i >= 0 {
		v = v[:i]
	}
	if i := strings.Index(v, "//"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

func (h *header) integer(name string) (int, bool) {
	v, ok := h.defines[name]
	if !ok {
		return 0, false
	}
	digits := intRe.FindString(v)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
