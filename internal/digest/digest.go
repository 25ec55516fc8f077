// SPDX-License-Identifier: MPL-2.0

package digest

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/pkg/types"
)

var (
	// ErrChecksumMismatch indicates the computed SHA-256 does not match the expected one.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// errNoValidEntries indicates the checksums input contained no parseable entries.
	errNoValidEntries = errors.New("no valid checksum entries found")
)

type (
	// Artifact is one archive and its hex-encoded SHA-256.
	Artifact struct {
		Path   string
		Digest string
	}

	// ChecksumError provides details about a checksum verification failure.
	// It wraps ErrChecksumMismatch so callers can use errors.Is for classification.
	ChecksumError struct {
		Filename string
		Expected string
		Got      string
	}
)

// Error returns a human-readable description of the checksum mismatch.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// Line renders a in sha256sum format using the base name of its path.
func (a Artifact) Line() string {
	return a.Digest + "  " + filepath.Base(a.Path)
}

// Archives returns the archives of release directory dir ({dir}.tar.*),
// sorted by name.
func Archives(dir string) ([]string, error) {
	matches, err := filepath.Glob(escapeGlob(dir) + ".tar.*")
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Compute hashes paths in the given order.
func Compute(paths []string) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, len(paths))
	for _, p := range paths {
		sum, err := ComputeFileHash(p)
		if err != nil {
			return nil, issue.WrapWithContext(err, "compute checksum", p)
		}
		artifacts = append(artifacts, Artifact{Path: p, Digest: sum})
	}
	return artifacts, nil
}

// Report computes the checksums of paths and writes one line per archive
// to w.
func Report(w io.Writer, paths []string) ([]Artifact, error) {
	artifacts, err := Compute(paths)
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		if _, err := fmt.Fprintln(w, a.Line()); err != nil {
			return nil, err
		}
	}
	return artifacts, nil
}

// ParseChecksums parses sha256sum output. Empty lines and lines that don't
// match the expected format are skipped; no valid entry at all is an error.
// The returned artifacts carry the listed file name as Path.
func ParseChecksums(r io.Reader) ([]Artifact, error) {
	var entries []Artifact

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// The sha256sum format uses exactly two spaces between hash and filename.
		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 {
			continue
		}

		hash := parts[0]
		filename := strings.TrimSpace(parts[1])
		if filename == "" || !isValidHexHash(hash) {
			continue
		}

		entries = append(entries, Artifact{Path: filename, Digest: strings.ToLower(hash)})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}
	if len(entries) == 0 {
		return nil, errNoValidEntries
	}
	return entries, nil
}

// VerifyFile computes the SHA-256 of the file at path and compares it with
// expectedHash, case-insensitively.
func VerifyFile(path, expectedHash string) error {
	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, expectedHash) {
		return &ChecksumError{
			Filename: path,
			Expected: strings.ToLower(expectedHash),
			Got:      got,
		}
	}
	return nil
}

// Verify checks every entry of a sha256sum listing against the files in
// dir. All mismatches are reported together.
func Verify(dir string, r io.Reader) ([]Artifact, error) {
	entries, err := ParseChecksums(r)
	if err != nil {
		return nil, &issue.ConfigError{Source: "checksums", Err: err}
	}

	var errs []error
	for i, e := range entries {
		rel := types.RelativePath(e.Path)
		if err := rel.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		path := rel.Join(dir)
		if err := VerifyFile(path, e.Digest); err != nil {
			errs = append(errs, err)
			continue
		}
		entries[i].Path = path
	}
	return entries, errors.Join(errs...)
}

// ComputeFileHash returns the lowercase hex SHA-256 of the file at path,
// streaming its contents.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		// Read-only handle.
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
