// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidFilesystemPath is the sentinel error wrapped by InvalidFilesystemPathError.
	ErrInvalidFilesystemPath = errors.New("invalid filesystem path")
	// ErrEscapingPath is the sentinel error wrapped by EscapingPathError.
	ErrEscapingPath = errors.New("path escapes its root")
)

type (
	// FilesystemPath represents an absolute or relative filesystem path.
	// A valid path must be non-empty and not whitespace-only.
	FilesystemPath string

	// RelativePath is a slash-separated path inside a release tree.
	// It must be valid as a FilesystemPath, must not be absolute and
	// must not climb out of its root with "..".
	RelativePath string

	// InvalidFilesystemPathError is returned when a FilesystemPath value is
	// empty or whitespace-only.
	InvalidFilesystemPathError struct {
		Value FilesystemPath
	}

	// EscapingPathError is returned when a RelativePath is absolute or
	// resolves outside its root.
	EscapingPathError struct {
		Value RelativePath
	}
)

// String returns the string representation of the FilesystemPath.
func (p FilesystemPath) String() string { return string(p) }

// Validate returns an error if the path is empty or whitespace-only.
func (p FilesystemPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidFilesystemPathError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidFilesystemPathError.
func (e *InvalidFilesystemPathError) Error() string {
	return fmt.Sprintf("invalid filesystem path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidFilesystemPath for errors.Is() compatibility.
func (e *InvalidFilesystemPathError) Unwrap() error { return ErrInvalidFilesystemPath }

// String returns the string representation of the RelativePath.
func (p RelativePath) String() string { return string(p) }

// Validate reports whether the path stays inside the directory it is joined to.
func (p RelativePath) Validate() error {
	if err := FilesystemPath(p).Validate(); err != nil {
		return err
	}
	s := string(p)
	if strings.HasPrefix(s, "/") || filepath.IsAbs(s) {
		return &EscapingPathError{Value: p}
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(s)))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return &EscapingPathError{Value: p}
	}
	return nil
}

// Join returns the native path of p under root.
func (p RelativePath) Join(root string) string {
	return filepath.Join(root, filepath.FromSlash(string(p)))
}

// Error implements the error interface for EscapingPathError.
func (e *EscapingPathError) Error() string {
	return fmt.Sprintf("path %q must stay inside the release tree", e.Value)
}

// Unwrap returns ErrEscapingPath for errors.Is() compatibility.
func (e *EscapingPathError) Unwrap() error { return ErrEscapingPath }
