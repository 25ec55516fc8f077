// SPDX-License-Identifier: MPL-2.0

// Package perms normalizes permissions in a staged release tree.
package perms

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/pkg/types"
)

const (
	// DefaultFileMode locks every regular file read-only.
	DefaultFileMode fs.FileMode = 0o444
	// DefaultDirMode keeps directories traversable.
	DefaultDirMode  fs.FileMode = 0o755

	execBits   fs.FileMode = 0o111
	ownerWrite fs.FileMode = 0o200
)

// Options controls Normalize.
type Options struct {
	FileMode fs.FileMode
	DirMode  fs.FileMode
	// Executable holds doublestar patterns, relative to the tree root, of
	// files that get execute permission.
	Executable []string
	// Writable lists files that keep owner write after the lockdown because
	// regeneration tools rewrite them in place.
	Writable []string
	Logger   *log.Logger
}

// Normalize applies, in order: FileMode to regular files, DirMode to
// directories, execute bits to Executable matches, owner write to Writable.
// The last two steps run after the lockdown so it cannot clobber them.
func Normalize(root string, opts Options) error {
	if opts.FileMode == 0 {
		opts.FileMode = DefaultFileMode
	}
	if opts.DirMode == 0 {
		opts.DirMode = DefaultDirMode
	}

	if err := lockDown(root, opts.FileMode, opts.DirMode); err != nil {
		return issue.WrapWithContext(err, "set release permissions", root)
	}
	if err := addExecutable(root, opts.Executable, opts.Logger); err != nil {
		return err
	}
	return restoreWritable(root, opts.Writable, opts.Logger)
}

func lockDown(root string, fileMode, dirMode fs.FileMode) error {
	// Directories are visited before their contents, so a read-only DirMode
	// would still be applied after the walk has descended.
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			dirs = append(dirs, path)
			return os.Chmod(path, dirMode|0o700)
		case d.Type().IsRegular():
			return os.Chmod(path, fileMode)
		default:
			return nil
		}
	})
	if err != nil {
		return err
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i], dirMode); err != nil {
			return err
		}
	}
	return nil
}

func addExecutable(root string, patterns []string, logger *log.Logger) error {
	fsys := os.DirFS(root)
	var unmatched []string

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return &issue.ConfigError{Source: "exec list", Reason: fmt.Sprintf("invalid pattern %q", pattern)}
		}
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return issue.WrapWithContext(err, "expand executable pattern", pattern)
		}

		marked := 0
		for _, rel := range matches {
			path := filepath.Join(root, filepath.FromSlash(rel))
			info, err := os.Lstat(path)
			if err != nil {
				return issue.WrapWithContext(err, "set executable bit", rel)
			}
			if !info.Mode().IsRegular() {
				continue
			}
			if err := os.Chmod(path, info.Mode().Perm()|execBits); err != nil {
				return issue.WrapWithContext(err, "set executable bit", rel)
			}
			marked++
		}

		if marked > 0 {
			continue
		}
		if isLiteral(pattern) {
			unmatched = append(unmatched, pattern)
		} else if logger != nil {
			logger.Warn("Executable pattern matched nothing", "pattern", pattern)
		}
	}

	if len(unmatched) > 0 {
		return &issue.ValidationError{Problem: "listed as executable but not in the release", Paths: unmatched}
	}
	return nil
}

func restoreWritable(root string, allow []string, logger *log.Logger) error {
	for _, rel := range allow {
		rp := types.RelativePath(rel)
		if err := rp.Validate(); err != nil {
			return &issue.ConfigError{Source: "writable allowlist", Err: err}
		}
		path := rp.Join(root)

		info, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return issue.NewErrorContext().
				WithOperation("restore write permission").
				WithSuggestion("Remove it from permissions.writable or restore the file in the manifest").
				Wrap(&issue.PreconditionError{
					Condition: "is on the writable allowlist but no longer exists in this tree",
					Path:      rel,
				}).
				BuildError()
		}
		if err != nil {
			return issue.WrapWithContext(err, "inspect writable file", rel)
		}
		if !info.Mode().IsRegular() {
			if logger != nil {
				logger.Warn("Writable entry is not a regular file, leaving it alone", "file", rel)
			}
			continue
		}
		if err := os.Chmod(path, info.Mode().Perm()|ownerWrite); err != nil {
			return issue.NewErrorContext().
				WithOperation("restore write permission").
				WithResource(rel).
				WithSuggestion("The file exists; check ownership of the release tree").
				Wrap(fmt.Errorf("chmod u+w failed: %w", err)).
				BuildError()
		}
		if logger != nil {
			logger.Debug("Restored write permission", "file", rel)
		}
	}
	return nil
}

func isLiteral(pattern string) bool {
	return !strings.ContainsAny(pattern, `*?[{\`)
}

// ParseExecList reads executable patterns: first field of each line, blank
// lines and '#' comments ignored.
func ParseExecList(r io.Reader) ([]string, error) {
	var patterns []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.Fields(line)[0])
	}
	return patterns, sc.Err()
}

// ReadExecList parses the exec list at path.
func ReadExecList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &issue.PreconditionError{Condition: "exec list is not readable", Path: path}
	}
	defer func() { _ = f.Close() }()
	return ParseExecList(f)
}
