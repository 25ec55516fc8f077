// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/u-root/u-root/pkg/cp"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/internal/manifest"
)

// DefaultDirMode is the mode of the release directory and every directory
// created while copying.
const DefaultDirMode fs.FileMode = 0o755

// Options controls Stage.
type Options struct {
	// DirMode is applied to created directories; zero means DefaultDirMode.
	DirMode fs.FileMode
	// WithXz adds the .tar.xz sibling to the existence preconditions.
	WithXz bool
	Logger *log.Logger
}

// CheckOutputs fails when the release directory or any archive this run
// would produce already exists.
func CheckOutputs(l Layout, withXz bool) error {
	for _, path := range l.Outputs(withXz) {
		if _, err := os.Lstat(path); err == nil {
			return issue.NewErrorContext().
				WithOperation("stage release").
				WithSuggestion("Re-run with -c to remove the previous release attempt").
				Wrap(&issue.PreconditionError{Condition: "already exists", Path: path}).
				BuildError()
		}
	}
	return nil
}

// Stage creates the release directory and copies every manifest entry from
// srcRoot into it, in manifest order. Nothing is cleaned up on failure.
func Stage(ctx context.Context, srcRoot string, l Layout, m *manifest.Manifest, opts Options) error {
	dirMode := opts.DirMode
	if dirMode == 0 {
		dirMode = DefaultDirMode
	}

	if err := CheckOutputs(l, opts.WithXz); err != nil {
		return err
	}

	dir := l.Dir()
	logf(opts.Logger, "Creating release directory", "dir", dir)
	if err := os.Mkdir(dir, dirMode); err != nil {
		return issue.WrapWithContext(err, "create release directory", dir)
	}
	// Mkdir is subject to the umask.
	if err := os.Chmod(dir, dirMode); err != nil {
		return issue.WrapWithContext(err, "set release directory mode", dir)
	}

	copier := cp.Options{NoFollowSymlinks: true}
	for _, e := range m.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := e.Path.Join(srcRoot)
		dst := e.Path.Join(dir)
		if err := mkdirParents(dir, filepath.Dir(dst), dirMode); err != nil {
			return issue.WrapWithContext(err, "create directory", filepath.Dir(dst))
		}
		if err := copier.Copy(src, dst); err != nil {
			return issue.NewErrorContext().
				WithOperation("copy manifest files").
				WithResource(e.Path.String()).
				WithSuggestion("Re-run with -c to clear the partial release directory").
				Wrap(err).
				BuildError()
		}
		if err := keepModTime(src, dst); err != nil {
			return issue.WrapWithContext(err, "preserve modification time", e.Path.String())
		}
	}
	logf(opts.Logger, "Copied manifest files", "count", len(m.Entries))

	return Verify(dir, m)
}

// mkdirParents creates dir and its missing parents below root with mode,
// independent of the umask.
func mkdirParents(root, dir string, mode fs.FileMode) error {
	var created []string
	for d := dir; d != root && d != "." && d != string(filepath.Separator); d = filepath.Dir(d) {
		if _, err := os.Lstat(d); err == nil {
			break
		}
		created = append(created, d)
	}
	slices.Reverse(created)
	for _, d := range created {
		if err := os.Mkdir(d, mode); err != nil && !os.IsExist(err) {
			return err
		}
		if err := os.Chmod(d, mode); err != nil {
			return err
		}
	}
	return nil
}

func keepModTime(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// Verify checks that the files under dir are exactly the manifest entries.
func Verify(dir string, m *manifest.Manifest) error {
	missing := m.Missing(dir)
	if len(missing) > 0 {
		return &issue.ValidationError{Problem: "listed in the manifest but not staged", Paths: missing}
	}
	extras, err := m.Extras(dir, nil)
	if err != nil {
		return fmt.Errorf("walking %s: %w", dir, err)
	}
	if len(extras) > 0 {
		return &issue.ValidationError{Problem: "staged but not listed in the manifest", Paths: extras}
	}
	return nil
}
