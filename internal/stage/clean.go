// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/internal/runner"
)

// CleanOptions controls Clean.
type CleanOptions struct {
	// Build is the build-tree clean command, e.g. ["make", "distclean"].
	Build []string
	// BuildMarker names the file whose presence enables Build; empty always runs it.
	BuildMarker string
	// VCS is the version-control-aware clean command, e.g. ["git", "clean", "-dxf"].
	VCS    []string
	WithXz bool
	Logger *log.Logger
}

// Clean resets srcRoot with the configured clean commands and removes the
// release directory and archives of a previous run. Any failing command
// aborts the cleanup.
func Clean(ctx context.Context, r runner.Runner, srcRoot string, l Layout, opts CleanOptions) error {
	if len(opts.Build) > 0 {
		if opts.BuildMarker != "" && !exists(filepath.Join(srcRoot, opts.BuildMarker)) {
			logf(opts.Logger, "Skipping build clean", "missing", opts.BuildMarker)
		} else if err := runArgv(ctx, r, srcRoot, opts.Build, opts.Logger); err != nil {
			return err
		}
	}
	if len(opts.VCS) > 0 {
		if err := runArgv(ctx, r, srcRoot, opts.VCS, opts.Logger); err != nil {
			return err
		}
	}

	// The xz sibling is removed even without -x so a later -x run is not
	// blocked. The intermediate tar is left behind when compression fails.
	for _, path := range append(l.Outputs(true), l.Tar()) {
		if !exists(path) {
			continue
		}
		logf(opts.Logger, "Removing", "path", path)
		if err := removeAll(path); err != nil {
			return issue.WrapWithContext(err, "remove previous release output", path)
		}
	}
	return nil
}

func runArgv(ctx context.Context, r runner.Runner, dir string, argv []string, logger *log.Logger) error {
	cmd := runner.Command{Name: argv[0], Args: argv[1:], Dir: dir}
	logf(logger, "Cleaning work tree", "cmd", cmd.String())
	if _, err := runner.Check(ctx, r, cmd); err != nil {
		return issue.NewErrorContext().
			WithOperation("clean work tree").
			WithSuggestion("Fix the clean command or run it by hand, then re-run").
			Wrap(err).
			BuildError()
	}
	return nil
}

// removeAll deletes path, first granting owner write on directories so the
// read-only release tree cannot block removal.
func removeAll(path string) error {
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			if info, err := d.Info(); err == nil {
				_ = os.Chmod(p, info.Mode().Perm()|0o700)
			}
		}
		return nil
	})
	return os.RemoveAll(path)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func logf(logger *log.Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Info(msg, keyvals...)
	}
}
