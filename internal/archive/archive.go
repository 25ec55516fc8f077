// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/internal/runner"
	"github.com/invowk/makerel/internal/stage"
)

// sevenZipBanner is what 7z prints when it is the real 7-Zip.
var sevenZipBanner = []byte("7-Zip")

type (
	// Tools holds the argv prefix of each external program. The file
	// operands are appended by the Emitter.
	Tools struct {
		Tar      []string
		SevenZip []string
		Gzip     []string
		Advdef   []string
		Xz       []string
	}

	// Options controls Emit.
	Options struct {
		Tools Tools
		// WithXz also produces {reldir}.tar.xz.
		WithXz bool
		// Transcoded forces gzip even when 7z is installed.
		Transcoded bool
		Logger     *log.Logger
	}

	// Emitter runs the archive step for one release.
	Emitter struct {
		runner runner.Runner
		opts   Options
	}
)

// DefaultTools returns the stock command lines.
func DefaultTools() Tools {
	return Tools{
		Tar:      []string{"tar", "--format=ustar", "-cf"},
		SevenZip: []string{"7z", "a", "-tgzip", "-mx9", "-bd"},
		Gzip:     []string{"gzip", "--best", "--no-name", "--stdout"},
		Advdef:   []string{"advdef", "-z", "-4"},
		Xz:       []string{"xz", "-z", "-9e", "--stdout"},
	}
}

// Validate reports tools with an empty command line.
func (t Tools) Validate() error {
	tools := []struct {
		key  string
		argv []string
	}{
		{"archive.tar", t.Tar},
		{"archive.sevenzip", t.SevenZip},
		{"archive.gzip", t.Gzip},
		{"archive.advdef", t.Advdef},
		{"archive.xz", t.Xz},
	}
	for _, tool := range tools {
		if len(tool.argv) == 0 || tool.argv[0] == "" {
			return &issue.ConfigError{Source: tool.key, Reason: "command line is empty"}
		}
	}
	return nil
}

// New creates an Emitter.
func New(r runner.Runner, opts Options) *Emitter {
	return &Emitter{runner: r, opts: opts}
}

// Emit archives l.Dir() into {reldir}.tar.gz, and {reldir}.tar.xz when
// requested, then removes the intermediate tar. It returns the archives it
// created. Commands run in l.Root with relative operands so the archive
// members are rooted at the release directory name.
func (e *Emitter) Emit(ctx context.Context, l stage.Layout) ([]string, error) {
	tools := e.opts.Tools
	if err := tools.Validate(); err != nil {
		return nil, err
	}
	tarName := l.Name + ".tar"

	e.info("Creating tar archive", "file", tarName)
	if _, err := runner.Check(ctx, e.runner, e.command(tools.Tar, l.Root, tarName, l.Name)); err != nil {
		return nil, err
	}

	var created []string
	if err := e.gzip(ctx, l); err != nil {
		return nil, err
	}
	created = append(created, l.TarGz())

	if e.opts.WithXz {
		e.info("Compressing with xz", "file", filepath.Base(l.TarXz()))
		if err := e.toFile(ctx, tools.Xz, l.Root, tarName, l.TarXz()); err != nil {
			return nil, err
		}
		created = append(created, l.TarXz())
	}

	if err := os.Remove(l.Tar()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return created, issue.WrapWithContext(err, "remove intermediate tar", l.Tar())
	}
	return created, nil
}

func (e *Emitter) gzip(ctx context.Context, l stage.Layout) error {
	tools := e.opts.Tools
	tarName := l.Name + ".tar"
	gzName := filepath.Base(l.TarGz())

	if !e.opts.Transcoded && e.sevenZip(ctx) {
		e.info("Compressing with 7z", "file", gzName)
		_, err := runner.Check(ctx, e.runner, e.command(tools.SevenZip, l.Root, gzName, tarName))
		return err
	}

	e.info("Compressing with gzip", "file", gzName)
	if err := e.toFile(ctx, tools.Gzip, l.Root, tarName, l.TarGz()); err != nil {
		return err
	}
	if !runner.Available(e.runner, tools.Advdef[0]) {
		e.debug("advdef not found, keeping gzip output", "file", gzName)
		return nil
	}
	e.info("Recompressing with advdef", "file", gzName)
	_, err := runner.Check(ctx, e.runner, e.command(tools.Advdef, l.Root, gzName))
	return err
}

// sevenZip probes for a working 7-Zip. Any failure counts as absent.
func (e *Emitter) sevenZip(ctx context.Context) bool {
	name := e.opts.Tools.SevenZip[0]
	if !runner.Available(e.runner, name) {
		return false
	}
	res, err := e.runner.Run(ctx, runner.Command{Name: name})
	if err != nil {
		return false
	}
	return bytes.Contains(res.Output, sevenZipBanner)
}

// toFile runs argv with the given operand and redirects standard output
// into dst. A failed run leaves no partial dst behind.
func (e *Emitter) toFile(ctx context.Context, argv []string, dir, operand, dst string) (err error) {
	f, err := os.Create(dst)
	if err != nil {
		return issue.WrapWithContext(err, "create archive", dst)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = issue.WrapWithContext(cerr, "write archive", dst)
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	cmd := e.command(argv, dir, operand)
	cmd.Stdout = f
	_, err = runner.Check(ctx, e.runner, cmd)
	return err
}

func (e *Emitter) command(argv []string, dir string, operands ...string) runner.Command {
	args := make([]string, 0, len(argv)-1+len(operands))
	args = append(args, argv[1:]...)
	args = append(args, operands...)
	return runner.Command{Name: argv[0], Args: args, Dir: dir}
}

func (e *Emitter) info(msg string, kv ...any) {
	if e.opts.Logger != nil {
		e.opts.Logger.Info(msg, kv...)
	}
}

func (e *Emitter) debug(msg string, kv ...any) {
	if e.opts.Logger != nil {
		e.opts.Logger.Debug(msg, kv...)
	}
}
