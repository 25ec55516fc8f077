// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/invowk/makerel/internal/archive"
	"github.com/invowk/makerel/internal/config"
	"github.com/invowk/makerel/internal/digest"
	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/internal/manifest"
	"github.com/invowk/makerel/internal/perms"
	"github.com/invowk/makerel/internal/platform"
	"github.com/invowk/makerel/internal/runner"
	"github.com/invowk/makerel/internal/stage"
	"github.com/invowk/makerel/internal/transcode"
	"github.com/invowk/makerel/internal/version"
)

type (
	// Options are the per-run choices, mostly taken from the command line.
	Options struct {
		// SourceRoot is the tree being released; empty means the working directory.
		SourceRoot string
		// OutputRoot receives the release directory and archives.
		OutputRoot string
		// Suffix, when non-nil, replaces the suffix derived from local patches.
		Suffix    *string
		WithXz    bool
		NoArchive bool
		Clean     bool
		EBCDIC    bool

		Config *config.Config
		Runner runner.Runner
		Logger *log.Logger
		// Stdout receives the digest lines.
		Stdout io.Writer
		// Charset reports the native character set; nil uses the process locale.
		Charset func() platform.Charset
	}

	// Result describes a finished run.
	Result struct {
		Identity version.Identity
		Layout   stage.Layout
		// Extras are source files the manifest does not list.
		Extras     []string
		Transcoded transcode.Stats
		Archives   []string
		Artifacts  []digest.Artifact
	}

	// pipeline carries resolved inputs between stages.
	pipeline struct {
		opts   Options
		cfg    *config.Config
		src    string
		logger *log.Logger
		tables *transcode.Tables
		exec   []string
	}
)

// Run executes the release pipeline.
func Run(ctx context.Context, opts Options) (*Result, error) {
	p, err := newPipeline(opts)
	if err != nil {
		return nil, err
	}
	if err := p.checkInputs(); err != nil {
		return nil, err
	}

	res := &Result{}

	res.Identity, err = version.ParseFile(p.input(p.cfg.Inputs.VersionFile), version.Options{
		RevisionDefine:    p.cfg.Version.RevisionDefine,
		VersionDefine:     p.cfg.Version.VersionDefine,
		SubversionDefine:  p.cfg.Version.SubversionDefine,
		UncommittedMarker: p.cfg.Version.UncommittedMarker,
	})
	if err != nil {
		return nil, err
	}
	res.Layout = stage.Layout{
		Root: p.opts.OutputRoot,
		Name: res.Identity.ReleaseName(p.cfg.Name, p.opts.Suffix),
	}
	p.logger.Info("Building release", "version", res.Identity.String(), "dir", res.Layout.Dir())

	if p.opts.Clean {
		err := stage.Clean(ctx, p.opts.Runner, p.src, res.Layout, stage.CleanOptions{
			Build:       p.cfg.Clean.Build,
			BuildMarker: p.cfg.Clean.BuildMarker,
			VCS:         p.cfg.Clean.VCS,
			WithXz:      p.opts.WithXz,
			Logger:      p.logger,
		})
		if err != nil {
			return nil, err
		}
	}

	m, err := p.validateManifest(res)
	if err != nil {
		return nil, err
	}

	err = stage.Stage(ctx, p.src, res.Layout, m, stage.Options{
		DirMode: p.cfg.Permissions.DirMode.FileMode(),
		WithXz:  p.opts.WithXz,
		Logger:  p.logger,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Setting file permissions")
	err = perms.Normalize(res.Layout.Dir(), perms.Options{
		FileMode:   p.cfg.Permissions.FileMode.FileMode(),
		DirMode:    p.cfg.Permissions.DirMode.FileMode(),
		Executable: p.exec,
		Writable:   p.cfg.Permissions.Writable,
		Logger:     p.logger,
	})
	if err != nil {
		return nil, err
	}

	if p.opts.EBCDIC {
		if res.Transcoded, err = p.transcode(ctx, res.Layout, m); err != nil {
			return nil, err
		}
	}

	if !p.opts.NoArchive {
		emitter := archive.New(p.opts.Runner, archive.Options{
			Tools: archive.Tools{
				Tar:      p.cfg.Archive.Tar,
				SevenZip: p.cfg.Archive.SevenZip,
				Gzip:     p.cfg.Archive.Gzip,
				Advdef:   p.cfg.Archive.Advdef,
				Xz:       p.cfg.Archive.Xz,
			},
			WithXz:     p.opts.WithXz,
			Transcoded: p.opts.EBCDIC,
			Logger:     p.logger,
		})
		if res.Archives, err = emitter.Emit(ctx, res.Layout); err != nil {
			return nil, err
		}
	}
	p.warnStale(res)

	res.Artifacts, err = digest.Report(p.opts.Stdout, res.Archives)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// warnStale logs archives next to the release directory that this run did
// not produce. They get no digest line.
func (p *pipeline) warnStale(res *Result) {
	found, err := digest.Archives(res.Layout.Dir())
	if err != nil {
		return
	}
	for _, path := range found {
		if !slices.Contains(res.Archives, path) {
			p.logger.Warn("Ignoring archive from an earlier run", "file", filepath.Base(path))
		}
	}
}

func newPipeline(opts Options) (*pipeline, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Runner == nil {
		return nil, errors.New("release: no runner configured")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.OutputRoot == "" {
		opts.OutputRoot = ".."
	}
	if opts.Charset == nil {
		opts.Charset = platform.NativeCharset
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	src := opts.SourceRoot
	if src == "" {
		src = "."
	}
	// Commands run in the output root; keep the source path valid there.
	abs, err := filepath.Abs(src)
	if err != nil {
		return nil, issue.WrapWithContext(err, "resolve source root", src)
	}
	return &pipeline{opts: opts, cfg: opts.Config, src: abs, logger: logger}, nil
}

func (p *pipeline) input(rel string) string {
	return filepath.Join(p.src, filepath.FromSlash(rel))
}

// checkInputs verifies everything that can fail before the first side
// effect: required input files, the exec list and, with EBCDIC, the host
// character set and code page.
func (p *pipeline) checkInputs() error {
	for _, rel := range []string{p.cfg.Inputs.Manifest, p.cfg.Inputs.VersionFile, p.cfg.Inputs.ExecList} {
		if _, err := os.Stat(p.input(rel)); err != nil {
			return issue.NewErrorContext().
				WithOperation("find release inputs").
				WithSuggestion("Run makerel from the top of the source tree").
				Wrap(&issue.PreconditionError{Condition: "not found; makerel must be run from the source root", Path: rel}).
				BuildError()
		}
	}

	exec, err := perms.ReadExecList(p.input(p.cfg.Inputs.ExecList))
	if err != nil {
		return err
	}
	p.exec = exec

	if !p.opts.EBCDIC {
		return nil
	}
	cs := p.opts.Charset()
	if !cs.Known {
		p.logger.Warn("Cannot determine the native character set, assuming ASCII", "charset", cs.Name)
	}
	if err := cs.RequireASCII(); err != nil {
		return err
	}
	p.tables, err = transcode.NewTables(p.cfg.Transcode.CodePage)
	return err
}

func (p *pipeline) validateManifest(res *Result) (*manifest.Manifest, error) {
	m, err := manifest.ReadFile(p.input(p.cfg.Inputs.Manifest))
	if err != nil {
		return nil, err
	}
	p.logger.Info("Checking manifest", "entries", len(m.Entries))
	if err := m.Validate(p.src); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate manifest").
			WithSuggestion("Restore the files or remove them from " + p.cfg.Inputs.Manifest).
			Wrap(err).
			BuildError()
	}

	var skip *manifest.SkipList
	if p.cfg.Inputs.SkipFile != "" {
		if skip, err = manifest.ReadSkipFile(p.input(p.cfg.Inputs.SkipFile)); err != nil {
			return nil, &issue.ConfigError{Source: p.cfg.Inputs.SkipFile, Err: err}
		}
	}
	extras, err := m.Extras(p.src, skip)
	if err != nil {
		return nil, issue.WrapWithContext(err, "list files missing from the manifest", p.src)
	}
	for _, rel := range extras {
		p.logger.Warn("Not in manifest", "file", rel)
	}
	res.Extras = extras

	paths := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		paths[i] = e.Path.String()
	}
	for _, rel := range platform.NonPortablePaths(paths) {
		p.logger.Warn("Path cannot be extracted on Windows", "file", rel)
	}
	return m, nil
}

// transcode rewrites the staged tree in the order of the staged manifest.
// A manifest that does not list itself falls back to the source order.
func (p *pipeline) transcode(ctx context.Context, l stage.Layout, src *manifest.Manifest) (transcode.Stats, error) {
	m := src
	staged := filepath.Join(l.Dir(), filepath.FromSlash(p.cfg.Inputs.Manifest))
	if _, err := os.Stat(staged); err == nil {
		if m, err = manifest.ReadFile(staged); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, issue.WrapWithContext(err, "read staged manifest", staged)
	}

	paths := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		paths[i] = e.Path.String()
	}
	p.logger.Info("Converting to EBCDIC", "codepage", p.tables.CodePage)
	return transcode.New(p.tables, p.logger).Tree(ctx, l.Dir(), paths)
}
