// SPDX-License-Identifier: MPL-2.0

package release

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/invowk/makerel/internal/config"
	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/internal/platform"
	"github.com/invowk/makerel/internal/runner"
	"github.com/invowk/makerel/internal/runner/runnertest"
	"github.com/invowk/makerel/internal/testutil"
)

type fixture struct {
	src    string
	out    string
	fake   *runnertest.Fake
	stdout *bytes.Buffer
	cfg    *config.Config
}

func newFixture(t *testing.T, tags ...string) *fixture {
	t.Helper()
	base := t.TempDir()
	f := &fixture{
		src:    filepath.Join(base, "perl"),
		out:    filepath.Join(base, "out"),
		stdout: &bytes.Buffer{},
		cfg:    config.DefaultConfig(),
	}
	testutil.SourceTree(t, f.src, testutil.PatchlevelH(5, 40, 0, tags...), nil)
	testutil.MustMkdirAll(t, f.out, 0o755)
	testutil.MakeWritable(t, f.out)
	f.cfg.Permissions.Writable = []string{"warnings.h"}

	marker := func(data string) runnertest.Handler {
		return func(cmd runner.Command) (*runner.Result, error) {
			_, err := cmd.Stdout.Write([]byte(data))
			return &runner.Result{}, err
		}
	}
	f.fake = runnertest.New().
		Missing("7z").
		Handle("tar", func(cmd runner.Command) (*runner.Result, error) {
			out := filepath.Join(cmd.Dir, cmd.Args[len(cmd.Args)-2])
			return &runner.Result{}, os.WriteFile(out, []byte("tar"), 0o644)
		}).
		Handle("gzip", marker("gzip data")).
		Handle("xz", marker("xz data"))
	return f
}

func (f *fixture) options() Options {
	return Options{
		SourceRoot: f.src,
		OutputRoot: f.out,
		Config:     f.cfg,
		Runner:     f.fake,
		Stdout:     f.stdout,
		Charset: func() platform.Charset {
			return platform.Charset{Name: "UTF-8", Known: true, ASCIICompatible: true}
		},
	}
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "foo", "bar")
	opts := f.options()
	opts.WithXz = true

	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Layout.Name != "perl-5.40.0-foo-bar" {
		t.Errorf("release name = %q, want perl-5.40.0-foo-bar", res.Layout.Name)
	}
	if want := []string{"tar", "gzip", "advdef", "xz"}; !reflect.DeepEqual(f.fake.Names(), want) {
		t.Errorf("commands = %v, want %v", f.fake.Names(), want)
	}

	want := sha("gzip data") + "  perl-5.40.0-foo-bar.tar.gz\n" +
		sha("xz data") + "  perl-5.40.0-foo-bar.tar.xz\n"
	if f.stdout.String() != want {
		t.Errorf("digest output = %q, want %q", f.stdout.String(), want)
	}
	if len(res.Artifacts) != 2 {
		t.Errorf("artifacts = %v", res.Artifacts)
	}

	dir := res.Layout.Dir()
	for rel, mode := range map[string]os.FileMode{
		"perl.c":             0o444,
		"Configure":          0o555,
		"Porting/makerel.pl": 0o555,
		"warnings.h":         0o644,
		"lib":                0o755,
	} {
		if got := testutil.MustMode(t, dir, rel); got != mode {
			t.Errorf("%s: mode = %04o, want %04o", rel, got, mode)
		}
	}
	if _, err := os.Stat(res.Layout.Tar()); !os.IsNotExist(err) {
		t.Error("intermediate tar should be removed")
	}
}

func TestRun_NoArchive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	opts := f.options()
	opts.NoArchive = true

	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.fake.Calls()) != 0 {
		t.Errorf("no external command should run, got %v", f.fake.Names())
	}
	if f.stdout.Len() != 0 || len(res.Artifacts) != 0 {
		t.Errorf("no digests expected, got %q", f.stdout.String())
	}
	if _, err := os.Stat(filepath.Join(f.out, "perl-5.40.0", "perl.c")); err != nil {
		t.Errorf("staged tree missing: %v", err)
	}
}

func TestRun_StaleArchiveGetsNoDigest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.MustWriteFile(t, f.out, "perl-5.40.0.tar.xz", []byte("from an earlier -x run"))

	opts := f.options()
	opts.NoArchive = true
	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run(-n) error = %v", err)
	}
	if f.stdout.Len() != 0 {
		t.Errorf("-n printed digests: %q", f.stdout.String())
	}

	g := newFixture(t)
	testutil.MustWriteFile(t, g.out, "perl-5.40.0.tar.xz", []byte("from an earlier -x run"))
	res, err := Run(context.Background(), g.options())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := sha("gzip data") + "  perl-5.40.0.tar.gz\n"; g.stdout.String() != want {
		t.Errorf("digest output = %q, want %q", g.stdout.String(), want)
	}
	if len(res.Artifacts) != 1 {
		t.Errorf("artifacts = %v", res.Artifacts)
	}
}

func TestRun_SuffixOverride(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "foo")
	opts := f.options()
	opts.NoArchive = true
	empty := ""
	opts.Suffix = &empty

	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Layout.Name != "perl-5.40.0" {
		t.Errorf("release name = %q, want perl-5.40.0", res.Layout.Name)
	}
}

func TestRun_ExistingOutputNeedsClean(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.MustWriteFile(t, f.out, "perl-5.40.0/stale.txt", []byte("old"))

	_, err := Run(context.Background(), f.options())
	if !errors.Is(err, issue.ErrPrecondition) {
		t.Fatalf("Run() error = %v, want ErrPrecondition", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || !ae.HasSuggestions() {
		t.Error("precondition failure should suggest --clean")
	}

	opts := f.options()
	opts.Clean = true
	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run(clean) error = %v", err)
	}
	names := f.fake.Names()
	if names[0] != "git" {
		t.Errorf("first command = %q, want the VCS clean", names[0])
	}
	if _, err := os.Stat(filepath.Join(f.out, "perl-5.40.0", "stale.txt")); !os.IsNotExist(err) {
		t.Error("stale release directory was not removed")
	}
}

func TestRun_Failures(t *testing.T) {
	t.Parallel()

	t.Run("missing input", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		if err := os.Remove(filepath.Join(f.src, "patchlevel.h")); err != nil {
			t.Fatal(err)
		}
		_, err := Run(context.Background(), f.options())
		var pe *issue.PreconditionError
		if !errors.As(err, &pe) || pe.Path != "patchlevel.h" {
			t.Fatalf("Run() error = %v, want PreconditionError for patchlevel.h", err)
		}
		if !strings.Contains(err.Error(), "source root") {
			t.Errorf("error should mention the source root, got %q", err.Error())
		}
	})

	t.Run("manifest lists a missing file", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		if err := os.Remove(filepath.Join(f.src, "perl.c")); err != nil {
			t.Fatal(err)
		}
		_, err := Run(context.Background(), f.options())
		var ve *issue.ValidationError
		if !errors.As(err, &ve) || !reflect.DeepEqual(ve.Paths, []string{"perl.c"}) {
			t.Fatalf("Run() error = %v, want ValidationError for perl.c", err)
		}
		if _, err := os.Stat(filepath.Join(f.out, "perl-5.40.0")); !os.IsNotExist(err) {
			t.Error("release directory must not be created")
		}
	})

	t.Run("archiver failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.fake.Exit("gzip", 1, "gzip: stdout: No space left on device")
		_, err := Run(context.Background(), f.options())
		if !errors.Is(err, issue.ErrExternalTool) {
			t.Fatalf("Run() error = %v, want ErrExternalTool", err)
		}
		if f.stdout.Len() != 0 {
			t.Error("no digest should be printed after a failure")
		}
	})
}

func TestRun_EBCDIC(t *testing.T) {
	t.Parallel()

	t.Run("transcodes and avoids 7z", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.fake = runnertest.New().
			Handle("7z", func(runner.Command) (*runner.Result, error) {
				return &runner.Result{Output: []byte("7-Zip 23.01")}, nil
			}).
			Handle("tar", func(runner.Command) (*runner.Result, error) { return &runner.Result{}, nil })
		opts := f.options()
		opts.Runner = f.fake
		opts.EBCDIC = true

		res, err := Run(context.Background(), opts)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		for _, name := range f.fake.Names() {
			if name == "7z" {
				t.Error("7z must not be used for a transcoded tree")
			}
		}
		got := testutil.MustReadFile(t, res.Layout.Dir(), "lib/strict.pm")
		if bytes.Contains(got, []byte("package")) {
			t.Error("lib/strict.pm was not transcoded")
		}
		if got[0] != 0x97 { // 'p' in code page 1047
			t.Errorf("first byte = 0x%02X, want 0x97", got[0])
		}
		if mode := testutil.MustMode(t, res.Layout.Dir(), "lib/strict.pm"); mode != 0o444 {
			t.Errorf("mode after transcoding = %04o, want 0444", mode)
		}
		if res.Transcoded == nil {
			t.Error("transcode stats missing")
		}
	})

	t.Run("refuses a non-ASCII host", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		opts := f.options()
		opts.EBCDIC = true
		opts.Charset = func() platform.Charset {
			return platform.Charset{Name: "IBM-1047", Known: true}
		}
		_, err := Run(context.Background(), opts)
		if !errors.Is(err, issue.ErrPrecondition) {
			t.Fatalf("Run() error = %v, want ErrPrecondition", err)
		}
		if _, err := os.Stat(filepath.Join(f.out, "perl-5.40.0")); !os.IsNotExist(err) {
			t.Error("nothing should be staged on a non-ASCII host")
		}
	})
}
