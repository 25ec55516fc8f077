// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/internal/release"
	"github.com/invowk/makerel/internal/transcode"
	"github.com/invowk/makerel/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags holds the values of the root command's flags.
type rootFlags struct {
	root      string
	suffix    string
	xz        bool
	noArchive bool
	clean     bool
	ebcdic    bool
	config    string
	verbose   bool
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "makerel [flags]",
		Short: "Build a release tarball from a source tree",
		Long: TitleStyle.Render("makerel") + SubtitleStyle.Render(" - build a release tarball from a source tree") + `

makerel reads the version from patchlevel.h, checks the tree against
MANIFEST, copies the listed files into {root}/perl-{version}, fixes their
permissions and packs the result. The SHA-256 digest of every archive is
printed on standard output.

Run it from the top of the source tree.

` + SubtitleStyle.Render("Examples:") + `
  makerel                   Build ../perl-X.Y.Z.tar.gz
  makerel -x -r /tmp        Also build a .tar.xz, under /tmp
  makerel -c -n             Clean the tree, stage only
  makerel verify SHA256SUMS Check archives against a digest listing`,
		Args:          rejectArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runRelease(cmd, f)
		},
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(cmd, err.Error())
	})

	fs := root.Flags()
	fs.StringVarP(&f.root, "root", "r", "..", "directory the release directory and archives are created in")
	fs.StringVarP(&f.suffix, "suffix", "s", "", "release name suffix, replacing the one derived from local patches")
	fs.BoolVarP(&f.xz, "xz", "x", false, "also create a .tar.xz archive")
	fs.BoolVarP(&f.noArchive, "no-archive", "n", false, "stage the release directory without archiving it")
	fs.BoolVarP(&f.clean, "clean", "c", false, "clean the source tree and remove a previous release first")
	fs.BoolVarP(&f.ebcdic, "ebcdic", "e", false, "convert the staged text files to EBCDIC")

	pf := root.PersistentFlags()
	pf.StringVar(&f.config, "config", "", "config file (default is ./makerel.cue, then $HOME/.config/makerel/config.cue)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(newConfigCommand(app, f))
	root.AddCommand(newVerifyCommand(app, f))
	return root
}

// rejectArgs refuses positional arguments that do not name a subcommand.
func rejectArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	return usageError(cmd, fmt.Sprintf("unexpected argument %q", args[0]))
}

// usageError prints the usage text and returns a UsageError. The message
// itself is printed by whoever reports the returned error.
func usageError(cmd *cobra.Command, msg string) error {
	fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
	return newExitError(&issue.UsageError{Message: msg}, false)
}

func (a *App) runRelease(cmd *cobra.Command, f *rootFlags) error {
	ctx := cmd.Context()

	var suffix *string
	if cmd.Flags().Changed("suffix") {
		if strings.ContainsAny(f.suffix, `/\`) {
			return usageError(cmd, fmt.Sprintf("invalid suffix %q: must not contain a path separator", f.suffix))
		}
		suffix = &f.suffix
	}

	cfg, err := a.loadConfig(ctx, f.config)
	if err != nil {
		return newExitError(err, f.verbose)
	}
	logger := a.newLogger(cfg, f.verbose)
	if cfg.Source != "" {
		logger.Debug("Loaded configuration", "file", cfg.Source)
	}

	res, err := release.Run(ctx, release.Options{
		SourceRoot: a.WorkDir,
		OutputRoot: f.root,
		Suffix:     suffix,
		WithXz:     f.xz,
		NoArchive:  f.noArchive,
		Clean:      f.clean,
		EBCDIC:     f.ebcdic,
		Config:     cfg,
		Runner:     a.newRunner(logger),
		Logger:     logger,
		Stdout:     a.stdout,
		Charset:    a.Charset,
	})
	if err != nil {
		return newExitError(err, f.verbose)
	}
	a.printSummary(res)
	return nil
}

func (a *App) printSummary(res *release.Result) {
	fmt.Fprintln(a.stderr, SuccessStyle.Render("Release ")+TitleStyle.Render(res.Layout.Name)+
		SuccessStyle.Render(" ready in ")+PathStyle.Render(res.Layout.Dir()))
	if n := len(res.Extras); n > 0 {
		fmt.Fprintln(a.stderr, WarningStyle.Render(fmt.Sprintf("%d file(s) in the tree are not in the manifest", n)))
	}
	for _, kind := range []transcode.Kind{transcode.Narrow, transcode.UTF16BE, transcode.UTF16LE, transcode.Binary} {
		if n, ok := res.Transcoded[kind]; ok {
			fmt.Fprintf(a.stderr, "  %s %d\n", SubtitleStyle.Render(kind.String()+":"), n)
		}
	}
}

// formatErrorForDisplay uses ActionableError.Format when available.
// In verbose mode the full error chain is shown.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the mapped exit code.
func Execute() {
	os.Exit(int(run(context.Background())))
}

// run executes the command line in os.Args and maps the outcome to an exit code.
func run(ctx context.Context) types.ExitCode {
	app := NewApp(Dependencies{})
	// fang.WithVersion because fang overrides rootCmd.Version.
	err := fang.Execute(
		ctx,
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return types.ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return issue.ExitCodeFor(err)
}
