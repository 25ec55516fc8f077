// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/invowk/makerel/internal/digest"
	"github.com/invowk/makerel/internal/issue"
)

// newVerifyCommand creates `makerel verify`, which checks a digest listing
// printed by an earlier run against the archives on disk.
func newVerifyCommand(app *App, f *rootFlags) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "verify [FILE]",
		Short: "Check archives against a SHA-256 listing",
		Long: `Check archives against a SHA-256 listing.

FILE holds lines in sha256sum format, as printed by makerel. With no FILE,
or when FILE is -, the listing is read from standard input. Archive names
are resolved against --root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return newExitError(issue.WrapWithContext(err, "open checksum listing", args[0]), f.verbose)
				}
				defer func() {
					// Read-only handle.
					_ = file.Close()
				}()
				in = file
			}

			artifacts, err := digest.Verify(dir, in)
			if err != nil {
				return newExitError(err, f.verbose)
			}
			for _, a := range artifacts {
				fmt.Fprintf(app.stdout, "%s: OK\n", a.Path)
			}
			fmt.Fprintln(app.stderr, SuccessStyle.Render(fmt.Sprintf("%d archive(s) verified", len(artifacts))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "root", "r", "..", "directory holding the archives")
	return cmd
}
