// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invowk/makerel/internal/config"
)

// newConfigCommand creates the `makerel config` command tree.
func newConfigCommand(app *App, f *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect makerel configuration",
		Long: `Inspect makerel configuration.

Configuration is read from the first of:
  - the file given with --config
  - ./makerel.cue in the source tree
  - config.cue in the user configuration directory
    (Linux: ~/.config/makerel, macOS: ~/Library/Application Support/makerel)

MAKEREL_* environment variables override single keys, for example
MAKEREL_TRANSCODE_CODEPAGE=037.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), f.config)
			if err != nil {
				return newExitError(err, f.verbose)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the user configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return newExitError(err, f.verbose)
			}
			fmt.Fprintln(app.stdout, filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	return cfgCmd
}
