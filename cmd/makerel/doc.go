// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the makerel command line.
//
// The root command builds a release from the source tree in the working
// directory. The config and verify subcommands inspect the configuration
// and check digests printed by an earlier run.
package cmd
