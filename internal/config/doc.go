// SPDX-License-Identifier: MPL-2.0

// Package config handles makerel configuration using Viper with CUE as the file format.
//
// A run uses the first of: the file given with --config, makerel.cue in the
// source root, $XDG_CONFIG_HOME/makerel/config.cue (~/.config on Linux,
// ~/Library/Application Support on macOS, %APPDATA% on Windows). Without any
// file the built-in defaults describe a perl source tree. MAKEREL_* environment
// variables override individual keys, e.g. MAKEREL_TRANSCODE_CODEPAGE=037.
//
// Files are validated against the embedded config_schema.cue before they are
// merged.
package config
