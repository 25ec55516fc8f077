// SPDX-License-Identifier: MPL-2.0

// Package runner is the single place where makerel starts child processes.
//
// Archivers, compressors and clean commands are reached through the Runner
// interface so stages can be exercised with runnertest.Fake instead of real
// binaries. Exec is the os/exec implementation used by the CLI.
package runner
