// SPDX-License-Identifier: MPL-2.0

// Package release runs the makerel pipeline: resolve the version, optionally
// clean, validate the manifest, stage the tree, normalize permissions,
// optionally transcode to EBCDIC, archive and report digests.
//
// Stages run strictly in that order and the first failure ends the run.
// Nothing is rolled back; --clean on the next run removes leftovers.
package release
