// SPDX-License-Identifier: MPL-2.0

// Package manifest reads the release manifest and cross-checks it against a
// directory tree.
//
// The manifest is the authoritative list of release files, one per line as
// "path<whitespace>description". Declaration order is preserved because the
// staging and transcoding stages walk files in exactly that order.
package manifest
