// SPDX-License-Identifier: MPL-2.0

// Package digest computes and verifies SHA-256 checksums of release
// archives in sha256sum format ("{hex}  {filename}").
package digest
