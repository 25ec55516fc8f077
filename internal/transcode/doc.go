// SPDX-License-Identifier: MPL-2.0

// Package transcode rewrites a staged release tree from ASCII/UTF-8 into an
// EBCDIC code page.
//
// Each file is classified first (see Kind). Binary files are left alone,
// UTF-16 files with a byte order mark have their Latin-1 code units mapped in
// place, and narrow text is mapped through either the single-byte code page
// table or, when it carries characters above U+009F, the UTF-EBCDIC encoding
// (UTF-8-Mod followed by the byte-rotation table).
package transcode
