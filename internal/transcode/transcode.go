// SPDX-License-Identifier: MPL-2.0

package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/pkg/types"
)

const ownerWrite fs.FileMode = 0o200

// Transcoder rewrites files in place using one set of Tables.
type Transcoder struct {
	tables *Tables
	logger *log.Logger
}

// Stats counts the files handled by Tree per Kind.
type Stats map[Kind]int

// New returns a Transcoder for tables. logger may be nil.
func New(tables *Tables, logger *log.Logger) *Transcoder {
	return &Transcoder{tables: tables, logger: logger}
}

// Bytes transcodes data according to its classification and returns the
// result along with the Kind. Binary input is returned unchanged.
func (t *Transcoder) Bytes(data []byte) ([]byte, Kind, error) {
	kind := Classify(data)
	switch kind {
	case Binary:
		return data, kind, nil
	case UTF16BE, UTF16LE:
		out, err := t.utf16(data, kind)
		return out, kind, err
	default:
		return t.narrow(data), kind, nil
	}
}

func (t *Transcoder) utf16(data []byte, kind Kind) ([]byte, error) {
	if len(data)%2 != 0 {
		return nil, errOddLength
	}
	hi, lo := 0, 1
	if kind == UTF16LE {
		hi, lo = 1, 0
	}
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i < len(out); i += 2 {
		if out[i+hi] == 0 {
			out[i+lo] = t.tables.latin1[out[i+lo]]
		}
	}
	return out, nil
}

// narrow maps text that is not valid UTF-8, or that only uses code points
// below U+00A0, byte for byte through the single-byte table. Anything else
// goes through UTF-8-Mod and the UTF-EBCDIC table.
func (t *Transcoder) narrow(data []byte) []byte {
	if !utf8.Valid(data) || !hasWide(data) {
		return t.tables.Encode(data)
	}

	out := make([]byte, 0, len(data)+len(data)/4)
	for _, r := range string(data) {
		start := len(out)
		out = appendI8(out, r)
		for i := start; i < len(out); i++ {
			out[i] = t.tables.utfEBCDIC[out[i]]
		}
	}
	return out
}

func hasWide(data []byte) bool {
	for _, r := range string(data) {
		if r >= invariantLimit {
			return true
		}
	}
	return false
}

var errOddLength = errors.New("UTF-16 content has an odd number of bytes")

// File transcodes the file at path in place. Read-only files get owner
// write for the duration of the rewrite; their mode is restored afterwards.
// Anything but a regular file is left alone and reported as Binary, so a
// symlink is never followed out of the tree or into a file converted twice.
func (t *Transcoder) File(path string) (kind Kind, err error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Binary, issue.WrapWithContext(err, "inspect file for transcoding", path)
	}
	if !info.Mode().IsRegular() {
		if t.logger != nil {
			t.logger.Debug("Skipped non-regular file", "file", path, "mode", info.Mode().Type())
		}
		return Binary, nil
	}
	mode := info.Mode().Perm()
	if mode&ownerWrite == 0 {
		if err := os.Chmod(path, mode|ownerWrite); err != nil {
			return Binary, issue.WrapWithContext(err, "make file writable for transcoding", path)
		}
		defer func() {
			if cerr := os.Chmod(path, mode); cerr != nil && err == nil {
				err = issue.WrapWithContext(cerr, "restore file mode", path)
			}
		}()
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Binary, issue.WrapWithContext(err, "open file for transcoding", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = issue.WrapWithContext(cerr, "close transcoded file", path)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return Binary, issue.WrapWithContext(err, "read file for transcoding", path)
	}
	out, kind, err := t.Bytes(data)
	if err != nil {
		return kind, &issue.TranscodeError{Path: path, Reason: err.Error()}
	}
	if kind == Binary {
		return kind, nil
	}

	if err := f.Truncate(0); err != nil {
		return kind, issue.WrapWithContext(err, "truncate file for transcoding", path)
	}
	if _, err := f.WriteAt(out, 0); err != nil {
		return kind, issue.WrapWithContext(err, "write transcoded file", path)
	}
	return kind, nil
}

// Tree transcodes every file in paths (slash-separated, relative to root) in
// the given order.
func (t *Transcoder) Tree(ctx context.Context, root string, paths []string) (Stats, error) {
	stats := Stats{}
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rp := types.RelativePath(rel)
		if err := rp.Validate(); err != nil {
			return stats, &issue.TranscodeError{Path: rel, Reason: err.Error()}
		}
		kind, err := t.File(rp.Join(root))
		if err != nil {
			return stats, err
		}
		stats[kind]++
		if t.logger != nil {
			t.logger.Debug("Transcoded", "file", rel, "kind", kind)
		}
	}
	if t.logger != nil {
		t.logger.Info(fmt.Sprintf("Transcoded tree to code page %s", t.tables.CodePage),
			"narrow", stats[Narrow], "utf16", stats[UTF16BE]+stats[UTF16LE], "binary", stats[Binary])
	}
	return stats, nil
}
