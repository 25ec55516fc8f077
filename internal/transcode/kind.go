// SPDX-License-Identifier: MPL-2.0

package transcode

import "bytes"

// Kind is the content classification of one file.
type Kind int

const (
	// Narrow is single-byte or UTF-8 text.
	Narrow Kind = iota
	// Binary content is never rewritten.
	Binary
	// UTF16BE is UTF-16 text starting with FE FF.
	UTF16BE
	// UTF16LE is UTF-16 text starting with FF FE.
	UTF16LE
)

// sniffLen is how much of a file the binary heuristic looks at.
const sniffLen = 512

var (
	bomBE = []byte{0xFE, 0xFF}
	bomLE = []byte{0xFF, 0xFE}
)

func (k Kind) String() string {
	switch k {
	case Narrow:
		return "narrow"
	case Binary:
		return "binary"
	case UTF16BE:
		return "utf-16be"
	case UTF16LE:
		return "utf-16le"
	default:
		return "unknown"
	}
}

// Classify reports the Kind of data. The byte order mark is checked before
// the binary sniff since UTF-16 text is full of NUL bytes.
func Classify(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, bomBE):
		return UTF16BE
	case bytes.HasPrefix(data, bomLE):
		return UTF16LE
	case looksBinary(data):
		return Binary
	default:
		return Narrow
	}
}

// looksBinary flags a NUL byte, or more than a third of control bytes, in
// the first sniffLen bytes.
func looksBinary(data []byte) bool {
	head := data[:min(len(data), sniffLen)]
	if len(head) == 0 {
		return false
	}
	odd := 0
	for _, b := range head {
		switch {
		case b == 0:
			return true
		case b == '\t', b == '\n', b == '\r', b == '\f', b == '\b', b == 0x1B:
		case b < 0x20, b == 0x7F:
			odd++
		}
	}
	return odd*3 > len(head)
}
