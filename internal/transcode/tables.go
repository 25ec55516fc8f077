// SPDX-License-Identifier: MPL-2.0

package transcode

import (
	"fmt"
	"slices"

	"golang.org/x/text/encoding/charmap"

	"github.com/invowk/makerel/internal/issue"
)

// DefaultCodePage is used when no code page is configured.
const DefaultCodePage = "1047"

// invariantLimit is the first I8 byte that UTF-EBCDIC relocates.
const invariantLimit = 0xA0

type codePage struct {
	charmap *charmap.Charmap
	// newline is the native byte for '\n'. The 1047 convention used by z/OS
	// Unix System Services puts line feed at 0x15, where the CDRA tables have
	// NEL.
	newline byte
}

var codePages = map[string]codePage{
	"037":  {charmap.CodePage037, 0x25},
	"1047": {charmap.CodePage1047, 0x15},
	"1140": {charmap.CodePage1140, 0x25},
}

// CodePages returns the supported code page names, sorted.
func CodePages() []string {
	names := make([]string, 0, len(codePages))
	for name := range codePages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tables holds the byte translation tables for one EBCDIC code page.
type Tables struct {
	CodePage string
	// latin1 maps a Latin-1 code point to its native byte.
	latin1 [256]byte
	// native is the inverse of latin1.
	native [256]byte
	// utfEBCDIC maps an I8 byte to its UTF-EBCDIC byte.
	utfEBCDIC [256]byte
}

// NewTables builds the tables for codepage ("037", "1047" or "1140").
func NewTables(codepage string) (*Tables, error) {
	if codepage == "" {
		codepage = DefaultCodePage
	}
	page, ok := codePages[codepage]
	if !ok {
		return nil, &issue.ConfigError{
			Source: "transcode.codepage",
			Reason: fmt.Sprintf("unsupported code page %q (want one of %v)", codepage, CodePages()),
		}
	}

	t := &Tables{CodePage: codepage}
	var used [256]bool
	var unmapped []int
	for cp := range 256 {
		b, ok := page.charmap.EncodeRune(rune(cp))
		if !ok || used[b] {
			unmapped = append(unmapped, cp)
			continue
		}
		t.latin1[cp] = b
		used[b] = true
	}
	// Code pages that trade a Latin-1 character for another symbol (1140 puts
	// the euro sign where 037 had U+00A4) still need a bijection, so leftover
	// code points take the free bytes in ascending order.
	free := freeBytes(&used)
	for i, cp := range unmapped {
		t.latin1[cp] = free[i]
	}
	t.swapNewline(page.newline)
	for cp, b := range t.latin1 {
		t.native[b] = byte(cp)
	}

	var invariant [256]bool
	for i := range invariantLimit {
		t.utfEBCDIC[i] = t.latin1[i]
		invariant[t.latin1[i]] = true
	}
	for i, b := range freeBytes(&invariant) {
		t.utfEBCDIC[invariantLimit+i] = b
	}
	return t, nil
}

func (t *Tables) swapNewline(want byte) {
	if t.latin1['\n'] == want {
		return
	}
	for cp, b := range t.latin1 {
		if b == want {
			t.latin1[cp] = t.latin1['\n']
			break
		}
	}
	t.latin1['\n'] = want
}

func freeBytes(used *[256]bool) []byte {
	var free []byte
	for b := range 256 {
		if !used[b] {
			free = append(free, byte(b))
		}
	}
	return free
}

// Native returns the native byte for Latin-1 code point cp.
func (t *Tables) Native(cp byte) byte { return t.latin1[cp] }

// Encode maps data through the Latin-1 to native table.
func (t *Tables) Encode(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = t.latin1[b]
	}
	return out
}

// Decode is the inverse of Encode.
func (t *Tables) Decode(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = t.native[b]
	}
	return out
}
