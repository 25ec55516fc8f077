// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"bytes"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/invowk/makerel/internal/issue"
)

// asciiProbe covers the ASCII letters, digits and punctuation that source
// files are built from.
const asciiProbe = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 !\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~\n\t"

// Charset describes the native character set named by the locale.
type Charset struct {
	// Name is the codeset part of the locale, e.g. "UTF-8"; empty when the
	// locale does not name one.
	Name string
	// Known is false when Name could not be resolved to an encoding.
	Known bool
	// ASCIICompatible reports whether ASCII bytes mean ASCII in this charset.
	// Unknown charsets are assumed compatible.
	ASCIICompatible bool
}

// NativeCharset inspects LC_ALL, LC_CTYPE and LANG, in that order.
func NativeCharset() Charset {
	return CharsetFromLocale(locale(os.Getenv))
}

func locale(getenv func(string) string) string {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// CharsetFromLocale resolves the codeset of a POSIX locale string such as
// "en_US.UTF-8@euro". "C" and "POSIX" are ASCII.
func CharsetFromLocale(loc string) Charset {
	name := codeset(loc)
	if name == "" {
		if loc == "C" || loc == "POSIX" {
			return Charset{Name: "US-ASCII", Known: true, ASCIICompatible: true}
		}
		return Charset{ASCIICompatible: true}
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return Charset{Name: name, ASCIICompatible: true}
	}
	return Charset{Name: name, Known: true, ASCIICompatible: encodesASCII(enc)}
}

func codeset(loc string) string {
	if i := strings.IndexByte(loc, '@'); i >= 0 {
		loc = loc[:i]
	}
	i := strings.IndexByte(loc, '.')
	if i < 0 {
		return ""
	}
	return loc[i+1:]
}

func encodesASCII(enc encoding.Encoding) bool {
	out, err := enc.NewEncoder().Bytes([]byte(asciiProbe))
	return err == nil && bytes.Equal(out, []byte(asciiProbe))
}

// RequireASCII returns a PreconditionError unless c is ASCII compatible.
func (c Charset) RequireASCII() error {
	if c.ASCIICompatible {
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("check native character set").
		WithSuggestion("Run the EBCDIC conversion from an ASCII-based host").
		Wrap(&issue.PreconditionError{Condition: "native character set " + c.Name + " is not ASCII compatible"}).
		BuildError()
}
