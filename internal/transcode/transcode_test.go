// SPDX-License-Identifier: MPL-2.0

package transcode

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/internal/testutil"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want Kind
	}{
		{"empty", nil, Narrow},
		{"ascii", []byte("int main(void);\n"), Narrow},
		{"utf-8", []byte("café\n"), Narrow},
		{"latin-1", []byte("caf\xe9\n"), Narrow},
		{"utf-16be bom", []byte{0xFE, 0xFF, 0x00, 0x41}, UTF16BE},
		{"utf-16le bom", []byte{0xFF, 0xFE, 0x41, 0x00}, UTF16LE},
		{"nul byte", []byte("GIF89a\x00\x01"), Binary},
		{"control heavy", []byte("\x01\x02\x03\x04ab"), Binary},
		{"nul after sniff window", append(bytes.Repeat([]byte("a"), sniffLen), 0), Narrow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.data); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBytes_Narrow(t *testing.T) {
	t.Parallel()

	tables := mustTables(t, "1047")
	tr := New(tables, nil)

	t.Run("ascii maps byte for byte", func(t *testing.T) {
		t.Parallel()
		in := []byte("print 1;\n")
		out, kind, err := tr.Bytes(in)
		if err != nil || kind != Narrow {
			t.Fatalf("Bytes() = %v, %v", kind, err)
		}
		if !bytes.Equal(out, tables.Encode(in)) {
			t.Errorf("Bytes() = % X, want % X", out, tables.Encode(in))
		}
		if !bytes.Equal(tables.Decode(out), in) {
			t.Error("Decode() did not restore the input")
		}
	})

	t.Run("invalid utf-8 uses the single byte table", func(t *testing.T) {
		t.Parallel()
		out, _, err := tr.Bytes([]byte("\xe9t\xe9"))
		if err != nil {
			t.Fatal(err)
		}
		if want := []byte{0x51, 0xA3, 0x51}; !bytes.Equal(out, want) {
			t.Errorf("Bytes() = % X, want % X", out, want)
		}
	})

	t.Run("wide text goes through UTF-EBCDIC", func(t *testing.T) {
		t.Parallel()
		out, _, err := tr.Bytes([]byte("a\u00a0b"))
		if err != nil {
			t.Fatal(err)
		}
		if want := []byte{0x81, 0x80, 0x41, 0x82}; !bytes.Equal(out, want) {
			t.Errorf("Bytes() = % X, want % X", out, want)
		}
	})

	t.Run("c1 controls in valid utf-8 map byte for byte", func(t *testing.T) {
		t.Parallel()
		in := []byte("A\u0085")
		out, _, err := tr.Bytes(in)
		if err != nil {
			t.Fatal(err)
		}
		if want := tables.Encode(in); !bytes.Equal(out, want) {
			t.Errorf("Bytes() = % X, want % X", out, want)
		}
		if len(out) != 3 {
			t.Errorf("len(Bytes()) = %d, want 3", len(out))
		}
	})
}

func TestBytes_UTF16(t *testing.T) {
	t.Parallel()

	tables := mustTables(t, "1047")
	tr := New(tables, nil)

	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{
			name: "big endian",
			in:   []byte{0xFE, 0xFF, 0x00, 'A', 0x01, 'A', 0x00, '\n'},
			want: []byte{0xFE, 0xFF, 0x00, 0xC1, 0x01, 'A', 0x00, 0x15},
		},
		{
			name: "little endian",
			in:   []byte{0xFF, 0xFE, 'A', 0x00, 'A', 0x01, '\n', 0x00},
			want: []byte{0xFF, 0xFE, 0xC1, 0x00, 'A', 0x01, 0x15, 0x00},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _, err := tr.Bytes(tt.in)
			if err != nil {
				t.Fatalf("Bytes() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Bytes() = % X, want % X", got, tt.want)
			}
		})
	}

	if _, _, err := tr.Bytes([]byte{0xFE, 0xFF, 0x00}); err == nil {
		t.Error("odd-length UTF-16 should fail")
	}
}

func TestFile(t *testing.T) {
	t.Parallel()

	tr := New(mustTables(t, "1047"), nil)

	t.Run("read-only file keeps its mode", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := testutil.MustWriteFile(t, dir, "perl.c", []byte("AB"))
		if err := os.Chmod(path, 0o444); err != nil {
			t.Fatal(err)
		}
		testutil.MakeWritable(t, dir)

		kind, err := tr.File(path)
		if err != nil || kind != Narrow {
			t.Fatalf("File() = %v, %v", kind, err)
		}
		if got := testutil.MustReadFile(t, dir, "perl.c"); !bytes.Equal(got, []byte{0xC1, 0xC2}) {
			t.Errorf("content = % X", got)
		}
		if got := testutil.MustMode(t, dir, "perl.c"); got != 0o444 {
			t.Errorf("mode = %04o, want 0444", got)
		}
	})

	t.Run("binary file is untouched", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		data := []byte("\x89PNG\r\n\x1a\n\x00\x00")
		path := testutil.MustWriteFile(t, dir, "logo.png", data)
		if kind, err := tr.File(path); err != nil || kind != Binary {
			t.Fatalf("File() = %v, %v", kind, err)
		}
		if got := testutil.MustReadFile(t, dir, "logo.png"); !bytes.Equal(got, data) {
			t.Error("binary content changed")
		}
	})

	t.Run("odd utf-16 is a transcode error", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := testutil.MustWriteFile(t, dir, "odd.txt", []byte{0xFF, 0xFE, 0x41})
		_, err := tr.File(path)
		var te *issue.TranscodeError
		if !errors.As(err, &te) || te.Path != path {
			t.Fatalf("File() error = %v, want TranscodeError for %s", err, path)
		}
		if !errors.Is(err, issue.ErrTranscode) {
			t.Error("error should unwrap to ErrTranscode")
		}
	})
}

func TestTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"README":       "hello\n",
		"lib/utf16.t":  "\xFF\xFEh\x00",
		"t/blob.bin":   "\x00\x01\x02",
		"pod/perl.pod": "naïve\n",
	})
	tr := New(mustTables(t, "037"), nil)

	paths := []string{"README", "lib/utf16.t", "t/blob.bin", "pod/perl.pod"}
	stats, err := tr.Tree(context.Background(), root, paths)
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	if stats[Narrow] != 2 || stats[UTF16LE] != 1 || stats[Binary] != 1 {
		t.Errorf("stats = %v", stats)
	}
	if got := testutil.MustReadFile(t, root, "README"); strings.Contains(string(got), "hello") {
		t.Error("README was not transcoded")
	}

	if _, err := tr.Tree(context.Background(), root, []string{"../outside"}); !errors.Is(err, issue.ErrTranscode) {
		t.Errorf("Tree(escaping path) error = %v, want ErrTranscode", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Tree(ctx, root, paths); !errors.Is(err, context.Canceled) {
		t.Errorf("Tree(canceled) error = %v", err)
	}
}

func TestTree_LeavesSymlinksAlone(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	root := filepath.Join(base, "perl-5.40.0")
	testutil.WriteTree(t, root, map[string]string{"a": "A"})
	outside := testutil.MustWriteFile(t, base, "outside", []byte("A"))
	if err := os.Symlink("a", filepath.Join(root, "b")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "c")); err != nil {
		t.Fatal(err)
	}

	tr := New(mustTables(t, "1047"), nil)
	stats, err := tr.Tree(context.Background(), root, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	if stats[Narrow] != 1 || stats[Binary] != 2 {
		t.Errorf("stats = %v, want one narrow file and two skipped links", stats)
	}
	if got := testutil.MustReadFile(t, root, "a"); !bytes.Equal(got, []byte{0xC1}) {
		t.Errorf("a = % X, want C1 (converted once)", got)
	}
	if got := testutil.MustReadFile(t, base, "outside"); !bytes.Equal(got, []byte("A")) {
		t.Errorf("file outside the release changed to % X", got)
	}
}
