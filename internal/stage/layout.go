// SPDX-License-Identifier: MPL-2.0

package stage

import "path/filepath"

// Layout locates a release directory and its archive siblings.
type Layout struct {
	// Root is the parent directory receiving the release.
	Root string
	// Name is the release directory name, e.g. "perl-5.40.0-foo-bar".
	Name string
}

// Dir returns {root}/{name}.
func (l Layout) Dir() string { return filepath.Join(l.Root, l.Name) }

// Tar returns the uncompressed intermediate archive path.
func (l Layout) Tar() string { return l.Dir() + ".tar" }

// TarGz returns the gzip archive path.
func (l Layout) TarGz() string { return l.Dir() + ".tar.gz" }

// TarXz returns the xz archive path.
func (l Layout) TarXz() string { return l.Dir() + ".tar.xz" }

// Outputs returns every path a run may create, in the order staging checks them.
func (l Layout) Outputs(withXz bool) []string {
	out := []string{l.Dir(), l.TarGz()}
	if withXz {
		out = append(out, l.TarXz())
	}
	return out
}
