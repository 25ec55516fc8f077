// SPDX-License-Identifier: MPL-2.0

package version

import (
	"fmt"
	"strings"
)

// SuffixSeparator joins local patch tags into the release suffix.
const SuffixSeparator = "-"

// Identity is the version of the tree being released.
type Identity struct {
	Revision   int
	Version    int
	Subversion int
	// LocalPatches are the local patch tags in declaration order.
	LocalPatches []string
}

// String returns "revision.version.subversion", e.g. "5.40.0".
func (id Identity) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Revision, id.Version, id.Subversion)
}

// Suffix joins the local patch tags, or returns "" when there are none.
func (id Identity) Suffix() string {
	return strings.Join(id.LocalPatches, SuffixSeparator)
}

// ReleaseName builds "{name}-{version}[-{suffix}]". A non-nil override
// replaces the derived suffix outright; an empty override drops it.
func (id Identity) ReleaseName(name string, override *string) string {
	suffix := id.Suffix()
	if override != nil {
		suffix = *override
	}
	rel := name + "-" + id.String()
	if suffix != "" {
		rel += "-" + suffix
	}
	return rel
}
