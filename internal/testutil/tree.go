// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"sort"
	"strings"
	"testing"
)

// WriteTree creates every file in files (slash-separated path to contents)
// under root.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		MustWriteFile(t, root, rel, []byte(content))
	}
}

// PatchlevelH renders a minimal version header.
func PatchlevelH(revision, version, subversion int, tags ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#define PERL_REVISION\t%d\t\t/* age */\n", revision)
	fmt.Fprintf(&b, "#define PERL_VERSION\t%d\t\t/* epoch */\n", version)
	fmt.Fprintf(&b, "#define PERL_SUBVERSION\t%d\t\t/* generation */\n\n", subversion)
	b.WriteString("static const char * const local_patches[] = {\n\tNULL\n")
	b.WriteString("#ifdef PERL_GIT_UNCOMMITTED_CHANGES\n\t,\"uncommitted-changes\"\n#endif\n")
	b.WriteString("\tPERL_GIT_UNPUSHED_COMMITS\t/* do not remove this line */\n")
	for _, tag := range tags {
		fmt.Fprintf(&b, "\t,\"%s\"\n", tag)
	}
	b.WriteString("\t,NULL\n};\n")
	return b.String()
}

// SourceTree writes a small releasable source tree into root: a MANIFEST
// listing every file (itself included), a version header, an exec list and
// the extra files given. It returns the manifest paths in declaration order.
func SourceTree(t testing.TB, root string, version string, extra map[string]string) []string {
	t.Helper()

	files := map[string]string{
		"patchlevel.h":         version,
		"Porting/exec-bit.txt": "# files that need +x\nConfigure\nPorting/*.pl\n",
		"Configure":            "#!/bin/sh\necho configure\n",
		"Porting/makerel.pl":   "#!/usr/bin/perl\n1;\n",
		"perl.c":               "int main(void) { return 0; }\n",
		"lib/strict.pm":        "package strict;\n1;\n",
		"warnings.h":           "/* generated */\n",
	}
	for k, v := range extra {
		files[k] = v
	}

	paths := make([]string, 0, len(files)+1)
	for rel := range files {
		paths = append(paths, rel)
	}
	paths = append(paths, "MANIFEST")
	sort.Strings(paths)

	var m strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&m, "%s\t\tfile %s\n", p, p)
	}
	files["MANIFEST"] = m.String()

	WriteTree(t, root, files)
	return paths
}
