// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE helpers: compiling user data against
// an embedded schema definition and turning CUE errors into messages with
// JSON-path prefixes.
//
// # Usage
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	value, err := cueutil.Unify(schema, data, "#Config",
//	    cueutil.WithFilename("makerel.cue"),
//	)
//	if err != nil {
//	    return err // includes file and CUE path
//	}
package cueutil
