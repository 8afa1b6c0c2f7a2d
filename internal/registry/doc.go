// Package registry compiles the CUE country registry that scopes
// consolidation and verification runs.
//
// A registry is a directory of .cue files declaring countries under
// the country path:
//
//	country: KE: {
//		name:    "Kenya"
//		aliases: ["Republic of Kenya"]
//		sources: ["Daily Nation", "The Standard"]
//	}
//
// The struct label is the country code. enabled defaults to true; a
// disabled country stays in the registry (its data remains queryable)
// but is excluded from all-country scopes and rejected as an explicit
// scope.
//
// Compilation is CUE-native through the Go SDK, never a CLI
// subprocess, so errors carry file:line:column positions. Compile
// errors are shape problems in one country; validation errors
// (Validate) are cross-registry rules like alias collisions, reported
// all at once rather than fail-fast.
package registry
