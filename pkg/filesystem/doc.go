// Package filesystem provides filesystem implementations for wowplug.
//
// This package contains implementations of the types.FS interface,
// including the standard OS filesystem and an afero-backed filesystem
// for tests, plus the directory move primitives the reconciliation
// executor builds on.
package filesystem
