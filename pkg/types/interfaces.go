package types

import (
	"context"
	"io/fs"
)

// FS is the filesystem interface used by wowplug operations.
// Implementations exist for the real OS filesystem and for in-memory
// testing.
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Mutations
	Rename(oldpath, newpath string) error
	Remove(name string) error
	RemoveAll(path string) error
}

// Scanner inspects a live addon directory and returns the current-state
// addon list. Records carry Name, Fingerprint and Path.
type Scanner interface {
	Scan(dir string) ([]AddonRecord, error)
}

// Candidate is one remote catalog match for an addon name.
type Candidate struct {
	// Name is the catalog-side addon name.
	Name string

	// Source identifies where the addon can be fetched from (provider
	// identifier or URL).
	Source string

	// Confidence is the name-similarity score in [0,1].
	Confidence float64

	// Version is the catalog-side version marker, empty when unknown.
	Version string
}

// Resolver looks up remote catalog candidates for an addon name, ranked
// by descending confidence. A non-empty hint bypasses fuzzy matching.
type Resolver interface {
	Resolve(ctx context.Context, name, hint string) ([]Candidate, error)
}

// Fetcher downloads and unpacks a resolved candidate into a staging
// location outside the live and cache trees, returning the unpacked
// addon root for the given name. The staged directory has already passed
// the basic integrity check.
type Fetcher interface {
	Fetch(ctx context.Context, cand Candidate, name string) (string, error)
}
