// Package cachestore implements the quarantine cache: a side directory
// holding disabled or removed addons, one subdirectory per addon name,
// enabling restore without re-download.
//
// Every entry owns exactly one on-disk copy. Put transfers ownership in,
// Take transfers it out. Both are built on filesystem.MoveDir, whose
// copy-verify-delete fallback guarantees an interrupted move never
// leaves the addon existing in neither place.
package cachestore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/filesystem"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/types"
)

// Store is a quarantine cache rooted at a single directory.
type Store struct {
	fs     types.FS
	root   string
	logger zerolog.Logger
}

// New opens (creating if needed) the cache at root and discards any
// partial entries left behind by an interrupted move.
func New(fsys types.FS, root string) (*Store, error) {
	if err := fsys.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create cache directory %s", root)
	}
	if err := filesystem.DiscardPartials(fsys, root); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCacheCorrupt, "failed to clear partial cache entries in %s", root)
	}
	return &Store{
		fs:     fsys,
		root:   root,
		logger: logging.GetLogger("cachestore"),
	}, nil
}

// Root returns the cache directory.
func (s *Store) Root() string {
	return s.root
}

// entryName returns the on-disk entry matching name case-insensitively,
// or "" when absent.
func (s *Store) entryName(name string) string {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasSuffix(entry.Name(), filesystem.PartialSuffix) {
			continue
		}
		if strings.EqualFold(entry.Name(), name) {
			return entry.Name()
		}
	}
	return ""
}

// Contains reports whether the cache holds an entry for name.
func (s *Store) Contains(name string) bool {
	return s.entryName(name) != ""
}

// Path returns the on-disk location an entry for name occupies (or would
// occupy).
func (s *Store) Path(name string) string {
	if existing := s.entryName(name); existing != "" {
		return filepath.Join(s.root, existing)
	}
	return filepath.Join(s.root, name)
}

// Put moves the addon directory at src into the cache under name,
// transferring ownership. The entry must not already exist.
func (s *Store) Put(name, src string) error {
	if existing := s.entryName(name); existing != "" {
		return errors.Newf(errors.ErrInvariantViolation, "cache already holds %q", existing)
	}
	dst := filepath.Join(s.root, name)
	if err := filesystem.MoveDir(s.fs, src, dst); err != nil {
		return err
	}
	s.logger.Debug().Str("addon", name).Str("from", src).Msg("Addon quarantined")
	return nil
}

// Take moves the cached entry for name to dst, transferring ownership
// out. It fails when the entry is absent. The move copies before it
// deletes, so a crash mid-take leaves the cache copy intact.
func (s *Store) Take(name, dst string) error {
	existing := s.entryName(name)
	if existing == "" {
		return errors.Newf(errors.ErrCacheMissing, "no cached copy of %q", name)
	}
	src := filepath.Join(s.root, existing)
	if err := filesystem.MoveDir(s.fs, src, dst); err != nil {
		return err
	}
	s.logger.Debug().Str("addon", name).Str("to", dst).Msg("Addon restored from cache")
	return nil
}

// Remove permanently deletes the cached entry for name, if present.
func (s *Store) Remove(name string) error {
	existing := s.entryName(name)
	if existing == "" {
		return nil
	}
	if err := s.fs.RemoveAll(filepath.Join(s.root, existing)); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to delete cached %q", existing)
	}
	s.logger.Debug().Str("addon", existing).Msg("Cached addon deleted")
	return nil
}

// List enumerates the cached addons as records with Path set.
func (s *Store) List() ([]types.AddonRecord, error) {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read cache directory %s", s.root)
	}
	var records []types.AddonRecord
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasSuffix(entry.Name(), filesystem.PartialSuffix) {
			continue
		}
		records = append(records, types.AddonRecord{
			Name: entry.Name(),
			Path: filepath.Join(s.root, entry.Name()),
		})
	}
	return records, nil
}
