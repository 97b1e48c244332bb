package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/types"
)

// PartialSuffix marks a destination directory whose copy did not
// complete. A directory carrying this suffix is never a valid addon or
// cache entry; it is discarded on the next run.
const PartialSuffix = ".partial"

// BackupSuffix marks the outgoing version parked beside a directory
// while an update replaces it. It only outlives the update when the
// update was interrupted; RecoverBackups resolves it on the next run.
const BackupSuffix = ".old"

// MoveDir moves the directory at src to dst, which must not exist.
//
// A rename is attempted first. When the rename fails (typically a
// cross-volume move), the directory is copied to a partial-suffixed
// sibling of dst, verified against the source, renamed into place, and
// only then is the source removed. A crash at any point leaves either
// the source intact or both the source and a completed destination, so
// the caller's ownership invariant (at most one live copy, never zero)
// survives interruption.
func MoveDir(fsys types.FS, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileMove, "move source %s", src)
	}
	if !info.IsDir() {
		return errors.Newf(errors.ErrFileMove, "move source %s is not a directory", src)
	}
	if _, err := fsys.Stat(dst); err == nil {
		return errors.Newf(errors.ErrFileMove, "move destination %s already exists", dst)
	}
	if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create parent of %s", dst)
	}

	if err := fsys.Rename(src, dst); err == nil {
		return nil
	}

	// Cross-volume fallback: copy, verify, rename into place, then drop
	// the source.
	tmp := dst + PartialSuffix
	_ = fsys.RemoveAll(tmp)

	if err := CopyTree(fsys, src, tmp); err != nil {
		_ = fsys.RemoveAll(tmp)
		return errors.Wrapf(err, errors.ErrFileCopy, "copy %s to %s", src, tmp)
	}
	if err := verifyTree(fsys, src, tmp); err != nil {
		_ = fsys.RemoveAll(tmp)
		return errors.Wrapf(err, errors.ErrFileCopy, "verify copy of %s", src)
	}
	if err := fsys.Rename(tmp, dst); err != nil {
		_ = fsys.RemoveAll(tmp)
		return errors.Wrapf(err, errors.ErrFileMove, "finalize move to %s", dst)
	}
	if err := fsys.RemoveAll(src); err != nil {
		return errors.Wrapf(err, errors.ErrFileMove, "remove move source %s", src)
	}
	return nil
}

// CopyTree recursively copies the directory at src to dst.
func CopyTree(fsys types.FS, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(dst, info.Mode().Perm()|0700); err != nil {
		return err
	}
	entries, err := fsys.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := CopyTree(fsys, srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		data, err := fsys.ReadFile(srcPath)
		if err != nil {
			return err
		}
		mode := os.FileMode(0644)
		if fi, err := entry.Info(); err == nil {
			mode = fi.Mode().Perm()
		}
		if err := fsys.WriteFile(dstPath, data, mode); err != nil {
			return err
		}
	}
	return nil
}

// verifyTree checks that dst mirrors src in entry names and file sizes.
func verifyTree(fsys types.FS, src, dst string) error {
	entries, err := fsys.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := verifyTree(fsys, srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		srcInfo, err := fsys.Stat(srcPath)
		if err != nil {
			return err
		}
		dstInfo, err := fsys.Stat(dstPath)
		if err != nil {
			return fmt.Errorf("missing copied file %s: %w", dstPath, err)
		}
		if srcInfo.Size() != dstInfo.Size() {
			return fmt.Errorf("size mismatch for %s: %d != %d", dstPath, srcInfo.Size(), dstInfo.Size())
		}
	}
	return nil
}

// RecoverBackups resolves backup directories left under dir by an
// interrupted update. When the original directory is missing, the
// replacement never landed and the backup is renamed back into place;
// when both exist, the update completed and the backup is dropped.
// Either way the addon ends up existing exactly once.
func RecoverBackups(fsys types.FS, dir string) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), BackupSuffix) {
			continue
		}
		backup := filepath.Join(dir, entry.Name())
		original := filepath.Join(dir, strings.TrimSuffix(entry.Name(), BackupSuffix))
		if _, err := fsys.Stat(original); err == nil {
			if err := fsys.RemoveAll(backup); err != nil {
				return err
			}
			continue
		}
		if err := fsys.Rename(backup, original); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPartials removes leftover partial-suffixed directories under
// dir. Interrupted cross-volume moves leave these behind; they are safe
// to delete because the source of an unfinished move is never removed.
func DiscardPartials(fsys types.FS, dir string) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), PartialSuffix) {
			if err := fsys.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
