// Package scanner inspects a live AddOns directory and produces the
// current-state addon inventory. An addon is a folder containing a
// <folder>.toc file; the TOC's `## Key: Value` headers supply metadata.
package scanner

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/filesystem"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/paths"
	"github.com/wowplug/wowplug/pkg/types"
)

var tocHeaderRe = regexp.MustCompile(`^##\s*(\w+)\s*:\s*(.+)$`)

// TOC holds the parsed headers of an addon's .toc file.
type TOC struct {
	Interface string
	Title     string
	Version   string
	Fields    map[string]string
}

// DirScanner implements types.Scanner against a types.FS.
type DirScanner struct {
	fs     types.FS
	logger zerolog.Logger
}

// New creates a directory scanner.
func New(fsys types.FS) *DirScanner {
	return &DirScanner{
		fs:     fsys,
		logger: logging.GetLogger("scanner"),
	}
}

// Scan returns the addons found under dir. dir is normalized the same
// way the engine normalizes it (game root, Interface, or AddOns are all
// accepted). Folders whose name does not match their .toc stem are
// invalid and excluded with a warning. Duplicate names are merged
// last-write-wins by modification time, never silently dropped.
func (s *DirScanner) Scan(dir string) ([]types.AddonRecord, error) {
	addonsDir, err := paths.ResolveAddonsDir(s.fs, dir)
	if err != nil {
		return nil, err
	}

	entries, err := s.fs.ReadDir(addonsDir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirectoryNotFound, "failed to read %s", addonsDir)
	}

	type scanned struct {
		record types.AddonRecord
		mtime  time.Time
	}
	byKey := make(map[string]scanned)
	var order []string

	for _, entry := range entries {
		if !entry.IsDir() ||
			strings.HasSuffix(entry.Name(), filesystem.PartialSuffix) ||
			strings.HasSuffix(entry.Name(), filesystem.BackupSuffix) {
			continue
		}
		name := entry.Name()
		addonPath := filepath.Join(addonsDir, name)

		toc, err := s.readTOC(addonPath, name)
		if err != nil {
			s.logger.Warn().Err(err).Str("addon", name).Msg("Skipping invalid addon folder")
			continue
		}

		mtime := time.Time{}
		if info, err := entry.Info(); err == nil {
			mtime = info.ModTime()
		}

		rec := types.AddonRecord{
			Name:        name,
			Enabled:     true,
			Fingerprint: fingerprint(toc, mtime),
			Path:        addonPath,
		}

		key := rec.Key()
		if prev, ok := byKey[key]; ok {
			// Duplicate identity: keep the most recently modified copy.
			kept := name
			if mtime.Before(prev.mtime) {
				kept = prev.record.Name
			}
			s.logger.Warn().
				Str("addon", name).
				Str("kept", kept).
				Msg("Duplicate addon name, keeping most recently modified")
			if mtime.Before(prev.mtime) {
				continue
			}
			byKey[key] = scanned{record: rec, mtime: mtime}
			continue
		}
		byKey[key] = scanned{record: rec, mtime: mtime}
		order = append(order, key)
	}

	sort.Strings(order)
	records := make([]types.AddonRecord, 0, len(order))
	for _, key := range order {
		records = append(records, byKey[key].record)
	}

	s.logger.Debug().Str("dir", addonsDir).Int("addons", len(records)).Msg("Scan complete")
	return records, nil
}

// readTOC locates and parses the addon's TOC file. The TOC stem must
// match the folder name, otherwise the addon is not valid.
func (s *DirScanner) readTOC(addonPath, name string) (*TOC, error) {
	tocPath := filepath.Join(addonPath, name+".toc")
	data, err := s.fs.ReadFile(tocPath)
	if err != nil {
		// A differently-named .toc means the folder is not a valid addon
		// root (wowplug treats the stem as the identity).
		return nil, errors.Wrapf(err, errors.ErrAddonInvalid, "no %s.toc in %s", name, addonPath)
	}
	return ParseTOC(string(data)), nil
}

// ParseTOC extracts `## Key: Value` headers from TOC content.
func ParseTOC(content string) *TOC {
	toc := &TOC{Fields: make(map[string]string)}
	for _, line := range strings.Split(content, "\n") {
		m := tocHeaderRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		key, value := m[1], strings.TrimSpace(m[2])
		toc.Fields[key] = value
		switch key {
		case "Interface":
			toc.Interface = value
		case "Title":
			toc.Title = value
		case "Version":
			toc.Version = value
		}
	}
	return toc
}

// fingerprint derives the staleness marker: the TOC version when the
// addon declares one, otherwise the folder modification time. An addon
// with neither keeps an empty fingerprint ("unknown version").
func fingerprint(toc *TOC, mtime time.Time) string {
	if toc.Version != "" {
		return toc.Version
	}
	if !mtime.IsZero() {
		return mtime.UTC().Format(time.RFC3339)
	}
	return ""
}
