// Package manifest loads and saves the user-edited desired-state addon
// list. The file is YAML, ordered, and owned by the user: `scan` rewrites
// it, `sync` and `clean` only ever read it.
package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/types"
)

// Load reads and validates a manifest file. A malformed file or
// duplicate addon names (case-insensitive) are fatal: the run aborts
// before any mutation.
func Load(fsys types.FS, path string) (*types.Manifest, error) {
	logger := logging.GetLogger("manifest")

	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrManifestInvalid, "manifest file %s does not exist", path)
		}
		return nil, errors.Wrapf(err, errors.ErrManifestInvalid, "failed to read manifest %s", path)
	}

	var m types.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestInvalid, "failed to parse manifest %s", path)
	}

	if err := Validate(&m); err != nil {
		return nil, err
	}

	logger.Debug().Str("path", path).Int("addons", len(m.Addons)).Msg("Manifest loaded")
	return &m, nil
}

// Validate rejects manifests that break the name-uniqueness invariant or
// carry empty names.
func Validate(m *types.Manifest) error {
	seen := make(map[string]string, len(m.Addons))
	for _, a := range m.Addons {
		if strings.TrimSpace(a.Name) == "" {
			return errors.New(errors.ErrManifestInvalid, "manifest entry with empty name")
		}
		if prev, ok := seen[a.Key()]; ok {
			return errors.Newf(errors.ErrManifestInvalid,
				"duplicate addon name %q (conflicts with %q)", a.Name, prev)
		}
		seen[a.Key()] = a.Name
	}
	return nil
}

// Save writes the manifest, preserving entry order. The parent directory
// is created if needed.
func Save(fsys types.FS, path string, m *types.Manifest) error {
	if err := Validate(m); err != nil {
		return err
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.Wrapf(err, errors.ErrInternal, "failed to encode manifest")
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create manifest directory")
	}
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to write manifest %s", path)
	}

	logger := logging.GetLogger("manifest")
	logger.Debug().Str("path", path).Int("addons", len(m.Addons)).Msg("Manifest saved")
	return nil
}

// Desired filters the manifest down to the entries that should be live.
// In clean mode every entry is treated as disabled, so the desired set is
// empty and reconciliation only quarantines or deletes.
func Desired(m *types.Manifest, clean bool) []types.AddonRecord {
	if clean {
		return nil
	}
	var out []types.AddonRecord
	for _, a := range m.Addons {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}
