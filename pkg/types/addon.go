package types

import "strings"

// AddonRecord describes one addon, either as found on disk, as desired in
// a manifest, or as held in the quarantine cache.
type AddonRecord struct {
	// Name is the addon's identity. Names are compared case-insensitively
	// and must be unique within any single list.
	Name string `yaml:"name"`

	// Enabled only carries meaning in a manifest: whether the addon
	// should be live.
	Enabled bool `yaml:"enabled"`

	// Fingerprint is an opaque version marker (TOC version, or folder
	// mtime when the TOC carries none). An empty fingerprint means
	// "unknown version" and is never considered outdated.
	Fingerprint string `yaml:"fingerprint,omitempty"`

	// SourceHint is an optional catalog identifier or URL that bypasses
	// fuzzy resolution when known.
	SourceHint string `yaml:"source,omitempty"`

	// Path is the on-disk location. Set for live and cached records,
	// never for pure manifest entries.
	Path string `yaml:"-"`
}

// Key returns the case-folded identity used for name comparisons.
func (r AddonRecord) Key() string {
	return strings.ToLower(r.Name)
}

// Manifest is the ordered desired-state list of addons. Order is
// preserved on save but irrelevant to reconciliation except for
// deterministic report ordering.
type Manifest struct {
	// Addons is the desired-state list.
	Addons []AddonRecord `yaml:"addons"`

	// Scan records the directory the manifest was produced from. Sync
	// targets it unless overridden on the command line.
	Scan ManifestScan `yaml:"scan,omitempty"`
}

// ManifestScan holds the scan settings echoed into the manifest.
type ManifestScan struct {
	Dir string `yaml:"dir,omitempty"`
}

// Lookup returns the record with the given name (case-insensitive) and
// whether it was found.
func (m *Manifest) Lookup(name string) (AddonRecord, bool) {
	key := strings.ToLower(name)
	for _, a := range m.Addons {
		if a.Key() == key {
			return a, true
		}
	}
	return AddonRecord{}, false
}
