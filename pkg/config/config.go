// Package config loads wowplug's layered configuration: embedded
// defaults, then the user config file, then WOWPLUG_* environment
// variables.
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"
	"github.com/wowplug/wowplug/pkg/errors"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// baseConfig is the programmatic floor below the embedded file: values
// the rest of the code assumes are always set, even if defaults.toml is
// ever trimmed.
var baseConfig = map[string]interface{}{
	"resolver.min_score":      0.80,
	"resolver.min_margin":     0.05,
	"resolver.max_candidates": 5,
	"fetch.timeout":           "30s",
	"fetch.retries":           3,
	"fetch.backoff":           "2s",
	"fetch.concurrency":       4,
}

// rawBytesProvider implements a koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New(errors.ErrInternal, "not implemented")
}

// GithubSpec identifies one GitHub-hosted addon collection.
type GithubSpec struct {
	Repo      string `koanf:"repo" toml:"repo"`
	AddonPath string `koanf:"addon_path" toml:"addon_path"`
}

// Settings is the typed view of the effective configuration.
type Settings struct {
	Scan struct {
		Dir string `koanf:"dir"`
	} `koanf:"scan"`

	Sync struct {
		File string `koanf:"file"`
	} `koanf:"sync"`

	Resolver struct {
		MinScore      float64  `koanf:"min_score"`
		MinMargin     float64  `koanf:"min_margin"`
		MaxCandidates int      `koanf:"max_candidates"`
		Blacklist     []string `koanf:"blacklist"`
	} `koanf:"resolver"`

	Fetch struct {
		Timeout     time.Duration `koanf:"timeout"`
		Retries     int           `koanf:"retries"`
		Backoff     time.Duration `koanf:"backoff"`
		Concurrency int           `koanf:"concurrency"`
	} `koanf:"fetch"`

	Catalog struct {
		Github []GithubSpec `koanf:"github"`
	} `koanf:"catalog"`
}

// Load builds the effective configuration. configFile may be empty, in
// which case only defaults and environment overrides apply; a missing
// file is not an error, a malformed one is.
func Load(configFile string) (*Settings, error) {
	k := koanf.New(".")

	// 1. Programmatic floor, then embedded defaults
	if err := k.Load(confmap.Provider(baseConfig, "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load base configuration")
	}
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load defaults")
	}

	// 2. User config file, if present
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := k.Load(file.Provider(configFile), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", configFile)
			}
		}
	}

	// 3. Environment overrides: WOWPLUG_RESOLVER_MIN_SCORE etc.
	if err := k.Load(env.Provider("WOWPLUG_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "WOWPLUG_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
	}

	var settings Settings
	if err := k.UnmarshalWithConf("", &settings, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &settings,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to decode configuration")
	}

	return &settings, nil
}

// SaveRun records the last scanned directory and synced manifest in the
// user config file so later invocations can run without arguments. Only
// the two run-state keys are touched; everything else the user put in
// the file is preserved. Empty values leave the stored ones alone.
func SaveRun(configFile, scanDir, syncFile string) error {
	if configFile == "" || (scanDir == "" && syncFile == "") {
		return nil
	}

	raw := map[string]interface{}{}
	if data, err := os.ReadFile(configFile); err == nil {
		if err := gotoml.Unmarshal(data, &raw); err != nil {
			return errors.Wrapf(err, errors.ErrConfigParse, "failed to parse config %s", configFile)
		}
	}

	if scanDir != "" {
		setKey(raw, "scan", "dir", scanDir)
	}
	if syncFile != "" {
		setKey(raw, "sync", "file", syncFile)
	}

	out, err := gotoml.Marshal(raw)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode configuration")
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "failed to create config directory")
	}
	if err := os.WriteFile(configFile, out, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to write config %s", configFile)
	}
	return nil
}

func setKey(raw map[string]interface{}, section, key, value string) {
	sec, ok := raw[section].(map[string]interface{})
	if !ok {
		sec = map[string]interface{}{}
		raw[section] = sec
	}
	sec[key] = value
}

// Render marshals settings as TOML, the format of the user config file.
// Used by `wowplug config` to print the effective configuration.
func Render(s *Settings) (string, error) {
	out, err := gotoml.Marshal(map[string]interface{}{
		"scan":     map[string]interface{}{"dir": s.Scan.Dir},
		"sync":     map[string]interface{}{"file": s.Sync.File},
		"resolver": map[string]interface{}{
			"min_score":      s.Resolver.MinScore,
			"min_margin":     s.Resolver.MinMargin,
			"max_candidates": s.Resolver.MaxCandidates,
			"blacklist":      s.Resolver.Blacklist,
		},
		"fetch": map[string]interface{}{
			"timeout":     s.Fetch.Timeout.String(),
			"retries":     s.Fetch.Retries,
			"backoff":     s.Fetch.Backoff.String(),
			"concurrency": s.Fetch.Concurrency,
		},
		"catalog": map[string]interface{}{"github": s.Catalog.Github},
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "failed to render configuration")
	}
	return string(out), nil
}
