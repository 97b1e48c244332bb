// Package paths provides centralized path handling for wowplug.
// It implements XDG Base Directory specification compliance and
// provides a consistent API for all path operations in the codebase.
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/types"
)

// Environment variable names
const (
	// EnvConfigDir overrides the XDG config directory for wowplug
	EnvConfigDir = "WOWPLUG_CONFIG_DIR"

	// EnvCacheDir overrides the XDG cache directory for wowplug
	EnvCacheDir = "WOWPLUG_CACHE_DIR"
)

// Default directories and files.
// The quarantine cache and lock file live next to the addon directory so
// that moves between them stay on one volume whenever possible.
const (
	// AppDirName is the directory name for wowplug-specific files
	AppDirName = "wowplug"

	// QuarantineDirName is the quarantine cache directory, a sibling of
	// the AddOns directory
	QuarantineDirName = ".wowplugcache"

	// LockFileName is the lock file guarding a sync run
	LockFileName = ".wowplug.lock"

	// ConfigFileName is the user configuration file
	ConfigFileName = "wowplug.toml"

	// AddonsDirName is the game client's addon directory name
	AddonsDirName = "AddOns"

	// InterfaceDirName is the game client's interface directory name
	InterfaceDirName = "Interface"

	// StagingDirName is the subdirectory for fetch staging
	StagingDirName = "staging"
)

// Paths provides centralized path management for wowplug
type Paths interface {
	// AddonsDir is the normalized live addon directory for this run.
	AddonsDir() string

	// AddonPath returns the live directory of a named addon.
	AddonPath(name string) string

	// QuarantineDir is the cache directory holding disabled addons.
	QuarantineDir() string

	// StagingDir is where fetched archives are unpacked, outside both
	// the live and cache trees.
	StagingDir() string

	// LockFilePath is the exclusive lock guarding the live directory.
	LockFilePath() string

	// ConfigDir is the user configuration directory.
	ConfigDir() string

	// ConfigFilePath is the user configuration file.
	ConfigFilePath() string
}

type paths struct {
	addonsDir string
	configDir string
	cacheDir  string
}

// New creates a Paths rooted at the given addon directory. The directory
// is accepted as the game root, the Interface directory, or the AddOns
// directory itself, matching what players tend to point tools at.
func New(fsys types.FS, dir string) (Paths, error) {
	addonsDir, err := ResolveAddonsDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	configDir := os.Getenv(EnvConfigDir)
	if configDir == "" {
		configDir = filepath.Join(xdg.ConfigHome, AppDirName)
	}
	cacheDir := os.Getenv(EnvCacheDir)
	if cacheDir == "" {
		cacheDir = filepath.Join(xdg.CacheHome, AppDirName)
	}

	return &paths{
		addonsDir: addonsDir,
		configDir: configDir,
		cacheDir:  cacheDir,
	}, nil
}

// DefaultConfigFilePath locates the user configuration file without
// needing a target directory (used before any run is set up).
func DefaultConfigFilePath() string {
	configDir := os.Getenv(EnvConfigDir)
	if configDir == "" {
		configDir = filepath.Join(xdg.ConfigHome, AppDirName)
	}
	return filepath.Join(configDir, ConfigFileName)
}

// ResolveAddonsDir normalizes a user-supplied directory to the AddOns
// directory: the directory itself when named AddOns, Interface/AddOns
// below a game root or Interface directory, otherwise the directory
// as-is.
func ResolveAddonsDir(fsys types.FS, dir string) (string, error) {
	dir = filepath.Clean(dir)
	info, err := fsys.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", errors.Newf(errors.ErrDirectoryNotFound, "%s is not a valid directory", dir)
	}

	switch filepath.Base(dir) {
	case AddonsDirName:
		return dir, nil
	case InterfaceDirName:
		return filepath.Join(dir, AddonsDirName), nil
	}
	nested := filepath.Join(dir, InterfaceDirName, AddonsDirName)
	if info, err := fsys.Stat(nested); err == nil && info.IsDir() {
		return nested, nil
	}
	return dir, nil
}

func (p *paths) AddonsDir() string {
	return p.addonsDir
}

func (p *paths) AddonPath(name string) string {
	return filepath.Join(p.addonsDir, name)
}

// QuarantineDir sits next to the AddOns directory, not inside it, so the
// scanner never picks it up and renames into it stay on one volume.
func (p *paths) QuarantineDir() string {
	return filepath.Join(filepath.Dir(p.addonsDir), QuarantineDirName)
}

func (p *paths) StagingDir() string {
	return filepath.Join(p.cacheDir, StagingDirName)
}

func (p *paths) LockFilePath() string {
	return filepath.Join(p.addonsDir, LockFileName)
}

func (p *paths) ConfigDir() string {
	return p.configDir
}

func (p *paths) ConfigFilePath() string {
	return filepath.Join(p.configDir, ConfigFileName)
}
