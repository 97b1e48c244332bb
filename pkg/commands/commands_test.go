package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wowplug/wowplug/pkg/config"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/filesystem"
	"github.com/wowplug/wowplug/pkg/manifest"
	"github.com/wowplug/wowplug/pkg/paths"
	"github.com/wowplug/wowplug/pkg/types"
)

func defaultSettings(t *testing.T) *config.Settings {
	t.Helper()
	s, err := config.Load("")
	require.NoError(t, err)
	return s
}

func writeAddonDir(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, "Interface", "AddOns", name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".toc"),
		[]byte("## Title: "+name+"\n## Version: 1.0\n"), 0644))
}

func TestScanWritesManifest(t *testing.T) {
	root := t.TempDir()
	writeAddonDir(t, root, "DBM")
	writeAddonDir(t, root, "WeakAuras")
	fsys := filesystem.NewOS()
	out := filepath.Join(root, "addons.yaml")

	result, err := Scan(fsys, defaultSettings(t), ScanOptions{Dir: root, Output: out})
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, filepath.Join(root, "Interface", "AddOns"), result.Dir)

	m, err := manifest.Load(fsys, out)
	require.NoError(t, err)
	require.Len(t, m.Addons, 2)
	assert.Equal(t, "DBM", m.Addons[0].Name)
	assert.True(t, m.Addons[0].Enabled)
	assert.Equal(t, "1.0", m.Addons[0].Fingerprint)
	assert.Equal(t, result.Dir, m.Scan.Dir, "sync can find the directory without flags")
}

func TestScanDirFallsBackToSettings(t *testing.T) {
	root := t.TempDir()
	writeAddonDir(t, root, "DBM")
	settings := defaultSettings(t)
	settings.Scan.Dir = root

	result, err := Scan(filesystem.NewOS(), settings, ScanOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestScanErrors(t *testing.T) {
	t.Run("no directory anywhere", func(t *testing.T) {
		_, err := Scan(filesystem.NewOS(), defaultSettings(t), ScanOptions{})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrDirectoryNotFound))
	})

	t.Run("empty directory", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "Interface", "AddOns"), 0755))
		_, err := Scan(filesystem.NewOS(), defaultSettings(t), ScanOptions{Dir: root})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
		assert.Contains(t, err.Error(), "no addon found in")
	})
}

func TestSyncQuarantinesDisabledAddon(t *testing.T) {
	root := t.TempDir()
	t.Setenv(paths.EnvCacheDir, filepath.Join(root, "xdg-cache"))
	writeAddonDir(t, root, "DBM")
	writeAddonDir(t, root, "WeakAuras")
	fsys := filesystem.NewOS()

	file := filepath.Join(root, "addons.yaml")
	m := &types.Manifest{
		Addons: []types.AddonRecord{
			{Name: "DBM", Enabled: true},
			{Name: "WeakAuras", Enabled: false},
		},
		Scan: types.ManifestScan{Dir: filepath.Join(root, "Interface", "AddOns")},
	}
	require.NoError(t, manifest.Save(fsys, file, m))

	report, err := Sync(context.Background(), fsys, defaultSettings(t), SyncOptions{File: file})
	require.NoError(t, err)
	assert.False(t, report.Failed())

	_, err = os.Stat(filepath.Join(root, "Interface", "AddOns", "WeakAuras"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "Interface", ".wowplugcache", "WeakAuras"))
	assert.NoError(t, err)

	// the manifest file itself is never rewritten by sync
	reloaded, err := manifest.Load(fsys, file)
	require.NoError(t, err)
	assert.False(t, reloaded.Addons[1].Enabled)
}

func TestScanThenSyncWithoutArguments(t *testing.T) {
	root := t.TempDir()
	t.Setenv(paths.EnvCacheDir, filepath.Join(root, "xdg-cache"))
	writeAddonDir(t, root, "DBM")
	fsys := filesystem.NewOS()
	configFile := filepath.Join(root, "wowplug.toml")
	out := filepath.Join(root, "addons.yaml")

	_, err := Scan(fsys, defaultSettings(t), ScanOptions{
		Dir:        root,
		Output:     out,
		ConfigFile: configFile,
	})
	require.NoError(t, err)

	// the scan remembered both the directory and the manifest
	settings, err := config.Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Interface", "AddOns"), settings.Scan.Dir)
	assert.Equal(t, out, settings.Sync.File)

	// so an argument-less sync just works
	report, err := Sync(context.Background(), fsys, settings, SyncOptions{ConfigFile: configFile})
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, types.ActionKeep, report.Entries[0].Action)

	// and an argument-less re-scan does too
	result, err := Scan(fsys, settings, ScanOptions{ConfigFile: configFile})
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestSyncErrors(t *testing.T) {
	fsys := filesystem.NewOS()

	t.Run("no manifest anywhere", func(t *testing.T) {
		_, err := Sync(context.Background(), fsys, defaultSettings(t), SyncOptions{})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrManifestInvalid))
	})

	t.Run("manifest without target directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "addons.yaml")
		m := &types.Manifest{Addons: []types.AddonRecord{{Name: "DBM", Enabled: true}}}
		require.NoError(t, manifest.Save(fsys, file, m))

		_, err := Sync(context.Background(), fsys, defaultSettings(t), SyncOptions{File: file})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrDirectoryNotFound))
	})
}
