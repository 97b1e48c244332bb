package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/filesystem"
	"github.com/wowplug/wowplug/pkg/types"
)

func gameTree(t *testing.T) types.FS {
	t.Helper()
	fsys := filesystem.NewMemory()
	require.NoError(t, fsys.MkdirAll("/wow/Interface/AddOns", 0755))
	return fsys
}

func TestResolveAddonsDir(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		expected string
	}{
		{name: "addons directory itself", dir: "/wow/Interface/AddOns", expected: "/wow/Interface/AddOns"},
		{name: "interface directory", dir: "/wow/Interface", expected: "/wow/Interface/AddOns"},
		{name: "game root", dir: "/wow", expected: "/wow/Interface/AddOns"},
		{name: "trailing slash", dir: "/wow/Interface/AddOns/", expected: "/wow/Interface/AddOns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAddonsDir(gameTree(t), tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveAddonsDirPlainDirectory(t *testing.T) {
	fsys := filesystem.NewMemory()
	require.NoError(t, fsys.MkdirAll("/some/addons", 0755))

	got, err := ResolveAddonsDir(fsys, "/some/addons")
	require.NoError(t, err)
	assert.Equal(t, "/some/addons", got, "a directory without game structure is taken as-is")
}

func TestResolveAddonsDirErrors(t *testing.T) {
	fsys := filesystem.NewMemory()
	require.NoError(t, fsys.MkdirAll("/wow", 0755))
	require.NoError(t, fsys.WriteFile("/wow/file.txt", []byte("x"), 0644))

	for _, dir := range []string{"/missing", "/wow/file.txt"} {
		_, err := ResolveAddonsDir(fsys, dir)
		require.Error(t, err, dir)
		assert.True(t, errors.IsErrorCode(err, errors.ErrDirectoryNotFound))
	}
}

func TestPathsLayout(t *testing.T) {
	p, err := New(gameTree(t), "/wow")
	require.NoError(t, err)

	assert.Equal(t, "/wow/Interface/AddOns", p.AddonsDir())
	assert.Equal(t, "/wow/Interface/AddOns/DBM", p.AddonPath("DBM"))
	assert.Equal(t, "/wow/Interface/.wowplugcache", p.QuarantineDir(),
		"quarantine sits next to AddOns, never inside it")
	assert.Equal(t, "/wow/Interface/AddOns/.wowplug.lock", p.LockFilePath())
	assert.Equal(t, StagingDirName, filepath.Base(p.StagingDir()))
	assert.Equal(t, ConfigFileName, filepath.Base(p.ConfigFilePath()))
}

func TestPathsEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfigDir, "/custom/config")
	t.Setenv(EnvCacheDir, "/custom/cache")

	p, err := New(gameTree(t), "/wow")
	require.NoError(t, err)

	assert.Equal(t, "/custom/config", p.ConfigDir())
	assert.Equal(t, "/custom/config/wowplug.toml", p.ConfigFilePath())
	assert.Equal(t, "/custom/cache/staging", p.StagingDir())
	assert.Equal(t, "/custom/config/wowplug.toml", DefaultConfigFilePath())
}
