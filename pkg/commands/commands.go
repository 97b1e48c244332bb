// Package commands implements the operations behind the wowplug CLI:
// scan, sync, and clean. The cmd layer owns flag parsing and rendering;
// this package owns orchestration.
package commands

import (
	"context"
	"net/http"

	"github.com/wowplug/wowplug/pkg/catalog"
	"github.com/wowplug/wowplug/pkg/config"
	"github.com/wowplug/wowplug/pkg/engine"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/manifest"
	"github.com/wowplug/wowplug/pkg/paths"
	"github.com/wowplug/wowplug/pkg/scanner"
	"github.com/wowplug/wowplug/pkg/types"
)

// ScanOptions configures a scan run.
type ScanOptions struct {
	// Dir is the directory to scan; falls back to the previously
	// scanned directory from the settings.
	Dir string

	// Output, when set, writes the inventory as a manifest usable by
	// sync.
	Output string

	// ConfigFile, when set, is where the scanned directory (and the
	// written manifest) are remembered for argument-less runs.
	ConfigFile string
}

// ScanResult is what scan found and, when requested, wrote out.
type ScanResult struct {
	Records  []types.AddonRecord
	Manifest *types.Manifest
	Dir      string
}

// Scan inventories an addon directory and optionally writes a manifest.
func Scan(fsys types.FS, settings *config.Settings, opts ScanOptions) (*ScanResult, error) {
	dir := opts.Dir
	if dir == "" {
		dir = settings.Scan.Dir
	}
	if dir == "" {
		return nil, errors.New(errors.ErrDirectoryNotFound,
			"no directory to scan: none given and none saved from a previous scan")
	}

	addonsDir, err := paths.ResolveAddonsDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	records, err := scanner.New(fsys).Scan(addonsDir)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Newf(errors.ErrNotFound, "no addon found in %s", addonsDir)
	}

	m := &types.Manifest{
		Addons: records,
		Scan:   types.ManifestScan{Dir: addonsDir},
	}
	// Manifest entries never carry live paths.
	for i := range m.Addons {
		m.Addons[i].Path = ""
	}

	if opts.Output != "" {
		if err := manifest.Save(fsys, opts.Output, m); err != nil {
			return nil, err
		}
		logger := logging.GetLogger("scan")
		logger.Info().Str("path", opts.Output).Msg("Manifest written")
	}

	rememberRun(opts.ConfigFile, addonsDir, opts.Output)

	return &ScanResult{Records: records, Manifest: m, Dir: addonsDir}, nil
}

// rememberRun persists the run state for argument-less invocations. A
// write failure is worth a warning, never a failed run.
func rememberRun(configFile, scanDir, syncFile string) {
	if err := config.SaveRun(configFile, scanDir, syncFile); err != nil {
		logger := logging.GetLogger("config")
		logger.Warn().Err(err).Msg("Could not remember run state")
	}
}

// SyncOptions configures a sync or clean run.
type SyncOptions struct {
	// File is the manifest; falls back to the previously synced file
	// from the settings.
	File string

	// Update attempts a version refresh for addons that would be kept.
	Update bool

	// Delete removes unwanted addons instead of quarantining them.
	Delete bool

	// Clean treats every manifest entry as disabled.
	Clean bool

	// TargetDir overrides the manifest's scan directory.
	TargetDir string

	// ConfigFile, when set, is where the synced manifest is remembered
	// for argument-less runs.
	ConfigFile string
}

// Sync reconciles the addon directory against the manifest and returns
// the run report. The manifest file is never rewritten.
func Sync(ctx context.Context, fsys types.FS, settings *config.Settings, opts SyncOptions) (*types.Report, error) {
	file := opts.File
	if file == "" {
		file = settings.Sync.File
	}
	if file == "" {
		return nil, errors.New(errors.ErrManifestInvalid,
			"no manifest to sync: none given and none saved from a previous scan")
	}

	m, err := manifest.Load(fsys, file)
	if err != nil {
		return nil, err
	}

	targetDir := opts.TargetDir
	if targetDir == "" {
		targetDir = m.Scan.Dir
	}
	if targetDir == "" {
		return nil, errors.New(errors.ErrDirectoryNotFound,
			"no target directory: manifest has no scan dir and none was given")
	}

	p, err := paths.New(fsys, targetDir)
	if err != nil {
		return nil, err
	}

	var providers []catalog.Provider
	for _, spec := range settings.Catalog.Github {
		providers = append(providers, catalog.NewGithubProvider(spec.Repo, spec.AddonPath, http.DefaultClient))
	}
	resolver := catalog.NewResolver(providers, catalog.ResolverOptions{
		MaxCandidates: settings.Resolver.MaxCandidates,
		Blacklist:     settings.Resolver.Blacklist,
	})
	fetcher := catalog.NewFetcher(http.DefaultClient, p.StagingDir(), catalog.FetcherOptions{
		Timeout: settings.Fetch.Timeout,
		Retries: settings.Fetch.Retries,
		Backoff: settings.Fetch.Backoff,
	})

	eng := engine.New(fsys, scanner.New(fsys), resolver, fetcher)
	report, err := eng.Run(ctx, m, p, engine.Options{
		Update:      opts.Update,
		Delete:      opts.Delete,
		Clean:       opts.Clean,
		TargetDir:   targetDir,
		MinScore:    settings.Resolver.MinScore,
		MinMargin:   settings.Resolver.MinMargin,
		Concurrency: settings.Fetch.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	rememberRun(opts.ConfigFile, "", file)
	return report, nil
}
