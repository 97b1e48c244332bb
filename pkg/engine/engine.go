package engine

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wowplug/wowplug/pkg/cachestore"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/filesystem"
	"github.com/wowplug/wowplug/pkg/lockfile"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/manifest"
	"github.com/wowplug/wowplug/pkg/paths"
	"github.com/wowplug/wowplug/pkg/types"
)

// Engine ties the reconciliation pieces together for one run: lock,
// scan, diff, execute, report.
type Engine struct {
	fs       types.FS
	scanner  types.Scanner
	resolver types.Resolver
	fetcher  types.Fetcher
	logger   zerolog.Logger
}

// New creates an engine over the given collaborators.
func New(fsys types.FS, scanner types.Scanner, resolver types.Resolver, fetcher types.Fetcher) *Engine {
	return &Engine{
		fs:       fsys,
		scanner:  scanner,
		resolver: resolver,
		fetcher:  fetcher,
		logger:   logging.GetLogger("engine"),
	}
}

// Run reconciles the live directory against the manifest. Fatal errors
// (bad manifest handled by the caller, missing directory, held lock)
// return before any mutation; per-addon failures land in the report
// instead.
func (e *Engine) Run(ctx context.Context, m *types.Manifest, p paths.Paths, opts Options) (*types.Report, error) {
	lock, err := lockfile.Acquire(p.LockFilePath())
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			e.logger.Warn().Err(rerr).Msg("Failed to release lock")
		}
	}()

	// Interrupted runs leave traces behind: partial directories from
	// cross-volume moves and parked backups from updates. Both are
	// resolved before the scan so the diff sees a consistent world.
	if err := filesystem.DiscardPartials(e.fs, p.AddonsDir()); err != nil {
		return nil, errors.Wrap(err, errors.ErrFileAccess, "failed to clear partial moves")
	}
	if err := filesystem.RecoverBackups(e.fs, p.AddonsDir()); err != nil {
		return nil, errors.Wrap(err, errors.ErrFileAccess, "failed to recover interrupted updates")
	}

	live, err := e.scanner.Scan(p.AddonsDir())
	if err != nil {
		return nil, err
	}

	cache, err := cachestore.New(e.fs, p.QuarantineDir())
	if err != nil {
		return nil, err
	}
	cached, err := cache.List()
	if err != nil {
		return nil, err
	}

	cached = e.fixOwnershipViolations(live, cached, cache)

	plan := BuildPlan(ctx, PlanInput{
		Desired: manifest.Desired(m, opts.Clean),
		Live:    live,
		Cached:  cached,
	}, e.resolver, opts)

	executor := NewExecutor(e.fs, cache, e.fetcher, p.AddonsDir(), p.StagingDir())
	report := executor.Execute(ctx, plan, opts)

	e.logger.Info().
		Int("entries", len(report.Entries)).
		Bool("failed", report.Failed()).
		Msg("Reconciliation run complete")
	return report, nil
}

// fixOwnershipViolations handles a name present in both live and cache: a
// detected invariant violation. The live copy wins; the stale cache copy
// is dropped with a warning before planning so the diff sees a
// consistent world.
func (e *Engine) fixOwnershipViolations(live, cached []types.AddonRecord, cache *cachestore.Store) []types.AddonRecord {
	liveKeys := make(map[string]bool, len(live))
	for _, r := range live {
		liveKeys[strings.ToLower(r.Name)] = true
	}

	kept := cached[:0]
	for _, r := range cached {
		if liveKeys[strings.ToLower(r.Name)] {
			e.logger.Warn().
				Str("addon", r.Name).
				Msg("Addon present in both live directory and cache; dropping stale cache copy")
			if err := cache.Remove(r.Name); err != nil {
				e.logger.Error().Err(err).Str("addon", r.Name).Msg("Failed to drop stale cache copy")
			}
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
