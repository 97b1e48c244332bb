package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wowplug/wowplug/pkg/cachestore"
	"github.com/wowplug/wowplug/pkg/filesystem"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/types"
)

// Executor applies a reconciliation plan. Fetches for independent addons
// run concurrently behind a bounded worker pool; every mutation that
// touches the live/cache ownership invariant runs on a single goroutine,
// in plan order, so moves are never concurrent with each other.
type Executor struct {
	fs         types.FS
	cache      *cachestore.Store
	fetcher    types.Fetcher
	addonsDir  string
	stagingDir string
	logger     zerolog.Logger
}

// NewExecutor creates an executor mutating addonsDir and the given
// cache.
func NewExecutor(fsys types.FS, cache *cachestore.Store, fetcher types.Fetcher, addonsDir, stagingDir string) *Executor {
	return &Executor{
		fs:         fsys,
		cache:      cache,
		fetcher:    fetcher,
		addonsDir:  addonsDir,
		stagingDir: stagingDir,
		logger:     logging.GetLogger("executor"),
	}
}

type fetchResult struct {
	staged string
	err    error
}

// Execute applies the plan entry by entry and returns the run report.
// Individual failures never abort the batch; cancellation is honored
// between entries, never mid-move.
func (e *Executor) Execute(ctx context.Context, plan *types.ReconciliationPlan, opts Options) *types.Report {
	report := &types.Report{}

	fetched := e.fetchAll(ctx, plan, opts)

	for i := range plan.Entries {
		entry := plan.Entries[i]

		if ctx.Err() != nil && entry.Action.Mutates() {
			report.Add(types.ReportEntry{
				Name:    entry.Name,
				Action:  entry.Action,
				Outcome: types.OutcomeFailed,
				Detail:  "run cancelled",
			})
			continue
		}

		report.Add(e.executeEntry(entry, fetched[i]))
	}

	return report
}

// fetchAll downloads the archives for install/update entries with a
// bounded worker pool. Results are keyed by plan index; fetch failures
// surface when the entry is executed.
func (e *Executor) fetchAll(ctx context.Context, plan *types.ReconciliationPlan, opts Options) map[int]fetchResult {
	indexes := make([]int, 0)
	for i, entry := range plan.Entries {
		if entry.Action == types.ActionInstall || entry.Action == types.ActionUpdate {
			indexes = append(indexes, i)
		}
	}

	results := make(map[int]fetchResult, len(indexes))
	if len(indexes) == 0 {
		return results
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = 4
	}
	if workers > len(indexes) {
		workers = len(indexes)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entry := plan.Entries[i]
				staged, err := e.fetcher.Fetch(ctx, entry.Source, entry.Name)
				mu.Lock()
				results[i] = fetchResult{staged: staged, err: err}
				mu.Unlock()
			}
		}()
	}
	for _, i := range indexes {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// executeEntry applies one decision. All paths through here preserve the
// invariant that an addon exists in at most one of {live, cache}, and
// never in neither after a crash mid-move.
func (e *Executor) executeEntry(entry types.PlanEntry, fetched fetchResult) types.ReportEntry {
	result := types.ReportEntry{
		Name:   entry.Name,
		Action: entry.Action,
	}

	switch entry.Action {
	case types.ActionKeep, types.ActionSkip:
		result.Outcome = types.OutcomeSuccess
		result.Detail = entry.Reason

	case types.ActionSkipAmbiguous:
		result.Outcome = types.OutcomeFailed
		result.Detail = entry.Reason + candidateList(entry.Candidates)

	case types.ActionSkipFailed:
		result.Outcome = types.OutcomeFailed
		result.Detail = entry.Reason

	case types.ActionRestore:
		if err := e.cache.Take(entry.Name, filepath.Join(e.addonsDir, entry.Name)); err != nil {
			result.Outcome = types.OutcomeFailed
			result.Detail = err.Error()
			break
		}
		result.Outcome = types.OutcomeSuccess
		result.Detail = "restored from cache"

	case types.ActionInstall:
		result.Outcome, result.Detail = e.install(entry, fetched)

	case types.ActionUpdate:
		result.Outcome, result.Detail = e.update(entry, fetched)

	case types.ActionQuarantine:
		if err := e.cache.Put(entry.Name, entry.LivePath); err != nil {
			result.Outcome = types.OutcomeFailed
			result.Detail = err.Error()
			break
		}
		result.Outcome = types.OutcomeSuccess
		result.Detail = "moved to cache"

	case types.ActionDelete:
		result.Outcome, result.Detail = e.delete(entry)

	default:
		result.Outcome = types.OutcomeFailed
		result.Detail = fmt.Sprintf("unknown action %q", entry.Action)
	}

	evt := e.logger.Info()
	if result.Outcome == types.OutcomeFailed {
		evt = e.logger.Warn()
	}
	evt.Str("addon", entry.Name).
		Str("action", string(entry.Action)).
		Str("outcome", string(result.Outcome)).
		Msg("Plan entry executed")

	return result
}

// install moves a staged fetch into the live directory. Failures leave
// the live tree untouched; the staged artifact is discarded either way.
func (e *Executor) install(entry types.PlanEntry, fetched fetchResult) (types.Outcome, string) {
	if fetched.err != nil {
		return types.OutcomeFailed, "fetch failed: " + fetched.err.Error()
	}
	defer e.discardStaging(fetched.staged)

	dst := filepath.Join(e.addonsDir, entry.Name)
	if err := filesystem.MoveDir(e.fs, fetched.staged, dst); err != nil {
		return types.OutcomeFailed, err.Error()
	}
	return types.OutcomeSuccess, "installed from " + entry.Source.Source
}

// update replaces a live addon with its staged replacement. The old copy
// is parked beside the live tree until the new one is in place, so a
// failure rolls back rather than losing the addon.
func (e *Executor) update(entry types.PlanEntry, fetched fetchResult) (types.Outcome, string) {
	if fetched.err != nil {
		return types.OutcomeFailed, "fetch failed: " + fetched.err.Error()
	}
	defer e.discardStaging(fetched.staged)

	livePath := entry.LivePath
	if livePath == "" {
		livePath = filepath.Join(e.addonsDir, entry.Name)
	}
	backup := livePath + filesystem.BackupSuffix

	// A backup surviving from an interrupted update would block the
	// rename; the live copy is authoritative, so drop it.
	if err := e.fs.RemoveAll(backup); err != nil {
		return types.OutcomeFailed, "could not clear stale backup: " + err.Error()
	}
	if err := e.fs.Rename(livePath, backup); err != nil {
		return types.OutcomeFailed, "could not set aside current version: " + err.Error()
	}
	if err := filesystem.MoveDir(e.fs, fetched.staged, livePath); err != nil {
		if rerr := e.fs.Rename(backup, livePath); rerr != nil {
			e.logger.Error().Err(rerr).Str("addon", entry.Name).Msg("Rollback of update failed")
		}
		return types.OutcomeFailed, err.Error()
	}
	if err := e.fs.RemoveAll(backup); err != nil {
		e.logger.Warn().Err(err).Str("addon", entry.Name).Msg("Could not remove replaced version")
	}
	return types.OutcomeSuccess, "updated to " + entry.Source.Version
}

// delete removes an addon from the live tree permanently. The live copy
// is quarantined first and then dropped from the cache, keeping delete
// a terminal variant of quarantine rather than a direct removal.
func (e *Executor) delete(entry types.PlanEntry) (types.Outcome, string) {
	if entry.LivePath != "" {
		if err := e.cache.Put(entry.Name, entry.LivePath); err != nil {
			return types.OutcomeFailed, err.Error()
		}
	}
	if err := e.cache.Remove(entry.Name); err != nil {
		return types.OutcomeFailed, err.Error()
	}
	return types.OutcomeSuccess, "deleted"
}

// discardStaging removes the per-fetch staging run directory that holds
// staged (which may sit below the archive's own folder nesting).
func (e *Executor) discardStaging(staged string) {
	if staged == "" || e.stagingDir == "" {
		return
	}
	rel, err := filepath.Rel(e.stagingDir, staged)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) == 0 || parts[0] == "." {
		return
	}
	runDir := filepath.Join(e.stagingDir, parts[0])
	if err := e.fs.RemoveAll(runDir); err != nil {
		e.logger.Warn().Err(err).Str("path", runDir).Msg("Could not clean staging directory")
	}
}

func candidateList(cands []types.Candidate) string {
	if len(cands) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("; candidates:")
	for _, c := range cands {
		fmt.Fprintf(&b, " %s(%.2f)", c.Name, c.Confidence)
	}
	return b.String()
}
