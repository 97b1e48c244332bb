package engine

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wowplug/wowplug/pkg/cachestore"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/filesystem"
	"github.com/wowplug/wowplug/pkg/types"
)

const (
	testAddonsDir  = "/wow/Interface/AddOns"
	testCacheDir   = "/wow/Interface/.wowplugcache"
	testStagingDir = "/staging"
)

// stubFetcher stages a fake addon folder on the shared filesystem.
type stubFetcher struct {
	fs    types.FS
	err   error
	calls atomic.Int64
}

func (f *stubFetcher) Fetch(ctx context.Context, cand types.Candidate, name string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	staged := testStagingDir + "/" + name + "-run/" + name
	if err := f.fs.MkdirAll(staged, 0755); err != nil {
		return "", err
	}
	if err := f.fs.WriteFile(staged+"/"+name+".toc", []byte("## Title: "+name+"\n"), 0644); err != nil {
		return "", err
	}
	return staged, nil
}

type executorFixture struct {
	fs       types.FS
	cache    *cachestore.Store
	fetcher  *stubFetcher
	executor *Executor
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	fsys := filesystem.NewMemory()
	require.NoError(t, fsys.MkdirAll(testAddonsDir, 0755))
	cache, err := cachestore.New(fsys, testCacheDir)
	require.NoError(t, err)
	fetcher := &stubFetcher{fs: fsys}
	return &executorFixture{
		fs:       fsys,
		cache:    cache,
		fetcher:  fetcher,
		executor: NewExecutor(fsys, cache, fetcher, testAddonsDir, testStagingDir),
	}
}

func (fx *executorFixture) writeLive(t *testing.T, name string) string {
	t.Helper()
	dir := testAddonsDir + "/" + name
	require.NoError(t, fx.fs.MkdirAll(dir, 0755))
	require.NoError(t, fx.fs.WriteFile(dir+"/"+name+".toc", []byte("## Title: "+name+"\n"), 0644))
	return dir
}

// assertOwnership checks the single-copy invariant for name: live xor
// cached xor absent, never both.
func (fx *executorFixture) assertOwnership(t *testing.T, name string, wantLive, wantCached bool) {
	t.Helper()
	_, err := fx.fs.Stat(testAddonsDir + "/" + name)
	isLive := err == nil
	isCached := fx.cache.Contains(name)
	assert.Equal(t, wantLive, isLive, "%s live state", name)
	assert.Equal(t, wantCached, isCached, "%s cached state", name)
	assert.False(t, isLive && isCached, "%s must never exist in both live and cache", name)
}

func TestExecuteInstall(t *testing.T) {
	fx := newExecutorFixture(t)
	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{{
		Name:   "DBM",
		Action: types.ActionInstall,
		Source: types.Candidate{Name: "DBM", Source: "https://example.com/dbm.zip"},
	}}}

	report := fx.executor.Execute(context.Background(), plan, Options{})

	require.Len(t, report.Entries, 1)
	assert.Equal(t, types.OutcomeSuccess, report.Entries[0].Outcome)
	fx.assertOwnership(t, "DBM", true, false)
	_, err := fx.fs.Stat(testAddonsDir + "/DBM/DBM.toc")
	assert.NoError(t, err)
	_, err = fx.fs.Stat(testStagingDir + "/DBM-run")
	assert.Error(t, err, "staging run directory is discarded after install")
}

func TestExecuteRestoreNeverFetches(t *testing.T) {
	fx := newExecutorFixture(t)
	live := fx.writeLive(t, "DBM")
	require.NoError(t, fx.cache.Put("DBM", live))

	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{{
		Name:   "DBM",
		Action: types.ActionRestore,
	}}}
	report := fx.executor.Execute(context.Background(), plan, Options{})

	require.Len(t, report.Entries, 1)
	assert.Equal(t, types.OutcomeSuccess, report.Entries[0].Outcome)
	assert.Equal(t, "restored from cache", report.Entries[0].Detail)
	fx.assertOwnership(t, "DBM", true, false)
	assert.Zero(t, fx.fetcher.calls.Load(), "restore must come from cache, not the network")
}

func TestExecuteQuarantine(t *testing.T) {
	fx := newExecutorFixture(t)
	live := fx.writeLive(t, "WeakAuras")

	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{{
		Name:     "WeakAuras",
		Action:   types.ActionQuarantine,
		LivePath: live,
	}}}
	report := fx.executor.Execute(context.Background(), plan, Options{})

	assert.Equal(t, types.OutcomeSuccess, report.Entries[0].Outcome)
	fx.assertOwnership(t, "WeakAuras", false, true)
	_, err := fx.fs.Stat(testCacheDir + "/WeakAuras/WeakAuras.toc")
	assert.NoError(t, err, "quarantined content is preserved for later restore")
}

func TestExecuteDelete(t *testing.T) {
	fx := newExecutorFixture(t)
	live := fx.writeLive(t, "Unwanted")

	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{{
		Name:     "Unwanted",
		Action:   types.ActionDelete,
		LivePath: live,
	}}}
	report := fx.executor.Execute(context.Background(), plan, Options{})

	assert.Equal(t, types.OutcomeSuccess, report.Entries[0].Outcome)
	fx.assertOwnership(t, "Unwanted", false, false)
}

func TestExecuteDeleteCachedCopy(t *testing.T) {
	fx := newExecutorFixture(t)
	live := fx.writeLive(t, "Parked")
	require.NoError(t, fx.cache.Put("Parked", live))

	// no LivePath: the addon only exists in the cache
	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{{
		Name:   "Parked",
		Action: types.ActionDelete,
	}}}
	report := fx.executor.Execute(context.Background(), plan, Options{})

	assert.Equal(t, types.OutcomeSuccess, report.Entries[0].Outcome)
	fx.assertOwnership(t, "Parked", false, false)
}

func TestExecuteUpdateReplacesLiveCopy(t *testing.T) {
	fx := newExecutorFixture(t)
	live := fx.writeLive(t, "DBM")
	require.NoError(t, fx.fs.WriteFile(live+"/old-only.lua", []byte("-- old"), 0644))

	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{{
		Name:     "DBM",
		Action:   types.ActionUpdate,
		LivePath: live,
		Source:   types.Candidate{Name: "DBM", Source: "zip", Version: "8.2.15"},
	}}}
	report := fx.executor.Execute(context.Background(), plan, Options{})

	require.Len(t, report.Entries, 1)
	assert.Equal(t, types.OutcomeSuccess, report.Entries[0].Outcome)
	assert.Equal(t, "updated to 8.2.15", report.Entries[0].Detail)
	fx.assertOwnership(t, "DBM", true, false)
	_, err := fx.fs.Stat(live + "/old-only.lua")
	assert.Error(t, err, "replaced version is gone")
	_, err = fx.fs.Stat(live + filesystem.BackupSuffix)
	assert.Error(t, err, "backup is removed after a successful update")
}

func TestExecuteUpdateClearsStaleBackup(t *testing.T) {
	fx := newExecutorFixture(t)
	live := fx.writeLive(t, "DBM")
	stale := live + filesystem.BackupSuffix
	require.NoError(t, fx.fs.MkdirAll(stale, 0755))
	require.NoError(t, fx.fs.WriteFile(stale+"/DBM.toc", []byte("## Title: stale\n"), 0644))

	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{{
		Name:     "DBM",
		Action:   types.ActionUpdate,
		LivePath: live,
		Source:   types.Candidate{Name: "DBM", Source: "zip", Version: "8.2.15"},
	}}}
	report := fx.executor.Execute(context.Background(), plan, Options{})

	require.Len(t, report.Entries, 1)
	assert.Equal(t, types.OutcomeSuccess, report.Entries[0].Outcome,
		"a leftover backup must not block the next update")
	fx.assertOwnership(t, "DBM", true, false)
	_, err := fx.fs.Stat(stale)
	assert.Error(t, err)
}

func TestExecuteUpdateRollsBackOnFetchFailure(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.fetcher.err = errors.New(errors.ErrFetchFailed, "boom")
	live := fx.writeLive(t, "DBM")

	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{{
		Name:     "DBM",
		Action:   types.ActionUpdate,
		LivePath: live,
		Source:   types.Candidate{Name: "DBM", Source: "zip", Version: "8.2.15"},
	}}}
	report := fx.executor.Execute(context.Background(), plan, Options{})

	assert.Equal(t, types.OutcomeFailed, report.Entries[0].Outcome)
	fx.assertOwnership(t, "DBM", true, false)
	_, err := fx.fs.Stat(live + "/DBM.toc")
	assert.NoError(t, err, "the live copy survives a failed update")
}

func TestExecuteFailuresAreIsolated(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.fetcher.err = errors.New(errors.ErrFetchFailed, "boom")
	live := fx.writeLive(t, "Unwanted")

	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{
		{Name: "Broken", Action: types.ActionInstall, Source: types.Candidate{Source: "zip"}},
		{Name: "Unwanted", Action: types.ActionQuarantine, LivePath: live},
	}}
	report := fx.executor.Execute(context.Background(), plan, Options{})

	require.Len(t, report.Entries, 2)
	assert.Equal(t, types.OutcomeFailed, report.Entries[0].Outcome)
	assert.Equal(t, types.OutcomeSuccess, report.Entries[1].Outcome,
		"the batch continues past a failed entry")
	assert.True(t, report.Failed())
}

func TestExecuteAmbiguousEntryFailsWithoutMutation(t *testing.T) {
	fx := newExecutorFixture(t)

	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{{
		Name:   "WeakAuras",
		Action: types.ActionSkipAmbiguous,
		Reason: "resolution ambiguous",
		Candidates: []types.Candidate{
			{Name: "WeakAuras", Confidence: 0.81},
			{Name: "WeakAuras2", Confidence: 0.79},
		},
	}}}
	report := fx.executor.Execute(context.Background(), plan, Options{})

	require.Len(t, report.Entries, 1)
	assert.Equal(t, types.OutcomeFailed, report.Entries[0].Outcome)
	assert.Contains(t, report.Entries[0].Detail, "WeakAuras(0.81)")
	assert.Contains(t, report.Entries[0].Detail, "WeakAuras2(0.79)")
	assert.Zero(t, fx.fetcher.calls.Load())
	fx.assertOwnership(t, "WeakAuras", false, false)
}

func TestExecuteCancelledContextSkipsMutations(t *testing.T) {
	fx := newExecutorFixture(t)
	live := fx.writeLive(t, "Unwanted")
	fx.writeLive(t, "Kept")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := &types.ReconciliationPlan{Entries: []types.PlanEntry{
		{Name: "Kept", Action: types.ActionKeep, Reason: "desired and live"},
		{Name: "Unwanted", Action: types.ActionQuarantine, LivePath: live},
	}}
	report := fx.executor.Execute(ctx, plan, Options{})

	require.Len(t, report.Entries, 2)
	assert.Equal(t, types.OutcomeSuccess, report.Entries[0].Outcome, "non-mutating entries still report")
	assert.Equal(t, types.OutcomeFailed, report.Entries[1].Outcome)
	assert.Equal(t, "run cancelled", report.Entries[1].Detail)
	fx.assertOwnership(t, "Unwanted", true, false)
}

func TestExecuteConcurrentFetchesSerializedMoves(t *testing.T) {
	fx := newExecutorFixture(t)

	var entries []types.PlanEntry
	names := []string{"A1", "A2", "A3", "A4", "A5", "A6"}
	for _, n := range names {
		entries = append(entries, types.PlanEntry{
			Name:   n,
			Action: types.ActionInstall,
			Source: types.Candidate{Name: n, Source: "zip"},
		})
	}
	plan := &types.ReconciliationPlan{Entries: entries}

	report := fx.executor.Execute(context.Background(), plan, Options{Concurrency: 3})

	require.Len(t, report.Entries, 6)
	for i, n := range names {
		assert.Equal(t, types.OutcomeSuccess, report.Entries[i].Outcome)
		fx.assertOwnership(t, n, true, false)
	}
	assert.Equal(t, int64(6), fx.fetcher.calls.Load())
}
