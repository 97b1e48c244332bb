package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/wowplug/wowplug/pkg/catalog"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/types"
)

// Options carries the per-run flags handed down by the CLI layer.
type Options struct {
	// Update attempts a version refresh for addons that would otherwise
	// be kept.
	Update bool

	// Delete removes unwanted addons permanently instead of
	// quarantining them.
	Delete bool

	// Clean treats every manifest entry as disabled: the plan only
	// quarantines or deletes, never installs, restores or updates.
	Clean bool

	// TargetDir overrides the manifest's scan directory.
	TargetDir string

	// MinScore and MinMargin tune candidate acceptance (see
	// catalog.Pick).
	MinScore  float64
	MinMargin float64

	// Concurrency bounds parallel fetches during execution.
	Concurrency int
}

// PlanInput is the three source states the plan is computed from.
// Desired is already filtered to enabled entries (empty in clean mode);
// Live and Cached hold no duplicate names.
type PlanInput struct {
	Desired []types.AddonRecord
	Live    []types.AddonRecord
	Cached  []types.AddonRecord
}

// BuildPlan computes the per-addon decisions. It consults the resolver
// for installs and update checks but performs no filesystem mutation and
// no fetch: the returned plan is immutable and safe to inspect before
// execution.
//
// Resolution failures never surface as errors here; they degrade the
// entry to skip-failed or skip-ambiguous so one addon cannot abort the
// run.
func BuildPlan(ctx context.Context, in PlanInput, resolver types.Resolver, opts Options) *types.ReconciliationPlan {
	logger := logging.GetLogger("plan")

	live := indexByKey(in.Live)
	cached := indexByKey(in.Cached)
	desiredKeys := make(map[string]bool, len(in.Desired))

	plan := &types.ReconciliationPlan{}

	// Desired entries first, in manifest order.
	for _, want := range in.Desired {
		key := want.Key()
		desiredKeys[key] = true
		liveRec, isLive := live[key]
		_, isCached := cached[key]

		switch {
		case isLive:
			plan.Entries = append(plan.Entries, planKeepOrUpdate(ctx, want, liveRec, resolver, opts))
		case isCached:
			plan.Entries = append(plan.Entries, types.PlanEntry{
				Name:    want.Name,
				Action:  types.ActionRestore,
				Reason:  "desired and cached, not live",
				Desired: want,
				Cached:  true,
			})
		default:
			plan.Entries = append(plan.Entries, planInstall(ctx, want, resolver, opts))
		}
	}

	// Live addons that are not desired: remove from live.
	removal := types.ActionQuarantine
	reason := "live but not desired"
	if opts.Delete {
		removal = types.ActionDelete
		reason = "live but not desired, delete requested"
	}
	for _, key := range sortedKeys(live) {
		if desiredKeys[key] {
			continue
		}
		rec := live[key]
		plan.Entries = append(plan.Entries, types.PlanEntry{
			Name:     rec.Name,
			Action:   removal,
			Reason:   reason,
			LivePath: rec.Path,
		})
	}

	// Cached addons that are neither desired nor live stay put.
	for _, key := range sortedKeys(cached) {
		if desiredKeys[key] {
			continue
		}
		if _, isLive := live[key]; isLive {
			continue
		}
		rec := cached[key]
		plan.Entries = append(plan.Entries, types.PlanEntry{
			Name:   rec.Name,
			Action: types.ActionSkip,
			Reason: "already quarantined",
			Cached: true,
		})
	}

	logger.Debug().
		Int("entries", len(plan.Entries)).
		Int("mutations", plan.Mutations()).
		Msg("Reconciliation plan built")
	return plan
}

// planKeepOrUpdate decides between keeping a live desired addon and
// refreshing it. An update needs an unambiguous catalog resolution and
// both version markers known and different; anything less keeps the
// live copy untouched.
func planKeepOrUpdate(ctx context.Context, want, liveRec types.AddonRecord, resolver types.Resolver, opts Options) types.PlanEntry {
	entry := types.PlanEntry{
		Name:     want.Name,
		Action:   types.ActionKeep,
		Reason:   "desired and live",
		Desired:  want,
		LivePath: liveRec.Path,
	}
	if !opts.Update {
		return entry
	}

	cand, cands, err := resolve(ctx, want, resolver, opts)
	if err != nil {
		if errors.IsErrorCode(err, errors.ErrResolutionAmbiguous) {
			entry.Action = types.ActionSkipAmbiguous
			entry.Reason = "update check ambiguous: " + err.Error()
			entry.Candidates = cands
			return entry
		}
		entry.Action = types.ActionSkipFailed
		entry.Reason = "update check failed: " + err.Error()
		return entry
	}

	fingerprint := want.Fingerprint
	if fingerprint == "" {
		fingerprint = liveRec.Fingerprint
	}
	// An unknown version on either side is never "outdated".
	if fingerprint == "" || cand.Version == "" || fingerprint == cand.Version {
		return entry
	}

	entry.Action = types.ActionUpdate
	entry.Reason = "catalog version differs from local fingerprint"
	entry.Source = cand
	return entry
}

// planInstall resolves a desired addon that is neither live nor cached.
func planInstall(ctx context.Context, want types.AddonRecord, resolver types.Resolver, opts Options) types.PlanEntry {
	entry := types.PlanEntry{
		Name:    want.Name,
		Desired: want,
	}

	cand, cands, err := resolve(ctx, want, resolver, opts)
	if err != nil {
		if errors.IsErrorCode(err, errors.ErrResolutionAmbiguous) {
			entry.Action = types.ActionSkipAmbiguous
			entry.Reason = "resolution ambiguous: " + err.Error()
			entry.Candidates = cands
			return entry
		}
		entry.Action = types.ActionSkipFailed
		entry.Reason = "resolution failed: " + err.Error()
		return entry
	}

	entry.Action = types.ActionInstall
	entry.Reason = "desired, not live, not cached"
	entry.Source = cand
	return entry
}

// resolve runs the resolver and the acceptance rule for one addon,
// returning the ranked candidates alongside any ambiguity error so the
// caller can attach them to the report.
func resolve(ctx context.Context, want types.AddonRecord, resolver types.Resolver, opts Options) (types.Candidate, []types.Candidate, error) {
	cands, err := resolver.Resolve(ctx, want.Name, want.SourceHint)
	if err != nil {
		return types.Candidate{}, nil, err
	}
	picked, err := catalog.Pick(cands, opts.MinScore, opts.MinMargin)
	if err != nil {
		return types.Candidate{}, cands, err
	}
	return picked, cands, nil
}

func indexByKey(records []types.AddonRecord) map[string]types.AddonRecord {
	m := make(map[string]types.AddonRecord, len(records))
	for _, r := range records {
		m[strings.ToLower(r.Name)] = r
	}
	return m
}

func sortedKeys(m map[string]types.AddonRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
