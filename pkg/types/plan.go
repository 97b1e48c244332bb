package types

// Action is the per-addon decision computed by the reconciliation engine.
type Action string

const (
	// ActionKeep leaves a live addon in place.
	ActionKeep Action = "keep"

	// ActionRestore moves an addon from the cache back into the live
	// directory without re-downloading it.
	ActionRestore Action = "restore"

	// ActionInstall resolves and fetches an addon that is neither live
	// nor cached.
	ActionInstall Action = "install"

	// ActionUpdate replaces a live addon with a newer catalog version.
	ActionUpdate Action = "update"

	// ActionQuarantine moves a live addon into the cache.
	ActionQuarantine Action = "quarantine"

	// ActionDelete removes an addon permanently. It is the terminal
	// variant of quarantine, never applied to a live copy directly.
	ActionDelete Action = "delete"

	// ActionSkip leaves an already-quarantined addon untouched.
	ActionSkip Action = "skip"

	// ActionSkipAmbiguous records that catalog resolution returned no
	// clear winner; nothing is mutated and the candidates are surfaced
	// for the user to disambiguate.
	ActionSkipAmbiguous Action = "skip-ambiguous"

	// ActionSkipFailed records a per-addon recoverable failure
	// (resolution error, fetch failure, integrity check).
	ActionSkipFailed Action = "skip-failed"
)

// Mutates reports whether the action touches the live or cache trees.
func (a Action) Mutates() bool {
	switch a {
	case ActionRestore, ActionInstall, ActionUpdate, ActionQuarantine, ActionDelete:
		return true
	}
	return false
}

// PlanEntry is one addon's decision together with the state that
// justified it. Entries are independent of each other: executing one
// never depends on another's outcome.
type PlanEntry struct {
	Name   string
	Action Action

	// Reason states which source states triggered the decision.
	Reason string

	// Desired is the manifest record, zero-valued when the addon is not
	// desired.
	Desired AddonRecord

	// LivePath is the addon's directory in the live tree, empty when not
	// live.
	LivePath string

	// Cached reports whether the cache holds a copy.
	Cached bool

	// Source is the resolved catalog candidate for install/update.
	Source Candidate

	// Candidates holds the ranked catalog matches when resolution was
	// ambiguous.
	Candidates []Candidate
}

// ReconciliationPlan is the full set of per-addon decisions for one run.
// It is built once, before any mutation, and is immutable during
// execution.
type ReconciliationPlan struct {
	Entries []PlanEntry
}

// Mutations counts the entries whose action touches the filesystem.
func (p *ReconciliationPlan) Mutations() int {
	n := 0
	for _, e := range p.Entries {
		if e.Action.Mutates() {
			n++
		}
	}
	return n
}
