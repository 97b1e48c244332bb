package types

// Outcome is the result of executing one plan entry.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// ReportEntry records the execution of one plan entry.
type ReportEntry struct {
	Name    string
	Action  Action
	Outcome Outcome
	Detail  string
}

// Report is the run report consumed by the CLI layer. Entries appear in
// plan order, which is deterministic for a given set of inputs.
type Report struct {
	Entries []ReportEntry
}

// Add appends an entry.
func (r *Report) Add(e ReportEntry) {
	r.Entries = append(r.Entries, e)
}

// Failed reports whether any entry failed. The process exit status is
// non-zero when it returns true.
func (r *Report) Failed() bool {
	for _, e := range r.Entries {
		if e.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
