package engine

import "time"

// Status is the terminal classification of one job within one run.
type Status int

const (
	// NotPlanned marks a job declared in the graph but outside the run's
	// boundaries; it is neither executed nor subject to propagation.
	NotPlanned Status = iota
	// Succeeded means the job body ran and returned no error.
	Succeeded
	// Failed means the job body ran and returned an error.
	Failed
	// SkippedCached means the artifact store already held the job's
	// result for this input, and the skip-existing policy was on.
	SkippedCached
	// SkippedBlocked means an in-plan transitive dependency failed or
	// was itself blocked; the job was never started.
	SkippedBlocked
)

// String returns the snake_case form used in logs, reports, and the
// run store.
func (s Status) String() string {
	switch s {
	case NotPlanned:
		return "not_planned"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case SkippedCached:
		return "skipped_cached"
	case SkippedBlocked:
		return "skipped_blocked"
	default:
		return "unknown"
	}
}

// Blocking reports whether this outcome must block in-plan dependents.
func (s Status) Blocking() bool {
	return s == Failed || s == SkippedBlocked
}

// Outcome is one job's result within one run.
type Outcome struct {
	Job    string
	Status Status

	// Err is set iff Status is Failed.
	Err error

	// BlockedBy names the in-plan dependency whose outcome caused a
	// SkippedBlocked status; empty otherwise.
	BlockedBy string
}

// Report is the full account of one run: outcomes in plan order
// followed by NotPlanned entries in declaration order.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
	Excluded   []string

	byJob map[string]Outcome
}

// Outcome returns the recorded outcome for a job name.
func (r *Report) Outcome(job string) (Outcome, bool) {
	o, ok := r.byJob[job]
	return o, ok
}

// Successful reports whether the run as a whole succeeded: any Failed
// or SkippedBlocked outcome marks the run unsuccessful.
func (r *Report) Successful() bool {
	for _, o := range r.Outcomes {
		if o.Status.Blocking() {
			return false
		}
	}
	return true
}
