// Package engine runs a planned subgraph of jobs in dependency order.
//
// The engine is a fan-out/fan-in scheduler over a static DAG: a worker
// pool drains a ready channel, and each finished job decrements a
// pending-dependency counter on its in-plan dependents, releasing them
// once the last dependency finalizes. A job's run/skip/block decision
// is therefore always made after every in-plan dependency has reached a
// terminal outcome, under any interleaving. Failure is local: the run
// continues past a failed job, and only that job's transitive
// dependents are blocked.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/abca4/fafpipe/internal/artifact"
	"github.com/abca4/fafpipe/internal/ctxlog"
	"github.com/abca4/fafpipe/internal/pipeline"
	"github.com/abca4/fafpipe/internal/planner"
	"github.com/abca4/fafpipe/internal/registry"
)

// InvalidPlanError means Execute was handed a plan referencing jobs the
// graph or registry does not know. This is a programming error, fatal
// to the run.
type InvalidPlanError struct {
	Job    string
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan: job %q %s", e.Job, e.Reason)
}

// Options control one run.
type Options struct {
	// SkipExisting enables the artifact-cache check: a planned job whose
	// result already exists for Fingerprint is recorded SkippedCached
	// without invoking its ConfigFactory or body.
	SkipExisting bool

	// Fingerprint identifies the run's input unit. The engine passes it
	// to the cache unchanged and never inspects it.
	Fingerprint artifact.Fingerprint
}

// Engine executes plans over one graph and registry.
type Engine struct {
	graph   *pipeline.Graph
	reg     *registry.Registry
	cache   artifact.Cache
	workers int
}

// New creates an Engine. Worker counts below one are raised to one.
func New(graph *pipeline.Graph, reg *registry.Registry, cache artifact.Cache, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{graph: graph, reg: reg, cache: cache, workers: workers}
}

// jobState is the per-job scheduling bookkeeping for one run.
type jobState struct {
	spec       *pipeline.JobSpec
	pending    atomic.Int32 // in-plan dependencies not yet terminal
	dependents []string     // in-plan dependents to release on finalize
	deps       []string     // in-plan dependencies to inspect for blocking
}

// run is the mutable state of a single Execute call.
type run struct {
	engine *Engine
	opts   Options
	states map[string]*jobState

	mu       sync.Mutex
	outcomes map[string]Outcome

	wg    sync.WaitGroup
	ready chan *jobState
}

// Execute runs the planned jobs and returns the per-job report. Only
// structural misuse (InvalidPlanError) is returned as an error; job
// failures are recorded in the report and propagated as SkippedBlocked
// outcomes to their in-plan dependents.
func (e *Engine) Execute(ctx context.Context, plan *planner.Plan, opts Options) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	startedAt := time.Now()

	r, err := e.newRun(plan, opts)
	if err != nil {
		return nil, err
	}

	logger.Debug("Engine run starting.",
		"planned", len(plan.Included), "excluded", len(plan.Excluded),
		"workers", e.workers, "skip_existing", opts.SkipExisting)

	r.wg.Add(len(plan.Included))
	for _, name := range plan.Included {
		if state := r.states[name]; state.pending.Load() == 0 {
			r.ready <- state
		}
	}

	for i := 0; i < e.workers; i++ {
		go r.worker(ctx, i)
	}

	r.wg.Wait()
	close(r.ready)

	report := r.buildReport(plan, startedAt)
	logger.Debug("Engine run finished.", "run_id", report.RunID, "successful", report.Successful())
	return report, nil
}

// newRun validates the plan against the graph and registry and builds
// the scheduling state.
func (e *Engine) newRun(plan *planner.Plan, opts Options) (*run, error) {
	included := make(map[string]struct{}, len(plan.Included))
	for _, name := range plan.Included {
		included[name] = struct{}{}
	}

	states := make(map[string]*jobState, len(plan.Included))
	for _, name := range plan.Included {
		spec, ok := e.graph.Job(name)
		if !ok {
			return nil, &InvalidPlanError{Job: name, Reason: "is not declared in the graph"}
		}
		if _, ok := e.reg.Body(name); !ok {
			return nil, &InvalidPlanError{Job: name, Reason: "has no registered body"}
		}
		states[name] = &jobState{spec: spec}
	}

	// Dependencies outside the plan are assumed satisfied: only in-plan
	// edges contribute to pending counts and blocking decisions.
	for _, name := range plan.Included {
		state := states[name]
		for _, dep := range state.spec.DependsOn {
			if _, ok := included[dep]; !ok {
				continue
			}
			state.deps = append(state.deps, dep)
			states[dep].dependents = append(states[dep].dependents, name)
		}
		state.pending.Store(int32(len(state.deps)))
	}

	return &run{
		engine:   e,
		opts:     opts,
		states:   states,
		outcomes: make(map[string]Outcome, len(plan.Included)),
		ready:    make(chan *jobState, len(plan.Included)),
	}, nil
}

// worker drains the ready channel until the run closes it.
func (r *run) worker(ctx context.Context, id int) {
	logger := ctxlog.FromContext(ctx).With("worker", id)
	for state := range r.ready {
		r.process(ctx, logger, state)
	}
}

// process decides and records the outcome of one job whose in-plan
// dependencies have all finalized.
func (r *run) process(ctx context.Context, logger *slog.Logger, state *jobState) {
	name := state.spec.Name

	if blockedBy, blocked := r.blockedBy(state); blocked {
		logger.Warn("Skipping job: upstream failure.", "job", name, "blocked_by", blockedBy)
		r.finalize(state, Outcome{Job: name, Status: SkippedBlocked, BlockedBy: blockedBy})
		return
	}

	if r.opts.SkipExisting {
		found, err := r.engine.cache.HasResult(ctx, name, r.opts.Fingerprint)
		if err != nil {
			// A broken cache must not block the run; treat as a miss.
			logger.Warn("Artifact cache lookup failed, running job anyway.", "job", name, "error", err)
		} else if found {
			logger.Info("Skipping job: result already exists.", "job", name)
			r.finalize(state, Outcome{Job: name, Status: SkippedCached})
			return
		}
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("Context canceled before job start.", "job", name)
		r.finalize(state, Outcome{Job: name, Status: Failed, Err: err})
		return
	}

	logger.Info("Starting job.", "job", name)
	params := state.spec.Config()
	if err := r.runBody(ctx, name, params); err != nil {
		logger.Error("Job failed.", "job", name, "error", err)
		r.finalize(state, Outcome{Job: name, Status: Failed, Err: err})
		return
	}

	logger.Info("Job finished.", "job", name)
	r.finalize(state, Outcome{Job: name, Status: Succeeded})
}

// runBody invokes the registered body, converting a panic into an
// ordinary job failure so one bad job cannot take down the run.
func (r *run) runBody(ctx context.Context, name string, params map[string]any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %q panicked: %v", name, rec)
		}
	}()
	body, _ := r.engine.reg.Body(name)
	return body(ctx, params)
}

// blockedBy inspects the outcomes of the job's in-plan dependencies.
// All of them are terminal by the time the job is scheduled, so the
// read needs no synchronization beyond the outcomes lock.
func (r *run) blockedBy(state *jobState) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dep := range state.deps {
		if r.outcomes[dep].Status.Blocking() {
			return dep, true
		}
	}
	return "", false
}

// finalize records a job's outcome exactly once and releases any
// dependent whose last pending dependency this was.
func (r *run) finalize(state *jobState, outcome Outcome) {
	r.mu.Lock()
	r.outcomes[state.spec.Name] = outcome
	r.mu.Unlock()

	for _, dependent := range state.dependents {
		if r.states[dependent].pending.Add(-1) == 0 {
			r.ready <- r.states[dependent]
		}
	}
	r.wg.Done()
}

// buildReport assembles outcomes in plan order, then NotPlanned entries
// for excluded jobs in declaration order.
func (r *run) buildReport(plan *planner.Plan, startedAt time.Time) *Report {
	report := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Excluded:   append([]string{}, plan.Excluded...),
		byJob:      make(map[string]Outcome, len(r.outcomes)+len(plan.Excluded)),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range plan.Included {
		outcome := r.outcomes[name]
		report.Outcomes = append(report.Outcomes, outcome)
		report.byJob[name] = outcome
	}
	for _, name := range plan.Excluded {
		outcome := Outcome{Job: name, Status: NotPlanned}
		report.Outcomes = append(report.Outcomes, outcome)
		report.byJob[name] = outcome
	}
	return report
}
