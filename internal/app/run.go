package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/abca4/fafpipe/internal/artifact"
	"github.com/abca4/fafpipe/internal/ctxlog"
	"github.com/abca4/fafpipe/internal/engine"
	"github.com/abca4/fafpipe/internal/fsutil"
	"github.com/abca4/fafpipe/internal/planner"
)

// RunFailedError signals that the run finished but at least one job
// failed or was blocked. The CLI maps it to a non-zero exit code.
type RunFailedError struct {
	RunID   string
	Failed  int
	Blocked int
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %s unsuccessful: %d failed, %d blocked", e.RunID, e.Failed, e.Blocked)
}

// Run plans and executes one pipeline run, renders the report, records
// metrics, and persists the report when a database is configured.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if a.cfg.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx)
		defer a.closeHealthcheckServer(ctx)
	}

	plan, err := planner.Compute(a.graph, a.cfg.StartFrom, a.cfg.StopAfter)
	if err != nil {
		return err
	}
	if plan.Warning != nil {
		a.logger.Warn("Boundaries select nothing.", "warning", plan.Warning.Error())
	}
	a.logger.Info("Plan computed.",
		"included", len(plan.Included),
		"excluded", len(plan.Excluded),
		"start_from", a.cfg.StartFrom,
		"stop_after", a.cfg.StopAfter,
	)

	fingerprint := a.env.Fingerprint()
	eng := engine.New(a.graph, a.reg, a.env.Store, a.cfg.Workers)
	report, err := eng.Execute(ctx, plan, engine.Options{
		SkipExisting: a.cfg.SkipExisting,
		Fingerprint:  fingerprint,
	})
	if err != nil {
		return err
	}

	a.renderReport(report)
	a.metrics.ObserveRun(report)

	if workfiles, ferr := fsutil.FindFilesByExtension(a.cfg.WorkDir, ".json"); ferr == nil {
		a.logger.Info("Workfiles on disk.", "count", len(workfiles), "dir", a.cfg.WorkDir)
	}

	if a.sqlite != nil {
		if err := a.sqlite.SaveRun(ctx, runRecord(report, fingerprint)); err != nil {
			a.logger.Error("Failed to persist run report.", "run_id", report.RunID, "error", err)
		}
	}

	failed, blocked := 0, 0
	for _, outcome := range report.Outcomes {
		switch outcome.Status {
		case engine.Failed:
			failed++
		case engine.SkippedBlocked:
			blocked++
		}
	}
	if failed > 0 || blocked > 0 {
		return &RunFailedError{RunID: report.RunID, Failed: failed, Blocked: blocked}
	}
	return nil
}

// renderReport writes the human-readable run summary: planned outcomes
// in execution-plan order, then the jobs the plan left out. The report
// already lists both, in that order.
func (a *App) renderReport(report *engine.Report) {
	fmt.Fprintf(a.outW, "\nRun %s finished in %s\n",
		report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	tw := tabwriter.NewWriter(a.outW, 2, 4, 2, ' ', 0)
	for _, outcome := range report.Outcomes {
		detail := ""
		switch {
		case outcome.Err != nil:
			detail = outcome.Err.Error()
		case outcome.BlockedBy != "":
			detail = "blocked by " + outcome.BlockedBy
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", outcome.Job, outcome.Status, detail)
	}
	tw.Flush()
}

// runRecord converts an engine report into its persisted form.
func runRecord(report *engine.Report, fp artifact.Fingerprint) artifact.RunRecord {
	record := artifact.RunRecord{
		ID:          report.RunID,
		Fingerprint: fp,
		Successful:  report.Successful(),
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
	}
	for _, outcome := range report.Outcomes {
		job := artifact.RunJobRecord{Name: outcome.Job, Status: outcome.Status.String()}
		if outcome.Err != nil {
			job.Error = outcome.Err.Error()
		}
		record.Jobs = append(record.Jobs, job)
	}
	return record
}
