package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abca4/fafpipe/internal/engine"
)

func TestObserveRun(t *testing.T) {
	m := NewMetrics()

	started := time.Now().Add(-3 * time.Second)
	m.ObserveRun(&engine.Report{
		StartedAt:  started,
		FinishedAt: time.Now(),
		Outcomes: []engine.Outcome{
			{Job: "denoising", Status: engine.Succeeded},
			{Job: "recalibration", Status: engine.Failed},
			{Job: "fovea_disc", Status: engine.SkippedBlocked},
		},
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, body, `fafpipe_job_outcomes_total{job="denoising",status="succeeded"} 1`)
	assert.Contains(t, body, `fafpipe_job_outcomes_total{job="recalibration",status="failed"} 1`)
	assert.Contains(t, body, `fafpipe_runs_total{result="unsuccessful"} 1`)
	assert.Contains(t, body, "fafpipe_run_duration_seconds")
}
