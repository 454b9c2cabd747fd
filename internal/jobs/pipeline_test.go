package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abca4/fafpipe/internal/artifact"
	"github.com/abca4/fafpipe/internal/engine"
	"github.com/abca4/fafpipe/internal/planner"
	"github.com/abca4/fafpipe/internal/registry"
)

func testEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "patient_OS.png")
	require.NoError(t, os.WriteFile(input, []byte("not-a-real-png"), 0o644))
	return &Env{
		InputPath: input,
		WorkDir:   filepath.Join(dir, "work"),
		Store:     artifact.NewMemoryStore(),
	}
}

func TestDefaultGraph(t *testing.T) {
	g, err := DefaultGraph(nil)
	require.NoError(t, err)

	t.Run("declares the full pipeline", func(t *testing.T) {
		assert.Equal(t, 10, g.Len())
	})

	t.Run("edges match the analysis flow", func(t *testing.T) {
		deps, err := g.DependenciesOf("inner_mask")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"fovea_disc", "vasculature"}, deps)

		deps, err = g.DependenciesOf("pixel_score")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"roi_histogram", "bg_histogram"}, deps)

		anc, err := g.AncestorsOf("pixel_score")
		require.NoError(t, err)
		assert.Len(t, anc, 9, "pixel_score depends on every other job")
	})

	t.Run("topological order starts at denoising", func(t *testing.T) {
		order := g.TopologicalOrder()
		require.Len(t, order, 10)
		assert.Equal(t, "denoising", order[0])
		assert.Equal(t, "pixel_score", order[9])
	})

	t.Run("config factories are independent", func(t *testing.T) {
		denoise, ok := g.Job("denoising")
		require.True(t, ok)
		first := denoise.Config()
		first["sigma"] = -1.0
		second := denoise.Config()
		assert.Equal(t, 2.0, second["sigma"], "mutating one factory result must not leak into the next")
	})
}

func TestDefaultGraphOverrides(t *testing.T) {
	g, err := DefaultGraph(map[string]map[string]any{
		"denoising":  {"sigma": 3.5},
		"outer_mask": {"dilation_px": 12.0},
	})
	require.NoError(t, err)

	denoise, ok := g.Job("denoising")
	require.True(t, ok)
	assert.Equal(t, 3.5, denoise.Config()["sigma"])

	mask, ok := g.Job("outer_mask")
	require.True(t, ok)
	params := mask.Config()
	assert.Equal(t, 12.0, params["dilation_px"])
	assert.Equal(t, true, params["outer_ellipse"], "defaults survive alongside overrides")
}

func TestRegisterCoversGraph(t *testing.T) {
	g, err := DefaultGraph(nil)
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, Register(reg, testEnv(t)))
	assert.NoError(t, reg.Validate(g))
}

func TestBodies(t *testing.T) {
	ctx := context.Background()

	t.Run("emits workfile and artifact record", func(t *testing.T) {
		env := testEnv(t)
		require.NoError(t, env.denoising(ctx, map[string]any{"sigma": 2.0}))

		path := env.workfilePath("denoising")
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var record map[string]any
		require.NoError(t, json.Unmarshal(data, &record))
		assert.Equal(t, "denoising", record["job"])
		assert.Equal(t, env.InputPath, record["input"])

		ok, err := env.Store.HasResult(ctx, "denoising", env.Fingerprint())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing input fails the job", func(t *testing.T) {
		env := testEnv(t)
		env.InputPath = filepath.Join(t.TempDir(), "gone.png")
		assert.Error(t, env.denoising(ctx, map[string]any{}))
	})

	t.Run("parameter validation", func(t *testing.T) {
		env := testEnv(t)
		assert.Error(t, env.denoising(ctx, map[string]any{"sigma": -1.0}))
		assert.Error(t, env.recalibration(ctx, map[string]any{"white_point": 10.0, "black_point": 20.0}))
		assert.Error(t, env.vasculature(ctx, map[string]any{"threshold": 1.5}))
		assert.Error(t, env.histogram("roi_histogram")(ctx, map[string]any{"bins": 1.0}))
	})

	t.Run("fingerprint is stable per input path", func(t *testing.T) {
		env := testEnv(t)
		assert.Equal(t, env.Fingerprint(), env.Fingerprint())

		other := testEnv(t)
		assert.NotEqual(t, env.Fingerprint(), other.Fingerprint())
	})
}

func TestFullPipelineRun(t *testing.T) {
	env := testEnv(t)
	g, err := DefaultGraph(nil)
	require.NoError(t, err)
	reg := registry.New()
	require.NoError(t, Register(reg, env))

	plan, err := planner.Compute(g, "", "")
	require.NoError(t, err)

	eng := engine.New(g, reg, env.Store, 4)
	report, err := eng.Execute(context.Background(), plan, engine.Options{})
	require.NoError(t, err)
	require.True(t, report.Successful())

	for _, name := range g.Names() {
		outcome, ok := report.Outcome(name)
		require.True(t, ok)
		assert.Equal(t, engine.Succeeded, outcome.Status, "job %q", name)
		assert.FileExists(t, env.workfilePath(name))
	}

	// A second skip-existing run over the same input skips everything.
	second, err := eng.Execute(context.Background(), plan, engine.Options{
		SkipExisting: true,
		Fingerprint:  env.Fingerprint(),
	})
	require.NoError(t, err)
	for _, name := range g.Names() {
		outcome, _ := second.Outcome(name)
		assert.Equal(t, engine.SkippedCached, outcome.Status, "job %q", name)
	}
}
