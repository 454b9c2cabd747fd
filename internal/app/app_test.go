package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abca4/fafpipe/internal/testutil"
)

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	input := filepath.Join(dir, "patient_OD.png")
	require.NoError(t, os.WriteFile(input, []byte("not-a-real-png"), 0o644))
	return input
}

func TestNewConfig(t *testing.T) {
	t.Run("requires an input path", func(t *testing.T) {
		_, err := NewConfig(Config{})
		assert.Error(t, err)
	})

	t.Run("rejects negative workers", func(t *testing.T) {
		_, err := NewConfig(Config{InputPath: "scan.png", Workers: -1})
		assert.Error(t, err)
	})
}

func TestConfigMergePrecedence(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)
	configPath := filepath.Join(dir, "pipeline.hcl")
	require.NoError(t, os.WriteFile(configPath, []byte(`
settings {
  workers   = 2
  log_level = "warn"
  work_dir  = "`+filepath.Join(dir, "from-file")+`"
}
`), 0o644))

	// The workers flag beats the file; the file's log level and work
	// dir beat the defaults.
	cfg, err := NewConfig(Config{InputPath: input, ConfigPath: configPath, Workers: 8})
	require.NoError(t, err)

	a, err := NewApp(&testutil.SafeBuffer{}, cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "from-file"), cfg.WorkDir)
	assert.Equal(t, defaultLogFormat, cfg.LogFormat)
}

func TestAppRunSuccess(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)

	cfg, err := NewConfig(Config{InputPath: input, Database: filepath.Join(dir, "results.db")})
	require.NoError(t, err)

	var out testutil.SafeBuffer
	a, err := NewApp(&out, cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))

	rendered := out.String()
	assert.Contains(t, rendered, "pixel_score")
	assert.Contains(t, rendered, "succeeded")
	assert.FileExists(t, filepath.Join(cfg.WorkDir, "patient_OD", "pixel_score.json"))
}

func TestAppRunPersistsReport(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)

	cfg, err := NewConfig(Config{InputPath: input, Database: filepath.Join(dir, "results.db")})
	require.NoError(t, err)

	var out testutil.SafeBuffer
	a, err := NewApp(&out, cfg)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Run(context.Background()))

	// The second run with skip-existing reuses the persisted results.
	cfg2, err := NewConfig(Config{
		InputPath:    input,
		Database:     filepath.Join(dir, "results.db"),
		SkipExisting: true,
	})
	require.NoError(t, err)

	var out2 testutil.SafeBuffer
	a2, err := NewApp(&out2, cfg2)
	require.NoError(t, err)
	defer a2.Close()
	require.NoError(t, a2.Run(context.Background()))

	assert.Contains(t, out2.String(), "skipped_cached")
	assert.NotContains(t, out2.String(), "succeeded")
}

func TestAppRunFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)
	configPath := filepath.Join(dir, "pipeline.hcl")
	// A negative sigma fails denoising; everything downstream blocks.
	require.NoError(t, os.WriteFile(configPath, []byte(`
job "denoising" {
  sigma = -1
}
`), 0o644))

	cfg, err := NewConfig(Config{InputPath: input, ConfigPath: configPath})
	require.NoError(t, err)

	var out testutil.SafeBuffer
	a, err := NewApp(&out, cfg)
	require.NoError(t, err)
	defer a.Close()

	err = a.Run(context.Background())
	var runErr *RunFailedError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, 1, runErr.Failed)
	assert.Equal(t, 9, runErr.Blocked)
	assert.Contains(t, out.String(), "skipped_blocked")
}

func TestAppRunBoundaries(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)

	cfg, err := NewConfig(Config{
		InputPath: input,
		StartFrom: "inner_mask",
		StopAfter: "roi_histogram",
	})
	require.NoError(t, err)

	var out testutil.SafeBuffer
	a, err := NewApp(&out, cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), "not_planned")
	assert.FileExists(t, filepath.Join(cfg.WorkDir, "patient_OD", "roi_histogram.json"))
	assert.NoFileExists(t, filepath.Join(cfg.WorkDir, "patient_OD", "pixel_score.json"))
}
