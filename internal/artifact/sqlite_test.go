package artifact

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteResults(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	fp := Fingerprint("sha256:0011")

	t.Run("absence is a normal false", func(t *testing.T) {
		ok, err := store.HasResult(ctx, "denoising", fp)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("stored result is found", func(t *testing.T) {
		require.NoError(t, store.PutResult(ctx, "denoising", fp, "/work/denoising/img.png"))
		ok, err := store.HasResult(ctx, "denoising", fp)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("result is keyed by job and fingerprint", func(t *testing.T) {
		ok, err := store.HasResult(ctx, "recalibration", fp)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.HasResult(ctx, "denoising", Fingerprint("sha256:ffee"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rewriting a result is allowed", func(t *testing.T) {
		require.NoError(t, store.PutResult(ctx, "denoising", fp, "/work/denoising/img2.png"))
	})
}

func TestSQLiteRuns(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	started := time.Now().Add(-2 * time.Second)
	record := RunRecord{
		ID:          "run-42",
		Fingerprint: "sha256:abcd",
		Successful:  false,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Jobs: []RunJobRecord{
			{Name: "denoising", Status: "succeeded"},
			{Name: "recalibration", Status: "failed", Error: "histogram mismatch"},
			{Name: "fovea_disc", Status: "skipped_blocked"},
		},
	}
	require.NoError(t, store.SaveRun(ctx, record))

	loaded, err := store.GetRun(ctx, "run-42")
	require.NoError(t, err)
	assert.Equal(t, record.Fingerprint, loaded.Fingerprint)
	assert.False(t, loaded.Successful)
	require.Len(t, loaded.Jobs, 3)
	assert.Equal(t, "denoising", loaded.Jobs[0].Name)
	assert.Equal(t, "failed", loaded.Jobs[1].Status)
	assert.Equal(t, "histogram mismatch", loaded.Jobs[1].Error)
	assert.Equal(t, "skipped_blocked", loaded.Jobs[2].Status)

	_, err = store.GetRun(ctx, "missing")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fp := Fingerprint("sha256:beef")

	ok, err := store.HasResult(ctx, "vasculature", fp)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutResult(ctx, "vasculature", fp, "/tmp/out.png"))
	ok, err = store.HasResult(ctx, "vasculature", fp)
	require.NoError(t, err)
	assert.True(t, ok)
}
