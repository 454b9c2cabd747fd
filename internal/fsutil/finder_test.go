package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"a.json", "b.txt", "nested/c.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}

	t.Run("finds files recursively", func(t *testing.T) {
		files, err := FindFilesByExtension(dir, ".json")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			filepath.Join(dir, "a.json"),
			filepath.Join(dir, "nested", "c.json"),
		}, files)
	})

	t.Run("missing root yields nothing", func(t *testing.T) {
		files, err := FindFilesByExtension(filepath.Join(dir, "absent"), ".json")
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}
