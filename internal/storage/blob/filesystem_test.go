package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystem(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs := NewFilesystem(root)

	t.Run("ensure_directory_twice", func(t *testing.T) {
		require.NoError(t, fs.EnsureDirectory(ctx, "htmls/2024-05-01/"))
		require.NoError(t, fs.EnsureDirectory(ctx, "htmls/2024-05-01/"))
		info, err := os.Stat(filepath.Join(root, "htmls", "2024-05-01"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("write_creates_parents", func(t *testing.T) {
		require.NoError(t, fs.WriteFile(ctx, "htmls/2024-05-02/abc.html", []byte("<p/>")))
		got, err := os.ReadFile(filepath.Join(root, "htmls", "2024-05-02", "abc.html"))
		require.NoError(t, err)
		assert.Equal(t, "<p/>", string(got))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, fs.WriteFile(ctx, "x.html", []byte("one")))
		require.NoError(t, fs.WriteFile(ctx, "x.html", []byte("two")))
		got, err := os.ReadFile(filepath.Join(root, "x.html"))
		require.NoError(t, err)
		assert.Equal(t, "two", string(got))
	})

	t.Run("cancelled_context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, fs.WriteFile(cctx, "y.html", nil), context.Canceled)
		assert.ErrorIs(t, fs.EnsureDirectory(cctx, "z/"), context.Canceled)
	})

	t.Run("path_is_a_file", func(t *testing.T) {
		require.NoError(t, fs.WriteFile(ctx, "blocked", []byte("f")))
		assert.Error(t, fs.EnsureDirectory(ctx, "blocked/"))
	})
}
