package document

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_ReadWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "resume.tex")
	require.NoError(t, os.WriteFile(path, []byte("Hello World"), 0o644))

	s := NewFileStore(path)
	text, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", text)

	require.NoError(t, s.Write(ctx, "Hello Resume"))
	text, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello Resume", text)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestFileStore_WriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "resume.tex"))

	require.NoError(t, s.Write(context.Background(), "one"))
	require.NoError(t, s.Write(context.Background(), "two"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "resume.tex", entries[0].Name())
}

func TestFileStore_ReadMissing(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "nope.tex")).Read(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStore_ConcurrentWritersNeverTear(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "resume.tex"))
	require.NoError(t, s.Write(ctx, "a"))

	versions := map[string]bool{"a": true}
	var wg sync.WaitGroup
	for _, v := range []string{"bbbb", "cccccccc", "dd"} {
		versions[v] = true
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			assert.NoError(t, s.Write(ctx, v))
		}(v)
	}
	for i := 0; i < 20; i++ {
		text, err := s.Read(ctx)
		require.NoError(t, err)
		assert.True(t, versions[text], "unexpected content %q", text)
	}
	wg.Wait()
}

func TestFileStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewFileStore(filepath.Join(t.TempDir(), "resume.tex"))
	assert.Error(t, s.Write(ctx, "x"))
	_, err := s.Read(ctx)
	assert.Error(t, err)
}
