package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	st, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := "ab34cd56"
	require.NoError(t, st.Save(ctx, key, []int64{100, 200, 300}))

	timestamps, err := st.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300}, timestamps)
}

func TestFileStore_UnknownKeyIsEmpty(t *testing.T) {
	t.Parallel()

	st, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	timestamps, err := st.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, timestamps)
}

func TestFileStore_ShardLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewFileStore(dir)
	require.NoError(t, err)

	key := "deadbeef"
	require.NoError(t, st.Save(context.Background(), key, []int64{42}))

	// Files land in a subdirectory named after the first two
	// characters of the key and hold a plain JSON array.
	path := filepath.Join(dir, "de", key+".json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var stored []int64
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, []int64{42}, stored)
}

func TestFileStore_EmptySaveRemoves(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	key := "deadbeef"
	require.NoError(t, st.Save(ctx, key, []int64{42}))
	require.NoError(t, st.Save(ctx, key, nil))

	_, err = os.Stat(filepath.Join(dir, "de", key+".json"))
	assert.True(t, os.IsNotExist(err))

	// Removing an already absent key is fine.
	assert.NoError(t, st.Save(ctx, "neverseen", nil))
}

func TestFileStore_CorruptFileTreatedAsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewFileStore(dir)
	require.NoError(t, err)

	key := "deadbeef"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "de"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de", key+".json"), []byte("not json"), 0o600))

	timestamps, err := st.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Empty(t, timestamps)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()

	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "k", []int64{1, 2}))

	timestamps, err := st.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, timestamps)

	// The returned slice is a copy; mutating it does not affect the
	// stored log.
	timestamps[0] = 99
	again, err := st.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, again)

	require.NoError(t, st.Save(ctx, "k", nil))
	empty, err := st.Load(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
