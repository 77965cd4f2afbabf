package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	_, ok := st.(*SQLiteStore)
	assert.True(t, ok)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongo", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestSummarize(t *testing.T) {
	snap := snapshot("s1", "a.test", testTime)
	sum := summarize(snap)
	assert.Equal(t, "s1", sum.ID)
	assert.Equal(t, 1, sum.Pages)
	assert.Equal(t, 1, sum.Runs)
	assert.Equal(t, testTime, sum.UpdatedAt)
}
