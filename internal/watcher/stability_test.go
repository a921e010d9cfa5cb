package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStabilityChecker_StableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	s := NewStabilityChecker(100 * time.Millisecond)
	start := time.Now()
	require.NoError(t, s.WaitForStable(context.Background(), path))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestStabilityChecker_MissingFile(t *testing.T) {
	s := NewStabilityChecker(100 * time.Millisecond)
	err := s.WaitForStable(context.Background(), filepath.Join(t.TempDir(), "gone.xlsx"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestStabilityChecker_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growing.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	s := NewStabilityChecker(time.Second)
	s.timeout = 200 * time.Millisecond
	assert.ErrorIs(t, s.WaitForStable(context.Background(), path), ErrFileUnstable)
}

func TestStabilityChecker_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStabilityChecker(time.Second)
	assert.ErrorIs(t, s.WaitForStable(ctx, path), context.Canceled)
}
