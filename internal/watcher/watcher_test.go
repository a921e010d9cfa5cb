package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Debounce = 50 * time.Millisecond
	cfg.StableThreshold = 0
	return cfg
}

type recordingHandler struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (h *recordingHandler) handle(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paths = append(h.paths, path)
	return h.err
}

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.paths...)
}

func TestWatcher_NewSpreadsheetIsImportedOnce(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	w := New(fastConfig(), h.handle, zap.NewNop())
	require.NoError(t, w.Start(context.Background(), []string{dir}))

	path := filepath.Join(dir, "pacientes.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("second write"), 0o644))

	assert.Eventually(t, func() bool { return len(h.seen()) == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	summary := w.Stop()
	assert.Equal(t, []string{path}, h.seen())
	assert.Equal(t, 1, summary.Imported)
	assert.Zero(t, summary.Failed)
}

func TestWatcher_RemovedBeforeSettlingIsDropped(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	cfg := fastConfig()
	cfg.Debounce = 300 * time.Millisecond
	w := New(cfg, h.handle, zap.NewNop())
	require.NoError(t, w.Start(context.Background(), []string{dir}))

	path := filepath.Join(dir, "rascunho.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("partial"), 0o644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	time.Sleep(500 * time.Millisecond)
	summary := w.Stop()
	assert.Empty(t, h.seen())
	assert.Zero(t, summary.Imported)
	assert.Zero(t, summary.Failed)
}

func TestWatcher_IgnoresLockAndOtherFiles(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	w := New(fastConfig(), h.handle, zap.NewNop())
	require.NoError(t, w.Start(context.Background(), []string{dir}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "~$pacientes.xlsx"), []byte("lock"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notas.txt"), []byte("x"), 0o644))
	time.Sleep(250 * time.Millisecond)

	summary := w.Stop()
	assert.Empty(t, h.seen())
	assert.Zero(t, summary.Imported)
	assert.Positive(t, summary.Skipped)
}

func TestWatcher_HandlerFailureIsCounted(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{err: errors.New("bad workbook")}
	w := New(fastConfig(), h.handle, zap.NewNop())
	require.NoError(t, w.Start(context.Background(), []string{dir}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "quebrada.xlsx"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return len(h.seen()) == 1 }, 2*time.Second, 20*time.Millisecond)

	summary := w.Stop()
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.Imported)
}

func TestWatcher_StartErrors(t *testing.T) {
	w := New(fastConfig(), nil, nil)
	assert.Error(t, w.Start(context.Background(), nil))
	assert.Error(t, w.Start(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}))
}
