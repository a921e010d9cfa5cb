package audit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psicoapp/internal/reconcile"
	"psicoapp/internal/store"
)

func TestNewWriter_InitializesLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	w, err := NewWriter(Config{LogDirectory: dir})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	events, err := NewReader(dir).ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventLogInitialized, events[0].EventType)

	// Reopening an existing log does not initialize it again.
	w, err = NewWriter(Config{LogDirectory: dir})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	events, err = NewReader(dir).ReadAll()
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWriter_RecordRenameAndUndo(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{LogDirectory: dir})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Record(reconcile.Event{
		Kind:        reconcile.EventRename,
		OperationID: "op-1",
		Source:      "Joao Silva",
		Destination: "João da Silva",
		IDs:         []int64{1, 2, 3},
		Requested:   3,
		Confirmed:   3,
	}))
	require.NoError(t, w.Record(reconcile.Event{
		Kind:        reconcile.EventUndo,
		OperationID: "op-1",
		Source:      "João da Silva",
		Destination: "Joao Silva",
		IDs:         []int64{1, 2, 3},
		Requested:   3,
		Confirmed:   1,
		Err: &reconcile.PartialUpdateError{
			Requested: 3,
			Confirmed: 1,
			Err:       &store.ConnectivityError{Op: "update", Err: errors.New("timeout")},
		},
	}))

	events, err := NewReader(dir).Operation("op-1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	rename := events[0]
	assert.Equal(t, EventRename, rename.EventType)
	assert.Equal(t, StatusSuccess, rename.Status)
	assert.Equal(t, []int64{1, 2, 3}, rename.IDs)
	assert.Equal(t, "João da Silva", rename.Destination)
	assert.Nil(t, rename.Error)

	undo := events[1]
	assert.Equal(t, EventUndoRename, undo.EventType)
	assert.Equal(t, StatusPartial, undo.Status)
	require.NotNil(t, undo.Error)
	assert.Equal(t, "partial_update", undo.Error.ErrorType)
	assert.Contains(t, undo.Error.ErrorMessage, "1 of 3")
}

func TestWriter_RecordImport(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{LogDirectory: dir})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.RecordImport("dados.xlsx", 10, 40, nil))
	require.NoError(t, w.RecordImport("quebrado.xlsx", 0, 0, &store.ConnectivityError{Op: "insert", Err: errors.New("refused")}))

	latest, err := NewReader(dir).Latest(5)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "quebrado.xlsx", latest[0].Source)
	assert.Equal(t, StatusFailure, latest[0].Status)
	assert.Equal(t, "connectivity", latest[0].Error.ErrorType)
	assert.Equal(t, StatusSuccess, latest[1].Status)
	assert.Equal(t, "40", latest[1].Metadata["sessions"])
	assert.NotEmpty(t, latest[1].OperationID)
}

func TestWriter_RotatesBySize(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{LogDirectory: dir, RotationSize: 200})
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, w.RecordImport("dados.xlsx", i, i, nil))
		time.Sleep(2 * time.Millisecond)
	}

	files, err := LogFiles(dir)
	require.NoError(t, err)
	assert.Greater(t, len(files), 1)
	assert.Equal(t, activeLogName, filepath.Base(files[len(files)-1]))

	events, err := NewReader(dir).Filter(EventFilter{EventTypes: []EventType{EventImport}})
	require.NoError(t, err)
	require.Len(t, events, 5, "no event is lost across segments")
	for i, ev := range events {
		assert.Equal(t, i*2, ev.Confirmed)
	}

	rotations, err := NewReader(dir).Filter(EventFilter{EventTypes: []EventType{EventRotation}})
	require.NoError(t, err)
	assert.NotEmpty(t, rotations)
}

func TestCheckIntegrity(t *testing.T) {
	dir := t.TempDir()
	r := NewReader(dir)

	res, err := r.CheckIntegrity()
	require.NoError(t, err)
	assert.Equal(t, IntegrityMissing, res.Status)

	w, err := NewWriter(Config{LogDirectory: dir})
	require.NoError(t, err)
	require.NoError(t, w.RecordImport("a.xlsx", 1, 1, nil))
	require.NoError(t, w.Close())

	res, err = r.CheckIntegrity()
	require.NoError(t, err)
	assert.Equal(t, IntegrityOK, res.Status)
	assert.Equal(t, 2, res.TotalLines)

	f, err := os.OpenFile(filepath.Join(dir, activeLogName), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"timestamp":"2024-01-01T00:00:00Z","eventType":"REN`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res, err = r.CheckIntegrity()
	require.NoError(t, err)
	assert.Equal(t, IntegrityCorrupt, res.Status)
	assert.Equal(t, 3, res.ErrorLine)
	assert.True(t, strings.Contains(res.ErrorMessage, "line 3"))
}

func TestReader_MissingDirectory(t *testing.T) {
	events, err := NewReader(filepath.Join(t.TempDir(), "nada")).ReadAll()
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReader_Latest(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{LogDirectory: dir})
	require.NoError(t, err)
	require.NoError(t, w.RecordImport("janeiro.xlsx", 3, 10, nil))
	require.NoError(t, w.RecordImport("fevereiro.xlsx", 1, 4, nil))
	require.NoError(t, w.RecordImport("marco.xlsx", 0, 7, nil))
	require.NoError(t, w.Close())

	r := NewReader(dir)
	latest, err := r.Latest(2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "marco.xlsx", latest[0].Source)
	assert.Equal(t, "fevereiro.xlsx", latest[1].Source)

	all, err := r.Latest(0)
	require.NoError(t, err)
	require.Len(t, all, 3, "log initialization is not a data event")
	assert.Equal(t, "janeiro.xlsx", all[2].Source)
}
