package audit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"psicoapp/internal/reconcile"
	"psicoapp/internal/store"
)

// Writer appends events to the audit log. Every write is flushed and
// synced before it returns.
type Writer struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	logPath  string
	config   Config
	rotation *rotationManager
	now      func() time.Time
}

// NewWriter opens (or creates) the active log in config.LogDirectory. A new
// log starts with a LOG_INITIALIZED event.
func NewWriter(config Config) (*Writer, error) {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(config.LogDirectory, activeLogName)
	isNewLog := false
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		isNewLog = true
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	w := &Writer{
		file:     file,
		writer:   bufio.NewWriter(file),
		logPath:  logPath,
		config:   config,
		rotation: newRotationManager(config),
		now:      time.Now,
	}

	if isNewLog {
		event := Event{
			Timestamp: w.now().UTC(),
			EventType: EventLogInitialized,
			Status:    StatusSuccess,
			Metadata:  map[string]string{"logPath": logPath},
		}
		if err := w.appendLocked(event); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write LOG_INITIALIZED event: %w", err)
		}
	}
	return w, nil
}

// WriteEvent appends event, rotating the log afterwards if it grew past
// its limits.
func (w *Writer) WriteEvent(event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = w.now().UTC()
	}
	if err := w.appendLocked(event); err != nil {
		return err
	}
	if err := w.checkAndRotate(); err != nil {
		return fmt.Errorf("failed to check/perform rotation: %w", err)
	}
	return nil
}

// Record stores a rename or undo reported by the reconciler.
func (w *Writer) Record(ev reconcile.Event) error {
	eventType := EventRename
	if ev.Kind == reconcile.EventUndo {
		eventType = EventUndoRename
	}
	return w.WriteEvent(Event{
		OperationID: ev.OperationID,
		EventType:   eventType,
		Status:      statusOf(ev.Confirmed, ev.Err),
		Source:      ev.Source,
		Destination: ev.Destination,
		IDs:         ev.IDs,
		Requested:   ev.Requested,
		Confirmed:   ev.Confirmed,
		Error:       detailsOf(ev.Err),
	})
}

// RecordImport stores the outcome of one spreadsheet import.
func (w *Writer) RecordImport(file string, patients, sessions int, err error) error {
	return w.WriteEvent(Event{
		OperationID: uuid.New().String(),
		EventType:   EventImport,
		Status:      statusOf(patients+sessions, err),
		Source:      file,
		Confirmed:   patients + sessions,
		Error:       detailsOf(err),
		Metadata: map[string]string{
			"patients": strconv.Itoa(patients),
			"sessions": strconv.Itoa(sessions),
		},
	})
}

func statusOf(confirmed int, err error) OperationStatus {
	switch {
	case err == nil:
		return StatusSuccess
	case confirmed > 0:
		return StatusPartial
	default:
		return StatusFailure
	}
}

func detailsOf(err error) *ErrorDetails {
	if err == nil {
		return nil
	}
	var (
		partial    *reconcile.PartialUpdateError
		validation *reconcile.ValidationError
		empty      *reconcile.EmptyUndoError
		conn       *store.ConnectivityError
	)
	errType := "error"
	switch {
	case errors.As(err, &partial):
		errType = "partial_update"
	case errors.As(err, &validation):
		errType = "validation"
	case errors.As(err, &empty):
		errType = "empty_undo"
	case errors.As(err, &conn):
		errType = "connectivity"
	}
	return &ErrorDetails{ErrorType: errType, ErrorMessage: err.Error()}
}

func (w *Writer) appendLocked(event Event) error {
	data, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync event to disk: %w", err)
	}
	return nil
}

// checkAndRotate writes a ROTATION event naming the new segment, then
// moves the active log aside and opens a fresh one.
func (w *Writer) checkAndRotate() error {
	needsRotation, err := w.rotation.needsRotation(w.logPath)
	if err != nil || !needsRotation {
		return err
	}

	segment := w.rotation.segmentName()
	rotationEvent := Event{
		Timestamp: w.now().UTC(),
		EventType: EventRotation,
		Status:    StatusSuccess,
		Metadata: map[string]string{
			"previousFile": filepath.Base(w.logPath),
			"newFile":      segment,
		},
	}
	if err := w.appendLocked(rotationEvent); err != nil {
		return fmt.Errorf("failed to write rotation event: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file for rotation: %w", err)
	}
	if _, err := w.rotation.rotate(w.logPath, segment); err != nil {
		return err
	}

	file, err := os.OpenFile(w.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open new log file after rotation: %w", err)
	}
	w.file = file
	w.writer = bufio.NewWriter(file)
	return nil
}

// Close flushes any buffered data and closes the audit log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

// LogPath returns the path to the active audit log file.
func (w *Writer) LogPath() string {
	return w.logPath
}
