package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// IntegrityStatus represents the result of a log integrity check.
type IntegrityStatus string

const (
	IntegrityOK      IntegrityStatus = "OK"
	IntegrityMissing IntegrityStatus = "MISSING"
	IntegrityCorrupt IntegrityStatus = "CORRUPT" // e.g. a truncated last line
	IntegrityEmpty   IntegrityStatus = "EMPTY"
)

// IntegrityResult contains the result of a log integrity check.
type IntegrityResult struct {
	Status       IntegrityStatus
	FilePath     string
	TotalLines   int    // Valid lines before any corruption
	ErrorMessage string // Description of any error found
	ErrorLine    int    // Line number where error was found (0 if N/A)
}

// EventFilter defines criteria for filtering audit events.
type EventFilter struct {
	EventTypes  []EventType     // Empty means all types
	Status      OperationStatus // Empty means all statuses
	OperationID string          // Empty means all operations
	StartTime   *time.Time      // Events at or after this time
	EndTime     *time.Time      // Events at or before this time
}

const maxLineSize = 1024 * 1024

// Reader reads events across the active log and its rotated segments.
type Reader struct {
	logDir string
}

// NewReader reads the logs kept in logDir.
func NewReader(logDir string) *Reader {
	return &Reader{logDir: logDir}
}

// ReadAll returns every event in chronological order.
func (r *Reader) ReadAll() ([]Event, error) {
	files, err := LogFiles(r.logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get log files: %w", err)
	}

	events := []Event{}
	for _, path := range files {
		fileEvents, err := readEventsFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read events from %s: %w", path, err)
		}
		events = append(events, fileEvents...)
	}
	return events, nil
}

// Latest returns the n most recent data events (system events excluded),
// newest first. A non-positive n returns all of them.
func (r *Reader) Latest(n int) ([]Event, error) {
	events, err := r.Filter(EventFilter{EventTypes: []EventType{EventRename, EventUndoRename, EventImport}})
	if err != nil {
		return nil, err
	}
	if n <= 0 || n > len(events) {
		n = len(events)
	}

	out := make([]Event, 0, n)
	for i := len(events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, events[i])
	}
	return out, nil
}

// Operation returns the events of one operation: a rename and any undo.
func (r *Reader) Operation(id string) ([]Event, error) {
	events, err := r.Filter(EventFilter{OperationID: id})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("operation not found: %s", id)
	}
	return events, nil
}

// Filter returns the events matching filter.
func (r *Reader) Filter(filter EventFilter) ([]Event, error) {
	events, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var filtered []Event
	for _, event := range events {
		if matchesFilter(event, filter) {
			filtered = append(filtered, event)
		}
	}
	return filtered, nil
}

func matchesFilter(event Event, filter EventFilter) bool {
	if len(filter.EventTypes) > 0 {
		found := false
		for _, et := range filter.EventTypes {
			if event.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Status != "" && event.Status != filter.Status {
		return false
	}
	if filter.OperationID != "" && event.OperationID != filter.OperationID {
		return false
	}
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}

func readEventsFromFile(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		event, err := UnmarshalJSONLine(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		events = append(events, *event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}
	return events, nil
}

// CheckIntegrity validates the active log: every line must be a complete
// event and the file must end with a newline.
func (r *Reader) CheckIntegrity() (*IntegrityResult, error) {
	path := filepath.Join(r.logDir, activeLogName)
	result := &IntegrityResult{FilePath: path}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = IntegrityMissing
		result.ErrorMessage = "log file does not exist"
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}
	if info.Size() == 0 {
		result.Status = IntegrityEmpty
		result.ErrorMessage = "log file is empty"
		return result, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if !json.Valid(line) || json.Unmarshal(line, &event) != nil {
			result.Status = IntegrityCorrupt
			result.ErrorLine = lineNum
			result.ErrorMessage = fmt.Sprintf("invalid event at line %d", lineNum)
			return result, nil
		}
		result.TotalLines++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	if _, err := file.Seek(-1, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("failed to seek to end: %w", err)
	}
	last := make([]byte, 1)
	if _, err := file.Read(last); err != nil {
		return nil, fmt.Errorf("failed to read last byte: %w", err)
	}
	if last[0] != '\n' {
		result.Status = IntegrityCorrupt
		result.ErrorLine = lineNum
		result.ErrorMessage = "truncated last line: file does not end with newline"
		return result, nil
	}

	result.Status = IntegrityOK
	return result, nil
}
