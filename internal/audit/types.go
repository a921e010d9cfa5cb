// Package audit keeps an append-only JSON Lines trail of name corrections
// and spreadsheet imports, so every bulk write can be traced afterwards.
package audit

import "time"

// EventType represents the type of audit event.
type EventType string

const (
	// Data correction events
	EventRename     EventType = "RENAME"
	EventUndoRename EventType = "UNDO_RENAME"
	EventImport     EventType = "IMPORT"

	// System events
	EventRotation       EventType = "ROTATION"
	EventLogInitialized EventType = "LOG_INITIALIZED"
)

// OperationStatus represents the outcome of an operation.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "SUCCESS"
	StatusPartial OperationStatus = "PARTIAL"
	StatusFailure OperationStatus = "FAILURE"
)

// ErrorDetails contains detailed information about an error.
type ErrorDetails struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

// Event is a single audit record.
type Event struct {
	Timestamp   time.Time         // ISO 8601 on disk
	OperationID string            // Shared by a rename and its undo
	EventType   EventType         // Type of event
	Status      OperationStatus   // Operation outcome
	Source      string            // Name before the write, or imported file
	Destination string            // Name written
	IDs         []int64           // Session ids targeted
	Requested   int               // Records the operation meant to touch
	Confirmed   int               // Records the store confirmed
	Error       *ErrorDetails     // Error information
	Metadata    map[string]string // Additional metadata
}

// Config holds configuration for the audit log.
type Config struct {
	LogDirectory   string `json:"logDirectory"`
	RotationSize   int64  `json:"rotationSizeBytes"` // Rotate when file exceeds this size
	RotationPeriod string `json:"rotationPeriod"`    // "daily", "weekly", or ""
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogDirectory: ".psicoapp/audit",
		RotationSize: 10 * 1024 * 1024, // 10MB
	}
}
