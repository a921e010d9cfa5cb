package reconcile

import (
	"fmt"
	"strings"
)

// ValidationErrorType identifies which precondition a request violated.
type ValidationErrorType string

const (
	ValidationEmptySource ValidationErrorType = "EMPTY_SOURCE"
	ValidationEmptyTarget ValidationErrorType = "EMPTY_TARGET"
	ValidationEmptyIDs    ValidationErrorType = "EMPTY_IDS"
	ValidationSameName    ValidationErrorType = "SAME_NAME"
)

// ValidationError is returned before any write is attempted.
type ValidationError struct {
	Type ValidationErrorType
	Name string
}

func (e *ValidationError) Error() string {
	switch e.Type {
	case ValidationEmptySource:
		return "rename source must not be empty"
	case ValidationEmptyTarget:
		return "rename target must not be empty"
	case ValidationEmptyIDs:
		if e.Name != "" {
			return fmt.Sprintf("no session records named %q", e.Name)
		}
		return "no record ids to rename"
	case ValidationSameName:
		return fmt.Sprintf("source and destination are both %q", e.Name)
	default:
		return "invalid rename request"
	}
}

// EmptyUndoError is returned by UndoLast when nothing is pending.
type EmptyUndoError struct{}

func (e *EmptyUndoError) Error() string {
	return "nothing to undo"
}

// BatchOutcome is the result of one chunk of a rename.
type BatchOutcome struct {
	Index     int     // Zero-based chunk position
	IDs       []int64 // Ids submitted in this chunk
	Confirmed int     // Rows the store reported as updated
	Err       error   // Non-nil if the chunk failed outright
}

// PartialUpdateError reports a rename where fewer rows were confirmed than
// requested. Chunks before a failing one stay committed. Confirmed may be 0.
type PartialUpdateError struct {
	Requested   int
	Confirmed   int
	Unconfirmed []int64
	Batches     []BatchOutcome
	Err         error // First chunk failure, nil when chunks succeeded short
}

func (e *PartialUpdateError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "partial update: %d of %d records confirmed", e.Confirmed, e.Requested)
	if n := len(e.Unconfirmed); n > 0 {
		fmt.Fprintf(&sb, ", %d unconfirmed", n)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *PartialUpdateError) Unwrap() error {
	return e.Err
}
