package reconcile

import "time"

// RenameOperation is one committed bulk rename.
type RenameOperation struct {
	ID          string    // Operation id shared with the audit trail
	Source      string    // Name the records carried before the rename
	Destination string    // Name written to the records
	IDs         []int64   // Exact ids the rename was applied to
	Updated     int       // Rows confirmed updated
	CommittedAt time.Time // When the rename completed
}

// UndoStack holds committed renames, most recent on top. It is owned by a
// single Reconciler and is not safe for concurrent use.
type UndoStack struct {
	ops []RenameOperation
}

// Push adds op on top of the stack.
func (s *UndoStack) Push(op RenameOperation) {
	op.IDs = append([]int64(nil), op.IDs...)
	s.ops = append(s.ops, op)
}

// Peek returns the top operation without removing it.
func (s *UndoStack) Peek() (RenameOperation, bool) {
	if len(s.ops) == 0 {
		return RenameOperation{}, false
	}
	return s.ops[len(s.ops)-1], true
}

// Pop removes and returns the top operation.
func (s *UndoStack) Pop() (RenameOperation, bool) {
	op, ok := s.Peek()
	if ok {
		s.ops = s.ops[:len(s.ops)-1]
	}
	return op, ok
}

// Len returns the number of pending operations.
func (s *UndoStack) Len() int {
	return len(s.ops)
}

// Items returns a copy of the pending operations, oldest first.
func (s *UndoStack) Items() []RenameOperation {
	out := make([]RenameOperation, len(s.ops))
	copy(out, s.ops)
	return out
}
