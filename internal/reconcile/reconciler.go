// Package reconcile finds session names that have no matching patient and
// applies undoable bulk renames to the session records.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"psicoapp/internal/normalizer"
	"psicoapp/internal/record"
	"psicoapp/internal/store"
)

// Source names one of the two record sets.
type Source string

const (
	SourceSessions Source = "sessions"
	SourcePatients Source = "patients"
)

// DefaultBatchSize is the number of ids sent in one update.
const DefaultBatchSize = 200

// Options configures table layout and collaborator limits.
type Options struct {
	SessionsTable string
	PatientsTable string
	PageSize      int
	BatchSize     int
}

// DefaultOptions returns the standard table names and limits.
func DefaultOptions() Options {
	return Options{
		SessionsTable: "entradas",
		PatientsTable: "pacientes",
		PageSize:      store.DefaultPageSize,
		BatchSize:     DefaultBatchSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SessionsTable == "" {
		o.SessionsTable = d.SessionsTable
	}
	if o.PatientsTable == "" {
		o.PatientsTable = d.PatientsTable
	}
	if o.PageSize <= 0 {
		o.PageSize = d.PageSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	return o
}

// EventKind distinguishes recorded operations.
type EventKind string

const (
	EventRename EventKind = "RENAME"
	EventUndo   EventKind = "UNDO_RENAME"
)

// Event describes a finished commit or undo, successful or not.
type Event struct {
	Kind        EventKind
	OperationID string
	Source      string
	Destination string
	IDs         []int64
	Requested   int
	Confirmed   int
	Err         error
}

// Recorder receives every commit and undo attempt.
type Recorder interface {
	Record(ev Event) error
}

// Reconciler owns one undo stack. Create one per interactive session.
type Reconciler struct {
	store    store.Store
	opts     Options
	logger   *zap.Logger
	recorder Recorder
	stack    UndoStack
	now      func() time.Time
}

// New creates a Reconciler over st. recorder may be nil.
func New(st store.Store, opts Options, logger *zap.Logger, recorder Recorder) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:    st,
		opts:     opts.withDefaults(),
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

func (r *Reconciler) table(src Source) (string, error) {
	switch src {
	case SourceSessions:
		return r.opts.SessionsTable, nil
	case SourcePatients:
		return r.opts.PatientsTable, nil
	default:
		return "", fmt.Errorf("unknown record source %q", src)
	}
}

// ListNames returns the distinct non-empty names of src, sorted. Every page
// is read.
func (r *Reconciler) ListNames(ctx context.Context, src Source) ([]string, error) {
	table, err := r.table(src)
	if err != nil {
		return nil, err
	}

	rows, err := store.SelectAll(ctx, r.store, store.Query{
		Table:   table,
		Columns: []string{record.ColumnName},
		OrderBy: []store.Order{{Column: record.ColumnID}},
	}, r.opts.PageSize)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, row := range rows {
		name, ok := row[record.ColumnName].(string)
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// FindDivergent returns the session names whose normalized form matches no
// normalized patient name, in the order of sessionNames.
func FindDivergent(sessionNames, patientNames []string) []string {
	return difference(sessionNames, patientNames)
}

// FindUnreferenced returns the patient names no session refers to.
func FindUnreferenced(sessionNames, patientNames []string) []string {
	return difference(patientNames, sessionNames)
}

func difference(names, against []string) []string {
	keys := make(map[string]struct{}, len(against))
	for _, n := range against {
		keys[normalizer.Normalize(n)] = struct{}{}
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, n := range names {
		key := normalizer.Normalize(n)
		if key == "" {
			continue
		}
		if _, ok := keys[key]; ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// IDsForName returns the ids of every session whose name is exactly name.
func (r *Reconciler) IDsForName(ctx context.Context, name string) ([]int64, error) {
	rows, err := store.SelectAll(ctx, r.store, store.Query{
		Table:   r.opts.SessionsTable,
		Columns: []string{record.ColumnID},
		Where:   []store.Filter{store.Eq(record.ColumnName, name)},
		OrderBy: []store.Order{{Column: record.ColumnID}},
	}, r.opts.PageSize)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id, ok := record.ToInt64(row[record.ColumnID]); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Rename writes newName to the sessions with the given ids, BatchSize ids
// per update. Repeated ids are submitted once. A failing chunk stops the
// run without undoing earlier chunks. The returned count is the number of
// rows the store confirmed; whenever it is short of the distinct ids the
// error is a *PartialUpdateError.
func (r *Reconciler) Rename(ctx context.Context, ids []int64, newName string) (int, error) {
	if strings.TrimSpace(newName) == "" {
		return 0, &ValidationError{Type: ValidationEmptyTarget}
	}
	ids = distinctIDs(ids)
	if len(ids) == 0 {
		return 0, &ValidationError{Type: ValidationEmptyIDs}
	}

	var (
		batches   []BatchOutcome
		confirmed int
		failure   error
		seen      = make(map[int64]struct{}, len(ids))
	)
	patch := store.Row{record.ColumnName: newName}

	for start, index := 0, 0; start < len(ids); start, index = start+r.opts.BatchSize, index+1 {
		end := start + r.opts.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		rows, err := r.store.Update(ctx, r.opts.SessionsTable, patch, []store.Filter{store.In(record.ColumnID, chunk)})
		outcome := BatchOutcome{Index: index, IDs: chunk, Confirmed: len(rows), Err: err}
		batches = append(batches, outcome)
		if err != nil {
			r.logger.Warn("Rename batch failed",
				zap.Int("batch", index),
				zap.Int("size", len(chunk)),
				zap.Error(err))
			failure = err
			break
		}

		confirmed += len(rows)
		for _, row := range rows {
			if id, ok := record.ToInt64(row[record.ColumnID]); ok {
				seen[id] = struct{}{}
			}
		}
	}

	if failure == nil && confirmed >= len(ids) {
		return confirmed, nil
	}

	var unconfirmed []int64
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			unconfirmed = append(unconfirmed, id)
		}
	}
	return confirmed, &PartialUpdateError{
		Requested:   len(ids),
		Confirmed:   confirmed,
		Unconfirmed: unconfirmed,
		Batches:     batches,
		Err:         failure,
	}
}

// CommitRename renames every session named source to destination and, if
// all of them were confirmed, pushes the operation on the undo stack. A
// blank source is refused since undo could never write it back.
func (r *Reconciler) CommitRename(ctx context.Context, source, destination string) (*RenameOperation, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &ValidationError{Type: ValidationEmptySource}
	}
	if strings.TrimSpace(destination) == "" {
		return nil, &ValidationError{Type: ValidationEmptyTarget}
	}
	if source == destination {
		return nil, &ValidationError{Type: ValidationSameName, Name: source}
	}

	ids, err := r.IDsForName(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, &ValidationError{Type: ValidationEmptyIDs, Name: source}
	}

	opID := uuid.New().String()
	updated, err := r.Rename(ctx, ids, destination)
	r.record(Event{
		Kind:        EventRename,
		OperationID: opID,
		Source:      source,
		Destination: destination,
		IDs:         ids,
		Requested:   len(ids),
		Confirmed:   updated,
		Err:         err,
	})
	if err != nil {
		return nil, err
	}

	op := RenameOperation{
		ID:          opID,
		Source:      source,
		Destination: destination,
		IDs:         ids,
		Updated:     updated,
		CommittedAt: r.now(),
	}
	r.stack.Push(op)

	r.logger.Info("Rename committed",
		zap.String("operation_id", opID),
		zap.String("source", source),
		zap.String("destination", destination),
		zap.Int("updated", updated))
	return &op, nil
}

// UndoLast restores the source name on the records of the most recent
// operation. The operation leaves the stack only if the restore succeeded,
// so a failed undo can be retried.
func (r *Reconciler) UndoLast(ctx context.Context) (int, error) {
	op, ok := r.stack.Peek()
	if !ok {
		return 0, &EmptyUndoError{}
	}

	restored, err := r.Rename(ctx, op.IDs, op.Source)
	r.record(Event{
		Kind:        EventUndo,
		OperationID: op.ID,
		Source:      op.Destination,
		Destination: op.Source,
		IDs:         op.IDs,
		Requested:   len(op.IDs),
		Confirmed:   restored,
		Err:         err,
	})
	if err != nil {
		return restored, err
	}

	r.stack.Pop()
	r.logger.Info("Rename undone",
		zap.String("operation_id", op.ID),
		zap.String("restored_name", op.Source),
		zap.Int("restored", restored))
	return restored, nil
}

// Pending returns the operations that can still be undone, oldest first.
func (r *Reconciler) Pending() []RenameOperation {
	return r.stack.Items()
}

// Peek returns the operation UndoLast would revert.
func (r *Reconciler) Peek() (RenameOperation, bool) {
	return r.stack.Peek()
}

func distinctIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (r *Reconciler) record(ev Event) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(ev); err != nil {
		r.logger.Warn("Failed to record audit event",
			zap.String("operation_id", ev.OperationID),
			zap.Error(err))
	}
}
