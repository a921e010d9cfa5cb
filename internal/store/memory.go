package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"psicoapp/internal/record"
)

// Memory is an in-process Store. Rows keep insertion order; rows without
// an id receive the next integer id of their table.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Row
	nextID map[string]int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string][]Row),
		nextID: make(map[string]int64),
	}
}

// Select implements Store.
func (m *Memory) Select(ctx context.Context, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectivityError{Op: "select", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Row
	for _, row := range m.tables[q.Table] {
		if matchAll(row, q.Where) && matchAny(row, q.AnyOf) {
			matched = append(matched, row)
		}
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return less(matched[i], matched[j], q.OrderBy)
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]Row, 0, len(matched))
	for _, row := range matched {
		out = append(out, project(row, q.Columns))
	}
	return out, nil
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, table string, patch Row, where []Filter) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectivityError{Op: "update", Err: err}
	}
	if len(where) == 0 {
		return nil, ErrUnfilteredWrite
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var updated []Row
	for _, row := range m.tables[table] {
		if !matchAll(row, where) {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		updated = append(updated, copyRow(row))
	}
	return updated, nil
}

// Insert implements Store.
func (m *Memory) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectivityError{Op: "insert", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := make([]Row, 0, len(rows))
	for _, in := range rows {
		row := copyRow(in)
		if id, ok := record.ToInt64(row[record.ColumnID]); ok {
			if id >= m.nextID[table] {
				m.nextID[table] = id
			}
		} else {
			m.nextID[table]++
			row[record.ColumnID] = m.nextID[table]
		}
		m.tables[table] = append(m.tables[table], row)
		inserted = append(inserted, copyRow(row))
	}
	return inserted, nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, table string, where []Filter) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectivityError{Op: "delete", Err: err}
	}
	if len(where) == 0 {
		return nil, ErrUnfilteredWrite
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var kept, deleted []Row
	for _, row := range m.tables[table] {
		if matchAll(row, where) {
			deleted = append(deleted, copyRow(row))
			continue
		}
		kept = append(kept, row)
	}
	m.tables[table] = kept
	return deleted, nil
}

// Len returns the number of rows in table.
func (m *Memory) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func matchAll(row Row, filters []Filter) bool {
	for _, f := range filters {
		if !matches(row, f) {
			return false
		}
	}
	return true
}

func matchAny(row Row, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if matches(row, f) {
			return true
		}
	}
	return false
}

func matches(row Row, f Filter) bool {
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	switch f.Op {
	case OpEq:
		return equal(v, f.Value)
	case OpContains:
		term, _ := f.Value.(string)
		return strings.Contains(strings.ToLower(text(v)), strings.ToLower(term))
	case OpIn:
		values, _ := f.Value.([]any)
		for _, want := range values {
			if equal(v, want) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func equal(a, b any) bool {
	if ai, ok := record.ToInt64(a); ok {
		if bi, ok := record.ToInt64(b); ok {
			_, aStr := a.(string)
			_, bStr := b.(string)
			if !aStr && !bStr {
				return ai == bi
			}
		}
	}
	return text(a) == text(b)
}

// less orders rows column by column; nil values sort after everything else
// in both directions.
func less(a, b Row, orders []Order) bool {
	for _, o := range orders {
		av, bv := a[o.Column], b[o.Column]
		switch {
		case av == nil && bv == nil:
			continue
		case av == nil:
			return false
		case bv == nil:
			return true
		}
		c := compare(av, bv)
		if c == 0 {
			continue
		}
		if o.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func compare(a, b any) int {
	if ai, ok := record.ToInt64(a); ok {
		if bi, ok := record.ToInt64(b); ok {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(text(a), text(b))
}

func text(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

func project(row Row, cols []string) Row {
	if len(cols) == 0 {
		return copyRow(row)
	}
	out := make(Row, len(cols))
	for _, c := range cols {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

func copyRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
