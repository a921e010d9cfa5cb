// Package store is the table-oriented persistence collaborator: selects
// with filters and page windows, and writes that report the rows they
// actually touched.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Row is one table row as a column map.
type Row = map[string]any

// Op is a filter operator.
type Op string

const (
	// OpEq matches rows whose column equals the value exactly.
	OpEq Op = "eq"
	// OpContains matches a case-insensitive substring of the column text.
	OpContains Op = "contains"
	// OpIn matches rows whose column is one of the values ([]any).
	OpIn Op = "in"
)

// Filter is a single column predicate.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// Contains builds a case-insensitive substring filter.
func Contains(column, term string) Filter {
	return Filter{Column: column, Op: OpContains, Value: term}
}

// In builds a set-membership filter.
func In[T any](column string, values []T) Filter {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return Filter{Column: column, Op: OpIn, Value: vals}
}

// Order sorts by a column. Missing values always sort last.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a select. Where filters are ANDed; AnyOf, when present,
// adds one ORed group. Limit 0 means no limit.
type Query struct {
	Table   string
	Columns []string
	Where   []Filter
	AnyOf   []Filter
	OrderBy []Order
	Limit   int
	Offset  int
}

// Store is implemented by every persistence backend.
type Store interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	Update(ctx context.Context, table string, patch Row, where []Filter) ([]Row, error)
	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)
	Delete(ctx context.Context, table string, where []Filter) ([]Row, error)
}

// DefaultPageSize is the page window used by SelectAll when none is given.
const DefaultPageSize = 1000

// ErrUnfilteredWrite rejects updates and deletes without any filter.
var ErrUnfilteredWrite = errors.New("refusing to write without a filter")

// SelectAll retrieves every row matching q by requesting successive pages
// of pageSize rows until a short page signals the end of the data. Any
// Limit or Offset already set on q is ignored.
func SelectAll(ctx context.Context, s Store, q Query, pageSize int) ([]Row, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []Row
	for offset := 0; ; offset += pageSize {
		page := q
		page.Limit = pageSize
		page.Offset = offset

		rows, err := s.Select(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s rows %d-%d: %w", q.Table, offset, offset+pageSize-1, err)
		}
		all = append(all, rows...)
		if len(rows) < pageSize {
			return all, nil
		}
	}
}

// ConnectivityError reports that the backend could not be reached or timed
// out. Reads that fail this way changed nothing.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("database unreachable during %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}
