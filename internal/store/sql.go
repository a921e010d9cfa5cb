package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder and case-insensitive match syntax.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// SQL is a Store over database/sql.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewSQL wraps an open database handle.
func NewSQL(db *sql.DB, dialect Dialect, logger *zap.Logger) *SQL {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQL{db: db, dialect: dialect, logger: logger}
}

// Open connects to the database named by driver ("postgres" or "sqlite")
// and verifies the connection.
func Open(ctx context.Context, dialect Dialect, dsn string, maxConns int, logger *zap.Logger) (*SQL, error) {
	var driverName string
	switch dialect {
	case Postgres:
		driverName = "postgres"
	case SQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classify("ping", err)
	}
	return NewSQL(db, dialect, logger), nil
}

// DB exposes the underlying handle.
func (s *SQL) DB() *sql.DB {
	return s.db
}

// Close closes the underlying handle.
func (s *SQL) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Select implements Store.
func (s *SQL) Select(ctx context.Context, q Query) ([]Row, error) {
	b := s.builder()

	cols := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			quoted[i] = pq.QuoteIdentifier(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, pq.QuoteIdentifier(q.Table))

	conds := b.conditions(q.Where)
	if len(q.AnyOf) > 0 {
		conds = append(conds, "("+strings.Join(b.conditions(q.AnyOf), " OR ")+")")
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if len(q.OrderBy) > 0 {
		parts := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s NULLS LAST", pq.QuoteIdentifier(o.Column), dir)
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", q.Offset)
	}

	return s.query(ctx, "select", sb.String(), b.args)
}

// Update implements Store. The returned rows are the rows the database
// confirms as modified.
func (s *SQL) Update(ctx context.Context, table string, patch Row, where []Filter) ([]Row, error) {
	if len(where) == 0 {
		return nil, ErrUnfilteredWrite
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("empty update patch for %s", table)
	}

	b := s.builder()
	sets := make([]string, 0, len(patch))
	for _, col := range sortedKeys(patch) {
		sets = append(sets, fmt.Sprintf("%s = %s", pq.QuoteIdentifier(col), b.bind(patch[col])))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		pq.QuoteIdentifier(table),
		strings.Join(sets, ", "),
		strings.Join(b.conditions(where), " AND "),
	)
	return s.query(ctx, "update", query, b.args)
}

// Insert implements Store. All rows are inserted in one transaction.
func (s *SQL) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("insert", err)
	}

	var inserted []Row
	for _, row := range rows {
		b := s.builder()
		cols := sortedKeys(row)
		quoted := make([]string, len(cols))
		values := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = pq.QuoteIdentifier(c)
			values[i] = b.bind(row[c])
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			pq.QuoteIdentifier(table),
			strings.Join(quoted, ", "),
			strings.Join(values, ", "),
		)

		out, err := scanRows(tx.QueryContext(ctx, query, b.args...))
		if err != nil {
			tx.Rollback()
			return nil, classify("insert", err)
		}
		inserted = append(inserted, out...)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("insert", err)
	}
	return inserted, nil
}

// Delete implements Store.
func (s *SQL) Delete(ctx context.Context, table string, where []Filter) ([]Row, error) {
	if len(where) == 0 {
		return nil, ErrUnfilteredWrite
	}
	b := s.builder()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s RETURNING *",
		pq.QuoteIdentifier(table),
		strings.Join(b.conditions(where), " AND "),
	)
	return s.query(ctx, "delete", query, b.args)
}

func (s *SQL) query(ctx context.Context, op, query string, args []any) ([]Row, error) {
	s.logger.Debug("sql", zap.String("op", op), zap.String("query", query), zap.Int("args", len(args)))
	rows, err := scanRows(s.db.QueryContext(ctx, query, args...))
	if err != nil {
		return nil, classify(op, err)
	}
	return rows, nil
}

func scanRows(rows *sql.Rows, err error) ([]Row, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// builder accumulates bind arguments and renders placeholders in the
// dialect's syntax.
type builder struct {
	dialect Dialect
	args    []any
}

func (s *SQL) builder() *builder {
	return &builder{dialect: s.dialect}
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	if b.dialect == Postgres {
		return fmt.Sprintf("$%d", len(b.args))
	}
	return "?"
}

func (b *builder) conditions(filters []Filter) []string {
	conds := make([]string, 0, len(filters))
	for _, f := range filters {
		conds = append(conds, b.condition(f))
	}
	return conds
}

func (b *builder) condition(f Filter) string {
	col := pq.QuoteIdentifier(f.Column)
	switch f.Op {
	case OpContains:
		term, _ := f.Value.(string)
		pattern := "%" + escapeLike(term) + "%"
		if b.dialect == Postgres {
			return fmt.Sprintf("%s::text ILIKE %s", col, b.bind(pattern))
		}
		return fmt.Sprintf("lower(CAST(%s AS TEXT)) LIKE lower(%s) ESCAPE '\\'", col, b.bind(pattern))
	case OpIn:
		values, _ := f.Value.([]any)
		if len(values) == 0 {
			return "1 = 0"
		}
		holders := make([]string, len(values))
		for i, v := range values {
			holders[i] = b.bind(v)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(holders, ", "))
	default:
		return fmt.Sprintf("%s = %s", col, b.bind(f.Value))
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func sortedKeys(row Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// classify wraps err, turning connection-level failures into
// ConnectivityError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isConnectivity(err) {
		return &ConnectivityError{Op: op, Err: err}
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func isConnectivity(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08 is connection_exception; 57P01-03 are server shutdowns
		if pqErr.Code.Class() == "08" {
			return true
		}
		switch pqErr.Code {
		case "57P01", "57P02", "57P03":
			return true
		}
	}
	return false
}
