// Package record models the open-ended rows exchanged with the persistence
// layer: a required display name plus whatever other columns the
// deployment happens to carry.
package record

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"psicoapp/internal/dateparser"
	"psicoapp/internal/normalizer"
)

// Column names shared by the patient and session tables.
const (
	ColumnID   = "id"
	ColumnName = "nome"
)

// Session columns.
const (
	ColumnDate        = "data"
	ColumnType        = "tipo"
	ColumnBilled      = "valor_sessao"
	ColumnPaid        = "valor_pago"
	ColumnNotes       = "obs"
	ColumnClinical    = "anotacoes_clinicas"
	ColumnAbsence     = "faltas"
	ColumnPaymentOnly = "apenas_pgto"
)

// Patient columns used outside the profile field table.
const (
	ColumnCPF   = "cpf"
	ColumnEmail = "email"
)

// Record is a row with a name and an attribute bag. The zero value is an
// empty, nameless record.
type Record struct {
	Name  string
	attrs map[string]any
}

// New builds a record from a display name and extra attributes. The name
// column inside attrs, if any, is ignored in favour of name.
func New(name string, attrs map[string]any) Record {
	r := Record{Name: name, attrs: make(map[string]any, len(attrs))}
	for k, v := range attrs {
		if k == ColumnName {
			continue
		}
		r.attrs[k] = v
	}
	return r
}

// FromRow lifts a collaborator row into a record, taking the name from the
// "nome" column.
func FromRow(row map[string]any) Record {
	name := ""
	if v, ok := row[ColumnName]; ok && v != nil {
		name = strings.TrimSpace(toString(v))
	}
	return New(name, row)
}

// FromRows lifts every row.
func FromRows(rows []map[string]any) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromRow(row))
	}
	return out
}

// Key returns the normalized name.
func (r Record) Key() string {
	return normalizer.Normalize(r.Name)
}

// Has reports whether the record exposes column col, even with a nil value.
func (r Record) Has(col string) bool {
	if col == ColumnName {
		return true
	}
	_, ok := r.attrs[col]
	return ok
}

// Value returns the raw value of col.
func (r Record) Value(col string) (any, bool) {
	if col == ColumnName {
		return r.Name, true
	}
	v, ok := r.attrs[col]
	return v, ok
}

// Columns lists the attribute columns in sorted order, name excluded.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r.attrs))
	for k := range r.attrs {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Text returns the first non-blank value among cols, trimmed.
func (r Record) Text(cols ...string) string {
	for _, col := range cols {
		v, ok := r.Value(col)
		if !ok || isMissing(v) {
			continue
		}
		if s := strings.TrimSpace(toString(v)); s != "" {
			return s
		}
	}
	return ""
}

// Amount returns col as a decimal. Missing, blank and non-numeric values
// are zero.
func (r Record) Amount(col string) decimal.Decimal {
	v, ok := r.Value(col)
	if !ok {
		return decimal.Zero
	}
	return ToDecimal(v)
}

// Date returns col as a calendar date; ok is false when missing or
// unparseable.
func (r Record) Date(col string) (time.Time, bool) {
	v, ok := r.Value(col)
	if !ok {
		return time.Time{}, false
	}
	return dateparser.ParseValue(v)
}

// ID returns the integer id column.
func (r Record) ID() (int64, bool) {
	v, ok := r.attrs[ColumnID]
	if !ok {
		return 0, false
	}
	return ToInt64(v)
}

// Row returns a copy of the record as a plain column map, name included.
func (r Record) Row() map[string]any {
	row := make(map[string]any, len(r.attrs)+1)
	for k, v := range r.attrs {
		row[k] = v
	}
	row[ColumnName] = r.Name
	return row
}

// ToDecimal coerces a raw value to a decimal, returning zero for anything
// that is not a finite number.
func ToDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case int:
		return decimal.NewFromInt(int64(val))
	case int32:
		return decimal.NewFromInt32(val)
	case int64:
		return decimal.NewFromInt(val)
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case []byte:
		return ToDecimal(string(val))
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return ToDecimal(fmt.Sprint(val))
	}
}

// ToInt64 coerces a raw id value.
func ToInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		if val != math.Trunc(val) {
			return 0, false
		}
		return int64(val), true
	case []byte:
		return ToInt64(string(val))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

func toString(v any) string {
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
