// Package importer loads the legacy spreadsheet (a "dados" sheet of
// patients and an "entradas" sheet of sessions) into the store.
package importer

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"psicoapp/internal/dateparser"
	"psicoapp/internal/record"
	"psicoapp/internal/store"
)

// Options configures sheet names, target tables and insert batch sizes.
type Options struct {
	PatientsSheet string
	SessionsSheet string
	PatientsTable string
	SessionsTable string
	PatientBatch  int
	SessionBatch  int
	DryRun        bool
}

// DefaultOptions returns the standard sheet names, tables and batch sizes.
func DefaultOptions() Options {
	return Options{
		PatientsSheet: "dados",
		SessionsSheet: "entradas",
		PatientsTable: "pacientes",
		SessionsTable: "entradas",
		PatientBatch:  50,
		SessionBatch:  100,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PatientsSheet == "" {
		o.PatientsSheet = d.PatientsSheet
	}
	if o.SessionsSheet == "" {
		o.SessionsSheet = d.SessionsSheet
	}
	if o.PatientsTable == "" {
		o.PatientsTable = d.PatientsTable
	}
	if o.SessionsTable == "" {
		o.SessionsTable = d.SessionsTable
	}
	if o.PatientBatch <= 0 {
		o.PatientBatch = d.PatientBatch
	}
	if o.SessionBatch <= 0 {
		o.SessionBatch = d.SessionBatch
	}
	return o
}

// Summary reports what one import read and wrote.
type Summary struct {
	File             string
	PatientsRead     int // Data rows in the patients sheet
	PatientsReady    int // Rows left after cleaning
	PatientsInserted int
	SessionsRead     int
	SessionsReady    int
	SessionsInserted int
	DryRun           bool
}

// Workbook is the cleaned content of a spreadsheet.
type Workbook struct {
	Patients     []store.Row
	Sessions     []store.Row
	PatientsRead int
	SessionsRead int
}

// Importer writes spreadsheets into a store.
type Importer struct {
	store  store.Store
	opts   Options
	logger *zap.Logger
}

// New returns an Importer writing to st.
func New(st store.Store, opts Options, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: st, opts: opts.withDefaults(), logger: logger}
}

// ImportFile reads the workbook at path and inserts its rows.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Summary, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()
	return im.importWorkbook(ctx, f, path)
}

// Import reads a workbook from r; name is only used for reporting.
func (im *Importer) Import(ctx context.Context, r io.Reader, name string) (*Summary, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook %s: %w", name, err)
	}
	defer f.Close()
	return im.importWorkbook(ctx, f, name)
}

func (im *Importer) importWorkbook(ctx context.Context, f *excelize.File, name string) (*Summary, error) {
	wb, err := Read(f, im.opts)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		File:          name,
		PatientsRead:  wb.PatientsRead,
		PatientsReady: len(wb.Patients),
		SessionsRead:  wb.SessionsRead,
		SessionsReady: len(wb.Sessions),
		DryRun:        im.opts.DryRun,
	}
	im.logger.Info("Workbook read",
		zap.String("file", name),
		zap.Int("patients_read", summary.PatientsRead),
		zap.Int("patients_ready", summary.PatientsReady),
		zap.Int("sessions_read", summary.SessionsRead),
		zap.Int("sessions_ready", summary.SessionsReady))

	if im.opts.DryRun {
		return summary, nil
	}

	summary.PatientsInserted, err = im.insert(ctx, im.opts.PatientsTable, wb.Patients, im.opts.PatientBatch)
	if err != nil {
		return summary, err
	}
	summary.SessionsInserted, err = im.insert(ctx, im.opts.SessionsTable, wb.Sessions, im.opts.SessionBatch)
	if err != nil {
		return summary, err
	}
	return summary, nil
}

func (im *Importer) insert(ctx context.Context, table string, rows []store.Row, batch int) (int, error) {
	inserted := 0
	for start := 0; start < len(rows); start += batch {
		end := start + batch
		if end > len(rows) {
			end = len(rows)
		}
		out, err := im.store.Insert(ctx, table, rows[start:end])
		if err != nil {
			return inserted, fmt.Errorf("failed to insert %s rows %d-%d: %w", table, start, end-1, err)
		}
		inserted += len(out)
		im.logger.Debug("Batch inserted", zap.String("table", table), zap.Int("rows", len(out)))
	}
	return inserted, nil
}

// Read extracts and cleans both sheets of f.
func Read(f *excelize.File, opts Options) (*Workbook, error) {
	opts = opts.withDefaults()
	use1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		use1904 = *props.Date1904
	}

	prows, err := f.GetRows(opts.PatientsSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", opts.PatientsSheet, err)
	}
	srows, err := f.GetRows(opts.SessionsSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", opts.SessionsSheet, err)
	}

	wb := &Workbook{}
	for _, raw := range sheetRecords(prows, patientAliases, patientColumns) {
		wb.PatientsRead++
		row := cleanRow(raw, use1904)
		if row[record.ColumnName] == nil {
			continue
		}
		wb.Patients = append(wb.Patients, row)
	}
	for _, raw := range sheetRecords(srows, sessionAliases, sessionColumns) {
		wb.SessionsRead++
		row := cleanRow(raw, use1904)
		if row[record.ColumnName] == nil || row[record.ColumnDate] == nil {
			continue
		}
		if _, ok := row[record.ColumnClinical]; !ok {
			row[record.ColumnClinical] = nil
		}
		wb.Sessions = append(wb.Sessions, row)
	}
	return wb, nil
}

// sheetRecords maps every data row to its kept columns. Blank rows are
// skipped.
func sheetRecords(rows [][]string, aliases map[string]string, keep map[string]bool) []map[string]string {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		col := NormalizeColumn(h)
		if alias, ok := aliases[col]; ok {
			col = alias
		}
		if keep[col] {
			header[i] = col
		}
	}

	var out []map[string]string
	for _, cells := range rows[1:] {
		rec := make(map[string]string, len(header))
		blank := true
		for i, col := range header {
			if col == "" {
				continue
			}
			v := ""
			if i < len(cells) {
				v = strings.TrimSpace(cells[i])
			}
			if _, dup := rec[col]; dup && v == "" {
				continue
			}
			rec[col] = v
			if v != "" {
				blank = false
			}
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out
}

func cleanRow(raw map[string]string, use1904 bool) store.Row {
	row := make(store.Row, len(raw))
	for col, v := range raw {
		switch col {
		case record.ColumnDate:
			row[col] = cellDate(v, use1904)
		case record.ColumnBilled, record.ColumnPaid:
			row[col] = cellNumber(v)
		default:
			if v == "" {
				row[col] = nil
			} else {
				row[col] = v
			}
		}
	}
	return row
}

// cellDate returns v as YYYY-MM-DD, reading Excel serial numbers and the
// text layouts dateparser accepts; nil when neither applies.
func cellDate(v string, use1904 bool) any {
	if v == "" {
		return nil
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, use1904)
		if err != nil {
			return nil
		}
		return t.Format("2006-01-02")
	}
	if t, err := dateparser.Parse(v); err == nil {
		return t.Format("2006-01-02")
	}
	return nil
}

func cellNumber(v string) any {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
