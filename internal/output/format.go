package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"psicoapp/internal/audit"
	"psicoapp/internal/consolidate"
	"psicoapp/internal/dateparser"
	"psicoapp/internal/record"
)

// FormatMoney renders an amount in Brazilian reais, e.g. "R$ 1.234,56" or
// "-R$ 20,00".
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var sb strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(c)
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, sb.String(), frac)
}

// RenderNames prints a numbered list of names.
func RenderNames(w io.Writer, names []string) {
	width := len(fmt.Sprint(len(names)))
	for i, name := range names {
		fmt.Fprintf(w, "%*d. %s\n", width, i+1, name)
	}
}

// RenderViewList prints one summary line per patient view.
func RenderViewList(w io.Writer, views []consolidate.View) {
	for _, v := range views {
		last := "-"
		if !v.LastSession.IsZero() {
			last = v.LastSession.Format("02/01/2006")
		}
		fmt.Fprintf(w, "%-40s  %4d sessions  last %-10s  balance %s\n",
			displayName(v), v.Count, last, FormatMoney(v.Balance))
	}
}

// RenderView prints the drill-down of one patient: profile, totals and the
// most recent sessions.
func RenderView(w io.Writer, v consolidate.View, now time.Time) {
	fmt.Fprintln(w, displayName(v))

	p := v.Profile
	if p.BirthDate != "" {
		birth := dateparser.FormatBR(p.BirthDate)
		if age, ok := v.Age(now); ok {
			birth = fmt.Sprintf("%s (%d years)", birth, age)
		}
		fmt.Fprintf(w, "  %-18s %s\n", "Birth date:", birth)
	}
	for _, f := range []struct{ label, value string }{
		{"CPF:", p.CPF},
		{"Treatment:", p.Treatment},
		{"Profession:", p.Profession},
		{"Origin:", p.Origin},
		{"Referred by:", p.ReferredBy},
		{"Phone:", p.Phone},
		{"Email:", p.Email},
		{"Contact:", p.ContactName},
		{"Emergency contact:", p.EmergencyContact},
		{"Address:", joinNonEmpty(", ", p.Address, p.District, p.City, p.CEP)},
		{"Father:", p.FatherName},
		{"Mother:", p.MotherName},
		{"Notes:", p.Notes},
	} {
		if f.value != "" {
			fmt.Fprintf(w, "  %-18s %s\n", f.label, f.value)
		}
	}

	fmt.Fprintf(w, "  Sessions: %d  Billed: %s  Paid: %s  Balance: %s\n",
		v.Count, FormatMoney(v.Billed), FormatMoney(v.Paid), FormatMoney(v.Balance))
	if v.LastSessionRaw != nil {
		fmt.Fprintf(w, "  Last session: %s\n", dateparser.FormatBR(v.LastSessionRaw))
	}
	if len(v.Recent) == 0 {
		return
	}
	fmt.Fprintln(w, "  Recent sessions:")
	for _, s := range v.Recent {
		date, _ := s.Value(record.ColumnDate)
		line := fmt.Sprintf("    %-10s  %-12s  %s / %s",
			dateparser.FormatBR(date),
			s.Text(record.ColumnType),
			FormatMoney(s.Amount(record.ColumnBilled)),
			FormatMoney(s.Amount(record.ColumnPaid)))
		if notes := s.Text(record.ColumnNotes); notes != "" {
			line += "  " + notes
		}
		fmt.Fprintln(w, line)
	}
}

// RenderEvents prints audit events oldest first, one per line.
func RenderEvents(w io.Writer, events []audit.Event) {
	for _, e := range events {
		line := fmt.Sprintf("%s  %-11s %-7s %s",
			e.Timestamp.Local().Format("02/01/2006 15:04:05"), e.EventType, e.Status, shortID(e.OperationID))
		switch e.EventType {
		case audit.EventRename, audit.EventUndoRename:
			line += fmt.Sprintf("  %q -> %q  %d/%d", e.Source, e.Destination, e.Confirmed, e.Requested)
		case audit.EventImport:
			line += fmt.Sprintf("  %s  %d rows", e.Source, e.Confirmed)
		}
		if e.Error != nil {
			line += "  error: " + e.Error.ErrorMessage
		}
		fmt.Fprintln(w, line)
	}
}

func displayName(v consolidate.View) string {
	if v.Placeholder {
		return v.Name + " (no patient record)"
	}
	return v.Name
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
