// Package consolidate merges patient rows and session rows into one view
// per normalized patient name.
package consolidate

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"psicoapp/internal/dateparser"
	"psicoapp/internal/matcher"
	"psicoapp/internal/normalizer"
	"psicoapp/internal/record"
)

// DefaultRecentSessions is how many sessions a view keeps for drill-down.
const DefaultRecentSessions = 5

// Options tunes consolidation.
type Options struct {
	RecentSessions int
}

// Aggregate summarises the sessions of one patient.
type Aggregate struct {
	Count          int
	Billed         decimal.Decimal
	Paid           decimal.Decimal
	Balance        decimal.Decimal // Paid minus Billed
	LastSession    time.Time       // Zero when no session has a usable date
	LastSessionRaw any             // Date value of the most recent session as stored
	Recent         []record.Record // Most recent sessions first
}

// HasLastSession reports whether LastSession carries a date.
func (a Aggregate) HasLastSession() bool {
	return !a.LastSession.IsZero()
}

// View is one consolidated patient.
type View struct {
	Key         string
	Name        string
	Profile     Profile
	Placeholder bool // Built from sessions only, no patient row exists
	Aggregate
}

// Age returns the patient's age on now, if the birth date is usable.
func (v View) Age(now time.Time) (int, bool) {
	return dateparser.Age(v.Profile.BirthDate, now)
}

type datedSession struct {
	rec   record.Record
	date  time.Time
	known bool
}

// Consolidate builds one view per normalized name found in patients or
// sessions. Patient views come first in key order, followed by views for
// names that only appear in sessions, also in key order.
func Consolidate(patients, sessions []record.Record, opts Options) []View {
	recent := opts.RecentSessions
	if recent <= 0 {
		recent = DefaultRecentSessions
	}

	aggregates := aggregateSessions(sessions, recent)

	groups := make(map[string][]record.Record)
	for _, p := range patients {
		key := p.Key()
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], p)
	}

	views := make([]View, 0, len(groups)+len(aggregates))
	for _, key := range sortedKeys(groups) {
		profile := buildProfile(groups[key])
		agg, ok := aggregates[key]
		if !ok {
			agg = zeroAggregate()
		}
		views = append(views, View{Key: key, Name: profile.Name, Profile: profile, Aggregate: agg})
	}

	for _, key := range sortedKeys(aggregates) {
		if _, ok := groups[key]; ok {
			continue
		}
		agg := aggregates[key]
		name := ""
		if len(agg.Recent) > 0 {
			name = strings.TrimSpace(agg.Recent[0].Name)
		}
		if name == "" {
			name = normalizer.TitleCase(key)
		}
		views = append(views, View{
			Key:         key,
			Name:        name,
			Profile:     Profile{Name: name},
			Placeholder: true,
			Aggregate:   agg,
		})
	}
	return views
}

func zeroAggregate() Aggregate {
	return Aggregate{Billed: decimal.Zero, Paid: decimal.Zero, Balance: decimal.Zero}
}

func aggregateSessions(sessions []record.Record, recent int) map[string]Aggregate {
	dated := make([]datedSession, 0, len(sessions))
	for _, s := range sessions {
		if s.Key() == "" {
			continue
		}
		d, ok := s.Date(record.ColumnDate)
		dated = append(dated, datedSession{rec: s, date: d, known: ok})
	}
	sort.SliceStable(dated, func(i, j int) bool {
		a, b := dated[i], dated[j]
		if a.known != b.known {
			return a.known
		}
		return a.known && a.date.After(b.date)
	})

	out := make(map[string]Aggregate)
	for _, s := range dated {
		key := s.rec.Key()
		agg, ok := out[key]
		if !ok {
			agg = zeroAggregate()
			agg.LastSessionRaw, _ = s.rec.Value(record.ColumnDate)
			if s.known {
				agg.LastSession = s.date
			}
		}
		agg.Count++
		agg.Billed = agg.Billed.Add(s.rec.Amount(record.ColumnBilled))
		agg.Paid = agg.Paid.Add(s.rec.Amount(record.ColumnPaid))
		agg.Balance = agg.Paid.Sub(agg.Billed)
		if len(agg.Recent) < recent {
			agg.Recent = append(agg.Recent, s.rec)
		}
		out[key] = agg
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortByLastSession orders views by most recent session, newest first.
// Views without a dated session go last; ties fall back to the key.
func SortByLastSession(views []View) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.HasLastSession() != b.HasLastSession() {
			return a.HasLastSession()
		}
		if !a.LastSession.Equal(b.LastSession) {
			return a.LastSession.After(b.LastSession)
		}
		return a.Key < b.Key
	})
}

// Filter keeps the views whose name fuzzily matches term, or whose CPF or
// e-mail contains it. A blank term keeps everything.
func Filter(views []View, term string, m *matcher.Matcher) []View {
	query := normalizer.Normalize(term)
	if query == "" {
		return views
	}
	raw := strings.ToLower(strings.TrimSpace(term))

	out := make([]View, 0, len(views))
	for _, v := range views {
		name := normalizer.Normalize(v.Name)
		switch {
		case name != "" && m.Matches(name, query):
		case strings.Contains(strings.ToLower(v.Profile.CPF), raw):
		case strings.Contains(strings.ToLower(v.Profile.Email), raw):
		default:
			continue
		}
		out = append(out, v)
	}
	return out
}
