// Package search selects which patients the patient screen shows and loads
// their rows for consolidation.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"psicoapp/internal/cache"
	"psicoapp/internal/consolidate"
	"psicoapp/internal/matcher"
	"psicoapp/internal/normalizer"
	"psicoapp/internal/record"
	"psicoapp/internal/store"
)

// ErrTermTooShort is returned when a search term has fewer significant
// characters than MinTermLength.
var ErrTermTooShort = errors.New("search term too short")

// generationKey holds the current cache generation. Name lists are stored
// under it, so replacing it hides every list written before, whichever
// process wrote them.
const generationKey = "names:generation"

// sessionColumns are the session columns the patient screen needs.
var sessionColumns = []string{
	record.ColumnName,
	record.ColumnDate,
	record.ColumnType,
	record.ColumnBilled,
	record.ColumnPaid,
	record.ColumnNotes,
	record.ColumnClinical,
}

// Options configures table names, limits and caching.
type Options struct {
	SessionsTable  string
	PatientsTable  string
	PageSize       int
	MinTermLength  int
	MaxResults     int
	DefaultLimit   int
	ChunkSize      int
	CacheTTL       time.Duration
	RecentSessions int
}

// DefaultOptions returns the standard limits.
func DefaultOptions() Options {
	return Options{
		SessionsTable:  "entradas",
		PatientsTable:  "pacientes",
		PageSize:       store.DefaultPageSize,
		MinTermLength:  2,
		MaxResults:     120,
		DefaultLimit:   20,
		ChunkSize:      200,
		CacheTTL:       300 * time.Second,
		RecentSessions: consolidate.DefaultRecentSessions,
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
	if o.MinTermLength <= 0 {
		o.MinTermLength = d.MinTermLength
	}
	if o.MaxResults <= 0 {
		o.MaxResults = d.MaxResults
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = d.DefaultLimit
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.RecentSessions <= 0 {
		o.RecentSessions = d.RecentSessions
	}
	return o
}

// Service answers patient-screen queries. A nil KV disables caching.
type Service struct {
	store   store.Store
	kv      cache.KV
	matcher *matcher.Matcher
	opts    Options
	logger  *zap.Logger
}

// New returns a Service reading st. kv may be nil and m defaults to a
// matcher with the default threshold.
func New(st store.Store, kv cache.KV, m *matcher.Matcher, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = matcher.New(matcher.DefaultThreshold)
	}
	return &Service{
		store:   st,
		kv:      kv,
		matcher: m,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// DefaultNames returns up to limit names, most recently seen first: names
// from sessions ordered by date, then patients ordered by name to fill the
// remainder. Names are distinct by normalized form.
func (s *Service) DefaultNames(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	key := s.cacheKey(ctx, fmt.Sprintf("default:%d", limit))
	if names, ok := s.cached(ctx, key); ok {
		return names, nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(rows []store.Row) bool {
		for _, row := range rows {
			if addDistinct(&out, seen, record.FromRow(row).Name) && len(out) >= limit {
				return true
			}
		}
		return false
	}

	err := s.scan(ctx, store.Query{
		Table:   s.opts.SessionsTable,
		Columns: []string{record.ColumnName, record.ColumnDate},
		OrderBy: []store.Order{{Column: record.ColumnDate, Desc: true}},
	}, add)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent sessions: %w", err)
	}

	if len(out) < limit {
		err := s.scan(ctx, store.Query{
			Table:   s.opts.PatientsTable,
			Columns: []string{record.ColumnName},
			OrderBy: []store.Order{{Column: record.ColumnName}},
		}, add)
		if err != nil {
			return nil, fmt.Errorf("failed to list patients: %w", err)
		}
	}

	s.remember(ctx, key, out)
	return out, nil
}

// scan feeds q page by page to consume until it reports it is done or a
// short page ends the data.
func (s *Service) scan(ctx context.Context, q store.Query, consume func([]store.Row) bool) error {
	for offset := 0; ; offset += s.opts.PageSize {
		q.Limit = s.opts.PageSize
		q.Offset = offset
		rows, err := s.store.Select(ctx, q)
		if err != nil {
			return err
		}
		if consume(rows) || len(rows) < s.opts.PageSize {
			return nil
		}
	}
}

// ByTerm returns names of patients whose name, CPF or e-mail contains term
// and of sessions whose name contains it, distinct by normalized form and
// capped at MaxResults. A failing sub-query is logged and skipped; the
// call only fails when both do.
func (s *Service) ByTerm(ctx context.Context, term string) ([]string, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(normalizer.Normalize(term)) < s.opts.MinTermLength {
		return nil, ErrTermTooShort
	}

	key := s.cacheKey(ctx, "term:"+strings.ToLower(term))
	if names, ok := s.cached(ctx, key); ok {
		return names, nil
	}

	var (
		rows     []store.Row
		failures []error
	)
	patients, err := s.store.Select(ctx, store.Query{
		Table:   s.opts.PatientsTable,
		Columns: []string{record.ColumnName},
		AnyOf: []store.Filter{
			store.Contains(record.ColumnName, term),
			store.Contains(record.ColumnCPF, term),
			store.Contains(record.ColumnEmail, term),
		},
		Limit: s.opts.MaxResults,
	})
	if err != nil {
		s.logger.Warn("Patient search failed", zap.String("term", term), zap.Error(err))
		failures = append(failures, err)
	}
	rows = append(rows, patients...)

	sessions, err := s.store.Select(ctx, store.Query{
		Table:   s.opts.SessionsTable,
		Columns: []string{record.ColumnName},
		Where:   []store.Filter{store.Contains(record.ColumnName, term)},
		Limit:   s.opts.MaxResults,
	})
	if err != nil {
		s.logger.Warn("Session search failed", zap.String("term", term), zap.Error(err))
		failures = append(failures, err)
	}
	rows = append(rows, sessions...)

	if len(failures) == 2 {
		return nil, errors.Join(failures...)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		addDistinct(&out, seen, record.FromRow(row).Name)
		if len(out) >= s.opts.MaxResults {
			break
		}
	}

	if len(failures) == 0 {
		s.remember(ctx, key, out)
	}
	return out, nil
}

// Load fetches the patient rows and session rows whose name is exactly one
// of names, ChunkSize names per query. Sessions come back newest first
// within each chunk.
func (s *Service) Load(ctx context.Context, names []string) (patients, sessions []record.Record, err error) {
	names = uniqueSorted(names)
	for start := 0; start < len(names); start += s.opts.ChunkSize {
		end := start + s.opts.ChunkSize
		if end > len(names) {
			end = len(names)
		}
		chunk := names[start:end]

		prows, err := s.store.Select(ctx, store.Query{
			Table: s.opts.PatientsTable,
			Where: []store.Filter{store.In(record.ColumnName, chunk)},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load patients: %w", err)
		}
		patients = append(patients, record.FromRows(prows)...)

		srows, err := s.store.Select(ctx, store.Query{
			Table:   s.opts.SessionsTable,
			Columns: sessionColumns,
			Where:   []store.Filter{store.In(record.ColumnName, chunk)},
			OrderBy: []store.Order{{Column: record.ColumnDate, Desc: true}},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load sessions: %w", err)
		}
		sessions = append(sessions, record.FromRows(srows)...)
	}
	return patients, sessions, nil
}

// Browse runs the patient screen pipeline: pick names for term (or the
// most recent patients when term is blank), load, consolidate, order by
// last session and filter.
func (s *Service) Browse(ctx context.Context, term string) ([]consolidate.View, error) {
	var (
		names []string
		err   error
	)
	if normalizer.Normalize(term) == "" {
		names, err = s.DefaultNames(ctx, s.opts.DefaultLimit)
	} else {
		names, err = s.ByTerm(ctx, term)
	}
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	patients, sessions, err := s.Load(ctx, names)
	if err != nil {
		return nil, err
	}

	views := consolidate.Consolidate(patients, sessions, consolidate.Options{RecentSessions: s.opts.RecentSessions})
	consolidate.SortByLastSession(views)
	return consolidate.Filter(views, term, s.matcher), nil
}

// Invalidate starts a new cache generation. Name lists cached by any
// service sharing the KV stop being served and expire on their own.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	_, err := s.newGeneration(ctx)
	return err
}

// generation returns the current generation, starting one when the KV has
// none. An empty result means the KV could not be used.
func (s *Service) generation(ctx context.Context) string {
	gen, err := s.kv.Get(ctx, generationKey)
	if err == nil && gen != "" {
		return gen
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Search cache read failed", zap.String("key", generationKey), zap.Error(err))
		return ""
	}
	gen, err = s.newGeneration(ctx)
	if err != nil {
		s.logger.Warn("Search cache write failed", zap.String("key", generationKey), zap.Error(err))
		return ""
	}
	return gen
}

func (s *Service) newGeneration(ctx context.Context) (string, error) {
	gen := uuid.New().String()
	if err := s.kv.Set(ctx, generationKey, gen, 0); err != nil {
		return "", err
	}
	return gen, nil
}

// cacheKey places key under the current generation. The key is resolved
// once per query so a list computed before an invalidation is never stored
// under the generation that follows it. An empty key disables caching.
func (s *Service) cacheKey(ctx context.Context, key string) string {
	if s.kv == nil {
		return ""
	}
	gen := s.generation(ctx)
	if gen == "" {
		return ""
	}
	return "names:" + gen + ":" + key
}

func (s *Service) cached(ctx context.Context, key string) ([]string, bool) {
	if key == "" {
		return nil, false
	}
	var names []string
	err := cache.GetJSON(ctx, s.kv, key, &names)
	if err == nil {
		return names, true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Search cache read failed", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

func (s *Service) remember(ctx context.Context, key string, names []string) {
	if key == "" {
		return
	}
	if err := cache.SetJSON(ctx, s.kv, key, names, s.opts.CacheTTL); err != nil {
		s.logger.Warn("Search cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func addDistinct(out *[]string, seen map[string]struct{}, name string) bool {
	name = strings.TrimSpace(name)
	key := normalizer.Normalize(name)
	if key == "" {
		return false
	}
	if _, ok := seen[key]; ok {
		return false
	}
	seen[key] = struct{}{}
	*out = append(*out, name)
	return true
}

func uniqueSorted(names []string) []string {
	set := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := set[n]; ok {
			continue
		}
		set[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
