package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"psicoapp/internal/cache"
	"psicoapp/internal/matcher"
	"psicoapp/internal/store"
)

// flakyStore fails selects on the named tables and counts the rest.
type flakyStore struct {
	*store.Memory
	failTables map[string]bool
	selects    int
}

func (f *flakyStore) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	f.selects++
	if f.failTables[q.Table] {
		return nil, &store.ConnectivityError{Op: "select", Err: errors.New("timeout")}
	}
	return f.Memory.Select(ctx, q)
}

func fixture(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	_, err := m.Insert(ctx, "pacientes", []store.Row{
		{"nome": "Fernanda Lima", "cpf": "111.222.333-44", "email": "fe@example.com"},
		{"nome": "Roberto Alves", "cpf": "555", "email": "beto@example.com"},
		{"nome": "Zuleica", "cpf": nil},
		{"nome": "Ana Clara"},
	})
	require.NoError(t, err)
	_, err = m.Insert(ctx, "entradas", []store.Row{
		{"nome": "Fernanda Lima", "data": "2024-05-01", "valor_sessao": 150, "valor_pago": 150},
		{"nome": "Roberto Alves", "data": "2024-06-01", "valor_sessao": 150, "valor_pago": 0},
		{"nome": "fernanda  lima", "data": "2024-04-01", "valor_sessao": 150, "valor_pago": 150},
		{"nome": "Marcos Sem Cadastro", "data": "2024-03-01", "valor_sessao": 100, "valor_pago": 100},
		{"nome": "Roberto Alves", "data": nil, "valor_sessao": 150, "valor_pago": 150},
	})
	require.NoError(t, err)
	return m
}

func TestDefaultNames(t *testing.T) {
	svc := New(fixture(t), nil, nil, Options{PageSize: 2}, zap.NewNop())

	names, err := svc.DefaultNames(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Roberto Alves", "Fernanda Lima", "Marcos Sem Cadastro", "Ana Clara", "Zuleica"}, names)

	names, err = svc.DefaultNames(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Roberto Alves", "Fernanda Lima"}, names)
}

func TestDefaultNames_Cached(t *testing.T) {
	fs := &flakyStore{Memory: fixture(t)}
	kv := cache.NewMemory(16, time.Minute)
	svc := New(fs, kv, nil, DefaultOptions(), nil)
	ctx := context.Background()

	first, err := svc.DefaultNames(ctx, 3)
	require.NoError(t, err)
	calls := fs.selects

	second, err := svc.DefaultNames(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, fs.selects, "served from cache")

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.DefaultNames(ctx, 3)
	require.NoError(t, err)
	assert.Greater(t, fs.selects, calls)
}

func TestInvalidate_SharedCache(t *testing.T) {
	st := fixture(t)
	kv := cache.NewMemory(16, time.Minute)
	reader := New(st, kv, nil, DefaultOptions(), nil)
	writer := New(st, kv, nil, DefaultOptions(), nil)
	ctx := context.Background()

	before, err := reader.DefaultNames(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Roberto Alves", "Fernanda Lima"}, before)
	cachedTerm, err := reader.ByTerm(ctx, "roberto")
	require.NoError(t, err)
	assert.Equal(t, []string{"Roberto Alves"}, cachedTerm)

	_, err = st.Update(ctx, "entradas", store.Row{"nome": "Roberto Alves Neto"}, []store.Filter{store.Eq("nome", "Roberto Alves")})
	require.NoError(t, err)
	require.NoError(t, writer.Invalidate(ctx))

	after, err := reader.DefaultNames(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Roberto Alves Neto", "Fernanda Lima"}, after)

	term, err := reader.ByTerm(ctx, "roberto")
	require.NoError(t, err)
	assert.Equal(t, []string{"Roberto Alves", "Roberto Alves Neto"}, term)
}

func TestByTerm(t *testing.T) {
	svc := New(fixture(t), nil, nil, DefaultOptions(), nil)
	ctx := context.Background()

	names, err := svc.ByTerm(ctx, "fernanda")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fernanda Lima"}, names)

	names, err = svc.ByTerm(ctx, "beto@")
	require.NoError(t, err)
	assert.Equal(t, []string{"Roberto Alves"}, names)

	names, err = svc.ByTerm(ctx, "cadastro")
	require.NoError(t, err)
	assert.Equal(t, []string{"Marcos Sem Cadastro"}, names)

	_, err = svc.ByTerm(ctx, " a ")
	assert.ErrorIs(t, err, ErrTermTooShort)
}

func TestByTerm_SkipsFailingSource(t *testing.T) {
	fs := &flakyStore{Memory: fixture(t), failTables: map[string]bool{"pacientes": true}}
	svc := New(fs, nil, nil, DefaultOptions(), nil)
	ctx := context.Background()

	names, err := svc.ByTerm(ctx, "lima")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fernanda Lima"}, names)

	fs.failTables["entradas"] = true
	_, err = svc.ByTerm(ctx, "lima")
	var connErr *store.ConnectivityError
	assert.ErrorAs(t, err, &connErr)
}

func TestLoad_Chunks(t *testing.T) {
	fs := &flakyStore{Memory: fixture(t)}
	svc := New(fs, nil, nil, Options{ChunkSize: 1}, nil)

	patients, sessions, err := svc.Load(context.Background(), []string{"Roberto Alves", "Fernanda Lima", "Roberto Alves", " "})
	require.NoError(t, err)
	assert.Len(t, patients, 2)
	assert.Len(t, sessions, 3, "only exact names are loaded")
	assert.Equal(t, 4, fs.selects)
	assert.Equal(t, "Fernanda Lima", sessions[0].Name)
}

func TestBrowse(t *testing.T) {
	svc := New(fixture(t), nil, matcher.New(0), DefaultOptions(), nil)
	ctx := context.Background()

	views, err := svc.Browse(ctx, "")
	require.NoError(t, err)
	var keys []string
	for _, v := range views {
		keys = append(keys, v.Key)
	}
	assert.Equal(t, []string{"roberto alves", "fernanda lima", "marcos sem cadastro", "ana clara", "zuleica"}, keys)

	views, err = svc.Browse(ctx, "fernada")
	require.NoError(t, err)
	require.Len(t, views, 0, "term search is a substring query")

	views, err = svc.Browse(ctx, "Roberto")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 2, views[0].Count)
	assert.Equal(t, "-150", views[0].Balance.String())

	_, err = svc.Browse(ctx, "r")
	assert.ErrorIs(t, err, ErrTermTooShort)
}
