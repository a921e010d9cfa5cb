package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSessions(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	_, err := m.Insert(context.Background(), "entradas", []Row{
		{"nome": "Ana", "data": "2024-01-10", "valor_sessao": 100},
		{"nome": "Beto", "data": "2024-03-01", "valor_sessao": 150},
		{"nome": "ana", "data": nil, "valor_sessao": 100},
		{"nome": "Carla Souza", "data": "2024-02-20", "valor_sessao": 120},
	})
	require.NoError(t, err)
	return m
}

func TestMemoryInsertAssignsIDs(t *testing.T) {
	m := seedSessions(t)
	rows, err := m.Select(context.Background(), Query{Table: "entradas", Columns: []string{"id"}})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, row := range rows {
		assert.Equal(t, int64(i+1), row["id"])
	}

	inserted, err := m.Insert(context.Background(), "entradas", []Row{{"id": int64(10), "nome": "Davi"}, {"nome": "Eva"}})
	require.NoError(t, err)
	assert.Equal(t, int64(10), inserted[0]["id"])
	assert.Equal(t, int64(11), inserted[1]["id"])
}

func TestMemorySelectFilters(t *testing.T) {
	m := seedSessions(t)
	ctx := context.Background()

	rows, err := m.Select(ctx, Query{Table: "entradas", Where: []Filter{Eq("nome", "Ana")}})
	require.NoError(t, err)
	assert.Len(t, rows, 1, "equality is case-sensitive")

	rows, err = m.Select(ctx, Query{Table: "entradas", Where: []Filter{Contains("nome", "AN")}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Select(ctx, Query{Table: "entradas", Where: []Filter{In("nome", []string{"Beto", "Carla Souza"})}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Select(ctx, Query{Table: "entradas", AnyOf: []Filter{Eq("nome", "Beto"), Contains("nome", "souza")}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Select(ctx, Query{Table: "entradas", Where: []Filter{In("id", []int64{})}})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemorySelectOrderAndPaging(t *testing.T) {
	m := seedSessions(t)
	ctx := context.Background()

	rows, err := m.Select(ctx, Query{
		Table:   "entradas",
		Columns: []string{"nome"},
		OrderBy: []Order{{Column: "data", Desc: true}},
	})
	require.NoError(t, err)
	names := make([]any, len(rows))
	for i, r := range rows {
		names[i] = r["nome"]
	}
	assert.Equal(t, []any{"Beto", "Carla Souza", "Ana", "ana"}, names, "nil dates sort last")

	rows, err = m.Select(ctx, Query{Table: "entradas", OrderBy: []Order{{Column: "id"}}, Limit: 2, Offset: 3})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(4), rows[0]["id"])

	rows, err = m.Select(ctx, Query{Table: "entradas", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryUpdateAndDelete(t *testing.T) {
	m := seedSessions(t)
	ctx := context.Background()

	updated, err := m.Update(ctx, "entradas", Row{"nome": "Ana Lima"}, []Filter{In("id", []int64{1, 3})})
	require.NoError(t, err)
	assert.Len(t, updated, 2)

	rows, err := m.Select(ctx, Query{Table: "entradas", Where: []Filter{Eq("nome", "Ana Lima")}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = m.Update(ctx, "entradas", Row{"nome": "x"}, nil)
	assert.ErrorIs(t, err, ErrUnfilteredWrite)

	deleted, err := m.Delete(ctx, "entradas", []Filter{Eq("nome", "Beto")})
	require.NoError(t, err)
	assert.Len(t, deleted, 1)
	assert.Equal(t, 3, m.Len("entradas"))

	_, err = m.Delete(ctx, "entradas", nil)
	assert.ErrorIs(t, err, ErrUnfilteredWrite)
}

func TestMemoryCanceledContext(t *testing.T) {
	m := seedSessions(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Select(ctx, Query{Table: "entradas"})
	var connErr *ConnectivityError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "select", connErr.Op)
	assert.ErrorIs(t, err, context.Canceled)
}

// countingStore records how many pages were requested.
type countingStore struct {
	*Memory
	selects int
}

func (c *countingStore) Select(ctx context.Context, q Query) ([]Row, error) {
	c.selects++
	return c.Memory.Select(ctx, q)
}

func TestSelectAllPaginates(t *testing.T) {
	m := NewMemory()
	var rows []Row
	for i := 0; i < 7; i++ {
		rows = append(rows, Row{"nome": "p"})
	}
	_, err := m.Insert(context.Background(), "pacientes", rows)
	require.NoError(t, err)

	cs := &countingStore{Memory: m}
	all, err := SelectAll(context.Background(), cs, Query{Table: "pacientes", OrderBy: []Order{{Column: "id"}}}, 3)
	require.NoError(t, err)
	assert.Len(t, all, 7)
	assert.Equal(t, 3, cs.selects, "3 + 3 + short page of 1")

	cs.selects = 0
	_, err = m.Insert(context.Background(), "pacientes", []Row{{"nome": "p"}, {"nome": "p"}})
	require.NoError(t, err)
	all, err = SelectAll(context.Background(), cs, Query{Table: "pacientes", OrderBy: []Order{{Column: "id"}}}, 3)
	require.NoError(t, err)
	assert.Len(t, all, 9)
	assert.Equal(t, 4, cs.selects, "an exact multiple needs one empty page to stop")
}
