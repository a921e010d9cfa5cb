package importer

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"psicoapp/internal/store"
)

func writeWorkbook(t *testing.T, patients, sessions [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "dados"))
	_, err := f.NewSheet("entradas")
	require.NoError(t, err)

	for i, row := range patients {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("dados", cell, &row))
	}
	for i, row := range sessions {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("entradas", cell, &row))
	}

	path := filepath.Join(t.TempDir(), "dados_limpos.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func legacyWorkbook(t *testing.T) string {
	return writeWorkbook(t,
		[][]any{
			{"Nome", "CPF", "E-mail", "Quem Indicou", "Observações", "Profissão"},
			{"Ana Souza", "111", "ana@example.com", "Dra. Lia", "alergia", "advogada"},
			{"", "222", "", "", "", ""},
			{"Beto", "", "", "", "", ""},
		},
		[][]any{
			{"Data", "Nome", "Valor", "Pago", "Tipo", "Obs."},
			{time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "Ana Souza", 150, 150, "online", "primeira"},
			{"12/03/2024", "Ana Souza", "150", "abc", "", ""},
			{"", "Beto", 100, 100, "", ""},
			{"2024-04-01", "", 100, 100, "", ""},
		},
	)
}

func TestNormalizeColumn(t *testing.T) {
	tests := map[string]string{
		"Nome":               "nome",
		" Quem Indicou":      "quem_indicou",
		"Observações":        "observacoes",
		"E-mail":             "e_mail",
		"Obs.":               "obs",
		"Anotações Clínicas": "anotacoes_clinicas",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeColumn(in), in)
	}
}

func TestImportFile(t *testing.T) {
	path := legacyWorkbook(t)
	m := store.NewMemory()
	im := New(m, Options{PatientBatch: 1}, nil)

	summary, err := im.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.PatientsRead)
	assert.Equal(t, 2, summary.PatientsReady)
	assert.Equal(t, 2, summary.PatientsInserted)
	assert.Equal(t, 4, summary.SessionsRead)
	assert.Equal(t, 2, summary.SessionsReady)
	assert.Equal(t, 2, summary.SessionsInserted)

	patients, err := m.Select(context.Background(), store.Query{Table: "pacientes", OrderBy: []store.Order{{Column: "id"}}})
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "Ana Souza", patients[0]["nome"])
	assert.Equal(t, "alergia", patients[0]["observacoees"])
	assert.Equal(t, "Dra. Lia", patients[0]["quem_indicou"])
	_, hasProfession := patients[0]["profissao"]
	assert.False(t, hasProfession, "unknown columns are dropped")
	_, hasEmail := patients[0]["e_mail"]
	assert.False(t, hasEmail)

	sessions, err := m.Select(context.Background(), store.Query{Table: "entradas", OrderBy: []store.Order{{Column: "id"}}})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2024-03-05", sessions[0]["data"])
	assert.Equal(t, 150.0, sessions[0]["valor_sessao"])
	assert.Equal(t, "primeira", sessions[0]["obs"])
	assert.Equal(t, "2024-03-12", sessions[1]["data"])
	assert.Nil(t, sessions[1]["valor_pago"], "non-numeric amounts become null")
	assert.Contains(t, sessions[1], "anotacoes_clinicas")
}

func TestImport_DryRun(t *testing.T) {
	path := legacyWorkbook(t)
	data, err := excelize.OpenFile(path)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = data.WriteTo(&buf)
	require.NoError(t, err)
	data.Close()

	m := store.NewMemory()
	summary, err := New(m, Options{DryRun: true}, nil).Import(context.Background(), &buf, "upload.xlsx")
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.SessionsReady)
	assert.Zero(t, summary.SessionsInserted)
	assert.Zero(t, m.Len("entradas"))
}

func TestImport_MissingSheet(t *testing.T) {
	f := excelize.NewFile()
	path := filepath.Join(t.TempDir(), "vazio.xlsx")
	require.NoError(t, f.SaveAs(path))
	f.Close()

	_, err := New(store.NewMemory(), Options{}, nil).ImportFile(context.Background(), path)
	assert.Error(t, err)
}

type failingInsert struct {
	*store.Memory
}

func (f failingInsert) Insert(ctx context.Context, table string, rows []store.Row) ([]store.Row, error) {
	if table == "entradas" {
		return nil, errors.New("constraint violation")
	}
	return f.Memory.Insert(ctx, table, rows)
}

func TestImport_InsertFailureKeepsSummary(t *testing.T) {
	path := legacyWorkbook(t)
	summary, err := New(failingInsert{store.NewMemory()}, Options{}, nil).ImportFile(context.Background(), path)
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.PatientsInserted)
	assert.Zero(t, summary.SessionsInserted)
}

func TestCellDate(t *testing.T) {
	assert.Equal(t, "2024-03-05", cellDate("45356", false))
	assert.Equal(t, "2024-03-05", cellDate("45356.75", false))
	assert.Equal(t, "2024-03-05", cellDate("05-03-2024", false))
	assert.Nil(t, cellDate("amanhã", false))
	assert.Nil(t, cellDate("", false))
}
