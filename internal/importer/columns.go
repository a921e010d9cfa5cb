package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII
})))

var headerReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "")

// NormalizeColumn turns a spreadsheet header into a column name:
// "Observações" becomes "observacoes", "Quem Indicou" becomes
// "quem_indicou".
func NormalizeColumn(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	if folded, _, err := transform.String(asciiFold, s); err == nil {
		s = folded
	}
	return headerReplacer.Replace(s)
}

// Column renames applied after normalization.
var (
	patientAliases = map[string]string{
		"observacoes": "observacoees",
	}
	sessionAliases = map[string]string{
		"valor": "valor_sessao",
		"pago":  "valor_pago",
	}
)

// Columns kept per table; anything else in the sheet is ignored.
var (
	patientColumns = map[string]bool{
		"nome":         true,
		"cpf":          true,
		"email":        true,
		"origem":       true,
		"quem_indicou": true,
		"telefone":     true,
		"observacoees": true,
	}
	sessionColumns = map[string]bool{
		"data":               true,
		"valor_sessao":       true,
		"nome":               true,
		"tipo":               true,
		"faltas":             true,
		"valor_pago":         true,
		"obs":                true,
		"anotacoes_clinicas": true,
	}
)
