package normalizer

import (
	"strings"
	"testing"
	"unicode"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"only spaces", "   \t ", ""},
		{"trim and lower", "  Ana Paula ", "ana paula"},
		{"accents", "José da Conceição", "jose da conceicao"},
		{"collapse runs", "José  DA\tSilva", "jose da silva"},
		{"non-breaking space", "Maria\u00a0\u00a0Clara", "maria clara"},
		{"zero width", "Jo\u200bão", "joao"},
		{"decomposed input", "Jose\u0301", "jose"},
		{"cedilla upper", "FRANÇA", "franca"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	if !Equal("José  DA Silva", "jose da silva") {
		t.Error("expected accented and plain variants to be equal")
	}
	if Equal("Ana", "Ana Paula") {
		t.Error("different names must not be equal")
	}
}

func TestTitleCase(t *testing.T) {
	if got := TitleCase("joao da silva"); got != "Joao Da Silva" {
		t.Errorf("TitleCase = %q", got)
	}
	if got := TitleCase(""); got != "" {
		t.Errorf("TitleCase(\"\") = %q", got)
	}
}

// genName builds names from a Portuguese-flavoured alphabet with accents,
// mixed case and assorted whitespace.
func genName() gopter.Gen {
	alphabet := []rune("abcdeçãáâéêíóôõúüABCÇÃÁÉÍÓÚ \t\u00a0\u200b\u0301")
	return gen.SliceOf(gen.IntRange(0, len(alphabet)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteRune(alphabet[i])
		}
		return b.String()
	})
}

// Property: Normalize is idempotent and its output carries no uppercase,
// no combining marks and no repeated or edge whitespace.
func TestNormalizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("idempotent", prop.ForAll(
		func(s string) bool {
			once := Normalize(s)
			return Normalize(once) == once
		},
		genName(),
	))

	properties.Property("canonical form", prop.ForAll(
		func(s string) bool {
			out := Normalize(s)
			if out != strings.TrimSpace(out) || strings.Contains(out, "  ") {
				return false
			}
			for _, r := range out {
				if unicode.IsUpper(r) || unicode.Is(unicode.Mn, r) || (unicode.IsSpace(r) && r != ' ') {
					return false
				}
			}
			return true
		},
		genName(),
	))

	properties.Property("case insensitive", prop.ForAll(
		func(s string) bool {
			return Normalize(strings.ToUpper(s)) == Normalize(strings.ToLower(s))
		},
		genName(),
	))

	properties.TestingRun(t)
}
