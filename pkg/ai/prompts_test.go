package ai

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pt", "pt"},
		{"en", "en"},
		{"es", "es"},
		{"pt-BR", "pt"},
		{"en-US", "en"},
		{"EN", "en"},
		{"fr", "pt"},
		{"", "pt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeLanguage(tt.in), "input %q", tt.in)
	}
}

func TestSummaryScaffold(t *testing.T) {
	assert.True(t, strings.HasPrefix(summaryScaffold("en"), "## 📌 Summary"))
	assert.True(t, strings.HasPrefix(summaryScaffold("pt"), "## 📌 Resumo"))
	assert.True(t, strings.HasPrefix(summaryScaffold("es"), "## 📌 Resumen"))
	assert.Contains(t, summaryScaffold("en"), "## 🔑 Key Points")
	assert.Contains(t, summaryScaffold("en"), "## ✅ Actions")
	assert.Contains(t, summaryScaffold("en"), "## 📋 Important Details")
}

func TestSummaryFailureMessage(t *testing.T) {
	err := errors.New("provider down")
	assert.Equal(t, "Falha ao gerar resumo: provider down", SummaryFailureMessage("pt", err))
	assert.Equal(t, "Failed to generate summary: provider down", SummaryFailureMessage("en", err))
	assert.Equal(t, "Error al generar el resumen: provider down", SummaryFailureMessage("es", err))
}

func TestFallbackTitle(t *testing.T) {
	t.Run("short text kept", func(t *testing.T) {
		assert.Equal(t, "Short note", FallbackTitle("en", "Short note"))
	})

	t.Run("long text truncated to 50 chars", func(t *testing.T) {
		long := strings.Repeat("a", 80)
		got := FallbackTitle("pt", long)
		assert.Equal(t, strings.Repeat("a", 50)+"...", got)
	})

	t.Run("empty text localized default", func(t *testing.T) {
		assert.Equal(t, "Nota de voz", FallbackTitle("pt", ""))
		assert.Equal(t, "Voice note", FallbackTitle("en", "   "))
	})
}

func TestNormalizeTitle(t *testing.T) {
	t.Run("strips quotes and whitespace", func(t *testing.T) {
		assert.Equal(t, "Meeting notes", NormalizeTitle(`  "Meeting notes"  `))
	})

	t.Run("short title untouched", func(t *testing.T) {
		assert.Equal(t, "Groceries", NormalizeTitle("Groceries"))
	})

	t.Run("long title capped at 60 runes", func(t *testing.T) {
		long := strings.Repeat("x", 100)
		got := NormalizeTitle(long)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxTitleLength)
		assert.True(t, strings.HasSuffix(got, "…"))
	})

	t.Run("multibyte safe", func(t *testing.T) {
		long := strings.Repeat("ã", 100)
		got := NormalizeTitle(long)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxTitleLength)
		assert.True(t, utf8.ValidString(got))
	})
}
