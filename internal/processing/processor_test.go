package processing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shDupont/merculy/internal/processing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "collapse whitespace", input: "foo\n\nbar\t baz", want: "foo bar baz"},
		{name: "remove urls", input: "Veja https://example.com agora", want: "Veja agora"},
		{name: "entities", input: "Lula &amp; Congresso", want: "Lula & Congresso"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := processing.CleanText(tt.input); got != tt.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "html paragraphs", input: "<p>Primeiro parágrafo.</p><p>Segundo &amp; final.</p>", want: "Primeiro parágrafo.\n\nSegundo & final."},
		{name: "clipped tail", input: "Texto clipado… [+2345 chars]", want: "Texto clipado"},
		{name: "whitespace", input: "a  \t b\r\n\n\n c", want: "a b\n\nc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.NormalizeText(tt.input))
		})
	}
}

func TestStripHTMLWithoutBlocks(t *testing.T) {
	require.Equal(t, "Só texto em negrito", processing.StripHTML("<b>Só texto em negrito</b>"))
	require.Equal(t, "plain", processing.StripHTML("plain"))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "aç", processing.Truncate("ação", 2))
	require.Equal(t, "ação", processing.Truncate("ação", 10))
	require.Equal(t, "", processing.Truncate("ação", 0))
}

func TestFirstWords(t *testing.T) {
	require.Equal(t, "Governo anuncia novo pacote", processing.FirstWords("Governo anuncia novo pacote fiscal hoje", 4))
	require.Equal(t, "curto", processing.FirstWords("  curto ", 4))
}

func TestFirstParagraph(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{name: "html", body: "<p></p><p>Primeira fala.</p><p>Depois</p>", want: "Primeira fala.", wantOK: true},
		{name: "blank line", body: "Linha um\n\nLinha dois", want: "Linha um", wantOK: true},
		{name: "leading blank", body: "\n\n  \nLinha real\noutra", want: "Linha real", wantOK: true},
		{name: "no break", body: "sem quebra nenhuma", want: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := processing.FirstParagraph(tt.body)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestExtractQuote(t *testing.T) {
	require.Equal(t, "Primeiro", processing.ExtractQuote("Primeiro\n\nSegundo", 200))
	require.Equal(t, "abcdefghij", processing.ExtractQuote("abcdefghijklmnop", 10))
}

func TestStripBullet(t *testing.T) {
	tests := map[string]string{
		"- item":       "item",
		"• item":       "item",
		"* item":       "item",
		"1. item":      "item",
		"2) item":      "item",
		"3.5% de alta": "3.5% de alta",
		"sem marcador": "sem marcador",
	}

	for in, want := range tests {
		require.Equal(t, want, processing.StripBullet(in), in)
	}
}
