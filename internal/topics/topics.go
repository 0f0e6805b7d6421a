// Package topics holds the keyword table used to turn a topic into a news query
// and the default set of outlet domains.
package topics

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table maps lower-cased topic names to search keywords.
type Table struct {
	Keywords       map[string][]string `yaml:"keywords"`
	DefaultDomains []string            `yaml:"default_domains"`
}

// Default returns the built-in Brazilian Portuguese table.
func Default() *Table {
	return &Table{
		Keywords: map[string][]string{
			"tecnologia":     {"tecnologia", "tech", "inovação", "startup", "digital", "internet", "software", "hardware"},
			"política":       {"política", "governo", "eleições", "congresso", "senado", "deputado", "presidente"},
			"economia":       {"economia", "mercado", "bolsa", "dólar", "inflação", "PIB", "juros", "banco"},
			"esportes":       {"futebol", "esporte", "copa", "olimpíadas", "jogos", "atleta", "campeonato"},
			"saúde":          {"saúde", "medicina", "hospital", "doença", "vacina", "tratamento", "médico"},
			"ciência":        {"ciência", "pesquisa", "estudo", "descoberta", "universidade", "científico"},
			"entretenimento": {"cinema", "música", "teatro", "celebridade", "filme", "show", "artista"},
			"negócios":       {"negócios", "empresa", "corporação", "CEO", "investimento", "lucro", "receita"},
			"educação":       {"educação", "escola", "universidade", "ensino", "professor", "estudante", "MEC"},
			"meio ambiente":  {"meio ambiente", "sustentabilidade", "clima", "aquecimento global", "poluição", "natureza"},
		},
		DefaultDomains: []string{
			"globo.com",
			"folha.uol.com.br",
			"estadao.com.br",
			"g1.globo.com",
			"uol.com.br",
			"veja.abril.com.br",
			"exame.com",
			"valor.com.br",
			"bbc.com/portuguese",
			"cnn.com.br",
		},
	}
}

// Load reads a YAML table from path. Sections missing from the file keep the built-in values.
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topics file: %w", err)
	}

	var fileTable Table
	if err := yaml.Unmarshal(raw, &fileTable); err != nil {
		return nil, fmt.Errorf("parse topics file: %w", err)
	}

	if len(fileTable.Keywords) > 0 {
		t.Keywords = make(map[string][]string, len(fileTable.Keywords))
		for topic, words := range fileTable.Keywords {
			t.Keywords[strings.ToLower(strings.TrimSpace(topic))] = words
		}
	}
	if len(fileTable.DefaultDomains) > 0 {
		t.DefaultDomains = fileTable.DefaultDomains
	}

	return t, nil
}

// KeywordsFor returns the keywords for topic, or the topic itself when the table has no entry.
func (t *Table) KeywordsFor(topic string) []string {
	key := strings.ToLower(strings.TrimSpace(topic))
	if words, ok := t.Keywords[key]; ok && len(words) > 0 {
		return words
	}
	return []string{strings.TrimSpace(topic)}
}

// Query builds the keyword-OR query for topic.
func (t *Table) Query(topic string) string {
	return strings.Join(t.KeywordsFor(topic), " OR ")
}

// Names lists the known topics in alphabetical order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.Keywords))
	for name := range t.Keywords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Domains returns a copy of the default outlet domains.
func (t *Table) Domains() []string {
	return append([]string(nil), t.DefaultDomains...)
}

// Categorize picks the topic whose keywords occur most often in the text.
// Ties go to the alphabetically first topic; no match yields "geral".
func (t *Table) Categorize(title, content string) string {
	haystack := strings.ToLower(title + " " + content)

	best, bestScore := "geral", 0
	for _, name := range t.Names() {
		score := 0
		for _, word := range t.Keywords[name] {
			if strings.Contains(haystack, strings.ToLower(word)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}
