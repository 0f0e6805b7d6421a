package enrichment

import "fmt"

const summaryPrompt = `Resuma o seguinte artigo de notícias em no máximo 3 linhas, mantendo as informações mais importantes:

Título: %s
Conteúdo: %s

Resumo:`

const highlightsPrompt = `Extraia exatamente 3 frases curtas com os pontos principais do seguinte artigo de notícias.
Escreva uma frase por linha, sem introdução nem conclusão.

Título: %s
Conteúdo: %s`

const biasPrompt = `Analise o viés político do seguinte artigo de notícias e classifique como 'esquerda', 'centro' ou 'direita'.
Considere apenas o conteúdo e a linguagem utilizada, não a fonte.

Título: %s
Conteúdo: %s

Responda apenas com uma das três opções: esquerda, centro, direita`

func buildPrompt(template, title, body string) string {
	return fmt.Sprintf(template, title, body)
}
