package processing

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	urlRegex      = regexp.MustCompile(`https?://[^\s]+`)
	spaces        = regexp.MustCompile(`[ \t\f\v\r]+`)
	blankLines    = regexp.MustCompile(`\n\s*\n+`)
	truncatedTail = regexp.MustCompile(`\s*(…|\.\.\.)?\s*\[\+\d+ chars\]\s*$`)
	bulletPrefix  = regexp.MustCompile(`^\s*(?:[-*•●▪–]+\s*|\d+[.)]\s+)`)
)

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// StripHTML returns the visible text of an HTML fragment. Plain text passes through unchanged
// apart from entity decoding.
func StripHTML(input string) string {
	if input == "" {
		return ""
	}
	if !strings.Contains(input, "<") {
		return html.UnescapeString(input)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return html.UnescapeString(input)
	}

	var parts []string
	body := doc.Find("body")
	blocks := body.Find("p, li, h1, h2, h3, h4, blockquote")
	if blocks.Length() == 0 {
		return strings.TrimSpace(body.Text())
	}
	blocks.Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

// NormalizeText strips markup and the "[+123 chars]" tail news APIs append to clipped bodies.
// Paragraph breaks survive as a single blank line; other whitespace is squeezed.
func NormalizeText(input string) string {
	if input == "" {
		return ""
	}
	text := StripHTML(input)
	text = truncatedTail.ReplaceAllString(text, "")
	text = spaces.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CleanText flattens text into a single line without URLs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := RemoveURLs(html.UnescapeString(input))
	return strings.Join(strings.Fields(decoded), " ")
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// FirstWords returns the first n whitespace-separated words of s.
func FirstWords(s string, n int) string {
	words := strings.Fields(s)
	if n > 0 && len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// FirstParagraph returns the first non-empty paragraph of body and whether body had a
// paragraph break at all. HTML bodies use their first <p>; plain text splits on newlines.
func FirstParagraph(body string) (string, bool) {
	if strings.Contains(body, "<p") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err == nil {
			var first string
			doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				first = CleanText(s.Text())
				return first == ""
			})
			if first != "" {
				return first, true
			}
		}
	}

	text := strings.TrimSpace(body)
	if !strings.Contains(text, "\n") {
		return "", false
	}
	for _, chunk := range strings.Split(text, "\n") {
		if trimmed := CleanText(chunk); trimmed != "" {
			return trimmed, true
		}
	}
	return "", false
}

// ExtractQuote picks a representative quote from an article body: its first paragraph,
// or the first max runes when the body has no paragraph break.
func ExtractQuote(body string, max int) string {
	if para, ok := FirstParagraph(body); ok {
		return para
	}
	return Truncate(CleanText(StripHTML(body)), max)
}

// StripBullet removes list markers like "-", "•" or "1." from the start of a line.
func StripBullet(line string) string {
	return strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
}
