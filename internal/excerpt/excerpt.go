// Package excerpt turns the HTML sections of a post into plain text for
// table cells, meta descriptions and previews.
package excerpt

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Text returns the visible text of an HTML fragment with runs of
// whitespace collapsed to single spaces. Script and style contents are
// dropped.
func Text(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()

	// Block elements would otherwise glue adjacent words together.
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, br, tr, td, th, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Summary returns at most max runes of text, cut at a word boundary and
// marked with an ellipsis when shortened.
func Summary(html string, max int) string {
	text := Text(html)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:-") + "…"
}

// First returns the summary of the first non-empty fragment.
func First(max int, fragments ...string) string {
	for _, f := range fragments {
		if s := Summary(f, max); s != "" {
			return s
		}
	}
	return ""
}
