package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// htmlTypes are the content-type labels handled by the HTML extractor.
var htmlTypes = map[string]struct{}{
	"text/html":             {},
	"application/xhtml+xml": {},
}

// HTMLExtractor extracts the readable text of an HTML document.
//
// Readability-style main-content extraction is attempted first so that
// navigation, boilerplate, and scripts do not pollute the indexed text. When
// readability cannot identify an article (fragments, non-article pages), the
// whole document text is extracted instead.
type HTMLExtractor struct{}

// SupportsType reports true for HTML content types.
func (*HTMLExtractor) SupportsType(contentType string) bool {
	_, ok := htmlTypes[contentType]
	return ok
}

// Extract returns the readable text of the HTML payload.
func (*HTMLExtractor) Extract(_ context.Context, in Input) (string, error) {
	html := decodeText(in.Data)

	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		text := article.TextContent
		if article.Title != "" && !strings.Contains(text, article.Title) {
			text = article.Title + "\n\n" + text
		}
		return text, nil
	}

	return fullDocumentText(html)
}

// fullDocumentText extracts all visible text from an HTML document,
// dropping script and style contents.
func fullDocumentText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return "", fmt.Errorf("%w: parsing HTML: %v", ErrDecodeFailure, err)
	}

	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
	})
	text := b.String()
	if strings.TrimSpace(text) == "" {
		// Fragment without a body element.
		text = doc.Text()
	}

	return collapseWhitespace(text), nil
}

// collapseWhitespace trims lines and squeezes blank-line runs so extracted
// HTML text resembles readable plain text.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
