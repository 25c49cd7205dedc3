package extract

import (
	"context"
	"strings"
	"testing"
)

func TestHTMLExtractorStripsMarkup(t *testing.T) {
	e := &HTMLExtractor{}

	html := `<html><head><title>Quarterly Report</title>
<script>var tracking = true;</script>
<style>body { color: red; }</style></head>
<body><h1>Quarterly Report</h1><p>Revenue grew 40% year over year.</p></body></html>`

	got, err := e.Extract(context.Background(), Input{Data: []byte(html), ContentType: "text/html"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !strings.Contains(got, "Revenue grew 40% year over year.") {
		t.Errorf("Extract() = %q, missing body text", got)
	}
	if strings.Contains(got, "tracking") || strings.Contains(got, "color: red") {
		t.Errorf("Extract() = %q, script/style content leaked", got)
	}
}

func TestHTMLExtractorHandlesFragments(t *testing.T) {
	e := &HTMLExtractor{}

	got, err := e.Extract(context.Background(), Input{
		Data:        []byte(`<p>just a fragment</p>`),
		ContentType: "text/html",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(got, "just a fragment") {
		t.Errorf("Extract() = %q", got)
	}
}

func TestHTMLExtractorSupportsType(t *testing.T) {
	e := &HTMLExtractor{}

	if !e.SupportsType("text/html") {
		t.Error("SupportsType(text/html) = false")
	}
	if !e.SupportsType("application/xhtml+xml") {
		t.Error("SupportsType(application/xhtml+xml) = false")
	}
	if e.SupportsType("text/plain") {
		t.Error("SupportsType(text/plain) = true, want false")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  first line  \n\n\n\n  second line\t\n\n"
	want := "first line\n\nsecond line"
	if got := collapseWhitespace(in); got != want {
		t.Errorf("collapseWhitespace() = %q, want %q", got, want)
	}
}
