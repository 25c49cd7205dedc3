package analysis

import (
	"strings"
	"testing"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"summary": "hi"}`, `{"summary": "hi"}`},
		{"json fence", "```json\n{\"summary\": \"hi\"}\n```", `{"summary": "hi"}`},
		{"upper fence", "```JSON\n{}\n```", `{}`},
		{"plain fence", "```\n{}\n```", `{}`},
		{"surrounding whitespace", "  \n{\"a\": 1}\n ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.in); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseResult(t *testing.T) {
	raw := "```json\n" + `{
		"summary": "  Acme raised a Series A.  ",
		"entities": [
			{"text": "Acme Corp", "type": "organization", "confidence": 0.95},
			{"text": "   ", "type": "person", "confidence": 0.5},
			{"text": "Jordan Lee", "confidence": 1.7}
		],
		"topics": ["funding", "", " venture capital "],
		"sentiment": {"label": "positive", "score": 1.4, "confidence": -0.2}
	}` + "\n```"

	got, err := parseResult(raw)
	if err != nil {
		t.Fatalf("parseResult() error = %v", err)
	}

	if got.Summary != "Acme raised a Series A." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if len(got.Entities) != 2 {
		t.Fatalf("Entities = %v, want blank entity dropped", got.Entities)
	}
	if got.Entities[1].Type != "other" {
		t.Errorf("missing type should default to other, got %q", got.Entities[1].Type)
	}
	if got.Entities[1].Confidence != 1 {
		t.Errorf("confidence not clamped: %v", got.Entities[1].Confidence)
	}
	if len(got.Topics) != 2 || got.Topics[1] != "venture capital" {
		t.Errorf("Topics = %v", got.Topics)
	}
	if got.Sentiment == nil || got.Sentiment.Score != 1 || got.Sentiment.Confidence != 0 {
		t.Errorf("Sentiment = %+v, want score/confidence clamped", got.Sentiment)
	}
}

func TestParseResultMalformed(t *testing.T) {
	if _, err := parseResult("the model rambled instead of emitting JSON"); err == nil {
		t.Fatal("parseResult() error = nil, want parse failure")
	}
}

func TestParseResultMinimal(t *testing.T) {
	got, err := parseResult(`{"summary": "just a summary"}`)
	if err != nil {
		t.Fatalf("parseResult() error = %v", err)
	}
	if got.Entities == nil || got.Topics == nil {
		t.Error("absent arrays should normalize to empty, not nil")
	}
	if got.Sentiment != nil {
		t.Errorf("Sentiment = %+v, want nil when absent", got.Sentiment)
	}
}

func TestBuildPromptIncludesHints(t *testing.T) {
	p := buildPrompt("body text", map[string]string{
		"source":       "https://example.com/post",
		"content_type": "text/html",
	})
	for _, want := range []string{"https://example.com/post", "text/html", "body text"} {
		if !strings.Contains(p, want) {
			t.Errorf("buildPrompt() missing %q", want)
		}
	}
}
