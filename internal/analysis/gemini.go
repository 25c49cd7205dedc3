package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// maxInputChars bounds what we send per request; longer documents get
	// truncated rather than rejected, the head usually carries the gist.
	maxInputChars = 24000

	maxRetries     = 3
	initialBackoff = time.Second
	maxBackoff     = 10 * time.Second
)

// GeminiAnalyzer implements Analyzer against the Gemini API. Requests are
// throttled by a shared rate limiter and retried with exponential backoff
// on transient failures.
type GeminiAnalyzer struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGeminiAnalyzer builds a client for the given model. requestsPerMin
// caps outbound request rate; zero or negative disables throttling. The API
// key comes from the environment (GEMINI_API_KEY / GOOGLE_API_KEY).
func NewGeminiAnalyzer(ctx context.Context, model string, requestsPerMin int, logger *slog.Logger) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize genai client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMin)/60.0), 1)
	}

	return &GeminiAnalyzer{
		client:  client,
		model:   model,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Analyze sends the text to Gemini and parses the structured response.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, text string, metadata map[string]string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	prompt := buildPrompt(text, metadata)
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		ResponseMIMEType: "application/json",
	}
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(prompt)},
	}}

	var (
		resp   *genai.GenerateContentResponse
		apiErr error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, apiErr = a.client.Models.GenerateContent(ctx, a.model, contents, cfg)
		if apiErr == nil {
			break
		}
		if attempt == maxRetries {
			break
		}

		backoff := initialBackoff << uint(attempt)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		a.logger.Warn("analysis request failed, backing off",
			"model", a.model, "attempt", attempt+1, "backoff", backoff, "error", apiErr)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("analysis cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
	if apiErr != nil {
		return nil, fmt.Errorf("generate analysis (model %s): %w", a.model, apiErr)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("empty response from model %s", a.model)
	}

	result, err := parseResult(raw)
	if err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}
	return result, nil
}

func buildPrompt(text string, metadata map[string]string) string {
	var hint strings.Builder
	if v := metadata["source"]; v != "" {
		fmt.Fprintf(&hint, "\nSource: %s", v)
	}
	if v := metadata["content_type"]; v != "" {
		fmt.Fprintf(&hint, "\nContent type: %s", v)
	}
	if v := metadata["title"]; v != "" {
		fmt.Fprintf(&hint, "\nTitle: %s", v)
	}

	return fmt.Sprintf(`You are a content analysis specialist.

Task: Analyze the document below and produce structured metadata.%s

Rules:
- Write a summary of at most three sentences, in the document's language.
- Extract named entities: people, organizations, locations, products. Use
  type "other" when nothing fits.
- List the main topics as short lowercase phrases.
- Judge the overall sentiment: label one of positive, negative, neutral,
  mixed; score between -1 and 1.
- Confidence values are between 0 and 1.

Output Format (JSON only, no markdown fences):
{
  "summary": "...",
  "entities": [{"text": "...", "type": "...", "confidence": 0.9}],
  "topics": ["...", "..."],
  "sentiment": {"label": "...", "score": 0.0, "confidence": 0.9}
}

Document:
%s`, hint.String(), text)
}

var fencePattern = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```\\s*$")

// stripFences removes a surrounding markdown code fence, which some models
// emit even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// parseResult decodes the model's JSON and normalizes it: nil slices become
// empty, confidences are clamped to [0, 1], blank entities and topics are
// dropped.
func parseResult(raw string) (*Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(stripFences(raw)), &r); err != nil {
		return nil, err
	}

	entities := r.Entities[:0]
	for _, e := range r.Entities {
		e.Text = strings.TrimSpace(e.Text)
		if e.Text == "" {
			continue
		}
		if e.Type == "" {
			e.Type = "other"
		}
		e.Confidence = clamp01(e.Confidence)
		entities = append(entities, e)
	}
	r.Entities = entities
	if r.Entities == nil {
		r.Entities = []Entity{}
	}

	topics := r.Topics[:0]
	for _, t := range r.Topics {
		t = strings.TrimSpace(t)
		if t != "" {
			topics = append(topics, t)
		}
	}
	r.Topics = topics
	if r.Topics == nil {
		r.Topics = []string{}
	}

	if r.Sentiment != nil {
		r.Sentiment.Confidence = clamp01(r.Sentiment.Confidence)
		if r.Sentiment.Score > 1 {
			r.Sentiment.Score = 1
		}
		if r.Sentiment.Score < -1 {
			r.Sentiment.Score = -1
		}
	}

	r.Summary = strings.TrimSpace(r.Summary)
	return &r, nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
