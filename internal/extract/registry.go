package extract

import (
	"context"
	"log/slog"
)

// Registry dispatches extraction to the first registered extractor whose
// SupportsType predicate matches. Registration order is significant.
//
// Registry is safe for concurrent Extract calls once registration is done;
// Register is not synchronized and should happen at startup.
type Registry struct {
	extractors []Extractor
	fallback   Extractor
	logger     *slog.Logger
}

// NewRegistry creates a Registry with the built-in extractors registered:
// email, HTML, then plain text, with plain text doubling as the fallback for
// unknown content types.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	text := &TextExtractor{}
	r := &Registry{
		fallback: text,
		logger:   logger,
	}
	r.Register(&EmailExtractor{})
	r.Register(&HTMLExtractor{})
	r.Register(text)
	return r
}

// Register appends an extractor to the dispatch order.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Extract normalizes the input to plain text.
//
// The declared content type is normalized, then matched against registered
// extractors in order; when the filename carries an extension, it is used as
// a secondary signal via typeFromFilename. If nothing matches, the plain-text
// fallback is used rather than failing: unknown types are treated as
// best-effort plain text.
func (r *Registry) Extract(ctx context.Context, in Input) (string, error) {
	contentType := normalizeType(in.ContentType)
	if contentType == "" {
		contentType = typeFromFilename(in.Filename)
	}

	for _, e := range r.extractors {
		if e.SupportsType(contentType) {
			return e.Extract(ctx, in)
		}
	}

	r.logger.Debug("no extractor registered for content type, falling back to plain text",
		"content_type", contentType, "filename", in.Filename)
	return r.fallback.Extract(ctx, in)
}

// typeFromFilename maps well-known file extensions to content-type labels.
// Returns "" when the extension is unknown.
func typeFromFilename(filename string) string {
	idx := lastDot(filename)
	if idx < 0 {
		return ""
	}

	switch toLowerASCII(filename[idx:]) {
	case ".html", ".htm", ".xhtml":
		return "text/html"
	case ".eml":
		return "message/rfc822"
	case ".md", ".markdown":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".txt", ".log":
		return "text/plain"
	default:
		return ""
	}
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.':
			return i
		case '/', '\\':
			return -1
		}
	}
	return -1
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
