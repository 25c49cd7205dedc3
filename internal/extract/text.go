package extract

import (
	"context"
	"strings"
)

// textTypes are the content-type labels the plain-text extractor claims
// explicitly. It also serves as the registry fallback for everything else.
var textTypes = map[string]struct{}{
	"text/plain":             {},
	"text/markdown":          {},
	"text/csv":               {},
	"application/json":       {},
	"application/x-yaml":     {},
	"application/yaml":       {},
	"application/xml":        {},
	"application/x-ndjson":   {},
	"application/javascript": {},
}

// TextExtractor extracts plain text content. It is the default extractor and
// the dispatch fallback for unknown content types.
type TextExtractor struct{}

// SupportsType reports true for text/* and a handful of text-shaped
// application types.
func (*TextExtractor) SupportsType(contentType string) bool {
	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	_, ok := textTypes[contentType]
	return ok
}

// Extract decodes the payload to a string. Well-formed UTF-8 input is
// returned unchanged.
func (*TextExtractor) Extract(_ context.Context, in Input) (string, error) {
	return decodeText(in.Data), nil
}
