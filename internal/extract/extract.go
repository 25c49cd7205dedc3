// Package extract normalizes raw content into plain text.
//
// Dispatch is capability-based: every Extractor declares which content-type
// labels it supports via SupportsType, and the Registry walks its extractors
// in registration order. Unknown types are not an error — the registry falls
// back to plain-text extraction, keeping ingestion best-effort for content
// the system has never seen. Adding a content type is a pure addition: a new
// Extractor plus one Register call, no dispatch changes.
package extract

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnsupportedContentType is returned by an Extractor used directly on a
	// content type it does not support. Registry dispatch never returns it;
	// dispatch falls back to plain text instead.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrDecodeFailure indicates the raw content could not be parsed by the
	// selected extractor (malformed HTML, truncated message, etc.).
	ErrDecodeFailure = errors.New("content decode failure")

	// ErrEmptyContent indicates extraction produced no usable text.
	// Surfaced by the ingestion workflow; extraction itself returns the blank
	// text and leaves the policy decision to the caller.
	ErrEmptyContent = errors.New("empty content")
)

// Input carries raw content into an extractor.
type Input struct {
	// Data is the raw byte payload.
	Data []byte

	// Filename is the original file name, if known. Used as a secondary
	// dispatch signal (extension) when the declared content type is missing.
	Filename string

	// ContentType is the declared MIME-like type label (may be empty).
	ContentType string
}

// Extractor converts raw content of particular types into normalized text.
type Extractor interface {
	// SupportsType reports whether this extractor handles the given
	// content-type label (already normalized to lowercase, parameters
	// stripped).
	SupportsType(contentType string) bool

	// Extract returns the normalized plain text for the input.
	Extract(ctx context.Context, in Input) (string, error)
}

// normalizeType lowercases a content-type label and strips parameters
// ("Text/HTML; charset=utf-8" -> "text/html").
func normalizeType(contentType string) string {
	if base, _, found := strings.Cut(contentType, ";"); found {
		contentType = base
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
