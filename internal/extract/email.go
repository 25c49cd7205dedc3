package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset" // register legacy charsets
	"github.com/emersion/go-message/mail"
)

// emailTypes are the content-type labels handled by the email extractor.
var emailTypes = map[string]struct{}{
	"message/rfc822": {},
	"message/global": {},
}

// EmailExtractor extracts text from RFC 822 email messages.
//
// The subject line is prepended to the body so that searches over subject
// terms match. text/plain parts are taken verbatim; text/html parts go
// through the HTML extractor; attachments are skipped.
type EmailExtractor struct{}

// SupportsType reports true for email message content types.
func (*EmailExtractor) SupportsType(contentType string) bool {
	_, ok := emailTypes[contentType]
	return ok
}

// Extract parses the message and returns subject plus body text.
func (e *EmailExtractor) Extract(ctx context.Context, in Input) (string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(in.Data))
	if err != nil {
		return "", fmt.Errorf("%w: parsing message: %v", ErrDecodeFailure, err)
	}

	var b strings.Builder
	if subject, err := mr.Header.Subject(); err == nil && subject != "" {
		b.WriteString(subject)
		b.WriteString("\n\n")
	}

	html := &HTMLExtractor{}
	var plainSeen bool
	var htmlBody string

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A truncated part should not discard what was already read.
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue // attachment
		}

		contentType, _, err := inline.ContentType()
		if err != nil {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch normalizeType(contentType) {
		case "text/plain":
			b.Write(body)
			b.WriteString("\n")
			plainSeen = true
		case "text/html":
			// Only used when no plain-text alternative exists.
			if htmlBody == "" {
				text, err := html.Extract(ctx, Input{Data: body, ContentType: "text/html"})
				if err == nil {
					htmlBody = text
				}
			}
		}
	}

	if !plainSeen && htmlBody != "" {
		b.WriteString(htmlBody)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: message has no readable parts", ErrDecodeFailure)
	}
	return text, nil
}
