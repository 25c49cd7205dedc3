package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeText converts a raw byte payload to a string.
//
// Valid UTF-8 passes through unchanged. Anything else is decoded as
// Windows-1252, the permissive legacy superset of Latin-1 that covers the
// bulk of mislabeled Western text in the wild. Bytes with no mapping decode
// to the replacement rune and are discarded, so decoding never fails —
// ingestion stays resilient to malformed input.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		// Last resort: keep the valid UTF-8 runs, drop the rest.
		return strings.ToValidUTF8(string(data), "")
	}

	return strings.ReplaceAll(string(decoded), "�", "")
}
