package domain

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// CanonicalText is the form in which user text is stored and compared:
//   - NFC normalization so visually equal strings compare equal,
//   - CRLF/CR to LF,
//   - runs of 3+ LFs collapsed to two,
//   - surrounding whitespace trimmed.
func CanonicalText(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
