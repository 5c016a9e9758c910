package services

import (
	"unicode/utf8"

	"github.com/tbourn/go-social-chat/internal/domain"
)

// sanitizeText normalizes user text before it is stored.
func sanitizeText(raw string) string { return domain.CanonicalText(raw) }

// checkText sanitizes raw and enforces non-empty and max runes (0 = no cap).
func checkText(raw string, maxRunes int) (string, error) {
	s := sanitizeText(raw)
	if s == "" {
		return "", ErrEmptyMessage
	}
	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		return "", ErrTooLong
	}
	return s, nil
}
