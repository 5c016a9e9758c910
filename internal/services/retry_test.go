package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-social-chat/internal/repo"
)

func TestReadRetry_RetriesTransientErrors(t *testing.T) {
	calls := 0
	v, err := readRetry(context.Background(), 3, "test", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("database is locked")
		}
		return 42, nil
	})
	if err != nil || v != 42 || calls != 3 {
		t.Fatalf("got v=%d err=%v calls=%d", v, err, calls)
	}
}

func TestReadRetry_GivesUpAfterMaxTries(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := readRetry(context.Background(), 2, "test", func() (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) || calls != 2 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestReadRetry_NotFoundIsFinal(t *testing.T) {
	calls := 0
	_, err := readRetry(context.Background(), 3, "test", func() (int, error) {
		calls++
		return 0, repo.ErrNotFound
	})
	if !errors.Is(err, repo.ErrNotFound) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestSanitizeAndCheckText(t *testing.T) {
	if got := sanitizeText("  a\r\n\r\n\r\n\r\nb  "); got != "a\n\nb" {
		t.Fatalf("sanitizeText = %q", got)
	}
	// decomposed e + combining acute normalizes to one rune
	if s, err := checkText("e\u0301", 1); err != nil || s != "\u00e9" {
		t.Fatalf("checkText NFC = %q %v", s, err)
	}
	if _, err := checkText(" ", 0); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
	if _, err := checkText("abc", 2); !errors.Is(err, ErrTooLong) {
		t.Fatalf("want ErrTooLong, got %v", err)
	}
}
