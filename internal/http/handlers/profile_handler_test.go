package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/go-social-chat/internal/domain"
)

func TestProfileHandlers(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/me", "alice", nil)
	wantStatus(t, w, http.StatusOK)
	if got := decode[MeResponse](t, w); got.ID != "alice" || got.Profile != nil {
		t.Fatalf("me before profile = %+v", got)
	}

	// the dev identity header carries no email claim
	wantError(t, e.do(t, http.MethodPut, "/me", "alice", UpdateProfileRequest{}), http.StatusBadRequest, ErrCodeBadRequest)

	name := "Alice"
	w = e.do(t, http.MethodPut, "/me", "alice", UpdateProfileRequest{Email: "Alice@Example.com", DisplayName: &name})
	wantStatus(t, w, http.StatusOK)
	if got := decode[domain.Profile](t, w); got.Email != "alice@example.com" || got.DisplayName == nil || *got.DisplayName != "Alice" {
		t.Fatalf("saved profile = %+v", got)
	}

	w = e.do(t, http.MethodGet, "/me", "alice", nil)
	if got := decode[MeResponse](t, w); got.Profile == nil || got.Profile.Email != "alice@example.com" {
		t.Fatalf("me after profile = %+v", got)
	}

	wantStatus(t, e.do(t, http.MethodGet, "/profiles/alice", "bob", nil), http.StatusOK)
	wantError(t, e.do(t, http.MethodGet, "/profiles/nobody", "bob", nil), http.StatusNotFound, ErrCodeNotFound)

	wantError(t, e.do(t, http.MethodPut, "/me", "bob", UpdateProfileRequest{Email: "alice@example.com"}), http.StatusConflict, ErrCodeConflict)
}
