package handlers

import (
	"net/http"
	"strings"
	"testing"
)

func TestGetInbox_EntriesAndETag(t *testing.T) {
	e := newEnv(t)
	e.profile(t, "alice", "alice@example.com", "Alice")
	e.profile(t, "bob", "bob@example.com", "Bob")
	e.befriend(t, "alice", "bob")
	e.befriend(t, "carol", "alice")

	wantStatus(t, e.do(t, http.MethodPost, "/conversations/alice/messages", "bob", PostMessageRequest{Content: "ping"}), http.StatusCreated)

	w := e.do(t, http.MethodGet, "/inbox", "alice", nil)
	wantStatus(t, w, http.StatusOK)
	resp := decode[InboxResponse](t, w)
	if len(resp.Entries) != 2 {
		t.Fatalf("entries = %+v", resp.Entries)
	}
	top := resp.Entries[0]
	if top.Friend.ID != "bob" || top.Friend.DisplayName != "Bob" || top.Latest == nil || !top.Unread || top.Preview != "ping" {
		t.Fatalf("unexpected top entry: %+v", top)
	}
	if second := resp.Entries[1]; second.Friend.ID != "carol" || !second.Friend.Placeholder || second.Latest != nil {
		t.Fatalf("unexpected second entry: %+v", second)
	}

	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"inbox:alice:`) {
		t.Fatalf("ETag = %q", etag)
	}
	wantStatus(t, e.do(t, http.MethodGet, "/inbox", "alice", nil, "If-None-Match", etag), http.StatusNotModified)

	// alice replies: the tag changes and the entry is no longer unread
	wantStatus(t, e.do(t, http.MethodPost, "/conversations/bob/messages", "alice", PostMessageRequest{Content: "pong"}), http.StatusCreated)
	w = e.do(t, http.MethodGet, "/inbox", "alice", nil, "If-None-Match", etag)
	wantStatus(t, w, http.StatusOK)
	if got := decode[InboxResponse](t, w).Entries[0]; got.Unread || got.Preview != "pong" {
		t.Fatalf("after reply: %+v", got)
	}

	// no friends, empty array
	w = e.do(t, http.MethodGet, "/inbox", "loner", nil)
	wantStatus(t, w, http.StatusOK)
	if w.Body.String() != `{"entries":[]}` {
		t.Fatalf("body = %s", w.Body.String())
	}
}
