package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/go-social-chat/internal/domain"
)

func TestFriendHandlers_SendAcceptLifecycle(t *testing.T) {
	e := newEnv(t)
	e.profile(t, "alice", "alice@example.com", "Alice")
	e.profile(t, "bob", "bob@example.com", "Bob")

	// unauthenticated
	wantError(t, e.do(t, http.MethodPost, "/friends/send", "", SendFriendRequest{SenderID: "alice", ReceiverID: "bob"}), http.StatusUnauthorized, ErrCodeUnauthorized)

	// validation
	wantError(t, e.do(t, http.MethodPost, "/friends/send", "alice", SendFriendRequest{SenderID: "alice"}), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(t, http.MethodPost, "/friends/send", "alice", SendFriendRequest{SenderID: "alice", ReceiverID: "alice"}), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(t, http.MethodPost, "/friends/send", "alice", SendFriendRequest{SenderID: "alice", ReceiverEmail: "nobody@example.com"}), http.StatusNotFound, ErrCodeNotFound)
	// acting for someone else
	wantError(t, e.do(t, http.MethodPost, "/friends/send", "alice", SendFriendRequest{SenderID: "bob", ReceiverID: "carol"}), http.StatusNotFound, ErrCodeNotFound)

	// send by email, case-insensitive
	w := e.do(t, http.MethodPost, "/friends/send", "alice", SendFriendRequest{SenderID: "alice", ReceiverEmail: " BOB@example.com "})
	wantStatus(t, w, http.StatusOK)
	res := decode[FriendshipResult](t, w)
	if !res.Success || res.Result.SenderID != "alice" || res.Result.ReceiverID != "bob" || res.Result.Status != domain.StatusPending {
		t.Fatalf("unexpected send result: %+v", res.Result)
	}
	reqID := res.Result.ID

	// duplicate
	wantError(t, e.do(t, http.MethodPost, "/friends/send", "alice", SendFriendRequest{SenderID: "alice", ReceiverID: "bob"}), http.StatusConflict, ErrCodeConflict)

	// pending for bob embeds alice's profile
	w = e.do(t, http.MethodGet, "/friends/pending?userId=bob", "bob", nil)
	wantStatus(t, w, http.StatusOK)
	pend := decode[PendingResponse](t, w)
	if len(pend.Requests) != 1 || pend.Requests[0].Sender == nil || pend.Requests[0].Sender.Email != "alice@example.com" {
		t.Fatalf("unexpected pending: %+v", pend.Requests)
	}
	// alice has nothing incoming, and cannot read bob's list
	w = e.do(t, http.MethodGet, "/friends/pending?userId=alice", "alice", nil)
	if got := decode[PendingResponse](t, w); len(got.Requests) != 0 {
		t.Fatalf("alice pending = %+v", got.Requests)
	}
	wantError(t, e.do(t, http.MethodGet, "/friends/pending?userId=bob", "alice", nil), http.StatusNotFound, ErrCodeNotFound)

	// only the receiver may accept
	wantError(t, e.do(t, http.MethodPost, "/friends/accept", "alice", AnswerFriendRequest{RequestID: reqID}), http.StatusNotFound, ErrCodeNotFound)
	wantError(t, e.do(t, http.MethodPost, "/friends/accept", "alice", AnswerFriendRequest{RequestID: reqID, ReceiverID: "bob"}), http.StatusNotFound, ErrCodeNotFound)
	wantError(t, e.do(t, http.MethodPost, "/friends/accept", "bob", AnswerFriendRequest{ReceiverID: "bob"}), http.StatusBadRequest, ErrCodeBadRequest)

	w = e.do(t, http.MethodPost, "/friends/accept", "bob", AnswerFriendRequest{RequestID: reqID, ReceiverID: "bob"})
	wantStatus(t, w, http.StatusOK)
	if got := decode[FriendshipResult](t, w); got.Result.Status != domain.StatusAccepted {
		t.Fatalf("status after accept = %q", got.Result.Status)
	}

	// answered requests cannot be answered again
	wantError(t, e.do(t, http.MethodPost, "/friends/accept", "bob", AnswerFriendRequest{RequestID: reqID, ReceiverID: "bob"}), http.StatusConflict, ErrCodeConflict)
	wantError(t, e.do(t, http.MethodPost, "/friends/reject", "bob", AnswerFriendRequest{RequestID: reqID, ReceiverID: "bob"}), http.StatusConflict, ErrCodeConflict)

	// relationships from alice's side
	w = e.do(t, http.MethodGet, "/friends", "alice", nil)
	wantStatus(t, w, http.StatusOK)
	fr := decode[FriendsResponse](t, w)
	if len(fr.Friends) != 1 || fr.Friends[0].CounterpartID != "bob" || fr.Friends[0].Incoming || fr.Friends[0].Counterpart == nil {
		t.Fatalf("unexpected friends: %+v", fr.Friends)
	}
}

func TestFriendHandlers_Reject(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/friends/send", "carol", SendFriendRequest{SenderID: "carol", ReceiverID: "dave"})
	wantStatus(t, w, http.StatusOK)
	id := decode[FriendshipResult](t, w).Result.ID

	w = e.do(t, http.MethodPost, "/friends/reject", "dave", AnswerFriendRequest{RequestID: id, ReceiverID: "dave"})
	wantStatus(t, w, http.StatusOK)
	if got := decode[FriendshipResult](t, w); got.Result.Status != domain.StatusRejected {
		t.Fatalf("status after reject = %q", got.Result.Status)
	}

	// a rejected row still blocks a new request in the same direction
	wantError(t, e.do(t, http.MethodPost, "/friends/send", "carol", SendFriendRequest{SenderID: "carol", ReceiverID: "dave"}), http.StatusConflict, ErrCodeConflict)

	// empty lists are arrays, not null
	w = e.do(t, http.MethodGet, "/friends", "nobody", nil)
	wantStatus(t, w, http.StatusOK)
	if w.Body.String() != `{"friends":[]}` {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestFriendHandlers_MissingIdentityFields(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/friends/send", "erin", SendFriendRequest{SenderID: "erin", ReceiverID: "frank"})
	wantStatus(t, w, http.StatusOK)
	id := decode[FriendshipResult](t, w).Result.ID

	cases := []struct {
		name, method, path, user string
		body                     any
	}{
		{"send without senderId", http.MethodPost, "/friends/send", "erin", SendFriendRequest{ReceiverID: "gina"}},
		{"send with blank senderId", http.MethodPost, "/friends/send", "erin", SendFriendRequest{SenderID: "  ", ReceiverID: "gina"}},
		{"accept without receiverId", http.MethodPost, "/friends/accept", "frank", AnswerFriendRequest{RequestID: id}},
		{"reject without receiverId", http.MethodPost, "/friends/reject", "frank", AnswerFriendRequest{RequestID: id}},
		{"pending without userId", http.MethodGet, "/friends/pending", "frank", nil},
		{"pending with blank userId", http.MethodGet, "/friends/pending?userId=", "frank", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wantError(t, e.do(t, tc.method, tc.path, tc.user, tc.body), http.StatusBadRequest, ErrCodeBadRequest)
		})
	}

	// the request is untouched by the rejected calls
	w = e.do(t, http.MethodGet, "/friends/pending?userId=frank", "frank", nil)
	wantStatus(t, w, http.StatusOK)
	if got := decode[PendingResponse](t, w); len(got.Requests) != 1 || got.Requests[0].ID != id {
		t.Fatalf("pending = %+v", got.Requests)
	}
}
