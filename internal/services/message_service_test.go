package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/realtime"
)

func newMsgSvc(t *testing.T) (*MessageService, *recorder) {
	t.Helper()
	rec := &recorder{}
	return &MessageService{DB: newSvcDB(t), Publisher: rec, MaxRunes: 10}, rec
}

func TestMessageService_Send_Validation(t *testing.T) {
	s, rec := newMsgSvc(t)
	befriend(t, s.DB, "alice", "bob")
	ctx := context.Background()

	cases := []struct {
		name, from, to, content string
		want                    error
	}{
		{"blank ids", "", "bob", "hi", ErrMissingFields},
		{"empty content", "alice", "bob", "  \n\t ", ErrEmptyMessage},
		{"too long", "alice", "bob", strings.Repeat("é", 11), ErrTooLong},
		{"not friends", "alice", "carol", "hi", ErrNotFriends},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Send(ctx, tc.from, tc.to, tc.content); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
	if len(rec.all()) != 0 {
		t.Fatalf("failed sends must not publish")
	}
}

func TestMessageService_Send_EitherDirectionAndPublishes(t *testing.T) {
	s, rec := newMsgSvc(t)
	befriend(t, s.DB, "alice", "bob")
	ctx := context.Background()

	m, err := s.Send(ctx, "bob", "alice", "  hello\r\n ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Content != "hello" || m.ID == "" {
		t.Fatalf("unexpected message: %+v", m)
	}
	evs := rec.all()
	if len(evs) != 1 || evs[0].Table != realtime.TableMessages || evs[0].Op != realtime.OpInsert {
		t.Fatalf("unexpected events: %+v", evs)
	}
	var row domain.Message
	if err := evs[0].Decode(&row); err != nil || row.ID != m.ID {
		t.Fatalf("snapshot mismatch: %+v %v", row, err)
	}

	got, err := s.Get(ctx, m.ID)
	if err != nil || got.ID != m.ID {
		t.Fatalf("Get: %+v %v", got, err)
	}
}

func TestMessageService_ListPage_FriendsOnly(t *testing.T) {
	s, _ := newMsgSvc(t)
	befriend(t, s.DB, "alice", "bob")
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		seedMessage(t, s.DB, from, to, string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
	}
	seedMessage(t, s.DB, "alice", "carol", "other pair", base)

	items, total, err := s.ListPage(ctx, "alice", "bob", 2, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 5 || len(items) != 2 || items[0].Content != "c" || items[1].Content != "d" {
		t.Fatalf("unexpected page: total=%d items=%+v", total, items)
	}

	if _, _, err := s.ListPage(ctx, "alice", "carol", 1, 10); !errors.Is(err, ErrNotFriends) {
		t.Fatalf("want ErrNotFriends, got %v", err)
	}

	count, newest, err := s.Stats(ctx, "bob", "alice")
	if err != nil || count != 5 || newest == nil || !newest.Equal(base.Add(4*time.Minute)) {
		t.Fatalf("Stats = %d %v %v", count, newest, err)
	}
}

func TestMessageService_ListPage_EmptyConversation(t *testing.T) {
	s, _ := newMsgSvc(t)
	befriend(t, s.DB, "alice", "bob")

	items, total, err := s.ListPage(context.Background(), "alice", "bob", 0, 0)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("want empty non-nil page, got %v %d %v", items, total, err)
	}
}

func TestConversationBackend_RefusesNonFriends(t *testing.T) {
	s, _ := newMsgSvc(t)
	befriend(t, s.DB, "alice", "bob")
	seedMessage(t, s.DB, "alice", "bob", "hi", time.Now().UTC())
	b := &ConversationBackend{MessageSvc: s, ProfileSvc: &ProfileService{DB: s.DB}}
	ctx := context.Background()

	msgs, err := b.ListConversation(ctx, "bob", "alice")
	if err != nil || len(msgs) != 1 {
		t.Fatalf("ListConversation = %v %v", msgs, err)
	}
	if _, err := b.ListConversation(ctx, "bob", "carol"); !errors.Is(err, ErrNotFriends) {
		t.Fatalf("want ErrNotFriends, got %v", err)
	}
	if ps, err := b.Profiles(ctx, nil); err != nil || ps != nil {
		t.Fatalf("empty profile lookup = %v %v", ps, err)
	}
	if _, err := b.Send(ctx, "bob", "alice", "yo"); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
