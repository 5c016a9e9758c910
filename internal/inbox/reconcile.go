// Package inbox derives a user's conversation list: one entry per accepted
// friend, carrying the friend's display data and the latest message between
// the two, ordered by most recent activity.
//
// The derivation is split into pure functions (Counterparts, LatestByCounterpart,
// Build, Sort) and a per-session View that keeps the derived list current as
// change events arrive.
package inbox

import (
	"sort"
	"time"
	"unicode/utf8"

	"github.com/tbourn/go-social-chat/internal/domain"
)

// Display fallbacks.
const (
	PlaceholderName   = "Unknown User"
	PlaceholderAvatar = "/avatar-placeholder.png"
	EmptyPreview      = "No messages yet"

	previewMaxRunes  = 60
	previewKeepRunes = 57
)

// Friend is the display side of an entry.
type Friend struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Email       string `json:"email,omitempty"`
	// Placeholder is true when no profile was available for the friend.
	Placeholder bool `json:"placeholder"`
}

// Entry is one row of the inbox.
type Entry struct {
	FriendshipID string          `json:"friendship_id"`
	Friend       Friend          `json:"friend"`
	Latest       *domain.Message `json:"latest_message,omitempty"`
	Preview      string          `json:"preview"`
	Unread       bool            `json:"unread"`
	FriendsSince time.Time       `json:"friends_since"`
}

// State is everything an inbox is derived from.
type State struct {
	Friendships []domain.Friendship
	Profiles    map[string]domain.Profile
	Latest      map[string]domain.Message
}

// Counterparts returns the distinct non-self participants of fs in order of
// first appearance.
func Counterparts(userID string, fs []domain.Friendship) []string {
	seen := make(map[string]struct{}, len(fs))
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		if !f.Involves(userID) {
			continue
		}
		other := f.Counterpart(userID)
		if other == userID {
			continue
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	return out
}

// supersedes reports whether m should replace cur as the latest message.
// Later timestamps win; equal timestamps fall back to the larger id, which
// matches the (created_at ASC, id ASC) store order.
func supersedes(m, cur domain.Message) bool {
	if m.CreatedAt.Equal(cur.CreatedAt) {
		return m.ID >= cur.ID
	}
	return m.CreatedAt.After(cur.CreatedAt)
}

// LatestByCounterpart reduces msgs to the latest message per counterpart of
// userID. Messages not involving userID are ignored.
func LatestByCounterpart(userID string, msgs []domain.Message) map[string]domain.Message {
	out := make(map[string]domain.Message)
	for _, m := range msgs {
		MergeLatest(out, userID, m)
	}
	return out
}

// MergeLatest folds m into latest and reports whether it changed anything.
// A message older than the one already held is ignored, so merging is
// idempotent and order-insensitive.
func MergeLatest(latest map[string]domain.Message, userID string, m domain.Message) bool {
	var other string
	switch userID {
	case m.SenderID:
		other = m.ReceiverID
	case m.ReceiverID:
		other = m.SenderID
	default:
		return false
	}
	if cur, ok := latest[other]; ok {
		if cur.ID == m.ID || !supersedes(m, cur) {
			return false
		}
	}
	latest[other] = m
	return true
}

// Build derives the sorted entries for userID from st. Several accepted rows
// with the same counterpart collapse into one entry, keeping the most
// recently created relationship.
func Build(userID string, st State) []Entry {
	byFriend := make(map[string]domain.Friendship, len(st.Friendships))
	for _, f := range st.Friendships {
		if f.Status != domain.StatusAccepted || !f.Involves(userID) {
			continue
		}
		other := f.Counterpart(userID)
		if other == userID {
			continue
		}
		if cur, ok := byFriend[other]; ok && !f.CreatedAt.After(cur.CreatedAt) {
			continue
		}
		byFriend[other] = f
	}

	entries := make([]Entry, 0, len(byFriend))
	for other, f := range byFriend {
		e := Entry{
			FriendshipID: f.ID,
			Friend:       friendFor(other, st.Profiles),
			Preview:      EmptyPreview,
			FriendsSince: f.CreatedAt,
		}
		if m, ok := st.Latest[other]; ok {
			m := m
			e.Latest = &m
			e.Preview = Preview(m.Content)
			e.Unread = m.SenderID != userID
		}
		entries = append(entries, e)
	}
	Sort(entries)
	return entries
}

// Sort orders entries by activity: entries with a latest message first,
// newest message first; the rest by relationship creation, newest first.
// Remaining ties are broken by friend id so the order is total.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.Latest != nil && b.Latest != nil:
			if !a.Latest.CreatedAt.Equal(b.Latest.CreatedAt) {
				return a.Latest.CreatedAt.After(b.Latest.CreatedAt)
			}
		case a.Latest != nil:
			return true
		case b.Latest != nil:
			return false
		default:
			if !a.FriendsSince.Equal(b.FriendsSince) {
				return a.FriendsSince.After(b.FriendsSince)
			}
		}
		return a.Friend.ID < b.Friend.ID
	})
}

// Preview shortens content to at most 60 runes.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= previewMaxRunes {
		return content
	}
	return string([]rune(content)[:previewKeepRunes]) + "..."
}

func friendFor(id string, profiles map[string]domain.Profile) Friend {
	p, ok := profiles[id]
	if !ok {
		return Friend{ID: id, DisplayName: PlaceholderName, AvatarURL: PlaceholderAvatar, Placeholder: true}
	}
	f := Friend{ID: id, Email: p.Email, DisplayName: PlaceholderName, AvatarURL: PlaceholderAvatar}
	switch {
	case p.DisplayName != nil && *p.DisplayName != "":
		f.DisplayName = *p.DisplayName
	case p.Email != "":
		f.DisplayName = p.Email
	}
	if p.AvatarURL != nil && *p.AvatarURL != "" {
		f.AvatarURL = *p.AvatarURL
	}
	return f
}
