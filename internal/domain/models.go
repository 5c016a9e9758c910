// Package domain defines the persistence models for profiles, friendships,
// direct messages, secret messages and read cursors. These types are mapped
// with GORM and form the core data layer of the social chat service.
package domain

import (
	"strings"
	"time"
)

// Friendship statuses. Rows are created pending and move exactly once to
// accepted or rejected.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Profile is the display metadata of a user.
//
// Fields:
//   - ID: opaque identity id issued by the identity provider.
//   - Email: unique address, matched case-insensitively on lookup.
//   - DisplayName / AvatarURL: optional; placeholders are used when empty.
type Profile struct {
	ID          string    `json:"id"                     gorm:"type:varchar(64);primaryKey"`
	Email       string    `json:"email"                  gorm:"type:varchar(320);not null;uniqueIndex:ux_profiles_email"`
	DisplayName *string   `json:"display_name,omitempty" gorm:"type:varchar(255)"`
	AvatarURL   *string   `json:"avatar_url,omitempty"   gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// Friendship is a directed friend request between two users. Participants are
// not foreign keys: a counterpart may exist without a profile row.
type Friendship struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string    `json:"sender_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_friend_pair,priority:1;index:idx_friend_sender"`
	ReceiverID string    `json:"receiver_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_friend_pair,priority:2;index:idx_friend_receiver"`
	Status     string    `json:"status"      gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','accepted','rejected')"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Friendship.
func (Friendship) TableName() string { return "friendships" }

// Involves reports whether userID is either participant.
func (f Friendship) Involves(userID string) bool {
	return f.SenderID == userID || f.ReceiverID == userID
}

// Counterpart returns the participant that is not userID.
func (f Friendship) Counterpart(userID string) string {
	if f.SenderID == userID {
		return f.ReceiverID
	}
	return f.SenderID
}

// Message is a direct message between two users. Messages are append-only:
// once written they are never updated or deleted, so there is no UpdatedAt
// and no soft-delete column.
type Message struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string    `json:"sender_id"   gorm:"type:varchar(64);not null;index:idx_msg_pair,priority:1"`
	ReceiverID string    `json:"receiver_id" gorm:"type:varchar(64);not null;index:idx_msg_pair,priority:2"`
	Content    string    `json:"content"     gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index:idx_msg_pair,priority:3"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Between reports whether the message belongs to the unordered pair {a, b}.
func (m Message) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// SecretMessage is the single free-text note a user shares with accepted
// friends. Saving replaces the previous text.
type SecretMessage struct {
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);primaryKey"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for SecretMessage.
func (SecretMessage) TableName() string { return "secret_messages" }

// LastRead records when a user last opened a conversation.
type LastRead struct {
	UserID      string    `json:"user_id"       gorm:"type:varchar(64);primaryKey"`
	OtherUserID string    `json:"other_user_id" gorm:"type:varchar(64);primaryKey"`
	LastReadAt  time.Time `json:"last_read_at"  gorm:"not null"`
}

// TableName returns the database table name for LastRead.
func (LastRead) TableName() string { return "last_reads" }

// NormalizeEmail lowercases and trims an address for comparisons.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
