// This file provides small aggregate queries used for conditional responses
// (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/domain"
)

// ConversationStats returns the number of messages in the unordered pair
// {a, b} and the newest CreatedAt among them. Messages are append-only, so
// (count, newest) changes whenever the conversation does. When the pair has
// no messages, count is 0 and newest is nil.
func ConversationStats(ctx context.Context, db *gorm.DB, a, b string) (count int64, newest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where(pairClause, a, b, b, a)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Order+Limit instead of MAX(): SQLite returns MAX() over DATETIME as TEXT.
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// InboxStats summarizes everything an inbox depends on for userID: the
// friendships involving the user (count and newest UpdatedAt) and the
// messages involving the user (count and newest CreatedAt).
type InboxStats struct {
	Friendships   int64
	FriendshipsAt *time.Time
	Messages      int64
	MessagesAt    *time.Time
}

// GetInboxStats computes InboxStats for userID.
func GetInboxStats(ctx context.Context, db *gorm.DB, userID string) (InboxStats, error) {
	var st InboxStats

	fq := db.WithContext(ctx).Model(&domain.Friendship{}).Where("sender_id = ? OR receiver_id = ?", userID, userID)
	if err := fq.Count(&st.Friendships).Error; err != nil {
		return st, err
	}
	if st.Friendships > 0 {
		var row struct{ UpdatedAt time.Time }
		if err := fq.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
			return st, err
		}
		st.FriendshipsAt = &row.UpdatedAt
	}

	mq := db.WithContext(ctx).Model(&domain.Message{}).Where("sender_id = ? OR receiver_id = ?", userID, userID)
	if err := mq.Count(&st.Messages).Error; err != nil {
		return st, err
	}
	if st.Messages > 0 {
		var row struct{ CreatedAt time.Time }
		if err := mq.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
			return st, err
		}
		st.MessagesAt = &row.CreatedAt
	}
	return st, nil
}
