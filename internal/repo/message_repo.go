// This file provides repository functions for the Message model. Callers
// pass a context-bound handle (db.WithContext(ctx)).
package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/domain"
)

const pairClause = "(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)"

// CreateMessage inserts a new direct message row.
func CreateMessage(db *gorm.DB, senderID, receiverID, content string) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// ListConversation returns every message of the unordered pair {a, b}
// ordered deterministically (CreatedAt ASC, ID ASC).
func ListConversation(db *gorm.DB, a, b string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.
		Where(pairClause, a, b, b, a).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountConversation uses a raw COUNT so a missing table surfaces as an error.
func CountConversation(db *gorm.DB, a, b string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE "+pairClause, a, b, b, a).Scan(&total).Error
	return total, err
}

// ListConversationPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListConversationPage(db *gorm.DB, a, b string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.
		Where(pairClause, a, b, b, a).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListLatestCandidates returns the messages exchanged between userID and any
// of counterpartIDs, ordered (CreatedAt ASC, ID ASC). The caller reduces them
// to one latest message per counterpart. An empty counterpart set returns nil
// without issuing a query.
func ListLatestCandidates(db *gorm.DB, userID string, counterpartIDs []string) ([]domain.Message, error) {
	if len(counterpartIDs) == 0 {
		return nil, nil
	}
	var out []domain.Message
	err := db.
		Where("(sender_id = ? AND receiver_id IN ?) OR (receiver_id = ? AND sender_id IN ?)",
			userID, counterpartIDs, userID, counterpartIDs).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
