// This file provides the read-cursor upsert.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-social-chat/internal/domain"
)

// UpsertLastRead records that userID viewed the conversation with otherID at.
func UpsertLastRead(ctx context.Context, db *gorm.DB, userID, otherID string, at time.Time) error {
	lr := &domain.LastRead{UserID: userID, OtherUserID: otherID, LastReadAt: at.UTC()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "other_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at"}),
	}).Create(lr).Error
}

// GetLastRead returns the cursor for (userID, otherID) or ErrNotFound.
func GetLastRead(ctx context.Context, db *gorm.DB, userID, otherID string) (*domain.LastRead, error) {
	var lr domain.LastRead
	err := db.WithContext(ctx).
		Where("user_id = ? AND other_user_id = ?", userID, otherID).
		First(&lr).Error
	if err != nil {
		return nil, err
	}
	return &lr, nil
}
