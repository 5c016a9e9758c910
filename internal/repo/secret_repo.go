// This file provides repository functions for the SecretMessage model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-social-chat/internal/domain"
)

// UpsertSecret stores text as userID's secret, replacing any previous one.
func UpsertSecret(ctx context.Context, db *gorm.DB, userID, text string) (*domain.SecretMessage, error) {
	now := time.Now().UTC()
	s := &domain.SecretMessage{UserID: userID, Message: text, CreatedAt: now, UpdatedAt: now}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"message", "updated_at"}),
	}).Create(s).Error
	if err != nil {
		return nil, err
	}
	return GetSecret(ctx, db, userID)
}

// GetSecret returns userID's secret or ErrNotFound.
func GetSecret(ctx context.Context, db *gorm.DB, userID string) (*domain.SecretMessage, error) {
	var s domain.SecretMessage
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSecrets returns the secrets of userIDs, most recently updated first.
// An empty id set returns nil without issuing a query.
func ListSecrets(ctx context.Context, db *gorm.DB, userIDs []string) ([]domain.SecretMessage, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var out []domain.SecretMessage
	err := db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}
