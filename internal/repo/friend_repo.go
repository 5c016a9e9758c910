// This file provides repository functions for the Friendship model.
//
// Functions are thin: they compose queries and propagate raw GORM errors.
// Lifecycle rules (who may accept, which transitions are legal) belong to
// services.FriendService.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/domain"
)

// CreateFriendship inserts a pending request from senderID to receiverID.
// A unique (sender_id, receiver_id) violation is reported as ErrDuplicate.
func CreateFriendship(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.Friendship, error) {
	now := time.Now().UTC()
	f := &domain.Friendship{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return f, nil
}

// FindFriendship returns the row for the ordered (sender, receiver) pair,
// whatever its status, or ErrNotFound.
func FindFriendship(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.Friendship, error) {
	var f domain.Friendship
	err := db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFriendshipForReceiver returns the request id addressed to receiverID or
// ErrNotFound. Requests addressed to someone else are indistinguishable from
// missing ones.
func GetFriendshipForReceiver(ctx context.Context, db *gorm.DB, id, receiverID string) (*domain.Friendship, error) {
	var f domain.Friendship
	err := db.WithContext(ctx).
		Where("id = ? AND receiver_id = ?", id, receiverID).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// UpdateFriendshipStatus moves a row from one status to another. The "from"
// guard makes the transition atomic: if another writer already moved the row,
// no rows are affected and ErrNotFound is returned.
func UpdateFriendshipStatus(ctx context.Context, db *gorm.DB, id, from, to string) error {
	res := db.WithContext(ctx).
		Model(&domain.Friendship{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListAcceptedFriendships returns accepted rows where userID is either
// participant, most recently created first.
func ListAcceptedFriendships(ctx context.Context, db *gorm.DB, userID string) ([]domain.Friendship, error) {
	var out []domain.Friendship
	err := db.WithContext(ctx).
		Where("status = ? AND (sender_id = ? OR receiver_id = ?)", domain.StatusAccepted, userID, userID).
		Order("created_at desc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListPendingForReceiver returns pending requests addressed to userID,
// most recently created first.
func ListPendingForReceiver(ctx context.Context, db *gorm.DB, userID string) ([]domain.Friendship, error) {
	var out []domain.Friendship
	err := db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, domain.StatusPending).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListFriendships returns every row where userID is either participant.
func ListFriendships(ctx context.Context, db *gorm.DB, userID string) ([]domain.Friendship, error) {
	var out []domain.Friendship
	err := db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// AreFriends reports whether an accepted row exists between a and b in
// either direction.
func AreFriends(ctx context.Context, db *gorm.DB, a, b string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Friendship{}).
		Where("status = ? AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			domain.StatusAccepted, a, b, b, a).
		Count(&n).Error
	return n > 0, err
}
