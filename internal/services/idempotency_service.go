package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/repo"
)

// IdempotencyService stores the outcome of keyed writes for TTL so retries
// can be answered with the original resource.
type IdempotencyService struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Exists reports whether a live record exists for (userID, scope, key).
func (s *IdempotencyService) Exists(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
	rec, err := s.Lookup(ctx, userID, scope, key, now)
	if isNotFound(err) {
		return false, nil
	}
	return rec != nil && err == nil, err
}

// Lookup returns the live record for (userID, scope, key) or repo.ErrNotFound.
func (s *IdempotencyService) Lookup(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.DB, userID, scope, key, now)
}

// Remember records resourceID as the result of (userID, scope, key). A
// concurrent request that stored the same key first wins; that is not an
// error.
func (s *IdempotencyService) Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, scope, key, resourceID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}
