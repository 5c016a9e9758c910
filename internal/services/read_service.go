package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/repo"
)

// ReadService records read cursors. Cursors are cosmetic: failures are
// logged and never surfaced.
type ReadService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// MarkRead records that userID viewed the conversation with otherID now.
// It reports whether the cursor was stored.
func (s *ReadService) MarkRead(ctx context.Context, userID, otherID string) bool {
	if userID == "" || otherID == "" {
		return false
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if err := repo.UpsertLastRead(ctx, s.DB, userID, otherID, now()); err != nil {
		logFrom(ctx).Debug().Err(err).
			Str("user_id", userID).
			Str("other_user_id", otherID).
			Msg("last read upsert failed")
		return false
	}
	return true
}
