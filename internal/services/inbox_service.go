package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/inbox"
	"github.com/tbourn/go-social-chat/internal/repo"
)

// InboxService is the read side of inboxes. It satisfies inbox.Source so
// live views and one-shot REST loads share the same queries.
type InboxService struct {
	DB        *gorm.DB
	ReadTries uint
}

var _ inbox.Source = (*InboxService)(nil)

// AcceptedFriendships lists accepted relationships involving userID.
func (s *InboxService) AcceptedFriendships(ctx context.Context, userID string) ([]domain.Friendship, error) {
	return readRetry(ctx, s.ReadTries, "inbox.friendships", func() ([]domain.Friendship, error) {
		return repo.ListAcceptedFriendships(ctx, s.DB, userID)
	})
}

// Profiles loads counterpart profiles.
func (s *InboxService) Profiles(ctx context.Context, ids []string) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return readRetry(ctx, s.ReadTries, "inbox.profiles", func() ([]domain.Profile, error) {
		return repo.GetProfiles(ctx, s.DB, ids)
	})
}

// LatestCandidates returns messages exchanged between userID and ids.
func (s *InboxService) LatestCandidates(ctx context.Context, userID string, ids []string) ([]domain.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return readRetry(ctx, s.ReadTries, "inbox.messages", func() ([]domain.Message, error) {
		return repo.ListLatestCandidates(s.DB.WithContext(ctx), userID, ids)
	})
}

// Entries loads and reconciles userID's inbox once.
func (s *InboxService) Entries(ctx context.Context, userID string) ([]inbox.Entry, error) {
	ctx, span := otel.Tracer("services/InboxService").Start(ctx, "Entries",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if userID == "" {
		return nil, ErrMissingFields
	}
	st, err := inbox.Load(ctx, s, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return inbox.Build(userID, st), nil
}

// Stats returns the aggregates an inbox depends on, for ETags.
func (s *InboxService) Stats(ctx context.Context, userID string) (repo.InboxStats, error) {
	return readRetry(ctx, s.ReadTries, "inbox.stats", func() (repo.InboxStats, error) {
		return repo.GetInboxStats(ctx, s.DB, userID)
	})
}
