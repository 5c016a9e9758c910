// Package services – SecretService
//
// Each user keeps at most one secret message. It is readable by the owner
// and by accepted friends; everyone else gets ErrSecretNotFound so that the
// existence of a secret is never disclosed.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/realtime"
	"github.com/tbourn/go-social-chat/internal/repo"
)

// FriendSecret is a friend's secret with the friend's profile, if any.
type FriendSecret struct {
	domain.SecretMessage
	Profile *domain.Profile `json:"profile,omitempty"`
}

// SecretService implements the secret-message use-cases.
type SecretService struct {
	DB        *gorm.DB
	Publisher realtime.Publisher
	MaxRunes  int
	ReadTries uint
}

// Save replaces userID's secret with text.
func (s *SecretService) Save(ctx context.Context, userID, text string) (*domain.SecretMessage, error) {
	ctx, span := otel.Tracer("services/SecretService").Start(ctx, "Save",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingFields
	}
	clean, err := checkText(text, s.MaxRunes)
	if err != nil {
		return nil, err
	}
	sec, err := repo.UpsertSecret(ctx, s.DB, userID, clean)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	publish(ctx, s.Publisher, realtime.TableSecrets, realtime.OpUpdate, sec)
	return sec, nil
}

// GetOwn returns userID's own secret or ErrSecretNotFound.
func (s *SecretService) GetOwn(ctx context.Context, userID string) (*domain.SecretMessage, error) {
	sec, err := readRetry(ctx, s.ReadTries, "secret.get", func() (*domain.SecretMessage, error) {
		return repo.GetSecret(ctx, s.DB, userID)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSecretNotFound
		}
		return nil, err
	}
	return sec, nil
}

// GetFor returns ownerID's secret as seen by viewerID. Only the owner and
// accepted friends may see it.
func (s *SecretService) GetFor(ctx context.Context, viewerID, ownerID string) (*domain.SecretMessage, error) {
	ctx, span := otel.Tracer("services/SecretService").Start(ctx, "GetFor",
		trace.WithAttributes(
			attribute.String("viewer.id", viewerID),
			attribute.String("owner.id", ownerID),
		),
	)
	defer span.End()

	if strings.TrimSpace(viewerID) == "" || strings.TrimSpace(ownerID) == "" {
		return nil, ErrMissingFields
	}
	if viewerID != ownerID {
		ok, err := readRetry(ctx, s.ReadTries, "friends.check", func() (bool, error) {
			return repo.AreFriends(ctx, s.DB, viewerID, ownerID)
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSecretNotFound
		}
	}
	return s.GetOwn(ctx, ownerID)
}

// ListFriends returns the secrets of userID's accepted friends, most recently
// updated first, with their profiles. Friends without a secret are omitted.
func (s *SecretService) ListFriends(ctx context.Context, userID string) ([]FriendSecret, error) {
	ctx, span := otel.Tracer("services/SecretService").Start(ctx, "ListFriends",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	fs, err := readRetry(ctx, s.ReadTries, "friends.accepted", func() ([]domain.Friendship, error) {
		return repo.ListAcceptedFriendships(ctx, s.DB, userID)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(fs))
	seen := make(map[string]struct{}, len(fs))
	for _, f := range fs {
		id := f.Counterpart(userID)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []FriendSecret{}, nil
	}

	secrets, err := readRetry(ctx, s.ReadTries, "secret.list", func() ([]domain.SecretMessage, error) {
		return repo.ListSecrets(ctx, s.DB, ids)
	})
	if err != nil {
		return nil, err
	}

	profiles := map[string]domain.Profile{}
	if ps, err := repo.GetProfiles(ctx, s.DB, ids); err != nil {
		logFrom(ctx).Warn().Err(err).Msg("secret profiles unavailable")
	} else {
		for _, p := range ps {
			profiles[p.ID] = p
		}
	}

	out := make([]FriendSecret, 0, len(secrets))
	for _, sec := range secrets {
		fsec := FriendSecret{SecretMessage: sec}
		if p, ok := profiles[sec.UserID]; ok {
			p := p
			fsec.Profile = &p
		}
		out = append(out, fsec)
	}
	return out, nil
}
