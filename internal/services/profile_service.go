package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/repo"
)

// ProfileService resolves display metadata for users.
type ProfileService struct {
	DB        *gorm.DB
	ReadTries uint
}

// Get returns the profile for id or ErrUserNotFound.
func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingFields
	}
	p, err := readRetry(ctx, s.ReadTries, "profile.get", func() (*domain.Profile, error) {
		return repo.GetProfile(ctx, s.DB, id)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return p, nil
}

// Profiles returns the profiles for ids. An empty set issues no query.
func (s *ProfileService) Profiles(ctx context.Context, ids []string) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return readRetry(ctx, s.ReadTries, "profile.list", func() ([]domain.Profile, error) {
		return repo.GetProfiles(ctx, s.DB, ids)
	})
}

// Upsert stores p, keyed by id. Email is required and normalized.
func (s *ProfileService) Upsert(ctx context.Context, p *domain.Profile) error {
	if p == nil || strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Email) == "" {
		return ErrMissingFields
	}
	p.Email = domain.NormalizeEmail(p.Email)
	if p.DisplayName != nil {
		name := sanitizeText(*p.DisplayName)
		if name == "" {
			p.DisplayName = nil
		} else {
			p.DisplayName = &name
		}
	}
	if err := repo.UpsertProfile(ctx, s.DB, p); err != nil {
		if isDuplicate(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}
