// Package services – FriendService
//
// FriendService owns the friend-request lifecycle: pending requests are
// created by the sender and answered exactly once by the receiver
// (pending -> accepted | rejected). Any existing row for an ordered
// (sender, receiver) pair blocks a new request, rejected rows included.
// Every successful write publishes a friendships change event.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/realtime"
	"github.com/tbourn/go-social-chat/internal/repo"
)

// FriendRepo defines the repository contract required by FriendService.
type FriendRepo interface {
	// CreateFriendship inserts a pending request; repo.ErrDuplicate on an existing pair.
	CreateFriendship(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.Friendship, error)

	// FindFriendship returns the row for the ordered pair, whatever its status.
	FindFriendship(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.Friendship, error)

	// GetFriendshipForReceiver returns request id only if addressed to receiverID.
	GetFriendshipForReceiver(ctx context.Context, db *gorm.DB, id, receiverID string) (*domain.Friendship, error)

	// UpdateFriendshipStatus moves a row from one status to another atomically.
	UpdateFriendshipStatus(ctx context.Context, db *gorm.DB, id, from, to string) error

	// ListPendingForReceiver returns pending requests addressed to userID.
	ListPendingForReceiver(ctx context.Context, db *gorm.DB, userID string) ([]domain.Friendship, error)

	// ListFriendships returns every row involving userID.
	ListFriendships(ctx context.Context, db *gorm.DB, userID string) ([]domain.Friendship, error)
}

// PendingRequest is a pending request with the sender's profile embedded.
// Sender is nil when the sender has no profile row.
type PendingRequest struct {
	domain.Friendship
	Sender *domain.Profile `json:"sender,omitempty"`
}

// FriendshipView is a relationship seen from one participant, with the
// counterpart's profile embedded when available.
type FriendshipView struct {
	domain.Friendship
	CounterpartID string          `json:"counterpart_id"`
	Counterpart   *domain.Profile `json:"counterpart,omitempty"`
	Incoming      bool            `json:"incoming"`
}

// FriendService implements the friend-request use-cases.
type FriendService struct {
	DB        *gorm.DB
	Repo      FriendRepo
	Publisher realtime.Publisher
}

// NewFriendService wires a FriendService. pub may be nil.
func NewFriendService(db *gorm.DB, r FriendRepo, pub realtime.Publisher) *FriendService {
	return &FriendService{DB: db, Repo: r, Publisher: pub}
}

// Send creates a pending request from senderID to receiverID.
//
// Errors:
//   - ErrMissingFields if either id is blank.
//   - ErrSelfRequest if both ids are equal.
//   - ErrRequestExists if a row for (senderID, receiverID) already exists.
func (s *FriendService) Send(ctx context.Context, senderID, receiverID string) (*domain.Friendship, error) {
	ctx, span := otel.Tracer("services/FriendService").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("sender.id", senderID),
			attribute.String("receiver.id", receiverID),
		),
	)
	defer span.End()

	senderID, receiverID = strings.TrimSpace(senderID), strings.TrimSpace(receiverID)
	if senderID == "" || receiverID == "" {
		return nil, ErrMissingFields
	}
	if senderID == receiverID {
		return nil, ErrSelfRequest
	}

	var created *domain.Friendship
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.Repo.FindFriendship(ctx, tx, senderID, receiverID); err == nil {
			return ErrRequestExists
		} else if !isNotFound(err) {
			return err
		}
		f, err := s.Repo.CreateFriendship(ctx, tx, senderID, receiverID)
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) || isDuplicate(err) {
				return ErrRequestExists
			}
			return err
		}
		created = f
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	publish(ctx, s.Publisher, realtime.TableFriendships, realtime.OpInsert, created)
	return created, nil
}

// SendByEmail resolves receiverEmail (case-insensitive) and sends a request.
// Unknown addresses yield ErrUserNotFound.
func (s *FriendService) SendByEmail(ctx context.Context, senderID, receiverEmail string) (*domain.Friendship, error) {
	if strings.TrimSpace(receiverEmail) == "" {
		return nil, ErrMissingFields
	}
	p, err := repo.FindProfileByEmail(ctx, s.DB, receiverEmail)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Send(ctx, senderID, p.ID)
}

// Accept marks requestID accepted on behalf of receiverID.
//
// Errors:
//   - ErrMissingFields if either id is blank.
//   - ErrRequestNotFound if the request is missing or addressed to someone else.
//   - ErrNotPending if the request was already answered.
func (s *FriendService) Accept(ctx context.Context, requestID, receiverID string) (*domain.Friendship, error) {
	return s.answer(ctx, "Accept", requestID, receiverID, domain.StatusAccepted)
}

// Reject marks requestID rejected on behalf of receiverID. Errors as Accept.
func (s *FriendService) Reject(ctx context.Context, requestID, receiverID string) (*domain.Friendship, error) {
	return s.answer(ctx, "Reject", requestID, receiverID, domain.StatusRejected)
}

func (s *FriendService) answer(ctx context.Context, op, requestID, receiverID, to string) (*domain.Friendship, error) {
	ctx, span := otel.Tracer("services/FriendService").Start(ctx, op,
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("receiver.id", receiverID),
		),
	)
	defer span.End()

	requestID, receiverID = strings.TrimSpace(requestID), strings.TrimSpace(receiverID)
	if requestID == "" || receiverID == "" {
		return nil, ErrMissingFields
	}

	var updated *domain.Friendship
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, err := s.Repo.GetFriendshipForReceiver(ctx, tx, requestID, receiverID)
		if err != nil {
			if isNotFound(err) {
				return ErrRequestNotFound
			}
			return err
		}
		if f.Status != domain.StatusPending {
			return ErrNotPending
		}
		if err := s.Repo.UpdateFriendshipStatus(ctx, tx, f.ID, domain.StatusPending, to); err != nil {
			if isNotFound(err) {
				// answered concurrently between read and update
				return ErrNotPending
			}
			return err
		}
		f.Status = to
		updated = f
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	publish(ctx, s.Publisher, realtime.TableFriendships, realtime.OpUpdate, updated)
	return updated, nil
}

// Pending lists requests awaiting userID's answer with sender profiles.
func (s *FriendService) Pending(ctx context.Context, userID string) ([]PendingRequest, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingFields
	}
	rows, err := s.Repo.ListPendingForReceiver(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.SenderID)
	}
	profiles := s.profileIndex(ctx, ids)

	out := make([]PendingRequest, 0, len(rows))
	for _, f := range rows {
		pr := PendingRequest{Friendship: f}
		if p, ok := profiles[f.SenderID]; ok {
			p := p
			pr.Sender = &p
		}
		out = append(out, pr)
	}
	return out, nil
}

// List returns every relationship of userID, newest first, with counterpart
// profiles.
func (s *FriendService) List(ctx context.Context, userID string) ([]FriendshipView, error) {
	rows, err := s.Repo.ListFriendships(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.Counterpart(userID))
	}
	profiles := s.profileIndex(ctx, ids)

	out := make([]FriendshipView, 0, len(rows))
	for _, f := range rows {
		other := f.Counterpart(userID)
		v := FriendshipView{Friendship: f, CounterpartID: other, Incoming: f.ReceiverID == userID}
		if p, ok := profiles[other]; ok {
			p := p
			v.Counterpart = &p
		}
		out = append(out, v)
	}
	return out, nil
}

// profileIndex loads profiles for ids; failures degrade to an empty index.
func (s *FriendService) profileIndex(ctx context.Context, ids []string) map[string]domain.Profile {
	out := make(map[string]domain.Profile, len(ids))
	ps, err := repo.GetProfiles(ctx, s.DB, ids)
	if err != nil {
		logFrom(ctx).Warn().Err(err).Msg("friend profiles unavailable")
		return out
	}
	for _, p := range ps {
		out[p.ID] = p
	}
	return out
}
