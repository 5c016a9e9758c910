// Package services – MessageService
//
// This file implements MessageService, which owns direct messages between
// accepted friends. Sends are validated, normalized and checked against the
// relationship before the row is written, and every committed row is
// published as a messages INSERT event for live inboxes and conversations.
//
// Reads are idempotent and go through a bounded retry; writes never do.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include user identifiers and pagination parameters where applicable.

package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/realtime"
	"github.com/tbourn/go-social-chat/internal/repo"
	"github.com/tbourn/go-social-chat/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageService coordinates message persistence and retrieval.
type MessageService struct {
	DB        *gorm.DB
	Publisher realtime.Publisher

	// Optional guards
	MaxRunes  int
	ReadTries uint
}

// Send validates content, verifies the pair are accepted friends and stores
// the message.
//
// Errors:
//   - ErrMissingFields for blank ids.
//   - ErrEmptyMessage / ErrTooLong for invalid content.
//   - ErrNotFriends when no accepted relationship exists.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, content string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
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
	text, err := checkText(content, s.MaxRunes)
	if err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.AreFriends(ctx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFriends
		}
		m, err := repo.CreateMessage(tx, senderID, receiverID, text)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	publish(ctx, s.Publisher, realtime.TableMessages, realtime.OpInsert, msg)
	return msg, nil
}

// Get returns a single message by id.
func (s *MessageService) Get(ctx context.Context, id string) (*domain.Message, error) {
	return readRetry(ctx, s.ReadTries, "message.get", func() (*domain.Message, error) {
		return repo.GetMessage(s.DB.WithContext(ctx), id)
	})
}

// ListConversation returns the full history between userID and friendID,
// oldest first. It does not check friendship; callers that expose it to a
// user must call EnsureFriends first.
func (s *MessageService) ListConversation(ctx context.Context, userID, friendID string) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListConversation",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("friend.id", friendID),
		),
	)
	defer span.End()

	return readRetry(ctx, s.ReadTries, "message.list", func() ([]domain.Message, error) {
		return repo.ListConversation(s.DB.WithContext(ctx), userID, friendID)
	})
}

// ListPage returns one page of the conversation, oldest first, plus the total.
func (s *MessageService) ListPage(ctx context.Context, userID, friendID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("friend.id", friendID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.PageOffset(page, pageSize)

	if err := s.EnsureFriends(ctx, userID, friendID); err != nil {
		return nil, 0, err
	}

	total, err := readRetry(ctx, s.ReadTries, "message.count", func() (int64, error) {
		return repo.CountConversation(s.DB.WithContext(ctx), userID, friendID)
	})
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := readRetry(ctx, s.ReadTries, "message.page", func() ([]domain.Message, error) {
		return repo.ListConversationPage(s.DB.WithContext(ctx), userID, friendID, offset, pageSize)
	})
	return items, total, err
}

// EnsureFriends returns ErrNotFriends unless userID and friendID have an
// accepted relationship.
func (s *MessageService) EnsureFriends(ctx context.Context, userID, friendID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(friendID) == "" {
		return ErrMissingFields
	}
	ok, err := readRetry(ctx, s.ReadTries, "friends.check", func() (bool, error) {
		return repo.AreFriends(ctx, s.DB, userID, friendID)
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFriends
	}
	return nil
}

// Stats returns the message count and newest timestamp of the conversation,
// used for ETag pre-checks.
func (s *MessageService) Stats(ctx context.Context, userID, friendID string) (int64, *time.Time, error) {
	type stats struct {
		count  int64
		newest *time.Time
	}
	st, err := readRetry(ctx, s.ReadTries, "message.stats", func() (stats, error) {
		c, n, err := repo.ConversationStats(ctx, s.DB, userID, friendID)
		return stats{c, n}, err
	})
	return st.count, st.newest, err
}
