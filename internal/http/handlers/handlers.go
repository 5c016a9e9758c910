// Package handlers exposes the REST surface of the social chat service.
//
// This file declares the service contracts the handlers depend on, the
// Handlers wiring, and small helpers shared by every endpoint (caller
// identity, pagination, weak ETags).
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses (including
// conditional responses and idempotent replays).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/http/middleware"
	"github.com/tbourn/go-social-chat/internal/inbox"
	"github.com/tbourn/go-social-chat/internal/repo"
	"github.com/tbourn/go-social-chat/internal/services"
	"github.com/tbourn/go-social-chat/internal/utils"
)

//
// Service contracts (context-aware)
//

// FriendService manages friend requests and relationships.
type FriendService interface {
	Send(ctx context.Context, senderID, receiverID string) (*domain.Friendship, error)
	SendByEmail(ctx context.Context, senderID, receiverEmail string) (*domain.Friendship, error)
	Accept(ctx context.Context, requestID, receiverID string) (*domain.Friendship, error)
	Reject(ctx context.Context, requestID, receiverID string) (*domain.Friendship, error)
	Pending(ctx context.Context, userID string) ([]services.PendingRequest, error)
	List(ctx context.Context, userID string) ([]services.FriendshipView, error)
}

// ProfileService resolves user profiles.
type ProfileService interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
	Upsert(ctx context.Context, p *domain.Profile) error
}

// InboxService builds inbox entries and the aggregates their ETag is
// derived from.
type InboxService interface {
	Entries(ctx context.Context, userID string) ([]inbox.Entry, error)
	Stats(ctx context.Context, userID string) (repo.InboxStats, error)
}

// MessageService sends and pages direct messages between friends.
type MessageService interface {
	Send(ctx context.Context, senderID, receiverID, content string) (*domain.Message, error)
	Get(ctx context.Context, id string) (*domain.Message, error)
	ListPage(ctx context.Context, userID, friendID string, page, pageSize int) ([]domain.Message, int64, error)
	Stats(ctx context.Context, userID, friendID string) (int64, *time.Time, error)
	EnsureFriends(ctx context.Context, userID, friendID string) error
}

// SecretService manages secret messages.
type SecretService interface {
	Save(ctx context.Context, userID, text string) (*domain.SecretMessage, error)
	GetOwn(ctx context.Context, userID string) (*domain.SecretMessage, error)
	GetFor(ctx context.Context, viewerID, ownerID string) (*domain.SecretMessage, error)
	ListFriends(ctx context.Context, userID string) ([]services.FriendSecret, error)
}

// ReadService records read cursors. MarkRead never fails the caller.
type ReadService interface {
	MarkRead(ctx context.Context, userID, otherID string) bool
}

// IdempotencyStore records and replays the outcome of keyed writes.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error)
	Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers. Idem may be nil, in which
// case Idempotency-Key headers are validated but never replayed.
type Services struct {
	Friends  FriendService
	Profiles ProfileService
	Inbox    InboxService
	Messages MessageService
	Secrets  SecretService
	Reads    ReadService
	Idem     IdempotencyStore
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	friendSvc  FriendService
	profileSvc ProfileService
	inboxSvc   InboxService
	msgSvc     MessageService
	secretSvc  SecretService
	readSvc    ReadService
	idem       IdempotencyStore
}

// New constructs Handlers bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		friendSvc:  s.Friends,
		profileSvc: s.Profiles,
		inboxSvc:   s.Inbox,
		msgSvc:     s.Messages,
		secretSvc:  s.Secrets,
		readSvc:    s.Reads,
		idem:       s.Idem,
	}
}

// callerID returns the authenticated user or writes a 401 and returns false.
func callerID(c *gin.Context) (string, bool) {
	uid := middleware.UserID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return "", false
	}
	return uid, true
}

// actingAs checks a user id carried in a body or query against the caller.
// A blank claim is a 400 naming field. A claim naming someone else is
// reported as not found so that ownership cannot be probed.
func actingAs(c *gin.Context, field, claimed, notFoundMsg string) (string, bool) {
	uid, okID := callerID(c)
	if !okID {
		return "", false
	}
	if claimed == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, field+" required")
		return "", false
	}
	if claimed != uid {
		fail(c, http.StatusNotFound, ErrCodeNotFound, notFoundMsg)
		return "", false
	}
	return uid, true
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}

// notModified sets etag and answers 304 when If-None-Match matches it.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func weakETag(kind string, parts ...any) string {
	s := kind
	for _, p := range parts {
		s += fmt.Sprintf(":%v", p)
	}
	return `W/"` + s + `"`
}

var nowUTC = func() time.Time { return time.Now().UTC() }
