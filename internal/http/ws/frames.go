package ws

import (
	"errors"

	"github.com/tbourn/go-social-chat/internal/conversation"
	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/http/handlers"
	"github.com/tbourn/go-social-chat/internal/inbox"
	"github.com/tbourn/go-social-chat/internal/services"
)

// Frame types.
const (
	TypeInbox        = "inbox"
	TypeConversation = "conversation"
	TypeSecrets      = "secrets"
	TypeSent         = "sent"
	TypeError        = "error"

	// client commands
	TypeSend   = "send"
	TypeReload = "reload"
)

// ClientFrame is a command sent by the client.
type ClientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// InboxFrame is the full inbox of the session owner.
type InboxFrame struct {
	Type    string        `json:"type"`
	Entries []inbox.Entry `json:"entries"`
}

// ConversationFrame is the full displayed conversation, provisional messages
// included.
type ConversationFrame struct {
	Type     string                    `json:"type"`
	FriendID string                    `json:"friend_id"`
	Messages []conversation.Message    `json:"messages"`
	Profiles map[string]domain.Profile `json:"profiles,omitempty"`
}

// SecretsFrame lists the secrets of the owner's friends.
type SecretsFrame struct {
	Type    string                  `json:"type"`
	Secrets []services.FriendSecret `json:"secrets"`
}

// SentFrame acknowledges a send command with the stored message.
type SentFrame struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

// ErrorFrame reports a failed command or load. Codes match the REST error
// codes.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorFrame(err error) ErrorFrame {
	code, msg := handlers.ErrCodeInternal, "internal error"
	switch {
	case errors.Is(err, conversation.ErrEmptyContent),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrMissingFields):
		code, msg = handlers.ErrCodeBadRequest, err.Error()
	case errors.Is(err, services.ErrNotFriends):
		code, msg = handlers.ErrCodeNotFound, err.Error()
	case errors.Is(err, errRateLimited):
		code, msg = handlers.ErrCodeRateLimited, err.Error()
	case errors.Is(err, errUnknownCommand):
		code, msg = handlers.ErrCodeBadRequest, err.Error()
	}
	return ErrorFrame{Type: TypeError, Code: code, Message: msg}
}

var (
	errRateLimited    = errors.New("rate limit exceeded")
	errUnknownCommand = errors.New("unknown command")
)
