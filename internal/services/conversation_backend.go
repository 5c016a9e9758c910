package services

import (
	"context"

	"github.com/tbourn/go-social-chat/internal/conversation"
	"github.com/tbourn/go-social-chat/internal/domain"
)

// ConversationBackend adapts the message and profile services to the
// conversation view's Store and Sender.
type ConversationBackend struct {
	MessageSvc *MessageService
	ProfileSvc *ProfileService
}

var (
	_ conversation.Store  = (*ConversationBackend)(nil)
	_ conversation.Sender = (*ConversationBackend)(nil)
)

// ListConversation returns the history, refusing non-friends.
func (b *ConversationBackend) ListConversation(ctx context.Context, userID, friendID string) ([]domain.Message, error) {
	if err := b.MessageSvc.EnsureFriends(ctx, userID, friendID); err != nil {
		return nil, err
	}
	return b.MessageSvc.ListConversation(ctx, userID, friendID)
}

// Profiles resolves participant profiles.
func (b *ConversationBackend) Profiles(ctx context.Context, ids []string) ([]domain.Profile, error) {
	return b.ProfileSvc.Profiles(ctx, ids)
}

// Send stores a message.
func (b *ConversationBackend) Send(ctx context.Context, senderID, receiverID, content string) (*domain.Message, error) {
	return b.MessageSvc.Send(ctx, senderID, receiverID, content)
}
