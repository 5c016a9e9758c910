package ws

import (
	"context"
	"strings"

	"github.com/tbourn/go-social-chat/internal/conversation"
	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/http/middleware"
	"github.com/tbourn/go-social-chat/internal/inbox"
	"github.com/tbourn/go-social-chat/internal/realtime"
	"github.com/tbourn/go-social-chat/internal/services"
)

// driver adapts one kind of live view to the session loop. All methods run
// on the session goroutine.
type driver interface {
	// load re-derives the whole view from the store.
	load(ctx context.Context) error
	// apply folds a batch of events and reports whether a new snapshot is due.
	apply(ctx context.Context, events []realtime.Event) bool
	// command handles a client frame other than reload.
	command(ctx context.Context, f ClientFrame)
	snapshot() any
	close()
}

// participants is the part of friendship and message rows used for routing.
type participants struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
}

func decodeParticipants(e realtime.Event) (participants, bool) {
	var p participants
	if err := e.Decode(&p); err != nil {
		return p, false
	}
	return p, true
}

// involving accepts friendship and message events that concern userID.
func involving(userID string) realtime.Filter {
	return func(e realtime.Event) bool {
		if e.Table != realtime.TableFriendships && e.Table != realtime.TableMessages {
			return false
		}
		p, ok := decodeParticipants(e)
		return ok && (p.SenderID == userID || p.ReceiverID == userID)
	}
}

// betweenPair accepts message inserts of the pair {a, b}.
func betweenPair(a, b string) realtime.Filter {
	return func(e realtime.Event) bool {
		if e.Table != realtime.TableMessages || e.Op != realtime.OpInsert {
			return false
		}
		p, ok := decodeParticipants(e)
		return ok && ((p.SenderID == a && p.ReceiverID == b) || (p.SenderID == b && p.ReceiverID == a))
	}
}

// secretsFor accepts every secret change plus friendship changes of userID.
func secretsFor(userID string) realtime.Filter {
	rel := involving(userID)
	return func(e realtime.Event) bool {
		if e.Table == realtime.TableSecrets {
			return true
		}
		return e.Table == realtime.TableFriendships && rel(e)
	}
}

//
// inbox
//

type inboxDriver struct {
	s    *session
	view *inbox.View
}

func (d *inboxDriver) load(ctx context.Context) error { return d.view.Reload(ctx) }

func (d *inboxDriver) apply(ctx context.Context, events []realtime.Event) bool {
	changed := false
	for _, e := range events {
		ok, err := d.view.Apply(ctx, e)
		if err != nil {
			d.s.log.Warn().Err(err).Str("table", e.Table).Msg("ws: inbox event not applied")
			continue
		}
		changed = changed || ok
	}
	return changed
}

func (d *inboxDriver) command(context.Context, ClientFrame) {
	d.s.push(errorFrame(errUnknownCommand))
}

func (d *inboxDriver) snapshot() any {
	return InboxFrame{Type: TypeInbox, Entries: d.view.Entries()}
}

func (d *inboxDriver) close() { d.view.Close() }

//
// conversation
//

// ReadMarker records read cursors on a best-effort basis.
type ReadMarker interface {
	MarkRead(ctx context.Context, userID, otherID string) bool
}

type conversationDriver struct {
	s        *session
	view     *conversation.View
	userID   string
	friendID string
	reads    ReadMarker
	limiter  *middleware.RateLimiter
}

func (d *conversationDriver) load(ctx context.Context) error {
	if err := d.view.Load(ctx); err != nil {
		return err
	}
	d.markRead(ctx)
	return nil
}

func (d *conversationDriver) apply(ctx context.Context, events []realtime.Event) bool {
	changed, incoming := false, false
	for _, e := range events {
		ok, err := d.view.Apply(e)
		if err != nil {
			d.s.log.Warn().Err(err).Msg("ws: conversation event not applied")
			continue
		}
		if ok {
			changed = true
			if p, _ := decodeParticipants(e); p.SenderID == d.friendID {
				incoming = true
			}
		}
	}
	// the owner is looking at the conversation
	if incoming {
		d.markRead(ctx)
	}
	return changed
}

func (d *conversationDriver) command(ctx context.Context, f ClientFrame) {
	if f.Type != TypeSend {
		d.s.push(errorFrame(errUnknownCommand))
		return
	}
	if strings.TrimSpace(f.Content) == "" {
		d.s.push(errorFrame(conversation.ErrEmptyContent))
		return
	}
	if d.limiter != nil && !d.limiter.Allow(middleware.UserKey(d.userID)) {
		d.s.push(errorFrame(errRateLimited))
		return
	}

	// The write runs off the session goroutine so pushes keep flowing; the
	// outcome is posted back.
	go func() {
		m, err := d.view.Send(ctx, f.Content)
		d.s.post(func() {
			if err != nil {
				d.s.log.Debug().Err(err).Msg("ws: send failed")
				d.s.push(errorFrame(err))
			} else {
				d.s.push(SentFrame{Type: TypeSent, Message: m})
			}
			d.s.push(d.snapshot())
		})
	}()
}

func (d *conversationDriver) markRead(ctx context.Context) {
	if d.reads != nil {
		d.reads.MarkRead(ctx, d.userID, d.friendID)
	}
}

func (d *conversationDriver) snapshot() any {
	profiles := map[string]domain.Profile{}
	for _, id := range []string{d.userID, d.friendID} {
		if p, ok := d.view.Profile(id); ok {
			profiles[id] = p
		}
	}
	return ConversationFrame{
		Type:     TypeConversation,
		FriendID: d.friendID,
		Messages: d.view.Messages(),
		Profiles: profiles,
	}
}

func (d *conversationDriver) close() { d.view.Close() }

//
// secrets
//

// SecretLister lists the secrets of a user's accepted friends.
type SecretLister interface {
	ListFriends(ctx context.Context, userID string) ([]services.FriendSecret, error)
}

// secretsDriver invalidates and re-fetches on every relevant change.
type secretsDriver struct {
	s       *session
	userID  string
	src     SecretLister
	secrets []services.FriendSecret
	closed  bool
}

func (d *secretsDriver) load(ctx context.Context) error {
	list, err := d.src.ListFriends(ctx, d.userID)
	if err != nil {
		return err
	}
	if d.closed {
		return nil
	}
	if list == nil {
		list = []services.FriendSecret{}
	}
	d.secrets = list
	return nil
}

func (d *secretsDriver) apply(ctx context.Context, events []realtime.Event) bool {
	if len(events) == 0 {
		return false
	}
	if err := d.load(ctx); err != nil {
		d.s.log.Warn().Err(err).Msg("ws: secrets refetch failed")
		return false
	}
	return true
}

func (d *secretsDriver) command(context.Context, ClientFrame) {
	d.s.push(errorFrame(errUnknownCommand))
}

func (d *secretsDriver) snapshot() any {
	out := d.secrets
	if out == nil {
		out = []services.FriendSecret{}
	}
	return SecretsFrame{Type: TypeSecrets, Secrets: out}
}

func (d *secretsDriver) close() { d.closed = true }
