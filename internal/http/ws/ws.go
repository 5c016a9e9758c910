// Package ws serves the live views over WebSocket.
//
// Each endpoint upgrades an authenticated request and runs one session loop
// that owns the view: it subscribes to the realtime broker before the
// initial load, pushes a full snapshot after the load and after every
// change, and re-derives the view from the store whenever the subscription
// reports dropped events. Three views are served:
//
//	GET /ws/inbox                      inbox entries
//	GET /ws/conversations/:friendId    one conversation, with optimistic send
//	GET /ws/secrets                    friends' secret messages
//
// Clients may send {"type":"reload"} on any view and {"type":"send",
// "content":"..."} on a conversation.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-social-chat/internal/conversation"
	"github.com/tbourn/go-social-chat/internal/http/handlers"
	"github.com/tbourn/go-social-chat/internal/http/middleware"
	"github.com/tbourn/go-social-chat/internal/inbox"
	"github.com/tbourn/go-social-chat/internal/realtime"
	"github.com/tbourn/go-social-chat/internal/services"
)

// FriendChecker refuses conversations between non-friends.
type FriendChecker interface {
	EnsureFriends(ctx context.Context, userID, friendID string) error
}

// Deps are the collaborators of the WebSocket endpoints.
type Deps struct {
	Broker  *realtime.Broker
	Inbox   inbox.Source
	Store   conversation.Store
	Sender  conversation.Sender
	Friends FriendChecker
	Secrets SecretLister
	Reads   ReadMarker
	// Limiter, when set, throttles conversation sends per user.
	Limiter *middleware.RateLimiter
}

// Options tune the sessions.
type Options struct {
	PingInterval   time.Duration
	DedupWindow    time.Duration
	AllowedOrigins []string
	SendBuffer     int
}

// Handler serves the WebSocket endpoints.
type Handler struct {
	deps     Deps
	opts     Options
	upgrader websocket.Upgrader
}

// New returns a Handler.
func New(d Deps, o Options) *Handler {
	return &Handler{
		deps: d,
		opts: o,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     middleware.OriginChecker(o.AllowedOrigins),
		},
	}
}

// Inbox godoc
// @Summary      Live inbox
// @Description  Upgrades to a WebSocket that pushes the caller's inbox on every change.
// @Tags         Realtime
// @Security     BearerAuth
// @Success      101
// @Failure      401  {object}  handlers.ErrorResponse
// @Router       /ws/inbox [get]
func (h *Handler) Inbox(c *gin.Context) {
	uid := middleware.UserID(c)
	if uid == "" {
		handlers.Fail(c, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	h.serve(c, "inbox", involving(uid), func(s *session) driver {
		return &inboxDriver{s: s, view: inbox.NewView(uid, h.deps.Inbox)}
	})
}

// Conversation godoc
// @Summary      Live conversation
// @Description  Upgrades to a WebSocket that pushes the conversation with a friend and accepts send commands.
// @Tags         Realtime
// @Security     BearerAuth
// @Param        friendId  path  string  true  "Friend user ID"
// @Success      101
// @Failure      401  {object}  handlers.ErrorResponse
// @Failure      404  {object}  handlers.ErrorResponse
// @Router       /ws/conversations/{friendId} [get]
func (h *Handler) Conversation(c *gin.Context) {
	uid := middleware.UserID(c)
	if uid == "" {
		handlers.Fail(c, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	friendID := c.Param("friendId")
	if friendID == "" || friendID == uid {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, services.ErrNotFriends.Error())
		return
	}
	if err := h.deps.Friends.EnsureFriends(c.Request.Context(), uid, friendID); err != nil {
		if errors.Is(err, services.ErrNotFriends) {
			handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, err.Error())
			return
		}
		_ = c.Error(err)
		handlers.Fail(c, http.StatusInternalServerError, handlers.ErrCodeInternal, "internal error")
		return
	}

	h.serve(c, "conversation", betweenPair(uid, friendID), func(s *session) driver {
		d := &conversationDriver{
			s:        s,
			userID:   uid,
			friendID: friendID,
			reads:    h.deps.Reads,
			limiter:  h.deps.Limiter,
		}
		d.view = conversation.NewView(uid, friendID, h.deps.Store, h.deps.Sender,
			conversation.WithDedupWindow(h.opts.DedupWindow),
			conversation.WithNotify(func() {
				s.post(func() { s.push(d.snapshot()) })
			}),
		)
		return d
	})
}

// Secrets godoc
// @Summary      Live friends' secrets
// @Description  Upgrades to a WebSocket that pushes the secret messages of the caller's friends whenever any of them changes.
// @Tags         Realtime
// @Security     BearerAuth
// @Success      101
// @Failure      401  {object}  handlers.ErrorResponse
// @Router       /ws/secrets [get]
func (h *Handler) Secrets(c *gin.Context) {
	uid := middleware.UserID(c)
	if uid == "" {
		handlers.Fail(c, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	h.serve(c, "secrets", secretsFor(uid), func(s *session) driver {
		return &secretsDriver{s: s, userID: uid, src: h.deps.Secrets}
	})
}

// serve upgrades the request and runs the session loop until the client
// leaves, the broker shuts down, or the request context ends.
func (h *Handler) serve(c *gin.Context, kind string, filter realtime.Filter, newDriver func(*session) driver) {
	lg := middleware.LoggerFrom(c).With().Str("ws", kind).Logger()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already answered the client
		lg.Debug().Err(err).Msg("ws: upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	s := newSession(conn, lg, h.opts.PingInterval, h.opts.SendBuffer)
	sub := h.deps.Broker.Subscribe(filter)
	d := newDriver(s)

	sessionsActive.WithLabelValues(kind).Inc()
	defer func() {
		sessionsActive.WithLabelValues(kind).Dec()
		sub.Close()
		d.close()
		s.stop()
		<-s.writerDone
	}()

	s.start()
	lg.Debug().Msg("ws: session started")

	// Subscribed first: changes committed during the load are queued, and
	// applying them afterwards is idempotent.
	h.reload(ctx, s, d)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-sub.Done():
			return
		case fn := <-s.tasks:
			fn()
		case raw := <-s.frames:
			var f ClientFrame
			if err := json.Unmarshal(raw, &f); err != nil {
				s.push(ErrorFrame{Type: TypeError, Code: handlers.ErrCodeBadRequest, Message: "malformed frame"})
				continue
			}
			if f.Type == TypeReload {
				h.reload(ctx, s, d)
				continue
			}
			d.command(ctx, f)
		case <-sub.Ready():
			events, resync := sub.Drain()
			if resync {
				resyncsTotal.WithLabelValues(kind).Inc()
				if !h.reload(ctx, s, d) {
					continue
				}
			}
			if d.apply(ctx, events) || resync {
				s.push(d.snapshot())
			}
		}
	}
}

// reload re-derives the view and pushes it. A failed load is reported to
// the client and the previous state is kept.
func (h *Handler) reload(ctx context.Context, s *session, d driver) bool {
	if err := d.load(ctx); err != nil {
		s.log.Warn().Err(err).Msg("ws: load failed")
		s.push(errorFrame(err))
		return false
	}
	s.push(d.snapshot())
	return true
}
