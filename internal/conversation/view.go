// Package conversation keeps the ordered message history between a user and
// one counterpart current while the user is looking at it.
//
// Sending is optimistic: the message is shown at once under a provisional
// "temp-" id and the write happens afterwards. The confirmed row can then
// reach the view twice, once as the write result and once as a realtime
// push. Confirm reconciles both against the provisional copy so every sent
// message is displayed exactly once.
package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/realtime"
)

// ProvisionalPrefix marks ids of messages not yet confirmed by the store.
const ProvisionalPrefix = "temp-"

// DefaultDedupWindow bounds how far apart a provisional message and its
// confirmed row may be in time and still be considered the same message.
const DefaultDedupWindow = 30 * time.Second

var (
	// ErrEmptyContent is returned by Send for blank input.
	ErrEmptyContent = errors.New("message content is empty")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("conversation view closed")
)

// Store loads the persisted side of a conversation.
type Store interface {
	ListConversation(ctx context.Context, userID, friendID string) ([]domain.Message, error)
	Profiles(ctx context.Context, ids []string) ([]domain.Profile, error)
}

// Sender persists a message and returns the stored row.
type Sender interface {
	Send(ctx context.Context, senderID, receiverID, content string) (*domain.Message, error)
}

// Message is a displayed message. Provisional messages have not been
// confirmed by the store yet.
type Message struct {
	domain.Message
	Provisional bool `json:"provisional,omitempty"`
}

// Option customizes a View.
type Option func(*View)

// WithDedupWindow overrides DefaultDedupWindow.
func WithDedupWindow(d time.Duration) Option {
	return func(v *View) {
		if d > 0 {
			v.window = d
		}
	}
}

// WithClock overrides the time source used for provisional timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *View) { v.now = now }
}

// WithNotify registers fn to be called, outside the view's lock, when Send
// has displayed its provisional message and before the write starts.
func WithNotify(fn func()) Option {
	return func(v *View) { v.notify = fn }
}

// View is the live conversation between UserID and FriendID. It is safe for
// concurrent use and never changes after Close.
type View struct {
	userID   string
	friendID string
	store    Store
	sender   Sender
	window   time.Duration
	now      func() time.Time
	notify   func()

	mu       sync.Mutex
	closed   bool
	loaded   bool
	messages []Message
	profiles map[string]domain.Profile
}

// NewView returns an unloaded view.
func NewView(userID, friendID string, store Store, sender Sender, opts ...Option) *View {
	v := &View{
		userID:   userID,
		friendID: friendID,
		store:    store,
		sender:   sender,
		window:   DefaultDedupWindow,
		now:      func() time.Time { return time.Now().UTC() },
		profiles: map[string]domain.Profile{},
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Load replaces the confirmed history with the store's. Provisional messages
// still awaiting their write are kept unless the store already has them.
// Profile lookup failures are tolerated.
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.mu.Unlock()

	rows, err := v.store.ListConversation(ctx, v.userID, v.friendID)
	if err != nil {
		return err
	}
	profiles, perr := v.store.Profiles(ctx, []string{v.userID, v.friendID})

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	pending := make([]Message, 0)
	shown := make(map[string]bool, len(v.messages))
	for _, m := range v.messages {
		if m.Provisional {
			pending = append(pending, m)
		} else {
			shown[m.ID] = true
		}
	}
	v.messages = make([]Message, 0, len(rows)+len(pending))
	for _, r := range rows {
		if r.Between(v.userID, v.friendID) {
			v.messages = append(v.messages, Message{Message: r})
		}
	}
	// Rows new to this view confirm at most one pending message each.
	claimed := make(map[string]bool)
	for _, p := range pending {
		if !v.claimConfirmedLocked(p, shown, claimed) {
			v.messages = append(v.messages, p)
		}
	}
	v.sortLocked()
	if perr == nil {
		for _, p := range profiles {
			v.profiles[p.ID] = p
		}
	}
	v.loaded = true
	return nil
}

// Send shows content immediately as a provisional message, then persists it.
// The provisional copy carries the canonical text the store keeps. On failure
// the provisional message is withdrawn and the error returned.
func (v *View) Send(ctx context.Context, content string) (*domain.Message, error) {
	content = domain.CanonicalText(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	tempID := ProvisionalPrefix + uuid.NewString()
	v.messages = append(v.messages, Message{
		Message: domain.Message{
			ID:         tempID,
			SenderID:   v.userID,
			ReceiverID: v.friendID,
			Content:    content,
			CreatedAt:  v.now(),
		},
		Provisional: true,
	})
	v.mu.Unlock()
	if v.notify != nil {
		v.notify()
	}

	stored, err := v.sender.Send(ctx, v.userID, v.friendID, content)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		if err != nil {
			return nil, err
		}
		return stored, nil
	}
	if err != nil {
		v.withdrawLocked(tempID, content)
		return nil, err
	}
	v.settleLocked(tempID, *stored)
	return stored, nil
}

// Apply folds a realtime event into the view.
func (v *View) Apply(e realtime.Event) (bool, error) {
	if e.Table != realtime.TableMessages || e.Op != realtime.OpInsert {
		return false, nil
	}
	var m domain.Message
	if err := e.Decode(&m); err != nil {
		return false, err
	}
	return v.Confirm(m)
}

// Confirm records a stored message. Messages of other pairs are ignored, a
// message already displayed is a no-op, a matching provisional message is
// replaced, and anything else is added in order.
func (v *View) Confirm(m domain.Message) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false, ErrClosed
	}
	return v.confirmLocked(m), nil
}

// Messages returns a copy of the displayed messages in display order.
func (v *View) Messages() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Profile returns the loaded profile for id, if any.
func (v *View) Profile(id string) (domain.Profile, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.profiles[id]
	return p, ok
}

// Loaded reports whether Load has completed.
func (v *View) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// FriendID returns the counterpart.
func (v *View) FriendID() string { return v.friendID }

// Close stops the view. In-flight loads and sends no longer touch it.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}

func (v *View) confirmLocked(m domain.Message) bool {
	if !m.Between(v.userID, v.friendID) {
		return false
	}
	for _, cur := range v.messages {
		if !cur.Provisional && cur.ID == m.ID {
			return false
		}
	}
	if i := v.provisionalFor(m); i >= 0 {
		v.messages[i] = Message{Message: m}
	} else {
		v.messages = append(v.messages, Message{Message: m})
	}
	v.sortLocked()
	return true
}

// settleLocked applies the write result of the send that displayed tempID.
// If a push already confirmed the row it may have taken another identical
// provisional message, whose own write result then takes tempID.
func (v *View) settleLocked(tempID string, m domain.Message) {
	for _, cur := range v.messages {
		if !cur.Provisional && cur.ID == m.ID {
			return
		}
	}
	for i, cur := range v.messages {
		if cur.ID == tempID {
			v.messages[i] = Message{Message: m}
			v.sortLocked()
			return
		}
	}
	v.confirmLocked(m)
}

// withdrawLocked removes the provisional message of a failed send. When a
// confirmation already took tempID, the latest provisional copy of the same
// content stands in for it.
func (v *View) withdrawLocked(tempID, content string) {
	if v.removeLocked(tempID) {
		return
	}
	last := -1
	for i, cur := range v.messages {
		if cur.Provisional && cur.Content == content {
			if last < 0 || !cur.CreatedAt.Before(v.messages[last].CreatedAt) {
				last = i
			}
		}
	}
	if last >= 0 {
		v.messages = append(v.messages[:last], v.messages[last+1:]...)
	}
}

// provisionalFor returns the index of the earliest provisional message that
// m confirms, or -1.
func (v *View) provisionalFor(m domain.Message) int {
	best := -1
	for i, cur := range v.messages {
		if !cur.Provisional || !v.sameMessage(cur.Message, m) {
			continue
		}
		if best < 0 || cur.CreatedAt.Before(v.messages[best].CreatedAt) {
			best = i
		}
	}
	return best
}

// claimConfirmedLocked reports whether a confirmed row that was not shown
// before the reload, and is not claimed yet, is the stored copy of p. The
// earliest such row is claimed.
func (v *View) claimConfirmedLocked(p Message, shown, claimed map[string]bool) bool {
	best := -1
	for i, cur := range v.messages {
		if cur.Provisional || shown[cur.ID] || claimed[cur.ID] || !v.sameMessage(p.Message, cur.Message) {
			continue
		}
		if best < 0 || cur.CreatedAt.Before(v.messages[best].CreatedAt) {
			best = i
		}
	}
	if best < 0 {
		return false
	}
	claimed[v.messages[best].ID] = true
	return true
}

func (v *View) sameMessage(a, b domain.Message) bool {
	if a.SenderID != b.SenderID || a.ReceiverID != b.ReceiverID {
		return false
	}
	if domain.CanonicalText(a.Content) != domain.CanonicalText(b.Content) {
		return false
	}
	d := a.CreatedAt.Sub(b.CreatedAt)
	if d < 0 {
		d = -d
	}
	return d <= v.window
}

func (v *View) removeLocked(id string) bool {
	for i, cur := range v.messages {
		if cur.ID == id {
			v.messages = append(v.messages[:i], v.messages[i+1:]...)
			return true
		}
	}
	return false
}

// sortLocked keeps confirmed messages in store order (created_at, id).
// Provisional messages sort by their local timestamp.
func (v *View) sortLocked() {
	sort.SliceStable(v.messages, func(i, j int) bool {
		a, b := v.messages[i], v.messages[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Provisional != b.Provisional {
			return !a.Provisional
		}
		return a.ID < b.ID
	})
}
