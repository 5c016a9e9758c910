package inbox

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/realtime"
)

// ErrClosed is returned by View operations after Close.
var ErrClosed = errors.New("inbox view closed")

// Source is the read side an inbox is loaded from.
type Source interface {
	AcceptedFriendships(ctx context.Context, userID string) ([]domain.Friendship, error)
	Profiles(ctx context.Context, ids []string) ([]domain.Profile, error)
	LatestCandidates(ctx context.Context, userID string, counterpartIDs []string) ([]domain.Message, error)
}

// Load fetches the State for userID. A failed relationship fetch fails the
// load. Failed profile or message fetches degrade to placeholders and empty
// latest messages and are logged.
func Load(ctx context.Context, src Source, userID string) (State, error) {
	lg := zerolog.Ctx(ctx)

	fs, err := src.AcceptedFriendships(ctx, userID)
	if err != nil {
		return State{}, err
	}
	st := State{
		Friendships: fs,
		Profiles:    map[string]domain.Profile{},
		Latest:      map[string]domain.Message{},
	}
	ids := Counterparts(userID, fs)
	if len(ids) == 0 {
		return st, nil
	}

	if ps, err := src.Profiles(ctx, ids); err != nil {
		lg.Warn().Err(err).Str("user_id", userID).Msg("inbox: profiles unavailable, using placeholders")
	} else {
		for _, p := range ps {
			st.Profiles[p.ID] = p
		}
	}

	if msgs, err := src.LatestCandidates(ctx, userID, ids); err != nil {
		lg.Warn().Err(err).Str("user_id", userID).Msg("inbox: latest messages unavailable")
	} else {
		st.Latest = LatestByCounterpart(userID, msgs)
	}
	return st, nil
}

// View is a live inbox for one user. Relationship changes trigger a full
// reload; message inserts are merged incrementally. Both paths yield the
// same entries as a fresh Load. View is safe for concurrent use; after Close
// it never changes again.
type View struct {
	userID string
	src    Source

	mu        sync.Mutex
	closed    bool
	loaded    bool
	state     State
	entries   []Entry
	reloadSeq uint64
	reloading int
	// merged during an in-flight reload; re-applied on top of its result
	pending []domain.Message
}

// NewView returns an empty, unloaded view.
func NewView(userID string, src Source) *View {
	return &View{
		userID: userID,
		src:    src,
		state:  State{Profiles: map[string]domain.Profile{}, Latest: map[string]domain.Message{}},
	}
}

// UserID returns the owner of the view.
func (v *View) UserID() string { return v.userID }

// Reload re-derives the inbox from the source. When reloads overlap, only
// the most recently started one is applied.
func (v *View) Reload(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.reloadSeq++
	seq := v.reloadSeq
	v.reloading++
	v.mu.Unlock()

	st, err := Load(ctx, v.src, v.userID)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.reloading--
	if v.closed {
		return ErrClosed
	}
	if err != nil {
		if v.reloading == 0 {
			v.pending = nil
		}
		return err
	}
	if seq != v.reloadSeq {
		return nil
	}
	for _, m := range v.pending {
		MergeLatest(st.Latest, v.userID, m)
	}
	if v.reloading == 0 {
		v.pending = nil
	}
	v.state = st
	v.loaded = true
	v.entries = Build(v.userID, st)
	return nil
}

// Apply folds one change event into the view and reports whether the
// entries may have changed.
func (v *View) Apply(ctx context.Context, e realtime.Event) (bool, error) {
	switch e.Table {
	case realtime.TableFriendships:
		var f domain.Friendship
		if err := e.Decode(&f); err != nil {
			return false, err
		}
		if !f.Involves(v.userID) {
			return false, nil
		}
		if err := v.Reload(ctx); err != nil {
			return false, err
		}
		return true, nil

	case realtime.TableMessages:
		if e.Op != realtime.OpInsert {
			return false, nil
		}
		var m domain.Message
		if err := e.Decode(&m); err != nil {
			return false, err
		}
		return v.MergeMessage(m)
	}
	return false, nil
}

// MergeMessage applies one newly inserted message. Messages that do not
// involve the owner, or are older than the displayed latest message, leave
// the view unchanged.
func (v *View) MergeMessage(m domain.Message) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false, ErrClosed
	}
	if m.SenderID != v.userID && m.ReceiverID != v.userID {
		return false, nil
	}
	if v.reloading > 0 {
		v.pending = append(v.pending, m)
	}
	if !MergeLatest(v.state.Latest, v.userID, m) {
		return false, nil
	}
	v.entries = Build(v.userID, v.state)
	return true, nil
}

// Entries returns a copy of the current entries.
func (v *View) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Loaded reports whether a reload has completed.
func (v *View) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// Close stops the view. Reloads still in flight are discarded.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}
