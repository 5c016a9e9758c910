// Package realtime carries row-level change notifications from the write
// path to live sessions.
//
// Services publish an Event after a write commits. The Broker fans events
// out to in-process Subscriptions; an optional RedisRelay forwards them to
// other instances and feeds theirs back in. Delivery is at-most-once per
// subscriber: a subscriber that falls behind loses its queued events and is
// told to resync (re-fetch from the store) instead.
package realtime

import (
	"encoding/json"
	"time"
)

// Watched tables.
const (
	TableFriendships = "friendships"
	TableMessages    = "messages"
	TableSecrets     = "secret_messages"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Event is a snapshot of one changed row.
type Event struct {
	Table  string          `json:"table"`
	Op     Op              `json:"op"`
	Row    json.RawMessage `json:"row"`
	At     time.Time       `json:"at"`
	Origin string          `json:"origin,omitempty"`
}

// NewEvent encodes row as the event snapshot.
func NewEvent(table string, op Op, row any) (Event, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return Event{}, err
	}
	return Event{Table: table, Op: op, Row: raw, At: time.Now().UTC()}, nil
}

// Decode unmarshals the row snapshot into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Row, v)
}
