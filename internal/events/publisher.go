package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type names an assessment lifecycle event.
type Type string

const (
	TypeStarted    Type = "started"
	TypeWarning    Type = "warning"
	TypeTerminated Type = "terminated"
	TypeGraded     Type = "graded"
	TypeReset      Type = "reset"
)

// Event is published whenever an assessment session changes state.
type Event struct {
	Type   Type            `json:"type"`
	UserID string          `json:"user_id"`
	Data   json.RawMessage `json:"data,omitempty"`
	At     time.Time       `json:"at"`
}

// New builds an event, encoding data as its payload.
func New(t Type, userID string, data any) Event {
	ev := Event{Type: t, UserID: userID, At: time.Now().UTC()}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}

// Publisher fans assessment events out to other services.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
