package session

import (
	"context"
	"time"
)

// Turn is one message in a chat session.
type Turn struct {
	Role    string    `json:"role"` // "user" or "assistant"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Store keeps bounded per-session conversation history. Sessions expire
// after their TTL and keep only the most recent turns.
type Store interface {
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error
	Turns(ctx context.Context, sessionID string) ([]Turn, error)
	Delete(ctx context.Context, sessionID string) error
}
