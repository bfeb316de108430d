// Package sessionstore persists per-caller session state with a TTL.
//
// The primary implementation is backed by Redis; an in-memory
// implementation covers tests and deployments without Redis. The
// gateway selects between them at startup with NewWithFallback.
package sessionstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no live session exists for an ID.
var ErrNotFound = errors.New("sessionstore: session not found")

// Channel identifies how a session reached the gateway.
const (
	ChannelVoice = "voice"
	ChannelPhone = "phone"
)

// Session is the state tracked per connected caller.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id,omitempty"`
	Channel       string    `json:"channel"`
	Authenticated bool      `json:"authenticated"`
	CallSID       string    `json:"call_sid,omitempty"`
	CallerNumber  string    `json:"caller_number,omitempty"`
	PINAttempts   int       `json:"pin_attempts"`
	State         string    `json:"state,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store is the session persistence contract.
//
// Create writes a new session and starts its TTL clock. Update
// rewrites the full session and refreshes the TTL. Extend refreshes
// the TTL without changing fields. All operations on a missing or
// expired session return ErrNotFound except Create and Delete.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Extend(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
