// Package checkpoint persists conversation history keyed by thread.
//
// A thread is one caller's running conversation; the orchestrator
// loads the thread before each turn and commits it back only once
// the turn completes, so an aborted turn never leaves a partial
// history behind.
package checkpoint

import (
	"context"
	"errors"

	"github.com/voicedesk-io/voicedesk/pkg/core/types"
)

// ErrNotFound is returned when a thread has no saved history.
var ErrNotFound = errors.New("checkpoint: thread not found")

// Store is the thread history contract. Save replaces the full
// history for a thread atomically. Histories carry no automatic
// expiry; Delete is the only removal.
type Store interface {
	Load(ctx context.Context, threadID string) ([]types.Message, error)
	Save(ctx context.Context, threadID string, history []types.Message) error
	Delete(ctx context.Context, threadID string) error
}
