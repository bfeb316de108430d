package checkpoint

import (
	"context"
	"sync"

	"github.com/voicedesk-io/voicedesk/pkg/core/types"
)

// MemoryStore is an in-process Store for tests and Redis-less
// deployments. Histories are copied on both Save and Load so callers
// can never mutate stored state through a shared slice.
type MemoryStore struct {
	mu      sync.Mutex
	threads map[string][]types.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]types.Message)}
}

func (s *MemoryStore) Load(_ context.Context, threadID string) ([]types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.threads[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]types.Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, threadID string, history []types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]types.Message, len(history))
	copy(stored, history)
	s.threads[threadID] = stored
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}
