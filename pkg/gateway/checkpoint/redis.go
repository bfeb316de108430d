package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/voicedesk-io/voicedesk/pkg/core/types"
)

const keyPrefix = "thread:"

// RedisStore keeps thread histories in Redis. Keys carry no
// expiration: a thread's history outlives its sessions and is only
// removed by an explicit Delete.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func threadKey(id string) string { return keyPrefix + id }

func (s *RedisStore) Load(ctx context.Context, threadID string) ([]types.Message, error) {
	raw, err := s.client.Get(ctx, threadKey(threadID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", threadID, err)
	}
	var history []types.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", threadID, err)
	}
	return history, nil
}

func (s *RedisStore) Save(ctx context.Context, threadID string, history []types.Message) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("checkpoint: encode %s: %w", threadID, err)
	}
	if err := s.client.Set(ctx, threadKey(threadID), raw, 0).Err(); err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", threadID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	if err := s.client.Del(ctx, threadKey(threadID)).Err(); err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", threadID, err)
	}
	return nil
}
