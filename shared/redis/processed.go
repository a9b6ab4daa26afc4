package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ProcessedTTL covers any realistic redelivery window of a consumer group.
const ProcessedTTL = 72 * time.Hour

// ProcessedStore records which event or item IDs have already been applied,
// so at-least-once delivery from Redis Streams does not double-apply them.
type ProcessedStore struct {
	client *goredis.Client
	prefix string
}

// NewProcessedStore keys entries as "processed:<scope>:<id>".
func NewProcessedStore(client *goredis.Client, scope string) *ProcessedStore {
	return &ProcessedStore{client: client, prefix: "processed:" + scope + ":"}
}

func (s *ProcessedStore) Key(id string) string {
	return s.prefix + id
}

func (s *ProcessedStore) IsProcessed(ctx context.Context, id string) bool {
	val, err := s.client.Exists(ctx, s.Key(id)).Result()
	return err == nil && val > 0
}

// MarkProcessed must be called after the side effect is durable.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, id string) {
	if err := s.client.Set(ctx, s.Key(id), "1", ProcessedTTL).Err(); err != nil {
		zap.L().Warn("failed to mark processed", zap.String("key", s.Key(id)), zap.Error(err))
	}
}
