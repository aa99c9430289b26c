package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore tracks live agent connections as one TTL key per socket.
// A crashed pod simply lets its keys expire; presence self-heals without a
// reaper process.
type RedisPresenceStore struct {
	client *redis.Client
}

func NewRedisPresenceStore(client *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{client: client}
}

func presenceKey(permissionID uuid.UUID, connID string) string {
	return "chats:presence:" + permissionID.String() + ":" + connID
}

func (s *RedisPresenceStore) Add(ctx context.Context, permissionID uuid.UUID, connID string, ttl time.Duration) error {
	return s.client.Set(ctx, presenceKey(permissionID, connID), "1", ttl).Err()
}

func (s *RedisPresenceStore) Renew(ctx context.Context, permissionID uuid.UUID, connID string, ttl time.Duration) error {
	// SET keeps renew working even after the key expired between pings.
	return s.client.Set(ctx, presenceKey(permissionID, connID), "1", ttl).Err()
}

func (s *RedisPresenceStore) Remove(ctx context.Context, permissionID uuid.UUID, connID string) error {
	return s.client.Del(ctx, presenceKey(permissionID, connID)).Err()
}

func (s *RedisPresenceStore) Count(ctx context.Context, permissionID uuid.UUID) (int, error) {
	pattern := "chats:presence:" + permissionID.String() + ":*"
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
