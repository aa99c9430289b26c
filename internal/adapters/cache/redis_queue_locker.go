package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueueLocker coalesces dispatcher cycles per queue with a SET NX lock.
// Losing the race is not an error: the holder's cycle covers the same work.
type RedisQueueLocker struct {
	client *redis.Client
}

func NewRedisQueueLocker(client *redis.Client) *RedisQueueLocker {
	return &RedisQueueLocker{client: client}
}

// releaseScript deletes the lock only when the caller still holds it, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func queueLockKey(queueID uuid.UUID) string {
	return "chats:queue_lock:" + queueID.String()
}

func (l *RedisQueueLocker) Acquire(ctx context.Context, queueID uuid.UUID, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, queueLockKey(queueID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisQueueLocker) Release(ctx context.Context, queueID uuid.UUID, token string) error {
	return releaseScript.Run(ctx, l.client, []string{queueLockKey(queueID)}, token).Err()
}
