package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PresenceStore tracks live websocket connections per permission through
// TTL-bounded keys. It is advisory: a lost key only means the agent drops to
// OFFLINE on the next reconcile.
type PresenceStore interface {
	Add(ctx context.Context, permissionID uuid.UUID, connID string, ttl time.Duration) error
	Renew(ctx context.Context, permissionID uuid.UUID, connID string, ttl time.Duration) error
	Remove(ctx context.Context, permissionID uuid.UUID, connID string) error
	Count(ctx context.Context, permissionID uuid.UUID) (int, error)
}

// QueueLocker coalesces concurrent dispatcher cycles per queue. Acquire
// returns ok=false when another cycle holds the lock; the caller simply skips,
// observing the other cycle's outcome.
type QueueLocker interface {
	Acquire(ctx context.Context, queueID uuid.UUID, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, queueID uuid.UUID, token string) error
}

// ConfigCache is the advisory cache for per-project configuration lookups,
// notably the CSAT flow uuid. Negative entries use a shorter TTL than
// positive ones; every read has a DB or upstream fallback.
type ConfigCache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNegative(ctx context.Context, key string, ttl time.Duration) error
}

// ReportGuard refuses concurrent report generation for the same project.
type ReportGuard interface {
	TryStart(ctx context.Context, projectID uuid.UUID, ttl time.Duration) (bool, error)
	Finish(ctx context.Context, projectID uuid.UUID) error
}
