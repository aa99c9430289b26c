package ports

import (
	"context"

	"github.com/google/uuid"
)

// RepoSet is the transaction-scoped repository bundle handed to callbacks.
// Inside a callback every repository operates on the same transaction.
type RepoSet struct {
	Rooms       RoomRepository
	Messages    MessageRepository
	Metrics     MetricsRepository
	Pins        PinRepository
	Notes       NoteRepository
	Permissions PermissionRepository
	Statuses    StatusRepository
	Surveys     SurveyRepository
	Outbox      OutboxRepository
}

// TxManager serializes the engine's critical sections.
//
// InRoomTx locks the room row (SELECT ... FOR UPDATE semantics) for the
// duration of fn; all transitions of one room serialize through it.
// InPermissionTx takes a transaction-scoped advisory lock keyed by the
// permission id, serializing status-engine work per (agent, project).
// Callbacks must not perform external HTTP I/O while the lock is held.
type TxManager interface {
	InRoomTx(ctx context.Context, roomID uuid.UUID, fn func(ctx context.Context, tx RepoSet) error) error
	InPermissionTx(ctx context.Context, permissionID uuid.UUID, fn func(ctx context.Context, tx RepoSet) error) error
	InTx(ctx context.Context, fn func(ctx context.Context, tx RepoSet) error) error
}
