package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TxManager implements the engine's critical sections over Postgres.
//
// Room transitions serialize on the room row (SELECT ... FOR UPDATE); the
// status engine serializes on a transaction-scoped advisory lock keyed by the
// permission id, so two instances can never race an In-Service transition.
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.RepoSet) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, repoSet(tx))
	})
}

func (m *TxManager) InRoomTx(ctx context.Context, roomID uuid.UUID, fn func(ctx context.Context, tx ports.RepoSet) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked roomModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ?", roomID).
			Take(&locked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		return fn(ctx, repoSet(tx))
	})
}

func (m *TxManager) InPermissionTx(ctx context.Context, permissionID uuid.UUID, fn func(ctx context.Context, tx ports.RepoSet) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Advisory lock released automatically at commit/rollback.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", permissionID.String()).Error; err != nil {
			return err
		}
		return fn(ctx, repoSet(tx))
	})
}
