package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"gorm.io/gorm"
)

type permissionRepository struct {
	db *gorm.DB
}

func (r *permissionRepository) GetByID(ctx context.Context, permissionID uuid.UUID) (domain.ProjectPermission, error) {
	var rec permissionModel
	if err := r.db.WithContext(ctx).Where("permission_id = ?", permissionID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ProjectPermission{}, domain.ErrNotFound
		}
		return domain.ProjectPermission{}, err
	}
	return toDomainPermission(rec), nil
}

func (r *permissionRepository) GetByProjectAndEmail(ctx context.Context, projectID uuid.UUID, userEmail string) (domain.ProjectPermission, error) {
	var rec permissionModel
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Where("user_email = ?", domain.NormalizeEmail(userEmail)).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ProjectPermission{}, domain.ErrNotFound
		}
		return domain.ProjectPermission{}, err
	}
	return toDomainPermission(rec), nil
}

func (r *permissionRepository) GetAdminByToken(ctx context.Context, token uuid.UUID) (domain.ProjectPermission, error) {
	var rec permissionModel
	err := r.db.WithContext(ctx).
		Where("admin_token = ?", token).
		Where("role >= ?", int(domain.RoleAdmin)).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ProjectPermission{}, domain.ErrInvalidToken
		}
		return domain.ProjectPermission{}, err
	}
	return toDomainPermission(rec), nil
}

func (r *permissionRepository) UpdateStatus(ctx context.Context, permissionID uuid.UUID, status domain.PresenceStatus) error {
	res := r.db.WithContext(ctx).
		Model(&permissionModel{}).
		Where("permission_id = ?", permissionID).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *permissionRepository) TouchLastSeen(ctx context.Context, permissionID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&permissionModel{}).
		Where("permission_id = ?", permissionID).
		Updates(map[string]any{
			"last_seen_online": at,
			"first_access":     false,
		}).Error
}

// ListQueueAgents returns queue-eligible permissions: project admins plus
// holders of a queue or sector authorization matching the queue.
func (r *permissionRepository) ListQueueAgents(ctx context.Context, queueID uuid.UUID) ([]domain.ProjectPermission, error) {
	var rows []permissionModel
	err := r.db.WithContext(ctx).Raw(`
		SELECT p.* FROM project_permissions p
		JOIN queues q ON q.queue_id = ?
		WHERE p.project_id = q.project_id
		  AND (
		    p.role >= ?
		    OR EXISTS (
		      SELECT 1 FROM queue_authorizations qa
		      WHERE qa.permission_id = p.permission_id AND qa.queue_id = q.queue_id
		    )
		    OR EXISTS (
		      SELECT 1 FROM sector_authorizations sa
		      WHERE sa.permission_id = p.permission_id AND sa.sector_id = q.sector_id
		    )
		  )
		ORDER BY p.user_email ASC`,
		queueID, int(domain.RoleAdmin),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.ProjectPermission, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainPermission(row))
	}
	return result, nil
}

// ListAuthorizedQueues returns every queue the permission may watch; admins
// see all queues of their project.
func (r *permissionRepository) ListAuthorizedQueues(ctx context.Context, permissionID uuid.UUID) ([]domain.Queue, error) {
	var rows []queueModel
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT q.* FROM queues q
		JOIN project_permissions p ON p.permission_id = ?
		WHERE q.project_id = p.project_id
		  AND (
		    p.role >= ?
		    OR EXISTS (
		      SELECT 1 FROM queue_authorizations qa
		      WHERE qa.permission_id = p.permission_id AND qa.queue_id = q.queue_id
		    )
		    OR EXISTS (
		      SELECT 1 FROM sector_authorizations sa
		      WHERE sa.permission_id = p.permission_id AND sa.sector_id = q.sector_id
		    )
		  )`,
		permissionID, int(domain.RoleAdmin),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.Queue, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainQueue(row))
	}
	return result, nil
}
