package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"gorm.io/gorm"
)

type statusRepository struct {
	db *gorm.DB
}

func (r *statusRepository) GetActive(ctx context.Context, projectID uuid.UUID, userEmail string) (*domain.CustomStatus, error) {
	var rec customStatusModel
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Where("user_email = ?", userEmail).
		Where("is_active = TRUE").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	status := toDomainStatus(rec)
	return &status, nil
}

func (r *statusRepository) CreateStatus(ctx context.Context, status domain.CustomStatus) (domain.CustomStatus, error) {
	rec := customStatusModel{
		StatusID:     status.ID,
		ProjectID:    status.ProjectID,
		UserEmail:    status.UserEmail,
		StatusTypeID: status.StatusTypeID,
		IsActive:     status.IsActive,
		BreakTime:    status.BreakTime,
		CreatedOn:    status.CreatedOn,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.CustomStatus{}, domain.ErrCustomStatusActive
		}
		return domain.CustomStatus{}, err
	}
	return status, nil
}

func (r *statusRepository) CloseStatus(ctx context.Context, statusID uuid.UUID, breakTime int) error {
	res := r.db.WithContext(ctx).
		Model(&customStatusModel{}).
		Where("status_id = ?", statusID).
		Where("is_active = TRUE").
		Updates(map[string]any{
			"is_active":  false,
			"break_time": breakTime,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *statusRepository) GetStatus(ctx context.Context, statusID uuid.UUID) (domain.CustomStatus, error) {
	var rec customStatusModel
	if err := r.db.WithContext(ctx).Where("status_id = ?", statusID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.CustomStatus{}, domain.ErrNotFound
		}
		return domain.CustomStatus{}, err
	}
	return toDomainStatus(rec), nil
}

func (r *statusRepository) GetType(ctx context.Context, typeID uuid.UUID) (domain.CustomStatusType, error) {
	var rec customStatusTypeModel
	if err := r.db.WithContext(ctx).Where("type_id = ?", typeID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.CustomStatusType{}, domain.ErrNotFound
		}
		return domain.CustomStatusType{}, err
	}
	return toDomainStatusType(rec), nil
}

func (r *statusRepository) GetTypeByName(ctx context.Context, projectID uuid.UUID, name string) (domain.CustomStatusType, error) {
	var rec customStatusTypeModel
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Where("name = ?", name).
		Where("is_deleted = FALSE").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.CustomStatusType{}, domain.ErrNotFound
		}
		return domain.CustomStatusType{}, err
	}
	return toDomainStatusType(rec), nil
}

func (r *statusRepository) CreateType(ctx context.Context, statusType domain.CustomStatusType) (domain.CustomStatusType, error) {
	rec := customStatusTypeModel{
		TypeID:          statusType.ID,
		ProjectID:       statusType.ProjectID,
		Name:            statusType.Name,
		IsDeleted:       statusType.IsDeleted,
		CreatedBySystem: statusType.CreatedBySystem,
		CreatedAt:       statusType.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return r.GetTypeByName(ctx, statusType.ProjectID, statusType.Name)
		}
		return domain.CustomStatusType{}, err
	}
	return statusType, nil
}

func (r *statusRepository) SoftDeleteType(ctx context.Context, typeID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&customStatusTypeModel{}).
		Where("type_id = ?", typeID).
		Where("is_deleted = FALSE").
		Update("is_deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *statusRepository) ListTypes(ctx context.Context, projectID uuid.UUID) ([]domain.CustomStatusType, error) {
	var rows []customStatusTypeModel
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Where("is_deleted = FALSE").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.CustomStatusType, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainStatusType(row))
	}
	return result, nil
}

// CountUserTypes counts non-deleted, user-created types; system types never
// consume the cap.
func (r *statusRepository) CountUserTypes(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&customStatusTypeModel{}).
		Where("project_id = ?", projectID).
		Where("is_deleted = FALSE").
		Where("created_by_system = FALSE").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
