package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"gorm.io/gorm"
)

type directoryRepository struct {
	db *gorm.DB
}

func (r *directoryRepository) GetProject(ctx context.Context, projectID uuid.UUID) (domain.Project, error) {
	var rec projectModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Project{}, domain.ErrNotFound
		}
		return domain.Project{}, err
	}
	return toDomainProject(rec), nil
}

func (r *directoryRepository) GetSector(ctx context.Context, sectorID uuid.UUID) (domain.Sector, error) {
	var rec sectorModel
	if err := r.db.WithContext(ctx).Where("sector_id = ?", sectorID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Sector{}, domain.ErrNotFound
		}
		return domain.Sector{}, err
	}
	return toDomainSector(rec), nil
}

func (r *directoryRepository) GetQueue(ctx context.Context, queueID uuid.UUID) (domain.Queue, error) {
	var rec queueModel
	if err := r.db.WithContext(ctx).Where("queue_id = ?", queueID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Queue{}, domain.ErrNotFound
		}
		return domain.Queue{}, err
	}
	return toDomainQueue(rec), nil
}

func (r *directoryRepository) GetTag(ctx context.Context, tagID uuid.UUID) (domain.SectorTag, error) {
	var rec sectorTagModel
	if err := r.db.WithContext(ctx).Where("tag_id = ?", tagID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SectorTag{}, domain.ErrNotFound
		}
		return domain.SectorTag{}, err
	}
	return domain.SectorTag{ID: rec.TagID, SectorID: rec.SectorID, Name: rec.Name}, nil
}

func (r *directoryRepository) ListSectorTags(ctx context.Context, sectorID uuid.UUID) ([]domain.SectorTag, error) {
	var rows []sectorTagModel
	err := r.db.WithContext(ctx).
		Where("sector_id = ?", sectorID).
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.SectorTag, 0, len(rows))
	for _, rec := range rows {
		result = append(result, domain.SectorTag{ID: rec.TagID, SectorID: rec.SectorID, Name: rec.Name})
	}
	return result, nil
}
