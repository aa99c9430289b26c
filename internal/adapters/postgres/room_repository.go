package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
	"gorm.io/gorm"
)

type roomRepository struct {
	db *gorm.DB
}

func (r *roomRepository) Create(ctx context.Context, room domain.Room) (domain.Room, error) {
	rec := toRoomModel(room)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Room{}, domain.ErrDuplicateActiveRoom
		}
		return domain.Room{}, err
	}
	return toDomainRoom(rec), nil
}

func (r *roomRepository) GetByID(ctx context.Context, roomID uuid.UUID) (domain.Room, error) {
	var rec roomModel
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Room{}, domain.ErrNotFound
		}
		return domain.Room{}, err
	}
	return toDomainRoom(rec), nil
}

func (r *roomRepository) GetActiveByTicket(ctx context.Context, projectID uuid.UUID, ticketRef string) (domain.Room, error) {
	var rec roomModel
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Where("is_active = TRUE").
		Where("ticket_uuid::text = ? OR callback_url LIKE ?", ticketRef, "%"+ticketRef).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Room{}, domain.ErrNotFound
		}
		return domain.Room{}, err
	}
	return toDomainRoom(rec), nil
}

func (r *roomRepository) Update(ctx context.Context, room domain.Room) error {
	rec := toRoomModel(room)
	res := r.db.WithContext(ctx).
		Model(&roomModel{}).
		Where("room_id = ?", room.ID).
		Updates(map[string]any{
			"queue_id":                 rec.QueueID,
			"sector_id":                rec.SectorID,
			"user_email":               rec.UserEmail,
			"is_active":                rec.IsActive,
			"is_waiting":               rec.IsWaiting,
			"ended_at":                 rec.EndedAt,
			"ended_by":                 rec.EndedBy,
			"last_interaction":         rec.LastInteraction,
			"last_contact_interaction": rec.LastContactInteraction,
			"user_assigned_at":         rec.UserAssignedAt,
			"added_to_queue_at":        rec.AddedToQueueAt,
			"transfer_history":         rec.TransferHistory,
			"custom_fields":            rec.CustomFields,
			"tags":                     rec.Tags,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *roomRepository) ListQueued(ctx context.Context, queueID uuid.UUID) ([]domain.Room, error) {
	var rows []roomModel
	err := r.db.WithContext(ctx).
		Where("queue_id = ?", queueID).
		Where("is_active = TRUE").
		Where("user_email IS NULL").
		Order("created_on ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.Room, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainRoom(row))
	}
	return result, nil
}

func (r *roomRepository) List(ctx context.Context, filter ports.RoomFilter) ([]domain.Room, error) {
	query := r.db.WithContext(ctx).
		Model(&roomModel{}).
		Where("rooms.project_id = ?", filter.ProjectID)
	if filter.QueueID != nil {
		query = query.Where("rooms.queue_id = ?", *filter.QueueID)
	}
	if filter.SectorID != nil {
		query = query.Where("rooms.sector_id = ?", *filter.SectorID)
	}
	if filter.UserEmail != nil {
		query = query.Where("rooms.user_email = ?", *filter.UserEmail)
	}
	if filter.ContactID != nil {
		query = query.Where("rooms.contact_id = ?", *filter.ContactID)
	}
	if filter.IsActive != nil {
		query = query.Where("rooms.is_active = ?", *filter.IsActive)
	}

	if filter.PinnedFirst && filter.ViewerEmail != "" {
		query = query.
			Joins("LEFT JOIN room_pins ON room_pins.room_id = rooms.room_id AND room_pins.user_email = ?", filter.ViewerEmail).
			Order("(room_pins.pin_id IS NOT NULL) DESC")
	}
	query = query.Order("rooms.last_interaction DESC NULLS LAST").
		Order("rooms.created_on DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []roomModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Room, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainRoom(row))
	}
	return result, nil
}

func (r *roomRepository) CountActiveByUser(ctx context.Context, projectID uuid.UUID, userEmail string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&roomModel{}).
		Where("project_id = ?", projectID).
		Where("user_email = ?", userEmail).
		Where("is_active = TRUE").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *roomRepository) CountActiveAndClosedSince(ctx context.Context, projectID uuid.UUID, userEmail string, since time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&roomModel{}).
		Where("project_id = ?", projectID).
		Where("user_email = ?", userEmail).
		Where("is_active = TRUE OR ended_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
