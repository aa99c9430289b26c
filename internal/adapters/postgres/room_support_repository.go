package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type metricsRepository struct {
	db *gorm.DB
}

// Get returns zero-valued metrics for rooms without a row yet; counters always
// start from zero.
func (r *metricsRepository) Get(ctx context.Context, roomID uuid.UUID) (domain.RoomMetrics, error) {
	var rec roomMetricsModel
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RoomMetrics{RoomID: roomID}, nil
		}
		return domain.RoomMetrics{}, err
	}
	return toDomainMetrics(rec), nil
}

func (r *metricsRepository) Upsert(ctx context.Context, metrics domain.RoomMetrics) error {
	rec := roomMetricsModel{
		RoomID:              metrics.RoomID,
		WaitingTime:         metrics.WaitingTime,
		QueuedCount:         metrics.QueuedCount,
		TransferCount:       metrics.TransferCount,
		FirstResponseTime:   metrics.FirstResponseTime,
		MessageResponseTime: metrics.MessageResponseTime,
		InteractionTime:     metrics.InteractionTime,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"waiting_time":          rec.WaitingTime,
			"queued_count":          rec.QueuedCount,
			"transfer_count":        rec.TransferCount,
			"first_response_time":   rec.FirstResponseTime,
			"message_response_time": rec.MessageResponseTime,
			"interaction_time":      rec.InteractionTime,
		}),
	}).Create(&rec).Error
}

type pinRepository struct {
	db *gorm.DB
}

func (r *pinRepository) Create(ctx context.Context, pin domain.RoomPin) error {
	rec := roomPinModel{
		PinID:     pin.ID,
		RoomID:    pin.RoomID,
		UserEmail: pin.UserEmail,
		CreatedOn: pin.CreatedOn,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

func (r *pinRepository) Delete(ctx context.Context, roomID uuid.UUID, userEmail string) error {
	return r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Where("user_email = ?", userEmail).
		Delete(&roomPinModel{}).Error
}

func (r *pinRepository) DeleteByRoom(ctx context.Context, roomID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&roomPinModel{}).Error
}

func (r *pinRepository) CountByUser(ctx context.Context, projectID uuid.UUID, userEmail string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&roomPinModel{}).
		Joins("JOIN rooms ON rooms.room_id = room_pins.room_id").
		Where("rooms.project_id = ?", projectID).
		Where("room_pins.user_email = ?", userEmail).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *pinRepository) ExistsForRoom(ctx context.Context, roomID uuid.UUID, userEmail string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&roomPinModel{}).
		Where("room_id = ?", roomID).
		Where("user_email = ?", userEmail).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type noteRepository struct {
	db *gorm.DB
}

func (r *noteRepository) Create(ctx context.Context, note domain.RoomNote) (domain.RoomNote, error) {
	rec := roomNoteModel{
		NoteID:    note.ID,
		RoomID:    note.RoomID,
		UserEmail: note.UserEmail,
		Text:      note.Text,
		Locked:    note.Locked,
		CreatedOn: note.CreatedOn,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.RoomNote{}, err
	}
	return note, nil
}

func (r *noteRepository) GetByID(ctx context.Context, noteID uuid.UUID) (domain.RoomNote, error) {
	var rec roomNoteModel
	if err := r.db.WithContext(ctx).Where("note_id = ?", noteID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RoomNote{}, domain.ErrNotFound
		}
		return domain.RoomNote{}, err
	}
	return domain.RoomNote{
		ID:        rec.NoteID,
		RoomID:    rec.RoomID,
		UserEmail: rec.UserEmail,
		Text:      rec.Text,
		Locked:    rec.Locked,
		CreatedOn: rec.CreatedOn,
	}, nil
}

func (r *noteRepository) Delete(ctx context.Context, noteID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Delete(&roomNoteModel{}).Error
}

func (r *noteRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.RoomNote, error) {
	var rows []roomNoteModel
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_on ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.RoomNote, 0, len(rows))
	for _, rec := range rows {
		result = append(result, domain.RoomNote{
			ID:        rec.NoteID,
			RoomID:    rec.RoomID,
			UserEmail: rec.UserEmail,
			Text:      rec.Text,
			Locked:    rec.Locked,
			CreatedOn: rec.CreatedOn,
		})
	}
	return result, nil
}

func (r *noteRepository) LockByRoom(ctx context.Context, roomID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&roomNoteModel{}).
		Where("room_id = ?", roomID).
		Where("locked = FALSE").
		Update("locked", true).Error
}
