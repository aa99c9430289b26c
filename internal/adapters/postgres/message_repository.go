package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

func (r *messageRepository) Create(ctx context.Context, message domain.Message) (domain.Message, error) {
	rec := messageModel{
		MessageID:       message.ID,
		RoomID:          message.RoomID,
		UserEmail:       message.UserEmail,
		ContactID:       message.ContactID,
		Text:            message.Text,
		Seen:            message.Seen,
		CreatedOn:       message.CreatedOn,
		FeedbackMethod:  string(message.FeedbackMethod),
		FeedbackPayload: toJSON(message.FeedbackPayload),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if len(message.Attachments) == 0 {
			return nil
		}
		rows := make([]attachmentModel, 0, len(message.Attachments))
		for _, att := range message.Attachments {
			rows = append(rows, attachmentModel{
				AttachmentID: att.ID,
				MessageID:    rec.MessageID,
				ContentType:  att.ContentType,
				URL:          att.URL,
			})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	query := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_on ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []messageModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.MessageID)
	}
	var attachments []attachmentModel
	if err := r.db.WithContext(ctx).Where("message_id IN ?", ids).Find(&attachments).Error; err != nil {
		return nil, err
	}
	byMessage := map[uuid.UUID][]attachmentModel{}
	for _, att := range attachments {
		byMessage[att.MessageID] = append(byMessage[att.MessageID], att)
	}

	result := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainMessage(row, byMessage[row.MessageID]))
	}
	return result, nil
}

func (r *messageRepository) MarkSeenByRoom(ctx context.Context, roomID uuid.UUID, messageIDs []uuid.UUID) error {
	query := r.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("room_id = ?", roomID)
	if len(messageIDs) > 0 {
		query = query.Where("message_id IN ?", messageIDs)
	}
	return query.Update("seen", true).Error
}
