package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"gorm.io/gorm"
)

type surveyRepository struct {
	db *gorm.DB
}

func (r *surveyRepository) Create(ctx context.Context, survey domain.CSATSurvey) (domain.CSATSurvey, error) {
	rec := csatSurveyModel{
		SurveyID:   survey.ID,
		RoomID:     survey.RoomID,
		Rating:     survey.Rating,
		Comment:    survey.Comment,
		AnsweredOn: survey.AnsweredOn,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.CSATSurvey{}, domain.ErrSurveyExists
		}
		return domain.CSATSurvey{}, err
	}
	return survey, nil
}

func (r *surveyRepository) ExistsByRoom(ctx context.Context, roomID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&csatSurveyModel{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
