package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type contactRepository struct {
	db *gorm.DB
}

func (r *contactRepository) GetByID(ctx context.Context, contactID uuid.UUID) (domain.Contact, error) {
	var rec contactModel
	if err := r.db.WithContext(ctx).Where("contact_id = ?", contactID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Contact{}, domain.ErrNotFound
		}
		return domain.Contact{}, err
	}
	return toDomainContact(rec), nil
}

func (r *contactRepository) GetByExternalID(ctx context.Context, projectID uuid.UUID, externalID string) (domain.Contact, error) {
	var rec contactModel
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Where("external_id = ?", externalID).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Contact{}, domain.ErrNotFound
		}
		return domain.Contact{}, err
	}
	return toDomainContact(rec), nil
}

// Upsert keys on (project, external id); repeat flow starts refresh name, urn
// and custom fields but keep the original contact identity.
func (r *contactRepository) Upsert(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	rec := contactModel{
		ContactID:    contact.ID,
		ProjectID:    contact.ProjectID,
		ExternalID:   contact.ExternalID,
		Name:         contact.Name,
		URN:          contact.URN,
		LinkedUser:   contact.LinkedUser,
		CustomFields: toJSON(contact.CustomFields),
		CreatedAt:    contact.CreatedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "project_id"},
			{Name: "external_id"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"name":          rec.Name,
			"urn":           rec.URN,
			"custom_fields": rec.CustomFields,
		}),
	}).Create(&rec).Error
	if err != nil {
		return domain.Contact{}, err
	}
	return r.GetByExternalID(ctx, contact.ProjectID, contact.ExternalID)
}
