package postgres

import (
	"errors"

	"github.com/viralforge/livechat/internal/ports"
	"gorm.io/gorm"
)

// Repositories bundles every Postgres-backed port implementation over one
// shared connection pool.
type Repositories struct {
	Rooms       ports.RoomRepository
	Messages    ports.MessageRepository
	Metrics     ports.MetricsRepository
	Pins        ports.PinRepository
	Notes       ports.NoteRepository
	Permissions ports.PermissionRepository
	Directory   ports.DirectoryRepository
	Contacts    ports.ContactRepository
	Statuses    ports.StatusRepository
	Surveys     ports.SurveyRepository
	Outbox      ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Rooms:       &roomRepository{db: db},
		Messages:    &messageRepository{db: db},
		Metrics:     &metricsRepository{db: db},
		Pins:        &pinRepository{db: db},
		Notes:       &noteRepository{db: db},
		Permissions: &permissionRepository{db: db},
		Directory:   &directoryRepository{db: db},
		Contacts:    &contactRepository{db: db},
		Statuses:    &statusRepository{db: db},
		Surveys:     &surveyRepository{db: db},
		Outbox:      &outboxRepository{db: db},
	}
}

// repoSet builds the transaction-scoped bundle handed to TxManager callbacks.
func repoSet(tx *gorm.DB) ports.RepoSet {
	return ports.RepoSet{
		Rooms:       &roomRepository{db: tx},
		Messages:    &messageRepository{db: tx},
		Metrics:     &metricsRepository{db: tx},
		Pins:        &pinRepository{db: tx},
		Notes:       &noteRepository{db: tx},
		Permissions: &permissionRepository{db: tx},
		Statuses:    &statusRepository{db: tx},
		Surveys:     &surveyRepository{db: tx},
		Outbox:      &outboxRepository{db: tx},
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
