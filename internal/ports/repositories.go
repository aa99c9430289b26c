package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
)

// RoomFilter narrows room listings. PinnedFirst orders the caller's pinned
// rooms ahead of the rest, then by last interaction descending.
type RoomFilter struct {
	ProjectID   uuid.UUID
	QueueID     *uuid.UUID
	SectorID    *uuid.UUID
	UserEmail   *string
	ContactID   *uuid.UUID
	IsActive    *bool
	ViewerEmail string
	PinnedFirst bool
	Limit       int
	Offset      int
}

// RoomRepository owns room persistence. Create surfaces
// domain.ErrDuplicateActiveRoom when the partial unique index on
// (contact, queue) WHERE is_active rejects the insert.
type RoomRepository interface {
	Create(ctx context.Context, room domain.Room) (domain.Room, error)
	GetByID(ctx context.Context, roomID uuid.UUID) (domain.Room, error)
	// GetActiveByTicket locates an active room by ticket uuid or by callback
	// URL suffix, scoped to a project.
	GetActiveByTicket(ctx context.Context, projectID uuid.UUID, ticketRef string) (domain.Room, error)
	Update(ctx context.Context, room domain.Room) error
	ListQueued(ctx context.Context, queueID uuid.UUID) ([]domain.Room, error)
	List(ctx context.Context, filter RoomFilter) ([]domain.Room, error)
	CountActiveByUser(ctx context.Context, projectID uuid.UUID, userEmail string) (int, error)
	// CountActiveAndClosedSince additionally counts rooms the agent closed
	// after the given instant; used by the "general" routing option limit.
	CountActiveAndClosedSince(ctx context.Context, projectID uuid.UUID, userEmail string, since time.Time) (int, error)
}

// MessageRepository persists room history including system feedback messages.
type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) (domain.Message, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]domain.Message, error)
	MarkSeenByRoom(ctx context.Context, roomID uuid.UUID, messageIDs []uuid.UUID) error
}

// MetricsRepository keeps per-room counters current. Get returns zero-valued
// metrics rather than ErrNotFound for rooms without a row yet.
type MetricsRepository interface {
	Get(ctx context.Context, roomID uuid.UUID) (domain.RoomMetrics, error)
	Upsert(ctx context.Context, metrics domain.RoomMetrics) error
}

// PinRepository enforces nothing itself; the application checks the cap before
// Create under the room transaction.
type PinRepository interface {
	Create(ctx context.Context, pin domain.RoomPin) error
	Delete(ctx context.Context, roomID uuid.UUID, userEmail string) error
	DeleteByRoom(ctx context.Context, roomID uuid.UUID) error
	CountByUser(ctx context.Context, projectID uuid.UUID, userEmail string) (int, error)
	ExistsForRoom(ctx context.Context, roomID uuid.UUID, userEmail string) (bool, error)
}

// NoteRepository persists room notes; Lock flips every note of a room to
// non-deletable when the room is transferred.
type NoteRepository interface {
	Create(ctx context.Context, note domain.RoomNote) (domain.RoomNote, error)
	GetByID(ctx context.Context, noteID uuid.UUID) (domain.RoomNote, error)
	Delete(ctx context.Context, noteID uuid.UUID) error
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.RoomNote, error)
	LockByRoom(ctx context.Context, roomID uuid.UUID) error
}

// PermissionRepository resolves agents within projects.
type PermissionRepository interface {
	GetByID(ctx context.Context, permissionID uuid.UUID) (domain.ProjectPermission, error)
	GetByProjectAndEmail(ctx context.Context, projectID uuid.UUID, userEmail string) (domain.ProjectPermission, error)
	// GetAdminByToken resolves a project-admin UUID bearer token.
	GetAdminByToken(ctx context.Context, token uuid.UUID) (domain.ProjectPermission, error)
	UpdateStatus(ctx context.Context, permissionID uuid.UUID, status domain.PresenceStatus) error
	TouchLastSeen(ctx context.Context, permissionID uuid.UUID, at time.Time) error
	// ListQueueAgents returns permissions eligible for a queue: project admins
	// plus holders of a queue or sector authorization.
	ListQueueAgents(ctx context.Context, queueID uuid.UUID) ([]domain.ProjectPermission, error)
	// ListAuthorizedQueues returns the queues an agent may watch, used by the
	// agent socket to build its subscription set.
	ListAuthorizedQueues(ctx context.Context, permissionID uuid.UUID) ([]domain.Queue, error)
}

// DirectoryRepository is the read-only lookup surface for the tenancy graph.
// Entities reference each other by id only; no graph pointers are held.
type DirectoryRepository interface {
	GetProject(ctx context.Context, projectID uuid.UUID) (domain.Project, error)
	GetSector(ctx context.Context, sectorID uuid.UUID) (domain.Sector, error)
	GetQueue(ctx context.Context, queueID uuid.UUID) (domain.Queue, error)
	GetTag(ctx context.Context, tagID uuid.UUID) (domain.SectorTag, error)
	ListSectorTags(ctx context.Context, sectorID uuid.UUID) ([]domain.SectorTag, error)
}

// ContactRepository upserts and resolves contacts by external identity.
type ContactRepository interface {
	GetByID(ctx context.Context, contactID uuid.UUID) (domain.Contact, error)
	GetByExternalID(ctx context.Context, projectID uuid.UUID, externalID string) (domain.Contact, error)
	Upsert(ctx context.Context, contact domain.Contact) (domain.Contact, error)
}

// StatusRepository owns custom statuses and their types. CreateStatus surfaces
// the partial unique index on (user, project) WHERE is_active as
// domain.ErrCustomStatusActive.
type StatusRepository interface {
	GetActive(ctx context.Context, projectID uuid.UUID, userEmail string) (*domain.CustomStatus, error)
	CreateStatus(ctx context.Context, status domain.CustomStatus) (domain.CustomStatus, error)
	CloseStatus(ctx context.Context, statusID uuid.UUID, breakTime int) error
	GetStatus(ctx context.Context, statusID uuid.UUID) (domain.CustomStatus, error)

	GetType(ctx context.Context, typeID uuid.UUID) (domain.CustomStatusType, error)
	GetTypeByName(ctx context.Context, projectID uuid.UUID, name string) (domain.CustomStatusType, error)
	CreateType(ctx context.Context, statusType domain.CustomStatusType) (domain.CustomStatusType, error)
	SoftDeleteType(ctx context.Context, typeID uuid.UUID) error
	ListTypes(ctx context.Context, projectID uuid.UUID) ([]domain.CustomStatusType, error)
	CountUserTypes(ctx context.Context, projectID uuid.UUID) (int, error)
}

// SurveyRepository persists CSAT results; Create surfaces the one-per-room
// unique index as domain.ErrSurveyExists.
type SurveyRepository interface {
	Create(ctx context.Context, survey domain.CSATSurvey) (domain.CSATSurvey, error)
	ExistsByRoom(ctx context.Context, roomID uuid.UUID) (bool, error)
}

// OutboxEvent is the write-side analytics/billing event prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord is durable outbox state with retry and claim metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for export events so
// transactional writes and broker delivery cannot diverge.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
