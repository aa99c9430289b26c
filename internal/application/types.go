package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
)

// Config carries the engine's tunables resolved at bootstrap.
type Config struct {
	ServiceName string

	PresenceTTL   time.Duration
	QueueLockTTL  time.Duration
	BulkBatchSize int

	SurveyTokenTTL   time.Duration
	SurveyWebhookURL string

	FlowUUIDCacheTTL    time.Duration
	FlowUUIDFallbackTTL time.Duration
	FlowUUIDNegativeTTL time.Duration

	ReportTTL      time.Duration
	DefaultMaxPins int
}

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	PermissionID uuid.UUID
	ProjectID    uuid.UUID
	Email        string
	Role         domain.PermissionRole
}

// IsAdmin reports whether the actor holds the admin role on the project.
func (a Actor) IsAdmin() bool { return a.Role >= domain.RoleAdmin }

// ContactInput is the contact payload of the flow-engine room-create webhook.
type ContactInput struct {
	ExternalID   string         `json:"external_id"`
	Name         string         `json:"name"`
	URN          string         `json:"urn"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// CreateRoomInput is the flow-engine room-create webhook body.
type CreateRoomInput struct {
	QueueUUID    uuid.UUID      `json:"queue_uuid"`
	Contact      ContactInput   `json:"contact"`
	FlowUUID     *uuid.UUID     `json:"flow_uuid,omitempty"`
	UserEmail    string         `json:"user_email,omitempty"`
	TicketUUID   *uuid.UUID     `json:"ticket_uuid,omitempty"`
	CallbackURL  string         `json:"callback_url,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	IsWaiting    bool           `json:"is_waiting,omitempty"`
}

// TransferInput describes a transfer target: an agent, a queue, or both.
type TransferInput struct {
	UserEmail string     `json:"user_email,omitempty"`
	QueueUUID *uuid.UUID `json:"queue_uuid,omitempty"`
}

// BulkTransferInput applies one transfer target to a set of rooms.
type BulkTransferInput struct {
	RoomIDs []uuid.UUID `json:"rooms_list"`
	TransferInput
}

// CloseRoomInput carries close-time arguments.
type CloseRoomInput struct {
	TagIDs  []uuid.UUID    `json:"tags,omitempty"`
	EndedBy domain.EndedBy `json:"ended_by,omitempty"`
}

// BulkCloseResult reports per-room outcomes; every input room lands in exactly
// one bucket.
type BulkCloseResult struct {
	SuccessCount int               `json:"success_count"`
	FailedCount  int               `json:"failed_count"`
	FailedRooms  []uuid.UUID       `json:"failed_rooms"`
	Errors       map[string]string `json:"errors,omitempty"`
}

// HistoryInput is one record of a message-history import.
type HistoryInput struct {
	Direction   string    `json:"direction"`
	Text        string    `json:"text,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	CreatedOn   time.Time `json:"created_on"`
}

// SurveyInput is the CSAT webhook body.
type SurveyInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// RoomsReport is the minimal per-project room census generated by the
// background report path.
type RoomsReport struct {
	ProjectID   uuid.UUID `json:"project_id"`
	Total       int       `json:"total"`
	Queued      int       `json:"queued"`
	InProgress  int       `json:"in_progress"`
	Closed      int       `json:"closed"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Export event types drained by the outbox worker.
const (
	exportRoomAssigned = "livechat.room.assigned"
	exportRoomClosed   = "livechat.room.closed"
)
