package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EndedBy records which side terminated a room.
type EndedBy string

const (
	EndedByAgent   EndedBy = "agent"
	EndedByContact EndedBy = "contact"
	EndedBySystem  EndedBy = "system"
)

// TransferAction tags entries of a room's transfer history. The set is closed;
// unknown actions are rejected at the edges.
type TransferAction string

const (
	TransferForward    TransferAction = "forward"
	TransferPick       TransferAction = "pick"
	TransferAutoAssign TransferAction = "auto_assign_from_queue"
)

// TransferRecord is one ordered entry of a room's transfer history.
type TransferRecord struct {
	Action        TransferAction `json:"action"`
	From          string         `json:"from"`
	To            string         `json:"to"`
	TransferredBy string         `json:"transferred_by,omitempty"`
	TransferredAt time.Time      `json:"transferred_at"`
}

// Room is a single conversation session between one contact and, eventually,
// one agent within one queue.
//
// State is derived, never stored: a room with no user and IsActive=true is
// Queued, with a user it is InProgress, and IsActive=false is Closed. The
// IsActive/EndedAt pairing is an invariant: active rooms have no EndedAt.
type Room struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	SectorID  uuid.UUID
	QueueID   *uuid.UUID
	ContactID uuid.UUID

	UserEmail *string

	IsActive  bool
	IsWaiting bool
	URN       string

	CreatedOn              time.Time
	EndedAt                *time.Time
	EndedBy                EndedBy
	LastInteraction        *time.Time
	LastContactInteraction *time.Time
	UserAssignedAt         *time.Time
	AddedToQueueAt         *time.Time

	TransferHistory []TransferRecord
	CustomFields    map[string]any
	TagIDs          []uuid.UUID

	TicketUUID  *uuid.UUID
	CallbackURL string
}

// IsQueued reports whether the room waits in a queue for an agent.
func (r Room) IsQueued() bool {
	return r.IsActive && r.UserEmail == nil
}

// AssignedTo reports whether the given agent currently owns the room.
func (r Room) AssignedTo(email string) bool {
	return r.UserEmail != nil && *r.UserEmail == NormalizeEmail(email)
}

// GroupName is the event-bus group carrying this room's updates.
func (r Room) GroupName() string {
	return "room_" + r.ID.String()
}

// Is24hValid reports whether an outbound free-form message is still allowed.
// The window applies to WhatsApp-scheme urns only; other schemes are always valid.
func (r Room) Is24hValid(now time.Time) bool {
	if !strings.HasPrefix(r.URN, "whatsapp:") {
		return true
	}
	if r.LastContactInteraction == nil {
		return false
	}
	return now.Sub(*r.LastContactInteraction) < 24*time.Hour
}

// RoomMetrics accumulates per-room counters across the room's lifetime.
// WaitingTime sums every stretch spent in a queue, including re-queues.
type RoomMetrics struct {
	RoomID              uuid.UUID
	WaitingTime         int
	QueuedCount         int
	TransferCount       int
	FirstResponseTime   int
	MessageResponseTime int
	InteractionTime     int
}

// RoomPin keeps a room at the top of an agent's list. At most Project.MaxPins
// pins per (user, project).
type RoomPin struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	UserEmail string
	CreatedOn time.Time
}

// RoomNote is agent-authored room annotation. Notes become non-deletable the
// moment the room is transferred.
type RoomNote struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	UserEmail string
	Text      string
	Locked    bool
	CreatedOn time.Time
}

// CSATSurvey is the one-to-one post-chat survey result, created only after close.
type CSATSurvey struct {
	ID         uuid.UUID
	RoomID     uuid.UUID
	Rating     int
	Comment    string
	AnsweredOn time.Time
}
