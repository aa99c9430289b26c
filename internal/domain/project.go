package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoutingType selects how new rooms reach agents within a project.
type RoutingType string

const (
	// RoutingGeneral attempts one immediate assignment at room creation and
	// otherwise leaves the room queued for manual picking.
	RoutingGeneral RoutingType = "GENERAL"
	// RoutingQueuePriority keeps every new room queued and relies on the
	// asynchronous per-queue dispatcher.
	RoutingQueuePriority RoutingType = "QUEUE_PRIORITY"
)

// Project is the tenant root. All child entities belong to exactly one project
// and the engine treats it as immutable for the duration of an operation.
type Project struct {
	ID            uuid.UUID
	Name          string
	Timezone      string
	DateFormat    string
	OrgID         uuid.UUID
	RoutingType   RoutingType
	RoutingOption string
	Config        map[string]any
	MaxPins       int
	CreatedAt     time.Time
}

// Location resolves the project timezone, falling back to UTC on bad data.
func (p Project) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Sector is a unit of work inside a project carrying working hours and the
// per-agent room limit the dispatcher enforces.
type Sector struct {
	ID                   uuid.UUID
	ProjectID            uuid.UUID
	Name                 string
	WorkStart            string
	WorkEnd              string
	RoomsLimit           int
	CSATEnabled          bool
	AutomaticMessage     bool
	AutomaticMessageText string
	CanCloseChatsInQueue bool
}

// Queue is a routing lane within a sector.
type Queue struct {
	ID           uuid.UUID
	SectorID     uuid.UUID
	ProjectID    uuid.UUID
	Name         string
	RequiredTags bool
	CreatedAt    time.Time
}

// SectorTag labels rooms; a room may only carry tags of its own sector.
type SectorTag struct {
	ID       uuid.UUID
	SectorID uuid.UUID
	Name     string
}

// PermissionRole orders agent capabilities within a project.
type PermissionRole int

const (
	RoleAttendant PermissionRole = 1
	RoleAdmin     PermissionRole = 2
)

// PresenceStatus is the user-selected presence stored on the permission.
// It is orthogonal to the derived In-Service custom status.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "ONLINE"
	StatusOffline PresenceStatus = "OFFLINE"
	StatusAway    PresenceStatus = "AWAY"
	StatusBusy    PresenceStatus = "BUSY"
)

// ProjectPermission binds an agent to a project. Unique per (project, email).
type ProjectPermission struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	UserEmail      string
	UserFirstName  string
	Role           PermissionRole
	Status         PresenceStatus
	FirstAccess    bool
	LastSeenOnline *time.Time
}

// GroupName is the event-bus group carrying this permission's updates.
func (p ProjectPermission) GroupName() string {
	return "permission_" + p.ID.String()
}

// QueueAuthorization grants a permission access to a single queue.
type QueueAuthorization struct {
	ID           uuid.UUID
	PermissionID uuid.UUID
	QueueID      uuid.UUID
	Role         PermissionRole
}

// SectorAuthorization grants a permission access to every queue of a sector.
type SectorAuthorization struct {
	ID           uuid.UUID
	PermissionID uuid.UUID
	SectorID     uuid.UUID
	Role         PermissionRole
}

// Contact is the external party of a room, global to a project.
type Contact struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	ExternalID   string
	Name         string
	URN          string
	LinkedUser   string
	CustomFields map[string]any
	CreatedAt    time.Time
}

// NormalizeEmail lowercases and trims agent emails; agents are addressed by
// lowercased email everywhere in the engine.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
