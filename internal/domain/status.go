package domain

import (
	"time"

	"github.com/google/uuid"
)

// InServiceTypeName names the system-managed status type that tracks the time
// an agent spends with at least one active assigned room.
const InServiceTypeName = "In-Service"

// MaxUserStatusTypes caps user-created status types per project.
const MaxUserStatusTypes = 10

// CustomStatusType is a per-project named status kind. System-created types
// (In-Service) are flagged through config and never count against the cap.
type CustomStatusType struct {
	ID              uuid.UUID
	ProjectID       uuid.UUID
	Name            string
	IsDeleted       bool
	CreatedBySystem bool
	CreatedAt       time.Time
}

// CustomStatus is one stretch of a custom status for an agent. At most one is
// active per (user, project); BreakTime is filled at close from the wall-clock
// delta computed in the project's timezone.
type CustomStatus struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	UserEmail    string
	StatusTypeID uuid.UUID
	IsActive     bool
	BreakTime    int
	CreatedOn    time.Time
}

// BreakSeconds computes the closed-status duration with both endpoints
// converted to the project timezone, avoiding DST seam drift on naive math.
func BreakSeconds(createdOn, endedAt time.Time, loc *time.Location) int {
	delta := endedAt.In(loc).Sub(createdOn.In(loc))
	if delta < 0 {
		return 0
	}
	return int(delta.Seconds())
}
