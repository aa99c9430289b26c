package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidToken covers missing, malformed and expired bearer tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrPermissionDenied signals that the caller lacks project, sector or queue scope.
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidAction    = errors.New("invalid action")

	// ErrRoomNotActive rejects any mutation attempted on a closed room.
	ErrRoomNotActive = errors.New("room not active")
	// ErrRoomNotQueued rejects a pick on a room that already has an agent.
	ErrRoomNotQueued = errors.New("room is not queued")
	// ErrRoomStillQueued rejects operations that need an assigned agent while
	// the room still waits in a queue.
	ErrRoomStillQueued = errors.New("room is still queued")
	// ErrRoomAlreadyAssigned guards external attribution against double assignment.
	ErrRoomAlreadyAssigned = errors.New("room already has an assigned user")
	// ErrNotRoomUser rejects room mutations from agents other than the assignee.
	ErrNotRoomUser = errors.New("user is not the room user")
	// ErrQueuedRoomCloseDisabled rejects an agent close on a queued room when the
	// sector does not allow it and the caller is not an admin.
	ErrQueuedRoomCloseDisabled = errors.New("queued room close disabled")
	// ErrDuplicateActiveRoom maps the partial unique index on (contact, queue).
	ErrDuplicateActiveRoom = errors.New("contact already has an active room in this queue")

	// ErrTagsRequired blocks closing when the queue demands at least one tag.
	ErrTagsRequired = errors.New("tags required")
	// ErrTagNotFound rejects tags that do not belong to the room's sector.
	ErrTagNotFound = errors.New("tag not found in sector")

	// ErrMaxPinLimit enforces the per-user pin cap within a project.
	ErrMaxPinLimit = errors.New("max pin limit reached")
	// ErrNoteLocked rejects deleting notes after the room has been transferred.
	ErrNoteLocked = errors.New("note can no longer be deleted")

	// ErrCustomStatusActive rejects opening a second non-system custom status.
	ErrCustomStatusActive = errors.New("custom status already active")
	// ErrCustomStatusNotLast rejects closing a custom status that is not the
	// last active one for the agent.
	ErrCustomStatusNotLast = errors.New("custom status is not the last active")
	// ErrStatusTypeLimit enforces the cap of user-created status types per project.
	ErrStatusTypeLimit = errors.New("custom status type limit reached")
	// ErrUserAlreadyDisconnected makes admin disconnect idempotent-safe.
	ErrUserAlreadyDisconnected = errors.New("user already disconnected")

	// ErrSurveyExists enforces the one-survey-per-room invariant.
	ErrSurveyExists = errors.New("survey already exists for room")
	// ErrSurveyRoomMismatch rejects survey webhooks whose token does not match
	// the target project and room.
	ErrSurveyRoomMismatch = errors.New("survey token does not match room")
	// ErrSurveyRoomOpen rejects surveys on rooms that have not been closed yet.
	ErrSurveyRoomOpen = errors.New("room is still open")

	// ErrFlowsUnavailable is returned after the flows-engine retry budget is
	// exhausted; the enclosing transaction must roll back.
	ErrFlowsUnavailable = errors.New("flows engine unavailable")
	// ErrReportInProgress refuses concurrent report generation per project.
	ErrReportInProgress = errors.New("report generation already in progress")
	// ErrLostRace marks an internal consistency failure, e.g. the dispatcher
	// selected an agent that was taken concurrently. Callers retry once.
	ErrLostRace = errors.New("internal consistency error")
)
