package ports

import (
	"context"

	"github.com/google/uuid"
)

// FlowStartParams carries the CSAT trigger payload to the flows engine.
type FlowStartParams struct {
	RoomID     uuid.UUID
	Token      string
	WebhookURL string
}

// FlowsClient is the external workflow runner. Implementations retry bounded
// times on auth failures with a token refresh and fail fast on 5xx so the
// enclosing operation can roll back. Never call it while holding a DB lock.
type FlowsClient interface {
	StartFlow(ctx context.Context, flowUUID uuid.UUID, urns []string, params FlowStartParams) error
	// UpdateTicketAssignee mirrors an agent assignment onto the flow engine's
	// ticket for the room.
	UpdateTicketAssignee(ctx context.Context, ticketUUID uuid.UUID, userEmail string) error
	// UpdateContactFields propagates custom-field edits to the messaging
	// platform before they are applied locally.
	UpdateContactFields(ctx context.Context, projectID uuid.UUID, contactExternalID string, fields map[string]any) error
	// GetProjectFlowUUID resolves the per-project CSAT flow definition.
	GetProjectFlowUUID(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error)
}
