package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SurveyClaims binds a survey token to one project and one room.
type SurveyClaims struct {
	ProjectID uuid.UUID
	RoomID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SurveyTokenSigner mints and validates the short-lived HS256 tokens handed
// to the flows engine for the post-chat survey webhook. TTLs above 24 h are
// clamped by implementations.
type SurveyTokenSigner interface {
	Sign(claims SurveyClaims) (string, error)
	Verify(raw string) (SurveyClaims, error)
}

// IdentityVerifier validates user bearer tokens against the external identity
// provider and returns the subject email, lowercased.
type IdentityVerifier interface {
	ResolveUserToken(ctx context.Context, raw string) (email string, err error)
}
