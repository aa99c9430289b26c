package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/ports"
)

// maxSurveyTokenTTL caps survey token lifetime regardless of configuration.
const maxSurveyTokenTTL = 24 * time.Hour

// SurveyTokenSigner implements HS256 signing for post-chat survey tokens.
// The secret is held at adapter level so application layer stays crypto-library agnostic.
type SurveyTokenSigner struct {
	secret []byte
}

func NewSurveyTokenSigner(secret string) (*SurveyTokenSigner, error) {
	if secret == "" {
		return nil, errors.New("survey token secret is required")
	}
	return &SurveyTokenSigner{secret: []byte(secret)}, nil
}

type surveyJWTClaims struct {
	Project string `json:"project"`
	Room    string `json:"room"`
	jwt.RegisteredClaims
}

func (s *SurveyTokenSigner) Sign(claims ports.SurveyClaims) (string, error) {
	expiresAt := claims.ExpiresAt
	if cap := claims.IssuedAt.Add(maxSurveyTokenTTL); expiresAt.After(cap) {
		expiresAt = cap
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, surveyJWTClaims{
		Project: claims.ProjectID.String(),
		Room:    claims.RoomID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	return token.SignedString(s.secret)
}

func (s *SurveyTokenSigner) Verify(raw string) (ports.SurveyClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &surveyJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return ports.SurveyClaims{}, err
	}
	claims, ok := parsed.Claims.(*surveyJWTClaims)
	if !ok || !parsed.Valid {
		return ports.SurveyClaims{}, errors.New("invalid token claims")
	}

	projectID, err := uuid.Parse(claims.Project)
	if err != nil {
		return ports.SurveyClaims{}, fmt.Errorf("parse project: %w", err)
	}
	roomID, err := uuid.Parse(claims.Room)
	if err != nil {
		return ports.SurveyClaims{}, fmt.Errorf("parse room: %w", err)
	}

	return ports.SurveyClaims{
		ProjectID: projectID,
		RoomID:    roomID,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
