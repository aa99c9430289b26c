package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// startSurveyAsync fires the post-chat survey after a close commits. The
// flows call never runs inside a DB transaction.
func (s *Service) startSurveyAsync(ctx context.Context, room domain.Room) {
	detached := context.WithoutCancel(ctx)
	s.runAsync(func() {
		if err := s.StartSurvey(detached, room.ID); err != nil {
			appLogger().WarnContext(detached, "csat start failed",
				"operation", "csat_start",
				"outcome", "failure",
				"room", room.ID.String(),
				"error", err.Error(),
			)
		}
	})
}

// StartSurvey resolves the project's CSAT flow, mints a room-bound token and
// asks the flow engine to run the survey against the room's urn.
func (s *Service) StartSurvey(ctx context.Context, roomID uuid.UUID) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsActive {
		return domain.ErrSurveyRoomOpen
	}
	exists, err := s.surveys.ExistsByRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrSurveyExists
	}

	flowUUID, err := s.resolveSurveyFlow(ctx, room.ProjectID)
	if err != nil {
		return err
	}

	now := s.nowFn()
	token, err := s.surveySigner.Sign(ports.SurveyClaims{
		ProjectID: room.ProjectID,
		RoomID:    room.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.SurveyTokenTTL),
	})
	if err != nil {
		return err
	}

	return s.flows.StartFlow(ctx, flowUUID, []string{room.URN}, ports.FlowStartParams{
		RoomID:     room.ID,
		Token:      token,
		WebhookURL: s.cfg.SurveyWebhookURL,
	})
}

// resolveSurveyFlow finds the per-project CSAT flow uuid cache-first. On a
// cache miss the flows config service is asked and both a short-TTL primary
// and a long-TTL fallback entry are written; when the config service is down
// the fallback entry keeps surveys flowing.
func (s *Service) resolveSurveyFlow(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	primaryKey := "csat_flow_" + projectID.String()
	fallbackKey := primaryKey + "_fallback"

	if raw, found, err := s.configCache.Get(ctx, primaryKey); err == nil && found {
		if raw == "" {
			return uuid.Nil, fmt.Errorf("%w: no csat flow configured", domain.ErrNotFound)
		}
		if flowUUID, parseErr := uuid.Parse(raw); parseErr == nil {
			return flowUUID, nil
		}
	}

	flowUUID, err := s.flows.GetProjectFlowUUID(ctx, projectID)
	if err != nil {
		if raw, found, cacheErr := s.configCache.Get(ctx, fallbackKey); cacheErr == nil && found && raw != "" {
			if cached, parseErr := uuid.Parse(raw); parseErr == nil {
				return cached, nil
			}
		}
		return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrFlowsUnavailable, err)
	}
	if flowUUID == uuid.Nil {
		// Cache the miss briefly so a misconfigured project does not hammer
		// the config service.
		_ = s.configCache.SetNegative(ctx, primaryKey, s.cfg.FlowUUIDNegativeTTL)
		return uuid.Nil, fmt.Errorf("%w: no csat flow configured", domain.ErrNotFound)
	}

	_ = s.configCache.Set(ctx, primaryKey, flowUUID.String(), s.cfg.FlowUUIDCacheTTL)
	_ = s.configCache.Set(ctx, fallbackKey, flowUUID.String(), s.cfg.FlowUUIDFallbackTTL)
	return flowUUID, nil
}

// SubmitSurvey validates and persists the survey webhook response. The token
// must decode and match the path's project and room; the room must exist,
// be closed, belong to the project and have no survey yet.
func (s *Service) SubmitSurvey(ctx context.Context, rawToken string, projectID, roomID uuid.UUID, input SurveyInput) (domain.CSATSurvey, error) {
	claims, err := s.surveySigner.Verify(rawToken)
	if err != nil {
		return domain.CSATSurvey{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if claims.ProjectID != projectID || claims.RoomID != roomID {
		return domain.CSATSurvey{}, domain.ErrSurveyRoomMismatch
	}
	if input.Rating < 1 || input.Rating > 5 {
		return domain.CSATSurvey{}, fmt.Errorf("%w: rating must be within [1,5]", domain.ErrInvalidInput)
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return domain.CSATSurvey{}, domain.ErrSurveyRoomMismatch
	}
	if room.ProjectID != projectID {
		return domain.CSATSurvey{}, domain.ErrSurveyRoomMismatch
	}
	if room.IsActive {
		return domain.CSATSurvey{}, domain.ErrSurveyRoomOpen
	}
	exists, err := s.surveys.ExistsByRoom(ctx, roomID)
	if err != nil {
		return domain.CSATSurvey{}, err
	}
	if exists {
		return domain.CSATSurvey{}, domain.ErrSurveyExists
	}

	return s.surveys.Create(ctx, domain.CSATSurvey{
		ID:         uuid.New(),
		RoomID:     roomID,
		Rating:     input.Rating,
		Comment:    input.Comment,
		AnsweredOn: s.nowFn(),
	})
}
