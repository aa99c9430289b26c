package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// Service is the room lifecycle, routing and agent status engine. All state
// transitions go through it; HTTP, websocket and gRPC adapters stay thin.
type Service struct {
	cfg Config

	tx          ports.TxManager
	rooms       ports.RoomRepository
	messages    ports.MessageRepository
	metrics     ports.MetricsRepository
	pins        ports.PinRepository
	notes       ports.NoteRepository
	permissions ports.PermissionRepository
	directory   ports.DirectoryRepository
	contacts    ports.ContactRepository
	statuses    ports.StatusRepository
	surveys     ports.SurveyRepository
	outbox      ports.OutboxRepository

	presence    ports.PresenceStore
	queueLocks  ports.QueueLocker
	configCache ports.ConfigCache
	reports     ports.ReportGuard

	bus          ports.EventBus
	flows        ports.FlowsClient
	surveySigner ports.SurveyTokenSigner

	nowFn  func() time.Time
	randFn func(n int) int
	// asyncFn runs post-commit work (dispatcher cycles, CSAT starts). The
	// default detaches a goroutine; tests replace it with a synchronous call.
	asyncFn func(fn func())
}

// Dependencies bundles everything the service needs; missing optional pieces
// (bus, flows) are replaced by no-ops so unit fixtures stay small.
type Dependencies struct {
	Config Config

	Tx          ports.TxManager
	Rooms       ports.RoomRepository
	Messages    ports.MessageRepository
	Metrics     ports.MetricsRepository
	Pins        ports.PinRepository
	Notes       ports.NoteRepository
	Permissions ports.PermissionRepository
	Directory   ports.DirectoryRepository
	Contacts    ports.ContactRepository
	Statuses    ports.StatusRepository
	Surveys     ports.SurveyRepository
	Outbox      ports.OutboxRepository

	Presence    ports.PresenceStore
	QueueLocks  ports.QueueLocker
	ConfigCache ports.ConfigCache
	Reports     ports.ReportGuard

	Bus          ports.EventBus
	Flows        ports.FlowsClient
	SurveySigner ports.SurveyTokenSigner
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.PresenceTTL <= 0 {
		cfg.PresenceTTL = 60 * time.Second
	}
	if cfg.QueueLockTTL <= 0 {
		cfg.QueueLockTTL = 30 * time.Second
	}
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 100
	}
	if cfg.SurveyTokenTTL <= 0 || cfg.SurveyTokenTTL > 24*time.Hour {
		cfg.SurveyTokenTTL = 24 * time.Hour
	}
	if cfg.FlowUUIDCacheTTL <= 0 {
		cfg.FlowUUIDCacheTTL = 5 * time.Minute
	}
	if cfg.FlowUUIDFallbackTTL <= 0 {
		cfg.FlowUUIDFallbackTTL = 24 * time.Hour
	}
	if cfg.FlowUUIDNegativeTTL <= 0 {
		cfg.FlowUUIDNegativeTTL = time.Minute
	}
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = 10 * time.Minute
	}
	if cfg.DefaultMaxPins <= 0 {
		cfg.DefaultMaxPins = 5
	}

	s := &Service{
		cfg:          cfg,
		tx:           deps.Tx,
		rooms:        deps.Rooms,
		messages:     deps.Messages,
		metrics:      deps.Metrics,
		pins:         deps.Pins,
		notes:        deps.Notes,
		permissions:  deps.Permissions,
		directory:    deps.Directory,
		contacts:     deps.Contacts,
		statuses:     deps.Statuses,
		surveys:      deps.Surveys,
		outbox:       deps.Outbox,
		presence:     deps.Presence,
		queueLocks:   deps.QueueLocks,
		configCache:  deps.ConfigCache,
		reports:      deps.Reports,
		bus:          deps.Bus,
		flows:        deps.Flows,
		surveySigner: deps.SurveySigner,
		nowFn:        func() time.Time { return time.Now().UTC() },
		randFn:       rand.Intn,
		asyncFn:      func(fn func()) { go fn() },
	}
	return s
}

func appLogger() *slog.Logger {
	return slog.Default().With(
		"module", "application",
		"layer", "application",
	)
}

// publish fires one bus event; failures are logged and swallowed so a broken
// fanout can never corrupt engine state.
func (s *Service) publish(ctx context.Context, group string, event ports.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, group, event); err != nil {
		appLogger().WarnContext(ctx, "event publish failed",
			"operation", "bus_publish",
			"outcome", "failure",
			"group", group,
			"event_type", event.Type,
			"error", err.Error(),
		)
	}
}

func (s *Service) notifyQueue(ctx context.Context, queueID uuid.UUID, action string, room domain.Room) {
	s.publish(ctx, "queue_"+queueID.String(), ports.Event{
		Type:    "room." + action,
		Action:  action,
		Content: roomContent(room),
	})
}

func (s *Service) notifyRoom(ctx context.Context, room domain.Room, eventType, action string, content map[string]any) {
	if content == nil {
		content = roomContent(room)
	}
	s.publish(ctx, room.GroupName(), ports.Event{Type: eventType, Action: action, Content: content})
}

func (s *Service) notifyPermission(ctx context.Context, permissionID uuid.UUID, eventType, action string, content map[string]any) {
	s.publish(ctx, "permission_"+permissionID.String(), ports.Event{Type: eventType, Action: action, Content: content})
}

// notifyUserRoom publishes a room event on the agent's permission group,
// resolving the permission by (project, email).
func (s *Service) notifyUserRoom(ctx context.Context, projectID uuid.UUID, email, action string, room domain.Room) {
	perm, err := s.permissions.GetByProjectAndEmail(ctx, projectID, email)
	if err != nil {
		return
	}
	s.notifyPermission(ctx, perm.ID, "room."+action, action, roomContent(room))
}

func roomContent(room domain.Room) map[string]any {
	content := map[string]any{
		"uuid":       room.ID.String(),
		"project":    room.ProjectID.String(),
		"is_active":  room.IsActive,
		"is_waiting": room.IsWaiting,
		"urn":        room.URN,
		"created_on": room.CreatedOn,
	}
	if room.QueueID != nil {
		content["queue"] = room.QueueID.String()
	}
	if room.UserEmail != nil {
		content["user"] = *room.UserEmail
	}
	if room.EndedAt != nil {
		content["ended_at"] = *room.EndedAt
	}
	return content
}

// feedback writes a system message narrating an engine action inside the
// transaction that performed it.
func feedback(ctx context.Context, tx ports.RepoSet, room domain.Room, method domain.FeedbackMethod, payload map[string]any, at time.Time) error {
	_, err := tx.Messages.Create(ctx, domain.Message{
		ID:              uuid.New(),
		RoomID:          room.ID,
		Text:            "",
		CreatedOn:       at,
		FeedbackMethod:  method,
		FeedbackPayload: payload,
	})
	return err
}

// enqueueExport records an analytics/billing export event in the transaction
// so the outbox worker can deliver it after commit.
func enqueueExport(ctx context.Context, tx ports.RepoSet, eventType string, room domain.Room, at time.Time) error {
	payload, err := json.Marshal(roomContent(room))
	if err != nil {
		return err
	}
	return tx.Outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: room.ProjectID.String(),
		Payload:      payload,
		OccurredAt:   at,
	})
}

// runAsync detaches post-commit work with panic isolation.
func (s *Service) runAsync(fn func()) {
	s.asyncFn(func() {
		defer func() {
			if rec := recover(); rec != nil {
				appLogger().Error("async task panic recovered",
					"operation", "async_task",
					"outcome", "failure",
					"panic", rec,
				)
			}
		}()
		fn()
	})
}
