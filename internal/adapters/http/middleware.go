package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/application"
	"github.com/viralforge/livechat/internal/domain"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyActor     ctxKey = "actor"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpLogger().ErrorContext(r.Context(), "panic recovered",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"request_id", requestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		outcome := "success"
		if statusCode >= 400 {
			outcome = "failure"
		}

		fields := []any{
			"operation", "http_request",
			"outcome", outcome,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		}
		switch {
		case statusCode >= 500:
			httpLogger().ErrorContext(r.Context(), "http request completed", fields...)
		case statusCode >= 400:
			httpLogger().WarnContext(r.Context(), "http request completed", fields...)
		default:
			httpLogger().InfoContext(r.Context(), "http request completed", fields...)
		}
	})
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(ctxKeyRequestID)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func actorFromContext(ctx context.Context) (application.Actor, bool) {
	v := ctx.Value(ctxKeyActor)
	actor, ok := v.(application.Actor)
	return actor, ok
}

func contextWithActor(ctx context.Context, actor application.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// mapDomainError translates domain sentinels to the stable wire error codes.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, domain.ErrInvalidAction):
		return http.StatusBadRequest, "invalid_action", err.Error()
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token", "invalid or missing credentials"
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied", "permission denied"
	case errors.Is(err, domain.ErrRoomNotActive):
		return http.StatusBadRequest, "room_not_active", "room is not active"
	case errors.Is(err, domain.ErrRoomNotQueued):
		return http.StatusBadRequest, "room_is_not_queued", "room is not queued"
	case errors.Is(err, domain.ErrRoomStillQueued):
		return http.StatusBadRequest, "room_is_queued", "room is still queued"
	case errors.Is(err, domain.ErrRoomAlreadyAssigned):
		return http.StatusBadRequest, "room_already_assigned", "room already has an assigned user"
	case errors.Is(err, domain.ErrNotRoomUser):
		return http.StatusForbidden, "user_is_not_the_room_user", "user is not the room user"
	case errors.Is(err, domain.ErrQueuedRoomCloseDisabled):
		return http.StatusForbidden, "queued_room_close_disabled", "queued room close is disabled for this sector"
	case errors.Is(err, domain.ErrDuplicateActiveRoom):
		return http.StatusBadRequest, "duplicate_active_room", "contact already has an active room in this queue"
	case errors.Is(err, domain.ErrTagsRequired):
		return http.StatusBadRequest, "tags_required", "queue requires at least one tag on close"
	case errors.Is(err, domain.ErrTagNotFound):
		return http.StatusBadRequest, "tag_not_found", "tag not found in sector"
	case errors.Is(err, domain.ErrMaxPinLimit):
		return http.StatusBadRequest, "max_pin_limit", "max pin limit reached"
	case errors.Is(err, domain.ErrNoteLocked):
		return http.StatusBadRequest, "note_locked", "note can no longer be deleted"
	case errors.Is(err, domain.ErrCustomStatusActive):
		return http.StatusBadRequest, "custom_status_active", "a custom status is already active"
	case errors.Is(err, domain.ErrCustomStatusNotLast):
		return http.StatusBadRequest, "custom_status_not_last", "custom status is not the last active"
	case errors.Is(err, domain.ErrStatusTypeLimit):
		return http.StatusBadRequest, "custom_status_type_limit", "custom status type limit reached"
	case errors.Is(err, domain.ErrUserAlreadyDisconnected):
		return http.StatusBadRequest, "user_already_disconnected", "user already disconnected"
	case errors.Is(err, domain.ErrSurveyExists):
		return http.StatusForbidden, "csat_already_exists", "survey already exists for room"
	case errors.Is(err, domain.ErrSurveyRoomMismatch):
		return http.StatusForbidden, "csat_room_mismatch", "survey token does not match room"
	case errors.Is(err, domain.ErrSurveyRoomOpen):
		return http.StatusForbidden, "csat_room_open", "room is still open"
	case errors.Is(err, domain.ErrReportInProgress):
		return http.StatusConflict, "report_in_progress", "report generation already in progress"
	case errors.Is(err, domain.ErrFlowsUnavailable):
		return http.StatusBadGateway, "flows_engine_unavailable", "flows engine unavailable"
	case errors.Is(err, domain.ErrLostRace):
		return http.StatusInternalServerError, "internal_consistency_error", "internal consistency error"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "resource not found"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}
