package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/application"
	"github.com/viralforge/livechat/internal/domain"
)

// adminAuthMiddleware authenticates the flow-engine surface with a
// project-admin UUID bearer token.
func (h *Handler) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "admin_auth")
			return
		}
		token, err := uuid.Parse(raw)
		if err != nil {
			writeMappedError(r.Context(), w, "admin_auth", domain.ErrInvalidToken)
			return
		}
		perm, err := h.permissions.GetAdminByToken(r.Context(), token)
		if err != nil {
			writeMappedError(r.Context(), w, "admin_auth", err)
			return
		}
		actor := application.Actor{
			PermissionID: perm.ID,
			ProjectID:    perm.ProjectID,
			Email:        perm.UserEmail,
			Role:         perm.Role,
		}
		next.ServeHTTP(w, r.WithContext(contextWithActor(r.Context(), actor)))
	})
}

// userAuthMiddleware authenticates agent endpoints. A UUID-shaped bearer is
// treated as a project-admin token; anything else is resolved against the
// identity provider and scoped to the project given in the `project` query
// parameter or the X-Project-Uuid header.
func (h *Handler) userAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "user_auth")
			return
		}

		if token, err := uuid.Parse(raw); err == nil {
			perm, err := h.permissions.GetAdminByToken(r.Context(), token)
			if err != nil {
				writeMappedError(r.Context(), w, "user_auth", err)
				return
			}
			actor := application.Actor{
				PermissionID: perm.ID,
				ProjectID:    perm.ProjectID,
				Email:        perm.UserEmail,
				Role:         perm.Role,
			}
			next.ServeHTTP(w, r.WithContext(contextWithActor(r.Context(), actor)))
			return
		}

		projectRaw := r.URL.Query().Get("project")
		if projectRaw == "" {
			projectRaw = r.Header.Get("X-Project-Uuid")
		}
		projectID, err := uuid.Parse(projectRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "project uuid is required")
			return
		}

		email, err := h.identity.ResolveUserToken(r.Context(), raw)
		if err != nil {
			writeMappedError(r.Context(), w, "user_auth", err)
			return
		}
		perm, err := h.permissions.GetByProjectAndEmail(r.Context(), projectID, email)
		if err != nil {
			writeMappedError(r.Context(), w, "user_auth", domain.ErrPermissionDenied)
			return
		}
		actor := application.Actor{
			PermissionID: perm.ID,
			ProjectID:    perm.ProjectID,
			Email:        perm.UserEmail,
			Role:         perm.Role,
		}
		next.ServeHTTP(w, r.WithContext(contextWithActor(r.Context(), actor)))
	})
}

// internalAuthMiddleware gates trusted back-office endpoints behind the shared
// static service token.
func (h *Handler) internalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "internal_auth")
			return
		}
		if h.internalToken == "" ||
			subtle.ConstantTimeCompare([]byte(raw), []byte(h.internalToken)) != 1 {
			writeMappedError(r.Context(), w, "internal_auth", domain.ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}
