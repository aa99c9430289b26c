package ws

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/viralforge/livechat/internal/application"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// Handler owns the socket endpoints. Agents get presence-backed sockets,
// contacts a bare room subscription and supervisors a read-only view.
type Handler struct {
	service     *application.Service
	bus         ports.EventBus
	identity    ports.IdentityVerifier
	permissions ports.PermissionRepository
	upgrader    websocket.Upgrader
}

func NewHandler(
	service *application.Service,
	bus ports.EventBus,
	identity ports.IdentityVerifier,
	permissions ports.PermissionRepository,
) *Handler {
	return &Handler{
		service:     service,
		bus:         bus,
		identity:    identity,
		permissions: permissions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the product domains; origin policy
			// is enforced at the gateway.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes returns the socket route tree, mounted under /ws.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/agent/rooms", h.agentSocket)
	r.Get("/contact/room/{room_id}", h.contactSocket)
	r.Get("/manager/rooms", h.managerSocket)
	return r
}

// resolveActor authenticates a socket request. Sockets carry the bearer in the
// `token` query parameter because browsers cannot set headers on upgrades.
func (h *Handler) resolveActor(r *http.Request) (application.Actor, error) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw = r.Header.Get("Authorization")
		if len(raw) > 7 && raw[:7] == "Bearer " {
			raw = raw[7:]
		}
	}
	if raw == "" {
		return application.Actor{}, domain.ErrInvalidToken
	}

	if token, err := uuid.Parse(raw); err == nil {
		perm, err := h.permissions.GetAdminByToken(r.Context(), token)
		if err != nil {
			return application.Actor{}, err
		}
		return application.Actor{
			PermissionID: perm.ID,
			ProjectID:    perm.ProjectID,
			Email:        perm.UserEmail,
			Role:         perm.Role,
		}, nil
	}

	projectID, err := uuid.Parse(r.URL.Query().Get("project"))
	if err != nil {
		return application.Actor{}, domain.ErrInvalidInput
	}
	email, err := h.identity.ResolveUserToken(r.Context(), raw)
	if err != nil {
		return application.Actor{}, err
	}
	perm, err := h.permissions.GetByProjectAndEmail(r.Context(), projectID, email)
	if err != nil {
		return application.Actor{}, domain.ErrPermissionDenied
	}
	return application.Actor{
		PermissionID: perm.ID,
		ProjectID:    perm.ProjectID,
		Email:        perm.UserEmail,
		Role:         perm.Role,
	}, nil
}

// agentSocket is the presence socket. On connect the agent is registered in
// the presence store and subscribed to its permission group and to every
// queue it is authorized on.
func (h *Handler) agentSocket(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	connID, err := h.service.ConnectPresence(r.Context(), actor.PermissionID)
	if err != nil {
		http.Error(w, "presence registration failed", http.StatusInternalServerError)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = h.service.DisconnectPresence(r.Context(), actor.PermissionID, connID)
		return
	}

	session := newSession(h.bus, socket)
	session.subscribe("permission_" + actor.PermissionID.String())
	if queues, err := h.permissions.ListAuthorizedQueues(r.Context(), actor.PermissionID); err == nil {
		for _, queue := range queues {
			session.subscribe("queue_" + queue.ID.String())
		}
	}

	session.run(r.Context(), sessionHooks{
		onPing: func() {
			_ = h.service.HeartbeatPresence(r.Context(), actor.PermissionID, connID)
		},
		onClose: func() {
			_ = h.service.DisconnectPresence(r.Context(), actor.PermissionID, connID)
		},
	})
}

// contactSocket subscribes the contact to its room group. No presence.
func (h *Handler) contactSocket(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "room_id"))
	if err != nil {
		http.Error(w, "room_id must be a uuid", http.StatusBadRequest)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	session := newSession(h.bus, socket)
	session.subscribe("room_" + roomID.String())
	session.run(r.Context(), sessionHooks{})
}

// managerSocket is the supervisor view: requires the admin role, watches an
// agent's groups and never registers presence.
func (h *Handler) managerSocket(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !actor.IsAdmin() {
		http.Error(w, "manager role required", http.StatusForbidden)
		return
	}

	target := actor
	if email := r.URL.Query().Get("user_email"); email != "" {
		perm, err := h.permissions.GetByProjectAndEmail(r.Context(), actor.ProjectID, domain.NormalizeEmail(email))
		if err != nil {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}
		target = application.Actor{
			PermissionID: perm.ID,
			ProjectID:    perm.ProjectID,
			Email:        perm.UserEmail,
			Role:         perm.Role,
		}
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	session := newSession(h.bus, socket)
	session.subscribe("permission_" + target.PermissionID.String())
	if queues, err := h.permissions.ListAuthorizedQueues(r.Context(), target.PermissionID); err == nil {
		for _, queue := range queues {
			session.subscribe("queue_" + queue.ID.String())
		}
	}
	session.run(r.Context(), sessionHooks{})
}
