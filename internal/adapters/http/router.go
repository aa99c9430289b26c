package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/viralforge/livechat/internal/application"
	"github.com/viralforge/livechat/internal/ports"
)

// Handler is the HTTP adapter entrypoint for the chat engine use-cases.
// Auth resolution lives here; the application service only ever sees an Actor.
type Handler struct {
	service       *application.Service
	identity      ports.IdentityVerifier
	permissions   ports.PermissionRepository
	internalToken string
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(
	service *application.Service,
	identity ports.IdentityVerifier,
	permissions ports.PermissionRepository,
	internalToken string,
) *Handler {
	return &Handler{
		service:       service,
		identity:      identity,
		permissions:   permissions,
		internalToken: internalToken,
	}
}

// NewRouter registers the engine's HTTP routes and middleware stack. The
// websocket handler is mounted when provided; the worker process runs the
// router without it.
func NewRouter(handler *Handler, ws http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(chimiddleware.StripSlashes)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	// Flow-engine ingress, project-admin token only.
	r.Route("/external", func(r chi.Router) {
		r.Use(handler.adminAuthMiddleware)
		r.Post("/rooms", handler.createExternalRoom)
		r.Post("/rooms/{room_id}/history", handler.importHistory)
		r.Patch("/rooms/{room_id}/close", handler.closeRoom)
		r.Put("/rooms/{room_id}/close", handler.closeRoom)
		r.Patch("/room_agent/{ticket}", handler.assignExternalAgent)
		r.Patch("/custom_field/{contact}", handler.updateCustomFields)
	})

	// Agent surface, user or project-admin token.
	r.Route("/room", func(r chi.Router) {
		r.Use(handler.userAuthMiddleware)
		r.Get("/", handler.listRooms)
		r.Patch("/bulk_transfer", handler.bulkTransfer)
		r.Post("/bulk_close", handler.bulkClose)
		r.Post("/report", handler.generateRoomsReport)
		r.Get("/{room_id}", handler.getRoom)
		r.Patch("/{room_id}", handler.transferRoom)
		r.Patch("/{room_id}/pick_queue_room", handler.pickQueueRoom)
		r.Patch("/{room_id}/close", handler.closeRoom)
		r.Post("/{room_id}/tags/add", handler.addRoomTag)
		r.Post("/{room_id}/tags/remove", handler.removeRoomTag)
		r.Post("/{room_id}/pin", handler.pinRoom)
		r.Get("/{room_id}/can-send-message-status", handler.canSendMessage)
		r.Post("/{room_id}/notes", handler.createRoomNote)
		r.Get("/{room_id}/notes", handler.listRoomNotes)
		r.Delete("/{room_id}/notes/{note_id}", handler.deleteRoomNote)
		r.Post("/{room_id}/messages/seen", handler.markMessagesSeen)
	})

	r.Route("/status", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.userAuthMiddleware)
			r.Post("/custom", handler.startCustomStatus)
			r.Patch("/custom/{status_id}/close", handler.closeCustomStatus)
			r.Post("/custom-types", handler.createStatusType)
			r.Get("/custom-types", handler.listStatusTypes)
			r.Delete("/custom-types/{type_id}", handler.deleteStatusType)
			r.Patch("/presence", handler.setPresence)
		})
		r.Group(func(r chi.Router) {
			r.Use(handler.internalAuthMiddleware)
			r.Post("/disconnect", handler.adminDisconnect)
		})
	})

	// Survey webhook, authenticated by the signed survey token itself.
	r.Post("/internal/csat/{project_id}/{room_id}", handler.submitSurvey)

	if ws != nil {
		r.Mount("/ws", ws)
	}

	return r
}
