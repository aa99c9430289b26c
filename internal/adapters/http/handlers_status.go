package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/application"
	"github.com/viralforge/livechat/internal/domain"
)

func (h *Handler) startCustomStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var body struct {
		StatusType uuid.UUID `json:"status_type"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "start_custom_status", err)
		return
	}

	status, err := h.service.StartCustomStatus(r.Context(), actor, body.StatusType)
	if err != nil {
		writeMappedError(r.Context(), w, "start_custom_status", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toCustomStatusResponse(status))
}

func (h *Handler) closeCustomStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	statusID, err := pathUUID(r, "status_id")
	if err != nil {
		writeValidationError(r.Context(), w, "close_custom_status", err)
		return
	}

	var body struct {
		SetOnline bool `json:"set_online"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			writeValidationError(r.Context(), w, "close_custom_status", err)
			return
		}
	}

	if err := h.service.CloseCustomStatus(r.Context(), actor, statusID, body.SetOnline); err != nil {
		writeMappedError(r.Context(), w, "close_custom_status", err)
		return
	}
	writeMessage(w, http.StatusOK, "custom status closed")
}

func (h *Handler) createStatusType(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "create_status_type", err)
		return
	}

	statusType, err := h.service.CreateStatusType(r.Context(), actor, body.Name)
	if err != nil {
		writeMappedError(r.Context(), w, "create_status_type", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toStatusTypeResponse(statusType))
}

func (h *Handler) listStatusTypes(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	types, err := h.service.ListStatusTypes(r.Context(), actor)
	if err != nil {
		writeMappedError(r.Context(), w, "list_status_types", err)
		return
	}
	out := make([]statusTypeResponse, 0, len(types))
	for _, t := range types {
		out = append(out, toStatusTypeResponse(t))
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) deleteStatusType(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	typeID, err := pathUUID(r, "type_id")
	if err != nil {
		writeValidationError(r.Context(), w, "delete_status_type", err)
		return
	}

	if err := h.service.DeleteStatusType(r.Context(), actor, typeID); err != nil {
		writeMappedError(r.Context(), w, "delete_status_type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setPresence(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var body struct {
		Status domain.PresenceStatus `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "set_presence", err)
		return
	}

	if err := h.service.SetPresence(r.Context(), actor, body.Status); err != nil {
		writeMappedError(r.Context(), w, "set_presence", err)
		return
	}
	writeMessage(w, http.StatusOK, "presence updated")
}

// adminDisconnect is called by trusted back-office services; the acting admin
// identity is synthesized from the target project.
func (h *Handler) adminDisconnect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Project   uuid.UUID `json:"project"`
		UserEmail string    `json:"user_email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "admin_disconnect", err)
		return
	}
	if body.Project == uuid.Nil || body.UserEmail == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "project and user_email are required")
		return
	}

	admin := application.Actor{
		ProjectID: body.Project,
		Email:     "system",
		Role:      domain.RoleAdmin,
	}
	if err := h.service.AdminDisconnect(r.Context(), admin, body.UserEmail); err != nil {
		writeMappedError(r.Context(), w, "admin_disconnect", err)
		return
	}
	writeMessage(w, http.StatusOK, "user disconnected")
}
