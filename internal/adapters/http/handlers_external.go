package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/livechat/internal/application"
)

func (h *Handler) createExternalRoom(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var input application.CreateRoomInput
	if err := decodeBody(r, &input); err != nil {
		writeValidationError(r.Context(), w, "create_external_room", err)
		return
	}

	room, err := h.service.CreateExternalRoom(r.Context(), actor, input)
	if err != nil {
		writeMappedError(r.Context(), w, "create_external_room", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toRoomResponse(room))
}

func (h *Handler) importHistory(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "import_history", err)
		return
	}

	var records []application.HistoryInput
	if err := decodeBody(r, &records); err != nil {
		writeValidationError(r.Context(), w, "import_history", err)
		return
	}

	if err := h.service.ImportHistory(r.Context(), actor, roomID, records); err != nil {
		writeMappedError(r.Context(), w, "import_history", err)
		return
	}
	writeMessage(w, http.StatusCreated, "history imported")
}

func (h *Handler) assignExternalAgent(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	ticketRef := chi.URLParam(r, "ticket")
	if ticketRef == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "ticket reference is required")
		return
	}

	var body struct {
		UserEmail string `json:"user_email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "assign_external_agent", err)
		return
	}

	room, err := h.service.AssignExternalAgent(r.Context(), actor, ticketRef, body.UserEmail)
	if err != nil {
		writeMappedError(r.Context(), w, "assign_external_agent", err)
		return
	}
	writeSuccess(w, http.StatusOK, toRoomResponse(room))
}

func (h *Handler) updateCustomFields(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	contactExternalID := chi.URLParam(r, "contact")
	if contactExternalID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "contact external id is required")
		return
	}

	var fields map[string]any
	if err := decodeBody(r, &fields); err != nil {
		writeValidationError(r.Context(), w, "update_custom_fields", err)
		return
	}

	room, err := h.service.UpdateCustomFields(r.Context(), actor, contactExternalID, fields)
	if err != nil {
		writeMappedError(r.Context(), w, "update_custom_fields", err)
		return
	}
	writeSuccess(w, http.StatusOK, toRoomResponse(room))
}
