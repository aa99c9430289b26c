package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/application"
	"github.com/viralforge/livechat/internal/domain"
)

func (h *Handler) addRoomTag(w http.ResponseWriter, r *http.Request) {
	h.mutateRoomTag(w, r, "add_room_tag", h.service.AddRoomTag)
}

func (h *Handler) removeRoomTag(w http.ResponseWriter, r *http.Request) {
	h.mutateRoomTag(w, r, "remove_room_tag", h.service.RemoveRoomTag)
}

func (h *Handler) mutateRoomTag(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	mutate func(ctx context.Context, actor application.Actor, roomID, tagID uuid.UUID) (domain.Room, error),
) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, operation, err)
		return
	}

	var body struct {
		Tag uuid.UUID `json:"tag"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, operation, err)
		return
	}

	room, err := mutate(r.Context(), actor, roomID, body.Tag)
	if err != nil {
		writeMappedError(r.Context(), w, operation, err)
		return
	}
	writeSuccess(w, http.StatusOK, toRoomResponse(room))
}

func (h *Handler) pinRoom(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "pin_room", err)
		return
	}

	var body struct {
		Status bool `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "pin_room", err)
		return
	}

	if body.Status {
		err = h.service.PinRoom(r.Context(), actor, roomID)
	} else {
		err = h.service.UnpinRoom(r.Context(), actor, roomID)
	}
	if err != nil {
		writeMappedError(r.Context(), w, "pin_room", err)
		return
	}
	writeMessage(w, http.StatusOK, "pin updated")
}

func (h *Handler) canSendMessage(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "can_send_message", err)
		return
	}

	canSend, err := h.service.CanSendMessage(r.Context(), actor, roomID)
	if err != nil {
		writeMappedError(r.Context(), w, "can_send_message", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"can_send_message": canSend})
}

func (h *Handler) createRoomNote(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "create_room_note", err)
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "create_room_note", err)
		return
	}

	note, err := h.service.CreateRoomNote(r.Context(), actor, roomID, body.Text)
	if err != nil {
		writeMappedError(r.Context(), w, "create_room_note", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toNoteResponse(note))
}

func (h *Handler) listRoomNotes(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "list_room_notes", err)
		return
	}

	notes, err := h.service.ListRoomNotes(r.Context(), actor, roomID)
	if err != nil {
		writeMappedError(r.Context(), w, "list_room_notes", err)
		return
	}
	out := make([]noteResponse, 0, len(notes))
	for _, note := range notes {
		out = append(out, toNoteResponse(note))
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) deleteRoomNote(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	noteID, err := pathUUID(r, "note_id")
	if err != nil {
		writeValidationError(r.Context(), w, "delete_room_note", err)
		return
	}

	if err := h.service.DeleteRoomNote(r.Context(), actor, noteID); err != nil {
		writeMappedError(r.Context(), w, "delete_room_note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markMessagesSeen(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "mark_messages_seen", err)
		return
	}

	var body struct {
		MessageIDs []uuid.UUID `json:"messages,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			writeValidationError(r.Context(), w, "mark_messages_seen", err)
			return
		}
	}

	if err := h.service.MarkMessagesSeen(r.Context(), actor, roomID, body.MessageIDs); err != nil {
		writeMappedError(r.Context(), w, "mark_messages_seen", err)
		return
	}
	writeMessage(w, http.StatusOK, "messages marked as seen")
}

func (h *Handler) generateRoomsReport(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	report, err := h.service.GenerateRoomsReport(r.Context(), actor, actor.ProjectID)
	if err != nil {
		writeMappedError(r.Context(), w, "generate_rooms_report", err)
		return
	}
	writeSuccess(w, http.StatusOK, toReportResponse(report))
}
