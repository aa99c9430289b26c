package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/application"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	query := r.URL.Query()

	filter := ports.RoomFilter{
		ProjectID:   actor.ProjectID,
		ViewerEmail: actor.Email,
		PinnedFirst: query.Get("pinned_first") != "false",
		Limit:       parseIntDefault(query.Get("limit"), 50),
		Offset:      parseIntDefault(query.Get("offset"), 0),
	}
	if raw := query.Get("queue"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "queue must be a uuid")
			return
		}
		filter.QueueID = &id
	}
	if raw := query.Get("sector"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "sector must be a uuid")
			return
		}
		filter.SectorID = &id
	}
	if raw := query.Get("contact"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "contact must be a uuid")
			return
		}
		filter.ContactID = &id
	}
	if raw := query.Get("user_email"); raw != "" {
		email := domain.NormalizeEmail(raw)
		filter.UserEmail = &email
	}
	if raw := query.Get("is_active"); raw != "" {
		active := strings.EqualFold(raw, "true")
		filter.IsActive = &active
	}

	rooms, err := h.service.ListRooms(r.Context(), actor, filter)
	if err != nil {
		writeMappedError(r.Context(), w, "list_rooms", err)
		return
	}
	writeSuccess(w, http.StatusOK, toRoomListResponse(rooms))
}

func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_room", err)
		return
	}

	room, err := h.service.GetRoom(r.Context(), actor, roomID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_room", err)
		return
	}
	writeSuccess(w, http.StatusOK, toRoomResponse(room))
}

func (h *Handler) pickQueueRoom(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "pick_queue_room", err)
		return
	}

	room, err := h.service.PickQueueRoom(r.Context(), actor, roomID)
	if err != nil {
		writeMappedError(r.Context(), w, "pick_queue_room", err)
		return
	}
	writeSuccess(w, http.StatusOK, toRoomResponse(room))
}

func (h *Handler) transferRoom(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "transfer_room", err)
		return
	}

	var input application.TransferInput
	if err := decodeBody(r, &input); err != nil {
		writeValidationError(r.Context(), w, "transfer_room", err)
		return
	}

	room, err := h.service.TransferRoom(r.Context(), actor, roomID, input)
	if err != nil {
		writeMappedError(r.Context(), w, "transfer_room", err)
		return
	}
	writeSuccess(w, http.StatusOK, toRoomResponse(room))
}

func (h *Handler) closeRoom(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "close_room", err)
		return
	}

	var input application.CloseRoomInput
	if r.ContentLength != 0 {
		if err := decodeBody(r, &input); err != nil {
			writeValidationError(r.Context(), w, "close_room", err)
			return
		}
	}

	room, err := h.service.CloseRoom(r.Context(), actor, roomID, input)
	if err != nil {
		writeMappedError(r.Context(), w, "close_room", err)
		return
	}
	writeSuccess(w, http.StatusOK, toRoomResponse(room))
}

func (h *Handler) bulkTransfer(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	query := r.URL.Query()

	var body struct {
		RoomIDs []uuid.UUID `json:"rooms_list"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "bulk_transfer", err)
		return
	}

	input := application.BulkTransferInput{RoomIDs: body.RoomIDs}
	input.UserEmail = query.Get("user_email")
	if raw := query.Get("queue_uuid"); raw != "" {
		queueID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "queue_uuid must be a uuid")
			return
		}
		input.QueueUUID = &queueID
	}

	result, err := h.service.BulkTransfer(r.Context(), actor, input)
	if err != nil {
		writeMappedError(r.Context(), w, "bulk_transfer", err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func (h *Handler) bulkClose(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var body struct {
		RoomIDs []uuid.UUID    `json:"rooms_list"`
		TagIDs  []uuid.UUID    `json:"tags"`
		EndedBy domain.EndedBy `json:"ended_by"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "bulk_close", err)
		return
	}

	result, err := h.service.BulkClose(r.Context(), actor, body.RoomIDs, application.CloseRoomInput{
		TagIDs:  body.TagIDs,
		EndedBy: body.EndedBy,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "bulk_close", err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}
