package http

import (
	"net/http"

	"github.com/viralforge/livechat/internal/application"
)

// submitSurvey receives the flow-engine survey webhook. The signed survey
// token is the only credential; it must match the path's project and room.
func (h *Handler) submitSurvey(w http.ResponseWriter, r *http.Request) {
	rawToken, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		rawToken = r.URL.Query().Get("token")
	}
	if rawToken == "" {
		writeMissingBearerError(r.Context(), w, "submit_survey")
		return
	}

	projectID, err := pathUUID(r, "project_id")
	if err != nil {
		writeValidationError(r.Context(), w, "submit_survey", err)
		return
	}
	roomID, err := pathUUID(r, "room_id")
	if err != nil {
		writeValidationError(r.Context(), w, "submit_survey", err)
		return
	}

	var input application.SurveyInput
	if err := decodeBody(r, &input); err != nil {
		writeValidationError(r.Context(), w, "submit_survey", err)
		return
	}

	survey, err := h.service.SubmitSurvey(r.Context(), rawToken, projectID, roomID, input)
	if err != nil {
		writeMappedError(r.Context(), w, "submit_survey", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toSurveyResponse(survey))
}
