package http

import (
	"time"

	"github.com/viralforge/livechat/internal/application"
	"github.com/viralforge/livechat/internal/domain"
)

type transferRecordResponse struct {
	Action        string    `json:"action"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	TransferredBy string    `json:"transferred_by,omitempty"`
	TransferredAt time.Time `json:"transferred_at"`
}

type roomResponse struct {
	UUID            string                   `json:"uuid"`
	Project         string                   `json:"project"`
	Sector          string                   `json:"sector"`
	Queue           *string                  `json:"queue,omitempty"`
	Contact         string                   `json:"contact"`
	User            *string                  `json:"user,omitempty"`
	IsActive        bool                     `json:"is_active"`
	IsWaiting       bool                     `json:"is_waiting"`
	URN             string                   `json:"urn"`
	CreatedOn       time.Time                `json:"created_on"`
	EndedAt         *time.Time               `json:"ended_at,omitempty"`
	EndedBy         string                   `json:"ended_by,omitempty"`
	LastInteraction *time.Time               `json:"last_interaction,omitempty"`
	TransferHistory []transferRecordResponse `json:"transfer_history"`
	CustomFields    map[string]any           `json:"custom_fields,omitempty"`
	Tags            []string                 `json:"tags"`
}

func toRoomResponse(room domain.Room) roomResponse {
	resp := roomResponse{
		UUID:            room.ID.String(),
		Project:         room.ProjectID.String(),
		Sector:          room.SectorID.String(),
		Contact:         room.ContactID.String(),
		User:            room.UserEmail,
		IsActive:        room.IsActive,
		IsWaiting:       room.IsWaiting,
		URN:             room.URN,
		CreatedOn:       room.CreatedOn,
		EndedAt:         room.EndedAt,
		EndedBy:         string(room.EndedBy),
		LastInteraction: room.LastInteraction,
		TransferHistory: make([]transferRecordResponse, 0, len(room.TransferHistory)),
		CustomFields:    room.CustomFields,
		Tags:            make([]string, 0, len(room.TagIDs)),
	}
	if room.QueueID != nil {
		q := room.QueueID.String()
		resp.Queue = &q
	}
	for _, rec := range room.TransferHistory {
		resp.TransferHistory = append(resp.TransferHistory, transferRecordResponse{
			Action:        string(rec.Action),
			From:          rec.From,
			To:            rec.To,
			TransferredBy: rec.TransferredBy,
			TransferredAt: rec.TransferredAt,
		})
	}
	for _, tagID := range room.TagIDs {
		resp.Tags = append(resp.Tags, tagID.String())
	}
	return resp
}

func toRoomListResponse(rooms []domain.Room) []roomResponse {
	out := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomResponse(room))
	}
	return out
}

type noteResponse struct {
	UUID      string    `json:"uuid"`
	Room      string    `json:"room"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Locked    bool      `json:"locked"`
	CreatedOn time.Time `json:"created_on"`
}

func toNoteResponse(note domain.RoomNote) noteResponse {
	return noteResponse{
		UUID:      note.ID.String(),
		Room:      note.RoomID.String(),
		User:      note.UserEmail,
		Text:      note.Text,
		Locked:    note.Locked,
		CreatedOn: note.CreatedOn,
	}
}

type statusTypeResponse struct {
	UUID            string `json:"uuid"`
	Project         string `json:"project"`
	Name            string `json:"name"`
	CreatedBySystem bool   `json:"created_by_system"`
}

func toStatusTypeResponse(t domain.CustomStatusType) statusTypeResponse {
	return statusTypeResponse{
		UUID:            t.ID.String(),
		Project:         t.ProjectID.String(),
		Name:            t.Name,
		CreatedBySystem: t.CreatedBySystem,
	}
}

type customStatusResponse struct {
	UUID       string    `json:"uuid"`
	Project    string    `json:"project"`
	User       string    `json:"user"`
	StatusType string    `json:"status_type"`
	IsActive   bool      `json:"is_active"`
	BreakTime  int       `json:"break_time"`
	CreatedOn  time.Time `json:"created_on"`
}

func toCustomStatusResponse(s domain.CustomStatus) customStatusResponse {
	return customStatusResponse{
		UUID:       s.ID.String(),
		Project:    s.ProjectID.String(),
		User:       s.UserEmail,
		StatusType: s.StatusTypeID.String(),
		IsActive:   s.IsActive,
		BreakTime:  s.BreakTime,
		CreatedOn:  s.CreatedOn,
	}
}

type surveyResponse struct {
	UUID       string    `json:"uuid"`
	Room       string    `json:"room"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	AnsweredOn time.Time `json:"answered_on"`
}

func toSurveyResponse(s domain.CSATSurvey) surveyResponse {
	return surveyResponse{
		UUID:       s.ID.String(),
		Room:       s.RoomID.String(),
		Rating:     s.Rating,
		Comment:    s.Comment,
		AnsweredOn: s.AnsweredOn,
	}
}

func toReportResponse(report application.RoomsReport) map[string]any {
	return map[string]any{
		"project":      report.ProjectID.String(),
		"total":        report.Total,
		"queued":       report.Queued,
		"in_progress":  report.InProgress,
		"closed":       report.Closed,
		"generated_at": report.GeneratedAt,
	}
}
