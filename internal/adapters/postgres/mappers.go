package postgres

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"gorm.io/datatypes"
)

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func fromJSONMap(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func fromJSONTransfers(raw datatypes.JSON) []domain.TransferRecord {
	if len(raw) == 0 {
		return nil
	}
	var out []domain.TransferRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func fromJSONUUIDs(raw datatypes.JSON) []uuid.UUID {
	if len(raw) == 0 {
		return nil
	}
	var out []uuid.UUID
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func toRoomModel(room domain.Room) roomModel {
	return roomModel{
		RoomID:                 room.ID,
		ProjectID:              room.ProjectID,
		SectorID:               room.SectorID,
		QueueID:                room.QueueID,
		ContactID:              room.ContactID,
		UserEmail:              room.UserEmail,
		IsActive:               room.IsActive,
		IsWaiting:              room.IsWaiting,
		URN:                    room.URN,
		CreatedOn:              room.CreatedOn,
		EndedAt:                room.EndedAt,
		EndedBy:                string(room.EndedBy),
		LastInteraction:        room.LastInteraction,
		LastContactInteraction: room.LastContactInteraction,
		UserAssignedAt:         room.UserAssignedAt,
		AddedToQueueAt:         room.AddedToQueueAt,
		TransferHistory:        toJSON(room.TransferHistory),
		CustomFields:           toJSON(room.CustomFields),
		Tags:                   toJSON(room.TagIDs),
		TicketUUID:             room.TicketUUID,
		CallbackURL:            room.CallbackURL,
	}
}

func toDomainRoom(row roomModel) domain.Room {
	return domain.Room{
		ID:                     row.RoomID,
		ProjectID:              row.ProjectID,
		SectorID:               row.SectorID,
		QueueID:                row.QueueID,
		ContactID:              row.ContactID,
		UserEmail:              row.UserEmail,
		IsActive:               row.IsActive,
		IsWaiting:              row.IsWaiting,
		URN:                    row.URN,
		CreatedOn:              row.CreatedOn,
		EndedAt:                row.EndedAt,
		EndedBy:                domain.EndedBy(row.EndedBy),
		LastInteraction:        row.LastInteraction,
		LastContactInteraction: row.LastContactInteraction,
		UserAssignedAt:         row.UserAssignedAt,
		AddedToQueueAt:         row.AddedToQueueAt,
		TransferHistory:        fromJSONTransfers(row.TransferHistory),
		CustomFields:           fromJSONMap(row.CustomFields),
		TagIDs:                 fromJSONUUIDs(row.Tags),
		TicketUUID:             row.TicketUUID,
		CallbackURL:            row.CallbackURL,
	}
}

func toDomainMessage(row messageModel, attachments []attachmentModel) domain.Message {
	out := domain.Message{
		ID:              row.MessageID,
		RoomID:          row.RoomID,
		UserEmail:       row.UserEmail,
		ContactID:       row.ContactID,
		Text:            row.Text,
		Seen:            row.Seen,
		CreatedOn:       row.CreatedOn,
		FeedbackMethod:  domain.FeedbackMethod(row.FeedbackMethod),
		FeedbackPayload: fromJSONMap(row.FeedbackPayload),
	}
	for _, att := range attachments {
		out.Attachments = append(out.Attachments, domain.MessageAttachment{
			ID:          att.AttachmentID,
			MessageID:   att.MessageID,
			ContentType: att.ContentType,
			URL:         att.URL,
		})
	}
	return out
}

func toDomainMetrics(row roomMetricsModel) domain.RoomMetrics {
	return domain.RoomMetrics{
		RoomID:              row.RoomID,
		WaitingTime:         row.WaitingTime,
		QueuedCount:         row.QueuedCount,
		TransferCount:       row.TransferCount,
		FirstResponseTime:   row.FirstResponseTime,
		MessageResponseTime: row.MessageResponseTime,
		InteractionTime:     row.InteractionTime,
	}
}

func toDomainPermission(row permissionModel) domain.ProjectPermission {
	return domain.ProjectPermission{
		ID:             row.PermissionID,
		ProjectID:      row.ProjectID,
		UserEmail:      row.UserEmail,
		UserFirstName:  row.UserFirstName,
		Role:           domain.PermissionRole(row.Role),
		Status:         domain.PresenceStatus(row.Status),
		FirstAccess:    row.FirstAccess,
		LastSeenOnline: row.LastSeenOnline,
	}
}

func toDomainProject(row projectModel) domain.Project {
	return domain.Project{
		ID:            row.ProjectID,
		Name:          row.Name,
		Timezone:      row.Timezone,
		DateFormat:    row.DateFormat,
		OrgID:         row.OrgID,
		RoutingType:   domain.RoutingType(row.RoutingType),
		RoutingOption: row.RoutingOption,
		Config:        fromJSONMap(row.Config),
		MaxPins:       row.MaxPins,
		CreatedAt:     row.CreatedAt,
	}
}

func toDomainSector(row sectorModel) domain.Sector {
	return domain.Sector{
		ID:                   row.SectorID,
		ProjectID:            row.ProjectID,
		Name:                 row.Name,
		WorkStart:            row.WorkStart,
		WorkEnd:              row.WorkEnd,
		RoomsLimit:           row.RoomsLimit,
		CSATEnabled:          row.CSATEnabled,
		AutomaticMessage:     row.AutomaticMessage,
		AutomaticMessageText: row.AutomaticMessageText,
		CanCloseChatsInQueue: row.CanCloseChatsInQueue,
	}
}

func toDomainQueue(row queueModel) domain.Queue {
	return domain.Queue{
		ID:           row.QueueID,
		SectorID:     row.SectorID,
		ProjectID:    row.ProjectID,
		Name:         row.Name,
		RequiredTags: row.RequiredTags,
		CreatedAt:    row.CreatedAt,
	}
}

func toDomainContact(row contactModel) domain.Contact {
	return domain.Contact{
		ID:           row.ContactID,
		ProjectID:    row.ProjectID,
		ExternalID:   row.ExternalID,
		Name:         row.Name,
		URN:          row.URN,
		LinkedUser:   row.LinkedUser,
		CustomFields: fromJSONMap(row.CustomFields),
		CreatedAt:    row.CreatedAt,
	}
}

func toDomainStatusType(row customStatusTypeModel) domain.CustomStatusType {
	return domain.CustomStatusType{
		ID:              row.TypeID,
		ProjectID:       row.ProjectID,
		Name:            row.Name,
		IsDeleted:       row.IsDeleted,
		CreatedBySystem: row.CreatedBySystem,
		CreatedAt:       row.CreatedAt,
	}
}

func toDomainStatus(row customStatusModel) domain.CustomStatus {
	return domain.CustomStatus{
		ID:           row.StatusID,
		ProjectID:    row.ProjectID,
		UserEmail:    row.UserEmail,
		StatusTypeID: row.StatusTypeID,
		IsActive:     row.IsActive,
		BreakTime:    row.BreakTime,
		CreatedOn:    row.CreatedOn,
	}
}
