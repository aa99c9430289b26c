package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// ImportHistory ingests a batch of externally archived messages into a room.
// Each record needs text or attachments. Incoming records clear the waiting
// flag and refresh the contact-interaction clock; an unassigned room with
// incoming traffic triggers the sector's automatic welcome message.
func (s *Service) ImportHistory(ctx context.Context, admin Actor, roomID uuid.UUID, records []HistoryInput) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: empty history", domain.ErrInvalidInput)
	}

	parsed := make([]domain.HistoryRecord, 0, len(records))
	for i, record := range records {
		attachments := make([]domain.MessageAttachment, 0, len(record.Attachments))
		for _, url := range record.Attachments {
			attachments = append(attachments, domain.MessageAttachment{ID: uuid.New(), URL: url})
		}
		history := domain.HistoryRecord{
			Direction:   domain.MessageDirection(record.Direction),
			Text:        record.Text,
			Attachments: attachments,
			CreatedOn:   record.CreatedOn,
		}
		if err := history.Validate(); err != nil {
			return fmt.Errorf("%w: history record %d needs text or attachments", domain.ErrInvalidInput, i)
		}
		parsed = append(parsed, history)
	}

	var (
		room        domain.Room
		hasIncoming bool
	)
	err := s.tx.InRoomTx(ctx, roomID, func(ctx context.Context, tx ports.RepoSet) error {
		loaded, err := tx.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if loaded.ProjectID != admin.ProjectID {
			return domain.ErrPermissionDenied
		}
		if !loaded.IsActive {
			return domain.ErrRoomNotActive
		}

		for _, record := range parsed {
			message := domain.Message{
				ID:          uuid.New(),
				RoomID:      loaded.ID,
				Text:        record.Text,
				CreatedOn:   record.CreatedOn,
				Attachments: record.Attachments,
			}
			if record.Direction == domain.DirectionIncoming {
				contactID := loaded.ContactID
				message.ContactID = &contactID
				hasIncoming = true
				if loaded.LastContactInteraction == nil || record.CreatedOn.After(*loaded.LastContactInteraction) {
					createdOn := record.CreatedOn
					loaded.LastContactInteraction = &createdOn
				}
			} else if loaded.UserEmail != nil {
				message.UserEmail = loaded.UserEmail
			}
			if _, err := tx.Messages.Create(ctx, message); err != nil {
				return err
			}
		}

		if hasIncoming && loaded.IsWaiting {
			loaded.IsWaiting = false
		}
		now := s.nowFn()
		loaded.LastInteraction = &now
		if err := tx.Rooms.Update(ctx, loaded); err != nil {
			return err
		}

		if hasIncoming && loaded.UserEmail == nil {
			sector, err := s.directory.GetSector(ctx, loaded.SectorID)
			if err != nil {
				return err
			}
			if sector.AutomaticMessage && sector.AutomaticMessageText != "" {
				if _, err := tx.Messages.Create(ctx, domain.Message{
					ID:        uuid.New(),
					RoomID:    loaded.ID,
					Text:      sector.AutomaticMessageText,
					CreatedOn: now,
				}); err != nil {
					return err
				}
			}
		}
		room = loaded
		return nil
	})
	if err != nil {
		return err
	}

	s.notifyRoom(ctx, room, ports.EventMsgCreate, "create", map[string]any{
		"room":  room.ID.String(),
		"count": len(parsed),
	})
	return nil
}

// AssignExternalAgent attributes a queued room to an agent on behalf of the
// flow engine's ticketing system. The room is located by ticket uuid or
// callback suffix within the token's project and must still be unassigned.
func (s *Service) AssignExternalAgent(ctx context.Context, admin Actor, ticketRef, userEmail string) (domain.Room, error) {
	userEmail = domain.NormalizeEmail(userEmail)
	if userEmail == "" {
		return domain.Room{}, fmt.Errorf("%w: agent email is required", domain.ErrInvalidInput)
	}
	if _, err := s.permissions.GetByProjectAndEmail(ctx, admin.ProjectID, userEmail); err != nil {
		return domain.Room{}, err
	}

	found, err := s.rooms.GetActiveByTicket(ctx, admin.ProjectID, ticketRef)
	if err != nil {
		return domain.Room{}, err
	}
	if found.UserEmail != nil {
		return domain.Room{}, domain.ErrRoomAlreadyAssigned
	}

	room, err := s.assignRoom(ctx, found.ID, userEmail, domain.TransferForward, "external")
	if err != nil {
		return domain.Room{}, err
	}

	s.OnRoomAssigned(ctx, room.ProjectID, userEmail)
	if room.QueueID != nil {
		s.notifyQueue(ctx, *room.QueueID, "update", room)
	}
	s.notifyUserRoom(ctx, room.ProjectID, userEmail, "create", room)

	if room.TicketUUID != nil {
		// Mirror the assignment onto the flow engine's ticket after commit.
		ticketUUID := *room.TicketUUID
		detached := context.WithoutCancel(ctx)
		s.runAsync(func() {
			if err := s.flows.UpdateTicketAssignee(detached, ticketUUID, userEmail); err != nil {
				appLogger().WarnContext(detached, "ticket assignee update failed",
					"operation", "assign_external_agent",
					"outcome", "failure",
					"ticket", ticketUUID.String(),
					"error", err.Error(),
				)
			}
		})
	}
	return room, nil
}

// UpdateCustomFields edits a room's custom fields. The change is propagated
// to the messaging platform first; only on success does the local room
// mutate, followed by the edit feedback message.
func (s *Service) UpdateCustomFields(ctx context.Context, admin Actor, contactExternalID string, fields map[string]any) (domain.Room, error) {
	if len(fields) == 0 {
		return domain.Room{}, fmt.Errorf("%w: no fields to update", domain.ErrInvalidInput)
	}
	contact, err := s.contacts.GetByExternalID(ctx, admin.ProjectID, contactExternalID)
	if err != nil {
		return domain.Room{}, err
	}

	// Authoritative write goes upstream before any local state changes.
	if err := s.flows.UpdateContactFields(ctx, admin.ProjectID, contactExternalID, fields); err != nil {
		return domain.Room{}, fmt.Errorf("%w: %v", domain.ErrFlowsUnavailable, err)
	}

	contactID := contact.ID
	isActive := true
	candidates, err := s.rooms.List(ctx, ports.RoomFilter{
		ProjectID: admin.ProjectID,
		ContactID: &contactID,
		IsActive:  &isActive,
		Limit:     1,
	})
	if err != nil {
		return domain.Room{}, err
	}
	if len(candidates) == 0 {
		return domain.Room{}, domain.ErrNotFound
	}

	var room domain.Room
	err = s.tx.InRoomTx(ctx, candidates[0].ID, func(ctx context.Context, tx ports.RepoSet) error {
		loaded, err := tx.Rooms.GetByID(ctx, candidates[0].ID)
		if err != nil {
			return err
		}
		if !loaded.IsActive {
			return domain.ErrRoomNotActive
		}
		if loaded.CustomFields == nil {
			loaded.CustomFields = map[string]any{}
		}
		for key, value := range fields {
			loaded.CustomFields[key] = value
		}
		if err := tx.Rooms.Update(ctx, loaded); err != nil {
			return err
		}
		if err := feedback(ctx, tx, loaded, domain.FeedbackEditCustomFields, map[string]any{
			"fields": fields,
		}, s.nowFn()); err != nil {
			return err
		}
		room = loaded
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}

	s.notifyRoom(ctx, room, ports.EventRoomUpdate, "update", nil)
	return room, nil
}
