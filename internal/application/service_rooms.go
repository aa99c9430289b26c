package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// CreateExternalRoom admits a room originated by the flow engine. The caller
// is a project-admin token; the queue must belong to its project. The room
// user, when any, is resolved in priority order: explicit flow-start user,
// the contact's linked user, then (GENERAL routing only) an available agent.
func (s *Service) CreateExternalRoom(ctx context.Context, admin Actor, input CreateRoomInput) (domain.Room, error) {
	queue, err := s.directory.GetQueue(ctx, input.QueueUUID)
	if err != nil {
		return domain.Room{}, err
	}
	if queue.ProjectID != admin.ProjectID {
		return domain.Room{}, fmt.Errorf("%w: queue belongs to another project", domain.ErrPermissionDenied)
	}
	sector, err := s.directory.GetSector(ctx, queue.SectorID)
	if err != nil {
		return domain.Room{}, err
	}
	project, err := s.directory.GetProject(ctx, queue.ProjectID)
	if err != nil {
		return domain.Room{}, err
	}
	if input.Contact.ExternalID == "" || input.Contact.URN == "" {
		return domain.Room{}, fmt.Errorf("%w: contact external_id and urn are required", domain.ErrInvalidInput)
	}

	contact, err := s.contacts.Upsert(ctx, domain.Contact{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		ExternalID:   input.Contact.ExternalID,
		Name:         input.Contact.Name,
		URN:          input.Contact.URN,
		CustomFields: input.Contact.CustomFields,
		CreatedAt:    s.nowFn(),
	})
	if err != nil {
		return domain.Room{}, err
	}

	assignee, assignAction := s.resolveRoomUser(ctx, project, queue, sector, contact, input)

	now := s.nowFn()
	queueID := queue.ID
	room := domain.Room{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		SectorID:     sector.ID,
		QueueID:      &queueID,
		ContactID:    contact.ID,
		IsActive:     true,
		IsWaiting:    input.IsWaiting,
		URN:          contact.URN,
		CreatedOn:    now,
		CustomFields: input.CustomFields,
		TicketUUID:   input.TicketUUID,
		CallbackURL:  input.CallbackURL,
	}
	if assignee != "" {
		email := domain.NormalizeEmail(assignee)
		room.UserEmail = &email
		room.UserAssignedAt = &now
		room.TransferHistory = []domain.TransferRecord{{
			Action:        assignAction,
			From:          queue.ID.String(),
			To:            email,
			TransferredAt: now,
		}}
	} else {
		room.AddedToQueueAt = &now
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, tx ports.RepoSet) error {
		created, err := tx.Rooms.Create(ctx, room)
		if err != nil {
			return err
		}
		room = created
		metrics := domain.RoomMetrics{RoomID: room.ID}
		if room.UserEmail == nil {
			metrics.QueuedCount = 1
		}
		if err := tx.Metrics.Upsert(ctx, metrics); err != nil {
			return err
		}
		if room.UserEmail != nil {
			if err := feedback(ctx, tx, room, domain.FeedbackRoomTransfer, map[string]any{
				"action": string(assignAction),
				"from":   queue.ID.String(),
				"to":     *room.UserEmail,
			}, now); err != nil {
				return err
			}
			return enqueueExport(ctx, tx, exportRoomAssigned, room, now)
		}
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}

	if room.UserEmail != nil {
		s.OnRoomAssigned(ctx, project.ID, *room.UserEmail)
		s.notifyQueue(ctx, queue.ID, "create", room)
		s.notifyUserRoom(ctx, project.ID, *room.UserEmail, "create", room)
	} else {
		s.notifyQueue(ctx, queue.ID, "create", room)
		if project.RoutingType == domain.RoutingQueuePriority {
			s.dispatchAsync(ctx, queue.ID)
		}
	}
	return room, nil
}

// resolveRoomUser applies the assignment priority for flow-originated rooms.
// Every step is best-effort: a failed lookup falls through to the next.
func (s *Service) resolveRoomUser(ctx context.Context, project domain.Project, queue domain.Queue, sector domain.Sector, contact domain.Contact, input CreateRoomInput) (string, domain.TransferAction) {
	if email := domain.NormalizeEmail(input.UserEmail); email != "" {
		if _, err := s.permissions.GetByProjectAndEmail(ctx, project.ID, email); err == nil {
			return email, domain.TransferForward
		}
	}
	if email := domain.NormalizeEmail(contact.LinkedUser); email != "" {
		if perm, err := s.permissions.GetByProjectAndEmail(ctx, project.ID, email); err == nil && perm.Status == domain.StatusOnline {
			return email, domain.TransferForward
		}
	}
	if project.RoutingType == domain.RoutingGeneral {
		if perm, err := s.selectAvailableAgent(ctx, project, queue, sector); err == nil && perm != nil {
			return perm.UserEmail, domain.TransferAutoAssign
		}
	}
	return "", ""
}

// PickQueueRoom lets an agent self-assign a queued room.
func (s *Service) PickQueueRoom(ctx context.Context, actor Actor, roomID uuid.UUID) (domain.Room, error) {
	current, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if current.QueueID != nil {
		authorized, err := s.authorizedForQueue(ctx, actor, *current.QueueID)
		if err != nil {
			return domain.Room{}, err
		}
		if !authorized {
			return domain.Room{}, domain.ErrPermissionDenied
		}
	}

	room, err := s.assignRoom(ctx, roomID, actor.Email, domain.TransferPick, actor.Email)
	if err != nil {
		return domain.Room{}, err
	}

	s.OnRoomAssigned(ctx, room.ProjectID, actor.Email)
	if room.QueueID != nil {
		s.notifyQueue(ctx, *room.QueueID, "update", room)
	}
	s.notifyRoom(ctx, room, ports.EventRoomUpdate, "update", nil)
	return room, nil
}

// assignRoom moves a queued room to an agent inside the room transaction:
// re-checks state under the row lock, appends the transfer record, writes the
// feedback message, accounts waiting time and enqueues the export event.
func (s *Service) assignRoom(ctx context.Context, roomID uuid.UUID, email string, action domain.TransferAction, by string) (domain.Room, error) {
	email = domain.NormalizeEmail(email)
	var room domain.Room
	err := s.tx.InRoomTx(ctx, roomID, func(ctx context.Context, tx ports.RepoSet) error {
		loaded, err := tx.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !loaded.IsActive {
			return domain.ErrRoomNotActive
		}
		if loaded.UserEmail != nil {
			return domain.ErrRoomNotQueued
		}

		now := s.nowFn()
		from := ""
		if loaded.QueueID != nil {
			from = loaded.QueueID.String()
		}
		loaded.UserEmail = &email
		loaded.UserAssignedAt = &now
		loaded.TransferHistory = append(loaded.TransferHistory, domain.TransferRecord{
			Action:        action,
			From:          from,
			To:            email,
			TransferredBy: by,
			TransferredAt: now,
		})
		if err := tx.Rooms.Update(ctx, loaded); err != nil {
			return err
		}

		metrics, err := tx.Metrics.Get(ctx, loaded.ID)
		if err != nil {
			return err
		}
		if loaded.AddedToQueueAt != nil {
			metrics.WaitingTime += int(now.Sub(*loaded.AddedToQueueAt).Seconds())
		}
		if err := tx.Metrics.Upsert(ctx, metrics); err != nil {
			return err
		}

		if err := feedback(ctx, tx, loaded, domain.FeedbackRoomTransfer, map[string]any{
			"action": string(action),
			"from":   from,
			"to":     email,
		}, now); err != nil {
			return err
		}
		if err := enqueueExport(ctx, tx, exportRoomAssigned, loaded, now); err != nil {
			return err
		}
		room = loaded
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// authorizedForQueue reports whether the actor may act on a queue: project
// admins always may, attendants need a queue or sector authorization.
func (s *Service) authorizedForQueue(ctx context.Context, actor Actor, queueID uuid.UUID) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	agents, err := s.permissions.ListQueueAgents(ctx, queueID)
	if err != nil {
		return false, err
	}
	for _, perm := range agents {
		if perm.UserEmail == domain.NormalizeEmail(actor.Email) {
			return true, nil
		}
	}
	return false, nil
}

// ListRooms returns rooms for the caller with pinned rooms first.
func (s *Service) ListRooms(ctx context.Context, actor Actor, filter ports.RoomFilter) ([]domain.Room, error) {
	filter.ProjectID = actor.ProjectID
	filter.ViewerEmail = domain.NormalizeEmail(actor.Email)
	filter.PinnedFirst = true
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.rooms.List(ctx, filter)
}

// CanSendMessage reports the 24 h WhatsApp validity of a room.
func (s *Service) CanSendMessage(ctx context.Context, actor Actor, roomID uuid.UUID) (bool, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.ProjectID != actor.ProjectID {
		return false, domain.ErrPermissionDenied
	}
	return room.Is24hValid(s.nowFn()), nil
}

// MarkMessagesSeen flips the seen flag on a room's messages; rejected while
// the room is still queued.
func (s *Service) MarkMessagesSeen(ctx context.Context, actor Actor, roomID uuid.UUID, messageIDs []uuid.UUID) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsQueued() {
		return domain.ErrRoomStillQueued
	}
	if room.ProjectID != actor.ProjectID {
		return domain.ErrPermissionDenied
	}
	return s.messages.MarkSeenByRoom(ctx, roomID, messageIDs)
}

// GetRoom loads one room scoped to the actor's project.
func (s *Service) GetRoom(ctx context.Context, actor Actor, roomID uuid.UUID) (domain.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.ProjectID != actor.ProjectID {
		return domain.Room{}, domain.ErrPermissionDenied
	}
	return room, nil
}
