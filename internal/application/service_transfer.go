package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// TransferRoom reassigns an active room to another agent, another queue, or
// both. The transfer record, feedback message, metrics bump and note lockdown
// happen in the room transaction; status-engine updates and notifications
// follow after commit.
func (s *Service) TransferRoom(ctx context.Context, actor Actor, roomID uuid.UUID, input TransferInput) (domain.Room, error) {
	return s.transferRoom(ctx, actor, roomID, input, true)
}

func (s *Service) transferRoom(ctx context.Context, actor Actor, roomID uuid.UUID, input TransferInput, triggerRouting bool) (domain.Room, error) {
	if input.UserEmail == "" && input.QueueUUID == nil {
		return domain.Room{}, fmt.Errorf("%w: transfer needs a user or a queue", domain.ErrInvalidInput)
	}

	var targetQueue *domain.Queue
	if input.QueueUUID != nil {
		queue, err := s.directory.GetQueue(ctx, *input.QueueUUID)
		if err != nil {
			return domain.Room{}, err
		}
		if queue.ProjectID != actor.ProjectID {
			return domain.Room{}, domain.ErrPermissionDenied
		}
		targetQueue = &queue
	}
	targetEmail := domain.NormalizeEmail(input.UserEmail)
	if targetEmail != "" {
		if _, err := s.permissions.GetByProjectAndEmail(ctx, actor.ProjectID, targetEmail); err != nil {
			return domain.Room{}, err
		}
	}

	var (
		room      domain.Room
		oldUser   string
		oldQueue  *uuid.UUID
		requeued  bool
	)
	err := s.tx.InRoomTx(ctx, roomID, func(ctx context.Context, tx ports.RepoSet) error {
		loaded, err := tx.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !loaded.IsActive {
			return domain.ErrRoomNotActive
		}
		if loaded.ProjectID != actor.ProjectID {
			return domain.ErrPermissionDenied
		}
		if !actor.IsAdmin() && loaded.UserEmail != nil && !loaded.AssignedTo(actor.Email) {
			return domain.ErrNotRoomUser
		}

		now := s.nowFn()
		if loaded.UserEmail != nil {
			oldUser = *loaded.UserEmail
		}
		oldQueue = loaded.QueueID

		from := oldUser
		if from == "" && loaded.QueueID != nil {
			from = loaded.QueueID.String()
		}

		if targetQueue != nil {
			queueID := targetQueue.ID
			loaded.QueueID = &queueID
			loaded.SectorID = targetQueue.SectorID
		}

		var record domain.TransferRecord
		if targetEmail != "" {
			loaded.UserEmail = &targetEmail
			loaded.UserAssignedAt = &now
			record = domain.TransferRecord{
				Action:        domain.TransferForward,
				From:          from,
				To:            targetEmail,
				TransferredBy: actor.Email,
				TransferredAt: now,
			}
		} else {
			// Queue-only transfer puts the room back in line.
			loaded.UserEmail = nil
			loaded.UserAssignedAt = nil
			loaded.AddedToQueueAt = &now
			requeued = true
			record = domain.TransferRecord{
				Action:        domain.TransferForward,
				From:          from,
				To:            targetQueue.ID.String(),
				TransferredBy: actor.Email,
				TransferredAt: now,
			}
		}
		loaded.TransferHistory = append(loaded.TransferHistory, record)
		if err := tx.Rooms.Update(ctx, loaded); err != nil {
			return err
		}

		// Existing notes survive the transfer but can no longer be deleted.
		if err := tx.Notes.LockByRoom(ctx, loaded.ID); err != nil {
			return err
		}

		metrics, err := tx.Metrics.Get(ctx, loaded.ID)
		if err != nil {
			return err
		}
		metrics.TransferCount++
		if requeued {
			metrics.QueuedCount++
		}
		if err := tx.Metrics.Upsert(ctx, metrics); err != nil {
			return err
		}

		if err := feedback(ctx, tx, loaded, domain.FeedbackRoomTransfer, map[string]any{
			"action": string(domain.TransferForward),
			"from":   record.From,
			"to":     record.To,
		}, now); err != nil {
			return err
		}
		if loaded.UserEmail != nil {
			if err := enqueueExport(ctx, tx, exportRoomAssigned, loaded, now); err != nil {
				return err
			}
		}
		room = loaded
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}

	// Status engine sees the committed state: the old agent may drop to zero
	// rooms, the new one gains their first.
	if oldUser != "" && (room.UserEmail == nil || *room.UserEmail != oldUser) {
		s.OnRoomClosed(ctx, room.ProjectID, oldUser)
		s.notifyUserRoom(ctx, room.ProjectID, oldUser, "destroy", room)
	}
	if room.UserEmail != nil && *room.UserEmail != oldUser {
		s.OnRoomAssigned(ctx, room.ProjectID, *room.UserEmail)
		s.notifyUserRoom(ctx, room.ProjectID, *room.UserEmail, "create", room)
	}
	if oldQueue != nil {
		s.notifyQueue(ctx, *oldQueue, "update", room)
	}
	if room.QueueID != nil && (oldQueue == nil || *room.QueueID != *oldQueue) {
		s.notifyQueue(ctx, *room.QueueID, "update", room)
	}
	s.notifyRoom(ctx, room, ports.EventRoomUpdate, "update", nil)

	if triggerRouting && requeued && room.QueueID != nil {
		project, err := s.directory.GetProject(ctx, room.ProjectID)
		if err == nil && project.RoutingType == domain.RoutingQueuePriority {
			s.dispatchAsync(ctx, *room.QueueID)
		}
	}
	return room, nil
}

// BulkTransfer applies one transfer target to a set of rooms with per-room
// semantics identical to TransferRoom. Queue-priority routing runs once per
// distinct destination queue after the batch.
func (s *Service) BulkTransfer(ctx context.Context, actor Actor, input BulkTransferInput) (BulkCloseResult, error) {
	if len(input.RoomIDs) == 0 {
		return BulkCloseResult{}, fmt.Errorf("%w: empty rooms list", domain.ErrInvalidInput)
	}

	result := BulkCloseResult{Errors: map[string]string{}}
	affectedQueues := map[uuid.UUID]struct{}{}
	for _, roomID := range input.RoomIDs {
		room, err := s.transferRoom(ctx, actor, roomID, input.TransferInput, false)
		if err != nil {
			result.FailedCount++
			result.FailedRooms = append(result.FailedRooms, roomID)
			result.Errors[roomID.String()] = err.Error()
			continue
		}
		result.SuccessCount++
		if room.IsQueued() && room.QueueID != nil {
			affectedQueues[*room.QueueID] = struct{}{}
		}
	}

	for queueID := range affectedQueues {
		project, err := s.directory.GetProject(ctx, actor.ProjectID)
		if err == nil && project.RoutingType == domain.RoutingQueuePriority {
			s.dispatchAsync(ctx, queueID)
		}
	}
	return result, nil
}
