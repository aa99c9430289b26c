package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// CloseRoom terminates a room. Queued rooms close only where the sector
// allows it or the caller is an admin; in-progress rooms validate the
// required-tags rule of their queue. Pins are cleared in the same
// transaction; CSAT start and priority routing follow after commit.
func (s *Service) CloseRoom(ctx context.Context, actor Actor, roomID uuid.UUID, input CloseRoomInput) (domain.Room, error) {
	return s.closeRoom(ctx, actor, roomID, input, true)
}

func (s *Service) closeRoom(ctx context.Context, actor Actor, roomID uuid.UUID, input CloseRoomInput, triggerRouting bool) (domain.Room, error) {
	var (
		room      domain.Room
		wasQueued bool
		closedBy  string
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

		sector, err := s.directory.GetSector(ctx, loaded.SectorID)
		if err != nil {
			return err
		}

		wasQueued = loaded.IsQueued()
		if wasQueued {
			if !sector.CanCloseChatsInQueue && !actor.IsAdmin() {
				return domain.ErrQueuedRoomCloseDisabled
			}
		} else if !actor.IsAdmin() && !loaded.AssignedTo(actor.Email) {
			return domain.ErrNotRoomUser
		}

		if len(input.TagIDs) > 0 {
			for _, tagID := range input.TagIDs {
				tag, err := s.directory.GetTag(ctx, tagID)
				if err != nil {
					return fmt.Errorf("%w: %s", domain.ErrTagNotFound, tagID)
				}
				if tag.SectorID != loaded.SectorID {
					return domain.ErrTagNotFound
				}
			}
			loaded.TagIDs = input.TagIDs
		}
		if loaded.QueueID != nil {
			queue, err := s.directory.GetQueue(ctx, *loaded.QueueID)
			if err != nil {
				return err
			}
			if queue.RequiredTags && len(loaded.TagIDs) == 0 {
				return domain.ErrTagsRequired
			}
		}

		now := s.nowFn()
		endedBy := input.EndedBy
		if endedBy == "" {
			endedBy = domain.EndedByAgent
		}
		loaded.IsActive = false
		loaded.EndedAt = &now
		loaded.EndedBy = endedBy
		if loaded.UserEmail != nil {
			closedBy = *loaded.UserEmail
		}
		if err := tx.Rooms.Update(ctx, loaded); err != nil {
			return err
		}
		if err := tx.Pins.DeleteByRoom(ctx, loaded.ID); err != nil {
			return err
		}

		metrics, err := tx.Metrics.Get(ctx, loaded.ID)
		if err != nil {
			return err
		}
		if loaded.UserAssignedAt != nil {
			metrics.InteractionTime += int(now.Sub(*loaded.UserAssignedAt).Seconds())
		}
		if err := tx.Metrics.Upsert(ctx, metrics); err != nil {
			return err
		}
		if err := enqueueExport(ctx, tx, exportRoomClosed, loaded, now); err != nil {
			return err
		}
		room = loaded
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}

	if closedBy != "" {
		s.OnRoomClosed(ctx, room.ProjectID, closedBy)
		s.notifyUserRoom(ctx, room.ProjectID, closedBy, "close", room)
	}
	if room.QueueID != nil {
		s.notifyQueue(ctx, *room.QueueID, "close", room)
	}
	s.notifyRoom(ctx, room, ports.EventRoomClose, "close", nil)

	if room.QueueID != nil && triggerRouting {
		project, err := s.directory.GetProject(ctx, room.ProjectID)
		if err == nil && project.RoutingType == domain.RoutingQueuePriority {
			s.dispatchAsync(ctx, *room.QueueID)
		}
	}

	sector, err := s.directory.GetSector(ctx, room.SectorID)
	if err == nil && sector.CSATEnabled {
		s.startSurveyAsync(ctx, room)
	}
	return room, nil
}

// BulkClose closes rooms in fixed-size batches. A failure on one room is
// recorded and never aborts the batch; every room lands in exactly one
// outcome bucket. Priority routing runs once per unique affected queue.
func (s *Service) BulkClose(ctx context.Context, actor Actor, roomIDs []uuid.UUID, input CloseRoomInput) (BulkCloseResult, error) {
	if len(roomIDs) == 0 {
		return BulkCloseResult{}, fmt.Errorf("%w: empty rooms list", domain.ErrInvalidInput)
	}

	result := BulkCloseResult{Errors: map[string]string{}}
	affectedQueues := map[uuid.UUID]struct{}{}

	for start := 0; start < len(roomIDs); start += s.cfg.BulkBatchSize {
		end := start + s.cfg.BulkBatchSize
		if end > len(roomIDs) {
			end = len(roomIDs)
		}
		for _, roomID := range roomIDs[start:end] {
			room, err := s.closeRoom(ctx, actor, roomID, input, false)
			if err != nil {
				result.FailedCount++
				result.FailedRooms = append(result.FailedRooms, roomID)
				result.Errors[roomID.String()] = err.Error()
				continue
			}
			result.SuccessCount++
			if room.QueueID != nil {
				affectedQueues[*room.QueueID] = struct{}{}
			}
		}
	}

	if project, err := s.directory.GetProject(ctx, actor.ProjectID); err == nil && project.RoutingType == domain.RoutingQueuePriority {
		for queueID := range affectedQueues {
			s.dispatchAsync(ctx, queueID)
		}
	}
	return result, nil
}
