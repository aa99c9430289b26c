package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
)

// RouteQueueRooms runs one dispatcher cycle for a queue under the per-queue
// lock. Queued rooms are visited FIFO by created_on; each gets the least
// loaded available agent, and the cycle stops entirely once a room cannot be
// served. Concurrent callers coalesce: the loser of the lock returns
// immediately and observes the winner's outcome.
func (s *Service) RouteQueueRooms(ctx context.Context, queueID uuid.UUID) error {
	queue, err := s.directory.GetQueue(ctx, queueID)
	if err != nil {
		return err
	}
	project, err := s.directory.GetProject(ctx, queue.ProjectID)
	if err != nil {
		return err
	}
	if project.RoutingType != domain.RoutingQueuePriority {
		return nil
	}
	sector, err := s.directory.GetSector(ctx, queue.SectorID)
	if err != nil {
		return err
	}

	token, ok, err := s.queueLocks.Acquire(ctx, queueID, s.cfg.QueueLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer func() {
		if releaseErr := s.queueLocks.Release(ctx, queueID, token); releaseErr != nil {
			appLogger().WarnContext(ctx, "queue lock release failed",
				"operation", "route_queue_rooms",
				"outcome", "failure",
				"queue", queueID.String(),
				"error", releaseErr.Error(),
			)
		}
	}()

	queued, err := s.rooms.ListQueued(ctx, queueID)
	if err != nil {
		return err
	}
	for _, room := range queued {
		assigned, err := s.routeOneRoom(ctx, project, queue, sector, room)
		if err != nil {
			return err
		}
		if !assigned {
			return nil
		}
	}
	return nil
}

// routeOneRoom selects an agent and assigns, retrying once on a lost race per
// the consistency policy. Returns false when no agent is available.
func (s *Service) routeOneRoom(ctx context.Context, project domain.Project, queue domain.Queue, sector domain.Sector, room domain.Room) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		perm, err := s.selectAvailableAgent(ctx, project, queue, sector)
		if err != nil {
			return false, err
		}
		if perm == nil {
			return false, nil
		}

		assigned, err := s.assignRoom(ctx, room.ID, perm.UserEmail, domain.TransferAutoAssign, "")
		if err != nil {
			if errors.Is(err, domain.ErrRoomNotQueued) || errors.Is(err, domain.ErrRoomNotActive) {
				// Someone else took or closed the room; nothing left to route.
				return true, nil
			}
			if errors.Is(err, domain.ErrLostRace) && attempt == 0 {
				continue
			}
			return false, err
		}

		s.OnRoomAssigned(ctx, project.ID, perm.UserEmail)
		s.notifyQueue(ctx, queue.ID, "update", assigned)
		s.notifyPermission(ctx, perm.ID, "room.update", "update", roomContent(assigned))
		return true, nil
	}
	return false, domain.ErrLostRace
}

// selectAvailableAgent picks the next agent for a queue: authorized, ONLINE,
// no active non-system custom status, and below the sector room limit. Among
// agents tied on the lowest active-room count the choice is uniform random.
func (s *Service) selectAvailableAgent(ctx context.Context, project domain.Project, queue domain.Queue, sector domain.Sector) (*domain.ProjectPermission, error) {
	agents, err := s.permissions.ListQueueAgents(ctx, queue.ID)
	if err != nil {
		return nil, err
	}

	dayStart := s.dayStart(project)
	type candidate struct {
		perm  domain.ProjectPermission
		count int
	}
	var candidates []candidate
	for _, perm := range agents {
		if perm.Status != domain.StatusOnline {
			continue
		}
		active, err := s.statuses.GetActive(ctx, project.ID, perm.UserEmail)
		if err != nil {
			return nil, err
		}
		if active != nil {
			statusType, err := s.statuses.GetType(ctx, active.StatusTypeID)
			if err != nil {
				return nil, err
			}
			if !statusType.CreatedBySystem {
				continue
			}
		}

		var count int
		if project.RoutingOption == "general" {
			count, err = s.rooms.CountActiveAndClosedSince(ctx, project.ID, perm.UserEmail, dayStart)
		} else {
			count, err = s.rooms.CountActiveByUser(ctx, project.ID, perm.UserEmail)
		}
		if err != nil {
			return nil, err
		}
		if sector.RoomsLimit > 0 && count >= sector.RoomsLimit {
			continue
		}
		candidates = append(candidates, candidate{perm: perm, count: count})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	lowest := candidates[0].count
	for _, c := range candidates[1:] {
		if c.count < lowest {
			lowest = c.count
		}
	}
	var tied []domain.ProjectPermission
	for _, c := range candidates {
		if c.count == lowest {
			tied = append(tied, c.perm)
		}
	}
	pick := tied[s.randFn(len(tied))]
	return &pick, nil
}

// dayStart is midnight in the project timezone, used by the "general" routing
// option to count rooms closed earlier today against the limit.
func (s *Service) dayStart(project domain.Project) time.Time {
	loc := project.Location()
	now := s.nowFn().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

// dispatchAsync triggers a dispatcher cycle after the current operation
// completes, detached from the request deadline.
func (s *Service) dispatchAsync(ctx context.Context, queueID uuid.UUID) {
	detached := context.WithoutCancel(ctx)
	s.runAsync(func() {
		if err := s.RouteQueueRooms(detached, queueID); err != nil {
			appLogger().WarnContext(detached, "dispatcher cycle failed",
				"operation", "route_queue_rooms",
				"outcome", "failure",
				"queue", queueID.String(),
				"error", err.Error(),
			)
		}
	})
}

// dispatchForAgentQueues triggers cycles for every queue an agent serves,
// used when a custom-status close or presence change frees capacity.
func (s *Service) dispatchForAgentQueues(ctx context.Context, permissionID uuid.UUID) {
	queues, err := s.permissions.ListAuthorizedQueues(ctx, permissionID)
	if err != nil {
		appLogger().WarnContext(ctx, "authorized queue listing failed",
			"operation", "dispatch_for_agent",
			"outcome", "failure",
			"permission", permissionID.String(),
			"error", err.Error(),
		)
		return
	}
	for _, queue := range queues {
		s.dispatchAsync(ctx, queue.ID)
	}
}
