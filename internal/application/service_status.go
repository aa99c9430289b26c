package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// OnRoomAssigned opens the derived In-Service status for an agent that just
// gained a room, provided they are ONLINE, have no competing custom status
// and no In-Service already running. Serialized per (agent, project).
func (s *Service) OnRoomAssigned(ctx context.Context, projectID uuid.UUID, userEmail string) {
	userEmail = domain.NormalizeEmail(userEmail)
	perm, err := s.permissions.GetByProjectAndEmail(ctx, projectID, userEmail)
	if err != nil {
		return
	}

	err = s.tx.InPermissionTx(ctx, perm.ID, func(ctx context.Context, tx ports.RepoSet) error {
		count, err := tx.Rooms.CountActiveByUser(ctx, projectID, userEmail)
		if err != nil {
			return err
		}
		if count < 1 {
			return nil
		}
		current, err := tx.Permissions.GetByID(ctx, perm.ID)
		if err != nil {
			return err
		}
		if current.Status != domain.StatusOnline {
			return nil
		}
		active, err := tx.Statuses.GetActive(ctx, projectID, userEmail)
		if err != nil {
			return err
		}
		if active != nil {
			// Either a competing custom status or an In-Service already open.
			return nil
		}

		inService, err := s.inServiceType(ctx, tx, projectID)
		if err != nil {
			return err
		}
		_, err = tx.Statuses.CreateStatus(ctx, domain.CustomStatus{
			ID:           uuid.New(),
			ProjectID:    projectID,
			UserEmail:    userEmail,
			StatusTypeID: inService.ID,
			IsActive:     true,
			CreatedOn:    s.nowFn(),
		})
		return err
	})
	if err != nil {
		appLogger().WarnContext(ctx, "in-service open failed",
			"operation", "on_room_assigned",
			"outcome", "failure",
			"project", projectID.String(),
			"user", userEmail,
			"error", err.Error(),
		)
	}
}

// OnRoomClosed closes the In-Service status once the agent has no active
// assigned rooms left, accounting break time in the project timezone.
func (s *Service) OnRoomClosed(ctx context.Context, projectID uuid.UUID, userEmail string) {
	userEmail = domain.NormalizeEmail(userEmail)
	perm, err := s.permissions.GetByProjectAndEmail(ctx, projectID, userEmail)
	if err != nil {
		return
	}

	err = s.tx.InPermissionTx(ctx, perm.ID, func(ctx context.Context, tx ports.RepoSet) error {
		count, err := tx.Rooms.CountActiveByUser(ctx, projectID, userEmail)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		_, err = s.closeInService(ctx, tx, projectID, userEmail)
		return err
	})
	if err != nil {
		appLogger().WarnContext(ctx, "in-service close failed",
			"operation", "on_room_closed",
			"outcome", "failure",
			"project", projectID.String(),
			"user", userEmail,
			"error", err.Error(),
		)
	}
}

// closeInService closes an active In-Service status if one exists and reports
// whether it did. Non-system statuses are left untouched.
func (s *Service) closeInService(ctx context.Context, tx ports.RepoSet, projectID uuid.UUID, userEmail string) (bool, error) {
	active, err := tx.Statuses.GetActive(ctx, projectID, userEmail)
	if err != nil {
		return false, err
	}
	if active == nil {
		return false, nil
	}
	statusType, err := tx.Statuses.GetType(ctx, active.StatusTypeID)
	if err != nil {
		return false, err
	}
	if !statusType.CreatedBySystem {
		return false, nil
	}
	project, err := s.directory.GetProject(ctx, projectID)
	if err != nil {
		return false, err
	}
	breakTime := domain.BreakSeconds(active.CreatedOn, s.nowFn(), project.Location())
	if err := tx.Statuses.CloseStatus(ctx, active.ID, breakTime); err != nil {
		return false, err
	}
	return true, nil
}

// inServiceType fetches or lazily creates the project's system In-Service type.
func (s *Service) inServiceType(ctx context.Context, tx ports.RepoSet, projectID uuid.UUID) (domain.CustomStatusType, error) {
	statusType, err := tx.Statuses.GetTypeByName(ctx, projectID, domain.InServiceTypeName)
	if err == nil {
		return statusType, nil
	}
	return tx.Statuses.CreateType(ctx, domain.CustomStatusType{
		ID:              uuid.New(),
		ProjectID:       projectID,
		Name:            domain.InServiceTypeName,
		CreatedBySystem: true,
		CreatedAt:       s.nowFn(),
	})
}

// StartCustomStatus opens a user-selected custom status (break, lunch, ...).
// An open In-Service is closed first and presence is forced OFFLINE in the
// same critical section. A second non-system status is rejected.
func (s *Service) StartCustomStatus(ctx context.Context, actor Actor, typeID uuid.UUID) (domain.CustomStatus, error) {
	statusType, err := s.statuses.GetType(ctx, typeID)
	if err != nil {
		return domain.CustomStatus{}, err
	}
	if statusType.ProjectID != actor.ProjectID || statusType.IsDeleted {
		return domain.CustomStatus{}, domain.ErrNotFound
	}
	if statusType.CreatedBySystem {
		return domain.CustomStatus{}, fmt.Errorf("%w: system status types cannot be selected", domain.ErrInvalidInput)
	}

	var created domain.CustomStatus
	err = s.tx.InPermissionTx(ctx, actor.PermissionID, func(ctx context.Context, tx ports.RepoSet) error {
		active, err := tx.Statuses.GetActive(ctx, actor.ProjectID, actor.Email)
		if err != nil {
			return err
		}
		if active != nil {
			activeType, err := tx.Statuses.GetType(ctx, active.StatusTypeID)
			if err != nil {
				return err
			}
			if !activeType.CreatedBySystem {
				return domain.ErrCustomStatusActive
			}
			if _, err := s.closeInService(ctx, tx, actor.ProjectID, actor.Email); err != nil {
				return err
			}
		}

		created, err = tx.Statuses.CreateStatus(ctx, domain.CustomStatus{
			ID:           uuid.New(),
			ProjectID:    actor.ProjectID,
			UserEmail:    domain.NormalizeEmail(actor.Email),
			StatusTypeID: typeID,
			IsActive:     true,
			CreatedOn:    s.nowFn(),
		})
		if err != nil {
			return err
		}
		return tx.Permissions.UpdateStatus(ctx, actor.PermissionID, domain.StatusOffline)
	})
	if err != nil {
		return domain.CustomStatus{}, err
	}

	s.notifyPermission(ctx, actor.PermissionID, ports.EventStatusUpdate, "update", map[string]any{
		"from": string(domain.StatusOnline),
		"to":   string(domain.StatusOffline),
	})
	return created, nil
}

// CloseCustomStatus ends the given custom status instance. Only the last (and
// under the uniqueness invariant, only) active status may be closed. When the
// request also flips presence back to ONLINE and rooms are still assigned, a
// fresh In-Service opens immediately.
func (s *Service) CloseCustomStatus(ctx context.Context, actor Actor, statusID uuid.UUID, setOnline bool) error {
	err := s.tx.InPermissionTx(ctx, actor.PermissionID, func(ctx context.Context, tx ports.RepoSet) error {
		active, err := tx.Statuses.GetActive(ctx, actor.ProjectID, actor.Email)
		if err != nil {
			return err
		}
		if active == nil || active.ID != statusID {
			return domain.ErrCustomStatusNotLast
		}

		project, err := s.directory.GetProject(ctx, actor.ProjectID)
		if err != nil {
			return err
		}
		breakTime := domain.BreakSeconds(active.CreatedOn, s.nowFn(), project.Location())
		if err := tx.Statuses.CloseStatus(ctx, active.ID, breakTime); err != nil {
			return err
		}

		if setOnline {
			if err := tx.Permissions.UpdateStatus(ctx, actor.PermissionID, domain.StatusOnline); err != nil {
				return err
			}
			count, err := tx.Rooms.CountActiveByUser(ctx, actor.ProjectID, actor.Email)
			if err != nil {
				return err
			}
			if count > 0 {
				inService, err := s.inServiceType(ctx, tx, actor.ProjectID)
				if err != nil {
					return err
				}
				if _, err := tx.Statuses.CreateStatus(ctx, domain.CustomStatus{
					ID:           uuid.New(),
					ProjectID:    actor.ProjectID,
					UserEmail:    domain.NormalizeEmail(actor.Email),
					StatusTypeID: inService.ID,
					IsActive:     true,
					CreatedOn:    s.nowFn(),
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifyPermission(ctx, actor.PermissionID, ports.EventCustomStatusClose, "close", map[string]any{
		"status": statusID.String(),
	})
	// Closing a break may free dispatch capacity.
	if setOnline {
		s.dispatchForAgentQueues(ctx, actor.PermissionID)
	}
	return nil
}

// AdminDisconnect force-disconnects an agent: closes any active custom status
// with break accounting and drops presence to OFFLINE. Rejects when the agent
// is already offline with nothing active, keeping the operation idempotent-safe.
func (s *Service) AdminDisconnect(ctx context.Context, admin Actor, targetEmail string) error {
	if !admin.IsAdmin() {
		return domain.ErrPermissionDenied
	}
	targetEmail = domain.NormalizeEmail(targetEmail)
	perm, err := s.permissions.GetByProjectAndEmail(ctx, admin.ProjectID, targetEmail)
	if err != nil {
		return err
	}

	var closedCustom bool
	err = s.tx.InPermissionTx(ctx, perm.ID, func(ctx context.Context, tx ports.RepoSet) error {
		active, err := tx.Statuses.GetActive(ctx, admin.ProjectID, targetEmail)
		if err != nil {
			return err
		}
		current, err := tx.Permissions.GetByID(ctx, perm.ID)
		if err != nil {
			return err
		}
		if current.Status == domain.StatusOffline && active == nil {
			return domain.ErrUserAlreadyDisconnected
		}

		if active != nil {
			statusType, err := tx.Statuses.GetType(ctx, active.StatusTypeID)
			if err != nil {
				return err
			}
			project, err := s.directory.GetProject(ctx, admin.ProjectID)
			if err != nil {
				return err
			}
			breakTime := domain.BreakSeconds(active.CreatedOn, s.nowFn(), project.Location())
			if err := tx.Statuses.CloseStatus(ctx, active.ID, breakTime); err != nil {
				return err
			}
			closedCustom = !statusType.CreatedBySystem
		}
		return tx.Permissions.UpdateStatus(ctx, perm.ID, domain.StatusOffline)
	})
	if err != nil {
		return err
	}

	if closedCustom {
		s.notifyPermission(ctx, perm.ID, ports.EventCustomStatusClose, "close", map[string]any{"user": targetEmail})
	} else {
		s.notifyPermission(ctx, perm.ID, ports.EventStatusClose, "close", map[string]any{"user": targetEmail})
	}
	return nil
}

// SetPresence applies a user-selected presence change (ONLINE/OFFLINE/AWAY/BUSY).
func (s *Service) SetPresence(ctx context.Context, actor Actor, status domain.PresenceStatus) error {
	switch status {
	case domain.StatusOnline, domain.StatusOffline, domain.StatusAway, domain.StatusBusy:
	default:
		return fmt.Errorf("%w: unknown presence %q", domain.ErrInvalidInput, status)
	}
	if err := s.permissions.UpdateStatus(ctx, actor.PermissionID, status); err != nil {
		return err
	}
	s.notifyPermission(ctx, actor.PermissionID, ports.EventStatusUpdate, "update", map[string]any{
		"status": string(status),
	})
	if status == domain.StatusOnline {
		s.dispatchForAgentQueues(ctx, actor.PermissionID)
	}
	return nil
}

// CreateStatusType registers a user-created custom status type, capped per
// project. Names are unique among non-deleted types.
func (s *Service) CreateStatusType(ctx context.Context, actor Actor, name string) (domain.CustomStatusType, error) {
	if name == "" {
		return domain.CustomStatusType{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	count, err := s.statuses.CountUserTypes(ctx, actor.ProjectID)
	if err != nil {
		return domain.CustomStatusType{}, err
	}
	if count >= domain.MaxUserStatusTypes {
		return domain.CustomStatusType{}, domain.ErrStatusTypeLimit
	}
	return s.statuses.CreateType(ctx, domain.CustomStatusType{
		ID:        uuid.New(),
		ProjectID: actor.ProjectID,
		Name:      name,
		CreatedAt: s.nowFn(),
	})
}

// ListStatusTypes lists the project's non-deleted status types.
func (s *Service) ListStatusTypes(ctx context.Context, actor Actor) ([]domain.CustomStatusType, error) {
	return s.statuses.ListTypes(ctx, actor.ProjectID)
}

// DeleteStatusType soft-deletes a user-created type; system types are kept.
func (s *Service) DeleteStatusType(ctx context.Context, actor Actor, typeID uuid.UUID) error {
	statusType, err := s.statuses.GetType(ctx, typeID)
	if err != nil {
		return err
	}
	if statusType.ProjectID != actor.ProjectID {
		return domain.ErrNotFound
	}
	if statusType.CreatedBySystem {
		return fmt.Errorf("%w: system status types cannot be deleted", domain.ErrInvalidInput)
	}
	return s.statuses.SoftDeleteType(ctx, typeID)
}
