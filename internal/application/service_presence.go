package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// ConnectPresence registers a new agent socket. The first connection flips an
// OFFLINE permission to ONLINE and announces it; additional connections only
// add a presence key. Supervisor sockets must not call this.
func (s *Service) ConnectPresence(ctx context.Context, permissionID uuid.UUID) (string, error) {
	perm, err := s.permissions.GetByID(ctx, permissionID)
	if err != nil {
		return "", err
	}

	existing, err := s.presence.Count(ctx, permissionID)
	if err != nil {
		return "", err
	}
	connID := uuid.NewString()
	if err := s.presence.Add(ctx, permissionID, connID, s.cfg.PresenceTTL); err != nil {
		return "", err
	}

	if existing == 0 && perm.Status == domain.StatusOffline {
		if err := s.permissions.UpdateStatus(ctx, permissionID, domain.StatusOnline); err != nil {
			return "", err
		}
	}
	if err := s.permissions.TouchLastSeen(ctx, permissionID, s.nowFn()); err != nil {
		appLogger().WarnContext(ctx, "last seen update failed",
			"operation", "presence_connect",
			"outcome", "failure",
			"permission", permissionID.String(),
			"error", err.Error(),
		)
	}

	s.notifyPermission(ctx, permissionID, ports.EventStatusUpdate, "update", map[string]any{
		"status": string(domain.StatusOnline),
	})
	return connID, nil
}

// HeartbeatPresence renews a connection's TTL and last-seen timestamp.
func (s *Service) HeartbeatPresence(ctx context.Context, permissionID uuid.UUID, connID string) error {
	if err := s.presence.Renew(ctx, permissionID, connID, s.cfg.PresenceTTL); err != nil {
		return err
	}
	return s.permissions.TouchLastSeen(ctx, permissionID, s.nowFn())
}

// DisconnectPresence removes a connection. When the last socket of the
// permission is gone, presence drops to OFFLINE, the change is announced and
// any active In-Service closes on the same boundary. The room-agent linkage
// is untouched: assigned rooms stay InProgress.
func (s *Service) DisconnectPresence(ctx context.Context, permissionID uuid.UUID, connID string) error {
	if err := s.presence.Remove(ctx, permissionID, connID); err != nil {
		return err
	}
	remaining, err := s.presence.Count(ctx, permissionID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	perm, err := s.permissions.GetByID(ctx, permissionID)
	if err != nil {
		return err
	}
	if err := s.permissions.UpdateStatus(ctx, permissionID, domain.StatusOffline); err != nil {
		return err
	}
	s.notifyPermission(ctx, permissionID, ports.EventStatusUpdate, "update", map[string]any{
		"status": string(domain.StatusOffline),
	})

	var closed bool
	err = s.tx.InPermissionTx(ctx, permissionID, func(ctx context.Context, tx ports.RepoSet) error {
		var txErr error
		closed, txErr = s.closeInService(ctx, tx, perm.ProjectID, perm.UserEmail)
		return txErr
	})
	if err != nil {
		return err
	}
	if closed {
		s.notifyPermission(ctx, permissionID, ports.EventStatusClose, "close", map[string]any{
			"user": perm.UserEmail,
		})
	}
	return nil
}

// PresenceConnections reports the live connection count for a permission.
func (s *Service) PresenceConnections(ctx context.Context, permissionID uuid.UUID) (int, error) {
	return s.presence.Count(ctx, permissionID)
}
