package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// AddRoomTag attaches a sector tag to an in-progress room. Only the assigned
// agent (or an admin) may tag, and the tag must belong to the room's sector.
func (s *Service) AddRoomTag(ctx context.Context, actor Actor, roomID, tagID uuid.UUID) (domain.Room, error) {
	var room domain.Room
	err := s.tx.InRoomTx(ctx, roomID, func(ctx context.Context, tx ports.RepoSet) error {
		loaded, err := tx.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if err := s.checkTagAccess(loaded, actor); err != nil {
			return err
		}
		tag, err := s.directory.GetTag(ctx, tagID)
		if err != nil {
			return fmt.Errorf("%w: %s", domain.ErrTagNotFound, tagID)
		}
		if tag.SectorID != loaded.SectorID {
			return domain.ErrTagNotFound
		}
		for _, existing := range loaded.TagIDs {
			if existing == tagID {
				room = loaded
				return nil
			}
		}
		loaded.TagIDs = append(loaded.TagIDs, tagID)
		if err := tx.Rooms.Update(ctx, loaded); err != nil {
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

// RemoveRoomTag detaches a tag; removing an absent tag is a no-op, making
// add-then-remove restore the original tag set.
func (s *Service) RemoveRoomTag(ctx context.Context, actor Actor, roomID, tagID uuid.UUID) (domain.Room, error) {
	var room domain.Room
	err := s.tx.InRoomTx(ctx, roomID, func(ctx context.Context, tx ports.RepoSet) error {
		loaded, err := tx.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if err := s.checkTagAccess(loaded, actor); err != nil {
			return err
		}
		kept := loaded.TagIDs[:0]
		for _, existing := range loaded.TagIDs {
			if existing != tagID {
				kept = append(kept, existing)
			}
		}
		loaded.TagIDs = kept
		if err := tx.Rooms.Update(ctx, loaded); err != nil {
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

func (s *Service) checkTagAccess(room domain.Room, actor Actor) error {
	if !room.IsActive {
		return domain.ErrRoomNotActive
	}
	if room.ProjectID != actor.ProjectID {
		return domain.ErrPermissionDenied
	}
	if room.UserEmail == nil {
		return domain.ErrRoomStillQueued
	}
	if !actor.IsAdmin() && !room.AssignedTo(actor.Email) {
		return domain.ErrNotRoomUser
	}
	return nil
}

// PinRoom pins an active room for the actor, bounded by the project cap.
func (s *Service) PinRoom(ctx context.Context, actor Actor, roomID uuid.UUID) error {
	project, err := s.directory.GetProject(ctx, actor.ProjectID)
	if err != nil {
		return err
	}
	maxPins := project.MaxPins
	if maxPins <= 0 {
		maxPins = s.cfg.DefaultMaxPins
	}

	return s.tx.InRoomTx(ctx, roomID, func(ctx context.Context, tx ports.RepoSet) error {
		room, err := tx.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.IsActive {
			return domain.ErrRoomNotActive
		}
		if room.ProjectID != actor.ProjectID {
			return domain.ErrPermissionDenied
		}
		exists, err := tx.Pins.ExistsForRoom(ctx, roomID, actor.Email)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		count, err := tx.Pins.CountByUser(ctx, actor.ProjectID, actor.Email)
		if err != nil {
			return err
		}
		if count >= maxPins {
			return domain.ErrMaxPinLimit
		}
		return tx.Pins.Create(ctx, domain.RoomPin{
			ID:        uuid.New(),
			RoomID:    roomID,
			UserEmail: domain.NormalizeEmail(actor.Email),
			CreatedOn: s.nowFn(),
		})
	})
}

// UnpinRoom removes the actor's pin; unpinning an unpinned room is a no-op.
func (s *Service) UnpinRoom(ctx context.Context, actor Actor, roomID uuid.UUID) error {
	return s.pins.Delete(ctx, roomID, domain.NormalizeEmail(actor.Email))
}

// CreateRoomNote annotates an in-progress room.
func (s *Service) CreateRoomNote(ctx context.Context, actor Actor, roomID uuid.UUID, text string) (domain.RoomNote, error) {
	if text == "" {
		return domain.RoomNote{}, fmt.Errorf("%w: note text is required", domain.ErrInvalidInput)
	}
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return domain.RoomNote{}, err
	}
	if !room.IsActive {
		return domain.RoomNote{}, domain.ErrRoomNotActive
	}
	if room.ProjectID != actor.ProjectID {
		return domain.RoomNote{}, domain.ErrPermissionDenied
	}
	return s.notes.Create(ctx, domain.RoomNote{
		ID:        uuid.New(),
		RoomID:    roomID,
		UserEmail: domain.NormalizeEmail(actor.Email),
		Text:      text,
		CreatedOn: s.nowFn(),
	})
}

// DeleteRoomNote removes a note unless the room has since been transferred,
// which locks all existing notes.
func (s *Service) DeleteRoomNote(ctx context.Context, actor Actor, noteID uuid.UUID) error {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return err
	}
	if note.Locked {
		return domain.ErrNoteLocked
	}
	if !actor.IsAdmin() && note.UserEmail != domain.NormalizeEmail(actor.Email) {
		return domain.ErrPermissionDenied
	}
	return s.notes.Delete(ctx, noteID)
}

// ListRoomNotes lists a room's notes.
func (s *Service) ListRoomNotes(ctx context.Context, actor Actor, roomID uuid.UUID) ([]domain.RoomNote, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.ProjectID != actor.ProjectID {
		return nil, domain.ErrPermissionDenied
	}
	return s.notes.ListByRoom(ctx, roomID)
}

// GenerateRoomsReport builds a per-project room census. Concurrent runs for
// the same project are refused through the report guard key.
func (s *Service) GenerateRoomsReport(ctx context.Context, actor Actor, projectID uuid.UUID) (RoomsReport, error) {
	if !actor.IsAdmin() || actor.ProjectID != projectID {
		return RoomsReport{}, domain.ErrPermissionDenied
	}
	ok, err := s.reports.TryStart(ctx, projectID, s.cfg.ReportTTL)
	if err != nil {
		return RoomsReport{}, err
	}
	if !ok {
		return RoomsReport{}, domain.ErrReportInProgress
	}
	defer func() {
		if finishErr := s.reports.Finish(ctx, projectID); finishErr != nil {
			appLogger().WarnContext(ctx, "report guard release failed",
				"operation", "rooms_report",
				"outcome", "failure",
				"project", projectID.String(),
				"error", finishErr.Error(),
			)
		}
	}()

	rooms, err := s.rooms.List(ctx, ports.RoomFilter{ProjectID: projectID})
	if err != nil {
		return RoomsReport{}, err
	}
	report := RoomsReport{ProjectID: projectID, GeneratedAt: s.nowFn()}
	for _, room := range rooms {
		report.Total++
		switch {
		case !room.IsActive:
			report.Closed++
		case room.UserEmail == nil:
			report.Queued++
		default:
			report.InProgress++
		}
	}
	return report, nil
}
