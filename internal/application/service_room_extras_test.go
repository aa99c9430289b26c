package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viralforge/livechat/internal/domain"
)

func TestPinRoomCapAndIdempotence(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingGeneral)
	project.MaxPins = 1
	f.store.projects[project.ID] = project
	sector := f.addSector(project, 5)
	queue := f.addQueue(sector, false)
	agent := f.addAgent(project.ID, "agent@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)

	first := f.addAssignedRoom(queue, f.addContact(project.ID, "ext-1", "tel:+111", ""), agent.UserEmail, time.Hour)
	second := f.addAssignedRoom(queue, f.addContact(project.ID, "ext-2", "tel:+222", ""), agent.UserEmail, time.Hour)

	if err := f.svc.PinRoom(context.Background(), actorFor(agent), first.ID); err != nil {
		t.Fatalf("PinRoom: %v", err)
	}
	// Pinning a pinned room is a no-op, not a second pin.
	if err := f.svc.PinRoom(context.Background(), actorFor(agent), first.ID); err != nil {
		t.Fatalf("repeat PinRoom: %v", err)
	}
	if len(f.store.pins) != 1 {
		t.Fatalf("pins = %d, want 1", len(f.store.pins))
	}

	if err := f.svc.PinRoom(context.Background(), actorFor(agent), second.ID); !errors.Is(err, domain.ErrMaxPinLimit) {
		t.Fatalf("err = %v, want ErrMaxPinLimit", err)
	}

	// Unpin twice: pin state ends exactly where a single unpin leaves it.
	if err := f.svc.UnpinRoom(context.Background(), actorFor(agent), first.ID); err != nil {
		t.Fatalf("UnpinRoom: %v", err)
	}
	if err := f.svc.UnpinRoom(context.Background(), actorFor(agent), first.ID); err != nil {
		t.Fatalf("repeat UnpinRoom: %v", err)
	}
	if len(f.store.pins) != 0 {
		t.Fatalf("pins = %d, want 0", len(f.store.pins))
	}

	if err := f.svc.PinRoom(context.Background(), actorFor(agent), second.ID); err != nil {
		t.Fatalf("PinRoom after unpin: %v", err)
	}
}

func TestRoomTagAddRemoveRestoresSet(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingGeneral)
	sector := f.addSector(project, 5)
	queue := f.addQueue(sector, false)
	agent := f.addAgent(project.ID, "agent@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)
	tag := f.addTag(sector, "billing")
	room := f.addAssignedRoom(queue, f.addContact(project.ID, "ext-1", "tel:+111", ""), agent.UserEmail, time.Hour)

	got, err := f.svc.AddRoomTag(context.Background(), actorFor(agent), room.ID, tag.ID)
	if err != nil {
		t.Fatalf("AddRoomTag: %v", err)
	}
	if len(got.TagIDs) != 1 || got.TagIDs[0] != tag.ID {
		t.Fatalf("tags = %v, want [%s]", got.TagIDs, tag.ID)
	}
	// Adding the same tag again keeps the set unchanged.
	got, err = f.svc.AddRoomTag(context.Background(), actorFor(agent), room.ID, tag.ID)
	if err != nil {
		t.Fatalf("repeat AddRoomTag: %v", err)
	}
	if len(got.TagIDs) != 1 {
		t.Fatalf("tags = %v, want single entry", got.TagIDs)
	}

	got, err = f.svc.RemoveRoomTag(context.Background(), actorFor(agent), room.ID, tag.ID)
	if err != nil {
		t.Fatalf("RemoveRoomTag: %v", err)
	}
	if len(got.TagIDs) != 0 {
		t.Fatalf("tags = %v, want empty", got.TagIDs)
	}
	// Removing an absent tag is a no-op.
	if _, err := f.svc.RemoveRoomTag(context.Background(), actorFor(agent), room.ID, tag.ID); err != nil {
		t.Fatalf("repeat RemoveRoomTag: %v", err)
	}
}

func TestAddRoomTagRejectsForeignSector(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingGeneral)
	sector := f.addSector(project, 5)
	otherSector := f.addSector(project, 5)
	queue := f.addQueue(sector, false)
	agent := f.addAgent(project.ID, "agent@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)
	foreignTag := f.addTag(otherSector, "foreign")
	room := f.addAssignedRoom(queue, f.addContact(project.ID, "ext-1", "tel:+111", ""), agent.UserEmail, time.Hour)

	_, err := f.svc.AddRoomTag(context.Background(), actorFor(agent), room.ID, foreignTag.ID)
	if !errors.Is(err, domain.ErrTagNotFound) {
		t.Fatalf("err = %v, want ErrTagNotFound", err)
	}
}

func TestAddRoomTagRejectsQueuedRoom(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingGeneral)
	sector := f.addSector(project, 5)
	queue := f.addQueue(sector, false)
	agent := f.addAgent(project.ID, "agent@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)
	tag := f.addTag(sector, "billing")
	room := f.addQueuedRoom(queue, f.addContact(project.ID, "ext-1", "tel:+111", ""), time.Minute)

	_, err := f.svc.AddRoomTag(context.Background(), actorFor(agent), room.ID, tag.ID)
	if !errors.Is(err, domain.ErrRoomStillQueued) {
		t.Fatalf("err = %v, want ErrRoomStillQueued", err)
	}
}

func TestDeleteRoomNotePermissions(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingGeneral)
	sector := f.addSector(project, 5)
	queue := f.addQueue(sector, false)
	author := f.addAgent(project.ID, "author@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)
	other := f.addAgent(project.ID, "other@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)
	admin := f.addAgent(project.ID, "admin@acme.com", domain.StatusOffline, domain.RoleAdmin)
	room := f.addAssignedRoom(queue, f.addContact(project.ID, "ext-1", "tel:+111", ""), author.UserEmail, time.Hour)

	note, err := f.svc.CreateRoomNote(context.Background(), actorFor(author), room.ID, "remember the invoice")
	if err != nil {
		t.Fatalf("CreateRoomNote: %v", err)
	}

	if err := f.svc.DeleteRoomNote(context.Background(), actorFor(other), note.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("foreign delete err = %v, want ErrPermissionDenied", err)
	}
	if err := f.svc.DeleteRoomNote(context.Background(), actorFor(admin), note.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestGenerateRoomsReport(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingGeneral)
	sector := f.addSector(project, 5)
	queue := f.addQueue(sector, false)
	admin := f.addAgent(project.ID, "admin@acme.com", domain.StatusOffline, domain.RoleAdmin)

	f.addQueuedRoom(queue, f.addContact(project.ID, "ext-1", "tel:+111", ""), time.Minute)
	f.addAssignedRoom(queue, f.addContact(project.ID, "ext-2", "tel:+222", ""), "agent@acme.com", time.Hour)
	f.addClosedRoom(queue, f.addContact(project.ID, "ext-3", "tel:+333", ""))

	report, err := f.svc.GenerateRoomsReport(context.Background(), actorFor(admin), project.ID)
	if err != nil {
		t.Fatalf("GenerateRoomsReport: %v", err)
	}
	if report.Total != 3 || report.Queued != 1 || report.InProgress != 1 || report.Closed != 1 {
		t.Fatalf("report = %+v, want total 3 / queued 1 / in progress 1 / closed 1", report)
	}

	// A run that is already in flight refuses a second one.
	if ok, _ := f.reports.TryStart(context.Background(), project.ID, time.Minute); !ok {
		t.Fatal("guard must be free after a finished run")
	}
	_, err = f.svc.GenerateRoomsReport(context.Background(), actorFor(admin), project.ID)
	if !errors.Is(err, domain.ErrReportInProgress) {
		t.Fatalf("err = %v, want ErrReportInProgress", err)
	}
}

func TestGenerateRoomsReportRequiresProjectAdmin(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingGeneral)
	attendant := f.addAgent(project.ID, "agent@acme.com", domain.StatusOnline, domain.RoleAttendant)

	_, err := f.svc.GenerateRoomsReport(context.Background(), actorFor(attendant), project.ID)
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}
