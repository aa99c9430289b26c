package application

import (
	"context"
	"testing"
	"time"

	"github.com/viralforge/livechat/internal/domain"
)

func TestRouteQueueRoomsAssignsLeastLoadedOnlineAgent(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingQueuePriority)
	sector := f.addSector(project, 5)
	queue := f.addQueue(sector, false)

	busyAgent := f.addAgent(project.ID, "a@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)
	freeAgent := f.addAgent(project.ID, "b@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)
	f.addAgent(project.ID, "c@acme.com", domain.StatusOffline, domain.RoleAttendant, queue)

	busyContact := f.addContact(project.ID, "ext-busy", "whatsapp:+5511990000001", "")
	f.addAssignedRoom(queue, busyContact, busyAgent.UserEmail, time.Hour)

	contact := f.addContact(project.ID, "ext-1", "whatsapp:+5511990000002", "")
	room := f.addQueuedRoom(queue, contact, 30*time.Second)

	if err := f.svc.RouteQueueRooms(context.Background(), queue.ID); err != nil {
		t.Fatalf("RouteQueueRooms: %v", err)
	}

	got := f.room(room.ID)
	if got.UserEmail == nil || *got.UserEmail != freeAgent.UserEmail {
		t.Fatalf("room assigned to %v, want %s", got.UserEmail, freeAgent.UserEmail)
	}
	if len(got.TransferHistory) != 1 {
		t.Fatalf("transfer history has %d entries, want 1", len(got.TransferHistory))
	}
	if got.TransferHistory[0].Action != domain.TransferAutoAssign {
		t.Fatalf("transfer action = %s, want %s", got.TransferHistory[0].Action, domain.TransferAutoAssign)
	}

	metrics := f.roomMetrics(room.ID)
	if metrics.WaitingTime != 30 {
		t.Fatalf("waiting time = %d, want 30", metrics.WaitingTime)
	}

	status, statusType := f.activeStatus(project.ID, freeAgent.UserEmail)
	if status == nil {
		t.Fatal("expected an active in-service status for the assignee")
	}
	if !statusType.CreatedBySystem || statusType.Name != domain.InServiceTypeName {
		t.Fatalf("active status type = %+v, want system %s", statusType, domain.InServiceTypeName)
	}

	if f.store.countExports("livechat.room.assigned") != 1 {
		t.Fatal("expected one room.assigned export event")
	}
	if !f.bus.has("queue_"+queue.ID.String(), "room.update") {
		t.Fatal("expected room.update on the queue group")
	}
	if !f.bus.has("permission_"+freeAgent.ID.String(), "room.update") {
		t.Fatal("expected room.update on the assignee permission group")
	}
}

func TestRouteQueueRoomsVisitsRoomsInQueueOrder(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingQueuePriority)
	sector := f.addSector(project, 1)
	queue := f.addQueue(sector, false)
	agent := f.addAgent(project.ID, "solo@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)

	older := f.addQueuedRoom(queue, f.addContact(project.ID, "ext-old", "tel:+111", ""), 10*time.Minute)
	younger := f.addQueuedRoom(queue, f.addContact(project.ID, "ext-new", "tel:+222", ""), time.Minute)

	if err := f.svc.RouteQueueRooms(context.Background(), queue.ID); err != nil {
		t.Fatalf("RouteQueueRooms: %v", err)
	}

	if got := f.room(older.ID); got.UserEmail == nil || *got.UserEmail != agent.UserEmail {
		t.Fatal("oldest queued room should be assigned first")
	}
	// The agent is at the sector limit now, so the cycle stops.
	if got := f.room(younger.ID); got.UserEmail != nil {
		t.Fatal("younger room should remain queued once capacity is exhausted")
	}
}

func TestRouteQueueRoomsKeepsSeniorityAcrossRequeues(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingQueuePriority)
	sector := f.addSector(project, 1)
	queue := f.addQueue(sector, false)
	agent := f.addAgent(project.ID, "solo@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)

	// Senior room re-entered the queue just now (e.g. transferred back);
	// its created_on is an hour old while added_to_queue_at is fresh.
	requeued := f.addQueuedRoom(queue, f.addContact(project.ID, "ext-senior", "tel:+111", ""), time.Minute)
	senior := f.room(requeued.ID)
	senior.CreatedOn = f.now.Add(-time.Hour)
	f.store.rooms[requeued.ID] = senior

	junior := f.addQueuedRoom(queue, f.addContact(project.ID, "ext-junior", "tel:+222", ""), 5*time.Minute)

	if err := f.svc.RouteQueueRooms(context.Background(), queue.ID); err != nil {
		t.Fatalf("RouteQueueRooms: %v", err)
	}

	if got := f.room(requeued.ID); got.UserEmail == nil || *got.UserEmail != agent.UserEmail {
		t.Fatal("oldest room by created_on keeps its place despite the fresh requeue")
	}
	if got := f.room(junior.ID); got.UserEmail != nil {
		t.Fatal("junior room must wait behind the re-queued senior one")
	}
}

func TestRouteQueueRoomsSkipsAgentsOnBreak(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingQueuePriority)
	sector := f.addSector(project, 5)
	queue := f.addQueue(sector, false)
	agent := f.addAgent(project.ID, "break@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)

	lunch := f.addStatusType(project.ID, "Lunch", false)
	f.addActiveStatus(project.ID, agent.UserEmail, lunch, time.Minute)

	room := f.addQueuedRoom(queue, f.addContact(project.ID, "ext-1", "tel:+111", ""), time.Minute)

	if err := f.svc.RouteQueueRooms(context.Background(), queue.ID); err != nil {
		t.Fatalf("RouteQueueRooms: %v", err)
	}
	if got := f.room(room.ID); got.UserEmail != nil {
		t.Fatal("room must stay queued while the only agent is on a break")
	}
}

func TestRouteQueueRoomsIgnoresGeneralRoutingProjects(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingGeneral)
	sector := f.addSector(project, 5)
	queue := f.addQueue(sector, false)
	f.addAgent(project.ID, "a@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)
	room := f.addQueuedRoom(queue, f.addContact(project.ID, "ext-1", "tel:+111", ""), time.Minute)

	if err := f.svc.RouteQueueRooms(context.Background(), queue.ID); err != nil {
		t.Fatalf("RouteQueueRooms: %v", err)
	}
	if got := f.room(room.ID); got.UserEmail != nil {
		t.Fatal("general-routing projects must not auto-dispatch")
	}
	if f.locks.acquireCount(queue.ID) != 0 {
		t.Fatal("dispatcher must not take the queue lock for general routing")
	}
}

func TestRouteQueueRoomsCoalescesOnHeldLock(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingQueuePriority)
	sector := f.addSector(project, 5)
	queue := f.addQueue(sector, false)
	f.addAgent(project.ID, "a@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)
	room := f.addQueuedRoom(queue, f.addContact(project.ID, "ext-1", "tel:+111", ""), time.Minute)

	f.locks.held[queue.ID] = true
	if err := f.svc.RouteQueueRooms(context.Background(), queue.ID); err != nil {
		t.Fatalf("RouteQueueRooms: %v", err)
	}
	if got := f.room(room.ID); got.UserEmail != nil {
		t.Fatal("losing the queue lock must skip the cycle")
	}
}

func TestSelectAvailableAgentRespectsSectorRoomLimit(t *testing.T) {
	f := newFixture(t)
	project := f.addProject(domain.RoutingQueuePriority)
	sector := f.addSector(project, 1)
	queue := f.addQueue(sector, false)
	agent := f.addAgent(project.ID, "full@acme.com", domain.StatusOnline, domain.RoleAttendant, queue)

	f.addAssignedRoom(queue, f.addContact(project.ID, "ext-active", "tel:+111", ""), agent.UserEmail, time.Hour)
	room := f.addQueuedRoom(queue, f.addContact(project.ID, "ext-waiting", "tel:+222", ""), time.Minute)

	if err := f.svc.RouteQueueRooms(context.Background(), queue.ID); err != nil {
		t.Fatalf("RouteQueueRooms: %v", err)
	}
	if got := f.room(room.ID); got.UserEmail != nil {
		t.Fatal("agent at the sector room limit must not receive another room")
	}
}
