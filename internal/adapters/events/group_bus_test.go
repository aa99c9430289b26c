package events

import (
	"context"
	"fmt"
	"testing"

	"github.com/viralforge/livechat/internal/ports"
)

func TestGroupBusDeliversInPublishOrder(t *testing.T) {
	bus := NewGroupBus(16)
	ch, cancel := bus.Subscribe("queue_a")
	defer cancel()

	for i := 0; i < 5; i++ {
		err := bus.Publish(context.Background(), "queue_a", ports.Event{
			Type:   "room.update",
			Action: fmt.Sprintf("seq-%d", i),
		})
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		event := <-ch
		if want := fmt.Sprintf("seq-%d", i); event.Action != want {
			t.Fatalf("event %d action = %s, want %s", i, event.Action, want)
		}
	}
}

func TestGroupBusIsolatesGroups(t *testing.T) {
	bus := NewGroupBus(16)
	a, cancelA := bus.Subscribe("queue_a")
	defer cancelA()
	b, cancelB := bus.Subscribe("queue_b")
	defer cancelB()

	if err := bus.Publish(context.Background(), "queue_a", ports.Event{Type: "room.create"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if event := <-a; event.Type != "room.create" {
		t.Fatalf("group a got %s", event.Type)
	}
	select {
	case event := <-b:
		t.Fatalf("group b must stay silent, got %s", event.Type)
	default:
	}
}

func TestGroupBusCancelClosesChannel(t *testing.T) {
	bus := NewGroupBus(4)
	ch, cancel := bus.Subscribe("room_x")
	cancel()

	if _, open := <-ch; open {
		t.Fatal("channel must be closed after cancel")
	}
	// Cancel is safe to call twice and the group is gone.
	cancel()
	if err := bus.Publish(context.Background(), "room_x", ports.Event{Type: "room.update"}); err != nil {
		t.Fatalf("Publish to empty group: %v", err)
	}
}

func TestGroupBusDropsOnFullSubscriber(t *testing.T) {
	bus := NewGroupBus(1)
	slow, cancelSlow := bus.Subscribe("queue_a")
	defer cancelSlow()
	fast, cancelFast := bus.Subscribe("queue_a")
	defer cancelFast()

	// Second publish overflows the slow subscriber's buffer and is dropped
	// there; the publisher never blocks and the fast reader keeps draining.
	if err := bus.Publish(context.Background(), "queue_a", ports.Event{Action: "first"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if event := <-fast; event.Action != "first" {
		t.Fatalf("fast got %s", event.Action)
	}
	if err := bus.Publish(context.Background(), "queue_a", ports.Event{Action: "second"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if event := <-fast; event.Action != "second" {
		t.Fatalf("fast got %s", event.Action)
	}

	if event := <-slow; event.Action != "first" {
		t.Fatalf("slow got %s", event.Action)
	}
	select {
	case event := <-slow:
		t.Fatalf("overflow event must be dropped, got %s", event.Action)
	default:
	}
}
