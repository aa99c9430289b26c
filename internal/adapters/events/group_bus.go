package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/viralforge/livechat/internal/ports"
)

// GroupBus is the in-process fanout hub behind the socket layer. Groups are
// created on first subscribe and dropped when their last subscriber leaves.
// Within one group every subscriber observes publish order; a subscriber that
// cannot keep up loses events rather than blocking the publisher.
type GroupBus struct {
	mu     sync.RWMutex
	groups map[string]map[int]chan ports.Event
	nextID int
	buffer int
}

func NewGroupBus(buffer int) *GroupBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &GroupBus{
		groups: map[string]map[int]chan ports.Event{},
		buffer: buffer,
	}
}

func (b *GroupBus) Publish(ctx context.Context, group string, event ports.Event) error {
	b.mu.RLock()
	subscribers := b.groups[group]
	targets := make([]chan ports.Event, 0, len(subscribers))
	for _, ch := range subscribers {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			slog.Default().WarnContext(ctx, "event dropped on slow subscriber",
				"module", "events",
				"layer", "adapter",
				"operation", "bus_publish",
				"outcome", "failure",
				"group", group,
				"event_type", event.Type,
			)
		}
	}
	return nil
}

func (b *GroupBus) Subscribe(group string) (<-chan ports.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.groups[group] == nil {
		b.groups[group] = map[int]chan ports.Event{}
	}
	id := b.nextID
	b.nextID++
	ch := make(chan ports.Event, b.buffer)
	b.groups[group][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subscribers, ok := b.groups[group]
		if !ok {
			return
		}
		if existing, ok := subscribers[id]; ok {
			delete(subscribers, id)
			close(existing)
		}
		if len(subscribers) == 0 {
			delete(b.groups, group)
		}
	}
	return ch, cancel
}
