package ports

import "context"

// Event is the wire envelope delivered to socket groups.
type Event struct {
	Type    string         `json:"type"`
	Action  string         `json:"action"`
	Content map[string]any `json:"content"`
}

// Event types published on permission, queue and room groups.
const (
	EventStatusUpdate      = "status.update"
	EventStatusClose       = "status.close"
	EventCustomStatusClose = "custom_status.close"
	EventRoomCreate        = "room.create"
	EventRoomUpdate        = "room.update"
	EventRoomClose         = "room.close"
	EventRoomDestroy       = "room.destroy"
	EventMsgCreate         = "msg.create"
)

// EventBus fans events out to named groups. Delivery is best-effort and
// unordered across groups; within one group each subscriber observes publish
// order. Publish failures never corrupt engine state.
type EventBus interface {
	Publish(ctx context.Context, group string, event Event) error
	// Subscribe attaches a consumer to a group. The returned cancel detaches
	// it and closes the channel.
	Subscribe(group string) (<-chan Event, func())
}

// ExportPublisher delivers claimed outbox records to the downstream broker
// consumed by billing and analytics.
type ExportPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
