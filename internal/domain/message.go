package domain

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackMethod tags system messages that narrate an engine action.
type FeedbackMethod string

const (
	FeedbackRoomTransfer     FeedbackMethod = "room_transfer"
	FeedbackEditCustomFields FeedbackMethod = "edit_custom_fields"
	FeedbackFlowStart        FeedbackMethod = "flow_start"
)

// MessageDirection distinguishes imported history records.
type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
)

// Message is one room history entry. Exactly one author is set: UserEmail for
// agents, ContactID for contacts, neither for system messages. Feedback
// messages are system messages carrying a structured payload and method tag.
type Message struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	UserEmail *string
	ContactID *uuid.UUID
	Text      string
	Seen      bool
	CreatedOn time.Time

	FeedbackMethod  FeedbackMethod
	FeedbackPayload map[string]any

	Attachments []MessageAttachment
}

// IsSystem reports whether the message was authored by the engine itself.
func (m Message) IsSystem() bool {
	return m.UserEmail == nil && m.ContactID == nil
}

// MessageAttachment is a media reference on an imported or sent message.
type MessageAttachment struct {
	ID          uuid.UUID
	MessageID   uuid.UUID
	ContentType string
	URL         string
}

// HistoryRecord is one entry of a message-history import. A record must carry
// text or at least one attachment.
type HistoryRecord struct {
	Direction   MessageDirection
	Text        string
	Attachments []MessageAttachment
	CreatedOn   time.Time
}

// Validate enforces the text-or-attachments rule on imports.
func (h HistoryRecord) Validate() error {
	if h.Direction != DirectionIncoming && h.Direction != DirectionOutgoing {
		return ErrInvalidInput
	}
	if h.Text == "" && len(h.Attachments) == 0 {
		return ErrInvalidInput
	}
	return nil
}
