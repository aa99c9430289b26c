package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type projectModel struct {
	ProjectID     uuid.UUID      `gorm:"column:project_id;type:uuid;primaryKey"`
	Name          string         `gorm:"column:name"`
	Timezone      string         `gorm:"column:timezone"`
	DateFormat    string         `gorm:"column:date_format"`
	OrgID         uuid.UUID      `gorm:"column:org_id"`
	RoutingType   string         `gorm:"column:routing_type"`
	RoutingOption string         `gorm:"column:routing_option"`
	Config        datatypes.JSON `gorm:"column:config;type:jsonb"`
	MaxPins       int            `gorm:"column:max_pins"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
}

func (projectModel) TableName() string { return "projects" }

type sectorModel struct {
	SectorID             uuid.UUID `gorm:"column:sector_id;type:uuid;primaryKey"`
	ProjectID            uuid.UUID `gorm:"column:project_id"`
	Name                 string    `gorm:"column:name"`
	WorkStart            string    `gorm:"column:work_start"`
	WorkEnd              string    `gorm:"column:work_end"`
	RoomsLimit           int       `gorm:"column:rooms_limit"`
	CSATEnabled          bool      `gorm:"column:csat_enabled"`
	AutomaticMessage     bool      `gorm:"column:automatic_message"`
	AutomaticMessageText string    `gorm:"column:automatic_message_text"`
	CanCloseChatsInQueue bool      `gorm:"column:can_close_chats_in_queue"`
}

func (sectorModel) TableName() string { return "sectors" }

type queueModel struct {
	QueueID      uuid.UUID `gorm:"column:queue_id;type:uuid;primaryKey"`
	SectorID     uuid.UUID `gorm:"column:sector_id"`
	ProjectID    uuid.UUID `gorm:"column:project_id"`
	Name         string    `gorm:"column:name"`
	RequiredTags bool      `gorm:"column:required_tags"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (queueModel) TableName() string { return "queues" }

type sectorTagModel struct {
	TagID    uuid.UUID `gorm:"column:tag_id;type:uuid;primaryKey"`
	SectorID uuid.UUID `gorm:"column:sector_id"`
	Name     string    `gorm:"column:name"`
}

func (sectorTagModel) TableName() string { return "sector_tags" }

type permissionModel struct {
	PermissionID   uuid.UUID  `gorm:"column:permission_id;type:uuid;primaryKey"`
	ProjectID      uuid.UUID  `gorm:"column:project_id"`
	UserEmail      string     `gorm:"column:user_email"`
	UserFirstName  string     `gorm:"column:user_first_name"`
	Role           int        `gorm:"column:role"`
	Status         string     `gorm:"column:status"`
	FirstAccess    bool       `gorm:"column:first_access"`
	LastSeenOnline *time.Time `gorm:"column:last_seen_online"`
	AdminToken     *uuid.UUID `gorm:"column:admin_token"`
}

func (permissionModel) TableName() string { return "project_permissions" }

type queueAuthorizationModel struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PermissionID uuid.UUID `gorm:"column:permission_id"`
	QueueID      uuid.UUID `gorm:"column:queue_id"`
	Role         int       `gorm:"column:role"`
}

func (queueAuthorizationModel) TableName() string { return "queue_authorizations" }

type sectorAuthorizationModel struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PermissionID uuid.UUID `gorm:"column:permission_id"`
	SectorID     uuid.UUID `gorm:"column:sector_id"`
	Role         int       `gorm:"column:role"`
}

func (sectorAuthorizationModel) TableName() string { return "sector_authorizations" }

type contactModel struct {
	ContactID    uuid.UUID      `gorm:"column:contact_id;type:uuid;primaryKey"`
	ProjectID    uuid.UUID      `gorm:"column:project_id"`
	ExternalID   string         `gorm:"column:external_id"`
	Name         string         `gorm:"column:name"`
	URN          string         `gorm:"column:urn"`
	LinkedUser   string         `gorm:"column:linked_user"`
	CustomFields datatypes.JSON `gorm:"column:custom_fields;type:jsonb"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
}

func (contactModel) TableName() string { return "contacts" }

type roomModel struct {
	RoomID    uuid.UUID  `gorm:"column:room_id;type:uuid;primaryKey"`
	ProjectID uuid.UUID  `gorm:"column:project_id"`
	SectorID  uuid.UUID  `gorm:"column:sector_id"`
	QueueID   *uuid.UUID `gorm:"column:queue_id"`
	ContactID uuid.UUID  `gorm:"column:contact_id"`
	UserEmail *string    `gorm:"column:user_email"`

	IsActive  bool   `gorm:"column:is_active"`
	IsWaiting bool   `gorm:"column:is_waiting"`
	URN       string `gorm:"column:urn"`

	CreatedOn              time.Time  `gorm:"column:created_on"`
	EndedAt                *time.Time `gorm:"column:ended_at"`
	EndedBy                string     `gorm:"column:ended_by"`
	LastInteraction        *time.Time `gorm:"column:last_interaction"`
	LastContactInteraction *time.Time `gorm:"column:last_contact_interaction"`
	UserAssignedAt         *time.Time `gorm:"column:user_assigned_at"`
	AddedToQueueAt         *time.Time `gorm:"column:added_to_queue_at"`

	TransferHistory datatypes.JSON `gorm:"column:transfer_history;type:jsonb"`
	CustomFields    datatypes.JSON `gorm:"column:custom_fields;type:jsonb"`
	Tags            datatypes.JSON `gorm:"column:tags;type:jsonb"`

	TicketUUID  *uuid.UUID `gorm:"column:ticket_uuid"`
	CallbackURL string     `gorm:"column:callback_url"`
}

func (roomModel) TableName() string { return "rooms" }

type messageModel struct {
	MessageID uuid.UUID  `gorm:"column:message_id;type:uuid;primaryKey"`
	RoomID    uuid.UUID  `gorm:"column:room_id"`
	UserEmail *string    `gorm:"column:user_email"`
	ContactID *uuid.UUID `gorm:"column:contact_id"`
	Text      string     `gorm:"column:text"`
	Seen      bool       `gorm:"column:seen"`
	CreatedOn time.Time  `gorm:"column:created_on"`

	FeedbackMethod  string         `gorm:"column:feedback_method"`
	FeedbackPayload datatypes.JSON `gorm:"column:feedback_payload;type:jsonb"`
}

func (messageModel) TableName() string { return "messages" }

type attachmentModel struct {
	AttachmentID uuid.UUID `gorm:"column:attachment_id;type:uuid;primaryKey"`
	MessageID    uuid.UUID `gorm:"column:message_id"`
	ContentType  string    `gorm:"column:content_type"`
	URL          string    `gorm:"column:url"`
}

func (attachmentModel) TableName() string { return "message_attachments" }

type roomMetricsModel struct {
	RoomID              uuid.UUID `gorm:"column:room_id;type:uuid;primaryKey"`
	WaitingTime         int       `gorm:"column:waiting_time"`
	QueuedCount         int       `gorm:"column:queued_count"`
	TransferCount       int       `gorm:"column:transfer_count"`
	FirstResponseTime   int       `gorm:"column:first_response_time"`
	MessageResponseTime int       `gorm:"column:message_response_time"`
	InteractionTime     int       `gorm:"column:interaction_time"`
}

func (roomMetricsModel) TableName() string { return "room_metrics" }

type roomPinModel struct {
	PinID     uuid.UUID `gorm:"column:pin_id;type:uuid;primaryKey"`
	RoomID    uuid.UUID `gorm:"column:room_id"`
	UserEmail string    `gorm:"column:user_email"`
	CreatedOn time.Time `gorm:"column:created_on"`
}

func (roomPinModel) TableName() string { return "room_pins" }

type roomNoteModel struct {
	NoteID    uuid.UUID `gorm:"column:note_id;type:uuid;primaryKey"`
	RoomID    uuid.UUID `gorm:"column:room_id"`
	UserEmail string    `gorm:"column:user_email"`
	Text      string    `gorm:"column:text"`
	Locked    bool      `gorm:"column:locked"`
	CreatedOn time.Time `gorm:"column:created_on"`
}

func (roomNoteModel) TableName() string { return "room_notes" }

type customStatusTypeModel struct {
	TypeID          uuid.UUID `gorm:"column:type_id;type:uuid;primaryKey"`
	ProjectID       uuid.UUID `gorm:"column:project_id"`
	Name            string    `gorm:"column:name"`
	IsDeleted       bool      `gorm:"column:is_deleted"`
	CreatedBySystem bool      `gorm:"column:created_by_system"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (customStatusTypeModel) TableName() string { return "custom_status_types" }

type customStatusModel struct {
	StatusID     uuid.UUID `gorm:"column:status_id;type:uuid;primaryKey"`
	ProjectID    uuid.UUID `gorm:"column:project_id"`
	UserEmail    string    `gorm:"column:user_email"`
	StatusTypeID uuid.UUID `gorm:"column:status_type_id"`
	IsActive     bool      `gorm:"column:is_active"`
	BreakTime    int       `gorm:"column:break_time"`
	CreatedOn    time.Time `gorm:"column:created_on"`
}

func (customStatusModel) TableName() string { return "custom_statuses" }

type csatSurveyModel struct {
	SurveyID   uuid.UUID `gorm:"column:survey_id;type:uuid;primaryKey"`
	RoomID     uuid.UUID `gorm:"column:room_id"`
	Rating     int       `gorm:"column:rating"`
	Comment    string    `gorm:"column:comment"`
	AnsweredOn time.Time `gorm:"column:answered_on"`
}

func (csatSurveyModel) TableName() string { return "csat_surveys" }

type chatOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (chatOutboxModel) TableName() string { return "chat_outbox" }
