package application

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/livechat/internal/domain"
	"github.com/viralforge/livechat/internal/ports"
)

// memStore backs every repository port with plain maps guarded by one mutex.
// The fake TxManager hands out the same store for every transaction, which is
// enough to exercise the engine's decision logic without a database.
type memStore struct {
	mu sync.Mutex

	rooms     map[uuid.UUID]domain.Room
	roomOrder []uuid.UUID
	messages  []domain.Message
	metrics   map[uuid.UUID]domain.RoomMetrics
	pins      []domain.RoomPin
	notes     map[uuid.UUID]domain.RoomNote
	noteOrder []uuid.UUID

	permissions map[uuid.UUID]domain.ProjectPermission
	adminTokens map[uuid.UUID]uuid.UUID
	queueAgents map[uuid.UUID][]uuid.UUID

	projects map[uuid.UUID]domain.Project
	sectors  map[uuid.UUID]domain.Sector
	queues   map[uuid.UUID]domain.Queue
	tags     map[uuid.UUID]domain.SectorTag
	contacts map[uuid.UUID]domain.Contact

	statuses    map[uuid.UUID]domain.CustomStatus
	statusTypes map[uuid.UUID]domain.CustomStatusType
	typeOrder   []uuid.UUID

	surveys map[uuid.UUID]domain.CSATSurvey
	outbox  []ports.OutboxRecord
}

func newMemStore() *memStore {
	return &memStore{
		rooms:       map[uuid.UUID]domain.Room{},
		metrics:     map[uuid.UUID]domain.RoomMetrics{},
		notes:       map[uuid.UUID]domain.RoomNote{},
		permissions: map[uuid.UUID]domain.ProjectPermission{},
		adminTokens: map[uuid.UUID]uuid.UUID{},
		queueAgents: map[uuid.UUID][]uuid.UUID{},
		projects:    map[uuid.UUID]domain.Project{},
		sectors:     map[uuid.UUID]domain.Sector{},
		queues:      map[uuid.UUID]domain.Queue{},
		tags:        map[uuid.UUID]domain.SectorTag{},
		contacts:    map[uuid.UUID]domain.Contact{},
		statuses:    map[uuid.UUID]domain.CustomStatus{},
		statusTypes: map[uuid.UUID]domain.CustomStatusType{},
		surveys:     map[uuid.UUID]domain.CSATSurvey{},
	}
}

func (s *memStore) repoSet() ports.RepoSet {
	return ports.RepoSet{
		Rooms:       &memRooms{s},
		Messages:    &memMessages{s},
		Metrics:     &memMetrics{s},
		Pins:        &memPins{s},
		Notes:       &memNotes{s},
		Permissions: &memPermissions{s},
		Statuses:    &memStatuses{s},
		Surveys:     &memSurveys{s},
		Outbox:      &memOutbox{s},
	}
}

func (s *memStore) countExports(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, rec := range s.outbox {
		if rec.EventType == eventType {
			count++
		}
	}
	return count
}

func (s *memStore) roomMessages(roomID uuid.UUID) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, msg := range s.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out
}

type memTx struct{ s *memStore }

func (t *memTx) InRoomTx(ctx context.Context, roomID uuid.UUID, fn func(ctx context.Context, tx ports.RepoSet) error) error {
	return fn(ctx, t.s.repoSet())
}

func (t *memTx) InPermissionTx(ctx context.Context, permissionID uuid.UUID, fn func(ctx context.Context, tx ports.RepoSet) error) error {
	return fn(ctx, t.s.repoSet())
}

func (t *memTx) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.RepoSet) error) error {
	return fn(ctx, t.s.repoSet())
}

type memRooms struct{ s *memStore }

func (r *memRooms) Create(ctx context.Context, room domain.Room) (domain.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.rooms {
		if existing.IsActive && existing.ContactID == room.ContactID &&
			existing.QueueID != nil && room.QueueID != nil && *existing.QueueID == *room.QueueID {
			return domain.Room{}, domain.ErrDuplicateActiveRoom
		}
	}
	r.s.rooms[room.ID] = room
	r.s.roomOrder = append(r.s.roomOrder, room.ID)
	return room, nil
}

func (r *memRooms) GetByID(ctx context.Context, roomID uuid.UUID) (domain.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return room, nil
}

func (r *memRooms) GetActiveByTicket(ctx context.Context, projectID uuid.UUID, ticketRef string) (domain.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range r.s.roomOrder {
		room := r.s.rooms[id]
		if !room.IsActive || room.ProjectID != projectID {
			continue
		}
		if room.TicketUUID != nil && room.TicketUUID.String() == ticketRef {
			return room, nil
		}
		if room.CallbackURL != "" && strings.HasSuffix(room.CallbackURL, ticketRef) {
			return room, nil
		}
	}
	return domain.Room{}, domain.ErrNotFound
}

func (r *memRooms) Update(ctx context.Context, room domain.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rooms[room.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.rooms[room.ID] = room
	return nil
}

func (r *memRooms) ListQueued(ctx context.Context, queueID uuid.UUID) ([]domain.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var queued []domain.Room
	for _, id := range r.s.roomOrder {
		room := r.s.rooms[id]
		if room.IsActive && room.UserEmail == nil && room.QueueID != nil && *room.QueueID == queueID {
			queued = append(queued, room)
		}
	}
	sort.SliceStable(queued, func(i, j int) bool {
		return queued[i].CreatedOn.Before(queued[j].CreatedOn)
	})
	return queued, nil
}

func (r *memRooms) List(ctx context.Context, filter ports.RoomFilter) ([]domain.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Room
	for _, id := range r.s.roomOrder {
		room := r.s.rooms[id]
		if filter.ProjectID != uuid.Nil && room.ProjectID != filter.ProjectID {
			continue
		}
		if filter.QueueID != nil && (room.QueueID == nil || *room.QueueID != *filter.QueueID) {
			continue
		}
		if filter.SectorID != nil && room.SectorID != *filter.SectorID {
			continue
		}
		if filter.UserEmail != nil && (room.UserEmail == nil || *room.UserEmail != *filter.UserEmail) {
			continue
		}
		if filter.ContactID != nil && room.ContactID != *filter.ContactID {
			continue
		}
		if filter.IsActive != nil && room.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, room)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memRooms) CountActiveByUser(ctx context.Context, projectID uuid.UUID, userEmail string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, room := range r.s.rooms {
		if room.IsActive && room.ProjectID == projectID && room.UserEmail != nil && *room.UserEmail == userEmail {
			count++
		}
	}
	return count, nil
}

func (r *memRooms) CountActiveAndClosedSince(ctx context.Context, projectID uuid.UUID, userEmail string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, room := range r.s.rooms {
		if room.ProjectID != projectID || room.UserEmail == nil || *room.UserEmail != userEmail {
			continue
		}
		if room.IsActive || (room.EndedAt != nil && room.EndedAt.After(since)) {
			count++
		}
	}
	return count, nil
}

type memMessages struct{ s *memStore }

func (m *memMessages) Create(ctx context.Context, message domain.Message) (domain.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.messages = append(m.s.messages, message)
	return message, nil
}

func (m *memMessages) ListByRoom(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.s.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memMessages) MarkSeenByRoom(ctx context.Context, roomID uuid.UUID, messageIDs []uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	wanted := map[uuid.UUID]bool{}
	for _, id := range messageIDs {
		wanted[id] = true
	}
	for i, msg := range m.s.messages {
		if msg.RoomID != roomID {
			continue
		}
		if len(messageIDs) == 0 || wanted[msg.ID] {
			m.s.messages[i].Seen = true
		}
	}
	return nil
}

type memMetrics struct{ s *memStore }

func (m *memMetrics) Get(ctx context.Context, roomID uuid.UUID) (domain.RoomMetrics, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if metrics, ok := m.s.metrics[roomID]; ok {
		return metrics, nil
	}
	return domain.RoomMetrics{RoomID: roomID}, nil
}

func (m *memMetrics) Upsert(ctx context.Context, metrics domain.RoomMetrics) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.metrics[metrics.RoomID] = metrics
	return nil
}

type memPins struct{ s *memStore }

func (p *memPins) Create(ctx context.Context, pin domain.RoomPin) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.pins = append(p.s.pins, pin)
	return nil
}

func (p *memPins) Delete(ctx context.Context, roomID uuid.UUID, userEmail string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	kept := p.s.pins[:0]
	for _, pin := range p.s.pins {
		if pin.RoomID == roomID && pin.UserEmail == userEmail {
			continue
		}
		kept = append(kept, pin)
	}
	p.s.pins = kept
	return nil
}

func (p *memPins) DeleteByRoom(ctx context.Context, roomID uuid.UUID) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	kept := p.s.pins[:0]
	for _, pin := range p.s.pins {
		if pin.RoomID != roomID {
			kept = append(kept, pin)
		}
	}
	p.s.pins = kept
	return nil
}

func (p *memPins) CountByUser(ctx context.Context, projectID uuid.UUID, userEmail string) (int, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	count := 0
	for _, pin := range p.s.pins {
		if pin.UserEmail != userEmail {
			continue
		}
		if room, ok := p.s.rooms[pin.RoomID]; ok && room.ProjectID == projectID {
			count++
		}
	}
	return count, nil
}

func (p *memPins) ExistsForRoom(ctx context.Context, roomID uuid.UUID, userEmail string) (bool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	for _, pin := range p.s.pins {
		if pin.RoomID == roomID && pin.UserEmail == userEmail {
			return true, nil
		}
	}
	return false, nil
}

type memNotes struct{ s *memStore }

func (n *memNotes) Create(ctx context.Context, note domain.RoomNote) (domain.RoomNote, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	n.s.notes[note.ID] = note
	n.s.noteOrder = append(n.s.noteOrder, note.ID)
	return note, nil
}

func (n *memNotes) GetByID(ctx context.Context, noteID uuid.UUID) (domain.RoomNote, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	note, ok := n.s.notes[noteID]
	if !ok {
		return domain.RoomNote{}, domain.ErrNotFound
	}
	return note, nil
}

func (n *memNotes) Delete(ctx context.Context, noteID uuid.UUID) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	if _, ok := n.s.notes[noteID]; !ok {
		return domain.ErrNotFound
	}
	delete(n.s.notes, noteID)
	return nil
}

func (n *memNotes) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.RoomNote, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	var out []domain.RoomNote
	for _, id := range n.s.noteOrder {
		if note, ok := n.s.notes[id]; ok && note.RoomID == roomID {
			out = append(out, note)
		}
	}
	return out, nil
}

func (n *memNotes) LockByRoom(ctx context.Context, roomID uuid.UUID) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	for id, note := range n.s.notes {
		if note.RoomID == roomID {
			note.Locked = true
			n.s.notes[id] = note
		}
	}
	return nil
}

type memPermissions struct{ s *memStore }

func (p *memPermissions) GetByID(ctx context.Context, permissionID uuid.UUID) (domain.ProjectPermission, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	perm, ok := p.s.permissions[permissionID]
	if !ok {
		return domain.ProjectPermission{}, domain.ErrNotFound
	}
	return perm, nil
}

func (p *memPermissions) GetByProjectAndEmail(ctx context.Context, projectID uuid.UUID, userEmail string) (domain.ProjectPermission, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	userEmail = domain.NormalizeEmail(userEmail)
	for _, perm := range p.s.permissions {
		if perm.ProjectID == projectID && perm.UserEmail == userEmail {
			return perm, nil
		}
	}
	return domain.ProjectPermission{}, domain.ErrNotFound
}

func (p *memPermissions) GetAdminByToken(ctx context.Context, token uuid.UUID) (domain.ProjectPermission, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	permID, ok := p.s.adminTokens[token]
	if !ok {
		return domain.ProjectPermission{}, domain.ErrInvalidToken
	}
	return p.s.permissions[permID], nil
}

func (p *memPermissions) UpdateStatus(ctx context.Context, permissionID uuid.UUID, status domain.PresenceStatus) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	perm, ok := p.s.permissions[permissionID]
	if !ok {
		return domain.ErrNotFound
	}
	perm.Status = status
	p.s.permissions[permissionID] = perm
	return nil
}

func (p *memPermissions) TouchLastSeen(ctx context.Context, permissionID uuid.UUID, at time.Time) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	perm, ok := p.s.permissions[permissionID]
	if !ok {
		return domain.ErrNotFound
	}
	perm.LastSeenOnline = &at
	p.s.permissions[permissionID] = perm
	return nil
}

func (p *memPermissions) ListQueueAgents(ctx context.Context, queueID uuid.UUID) ([]domain.ProjectPermission, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []domain.ProjectPermission
	for _, permID := range p.s.queueAgents[queueID] {
		if perm, ok := p.s.permissions[permID]; ok && !seen[permID] {
			seen[permID] = true
			out = append(out, perm)
		}
	}
	if queue, ok := p.s.queues[queueID]; ok {
		for _, perm := range p.s.permissions {
			if perm.ProjectID == queue.ProjectID && perm.Role >= domain.RoleAdmin && !seen[perm.ID] {
				seen[perm.ID] = true
				out = append(out, perm)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserEmail < out[j].UserEmail })
	return out, nil
}

func (p *memPermissions) ListAuthorizedQueues(ctx context.Context, permissionID uuid.UUID) ([]domain.Queue, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	perm, ok := p.s.permissions[permissionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var out []domain.Queue
	for queueID, permIDs := range p.s.queueAgents {
		for _, id := range permIDs {
			if id == permissionID {
				out = append(out, p.s.queues[queueID])
				break
			}
		}
	}
	if perm.Role >= domain.RoleAdmin {
		seen := map[uuid.UUID]bool{}
		for _, queue := range out {
			seen[queue.ID] = true
		}
		for _, queue := range p.s.queues {
			if queue.ProjectID == perm.ProjectID && !seen[queue.ID] {
				out = append(out, queue)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memDirectory struct{ s *memStore }

func (d *memDirectory) GetProject(ctx context.Context, projectID uuid.UUID) (domain.Project, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	project, ok := d.s.projects[projectID]
	if !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	return project, nil
}

func (d *memDirectory) GetSector(ctx context.Context, sectorID uuid.UUID) (domain.Sector, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	sector, ok := d.s.sectors[sectorID]
	if !ok {
		return domain.Sector{}, domain.ErrNotFound
	}
	return sector, nil
}

func (d *memDirectory) GetQueue(ctx context.Context, queueID uuid.UUID) (domain.Queue, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	queue, ok := d.s.queues[queueID]
	if !ok {
		return domain.Queue{}, domain.ErrNotFound
	}
	return queue, nil
}

func (d *memDirectory) GetTag(ctx context.Context, tagID uuid.UUID) (domain.SectorTag, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	tag, ok := d.s.tags[tagID]
	if !ok {
		return domain.SectorTag{}, domain.ErrNotFound
	}
	return tag, nil
}

func (d *memDirectory) ListSectorTags(ctx context.Context, sectorID uuid.UUID) ([]domain.SectorTag, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	var out []domain.SectorTag
	for _, tag := range d.s.tags {
		if tag.SectorID == sectorID {
			out = append(out, tag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memContacts struct{ s *memStore }

func (c *memContacts) GetByID(ctx context.Context, contactID uuid.UUID) (domain.Contact, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	contact, ok := c.s.contacts[contactID]
	if !ok {
		return domain.Contact{}, domain.ErrNotFound
	}
	return contact, nil
}

func (c *memContacts) GetByExternalID(ctx context.Context, projectID uuid.UUID, externalID string) (domain.Contact, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, contact := range c.s.contacts {
		if contact.ProjectID == projectID && contact.ExternalID == externalID {
			return contact, nil
		}
	}
	return domain.Contact{}, domain.ErrNotFound
}

func (c *memContacts) Upsert(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for id, existing := range c.s.contacts {
		if existing.ProjectID == contact.ProjectID && existing.ExternalID == contact.ExternalID {
			existing.Name = contact.Name
			existing.URN = contact.URN
			if contact.CustomFields != nil {
				existing.CustomFields = contact.CustomFields
			}
			c.s.contacts[id] = existing
			return existing, nil
		}
	}
	c.s.contacts[contact.ID] = contact
	return contact, nil
}

type memStatuses struct{ s *memStore }

func (st *memStatuses) GetActive(ctx context.Context, projectID uuid.UUID, userEmail string) (*domain.CustomStatus, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	userEmail = domain.NormalizeEmail(userEmail)
	for _, status := range st.s.statuses {
		if status.IsActive && status.ProjectID == projectID && status.UserEmail == userEmail {
			found := status
			return &found, nil
		}
	}
	return nil, nil
}

func (st *memStatuses) CreateStatus(ctx context.Context, status domain.CustomStatus) (domain.CustomStatus, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if status.IsActive {
		for _, existing := range st.s.statuses {
			if existing.IsActive && existing.ProjectID == status.ProjectID && existing.UserEmail == status.UserEmail {
				return domain.CustomStatus{}, domain.ErrCustomStatusActive
			}
		}
	}
	st.s.statuses[status.ID] = status
	return status, nil
}

func (st *memStatuses) CloseStatus(ctx context.Context, statusID uuid.UUID, breakTime int) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	status, ok := st.s.statuses[statusID]
	if !ok {
		return domain.ErrNotFound
	}
	status.IsActive = false
	status.BreakTime = breakTime
	st.s.statuses[statusID] = status
	return nil
}

func (st *memStatuses) GetStatus(ctx context.Context, statusID uuid.UUID) (domain.CustomStatus, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	status, ok := st.s.statuses[statusID]
	if !ok {
		return domain.CustomStatus{}, domain.ErrNotFound
	}
	return status, nil
}

func (st *memStatuses) GetType(ctx context.Context, typeID uuid.UUID) (domain.CustomStatusType, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	statusType, ok := st.s.statusTypes[typeID]
	if !ok {
		return domain.CustomStatusType{}, domain.ErrNotFound
	}
	return statusType, nil
}

func (st *memStatuses) GetTypeByName(ctx context.Context, projectID uuid.UUID, name string) (domain.CustomStatusType, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	for _, statusType := range st.s.statusTypes {
		if statusType.ProjectID == projectID && statusType.Name == name && !statusType.IsDeleted {
			return statusType, nil
		}
	}
	return domain.CustomStatusType{}, domain.ErrNotFound
}

func (st *memStatuses) CreateType(ctx context.Context, statusType domain.CustomStatusType) (domain.CustomStatusType, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	for _, existing := range st.s.statusTypes {
		if existing.ProjectID == statusType.ProjectID && existing.Name == statusType.Name && !existing.IsDeleted {
			return existing, nil
		}
	}
	st.s.statusTypes[statusType.ID] = statusType
	st.s.typeOrder = append(st.s.typeOrder, statusType.ID)
	return statusType, nil
}

func (st *memStatuses) SoftDeleteType(ctx context.Context, typeID uuid.UUID) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	statusType, ok := st.s.statusTypes[typeID]
	if !ok {
		return domain.ErrNotFound
	}
	statusType.IsDeleted = true
	st.s.statusTypes[typeID] = statusType
	return nil
}

func (st *memStatuses) ListTypes(ctx context.Context, projectID uuid.UUID) ([]domain.CustomStatusType, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	var out []domain.CustomStatusType
	for _, id := range st.s.typeOrder {
		statusType := st.s.statusTypes[id]
		if statusType.ProjectID == projectID && !statusType.IsDeleted {
			out = append(out, statusType)
		}
	}
	return out, nil
}

func (st *memStatuses) CountUserTypes(ctx context.Context, projectID uuid.UUID) (int, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	count := 0
	for _, statusType := range st.s.statusTypes {
		if statusType.ProjectID == projectID && !statusType.IsDeleted && !statusType.CreatedBySystem {
			count++
		}
	}
	return count, nil
}

type memSurveys struct{ s *memStore }

func (su *memSurveys) Create(ctx context.Context, survey domain.CSATSurvey) (domain.CSATSurvey, error) {
	su.s.mu.Lock()
	defer su.s.mu.Unlock()
	for _, existing := range su.s.surveys {
		if existing.RoomID == survey.RoomID {
			return domain.CSATSurvey{}, domain.ErrSurveyExists
		}
	}
	su.s.surveys[survey.ID] = survey
	return survey, nil
}

func (su *memSurveys) ExistsByRoom(ctx context.Context, roomID uuid.UUID) (bool, error) {
	su.s.mu.Lock()
	defer su.s.mu.Unlock()
	for _, survey := range su.s.surveys {
		if survey.RoomID == roomID {
			return true, nil
		}
	}
	return false, nil
}

type memOutbox struct{ s *memStore }

func (o *memOutbox) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	o.s.outbox = append(o.s.outbox, ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      event.Payload,
		CreatedAt:    event.OccurredAt,
	})
	return nil
}

func (o *memOutbox) ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	now := time.Now().UTC()
	var claimed []ports.OutboxRecord
	for i := range o.s.outbox {
		rec := &o.s.outbox[i]
		if rec.PublishedAt != nil || rec.DeadLetteredAt != nil {
			continue
		}
		if rec.ClaimUntil != nil && rec.ClaimUntil.After(now) {
			continue
		}
		token := claimToken
		until := claimUntil
		rec.ClaimToken = &token
		rec.ClaimUntil = &until
		claimed = append(claimed, *rec)
		if len(claimed) >= limit {
			break
		}
	}
	return claimed, nil
}

func (o *memOutbox) MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	return o.mark(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		published := at
		rec.PublishedAt = &published
	})
}

func (o *memOutbox) MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return o.mark(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.RetryCount++
		msg := errMsg
		rec.LastError = &msg
		rec.ClaimToken = nil
		rec.ClaimUntil = nil
	})
}

func (o *memOutbox) MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return o.mark(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		msg := errMsg
		rec.LastError = &msg
		dead := at
		rec.DeadLetteredAt = &dead
	})
}

func (o *memOutbox) mark(outboxID uuid.UUID, claimToken string, apply func(*ports.OutboxRecord)) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for i := range o.s.outbox {
		rec := &o.s.outbox[i]
		if rec.OutboxID != outboxID {
			continue
		}
		if rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
			return errors.New("claim token mismatch")
		}
		apply(rec)
		return nil
	}
	return domain.ErrNotFound
}

type memPresence struct {
	mu    sync.Mutex
	conns map[uuid.UUID]map[string]bool
}

func newMemPresence() *memPresence {
	return &memPresence{conns: map[uuid.UUID]map[string]bool{}}
}

func (p *memPresence) Add(ctx context.Context, permissionID uuid.UUID, connID string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[permissionID] == nil {
		p.conns[permissionID] = map[string]bool{}
	}
	p.conns[permissionID][connID] = true
	return nil
}

func (p *memPresence) Renew(ctx context.Context, permissionID uuid.UUID, connID string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.conns[permissionID][connID] {
		return errors.New("unknown connection")
	}
	return nil
}

func (p *memPresence) Remove(ctx context.Context, permissionID uuid.UUID, connID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns[permissionID], connID)
	return nil
}

func (p *memPresence) Count(ctx context.Context, permissionID uuid.UUID) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns[permissionID]), nil
}

type memLocks struct {
	mu       sync.Mutex
	held     map[uuid.UUID]bool
	acquires map[uuid.UUID]int
}

func newMemLocks() *memLocks {
	return &memLocks{held: map[uuid.UUID]bool{}, acquires: map[uuid.UUID]int{}}
}

func (l *memLocks) Acquire(ctx context.Context, queueID uuid.UUID, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[queueID] {
		return "", false, nil
	}
	l.held[queueID] = true
	l.acquires[queueID]++
	return "lock-token", true, nil
}

func (l *memLocks) Release(ctx context.Context, queueID uuid.UUID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, queueID)
	return nil
}

func (l *memLocks) acquireCount(queueID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquires[queueID]
}

type memConfigCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemConfigCache() *memConfigCache {
	return &memConfigCache{entries: map[string]string{}}
}

func (c *memConfigCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, found := c.entries[key]
	return value, found, nil
}

func (c *memConfigCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memConfigCache) SetNegative(ctx context.Context, key string, ttl time.Duration) error {
	return c.Set(ctx, key, "", ttl)
}

type memReports struct {
	mu   sync.Mutex
	busy map[uuid.UUID]bool
}

func newMemReports() *memReports {
	return &memReports{busy: map[uuid.UUID]bool{}}
}

func (r *memReports) TryStart(ctx context.Context, projectID uuid.UUID, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy[projectID] {
		return false, nil
	}
	r.busy[projectID] = true
	return true, nil
}

func (r *memReports) Finish(ctx context.Context, projectID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.busy, projectID)
	return nil
}

type busRecord struct {
	Group string
	Event ports.Event
}

type recordingBus struct {
	mu      sync.Mutex
	records []busRecord
}

func (b *recordingBus) Publish(ctx context.Context, group string, event ports.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, busRecord{Group: group, Event: event})
	return nil
}

func (b *recordingBus) Subscribe(group string) (<-chan ports.Event, func()) {
	ch := make(chan ports.Event)
	return ch, func() { close(ch) }
}

func (b *recordingBus) has(group, eventType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range b.records {
		if rec.Group == group && rec.Event.Type == eventType {
			return true
		}
	}
	return false
}

type flowStart struct {
	FlowUUID uuid.UUID
	URNs     []string
	Params   ports.FlowStartParams
}

type fakeFlows struct {
	mu sync.Mutex

	projectFlow    uuid.UUID
	projectFlowErr error
	startErr       error
	fieldsErr      error

	started           []flowStart
	ticketAssignments map[uuid.UUID]string
	fieldUpdates      int
}

func newFakeFlows() *fakeFlows {
	return &fakeFlows{ticketAssignments: map[uuid.UUID]string{}}
}

func (f *fakeFlows) StartFlow(ctx context.Context, flowUUID uuid.UUID, urns []string, params ports.FlowStartParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, flowStart{FlowUUID: flowUUID, URNs: urns, Params: params})
	return nil
}

func (f *fakeFlows) UpdateTicketAssignee(ctx context.Context, ticketUUID uuid.UUID, userEmail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticketAssignments[ticketUUID] = userEmail
	return nil
}

func (f *fakeFlows) UpdateContactFields(ctx context.Context, projectID uuid.UUID, contactExternalID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fieldsErr != nil {
		return f.fieldsErr
	}
	f.fieldUpdates++
	return nil
}

func (f *fakeFlows) GetProjectFlowUUID(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.projectFlowErr != nil {
		return uuid.Nil, f.projectFlowErr
	}
	return f.projectFlow, nil
}

func (f *fakeFlows) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

// fakeSigner encodes claims as "project:room" so tests can mint and inspect
// tokens without real crypto.
type fakeSigner struct{}

func (fakeSigner) Sign(claims ports.SurveyClaims) (string, error) {
	return claims.ProjectID.String() + ":" + claims.RoomID.String(), nil
}

func (fakeSigner) Verify(raw string) (ports.SurveyClaims, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return ports.SurveyClaims{}, errors.New("malformed token")
	}
	projectID, err := uuid.Parse(parts[0])
	if err != nil {
		return ports.SurveyClaims{}, err
	}
	roomID, err := uuid.Parse(parts[1])
	if err != nil {
		return ports.SurveyClaims{}, err
	}
	return ports.SurveyClaims{ProjectID: projectID, RoomID: roomID}, nil
}

type fixture struct {
	t *testing.T

	store    *memStore
	bus      *recordingBus
	flows    *fakeFlows
	locks    *memLocks
	presence *memPresence
	reports  *memReports
	cache    *memConfigCache

	svc *Service
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		store:    newMemStore(),
		bus:      &recordingBus{},
		flows:    newFakeFlows(),
		locks:    newMemLocks(),
		presence: newMemPresence(),
		reports:  newMemReports(),
		cache:    newMemConfigCache(),
		now:      time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	repos := f.store.repoSet()
	f.svc = NewService(Dependencies{
		Tx:           &memTx{f.store},
		Rooms:        repos.Rooms,
		Messages:     repos.Messages,
		Metrics:      repos.Metrics,
		Pins:         repos.Pins,
		Notes:        repos.Notes,
		Permissions:  repos.Permissions,
		Directory:    &memDirectory{f.store},
		Contacts:     &memContacts{f.store},
		Statuses:     repos.Statuses,
		Surveys:      repos.Surveys,
		Outbox:       repos.Outbox,
		Presence:     f.presence,
		QueueLocks:   f.locks,
		ConfigCache:  f.cache,
		Reports:      f.reports,
		Bus:          f.bus,
		Flows:        f.flows,
		SurveySigner: fakeSigner{},
	})
	f.svc.nowFn = func() time.Time { return f.now }
	f.svc.randFn = func(n int) int { return 0 }
	f.svc.asyncFn = func(fn func()) { fn() }
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) addProject(routing domain.RoutingType) domain.Project {
	project := domain.Project{
		ID:          uuid.New(),
		Name:        "acme",
		Timezone:    "UTC",
		RoutingType: routing,
		CreatedAt:   f.now,
	}
	f.store.projects[project.ID] = project
	return project
}

func (f *fixture) addSector(project domain.Project, roomsLimit int) domain.Sector {
	sector := domain.Sector{
		ID:         uuid.New(),
		ProjectID:  project.ID,
		Name:       "support",
		RoomsLimit: roomsLimit,
	}
	f.store.sectors[sector.ID] = sector
	return sector
}

func (f *fixture) addQueue(sector domain.Sector, requiredTags bool) domain.Queue {
	queue := domain.Queue{
		ID:           uuid.New(),
		SectorID:     sector.ID,
		ProjectID:    sector.ProjectID,
		Name:         "general",
		RequiredTags: requiredTags,
		CreatedAt:    f.now,
	}
	f.store.queues[queue.ID] = queue
	return queue
}

func (f *fixture) addTag(sector domain.Sector, name string) domain.SectorTag {
	tag := domain.SectorTag{ID: uuid.New(), SectorID: sector.ID, Name: name}
	f.store.tags[tag.ID] = tag
	return tag
}

func (f *fixture) addAgent(projectID uuid.UUID, email string, status domain.PresenceStatus, role domain.PermissionRole, queues ...domain.Queue) domain.ProjectPermission {
	perm := domain.ProjectPermission{
		ID:        uuid.New(),
		ProjectID: projectID,
		UserEmail: domain.NormalizeEmail(email),
		Role:      role,
		Status:    status,
	}
	f.store.permissions[perm.ID] = perm
	for _, queue := range queues {
		f.store.queueAgents[queue.ID] = append(f.store.queueAgents[queue.ID], perm.ID)
	}
	return perm
}

func (f *fixture) addContact(projectID uuid.UUID, externalID, urn, linkedUser string) domain.Contact {
	contact := domain.Contact{
		ID:         uuid.New(),
		ProjectID:  projectID,
		ExternalID: externalID,
		Name:       "Contact " + externalID,
		URN:        urn,
		LinkedUser: domain.NormalizeEmail(linkedUser),
		CreatedAt:  f.now,
	}
	f.store.contacts[contact.ID] = contact
	return contact
}

func (f *fixture) addQueuedRoom(queue domain.Queue, contact domain.Contact, queuedFor time.Duration) domain.Room {
	queuedAt := f.now.Add(-queuedFor)
	queueID := queue.ID
	room := domain.Room{
		ID:             uuid.New(),
		ProjectID:      queue.ProjectID,
		SectorID:       queue.SectorID,
		QueueID:        &queueID,
		ContactID:      contact.ID,
		IsActive:       true,
		URN:            contact.URN,
		CreatedOn:      queuedAt,
		AddedToQueueAt: &queuedAt,
	}
	f.store.rooms[room.ID] = room
	f.store.roomOrder = append(f.store.roomOrder, room.ID)
	f.store.metrics[room.ID] = domain.RoomMetrics{RoomID: room.ID, QueuedCount: 1}
	return room
}

func (f *fixture) addAssignedRoom(queue domain.Queue, contact domain.Contact, email string, assignedFor time.Duration) domain.Room {
	assignedAt := f.now.Add(-assignedFor)
	queueID := queue.ID
	normalized := domain.NormalizeEmail(email)
	room := domain.Room{
		ID:             uuid.New(),
		ProjectID:      queue.ProjectID,
		SectorID:       queue.SectorID,
		QueueID:        &queueID,
		ContactID:      contact.ID,
		UserEmail:      &normalized,
		IsActive:       true,
		URN:            contact.URN,
		CreatedOn:      assignedAt,
		UserAssignedAt: &assignedAt,
	}
	f.store.rooms[room.ID] = room
	f.store.roomOrder = append(f.store.roomOrder, room.ID)
	f.store.metrics[room.ID] = domain.RoomMetrics{RoomID: room.ID}
	return room
}

func (f *fixture) addClosedRoom(queue domain.Queue, contact domain.Contact) domain.Room {
	endedAt := f.now.Add(-time.Hour)
	queueID := queue.ID
	room := domain.Room{
		ID:        uuid.New(),
		ProjectID: queue.ProjectID,
		SectorID:  queue.SectorID,
		QueueID:   &queueID,
		ContactID: contact.ID,
		IsActive:  false,
		URN:       contact.URN,
		CreatedOn: f.now.Add(-2 * time.Hour),
		EndedAt:   &endedAt,
		EndedBy:   domain.EndedByAgent,
	}
	f.store.rooms[room.ID] = room
	f.store.roomOrder = append(f.store.roomOrder, room.ID)
	return room
}

func (f *fixture) addStatusType(projectID uuid.UUID, name string, system bool) domain.CustomStatusType {
	statusType := domain.CustomStatusType{
		ID:              uuid.New(),
		ProjectID:       projectID,
		Name:            name,
		CreatedBySystem: system,
		CreatedAt:       f.now,
	}
	f.store.statusTypes[statusType.ID] = statusType
	f.store.typeOrder = append(f.store.typeOrder, statusType.ID)
	return statusType
}

func (f *fixture) addActiveStatus(projectID uuid.UUID, email string, statusType domain.CustomStatusType, openFor time.Duration) domain.CustomStatus {
	status := domain.CustomStatus{
		ID:           uuid.New(),
		ProjectID:    projectID,
		UserEmail:    domain.NormalizeEmail(email),
		StatusTypeID: statusType.ID,
		IsActive:     true,
		CreatedOn:    f.now.Add(-openFor),
	}
	f.store.statuses[status.ID] = status
	return status
}

func actorFor(perm domain.ProjectPermission) Actor {
	return Actor{
		PermissionID: perm.ID,
		ProjectID:    perm.ProjectID,
		Email:        perm.UserEmail,
		Role:         perm.Role,
	}
}

func (f *fixture) room(roomID uuid.UUID) domain.Room {
	f.t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	room, ok := f.store.rooms[roomID]
	if !ok {
		f.t.Fatalf("room %s not found", roomID)
	}
	return room
}

func (f *fixture) roomMetrics(roomID uuid.UUID) domain.RoomMetrics {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.metrics[roomID]
}

func (f *fixture) permission(permID uuid.UUID) domain.ProjectPermission {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.permissions[permID]
}

// activeStatus returns the agent's active custom status and its type, or nil.
func (f *fixture) activeStatus(projectID uuid.UUID, email string) (*domain.CustomStatus, *domain.CustomStatusType) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, status := range f.store.statuses {
		if status.IsActive && status.ProjectID == projectID && status.UserEmail == domain.NormalizeEmail(email) {
			found := status
			foundType := f.store.statusTypes[status.StatusTypeID]
			return &found, &foundType
		}
	}
	return nil, nil
}

func (f *fixture) closedStatuses(projectID uuid.UUID, email string) []domain.CustomStatus {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []domain.CustomStatus
	for _, status := range f.store.statuses {
		if !status.IsActive && status.ProjectID == projectID && status.UserEmail == domain.NormalizeEmail(email) {
			out = append(out, status)
		}
	}
	return out
}
