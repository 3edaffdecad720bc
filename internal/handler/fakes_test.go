package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/queue"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// newTestCtx builds an echo context carrying an authenticated user, the
// way the JWT middleware would have left it.
func newTestCtx(t *testing.T, method, target, body, userID, role string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
		c.Set("role", role)
	}
	return c, rec
}

// notifyRecorder captures published notification events for assertions.
type notifyRecorder struct {
	events []queue.NotificationEvent
}

func (n *notifyRecorder) notify(_ context.Context, ev queue.NotificationEvent) {
	n.events = append(n.events, ev)
}

// ----- profile fake -----

type fakeProfileStore struct {
	byUserID map[string]model.Profile
	byEmail  map[string]model.Profile
	subjects map[string][]string

	createErr   error
	createCalls int
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		byUserID: map[string]model.Profile{},
		byEmail:  map[string]model.Profile{},
		subjects: map[string][]string{},
	}
}

func (f *fakeProfileStore) add(p model.Profile) {
	f.byUserID[p.UserID] = p
	if p.Email != "" {
		f.byEmail[p.Email] = p
	}
}

func (f *fakeProfileStore) Create(_ context.Context, p *model.Profile) error {
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	f.add(*p)
	return nil
}

func (f *fakeProfileStore) GetByUserID(_ context.Context, userID string) (model.Profile, error) {
	p, ok := f.byUserID[userID]
	if !ok {
		return model.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfileStore) GetByEmail(_ context.Context, email string) (model.Profile, error) {
	p, ok := f.byEmail[email]
	if !ok {
		return model.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfileStore) Search(_ context.Context, query, role string, limit int) ([]model.Profile, error) {
	var out []model.Profile
	for _, p := range f.byUserID {
		if role != "" && p.Role != role {
			continue
		}
		if strings.Contains(strings.ToLower(p.Username), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfileStore) SubjectsFor(_ context.Context, tutorID string) ([]string, error) {
	return f.subjects[tutorID], nil
}

func (f *fakeProfileStore) Update(_ context.Context, userID string, patch repository.ProfilePatch) (model.Profile, error) {
	p, ok := f.byUserID[userID]
	if !ok {
		return model.Profile{}, repository.ErrNotFound
	}
	if patch.Username != nil {
		p.Username = *patch.Username
	}
	if patch.HourlyRate != nil {
		p.HourlyRate = patch.HourlyRate
	}
	if patch.ClearRate {
		p.HourlyRate = nil
	}
	if patch.Bio != nil {
		p.Bio = patch.Bio
	}
	if patch.Specialties != nil {
		p.Specialties = *patch.Specialties
		f.subjects[userID] = *patch.Specialties
	}
	if patch.Struggles != nil {
		p.Struggles = *patch.Struggles
	}
	f.byUserID[userID] = p
	return p, nil
}

// ----- ticket fake -----

type fakeTicketStore struct {
	tickets map[uint64]model.Ticket
	nextID  uint64

	addResponseErr error
	closeErr       error
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{tickets: map[uint64]model.Ticket{}, nextID: 1}
}

func (f *fakeTicketStore) Create(_ context.Context, t *model.Ticket) error {
	t.ID = f.nextID
	f.nextID++
	t.CreatedAt = time.Now().UTC()
	f.tickets[t.ID] = *t
	return nil
}

func (f *fakeTicketStore) GetByID(_ context.Context, id uint64) (model.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return model.Ticket{}, repository.ErrNotFound
	}
	return t, nil
}

func (f *fakeTicketStore) ListByStudent(_ context.Context, studentID string) ([]model.Ticket, error) {
	var out []model.Ticket
	for _, t := range f.tickets {
		if t.StudentID == studentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTicketStore) ListOpenBySubjects(_ context.Context, subjects []string) ([]model.Ticket, error) {
	if len(subjects) == 0 {
		return []model.Ticket{}, nil
	}
	set := map[string]bool{}
	for _, s := range subjects {
		set[s] = true
	}
	var out []model.Ticket
	for _, t := range f.tickets {
		if !t.Closed && set[t.Subject] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTicketStore) Close(_ context.Context, ticketID uint64, studentID string) error {
	if f.closeErr != nil {
		return f.closeErr
	}
	t, ok := f.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.StudentID != studentID {
		return repository.ErrForbidden
	}
	t.Closed = true
	f.tickets[ticketID] = t
	return nil
}

func (f *fakeTicketStore) AddResponse(_ context.Context, resp *model.Response) error {
	if f.addResponseErr != nil {
		return f.addResponseErr
	}
	t, ok := f.tickets[resp.TicketID]
	if !ok {
		return repository.ErrNotFound
	}
	if resp.StudentID != nil && *resp.StudentID != t.StudentID {
		return repository.ErrForbidden
	}
	resp.ID = uint64(len(t.Responses) + 1)
	resp.CreatedAt = time.Now().UTC()
	t.Responses = append(t.Responses, *resp)
	f.tickets[resp.TicketID] = t
	return nil
}

// ----- meeting fake -----

type fakeMeetingStore struct {
	meetings  map[uint64]model.Meeting
	nextID    uint64
	statusErr error
}

func newFakeMeetingStore() *fakeMeetingStore {
	return &fakeMeetingStore{meetings: map[uint64]model.Meeting{}, nextID: 1}
}

func (f *fakeMeetingStore) Create(_ context.Context, m *model.Meeting) error {
	m.ID = f.nextID
	f.nextID++
	m.Status = model.MeetingPending
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	f.meetings[m.ID] = *m
	return nil
}

func (f *fakeMeetingStore) GetByID(_ context.Context, id uint64) (model.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return model.Meeting{}, repository.ErrNotFound
	}
	return m, nil
}

func (f *fakeMeetingStore) ListForUser(_ context.Context, userID string) ([]model.Meeting, error) {
	var out []model.Meeting
	for _, m := range f.meetings {
		if m.StudentID == userID || m.TutorID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMeetingStore) UpdateStatus(_ context.Context, meetingID uint64, callerID, status string) (model.Meeting, error) {
	if f.statusErr != nil {
		return model.Meeting{}, f.statusErr
	}
	m, ok := f.meetings[meetingID]
	if !ok {
		return model.Meeting{}, repository.ErrNotFound
	}
	if callerID != m.StudentID && callerID != m.TutorID {
		return model.Meeting{}, repository.ErrForbidden
	}
	if !model.CanTransitionMeeting(m.Status, status) {
		return model.Meeting{}, repository.ErrConflict
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	f.meetings[meetingID] = m
	return m, nil
}

// ----- connection fake -----

type fakeConnectionStore struct {
	invitations map[uint64]model.ConnectionInvitation
	connections []model.StudentTutorConnection
	nextID      uint64
}

func newFakeConnectionStore() *fakeConnectionStore {
	return &fakeConnectionStore{invitations: map[uint64]model.ConnectionInvitation{}, nextID: 1}
}

func (f *fakeConnectionStore) Invite(_ context.Context, inv *model.ConnectionInvitation) error {
	for _, existing := range f.invitations {
		if existing.StudentID == inv.StudentID && existing.TutorID == inv.TutorID {
			return repository.ErrDuplicate
		}
	}
	inv.ID = f.nextID
	f.nextID++
	inv.Status = model.InvitePending
	inv.CreatedAt = time.Now().UTC()
	f.invitations[inv.ID] = *inv
	return nil
}

func (f *fakeConnectionStore) ListInvitationsForTutor(_ context.Context, tutorID string) ([]model.ConnectionInvitation, error) {
	out := []model.ConnectionInvitation{}
	for _, inv := range f.invitations {
		if inv.TutorID == tutorID && inv.Status == model.InvitePending {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeConnectionStore) Resolve(_ context.Context, invitationID uint64, tutorID, status string) (model.ConnectionInvitation, error) {
	inv, ok := f.invitations[invitationID]
	if !ok {
		return model.ConnectionInvitation{}, repository.ErrNotFound
	}
	if inv.TutorID != tutorID {
		return model.ConnectionInvitation{}, repository.ErrForbidden
	}
	if inv.Status != model.InvitePending {
		return model.ConnectionInvitation{}, repository.ErrConflict
	}
	inv.Status = status
	f.invitations[invitationID] = inv
	if status == model.InviteAccepted {
		f.connections = append(f.connections, model.StudentTutorConnection{
			StudentID:       inv.StudentID,
			StudentUsername: inv.StudentUsername,
			TutorID:         inv.TutorID,
			TutorUsername:   inv.TutorUsername,
		})
	}
	return inv, nil
}

func (f *fakeConnectionStore) ListForUser(_ context.Context, userID string) ([]model.StudentTutorConnection, error) {
	out := []model.StudentTutorConnection{}
	for _, conn := range f.connections {
		if conn.StudentID == userID || conn.TutorID == userID {
			out = append(out, conn)
		}
	}
	return out, nil
}

// ----- storage fake -----

type fakeSigner struct {
	deleted []string
}

func (f *fakeSigner) PresignUpload(_ context.Context, key, contentType string) (string, error) {
	return "https://bucket.test/put/" + key, nil
}

func (f *fakeSigner) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://bucket.test/get/" + key, nil
}

func (f *fakeSigner) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

// ----- auth fakes -----

type fakeUserStore struct {
	users   map[string]model.User // by id
	byEmail map[string]string
	nextID  int
	deleted []string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]model.User{}, byEmail: map[string]string{}, nextID: 1}
}

func (f *fakeUserStore) Create(_ context.Context, email, password, role string, cost int) (string, error) {
	if _, exists := f.byEmail[email]; exists {
		return "", repository.ErrDuplicate
	}
	id := "00000000-0000-4000-8000-00000000000" + string(rune('0'+f.nextID))
	f.nextID++
	f.users[id] = model.User{ID: id, Email: email, Role: role, CreatedAt: time.Now().UTC()}
	f.byEmail[email] = id
	return id, nil
}

func (f *fakeUserStore) Delete(_ context.Context, id string) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(f.users, id)
	delete(f.byEmail, u.Email)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return f.users[id], nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

type fakeTokenStore struct {
	stored  map[string]string // hash -> userID
	revoked map[string]bool
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{stored: map[string]string{}, revoked: map[string]bool{}}
}

func (f *fakeTokenStore) StoreRefresh(_ context.Context, userID, tokenHash string, _ time.Time) error {
	f.stored[tokenHash] = userID
	return nil
}

func (f *fakeTokenStore) ValidateRefresh(_ context.Context, tokenHash string) (string, error) {
	if f.revoked[tokenHash] {
		return "", repository.ErrNotFound
	}
	uid, ok := f.stored[tokenHash]
	if !ok {
		return "", repository.ErrNotFound
	}
	return uid, nil
}

func (f *fakeTokenStore) RevokeByHash(_ context.Context, tokenHash string) error {
	f.revoked[tokenHash] = true
	return nil
}

func (f *fakeTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	for h, uid := range f.stored {
		if uid == userID {
			f.revoked[h] = true
		}
	}
	return nil
}
