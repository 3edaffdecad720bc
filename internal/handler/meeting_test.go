package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/realtime"
)

const (
	studentUUID = "11111111-1111-4111-8111-111111111111"
	tutorUUID   = "22222222-2222-4222-8222-222222222222"
)

func seedMeetingWorld(t *testing.T) (*fakeMeetingStore, *notifyRecorder, *realtime.Hub, *MeetingHandler) {
	t.Helper()
	meetings := newFakeMeetingStore()
	profiles := newFakeProfileStore()
	profiles.add(model.Profile{UserID: studentUUID, Username: "alice", Role: model.RoleStudent})
	profiles.add(model.Profile{UserID: tutorUUID, Username: "prof", Role: model.RoleTutor})
	notes := &notifyRecorder{}
	hub := realtime.NewHub(nil)
	return meetings, notes, hub, NewMeetingHandler(meetings, profiles, hub, notes.notify)
}

func meetingBody(start, end time.Time) string {
	b, _ := json.Marshal(map[string]any{
		"tutor_id":   tutorUUID,
		"subject":    "Math",
		"start_time": start,
		"end_time":   end,
	})
	return string(b)
}

func TestCreateMeeting(t *testing.T) {
	_, notes, hub, h := seedMeetingWorld(t)

	sub := hub.Subscribe(realtime.MeetingsTopic(tutorUUID), 4)
	defer sub.Cancel()

	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	c, rec := newTestCtx(t, http.MethodPost, "/v1/meetings",
		meetingBody(start, start.Add(time.Hour)), studentUUID, model.RoleStudent)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var m model.Meeting
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.Status != model.MeetingPending {
		t.Errorf("status = %q, want pending", m.Status)
	}
	if m.TutorUsername != "prof" || m.StudentUsername != "alice" {
		t.Errorf("usernames not denormalized: %+v", m)
	}

	ev := <-sub.C
	if ev.Type != "meeting_requested" {
		t.Errorf("hub event type = %q", ev.Type)
	}
	if len(notes.events) != 1 || notes.events[0].RecipientID != tutorUUID {
		t.Errorf("notification = %+v", notes.events)
	}
}

func TestCreateMeetingRejectsBackwardsWindow(t *testing.T) {
	_, _, _, h := seedMeetingWorld(t)
	start := time.Now().Add(24 * time.Hour).UTC()
	c, rec := newTestCtx(t, http.MethodPost, "/v1/meetings",
		meetingBody(start, start.Add(-time.Hour)), studentUUID, model.RoleStudent)
	_ = h.Create(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateMeetingRejectsNonTutorTarget(t *testing.T) {
	meetings, notes, hub, _ := seedMeetingWorld(t)
	profiles := newFakeProfileStore()
	profiles.add(model.Profile{UserID: studentUUID, Username: "alice", Role: model.RoleStudent})
	profiles.add(model.Profile{UserID: tutorUUID, Username: "mallory", Role: model.RoleStudent})
	h := NewMeetingHandler(meetings, profiles, hub, notes.notify)

	start := time.Now().Add(time.Hour).UTC()
	c, rec := newTestCtx(t, http.MethodPost, "/v1/meetings",
		meetingBody(start, start.Add(time.Hour)), studentUUID, model.RoleStudent)
	_ = h.Create(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	meetings, _, _, h := seedMeetingWorld(t)
	m := model.Meeting{StudentID: studentUUID, StudentUsername: "alice", TutorID: tutorUUID, TutorUsername: "prof", Subject: "Math"}
	if err := meetings.Create(nil, &m); err != nil {
		t.Fatal(err)
	}

	// Tutor accepts the pending request.
	c, rec := newTestCtx(t, http.MethodPatch, "/v1/meetings/1/status",
		`{"status":"accepted"}`, tutorUUID, model.RoleTutor)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.UpdateStatus(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Accepting again is an illegal transition.
	c, rec = newTestCtx(t, http.MethodPatch, "/v1/meetings/1/status",
		`{"status":"accepted"}`, tutorUUID, model.RoleTutor)
	c.SetParamNames("id")
	c.SetParamValues("1")
	_ = h.UpdateStatus(c)
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-accept status = %d, want 409", rec.Code)
	}
}

func TestUpdateStatusRejectsPendingTarget(t *testing.T) {
	meetings, _, _, h := seedMeetingWorld(t)
	m := model.Meeting{StudentID: studentUUID, TutorID: tutorUUID}
	if err := meetings.Create(nil, &m); err != nil {
		t.Fatal(err)
	}

	c, rec := newTestCtx(t, http.MethodPatch, "/v1/meetings/1/status",
		`{"status":"pending"}`, tutorUUID, model.RoleTutor)
	c.SetParamNames("id")
	c.SetParamValues("1")
	_ = h.UpdateStatus(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateStatusOutsiderForbidden(t *testing.T) {
	meetings, _, _, h := seedMeetingWorld(t)
	m := model.Meeting{StudentID: studentUUID, TutorID: tutorUUID}
	if err := meetings.Create(nil, &m); err != nil {
		t.Fatal(err)
	}

	c, rec := newTestCtx(t, http.MethodPatch, "/v1/meetings/1/status",
		`{"status":"cancelled"}`, "99999999-9999-4999-8999-999999999999", model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("1")
	_ = h.UpdateStatus(c)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
