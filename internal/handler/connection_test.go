package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/queue"
)

func seedConnectionWorld(t *testing.T) (*fakeConnectionStore, *notifyRecorder, *ConnectionHandler) {
	t.Helper()
	conns := newFakeConnectionStore()
	profiles := newFakeProfileStore()
	profiles.add(model.Profile{UserID: studentUUID, Username: "alice", Role: model.RoleStudent})
	profiles.add(model.Profile{UserID: tutorUUID, Username: "prof", Role: model.RoleTutor})
	notes := &notifyRecorder{}
	return conns, notes, NewConnectionHandler(conns, profiles, notes.notify)
}

func inviteBody() string {
	b, _ := json.Marshal(map[string]string{"tutor_id": tutorUUID})
	return string(b)
}

func TestConnectionInviteNotifiesTutor(t *testing.T) {
	_, notes, h := seedConnectionWorld(t)

	c, rec := newTestCtx(t, http.MethodPost, "/v1/connections/invitations",
		inviteBody(), studentUUID, model.RoleStudent)
	if err := h.Invite(c); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if len(notes.events) != 1 {
		t.Fatalf("events = %d, want 1", len(notes.events))
	}
	ev := notes.events[0]
	if ev.Kind != queue.KindConnectionInvited || ev.RecipientID != tutorUUID {
		t.Errorf("event = %+v", ev)
	}
}

func TestConnectionAcceptNotifiesStudent(t *testing.T) {
	conns, notes, h := seedConnectionWorld(t)

	c, _ := newTestCtx(t, http.MethodPost, "/v1/connections/invitations",
		inviteBody(), studentUUID, model.RoleStudent)
	if err := h.Invite(c); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	notes.events = nil

	c, rec := newTestCtx(t, http.MethodPost, "/v1/connections/invitations/1/accept",
		"", tutorUUID, model.RoleTutor)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Accept(c); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if len(notes.events) != 1 {
		t.Fatalf("events = %d, want 1", len(notes.events))
	}
	ev := notes.events[0]
	if ev.Kind != queue.KindConnectionResolved {
		t.Errorf("kind = %q", ev.Kind)
	}
	if ev.RecipientID != studentUUID {
		t.Errorf("recipient = %q, want the inviting student", ev.RecipientID)
	}
	if ev.Status != model.InviteAccepted {
		t.Errorf("status = %q", ev.Status)
	}

	if len(conns.connections) != 1 {
		t.Fatalf("connections = %d, want 1", len(conns.connections))
	}
}

func TestConnectionRejectNotifiesStudent(t *testing.T) {
	conns, notes, h := seedConnectionWorld(t)

	c, _ := newTestCtx(t, http.MethodPost, "/v1/connections/invitations",
		inviteBody(), studentUUID, model.RoleStudent)
	if err := h.Invite(c); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	notes.events = nil

	c, rec := newTestCtx(t, http.MethodPost, "/v1/connections/invitations/1/reject",
		"", tutorUUID, model.RoleTutor)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Reject(c); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	if len(notes.events) != 1 || notes.events[0].Status != model.InviteRejected {
		t.Fatalf("events = %+v", notes.events)
	}
	if len(conns.connections) != 0 {
		t.Fatal("rejected invitation produced a connection")
	}
}

func TestConnectionResolveByOutsider(t *testing.T) {
	_, notes, h := seedConnectionWorld(t)

	c, _ := newTestCtx(t, http.MethodPost, "/v1/connections/invitations",
		inviteBody(), studentUUID, model.RoleStudent)
	if err := h.Invite(c); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	notes.events = nil

	c, rec := newTestCtx(t, http.MethodPost, "/v1/connections/invitations/1/accept",
		"", "33333333-3333-4333-8333-333333333333", model.RoleTutor)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Accept(c); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if len(notes.events) != 0 {
		t.Fatalf("events = %+v, want none", notes.events)
	}
}
