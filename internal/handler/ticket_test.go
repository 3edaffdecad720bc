package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tutorhub/tutorhub/internal/model"
)

func seedTicketWorld(t *testing.T) (*fakeTicketStore, *fakeProfileStore, *notifyRecorder, *TicketHandler) {
	t.Helper()
	tickets := newFakeTicketStore()
	profiles := newFakeProfileStore()
	profiles.add(model.Profile{UserID: "stu-1", Username: "alice", Role: model.RoleStudent, Email: "alice@x.com"})
	profiles.add(model.Profile{UserID: "stu-2", Username: "bob", Role: model.RoleStudent, Email: "bob@x.com"})
	profiles.add(model.Profile{UserID: "tut-1", Username: "prof", Role: model.RoleTutor, Email: "prof@x.com"})
	profiles.subjects["tut-1"] = []string{"Math"}
	rec := &notifyRecorder{}
	return tickets, profiles, rec, NewTicketHandler(tickets, profiles, rec.notify)
}

func TestCreateTicket(t *testing.T) {
	_, _, _, h := seedTicketWorld(t)

	c, rec := newTestCtx(t, http.MethodPost, "/v1/tickets",
		`{"subject":"Math","topic":"Integrals","description":"stuck on u-substitution"}`,
		"stu-1", model.RoleStudent)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var ticket model.Ticket
	if err := json.Unmarshal(rec.Body.Bytes(), &ticket); err != nil {
		t.Fatal(err)
	}
	if ticket.StudentUsername != "alice" {
		t.Errorf("student_username = %q, want denormalized handle", ticket.StudentUsername)
	}
	if ticket.Closed {
		t.Error("new tickets must start open")
	}
}

func TestCreateTicketRejectsUnknownSubject(t *testing.T) {
	_, _, _, h := seedTicketWorld(t)
	c, rec := newTestCtx(t, http.MethodPost, "/v1/tickets",
		`{"subject":"Astrology","topic":"x","description":"y"}`, "stu-1", model.RoleStudent)
	_ = h.Create(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTutorListFiltersBySubjects(t *testing.T) {
	tickets, _, _, h := seedTicketWorld(t)

	for _, tk := range []model.Ticket{
		{StudentID: "stu-1", StudentUsername: "alice", Subject: "Math", Topic: "a", Description: "d"},
		{StudentID: "stu-1", StudentUsername: "alice", Subject: "History", Topic: "b", Description: "d"},
	} {
		tk := tk
		if err := tickets.Create(nil, &tk); err != nil {
			t.Fatal(err)
		}
	}

	c, rec := newTestCtx(t, http.MethodGet, "/v1/tickets", "", "tut-1", model.RoleTutor)
	if err := h.List(c); err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []model.Ticket
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Subject != "Math" {
		t.Fatalf("tutor should only see Math tickets, got %+v", got)
	}
}

func TestTutorWithNoSubjectsSeesNothing(t *testing.T) {
	tickets, profiles, _, _ := seedTicketWorld(t)
	profiles.add(model.Profile{UserID: "tut-2", Username: "empty", Role: model.RoleTutor})
	h := NewTicketHandler(tickets, profiles, (&notifyRecorder{}).notify)

	tk := model.Ticket{StudentID: "stu-1", StudentUsername: "alice", Subject: "Math", Topic: "a", Description: "d"}
	if err := tickets.Create(nil, &tk); err != nil {
		t.Fatal(err)
	}

	c, rec := newTestCtx(t, http.MethodGet, "/v1/tickets", "", "tut-2", model.RoleTutor)
	if err := h.List(c); err != nil {
		t.Fatal(err)
	}
	var got []model.Ticket
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}

func TestCloseForeignTicketForbidden(t *testing.T) {
	tickets, _, _, h := seedTicketWorld(t)
	tk := model.Ticket{StudentID: "stu-1", StudentUsername: "alice", Subject: "Math", Topic: "a", Description: "d"}
	if err := tickets.Create(nil, &tk); err != nil {
		t.Fatal(err)
	}

	c, rec := newTestCtx(t, http.MethodPost, "/v1/tickets/1/close", "", "stu-2", model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("1")
	_ = h.Close(c)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestStudentCannotRespondToForeignTicket(t *testing.T) {
	tickets, _, _, h := seedTicketWorld(t)
	tk := model.Ticket{StudentID: "stu-1", StudentUsername: "alice", Subject: "Math", Topic: "a", Description: "d"}
	if err := tickets.Create(nil, &tk); err != nil {
		t.Fatal(err)
	}

	c, rec := newTestCtx(t, http.MethodPost, "/v1/tickets/1/responses",
		`{"content":"me too"}`, "stu-2", model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("1")
	_ = h.Respond(c)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestTutorResponseNotifiesOwner(t *testing.T) {
	tickets, _, notes, h := seedTicketWorld(t)
	tk := model.Ticket{StudentID: "stu-1", StudentUsername: "alice", Subject: "Math", Topic: "a", Description: "d"}
	if err := tickets.Create(nil, &tk); err != nil {
		t.Fatal(err)
	}

	c, rec := newTestCtx(t, http.MethodPost, "/v1/tickets/1/responses",
		`{"content":"try u = x^2"}`, "tut-1", model.RoleTutor)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Respond(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp model.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TutorUsername == nil || *resp.TutorUsername != "prof" {
		t.Errorf("tutor_username = %v", resp.TutorUsername)
	}
	if len(notes.events) != 1 || notes.events[0].RecipientID != "stu-1" {
		t.Errorf("notification = %+v", notes.events)
	}
}
