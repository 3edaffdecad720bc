package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/queue"
	"github.com/tutorhub/tutorhub/internal/service"
)

// TicketStore is the ticket access needed by the ticket endpoints.
type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	GetByID(ctx context.Context, id uint64) (model.Ticket, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Ticket, error)
	ListOpenBySubjects(ctx context.Context, subjects []string) ([]model.Ticket, error)
	Close(ctx context.Context, ticketID uint64, studentID string) error
	AddResponse(ctx context.Context, resp *model.Response) error
}

// Notifier delivers a notification event out of band. The default
// publishes to RabbitMQ; failures never affect the request.
type Notifier func(ctx context.Context, ev queue.NotificationEvent)

// DefaultNotifier publishes in the background and swallows errors; the
// publisher already logs them.
func DefaultNotifier(_ context.Context, ev queue.NotificationEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = service.PublishNotification(ctx, ev)
	}()
}

// TicketHandler serves the help-ticket endpoints.
type TicketHandler struct {
	Tickets  TicketStore
	Profiles ProfileStore
	Notify   Notifier
}

func NewTicketHandler(t TicketStore, p ProfileStore, n Notifier) *TicketHandler {
	if t == nil || p == nil {
		panic("nil store passed to NewTicketHandler")
	}
	if n == nil {
		n = DefaultNotifier
	}
	return &TicketHandler{Tickets: t, Profiles: p, Notify: n}
}

type createTicketReq struct {
	Subject     string `json:"subject" validate:"required"`
	Topic       string `json:"topic" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

type respondReq struct {
	Content  string  `json:"content" validate:"required"`
	ParentID *uint64 `json:"parent_id"`
}

// Create opens a new help ticket for the calling student.
func (h *TicketHandler) Create(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createTicketReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	if !model.ValidSubject(req.Subject) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown subject"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Profiles.GetByUserID(ctx, uid)
	if err != nil {
		return storeError(c, err, "load profile failed")
	}

	t := model.Ticket{
		StudentID:       uid,
		StudentUsername: p.Username,
		Subject:         req.Subject,
		Topic:           strings.TrimSpace(req.Topic),
		Description:     req.Description,
	}
	if err := h.Tickets.Create(ctx, &t); err != nil {
		return storeError(c, err, "create ticket failed")
	}
	return c.JSON(http.StatusCreated, t)
}

// List returns the caller's view of tickets: students see their own,
// tutors see open tickets in their registered subjects. A tutor with no
// registered subjects gets an empty list.
func (h *TicketHandler) List(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if currentRole(c) == model.RoleTutor {
		subjects, err := h.Profiles.SubjectsFor(ctx, uid)
		if err != nil {
			return storeError(c, err, "load subjects failed")
		}
		tickets, err := h.Tickets.ListOpenBySubjects(ctx, subjects)
		if err != nil {
			return storeError(c, err, "list tickets failed")
		}
		return c.JSON(http.StatusOK, tickets)
	}

	tickets, err := h.Tickets.ListByStudent(ctx, uid)
	if err != nil {
		return storeError(c, err, "list tickets failed")
	}
	return c.JSON(http.StatusOK, tickets)
}

// Close marks the caller's ticket as closed.
func (h *TicketHandler) Close(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Tickets.Close(ctx, id, uid); err != nil {
		return storeError(c, err, "close ticket failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Respond appends a response to a ticket. Students may only respond to
// their own tickets; tutors may respond to any open ticket. The ticket
// owner is notified when a tutor responds.
func (h *TicketHandler) Respond(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	var req respondReq
	if !bindAndValidate(c, &req) {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Profiles.GetByUserID(ctx, uid)
	if err != nil {
		return storeError(c, err, "load profile failed")
	}

	resp := model.Response{TicketID: id, Content: req.Content, ParentID: req.ParentID}
	role := currentRole(c)
	if role == model.RoleTutor {
		resp.TutorID = &uid
		resp.TutorUsername = &p.Username
	} else {
		resp.StudentID = &uid
		resp.StudentUsername = &p.Username
	}

	if err := h.Tickets.AddResponse(ctx, &resp); err != nil {
		return storeError(c, err, "add response failed")
	}

	if role == model.RoleTutor {
		if t, err := h.Tickets.GetByID(ctx, id); err == nil {
			h.Notify(ctx, queue.NotificationEvent{
				Kind:        queue.KindTicketResponse,
				ActorID:     uid,
				ActorName:   p.Username,
				RecipientID: t.StudentID,
				TicketID:    id,
				Subject:     t.Subject,
				OccurredAt:  time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
	return c.JSON(http.StatusCreated, resp)
}
