package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/queue"
)

// ConnectionStore is the student–tutor connection access.
type ConnectionStore interface {
	Invite(ctx context.Context, inv *model.ConnectionInvitation) error
	ListInvitationsForTutor(ctx context.Context, tutorID string) ([]model.ConnectionInvitation, error)
	Resolve(ctx context.Context, invitationID uint64, tutorID, status string) (model.ConnectionInvitation, error)
	ListForUser(ctx context.Context, userID string) ([]model.StudentTutorConnection, error)
}

// ConnectionHandler serves the connection handshake endpoints.
type ConnectionHandler struct {
	Connections ConnectionStore
	Profiles    ProfileStore
	Notify      Notifier
}

func NewConnectionHandler(s ConnectionStore, p ProfileStore, n Notifier) *ConnectionHandler {
	if s == nil || p == nil {
		panic("nil store passed to NewConnectionHandler")
	}
	if n == nil {
		n = DefaultNotifier
	}
	return &ConnectionHandler{Connections: s, Profiles: p, Notify: n}
}

type connectionInviteReq struct {
	TutorID string `json:"tutor_id" validate:"required,uuid4"`
}

// Invite lets a student offer a connection to a tutor.
func (h *ConnectionHandler) Invite(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req connectionInviteReq
	if !bindAndValidate(c, &req) {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	student, err := h.Profiles.GetByUserID(ctx, uid)
	if err != nil {
		return storeError(c, err, "load profile failed")
	}
	tutor, err := h.Profiles.GetByUserID(ctx, req.TutorID)
	if err != nil {
		return storeError(c, err, "load tutor profile failed")
	}
	if tutor.Role != model.RoleTutor {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tutor_id is not a tutor"})
	}

	inv := model.ConnectionInvitation{
		StudentID:       uid,
		StudentUsername: student.Username,
		TutorID:         tutor.UserID,
		TutorUsername:   tutor.Username,
	}
	if err := h.Connections.Invite(ctx, &inv); err != nil {
		return storeError(c, err, "create invitation failed")
	}

	h.Notify(ctx, queue.NotificationEvent{
		Kind:        queue.KindConnectionInvited,
		ActorID:     uid,
		ActorName:   student.Username,
		RecipientID: tutor.UserID,
		Status:      inv.Status,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusCreated, inv)
}

// Invitations lists pending invitations addressed to the calling tutor.
func (h *ConnectionHandler) Invitations(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	invs, err := h.Connections.ListInvitationsForTutor(ctx, uid)
	if err != nil {
		return storeError(c, err, "list invitations failed")
	}
	return c.JSON(http.StatusOK, invs)
}

// Accept resolves an invitation as accepted, creating the durable
// connection.
func (h *ConnectionHandler) Accept(c echo.Context) error {
	return h.resolve(c, model.InviteAccepted)
}

// Reject resolves an invitation as rejected.
func (h *ConnectionHandler) Reject(c echo.Context) error {
	return h.resolve(c, model.InviteRejected)
}

func (h *ConnectionHandler) resolve(c echo.Context, status string) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invitation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	inv, err := h.Connections.Resolve(ctx, id, uid, status)
	if err != nil {
		return storeError(c, err, "resolve invitation failed")
	}

	h.Notify(ctx, queue.NotificationEvent{
		Kind:        queue.KindConnectionResolved,
		ActorID:     uid,
		ActorName:   inv.TutorUsername,
		RecipientID: inv.StudentID,
		Status:      inv.Status,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	})
	return c.NoContent(http.StatusNoContent)
}

// List returns the caller's established connections.
func (h *ConnectionHandler) List(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	conns, err := h.Connections.ListForUser(ctx, uid)
	if err != nil {
		return storeError(c, err, "list connections failed")
	}
	return c.JSON(http.StatusOK, conns)
}
