package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/realtime"
)

// StudyRoomStore is the study-room access needed by the room endpoints.
type StudyRoomStore interface {
	Create(ctx context.Context, room *model.StudyRoom, creatorUsername string) error
	GetByID(ctx context.Context, roomID string) (model.StudyRoom, error)
	ListVisible(ctx context.Context, userID, subject string) ([]model.StudyRoom, error)
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)
	Join(ctx context.Context, roomID, userID, username string) error
	Leave(ctx context.Context, roomID, userID string) error
	Messages(ctx context.Context, roomID string) ([]model.StudyRoomMessage, error)
	SendMessage(ctx context.Context, m *model.StudyRoomMessage) error
	Invite(ctx context.Context, roomID, callerID, inviteeID string) (model.StudyRoomInvitation, error)
	ListInvitations(ctx context.Context, inviteeID string) ([]model.StudyRoomInvitation, error)
	AcceptInvitation(ctx context.Context, invitationID, userID, username string) error
}

// StudyRoomHandler serves the group study-room endpoints.
type StudyRoomHandler struct {
	Rooms    StudyRoomStore
	Profiles ProfileStore
	Hub      *realtime.Hub
}

func NewStudyRoomHandler(s StudyRoomStore, p ProfileStore, hub *realtime.Hub) *StudyRoomHandler {
	if s == nil || p == nil || hub == nil {
		panic("nil dependency passed to NewStudyRoomHandler")
	}
	return &StudyRoomHandler{Rooms: s, Profiles: p, Hub: hub}
}

type createRoomReq struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Subject     string  `json:"subject" validate:"required"`
	Description *string `json:"description"`
	IsPrivate   bool    `json:"is_private"`
}

type inviteReq struct {
	InviteeEmail string `json:"invitee_email" validate:"required,email"`
}

// Create opens a study room with the caller as its first participant.
func (h *StudyRoomHandler) Create(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createRoomReq
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

	room := model.StudyRoom{
		Name:        strings.TrimSpace(req.Name),
		Subject:     req.Subject,
		Description: req.Description,
		CreatedBy:   uid,
		IsPrivate:   req.IsPrivate,
	}
	if err := h.Rooms.Create(ctx, &room, p.Username); err != nil {
		return storeError(c, err, "create room failed")
	}
	return c.JSON(http.StatusCreated, room)
}

// List returns rooms visible to the caller, optionally filtered by
// subject. Private rooms only appear for participants and accepted
// invitees.
func (h *StudyRoomHandler) List(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	subject := strings.TrimSpace(c.QueryParam("subject"))
	if subject != "" && !model.ValidSubject(subject) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown subject"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rooms, err := h.Rooms.ListVisible(ctx, uid, subject)
	if err != nil {
		return storeError(c, err, "list rooms failed")
	}
	return c.JSON(http.StatusOK, rooms)
}

// Join adds the caller to a room's roster.
func (h *StudyRoomHandler) Join(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	roomID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Profiles.GetByUserID(ctx, uid)
	if err != nil {
		return storeError(c, err, "load profile failed")
	}
	if err := h.Rooms.Join(ctx, roomID, uid, p.Username); err != nil {
		return storeError(c, err, "join room failed")
	}

	h.Hub.Publish(realtime.RoomTopic(roomID), "participant_joined",
		echo.Map{"room_id": roomID, "user_id": uid, "username": p.Username})
	return c.NoContent(http.StatusNoContent)
}

// Leave removes the caller from a room's roster.
func (h *StudyRoomHandler) Leave(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	roomID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Rooms.Leave(ctx, roomID, uid); err != nil {
		return storeError(c, err, "leave room failed")
	}

	h.Hub.Publish(realtime.RoomTopic(roomID), "participant_left",
		echo.Map{"room_id": roomID, "user_id": uid})
	return c.NoContent(http.StatusNoContent)
}

// Messages returns a room's messages in sequence order.
func (h *StudyRoomHandler) Messages(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	roomID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	ok, err := h.Rooms.IsParticipant(ctx, roomID, uid)
	if err != nil {
		return storeError(c, err, "participant check failed")
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	msgs, err := h.Rooms.Messages(ctx, roomID)
	if err != nil {
		return storeError(c, err, "list messages failed")
	}
	return c.JSON(http.StatusOK, msgs)
}

// Send posts a message to the room and fans it out to subscribers.
func (h *StudyRoomHandler) Send(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	roomID := c.Param("id")
	var req sendMessageReq
	if !bindAndValidate(c, &req) {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	ok, err := h.Rooms.IsParticipant(ctx, roomID, uid)
	if err != nil {
		return storeError(c, err, "participant check failed")
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	p, err := h.Profiles.GetByUserID(ctx, uid)
	if err != nil {
		return storeError(c, err, "load profile failed")
	}

	m := model.StudyRoomMessage{RoomID: roomID, SenderID: uid, SenderUsername: p.Username, Content: req.Content}
	if err := h.Rooms.SendMessage(ctx, &m); err != nil {
		return storeError(c, err, "send message failed")
	}

	h.Hub.Publish(realtime.RoomTopic(roomID), "message", m)
	return c.JSON(http.StatusCreated, m)
}

// Invite asks another user into a private room. Only the creator of a
// private room may invite; the invitee is looked up by profile email.
func (h *StudyRoomHandler) Invite(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	roomID := c.Param("id")
	var req inviteReq
	if !bindAndValidate(c, &req) {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	invitee, err := h.Profiles.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.InviteeEmail)))
	if err != nil {
		return storeError(c, err, "resolve invitee failed")
	}
	if invitee.UserID == uid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot invite yourself"})
	}

	inv, err := h.Rooms.Invite(ctx, roomID, uid, invitee.UserID)
	if err != nil {
		return storeError(c, err, "invite failed")
	}
	return c.JSON(http.StatusCreated, inv)
}

// Invitations lists the caller's pending room invitations.
func (h *StudyRoomHandler) Invitations(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	invs, err := h.Rooms.ListInvitations(ctx, uid)
	if err != nil {
		return storeError(c, err, "list invitations failed")
	}
	return c.JSON(http.StatusOK, invs)
}

// AcceptInvitation accepts a pending invitation and joins the room.
func (h *StudyRoomHandler) AcceptInvitation(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	invID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Profiles.GetByUserID(ctx, uid)
	if err != nil {
		return storeError(c, err, "load profile failed")
	}
	if err := h.Rooms.AcceptInvitation(ctx, invID, uid, p.Username); err != nil {
		return storeError(c, err, "accept invitation failed")
	}
	return c.NoContent(http.StatusNoContent)
}
