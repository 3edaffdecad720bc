package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/realtime"
)

// ConversationStore is the 1:1 messaging access.
type ConversationStore interface {
	CreateOrGet(ctx context.Context, userID, username, otherID, otherUsername string) (model.Conversation, error)
	IsParticipant(ctx context.Context, conversationID uint64, userID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	Messages(ctx context.Context, conversationID uint64) ([]model.Message, error)
	SendMessage(ctx context.Context, m *model.Message) error
}

// ConversationHandler serves the private messaging endpoints.
type ConversationHandler struct {
	Conversations ConversationStore
	Profiles      ProfileStore
	Hub           *realtime.Hub
}

func NewConversationHandler(s ConversationStore, p ProfileStore, hub *realtime.Hub) *ConversationHandler {
	if s == nil || p == nil || hub == nil {
		panic("nil dependency passed to NewConversationHandler")
	}
	return &ConversationHandler{Conversations: s, Profiles: p, Hub: hub}
}

type createConversationReq struct {
	OtherUserID string `json:"other_user_id" validate:"required,uuid4"`
}

type sendMessageReq struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// Create returns the conversation between the caller and the other
// user, creating it if absent. Calling twice, or from both sides at
// once, yields the same conversation.
func (h *ConversationHandler) Create(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createConversationReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	if req.OtherUserID == uid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot message yourself"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	me, err := h.Profiles.GetByUserID(ctx, uid)
	if err != nil {
		return storeError(c, err, "load profile failed")
	}
	other, err := h.Profiles.GetByUserID(ctx, req.OtherUserID)
	if err != nil {
		return storeError(c, err, "load other profile failed")
	}

	conv, err := h.Conversations.CreateOrGet(ctx, uid, me.Username, other.UserID, other.Username)
	if err != nil {
		return storeError(c, err, "create conversation failed")
	}
	return c.JSON(http.StatusOK, conv)
}

// List returns the caller's conversations, most recently active first.
func (h *ConversationHandler) List(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	convs, err := h.Conversations.ListForUser(ctx, uid)
	if err != nil {
		return storeError(c, err, "list conversations failed")
	}
	return c.JSON(http.StatusOK, convs)
}

// Messages returns a conversation's messages in send order.
func (h *ConversationHandler) Messages(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conversation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	ok, err := h.Conversations.IsParticipant(ctx, id, uid)
	if err != nil {
		return storeError(c, err, "participant check failed")
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	msgs, err := h.Conversations.Messages(ctx, id)
	if err != nil {
		return storeError(c, err, "list messages failed")
	}
	return c.JSON(http.StatusOK, msgs)
}

// Send appends a message and fans it out to live subscribers.
func (h *ConversationHandler) Send(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conversation id"})
	}
	var req sendMessageReq
	if !bindAndValidate(c, &req) {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	ok, err := h.Conversations.IsParticipant(ctx, id, uid)
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

	m := model.Message{ConversationID: id, SenderID: uid, SenderUsername: p.Username, Content: req.Content}
	if err := h.Conversations.SendMessage(ctx, &m); err != nil {
		return storeError(c, err, "send message failed")
	}

	h.Hub.Publish(realtime.ConversationTopic(id), "message", m)
	return c.JSON(http.StatusCreated, m)
}
