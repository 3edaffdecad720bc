package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/realtime"
)

// keepaliveInterval spaces SSE comment frames so idle connections are
// not reaped by proxies.
const keepaliveInterval = 30 * time.Second

// RealtimeHandler streams hub events over Server-Sent Events. Each
// stream checks membership up front, then holds a cancellable
// subscription until the client disconnects.
type RealtimeHandler struct {
	Hub           *realtime.Hub
	Conversations ConversationStore
	Rooms         StudyRoomStore
}

func NewRealtimeHandler(hub *realtime.Hub, conv ConversationStore, rooms StudyRoomStore) *RealtimeHandler {
	if hub == nil || conv == nil || rooms == nil {
		panic("nil dependency passed to NewRealtimeHandler")
	}
	return &RealtimeHandler{Hub: hub, Conversations: conv, Rooms: rooms}
}

// Conversation streams live events for one conversation.
func (h *RealtimeHandler) Conversation(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conversation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	ok, err := h.Conversations.IsParticipant(ctx, id, uid)
	cancel()
	if err != nil {
		return storeError(c, err, "participant check failed")
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	return h.stream(c, realtime.ConversationTopic(id))
}

// Room streams live events for one study room.
func (h *RealtimeHandler) Room(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	roomID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	ok, err := h.Rooms.IsParticipant(ctx, roomID, uid)
	cancel()
	if err != nil {
		return storeError(c, err, "participant check failed")
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	return h.stream(c, realtime.RoomTopic(roomID))
}

// Meetings streams meeting events addressed to the caller.
func (h *RealtimeHandler) Meetings(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.stream(c, realtime.MeetingsTopic(uid))
}

// stream subscribes to a topic and forwards events until the client
// goes away. The subscription is always released; a dropped (closed)
// channel ends the stream so the client reconnects and resyncs.
func (h *RealtimeHandler) stream(c echo.Context, topic string) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	sub := h.Hub.Subscribe(topic, 64)
	defer sub.Cancel()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	done := c.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case ev, open := <-sub.C:
			if !open {
				return nil
			}
			if err := writeEvent(res, ev); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeEvent(res *echo.Response, ev realtime.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(res, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, data)
	return err
}
