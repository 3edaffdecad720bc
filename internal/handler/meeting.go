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
	"github.com/tutorhub/tutorhub/internal/realtime"
)

// MeetingStore is the meeting access needed by the scheduling endpoints.
type MeetingStore interface {
	Create(ctx context.Context, m *model.Meeting) error
	GetByID(ctx context.Context, id uint64) (model.Meeting, error)
	ListForUser(ctx context.Context, userID string) ([]model.Meeting, error)
	UpdateStatus(ctx context.Context, meetingID uint64, callerID, status string) (model.Meeting, error)
}

// MeetingHandler serves the meeting scheduling endpoints.
type MeetingHandler struct {
	Meetings MeetingStore
	Profiles ProfileStore
	Hub      *realtime.Hub
	Notify   Notifier
}

func NewMeetingHandler(m MeetingStore, p ProfileStore, hub *realtime.Hub, n Notifier) *MeetingHandler {
	if m == nil || p == nil || hub == nil {
		panic("nil dependency passed to NewMeetingHandler")
	}
	if n == nil {
		n = DefaultNotifier
	}
	return &MeetingHandler{Meetings: m, Profiles: p, Hub: hub, Notify: n}
}

type createMeetingReq struct {
	TutorID   string    `json:"tutor_id" validate:"required,uuid4"`
	Subject   string    `json:"subject" validate:"required"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	Notes     *string   `json:"notes"`
}

type meetingStatusReq struct {
	Status string `json:"status" validate:"required"`
}

// Create requests a meeting with a tutor. New meetings always start
// pending; the tutor decides from there.
func (h *MeetingHandler) Create(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createMeetingReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	if !model.ValidSubject(req.Subject) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown subject"})
	}
	if !req.EndTime.After(req.StartTime) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be after start_time"})
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

	m := model.Meeting{
		StudentID:       uid,
		StudentUsername: student.Username,
		TutorID:         tutor.UserID,
		TutorUsername:   tutor.Username,
		Subject:         req.Subject,
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		Notes:           req.Notes,
	}
	if err := h.Meetings.Create(ctx, &m); err != nil {
		return storeError(c, err, "create meeting failed")
	}

	h.Hub.Publish(realtime.MeetingsTopic(m.TutorID), "meeting_requested", m)
	h.Notify(ctx, queue.NotificationEvent{
		Kind:        queue.KindMeetingRequested,
		ActorID:     uid,
		ActorName:   student.Username,
		RecipientID: m.TutorID,
		MeetingID:   m.ID,
		Subject:     m.Subject,
		Status:      m.Status,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusCreated, m)
}

// List returns the caller's meetings on either side of the table.
func (h *MeetingHandler) List(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	meetings, err := h.Meetings.ListForUser(ctx, uid)
	if err != nil {
		return storeError(c, err, "list meetings failed")
	}
	return c.JSON(http.StatusOK, meetings)
}

// UpdateStatus moves a meeting along its lifecycle. The store enforces
// who may perform which transition; illegal moves come back as
// conflicts.
func (h *MeetingHandler) UpdateStatus(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid meeting id"})
	}
	var req meetingStatusReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !model.ValidMeetingStatus(status) || status == model.MeetingPending {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	m, err := h.Meetings.UpdateStatus(ctx, id, uid, status)
	if err != nil {
		return storeError(c, err, "update status failed")
	}

	other := m.TutorID
	actorName := m.StudentUsername
	if uid == m.TutorID {
		other = m.StudentID
		actorName = m.TutorUsername
	}
	h.Hub.Publish(realtime.MeetingsTopic(other), "meeting_status", m)
	h.Notify(ctx, queue.NotificationEvent{
		Kind:        queue.KindMeetingStatus,
		ActorID:     uid,
		ActorName:   actorName,
		RecipientID: other,
		MeetingID:   m.ID,
		Subject:     m.Subject,
		Status:      m.Status,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusOK, m)
}
