package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// ProfileStore is the profile access shared by several handlers.
type ProfileStore interface {
	Create(ctx context.Context, p *model.Profile) error
	GetByUserID(ctx context.Context, userID string) (model.Profile, error)
	GetByEmail(ctx context.Context, email string) (model.Profile, error)
	Search(ctx context.Context, query, role string, limit int) ([]model.Profile, error)
	SubjectsFor(ctx context.Context, tutorID string) ([]string, error)
	Update(ctx context.Context, userID string, patch repository.ProfilePatch) (model.Profile, error)
}

// ProfileHandler serves the profile CRUD and user search endpoints.
type ProfileHandler struct {
	Profiles ProfileStore
}

func NewProfileHandler(p ProfileStore) *ProfileHandler {
	if p == nil {
		panic("nil store passed to NewProfileHandler")
	}
	return &ProfileHandler{Profiles: p}
}

type updateProfileReq struct {
	Username    *string   `json:"username" validate:"omitempty,min=3,max=32"`
	HourlyRate  *float64  `json:"hourly_rate" validate:"omitempty,gte=0"`
	ClearRate   bool      `json:"clear_hourly_rate"`
	Bio         *string   `json:"bio"`
	Specialties *[]string `json:"specialties"`
	Struggles   *[]string `json:"struggles"`
}

// Get returns the caller's own profile.
func (h *ProfileHandler) Get(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Profiles.GetByUserID(ctx, uid)
	if err != nil {
		return storeError(c, err, "load profile failed")
	}
	return c.JSON(http.StatusOK, p)
}

// Update patches the caller's profile. Absent fields stay untouched;
// the role can never change. Subject lists are validated against the
// catalog before anything is written.
func (h *ProfileHandler) Update(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req updateProfileReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	for _, list := range []*[]string{req.Specialties, req.Struggles} {
		if list == nil {
			continue
		}
		for _, s := range *list {
			if !model.ValidSubject(s) {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown subject: " + s})
			}
		}
	}
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		req.Username = &trimmed
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Profiles.Update(ctx, uid, repository.ProfilePatch{
		Username:    req.Username,
		HourlyRate:  req.HourlyRate,
		ClearRate:   req.ClearRate,
		Bio:         req.Bio,
		Specialties: req.Specialties,
		Struggles:   req.Struggles,
	})
	if err != nil {
		return storeError(c, err, "update profile failed")
	}
	return c.JSON(http.StatusOK, p)
}

// Search finds profiles by username fragment, optionally filtered by
// role. Used by the messaging and invitation pickers.
func (h *ProfileHandler) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "q required"})
	}
	role := strings.ToLower(strings.TrimSpace(c.QueryParam("role")))
	if role != "" && !model.ValidRole(role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be student or tutor"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	profiles, err := h.Profiles.Search(ctx, q, role, 20)
	if err != nil {
		return storeError(c, err, "search failed")
	}
	return c.JSON(http.StatusOK, profiles)
}

// TutorSubjects lists the registered subjects for a tutor.
func (h *ProfileHandler) TutorSubjects(c echo.Context) error {
	tutorID := c.Param("id")
	if tutorID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tutor id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	subjects, err := h.Profiles.SubjectsFor(ctx, tutorID)
	if err != nil {
		return storeError(c, err, "load subjects failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"tutor_id": tutorID, "subjects": subjects})
}
