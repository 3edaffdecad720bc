// Package handler defines the HTTP handlers. Each handler bundles the
// narrow store interfaces it depends on, so tests can swap in fakes
// without a database.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/repository"
)

// dbTimeout bounds every handler-initiated database call.
const dbTimeout = 5 * time.Second

var validate = validator.New()

// currentUser extracts the authenticated user's ID from context. It is
// stored by the JWT middleware as a string UUID.
func currentUser(c echo.Context) (string, error) {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("invalid user_id in context")
}

// currentRole extracts the authenticated user's role from context.
func currentRole(c echo.Context) string {
	s, _ := c.Get("role").(string)
	return s
}

// bindAndValidate binds the JSON body into dst and runs struct
// validation. A false return means the 400 response was already written.
func bindAndValidate(c echo.Context, dst any) bool {
	if err := c.Bind(dst); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "detail": err.Error()})
		return false
	}
	return true
}

// storeError maps repository sentinels onto HTTP responses. Unknown
// errors become an opaque 500 with the given fallback message.
func storeError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already exists"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": fallback})
}
