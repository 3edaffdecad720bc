package handler

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/storage"
)

// StorageHandler issues pre-signed URLs for user file storage. Every
// key an authenticated user may touch lives under uploads/{userID}/;
// requests for anyone else's prefix are refused.
type StorageHandler struct {
	Store storage.Signer
}

func NewStorageHandler(s storage.Signer) *StorageHandler {
	if s == nil {
		panic("nil signer passed to NewStorageHandler")
	}
	return &StorageHandler{Store: s}
}

type uploadURLReq struct {
	FileName    string `json:"file_name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required"`
}

type keyReq struct {
	Key string `json:"key" validate:"required"`
}

func ownsKey(userID, key string) bool {
	return strings.HasPrefix(key, "uploads/"+userID+"/")
}

// UploadURL mints a key under the caller's prefix and returns a
// pre-signed PUT URL for it.
func (h *StorageHandler) UploadURL(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req uploadURLReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	// Strip any path components so the key stays inside the prefix.
	name := path.Base(strings.ReplaceAll(req.FileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file_name"})
	}
	key := fmt.Sprintf("uploads/%s/%d-%s", uid, time.Now().UnixMilli(), name)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	url, err := h.Store.PresignUpload(ctx, key, req.ContentType)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "presign failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"url":        url,
		"key":        key,
		"expires_in": int(storage.URLTTL / time.Second),
	})
}

// DownloadURL returns a pre-signed GET URL for one of the caller's own
// objects.
func (h *StorageHandler) DownloadURL(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req keyReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	if !ownsKey(uid, req.Key) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	url, err := h.Store.PresignDownload(ctx, req.Key)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "presign failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"url":        url,
		"expires_in": int(storage.URLTTL / time.Second),
	})
}

// Delete removes one of the caller's own objects.
func (h *StorageHandler) Delete(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req keyReq
	if !bindAndValidate(c, &req) {
		return nil
	}
	if !ownsKey(uid, req.Key) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Store.Delete(ctx, req.Key); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
