package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/tutorhub/tutorhub/internal/model"
)

func TestUploadURLKeyStaysInCallerPrefix(t *testing.T) {
	h := NewStorageHandler(&fakeSigner{})

	c, rec := newTestCtx(t, http.MethodPost, "/v1/files/upload-url",
		`{"file_name":"notes.pdf","content_type":"application/pdf"}`, "user-1", model.RoleStudent)
	if err := h.UploadURL(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		URL       string `json:"url"`
		Key       string `json:"key"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.Key, "uploads/user-1/") {
		t.Errorf("key = %q, want uploads/user-1/ prefix", resp.Key)
	}
	if !strings.HasSuffix(resp.Key, "-notes.pdf") {
		t.Errorf("key = %q, want file name suffix", resp.Key)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("expires_in = %d, want 3600", resp.ExpiresIn)
	}
}

func TestUploadURLStripsPathTraversal(t *testing.T) {
	h := NewStorageHandler(&fakeSigner{})

	c, rec := newTestCtx(t, http.MethodPost, "/v1/files/upload-url",
		`{"file_name":"../../etc/passwd","content_type":"text/plain"}`, "user-1", model.RoleStudent)
	if err := h.UploadURL(c); err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(resp.Key, "..") {
		t.Errorf("key %q still contains traversal", resp.Key)
	}
	if !strings.HasPrefix(resp.Key, "uploads/user-1/") {
		t.Errorf("key = %q escaped the prefix", resp.Key)
	}
}

func TestDownloadURLForeignKeyForbidden(t *testing.T) {
	h := NewStorageHandler(&fakeSigner{})

	c, rec := newTestCtx(t, http.MethodPost, "/v1/files/download-url",
		`{"key":"uploads/user-2/123-secret.pdf"}`, "user-1", model.RoleStudent)
	_ = h.DownloadURL(c)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestDeleteOwnKey(t *testing.T) {
	signer := &fakeSigner{}
	h := NewStorageHandler(signer)

	c, rec := newTestCtx(t, http.MethodDelete, "/v1/files",
		`{"key":"uploads/user-1/123-old.pdf"}`, "user-1", model.RoleStudent)
	if err := h.Delete(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(signer.deleted) != 1 || signer.deleted[0] != "uploads/user-1/123-old.pdf" {
		t.Errorf("deleted = %v", signer.deleted)
	}

	c, rec = newTestCtx(t, http.MethodDelete, "/v1/files",
		`{"key":"uploads/user-2/123-other.pdf"}`, "user-1", model.RoleStudent)
	_ = h.Delete(c)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign delete status = %d, want 403", rec.Code)
	}
}
