package handlers

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/httpx"
	"github.com/chainsplit/chainsplit-backend/internal/storage"
	"github.com/chainsplit/chainsplit-backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// MaxAttachmentSize caps a single upload.
const MaxAttachmentSize = 8 * 1024 * 1024

// AttachmentStore is the object storage used for message attachments.
type AttachmentStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectStat, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, storage.ObjectStat, error)
}

type AttachmentHandler struct {
	store AttachmentStore
	log   *logrus.Entry
}

// NewAttachmentHandler accepts a nil store; every request then answers 503.
func NewAttachmentHandler(store AttachmentStore, log logrus.FieldLogger) *AttachmentHandler {
	return &AttachmentHandler{store: store, log: logger.Component(log, "attachments")}
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, "\"")
	return v
}

// Upload stores the multipart "file" field and returns its key. The key is
// what image and file messages carry in their metadata.
func (h *AttachmentHandler) Upload(c *fiber.Ctx) error {
	if h.store == nil {
		return httpx.Error(c, fiber.StatusServiceUnavailable, "storage_not_configured", "Storage not configured")
	}
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return httpx.BadRequest(c, "missing_file", "file is required")
	}
	if fh.Size <= 0 {
		return httpx.BadRequest(c, "empty_file", "file is empty")
	}
	if fh.Size > MaxAttachmentSize {
		return httpx.Error(c, fiber.StatusRequestEntityTooLarge, "file_too_large", "file exceeds 8 MB")
	}

	f, err := fh.Open()
	if err != nil {
		return httpx.BadRequest(c, "invalid_file", "could not read file")
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := storage.AttachmentKey(userID, fh.Filename)
	st, err := h.store.PutObject(c.UserContext(), key, f, fh.Size, contentType)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "key": key}).Error("Attachment upload failed")
		return httpx.Internal(c, "attachment_upload_failed")
	}

	h.log.WithFields(logrus.Fields{"user_id": userID, "key": key, "size": st.Size}).Info("Attachment stored")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"key":          key,
		"size":         fh.Size,
		"content_type": contentType,
		"etag":         st.ETag,
	})
}

// Get streams an attachment by key.
func (h *AttachmentHandler) Get(c *fiber.Ctx) error {
	if h.store == nil {
		return httpx.Error(c, fiber.StatusServiceUnavailable, "storage_not_configured", "Storage not configured")
	}

	keyParam := strings.TrimSpace(c.Params("*"))
	key, err := storage.SafeJoinPath(storage.AttachmentPrefix, keyParam)
	if err != nil {
		return httpx.NotFound(c, "not_found", "Not found")
	}

	obj, st, err := h.store.GetObject(c.UserContext(), key)
	if err != nil {
		if storage.IsNotFound(err) {
			return httpx.NotFound(c, "not_found", "Not found")
		}
		h.log.WithError(err).WithField("key", key).Error("Attachment fetch failed")
		return httpx.Internal(c, "attachment_fetch_failed")
	}

	if st.ETag != "" {
		c.Set("ETag", "\""+st.ETag+"\"")
		if inm := normalizeETag(c.Get("If-None-Match")); inm != "" && inm == normalizeETag(st.ETag) {
			_ = obj.Close()
			return c.SendStatus(fiber.StatusNotModified)
		}
	}
	if !st.LastModified.IsZero() {
		c.Set("Last-Modified", st.LastModified.UTC().Format(time.RFC1123))
	}

	c.Set("Cache-Control", "private, max-age=31536000, immutable")
	contentType := st.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Set(fiber.HeaderContentType, contentType)
	if st.Size > 0 {
		return c.SendStream(obj, int(st.Size))
	}
	return c.SendStream(obj)
}
