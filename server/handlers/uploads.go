package handlers

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"desktown-backend/server/middleware"
	"desktown-backend/server/services"
	"desktown-backend/shared/database/models"
)

// UploadResult describes a stored object
type UploadResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Visibility  string `json:"visibility"`
}

var allowedUploadPrefixes = []string{"image/", "video/", "audio/", "application/pdf"}

func objectURL(key string) string {
	return "/api/objects/" + key
}

func mediaKind(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	}
	return "file"
}

// UploadMedia godoc
// @Summary Upload a file
// @Description Private objects are readable only by their owner and admins
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Param visibility formData string false "public or private" default(public)
// @Success 201 {object} UploadResult
// @Failure 413 {object} ErrorResponse
// @Router /upload/media [post]
func (h *Handler) UploadMedia(c *gin.Context) {
	stored, ok := h.acceptUpload(c, currentUser(c), c.PostForm("visibility"))
	if !ok {
		return
	}
	respond(c, http.StatusCreated, stored)
}

// acceptUpload reads the "file" form field and stores it with an owner/visibility ACL
func (h *Handler) acceptUpload(c *gin.Context, user *models.User, visibility string) (*UploadResult, bool) {
	if h.objects == nil {
		abortWith(c, http.StatusServiceUnavailable, "Storage unavailable", "Object storage is not configured")
		return nil, false
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.UploadMaxBytes+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWith(c, http.StatusRequestEntityTooLarge, "File too large", "Maximum upload size is "+strconv.FormatInt(h.cfg.UploadMaxBytes>>20, 10)+" MB")
			return nil, false
		}
		badRequest(c, "A file field is required")
		return nil, false
	}
	if fh.Size > h.cfg.UploadMaxBytes {
		abortWith(c, http.StatusRequestEntityTooLarge, "File too large", "Maximum upload size is "+strconv.FormatInt(h.cfg.UploadMaxBytes>>20, 10)+" MB")
		return nil, false
	}

	file, err := fh.Open()
	if err != nil {
		badRequest(c, "Could not read upload")
		return nil, false
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	head, _ := reader.Peek(512)
	contentType := http.DetectContentType(head)
	if declared := fh.Header.Get("Content-Type"); declared != "" && contentType == "application/octet-stream" {
		contentType = declared
	}
	if !uploadAllowed(contentType) {
		abortWith(c, http.StatusUnsupportedMediaType, "Unsupported file type", contentType+" uploads are not accepted")
		return nil, false
	}

	visibility = services.NormalizeVisibility(visibility)
	key, err := h.objects.Upload(c.Request.Context(), user.ID, visibility, fh.Filename, contentType, reader, fh.Size)
	if err != nil {
		log.Printf("❌ Upload failed for %s: %v", user.ID, err)
		abortWith(c, http.StatusBadGateway, "Upload failed", "Could not store the file")
		return nil, false
	}

	return &UploadResult{
		Key:         key,
		URL:         objectURL(key),
		ContentType: contentType,
		Size:        fh.Size,
		Visibility:  visibility,
	}, true
}

func uploadAllowed(contentType string) bool {
	for _, prefix := range allowedUploadPrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// GetObject godoc
// @Summary Download a stored object
// @Description Public objects are served to anyone; private ones to their owner and admins
// @Tags uploads
// @Produce octet-stream
// @Param path path string true "Object key"
// @Success 200 {file} file
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /objects/{path} [get]
func (h *Handler) GetObject(c *gin.Context) {
	if h.objects == nil {
		abortWith(c, http.StatusServiceUnavailable, "Storage unavailable", "Object storage is not configured")
		return
	}
	key := strings.TrimPrefix(c.Param("path"), "/")
	if key == "" || strings.Contains(key, "..") {
		badRequest(c, "Invalid object path")
		return
	}

	obj, err := h.objects.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, services.ErrObjectNotFound) {
			abortWith(c, http.StatusNotFound, "Object not found", "No object is stored under this path")
			return
		}
		log.Printf("❌ Object download failed for %s: %v", key, err)
		abortWith(c, http.StatusBadGateway, "Download failed", "Could not read the object")
		return
	}
	defer obj.Body.Close()

	user, signedIn := middleware.CurrentUser(c)
	if !obj.ACL.CanRead(user) {
		if !signedIn {
			abortWith(c, http.StatusUnauthorized, "Unauthorized", "Sign in to view this file")
			return
		}
		forbidden(c, "This file is private")
		return
	}

	cache := "public, max-age=86400"
	if obj.ACL.Visibility == services.VisibilityPrivate {
		cache = "private, no-store"
	}
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, map[string]string{
		"Cache-Control": cache,
	})
}

// removeObject deletes an uploaded object; missing storage or empty keys are ignored
func (h *Handler) removeObject(ctx context.Context, key string) {
	if h.objects == nil || key == "" {
		return
	}
	if err := h.objects.Remove(ctx, key); err != nil {
		log.Printf("⚠️  Could not remove object %s: %v", key, err)
	}
}
