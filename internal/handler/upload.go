package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	maxUploadSize = 5 << 20 // 5 MB

	// imagesPath is where uploaded images are served from.
	imagesPath = "/api/v1/uploads/images/"
)

// allowedImageTypes maps sniffed MIME types to the extension files are
// stored with.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadHandler stores company logos and driver photos on local disk.
type UploadHandler struct {
	dir string
}

// NewUploadHandler creates an UploadHandler writing into dir. The directory
// is created on first upload.
func NewUploadHandler(dir string) *UploadHandler {
	return &UploadHandler{dir: dir}
}

// UploadImage handles POST /api/v1/admin/uploads/images
//
// Multipart form with a "file" field, at most 5 MB. The type is sniffed from
// the content; the client's Content-Type is ignored.
//
// Response 201: {"filename": "<uuid>.png", "url": "/api/v1/uploads/images/<uuid>.png"}
// Response 400: missing field or unsupported type.
// Response 413: file too large.
func (h *UploadHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file must not exceed 5 MB"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid 'file' field"})
		return
	}
	defer file.Close() //nolint:errcheck

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	detected := http.DetectContentType(head[:n])
	ext, ok := allowedImageTypes[detected]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unsupported file type %q; allowed: JPEG, PNG, WebP, GIF", detected),
		})
		return
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		log.Printf("handler: upload: mkdir %s: %v", h.dir, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return
	}

	filename := uuid.NewString() + ext
	destPath := filepath.Join(h.dir, filename)
	dst, err := os.Create(destPath)
	if err != nil {
		log.Printf("handler: upload: create %s: %v", destPath, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return
	}
	defer dst.Close() //nolint:errcheck

	if _, err := io.Copy(dst, io.MultiReader(bytes.NewReader(head[:n]), file)); err != nil {
		_ = os.Remove(destPath) //nolint:errcheck // best-effort cleanup
		log.Printf("handler: upload: write %s: %v", destPath, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"filename": filename,
		"url":      imagesPath + filename,
	})
}

// ServeImage handles GET /api/v1/uploads/images/:filename
func (h *UploadHandler) ServeImage(c *gin.Context) {
	filename := c.Param("filename")
	if filename != filepath.Base(filename) || strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}

	path := filepath.Join(h.dir, filename)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.File(path)
}
