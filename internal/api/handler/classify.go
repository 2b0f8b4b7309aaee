package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hackphs/cortexvision/internal/api/middleware"
	"github.com/hackphs/cortexvision/internal/domain"
	"github.com/hackphs/cortexvision/internal/service"
)

// maxQueryImageBytes caps uploaded query images at 20 MiB.
const maxQueryImageBytes = 20 << 20

// ClassifyHandler handles classification endpoints.
type ClassifyHandler struct {
	classifyService *service.ClassifyService
}

// NewClassifyHandler creates a new classify handler.
// Parameters:
//   - classifyService: classify service instance.
// Returns:
//   - *ClassifyHandler: initialized handler.
func NewClassifyHandler(classifyService *service.ClassifyService) *ClassifyHandler {
	return &ClassifyHandler{
		classifyService: classifyService,
	}
}

// Classify handles POST /api/v1/classify. The query image arrives as
// multipart form field "image"; an optional "model" field restricts
// candidates to one model.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ClassifyHandler) Classify(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Form field 'image' is required: " + err.Error(),
		})
		return
	}
	if fileHeader.Size > maxQueryImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "Query image exceeds size limit",
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload: " + err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxQueryImageBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload: " + err.Error()})
		return
	}

	result, err := h.classifyService.Classify(
		c.Request.Context(),
		fileHeader.Filename,
		data,
		c.PostForm("model"),
	)
	if err != nil {
		writeClassifyError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func writeClassifyError(c *gin.Context, err error) {
	var noMatch *domain.NoMatchError
	var empty *domain.EmptyCandidatesError
	switch {
	case errors.As(err, &noMatch):
		c.JSON(http.StatusNotFound, gin.H{
			"error":          "No match found",
			"detail":         noMatch.Error(),
			"embedding_rows": noMatch.EmbeddingRows,
			"image_rows":     noMatch.ImageRows,
		})
	case errors.As(err, &empty):
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "No candidates for the requested model",
			"detail": empty.Error(),
		})
	case errors.Is(err, domain.ErrUploadFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		middleware.GetLogger(c).WithError(err).Error("Classification failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Classification failed: " + err.Error()})
	}
}
