package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hackphs/cortexvision/internal/api/middleware"
	"github.com/hackphs/cortexvision/internal/domain"
	"github.com/hackphs/cortexvision/internal/service"
)

// TeachHandler handles teaching endpoints.
type TeachHandler struct {
	teachService *service.TeachService
	async        bool
}

// NewTeachHandler creates a new teach handler.
// Parameters:
//   - teachService: teach service instance.
//   - async: when true, teach requests run as background jobs.
// Returns:
//   - *TeachHandler: initialized handler.
func NewTeachHandler(teachService *service.TeachService, async bool) *TeachHandler {
	return &TeachHandler{
		teachService: teachService,
		async:        async,
	}
}

// TeachRequest is the teach request payload.
type TeachRequest struct {
	Model string `json:"model" binding:"required"`
	Class string `json:"class" binding:"required"`
}

// Teach handles POST /api/v1/teach.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TeachHandler) Teach(c *gin.Context) {
	var req TeachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	if h.async {
		jobID, err := h.teachService.TeachAsync(ctx, req.Model, req.Class)
		if err != nil {
			writeTeachError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"job_id": jobID,
			"status": domain.JobStatusPending,
		})
		return
	}

	result, err := h.teachService.Teach(ctx, req.Model, req.Class)
	if err != nil {
		writeTeachError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func writeTeachError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateClass):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAcquisitionFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUploadFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		middleware.GetLogger(c).WithError(err).Error("Teach failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Teach failed: " + err.Error()})
	}
}

// GetJob handles GET /api/v1/teach/jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TeachHandler) GetJob(c *gin.Context) {
	job, err := h.teachService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job: " + err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/teach/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TeachHandler) ListJobs(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	jobs, err := h.teachService.RecentJobs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
