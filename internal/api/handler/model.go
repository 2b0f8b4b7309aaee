package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hackphs/cortexvision/internal/repository"
)

// ModelHandler handles model listing endpoints.
type ModelHandler struct {
	modelRepo *repository.ModelRepository
}

// NewModelHandler creates a new model handler.
// Parameters:
//   - modelRepo: model repository instance.
// Returns:
//   - *ModelHandler: initialized handler.
func NewModelHandler(modelRepo *repository.ModelRepository) *ModelHandler {
	return &ModelHandler{
		modelRepo: modelRepo,
	}
}

// ListModels handles GET /api/v1/models.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ModelHandler) ListModels(c *gin.Context) {
	models, err := h.modelRepo.Summaries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list models: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

// ListClasses handles GET /api/v1/models/:name/classes.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ModelHandler) ListClasses(c *gin.Context) {
	name := c.Param("name")
	classes, err := h.modelRepo.ListClasses(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list classes: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"model":   name,
		"classes": classes,
	})
}
