package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hackphs/cortexvision/internal/service"
)

// AdminHandler handles the operator endpoints behind basic auth.
type AdminHandler struct {
	adminService *service.AdminService
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - adminService: admin service instance.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// Overview handles GET /api/v1/admin/overview.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) Overview(c *gin.Context) {
	overview, err := h.adminService.GetOverview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build overview: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Diagnostics handles GET /api/v1/admin/diagnostics.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) Diagnostics(c *gin.Context) {
	diag, err := h.adminService.GetDiagnostics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect diagnostics: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, diag)
}

// DeleteModel handles DELETE /api/v1/admin/models/:name.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) DeleteModel(c *gin.Context) {
	if err := h.adminService.DeleteModel(c.Request.Context(), c.Param("name")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete model: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("name")})
}

// DeleteClass handles DELETE /api/v1/admin/models/:name/classes/:class.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) DeleteClass(c *gin.Context) {
	if err := h.adminService.DeleteClass(c.Request.Context(), c.Param("name"), c.Param("class")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete class: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"model":   c.Param("name"),
		"deleted": c.Param("class"),
	})
}

// Cleanup handles POST /api/v1/admin/cleanup.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) Cleanup(c *gin.Context) {
	report, err := h.adminService.CleanupOrphans(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cleanup failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
