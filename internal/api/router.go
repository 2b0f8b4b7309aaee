package api

import (
	"github.com/gin-gonic/gin"

	"github.com/hackphs/cortexvision/internal/api/handler"
	"github.com/hackphs/cortexvision/internal/api/middleware"
	"github.com/hackphs/cortexvision/internal/repository"
	"github.com/hackphs/cortexvision/internal/service"
)

// RouterConfig holds the router's own knobs, separate from the services.
type RouterConfig struct {
	Mode          string
	CORS          middleware.CORSConfig
	AsyncTeach    bool
	AdminUsername string
	AdminPassword string
}

// SetupRouter configures the Gin router with all routes.
// Parameters:
//   - teachService, classifyService, adminService: domain services.
//   - modelRepo: model repository for the read-only listing endpoints.
//   - cfg: router configuration.
// Returns:
//   - *gin.Engine: configured router.
func SetupRouter(
	teachService *service.TeachService,
	classifyService *service.ClassifyService,
	adminService *service.AdminService,
	modelRepo *repository.ModelRepository,
	cfg *RouterConfig,
) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler()
	teachHandler := handler.NewTeachHandler(teachService, cfg.AsyncTeach)
	classifyHandler := handler.NewClassifyHandler(classifyService)
	modelHandler := handler.NewModelHandler(modelRepo)
	adminHandler := handler.NewAdminHandler(adminService)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Teaching
		v1.POST("/teach", teachHandler.Teach)
		v1.GET("/teach/jobs", teachHandler.ListJobs)
		v1.GET("/teach/jobs/:id", teachHandler.GetJob)

		// Classification
		v1.POST("/classify", classifyHandler.Classify)

		// Models
		v1.GET("/models", modelHandler.ListModels)
		v1.GET("/models/:name/classes", modelHandler.ListClasses)

		// Admin (basic auth)
		admin := v1.Group("/admin", middleware.AdminAuth(cfg.AdminUsername, cfg.AdminPassword))
		{
			admin.GET("/overview", adminHandler.Overview)
			admin.GET("/diagnostics", adminHandler.Diagnostics)
			admin.DELETE("/models/:name", adminHandler.DeleteModel)
			admin.DELETE("/models/:name/classes/:class", adminHandler.DeleteClass)
			admin.POST("/cleanup", adminHandler.Cleanup)
		}
	}

	return r
}
