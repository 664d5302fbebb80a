package http

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerfiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"

	"github.com/coverpoint/backend/internal/config"
	"github.com/coverpoint/backend/internal/db"
	"github.com/coverpoint/backend/internal/http/handlers"
	"github.com/coverpoint/backend/internal/http/middleware"
	"github.com/coverpoint/backend/internal/service"
)

type Services struct {
	Detection *service.DetectionService
	Conflicts *service.ConflictService
	Lifecycle *service.LifecycleService
	Health    *service.HealthService
}

func Router(cfg config.Config, store *db.Store, svc Services, logger zerolog.Logger) *gin.Engine {
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = strings.Split(cfg.CORSAllowed, ",")
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Detection: svc.Detection,
		Conflicts: svc.Conflicts,
		Lifecycle: svc.Lifecycle,
		Health:    svc.Health,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/swagger/*any", ginswagger.WrapHandler(swaggerfiles.Handler))

	api := r.Group("/api")
	{
		api.GET("/properties/:id/gaps", h.GapsList)
		api.GET("/properties/:id/conflicts", h.ConflictsList)
		api.GET("/properties/:id/health-scores", h.HealthScoresList)
		api.GET("/gaps/:id", h.GapGet)
		api.GET("/conflicts/:id", h.ConflictGet)

		admin := api.Group("")
		admin.Use(middleware.AdminKey(cfg.AdminKey))
		{
			admin.POST("/properties/:id/detect-gaps", h.DetectGaps)
			admin.POST("/properties/:id/detect-conflicts", h.DetectConflicts)
			admin.POST("/properties/:id/health-scores", h.CalculateHealthScore)
			admin.POST("/organizations/:id/detect-gaps", h.DetectGapsForOrganization)
			admin.POST("/gaps/:id/acknowledge", h.AcknowledgeGap)
			admin.POST("/gaps/:id/resolve", h.ResolveGap)
			admin.POST("/conflicts/:id/acknowledge", h.AcknowledgeConflict)
			admin.POST("/conflicts/:id/resolve", h.ResolveConflict)
		}
	}

	return r
}
