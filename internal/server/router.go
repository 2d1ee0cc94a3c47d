package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/projecthub/projecthub-backend/internal/handlers"
	"github.com/projecthub/projecthub-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware       *middleware.AuthMiddleware
	TemplateHandler      *handlers.TemplateHandler
	VersionHandler       *handlers.VersionHandler
	EffectivenessHandler *handlers.EffectivenessHandler
	CalendarHandler      *handlers.CalendarHandler
	OptimizerHandler     *handlers.OptimizerHandler
	AnalyticsHandler     *handlers.AnalyticsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Templates
	api.POST("/templates", cfg.TemplateHandler.Create)
	api.GET("/templates", cfg.TemplateHandler.List)
	api.GET("/templates/export", cfg.TemplateHandler.Export)
	api.POST("/templates/import", cfg.TemplateHandler.Import)
	api.POST("/templates/bulk", cfg.TemplateHandler.Bulk)
	api.GET("/templates/:id", cfg.TemplateHandler.Get)
	api.PUT("/templates/:id", cfg.TemplateHandler.Update)
	api.DELETE("/templates/:id", cfg.TemplateHandler.Delete)

	// Versions
	api.GET("/templates/:id/versions", cfg.VersionHandler.List)
	api.GET("/templates/:id/versions/compare", cfg.VersionHandler.Compare)
	api.GET("/templates/:id/versions/:version", cfg.VersionHandler.Get)
	api.POST("/templates/:id/versions/:version/revert", cfg.VersionHandler.Revert)

	// Optimizer
	api.POST("/templates/:id/optimize/customize", cfg.OptimizerHandler.Customize)
	api.GET("/templates/:id/optimize/recommendations", cfg.OptimizerHandler.Recommendations)
	api.POST("/templates/:id/optimize/automate", cfg.OptimizerHandler.Automate)
	api.POST("/templates/:id/optimize/calendar", cfg.OptimizerHandler.AdjustCalendar)

	// Effectiveness
	api.POST("/effectiveness/track", cfg.EffectivenessHandler.Track)
	api.POST("/effectiveness/progress", cfg.EffectivenessHandler.Progress)
	api.POST("/effectiveness/feedback", cfg.EffectivenessHandler.Feedback)
	api.GET("/effectiveness/projects/:id", cfg.EffectivenessHandler.GetByProject)
	api.GET("/effectiveness/templates/:id", cfg.EffectivenessHandler.ListByTemplate)

	// Calendar
	api.GET("/calendar/conflicts", cfg.CalendarHandler.Conflicts)
	api.GET("/calendar/adjust", cfg.CalendarHandler.Adjust)

	// Analytics
	api.GET("/analytics/templates/:id", cfg.AnalyticsHandler.TemplateSummary)
	api.GET("/analytics/most-used", cfg.AnalyticsHandler.MostUsed)
	api.GET("/analytics/overview", cfg.AnalyticsHandler.Overview)

	return router
}
